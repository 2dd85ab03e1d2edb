package oscore

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	q "github.com/quic-go/quic-go"
	"github.com/rs/zerolog"

	"github.com/TheusHen/oscore/oscore/envelope"
	"github.com/TheusHen/oscore/oscore/observability"
	"github.com/TheusHen/oscore/oscore/protocol"
	"github.com/TheusHen/oscore/oscore/secure"
	"github.com/TheusHen/oscore/oscore/security"
	"github.com/TheusHen/oscore/oscore/store"
	"github.com/TheusHen/oscore/oscore/transport/quic"
)

var (
	ErrNotListening        = errors.New("oscore: endpoint is not listening")
	ErrUnprotectedResponse = errors.New("oscore: unprotected response")
)

// Diagnostic payloads of the error responses sent in clear.
const (
	reasonContextNotFound = "Security context not found"
	reasonDecryptFailed   = "Decryption failed"
	reasonReplay          = "Replay detected"
	reasonBadOption       = "Bad OSCORE option"
	reasonBadRequest      = "Bad request"
	reasonRateLimited     = "Too many requests"
	reasonExhausted       = "Sequence numbers exhausted"
	reasonInternal        = "Internal error"
)

// ResponseError is returned by Do when the peer answered with an error it
// could not protect, for instance because it has no context for this client.
type ResponseError struct {
	Code   protocol.Code
	Reason string
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("oscore: unprotected %s response: %s", e.Code, e.Reason)
}

func (e *ResponseError) Unwrap() error { return ErrUnprotectedResponse }

// Handler produces the plaintext response for a verified request.
type Handler interface {
	ServeOSCORE(ctx context.Context, req *protocol.Message) *protocol.Message
}

type HandlerFunc func(ctx context.Context, req *protocol.Message) *protocol.Message

func (f HandlerFunc) ServeOSCORE(ctx context.Context, req *protocol.Message) *protocol.Message {
	return f(ctx, req)
}

// EndpointOptions configures an Endpoint. The zero value logs nothing, counts
// into the default Prometheus registerer and does not rate limit.
type EndpointOptions struct {
	Logger     zerolog.Logger
	Registerer prometheus.Registerer

	// RateLimit is the sustained number of requests per second accepted from
	// one remote host; Burst is the bucket size. Zero disables limiting.
	RateLimit float64
	Burst     int

	// Transport tunes the QUIC carrier for both listening and dialing.
	Transport quic.Options
}

// Endpoint sends and serves OSCORE-protected exchanges over QUIC. Contexts are
// taken from the store passed to NewEndpoint; the endpoint never owns them.
type Endpoint struct {
	db        store.Resolver
	log       zerolog.Logger
	limiter   *peerLimiter
	transport quic.Options

	listener *quic.Listener

	mu    sync.Mutex
	conns map[string]*q.Conn
}

func NewEndpoint(db store.Resolver, opts EndpointOptions) *Endpoint {
	observability.RegisterMetrics(opts.Registerer)
	return &Endpoint{
		db:        db,
		log:       opts.Logger,
		limiter:   newPeerLimiter(opts.RateLimit, opts.Burst, 0),
		transport: opts.Transport,
		conns:     map[string]*q.Conn{},
	}
}

func (e *Endpoint) Listen(addr string) error {
	ln, err := quic.Listen(addr, e.transport)
	if err != nil {
		return err
	}
	e.listener = ln
	return nil
}

func (e *Endpoint) ListenAddr() string {
	if e.listener == nil {
		return ""
	}
	return e.listener.Addr().String()
}

// Close stops listening and drops every client connection.
func (e *Endpoint) Close() error {
	e.mu.Lock()
	for addr, conn := range e.conns {
		_ = conn.CloseWithError(0, "")
		delete(e.conns, addr)
	}
	e.mu.Unlock()
	if e.listener == nil {
		return nil
	}
	return e.listener.Close()
}

// Serve accepts connections until ctx is cancelled and answers every request
// with h. Each stream is served on its own goroutine.
func (e *Endpoint) Serve(ctx context.Context, h Handler) error {
	if e.listener == nil {
		return ErrNotListening
	}
	for {
		conn, err := e.listener.Accept(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		go e.serveConn(ctx, conn, h)
	}
}

func (e *Endpoint) serveConn(ctx context.Context, conn *q.Conn, h Handler) {
	peer := conn.RemoteAddr()
	for {
		stream, err := conn.AcceptStream(ctx)
		if err != nil {
			e.log.Debug().Str("peer", peer.String()).Err(err).Msg("connection closed")
			return
		}
		go func() {
			err := quic.Handle(stream, func(req protocol.Frame) protocol.Frame {
				return e.handleFrame(ctx, peer, req, h)
			})
			if err != nil {
				e.log.Debug().Str("peer", peer.String()).Err(err).Msg("stream failed")
			}
		}()
	}
}

func (e *Endpoint) handleFrame(ctx context.Context, peer net.Addr, f protocol.Frame, h Handler) protocol.Frame {
	resp := e.handle(ctx, peer, f.Payload, h)
	b, err := protocol.Marshal(resp)
	if err != nil {
		e.log.Error().Str("op", "marshal").Str("peer", peer.String()).Err(err).Msg("response dropped")
		b, _ = protocol.Marshal(errorResponse(protocol.CodeInternalError, nil, reasonInternal))
	}
	return protocol.Frame{Type: protocol.MessageTypeResponse, Payload: b}
}

func (e *Endpoint) handle(ctx context.Context, peer net.Addr, payload []byte, h Handler) *protocol.Message {
	if !e.limiter.Allow(peer, time.Now()) {
		observability.RecordUnprotect(observability.ResultRateLimited)
		e.log.Warn().Str("op", "unprotect").Str("peer", peer.String()).Str("reason", reasonRateLimited).Msg("request rejected")
		return errorResponse(protocol.CodeServiceUnavailable, nil, reasonRateLimited)
	}

	wire, err := protocol.Unmarshal(payload)
	if err != nil {
		observability.RecordUnprotect(observability.ResultMalformed)
		e.log.Warn().Str("op", "unprotect").Str("peer", peer.String()).Str("reason", reasonBadRequest).Err(err).Msg("request rejected")
		return errorResponse(protocol.CodeBadRequest, nil, reasonBadRequest)
	}

	secCtx, err := secure.Resolve(e.db, wire, peer.String())
	var req *protocol.Message
	if err == nil {
		req, err = secure.UnprotectWith(secCtx, wire)
	}
	if err != nil {
		code, reason, result := classify(err)
		observability.RecordUnprotect(result)
		e.log.Warn().Str("op", "unprotect").Str("peer", peer.String()).Str("reason", reason).Err(err).Msg("request rejected")
		return errorResponse(code, wire.Token, reason)
	}
	observability.RecordUnprotect(observability.ResultOK)

	resp := h.ServeOSCORE(ctx, req)
	if resp == nil {
		resp = &protocol.Message{Code: protocol.CodeInternalError}
	}
	resp.Token = req.Token

	_, out, err := secure.Protect(secCtx, resp)
	if err != nil {
		result := observability.ResultError
		if errors.Is(err, security.ErrSequenceExhausted) {
			result = observability.ResultExhausted
		}
		observability.RecordProtect(result)
		e.log.Error().Str("op", "protect").Str("peer", peer.String()).Str("reason", result).Err(err).Msg("response not protected")
		return errorResponse(protocol.CodeServiceUnavailable, req.Token, reasonExhausted)
	}
	observability.RecordProtect(observability.ResultOK)
	return out
}

// classify maps an unprotect failure to the error response and metric label.
func classify(err error) (protocol.Code, string, string) {
	switch {
	case errors.Is(err, store.ErrContextNotFound):
		return protocol.CodeUnauthorized, reasonContextNotFound, observability.ResultContextNotFound
	case errors.Is(err, secure.ErrReplayDetected):
		return protocol.CodeUnauthorized, reasonReplay, observability.ResultReplay
	case errors.Is(err, secure.ErrAuthenticationFailed):
		return protocol.CodeBadRequest, reasonDecryptFailed, observability.ResultAuthFailed
	case errors.Is(err, envelope.ErrMalformedEnvelope):
		return protocol.CodeBadOption, reasonBadOption, observability.ResultMalformed
	default:
		return protocol.CodeBadRequest, reasonBadRequest, observability.ResultMalformed
	}
}

func errorResponse(code protocol.Code, token []byte, reason string) *protocol.Message {
	return &protocol.Message{Code: code, Token: token, Payload: []byte(reason)}
}

// Do protects req with the context registered under key, sends it to addr and
// returns the verified response. Connections to addr are reused across calls.
func (e *Endpoint) Do(ctx context.Context, addr, key string, req *protocol.Message) (*protocol.Message, error) {
	secCtx, err := e.db.Lookup(key)
	if err != nil {
		return nil, err
	}
	_, wire, err := secure.Protect(secCtx, req)
	if err != nil {
		result := observability.ResultError
		if errors.Is(err, security.ErrSequenceExhausted) {
			result = observability.ResultExhausted
		}
		observability.RecordProtect(result)
		e.log.Error().Str("op", "protect").Str("peer", addr).Str("reason", result).Err(err).Msg("request not protected")
		return nil, err
	}
	observability.RecordProtect(observability.ResultOK)

	payload, err := protocol.Marshal(wire)
	if err != nil {
		return nil, err
	}
	respFrame, err := e.exchange(ctx, addr, protocol.Frame{Type: protocol.MessageTypeRequest, Payload: payload})
	if err != nil {
		return nil, err
	}
	respWire, err := protocol.Unmarshal(respFrame.Payload)
	if err != nil {
		return nil, err
	}

	if _, protected := respWire.Option(protocol.OSCORE); !protected {
		return nil, &ResponseError{Code: respWire.Code, Reason: string(respWire.Payload)}
	}
	resp, err := secure.UnprotectWith(secCtx, respWire)
	if err != nil {
		_, reason, result := classify(err)
		observability.RecordUnprotect(result)
		e.log.Warn().Str("op", "unprotect").Str("peer", addr).Str("reason", reason).Err(err).Msg("response rejected")
		return nil, err
	}
	observability.RecordUnprotect(observability.ResultOK)
	return resp, nil
}

func (e *Endpoint) exchange(ctx context.Context, addr string, f protocol.Frame) (protocol.Frame, error) {
	conn, err := e.dial(ctx, addr)
	if err != nil {
		return protocol.Frame{}, err
	}
	resp, err := quic.Exchange(ctx, conn, f)
	if err != nil {
		e.mu.Lock()
		if e.conns[addr] == conn {
			delete(e.conns, addr)
		}
		e.mu.Unlock()
		_ = conn.CloseWithError(0, "")
		return protocol.Frame{}, err
	}
	return resp, nil
}

func (e *Endpoint) dial(ctx context.Context, addr string) (*q.Conn, error) {
	e.mu.Lock()
	conn, ok := e.conns[addr]
	e.mu.Unlock()
	if ok && conn.Context().Err() == nil {
		return conn, nil
	}

	conn, err := quic.Dial(ctx, addr, e.transport)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if existing, ok := e.conns[addr]; ok && existing.Context().Err() == nil {
		_ = conn.CloseWithError(0, "")
		return existing, nil
	}
	e.conns[addr] = conn
	return conn, nil
}
