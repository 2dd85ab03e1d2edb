// Package quic carries framed OSCORE messages over QUIC, one exchange per
// bidirectional stream.
package quic

import (
	"context"
	"errors"
	"net"
	"time"

	q "github.com/quic-go/quic-go"

	"github.com/TheusHen/oscore/oscore/protocol"
)

// DefaultIdleTimeout closes connections that carried no exchange for this long.
const DefaultIdleTimeout = 30 * time.Second

var ErrUnexpectedFrame = errors.New("quic: unexpected frame type")

// Options tunes the QUIC carrier. Zero fields take the defaults.
type Options struct {
	ALPN        string
	IdleTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.ALPN == "" {
		o.ALPN = DefaultALPN
	}
	if o.IdleTimeout <= 0 {
		o.IdleTimeout = DefaultIdleTimeout
	}
	return o
}

func quicConfig(opts Options) *q.Config {
	return &q.Config{
		MaxIdleTimeout:  opts.IdleTimeout,
		KeepAlivePeriod: opts.IdleTimeout / 3,
	}
}

type Listener struct {
	inner *q.Listener
}

func Listen(addr string, opts Options) (*Listener, error) {
	opts = opts.withDefaults()
	tlsConf, err := serverTLSConfig(opts)
	if err != nil {
		return nil, err
	}
	ln, err := q.ListenAddr(addr, tlsConf, quicConfig(opts))
	if err != nil {
		return nil, err
	}
	return &Listener{inner: ln}, nil
}

func (l *Listener) Accept(ctx context.Context) (*q.Conn, error) {
	return l.inner.Accept(ctx)
}

func (l *Listener) Addr() net.Addr { return l.inner.Addr() }

func (l *Listener) Close() error { return l.inner.Close() }

func Dial(ctx context.Context, addr string, opts Options) (*q.Conn, error) {
	opts = opts.withDefaults()
	return q.DialAddr(ctx, addr, clientTLSConfig(opts), quicConfig(opts))
}

// Exchange sends one request frame on a new stream and waits for the response
// frame. The stream deadline follows ctx.
func Exchange(ctx context.Context, conn *q.Conn, req protocol.Frame) (protocol.Frame, error) {
	stream, err := conn.OpenStreamSync(ctx)
	if err != nil {
		return protocol.Frame{}, err
	}
	defer stream.CancelRead(0)
	if dl, ok := ctx.Deadline(); ok {
		_ = stream.SetDeadline(dl)
	}

	if err := protocol.WriteFrame(stream, req); err != nil {
		return protocol.Frame{}, err
	}
	if err := stream.Close(); err != nil {
		return protocol.Frame{}, err
	}
	resp, err := protocol.ReadFrame(stream)
	if err != nil {
		return protocol.Frame{}, err
	}
	if resp.Type != protocol.MessageTypeResponse {
		return protocol.Frame{}, ErrUnexpectedFrame
	}
	return resp, nil
}

// Handle reads a single request frame from stream, passes it to fn and writes
// the response frame fn returns. The stream is closed afterwards.
func Handle(stream *q.Stream, fn func(req protocol.Frame) protocol.Frame) error {
	defer stream.Close()
	req, err := protocol.ReadFrame(stream)
	if err != nil {
		stream.CancelRead(0)
		return err
	}
	if req.Type != protocol.MessageTypeRequest {
		stream.CancelRead(0)
		return ErrUnexpectedFrame
	}
	return protocol.WriteFrame(stream, fn(req))
}
