package secure

import (
	"errors"
	"fmt"

	"github.com/TheusHen/oscore/oscore/envelope"
	"github.com/TheusHen/oscore/oscore/identity"
	"github.com/TheusHen/oscore/oscore/protocol"
	"github.com/TheusHen/oscore/oscore/security"
)

var (
	ErrAuthenticationFailed = errors.New("secure: authentication failed")
	ErrReplayDetected       = errors.New("secure: replay detected")
	ErrInvalidMessage       = errors.New("secure: invalid message")
)

var errUnverifiableClass = errors.New("class I requested for an option the receiver treats as class U")

// partition splits options into the encrypted and the outer set. The OSCORE
// option itself is dropped.
func partition(opts []protocol.Option) (inner, outer []protocol.Option, err error) {
	for _, o := range opts {
		if o.Number == protocol.OSCORE {
			continue
		}
		switch o.EffectiveClass() {
		case protocol.ClassE:
			inner = append(inner, o)
		case protocol.ClassI:
			if o.Number.DefaultClass() == protocol.ClassU {
				return nil, nil, fmt.Errorf("%w: option %d: %w", ErrInvalidMessage, o.Number, errUnverifiableClass)
			}
			outer = append(outer, o)
		default:
			outer = append(outer, o)
		}
	}
	return inner, outer, nil
}

// integrityOptions selects the outer options bound into the AAD. The Class
// override does not travel on the wire, so both sides decide by the option
// table: every outer option the table does not mark class U is class I.
func integrityOptions(opts []protocol.Option) []protocol.Option {
	var out []protocol.Option
	for _, o := range opts {
		if o.Number == protocol.OSCORE || o.Number.DefaultClass() == protocol.ClassU {
			continue
		}
		out = append(out, o)
	}
	return out
}

// encodePlaintext builds code || options || 0xFF || payload.
func encodePlaintext(code protocol.Code, opts []protocol.Option, payload []byte) ([]byte, error) {
	encOpts, err := protocol.EncodeOptions(opts)
	if err != nil {
		return nil, err
	}
	pt := make([]byte, 0, 1+len(encOpts)+1+len(payload))
	pt = append(pt, byte(code))
	pt = append(pt, encOpts...)
	if len(payload) > 0 {
		pt = append(pt, protocol.PayloadMarker)
		pt = append(pt, payload...)
	}
	return pt, nil
}

// Protect encrypts msg under ctx and returns the envelope it sent together with
// the outer message to hand to the transport.
//
// Requests carry the sender id as kid, plus the id_context when the context
// has one. Responses carry only the partial IV. A sequence number is consumed
// on every call that gets past allocation, even when protection then fails.
func Protect(ctx *security.Context, msg *protocol.Message) (envelope.Envelope, *protocol.Message, error) {
	if ctx == nil || msg == nil {
		return envelope.Envelope{}, nil, ErrInvalidMessage
	}
	request := msg.Code.IsRequest()
	if !request && !msg.Code.IsResponse() {
		return envelope.Envelope{}, nil, fmt.Errorf("%w: code %s", ErrInvalidMessage, msg.Code)
	}
	inner, outer, err := partition(msg.Options)
	if err != nil {
		return envelope.Envelope{}, nil, err
	}

	seq, err := ctx.NextSequence()
	if err != nil {
		return envelope.Envelope{}, nil, err
	}
	piv := encodePartialIV(seq)
	senderID := ctx.SenderID()
	if senderID == nil {
		senderID = identity.ID{}
	}

	encI, err := protocol.EncodeOptions(integrityOptions(outer))
	if err != nil {
		return envelope.Envelope{}, nil, err
	}
	aad, err := buildAAD(ctx.AEAD(), senderID, piv, encI, ctx.IDContext())
	if err != nil {
		return envelope.Envelope{}, nil, fmt.Errorf("secure: aad: %w", err)
	}
	nonce, err := buildNonce(ctx.CommonIV(), senderID, piv)
	if err != nil {
		return envelope.Envelope{}, nil, err
	}
	plaintext, err := encodePlaintext(msg.Code, inner, msg.Payload)
	if err != nil {
		return envelope.Envelope{}, nil, err
	}
	ciphertext := ctx.Seal(nonce, plaintext, aad)

	env := envelope.Envelope{PartialIV: piv}
	outerCode := protocol.CodeChanged
	if request {
		outerCode = protocol.CodePOST
		env.KID = senderID
		env.IDContext = ctx.IDContext()
	}
	optValue, err := env.Encode()
	if err != nil {
		return envelope.Envelope{}, nil, err
	}

	out := &protocol.Message{
		Code:    outerCode,
		Token:   append([]byte(nil), msg.Token...),
		Options: append([]protocol.Option(nil), outer...),
		Payload: ciphertext,
	}
	out.Options = append(out.Options, protocol.Option{Number: protocol.OSCORE, Value: optValue})
	protocol.SortOptions(out.Options)
	return env, out, nil
}
