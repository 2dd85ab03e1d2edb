package secure

import (
	"fmt"

	"github.com/TheusHen/oscore/oscore/envelope"
	"github.com/TheusHen/oscore/oscore/identity"
	"github.com/TheusHen/oscore/oscore/protocol"
	"github.com/TheusHen/oscore/oscore/security"
	"github.com/TheusHen/oscore/oscore/store"
)

func decodeEnvelope(msg *protocol.Message) (envelope.Envelope, error) {
	if msg == nil {
		return envelope.Envelope{}, ErrInvalidMessage
	}
	value, ok := msg.Option(protocol.OSCORE)
	if !ok {
		return envelope.Envelope{}, fmt.Errorf("%w: no OSCORE option", envelope.ErrMalformedEnvelope)
	}
	env, err := envelope.Decode(value)
	if err != nil {
		return envelope.Envelope{}, err
	}
	if len(env.PartialIV) == 0 {
		return envelope.Envelope{}, fmt.Errorf("%w: missing partial IV", envelope.ErrMalformedEnvelope)
	}
	return env, nil
}

// Resolve finds the security context for msg: by (id_context, kid) when the
// envelope carries a kid and by peer otherwise.
func Resolve(resolver store.Resolver, msg *protocol.Message, peer string) (*security.Context, error) {
	env, err := decodeEnvelope(msg)
	if err != nil {
		return nil, err
	}
	return resolve(resolver, env, peer)
}

func resolve(resolver store.Resolver, env envelope.Envelope, peer string) (*security.Context, error) {
	if env.HasKID() {
		return resolver.LookupKID(identity.ID(env.IDContext), identity.ID(env.KID))
	}
	return resolver.Lookup(peer)
}

// Unprotect resolves the security context for msg and recovers the original
// message.
func Unprotect(resolver store.Resolver, msg *protocol.Message, peer string) (*protocol.Message, error) {
	env, err := decodeEnvelope(msg)
	if err != nil {
		return nil, err
	}
	ctx, err := resolve(resolver, env, peer)
	if err != nil {
		return nil, err
	}
	return unprotect(ctx, env, msg)
}

// UnprotectWith recovers msg with a context the caller already holds, such as
// a client reading the response to its own request.
func UnprotectWith(ctx *security.Context, msg *protocol.Message) (*protocol.Message, error) {
	if ctx == nil {
		return nil, ErrInvalidMessage
	}
	env, err := decodeEnvelope(msg)
	if err != nil {
		return nil, err
	}
	return unprotect(ctx, env, msg)
}

func unprotect(ctx *security.Context, env envelope.Envelope, msg *protocol.Message) (*protocol.Message, error) {
	seq := protocol.DecodeUint(env.PartialIV)
	if seq > security.MaxSequenceNumber {
		return nil, fmt.Errorf("%w: partial IV %d out of range", envelope.ErrMalformedEnvelope, seq)
	}

	kid := ctx.RecipientID()
	if env.HasKID() {
		kid = identity.ID(env.KID)
	}
	if kid == nil {
		kid = identity.ID{}
	}

	encI, err := protocol.EncodeOptions(integrityOptions(msg.Options))
	if err != nil {
		return nil, err
	}
	aad, err := buildAAD(ctx.AEAD(), kid, env.PartialIV, encI, ctx.IDContext())
	if err != nil {
		return nil, fmt.Errorf("secure: aad: %w", err)
	}
	nonce, err := buildNonce(ctx.CommonIV(), kid, env.PartialIV)
	if err != nil {
		return nil, err
	}

	plaintext, err := ctx.Open(nonce, msg.Payload, aad)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAuthenticationFailed, err)
	}
	if err := ctx.Window().Accept(seq); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrReplayDetected, err)
	}

	if len(plaintext) == 0 {
		return nil, fmt.Errorf("%w: empty plaintext", protocol.ErrMalformedOptions)
	}
	inner, payload, err := protocol.DecodeOptions(plaintext[1:])
	if err != nil {
		return nil, err
	}

	out := &protocol.Message{
		Code:    protocol.Code(plaintext[0]),
		Token:   append([]byte(nil), msg.Token...),
		Options: mergeOptions(inner, msg.Options),
		Payload: payload,
	}
	return out, nil
}

// mergeOptions keeps every inner option and the outer ones whose number does
// not appear inside. The OSCORE option is dropped.
func mergeOptions(inner, outer []protocol.Option) []protocol.Option {
	seen := make(map[protocol.OptionNumber]bool, len(inner))
	merged := make([]protocol.Option, 0, len(inner)+len(outer))
	for _, o := range inner {
		seen[o.Number] = true
		merged = append(merged, o)
	}
	for _, o := range outer {
		if o.Number == protocol.OSCORE || seen[o.Number] {
			continue
		}
		merged = append(merged, protocol.Option{Number: o.Number, Value: append([]byte(nil), o.Value...), Class: o.Class})
	}
	protocol.SortOptions(merged)
	return merged
}
