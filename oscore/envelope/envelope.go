// Package envelope encodes the compressed COSE header carried in the OSCORE
// option (RFC 8613 section 6.1).
package envelope

import (
	"errors"
	"fmt"
)

// MaxPartialIVLength is the largest partial IV the flag byte can describe
// without using a reserved value.
const MaxPartialIVLength = 5

const (
	flagKID        = 0x08
	flagKIDContext = 0x10
	flagReserved   = 0xe0
	pivMask        = 0x07
)

var ErrMalformedEnvelope = errors.New("envelope: malformed OSCORE option")

// Envelope is the header information sent next to the ciphertext.
// A nil IDContext or KID means the field is absent; an empty non-nil slice is
// present with zero length.
type Envelope struct {
	PartialIV []byte
	IDContext []byte
	KID       []byte
}

// HasKID reports whether the kid flag is set.
func (e Envelope) HasKID() bool { return e.KID != nil }

// HasIDContext reports whether the kid context flag is set.
func (e Envelope) HasIDContext() bool { return e.IDContext != nil }

// Encode returns the OSCORE option value. An envelope without any field
// encodes to the empty value.
func (e Envelope) Encode() ([]byte, error) {
	if len(e.PartialIV) > MaxPartialIVLength {
		return nil, fmt.Errorf("%w: partial IV of %d bytes", ErrMalformedEnvelope, len(e.PartialIV))
	}
	if len(e.IDContext) > 0xff {
		return nil, fmt.Errorf("%w: kid context of %d bytes", ErrMalformedEnvelope, len(e.IDContext))
	}

	flags := byte(len(e.PartialIV))
	if e.HasKID() {
		flags |= flagKID
	}
	if e.HasIDContext() {
		flags |= flagKIDContext
	}
	if flags == 0 {
		return []byte{}, nil
	}

	out := make([]byte, 0, 2+len(e.PartialIV)+len(e.IDContext)+len(e.KID))
	out = append(out, flags)
	out = append(out, e.PartialIV...)
	if e.HasIDContext() {
		out = append(out, byte(len(e.IDContext)))
		out = append(out, e.IDContext...)
	}
	out = append(out, e.KID...)
	return out, nil
}

// Decode parses an OSCORE option value.
func Decode(b []byte) (Envelope, error) {
	if len(b) == 0 {
		return Envelope{}, nil
	}
	flags := b[0]
	if flags&flagReserved != 0 {
		return Envelope{}, fmt.Errorf("%w: reserved flag bits set (0x%02x)", ErrMalformedEnvelope, flags)
	}
	if flags == 0 {
		return Envelope{}, fmt.Errorf("%w: zero flags with non-empty value", ErrMalformedEnvelope)
	}
	n := int(flags & pivMask)
	if n > MaxPartialIVLength {
		return Envelope{}, fmt.Errorf("%w: reserved partial IV length %d", ErrMalformedEnvelope, n)
	}

	rest := b[1:]
	if len(rest) < n {
		return Envelope{}, fmt.Errorf("%w: truncated partial IV", ErrMalformedEnvelope)
	}
	var e Envelope
	if n > 0 {
		e.PartialIV = append([]byte{}, rest[:n]...)
	}
	rest = rest[n:]

	if flags&flagKIDContext != 0 {
		if len(rest) < 1 {
			return Envelope{}, fmt.Errorf("%w: missing kid context length", ErrMalformedEnvelope)
		}
		s := int(rest[0])
		rest = rest[1:]
		if len(rest) < s {
			return Envelope{}, fmt.Errorf("%w: truncated kid context", ErrMalformedEnvelope)
		}
		e.IDContext = append([]byte{}, rest[:s]...)
		rest = rest[s:]
	}

	if flags&flagKID != 0 {
		e.KID = append([]byte{}, rest...)
	} else if len(rest) > 0 {
		return Envelope{}, fmt.Errorf("%w: %d trailing bytes", ErrMalformedEnvelope, len(rest))
	}
	return e, nil
}
