package security

import "fmt"

// Builder produces deliberately misconfigured contexts for fault-injection tests.
// Every context it builds reports Tampered() == true, even without overrides, and
// is a new trust relationship rather than a modification of an existing one.
type Builder struct {
	params       Params
	senderKey    []byte
	recipientKey []byte
	commonIV     []byte
	seq          uint64
}

func NewBuilder(p Params) *Builder {
	return &Builder{params: p}
}

func (b *Builder) WithSenderKey(key []byte) *Builder {
	b.senderKey = append([]byte(nil), key...)
	return b
}

func (b *Builder) WithRecipientKey(key []byte) *Builder {
	b.recipientKey = append([]byte(nil), key...)
	return b
}

func (b *Builder) WithCommonIV(iv []byte) *Builder {
	b.commonIV = append([]byte(nil), iv...)
	return b
}

// WithSenderSequence starts the sender counter at seq instead of zero.
// MaxSequenceNumber+1 yields a context that is exhausted on first use.
func (b *Builder) WithSenderSequence(seq uint64) *Builder {
	b.seq = seq
	return b
}

func (b *Builder) Build() (*Context, error) {
	base, err := Derive(b.params)
	if err != nil {
		return nil, err
	}
	if b.seq > MaxSequenceNumber+1 {
		return nil, fmt.Errorf("%w: sender sequence %d beyond maximum", ErrDerivationFailure, b.seq)
	}

	senderKey, recipientKey, commonIV := base.senderKey, base.recipientKey, base.commonIV
	if b.senderKey != nil {
		senderKey = b.senderKey
	}
	if b.recipientKey != nil {
		recipientKey = b.recipientKey
	}
	if b.commonIV != nil {
		commonIV = b.commonIV
	}
	return newContext(b.params.withDefaults(), senderKey, recipientKey, commonIV, b.seq, true)
}
