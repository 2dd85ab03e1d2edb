package security

import (
	"crypto/cipher"
	"encoding/hex"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/TheusHen/oscore/oscore/crypto"
	"github.com/TheusHen/oscore/oscore/identity"
	"github.com/TheusHen/oscore/oscore/replay"
)

// MaxSequenceNumber is the largest sequence number a sender may use.
// Partial IVs are at most 5 bytes, so valid sequence numbers are 0..2^40-1.
const MaxSequenceNumber = 1<<40 - 1

var ErrSequenceExhausted = errors.New("security: sender sequence number exhausted")

// Context is the security context shared with one peer.
// It is safe for concurrent use by multiple protect and unprotect calls.
type Context struct {
	aead         crypto.AEADAlgorithm
	kdf          crypto.KDFAlgorithm
	masterSecret []byte
	masterSalt   []byte
	idContext    identity.ID
	senderID     identity.ID
	recipientID  identity.ID
	senderKey    []byte
	recipientKey []byte
	commonIV     []byte

	sealer cipher.AEAD
	opener cipher.AEAD

	seq       atomic.Uint64
	exhausted atomic.Bool
	window    *replay.Window
	tampered  bool
}

func newContext(p Params, senderKey, recipientKey, commonIV []byte, seq uint64, tampered bool) (*Context, error) {
	sealer, err := crypto.NewAEAD(p.AEAD, senderKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDerivationFailure, err)
	}
	opener, err := crypto.NewAEAD(p.AEAD, recipientKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDerivationFailure, err)
	}
	if len(commonIV) != p.AEAD.NonceSize() {
		return nil, fmt.Errorf("%w: common IV must be %d bytes", ErrDerivationFailure, p.AEAD.NonceSize())
	}
	window, err := replay.NewWindow(p.ReplayWindow)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDerivationFailure, err)
	}

	c := &Context{
		aead:         p.AEAD,
		kdf:          p.KDF,
		masterSecret: append([]byte(nil), p.MasterSecret...),
		masterSalt:   append([]byte(nil), p.MasterSalt...),
		idContext:    p.IDContext.Clone(),
		senderID:     p.SenderID.Clone(),
		recipientID:  p.RecipientID.Clone(),
		senderKey:    senderKey,
		recipientKey: recipientKey,
		commonIV:     commonIV,
		sealer:       sealer,
		opener:       opener,
		window:       window,
		tampered:     tampered,
	}
	c.seq.Store(seq)
	return c, nil
}

func (c *Context) AEAD() crypto.AEADAlgorithm { return c.aead }

func (c *Context) KDF() crypto.KDFAlgorithm { return c.kdf }

// IDContext returns the id_context, or nil if the context has none.
func (c *Context) IDContext() identity.ID { return c.idContext.Clone() }

func (c *Context) SenderID() identity.ID { return c.senderID.Clone() }

func (c *Context) RecipientID() identity.ID { return c.recipientID.Clone() }

func (c *Context) SenderKey() []byte { return append([]byte(nil), c.senderKey...) }

func (c *Context) RecipientKey() []byte { return append([]byte(nil), c.recipientKey...) }

func (c *Context) CommonIV() []byte { return append([]byte(nil), c.commonIV...) }

func (c *Context) KeyLength() int { return len(c.senderKey) }

func (c *Context) NonceSize() int { return c.aead.NonceSize() }

func (c *Context) TagSize() int { return c.aead.TagSize() }

// Window returns the receiver replay window.
func (c *Context) Window() *replay.Window { return c.window }

// Tampered reports whether the context was produced by a Builder with overrides.
func (c *Context) Tampered() bool { return c.tampered }

// SenderSequence returns the next sequence number that NextSequence would hand out.
func (c *Context) SenderSequence() uint64 { return c.seq.Load() }

// Exhausted reports whether the sender sequence space has run out.
// An exhausted context must be discarded.
func (c *Context) Exhausted() bool { return c.exhausted.Load() }

// NextSequence atomically allocates a sender sequence number.
// An allocated number is consumed even if the caller never sends the message.
func (c *Context) NextSequence() (uint64, error) {
	for {
		cur := c.seq.Load()
		if cur > MaxSequenceNumber {
			c.exhausted.Store(true)
			return 0, ErrSequenceExhausted
		}
		if c.seq.CompareAndSwap(cur, cur+1) {
			return cur, nil
		}
	}
}

// Seal encrypts with the sender key.
func (c *Context) Seal(nonce, plaintext, aad []byte) []byte {
	return c.sealer.Seal(nil, nonce, plaintext, aad)
}

// Open decrypts with the recipient key.
func (c *Context) Open(nonce, ciphertext, aad []byte) ([]byte, error) {
	if len(ciphertext) < c.opener.Overhead() {
		return nil, errors.New("security: ciphertext shorter than tag")
	}
	return c.opener.Open(nil, nonce, ciphertext, aad)
}

// Summary is a printable view of a context.
type Summary struct {
	AEAD           string `json:"aead"`
	KDF            string `json:"kdf"`
	IDContext      string `json:"id_context"`
	SenderID       string `json:"sender_id"`
	RecipientID    string `json:"recipient_id"`
	SenderSequence uint64 `json:"sender_sequence"`
	MasterSecret   string `json:"master_secret,omitempty"`
	MasterSalt     string `json:"master_salt,omitempty"`
	SenderKey      string `json:"sender_key,omitempty"`
	RecipientKey   string `json:"recipient_key,omitempty"`
	CommonIV       string `json:"common_iv,omitempty"`
}

// Summary describes the context. Key material is only included when includeSecrets is set.
func (c *Context) Summary(includeSecrets bool) Summary {
	s := Summary{
		AEAD:           c.aead.String(),
		KDF:            c.kdf.String(),
		IDContext:      c.idContext.String(),
		SenderID:       c.senderID.String(),
		RecipientID:    c.recipientID.String(),
		SenderSequence: c.seq.Load(),
	}
	if includeSecrets {
		s.MasterSecret = hex.EncodeToString(c.masterSecret)
		s.MasterSalt = hex.EncodeToString(c.masterSalt)
		s.SenderKey = hex.EncodeToString(c.senderKey)
		s.RecipientKey = hex.EncodeToString(c.recipientKey)
		s.CommonIV = hex.EncodeToString(c.commonIV)
	}
	return s
}
