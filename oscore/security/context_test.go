package security

import (
	"bytes"
	"encoding/hex"
	"errors"
	"sync"
	"testing"

	"github.com/TheusHen/oscore/oscore/crypto"
	"github.com/TheusHen/oscore/oscore/identity"
)

var (
	testMasterSecret = []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08, 0x09, 0x0a, 0x0b, 0x0c, 0x0d, 0x0e, 0x0f, 0x10}
	testMasterSalt   = []byte{0x9e, 0x7c, 0xa9, 0x22, 0x23, 0x78, 0x63, 0x40}
)

func clientParams() Params {
	return Params{
		MasterSecret: testMasterSecret,
		MasterSalt:   testMasterSalt,
		SenderID:     identity.ID{},
		RecipientID:  identity.ID{0x01},
	}
}

func serverParams() Params {
	p := clientParams()
	p.SenderID, p.RecipientID = p.RecipientID, p.SenderID
	return p
}

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	if err != nil {
		t.Fatalf("hex: %v", err)
	}
	return b
}

// Test vector from RFC 8613 appendix C.1.
func TestDeriveRFC8613Vector(t *testing.T) {
	ctx, err := Derive(clientParams())
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}
	if got, want := ctx.SenderKey(), mustHex(t, "f0910ed7295e6ad4b54fc793154302ff"); !bytes.Equal(got, want) {
		t.Fatalf("sender key %x, want %x", got, want)
	}
	if got, want := ctx.RecipientKey(), mustHex(t, "ffb14e093c94c9cac9471648b4f98710"); !bytes.Equal(got, want) {
		t.Fatalf("recipient key %x, want %x", got, want)
	}
	if got, want := ctx.CommonIV(), mustHex(t, "4622d4dd6d944168eefb54987c"); !bytes.Equal(got, want) {
		t.Fatalf("common IV %x, want %x", got, want)
	}
	if ctx.AEAD() != crypto.AESCCM16_64_128 || ctx.KDF() != crypto.HKDFSHA256 {
		t.Fatalf("unexpected default algorithms")
	}
	if ctx.KeyLength() != 16 || ctx.NonceSize() != 13 || ctx.TagSize() != 8 {
		t.Fatalf("unexpected sizes")
	}
}

func TestDeriveDeterministic(t *testing.T) {
	p := clientParams()
	p.IDContext = identity.ID{0x37, 0xcb, 0xf3, 0x21, 0x00, 0x17, 0xa2, 0xd3}
	for _, alg := range []crypto.AEADAlgorithm{crypto.AESCCM16_64_128, crypto.A256GCM, crypto.ChaCha20Poly1305} {
		p.AEAD = alg
		a, err := Derive(p)
		if err != nil {
			t.Fatalf("Derive(%s): %v", alg, err)
		}
		b, err := Derive(p)
		if err != nil {
			t.Fatalf("Derive(%s): %v", alg, err)
		}
		if !bytes.Equal(a.SenderKey(), b.SenderKey()) ||
			!bytes.Equal(a.RecipientKey(), b.RecipientKey()) ||
			!bytes.Equal(a.CommonIV(), b.CommonIV()) {
			t.Fatalf("%s: derivation is not deterministic", alg)
		}
	}
}

func TestDeriveIDContextChangesKeys(t *testing.T) {
	plain, _ := Derive(clientParams())
	p := clientParams()
	p.IDContext = identity.ID{0x37, 0xcb}
	withCtx, err := Derive(p)
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}
	if bytes.Equal(plain.SenderKey(), withCtx.SenderKey()) {
		t.Fatalf("id_context must influence the sender key")
	}
	if bytes.Equal(plain.CommonIV(), withCtx.CommonIV()) {
		t.Fatalf("id_context must influence the common IV")
	}
}

func TestSwappedRolesShareKeys(t *testing.T) {
	client, err := Derive(clientParams())
	if err != nil {
		t.Fatalf("Derive client: %v", err)
	}
	server, err := Derive(serverParams())
	if err != nil {
		t.Fatalf("Derive server: %v", err)
	}
	if !bytes.Equal(client.SenderKey(), server.RecipientKey()) {
		t.Fatalf("client sender key != server recipient key")
	}
	if !bytes.Equal(client.RecipientKey(), server.SenderKey()) {
		t.Fatalf("client recipient key != server sender key")
	}
	if !bytes.Equal(client.CommonIV(), server.CommonIV()) {
		t.Fatalf("common IV mismatch")
	}
}

func TestDeriveErrors(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Params)
		want   error
	}{
		{"unknown aead", func(p *Params) { p.AEAD = 99 }, ErrUnsupportedAlgorithm},
		{"unknown kdf", func(p *Params) { p.KDF = -99 }, ErrUnsupportedAlgorithm},
		{"key length", func(p *Params) { p.KeyLength = 32 }, ErrInvalidKeyLength},
		{"empty secret", func(p *Params) { p.MasterSecret = nil }, ErrDerivationFailure},
		{"long sender id", func(p *Params) { p.SenderID = make(identity.ID, 8) }, ErrDerivationFailure},
		{"same ids", func(p *Params) { p.RecipientID = identity.ID{} }, ErrDerivationFailure},
		{"window too wide", func(p *Params) { p.ReplayWindow = 65 }, ErrDerivationFailure},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := clientParams()
			tc.mutate(&p)
			if _, err := Derive(p); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestExplicitKeyLengthAccepted(t *testing.T) {
	p := clientParams()
	p.KeyLength = 16
	if _, err := Derive(p); err != nil {
		t.Fatalf("Derive: %v", err)
	}
}

func TestNextSequenceMonotonic(t *testing.T) {
	ctx, _ := Derive(clientParams())
	for want := uint64(0); want < 10; want++ {
		got, err := ctx.NextSequence()
		if err != nil {
			t.Fatalf("NextSequence: %v", err)
		}
		if got != want {
			t.Fatalf("sequence %d, want %d", got, want)
		}
	}
	if ctx.SenderSequence() != 10 {
		t.Fatalf("SenderSequence = %d", ctx.SenderSequence())
	}
}

func TestNextSequenceConcurrentUnique(t *testing.T) {
	ctx, _ := Derive(clientParams())

	const n = 1000
	var wg sync.WaitGroup
	results := make(chan uint64, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			seq, err := ctx.NextSequence()
			if err != nil {
				t.Errorf("NextSequence: %v", err)
				return
			}
			results <- seq
		}()
	}
	wg.Wait()
	close(results)

	seen := make(map[uint64]bool, n)
	for seq := range results {
		if seen[seq] {
			t.Fatalf("sequence %d allocated twice", seq)
		}
		seen[seq] = true
	}
	for i := uint64(0); i < n; i++ {
		if !seen[i] {
			t.Fatalf("sequence %d missing", i)
		}
	}
}

func TestSequenceExhaustionIsTerminal(t *testing.T) {
	ctx, err := NewBuilder(clientParams()).WithSenderSequence(MaxSequenceNumber).Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	seq, err := ctx.NextSequence()
	if err != nil || seq != MaxSequenceNumber {
		t.Fatalf("last sequence: %d %v", seq, err)
	}
	for i := 0; i < 3; i++ {
		if _, err := ctx.NextSequence(); !errors.Is(err, ErrSequenceExhausted) {
			t.Fatalf("expected ErrSequenceExhausted, got %v", err)
		}
	}
	if !ctx.Exhausted() {
		t.Fatalf("context should report exhaustion")
	}
	if ctx.SenderSequence() != MaxSequenceNumber+1 {
		t.Fatalf("counter wrapped: %d", ctx.SenderSequence())
	}

	spent, err := NewBuilder(clientParams()).WithSenderSequence(MaxSequenceNumber + 1).Build()
	if err != nil {
		t.Fatalf("Build spent: %v", err)
	}
	if _, err := spent.NextSequence(); !errors.Is(err, ErrSequenceExhausted) {
		t.Fatalf("counter past the maximum: expected ErrSequenceExhausted, got %v", err)
	}
}

func TestBuilderOverridesAreFlagged(t *testing.T) {
	bad := bytes.Repeat([]byte{0xaa}, 16)
	ctx, err := NewBuilder(clientParams()).WithSenderKey(bad).Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !ctx.Tampered() {
		t.Fatalf("builder context must be flagged")
	}
	if !bytes.Equal(ctx.SenderKey(), bad) {
		t.Fatalf("sender key override not applied")
	}

	derived, _ := Derive(clientParams())
	if derived.Tampered() {
		t.Fatalf("derived context must not be flagged")
	}
	if !bytes.Equal(ctx.RecipientKey(), derived.RecipientKey()) {
		t.Fatalf("recipient key should be untouched")
	}

	if _, err := NewBuilder(clientParams()).WithSenderKey([]byte{0x01}).Build(); !errors.Is(err, ErrDerivationFailure) {
		t.Fatalf("expected ErrDerivationFailure for short key, got %v", err)
	}
	if _, err := NewBuilder(clientParams()).WithSenderSequence(MaxSequenceNumber + 2).Build(); !errors.Is(err, ErrDerivationFailure) {
		t.Fatalf("expected ErrDerivationFailure for out of range sequence, got %v", err)
	}
}

func TestAccessorsReturnCopies(t *testing.T) {
	ctx, _ := Derive(clientParams())
	k := ctx.SenderKey()
	k[0] ^= 0xff
	if bytes.Equal(k, ctx.SenderKey()) {
		t.Fatalf("SenderKey exposes internal state")
	}
	id := ctx.RecipientID()
	id[0] = 0x7f
	if ctx.RecipientID()[0] != 0x01 {
		t.Fatalf("RecipientID exposes internal state")
	}
}

func TestSummaryHidesSecrets(t *testing.T) {
	ctx, _ := Derive(clientParams())
	s := ctx.Summary(false)
	if s.SenderKey != "" || s.MasterSecret != "" {
		t.Fatalf("summary leaked key material")
	}
	if s.RecipientID != "01" || s.SenderID != "<empty>" || s.IDContext != "<none>" {
		t.Fatalf("unexpected summary ids: %+v", s)
	}
	full := ctx.Summary(true)
	if full.SenderKey != "f0910ed7295e6ad4b54fc793154302ff" {
		t.Fatalf("unexpected sender key in summary: %s", full.SenderKey)
	}
}

func BenchmarkDerive(b *testing.B) {
	p := clientParams()
	for i := 0; i < b.N; i++ {
		_, _ = Derive(p)
	}
}
