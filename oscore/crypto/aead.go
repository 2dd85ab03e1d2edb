package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"errors"
	"fmt"

	"github.com/pion/dtls/v3/pkg/crypto/ccm"
	"golang.org/x/crypto/chacha20poly1305"
)

var (
	ErrUnsupportedAlgorithm = errors.New("crypto: unsupported algorithm")
	ErrInvalidKeySize       = errors.New("crypto: invalid key size for algorithm")
)

// AEADAlgorithm is a COSE AEAD algorithm identifier.
type AEADAlgorithm int

const (
	A128GCM          AEADAlgorithm = 1
	A192GCM          AEADAlgorithm = 2
	A256GCM          AEADAlgorithm = 3
	AESCCM16_64_128  AEADAlgorithm = 10
	AESCCM16_64_256  AEADAlgorithm = 11
	ChaCha20Poly1305 AEADAlgorithm = 24
	AESCCM16_128_128 AEADAlgorithm = 30
	AESCCM16_128_256 AEADAlgorithm = 31
)

// DefaultAEAD is the mandatory-to-implement OSCORE algorithm.
const DefaultAEAD = AESCCM16_64_128

type aeadKind uint8

const (
	kindCCM aeadKind = iota + 1
	kindGCM
	kindChaCha
)

type aeadParams struct {
	name      string
	kind      aeadKind
	keySize   int
	nonceSize int
	tagSize   int
}

var aeadRegistry = map[AEADAlgorithm]aeadParams{
	A128GCM:          {name: "A128GCM", kind: kindGCM, keySize: 16, nonceSize: 12, tagSize: 16},
	A192GCM:          {name: "A192GCM", kind: kindGCM, keySize: 24, nonceSize: 12, tagSize: 16},
	A256GCM:          {name: "A256GCM", kind: kindGCM, keySize: 32, nonceSize: 12, tagSize: 16},
	AESCCM16_64_128:  {name: "AES-CCM-16-64-128", kind: kindCCM, keySize: 16, nonceSize: 13, tagSize: 8},
	AESCCM16_64_256:  {name: "AES-CCM-16-64-256", kind: kindCCM, keySize: 32, nonceSize: 13, tagSize: 8},
	ChaCha20Poly1305: {name: "ChaCha20/Poly1305", kind: kindChaCha, keySize: chacha20poly1305.KeySize, nonceSize: chacha20poly1305.NonceSize, tagSize: 16},
	AESCCM16_128_128: {name: "AES-CCM-16-128-128", kind: kindCCM, keySize: 16, nonceSize: 13, tagSize: 16},
	AESCCM16_128_256: {name: "AES-CCM-16-128-256", kind: kindCCM, keySize: 32, nonceSize: 13, tagSize: 16},
}

// Supported reports whether alg is a registered AEAD algorithm.
func (alg AEADAlgorithm) Supported() bool {
	_, ok := aeadRegistry[alg]
	return ok
}

func (alg AEADAlgorithm) String() string {
	if p, ok := aeadRegistry[alg]; ok {
		return p.name
	}
	return fmt.Sprintf("AEAD(%d)", int(alg))
}

// KeySize returns the key length mandated by the algorithm, or 0 if unknown.
func (alg AEADAlgorithm) KeySize() int { return aeadRegistry[alg].keySize }

// NonceSize returns the nonce length mandated by the algorithm, or 0 if unknown.
func (alg AEADAlgorithm) NonceSize() int { return aeadRegistry[alg].nonceSize }

// TagSize returns the authentication tag length, or 0 if unknown.
func (alg AEADAlgorithm) TagSize() int { return aeadRegistry[alg].tagSize }

// NewAEAD builds a cipher.AEAD for alg keyed with key.
// The returned cipher uses the algorithm's nonce and tag sizes exactly.
func NewAEAD(alg AEADAlgorithm, key []byte) (cipher.AEAD, error) {
	p, ok := aeadRegistry[alg]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedAlgorithm, alg)
	}
	if len(key) != p.keySize {
		return nil, fmt.Errorf("%w: %s wants %d bytes, got %d", ErrInvalidKeySize, alg, p.keySize, len(key))
	}

	switch p.kind {
	case kindChaCha:
		return chacha20poly1305.New(key)
	case kindGCM:
		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, err
		}
		return cipher.NewGCM(block)
	case kindCCM:
		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, err
		}
		return ccm.NewCCM(block, p.tagSize, p.nonceSize)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedAlgorithm, alg)
	}
}
