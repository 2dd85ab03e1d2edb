package crypto

import (
	"crypto/sha256"
	"crypto/sha512"
	"fmt"
	"hash"
	"io"

	"golang.org/x/crypto/hkdf"
)

// KDFAlgorithm is a COSE key derivation algorithm identifier.
type KDFAlgorithm int

const (
	HKDFSHA256 KDFAlgorithm = -10
	HKDFSHA512 KDFAlgorithm = -11
)

// DefaultKDF is the OSCORE default key derivation function.
const DefaultKDF = HKDFSHA256

func (kdf KDFAlgorithm) hash() func() hash.Hash {
	switch kdf {
	case HKDFSHA256:
		return sha256.New
	case HKDFSHA512:
		return sha512.New
	default:
		return nil
	}
}

// Supported reports whether kdf is a registered key derivation algorithm.
func (kdf KDFAlgorithm) Supported() bool { return kdf.hash() != nil }

func (kdf KDFAlgorithm) String() string {
	switch kdf {
	case HKDFSHA256:
		return "HKDF SHA-256"
	case HKDFSHA512:
		return "HKDF SHA-512"
	default:
		return fmt.Sprintf("KDF(%d)", int(kdf))
	}
}

// DeriveKey derives length bytes with HKDF extract-then-expand.
// secret is the input keying material, salt may be empty (zero salt),
// info provides context binding.
func DeriveKey(kdf KDFAlgorithm, secret, salt, info []byte, length int) ([]byte, error) {
	h := kdf.hash()
	if h == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedAlgorithm, kdf)
	}
	hk := hkdf.New(h, secret, salt, info)
	key := make([]byte, length)
	if _, err := io.ReadFull(hk, key); err != nil {
		return nil, err
	}
	return key, nil
}
