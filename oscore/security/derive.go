package security

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/TheusHen/oscore/oscore/crypto"
	"github.com/TheusHen/oscore/oscore/identity"
	"github.com/TheusHen/oscore/oscore/replay"
)

var (
	ErrUnsupportedAlgorithm = crypto.ErrUnsupportedAlgorithm
	ErrInvalidKeyLength     = errors.New("security: key length does not match algorithm")
	ErrDerivationFailure    = errors.New("security: context derivation failed")
)

const (
	infoTypeKey = "Key"
	infoTypeIV  = "IV"
)

// Params are the inputs of a context derivation.
// Zero AEAD, KDF, KeyLength and ReplayWindow select the OSCORE defaults.
type Params struct {
	MasterSecret []byte
	MasterSalt   []byte
	IDContext    identity.ID // nil when the context has no id_context
	AEAD         crypto.AEADAlgorithm
	KDF          crypto.KDFAlgorithm
	KeyLength    int
	SenderID     identity.ID
	RecipientID  identity.ID
	ReplayWindow int
}

// kdfInfo is the HKDF info structure:
//
//	info = [ id : bstr, id_context : bstr / nil, alg_aead : int, type : tstr, L : uint ]
type kdfInfo struct {
	_         struct{} `cbor:",toarray"`
	ID        []byte
	IDContext []byte
	AlgAEAD   int
	Type      string
	L         uint
}

func encodeInfo(id, idContext []byte, alg crypto.AEADAlgorithm, typ string, length int) ([]byte, error) {
	if id == nil {
		id = []byte{}
	}
	return cbor.Marshal(kdfInfo{
		ID:        id,
		IDContext: idContext,
		AlgAEAD:   int(alg),
		Type:      typ,
		L:         uint(length),
	})
}

func (p Params) withDefaults() Params {
	if p.AEAD == 0 {
		p.AEAD = crypto.DefaultAEAD
	}
	if p.KDF == 0 {
		p.KDF = crypto.DefaultKDF
	}
	if p.ReplayWindow == 0 {
		p.ReplayWindow = replay.DefaultSize
	}
	if p.SenderID == nil {
		p.SenderID = identity.ID{}
	}
	if p.RecipientID == nil {
		p.RecipientID = identity.ID{}
	}
	return p
}

func (p Params) validate() error {
	if !p.AEAD.Supported() {
		return fmt.Errorf("%w: aead %s", ErrUnsupportedAlgorithm, p.AEAD)
	}
	if !p.KDF.Supported() {
		return fmt.Errorf("%w: kdf %s", ErrUnsupportedAlgorithm, p.KDF)
	}
	if p.KeyLength != 0 && p.KeyLength != p.AEAD.KeySize() {
		return fmt.Errorf("%w: %s needs %d bytes, got %d", ErrInvalidKeyLength, p.AEAD, p.AEAD.KeySize(), p.KeyLength)
	}
	if len(p.MasterSecret) == 0 {
		return fmt.Errorf("%w: empty master secret", ErrDerivationFailure)
	}
	maxID := p.AEAD.NonceSize() - 6
	if len(p.SenderID) > maxID || len(p.RecipientID) > maxID {
		return fmt.Errorf("%w: identifiers are limited to %d bytes for %s", ErrDerivationFailure, maxID, p.AEAD)
	}
	if p.SenderID.Equal(p.RecipientID) {
		return fmt.Errorf("%w: sender and recipient id must differ", ErrDerivationFailure)
	}
	if len(p.IDContext) > identity.MaxIDLength {
		return fmt.Errorf("%w: id_context too long", ErrDerivationFailure)
	}
	return nil
}

func (p Params) expand(id []byte, typ string, length int) ([]byte, error) {
	info, err := encodeInfo(id, p.IDContext, p.AEAD, typ, length)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDerivationFailure, err)
	}
	out, err := crypto.DeriveKey(p.KDF, p.MasterSecret, p.MasterSalt, info, length)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDerivationFailure, err)
	}
	return out, nil
}

// Derive builds a fully keyed context. It is pure: the same Params always
// produce the same keys and common IV.
func Derive(p Params) (*Context, error) {
	p = p.withDefaults()
	if err := p.validate(); err != nil {
		return nil, err
	}

	keyLen := p.AEAD.KeySize()
	senderKey, err := p.expand(p.SenderID, infoTypeKey, keyLen)
	if err != nil {
		return nil, err
	}
	recipientKey, err := p.expand(p.RecipientID, infoTypeKey, keyLen)
	if err != nil {
		return nil, err
	}
	commonIV, err := p.expand(nil, infoTypeIV, p.AEAD.NonceSize())
	if err != nil {
		return nil, err
	}

	return newContext(p, senderKey, recipientKey, commonIV, 0, false)
}
