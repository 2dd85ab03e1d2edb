package secure

import (
	"github.com/fxamacker/cbor/v2"

	"github.com/TheusHen/oscore/oscore/crypto"
)

const oscoreVersion = 1

// encStructure is the COSE Enc_structure for COSE_Encrypt0 with an empty
// protected header.
type encStructure struct {
	_           struct{} `cbor:",toarray"`
	Context     string
	Protected   []byte
	ExternalAAD []byte
}

// buildAAD encodes
//
//	external_aad = [ 1, [ alg_aead ], kid : bstr, piv : bstr, options : bstr (, id_context : bstr) ]
//
// id_context is only appended when the context has one, which keeps contexts
// without it byte compatible with RFC 8613.
func buildAAD(alg crypto.AEADAlgorithm, kid, piv, classI, idContext []byte) ([]byte, error) {
	fields := []any{oscoreVersion, []int{int(alg)}, nonNil(kid), nonNil(piv), nonNil(classI)}
	if idContext != nil {
		fields = append(fields, idContext)
	}
	external, err := cbor.Marshal(fields)
	if err != nil {
		return nil, err
	}
	return cbor.Marshal(encStructure{
		Context:     "Encrypt0",
		Protected:   []byte{},
		ExternalAAD: external,
	})
}

func nonNil(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}
