package secure

import (
	"fmt"

	"github.com/TheusHen/oscore/oscore/envelope"
	"github.com/TheusHen/oscore/oscore/protocol"
)

// encodePartialIV returns the minimal big-endian encoding of seq.
// Zero is sent as a single zero byte.
func encodePartialIV(seq uint64) []byte {
	b := protocol.EncodeUint(seq)
	if len(b) == 0 {
		return []byte{0}
	}
	return b
}

// buildNonce computes
//
//	nonce = (len(id) || pad(id, n-6) || pad(piv, 5)) XOR commonIV
func buildNonce(commonIV, id, piv []byte) ([]byte, error) {
	n := len(commonIV)
	if len(id) > n-6 {
		return nil, fmt.Errorf("%w: identifier of %d bytes does not fit a %d byte nonce", envelope.ErrMalformedEnvelope, len(id), n)
	}
	if len(piv) > envelope.MaxPartialIVLength {
		return nil, fmt.Errorf("%w: partial IV of %d bytes", envelope.ErrMalformedEnvelope, len(piv))
	}
	nonce := make([]byte, n)
	nonce[0] = byte(len(id))
	copy(nonce[n-5-len(id):n-5], id)
	copy(nonce[n-len(piv):], piv)
	for i := range nonce {
		nonce[i] ^= commonIV[i]
	}
	return nonce, nil
}
