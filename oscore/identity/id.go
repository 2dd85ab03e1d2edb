package identity

import (
	"bytes"
	"encoding/hex"
	"errors"
	"strings"
)

// MaxIDLength bounds any identifier carried in the OSCORE option.
// The kid context length is encoded in a single byte.
const MaxIDLength = 255

var ErrIDTooLong = errors.New("identity: identifier too long")

// ID is a sender id, recipient id, kid or id_context.
// The empty ID is a valid identifier; a nil ID means "absent" where a field is optional.
type ID []byte

func ParseHex(s string) (ID, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, err
	}
	if len(b) > MaxIDLength {
		return nil, ErrIDTooLong
	}
	if len(b) == 0 {
		return ID{}, nil
	}
	return ID(b), nil
}

func (id ID) String() string {
	if id == nil {
		return "<none>"
	}
	if len(id) == 0 {
		return "<empty>"
	}
	return hex.EncodeToString(id)
}

func (id ID) Equal(other ID) bool { return bytes.Equal(id, other) }

// Clone returns a copy that preserves the nil/empty distinction.
func (id ID) Clone() ID {
	if id == nil {
		return nil
	}
	return append(ID{}, id...)
}

// Key returns a comparable form usable as a map key.
func (id ID) Key() string { return string(id) }
