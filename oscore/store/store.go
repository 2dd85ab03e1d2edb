// Package store defines how protect/unprotect find the security context for a message.
package store

import (
	"errors"

	"github.com/TheusHen/oscore/oscore/identity"
	"github.com/TheusHen/oscore/oscore/security"
)

var (
	ErrContextNotFound = errors.New("store: security context not found")
)

// Resolver looks up security contexts.
// Lookup uses the key a context was registered under (a target URI or transport
// peer identity); LookupKID uses the (id_context, kid) pair carried in a request.
type Resolver interface {
	Lookup(key string) (*security.Context, error)
	LookupKID(idContext, kid identity.ID) (*security.Context, error)
}
