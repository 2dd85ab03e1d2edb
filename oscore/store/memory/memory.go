package memory

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/TheusHen/oscore/oscore/identity"
	"github.com/TheusHen/oscore/oscore/security"
	"github.com/TheusHen/oscore/oscore/store"
)

var (
	// ErrAmbiguousRecipient is wrapped by LookupKID when several keys hold a
	// context for the same (id_context, kid).
	ErrAmbiguousRecipient = errors.New("memory: recipient id registered under several keys")
	ErrNilContext         = errors.New("memory: nil security context")
)

type recipientKey struct {
	idContext string
	hasCtx    bool
	kid       string
}

func recipientKeyOf(idContext, kid identity.ID) recipientKey {
	return recipientKey{idContext: idContext.Key(), hasCtx: idContext != nil, kid: kid.Key()}
}

// Store is an in-memory context registry.
// Each application or session owns its Store; there is no process-wide instance.
type Store struct {
	mu          sync.RWMutex
	byKey       map[string]*security.Context
	byRecipient map[recipientKey]map[string]struct{}
}

func New() *Store {
	return &Store{
		byKey:       map[string]*security.Context{},
		byRecipient: map[recipientKey]map[string]struct{}{},
	}
}

// Add registers ctx under key, replacing any context previously stored there.
func (s *Store) Add(key string, ctx *security.Context) error {
	if ctx == nil {
		return ErrNilContext
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.byKey[key]; ok {
		s.unindex(key, old)
	}
	s.byKey[key] = ctx
	rk := recipientKeyOf(ctx.IDContext(), ctx.RecipientID())
	keys := s.byRecipient[rk]
	if keys == nil {
		keys = map[string]struct{}{}
		s.byRecipient[rk] = keys
	}
	keys[key] = struct{}{}
	return nil
}

func (s *Store) unindex(key string, ctx *security.Context) {
	rk := recipientKeyOf(ctx.IDContext(), ctx.RecipientID())
	delete(s.byRecipient[rk], key)
	if len(s.byRecipient[rk]) == 0 {
		delete(s.byRecipient, rk)
	}
}

func (s *Store) Lookup(key string) (*security.Context, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ctx, ok := s.byKey[key]
	if !ok {
		return nil, fmt.Errorf("%w: key %q", store.ErrContextNotFound, key)
	}
	return ctx, nil
}

// LookupKID finds the context by the identifiers a request carries. It fails
// when no context or more than one context matches.
func (s *Store) LookupKID(idContext, kid identity.ID) (*security.Context, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := s.byRecipient[recipientKeyOf(idContext, kid)]
	switch len(keys) {
	case 0:
		return nil, fmt.Errorf("%w: id_context %s kid %s", store.ErrContextNotFound, idContext, kid)
	case 1:
		for key := range keys {
			return s.byKey[key], nil
		}
	}
	return nil, fmt.Errorf("%w: %w: id_context %s kid %s", store.ErrContextNotFound, ErrAmbiguousRecipient, idContext, kid)
}

// Remove drops the context registered under key. Removing a missing key is a no-op.
func (s *Store) Remove(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ctx, ok := s.byKey[key]
	if !ok {
		return
	}
	s.unindex(key, ctx)
	delete(s.byKey, key)
}

// Keys lists the registered lookup keys in sorted order.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.byKey))
	for k := range s.byKey {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byKey)
}

var _ store.Resolver = (*Store)(nil)
