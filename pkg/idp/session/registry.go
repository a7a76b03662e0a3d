package session

import (
	"errors"
	"fmt"
	"sync"
)

// ErrDuplicateAssociation means an association id was added twice to
// the same IdP session. This is a caller bug, never downgraded.
var ErrDuplicateAssociation = errors.New("duplicate association")

// Registry tracks every service provider's participation per IdP
// session. It is the one structure mutated by independent, possibly
// concurrent requests (parallel iframe responses), so removal is
// idempotent and commutative: any interleaving of removes converges to
// the same final set.
type Registry struct {
	mu       sync.Mutex
	sessions map[string][]*Association
	onRemove func(a *Association)
}

type RegistryOption func(*Registry)

// WithRemoveHook runs f once per terminated association, the place to
// destroy downstream session material tied to it.
func WithRemoveHook(f func(a *Association)) RegistryOption {
	return func(r *Registry) {
		r.onRemove = f
	}
}

func NewRegistry(opts ...RegistryOption) *Registry {
	registry := &Registry{sessions: map[string][]*Association{}}
	for _, opt := range opts {
		opt(registry)
	}
	return registry
}

func (r *Registry) Add(a *Association) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.sessions[a.IdPSessionID] {
		if existing.ID == a.ID {
			return fmt.Errorf("%w: %s in session %s", ErrDuplicateAssociation, a.ID, a.IdPSessionID)
		}
	}
	copied := *a
	r.sessions[a.IdPSessionID] = append(r.sessions[a.IdPSessionID], &copied)
	return nil
}

// ListAll returns the session's associations in insertion order. The
// order is load bearing: Traditional logout pops from the end, so the
// most recently associated SP is logged out first.
func (r *Registry) ListAll(idpSessionID string) []*Association {
	r.mu.Lock()
	defer r.mu.Unlock()

	associations := make([]*Association, 0, len(r.sessions[idpSessionID]))
	for _, a := range r.sessions[idpSessionID] {
		copied := *a
		associations = append(associations, &copied)
	}
	return associations
}

func (r *Registry) Get(idpSessionID, id string) (*Association, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, a := range r.sessions[idpSessionID] {
		if a.ID == id {
			copied := *a
			return &copied, true
		}
	}
	return nil, false
}

// FindByEntityID returns the association of the given SP within the
// session, used to map a logout response back to its association when
// the response only identifies the issuer.
func (r *Registry) FindByEntityID(idpSessionID, spEntityID string) (*Association, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, a := range r.sessions[idpSessionID] {
		if a.SPEntityID == spEntityID {
			copied := *a
			return &copied, true
		}
	}
	return nil, false
}

// Remove terminates and drops the association. Termination is
// monotonic and removal idempotent: removing an absent id is a no-op,
// logout responses may arrive more than once.
func (r *Registry) Remove(idpSessionID, id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	associations := r.sessions[idpSessionID]
	for i, a := range associations {
		if a.ID != id {
			continue
		}
		r.sessions[idpSessionID] = append(associations[:i], associations[i+1:]...)
		if len(r.sessions[idpSessionID]) == 0 {
			delete(r.sessions, idpSessionID)
		}
		if r.onRemove != nil {
			r.onRemove(a)
		}
		return
	}
}

func (r *Registry) Count(idpSessionID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions[idpSessionID])
}
