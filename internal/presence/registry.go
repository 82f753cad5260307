// Package presence tracks which live connection represents which user.
//
// The Registry keeps one connection per user: binding a user that is already
// bound moves the user to the new connection and forgets the old one without
// notifying it. Callers distinguish that case through BindResult.
package presence

import (
	"sync"

	"github.com/Tyrowin/chatrouter/internal/store"
)

// BindOutcome tells whether a Bind created a fresh mapping or displaced one.
type BindOutcome int

const (
	Bound BindOutcome = iota
	Replaced
)

func (o BindOutcome) String() string {
	if o == Replaced {
		return "replaced"
	}
	return "bound"
}

// BindResult describes the effect of a Bind call.
type BindResult struct {
	Outcome BindOutcome
	// PreviousConnection is the connection the user was bound to before,
	// set only when Outcome is Replaced.
	PreviousConnection string
	// PreviousUser is the user connID was bound to before, set only when it
	// differs from the user being bound.
	PreviousUser store.UserID
}

// Registry is the bidirectional connection/user map.
type Registry struct {
	mu          sync.RWMutex
	users       map[string]store.UserID
	connections map[store.UserID]string
}

func NewRegistry() *Registry {
	return &Registry{
		users:       make(map[string]store.UserID),
		connections: make(map[store.UserID]string),
	}
}

// Bind associates connID with userID, overwriting any prior binding for
// either key.
func (r *Registry) Bind(connID string, userID store.UserID) BindResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	result := BindResult{Outcome: Bound}

	if prev, ok := r.connections[userID]; ok && prev != connID {
		delete(r.users, prev)
		result = BindResult{Outcome: Replaced, PreviousConnection: prev}
	}

	if prevUser, ok := r.users[connID]; ok && prevUser != userID {
		if r.connections[prevUser] == connID {
			delete(r.connections, prevUser)
		}
		result.PreviousUser = prevUser
	}

	r.users[connID] = userID
	r.connections[userID] = connID
	return result
}

// UserOf returns the user bound to connID.
func (r *Registry) UserOf(connID string) (store.UserID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	userID, ok := r.users[connID]
	return userID, ok
}

// ConnectionOf returns the last connection bound to userID.
func (r *Registry) ConnectionOf(userID store.UserID) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	connID, ok := r.connections[userID]
	return connID, ok
}

// Unbind removes connID and, if the user still points at connID, the
// reverse direction too. A connection that was displaced by a newer
// registration therefore never evicts its successor.
func (r *Registry) Unbind(connID string) (store.UserID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	userID, ok := r.users[connID]
	if !ok {
		return 0, false
	}
	delete(r.users, connID)
	if r.connections[userID] == connID {
		delete(r.connections, userID)
	}
	return userID, true
}
