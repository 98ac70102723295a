package realtime

import (
	"sort"
	"sync"
)

// Handle is an open transport endpoint the registry can address.
// Implementations must be safe for concurrent Send calls and must never block.
type Handle interface {
	ID() string
	Send(Event) error
}

// Registry maps user ids to the one handle currently serving them.
// Registration is last-writer-wins per user; a handle may carry several users
// (a re-authenticated connection keeps its earlier entry by default).
// The zero value is not usable; call NewRegistry.
type Registry struct {
	mu       sync.RWMutex
	byUser   map[string]Handle
	byHandle map[string]map[string]struct{}
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byUser:   make(map[string]Handle),
		byHandle: make(map[string]map[string]struct{}),
	}
}

// Register binds userID to h, replacing any previous binding for userID.
// Registering the same pair twice is a no-op. Empty ids and nil handles are
// ignored.
func (r *Registry) Register(userID string, h Handle) {
	if userID == "" || h == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.byUser[userID]; ok {
		if old.ID() == h.ID() {
			r.byUser[userID] = h
			return
		}
		r.dropReverse(old.ID(), userID)
	}
	r.byUser[userID] = h
	users := r.byHandle[h.ID()]
	if users == nil {
		users = make(map[string]struct{})
		r.byHandle[h.ID()] = users
	}
	users[userID] = struct{}{}
	registeredUsers.Set(float64(len(r.byUser)))
}

// Lookup returns the handle serving userID, if any.
func (r *Registry) Lookup(userID string) (Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.byUser[userID]
	return h, ok
}

// Unregister removes every entry served by h, whatever user it was
// registered under, and returns how many entries were removed. Entries that
// were already taken over by another handle are left alone.
func (r *Registry) Unregister(h Handle) int {
	if h == nil {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	users := r.byHandle[h.ID()]
	removed := 0
	for uid := range users {
		if cur, ok := r.byUser[uid]; ok && cur.ID() == h.ID() {
			delete(r.byUser, uid)
			removed++
		}
	}
	delete(r.byHandle, h.ID())
	registeredUsers.Set(float64(len(r.byUser)))
	return removed
}

// Release removes the entry for userID only while h still serves it.
func (r *Registry) Release(userID string, h Handle) bool {
	if h == nil {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.byUser[userID]
	if !ok || cur.ID() != h.ID() {
		return false
	}
	delete(r.byUser, userID)
	r.dropReverse(h.ID(), userID)
	registeredUsers.Set(float64(len(r.byUser)))
	return true
}

// UsersOf returns the user ids h currently serves, sorted.
func (r *Registry) UsersOf(h Handle) []string {
	if h == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.byHandle[h.ID()]))
	for uid := range r.byHandle[h.ID()] {
		out = append(out, uid)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of registered users.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser)
}

// caller holds mu.
func (r *Registry) dropReverse(handleID, userID string) {
	if users, ok := r.byHandle[handleID]; ok {
		delete(users, userID)
		if len(users) == 0 {
			delete(r.byHandle, handleID)
		}
	}
}
