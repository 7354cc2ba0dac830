// Package presence tracks which users currently hold a live real-time
// connection on this process.
package presence

import (
	"sort"
	"sync"
)

// Handle is an admitted connection.
type Handle interface {
	ID() string
}

// Registry answers whether a user is reachable and through which handle.
type Registry interface {
	// Register records h as the user's active handle, replacing any previous one.
	Register(userID string, h Handle)
	// Unregister removes the entry only if it still points at h. It reports
	// whether the entry was removed.
	Unregister(userID string, h Handle) bool
	IsOnline(userID string) bool
	Lookup(userID string) (Handle, bool)
	ListOnline() []string
}

// Local is the in-process Registry. Connection goroutines run concurrently, so
// every access goes through mu.
type Local struct {
	mu      sync.RWMutex
	entries map[string]Handle
}

func NewLocal() *Local {
	return &Local{entries: make(map[string]Handle)}
}

var _ Registry = (*Local)(nil)

func (r *Local) Register(userID string, h Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[userID] = h
}

func (r *Local) Unregister(userID string, h Handle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.entries[userID]
	if !ok || cur.ID() != h.ID() {
		return false
	}
	delete(r.entries, userID)
	return true
}

func (r *Local) IsOnline(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[userID]
	return ok
}

func (r *Local) Lookup(userID string) (Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.entries[userID]
	return h, ok
}

// ListOnline returns user ids in lexical order.
func (r *Local) ListOnline() []string {
	r.mu.RLock()
	ids := make([]string, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	sort.Strings(ids)
	return ids
}
