// Package presence tracks which users hold a live realtime connection and
// which conversation that connection is currently viewing. The registry is
// process-local and never persisted; it is injected into the delivery
// engine rather than living as a socket-library global so tests can
// substitute their own instance.
package presence

import (
	"sync"

	"github.com/google/uuid"
)

type Set map[string]struct{}

type Registry struct {
	mu       sync.RWMutex
	sessions map[string]string       // userID -> connectionID
	owners   map[string]string       // connectionID -> userID
	viewing  map[string]uuid.UUID    // userID -> conversation currently open
	viewers  map[uuid.UUID]Set       // conversationID -> userIDs viewing it
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]string),
		owners:   make(map[string]string),
		viewing:  make(map[string]uuid.UUID),
		viewers:  make(map[uuid.UUID]Set),
	}
}

// SetOnline records the user's active connection. A user has at most one:
// the last writer wins and the previous connection loses its entry.
func (r *Registry) SetOnline(userID, connectionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.sessions[userID]; ok {
		delete(r.owners, old)
	}
	r.sessions[userID] = connectionID
	r.owners[connectionID] = userID
}

// SetOffline removes the entry only while it still belongs to the closing
// connection. A disconnect event arriving after the same user reconnected
// must not evict the newer connection.
func (r *Registry) SetOffline(connectionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	userID, ok := r.owners[connectionID]
	if !ok {
		return
	}
	delete(r.owners, connectionID)

	if r.sessions[userID] == connectionID {
		delete(r.sessions, userID)
		r.stopViewing(userID)
	}
}

// Lookup never blocks; absence means no active connection.
func (r *Registry) Lookup(userID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	connectionID, ok := r.sessions[userID]
	return connectionID, ok
}

// Subscribe marks the user as actively viewing a conversation. A user views
// one conversation at a time; opening another one replaces the previous
// subscription.
func (r *Registry) Subscribe(userID string, chatID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.stopViewing(userID)
	r.viewing[userID] = chatID
	if _, ok := r.viewers[chatID]; !ok {
		r.viewers[chatID] = make(Set)
	}
	r.viewers[chatID][userID] = struct{}{}
}

// Unsubscribe clears the subscription only if the user is still on that
// conversation, mirroring the SetOffline ordering guard.
func (r *Registry) Unsubscribe(userID string, chatID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.viewing[userID] != chatID {
		return
	}
	r.stopViewing(userID)
}

// IsViewing is half of the seen-on-arrival predicate: online AND viewing.
func (r *Registry) IsViewing(userID string, chatID uuid.UUID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.viewing[userID] == chatID
}

// ViewerConnections resolves the conversation's audience in two steps:
// viewer user ids first, then their live connections. A viewer whose
// connection is already gone contributes nothing.
func (r *Registry) ViewerConnections(chatID uuid.UUID) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members, ok := r.viewers[chatID]
	if !ok {
		return nil
	}
	var connections []string
	for userID := range members {
		if connectionID, exists := r.sessions[userID]; exists {
			connections = append(connections, connectionID)
		}
	}
	return connections
}

// stopViewing removes the user's subscription and prunes empty viewer sets
// so the map does not leak over time. Caller holds the write lock.
func (r *Registry) stopViewing(userID string) {
	chatID, ok := r.viewing[userID]
	if !ok {
		return
	}
	delete(r.viewing, userID)
	if members, exists := r.viewers[chatID]; exists {
		delete(members, userID)
		if len(members) == 0 {
			delete(r.viewers, chatID)
		}
	}
}
