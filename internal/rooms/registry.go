// Package rooms tracks live connections and the rooms each of them has joined.
//
// A room is either a user's personal inbox or a conversation. Rooms are created
// on first join and discarded when their last member leaves. The Registry keeps
// a reverse index from connection to rooms so that unregistering a connection
// removes it from every room it joined.
package rooms

import (
	"sort"
	"sync"
)

const (
	userPrefix = "user:"
	chatPrefix = "chat:"
)

// UserRoom returns the id of the personal inbox room for userID.
func UserRoom(userID string) string {
	return userPrefix + userID
}

// ChatRoom returns the id of the conversation room for chatID.
func ChatRoom(chatID string) string {
	return chatPrefix + chatID
}

// Registry is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]map[string]struct{} // connID -> roomIDs
	rooms map[string]map[string]struct{} // roomID -> connIDs
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		conns: make(map[string]map[string]struct{}),
		rooms: make(map[string]map[string]struct{}),
	}
}

// Register allocates bookkeeping for connID. Registering a known id is a no-op.
func (r *Registry) Register(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.conns[connID]; !ok {
		r.conns[connID] = make(map[string]struct{})
	}
}

// Unregister removes connID from every room it joined and drops it. It
// returns the rooms the connection left. Unknown ids are a no-op.
func (r *Registry) Unregister(connID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	joined, ok := r.conns[connID]
	if !ok {
		return nil
	}
	left := make([]string, 0, len(joined))
	for roomID := range joined {
		r.removeLocked(roomID, connID)
		left = append(left, roomID)
	}
	delete(r.conns, connID)
	sort.Strings(left)
	return left
}

// Join adds connID to roomID. Joining twice has no additional effect. It
// reports false when connID is not registered, so a join racing behind a
// disconnect never resurrects membership.
func (r *Registry) Join(roomID, connID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	joined, ok := r.conns[connID]
	if !ok {
		return false
	}
	members, ok := r.rooms[roomID]
	if !ok {
		members = make(map[string]struct{})
		r.rooms[roomID] = members
	}
	members[connID] = struct{}{}
	joined[roomID] = struct{}{}
	return true
}

// Leave removes connID from roomID. Leaving a room one is not in is a no-op.
func (r *Registry) Leave(roomID, connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if joined, ok := r.conns[connID]; ok {
		delete(joined, roomID)
	}
	r.removeLocked(roomID, connID)
}

func (r *Registry) removeLocked(roomID, connID string) {
	members, ok := r.rooms[roomID]
	if !ok {
		return
	}
	delete(members, connID)
	if len(members) == 0 {
		delete(r.rooms, roomID)
	}
}

// MembersOf returns a sorted snapshot of the connections subscribed to roomID.
func (r *Registry) MembersOf(roomID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members := r.rooms[roomID]
	out := make([]string, 0, len(members))
	for connID := range members {
		out = append(out, connID)
	}
	sort.Strings(out)
	return out
}

// RoomsOf returns a sorted snapshot of the rooms connID has joined.
func (r *Registry) RoomsOf(connID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	joined := r.conns[connID]
	out := make([]string, 0, len(joined))
	for roomID := range joined {
		out = append(out, roomID)
	}
	sort.Strings(out)
	return out
}

// IsRegistered reports whether connID is currently registered.
func (r *Registry) IsRegistered(connID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.conns[connID]
	return ok
}

// ConnectionCount returns the number of registered connections.
func (r *Registry) ConnectionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// RoomCount returns the number of non-empty rooms.
func (r *Registry) RoomCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}
