package server

import (
	"sync"

	"github.com/hashicorp/go-set/v3"
)

const roomPrefix = "game:"

func roomName(gameID string) string {
	return roomPrefix + gameID
}

// RoomRegistry tracks which connections are joined to which room. Empty
// rooms are dropped immediately.
type RoomRegistry struct {
	mu    sync.RWMutex
	rooms map[string]*set.Set[string]
}

func NewRoomRegistry() *RoomRegistry {
	return &RoomRegistry{rooms: make(map[string]*set.Set[string])}
}

// Join adds connID to the room and reports whether it was newly added.
func (r *RoomRegistry) Join(roomID, connID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	members, ok := r.rooms[roomID]
	if !ok {
		members = set.New[string](4)
		r.rooms[roomID] = members
	}
	return members.Insert(connID)
}

// Leave removes connID and reports whether it was a member.
func (r *RoomRegistry) Leave(roomID, connID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	members, ok := r.rooms[roomID]
	if !ok {
		return false
	}
	removed := members.Remove(connID)
	if members.Empty() {
		delete(r.rooms, roomID)
	}
	return removed
}

// Members returns a point-in-time copy of the room's connection ids.
func (r *RoomRegistry) Members(roomID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	members, ok := r.rooms[roomID]
	if !ok {
		return nil
	}
	return members.Slice()
}

func (r *RoomRegistry) Contains(roomID, connID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	members, ok := r.rooms[roomID]
	return ok && members.Contains(connID)
}

// Count is the number of non-empty rooms.
func (r *RoomRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}
