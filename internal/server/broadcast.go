package server

import (
	"context"
	"sync"
)

const eventGameSync = "game:sync"

// hub indexes live clients by connection id so room members can be reached.
type hub struct {
	mu      sync.RWMutex
	clients map[string]*client
}

func newHub() *hub {
	return &hub{clients: make(map[string]*client)}
}

func (h *hub) add(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c.id] = c
}

func (h *hub) remove(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, connID)
}

func (h *hub) get(connID string) (*client, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.clients[connID]
	return c, ok
}

func (h *hub) count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// emitToRoom queues one frame for every member of the game's room except
// skipConnID. It never blocks on a slow member and returns how many queues
// accepted the frame.
func (s *Server) emitToRoom(gameID, event string, data any, skipConnID string) int {
	frame, err := encodeFrame(event, nil, data)
	if err != nil {
		s.log.Error().Err(err).Str("event", event).Str("game_id", gameID).Msg("encode frame failed")
		return 0
	}
	delivered := 0
	for _, connID := range s.rooms.Members(roomName(gameID)) {
		if connID == skipConnID {
			continue
		}
		c, ok := s.hub.get(connID)
		if !ok {
			continue
		}
		if c.enqueue(frame) {
			delivered++
			continue
		}
		s.log.Warn().Str("conn_id", connID).Str("event", event).Str("game_id", gameID).Msg("send buffer full, dropping frame")
	}
	return delivered
}

// broadcastSnapshot pushes a freshly built game:sync to every member. Builds
// for one game run under that game's lock, so members receive snapshots in
// the order they were read from the store. A failed build sends nothing.
func (s *Server) broadcastSnapshot(ctx context.Context, gameID string) {
	unlock := s.locks.lock(gameID)
	defer unlock()
	snapshot, err := s.buildSnapshot(ctx, gameID)
	if err != nil {
		s.log.Warn().Err(err).Str("game_id", gameID).Msg("snapshot build failed, skipping broadcast")
		return
	}
	delivered := s.emitToRoom(gameID, eventGameSync, snapshot, "")
	s.log.Debug().Str("game_id", gameID).Int("delivered", delivered).Msg("game sync broadcast")
}
