package server

import (
	"context"

	"dress-to-impress/internal/store"
)

// Snapshot is the full view of one game pushed as game:sync and returned by
// the sync endpoint.
type Snapshot struct {
	Game    store.Game     `json:"game"`
	Players []store.Player `json:"players"`
}

// buildSnapshot reads the game and its players fresh from the store. Either
// read failing fails the build.
func (s *Server) buildSnapshot(ctx context.Context, gameID string) (*Snapshot, error) {
	game, err := s.games.FetchGame(ctx, gameID)
	if err != nil {
		return nil, err
	}
	players, err := s.games.FetchPlayersFull(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if players == nil {
		players = []store.Player{}
	}
	return &Snapshot{Game: *game, Players: players}, nil
}
