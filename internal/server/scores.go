package server

import (
	"context"

	"dress-to-impress/internal/store"
)

// tallyStars sums stars per target player id.
func tallyStars(votes []store.Vote) map[string]int {
	totals := make(map[string]int)
	for _, vote := range votes {
		totals[vote.TargetID] += vote.Stars
	}
	return totals
}

// applyScores writes the new totals for every voted-for player that still
// belongs to the game and returns them keyed by player id. Votes for
// unknown players are ignored.
func (s *Server) applyScores(ctx context.Context, votes []store.Vote, players []store.Player) (map[string]int, error) {
	byID := make(map[string]store.Player, len(players))
	for _, player := range players {
		byID[player.ID] = player
	}
	scores := make(map[string]int)
	for targetID, delta := range tallyStars(votes) {
		player, ok := byID[targetID]
		if !ok {
			continue
		}
		next := player.Score + delta
		if _, err := s.games.UpdatePlayerScore(ctx, targetID, next); err != nil {
			return nil, err
		}
		scores[targetID] = next
	}
	return scores, nil
}
