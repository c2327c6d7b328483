package store

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory is an in-process Games backend for development and tests.
type Memory struct {
	mu      sync.Mutex
	now     func() time.Time
	games   map[string]*Game
	codes   map[string]string
	players map[string][]*Player
	byID    map[string]*Player
	votes   map[string][]Vote
}

func NewMemory() *Memory {
	return &Memory{
		now:     func() time.Time { return time.Now().UTC() },
		games:   make(map[string]*Game),
		codes:   make(map[string]string),
		players: make(map[string][]*Player),
		byID:    make(map[string]*Player),
		votes:   make(map[string][]Vote),
	}
}

func (m *Memory) CreateGame(ctx context.Context, hostID string) (*Game, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code := newGameCode()
		if _, taken := m.codes[code]; taken {
			continue
		}
		game := &Game{
			ID:     uuid.NewString(),
			Code:   code,
			HostID: hostID,
			Phase:  PhaseLobby,
		}
		m.games[game.ID] = game
		m.codes[code] = game.ID
		return copyGame(game), nil
	}
	return nil, newError(http.StatusConflict, "Unable to generate a unique game code.")
}

func (m *Memory) FetchGame(ctx context.Context, id string) (*Game, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	game, ok := m.games[id]
	if !ok {
		return nil, fmt.Errorf("game %s: %w", id, ErrNotFound)
	}
	return copyGame(game), nil
}

func (m *Memory) UpdateGame(ctx context.Context, id string, update GameUpdate) (*Game, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	game, ok := m.games[id]
	if !ok {
		return nil, fmt.Errorf("game %s: %w", id, ErrNotFound)
	}
	update.apply(game)
	return copyGame(game), nil
}

func (m *Memory) StartGame(ctx context.Context, id string, duration time.Duration) (*Game, error) {
	return m.UpdateGame(ctx, id, StartUpdate(m.now(), duration))
}

func (m *Memory) FetchPlayer(ctx context.Context, gameID, userID string) (*Player, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if player := m.findPlayer(gameID, userID); player != nil {
		return copyPlayer(player), nil
	}
	return nil, fmt.Errorf("player %s in game %s: %w", userID, gameID, ErrNotFound)
}

func (m *Memory) EnsurePlayer(ctx context.Context, gameID, userID, email string) (*Player, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.games[gameID]; !ok {
		return nil, newError(http.StatusConflict, "insert or update on table \"players\" violates foreign key constraint")
	}
	if player := m.findPlayer(gameID, userID); player != nil {
		return copyPlayer(player), nil
	}
	player := &Player{
		ID:        uuid.NewString(),
		GameID:    gameID,
		UserID:    userID,
		UserEmail: email,
		CreatedAt: m.now(),
	}
	m.players[gameID] = append(m.players[gameID], player)
	m.byID[player.ID] = player
	return copyPlayer(player), nil
}

// FetchPlayersFull returns players in insertion order, which is join order.
func (m *Memory) FetchPlayersFull(ctx context.Context, gameID string) ([]Player, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := make([]Player, 0, len(m.players[gameID]))
	for _, player := range m.players[gameID] {
		list = append(list, *copyPlayer(player))
	}
	return list, nil
}

func (m *Memory) InsertVote(ctx context.Context, vote Vote) (*Vote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.votes[vote.GameID] {
		if existing.Round == vote.Round && existing.TargetID == vote.TargetID && existing.VoterID == vote.VoterID {
			return nil, newError(http.StatusConflict, "duplicate key value violates unique constraint \"idx_votes_round_voter_target\"")
		}
	}
	vote.ID = uuid.NewString()
	m.votes[vote.GameID] = append(m.votes[vote.GameID], vote)
	return &vote, nil
}

func (m *Memory) FetchVotes(ctx context.Context, gameID string, round int) ([]Vote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := make([]Vote, 0)
	for _, vote := range m.votes[gameID] {
		if vote.Round == round {
			list = append(list, vote)
		}
	}
	return list, nil
}

func (m *Memory) UpdatePlayerScore(ctx context.Context, playerID string, score int) (*Player, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	player, ok := m.byID[playerID]
	if !ok {
		return nil, fmt.Errorf("player %s: %w", playerID, ErrNotFound)
	}
	player.Score = score
	return copyPlayer(player), nil
}

func (m *Memory) findPlayer(gameID, userID string) *Player {
	for _, player := range m.players[gameID] {
		if player.UserID == userID {
			return player
		}
	}
	return nil
}

func copyGame(game *Game) *Game {
	clone := *game
	if game.CustomizeEndsAt != nil {
		value := *game.CustomizeEndsAt
		clone.CustomizeEndsAt = &value
	}
	if game.CurrentPlayer != nil {
		value := *game.CurrentPlayer
		clone.CurrentPlayer = &value
	}
	return &clone
}

func copyPlayer(player *Player) *Player {
	clone := *player
	return &clone
}
