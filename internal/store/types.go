package store

import (
	"context"
	"time"
)

const (
	PhaseLobby      = "lobby"
	PhaseCustomize  = "customize"
	PhaseVote       = "vote"
	PhaseScoreboard = "scoreboard"
)

type Game struct {
	ID              string     `json:"id"`
	Code            string     `json:"code"`
	HostID          string     `json:"host_id"`
	Started         bool       `json:"started"`
	Round           int        `json:"round"`
	Phase           string     `json:"phase"`
	CustomizeEndsAt *time.Time `json:"customize_ends_at"`
	CurrentPlayer   *string    `json:"current_player"`
}

type Player struct {
	ID            string    `json:"id"`
	GameID        string    `json:"game_id"`
	UserID        string    `json:"user_id"`
	UserEmail     string    `json:"user_email"`
	Score         int       `json:"score"`
	Ready         bool      `json:"ready"`
	AvatarGLBURL  *string   `json:"avatar_glb_url"`
	ScreenshotURL *string   `json:"screenshot_url"`
	CreatedAt     time.Time `json:"created_at"`
}

type Vote struct {
	ID       string `json:"id,omitempty"`
	GameID   string `json:"game_id"`
	Round    int    `json:"round"`
	TargetID string `json:"target_id"`
	VoterID  string `json:"voter_id"`
	Stars    int    `json:"stars"`
}

// GameUpdate is a partial game write. Nil fields are left untouched;
// ClearCurrentPlayer writes a null current_player.
type GameUpdate struct {
	Phase              *string
	Round              *int
	Started            *bool
	CurrentPlayer      *string
	ClearCurrentPlayer bool
	CustomizeEndsAt    *time.Time
}

// Fields returns the update in column form.
func (u GameUpdate) Fields() map[string]any {
	fields := map[string]any{}
	if u.Phase != nil {
		fields["phase"] = *u.Phase
	}
	if u.Round != nil {
		fields["round"] = *u.Round
	}
	if u.Started != nil {
		fields["started"] = *u.Started
	}
	if u.CurrentPlayer != nil {
		fields["current_player"] = *u.CurrentPlayer
	} else if u.ClearCurrentPlayer {
		fields["current_player"] = nil
	}
	if u.CustomizeEndsAt != nil {
		fields["customize_ends_at"] = u.CustomizeEndsAt.UTC()
	}
	return fields
}

func (u GameUpdate) apply(game *Game) {
	if u.Phase != nil {
		game.Phase = *u.Phase
	}
	if u.Round != nil {
		game.Round = *u.Round
	}
	if u.Started != nil {
		game.Started = *u.Started
	}
	if u.CurrentPlayer != nil {
		value := *u.CurrentPlayer
		game.CurrentPlayer = &value
	} else if u.ClearCurrentPlayer {
		game.CurrentPlayer = nil
	}
	if u.CustomizeEndsAt != nil {
		value := u.CustomizeEndsAt.UTC()
		game.CustomizeEndsAt = &value
	}
}

// StartUpdate is the write applied when a host starts the game.
func StartUpdate(now time.Time, duration time.Duration) GameUpdate {
	started := true
	round := 1
	phase := PhaseCustomize
	endsAt := now.Add(duration).UTC()
	return GameUpdate{
		Phase:           &phase,
		Round:           &round,
		Started:         &started,
		CustomizeEndsAt: &endsAt,
	}
}

type Profile struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	UserMetadata map[string]any `json:"user_metadata"`
}

// DisplayName resolves full_name metadata, then email, then id.
func (p Profile) DisplayName() string {
	if p.UserMetadata != nil {
		if name, ok := p.UserMetadata["full_name"].(string); ok && name != "" {
			return name
		}
	}
	if p.Email != "" {
		return p.Email
	}
	return p.ID
}

// Games is the external game/player/vote persistence collaborator.
type Games interface {
	CreateGame(ctx context.Context, hostID string) (*Game, error)
	FetchGame(ctx context.Context, id string) (*Game, error)
	UpdateGame(ctx context.Context, id string, update GameUpdate) (*Game, error)
	StartGame(ctx context.Context, id string, duration time.Duration) (*Game, error)
	FetchPlayer(ctx context.Context, gameID, userID string) (*Player, error)
	EnsurePlayer(ctx context.Context, gameID, userID, email string) (*Player, error)
	FetchPlayersFull(ctx context.Context, gameID string) ([]Player, error)
	InsertVote(ctx context.Context, vote Vote) (*Vote, error)
	FetchVotes(ctx context.Context, gameID string, round int) ([]Vote, error)
	UpdatePlayerScore(ctx context.Context, playerID string, score int) (*Player, error)
}

// Identity exchanges a bearer credential for a user profile.
type Identity interface {
	FetchUserProfile(ctx context.Context, token string) (*Profile, error)
}
