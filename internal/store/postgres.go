package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"dress-to-impress/internal/db"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Postgres is a Games backend that writes directly to the game tables
// through gorm. Every game mutation also appends an events row.
type Postgres struct {
	db  *gorm.DB
	now func() time.Time
}

func NewPostgres(conn *gorm.DB) *Postgres {
	return &Postgres{
		db:  conn,
		now: func() time.Time { return time.Now().UTC() },
	}
}

type eventPayload struct {
	Code            string     `json:"code,omitempty"`
	Phase           *string    `json:"phase,omitempty"`
	Round           *int       `json:"round,omitempty"`
	Started         *bool      `json:"started,omitempty"`
	CurrentPlayer   *string    `json:"current_player,omitempty"`
	CustomizeEndsAt *time.Time `json:"customize_ends_at,omitempty"`
	UserID          string     `json:"user_id,omitempty"`
	PlayerID        string     `json:"player_id,omitempty"`
	Score           *int       `json:"score,omitempty"`
}

func (p *Postgres) CreateGame(ctx context.Context, hostID string) (*Game, error) {
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		record := db.Game{
			Code:   newGameCode(),
			HostID: hostID,
			Phase:  PhaseLobby,
		}
		err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(&record).Error; err != nil {
				return err
			}
			return appendEvent(tx, record.ID, &hostID, "game_created", eventPayload{Code: record.Code})
		})
		if isUniqueViolation(err) {
			continue
		}
		if err != nil {
			return nil, wrapDBError(err)
		}
		return gameFromRecord(record), nil
	}
	return nil, newError(http.StatusConflict, "Unable to generate a unique game code.")
}

func (p *Postgres) FetchGame(ctx context.Context, id string) (*Game, error) {
	var record db.Game
	if err := p.db.WithContext(ctx).Where("id = ?", id).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("game %s: %w", id, ErrNotFound)
		}
		return nil, wrapDBError(err)
	}
	return gameFromRecord(record), nil
}

func (p *Postgres) UpdateGame(ctx context.Context, id string, update GameUpdate) (*Game, error) {
	var record db.Game
	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", id).First(&record).Error; err != nil {
			return err
		}
		if fields := update.Fields(); len(fields) > 0 {
			fields["updated_at"] = p.now()
			if err := tx.Model(&db.Game{}).Where("id = ?", id).Updates(fields).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("id = ?", id).First(&record).Error; err != nil {
			return err
		}
		return appendEvent(tx, id, nil, "game_updated", eventPayload{
			Phase:           update.Phase,
			Round:           update.Round,
			Started:         update.Started,
			CurrentPlayer:   update.CurrentPlayer,
			CustomizeEndsAt: update.CustomizeEndsAt,
		})
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("game %s: %w", id, ErrNotFound)
		}
		return nil, wrapDBError(err)
	}
	return gameFromRecord(record), nil
}

func (p *Postgres) StartGame(ctx context.Context, id string, duration time.Duration) (*Game, error) {
	return p.UpdateGame(ctx, id, StartUpdate(p.now(), duration))
}

func (p *Postgres) FetchPlayer(ctx context.Context, gameID, userID string) (*Player, error) {
	var record db.Player
	err := p.db.WithContext(ctx).
		Where("game_id = ? AND user_id = ?", gameID, userID).
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("player %s in game %s: %w", userID, gameID, ErrNotFound)
		}
		return nil, wrapDBError(err)
	}
	return playerFromRecord(record), nil
}

func (p *Postgres) EnsurePlayer(ctx context.Context, gameID, userID, email string) (*Player, error) {
	existing, err := p.FetchPlayer(ctx, gameID, userID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	record := db.Player{
		GameID:    gameID,
		UserID:    userID,
		UserEmail: email,
	}
	err = p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&record).Error; err != nil {
			return err
		}
		return appendEvent(tx, gameID, &userID, "player_joined", eventPayload{
			UserID:   userID,
			PlayerID: record.ID,
		})
	})
	if isUniqueViolation(err) {
		return p.FetchPlayer(ctx, gameID, userID)
	}
	if isForeignKeyViolation(err) {
		return nil, newError(http.StatusConflict, "game %s does not exist", gameID)
	}
	if err != nil {
		return nil, wrapDBError(err)
	}
	return playerFromRecord(record), nil
}

func (p *Postgres) FetchPlayersFull(ctx context.Context, gameID string) ([]Player, error) {
	var records []db.Player
	err := p.db.WithContext(ctx).
		Where("game_id = ?", gameID).
		Order("created_at asc").
		Find(&records).Error
	if err != nil {
		return nil, wrapDBError(err)
	}
	players := make([]Player, 0, len(records))
	for _, record := range records {
		players = append(players, *playerFromRecord(record))
	}
	return players, nil
}

func (p *Postgres) InsertVote(ctx context.Context, vote Vote) (*Vote, error) {
	record := db.Vote{
		GameID:   vote.GameID,
		Round:    vote.Round,
		TargetID: vote.TargetID,
		VoterID:  vote.VoterID,
		Stars:    vote.Stars,
	}
	if err := p.db.WithContext(ctx).Create(&record).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, newError(http.StatusConflict, "vote already recorded")
		}
		if isForeignKeyViolation(err) {
			return nil, newError(http.StatusConflict, "vote references an unknown game or player")
		}
		return nil, wrapDBError(err)
	}
	vote.ID = record.ID
	return &vote, nil
}

func (p *Postgres) FetchVotes(ctx context.Context, gameID string, round int) ([]Vote, error) {
	var records []db.Vote
	err := p.db.WithContext(ctx).
		Where("game_id = ? AND round = ?", gameID, round).
		Order("created_at asc").
		Find(&records).Error
	if err != nil {
		return nil, wrapDBError(err)
	}
	votes := make([]Vote, 0, len(records))
	for _, record := range records {
		votes = append(votes, Vote{
			ID:       record.ID,
			GameID:   record.GameID,
			Round:    record.Round,
			TargetID: record.TargetID,
			VoterID:  record.VoterID,
			Stars:    record.Stars,
		})
	}
	return votes, nil
}

func (p *Postgres) UpdatePlayerScore(ctx context.Context, playerID string, score int) (*Player, error) {
	var record db.Player
	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", playerID).First(&record).Error; err != nil {
			return err
		}
		updates := map[string]any{"score": score, "updated_at": p.now()}
		if err := tx.Model(&db.Player{}).Where("id = ?", playerID).Updates(updates).Error; err != nil {
			return err
		}
		record.Score = score
		return appendEvent(tx, record.GameID, &record.UserID, "score_updated", eventPayload{
			PlayerID: playerID,
			Score:    &score,
		})
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("player %s: %w", playerID, ErrNotFound)
		}
		return nil, wrapDBError(err)
	}
	return playerFromRecord(record), nil
}

func appendEvent(tx *gorm.DB, gameID string, userID *string, eventType string, payload eventPayload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	event := db.Event{
		GameID:  gameID,
		UserID:  userID,
		Type:    eventType,
		Payload: datatypes.JSON(data),
	}
	return tx.Create(&event).Error
}

func gameFromRecord(record db.Game) *Game {
	game := &Game{
		ID:            record.ID,
		Code:          record.Code,
		HostID:        record.HostID,
		Started:       record.Started,
		Round:         record.Round,
		Phase:         record.Phase,
		CurrentPlayer: record.CurrentPlayer,
	}
	if record.CustomizeEndsAt != nil {
		endsAt := record.CustomizeEndsAt.UTC()
		game.CustomizeEndsAt = &endsAt
	}
	return game
}

func playerFromRecord(record db.Player) *Player {
	return &Player{
		ID:            record.ID,
		GameID:        record.GameID,
		UserID:        record.UserID,
		UserEmail:     record.UserEmail,
		Score:         record.Score,
		Ready:         record.Ready,
		AvatarGLBURL:  record.AvatarGLBURL,
		ScreenshotURL: record.ScreenshotURL,
		CreatedAt:     record.CreatedAt.UTC(),
	}
}

func wrapDBError(err error) error {
	if err == nil {
		return nil
	}
	return newError(http.StatusBadGateway, "database error: %v", err)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23503"
	}
	return false
}
