package db

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Vote struct {
	ID        string    `gorm:"primaryKey;type:uuid"`
	GameID    string    `gorm:"type:uuid;index;not null;uniqueIndex:idx_votes_round_voter_target"`
	Round     int       `gorm:"not null;uniqueIndex:idx_votes_round_voter_target"`
	TargetID  string    `gorm:"type:uuid;not null;uniqueIndex:idx_votes_round_voter_target"`
	VoterID   string    `gorm:"size:64;not null;uniqueIndex:idx_votes_round_voter_target"`
	Stars     int       `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`
}

func (v *Vote) BeforeCreate(tx *gorm.DB) error {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	return nil
}
