package db

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Game struct {
	ID              string     `gorm:"primaryKey;type:uuid"`
	Code            string     `gorm:"size:12;uniqueIndex;not null"`
	HostID          string     `gorm:"size:64;index;not null"`
	Started         bool       `gorm:"not null;default:false"`
	Round           int        `gorm:"not null;default:0"`
	Phase           string     `gorm:"size:32;not null;default:lobby"`
	CustomizeEndsAt *time.Time `gorm:""`
	CurrentPlayer   *string    `gorm:"size:64"`
	CreatedAt       time.Time  `gorm:"not null"`
	UpdatedAt       time.Time  `gorm:"not null"`
	Players         []Player
	Events          []Event
}

func (g *Game) BeforeCreate(tx *gorm.DB) error {
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	return nil
}
