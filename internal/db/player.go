package db

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Player struct {
	ID            string    `gorm:"primaryKey;type:uuid"`
	GameID        string    `gorm:"type:uuid;index;not null;uniqueIndex:idx_players_game_user"`
	UserID        string    `gorm:"size:64;not null;uniqueIndex:idx_players_game_user"`
	UserEmail     string    `gorm:"size:320;not null;default:''"`
	Score         int       `gorm:"not null;default:0"`
	Ready         bool      `gorm:"not null;default:false"`
	AvatarGLBURL  *string   `gorm:"column:avatar_glb_url"`
	ScreenshotURL *string   `gorm:"column:screenshot_url"`
	CreatedAt     time.Time `gorm:"not null;index"`
	UpdatedAt     time.Time `gorm:"not null"`
}

func (p *Player) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}
