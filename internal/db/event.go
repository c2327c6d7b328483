package db

import (
	"time"

	"gorm.io/datatypes"
)

// Event is an append-only audit row for game mutations.
type Event struct {
	ID        uint           `gorm:"primaryKey"`
	GameID    string         `gorm:"type:uuid;index;not null"`
	UserID    *string        `gorm:"size:64;index"`
	Type      string         `gorm:"size:64;not null"`
	Payload   datatypes.JSON `gorm:"type:jsonb;not null"`
	CreatedAt time.Time      `gorm:"not null"`
}
