package models

import (
	"time"

	"github.com/stitts-dev/fantasy-rugby/internal/rugby"
)

type Player struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	Name            string    `gorm:"size:255;not null;index" json:"name"`
	Country         string    `gorm:"size:50;not null;index" json:"country"`
	FantasyPosition string    `gorm:"size:50;not null" json:"fantasy_position"`
	Club            *string   `gorm:"size:255" json:"club,omitempty"`
	IsKicker        bool      `gorm:"default:false" json:"is_kicker"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (Player) TableName() string {
	return "players"
}

func (p Player) Position() rugby.Position {
	return rugby.Position(p.FantasyPosition)
}

// IsForward reports whether the player's fantasy slot is in the pack.
func (p Player) IsForward() bool {
	return rugby.IsForward(p.FantasyPosition)
}
