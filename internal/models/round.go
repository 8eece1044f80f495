package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// FantasyPrice is a player's cost for one round.
type FantasyPrice struct {
	ID           uint                `gorm:"primaryKey" json:"id"`
	PlayerID     uint                `gorm:"not null;uniqueIndex:uq_price_player_season_round" json:"player_id"`
	Season       int                 `gorm:"not null;uniqueIndex:uq_price_player_season_round" json:"season"`
	Round        int                 `gorm:"not null;uniqueIndex:uq_price_player_season_round" json:"round"`
	Price        decimal.Decimal     `gorm:"type:numeric(5,1);not null" json:"price"`
	OwnershipPct decimal.NullDecimal `gorm:"type:numeric(5,2)" json:"ownership_pct"`
	Availability *string             `gorm:"size:20" json:"availability,omitempty"`
	CreatedAt    time.Time           `json:"created_at"`

	Player *Player `gorm:"foreignKey:PlayerID" json:"player,omitempty"`
}

func (FantasyPrice) TableName() string {
	return "fantasy_prices"
}

// TeamSelection records a player named in a matchday squad. A row existing
// is what makes a player available for the round.
type TeamSelection struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	PlayerID       uint      `gorm:"not null;uniqueIndex:uq_selection_player_season_round" json:"player_id"`
	Season         int       `gorm:"not null;uniqueIndex:uq_selection_player_season_round" json:"season"`
	Round          int       `gorm:"not null;uniqueIndex:uq_selection_player_season_round" json:"round"`
	SquadPosition  *int      `json:"squad_position,omitempty"`
	IsStarting     *bool     `json:"is_starting,omitempty"`
	ActualPosition *string   `gorm:"size:50" json:"actual_position,omitempty"`
	CreatedAt      time.Time `json:"created_at"`

	Player *Player `gorm:"foreignKey:PlayerID" json:"player,omitempty"`
}

func (TeamSelection) TableName() string {
	return "team_selections"
}

// Prediction is the stored point estimate for a player and round.
type Prediction struct {
	ID              uint                `gorm:"primaryKey" json:"id"`
	PlayerID        uint                `gorm:"not null;uniqueIndex:uq_prediction_player_season_round" json:"player_id"`
	Season          int                 `gorm:"not null;uniqueIndex:uq_prediction_player_season_round" json:"season"`
	Round           int                 `gorm:"not null;uniqueIndex:uq_prediction_player_season_round" json:"round"`
	PredictedPoints decimal.Decimal     `gorm:"type:numeric(6,2);not null" json:"predicted_points"`
	ConfidenceLower decimal.NullDecimal `gorm:"type:numeric(6,2)" json:"confidence_lower"`
	ConfidenceUpper decimal.NullDecimal `gorm:"type:numeric(6,2)" json:"confidence_upper"`
	ModelVersion    string              `gorm:"size:50" json:"model_version"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`

	Player *Player `gorm:"foreignKey:PlayerID" json:"player,omitempty"`
}

func (Prediction) TableName() string {
	return "predictions"
}

// Float converts a stored decimal for arithmetic.
func Float(d decimal.Decimal) float64 {
	return d.InexactFloat64()
}

// NullFloat returns nil for a null decimal.
func NullFloat(d decimal.NullDecimal) *float64 {
	if !d.Valid {
		return nil
	}
	f := d.Decimal.InexactFloat64()
	return &f
}

// Decimal rounds v to places and wraps it for storage.
func Decimal(v float64, places int32) decimal.Decimal {
	return decimal.NewFromFloat(v).Round(places)
}

func NullDecimal(v *float64, places int32) decimal.NullDecimal {
	if v == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(Decimal(*v, places))
}
