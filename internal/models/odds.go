package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Odds holds a player's try-scorer markets for a round, in decimal format.
type Odds struct {
	ID               uint                `gorm:"primaryKey" json:"id"`
	PlayerID         uint                `gorm:"not null;uniqueIndex:uq_odds_player_season_round" json:"player_id"`
	Season           int                 `gorm:"not null;uniqueIndex:uq_odds_player_season_round" json:"season"`
	Round            int                 `gorm:"not null;uniqueIndex:uq_odds_player_season_round" json:"round"`
	MatchDate        time.Time           `gorm:"not null" json:"match_date"`
	AnytimeTryScorer decimal.NullDecimal `gorm:"type:numeric(6,2)" json:"anytime_try_scorer"`
	FirstTryScorer   decimal.NullDecimal `gorm:"type:numeric(8,2)" json:"first_try_scorer"`
	TwoPlusTries     decimal.NullDecimal `gorm:"type:numeric(8,2)" json:"two_plus_tries"`
	PlayerOfMatch    decimal.NullDecimal `gorm:"type:numeric(8,2)" json:"player_of_match"`
	ScrapedAt        time.Time           `gorm:"index" json:"scraped_at"`
	Source           string              `gorm:"size:50;default:'oddschecker'" json:"source"`

	Player *Player `gorm:"foreignKey:PlayerID" json:"player,omitempty"`
}

func (Odds) TableName() string {
	return "odds"
}

// MatchOdds holds the result, totals and handicap markets for a fixture.
type MatchOdds struct {
	ID               uint                `gorm:"primaryKey" json:"id"`
	Season           int                 `gorm:"not null;uniqueIndex:uq_match_odds_season_round_teams" json:"season"`
	Round            int                 `gorm:"not null;uniqueIndex:uq_match_odds_season_round_teams" json:"round"`
	MatchDate        time.Time           `gorm:"not null" json:"match_date"`
	HomeTeam         string              `gorm:"size:50;not null;uniqueIndex:uq_match_odds_season_round_teams" json:"home_team"`
	AwayTeam         string              `gorm:"size:50;not null;uniqueIndex:uq_match_odds_season_round_teams" json:"away_team"`
	HomeWin          decimal.NullDecimal `gorm:"type:numeric(6,2)" json:"home_win"`
	AwayWin          decimal.NullDecimal `gorm:"type:numeric(6,2)" json:"away_win"`
	Draw             decimal.NullDecimal `gorm:"type:numeric(6,2)" json:"draw"`
	OverUnderLine    decimal.NullDecimal `gorm:"type:numeric(4,1)" json:"over_under_line"`
	OverOdds         decimal.NullDecimal `gorm:"type:numeric(6,2)" json:"over_odds"`
	UnderOdds        decimal.NullDecimal `gorm:"type:numeric(6,2)" json:"under_odds"`
	HandicapLine     decimal.NullDecimal `gorm:"type:numeric(4,1)" json:"handicap_line"`
	HomeHandicapOdds decimal.NullDecimal `gorm:"type:numeric(6,2)" json:"home_handicap_odds"`
	AwayHandicapOdds decimal.NullDecimal `gorm:"type:numeric(6,2)" json:"away_handicap_odds"`
	ScrapedAt        time.Time           `json:"scraped_at"`
}

func (MatchOdds) TableName() string {
	return "match_odds"
}
