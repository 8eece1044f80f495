package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/stitts-dev/fantasy-rugby/internal/scoring"
)

// MatchStats is one player's line for one championship match.
type MatchStats struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	PlayerID       uint      `gorm:"not null;uniqueIndex:uq_stats_player_season_round;index" json:"player_id"`
	Season         int       `gorm:"not null;uniqueIndex:uq_stats_player_season_round" json:"season"`
	Round          int       `gorm:"not null;uniqueIndex:uq_stats_player_season_round" json:"round"`
	MatchDate      time.Time `gorm:"not null;index" json:"match_date"`
	Opponent       string    `gorm:"size:50;not null" json:"opponent"`
	HomeAway       string    `gorm:"size:4;not null" json:"home_away"` // "home" or "away"
	Started        bool      `gorm:"not null" json:"started"`
	MinutesPlayed  *int      `json:"minutes_played,omitempty"`
	ActualPosition *string   `gorm:"size:50" json:"actual_position,omitempty"`

	Tries           int `gorm:"default:0" json:"tries"`
	TryAssists      int `gorm:"default:0" json:"try_assists"`
	Conversions     int `gorm:"default:0" json:"conversions"`
	PenaltiesKicked int `gorm:"default:0" json:"penalties_kicked"`
	DropGoals       int `gorm:"default:0" json:"drop_goals"`
	DefendersBeaten int `gorm:"default:0" json:"defenders_beaten"`
	MetresCarried   int `gorm:"default:0" json:"metres_carried"`
	CleanBreaks     int `gorm:"default:0" json:"clean_breaks"`
	Offloads        int `gorm:"default:0" json:"offloads"`
	Fifty22Kicks    int `gorm:"column:fifty_22_kicks;default:0" json:"fifty_22_kicks"`

	TacklesMade   int `gorm:"default:0" json:"tackles_made"`
	TacklesMissed int `gorm:"default:0" json:"tackles_missed"`
	TurnoversWon  int `gorm:"default:0" json:"turnovers_won"`
	LineoutSteals int `gorm:"default:0" json:"lineout_steals"`
	ScrumsWon     int `gorm:"default:0" json:"scrums_won"`

	PenaltiesConceded int  `gorm:"default:0" json:"penalties_conceded"`
	YellowCards       int  `gorm:"default:0" json:"yellow_cards"`
	RedCards          int  `gorm:"default:0" json:"red_cards"`
	PlayerOfMatch     bool `gorm:"default:false" json:"player_of_match"`

	FantasyPoints decimal.NullDecimal `gorm:"type:numeric(6,2)" json:"fantasy_points"`
	CreatedAt     time.Time           `json:"created_at"`

	Player *Player `gorm:"foreignKey:PlayerID" json:"player,omitempty"`
}

func (MatchStats) TableName() string {
	return "match_stats"
}

// ScoringStats projects the row onto the scoring input.
func (m MatchStats) ScoringStats(isForward bool) scoring.PlayerStats {
	return scoring.PlayerStats{
		Tries:             m.Tries,
		TryAssists:        m.TryAssists,
		Conversions:       m.Conversions,
		PenaltiesKicked:   m.PenaltiesKicked,
		DropGoals:         m.DropGoals,
		DefendersBeaten:   m.DefendersBeaten,
		MetresCarried:     m.MetresCarried,
		Offloads:          m.Offloads,
		Fifty22Kicks:      m.Fifty22Kicks,
		ScrumsWon:         m.ScrumsWon,
		TacklesMade:       m.TacklesMade,
		TurnoversWon:      m.TurnoversWon,
		LineoutSteals:     m.LineoutSteals,
		PlayerOfMatch:     m.PlayerOfMatch,
		PenaltiesConceded: m.PenaltiesConceded,
		YellowCards:       m.YellowCards,
		RedCards:          m.RedCards,
		IsForward:         isForward,
	}
}

// Score fills FantasyPoints from the stat line.
func (m *MatchStats) Score(isForward bool) float64 {
	points := scoring.CalculateFantasyPoints(m.ScoringStats(isForward))
	m.FantasyPoints = decimal.NewNullDecimal(Decimal(points, 2))
	return points
}
