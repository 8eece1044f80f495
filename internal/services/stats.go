package services

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/stitts-dev/fantasy-rugby/internal/models"
	"github.com/stitts-dev/fantasy-rugby/internal/scoring"
	"github.com/stitts-dev/fantasy-rugby/pkg/database"
)

// Form is a player's per-game averages over a window of recent matches.
type Form struct {
	Games         int     `json:"games"`
	Tries         float64 `json:"tries"`
	Tackles       float64 `json:"tackles"`
	Metres        float64 `json:"metres"`
	Turnovers     float64 `json:"turnovers"`
	FantasyPoints float64 `json:"fantasy_points"`
}

// DerivedStats are career aggregates. Pointers are nil without data.
type DerivedStats struct {
	TotalGames         int      `json:"total_games"`
	AvgFantasyPoints   *float64 `json:"avg_fantasy_points"`
	AvgTries           *float64 `json:"avg_tries"`
	AvgTackles         *float64 `json:"avg_tackles"`
	AvgMetres          *float64 `json:"avg_metres"`
	AvgTurnovers       *float64 `json:"avg_turnovers"`
	AvgDefendersBeaten *float64 `json:"avg_defenders_beaten"`
	AvgOffloads        *float64 `json:"avg_offloads"`
	FantasyPointsStd   *float64 `json:"fantasy_points_std"`
	ExpectedMinutes    *float64 `json:"expected_minutes"`
	StartRate          *float64 `json:"start_rate"`
	PointsPerMinute    *float64 `json:"points_per_minute"`
}

// RecordedMatch is the result of storing a stat line.
type RecordedMatch struct {
	Stats     models.MatchStats `json:"stats"`
	Breakdown scoring.Breakdown `json:"breakdown"`
}

type StatsService struct {
	db     *database.DB
	logger *logrus.Logger
}

func NewStatsService(db *database.DB, logger *logrus.Logger) *StatsService {
	return &StatsService{db: db, logger: logger}
}

// RecordMatch scores a stat line and stores it, replacing any earlier line
// for the same player and round.
func (s *StatsService) RecordMatch(ctx context.Context, line *models.MatchStats) (*RecordedMatch, error) {
	var player models.Player
	if err := s.db.WithContext(ctx).First(&player, line.PlayerID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get player: %w", err)
	}

	breakdown := scoring.CalculateBreakdown(line.ScoringStats(player.IsForward()))
	line.Score(player.IsForward())

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "player_id"}, {Name: "season"}, {Name: "round"}},
		UpdateAll: true,
	}).Create(line).Error
	if err != nil {
		return nil, fmt.Errorf("failed to save match stats: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"player_id":      line.PlayerID,
		"season":         line.Season,
		"round":          line.Round,
		"fantasy_points": breakdown.Total,
	}).Info("Recorded match stats")

	return &RecordedMatch{Stats: *line, Breakdown: breakdown}, nil
}

// History returns up to limit matches, most recent first.
func (s *StatsService) History(ctx context.Context, playerID uint, limit int) ([]models.MatchStats, error) {
	var lines []models.MatchStats
	query := s.db.WithContext(ctx).Where("player_id = ?", playerID).Order("match_date DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&lines).Error; err != nil {
		return nil, fmt.Errorf("failed to load match history: %w", err)
	}
	return lines, nil
}

// RecentForm averages the last n matches.
func (s *StatsService) RecentForm(ctx context.Context, playerID uint, n int) (Form, error) {
	lines, err := s.History(ctx, playerID, n)
	if err != nil {
		return Form{}, err
	}
	return formOf(lines), nil
}

func formOf(lines []models.MatchStats) Form {
	if len(lines) == 0 {
		return Form{}
	}
	tries := make([]float64, len(lines))
	tackles := make([]float64, len(lines))
	metres := make([]float64, len(lines))
	turnovers := make([]float64, len(lines))
	points := make([]float64, len(lines))
	for i, l := range lines {
		tries[i] = float64(l.Tries)
		tackles[i] = float64(l.TacklesMade)
		metres[i] = float64(l.MetresCarried)
		turnovers[i] = float64(l.TurnoversWon)
		if fp := models.NullFloat(l.FantasyPoints); fp != nil {
			points[i] = *fp
		}
	}
	return Form{
		Games:         len(lines),
		Tries:         stat.Mean(tries, nil),
		Tackles:       stat.Mean(tackles, nil),
		Metres:        stat.Mean(metres, nil),
		Turnovers:     stat.Mean(turnovers, nil),
		FantasyPoints: stat.Mean(points, nil),
	}
}

// DerivedStats aggregates every recorded match for a player.
func (s *StatsService) DerivedStats(ctx context.Context, playerID uint) (DerivedStats, error) {
	var player models.Player
	if err := s.db.WithContext(ctx).First(&player, playerID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return DerivedStats{}, ErrNotFound
		}
		return DerivedStats{}, fmt.Errorf("failed to get player: %w", err)
	}

	lines, err := s.History(ctx, playerID, 0)
	if err != nil {
		return DerivedStats{}, err
	}
	return deriveStats(lines, player.IsForward()), nil
}

func deriveStats(lines []models.MatchStats, isForward bool) DerivedStats {
	n := len(lines)
	if n == 0 {
		return DerivedStats{}
	}

	points := make([]float64, n)
	minutes := []float64{}
	started := 0
	column := func(get func(models.MatchStats) int) []float64 {
		out := make([]float64, n)
		for i, l := range lines {
			out[i] = float64(get(l))
		}
		return out
	}

	for i, l := range lines {
		if fp := models.NullFloat(l.FantasyPoints); fp != nil {
			points[i] = *fp
		} else {
			points[i] = scoring.CalculateFantasyPoints(l.ScoringStats(isForward))
		}
		if l.MinutesPlayed != nil {
			minutes = append(minutes, float64(*l.MinutesPlayed))
		}
		if l.Started {
			started++
		}
	}

	d := DerivedStats{TotalGames: n}
	d.AvgFantasyPoints = ptr(round(stat.Mean(points, nil), 2))
	d.AvgTries = ptr(round(stat.Mean(column(func(l models.MatchStats) int { return l.Tries }), nil), 3))
	d.AvgTackles = ptr(round(stat.Mean(column(func(l models.MatchStats) int { return l.TacklesMade }), nil), 2))
	d.AvgMetres = ptr(round(stat.Mean(column(func(l models.MatchStats) int { return l.MetresCarried }), nil), 2))
	d.AvgTurnovers = ptr(round(stat.Mean(column(func(l models.MatchStats) int { return l.TurnoversWon }), nil), 3))
	d.AvgDefendersBeaten = ptr(round(stat.Mean(column(func(l models.MatchStats) int { return l.DefendersBeaten }), nil), 2))
	d.AvgOffloads = ptr(round(stat.Mean(column(func(l models.MatchStats) int { return l.Offloads }), nil), 3))
	if n > 1 {
		d.FantasyPointsStd = ptr(round(stat.StdDev(points, nil), 2))
	}
	d.StartRate = ptr(round(float64(started)/float64(n)*100, 1))

	if len(minutes) > 0 {
		avgMinutes := floats.Sum(minutes) / float64(len(minutes))
		d.ExpectedMinutes = ptr(round(avgMinutes, 1))
		if avgMinutes > 0 {
			d.PointsPerMinute = ptr(round(stat.Mean(points, nil)/avgMinutes, 3))
		}
	}
	return d
}

func ptr(v float64) *float64 { return &v }

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
