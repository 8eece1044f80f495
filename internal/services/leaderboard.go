package services

import (
	"context"
	"fmt"
	"sort"

	"github.com/stitts-dev/fantasy-rugby/internal/models"
	"github.com/stitts-dev/fantasy-rugby/internal/rugby"
)

// Leaderboard groupings.
const (
	GroupByPosition = "position"
	GroupByCountry  = "country"
)

const (
	defaultLeaderboardLimit = 10
	maxLeaderboardLimit     = 50
)

// leaderboardColumns maps the stat names a leaderboard can rank by to their
// match_stats column.
var leaderboardColumns = map[string]string{
	"tries":            "tries",
	"try_assists":      "try_assists",
	"metres_carried":   "metres_carried",
	"defenders_beaten": "defenders_beaten",
	"clean_breaks":     "clean_breaks",
	"offloads":         "offloads",
	"tackles_made":     "tackles_made",
	"turnovers_won":    "turnovers_won",
	"lineout_steals":   "lineout_steals",
	"fantasy_points":   "fantasy_points",
}

// LeaderboardQuery selects a stat, a grouping and optionally one season.
type LeaderboardQuery struct {
	Stat    string
	GroupBy string
	Season  int
	Limit   int
}

type LeaderboardEntry struct {
	PlayerID        uint    `json:"player_id"`
	Name            string  `json:"name"`
	Country         string  `json:"country"`
	FantasyPosition string  `json:"fantasy_position"`
	Games           int     `json:"games"`
	Total           float64 `json:"total"`
	PerGame         float64 `json:"per_game"`
}

// LeaderboardGroup is the top players of one position or country.
type LeaderboardGroup struct {
	Group   string             `json:"group"`
	Leaders []LeaderboardEntry `json:"leaders"`
}

type statTotal struct {
	PlayerID uint
	Games    int
	Total    float64
}

// Leaderboard ranks players by the summed stat within each group. Groups come
// in position or country order and empty groups are left out.
func (s *StatsService) Leaderboard(ctx context.Context, q LeaderboardQuery) ([]LeaderboardGroup, error) {
	column, ok := leaderboardColumns[q.Stat]
	if !ok {
		return nil, fmt.Errorf("%w: unknown stat %q", ErrInvalidInput, q.Stat)
	}
	var groups []string
	switch q.GroupBy {
	case GroupByPosition:
		for _, p := range rugby.Positions {
			groups = append(groups, string(p))
		}
	case GroupByCountry:
		for _, c := range rugby.Countries {
			groups = append(groups, string(c))
		}
	default:
		return nil, fmt.Errorf("%w: group_by must be %s or %s", ErrInvalidInput, GroupByPosition, GroupByCountry)
	}
	limit := q.Limit
	if limit <= 0 {
		limit = defaultLeaderboardLimit
	}
	if limit > maxLeaderboardLimit {
		limit = maxLeaderboardLimit
	}

	query := s.db.WithContext(ctx).Model(&models.MatchStats{}).
		Select(fmt.Sprintf("player_id, COUNT(*) AS games, COALESCE(SUM(%s), 0) AS total", column)).
		Group("player_id")
	if q.Season > 0 {
		query = query.Where("season = ?", q.Season)
	}
	var totals []statTotal
	if err := query.Scan(&totals).Error; err != nil {
		return nil, fmt.Errorf("failed to total %s: %w", q.Stat, err)
	}
	if len(totals) == 0 {
		return []LeaderboardGroup{}, nil
	}

	ids := make([]uint, len(totals))
	for i, t := range totals {
		ids[i] = t.PlayerID
	}
	var players []models.Player
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&players).Error; err != nil {
		return nil, fmt.Errorf("failed to load players: %w", err)
	}
	byID := make(map[uint]models.Player, len(players))
	for _, p := range players {
		byID[p.ID] = p
	}

	grouped := map[string][]LeaderboardEntry{}
	for _, t := range totals {
		p, ok := byID[t.PlayerID]
		if !ok || t.Games == 0 {
			continue
		}
		key := p.FantasyPosition
		if q.GroupBy == GroupByCountry {
			key = p.Country
		}
		grouped[key] = append(grouped[key], LeaderboardEntry{
			PlayerID:        p.ID,
			Name:            p.Name,
			Country:         p.Country,
			FantasyPosition: p.FantasyPosition,
			Games:           t.Games,
			Total:           round(t.Total, 2),
			PerGame:         round(t.Total/float64(t.Games), 2),
		})
	}

	out := []LeaderboardGroup{}
	for _, g := range groups {
		entries := grouped[g]
		if len(entries) == 0 {
			continue
		}
		sort.SliceStable(entries, func(i, j int) bool {
			a, b := entries[i], entries[j]
			if a.Total != b.Total {
				return a.Total > b.Total
			}
			if a.PerGame != b.PerGame {
				return a.PerGame > b.PerGame
			}
			return a.Name < b.Name
		})
		if len(entries) > limit {
			entries = entries[:limit]
		}
		out = append(out, LeaderboardGroup{Group: g, Leaders: entries})
	}
	return out, nil
}
