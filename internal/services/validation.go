package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/fantasy-rugby/internal/fixtures"
	"github.com/stitts-dev/fantasy-rugby/internal/models"
	"github.com/stitts-dev/fantasy-rugby/pkg/database"
)

const (
	StaleOddsThreshold    = 24 * time.Hour
	MinTryScorerPlayers   = 20
	ExpectedSquadSize     = 23
	HighUnknownThreshold  = 10
	matchdaySquadExpected = ExpectedSquadSize * 2
)

// Availability values stored on FantasyPrice.
const (
	AvailabilityStarting   = "starting"
	AvailabilitySubstitute = "substitute"
	AvailabilityNotPlaying = "not_playing"
)

// Warning types.
const (
	WarnMissingMarkets      = "missing_markets"
	WarnIncompleteSquad     = "incomplete_squad"
	WarnStaleOdds           = "stale_odds"
	WarnPreSquadOdds        = "pre_squad_odds"
	WarnSuspiciouslyFewOdds = "suspiciously_few_odds"
	WarnMissingPlayerOdds   = "missing_player_odds"
	WarnAvailabilityUnknown = "availability_unknown"
	WarnMissingPrices       = "missing_prices"
	WarnMissingPredictions  = "missing_predictions"
)

// MatchData is what is known about one fixture's inputs.
type MatchData struct {
	HomeTeam            string     `json:"home_team"`
	AwayTeam            string     `json:"away_team"`
	HasHandicap         bool       `json:"has_handicap"`
	HasTotals           bool       `json:"has_totals"`
	HasTryScorer        bool       `json:"has_try_scorer"`
	HandicapScrapedAt   *time.Time `json:"handicap_scraped_at"`
	TotalsScrapedAt     *time.Time `json:"totals_scraped_at"`
	TryScorerScrapedAt  *time.Time `json:"try_scorer_scraped_at"`
	TryScorerCount      int        `json:"try_scorer_count"`
	SquadCount          int        `json:"squad_count"`
	UnknownAvailability int        `json:"unknown_availability"`
	PlayersWithOdds     int        `json:"players_with_odds"`
}

func (m MatchData) label() string {
	return fmt.Sprintf("%s v %s", m.HomeTeam, m.AwayTeam)
}

// RoundData is the round-level context for the checks.
type RoundData struct {
	HasPrices      bool `json:"has_prices"`
	PriceCount     int  `json:"price_count"`
	SelectionCount int  `json:"selection_count"`
	PredictedCount int  `json:"predicted_count"`
}

// Warning is one data-quality problem with a suggested action.
type Warning struct {
	Type         string            `json:"type"`
	Match        string            `json:"match,omitempty"`
	Team         string            `json:"team,omitempty"`
	Market       string            `json:"market,omitempty"`
	Count        *int              `json:"count,omitempty"`
	Expected     *int              `json:"expected,omitempty"`
	HoursOld     *int              `json:"hours_old,omitempty"`
	MissingCount *int              `json:"missing_count,omitempty"`
	Message      string            `json:"message"`
	Action       string            `json:"action"`
	ActionParams map[string]string `json:"action_params,omitempty"`
}

// RoundValidation is the report for one round.
type RoundValidation struct {
	Season   int         `json:"season"`
	Round    int         `json:"round"`
	Matches  []MatchData `json:"matches"`
	Warnings []Warning   `json:"warnings"`
	Valid    bool        `json:"valid"`
}

func intPtr(v int) *int { return &v }

func capitalise(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// ValidateRoundData runs every rule and returns the warnings in rule order
// per match, followed by round-level warnings.
func ValidateRoundData(matches []MatchData, rd RoundData, now time.Time) []Warning {
	warnings := []Warning{}

	for _, m := range matches {
		label := m.label()
		params := map[string]string{"match": label}

		missing := []string{}
		if !m.HasHandicap {
			missing = append(missing, "handicaps")
		}
		if !m.HasTotals {
			missing = append(missing, "totals")
		}
		if !m.HasTryScorer {
			missing = append(missing, "try scorers")
		}
		if len(missing) > 0 {
			warnings = append(warnings, Warning{
				Type:         WarnMissingMarkets,
				Match:        label,
				Message:      fmt.Sprintf("%s missing: %s", label, strings.Join(missing, ", ")),
				Action:       "scrape_missing",
				ActionParams: params,
			})
		}

		if rd.HasPrices && m.SquadCount < matchdaySquadExpected {
			warnings = append(warnings, Warning{
				Type:     WarnIncompleteSquad,
				Match:    label,
				Team:     m.HomeTeam + "/" + m.AwayTeam,
				Count:    intPtr(m.SquadCount),
				Expected: intPtr(ExpectedSquadSize),
				Message:  fmt.Sprintf("%s squad incomplete: %d/%d", label, m.SquadCount, matchdaySquadExpected),
				Action:   "re_scrape_prices",
			})
		}

		markets := []struct {
			name      string
			scrapedAt *time.Time
		}{
			{"handicaps", m.HandicapScrapedAt},
			{"totals", m.TotalsScrapedAt},
			{"try scorers", m.TryScorerScrapedAt},
		}
		for _, mk := range markets {
			if mk.scrapedAt == nil {
				continue
			}
			age := now.Sub(*mk.scrapedAt)
			if age <= StaleOddsThreshold {
				continue
			}
			hours := int(age.Hours())
			warnings = append(warnings, Warning{
				Type:         WarnStaleOdds,
				Match:        label,
				Market:       mk.name,
				HoursOld:     intPtr(hours),
				Message:      fmt.Sprintf("%s odds for %s are %dh old", capitalise(mk.name), label, hours),
				Action:       "re_scrape_" + strings.ReplaceAll(mk.name, " ", "_"),
				ActionParams: params,
			})
		}

		if m.HasTryScorer && m.TryScorerScrapedAt != nil && m.UnknownAvailability >= HighUnknownThreshold {
			warnings = append(warnings, Warning{
				Type:         WarnPreSquadOdds,
				Match:        label,
				Market:       "try_scorer",
				Message:      fmt.Sprintf("Try scorer odds for %s may be outdated, scraped before squad release", label),
				Action:       "re_scrape_try_scorer",
				ActionParams: params,
			})
		}

		if m.HasTryScorer && m.TryScorerCount < MinTryScorerPlayers {
			warnings = append(warnings, Warning{
				Type:         WarnSuspiciouslyFewOdds,
				Match:        label,
				Count:        intPtr(m.TryScorerCount),
				Message:      fmt.Sprintf("Only %d players with try scorer odds for %s, possible partial scrape", m.TryScorerCount, label),
				Action:       "re_scrape_try_scorer",
				ActionParams: params,
			})
		}

		if m.SquadCount >= matchdaySquadExpected && m.UnknownAvailability == 0 && m.PlayersWithOdds < m.SquadCount {
			missingCount := m.SquadCount - m.PlayersWithOdds
			warnings = append(warnings, Warning{
				Type:         WarnMissingPlayerOdds,
				Match:        label,
				MissingCount: intPtr(missingCount),
				Message:      fmt.Sprintf("%d players in %s squad missing try scorer odds", missingCount, label),
				Action:       "re_scrape_try_scorer",
				ActionParams: params,
			})
		}
	}

	totalUnknown := 0
	for _, m := range matches {
		totalUnknown += m.UnknownAvailability
	}
	if rd.HasPrices && totalUnknown > 0 {
		warnings = append(warnings, Warning{
			Type:    WarnAvailabilityUnknown,
			Count:   intPtr(totalUnknown),
			Message: fmt.Sprintf("%d players have unknown availability", totalUnknown),
			Action:  "re_scrape_prices",
		})
	}

	if !rd.HasPrices {
		warnings = append(warnings, Warning{
			Type:    WarnMissingPrices,
			Message: "No fantasy prices loaded for this round",
			Action:  "re_scrape_prices",
		})
	}

	if rd.SelectionCount > 0 && rd.PredictedCount < rd.SelectionCount {
		missingCount := rd.SelectionCount - rd.PredictedCount
		warnings = append(warnings, Warning{
			Type:         WarnMissingPredictions,
			MissingCount: intPtr(missingCount),
			Message:      fmt.Sprintf("%d selected players have no prediction", missingCount),
			Action:       "generate_predictions",
		})
	}

	return warnings
}

type ValidationService struct {
	db       *database.DB
	schedule *fixtures.Schedule
	now      func() time.Time
	logger   *logrus.Logger
}

func NewValidationService(db *database.DB, schedule *fixtures.Schedule, logger *logrus.Logger) *ValidationService {
	if schedule == nil {
		schedule = fixtures.Default()
	}
	return &ValidationService{db: db, schedule: schedule, now: time.Now, logger: logger}
}

// ValidateRound gathers per-fixture data for the round and checks it.
func (s *ValidationService) ValidateRound(ctx context.Context, season, round int) (*RoundValidation, error) {
	db := s.db.WithContext(ctx)

	var prices []models.FantasyPrice
	if err := db.Preload("Player").Where("season = ? AND round = ?", season, round).Find(&prices).Error; err != nil {
		return nil, fmt.Errorf("failed to load prices: %w", err)
	}
	var odds []models.Odds
	if err := db.Preload("Player").Where("season = ? AND round = ?", season, round).Find(&odds).Error; err != nil {
		return nil, fmt.Errorf("failed to load odds: %w", err)
	}
	var matchOdds []models.MatchOdds
	if err := db.Where("season = ? AND round = ?", season, round).Find(&matchOdds).Error; err != nil {
		return nil, fmt.Errorf("failed to load match odds: %w", err)
	}

	var selectionCount, predictedCount int64
	if err := db.Model(&models.TeamSelection{}).Where("season = ? AND round = ?", season, round).Count(&selectionCount).Error; err != nil {
		return nil, fmt.Errorf("failed to count selections: %w", err)
	}
	err := db.Model(&models.Prediction{}).
		Where("season = ? AND round = ?", season, round).
		Where("player_id IN (?)", db.Model(&models.TeamSelection{}).Select("player_id").Where("season = ? AND round = ?", season, round)).
		Count(&predictedCount).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count predictions: %w", err)
	}

	matches := []MatchData{}
	for _, f := range s.schedule.RoundFixtures(season, round) {
		matches = append(matches, buildMatchData(f, prices, odds, matchOdds))
	}

	rd := RoundData{
		HasPrices:      len(prices) > 0,
		PriceCount:     len(prices),
		SelectionCount: int(selectionCount),
		PredictedCount: int(predictedCount),
	}
	warnings := ValidateRoundData(matches, rd, s.now().UTC())

	s.logger.WithFields(logrus.Fields{
		"season":   season,
		"round":    round,
		"matches":  len(matches),
		"warnings": len(warnings),
	}).Debug("Validated round")

	return &RoundValidation{
		Season:   season,
		Round:    round,
		Matches:  matches,
		Warnings: warnings,
		Valid:    len(warnings) == 0,
	}, nil
}

func buildMatchData(f fixtures.Fixture, prices []models.FantasyPrice, odds []models.Odds, matchOdds []models.MatchOdds) MatchData {
	inMatch := func(country string) bool {
		return strings.EqualFold(country, string(f.Home)) || strings.EqualFold(country, string(f.Away))
	}

	m := MatchData{HomeTeam: string(f.Home), AwayTeam: string(f.Away)}

	for _, mo := range matchOdds {
		if !strings.EqualFold(mo.HomeTeam, m.HomeTeam) || !strings.EqualFold(mo.AwayTeam, m.AwayTeam) {
			continue
		}
		scraped := mo.ScrapedAt
		if mo.HandicapLine.Valid {
			m.HasHandicap = true
			m.HandicapScrapedAt = &scraped
		}
		if mo.OverUnderLine.Valid {
			m.HasTotals = true
			m.TotalsScrapedAt = &scraped
		}
	}

	inSquad := map[uint]bool{}
	for _, p := range prices {
		if p.Player == nil || !inMatch(p.Player.Country) {
			continue
		}
		switch {
		case p.Availability == nil || *p.Availability == "":
			m.UnknownAvailability++
		case *p.Availability == AvailabilityStarting || *p.Availability == AvailabilitySubstitute:
			m.SquadCount++
			inSquad[p.PlayerID] = true
		}
	}

	for _, o := range odds {
		if o.Player == nil || !inMatch(o.Player.Country) || !o.AnytimeTryScorer.Valid {
			continue
		}
		m.HasTryScorer = true
		m.TryScorerCount++
		if inSquad[o.PlayerID] {
			m.PlayersWithOdds++
		}
		scraped := o.ScrapedAt
		if m.TryScorerScrapedAt == nil || scraped.After(*m.TryScorerScrapedAt) {
			m.TryScorerScrapedAt = &scraped
		}
	}
	return m
}
