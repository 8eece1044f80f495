package services

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/hbollon/go-edlib"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm/clause"

	"github.com/stitts-dev/fantasy-rugby/internal/fixtures"
	"github.com/stitts-dev/fantasy-rugby/internal/models"
	"github.com/stitts-dev/fantasy-rugby/internal/rugby"
	"github.com/stitts-dev/fantasy-rugby/internal/scoring"
	"github.com/stitts-dev/fantasy-rugby/pkg/database"
)

const (
	// FuzzyMatchThreshold is the lowest similarity (0-100) accepted as a match.
	FuzzyMatchThreshold = 80.0
	// LowConfidenceThreshold flags accepted matches worth a manual look.
	LowConfidenceThreshold = 90.0
	// MinBookmakers is required before a totals or handicap line is stored.
	MinBookmakers = 3

	defaultOddsSource = "oddschecker"
)

var (
	bracketSuffix = regexp.MustCompile(`\s*\([^)]+\)\s*$`)
	honorific     = regexp.MustCompile(`^(mr|dr|sir)\s+`)
)

// ScrapedOdds is one player's average anytime try-scorer price.
type ScrapedOdds struct {
	PlayerName  string  `json:"player_name" binding:"required"`
	AverageOdds float64 `json:"average_odds" binding:"required,gt=1"`
}

// TryScorerOddsInput is a match's try-scorer market.
type TryScorerOddsInput struct {
	Season    int           `json:"season" binding:"required"`
	Round     int           `json:"round" binding:"required,min=1"`
	MatchDate time.Time     `json:"match_date" binding:"required"`
	HomeTeam  string        `json:"home_team"`
	AwayTeam  string        `json:"away_team"`
	Odds      []ScrapedOdds `json:"odds" binding:"required,dive"`
}

// LowConfidenceMatch records a name accepted below LowConfidenceThreshold.
type LowConfidenceMatch struct {
	ScrapedName string  `json:"scraped_name"`
	MatchedName string  `json:"matched_name"`
	Confidence  float64 `json:"confidence"`
}

// OddsSaveResult counts what UpsertTryScorerOdds did.
type OddsSaveResult struct {
	Saved                int                  `json:"saved"`
	Updated              int                  `json:"updated"`
	NotFound             []string             `json:"not_found"`
	LowConfidenceMatches []LowConfidenceMatch `json:"low_confidence_matches"`
}

// MarketLine is a two-way line with the number of bookmakers quoting it.
type MarketLine struct {
	Line          float64  `json:"line"`
	FirstOdds     *float64 `json:"first_odds"`
	SecondOdds    *float64 `json:"second_odds"`
	NumBookmakers int      `json:"num_bookmakers"`
}

// MatchOddsInput carries result, totals (over/under) and handicap
// (home/away) markets for one fixture.
type MatchOddsInput struct {
	Season    int         `json:"season" binding:"required"`
	Round     int         `json:"round" binding:"required,min=1"`
	MatchDate time.Time   `json:"match_date" binding:"required"`
	HomeTeam  string      `json:"home_team" binding:"required"`
	AwayTeam  string      `json:"away_team" binding:"required"`
	HomeWin   *float64    `json:"home_win"`
	AwayWin   *float64    `json:"away_win"`
	Draw      *float64    `json:"draw"`
	Totals    *MarketLine `json:"totals"`
	Handicap  *MarketLine `json:"handicap"`
}

// MatchOddsResult reports which markets were stored or skipped.
type MatchOddsResult struct {
	MatchOdds models.MatchOdds `json:"match_odds"`
	Skipped   []string         `json:"skipped"`
}

// PlayerOdds is a round's odds row joined with the player.
type PlayerOdds struct {
	PlayerID           uint      `json:"player_id"`
	PlayerName         string    `json:"player_name"`
	Country            string    `json:"country"`
	AnytimeTryScorer   *float64  `json:"anytime_try_scorer"`
	FirstTryScorer     *float64  `json:"first_try_scorer"`
	ImpliedProbability *float64  `json:"implied_probability"`
	ScrapedAt          time.Time `json:"scraped_at"`
}

// OddsService stores bookmaker odds, resolving scraped names to players.
type OddsService struct {
	db     *database.DB
	cache  *CacheService
	logger *logrus.Logger
}

func NewOddsService(db *database.DB, cache *CacheService, logger *logrus.Logger) *OddsService {
	return &OddsService{db: db, cache: cache, logger: logger}
}

// NormaliseName lowercases, drops a trailing "(Team)" and an honorific, and
// collapses whitespace.
func NormaliseName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	name = bracketSuffix.ReplaceAllString(name, "")
	name = honorific.ReplaceAllString(name, "")
	return strings.Join(strings.Fields(name), " ")
}

// ImpliedProbability converts decimal odds; zero for non-positive odds.
func ImpliedProbability(odds float64) float64 {
	if odds <= 0 {
		return 0
	}
	return 1 / odds
}

// ratio is the 0-100 Indel similarity, 2*LCS over the combined length.
func ratio(a, b string) float64 {
	if a == b {
		return 100
	}
	total := utf8.RuneCountInString(a) + utf8.RuneCountInString(b)
	if total == 0 {
		return 100
	}
	return 100 * float64(2*edlib.LCS(a, b)) / float64(total)
}

// tokenSortRatio ignores word order.
func tokenSortRatio(a, b string) float64 {
	sortTokens := func(s string) string {
		tokens := strings.Fields(s)
		sort.Strings(tokens)
		return strings.Join(tokens, " ")
	}
	return ratio(sortTokens(a), sortTokens(b))
}

// partialRatio scores the shorter string against every same-length window
// of the longer one.
func partialRatio(a, b string) float64 {
	short, long := []rune(a), []rune(b)
	if len(short) > len(long) {
		short, long = long, short
	}
	if len(short) == 0 {
		if len(long) == 0 {
			return 100
		}
		return 0
	}
	best := 0.0
	for i := 0; i+len(short) <= len(long); i++ {
		if r := ratio(string(short), string(long[i:i+len(short)])); r > best {
			best = r
			if best == 100 {
				break
			}
		}
	}
	return best
}

type nameCandidate struct {
	key    string
	player models.Player
}

func (s *OddsService) candidates(ctx context.Context, countries []string) ([]nameCandidate, error) {
	query := s.db.WithContext(ctx).Model(&models.Player{})
	if len(countries) > 0 {
		lowered := make([]string, len(countries))
		for i, c := range countries {
			lowered[i] = strings.ToLower(strings.TrimSpace(c))
		}
		query = query.Where("LOWER(country) IN ?", lowered)
	}

	var players []models.Player
	if err := query.Order("id").Find(&players).Error; err != nil {
		return nil, fmt.Errorf("failed to load players: %w", err)
	}

	out := make([]nameCandidate, 0, len(players))
	for _, p := range players {
		out = append(out, nameCandidate{key: NormaliseName(p.Name), player: p})
	}
	return out, nil
}

func bestMatch(name string, cands []nameCandidate) (*models.Player, float64) {
	for _, c := range cands {
		if c.key == name {
			p := c.player
			return &p, 100
		}
	}

	for _, scorer := range []func(a, b string) float64{tokenSortRatio, partialRatio} {
		bestIdx, bestScore := -1, 0.0
		for i, c := range cands {
			if score := scorer(name, c.key); score > bestScore {
				bestIdx, bestScore = i, score
			}
		}
		if bestIdx >= 0 && bestScore >= FuzzyMatchThreshold {
			p := cands[bestIdx].player
			return &p, bestScore
		}
	}
	return nil, 0
}

// FindPlayer resolves a scraped name, optionally within a set of countries.
// It returns nil when nothing scores at least FuzzyMatchThreshold.
func (s *OddsService) FindPlayer(ctx context.Context, name string, countries []string) (*models.Player, float64, error) {
	cands, err := s.candidates(ctx, countries)
	if err != nil {
		return nil, 0, err
	}
	p, score := bestMatch(NormaliseName(name), cands)
	return p, score, nil
}

// UpsertTryScorerOdds stores anytime try-scorer prices, matching names
// within the two teams when both are given.
func (s *OddsService) UpsertTryScorerOdds(ctx context.Context, in TryScorerOddsInput) (*OddsSaveResult, error) {
	var countries []string
	if in.HomeTeam != "" && in.AwayTeam != "" {
		countries = []string{in.HomeTeam, in.AwayTeam}
	}
	cands, err := s.candidates(ctx, countries)
	if err != nil {
		return nil, err
	}

	result := &OddsSaveResult{NotFound: []string{}, LowConfidenceMatches: []LowConfidenceMatch{}}
	now := time.Now().UTC()

	for _, item := range in.Odds {
		player, confidence := bestMatch(NormaliseName(item.PlayerName), cands)
		if player == nil {
			result.NotFound = append(result.NotFound, item.PlayerName)
			s.logger.WithField("player_name", item.PlayerName).Info("Player not found for odds")
			continue
		}

		if confidence < LowConfidenceThreshold {
			result.LowConfidenceMatches = append(result.LowConfidenceMatches, LowConfidenceMatch{
				ScrapedName: item.PlayerName,
				MatchedName: player.Name,
				Confidence:  round(confidence, 1),
			})
			s.logger.WithFields(logrus.Fields{
				"scraped_name": item.PlayerName,
				"matched_name": player.Name,
				"confidence":   round(confidence, 1),
			}).Warn("Low confidence player match")
		}

		var existing models.Odds
		err := s.db.WithContext(ctx).
			Where("player_id = ? AND season = ? AND round = ?", player.ID, in.Season, in.Round).
			Limit(1).Find(&existing).Error
		if err != nil {
			return nil, fmt.Errorf("failed to look up odds: %w", err)
		}

		price := item.AverageOdds
		if existing.ID != 0 {
			err = s.db.WithContext(ctx).Model(&existing).Updates(map[string]interface{}{
				"anytime_try_scorer": models.NullDecimal(&price, 2),
				"match_date":         in.MatchDate,
				"scraped_at":         now,
			}).Error
			if err != nil {
				return nil, fmt.Errorf("failed to update odds: %w", err)
			}
			result.Updated++
			continue
		}

		row := models.Odds{
			PlayerID:         player.ID,
			Season:           in.Season,
			Round:            in.Round,
			MatchDate:        in.MatchDate,
			AnytimeTryScorer: models.NullDecimal(&price, 2),
			ScrapedAt:        now,
			Source:           defaultOddsSource,
		}
		if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
			return nil, fmt.Errorf("failed to save odds: %w", err)
		}
		result.Saved++
	}

	if result.Saved+result.Updated > 0 {
		if err := s.cache.InvalidateRound(ctx, in.Season, in.Round); err != nil {
			s.logger.WithError(err).Warn("Failed to invalidate optimise cache")
		}
	}

	s.logger.WithFields(logrus.Fields{
		"season":         in.Season,
		"round":          in.Round,
		"saved":          result.Saved,
		"updated":        result.Updated,
		"not_found":      len(result.NotFound),
		"low_confidence": len(result.LowConfidenceMatches),
	}).Info("Try scorer odds saved")

	return result, nil
}

// UpsertMatchOdds stores a fixture's markets. Totals and handicap lines
// quoted by fewer than MinBookmakers are skipped.
func (s *OddsService) UpsertMatchOdds(ctx context.Context, in MatchOddsInput) (*MatchOddsResult, error) {
	row := models.MatchOdds{
		Season:    in.Season,
		Round:     in.Round,
		MatchDate: in.MatchDate,
		HomeTeam:  in.HomeTeam,
		AwayTeam:  in.AwayTeam,
		HomeWin:   models.NullDecimal(in.HomeWin, 2),
		AwayWin:   models.NullDecimal(in.AwayWin, 2),
		Draw:      models.NullDecimal(in.Draw, 2),
		ScrapedAt: time.Now().UTC(),
	}
	updates := []string{"match_date", "scraped_at"}
	if in.HomeWin != nil || in.AwayWin != nil || in.Draw != nil {
		updates = append(updates, "home_win", "away_win", "draw")
	}

	result := &MatchOddsResult{Skipped: []string{}}

	if t := in.Totals; t != nil {
		if t.NumBookmakers < MinBookmakers {
			result.Skipped = append(result.Skipped, "totals")
		} else {
			line := t.Line
			row.OverUnderLine = models.NullDecimal(&line, 1)
			row.OverOdds = models.NullDecimal(t.FirstOdds, 2)
			row.UnderOdds = models.NullDecimal(t.SecondOdds, 2)
			updates = append(updates, "over_under_line", "over_odds", "under_odds")
		}
	}
	if h := in.Handicap; h != nil {
		if h.NumBookmakers < MinBookmakers {
			result.Skipped = append(result.Skipped, "handicap")
		} else {
			line := h.Line
			row.HandicapLine = models.NullDecimal(&line, 1)
			row.HomeHandicapOdds = models.NullDecimal(h.FirstOdds, 2)
			row.AwayHandicapOdds = models.NullDecimal(h.SecondOdds, 2)
			updates = append(updates, "handicap_line", "home_handicap_odds", "away_handicap_odds")
		}
	}

	for _, market := range result.Skipped {
		s.logger.WithFields(logrus.Fields{
			"home_team": in.HomeTeam,
			"away_team": in.AwayTeam,
			"market":    market,
		}).Warn("Skipping line quoted by too few bookmakers")
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "season"}, {Name: "round"}, {Name: "home_team"}, {Name: "away_team"}},
		DoUpdates: clause.AssignmentColumns(updates),
	}).Create(&row).Error
	if err != nil {
		return nil, fmt.Errorf("failed to save match odds: %w", err)
	}

	var stored models.MatchOdds
	err = s.db.WithContext(ctx).
		Where("season = ? AND round = ? AND home_team = ? AND away_team = ?", in.Season, in.Round, in.HomeTeam, in.AwayTeam).
		First(&stored).Error
	if err != nil {
		return nil, fmt.Errorf("failed to reload match odds: %w", err)
	}
	result.MatchOdds = stored
	return result, nil
}

// ListRound returns a round's player odds, shortest price first.
func (s *OddsService) ListRound(ctx context.Context, season, rnd int) ([]PlayerOdds, error) {
	var rows []models.Odds
	err := s.db.WithContext(ctx).Preload("Player").
		Where("season = ? AND round = ?", season, rnd).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load odds: %w", err)
	}

	out := make([]PlayerOdds, 0, len(rows))
	for _, o := range rows {
		if o.Player == nil {
			continue
		}
		po := PlayerOdds{
			PlayerID:         o.PlayerID,
			PlayerName:       o.Player.Name,
			Country:          o.Player.Country,
			AnytimeTryScorer: models.NullFloat(o.AnytimeTryScorer),
			FirstTryScorer:   models.NullFloat(o.FirstTryScorer),
			ScrapedAt:        o.ScrapedAt,
		}
		if po.AnytimeTryScorer != nil {
			po.ImpliedProbability = ptr(round(ImpliedProbability(*po.AnytimeTryScorer), 4))
		}
		out = append(out, po)
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].AnytimeTryScorer, out[j].AnytimeTryScorer
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		}
		return *a < *b
	})
	return out, nil
}

// TryScorer is a priced player with their anytime-try market for a round.
type TryScorer struct {
	PlayerID           uint     `json:"player_id"`
	Name               string   `json:"name"`
	Country            string   `json:"country"`
	FantasyPosition    string   `json:"fantasy_position"`
	Price              float64  `json:"price"`
	Availability       *string  `json:"availability,omitempty"`
	AnytimeTryOdds     *float64 `json:"anytime_try_odds"`
	ImpliedProbability *float64 `json:"implied_probability"`
	ExpectedTryPoints  *float64 `json:"expected_try_points"`
	ExpectedPerStar    *float64 `json:"exp_pts_per_star"`
}

// MatchTryScorers is one fixture's try-scorer board.
type MatchTryScorers struct {
	Match   string      `json:"match"`
	Home    string      `json:"home"`
	Away    string      `json:"away"`
	KickOff time.Time   `json:"kick_off"`
	Players []TryScorer `json:"players"`
}

// TryScorers lists every player priced for the round under their fixture,
// best expected try points first. Players without odds sort last and players
// whose country has no fixture are left out.
func (s *OddsService) TryScorers(ctx context.Context, season, rnd int, matches []fixtures.Fixture) ([]MatchTryScorers, error) {
	out := make([]MatchTryScorers, len(matches))
	byCountry := make(map[string]int, 2*len(matches))
	for i, f := range matches {
		out[i] = MatchTryScorers{
			Match:   fmt.Sprintf("%s v %s", f.Home, f.Away),
			Home:    string(f.Home),
			Away:    string(f.Away),
			KickOff: f.KickOff,
			Players: []TryScorer{},
		}
		byCountry[strings.ToLower(string(f.Home))] = i
		byCountry[strings.ToLower(string(f.Away))] = i
	}

	db := s.db.WithContext(ctx)
	var prices []models.FantasyPrice
	if err := db.Preload("Player").Where("season = ? AND round = ?", season, rnd).Find(&prices).Error; err != nil {
		return nil, fmt.Errorf("failed to load prices: %w", err)
	}
	var odds []models.Odds
	if err := db.Where("season = ? AND round = ?", season, rnd).Find(&odds).Error; err != nil {
		return nil, fmt.Errorf("failed to load odds: %w", err)
	}
	anytime := make(map[uint]float64, len(odds))
	for _, o := range odds {
		if v := models.NullFloat(o.AnytimeTryScorer); v != nil && *v > 0 {
			anytime[o.PlayerID] = *v
		}
	}

	for _, fp := range prices {
		if fp.Player == nil {
			continue
		}
		i, ok := byCountry[strings.ToLower(fp.Player.Country)]
		if !ok {
			continue
		}
		ts := TryScorer{
			PlayerID:        fp.PlayerID,
			Name:            fp.Player.Name,
			Country:         fp.Player.Country,
			FantasyPosition: fp.Player.FantasyPosition,
			Price:           models.Float(fp.Price),
			Availability:    fp.Availability,
		}
		if v, ok := anytime[fp.PlayerID]; ok {
			tryPoints := float64(scoring.BackTryPoints)
			if rugby.IsForward(fp.Player.FantasyPosition) {
				tryPoints = scoring.ForwardTryPoints
			}
			prob := round(ImpliedProbability(v), 3)
			expected := round(prob*tryPoints, 2)
			ts.AnytimeTryOdds = ptr(v)
			ts.ImpliedProbability = ptr(prob)
			ts.ExpectedTryPoints = ptr(expected)
			if ts.Price > 0 {
				ts.ExpectedPerStar = ptr(round(expected/ts.Price, 2))
			}
		}
		out[i].Players = append(out[i].Players, ts)
	}

	for i := range out {
		players := out[i].Players
		sort.SliceStable(players, func(a, b int) bool {
			x, y := players[a].ExpectedTryPoints, players[b].ExpectedTryPoints
			switch {
			case x == nil && y == nil:
				return players[a].Name < players[b].Name
			case x == nil:
				return false
			case y == nil:
				return true
			case *x != *y:
				return *x > *y
			}
			return players[a].Name < players[b].Name
		})
	}
	return out, nil
}
