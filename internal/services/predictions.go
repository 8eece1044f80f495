package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/stitts-dev/fantasy-rugby/internal/fixtures"
	"github.com/stitts-dev/fantasy-rugby/internal/models"
	"github.com/stitts-dev/fantasy-rugby/internal/predictor"
	"github.com/stitts-dev/fantasy-rugby/internal/rugby"
	"github.com/stitts-dev/fantasy-rugby/pkg/database"
)

const (
	SortByPoints = "points"
	SortByValue  = "value"
	SortByPrice  = "price"
)

// PredictionFilter narrows List.
type PredictionFilter struct {
	Season       int
	Round        int
	Position     string
	MinPredicted *float64
	SortBy       string
}

// PredictionView is a stored prediction joined with its player and price.
type PredictionView struct {
	PlayerID        uint     `json:"player_id"`
	PlayerName      string   `json:"player_name"`
	Country         string   `json:"country"`
	FantasyPosition string   `json:"fantasy_position"`
	Season          int      `json:"season"`
	Round           int      `json:"round"`
	PredictedPoints float64  `json:"predicted_points"`
	ConfidenceLower *float64 `json:"confidence_lower"`
	ConfidenceUpper *float64 `json:"confidence_upper"`
	ModelVersion    string   `json:"model_version"`
	Price           *float64 `json:"price"`
	PointsPerStar   *float64 `json:"points_per_star"`
}

// PredictionBreakdown is the expected stat line behind a prediction.
type PredictionBreakdown struct {
	PredictedTries       float64 `json:"predicted_tries"`
	PredictedTryProb     float64 `json:"predicted_try_prob"`
	PredictedTackles     float64 `json:"predicted_tackles"`
	PredictedMetres      float64 `json:"predicted_metres"`
	PredictedTurnovers   float64 `json:"predicted_turnovers"`
	PredictedConversions float64 `json:"predicted_conversions"`
	PredictedPenalties   float64 `json:"predicted_penalties"`
}

// PredictionDetail explains one player's prediction.
type PredictionDetail struct {
	PlayerID           uint                `json:"player_id"`
	PlayerName         string              `json:"player_name"`
	PredictedPoints    float64             `json:"predicted_points"`
	ConfidenceInterval [2]float64          `json:"confidence_interval"`
	ModelVersion       string              `json:"model_version"`
	Stored             bool                `json:"stored"`
	Breakdown          PredictionBreakdown `json:"breakdown"`
	KeyFactors         []string            `json:"key_factors"`
}

// GenerateResult summarises a GenerateForRound run.
type GenerateResult struct {
	Season               int     `json:"season"`
	Round                int     `json:"round"`
	PredictionsGenerated int     `json:"predictions_generated"`
	ModelVersion         string  `json:"model_version"`
	DurationSeconds      float64 `json:"duration_seconds"`
}

const (
	expectedTurnovers   = 0.5
	kickerConversions   = 2.0
	kickerPenalties     = 1.5
	strongTryForm       = 0.5
	highTackleCount     = 15
	defaultIntervalSpan = 5.0

	predictionsCacheTTL = 10 * time.Minute
)

type PredictionService struct {
	db        *database.DB
	predictor *predictor.Predictor
	stats     *StatsService
	schedule  *fixtures.Schedule
	cache     *CacheService
	logger    *logrus.Logger
}

func NewPredictionService(
	db *database.DB,
	p *predictor.Predictor,
	stats *StatsService,
	schedule *fixtures.Schedule,
	cache *CacheService,
	logger *logrus.Logger,
) *PredictionService {
	if schedule == nil {
		schedule = fixtures.Default()
	}
	return &PredictionService{
		db:        db,
		predictor: p,
		stats:     stats,
		schedule:  schedule,
		cache:     cache,
		logger:    logger,
	}
}

// features builds the model input for a player from their last five matches.
func (s *PredictionService) features(ctx context.Context, player models.Player, season, round int) (predictor.Features, error) {
	history, err := s.stats.History(ctx, player.ID, 5)
	if err != nil {
		return predictor.Features{}, err
	}
	last3 := history
	if len(last3) > 3 {
		last3 = last3[:3]
	}
	form3 := formOf(last3)
	form5 := formOf(history)

	f := predictor.Features{
		TriesLast3:         form3.Tries,
		TriesLast5:         form5.Tries,
		TacklesLast3:       form3.Tackles,
		TacklesLast5:       form5.Tackles,
		MetresLast3:        form3.Metres,
		MetresLast5:        form5.Metres,
		TurnoversLast3:     form3.Turnovers,
		FantasyPointsLast3: form3.FantasyPoints,
		FantasyPointsLast5: form5.FantasyPoints,
		IsKicker:           player.IsKicker,
		IsForward:          player.IsForward(),
		IsHome:             true,
	}
	if _, home, ok := s.schedule.FixtureFor(season, round, rugby.Country(player.Country)); ok {
		f.IsHome = home
	}

	var odds models.Odds
	err = s.db.WithContext(ctx).
		Where("player_id = ? AND season = ? AND round = ?", player.ID, season, round).
		Limit(1).Find(&odds).Error
	if err != nil {
		return predictor.Features{}, fmt.Errorf("failed to load odds: %w", err)
	}
	if odds.ID != 0 {
		f.AnytimeTryOdds = models.NullFloat(odds.AnytimeTryScorer)
	}
	return f, nil
}

// GenerateForRound predicts every player named in a squad for the round and
// upserts the results.
func (s *PredictionService) GenerateForRound(ctx context.Context, season, round int) (*GenerateResult, error) {
	start := time.Now()

	var selections []models.TeamSelection
	err := s.db.WithContext(ctx).Preload("Player").
		Where("season = ? AND round = ?", season, round).
		Order("player_id").Find(&selections).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load selections: %w", err)
	}

	generated := 0
	for _, sel := range selections {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if sel.Player == nil {
			continue
		}

		f, err := s.features(ctx, *sel.Player, season, round)
		if err != nil {
			return nil, err
		}
		f.IsStarting = sel.IsStarting != nil && *sel.IsStarting

		res := s.predictor.Predict(f)
		lower, upper := res.ConfidenceLower, res.ConfidenceUpper
		pred := models.Prediction{
			PlayerID:        sel.PlayerID,
			Season:          season,
			Round:           round,
			PredictedPoints: models.Decimal(res.PredictedPoints, 2),
			ConfidenceLower: models.NullDecimal(&lower, 2),
			ConfidenceUpper: models.NullDecimal(&upper, 2),
			ModelVersion:    res.ModelVersion,
		}
		err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "player_id"}, {Name: "season"}, {Name: "round"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"predicted_points", "confidence_lower", "confidence_upper", "model_version", "updated_at",
			}),
		}).Create(&pred).Error
		if err != nil {
			return nil, fmt.Errorf("failed to save prediction: %w", err)
		}
		generated++
	}

	if err := s.cache.InvalidateRound(ctx, season, round); err != nil {
		s.logger.WithError(err).Warn("Failed to invalidate optimise cache")
	}

	result := &GenerateResult{
		Season:               season,
		Round:                round,
		PredictionsGenerated: generated,
		ModelVersion:         s.predictor.ModelVersion(),
		DurationSeconds:      time.Since(start).Seconds(),
	}

	s.logger.WithFields(logrus.Fields{
		"season":        season,
		"round":         round,
		"generated":     generated,
		"model_version": result.ModelVersion,
		"duration_ms":   time.Since(start).Milliseconds(),
	}).Info("Generated predictions")

	return result, nil
}

// List returns a round's stored predictions.
func (s *PredictionService) List(ctx context.Context, filter PredictionFilter) ([]PredictionView, error) {
	sortBy := filter.SortBy
	if sortBy == "" {
		sortBy = SortByPoints
	}
	if sortBy != SortByPoints && sortBy != SortByValue && sortBy != SortByPrice {
		return nil, fmt.Errorf("%w: sort_by must be one of points, value, price", ErrInvalidInput)
	}

	all, err := s.roundViews(ctx, filter.Season, filter.Round)
	if err != nil {
		return nil, err
	}

	views := make([]PredictionView, 0, len(all))
	for _, v := range all {
		if filter.Position != "" && v.FantasyPosition != filter.Position {
			continue
		}
		if filter.MinPredicted != nil && v.PredictedPoints < *filter.MinPredicted {
			continue
		}
		views = append(views, v)
	}

	sortViews(views, sortBy)
	return views, nil
}

// roundViews joins every prediction of a round with its price. The joined
// rows are cached until the round is invalidated.
func (s *PredictionService) roundViews(ctx context.Context, season, rnd int) ([]PredictionView, error) {
	key := PredictionsCacheKey(season, rnd)
	var cached []PredictionView
	err := s.cache.Get(ctx, key, &cached)
	if err == nil {
		return cached, nil
	}
	if !errors.Is(err, ErrCacheMiss) {
		s.logger.WithError(err).Warn("Failed to read predictions cache")
	}

	var predictions []models.Prediction
	err = s.db.WithContext(ctx).Preload("Player").
		Where("season = ? AND round = ?", season, rnd).
		Find(&predictions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load predictions: %w", err)
	}

	var prices []models.FantasyPrice
	err = s.db.WithContext(ctx).
		Where("season = ? AND round = ?", season, rnd).
		Find(&prices).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load prices: %w", err)
	}
	priceByPlayer := make(map[uint]float64, len(prices))
	for _, p := range prices {
		priceByPlayer[p.PlayerID] = models.Float(p.Price)
	}

	views := make([]PredictionView, 0, len(predictions))
	for _, p := range predictions {
		if p.Player == nil {
			continue
		}
		v := PredictionView{
			PlayerID:        p.PlayerID,
			PlayerName:      p.Player.Name,
			Country:         p.Player.Country,
			FantasyPosition: p.Player.FantasyPosition,
			Season:          p.Season,
			Round:           p.Round,
			PredictedPoints: models.Float(p.PredictedPoints),
			ConfidenceLower: models.NullFloat(p.ConfidenceLower),
			ConfidenceUpper: models.NullFloat(p.ConfidenceUpper),
			ModelVersion:    p.ModelVersion,
		}
		if price, ok := priceByPlayer[p.PlayerID]; ok {
			v.Price = &price
			if price > 0 {
				v.PointsPerStar = ptr(round(v.PredictedPoints/price, 2))
			}
		}
		views = append(views, v)
	}

	if err := s.cache.Set(ctx, key, views, predictionsCacheTTL); err != nil {
		s.logger.WithError(err).Warn("Failed to cache predictions")
	}
	return views, nil
}

// sortViews orders descending by the chosen key. Rows without a price sort
// last for value and price; ties fall back to player id.
func sortViews(views []PredictionView, sortBy string) {
	key := func(v PredictionView) *float64 {
		switch sortBy {
		case SortByValue:
			return v.PointsPerStar
		case SortByPrice:
			return v.Price
		}
		p := v.PredictedPoints
		return &p
	}
	sort.SliceStable(views, func(i, j int) bool {
		a, b := key(views[i]), key(views[j])
		switch {
		case a == nil && b == nil:
			return views[i].PlayerID < views[j].PlayerID
		case a == nil:
			return false
		case b == nil:
			return true
		case *a != *b:
			return *a > *b
		}
		return views[i].PlayerID < views[j].PlayerID
	})
}

// Detail explains a player's prediction, predicting on the fly when nothing
// is stored for the round.
func (s *PredictionService) Detail(ctx context.Context, playerID uint, season, round int) (*PredictionDetail, error) {
	var player models.Player
	if err := s.db.WithContext(ctx).First(&player, playerID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get player: %w", err)
	}

	f, err := s.features(ctx, player, season, round)
	if err != nil {
		return nil, err
	}

	detail := &PredictionDetail{
		PlayerID:   player.ID,
		PlayerName: player.Name,
	}

	var stored models.Prediction
	err = s.db.WithContext(ctx).
		Where("player_id = ? AND season = ? AND round = ?", playerID, season, round).
		Limit(1).Find(&stored).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load prediction: %w", err)
	}

	if stored.ID != 0 {
		points := models.Float(stored.PredictedPoints)
		lower, upper := points-defaultIntervalSpan, points+defaultIntervalSpan
		if v := models.NullFloat(stored.ConfidenceLower); v != nil {
			lower = *v
		}
		if v := models.NullFloat(stored.ConfidenceUpper); v != nil {
			upper = *v
		}
		detail.PredictedPoints = points
		detail.ConfidenceInterval = [2]float64{lower, upper}
		detail.ModelVersion = stored.ModelVersion
		detail.Stored = true
	} else {
		// no selection is known here, so the player is assumed to start
		f.IsStarting = true
		res := s.predictor.Predict(f)
		detail.PredictedPoints = res.PredictedPoints
		detail.ConfidenceInterval = [2]float64{res.ConfidenceLower, res.ConfidenceUpper}
		detail.ModelVersion = res.ModelVersion
	}

	detail.Breakdown = breakdownOf(f)
	detail.KeyFactors = keyFactors(f)
	return detail, nil
}

func breakdownOf(f predictor.Features) PredictionBreakdown {
	b := PredictionBreakdown{
		PredictedTries:     f.TriesLast3,
		PredictedTackles:   f.TacklesLast3,
		PredictedMetres:    f.MetresLast3,
		PredictedTurnovers: expectedTurnovers,
	}
	if f.AnytimeTryOdds != nil && *f.AnytimeTryOdds > 0 {
		b.PredictedTryProb = 1 / *f.AnytimeTryOdds
	}
	if f.IsKicker {
		b.PredictedConversions = kickerConversions
		b.PredictedPenalties = kickerPenalties
	}
	return b
}

func keyFactors(f predictor.Features) []string {
	factors := []string{}
	if f.TriesLast3 > strongTryForm {
		factors = append(factors, "Strong try-scoring form")
	}
	if f.TacklesLast3 > highTackleCount {
		factors = append(factors, "High tackle count expected")
	}
	if f.IsKicker {
		factors = append(factors, "Kicking duties add value")
	}
	if f.IsForward && f.TriesLast3 > 0 {
		factors = append(factors, "Forward try bonus (15 pts)")
	}
	if len(factors) == 0 {
		factors = append(factors, "Consistent performer")
	}
	return factors
}
