package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/stitts-dev/fantasy-rugby/internal/models"
	"github.com/stitts-dev/fantasy-rugby/internal/optimizer"
	"github.com/stitts-dev/fantasy-rugby/internal/rugby"
	"github.com/stitts-dev/fantasy-rugby/pkg/database"
)

// RoundPlayer is a player as seen in one round.
type RoundPlayer struct {
	ID              uint     `json:"id"`
	Name            string   `json:"name"`
	Country         string   `json:"country"`
	FantasyPosition string   `json:"fantasy_position"`
	Club            *string  `json:"club,omitempty"`
	IsKicker        bool     `json:"is_kicker"`
	Price           *float64 `json:"price"`
	IsAvailable     bool     `json:"is_available"`
	IsStarting      *bool    `json:"is_starting"`
	PredictedPoints *float64 `json:"predicted_points"`
	PointsPerStar   *float64 `json:"points_per_star"`
	AnytimeTryOdds  *float64 `json:"anytime_try_odds"`
}

// PlayerFilter narrows ListPlayers. Nil pointers do not filter.
type PlayerFilter struct {
	Season      int
	Round       int
	Country     string
	Position    string
	MinPrice    *float64
	MaxPrice    *float64
	IsAvailable *bool
}

// PlayerDetail adds match history and derived stats to RoundPlayer.
type PlayerDetail struct {
	RoundPlayer
	RecentMatches []models.MatchStats `json:"recent_matches"`
	Derived       DerivedStats        `json:"derived"`
}

// PriceInput sets a player's cost for a round.
type PriceInput struct {
	PlayerID     uint     `json:"player_id" binding:"required"`
	Season       int      `json:"season" binding:"required"`
	Round        int      `json:"round" binding:"required,min=1"`
	Price        float64  `json:"price" binding:"required,gt=0"`
	OwnershipPct *float64 `json:"ownership_pct"`
	Availability *string  `json:"availability"`
}

// SelectionInput names a player in a matchday squad.
type SelectionInput struct {
	PlayerID       uint    `json:"player_id" binding:"required"`
	Season         int     `json:"season" binding:"required"`
	Round          int     `json:"round" binding:"required,min=1"`
	SquadPosition  *int    `json:"squad_position"`
	IsStarting     *bool   `json:"is_starting"`
	ActualPosition *string `json:"actual_position"`
}

// RosterService joins players with their per-round price, squad selection,
// prediction and odds.
type RosterService struct {
	db     *database.DB
	stats  *StatsService
	logger *logrus.Logger
}

func NewRosterService(db *database.DB, stats *StatsService, logger *logrus.Logger) *RosterService {
	return &RosterService{db: db, stats: stats, logger: logger}
}

// roundData indexes one round's rows by player id.
type roundData struct {
	prices      map[uint]models.FantasyPrice
	selections  map[uint]models.TeamSelection
	predictions map[uint]models.Prediction
	odds        map[uint]models.Odds
}

func (s *RosterService) loadRound(ctx context.Context, season, round int) (*roundData, error) {
	db := s.db.WithContext(ctx)
	rd := &roundData{
		prices:      map[uint]models.FantasyPrice{},
		selections:  map[uint]models.TeamSelection{},
		predictions: map[uint]models.Prediction{},
		odds:        map[uint]models.Odds{},
	}

	var prices []models.FantasyPrice
	if err := db.Where("season = ? AND round = ?", season, round).Find(&prices).Error; err != nil {
		return nil, fmt.Errorf("failed to load prices: %w", err)
	}
	for _, p := range prices {
		rd.prices[p.PlayerID] = p
	}

	var selections []models.TeamSelection
	if err := db.Where("season = ? AND round = ?", season, round).Find(&selections).Error; err != nil {
		return nil, fmt.Errorf("failed to load selections: %w", err)
	}
	for _, sel := range selections {
		rd.selections[sel.PlayerID] = sel
	}

	var predictions []models.Prediction
	if err := db.Where("season = ? AND round = ?", season, round).Find(&predictions).Error; err != nil {
		return nil, fmt.Errorf("failed to load predictions: %w", err)
	}
	for _, p := range predictions {
		rd.predictions[p.PlayerID] = p
	}

	var odds []models.Odds
	if err := db.Where("season = ? AND round = ?", season, round).Find(&odds).Error; err != nil {
		return nil, fmt.Errorf("failed to load odds: %w", err)
	}
	for _, o := range odds {
		rd.odds[o.PlayerID] = o
	}

	return rd, nil
}

func (rd *roundData) view(p models.Player) RoundPlayer {
	rp := RoundPlayer{
		ID:              p.ID,
		Name:            p.Name,
		Country:         p.Country,
		FantasyPosition: p.FantasyPosition,
		Club:            p.Club,
		IsKicker:        p.IsKicker,
	}

	if price, ok := rd.prices[p.ID]; ok {
		v := models.Float(price.Price)
		rp.Price = &v
	}
	if sel, ok := rd.selections[p.ID]; ok {
		rp.IsAvailable = true
		rp.IsStarting = sel.IsStarting
	}
	if pred, ok := rd.predictions[p.ID]; ok {
		v := models.Float(pred.PredictedPoints)
		rp.PredictedPoints = &v
	}
	if o, ok := rd.odds[p.ID]; ok {
		rp.AnytimeTryOdds = models.NullFloat(o.AnytimeTryScorer)
	}
	if rp.Price != nil && rp.PredictedPoints != nil && *rp.Price > 0 {
		v := math.Round(*rp.PredictedPoints / *rp.Price * 100) / 100
		rp.PointsPerStar = &v
	}
	return rp
}

// ListPlayers returns players for a round, ordered by name.
func (s *RosterService) ListPlayers(ctx context.Context, filter PlayerFilter) ([]RoundPlayer, error) {
	query := s.db.WithContext(ctx).Model(&models.Player{})
	if filter.Country != "" {
		query = query.Where("country = ?", filter.Country)
	}
	if filter.Position != "" {
		query = query.Where("fantasy_position = ?", filter.Position)
	}

	var players []models.Player
	if err := query.Order("name").Find(&players).Error; err != nil {
		return nil, fmt.Errorf("failed to list players: %w", err)
	}

	rd, err := s.loadRound(ctx, filter.Season, filter.Round)
	if err != nil {
		return nil, err
	}

	out := make([]RoundPlayer, 0, len(players))
	for _, p := range players {
		rp := rd.view(p)
		if filter.MinPrice != nil && (rp.Price == nil || *rp.Price < *filter.MinPrice) {
			continue
		}
		if filter.MaxPrice != nil && (rp.Price == nil || *rp.Price > *filter.MaxPrice) {
			continue
		}
		if filter.IsAvailable != nil && rp.IsAvailable != *filter.IsAvailable {
			continue
		}
		out = append(out, rp)
	}
	return out, nil
}

// GetPlayer returns one player's round view with history.
func (s *RosterService) GetPlayer(ctx context.Context, id uint, season, round int) (*PlayerDetail, error) {
	var player models.Player
	if err := s.db.WithContext(ctx).First(&player, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get player: %w", err)
	}

	rd, err := s.loadRound(ctx, season, round)
	if err != nil {
		return nil, err
	}

	detail := &PlayerDetail{RoundPlayer: rd.view(player), RecentMatches: []models.MatchStats{}}
	if s.stats != nil {
		recent, err := s.stats.History(ctx, id, 5)
		if err != nil {
			return nil, err
		}
		detail.RecentMatches = recent

		derived, err := s.stats.DerivedStats(ctx, id)
		if err != nil {
			return nil, err
		}
		detail.Derived = derived
	}
	return detail, nil
}

// CreatePlayer validates and stores a new player. A player with the same
// name in the same country already on file is a conflict.
func (s *RosterService) CreatePlayer(ctx context.Context, player *models.Player) error {
	country, err := rugby.ParseCountry(player.Country)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	pos, err := rugby.ParsePosition(player.FantasyPosition)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	player.Country = string(country)
	player.FantasyPosition = string(pos)

	var count int64
	err = s.db.WithContext(ctx).Model(&models.Player{}).
		Where("LOWER(name) = LOWER(?) AND country = ?", player.Name, player.Country).
		Count(&count).Error
	if err != nil {
		return fmt.Errorf("failed to look up player: %w", err)
	}
	if count > 0 {
		return fmt.Errorf("%w: player %q already exists for %s", ErrConflict, player.Name, player.Country)
	}

	if err := s.db.WithContext(ctx).Create(player).Error; err != nil {
		return fmt.Errorf("failed to create player: %w", err)
	}
	return nil
}

func (s *RosterService) playerExists(ctx context.Context, id uint) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Player{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to look up player: %w", err)
	}
	if count == 0 {
		return ErrNotFound
	}
	return nil
}

// UpsertPrice stores or replaces a player's price for a round.
func (s *RosterService) UpsertPrice(ctx context.Context, in PriceInput) (*models.FantasyPrice, error) {
	if err := s.playerExists(ctx, in.PlayerID); err != nil {
		return nil, err
	}

	price := &models.FantasyPrice{
		PlayerID:     in.PlayerID,
		Season:       in.Season,
		Round:        in.Round,
		Price:        models.Decimal(in.Price, 1),
		OwnershipPct: models.NullDecimal(in.OwnershipPct, 2),
		Availability: in.Availability,
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "player_id"}, {Name: "season"}, {Name: "round"}},
		DoUpdates: clause.AssignmentColumns([]string{"price", "ownership_pct", "availability"}),
	}).Create(price).Error
	if err != nil {
		return nil, fmt.Errorf("failed to save price: %w", err)
	}
	return price, nil
}

// UpsertSelection stores or replaces a squad selection for a round.
func (s *RosterService) UpsertSelection(ctx context.Context, in SelectionInput) (*models.TeamSelection, error) {
	if err := s.playerExists(ctx, in.PlayerID); err != nil {
		return nil, err
	}

	sel := &models.TeamSelection{
		PlayerID:       in.PlayerID,
		Season:         in.Season,
		Round:          in.Round,
		SquadPosition:  in.SquadPosition,
		IsStarting:     in.IsStarting,
		ActualPosition: in.ActualPosition,
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "player_id"}, {Name: "season"}, {Name: "round"}},
		DoUpdates: clause.AssignmentColumns([]string{"squad_position", "is_starting", "actual_position"}),
	}).Create(sel).Error
	if err != nil {
		return nil, fmt.Errorf("failed to save selection: %w", err)
	}
	return sel, nil
}

// OptimiserPlayers builds the candidate pool for a round. Players without both
// a price and a prediction are left out; availability means a squad selection
// exists.
func (s *RosterService) OptimiserPlayers(ctx context.Context, season, round int) ([]optimizer.OptimiserPlayer, error) {
	rd, err := s.loadRound(ctx, season, round)
	if err != nil {
		return nil, err
	}

	ids := make([]uint, 0, len(rd.prices))
	for id := range rd.prices {
		if _, ok := rd.predictions[id]; ok {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return []optimizer.OptimiserPlayer{}, nil
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var players []models.Player
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Order("id").Find(&players).Error; err != nil {
		return nil, fmt.Errorf("failed to load players: %w", err)
	}

	out := make([]optimizer.OptimiserPlayer, 0, len(players))
	for _, p := range players {
		op := optimizer.OptimiserPlayer{
			ID:              p.ID,
			Name:            p.Name,
			Country:         rugby.Country(p.Country),
			Position:        p.Position(),
			Price:           models.Float(rd.prices[p.ID].Price),
			PredictedPoints: models.Float(rd.predictions[p.ID].PredictedPoints),
		}
		if sel, ok := rd.selections[p.ID]; ok {
			op.IsAvailable = true
			op.IsStarting = sel.IsStarting
		}
		out = append(out, op)
	}

	s.logger.WithFields(logrus.Fields{
		"season":     season,
		"round":      round,
		"candidates": len(out),
	}).Debug("Built optimiser roster")

	return out, nil
}

// PlayerComparison is one player's column in a side-by-side comparison.
type PlayerComparison struct {
	RoundPlayer
	RecentForm Form         `json:"recent_form"`
	Derived    DerivedStats `json:"derived"`
}

const (
	MinComparePlayers = 2
	MaxComparePlayers = 6
	compareFormWindow = 5
)

// ComparePlayers returns the players in the order asked, each with its round
// view, recent form and career aggregates.
func (s *RosterService) ComparePlayers(ctx context.Context, ids []uint, season, round int) ([]PlayerComparison, error) {
	if len(ids) < MinComparePlayers || len(ids) > MaxComparePlayers {
		return nil, fmt.Errorf("%w: compare takes %d to %d players, got %d",
			ErrInvalidInput, MinComparePlayers, MaxComparePlayers, len(ids))
	}
	seen := make(map[uint]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			return nil, fmt.Errorf("%w: player %d listed twice", ErrInvalidInput, id)
		}
		seen[id] = true
	}

	var players []models.Player
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&players).Error; err != nil {
		return nil, fmt.Errorf("failed to load players: %w", err)
	}
	byID := make(map[uint]models.Player, len(players))
	for _, p := range players {
		byID[p.ID] = p
	}
	for _, id := range ids {
		if _, ok := byID[id]; !ok {
			return nil, fmt.Errorf("player %d: %w", id, ErrNotFound)
		}
	}

	rd, err := s.loadRound(ctx, season, round)
	if err != nil {
		return nil, err
	}

	out := make([]PlayerComparison, 0, len(ids))
	for _, id := range ids {
		cmp := PlayerComparison{RoundPlayer: rd.view(byID[id])}
		if s.stats != nil {
			if cmp.RecentForm, err = s.stats.RecentForm(ctx, id, compareFormWindow); err != nil {
				return nil, err
			}
			if cmp.Derived, err = s.stats.DerivedStats(ctx, id); err != nil {
				return nil, err
			}
		}
		out = append(out, cmp)
	}
	return out, nil
}
