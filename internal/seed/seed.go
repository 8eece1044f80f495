// Package seed loads a sample round: 26 players across every position and
// country, with prices, squad selections and stored predictions.
package seed

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm/clause"

	"github.com/stitts-dev/fantasy-rugby/internal/models"
	"github.com/stitts-dev/fantasy-rugby/internal/predictor"
	"github.com/stitts-dev/fantasy-rugby/internal/services"
	"github.com/stitts-dev/fantasy-rugby/pkg/database"
)

// Entry is one sample player with their round data.
type Entry struct {
	Name      string
	Country   string
	Position  string
	Kicker    bool
	Price     float64
	Predicted float64
	Starting  bool
}

// SampleRound fits a 230-star budget with at most four players per country.
var SampleRound = []Entry{
	{"Andrew Porter", "Ireland", "prop", false, 10, 12, true},
	{"Ellis Genge", "England", "prop", false, 9, 10, true},
	{"Uini Atonio", "France", "prop", false, 8, 9, true},
	{"Dan Sheehan", "Ireland", "hooker", false, 12, 15, true},
	{"Dewi Lake", "Wales", "hooker", false, 10, 12, true},
	{"Tadhg Beirne", "Ireland", "second_row", false, 11, 13, true},
	{"Maro Itoje", "England", "second_row", false, 10, 11, true},
	{"Grant Gilchrist", "Scotland", "second_row", false, 9, 10, true},
	{"Gregory Alldritt", "France", "back_row", false, 13, 18, true},
	{"Caelan Doris", "Ireland", "back_row", false, 12, 16, true},
	{"Ben Earl", "England", "back_row", false, 14, 17, true},
	{"Michele Lamaro", "Italy", "back_row", false, 8, 9, true},
	{"Antoine Dupont", "France", "scrum_half", true, 15, 20, true},
	{"Tomos Williams", "Wales", "scrum_half", false, 12, 15, true},
	{"Jack Crowley", "Ireland", "out_half", true, 16, 22, true},
	{"Marcus Smith", "England", "out_half", true, 14, 18, true},
	{"Gael Fickou", "France", "centre", false, 13, 16, true},
	{"Sione Tuipulotu", "Scotland", "centre", false, 11, 13, true},
	{"Nick Tompkins", "Wales", "centre", false, 10, 12, true},
	{"Louis Bielle-Biarrey", "France", "back_3", false, 14, 19, true},
	{"James Lowe", "Ireland", "back_3", false, 13, 17, true},
	{"Freddie Steward", "England", "back_3", false, 15, 21, true},
	{"Ange Capuozzo", "Italy", "back_3", false, 9, 11, true},
	{"Pierre Schoeman", "Scotland", "prop", false, 7, 6, false},
	{"Giacomo Nicotera", "Italy", "hooker", false, 6, 5, false},
	{"Stephen Varney", "Italy", "scrum_half", false, 8, 8, false},
}

// Load writes SampleRound for season and round. Existing players with the
// same name are reused, so loading twice updates rather than duplicates.
func Load(ctx context.Context, db *database.DB, season, round int, logger *logrus.Logger) error {
	stats := services.NewStatsService(db, logger)
	roster := services.NewRosterService(db, stats, logger)

	for _, e := range SampleRound {
		var player models.Player
		err := db.WithContext(ctx).Where("name = ?", e.Name).Limit(1).Find(&player).Error
		if err != nil {
			return fmt.Errorf("failed to look up %s: %w", e.Name, err)
		}
		if player.ID == 0 {
			player = models.Player{Name: e.Name, Country: e.Country, FantasyPosition: e.Position, IsKicker: e.Kicker}
			if err := roster.CreatePlayer(ctx, &player); err != nil {
				return fmt.Errorf("failed to create %s: %w", e.Name, err)
			}
		}

		availability := services.AvailabilityStarting
		if !e.Starting {
			availability = services.AvailabilitySubstitute
		}
		if _, err := roster.UpsertPrice(ctx, services.PriceInput{
			PlayerID:     player.ID,
			Season:       season,
			Round:        round,
			Price:        e.Price,
			Availability: &availability,
		}); err != nil {
			return err
		}

		starting := e.Starting
		if _, err := roster.UpsertSelection(ctx, services.SelectionInput{
			PlayerID:   player.ID,
			Season:     season,
			Round:      round,
			IsStarting: &starting,
		}); err != nil {
			return err
		}

		prediction := models.Prediction{
			PlayerID:        player.ID,
			Season:          season,
			Round:           round,
			PredictedPoints: models.Decimal(e.Predicted, 2),
			ModelVersion:    predictor.HeuristicVersion,
		}
		err = db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "player_id"}, {Name: "season"}, {Name: "round"}},
			DoUpdates: clause.AssignmentColumns([]string{"predicted_points", "model_version"}),
		}).Create(&prediction).Error
		if err != nil {
			return fmt.Errorf("failed to save prediction for %s: %w", e.Name, err)
		}
	}

	logger.WithFields(logrus.Fields{
		"season":  season,
		"round":   round,
		"players": len(SampleRound),
	}).Info("Sample round loaded")
	return nil
}
