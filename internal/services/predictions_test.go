package services

import (
	"time"

	"github.com/stitts-dev/fantasy-rugby/internal/models"
	"github.com/stitts-dev/fantasy-rugby/internal/predictor"
)

func (s *ServicesTestSuite) TestGenerateForRound_OnlySelectedPlayers() {
	prop := s.createPlayer("Uini Atonio", "France", "prop", false)
	wing := s.createPlayer("Mack Hansen", "Ireland", "back_3", false)
	s.createPlayer("Unnamed", "Wales", "centre", false)

	s.selectPlayer(prop.ID, 1, false)
	s.selectPlayer(wing.ID, 1, true)

	res, err := s.predictions.GenerateForRound(s.ctx, 2026, 1)
	s.Require().NoError(err)
	s.Equal(2, res.PredictionsGenerated)
	s.Equal(predictor.HeuristicVersion, res.ModelVersion)

	var preds []models.Prediction
	s.Require().NoError(s.db.Order("player_id").Find(&preds).Error)
	s.Require().Len(preds, 2)

	// France host round 1: bench forward at home
	s.Equal(4.8, models.Float(preds[0].PredictedPoints))
	// Ireland travel: starting back away
	s.Equal(14.25, models.Float(preds[1].PredictedPoints))
	s.Equal(predictor.HeuristicVersion, preds[1].ModelVersion)
	s.True(preds[1].ConfidenceLower.Valid)

	// regenerating upserts
	_, err = s.predictions.GenerateForRound(s.ctx, 2026, 1)
	s.Require().NoError(err)
	var count int64
	s.Require().NoError(s.db.Model(&models.Prediction{}).Count(&count).Error)
	s.Equal(int64(2), count)
}

func (s *ServicesTestSuite) TestDetail_OnTheFly() {
	wing := s.createPlayer("James Lowe", "Ireland", "back_3", false)
	s.recordMatch(wing.ID, 1, 1, 1, 16, true, 80)
	s.recordMatch(wing.ID, 2, 8, 1, 16, true, 80)
	s.recordMatch(wing.ID, 3, 15, 1, 16, true, 80)

	odds := models.Odds{
		PlayerID:         wing.ID,
		Season:           2026,
		Round:            2,
		MatchDate:        time.Date(2026, 2, 14, 14, 10, 0, 0, time.UTC),
		AnytimeTryScorer: models.NullDecimal(ptr(4.0), 2),
		ScrapedAt:        time.Now().UTC(),
	}
	s.Require().NoError(s.db.Create(&odds).Error)

	detail, err := s.predictions.Detail(s.ctx, wing.ID, 2026, 2)
	s.Require().NoError(err)

	s.False(detail.Stored)
	// 26 per match at home plus a quarter of a damped back try
	s.InDelta(26.75, detail.PredictedPoints, 1e-9)
	s.Less(detail.ConfidenceInterval[0], detail.PredictedPoints)
	s.Greater(detail.ConfidenceInterval[1], detail.PredictedPoints)

	s.Equal(1.0, detail.Breakdown.PredictedTries)
	s.Equal(0.25, detail.Breakdown.PredictedTryProb)
	s.Equal(16.0, detail.Breakdown.PredictedTackles)
	s.Equal(0.5, detail.Breakdown.PredictedTurnovers)
	s.Equal(0.0, detail.Breakdown.PredictedConversions)
	s.Equal([]string{"Strong try-scoring form", "High tackle count expected"}, detail.KeyFactors)
}

func (s *ServicesTestSuite) TestDetail_Stored() {
	kicker := s.createPlayer("Marcus Smith", "England", "out_half", true)
	s.storePrediction(kicker.ID, 1, 22.5)

	detail, err := s.predictions.Detail(s.ctx, kicker.ID, 2026, 1)
	s.Require().NoError(err)

	s.True(detail.Stored)
	s.Equal(22.5, detail.PredictedPoints)
	// no stored interval falls back to +/- 5
	s.Equal([2]float64{17.5, 27.5}, detail.ConfidenceInterval)
	s.Equal(2.0, detail.Breakdown.PredictedConversions)
	s.Equal(1.5, detail.Breakdown.PredictedPenalties)
	s.Equal([]string{"Kicking duties add value"}, detail.KeyFactors)

	_, err = s.predictions.Detail(s.ctx, 999, 2026, 1)
	s.ErrorIs(err, ErrNotFound)
}

func (s *ServicesTestSuite) TestKeyFactors_Default() {
	s.Equal([]string{"Consistent performer"}, keyFactors(predictor.Features{}))
	s.Equal([]string{"Forward try bonus (15 pts)"}, keyFactors(predictor.Features{IsForward: true, TriesLast3: 0.3}))
}

func (s *ServicesTestSuite) TestList_FiltersAndSorts() {
	a := s.createPlayer("Expensive", "France", "centre", false)
	b := s.createPlayer("Value", "Italy", "centre", false)
	c := s.createPlayer("Unpriced", "Wales", "prop", false)

	s.storePrediction(a.ID, 1, 20)
	s.storePrediction(b.ID, 1, 15)
	s.storePrediction(c.ID, 1, 10)
	s.setPrice(a.ID, 1, 20)
	s.setPrice(b.ID, 1, 10)

	byPoints, err := s.predictions.List(s.ctx, PredictionFilter{Season: 2026, Round: 1})
	s.Require().NoError(err)
	s.Require().Len(byPoints, 3)
	s.Equal([]uint{a.ID, b.ID, c.ID}, viewIDs(byPoints))

	byValue, err := s.predictions.List(s.ctx, PredictionFilter{Season: 2026, Round: 1, SortBy: SortByValue})
	s.Require().NoError(err)
	s.Equal([]uint{b.ID, a.ID, c.ID}, viewIDs(byValue))
	s.Equal(1.5, *byValue[0].PointsPerStar)

	byPrice, err := s.predictions.List(s.ctx, PredictionFilter{Season: 2026, Round: 1, SortBy: SortByPrice})
	s.Require().NoError(err)
	s.Equal([]uint{a.ID, b.ID, c.ID}, viewIDs(byPrice))
	s.Nil(byPrice[2].Price)

	minPoints := 12.0
	filtered, err := s.predictions.List(s.ctx, PredictionFilter{Season: 2026, Round: 1, Position: "centre", MinPredicted: &minPoints})
	s.Require().NoError(err)
	s.Equal([]uint{a.ID, b.ID}, viewIDs(filtered))

	_, err = s.predictions.List(s.ctx, PredictionFilter{Season: 2026, Round: 1, SortBy: "name"})
	s.ErrorIs(err, ErrInvalidInput)
}

func viewIDs(views []PredictionView) []uint {
	ids := make([]uint, len(views))
	for i, v := range views {
		ids[i] = v.PlayerID
	}
	return ids
}

func (s *ServicesTestSuite) TestList_ServedFromCacheUntilRoundInvalidated() {
	mr, client := newMiniredis(s.T())
	cache := NewCacheService(client, 5, s.logger)
	svc := NewPredictionService(s.db, predictor.NewWithModel(nil, s.logger), s.stats, s.schedule, cache, s.logger)

	dupont := s.createPlayer("Antoine Dupont", "France", "scrum_half", true)
	s.setPrice(dupont.ID, 1, 20)
	s.storePrediction(dupont.ID, 1, 16)

	views, err := svc.List(s.ctx, PredictionFilter{Season: 2026, Round: 1})
	s.Require().NoError(err)
	s.Require().Len(views, 1)
	s.True(mr.Exists(PredictionsCacheKey(2026, 1)))

	// written behind the service's back, so the cached list is stale
	ramos := s.createPlayer("Thomas Ramos", "France", "back_3", true)
	s.storePrediction(ramos.ID, 1, 12)

	views, err = svc.List(s.ctx, PredictionFilter{Season: 2026, Round: 1})
	s.Require().NoError(err)
	s.Len(views, 1)

	s.Require().NoError(cache.InvalidateRound(s.ctx, 2026, 1))
	s.False(mr.Exists(PredictionsCacheKey(2026, 1)))

	views, err = svc.List(s.ctx, PredictionFilter{Season: 2026, Round: 1, Position: "back_3"})
	s.Require().NoError(err)
	s.Require().Len(views, 1)
	s.Equal(ramos.ID, views[0].PlayerID)
}
