package services

import (
	"github.com/stitts-dev/fantasy-rugby/internal/models"
	"github.com/stitts-dev/fantasy-rugby/internal/rugby"
)

func (s *ServicesTestSuite) TestCreatePlayer_Normalises() {
	p := models.Player{Name: "Finn Russell", Country: "scotland", FantasyPosition: "Out_Half"}
	s.Require().NoError(s.roster.CreatePlayer(s.ctx, &p))
	s.Equal("Scotland", p.Country)
	s.Equal("out_half", p.FantasyPosition)

	bad := models.Player{Name: "Nobody", Country: "Atlantis", FantasyPosition: "prop"}
	s.ErrorIs(s.roster.CreatePlayer(s.ctx, &bad), ErrInvalidInput)

	bad = models.Player{Name: "Nobody", Country: "Wales", FantasyPosition: "wing"}
	s.ErrorIs(s.roster.CreatePlayer(s.ctx, &bad), ErrInvalidInput)
}

func (s *ServicesTestSuite) TestCreatePlayer_DuplicateNameConflicts() {
	s.createPlayer("Tom Curry", "England", "back_row", false)

	dup := models.Player{Name: "tom curry", Country: "england", FantasyPosition: "back_row"}
	s.ErrorIs(s.roster.CreatePlayer(s.ctx, &dup), ErrConflict)

	// same name for another country is a different player
	other := models.Player{Name: "Tom Curry", Country: "Wales", FantasyPosition: "centre"}
	s.Require().NoError(s.roster.CreatePlayer(s.ctx, &other))

	var count int64
	s.Require().NoError(s.db.Model(&models.Player{}).Where("name = ?", "Tom Curry").Count(&count).Error)
	s.Equal(int64(2), count)
}

func (s *ServicesTestSuite) TestUpsertPrice_Replaces() {
	p := s.createPlayer("Antoine Dupont", "France", "scrum_half", true)
	s.setPrice(p.ID, 1, 18.5)
	s.setPrice(p.ID, 1, 19.0)

	var prices []models.FantasyPrice
	s.Require().NoError(s.db.Where("player_id = ?", p.ID).Find(&prices).Error)
	s.Require().Len(prices, 1)
	s.Equal(19.0, models.Float(prices[0].Price))

	_, err := s.roster.UpsertPrice(s.ctx, PriceInput{PlayerID: 999, Season: 2026, Round: 1, Price: 10})
	s.ErrorIs(err, ErrNotFound)
}

func (s *ServicesTestSuite) TestListPlayers_Filters() {
	dupont := s.createPlayer("Antoine Dupont", "France", "scrum_half", true)
	ramos := s.createPlayer("Thomas Ramos", "France", "back_3", true)
	crowley := s.createPlayer("Jack Crowley", "Ireland", "out_half", true)

	s.setPrice(dupont.ID, 1, 20)
	s.setPrice(ramos.ID, 1, 15)
	s.selectPlayer(dupont.ID, 1, true)
	s.storePrediction(dupont.ID, 1, 30)

	all, err := s.roster.ListPlayers(s.ctx, PlayerFilter{Season: 2026, Round: 1})
	s.Require().NoError(err)
	s.Len(all, 3)
	// ordered by name
	s.Equal("Antoine Dupont", all[0].Name)
	s.Equal(crowley.ID, all[1].ID)

	france, err := s.roster.ListPlayers(s.ctx, PlayerFilter{Season: 2026, Round: 1, Country: "France"})
	s.Require().NoError(err)
	s.Len(france, 2)

	minPrice := 16.0
	pricey, err := s.roster.ListPlayers(s.ctx, PlayerFilter{Season: 2026, Round: 1, MinPrice: &minPrice})
	s.Require().NoError(err)
	s.Require().Len(pricey, 1)
	s.Equal(dupont.ID, pricey[0].ID)
	s.True(pricey[0].IsAvailable)
	s.Require().NotNil(pricey[0].PointsPerStar)
	s.Equal(1.5, *pricey[0].PointsPerStar)

	available := true
	avail, err := s.roster.ListPlayers(s.ctx, PlayerFilter{Season: 2026, Round: 1, IsAvailable: &available})
	s.Require().NoError(err)
	s.Len(avail, 1)
}

func (s *ServicesTestSuite) TestGetPlayer() {
	p := s.createPlayer("Duhan van der Merwe", "Scotland", "back_3", false)
	s.setPrice(p.ID, 2, 14)
	s.recordMatch(p.ID, 1, 1, 2, 3, true, 80)

	detail, err := s.roster.GetPlayer(s.ctx, p.ID, 2026, 2)
	s.Require().NoError(err)
	s.Equal(14.0, *detail.Price)
	s.False(detail.IsAvailable)
	s.Len(detail.RecentMatches, 1)
	s.Equal(1, detail.Derived.TotalGames)

	_, err = s.roster.GetPlayer(s.ctx, 999, 2026, 2)
	s.ErrorIs(err, ErrNotFound)
}

func (s *ServicesTestSuite) TestOptimiserPlayers() {
	a := s.createPlayer("Selected", "Ireland", "prop", false)
	b := s.createPlayer("Unselected", "England", "hooker", false)
	c := s.createPlayer("No Prediction", "Wales", "centre", false)

	for _, p := range []models.Player{a, b, c} {
		s.setPrice(p.ID, 1, 10)
	}
	s.storePrediction(a.ID, 1, 12)
	s.storePrediction(b.ID, 1, 9)
	s.selectPlayer(a.ID, 1, false)

	pool, err := s.roster.OptimiserPlayers(s.ctx, 2026, 1)
	s.Require().NoError(err)
	s.Require().Len(pool, 2)

	s.Equal(a.ID, pool[0].ID)
	s.Equal(rugby.Prop, pool[0].Position)
	s.Equal(rugby.Ireland, pool[0].Country)
	s.True(pool[0].IsAvailable)
	s.Require().NotNil(pool[0].IsStarting)
	s.False(*pool[0].IsStarting)
	s.Equal(12.0, pool[0].PredictedPoints)

	s.Equal(b.ID, pool[1].ID)
	s.False(pool[1].IsAvailable)

	empty, err := s.roster.OptimiserPlayers(s.ctx, 2026, 5)
	s.Require().NoError(err)
	s.Empty(empty)
}

func (s *ServicesTestSuite) TestComparePlayers() {
	dupont := s.createPlayer("Antoine Dupont", "France", "scrum_half", true)
	ramos := s.createPlayer("Thomas Ramos", "France", "back_3", true)
	s.setPrice(dupont.ID, 1, 20)
	s.storePrediction(dupont.ID, 1, 15)
	s.recordMatch(dupont.ID, 1, 1, 1, 6, true, 80)

	out, err := s.roster.ComparePlayers(s.ctx, []uint{ramos.ID, dupont.ID}, 2026, 1)
	s.Require().NoError(err)
	s.Require().Len(out, 2)

	s.Equal(ramos.ID, out[0].ID)
	s.Nil(out[0].Price)
	s.Zero(out[0].RecentForm.Games)

	s.Equal(dupont.ID, out[1].ID)
	s.Equal(20.0, *out[1].Price)
	s.Equal(0.75, *out[1].PointsPerStar)
	s.Equal(1, out[1].RecentForm.Games)
	s.Equal(1, out[1].Derived.TotalGames)

	_, err = s.roster.ComparePlayers(s.ctx, []uint{dupont.ID}, 2026, 1)
	s.ErrorIs(err, ErrInvalidInput)
	_, err = s.roster.ComparePlayers(s.ctx, []uint{dupont.ID, dupont.ID}, 2026, 1)
	s.ErrorIs(err, ErrInvalidInput)
	_, err = s.roster.ComparePlayers(s.ctx, []uint{dupont.ID, 999}, 2026, 1)
	s.ErrorIs(err, ErrNotFound)
}
