package services

import (
	"time"

	"github.com/stitts-dev/fantasy-rugby/internal/models"
)

func (s *ServicesTestSuite) TestRecordMatch_ScoresAndStores() {
	prop := s.createPlayer("Tadhg Furlong", "Ireland", "prop", false)

	minutes := 60
	res, err := s.stats.RecordMatch(s.ctx, &models.MatchStats{
		PlayerID:      prop.ID,
		Season:        2025,
		Round:         1,
		MatchDate:     time.Date(2025, 2, 1, 15, 0, 0, 0, time.UTC),
		Opponent:      "England",
		HomeAway:      "home",
		Started:       true,
		MinutesPlayed: &minutes,
		Tries:         1,
		TacklesMade:   10,
		ScrumsWon:     3,
	})
	s.Require().NoError(err)

	// forward try 15, tackles 10, scrums 3
	s.Equal(28.0, res.Breakdown.Total)
	s.Equal(15.0, res.Breakdown.Tries)

	var stored models.MatchStats
	s.Require().NoError(s.db.First(&stored, "player_id = ?", prop.ID).Error)
	s.Require().NotNil(models.NullFloat(stored.FantasyPoints))
	s.Equal(28.0, *models.NullFloat(stored.FantasyPoints))
}

func (s *ServicesTestSuite) TestRecordMatch_ReplacesSameRound() {
	back := s.createPlayer("James Lowe", "Ireland", "back_3", false)
	s.recordMatch(back.ID, 1, 1, 1, 2, true, 80)
	s.recordMatch(back.ID, 1, 1, 2, 2, true, 80)

	var count int64
	s.Require().NoError(s.db.Model(&models.MatchStats{}).Where("player_id = ?", back.ID).Count(&count).Error)
	s.Equal(int64(1), count)

	history, err := s.stats.History(s.ctx, back.ID, 0)
	s.Require().NoError(err)
	s.Require().Len(history, 1)
	s.Equal(2, history[0].Tries)
}

func (s *ServicesTestSuite) TestRecordMatch_UnknownPlayer() {
	_, err := s.stats.RecordMatch(s.ctx, &models.MatchStats{PlayerID: 999, Season: 2025, Round: 1, Opponent: "Italy", HomeAway: "home"})
	s.ErrorIs(err, ErrNotFound)
}

func (s *ServicesTestSuite) TestRecentForm_UsesMostRecentMatches() {
	back := s.createPlayer("Louis Bielle-Biarrey", "France", "back_3", false)
	// oldest to newest: 2, 0, 0, 1 tries
	s.recordMatch(back.ID, 1, 1, 2, 4, true, 80)
	s.recordMatch(back.ID, 2, 8, 0, 4, true, 80)
	s.recordMatch(back.ID, 3, 15, 0, 4, true, 80)
	s.recordMatch(back.ID, 4, 22, 1, 4, true, 80)

	form, err := s.stats.RecentForm(s.ctx, back.ID, 3)
	s.Require().NoError(err)
	s.Equal(3, form.Games)
	s.InDelta(1.0/3.0, form.Tries, 1e-9)
	s.InDelta(4.0, form.Tackles, 1e-9)

	all, err := s.stats.RecentForm(s.ctx, back.ID, 5)
	s.Require().NoError(err)
	s.Equal(4, all.Games)
	s.InDelta(0.75, all.Tries, 1e-9)

	history, err := s.stats.History(s.ctx, back.ID, 2)
	s.Require().NoError(err)
	s.Require().Len(history, 2)
	s.Equal(4, history[0].Round)
	s.Equal(3, history[1].Round)
}

func (s *ServicesTestSuite) TestDerivedStats() {
	prop := s.createPlayer("Ellis Genge", "England", "prop", false)
	s.recordMatch(prop.ID, 1, 1, 1, 10, true, 80) // 25 points
	s.recordMatch(prop.ID, 2, 8, 0, 4, false, 20) // 4 points

	d, err := s.stats.DerivedStats(s.ctx, prop.ID)
	s.Require().NoError(err)

	s.Equal(2, d.TotalGames)
	s.Require().NotNil(d.AvgFantasyPoints)
	s.Equal(14.5, *d.AvgFantasyPoints)
	s.Equal(0.5, *d.AvgTries)
	s.Equal(7.0, *d.AvgTackles)
	s.Equal(50.0, *d.StartRate)
	s.Equal(50.0, *d.ExpectedMinutes)
	s.Equal(0.29, *d.PointsPerMinute)
	s.Equal(14.85, *d.FantasyPointsStd)
}

func (s *ServicesTestSuite) TestDerivedStats_NoHistory() {
	p := s.createPlayer("New Cap", "Wales", "centre", false)

	d, err := s.stats.DerivedStats(s.ctx, p.ID)
	s.Require().NoError(err)
	s.Equal(0, d.TotalGames)
	s.Nil(d.AvgFantasyPoints)
	s.Nil(d.ExpectedMinutes)

	_, err = s.stats.DerivedStats(s.ctx, 999)
	s.ErrorIs(err, ErrNotFound)
}
