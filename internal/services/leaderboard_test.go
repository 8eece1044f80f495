package services

func (s *ServicesTestSuite) seedLeaderboard() {
	dupont := s.createPlayer("Antoine Dupont", "France", "scrum_half", true)
	ramos := s.createPlayer("Thomas Ramos", "France", "back_3", true)
	crowley := s.createPlayer("Jack Crowley", "Ireland", "out_half", true)
	lowe := s.createPlayer("James Lowe", "Ireland", "back_3", false)

	s.recordMatch(dupont.ID, 1, 1, 2, 0, true, 80)
	s.recordMatch(dupont.ID, 2, 8, 1, 0, true, 80)
	s.recordMatch(ramos.ID, 1, 1, 1, 0, true, 80)
	s.recordMatch(crowley.ID, 1, 1, 0, 0, true, 80)
	s.recordMatch(lowe.ID, 1, 1, 2, 0, true, 80)
	s.recordMatch(lowe.ID, 2, 8, 2, 0, true, 80)
}

func (s *ServicesTestSuite) TestLeaderboard_ByPosition() {
	s.seedLeaderboard()

	boards, err := s.stats.Leaderboard(s.ctx, LeaderboardQuery{Stat: "tries", GroupBy: GroupByPosition})
	s.Require().NoError(err)
	s.Require().Len(boards, 3)

	s.Equal("scrum_half", boards[0].Group)
	s.Require().Len(boards[0].Leaders, 1)
	s.Equal("Antoine Dupont", boards[0].Leaders[0].Name)
	s.Equal(2, boards[0].Leaders[0].Games)
	s.Equal(3.0, boards[0].Leaders[0].Total)
	s.Equal(1.5, boards[0].Leaders[0].PerGame)

	s.Equal("out_half", boards[1].Group)
	s.Equal(0.0, boards[1].Leaders[0].Total)

	s.Equal("back_3", boards[2].Group)
	s.Require().Len(boards[2].Leaders, 2)
	s.Equal("James Lowe", boards[2].Leaders[0].Name)
	s.Equal(4.0, boards[2].Leaders[0].Total)
	s.Equal("Thomas Ramos", boards[2].Leaders[1].Name)

	boards, err = s.stats.Leaderboard(s.ctx, LeaderboardQuery{Stat: "fantasy_points", GroupBy: GroupByPosition})
	s.Require().NoError(err)
	s.Require().Len(boards, 3)
	s.InDelta(40.0, boards[2].Leaders[0].Total, 1e-9)
	s.InDelta(20.0, boards[2].Leaders[0].PerGame, 1e-9)
}

func (s *ServicesTestSuite) TestLeaderboard_ByCountryWithLimit() {
	s.seedLeaderboard()

	boards, err := s.stats.Leaderboard(s.ctx, LeaderboardQuery{Stat: "tries", GroupBy: GroupByCountry, Limit: 1})
	s.Require().NoError(err)
	s.Require().Len(boards, 2)
	s.Equal("Ireland", boards[0].Group)
	s.Require().Len(boards[0].Leaders, 1)
	s.Equal("James Lowe", boards[0].Leaders[0].Name)
	s.Equal("France", boards[1].Group)
	s.Require().Len(boards[1].Leaders, 1)
	s.Equal("Antoine Dupont", boards[1].Leaders[0].Name)

	boards, err = s.stats.Leaderboard(s.ctx, LeaderboardQuery{Stat: "tries", GroupBy: GroupByCountry, Season: 2024})
	s.Require().NoError(err)
	s.Empty(boards)
}

func (s *ServicesTestSuite) TestLeaderboard_RejectsUnknownInputs() {
	_, err := s.stats.Leaderboard(s.ctx, LeaderboardQuery{Stat: "name", GroupBy: GroupByCountry})
	s.ErrorIs(err, ErrInvalidInput)

	_, err = s.stats.Leaderboard(s.ctx, LeaderboardQuery{Stat: "tries", GroupBy: "club"})
	s.ErrorIs(err, ErrInvalidInput)
}
