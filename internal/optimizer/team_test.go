package optimizer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/stitts-dev/fantasy-rugby/internal/rugby"
)

func player(id uint, name string, country rugby.Country, pos rugby.Position, price, points float64, starting bool) OptimiserPlayer {
	return OptimiserPlayer{
		ID:              id,
		Name:            name,
		Country:         country,
		Position:        pos,
		Price:           price,
		PredictedPoints: points,
		IsAvailable:     true,
		IsStarting:      &starting,
	}
}

// samplePlayers covers every position and country.
func samplePlayers() []OptimiserPlayer {
	return []OptimiserPlayer{
		player(1, "Prop 1", rugby.Ireland, rugby.Prop, 10, 12, true),
		player(2, "Prop 2", rugby.England, rugby.Prop, 9, 10, true),
		player(3, "Prop 3", rugby.France, rugby.Prop, 8, 9, true),
		player(4, "Hooker 1", rugby.Ireland, rugby.Hooker, 12, 15, true),
		player(5, "Hooker 2", rugby.Wales, rugby.Hooker, 10, 12, true),
		player(6, "Lock 1", rugby.Ireland, rugby.SecondRow, 11, 13, true),
		player(7, "Lock 2", rugby.England, rugby.SecondRow, 10, 11, true),
		player(8, "Lock 3", rugby.Scotland, rugby.SecondRow, 9, 10, true),
		player(9, "Flanker 1", rugby.France, rugby.BackRow, 13, 18, true),
		player(10, "Flanker 2", rugby.Ireland, rugby.BackRow, 12, 16, true),
		player(11, "Number 8", rugby.England, rugby.BackRow, 14, 17, true),
		player(12, "Flanker 3", rugby.Italy, rugby.BackRow, 8, 9, true),
		player(13, "SH 1", rugby.France, rugby.ScrumHalf, 15, 20, true),
		player(14, "SH 2", rugby.Wales, rugby.ScrumHalf, 12, 15, true),
		player(15, "OH 1", rugby.Ireland, rugby.OutHalf, 16, 22, true),
		player(16, "OH 2", rugby.England, rugby.OutHalf, 14, 18, true),
		player(17, "Centre 1", rugby.France, rugby.Centre, 13, 16, true),
		player(18, "Centre 2", rugby.Scotland, rugby.Centre, 11, 13, true),
		player(19, "Centre 3", rugby.Wales, rugby.Centre, 10, 12, true),
		player(20, "Wing 1", rugby.France, rugby.Back3, 14, 19, true),
		player(21, "Wing 2", rugby.Ireland, rugby.Back3, 13, 17, true),
		player(22, "Fullback 1", rugby.England, rugby.Back3, 15, 21, true),
		player(23, "Wing 3", rugby.Italy, rugby.Back3, 9, 11, true),
		player(24, "Bench Prop", rugby.Scotland, rugby.Prop, 7, 6, false),
		player(25, "Bench Hooker", rugby.Italy, rugby.Hooker, 6, 5, false),
		player(26, "Bench SH", rugby.Wales, rugby.ScrumHalf, 8, 8, false),
	}
}

type TeamOptimiserTestSuite struct {
	suite.Suite
	players   []OptimiserPlayer
	optimiser *TeamOptimiser
}

func (suite *TeamOptimiserTestSuite) SetupTest() {
	suite.players = samplePlayers()
	suite.optimiser = NewTeamOptimiser(nil, 0, 0)
}

func (suite *TeamOptimiserTestSuite) optimise(req Request) *OptimisedTeam {
	return suite.optimiser.Optimise(context.Background(), suite.players, req)
}

// assertValidTeam checks every selection rule on a solved team.
func (suite *TeamOptimiserTestSuite) assertValidTeam(team *OptimisedTeam, req Request) {
	t := suite.T()
	require.Equal(t, StatusOptimal, team.SolverStatus)

	selected := team.Selected()
	cost := 0.0
	perCountry := map[rugby.Country]int{}
	seen := map[uint]bool{}
	for _, p := range selected {
		assert.False(t, seen[p.ID], "player %d selected twice", p.ID)
		seen[p.ID] = true
		cost += p.Price
		perCountry[p.Country]++
	}

	assert.InDelta(t, cost, team.TotalCost, 1e-9)
	assert.LessOrEqual(t, team.TotalCost, req.Budget+1e-9)
	assert.InDelta(t, req.Budget-team.TotalCost, team.RemainingBudget, 1e-9)
	for country, n := range perCountry {
		assert.LessOrEqual(t, n, req.MaxPerCountry, "country %s over cap", country)
	}
	for _, pos := range rugby.Positions {
		assert.LessOrEqual(t, team.StartingXV.Count(pos), pos.Limit(), "position %s over limit", pos)
	}
	assert.LessOrEqual(t, len(team.Bench), rugby.BenchSize)

	require.NotNil(t, team.Captain)
	assert.True(t, seen[team.Captain.ID], "captain must be selected")

	if req.IncludeBench {
		require.NotNil(t, team.SuperSub)
		onBench := false
		for _, b := range team.Bench {
			if b.ID == team.SuperSub.ID {
				onBench = true
			}
		}
		assert.True(t, onBench, "super-sub must be on the bench")
	} else {
		assert.Empty(t, team.Bench)
		assert.Nil(t, team.SuperSub)
	}
}

func (suite *TeamOptimiserTestSuite) TestDefaultRequestIsFeasible() {
	req := DefaultRequest()
	team := suite.optimise(req)
	suite.assertValidTeam(team, req)
	suite.Greater(team.TotalPredictedPoints, 0.0)
}

func (suite *TeamOptimiserTestSuite) TestTightBudget() {
	req := DefaultRequest()
	req.Budget = 100
	team := suite.optimise(req)
	suite.LessOrEqual(team.TotalCost, 100.0)
	if team.Feasible() {
		suite.assertValidTeam(team, req)
	}
}

func (suite *TeamOptimiserTestSuite) TestLockedPlayerSelected() {
	req := DefaultRequest()
	req.LockedPlayers = []uint{25, 999}
	team := suite.optimise(req)
	suite.assertValidTeam(team, req)

	ids := map[uint]bool{}
	for _, p := range team.Selected() {
		ids[p.ID] = true
	}
	suite.True(ids[25])
}

func (suite *TeamOptimiserTestSuite) TestExcludedPlayerNeverSelected() {
	req := DefaultRequest()
	req.ExcludedPlayers = []uint{15, 22}
	team := suite.optimise(req)
	suite.assertValidTeam(team, req)

	for _, p := range team.Selected() {
		suite.NotEqual(uint(15), p.ID)
		suite.NotEqual(uint(22), p.ID)
	}
}

func (suite *TeamOptimiserTestSuite) TestUnavailablePlayersIgnored() {
	for i := range suite.players {
		if suite.players[i].Position == rugby.OutHalf {
			suite.players[i].IsAvailable = false
		}
	}
	req := DefaultRequest()
	team := suite.optimise(req)
	suite.assertValidTeam(team, req)
	suite.Nil(team.StartingXV.OutHalf)
	suite.Contains(team.EmptySlots, rugby.OutHalf)
}

func (suite *TeamOptimiserTestSuite) TestWithoutBench() {
	req := DefaultRequest()
	req.IncludeBench = false
	team := suite.optimise(req)
	suite.assertValidTeam(team, req)
}

func (suite *TeamOptimiserTestSuite) TestCountryCapOfOne() {
	req := DefaultRequest()
	req.MaxPerCountry = 1
	team := suite.optimise(req)
	suite.assertValidTeam(team, req)
	suite.LessOrEqual(len(team.Selected()), len(rugby.Countries))
}

func (suite *TeamOptimiserTestSuite) TestInfeasibleFailsSoft() {
	req := DefaultRequest()
	req.MaxPerCountry = 0
	team := suite.optimise(req)

	suite.Equal(StatusInfeasible, team.SolverStatus)
	suite.False(team.Feasible())
	suite.Zero(team.TotalCost)
	suite.Zero(team.TotalPredictedPoints)
	suite.Equal(req.Budget, team.RemainingBudget)
	suite.Equal(rugby.Positions, team.EmptySlots)
	suite.Empty(team.Bench)
	suite.Nil(team.Captain)
	suite.Nil(team.SuperSub)
}

func TestTeamOptimiserTestSuite(t *testing.T) {
	suite.Run(t, new(TeamOptimiserTestSuite))
}

func TestOptimiseTeam_EmptyRoster(t *testing.T) {
	team := OptimiseTeam(context.Background(), nil, DefaultRequest())
	assert.Equal(t, 0.0, team.TotalCost)
	assert.Equal(t, 0.0, team.TotalPredictedPoints)
	assert.Equal(t, 230.0, team.RemainingBudget)
	assert.Equal(t, rugby.Positions, team.EmptySlots)
	assert.Equal(t, StatusNotSolved, team.SolverStatus)
	assert.NotNil(t, team.Bench)
	assert.NotNil(t, team.StartingXV.Props)
}

func TestOptimiseTeam_ExactStartersAndCaptain(t *testing.T) {
	players := []OptimiserPlayer{
		player(1, "A", rugby.Ireland, rugby.Prop, 5, 10, true),
		player(2, "B", rugby.England, rugby.Hooker, 5, 8, true),
	}
	req := Request{Budget: 10, MaxPerCountry: 4}

	team := OptimiseTeam(context.Background(), players, req)
	require.Equal(t, StatusOptimal, team.SolverStatus)
	require.Len(t, team.StartingXV.Props, 1)
	require.NotNil(t, team.StartingXV.Hooker)
	assert.Equal(t, uint(1), team.Captain.ID)
	// 10 + 8 + captain 10
	assert.InDelta(t, 28.0, team.TotalPredictedPoints, 1e-9)
	assert.InDelta(t, 0.0, team.RemainingBudget, 1e-9)
}

func TestOptimiseTeam_CaptainCanBeSuperSub(t *testing.T) {
	players := []OptimiserPlayer{
		player(1, "A", rugby.Ireland, rugby.Prop, 5, 10, true),
		player(2, "B", rugby.England, rugby.Prop, 5, 6, true),
		player(3, "C", rugby.France, rugby.Prop, 5, 4, true),
	}
	req := Request{Budget: 15, MaxPerCountry: 4, IncludeBench: true}

	team := OptimiseTeam(context.Background(), players, req)
	require.Equal(t, StatusOptimal, team.SolverStatus)

	// B and C start, A is benched as captain and super-sub:
	// 6 + 4 + 0.5*10 + 10 + 2.5*10
	assert.InDelta(t, 50.0, team.TotalPredictedPoints, 1e-9)
	require.Len(t, team.Bench, 1)
	assert.Equal(t, uint(1), team.Bench[0].ID)
	assert.Equal(t, uint(1), team.Captain.ID)
	assert.Equal(t, uint(1), team.SuperSub.ID)
	assert.Len(t, team.StartingXV.Props, 2)
}

func TestOptimiseTeam_SkipsUnknownPositionsAndDuplicates(t *testing.T) {
	players := []OptimiserPlayer{
		player(1, "A", rugby.Ireland, rugby.Prop, 5, 10, true),
		player(1, "A again", rugby.Ireland, rugby.Prop, 1, 50, true),
		player(2, "Utility", rugby.Wales, rugby.Position("utility"), 1, 100, true),
	}
	team := OptimiseTeam(context.Background(), players, Request{Budget: 50, MaxPerCountry: 4})
	require.Equal(t, StatusOptimal, team.SolverStatus)
	require.Len(t, team.Selected(), 1)
	assert.Equal(t, "A", team.Selected()[0].Name)
}

func TestOptimiseTeam_HonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	team := OptimiseTeam(ctx, samplePlayers(), DefaultRequest())
	assert.Equal(t, StatusCancelled, team.SolverStatus)
	assert.Zero(t, team.TotalCost)
}
