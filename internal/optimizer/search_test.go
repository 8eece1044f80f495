package optimizer

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stitts-dev/fantasy-rugby/internal/rugby"
)

func TestFlowNetwork_MaxWeight(t *testing.T) {
	// source 0, workers 1-2, jobs 3-4, sink 5
	g := newFlowNetwork(6)
	g.addArc(0, 1, 1)
	g.addArc(0, 2, 1)
	a13 := g.addArc(1, 3, 1)
	a14 := g.addArc(1, 4, 1)
	a23 := g.addArc(2, 3, 1)
	a24 := g.addArc(2, 4, 1)
	g.addArc(3, 5, 1)
	g.addArc(4, 5, 1)

	g.setWeight(a13, 5)
	g.setWeight(a14, 4)
	g.setWeight(a23, 4)
	g.setWeight(a24, -1)
	g.maxWeight(0, 5, 1e-12)

	// 1->4 and 2->3 beat the greedy 1->3 alone
	assert.Equal(t, 0, g.flow(a13))
	assert.Equal(t, 1, g.flow(a14))
	assert.Equal(t, 1, g.flow(a23))
	assert.Equal(t, 0, g.flow(a24))

	g.setWeight(a14, -2)
	g.setWeight(a23, -2)
	g.maxWeight(0, 5, 1e-12)
	assert.Equal(t, 1, g.flow(a13))
	assert.Equal(t, 0, g.flow(a14)+g.flow(a23)+g.flow(a24))
}

// exhaustiveBest scores every slot assignment and makes the best selected
// player captain.
func exhaustiveBest(players []OptimiserPlayer, req Request) (float64, bool) {
	options := 2
	if req.IncludeBench {
		options = 4
	}
	locked := map[uint]bool{}
	for _, id := range req.LockedPlayers {
		locked[id] = true
	}

	total := 1
	for range players {
		total *= options
	}
	slots := make([]slot, len(players))
	best, found := math.Inf(-1), false
	for code := 0; code < total; code++ {
		c := code
		for i := range slots {
			slots[i] = slot(c % options)
			c /= options
		}
		if v, ok := scoreSlots(players, req, slots, locked); ok && v > best {
			best, found = v, true
		}
	}
	return best, found
}

func scoreSlots(players []OptimiserPlayer, req Request, slots []slot, locked map[uint]bool) (float64, bool) {
	perPos := map[rugby.Position]int{}
	perCountry := map[rugby.Country]int{}
	cost, value, captain := 0.0, 0.0, math.Inf(-1)
	selected, bench, supers := 0, 0, 0
	for i, p := range players {
		s := slots[i]
		if s == slotNone {
			if locked[p.ID] {
				return 0, false
			}
			continue
		}
		selected++
		cost += p.Price
		value += s.weight() * p.PredictedPoints
		perCountry[p.Country]++
		switch s {
		case slotStart:
			perPos[p.Position]++
		case slotSuperSub:
			supers++
			bench++
		default:
			bench++
		}
		captain = math.Max(captain, p.PredictedPoints)
	}
	if selected == 0 || cost > req.Budget+1e-9 || bench > rugby.BenchSize {
		return 0, false
	}
	if req.IncludeBench && supers != 1 {
		return 0, false
	}
	for pos, k := range perPos {
		if k > pos.Limit() {
			return 0, false
		}
	}
	for _, k := range perCountry {
		if k > req.MaxPerCountry {
			return 0, false
		}
	}
	return value + CaptainBonus*captain, true
}

func randomPool(rng *rand.Rand, n int, positions []rugby.Position, countries []rugby.Country) []OptimiserPlayer {
	out := make([]OptimiserPlayer, n)
	for i := range out {
		price := 5 + float64(rng.Intn(31))*0.5
		points := math.Round((price*(0.4+rng.Float64())+rng.Float64()*6)*2) / 2
		out[i] = player(
			uint(i+1),
			fmt.Sprintf("Player %d", i+1),
			countries[rng.Intn(len(countries))],
			positions[i%len(positions)],
			price,
			points,
			true,
		)
	}
	return out
}

func TestOptimiseTeam_MatchesExhaustiveSearch(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	positions := []rugby.Position{rugby.Hooker, rugby.Prop, rugby.ScrumHalf, rugby.Centre}
	countries := rugby.Countries[:3]

	for trial := 0; trial < 40; trial++ {
		players := randomPool(rng, 8, positions, countries)
		req := Request{
			Budget:        30 + float64(rng.Intn(15))*5,
			MaxPerCountry: 1 + rng.Intn(3),
			IncludeBench:  trial%2 == 0,
		}
		if trial%5 == 0 {
			req.LockedPlayers = []uint{uint(1 + rng.Intn(len(players)))}
		}

		want, found := exhaustiveBest(players, req)
		team := OptimiseTeam(context.Background(), players, req)

		name := fmt.Sprintf("trial %d %+v", trial, req)
		if !found {
			assert.Equal(t, StatusInfeasible, team.SolverStatus, name)
			continue
		}
		require.Equal(t, StatusOptimal, team.SolverStatus, name)
		assert.InDelta(t, want, team.TotalPredictedPoints, 1e-6, name)
		assert.LessOrEqual(t, team.TotalCost, req.Budget+1e-9, name)
	}
}

func TestOptimiseTeam_LargePoolsSolveToOptimality(t *testing.T) {
	for _, n := range []int{160, 250} {
		t.Run(fmt.Sprintf("%d players", n), func(t *testing.T) {
			rng := rand.New(rand.NewSource(int64(n)))
			players := randomPool(rng, n, rugby.Positions, rugby.Countries)
			req := DefaultRequest()

			started := time.Now()
			team := NewTeamOptimiser(nil, 0, defaultTimeout).Optimise(context.Background(), players, req)
			elapsed := time.Since(started)

			require.Equal(t, StatusOptimal, team.SolverStatus)
			assert.Less(t, elapsed, defaultTimeout/3)
			assert.LessOrEqual(t, len(team.StartingXV.Players()), rugby.StartingSize)
			assert.LessOrEqual(t, len(team.Bench), rugby.BenchSize)
			assert.LessOrEqual(t, team.TotalCost, req.Budget+1e-9)
			require.NotNil(t, team.Captain)
			require.NotNil(t, team.SuperSub)

			perCountry := map[rugby.Country]int{}
			for _, p := range team.Selected() {
				perCountry[p.Country]++
			}
			for country, k := range perCountry {
				assert.LessOrEqual(t, k, req.MaxPerCountry, "country %s over cap", country)
			}
		})
	}
}

func TestOptimiseTeam_NodeLimit(t *testing.T) {
	// the top scorer is out of reach, so the first relaxed bound never closes
	players := []OptimiserPlayer{
		player(1, "Star", rugby.France, rugby.OutHalf, 50, 100, true),
		player(2, "A", rugby.Ireland, rugby.Prop, 6, 9, true),
		player(3, "B", rugby.England, rugby.Hooker, 7, 8, true),
		player(4, "C", rugby.Wales, rugby.Centre, 8, 10, true),
	}
	req := Request{Budget: 20, MaxPerCountry: 4}

	team := NewTeamOptimiser(nil, 1, 0).Optimise(context.Background(), players, req)
	assert.Equal(t, StatusNodeLimit, team.SolverStatus)
	assert.Equal(t, 1, team.NodesExplored)
	assert.Zero(t, team.TotalCost)

	team = OptimiseTeam(context.Background(), players, req)
	require.Equal(t, StatusOptimal, team.SolverStatus)
	for _, p := range team.Selected() {
		assert.NotEqual(t, uint(1), p.ID)
	}
	// C captains: 10 + 9 + 10
	assert.InDelta(t, 29.0, team.TotalPredictedPoints, 1e-9)
	assert.Equal(t, uint(4), team.Captain.ID)
}

func TestSquadSearch_CaptainIsBestSelected(t *testing.T) {
	players := samplePlayers()
	req := DefaultRequest()
	res := newSquadSearch(players, req, DefaultSolverOptions()).run(context.Background())
	require.Equal(t, StatusOptimal, res.Status)

	for i, s := range res.Slots {
		if s != slotNone {
			assert.LessOrEqual(t, players[i].PredictedPoints, players[res.Captain].PredictedPoints)
		}
	}
	assert.NotEqual(t, slotNone, res.Slots[res.Captain])
}
