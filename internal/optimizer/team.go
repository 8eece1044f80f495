package optimizer

import (
	"context"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/fantasy-rugby/internal/rugby"
)

// Selection bonuses on top of a player's base predicted points.
const (
	BenchWeight    = 0.5
	CaptainBonus   = 1.0
	SuperSubBonus  = 2.5
	startWeight    = 1.0
	defaultTimeout = 30 * time.Second
)

// role is one way a player can be picked. A player takes at most one role,
// so start/bench exclusion and the captain and super-sub links become a
// single row per player.
type role struct {
	start    bool
	bench    bool
	captain  bool
	superSub bool
}

func (r role) selected() bool { return r.start || r.bench }

func (r role) weight() float64 {
	w := 0.0
	if r.start {
		w += startWeight
	}
	if r.bench {
		w += BenchWeight
	}
	if r.captain {
		w += CaptainBonus
	}
	if r.superSub {
		w += SuperSubBonus
	}
	return w
}

var (
	startingRoles = []role{
		{start: true},
		{start: true, captain: true},
	}
	benchRoles = []role{
		{bench: true},
		{bench: true, captain: true},
		{bench: true, superSub: true},
		{bench: true, captain: true, superSub: true},
	}
)

// TeamOptimiser selects a squad by solving the team program per request.
type TeamOptimiser struct {
	logger   *logrus.Logger
	maxNodes int
	timeout  time.Duration
}

// NewTeamOptimiser applies defaults for non-positive limits.
func NewTeamOptimiser(logger *logrus.Logger, maxNodes int, timeout time.Duration) *TeamOptimiser {
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}
	if maxNodes <= 0 {
		maxNodes = DefaultSolverOptions().MaxNodes
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &TeamOptimiser{logger: logger, maxNodes: maxNodes, timeout: timeout}
}

// OptimiseTeam runs a default optimiser.
func OptimiseTeam(ctx context.Context, players []OptimiserPlayer, req Request) *OptimisedTeam {
	return NewTeamOptimiser(nil, 0, 0).Optimise(ctx, players, req)
}

// variable maps a solver column back to a player and role.
type variable struct {
	player int
	role   role
}

type formulation struct {
	problem   *Problem
	variables []variable
}

// Optimise never returns an error: an empty pool or a non-optimal solve
// yields an empty team whose SolverStatus says why.
func (o *TeamOptimiser) Optimise(ctx context.Context, players []OptimiserPlayer, req Request) *OptimisedTeam {
	start := time.Now()
	log := o.logger.WithFields(logrus.Fields{
		"budget":          req.Budget,
		"max_per_country": req.MaxPerCountry,
		"include_bench":   req.IncludeBench,
	})

	candidates := filterPlayers(players, req, log)
	if len(candidates) == 0 {
		log.Info("No eligible players, returning empty team")
		return emptyTeam(req.Budget, StatusNotSolved)
	}

	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	f := buildFormulation(candidates, req)
	res := newSquadSearch(candidates, req, SolverOptions{MaxNodes: o.maxNodes}).run(ctx)

	log = log.WithFields(logrus.Fields{
		"candidates":  len(candidates),
		"variables":   f.problem.NumVars,
		"constraints": len(f.problem.Constraints),
		"nodes":       res.Nodes,
		"status":      res.Status,
		"duration_ms": time.Since(start).Milliseconds(),
	})

	x := f.encode(res)
	if res.Status != StatusOptimal || !f.problem.Feasible(x) || math.Abs(f.problem.Value(x)-res.Value) > feasibleTol {
		log.Warn("Team optimisation did not reach an optimal solution")
		team := emptyTeam(req.Budget, res.Status)
		if res.Status == StatusOptimal {
			team.SolverStatus = StatusError
		}
		team.NodesExplored = res.Nodes
		team.OptimizationTimeMs = time.Since(start).Milliseconds()
		return team
	}

	team := assembleTeam(candidates, f, x, req.Budget)
	team.NodesExplored = res.Nodes
	team.OptimizationTimeMs = time.Since(start).Milliseconds()

	log.WithFields(logrus.Fields{
		"total_cost":   team.TotalCost,
		"total_points": team.TotalPredictedPoints,
	}).Info("Team optimised")
	return team
}

// filterPlayers drops unavailable, excluded and unslottable players, keeping
// the first entry for a repeated id.
func filterPlayers(players []OptimiserPlayer, req Request, log *logrus.Entry) []OptimiserPlayer {
	excluded := make(map[uint]bool, len(req.ExcludedPlayers))
	for _, id := range req.ExcludedPlayers {
		excluded[id] = true
	}

	seen := make(map[uint]bool, len(players))
	filtered := make([]OptimiserPlayer, 0, len(players))
	for _, p := range players {
		if !p.IsAvailable || excluded[p.ID] || seen[p.ID] {
			continue
		}
		if !p.Position.Valid() {
			log.WithFields(logrus.Fields{
				"player_id": p.ID,
				"position":  p.Position,
			}).Warn("Skipping player with unknown position")
			continue
		}
		seen[p.ID] = true
		filtered = append(filtered, p)
	}
	return filtered
}

func buildFormulation(candidates []OptimiserPlayer, req Request) formulation {
	roles := startingRoles
	if req.IncludeBench {
		roles = append(append([]role{}, startingRoles...), benchRoles...)
	}

	f := formulation{problem: &Problem{}}
	byPlayer := make([][]int, len(candidates))
	for i, p := range candidates {
		for _, r := range roles {
			byPlayer[i] = append(byPlayer[i], len(f.variables))
			f.variables = append(f.variables, variable{player: i, role: r})
			f.problem.Objective = append(f.problem.Objective, p.PredictedPoints*r.weight())
		}
	}
	f.problem.NumVars = len(f.variables)

	terms := func(keep func(v variable) bool, coef func(v variable) float64) []Term {
		out := make([]Term, 0)
		for j, v := range f.variables {
			if keep(v) {
				out = append(out, Term{Var: j, Coef: coef(v)})
			}
		}
		return out
	}
	one := func(variable) float64 { return 1 }

	f.problem.AddConstraint("budget",
		terms(func(variable) bool { return true }, func(v variable) float64 { return candidates[v.player].Price }),
		LessEqual, req.Budget)

	for _, pos := range rugby.Positions {
		starters := terms(func(v variable) bool {
			return v.role.start && candidates[v.player].Position == pos
		}, one)
		if len(starters) == 0 {
			continue
		}
		f.problem.AddConstraint("position_"+string(pos), starters, LessEqual, float64(pos.Limit()))
	}

	if req.IncludeBench {
		f.problem.AddConstraint("bench_size",
			terms(func(v variable) bool { return v.role.bench }, one),
			LessEqual, rugby.BenchSize)
	}

	countries := make([]rugby.Country, 0, len(rugby.Countries))
	seenCountry := make(map[rugby.Country]bool)
	for _, p := range candidates {
		if !seenCountry[p.Country] {
			seenCountry[p.Country] = true
			countries = append(countries, p.Country)
		}
	}
	for _, country := range countries {
		f.problem.AddConstraint("country_"+string(country),
			terms(func(v variable) bool { return candidates[v.player].Country == country }, one),
			LessEqual, float64(req.MaxPerCountry))
	}

	for i, p := range candidates {
		own := make([]Term, 0, len(byPlayer[i]))
		for _, j := range byPlayer[i] {
			own = append(own, Term{Var: j, Coef: 1})
		}
		f.problem.AddConstraint(fmt.Sprintf("one_role_%d", p.ID), own, LessEqual, 1)
	}

	f.problem.AddConstraint("captain",
		terms(func(v variable) bool { return v.role.captain }, one),
		Equal, 1)

	if req.IncludeBench {
		f.problem.AddConstraint("super_sub",
			terms(func(v variable) bool { return v.role.superSub }, one),
			Equal, 1)
	}

	index := make(map[uint]int, len(candidates))
	for i, p := range candidates {
		index[p.ID] = i
	}
	for _, id := range req.LockedPlayers {
		i, ok := index[id]
		if !ok {
			continue
		}
		own := make([]Term, 0, len(byPlayer[i]))
		for _, j := range byPlayer[i] {
			own = append(own, Term{Var: j, Coef: 1})
		}
		f.problem.AddConstraint(fmt.Sprintf("locked_%d", id), own, GreaterEqual, 1)
	}

	return f
}

// encode writes a search result as a 0/1 vector over f's columns, nil when
// there is nothing to encode.
func (f formulation) encode(res squadResult) []float64 {
	if res.Status != StatusOptimal {
		return nil
	}
	x := make([]float64, f.problem.NumVars)
	for j, v := range f.variables {
		want := role{captain: v.player == res.Captain}
		switch res.Slots[v.player] {
		case slotStart:
			want.start = true
		case slotBench:
			want.bench = true
		case slotSuperSub:
			want.bench, want.superSub = true, true
		default:
			continue
		}
		if v.role == want {
			x[j] = 1
		}
	}
	return x
}

func assembleTeam(candidates []OptimiserPlayer, f formulation, x []float64, budget float64) *OptimisedTeam {
	team := &OptimisedTeam{
		StartingXV:   newStartingXV(),
		Bench:        []PlayerSummary{},
		EmptySlots:   []rugby.Position{},
		SolverStatus: StatusOptimal,
	}

	picked := make(map[int]role, rugby.StartingSize+rugby.BenchSize)
	for j, v := range f.variables {
		if x[j] == 1 {
			picked[v.player] = v.role
		}
	}

	var startPoints, benchPoints, captainPoints, superSubPoints float64
	for i, p := range candidates {
		r, ok := picked[i]
		if !ok || !r.selected() {
			continue
		}
		summary := summarise(p)
		team.TotalCost += p.Price

		if r.start {
			team.StartingXV.add(summary)
			startPoints += p.PredictedPoints
		} else {
			team.Bench = append(team.Bench, summary)
			benchPoints += p.PredictedPoints * BenchWeight
		}
		if r.captain {
			captain := summary
			team.Captain = &captain
			captainPoints = p.PredictedPoints * CaptainBonus
		}
		if r.superSub {
			superSub := summary
			team.SuperSub = &superSub
			superSubPoints = p.PredictedPoints * SuperSubBonus
		}
	}

	team.TotalPredictedPoints = startPoints + benchPoints + captainPoints + superSubPoints
	team.RemainingBudget = budget - team.TotalCost

	for _, pos := range rugby.Positions {
		if team.StartingXV.Count(pos) < pos.Limit() {
			team.EmptySlots = append(team.EmptySlots, pos)
		}
	}
	return team
}
