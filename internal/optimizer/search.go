package optimizer

import (
	"context"
	"math"
	"sort"

	"github.com/stitts-dev/fantasy-rugby/internal/rugby"
)

// SolverOptions tune the squad search.
type SolverOptions struct {
	MaxNodes int
}

func DefaultSolverOptions() SolverOptions {
	return SolverOptions{MaxNodes: 200000}
}

const (
	pruneTol = 1e-9
	// lambdaSteps caps the multiplier updates spent on one node.
	lambdaSteps = 40
)

// slot is where a selected player sits.
type slot int8

const (
	slotNone slot = iota
	slotStart
	slotBench
	slotSuperSub
)

func (s slot) weight() float64 {
	switch s {
	case slotStart:
		return startWeight
	case slotBench:
		return BenchWeight
	case slotSuperSub:
		return BenchWeight + SuperSubBonus
	}
	return 0
}

// squadResult is the search outcome. Slots and Captain are set only when
// Status is optimal.
type squadResult struct {
	Status  Status
	Slots   []slot
	Captain int
	Value   float64
	Nodes   int
}

// selection is one flow solution: every constraint except the budget holds.
type selection struct {
	ok    bool
	slots []slot
	value float64
	cost  float64
}

// lagrangian is value + lambda*(budget - cost), the bound this selection
// proves for the multiplier it was solved at.
func (s selection) lagrangian(lambda, budget float64) float64 {
	return s.value + lambda*(budget-s.cost)
}

// squadSearch solves the team program exactly.
//
// Fix the captain c and forbid everyone ranked above c on points; any team
// is covered by the subproblem of its best-ranked player. What remains is a
// max-weight flow (countries -> players -> position, bench and super-sub
// slots) plus the budget row. The budget is priced into the arc weights with
// a multiplier lambda, which gives an upper bound for every lambda, and a
// depth-first branch-and-bound on player in/out closes the gap.
type squadSearch struct {
	players []OptimiserPlayer
	budget  float64
	bench   bool
	maxNode int

	order  []int
	locked []bool

	net          *flowNetwork
	source, sink int
	inArc        []int
	startArc     []int
	benchArc     []int
	superArc     []int
	superSink    int

	nodes     int
	best      []slot
	bestCap   int
	bestValue float64
}

type searchNode struct {
	fixed  []int8 // -1 out, 0 free, 1 in
	lambda float64
}

type nodeOutcome int

const (
	outcomePruned nodeOutcome = iota
	outcomeInfeasible
	outcomeSolved
	outcomeBranch
)

func newSquadSearch(players []OptimiserPlayer, req Request, opts SolverOptions) *squadSearch {
	n := len(players)
	s := &squadSearch{
		players:  players,
		budget:   req.Budget,
		bench:    req.IncludeBench,
		maxNode:  opts.MaxNodes,
		locked:   make([]bool, n),
		inArc:    make([]int, n),
		startArc: make([]int, n),
		benchArc: make([]int, n),
		superArc: make([]int, n),
		bestCap:  -1,
	}
	if s.maxNode <= 0 {
		s.maxNode = DefaultSolverOptions().MaxNodes
	}

	s.order = make([]int, n)
	for i := range s.order {
		s.order[i] = i
	}
	sort.SliceStable(s.order, func(a, b int) bool {
		return players[s.order[a]].PredictedPoints > players[s.order[b]].PredictedPoints
	})

	index := make(map[uint]int, n)
	for i, p := range players {
		index[p.ID] = i
	}
	for _, id := range req.LockedPlayers {
		if i, ok := index[id]; ok {
			s.locked[i] = true
		}
	}

	s.build(req.MaxPerCountry)
	return s
}

func (s *squadSearch) build(maxPerCountry int) {
	countryNode := make(map[rugby.Country]int)
	var countries []rugby.Country
	for _, p := range s.players {
		if _, ok := countryNode[p.Country]; !ok {
			countryNode[p.Country] = 0
			countries = append(countries, p.Country)
		}
	}

	// source, sink, countries, players, positions, bench, super-sub
	s.source, s.sink = 0, 1
	next := 2
	for _, c := range countries {
		countryNode[c] = next
		next++
	}
	firstPlayer := next
	next += len(s.players)
	posNode := make(map[rugby.Position]int, len(rugby.Positions))
	for _, pos := range rugby.Positions {
		posNode[pos] = next
		next++
	}
	benchNode, superNode := next, next+1
	next += 2

	s.net = newFlowNetwork(next)
	if maxPerCountry < 0 {
		maxPerCountry = 0
	}
	for _, c := range countries {
		s.net.addArc(s.source, countryNode[c], maxPerCountry)
	}
	for i, p := range s.players {
		node := firstPlayer + i
		s.inArc[i] = s.net.addArc(countryNode[p.Country], node, 1)
		s.startArc[i] = s.net.addArc(node, posNode[p.Position], 1)
		s.benchArc[i], s.superArc[i] = -1, -1
		if s.bench {
			s.benchArc[i] = s.net.addArc(node, benchNode, 1)
			s.superArc[i] = s.net.addArc(node, superNode, 1)
		}
	}
	for _, pos := range rugby.Positions {
		s.net.addArc(posNode[pos], s.sink, pos.Limit())
	}
	s.superSink = -1
	if s.bench {
		s.net.addArc(benchNode, s.sink, rugby.BenchSize-1)
		s.superSink = s.net.addArc(superNode, s.sink, 1)
	}
}

// arcWeight is a player's gain in a slot at multiplier lambda. costOnly
// drops the points so the flow finds the cheapest way to meet the forced
// requirements.
func (s *squadSearch) arcWeight(i int, at slot, lambda float64, costOnly bool) float64 {
	if costOnly {
		return -s.players[i].Price
	}
	return at.weight()*s.players[i].PredictedPoints - lambda*s.players[i].Price
}

// solveFlow returns the best selection at lambda. Forced players and the
// super-sub slot carry a weight larger than every other arc combined, so a
// selection missing one of them means none exists.
func (s *squadSearch) solveFlow(fixed []int8, lambda float64, costOnly bool) selection {
	span := 0.0
	for i := range s.players {
		if fixed[i] < 0 {
			continue
		}
		m := math.Abs(s.arcWeight(i, slotStart, lambda, costOnly))
		if s.bench {
			m = math.Max(m, math.Abs(s.arcWeight(i, slotBench, lambda, costOnly)))
			m = math.Max(m, math.Abs(s.arcWeight(i, slotSuperSub, lambda, costOnly)))
		}
		span += m
	}
	forced := 1 + 2*span

	for i := range s.players {
		capacity, w := 1, 0.0
		switch {
		case fixed[i] < 0:
			capacity = 0
		case fixed[i] > 0:
			w = forced
		}
		s.net.setCapacity(s.inArc[i], capacity)
		s.net.setWeight(s.inArc[i], w)
		s.net.setWeight(s.startArc[i], s.arcWeight(i, slotStart, lambda, costOnly))
		if s.bench {
			s.net.setWeight(s.benchArc[i], s.arcWeight(i, slotBench, lambda, costOnly))
			s.net.setWeight(s.superArc[i], s.arcWeight(i, slotSuperSub, lambda, costOnly))
		}
	}
	if s.bench {
		s.net.setWeight(s.superSink, forced)
	}

	s.net.maxWeight(s.source, s.sink, 1e-12*forced)

	sel := selection{slots: make([]slot, len(s.players))}
	for i, p := range s.players {
		if fixed[i] < 0 {
			continue
		}
		switch {
		case s.net.flow(s.startArc[i]) > 0:
			sel.slots[i] = slotStart
		case s.bench && s.net.flow(s.benchArc[i]) > 0:
			sel.slots[i] = slotBench
		case s.bench && s.net.flow(s.superArc[i]) > 0:
			sel.slots[i] = slotSuperSub
		default:
			if fixed[i] > 0 {
				return selection{}
			}
			continue
		}
		sel.value += sel.slots[i].weight() * p.PredictedPoints
		sel.cost += p.Price
	}
	if s.bench && s.net.flow(s.superSink) == 0 {
		return selection{}
	}
	sel.ok = true
	return sel
}

func (s *squadSearch) withinBudget(sel selection) bool {
	return sel.cost <= s.budget+pruneTol
}

// offer records sel as the incumbent if it beats it. The captain is the
// selected player ranked highest on points.
func (s *squadSearch) offer(sel selection) {
	if !sel.ok || !s.withinBudget(sel) {
		return
	}
	captain := -1
	for _, i := range s.order {
		if sel.slots[i] != slotNone {
			captain = i
			break
		}
	}
	if captain < 0 {
		return
	}
	value := sel.value + CaptainBonus*s.players[captain].PredictedPoints
	if s.best != nil && value <= s.bestValue+pruneTol {
		return
	}
	s.best = append([]slot(nil), sel.slots...)
	s.bestCap = captain
	s.bestValue = value
}

func (s *squadSearch) prunes(bound float64) bool {
	return s.best != nil && bound <= s.bestValue+pruneTol
}

// bound prices the budget at the best multiplier it can find for nd. bonus
// is added to every bound and must cover the captain's extra points.
func (s *squadSearch) bound(nd searchNode, bonus float64) (nodeOutcome, float64, int) {
	lambda := nd.lambda
	sel := s.solveFlow(nd.fixed, lambda, false)
	if !sel.ok {
		return outcomeInfeasible, lambda, -1
	}
	best := sel.lagrangian(lambda, s.budget) + bonus
	if s.prunes(best) {
		return outcomePruned, lambda, -1
	}

	var over, under selection
	if s.withinBudget(sel) {
		s.offer(sel)
		if lambda == 0 {
			return outcomeSolved, lambda, -1
		}
		under = sel
		first := s.solveFlow(nd.fixed, 0, false)
		if !first.ok {
			return outcomeInfeasible, lambda, -1
		}
		if s.withinBudget(first) {
			s.offer(first)
			return outcomeSolved, 0, -1
		}
		best = math.Min(best, first.value+bonus)
		if s.prunes(best) {
			return outcomePruned, lambda, -1
		}
		over = first
	} else {
		over = sel
		cheapest := s.solveFlow(nd.fixed, 0, true)
		if !cheapest.ok || !s.withinBudget(cheapest) {
			return outcomeInfeasible, lambda, -1
		}
		s.offer(cheapest)
		under = cheapest
	}

	for step := 0; step < lambdaSteps; step++ {
		lambda = (over.value - under.value) / (over.cost - under.cost)
		if lambda < 0 {
			lambda = 0
		}
		sel := s.solveFlow(nd.fixed, lambda, false)
		if !sel.ok {
			return outcomeInfeasible, lambda, -1
		}
		l := sel.lagrangian(lambda, s.budget) + bonus
		best = math.Min(best, l)
		if s.prunes(best) {
			return outcomePruned, lambda, -1
		}
		line := under.lagrangian(lambda, s.budget) + bonus
		if s.withinBudget(sel) {
			s.offer(sel)
			under = sel
		} else {
			over = sel
		}
		if l <= line+pruneTol {
			break
		}
	}

	if under.value+bonus >= best-pruneTol {
		return outcomeSolved, lambda, -1
	}

	branch := -1
	for i := range s.players {
		if nd.fixed[i] != 0 || (over.slots[i] == slotNone) == (under.slots[i] == slotNone) {
			continue
		}
		if branch < 0 || s.players[i].Price > s.players[branch].Price {
			branch = i
		}
	}
	if branch < 0 {
		return outcomeSolved, lambda, -1
	}
	return outcomeBranch, lambda, branch
}

// run enumerates captains by points and searches each subproblem.
func (s *squadSearch) run(ctx context.Context) squadResult {
	n := len(s.players)
	limited := func(status Status) squadResult {
		return squadResult{Status: status, Nodes: s.nodes}
	}
	if ctx.Err() != nil {
		return limited(StatusCancelled)
	}

	lambda := 0.0
	for r, c := range s.order {
		if ctx.Err() != nil {
			return limited(StatusCancelled)
		}
		if s.nodes >= s.maxNode {
			return limited(StatusNodeLimit)
		}
		fixed := make([]int8, n)
		for _, above := range s.order[:r] {
			fixed[above] = -1
		}
		blocked := false
		for i, l := range s.locked {
			if !l {
				continue
			}
			if fixed[i] < 0 {
				blocked = true
			}
			fixed[i] = 1
		}
		if blocked {
			// a locked player outranks every captain from here on
			break
		}
		bonus := CaptainBonus * s.players[c].PredictedPoints

		// Later captains only lose players and bonus, so once this relaxed
		// bound cannot beat the incumbent nothing after it can either.
		s.nodes++
		outcome, lam, _ := s.bound(searchNode{fixed: fixed, lambda: lambda}, bonus)
		if outcome == outcomeInfeasible || outcome == outcomePruned {
			break
		}
		lambda = lam

		fixed[c] = 1
		stack := []searchNode{{fixed: fixed, lambda: lambda}}
		for len(stack) > 0 {
			if ctx.Err() != nil {
				return limited(StatusCancelled)
			}
			if s.nodes >= s.maxNode {
				return limited(StatusNodeLimit)
			}
			nd := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			s.nodes++

			outcome, lam, j := s.bound(nd, bonus)
			if outcome != outcomeBranch {
				continue
			}
			out := append([]int8(nil), nd.fixed...)
			out[j] = -1
			in := append([]int8(nil), nd.fixed...)
			in[j] = 1
			stack = append(stack,
				searchNode{fixed: out, lambda: lam},
				searchNode{fixed: in, lambda: lam},
			)
		}
	}

	if s.best == nil {
		return limited(StatusInfeasible)
	}
	return squadResult{
		Status:  StatusOptimal,
		Slots:   s.best,
		Captain: s.bestCap,
		Value:   s.bestValue,
		Nodes:   s.nodes,
	}
}
