package optimizer

import (
	"github.com/stitts-dev/fantasy-rugby/internal/rugby"
)

// OptimiserPlayer is the flattened view of one player for one round.
type OptimiserPlayer struct {
	ID              uint           `json:"id"`
	Name            string         `json:"name"`
	Country         rugby.Country  `json:"country"`
	Position        rugby.Position `json:"fantasy_position"`
	Price           float64        `json:"price"`
	PredictedPoints float64        `json:"predicted_points"`
	IsAvailable     bool           `json:"is_available"`
	IsStarting      *bool          `json:"is_starting,omitempty"`
}

// Request carries the caller's constraints.
type Request struct {
	Budget          float64 `json:"budget"`
	MaxPerCountry   int     `json:"max_per_country"`
	LockedPlayers   []uint  `json:"locked_players"`
	ExcludedPlayers []uint  `json:"excluded_players"`
	IncludeBench    bool    `json:"include_bench"`
}

func DefaultRequest() Request {
	return Request{
		Budget:        230,
		MaxPerCountry: 4,
		IncludeBench:  true,
	}
}

// PlayerSummary is how a selected player is rendered in a team.
type PlayerSummary struct {
	ID              uint           `json:"id"`
	Name            string         `json:"name"`
	Country         rugby.Country  `json:"country"`
	Position        rugby.Position `json:"fantasy_position"`
	Price           float64        `json:"price"`
	PredictedPoints float64        `json:"predicted_points"`
	IsAvailable     bool           `json:"is_available"`
	IsStarting      *bool          `json:"is_starting,omitempty"`
}

func summarise(p OptimiserPlayer) PlayerSummary {
	return PlayerSummary(p)
}

// StartingXV buckets the starters by slot.
type StartingXV struct {
	Props     []PlayerSummary `json:"props"`
	Hooker    *PlayerSummary  `json:"hooker"`
	SecondRow []PlayerSummary `json:"second_row"`
	BackRow   []PlayerSummary `json:"back_row"`
	ScrumHalf *PlayerSummary  `json:"scrum_half"`
	OutHalf   *PlayerSummary  `json:"out_half"`
	Centres   []PlayerSummary `json:"centres"`
	Back3     []PlayerSummary `json:"back_3"`
}

func newStartingXV() StartingXV {
	return StartingXV{
		Props:     []PlayerSummary{},
		SecondRow: []PlayerSummary{},
		BackRow:   []PlayerSummary{},
		Centres:   []PlayerSummary{},
		Back3:     []PlayerSummary{},
	}
}

func (xv *StartingXV) add(p PlayerSummary) {
	switch p.Position {
	case rugby.Prop:
		xv.Props = append(xv.Props, p)
	case rugby.Hooker:
		if xv.Hooker == nil {
			xv.Hooker = &p
		}
	case rugby.SecondRow:
		xv.SecondRow = append(xv.SecondRow, p)
	case rugby.BackRow:
		xv.BackRow = append(xv.BackRow, p)
	case rugby.ScrumHalf:
		if xv.ScrumHalf == nil {
			xv.ScrumHalf = &p
		}
	case rugby.OutHalf:
		if xv.OutHalf == nil {
			xv.OutHalf = &p
		}
	case rugby.Centre:
		xv.Centres = append(xv.Centres, p)
	case rugby.Back3:
		xv.Back3 = append(xv.Back3, p)
	}
}

// Count returns how many starters fill position.
func (xv StartingXV) Count(position rugby.Position) int {
	switch position {
	case rugby.Prop:
		return len(xv.Props)
	case rugby.Hooker:
		return boolCount(xv.Hooker != nil)
	case rugby.SecondRow:
		return len(xv.SecondRow)
	case rugby.BackRow:
		return len(xv.BackRow)
	case rugby.ScrumHalf:
		return boolCount(xv.ScrumHalf != nil)
	case rugby.OutHalf:
		return boolCount(xv.OutHalf != nil)
	case rugby.Centre:
		return len(xv.Centres)
	case rugby.Back3:
		return len(xv.Back3)
	}
	return 0
}

// Players flattens the XV front row first.
func (xv StartingXV) Players() []PlayerSummary {
	out := make([]PlayerSummary, 0, rugby.StartingSize)
	out = append(out, xv.Props...)
	if xv.Hooker != nil {
		out = append(out, *xv.Hooker)
	}
	out = append(out, xv.SecondRow...)
	out = append(out, xv.BackRow...)
	if xv.ScrumHalf != nil {
		out = append(out, *xv.ScrumHalf)
	}
	if xv.OutHalf != nil {
		out = append(out, *xv.OutHalf)
	}
	out = append(out, xv.Centres...)
	out = append(out, xv.Back3...)
	return out
}

func boolCount(b bool) int {
	if b {
		return 1
	}
	return 0
}

// OptimisedTeam is the solver output. A failed solve is reported as an empty
// team with zero totals and every position in EmptySlots.
type OptimisedTeam struct {
	StartingXV           StartingXV       `json:"starting_xv"`
	Bench                []PlayerSummary  `json:"bench"`
	Captain              *PlayerSummary   `json:"captain"`
	SuperSub             *PlayerSummary   `json:"super_sub"`
	TotalCost            float64          `json:"total_cost"`
	TotalPredictedPoints float64          `json:"total_predicted_points"`
	RemainingBudget      float64          `json:"remaining_budget"`
	EmptySlots           []rugby.Position `json:"empty_slots"`
	SolverStatus         Status           `json:"solver_status"`
	NodesExplored        int              `json:"nodes_explored"`
	OptimizationTimeMs   int64            `json:"optimization_time_ms"`
}

// Feasible reports whether the solver produced a team.
func (t *OptimisedTeam) Feasible() bool {
	return t.SolverStatus == StatusOptimal
}

// Selected returns starters then bench.
func (t *OptimisedTeam) Selected() []PlayerSummary {
	return append(t.StartingXV.Players(), t.Bench...)
}

func emptyTeam(budget float64, status Status) *OptimisedTeam {
	slots := make([]rugby.Position, len(rugby.Positions))
	copy(slots, rugby.Positions)
	return &OptimisedTeam{
		StartingXV:      newStartingXV(),
		Bench:           []PlayerSummary{},
		RemainingBudget: budget,
		EmptySlots:      slots,
		SolverStatus:    status,
	}
}
