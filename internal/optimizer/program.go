package optimizer

import (
	"fmt"
	"math"
)

// Sense is the direction of a linear constraint.
type Sense int

const (
	LessEqual Sense = iota
	GreaterEqual
	Equal
)

// Term is coef * x[Var].
type Term struct {
	Var  int
	Coef float64
}

// Constraint is Σ terms (sense) RHS.
type Constraint struct {
	Name  string
	Terms []Term
	Sense Sense
	RHS   float64
}

// Problem is a 0/1 integer program: maximise Objective·x subject to
// Constraints with every x binary. The squad search solves the team program
// combinatorially; Problem states it row by row and checks what comes back.
type Problem struct {
	NumVars     int
	Objective   []float64
	Constraints []Constraint
}

// Status is the outcome of a solve.
type Status string

const (
	StatusOptimal    Status = "optimal"
	StatusInfeasible Status = "infeasible"
	StatusNodeLimit  Status = "node_limit"
	StatusCancelled  Status = "cancelled"
	StatusError      Status = "error"
	StatusNotSolved  Status = "not_solved"
)

const feasibleTol = 1e-6

// AddConstraint appends a constraint, skipping zero coefficients.
func (p *Problem) AddConstraint(name string, terms []Term, sense Sense, rhs float64) {
	kept := make([]Term, 0, len(terms))
	for _, t := range terms {
		if t.Coef != 0 {
			kept = append(kept, t)
		}
	}
	p.Constraints = append(p.Constraints, Constraint{Name: name, Terms: kept, Sense: sense, RHS: rhs})
}

// Validate checks indices and lengths.
func (p *Problem) Validate() error {
	if p.NumVars <= 0 {
		return fmt.Errorf("problem has no variables")
	}
	if len(p.Objective) != p.NumVars {
		return fmt.Errorf("objective has %d coefficients for %d variables", len(p.Objective), p.NumVars)
	}
	for _, c := range p.Constraints {
		for _, t := range c.Terms {
			if t.Var < 0 || t.Var >= p.NumVars {
				return fmt.Errorf("constraint %q references variable %d out of range", c.Name, t.Var)
			}
		}
	}
	return nil
}

// Feasible reports whether x is binary and satisfies every constraint.
func (p *Problem) Feasible(x []float64) bool {
	if len(x) != p.NumVars {
		return false
	}
	for _, v := range x {
		if v != 0 && v != 1 {
			return false
		}
	}
	for _, c := range p.Constraints {
		lhs := 0.0
		for _, t := range c.Terms {
			lhs += t.Coef * x[t.Var]
		}
		switch c.Sense {
		case LessEqual:
			if lhs > c.RHS+feasibleTol {
				return false
			}
		case GreaterEqual:
			if lhs < c.RHS-feasibleTol {
				return false
			}
		case Equal:
			if math.Abs(lhs-c.RHS) > feasibleTol {
				return false
			}
		}
	}
	return true
}

// Value is the objective at x.
func (p *Problem) Value(x []float64) float64 {
	total := 0.0
	for i, c := range p.Objective {
		total += c * x[i]
	}
	return total
}
