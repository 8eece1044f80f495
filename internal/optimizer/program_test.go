package optimizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func knapsack() *Problem {
	p := &Problem{NumVars: 3, Objective: []float64{5, 4, 3}}
	p.AddConstraint("weight", []Term{{0, 2}, {1, 3}, {2, 1}}, LessEqual, 5)
	return p
}

func TestProblem_Feasible(t *testing.T) {
	p := knapsack()
	assert.True(t, p.Feasible([]float64{1, 1, 0}))
	assert.False(t, p.Feasible([]float64{1, 1, 1}))
	assert.False(t, p.Feasible([]float64{0.5, 0, 0}))
	assert.False(t, p.Feasible([]float64{1, 0}))
}

func TestAddConstraint_DropsZeroCoefficients(t *testing.T) {
	p := &Problem{NumVars: 2, Objective: []float64{1, 1}}
	p.AddConstraint("sparse", []Term{{0, 0}, {1, 2}}, LessEqual, 2)
	require.Len(t, p.Constraints, 1)
	assert.Equal(t, []Term{{1, 2}}, p.Constraints[0].Terms)
}

func TestProblem_EqualityAndGreaterEqual(t *testing.T) {
	p := &Problem{NumVars: 2, Objective: []float64{2, 3}}
	p.AddConstraint("pick_one", []Term{{0, 1}, {1, 1}}, Equal, 1)
	p.AddConstraint("first", []Term{{0, 1}}, GreaterEqual, 1)

	assert.True(t, p.Feasible([]float64{1, 0}))
	assert.False(t, p.Feasible([]float64{0, 1}))
	assert.False(t, p.Feasible([]float64{1, 1}))
	assert.InDelta(t, 2.0, p.Value([]float64{1, 0}), 1e-12)
}

func TestProblem_Validate(t *testing.T) {
	require.NoError(t, knapsack().Validate())
	assert.Error(t, (&Problem{}).Validate())
	assert.Error(t, (&Problem{NumVars: 2, Objective: []float64{1}}).Validate())

	p := &Problem{NumVars: 1, Objective: []float64{1}}
	p.AddConstraint("bad", []Term{{3, 1}}, LessEqual, 1)
	assert.Error(t, p.Validate())
}
