package opt

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwbudde/gonlopt/internal/nlopt"
	"github.com/cwbudde/gonlopt/internal/problems"
)

func TestNLoptAdapterTutorial(t *testing.T) {
	a := NewNLopt(NLoptOptions{Stops: []nlopt.StopCond{nlopt.XTolRel(1e-4)}})

	var events []Evaluation
	res, err := a.Run(context.Background(), problems.Tutorial(), func(e Evaluation) {
		events = append(events, e)
	})
	require.NoError(t, err)

	assert.Equal(t, "nlopt", res.Optimizer)
	assert.Equal(t, "LD_MMA", res.Algorithm)
	assert.InDeltaSlice(t, []float64{0.33334, 0.296296}, res.X, 1e-3)
	assert.InDelta(t, 0.544330847, res.Value, 1e-3)

	require.Len(t, events, res.Evaluations)
	for i, e := range events {
		assert.Equal(t, i+1, e.Index)
		assert.Len(t, e.X, 2)
		if i > 0 {
			assert.LessOrEqual(t, e.Best, events[i-1].Best, "best never gets worse")
		}
	}
}

func TestNLoptAdapterDefaultsPerProblem(t *testing.T) {
	for _, name := range []string{"rosenbrock", "sphere"} {
		t.Run(name, func(t *testing.T) {
			p, err := problems.Get(name)
			require.NoError(t, err)

			res, err := NewNLopt(NLoptOptions{}).Run(context.Background(), p, nil)
			require.NoError(t, err)
			assert.InDeltaSlice(t, p.Optimum, res.X, 1e-3)
			assert.InDelta(t, p.OptimumValue, res.Value, 1e-6)
		})
	}
}

func TestNLoptAdapterGlobalUsesSearchBox(t *testing.T) {
	p := problems.Rastrigin()
	a := NewNLopt(NLoptOptions{
		Algorithm: "GN_DIRECT_L",
		Stops:     []nlopt.StopCond{nlopt.MaxEval(3000)},
	})

	res, err := a.Run(context.Background(), p, func(e Evaluation) {
		for i, v := range e.X {
			assert.GreaterOrEqual(t, v, p.SearchLower[i])
			assert.LessOrEqual(t, v, p.SearchUpper[i])
		}
	})
	require.NoError(t, err)
	assert.InDelta(t, 0, res.Value, 1e-2)
}

func TestNLoptAdapterAUGLAGGetsLocalOptimizer(t *testing.T) {
	a := NewNLopt(NLoptOptions{
		Algorithm: "AUGLAG",
		Stops:     []nlopt.StopCond{nlopt.XTolRel(1e-6), nlopt.MaxEval(20000)},
	})

	res, err := a.Run(context.Background(), problems.Tutorial(), nil)
	require.NoError(t, err)
	assert.InDelta(t, 0.544330847, res.Value, 1e-2)
}

func TestNLoptAdapterUnknownAlgorithm(t *testing.T) {
	_, err := NewNLopt(NLoptOptions{Algorithm: "LD_NOPE"}).Run(context.Background(), problems.Sphere(), nil)
	assert.ErrorIs(t, err, nlopt.ErrInvalidArgs)
}

func TestNLoptAdapterCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a := NewNLopt(NLoptOptions{
		Algorithm: "LN_NELDERMEAD",
		Stops:     []nlopt.StopCond{nlopt.XTolRel(1e-15), nlopt.MaxEval(1000000)},
	})
	_, err := a.Run(ctx, problems.Rosenbrock(), func(e Evaluation) {
		if e.Index == 10 {
			cancel()
		}
	})
	assert.ErrorIs(t, err, nlopt.ErrForcedStop)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNLoptAdapterConvergence(t *testing.T) {
	// A bowl with a flat floor: progress stops once the floor is reached.
	plateau := &problems.Problem{
		Name:        "plateau",
		Dim:         1,
		Sense:       nlopt.Minimize,
		Objective:   nlopt.EvaluatorFunc(func(x []float64, _ bool) (float64, []float64) { return math.Max(1, x[0]*x[0]), nil }),
		Lower:       []float64{-10},
		Upper:       []float64{10},
		SearchLower: []float64{-10},
		SearchUpper: []float64{10},
		X0:          []float64{5},
		Algorithm:   nlopt.LNNelderMead,
	}
	a := NewNLopt(NLoptOptions{
		Stops:       []nlopt.StopCond{nlopt.XTolRel(1e-15), nlopt.MaxEval(100000)},
		Convergence: Convergence{Patience: 30, Threshold: 1e-3},
	})

	res, err := a.Run(context.Background(), plateau, nil)
	require.NoError(t, err)
	assert.Equal(t, "Converged", res.Status)
	assert.Equal(t, 1.0, res.Value)
	assert.Less(t, res.Evaluations, 100000)
	assert.Len(t, res.X, 1)
}

func TestNLoptAdapterRecordsMetrics(t *testing.T) {
	before := testutil.ToFloat64(evaluationsTotal.WithLabelValues("nlopt"))

	res, err := NewNLopt(NLoptOptions{}).Run(context.Background(), problems.Sphere(), nil)
	require.NoError(t, err)

	after := testutil.ToFloat64(evaluationsTotal.WithLabelValues("nlopt"))
	assert.Equal(t, float64(res.Evaluations), after-before)
	assert.Positive(t, testutil.ToFloat64(runsTotal.WithLabelValues("nlopt", res.Status)))
}

func TestHybridTutorial(t *testing.T) {
	h := NewHybrid(
		NewMayfly(MayflyOptions{MaxIters: 30, PopSize: 20, Seed: 3}),
		NewNLopt(NLoptOptions{Stops: []nlopt.StopCond{nlopt.XTolRel(1e-6)}}),
	)

	var last int
	res, err := h.Run(context.Background(), problems.Tutorial(), func(e Evaluation) {
		if e.Index != last+1 {
			t.Errorf("evaluation index jumped from %d to %d", last, e.Index)
		}
		last = e.Index
	})
	require.NoError(t, err)

	assert.Equal(t, "hybrid", res.Optimizer)
	assert.Equal(t, res.Evaluations, last)
	assert.InDelta(t, 0.544330847, res.Value, 1e-3)
}

func TestHybridFindsRastriginGlobalMinimum(t *testing.T) {
	h := NewHybrid(
		NewMayfly(MayflyOptions{MaxIters: 100, PopSize: 30, Seed: 11}),
		NewNLopt(NLoptOptions{Algorithm: "LD_LBFGS"}),
	)

	res, err := h.Run(context.Background(), problems.Rastrigin(), nil)
	require.NoError(t, err)
	assert.InDelta(t, 0, res.Value, 1e-6)
}

func TestConvergenceTracker(t *testing.T) {
	c := newConvergenceTracker(Convergence{Patience: 3, Threshold: 0.1})

	assert.False(t, c.Update(100))
	assert.False(t, c.Update(50), "large improvement")
	assert.Equal(t, 0, c.StaleCount())
	assert.False(t, c.Update(49))
	assert.False(t, c.Update(60), "worse values do not move the best")
	assert.True(t, c.Update(48.5))
	assert.Equal(t, 48.5, c.BestCost())

	disabled := newConvergenceTracker(Convergence{})
	for i := 0; i < 100; i++ {
		assert.False(t, disabled.Update(1))
	}
}

func TestTrackerMaximize(t *testing.T) {
	var got []Evaluation
	tr := newTracker("test", nlopt.Maximize, func(e Evaluation) { got = append(got, e) }, Convergence{}, nil)

	eval := tr.wrap(nlopt.EvaluatorFunc(func(x []float64, _ bool) (float64, []float64) {
		return x[0], nil
	}))
	for _, v := range []float64{1, 3, 2} {
		eval.Evaluate([]float64{v}, false)
	}

	require.Len(t, got, 3)
	assert.Equal(t, []float64{1, 3, 3}, []float64{got[0].Best, got[1].Best, got[2].Best})
	assert.Equal(t, []float64{3}, tr.bestX)
}

func TestTrackerCancelsOnStall(t *testing.T) {
	var cause error
	tr := newTracker("test", nlopt.Minimize, nil, Convergence{Patience: 2, Threshold: 0.5}, func(err error) { cause = err })

	for _, v := range []float64{10, 9, 9} {
		tr.record([]float64{v}, v)
	}
	assert.True(t, errors.Is(cause, ErrConverged))
}

func TestTrackerBestIsFeasible(t *testing.T) {
	tr := newTracker("test", nlopt.Minimize, nil, Convergence{}, nil)
	tr.feasible = func(x []float64) bool { return x[0] >= 0 }

	for _, v := range []float64{-5, 4, 2, -9} {
		tr.record([]float64{v}, v)
	}
	assert.Equal(t, 2.0, tr.best)
	assert.Equal(t, []float64{2}, tr.bestX)
	assert.Equal(t, -9.0, tr.fallback)
	assert.Equal(t, []float64{-9}, tr.fallbackX)
}

func TestNLoptAdapterConvergedConstrainedRunIsFeasible(t *testing.T) {
	p := problems.Tutorial()
	a := NewNLopt(NLoptOptions{
		Algorithm:   "LN_COBYLA",
		Stops:       []nlopt.StopCond{nlopt.XTolRel(1e-15), nlopt.MaxEval(2000)},
		Convergence: Convergence{Patience: 5, Threshold: 1e-3},
	})

	res, err := a.Run(context.Background(), p, nil)
	require.NoError(t, err)
	if res.Status == "Infeasible" {
		return
	}
	assert.True(t, p.Feasible(res.X), "status %s reported infeasible x %v", res.Status, res.X)
}
