package nlopt

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newProblem(t *testing.T, alg Algorithm, n int) *Problem {
	t.Helper()
	p, err := New(alg, n)
	require.NoError(t, err)
	t.Cleanup(func() { p.Close() })
	return p
}

func tutorialObjective(x []float64, _ *struct{}, wantGradient bool) (float64, []float64) {
	v := math.Sqrt(x[1])
	if !wantGradient {
		return v, nil
	}
	return v, []float64{0, 0.5 / v}
}

type cubic struct{ a, b float64 }

func tutorialConstraint(x []float64, c *cubic, wantGradient bool) (float64, []float64) {
	t := c.a*x[0] + c.b
	v := t*t*t - x[1]
	if !wantGradient {
		return v, nil
	}
	return v, []float64{3 * c.a * t * t, -1}
}

func configureTutorial(t *testing.T, p *Problem) {
	t.Helper()
	require.NoError(t, p.SetObjective(Minimize, Bind(tutorialObjective, nil)))
	require.NoError(t, p.SetLowerBounds([]float64{math.Inf(-1), 0}))
	require.NoError(t, p.AddConstraint(Inequality, Bind(tutorialConstraint, &cubic{a: 2, b: 0}), 1e-8))
	require.NoError(t, p.AddConstraint(Inequality, Bind(tutorialConstraint, &cubic{a: -1, b: 1}), 1e-8))
	require.NoError(t, p.SetStop(XTolRel(1e-4)))
}

func TestTutorialMMA(t *testing.T) {
	p := newProblem(t, LDMMA, 2)
	configureTutorial(t, p)

	sol, err := p.Optimize([]float64{1.234, 5.678})
	require.NoError(t, err)

	assert.Contains(t, []Result{Success, StopvalReached, FTolReached, XTolReached, MaxEvalReached, MaxTimeReached}, sol.Result)
	assert.InDelta(t, 0.33334, sol.X[0], 1e-3)
	assert.InDelta(t, 0.296296, sol.X[1], 1e-3)
	assert.InDelta(t, 0.544330847, sol.Value, 1e-3)
	assert.Positive(t, sol.Evaluations)
}

func TestTutorialCOBYLANeverRequestsGradient(t *testing.T) {
	p := newProblem(t, LNCOBYLA, 2)

	requested := false
	obj := EvaluatorFunc(func(x []float64, wantGradient bool) (float64, []float64) {
		requested = requested || wantGradient
		return tutorialObjective(x, nil, wantGradient)
	})
	require.NoError(t, p.SetObjective(Minimize, obj))
	require.NoError(t, p.SetLowerBounds([]float64{math.Inf(-1), 0}))
	require.NoError(t, p.AddConstraint(Inequality, Bind(tutorialConstraint, &cubic{a: 2, b: 0}), 1e-8))
	require.NoError(t, p.AddConstraint(Inequality, Bind(tutorialConstraint, &cubic{a: -1, b: 1}), 1e-8))
	require.NoError(t, p.SetStop(XTolRel(1e-4)))

	sol, err := p.Optimize([]float64{1.234, 5.678})
	require.NoError(t, err)
	assert.False(t, requested)
	assert.InDelta(t, 0.544330847, sol.Value, 1e-3)
}

func TestGradientRequestsHaveDimensionLength(t *testing.T) {
	p := newProblem(t, LDMMA, 3)

	var lengths []int
	obj := EvaluatorFunc(func(x []float64, wantGradient bool) (float64, []float64) {
		lengths = append(lengths, len(x))
		v := 0.0
		g := make([]float64, len(x))
		for i, xi := range x {
			d := xi - float64(i)
			v += d * d
			g[i] = 2 * d
		}
		if !wantGradient {
			return v, nil
		}
		return v, g
	})
	require.NoError(t, p.SetObjective(Minimize, obj))
	require.NoError(t, p.SetStop(XTolRel(1e-6)))

	sol, err := p.Optimize([]float64{5, 5, 5})
	require.NoError(t, err)
	for _, n := range lengths {
		assert.Equal(t, 3, n)
	}
	assert.InDeltaSlice(t, []float64{0, 1, 2}, sol.X, 1e-3)
}

func TestBoundsRespected(t *testing.T) {
	for _, alg := range []Algorithm{LNCOBYLA, LDMMA, LNBOBYQA} {
		t.Run(alg.Key(), func(t *testing.T) {
			p := newProblem(t, alg, 2)

			// Unconstrained minimum at (-3, 4) lies outside the box.
			obj := EvaluatorFunc(func(x []float64, wantGradient bool) (float64, []float64) {
				v := (x[0]+3)*(x[0]+3) + (x[1]-4)*(x[1]-4)
				if !wantGradient {
					return v, nil
				}
				return v, []float64{2 * (x[0] + 3), 2 * (x[1] - 4)}
			})
			lb := []float64{-1, -2}
			ub := []float64{2, 1}
			require.NoError(t, p.SetObjective(Minimize, obj))
			require.NoError(t, p.SetLowerBounds(lb))
			require.NoError(t, p.SetUpperBounds(ub))
			require.NoError(t, p.SetStop(XTolRel(1e-6)))
			require.NoError(t, p.SetStop(MaxEval(2000)))

			sol, err := p.Optimize([]float64{0.5, -0.5})
			require.NoError(t, err)
			for i := range sol.X {
				assert.GreaterOrEqual(t, sol.X[i], lb[i]-1e-9)
				assert.LessOrEqual(t, sol.X[i], ub[i]+1e-9)
			}
			assert.InDeltaSlice(t, []float64{-1, 1}, sol.X, 1e-3)
		})
	}
}

func TestBoundsRoundTrip(t *testing.T) {
	p := newProblem(t, LNCOBYLA, 3)

	require.NoError(t, p.SetLowerBounds([]float64{-1, -2, -3}))
	require.NoError(t, p.SetUpperBound(10))

	lb, err := p.LowerBounds()
	require.NoError(t, err)
	assert.Equal(t, []float64{-1, -2, -3}, lb)

	ub, err := p.UpperBounds()
	require.NoError(t, err)
	assert.Equal(t, []float64{10, 10, 10}, ub)

	require.NoError(t, p.SetLowerBound(0))
	lb, err = p.LowerBounds()
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 0}, lb)
}

func TestLengthMismatchesAreInvalidArgs(t *testing.T) {
	p := newProblem(t, LNCOBYLA, 2)
	require.NoError(t, p.SetObjective(Minimize, EvaluatorFunc(func(x []float64, _ bool) (float64, []float64) {
		return x[0]*x[0] + x[1]*x[1], nil
	})))

	assert.ErrorIs(t, p.SetLowerBounds([]float64{1}), ErrInvalidArgs)
	assert.ErrorIs(t, p.SetUpperBounds([]float64{1, 2, 3}), ErrInvalidArgs)
	assert.ErrorIs(t, p.SetStop(XTolAbs{1e-3}), ErrInvalidArgs)
	assert.ErrorIs(t, p.SetInitialStep([]float64{0.1}), ErrInvalidArgs)

	_, err := p.Optimize([]float64{1, 2, 3})
	assert.ErrorIs(t, err, ErrInvalidArgs)
}

func TestOptimizeWithoutObjective(t *testing.T) {
	p := newProblem(t, LNCOBYLA, 2)

	_, err := p.Optimize([]float64{0, 0})
	assert.ErrorIs(t, err, ErrInvalidArgs)
}

func TestRemoveConstraintsIsIdempotent(t *testing.T) {
	p := newProblem(t, LDMMA, 2)

	require.NoError(t, p.RemoveConstraints(Equality))
	require.NoError(t, p.RemoveConstraints(Inequality))

	configureTutorial(t, p)
	registered := p.constraints[Inequality]
	require.Len(t, registered, 2)

	require.NoError(t, p.RemoveConstraints(Inequality))
	require.NoError(t, p.RemoveConstraints(Inequality))
	for _, cc := range registered {
		assert.False(t, cc.live(), "removed constraints are released")
	}
	assert.Empty(t, p.constraints[Inequality])
	assert.True(t, p.objective.live(), "objective survives constraint removal")
}

func TestReplacingObjectiveSupersedesPrevious(t *testing.T) {
	p := newProblem(t, LNCOBYLA, 1)

	oldCalls := 0
	require.NoError(t, p.SetObjective(Minimize, EvaluatorFunc(func(x []float64, _ bool) (float64, []float64) {
		oldCalls++
		return x[0] * x[0], nil
	})))
	old := p.objective

	newCalls := 0
	require.NoError(t, p.SetObjective(Minimize, EvaluatorFunc(func(x []float64, _ bool) (float64, []float64) {
		newCalls++
		return (x[0] - 2) * (x[0] - 2), nil
	})))

	assert.False(t, old.live(), "replaced objective is released")
	require.NoError(t, p.SetStop(XTolRel(1e-8)))

	sol, err := p.Optimize([]float64{0})
	require.NoError(t, err)
	assert.Zero(t, oldCalls)
	assert.Positive(t, newCalls)
	assert.Equal(t, newCalls, sol.Evaluations)
	assert.InDelta(t, 2, sol.X[0], 1e-3)
}

func TestMaximize(t *testing.T) {
	p := newProblem(t, LNCOBYLA, 1)
	require.NoError(t, p.SetObjective(Maximize, EvaluatorFunc(func(x []float64, _ bool) (float64, []float64) {
		return -(x[0] - 1) * (x[0] - 1), nil
	})))
	require.NoError(t, p.SetStop(XTolRel(1e-8)))

	sol, err := p.Optimize([]float64{-3})
	require.NoError(t, err)
	assert.InDelta(t, 1, sol.X[0], 1e-3)
	assert.InDelta(t, 0, sol.Value, 1e-6)
}

func TestEqualityConstraint(t *testing.T) {
	p := newProblem(t, LNCOBYLA, 2)

	// minimize x0^2 + x1^2 subject to x0 + x1 = 1
	require.NoError(t, p.SetObjective(Minimize, EvaluatorFunc(func(x []float64, _ bool) (float64, []float64) {
		return x[0]*x[0] + x[1]*x[1], nil
	})))
	require.NoError(t, p.AddConstraint(Equality, EvaluatorFunc(func(x []float64, _ bool) (float64, []float64) {
		return x[0] + x[1] - 1, nil
	}), 1e-8))
	require.NoError(t, p.SetStop(XTolRel(1e-8)))

	sol, err := p.Optimize([]float64{2, -1})
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0.5, 0.5}, sol.X, 1e-3)
}

func TestStopConditions(t *testing.T) {
	rosenbrock := EvaluatorFunc(func(x []float64, _ bool) (float64, []float64) {
		a, b := 1-x[0], x[1]-x[0]*x[0]
		return a*a + 100*b*b, nil
	})

	t.Run("MaxEval", func(t *testing.T) {
		p := newProblem(t, LNNelderMead, 2)
		require.NoError(t, p.SetObjective(Minimize, rosenbrock))
		require.NoError(t, p.SetStop(MaxEval(10)))

		sol, err := p.Optimize([]float64{-1.2, 1})
		require.NoError(t, err)
		assert.Equal(t, MaxEvalReached, sol.Result)
		assert.LessOrEqual(t, sol.Evaluations, 10)
		assert.Positive(t, sol.Evaluations)
	})

	t.Run("StopVal", func(t *testing.T) {
		p := newProblem(t, LNNelderMead, 2)
		require.NoError(t, p.SetObjective(Minimize, rosenbrock))
		require.NoError(t, p.SetStop(StopVal(1e-2)))
		require.NoError(t, p.SetStop(MaxEval(100000)))

		sol, err := p.Optimize([]float64{-1.2, 1})
		require.NoError(t, err)
		assert.Equal(t, StopvalReached, sol.Result)
		assert.LessOrEqual(t, sol.Value, 1e-2)
	})

	t.Run("FTolAbs", func(t *testing.T) {
		p := newProblem(t, LNNelderMead, 2)
		require.NoError(t, p.SetObjective(Minimize, rosenbrock))
		require.NoError(t, p.SetStop(FTolAbs(1e-8)))
		require.NoError(t, p.SetStop(MaxEval(100000)))

		sol, err := p.Optimize([]float64{-1.2, 1})
		require.NoError(t, err)
		assert.Equal(t, FTolReached, sol.Result)
	})

	t.Run("AllSettersAccepted", func(t *testing.T) {
		p := newProblem(t, LNNelderMead, 2)
		for _, c := range []StopCond{
			FTolRel(1e-6), FTolAbs(1e-8), XTolRel(1e-6), XTolAbs{1e-6, 1e-6},
			XTolAbs1(1e-7), StopVal(-1e9), MaxEval(500), MaxTime(2 * time.Second),
		} {
			assert.NoError(t, p.SetStop(c), c.String())
		}
	})
}

func TestForceStopFromCallback(t *testing.T) {
	p := newProblem(t, LNNelderMead, 2)

	calls := 0
	require.NoError(t, p.SetObjective(Minimize, EvaluatorFunc(func(x []float64, _ bool) (float64, []float64) {
		calls++
		if calls == 5 {
			require.NoError(t, p.ForceStop())
		}
		return x[0]*x[0] + x[1]*x[1], nil
	})))
	require.NoError(t, p.SetStop(XTolRel(1e-12)))

	_, err := p.Optimize([]float64{3, 4})
	assert.ErrorIs(t, err, ErrForcedStop)
	assert.GreaterOrEqual(t, calls, 5)
	assert.LessOrEqual(t, calls, 6)

	// The next run starts afresh.
	calls = 100
	sol, err := p.Optimize([]float64{3, 4})
	require.NoError(t, err)
	assert.InDelta(t, 0, sol.Value, 1e-6)
}

func TestOptimizeContextCancellation(t *testing.T) {
	p := newProblem(t, LNNelderMead, 2)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	calls := 0
	require.NoError(t, p.SetObjective(Minimize, EvaluatorFunc(func(x []float64, _ bool) (float64, []float64) {
		calls++
		if calls == 3 {
			cancel()
		}
		return x[0]*x[0] + x[1]*x[1], nil
	})))
	require.NoError(t, p.SetStop(XTolRel(1e-12)))

	_, err := p.OptimizeContext(ctx, []float64{3, 4})
	assert.ErrorIs(t, err, ErrForcedStop)
	assert.ErrorIs(t, err, context.Canceled)
	assert.LessOrEqual(t, calls, 5)

	_, err = p.OptimizeContext(ctx, []float64{3, 4})
	assert.ErrorIs(t, err, context.Canceled, "already-cancelled context never reaches NLopt")
}

func TestConfigurationRejectedWhileOptimizing(t *testing.T) {
	p := newProblem(t, LNCOBYLA, 1)

	var errs []error
	require.NoError(t, p.SetObjective(Minimize, EvaluatorFunc(func(x []float64, _ bool) (float64, []float64) {
		if len(errs) == 0 {
			errs = append(errs,
				p.SetLowerBound(0),
				p.SetObjective(Minimize, EvaluatorFunc(func([]float64, bool) (float64, []float64) { return 0, nil })),
				p.RemoveConstraints(Inequality),
				p.SetStop(MaxEval(1)),
				p.Close(),
			)
			_, err := p.Optimize([]float64{0})
			errs = append(errs, err)
		}
		return x[0] * x[0], nil
	})))
	require.NoError(t, p.SetStop(MaxEval(20)))

	_, err := p.Optimize([]float64{1})
	require.NoError(t, err)
	require.Len(t, errs, 6)
	for _, e := range errs {
		assert.ErrorIs(t, e, ErrBusy)
	}
}

func TestCloseIsIdempotentAndFinal(t *testing.T) {
	p, err := New(LDMMA, 2)
	require.NoError(t, err)

	configureTutorial(t, p)
	obj := p.objective
	cons := append([]*closureContext(nil), p.constraints[Inequality]...)

	require.NoError(t, p.Close())
	require.NoError(t, p.Close())

	assert.False(t, obj.live())
	for _, cc := range cons {
		assert.False(t, cc.live())
	}

	assert.ErrorIs(t, p.SetLowerBound(0), ErrClosed)
	assert.ErrorIs(t, p.ForceStop(), ErrClosed)
	_, err = p.Optimize([]float64{1, 1})
	assert.ErrorIs(t, err, ErrClosed)
	_, err = p.LowerBounds()
	assert.ErrorIs(t, err, ErrClosed)
}

func TestCloseWithoutConfiguration(t *testing.T) {
	p, err := New(LNCOBYLA, 4)
	require.NoError(t, err)
	assert.NoError(t, p.Close())
}

func TestNewRejectsInvalidArguments(t *testing.T) {
	_, err := New(Algorithm(-1), 2)
	assert.ErrorIs(t, err, ErrInvalidArgs)

	_, err = New(Algorithm(numAlgorithms), 2)
	assert.ErrorIs(t, err, ErrInvalidArgs)

	_, err = New(LDMMA, -1)
	assert.ErrorIs(t, err, ErrInvalidArgs)
}

func TestNilEvaluatorRejected(t *testing.T) {
	p := newProblem(t, LNCOBYLA, 1)
	assert.ErrorIs(t, p.SetObjective(Minimize, nil), ErrInvalidArgs)
	assert.ErrorIs(t, p.AddConstraint(Inequality, nil, 0), ErrInvalidArgs)
	assert.ErrorIs(t, p.SetStop(nil), ErrInvalidArgs)
}

func TestLocalOptimizerAUGLAG(t *testing.T) {
	p := newProblem(t, AUGLAG, 2)
	local := newProblem(t, LNCOBYLA, 2)
	require.NoError(t, local.SetStop(XTolRel(1e-8)))

	require.NoError(t, p.SetLocalOptimizer(local))
	require.NoError(t, local.Close(), "NLopt keeps its own copy")

	require.NoError(t, p.SetObjective(Minimize, EvaluatorFunc(func(x []float64, _ bool) (float64, []float64) {
		return x[0]*x[0] + x[1]*x[1], nil
	})))
	require.NoError(t, p.AddConstraint(Equality, EvaluatorFunc(func(x []float64, _ bool) (float64, []float64) {
		return x[0] + x[1] - 1, nil
	}), 1e-8))
	require.NoError(t, p.SetStop(XTolRel(1e-6)))
	require.NoError(t, p.SetStop(MaxEval(20000)))

	sol, err := p.Optimize([]float64{2, -1})
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0.5, 0.5}, sol.X, 1e-2)

	wrongDim := newProblem(t, LNCOBYLA, 3)
	assert.ErrorIs(t, p.SetLocalOptimizer(wrongDim), ErrInvalidArgs)
}

func TestAlgorithmNames(t *testing.T) {
	alg, err := ParseAlgorithm("ld_mma")
	require.NoError(t, err)
	assert.Equal(t, LDMMA, alg)
	assert.Equal(t, "LD_MMA", alg.Key())
	assert.True(t, alg.NeedsGradient())
	assert.False(t, LNCOBYLA.NeedsGradient())
	assert.NotEmpty(t, alg.String())

	alg, err = ParseAlgorithm("NLOPT_LN_COBYLA")
	require.NoError(t, err)
	assert.Equal(t, LNCOBYLA, alg)

	_, err = ParseAlgorithm("LD_NOPE")
	assert.True(t, errors.Is(err, ErrInvalidArgs))

	assert.Contains(t, AlgorithmKeys(), "LN_BOBYQA")
	assert.Equal(t, "Algorithm(-3)", Algorithm(-3).String())
	assert.NotEmpty(t, Version())
}
