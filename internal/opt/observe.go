package opt

import (
	"context"
	"math"
	"slices"

	"github.com/cwbudde/gonlopt/internal/nlopt"
)

// tracker sits between an optimizer and the objective. It counts
// evaluations, keeps the best point, feeds the observer and metrics, and
// cancels the run when it stalls.
//
// When feasible is set, only points it accepts become best; the best point
// overall is kept in fallback so a stalled run with no feasible point can
// still report where it ended up.
type tracker struct {
	optimizer string
	sense     nlopt.ObjectiveType
	obs       Observer
	offset    int
	feasible  func([]float64) bool

	conv   *convergenceTracker
	cancel context.CancelCauseFunc

	count int
	best  float64
	bestX []float64

	fallback  float64
	fallbackX []float64
}

func newTracker(optimizer string, sense nlopt.ObjectiveType, obs Observer, conv Convergence, cancel context.CancelCauseFunc) *tracker {
	t := &tracker{
		optimizer: optimizer,
		sense:     sense,
		obs:       obs,
		conv:      newConvergenceTracker(conv),
		cancel:    cancel,
		best:      math.Inf(1),
	}
	if sense == nlopt.Maximize {
		t.best = math.Inf(-1)
	}
	t.fallback = t.best
	return t
}

// better reports whether v improves on ref for the tracker's sense.
func (t *tracker) better(v, ref float64) bool {
	if math.IsNaN(v) {
		return false
	}
	if t.sense == nlopt.Maximize {
		return v > ref
	}
	return v < ref
}

// cost turns a value into something to minimize.
func (t *tracker) cost(v float64) float64 {
	if t.sense == nlopt.Maximize {
		return -v
	}
	return v
}

func (t *tracker) record(x []float64, v float64) {
	t.count++
	if t.better(v, t.best) && (t.feasible == nil || t.feasible(x)) {
		t.best = v
		t.bestX = slices.Clone(x)
	}
	if t.feasible != nil && t.better(v, t.fallback) {
		t.fallback = v
		t.fallbackX = slices.Clone(x)
	}
	evaluationsTotal.WithLabelValues(t.optimizer).Inc()

	if t.obs != nil {
		t.obs(Evaluation{
			Index: t.offset + t.count,
			Value: v,
			X:     slices.Clone(x),
			Best:  t.best,
		})
	}

	if t.conv.Update(t.cost(v)) && t.cancel != nil {
		t.cancel(ErrConverged)
	}
}

// wrap returns an evaluator that records every value e produces.
func (t *tracker) wrap(e nlopt.Evaluator) nlopt.Evaluator {
	return nlopt.EvaluatorFunc(func(x []float64, wantGradient bool) (float64, []float64) {
		v, g := e.Evaluate(x, wantGradient)
		t.record(x, v)
		return v, g
	})
}

// clamp returns x limited to [lower, upper] component-wise.
func clamp(x, lower, upper []float64) []float64 {
	out := slices.Clone(x)
	for i := range out {
		out[i] = math.Max(lower[i], math.Min(upper[i], out[i]))
	}
	return out
}
