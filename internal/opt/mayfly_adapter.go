package opt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"time"

	"github.com/cwbudde/mayfly"

	"github.com/cwbudde/gonlopt/internal/nlopt"
	"github.com/cwbudde/gonlopt/internal/problems"
)

// MinMayflyPopulation is the smallest population mayfly accepts
const MinMayflyPopulation = 20

// DefaultPenalty weights squared constraint violations in the Mayfly cost
const DefaultPenalty = 1e4

// MayflyOptions configures a Mayfly run
type MayflyOptions struct {
	MaxIters    int
	PopSize     int
	Seed        int64
	Penalty     float64 // 0 selects DefaultPenalty
	Convergence Convergence
	Logger      *slog.Logger
}

// MayflyAdapter wraps the external Mayfly library to conform to our Optimizer interface
type MayflyAdapter struct {
	opts MayflyOptions
}

// NewMayfly creates a new Mayfly optimizer adapter
func NewMayfly(opts MayflyOptions) *MayflyAdapter {
	if opts.PopSize < MinMayflyPopulation {
		opts.PopSize = MinMayflyPopulation
	}
	if opts.Penalty <= 0 {
		opts.Penalty = DefaultPenalty
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &MayflyAdapter{opts: opts}
}

// Name implements Optimizer
func (m *MayflyAdapter) Name() string { return "mayfly" }

// box maps the unit cube Mayfly searches onto the problem's search box.
// Mayfly only supports one scalar bound for all dimensions.
type box struct {
	lower, upper []float64
}

func (b box) decode(u []float64) []float64 {
	x := make([]float64, len(u))
	for i, ui := range u {
		ui = math.Max(0, math.Min(1, ui))
		x[i] = b.lower[i] + ui*(b.upper[i]-b.lower[i])
	}
	return x
}

// merit is the cost Mayfly minimizes: the signed objective plus a quadratic
// penalty on constraint and bound violations.
func (m *MayflyAdapter) merit(p *problems.Problem, x []float64) (value, cost float64) {
	value, _ = p.Objective.Evaluate(x, false)
	cost = value
	if p.Sense == nlopt.Maximize {
		cost = -value
	}

	var violation float64
	for _, c := range p.Constraints {
		v, _ := c.Eval.Evaluate(x, false)
		if c.Type == nlopt.Equality {
			violation += v * v
		} else if v > 0 {
			violation += v * v
		}
	}
	for i, xi := range x {
		if d := p.Lower[i] - xi; d > 0 {
			violation += d * d
		}
		if d := xi - p.Upper[i]; d > 0 {
			violation += d * d
		}
	}
	return value, cost + m.opts.Penalty*violation
}

// Run executes the Mayfly optimization using the external library
func (m *MayflyAdapter) Run(ctx context.Context, p *problems.Problem, obs Observer) (*Result, error) {
	logger := m.opts.Logger.With("optimizer", m.Name(), "problem", p.Name)
	done := runStarted(m.Name())

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	b := box{lower: p.SearchLower, upper: p.SearchUpper}
	tr := newTracker(m.Name(), p.Sense, obs, m.opts.Convergence, cancel)

	// Mayfly cannot be interrupted; once ctx is done the remaining
	// evaluations return +Inf without touching the objective.
	objective := func(u []float64) float64 {
		if ctx.Err() != nil {
			return math.Inf(1)
		}
		x := b.decode(u)
		value, cost := m.merit(p, x)
		tr.record(x, value)
		return cost
	}

	// Create config for external Mayfly library
	config := mayfly.NewDefaultConfig()
	config.ObjectiveFunc = objective
	config.ProblemSize = p.Dim
	config.MaxIterations = m.opts.MaxIters
	config.NPop = m.opts.PopSize
	config.LowerBound = 0
	config.UpperBound = 1
	config.Rand = rand.New(rand.NewSource(m.opts.Seed))

	logger.Info("Starting Mayfly run", "dimension", p.Dim, "iterations", m.opts.MaxIters, "population", m.opts.PopSize)
	start := time.Now()
	result, err := mayfly.Optimize(config)
	elapsed := time.Since(start)
	if err != nil {
		done(statusFailed)
		return nil, fmt.Errorf("mayfly on %s: %w", p.Name, err)
	}

	res := &Result{
		Optimizer:   m.Name(),
		Status:      "MaxIterReached",
		Evaluations: tr.count,
		Elapsed:     elapsed,
	}

	if cause := context.Cause(ctx); cause != nil {
		if !errors.Is(cause, ErrConverged) {
			done(statusCancelled)
			return nil, fmt.Errorf("mayfly on %s: %w", p.Name, cause)
		}
		res.Status = "Converged"
	}

	res.X = b.decode(result.GlobalBest.Position)
	res.Value, _ = p.Objective.Evaluate(res.X, false)
	if !p.Feasible(res.X) {
		res.Status = "Infeasible"
	}
	done(res.Status)

	logger.Info("Mayfly run finished",
		"status", res.Status,
		"value", res.Value,
		"evaluations", res.Evaluations,
		"elapsed", elapsed,
	)
	return res, nil
}
