package opt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cwbudde/gonlopt/internal/nlopt"
	"github.com/cwbudde/gonlopt/internal/problems"
)

// DefaultStops are used when no stopping criterion is configured
func DefaultStops() []nlopt.StopCond {
	return []nlopt.StopCond{nlopt.XTolRel(1e-6), nlopt.MaxEval(20000)}
}

// NLoptOptions configures an NLopt run
type NLoptOptions struct {
	// Algorithm is an NLopt identifier such as "LD_MMA"; empty selects the
	// problem's default algorithm
	Algorithm string

	// LocalAlgorithm is the subsidiary algorithm for AUGLAG and G_MLSL;
	// empty selects LN_COBYLA
	LocalAlgorithm string

	Stops       []nlopt.StopCond
	Population  uint
	InitialStep float64
	Seed        int64 // 0 leaves NLopt's generator alone
	Convergence Convergence
	Logger      *slog.Logger
}

// NLoptAdapter runs a problem through the NLopt binding
type NLoptAdapter struct {
	opts NLoptOptions
}

// NewNLopt creates a new NLopt optimizer adapter
func NewNLopt(opts NLoptOptions) *NLoptAdapter {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &NLoptAdapter{opts: opts}
}

// Name implements Optimizer
func (a *NLoptAdapter) Name() string { return "nlopt" }

// Algorithm resolves the algorithm used for p
func (a *NLoptAdapter) Algorithm(p *problems.Problem) (nlopt.Algorithm, error) {
	if a.opts.Algorithm == "" {
		return p.Algorithm, nil
	}
	return nlopt.ParseAlgorithm(a.opts.Algorithm)
}

// isGlobal reports whether alg needs a finite search box.
func isGlobal(alg nlopt.Algorithm) bool {
	return strings.HasPrefix(alg.Key(), "G")
}

// needsLocal reports whether alg delegates to a subsidiary optimizer.
func needsLocal(alg nlopt.Algorithm) bool {
	switch alg {
	case nlopt.AUGLAG, nlopt.AUGLAGEq, nlopt.GMLSL, nlopt.GMLSLLDS:
		return true
	}
	return false
}

// Run executes the optimization using the NLopt binding
func (a *NLoptAdapter) Run(ctx context.Context, p *problems.Problem, obs Observer) (*Result, error) {
	alg, err := a.Algorithm(p)
	if err != nil {
		return nil, err
	}
	return a.run(ctx, p, alg, p.X0, obs, 0)
}

// run is Run with an explicit start point and an index offset for observer
// events, so a hybrid run reports one continuous sequence.
func (a *NLoptAdapter) run(ctx context.Context, p *problems.Problem, alg nlopt.Algorithm, x0 []float64, obs Observer, offset int) (*Result, error) {
	logger := a.opts.Logger.With("optimizer", a.Name(), "algorithm", alg.Key(), "problem", p.Name)
	done := runStarted(a.Name())

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	prob, err := nlopt.New(alg, p.Dim, nlopt.WithLogger(logger))
	if err != nil {
		done(statusFailed)
		return nil, err
	}
	defer prob.Close()

	tr := newTracker(a.Name(), p.Sense, obs, a.opts.Convergence, cancel)
	tr.offset = offset
	if len(p.Constraints) > 0 {
		tr.feasible = p.Feasible
	}

	lower, upper := p.Lower, p.Upper
	if isGlobal(alg) {
		lower, upper = p.SearchLower, p.SearchUpper
	}
	if err := a.configure(prob, p, alg, tr, lower, upper); err != nil {
		done(statusFailed)
		return nil, fmt.Errorf("configure %s for %s: %w", alg.Key(), p.Name, err)
	}

	if a.opts.Seed != 0 {
		nlopt.Srand(uint64(a.opts.Seed))
	}

	logger.Info("Starting NLopt run", "dimension", p.Dim, "constraints", len(p.Constraints))
	start := time.Now()
	sol, err := prob.OptimizeContext(ctx, clamp(x0, lower, upper))
	elapsed := time.Since(start)

	res := &Result{
		Optimizer: a.Name(),
		Algorithm: alg.Key(),
		Elapsed:   elapsed,
	}

	if err != nil {
		if errors.Is(err, ErrConverged) && (tr.bestX != nil || tr.fallbackX != nil) {
			res.Status = "Converged"
			res.X = tr.bestX
			res.Value = tr.best
			if tr.bestX == nil {
				res.Status = "Infeasible"
				res.X = tr.fallbackX
				res.Value = tr.fallback
			}
			res.Evaluations = tr.count
			done(res.Status)
			logger.Info("NLopt run converged", "status", res.Status, "value", res.Value, "evaluations", res.Evaluations, "elapsed", elapsed)
			return res, nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			done(statusCancelled)
		} else {
			done(statusFailed)
		}
		logger.Warn("NLopt run failed", "error", err, "evaluations", tr.count)
		return nil, fmt.Errorf("%s on %s: %w", alg.Key(), p.Name, err)
	}

	res.Status = sol.Result.String()
	res.X = sol.X
	res.Value = sol.Value
	res.Evaluations = sol.Evaluations
	done(res.Status)

	logger.Info("NLopt run finished",
		"status", res.Status,
		"value", res.Value,
		"evaluations", res.Evaluations,
		"elapsed", elapsed,
	)
	return res, nil
}

func (a *NLoptAdapter) configure(prob *nlopt.Problem, p *problems.Problem, alg nlopt.Algorithm, tr *tracker, lower, upper []float64) error {
	if err := prob.SetObjective(p.Sense, tr.wrap(p.Objective)); err != nil {
		return err
	}
	if err := prob.SetLowerBounds(lower); err != nil {
		return err
	}
	if err := prob.SetUpperBounds(upper); err != nil {
		return err
	}
	for _, c := range p.Constraints {
		if err := prob.AddConstraint(c.Type, c.Eval, c.Tolerance); err != nil {
			return err
		}
	}

	stops := a.opts.Stops
	if len(stops) == 0 {
		stops = DefaultStops()
	}
	for _, s := range stops {
		if err := prob.SetStop(s); err != nil {
			return err
		}
	}

	if a.opts.Population > 0 {
		if err := prob.SetPopulation(a.opts.Population); err != nil {
			return err
		}
	}
	if a.opts.InitialStep > 0 {
		if err := prob.SetInitialStep1(a.opts.InitialStep); err != nil {
			return err
		}
	}

	if needsLocal(alg) {
		return a.setLocal(prob, p.Dim)
	}
	return nil
}

func (a *NLoptAdapter) setLocal(prob *nlopt.Problem, n int) error {
	name := a.opts.LocalAlgorithm
	if name == "" {
		name = nlopt.LNCOBYLA.Key()
	}
	alg, err := nlopt.ParseAlgorithm(name)
	if err != nil {
		return fmt.Errorf("local algorithm: %w", err)
	}

	local, err := nlopt.New(alg, n, nlopt.WithLogger(a.opts.Logger))
	if err != nil {
		return err
	}
	defer local.Close()

	if err := local.SetStop(nlopt.XTolRel(1e-6)); err != nil {
		return err
	}
	return prob.SetLocalOptimizer(local)
}
