package nlopt

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"slices"
)

// ObjectiveType selects minimization or maximization.
type ObjectiveType int

const (
	Minimize ObjectiveType = iota
	Maximize
)

func (t ObjectiveType) String() string {
	if t == Maximize {
		return "maximize"
	}
	return "minimize"
}

// ConstraintType selects inequality (fc(x) <= 0) or equality (h(x) = 0)
// constraints.
type ConstraintType int

const (
	Inequality ConstraintType = iota
	Equality
)

func (t ConstraintType) String() string {
	if t == Equality {
		return "equality"
	}
	return "inequality"
}

// problemState is the lifecycle of a Problem:
//
//	created -> configured -> optimizing -> configured -> ... -> closed
//
// Any state may move to closed. Configuration is rejected while optimizing
// because NLopt holds the registered tokens for the duration of the run.
type problemState int

const (
	stateCreated problemState = iota
	stateConfigured
	stateOptimizing
	stateClosed
)

func (s problemState) String() string {
	switch s {
	case stateCreated:
		return "created"
	case stateConfigured:
		return "configured"
	case stateOptimizing:
		return "optimizing"
	default:
		return "closed"
	}
}

// Solution is the outcome of a successful Optimize call.
type Solution struct {
	Result      Result
	X           []float64
	Value       float64
	Evaluations int
}

// Option configures a Problem at construction.
type Option func(*Problem)

// WithLogger sets the logger used for registration and run events.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Problem) {
		if logger != nil {
			p.run.logger = logger
		}
	}
}

// Problem owns one NLopt optimization object and every closure registered
// with it. A Problem is not safe for concurrent use; callbacks run on the
// goroutine that called Optimize. Close must be called to release the NLopt
// object and the registered closures.
//
// The GC cleanup installed by New is a fallback only. An Evaluator that
// captures its own Problem, for example to call ForceStop, keeps the Problem
// reachable through its registration, so the cleanup never runs for it.
type Problem struct {
	run       *runState
	n         int
	algorithm Algorithm
	state     problemState

	objective   *closureContext
	constraints map[ConstraintType][]*closureContext
}

// New creates a problem with n variables for the given algorithm.
func New(alg Algorithm, n int, opts ...Option) (*Problem, error) {
	if !alg.valid() {
		return nil, fmt.Errorf("nlopt: create: algorithm %d: %w", int(alg), ErrInvalidArgs)
	}
	if n < 0 {
		return nil, fmt.Errorf("nlopt: create: dimension %d: %w", n, ErrInvalidArgs)
	}

	p := &Problem{
		run:         &runState{logger: slog.Default()},
		n:           n,
		algorithm:   alg,
		constraints: make(map[ConstraintType][]*closureContext),
	}
	for _, opt := range opts {
		opt(p)
	}

	h := cCreate(alg, n)
	if h == nil {
		return nil, fmt.Errorf("nlopt: create %s with %d variables: %w", alg.Key(), n, ErrOutOfMemory)
	}
	p.run.handle = h
	runtime.SetFinalizer(p, (*Problem).Close)

	p.run.logger.Debug("nlopt: problem created", "algorithm", alg.Key(), "dimension", n)
	return p, nil
}

// Dimension returns the number of variables.
func (p *Problem) Dimension() int { return p.n }

// Algorithm returns the algorithm the problem was created with.
func (p *Problem) Algorithm() Algorithm { return p.algorithm }

// configurable reports why the problem cannot be configured right now.
func (p *Problem) configurable() error {
	switch p.state {
	case stateClosed:
		return ErrClosed
	case stateOptimizing:
		return ErrBusy
	}
	return nil
}

func (p *Problem) configured(err error) error {
	if err == nil && p.state == stateCreated {
		p.state = stateConfigured
	}
	return err
}

func (p *Problem) checkLen(what string, v []float64) error {
	if len(v) != p.n {
		return fmt.Errorf("nlopt: %s has %d values, problem has %d variables: %w", what, len(v), p.n, ErrInvalidArgs)
	}
	return nil
}

// SetObjective registers the function to minimize or maximize. A previously
// registered objective is released once the new one is in place.
func (p *Problem) SetObjective(typ ObjectiveType, eval Evaluator) error {
	if err := p.configurable(); err != nil {
		return err
	}
	if eval == nil {
		return fmt.Errorf("nlopt: set objective: nil evaluator: %w", ErrInvalidArgs)
	}

	cc := newClosureContext(p.run, "objective", eval, p.n)
	if err := check(cSetObjective(p.run.handle, typ, cc.token)); err != nil {
		cc.release()
		return fmt.Errorf("set %s objective: %w", typ, err)
	}

	if p.objective != nil {
		p.objective.release()
	}
	p.objective = cc
	p.run.logger.Debug("nlopt: objective registered", "type", typ.String())
	return p.configured(nil)
}

// AddConstraint appends a nonlinear constraint. tol is the tolerance NLopt
// uses when judging feasibility for its stopping criteria. Several
// constraints of each type may coexist.
func (p *Problem) AddConstraint(typ ConstraintType, eval Evaluator, tol float64) error {
	if err := p.configurable(); err != nil {
		return err
	}
	if eval == nil {
		return fmt.Errorf("nlopt: add %s constraint: nil evaluator: %w", typ, ErrInvalidArgs)
	}

	cc := newClosureContext(p.run, typ.String()+" constraint", eval, p.n)
	if err := check(cAddConstraint(p.run.handle, typ, cc.token, tol)); err != nil {
		// NLopt does not keep a constraint it rejected.
		cc.release()
		return fmt.Errorf("add %s constraint: %w", typ, err)
	}

	p.constraints[typ] = append(p.constraints[typ], cc)
	p.run.logger.Debug("nlopt: constraint registered", "type", typ.String(), "tolerance", tol, "count", len(p.constraints[typ]))
	return p.configured(nil)
}

// RemoveConstraints drops every constraint of the given type. Removing when
// none are registered is a no-op.
func (p *Problem) RemoveConstraints(typ ConstraintType) error {
	if err := p.configurable(); err != nil {
		return err
	}
	if err := check(cRemoveConstraints(p.run.handle, typ)); err != nil {
		return fmt.Errorf("remove %s constraints: %w", typ, err)
	}

	for _, cc := range p.constraints[typ] {
		cc.release()
	}
	delete(p.constraints, typ)
	return p.configured(nil)
}

// SetLowerBounds sets one lower bound per variable.
func (p *Problem) SetLowerBounds(lb []float64) error {
	if err := p.configurable(); err != nil {
		return err
	}
	if err := p.checkLen("lower bounds", lb); err != nil {
		return err
	}
	return p.configured(wrap("set lower bounds", cSetLowerBounds(p.run.handle, lb)))
}

// SetUpperBounds sets one upper bound per variable.
func (p *Problem) SetUpperBounds(ub []float64) error {
	if err := p.configurable(); err != nil {
		return err
	}
	if err := p.checkLen("upper bounds", ub); err != nil {
		return err
	}
	return p.configured(wrap("set upper bounds", cSetUpperBounds(p.run.handle, ub)))
}

// SetLowerBound sets the same lower bound on every variable.
func (p *Problem) SetLowerBound(lb float64) error {
	if err := p.configurable(); err != nil {
		return err
	}
	return p.configured(wrap("set lower bound", cSetLowerBound(p.run.handle, lb)))
}

// SetUpperBound sets the same upper bound on every variable.
func (p *Problem) SetUpperBound(ub float64) error {
	if err := p.configurable(); err != nil {
		return err
	}
	return p.configured(wrap("set upper bound", cSetUpperBound(p.run.handle, ub)))
}

// LowerBounds returns the current lower bounds.
func (p *Problem) LowerBounds() ([]float64, error) {
	if p.state == stateClosed {
		return nil, ErrClosed
	}
	lb := make([]float64, p.n)
	if err := wrap("get lower bounds", cLowerBounds(p.run.handle, lb)); err != nil {
		return nil, err
	}
	return lb, nil
}

// UpperBounds returns the current upper bounds.
func (p *Problem) UpperBounds() ([]float64, error) {
	if p.state == stateClosed {
		return nil, ErrClosed
	}
	ub := make([]float64, p.n)
	if err := wrap("get upper bounds", cUpperBounds(p.run.handle, ub)); err != nil {
		return nil, err
	}
	return ub, nil
}

// SetStop installs a stopping criterion. Criteria of different kinds combine;
// setting the same kind again replaces its value.
func (p *Problem) SetStop(cond StopCond) error {
	if err := p.configurable(); err != nil {
		return err
	}
	if cond == nil {
		return fmt.Errorf("nlopt: set stop: nil condition: %w", ErrInvalidArgs)
	}
	if err := wrap("set "+cond.String(), cond.apply(p.run.handle, p.n)); err != nil {
		return err
	}
	p.run.logger.Debug("nlopt: stop condition set", "stop", cond.String())
	return p.configured(nil)
}

// SetInitialStep sets the initial step per variable for derivative-free
// local algorithms.
func (p *Problem) SetInitialStep(dx []float64) error {
	if err := p.configurable(); err != nil {
		return err
	}
	if err := p.checkLen("initial step", dx); err != nil {
		return err
	}
	return p.configured(wrap("set initial step", cSetInitialStep(p.run.handle, dx)))
}

// SetInitialStep1 sets the same initial step for every variable.
func (p *Problem) SetInitialStep1(dx float64) error {
	if err := p.configurable(); err != nil {
		return err
	}
	return p.configured(wrap("set initial step", cSetInitialStep1(p.run.handle, dx)))
}

// SetPopulation sets the initial population size of stochastic algorithms;
// 0 selects NLopt's heuristic.
func (p *Problem) SetPopulation(pop uint) error {
	if err := p.configurable(); err != nil {
		return err
	}
	return p.configured(wrap("set population", cSetPopulation(p.run.handle, pop)))
}

// SetLocalOptimizer sets the subsidiary algorithm used by AUGLAG and MLSL.
// Only local's algorithm, stopping criteria and parameters are used; NLopt
// copies it, so local may be closed afterwards.
func (p *Problem) SetLocalOptimizer(local *Problem) error {
	if err := p.configurable(); err != nil {
		return err
	}
	if local == nil || local.state == stateClosed {
		return fmt.Errorf("nlopt: set local optimizer: %w", ErrInvalidArgs)
	}
	if local.n != p.n {
		return fmt.Errorf("nlopt: local optimizer has %d variables, problem has %d: %w", local.n, p.n, ErrInvalidArgs)
	}
	return p.configured(wrap("set local optimizer", cSetLocalOptimizer(p.run.handle, local.run.handle)))
}

// ForceStop asks a running Optimize to return ErrForcedStop after the current
// evaluation. It is meant to be called from inside an objective or
// constraint; it is not a cross-goroutine cancellation primitive (use
// OptimizeContext for that).
func (p *Problem) ForceStop() error {
	if p.state == stateClosed {
		return ErrClosed
	}
	return wrap("force stop", cForceStop(p.run.handle))
}

// Optimize runs the algorithm from x0, which must have one value per
// variable. It blocks until NLopt returns.
func (p *Problem) Optimize(x0 []float64) (*Solution, error) {
	return p.OptimizeContext(context.Background(), x0)
}

// OptimizeContext is Optimize with cooperative cancellation: once ctx is done
// the next callback forces a stop, and the returned error matches both
// ErrForcedStop and the context's cause.
func (p *Problem) OptimizeContext(ctx context.Context, x0 []float64) (*Solution, error) {
	if err := p.configurable(); err != nil {
		return nil, err
	}
	if err := p.checkLen("initial point", x0); err != nil {
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, fmt.Errorf("%w: %w", ErrForcedStop, context.Cause(ctx))
	}

	x := slices.Clone(x0)
	before := p.objectiveCalls()

	p.state = stateOptimizing
	p.run.ctx = ctx
	p.run.stopRequested = false
	p.run.logger.Debug("nlopt: optimize started", "algorithm", p.algorithm.Key(), "dimension", p.n)

	code, value := cOptimize(p.run.handle, x)

	p.state = stateConfigured
	p.run.ctx = nil
	evals := p.objectiveCalls() - before

	res, err := toResult(code)
	if err != nil {
		p.run.logger.Debug("nlopt: optimize failed", "error", err, "evaluations", evals)
		if err == ErrForcedStop && p.run.stopRequested {
			return nil, fmt.Errorf("%w: %w", err, context.Cause(ctx))
		}
		return nil, err
	}

	p.run.logger.Debug("nlopt: optimize finished", "result", res.String(), "value", value, "evaluations", evals)
	return &Solution{Result: res, X: x, Value: value, Evaluations: evals}, nil
}

func (p *Problem) objectiveCalls() int {
	if p.objective == nil {
		return 0
	}
	return p.objective.calls
}

// Close destroys the NLopt object and releases every registered closure. It
// is safe to call more than once. Close must not be called from inside a
// callback.
func (p *Problem) Close() error {
	if p.state == stateClosed {
		return nil
	}
	if p.state == stateOptimizing {
		return ErrBusy
	}
	p.state = stateClosed
	runtime.SetFinalizer(p, nil)

	cDestroy(p.run.handle)
	p.run.handle = nil

	if p.objective != nil {
		p.objective.release()
		p.objective = nil
	}
	for typ, ccs := range p.constraints {
		for _, cc := range ccs {
			cc.release()
		}
		delete(p.constraints, typ)
	}
	p.run.logger.Debug("nlopt: problem closed", "algorithm", p.algorithm.Key())
	return nil
}

// wrap maps a status code and adds the operation name to failures.
func wrap(op string, code int) error {
	if err := check(code); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
