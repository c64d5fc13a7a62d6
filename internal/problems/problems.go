// Package problems is a registry of named test problems with analytic
// gradients and known optima. They back the CLI, the job server and the
// optimizer tests.
package problems

import (
	"fmt"
	"math"
	"slices"
	"sort"

	"github.com/cwbudde/gonlopt/internal/nlopt"
)

// Constraint is one nonlinear constraint of a problem.
type Constraint struct {
	Type      nlopt.ConstraintType
	Eval      nlopt.Evaluator
	Tolerance float64
}

// Problem describes an optimization problem independently of the optimizer
// that solves it.
type Problem struct {
	Name        string
	Description string
	Dim         int
	Sense       nlopt.ObjectiveType

	Objective   nlopt.Evaluator
	Constraints []Constraint

	// Lower and Upper are the hard bounds handed to NLopt; they may be
	// infinite. SearchLower and SearchUpper are always finite and bound the
	// region population-based optimizers sample from.
	Lower, Upper             []float64
	SearchLower, SearchUpper []float64

	X0        []float64
	Algorithm nlopt.Algorithm

	Optimum      []float64
	OptimumValue float64
}

// Feasible reports whether x satisfies the bounds and every constraint within
// its tolerance.
func (p *Problem) Feasible(x []float64) bool {
	for i, v := range x {
		if v < p.Lower[i] || v > p.Upper[i] {
			return false
		}
	}
	for _, c := range p.Constraints {
		v, _ := c.Eval.Evaluate(x, false)
		switch c.Type {
		case nlopt.Equality:
			if math.Abs(v) > c.Tolerance {
				return false
			}
		default:
			if v > c.Tolerance {
				return false
			}
		}
	}
	return true
}

// Clone returns a copy whose slices can be modified without affecting the
// registry.
func (p *Problem) Clone() *Problem {
	c := *p
	c.Constraints = slices.Clone(p.Constraints)
	c.Lower = slices.Clone(p.Lower)
	c.Upper = slices.Clone(p.Upper)
	c.SearchLower = slices.Clone(p.SearchLower)
	c.SearchUpper = slices.Clone(p.SearchUpper)
	c.X0 = slices.Clone(p.X0)
	c.Optimum = slices.Clone(p.Optimum)
	return &c
}

// NotFoundError is returned by Get for unknown names.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("unknown problem %q", e.Name)
}

var registry = map[string]func() *Problem{
	"tutorial":   Tutorial,
	"circle":     Circle,
	"rosenbrock": Rosenbrock,
	"sphere":     Sphere,
	"rastrigin":  Rastrigin,
}

// Get returns a fresh instance of the named problem.
func Get(name string) (*Problem, error) {
	ctor, ok := registry[name]
	if !ok {
		return nil, &NotFoundError{Name: name}
	}
	return ctor(), nil
}

// Names lists the registered problems, sorted.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func fill(n int, v float64) []float64 {
	s := make([]float64, n)
	for i := range s {
		s[i] = v
	}
	return s
}
