package opt

import (
	"context"
	"time"

	"github.com/cwbudde/gonlopt/internal/problems"
)

// Optimizer defines an optimization algorithm interface
type Optimizer interface {
	// Name identifies the optimizer in logs, metrics and run records
	Name() string

	// Run minimizes (or maximizes) p starting from p.X0.
	// obs, if non-nil, sees every objective evaluation.
	// Cancelling ctx stops the run at the next evaluation.
	Run(ctx context.Context, p *problems.Problem, obs Observer) (*Result, error)
}

// Result is the outcome of one optimizer run
type Result struct {
	Optimizer   string        `json:"optimizer"`
	Algorithm   string        `json:"algorithm,omitempty"`
	Status      string        `json:"status"`
	X           []float64     `json:"x"`
	Value       float64       `json:"value"`
	Evaluations int           `json:"evaluations"`
	Elapsed     time.Duration `json:"elapsed"`
}

// Evaluation describes one objective evaluation
type Evaluation struct {
	Index int       `json:"index"`
	Value float64   `json:"value"`
	X     []float64 `json:"x"`
	Best  float64   `json:"best"`
}

// Observer receives evaluations synchronously from the optimizer's goroutine.
// X is a copy and may be retained.
type Observer func(Evaluation)
