package store

import (
	"fmt"
	"time"

	"github.com/cwbudde/gonlopt/internal/config"
	"github.com/cwbudde/gonlopt/internal/opt"
)

// Terminal statuses for runs that produced no result.
const (
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// RunRecord is the persisted outcome of one optimization run.
type RunRecord struct {
	// ID is the unique identifier of the run (shared with the server job)
	ID string `json:"id"`

	// Config is the configuration the run was started with
	Config config.RunConfig `json:"config"`

	// Status is the optimizer's termination status (e.g. "XTolReached",
	// "Converged") or StatusFailed / StatusCancelled
	Status string `json:"status"`

	// Algorithm is the NLopt algorithm that ran, if any
	Algorithm string `json:"algorithm,omitempty"`

	// X and Value are the best point and its objective value
	X     []float64 `json:"x,omitempty"`
	Value float64   `json:"value"`

	// Evaluations is the number of objective evaluations
	Evaluations int `json:"evaluations"`

	// Elapsed is the wall time of the run
	Elapsed time.Duration `json:"elapsed"`

	// Error describes why a failed run produced no result
	Error string `json:"error,omitempty"`

	// Timestamp records when the run finished
	Timestamp time.Time `json:"timestamp"`
}

// RunInfo is the listing view of a run record.
type RunInfo struct {
	ID          string    `json:"id"`
	Problem     string    `json:"problem"`
	Optimizer   string    `json:"optimizer"`
	Algorithm   string    `json:"algorithm,omitempty"`
	Status      string    `json:"status"`
	Value       float64   `json:"value"`
	Evaluations int       `json:"evaluations"`
	Timestamp   time.Time `json:"timestamp"`
}

// NewRunRecord creates a record from an optimizer result. err, if non-nil,
// marks the run as failed or cancelled and res may be nil.
func NewRunRecord(runID string, cfg config.RunConfig, res *opt.Result, err error, cancelled bool) *RunRecord {
	rec := &RunRecord{
		ID:        runID,
		Config:    cfg,
		Timestamp: time.Now(),
	}
	if err != nil {
		rec.Status = StatusFailed
		if cancelled {
			rec.Status = StatusCancelled
		}
		rec.Error = err.Error()
		return rec
	}
	rec.Status = res.Status
	rec.Algorithm = res.Algorithm
	rec.X = res.X
	rec.Value = res.Value
	rec.Evaluations = res.Evaluations
	rec.Elapsed = res.Elapsed
	return rec
}

// Succeeded reports whether the run produced a result.
func (r *RunRecord) Succeeded() bool {
	return r.Error == "" && r.Status != StatusFailed && r.Status != StatusCancelled
}

// ToInfo converts a full RunRecord to RunInfo (metadata only).
func (r *RunRecord) ToInfo() RunInfo {
	return RunInfo{
		ID:          r.ID,
		Problem:     r.Config.Problem,
		Optimizer:   r.Config.Optimizer,
		Algorithm:   r.Algorithm,
		Status:      r.Status,
		Value:       r.Value,
		Evaluations: r.Evaluations,
		Timestamp:   r.Timestamp,
	}
}

// Validate checks if the record has valid data.
func (r *RunRecord) Validate() error {
	if r.ID == "" {
		return &ValidationError{Field: "ID", Reason: "cannot be empty"}
	}
	if r.Config.Problem == "" {
		return &ValidationError{Field: "Config.Problem", Reason: "cannot be empty"}
	}
	if r.Status == "" {
		return &ValidationError{Field: "Status", Reason: "cannot be empty"}
	}
	if r.Evaluations < 0 {
		return &ValidationError{Field: "Evaluations", Reason: "cannot be negative"}
	}
	if r.Timestamp.IsZero() {
		return &ValidationError{Field: "Timestamp", Reason: "cannot be zero"}
	}
	if r.Succeeded() && len(r.X) == 0 {
		return &ValidationError{Field: "X", Reason: "cannot be empty for a successful run"}
	}
	if !r.Succeeded() && r.Error == "" {
		return &ValidationError{Field: "Error", Reason: "cannot be empty for a failed run"}
	}
	return nil
}

// ValidationError represents a run record validation error.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation error: " + e.Field + " " + e.Reason
}

// IsCompatible checks whether this run's best point can warm-start a run with
// the given config.
func (r *RunRecord) IsCompatible(cfg config.RunConfig) error {
	if !r.Succeeded() {
		return &CompatibilityError{Field: "Status", Expected: "a successful run", Actual: r.Status}
	}
	if r.Config.Problem != cfg.Problem {
		return &CompatibilityError{
			Field:    "Problem",
			Expected: r.Config.Problem,
			Actual:   cfg.Problem,
		}
	}
	if cfg.X0 != nil && len(cfg.X0) != len(r.X) {
		return &CompatibilityError{
			Field:    "X0",
			Expected: fmt.Sprintf("%d values", len(r.X)),
			Actual:   fmt.Sprintf("%d values", len(cfg.X0)),
		}
	}
	return nil
}

// CompatibilityError represents a warm-start compatibility error.
type CompatibilityError struct {
	Field    string
	Expected string
	Actual   string
}

func (e *CompatibilityError) Error() string {
	return "compatibility error: " + e.Field + " mismatch (expected " + e.Expected + ", got " + e.Actual + ")"
}
