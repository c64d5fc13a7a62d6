// Package config defines the run configuration shared by the CLI, the job
// server and the run store. It is read from YAML files and accepted as JSON.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cwbudde/gonlopt/internal/nlopt"
	"github.com/cwbudde/gonlopt/internal/opt"
	"github.com/cwbudde/gonlopt/internal/problems"
)

// MaxFileSize bounds config files read by Load.
const MaxFileSize = 1 << 20

// Optimizer names accepted in RunConfig.Optimizer.
const (
	OptimizerNLopt  = "nlopt"
	OptimizerMayfly = "mayfly"
	OptimizerHybrid = "hybrid"
)

// StopConfig lists stopping criteria; zero values are left unset.
type StopConfig struct {
	FTolRel  float64   `json:"ftolRel,omitempty" yaml:"ftolRel,omitempty"`
	FTolAbs  float64   `json:"ftolAbs,omitempty" yaml:"ftolAbs,omitempty"`
	XTolRel  float64   `json:"xtolRel,omitempty" yaml:"xtolRel,omitempty"`
	XTolAbs  []float64 `json:"xtolAbs,omitempty" yaml:"xtolAbs,omitempty"`
	XTolAbs1 float64   `json:"xtolAbs1,omitempty" yaml:"xtolAbs1,omitempty"`
	StopVal  *float64  `json:"stopVal,omitempty" yaml:"stopVal,omitempty"`
	MaxEval  int       `json:"maxEval,omitempty" yaml:"maxEval,omitempty"`
	MaxTime  string    `json:"maxTime,omitempty" yaml:"maxTime,omitempty"` // e.g. "30s"
}

// MayflyConfig configures the Mayfly global search.
type MayflyConfig struct {
	Iterations int     `json:"iterations,omitempty" yaml:"iterations,omitempty"`
	Population int     `json:"population,omitempty" yaml:"population,omitempty"`
	Penalty    float64 `json:"penalty,omitempty" yaml:"penalty,omitempty"`
}

// RunConfig describes one optimization run.
type RunConfig struct {
	Problem        string          `json:"problem" yaml:"problem"`
	Optimizer      string          `json:"optimizer" yaml:"optimizer"`
	Algorithm      string          `json:"algorithm,omitempty" yaml:"algorithm,omitempty"`
	LocalAlgorithm string          `json:"localAlgorithm,omitempty" yaml:"localAlgorithm,omitempty"`
	X0             []float64       `json:"x0,omitempty" yaml:"x0,omitempty"`
	Seed           int64           `json:"seed,omitempty" yaml:"seed,omitempty"`
	Stop           StopConfig      `json:"stop" yaml:"stop"`
	Population     uint            `json:"population,omitempty" yaml:"population,omitempty"`
	InitialStep    float64         `json:"initialStep,omitempty" yaml:"initialStep,omitempty"`
	Mayfly         MayflyConfig    `json:"mayfly" yaml:"mayfly"`
	Convergence    opt.Convergence `json:"convergence" yaml:"convergence"`

	// TraceEvery records every Nth evaluation in the run trace; 0 disables
	// tracing.
	TraceEvery int `json:"traceEvery,omitempty" yaml:"traceEvery,omitempty"`
}

// ValidationError represents an invalid configuration field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid config: " + e.Field + " " + e.Reason
}

// Load reads a YAML run configuration, applies defaults and validates it.
func Load(path string) (*RunConfig, error) {
	data, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// ReadFile reads a config file, refusing files larger than MaxFileSize.
func ReadFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, MaxFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > MaxFileSize {
		return nil, fmt.Errorf("config %s exceeds %d bytes", path, MaxFileSize)
	}
	return data, nil
}

// Parse decodes YAML, then applies defaults and validates.
func Parse(data []byte) (*RunConfig, error) {
	cfg, err := Decode(data)
	if err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Decode decodes YAML, rejecting unknown fields. The result is neither
// defaulted nor validated, so callers can layer overrides on top.
func Decode(data []byte) (*RunConfig, error) {
	var cfg RunConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &cfg, nil
}

// Marshal renders the configuration as YAML.
func (c *RunConfig) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// ApplyDefaults fills unset fields.
func (c *RunConfig) ApplyDefaults() {
	if c.Optimizer == "" {
		c.Optimizer = OptimizerNLopt
	}
	if c.Mayfly.Iterations <= 0 {
		c.Mayfly.Iterations = 100
	}
	if c.Mayfly.Population <= 0 {
		c.Mayfly.Population = 30
	}
	if c.Convergence.Patience > 0 && c.Convergence.Threshold <= 0 {
		c.Convergence.Threshold = 1e-3
	}
}

// Validate checks the configuration against the problem registry and the
// algorithm table.
func (c *RunConfig) Validate() error {
	if c.Problem == "" {
		return &ValidationError{Field: "problem", Reason: "is required"}
	}
	p, err := problems.Get(c.Problem)
	if err != nil {
		return &ValidationError{Field: "problem", Reason: err.Error()}
	}

	switch c.Optimizer {
	case OptimizerNLopt, OptimizerMayfly, OptimizerHybrid:
	default:
		return &ValidationError{Field: "optimizer", Reason: fmt.Sprintf("must be nlopt, mayfly or hybrid, got %q", c.Optimizer)}
	}

	if c.Algorithm != "" {
		if _, err := nlopt.ParseAlgorithm(c.Algorithm); err != nil {
			return &ValidationError{Field: "algorithm", Reason: err.Error()}
		}
	}
	if c.LocalAlgorithm != "" {
		if _, err := nlopt.ParseAlgorithm(c.LocalAlgorithm); err != nil {
			return &ValidationError{Field: "localAlgorithm", Reason: err.Error()}
		}
	}

	if c.X0 != nil && len(c.X0) != p.Dim {
		return &ValidationError{Field: "x0", Reason: fmt.Sprintf("has %d values, problem %s has %d variables", len(c.X0), p.Name, p.Dim)}
	}
	if c.Stop.XTolAbs != nil && len(c.Stop.XTolAbs) != p.Dim {
		return &ValidationError{Field: "stop.xtolAbs", Reason: fmt.Sprintf("has %d values, problem %s has %d variables", len(c.Stop.XTolAbs), p.Name, p.Dim)}
	}
	if c.Stop.MaxEval < 0 {
		return &ValidationError{Field: "stop.maxEval", Reason: "cannot be negative"}
	}
	if c.Stop.MaxTime != "" {
		d, err := time.ParseDuration(c.Stop.MaxTime)
		if err != nil || d < 0 {
			return &ValidationError{Field: "stop.maxTime", Reason: fmt.Sprintf("invalid duration %q", c.Stop.MaxTime)}
		}
	}
	if c.Mayfly.Population < opt.MinMayflyPopulation {
		return &ValidationError{Field: "mayfly.population", Reason: fmt.Sprintf("must be at least %d", opt.MinMayflyPopulation)}
	}
	if c.Convergence.Patience < 0 {
		return &ValidationError{Field: "convergence.patience", Reason: "cannot be negative"}
	}
	if c.TraceEvery < 0 {
		return &ValidationError{Field: "traceEvery", Reason: "cannot be negative"}
	}
	return nil
}

// Stops builds the NLopt stopping criteria. An empty list means the
// optimizer's defaults apply.
func (c *RunConfig) Stops() []nlopt.StopCond {
	s := c.Stop
	var stops []nlopt.StopCond
	if s.FTolRel > 0 {
		stops = append(stops, nlopt.FTolRel(s.FTolRel))
	}
	if s.FTolAbs > 0 {
		stops = append(stops, nlopt.FTolAbs(s.FTolAbs))
	}
	if s.XTolRel > 0 {
		stops = append(stops, nlopt.XTolRel(s.XTolRel))
	}
	if len(s.XTolAbs) > 0 {
		stops = append(stops, nlopt.XTolAbs(s.XTolAbs))
	}
	if s.XTolAbs1 > 0 {
		stops = append(stops, nlopt.XTolAbs1(s.XTolAbs1))
	}
	if s.StopVal != nil {
		stops = append(stops, nlopt.StopVal(*s.StopVal))
	}
	if s.MaxEval > 0 {
		stops = append(stops, nlopt.MaxEval(s.MaxEval))
	}
	if d, err := time.ParseDuration(s.MaxTime); err == nil && d > 0 {
		stops = append(stops, nlopt.MaxTime(d))
	}
	return stops
}

// BuildProblem returns the configured problem with x0 applied.
func (c *RunConfig) BuildProblem() (*problems.Problem, error) {
	p, err := problems.Get(c.Problem)
	if err != nil {
		return nil, err
	}
	if c.X0 != nil {
		p.X0 = append([]float64(nil), c.X0...)
	}
	return p, nil
}

// BuildOptimizer returns the configured optimizer.
func (c *RunConfig) BuildOptimizer(logger *slog.Logger) (opt.Optimizer, error) {
	nl := opt.NewNLopt(opt.NLoptOptions{
		Algorithm:      c.Algorithm,
		LocalAlgorithm: c.LocalAlgorithm,
		Stops:          c.Stops(),
		Population:     c.Population,
		InitialStep:    c.InitialStep,
		Seed:           c.Seed,
		Convergence:    c.Convergence,
		Logger:         logger,
	})
	mf := opt.NewMayfly(opt.MayflyOptions{
		MaxIters:    c.Mayfly.Iterations,
		PopSize:     c.Mayfly.Population,
		Seed:        c.Seed,
		Penalty:     c.Mayfly.Penalty,
		Convergence: c.Convergence,
		Logger:      logger,
	})

	switch c.Optimizer {
	case OptimizerNLopt:
		return nl, nil
	case OptimizerMayfly:
		return mf, nil
	case OptimizerHybrid:
		return opt.NewHybrid(mf, nl), nil
	}
	return nil, &ValidationError{Field: "optimizer", Reason: fmt.Sprintf("unknown optimizer %q", c.Optimizer)}
}
