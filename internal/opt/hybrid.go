package opt

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cwbudde/gonlopt/internal/problems"
)

// Hybrid runs a Mayfly global search and polishes its best point with a
// local NLopt algorithm.
type Hybrid struct {
	global *MayflyAdapter
	local  *NLoptAdapter
	logger *slog.Logger
}

// NewHybrid creates a hybrid optimizer from its two phases
func NewHybrid(global *MayflyAdapter, local *NLoptAdapter) *Hybrid {
	return &Hybrid{global: global, local: local, logger: global.opts.Logger}
}

// Name implements Optimizer
func (h *Hybrid) Name() string { return "hybrid" }

// Run executes the global phase followed by the local polish
func (h *Hybrid) Run(ctx context.Context, p *problems.Problem, obs Observer) (*Result, error) {
	start := time.Now()

	globalRes, err := h.global.Run(ctx, p, obs)
	if err != nil {
		return nil, fmt.Errorf("hybrid global phase: %w", err)
	}
	h.logger.Info("Hybrid global phase done", "problem", p.Name, "value", globalRes.Value, "evaluations", globalRes.Evaluations)

	alg, err := h.local.Algorithm(p)
	if err != nil {
		return nil, err
	}
	localRes, err := h.local.run(ctx, p, alg, globalRes.X, obs, globalRes.Evaluations)
	if err != nil {
		return nil, fmt.Errorf("hybrid local phase: %w", err)
	}

	return &Result{
		Optimizer:   h.Name(),
		Algorithm:   localRes.Algorithm,
		Status:      localRes.Status,
		X:           localRes.X,
		Value:       localRes.Value,
		Evaluations: globalRes.Evaluations + localRes.Evaluations,
		Elapsed:     time.Since(start),
	}, nil
}
