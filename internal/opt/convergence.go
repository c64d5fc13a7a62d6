package opt

import (
	"errors"
	"log/slog"
	"math"
)

// ErrConverged is the cancellation cause used when a run stalls.
var ErrConverged = errors.New("opt: no significant improvement")

// Convergence configures stall detection across objective evaluations
type Convergence struct {
	// Patience is the number of evaluations without significant improvement
	// of the best value before the run is stopped. Zero disables detection.
	Patience int `json:"patience" yaml:"patience"`

	// Threshold is the minimum relative improvement that counts as progress.
	// Example: 0.001 = 0.1% improvement required
	Threshold float64 `json:"threshold" yaml:"threshold"`
}

// Enabled reports whether stall detection is active
func (c Convergence) Enabled() bool {
	return c.Patience > 0
}

// convergenceTracker watches the best cost of a run. Costs are always
// minimized; maximization is handled by the caller negating values.
type convergenceTracker struct {
	config          Convergence
	bestCost        float64
	lastSignificant float64
	staleCount      int
	seen            int
}

func newConvergenceTracker(config Convergence) *convergenceTracker {
	return &convergenceTracker{
		config:          config,
		bestCost:        math.Inf(1),
		lastSignificant: math.Inf(1),
	}
}

// Update records a cost and returns true once the run has stalled
func (c *convergenceTracker) Update(cost float64) bool {
	if !c.config.Enabled() || math.IsNaN(cost) {
		return false
	}
	c.seen++
	if cost < c.bestCost {
		c.bestCost = cost
	}

	if c.seen == 1 || math.IsInf(c.lastSignificant, 1) {
		c.lastSignificant = c.bestCost
		return false
	}

	scale := math.Max(math.Abs(c.lastSignificant), 1e-12)
	improvement := (c.lastSignificant - c.bestCost) / scale
	if improvement >= c.config.Threshold && improvement > 0 {
		c.lastSignificant = c.bestCost
		c.staleCount = 0
		return false
	}

	c.staleCount++
	if c.staleCount >= c.config.Patience {
		slog.Debug("opt: convergence detected",
			"stale_count", c.staleCount,
			"patience", c.config.Patience,
			"best_cost", c.bestCost,
		)
		return true
	}
	return false
}

// BestCost returns the best cost seen so far
func (c *convergenceTracker) BestCost() float64 {
	return c.bestCost
}

// StaleCount returns the current number of evaluations without improvement
func (c *convergenceTracker) StaleCount() int {
	return c.staleCount
}
