package fit

import (
	"log/slog"
	"math"
)

// ConvergenceConfig controls early stopping across restart rounds of a
// multi-start fit.
type ConvergenceConfig struct {
	// Enabled controls whether early stopping is active.
	Enabled bool

	// Patience is the number of restart rounds with no significant
	// improvement before stopping.
	Patience int

	// Threshold is the minimum relative cost improvement,
	// (oldCost - newCost) / oldCost, that counts as progress.
	Threshold float64
}

// DefaultConvergenceConfig returns the early-stopping defaults.
func DefaultConvergenceConfig() ConvergenceConfig {
	return ConvergenceConfig{
		Enabled:   true,
		Patience:  3,
		Threshold: 0.001,
	}
}

// DisabledConvergenceConfig turns early stopping off; every requested
// restart runs.
func DisabledConvergenceConfig() ConvergenceConfig {
	return ConvergenceConfig{Enabled: false}
}

// ConvergenceTracker records the best cost of each restart round and
// detects when further restarts stop paying off.
type ConvergenceTracker struct {
	config          ConvergenceConfig
	costHistory     []float64
	bestCost        float64
	lastSignificant float64
	staleCount      int
}

// NewConvergenceTracker creates a tracker with the given config.
func NewConvergenceTracker(config ConvergenceConfig) *ConvergenceTracker {
	return &ConvergenceTracker{
		config:          config,
		bestCost:        math.Inf(1),
		lastSignificant: math.Inf(1),
	}
}

// Update records the cost of a finished round and reports whether the
// fit has converged.
func (c *ConvergenceTracker) Update(cost float64) bool {
	if !c.config.Enabled {
		return false
	}

	c.costHistory = append(c.costHistory, cost)
	if cost < c.bestCost {
		c.bestCost = cost
	}

	if len(c.costHistory) == 1 {
		c.lastSignificant = cost
		return false
	}

	relative := (c.lastSignificant - cost) / c.lastSignificant
	if relative >= c.config.Threshold {
		c.lastSignificant = cost
		c.staleCount = 0
		slog.Debug("cost improvement",
			"cost", cost,
			"relative_improvement", relative,
		)
		return false
	}

	c.staleCount++
	slog.Debug("no significant improvement",
		"cost", cost,
		"last_significant", c.lastSignificant,
		"stale_count", c.staleCount,
		"patience", c.config.Patience,
	)
	if c.staleCount >= c.config.Patience {
		slog.Info("converged, stopping restarts early",
			"stale_count", c.staleCount,
			"best_cost", c.bestCost,
		)
		return true
	}
	return false
}

// BestCost returns the best cost seen so far.
func (c *ConvergenceTracker) BestCost() float64 {
	return c.bestCost
}

// History returns a copy of the recorded cost history.
func (c *ConvergenceTracker) History() []float64 {
	return append([]float64{}, c.costHistory...)
}

// StaleCount returns the rounds elapsed since the last significant
// improvement.
func (c *ConvergenceTracker) StaleCount() int {
	return c.staleCount
}

// Reset clears the tracker for reuse.
func (c *ConvergenceTracker) Reset() {
	c.costHistory = nil
	c.bestCost = math.Inf(1)
	c.lastSignificant = math.Inf(1)
	c.staleCount = 0
}
