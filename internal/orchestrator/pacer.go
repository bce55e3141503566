package orchestrator

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Gate enforces a minimum spacing between outbound generation requests. It is
// the single shared mutable resource of a run: every request, across all
// conditions, acquires the same gate before going out. Scoring of returned
// responses never touches it, so scoring may overlap with waiting.
type Gate struct {
	limiter *rate.Limiter
}

// NewGate creates a gate with the given minimum inter-call delay. A
// non-positive delay disables pacing.
func NewGate(minDelay time.Duration) *Gate {
	if minDelay <= 0 {
		return &Gate{limiter: rate.NewLimiter(rate.Inf, 1)}
	}

	return &Gate{limiter: rate.NewLimiter(rate.Every(minDelay), 1)}
}

// Acquire blocks until the next slot is available or the context is done.
func (g *Gate) Acquire(ctx context.Context) error {
	return g.limiter.Wait(ctx)
}
