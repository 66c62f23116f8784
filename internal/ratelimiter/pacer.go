package ratelimiter

import (
	"context"

	"golang.org/x/time/rate"
)

// Pacer spaces out successive units of background work (one token per unit).
// The evictor uses it between users during a full sweep so a large registry
// does not hammer the database; the deliverer uses it between push sends.
type Pacer struct {
	limiter *rate.Limiter
}

// New creates a Pacer allowing perSec units per second with a burst of one,
// which yields an even inter-unit delay rather than bursts.
func New(perSec float64) *Pacer {
	return &Pacer{limiter: rate.NewLimiter(rate.Limit(perSec), 1)}
}

// Wait blocks until the next unit of work may start.
// Returns a non-nil error only if ctx is cancelled while waiting.
func (p *Pacer) Wait(ctx context.Context) error {
	return p.limiter.Wait(ctx)
}
