// internal/edgar/ratelimit.go
package edgar

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Pacer enforces the global minimum spacing between upstream requests. Both
// discovery strategies share one Pacer. Burst is 1, so a caller that already
// waited behind another is not delayed a second time.
type Pacer struct {
	limiter *rate.Limiter
}

// NewPacer returns a Pacer allowing one request per minInterval.
func NewPacer(minInterval time.Duration) *Pacer {
	if minInterval <= 0 {
		minInterval = time.Millisecond
	}
	return &Pacer{limiter: rate.NewLimiter(rate.Every(minInterval), 1)}
}

// Wait blocks until the next request slot or until ctx is done.
func (p *Pacer) Wait(ctx context.Context) error {
	return p.limiter.Wait(ctx)
}
