package lyrics

import (
	"context"

	"golang.org/x/time/rate"
)

// defaultRateLimit is the spec's default per-provider token bucket: 5
// requests per second, burst 5.
const defaultRateLimit = 5

// rateLimitedDoer wraps a token bucket so each provider's HTTP calls block
// until admitted rather than needing their own rate.Limiter bookkeeping.
type rateLimitedDoer struct {
	limiter *rate.Limiter
}

// newRateLimitedDoer constructs a token bucket at reqPerSec with a burst
// equal to its rate, falling back to the spec default for a non-positive
// value.
func newRateLimitedDoer(reqPerSec int) *rateLimitedDoer {
	if reqPerSec <= 0 {
		reqPerSec = defaultRateLimit
	}
	return &rateLimitedDoer{limiter: rate.NewLimiter(rate.Limit(reqPerSec), reqPerSec)}
}

// wait blocks until the limiter admits one request or ctx is cancelled.
func (d *rateLimitedDoer) wait(ctx context.Context) error {
	return d.limiter.Wait(ctx)
}
