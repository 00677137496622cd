package notify

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// Limited throttles deliveries with a token bucket.
type Limited struct {
	next    Notifier
	limiter *rate.Limiter
}

// NewLimited wraps next so that at most burst messages go out back to back
// and the bucket refills at every.
func NewLimited(next Notifier, every rate.Limit, burst int) *Limited {
	if burst <= 0 {
		burst = 1
	}

	return &Limited{
		next:    next,
		limiter: rate.NewLimiter(every, burst),
	}
}

// Deliver implements Notifier. Waiting for a token honours ctx, so a
// deadline shorter than the wait fails the delivery instead of blocking.
func (l *Limited) Deliver(ctx context.Context, channel, text string) error {
	if err := l.limiter.Wait(ctx); err != nil {
		return deliveryError(fmt.Errorf("rate limit: %w", err))
	}

	return l.next.Deliver(ctx, channel, text)
}
