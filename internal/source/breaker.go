package source

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/oshokin/alert-relay/internal/domain/alarm"
	"github.com/oshokin/alert-relay/internal/logger"
)

// Breaker wraps a Client with one circuit breaker per source. An open
// breaker fails the fetch without calling the source.
type Breaker struct {
	next        Client
	failures    uint32
	openTimeout time.Duration

	// mu protects breakers.
	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

// NewBreaker wraps next. The breaker for a source opens after failures
// consecutive errors and half-opens after openTimeout.
func NewBreaker(next Client, failures uint32, openTimeout time.Duration) *Breaker {
	if failures == 0 {
		failures = 1
	}

	return &Breaker{
		next:        next,
		failures:    failures,
		openTimeout: openTimeout,
		breakers:    make(map[string]*gobreaker.CircuitBreaker),
	}
}

// Fetch implements Client.
func (b *Breaker) Fetch(ctx context.Context, src alarm.Source) (*Report, error) {
	result, err := b.breakerFor(src).Execute(func() (interface{}, error) {
		return b.next.Fetch(ctx, src)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, unreachable(src, err)
		}

		return nil, err
	}

	report, _ := result.(*Report)

	return report, nil
}

// State returns the breaker state of src, for logs and tests.
func (b *Breaker) State(src alarm.Source) gobreaker.State {
	return b.breakerFor(src).State()
}

// breakerFor returns the breaker of src, creating it on first use.
func (b *Breaker) breakerFor(src alarm.Source) *gobreaker.CircuitBreaker {
	key := string(src.Kind) + " " + src.BaseURL()

	b.mu.Lock()
	defer b.mu.Unlock()

	if cb, found := b.breakers[key]; found {
		return cb
	}

	failures := b.failures
	label := src.Label()

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        key,
		MaxRequests: 1,
		Timeout:     b.openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		IsSuccessful: func(err error) bool {
			// Shutdown cancellations say nothing about the source.
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(_ string, from, to gobreaker.State) {
			logger.Logger().Warnw("Source breaker state changed",
				"source", label, "from", from.String(), "to", to.String())
		},
	})

	b.breakers[key] = cb

	return cb
}
