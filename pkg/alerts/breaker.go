package alerts

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker/v2"
)

// BreakerSettings tunes the circuit breaker around a notifier.
type BreakerSettings struct {
	MaxFailures uint32        // consecutive failures before opening
	Timeout     time.Duration // how long the breaker stays open
}

// Breaker wraps a Notifier with a circuit breaker so a failing channel is
// not called on every alert of a cycle.
type Breaker struct {
	next Notifier
	cb   *gobreaker.CircuitBreaker[struct{}]
}

// NewBreaker wraps next. Zero settings fall back to 5 failures and 30s.
func NewBreaker(next Notifier, s BreakerSettings) *Breaker {
	if s.MaxFailures == 0 {
		s.MaxFailures = 5
	}
	if s.Timeout == 0 {
		s.Timeout = 30 * time.Second
	}

	cb := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        next.Name(),
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     s.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= s.MaxFailures
		},
		// A missing recipient says nothing about the channel's health.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrNoRecipient)
		},
	})

	return &Breaker{next: next, cb: cb}
}

func (b *Breaker) Name() string { return b.next.Name() }

func (b *Breaker) Send(ctx context.Context, n Notification) error {
	_, err := b.cb.Execute(func() (struct{}, error) {
		return struct{}{}, b.next.Send(ctx, n)
	})
	return err
}

// State reports the breaker state, for logging.
func (b *Breaker) State() string {
	return b.cb.State().String()
}
