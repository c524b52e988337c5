package similarity

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
)

// BreakerConfig holds the circuit breaker configuration for the embedding
// provider.
type BreakerConfig struct {
	// MaxFailures is the number of consecutive failures required to trip
	// the circuit. Default: 3.
	MaxFailures uint32

	// Timeout is the duration the circuit stays open before transitioning
	// to half-open. Default: 30 seconds.
	Timeout time.Duration

	// HalfOpenMaxSuccesses is the number of consecutive successes required
	// in half-open state to close the circuit again. Default: 2.
	HalfOpenMaxSuccesses uint32
}

// BreakerProvider wraps a Provider with a circuit breaker so that a failing
// embedding backend stops being hammered and callers degrade immediately.
// When the circuit is open, Embed returns ErrUnavailable without calling the
// wrapped provider.
type BreakerProvider struct {
	inner   Provider
	breaker *gobreaker.CircuitBreaker
}

// NewBreakerProvider wraps inner with default breaker settings.
func NewBreakerProvider(inner Provider) *BreakerProvider {
	return NewBreakerProviderWithConfig(inner, BreakerConfig{
		MaxFailures:          3,
		Timeout:              30 * time.Second,
		HalfOpenMaxSuccesses: 2,
	})
}

// NewBreakerProviderWithConfig wraps inner with custom breaker settings.
func NewBreakerProviderWithConfig(inner Provider, cfg BreakerConfig) *BreakerProvider {
	settings := gobreaker.Settings{
		Name:        "SimilarityProvider",
		MaxRequests: cfg.HalfOpenMaxSuccesses,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
	}
	return &BreakerProvider{
		inner:   inner,
		breaker: gobreaker.NewCircuitBreaker(settings),
	}
}

// Embed calls the wrapped provider through the circuit breaker.
func (p *BreakerProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	result, err := p.breaker.Execute(func() (interface{}, error) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		return p.inner.Embed(ctx, text)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, ErrUnavailable
		}
		return nil, err
	}
	return result.([]float32), nil
}

// State returns the current breaker state: "closed", "open", or "half-open".
func (p *BreakerProvider) State() string {
	switch p.breaker.State() {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateOpen:
		return "open"
	case gobreaker.StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}
