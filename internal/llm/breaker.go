package llm

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

// BreakerConfig tunes the circuit breaker around the provider.
type BreakerConfig struct {
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	MinRequests      uint32
	FailureThreshold float64
}

// DefaultBreakerConfig returns conservative defaults: trip after 3+ requests
// with 60% failures, half-open after 30s.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxRequests:      2,
		Interval:         60 * time.Second,
		Timeout:          30 * time.Second,
		MinRequests:      3,
		FailureThreshold: 0.6,
	}
}

// Breaker wraps a Client with a circuit breaker so a flapping provider fails
// fast instead of queuing doomed calls behind the concurrency gate.
type Breaker struct {
	inner Client
	cb    *gobreaker.CircuitBreaker[string]
}

// NewBreaker wraps inner with circuit-breaking per cfg.
func NewBreaker(inner Client, cfg BreakerConfig, logger *zap.Logger) *Breaker {
	settings := gobreaker.Settings{
		Name:        "text-generation",
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= cfg.MinRequests && failureRatio >= cfg.FailureThreshold
		},
	}
	if logger != nil {
		settings.OnStateChange = func(name string, from, to gobreaker.State) {
			logger.Warn("llm circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		}
	}

	return &Breaker{
		inner: inner,
		cb:    gobreaker.NewCircuitBreaker[string](settings),
	}
}

// GenerateContent executes the call through the breaker.
func (b *Breaker) GenerateContent(ctx context.Context, prompt string, tier ModelTier) (string, error) {
	return b.execute(ctx, tier, func() (string, error) {
		return b.inner.GenerateContent(ctx, prompt, tier)
	})
}

// GenerateJSON executes the call through the breaker.
func (b *Breaker) GenerateJSON(ctx context.Context, prompt string, tier ModelTier) (string, error) {
	return b.execute(ctx, tier, func() (string, error) {
		return b.inner.GenerateJSON(ctx, prompt, tier)
	})
}

func (b *Breaker) execute(_ context.Context, tier ModelTier, fn func() (string, error)) (string, error) {
	out, err := b.cb.Execute(fn)
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return "", &CallError{Kind: KindModelError, Model: b.inner.GetModel(tier), Cause: err}
		}
		return "", err
	}
	return out, nil
}

// GetModel delegates to the inner client.
func (b *Breaker) GetModel(tier ModelTier) string {
	return b.inner.GetModel(tier)
}

// Close delegates to the inner client.
func (b *Breaker) Close() error {
	return b.inner.Close()
}

// Healthy reports whether the breaker is closed.
func (b *Breaker) Healthy() bool {
	return b.cb.State() == gobreaker.StateClosed
}
