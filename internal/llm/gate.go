package llm

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/semaphore"

	"github.com/jonathan/resume-tailor/internal/observability"
)

// Gated bounds concurrent calls to an inner client with a weighted semaphore.
// The text-generation capability is the one shared resource across pipeline
// runs; the orchestrator owns a single Gated instance and injects it into
// every stage rather than exposing the raw client.
type Gated struct {
	inner Client
	sem   *semaphore.Weighted
}

// NewGated wraps inner so at most maxInFlight calls run concurrently.
func NewGated(inner Client, maxInFlight int64) *Gated {
	if maxInFlight < 1 {
		maxInFlight = 1
	}
	return &Gated{
		inner: inner,
		sem:   semaphore.NewWeighted(maxInFlight),
	}
}

// GenerateContent acquires a slot, then delegates. Waiting respects ctx, so a
// cancelled run never holds a queued call.
func (g *Gated) GenerateContent(ctx context.Context, prompt string, tier ModelTier) (string, error) {
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return "", fmt.Errorf("waiting for llm slot: %w", err)
	}
	defer g.sem.Release(1)

	observability.LLMInFlight.Inc()
	defer observability.LLMInFlight.Dec()
	out, err := g.inner.GenerateContent(ctx, prompt, tier)
	observability.LLMCalls.WithLabelValues(callOutcome(err)).Inc()
	return out, err
}

// GenerateJSON acquires a slot, then delegates.
func (g *Gated) GenerateJSON(ctx context.Context, prompt string, tier ModelTier) (string, error) {
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return "", fmt.Errorf("waiting for llm slot: %w", err)
	}
	defer g.sem.Release(1)

	observability.LLMInFlight.Inc()
	defer observability.LLMInFlight.Dec()
	out, err := g.inner.GenerateJSON(ctx, prompt, tier)
	observability.LLMCalls.WithLabelValues(callOutcome(err)).Inc()
	return out, err
}

// GetModel delegates to the inner client.
func (g *Gated) GetModel(tier ModelTier) string {
	return g.inner.GetModel(tier)
}

// Close delegates to the inner client.
func (g *Gated) Close() error {
	return g.inner.Close()
}

// callOutcome labels a finished call for the metrics counter.
func callOutcome(err error) string {
	if err == nil {
		return "ok"
	}
	var callErr *CallError
	if errors.As(err, &callErr) {
		return string(callErr.Kind)
	}
	return "error"
}
