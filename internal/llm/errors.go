package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"google.golang.org/api/googleapi"
)

// FailureKind classifies a text-generation failure for the caller's retry and
// failure-recording decisions.
type FailureKind string

const (
	// KindTimeout indicates the call exceeded its deadline.
	KindTimeout FailureKind = "timeout"
	// KindRateLimited indicates the upstream quota rejected the call.
	KindRateLimited FailureKind = "rate_limited"
	// KindModelError covers every other upstream failure.
	KindModelError FailureKind = "model_error"
)

// CallError represents a failed text-generation call.
type CallError struct {
	Kind  FailureKind
	Model string
	Cause error
}

func (e *CallError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("llm call failed (%s, model %s): %v", e.Kind, e.Model, e.Cause)
	}
	return fmt.Sprintf("llm call failed (%s, model %s)", e.Kind, e.Model)
}

func (e *CallError) Unwrap() error {
	return e.Cause
}

// Classify maps a raw provider error onto a FailureKind.
func Classify(err error) FailureKind {
	if err == nil {
		return KindModelError
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		if apiErr.Code == http.StatusTooManyRequests {
			return KindRateLimited
		}
		return KindModelError
	}

	return KindModelError
}

// IsTimeout reports whether err is a timeout-classified call failure.
func IsTimeout(err error) bool {
	var callErr *CallError
	return errors.As(err, &callErr) && callErr.Kind == KindTimeout
}

// IsRateLimited reports whether err is a rate-limit-classified call failure.
func IsRateLimited(err error) bool {
	var callErr *CallError
	return errors.As(err, &callErr) && callErr.Kind == KindRateLimited
}
