package analysis

import "fmt"

// FailedError is returned when resume analysis cannot produce a valid
// statement set within the retry budget, or when an assembled statement
// violates the span invariant.
type FailedError struct {
	Attempts int
	Cause    error
}

func (e *FailedError) Error() string {
	if e.Attempts > 0 {
		return fmt.Sprintf("resume analysis failed after %d attempts: %v", e.Attempts, e.Cause)
	}
	return fmt.Sprintf("resume analysis failed: %v", e.Cause)
}

func (e *FailedError) Unwrap() error {
	return e.Cause
}
