package extraction

import "fmt"

// EmptyInputError is returned when the job description is empty or
// whitespace-only. No model call is made in that case.
type EmptyInputError struct{}

func (e *EmptyInputError) Error() string {
	return "job description is empty"
}

// FailedError is returned when no attempt within the retry budget produced a
// schema-valid requirement set.
type FailedError struct {
	Attempts int
	Cause    error
}

func (e *FailedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("requirement extraction failed after %d attempts: %v", e.Attempts, e.Cause)
	}
	return fmt.Sprintf("requirement extraction failed after %d attempts", e.Attempts)
}

func (e *FailedError) Unwrap() error {
	return e.Cause
}
