package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/jonathan/resume-tailor/internal/analysis"
	"github.com/jonathan/resume-tailor/internal/extraction"
	"github.com/jonathan/resume-tailor/internal/fetch"
	"github.com/jonathan/resume-tailor/internal/ingestion"
	"github.com/jonathan/resume-tailor/internal/relevance"
)

// Failure kinds recorded on failed runs. The kind names the error class so
// callers can distinguish bad input from exhausted budgets without parsing
// messages.
const (
	KindUnsupportedFormat   = "unsupported_format"
	KindCorruptDocument     = "corrupt_document"
	KindEmptyInput          = "empty_input"
	KindFetchFailed         = "fetch_failed"
	KindExtractionFailed    = "extraction_failed"
	KindAnalysisFailed      = "analysis_failed"
	KindRelevanceIncomplete = "relevance_incomplete"
	KindTimeout             = "timeout"
	KindCancelled           = "cancelled"
	KindInternal            = "internal"
)

// StageError wraps a stage failure with the stage name and failure kind that
// get recorded on the run.
type StageError struct {
	Stage string
	Kind  string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s failed (%s): %v", e.Stage, e.Kind, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// classify maps a stage failure onto its failure kind. Context errors win
// over everything else: a retry loop that aborted on cancellation wraps the
// context error, and that run is cancelled, not failed on the stage.
func classify(stage string, err error) *StageError {
	kind := KindInternal

	var (
		unsupportedErr *ingestion.UnsupportedFormatError
		corruptErr     *ingestion.CorruptDocumentError
		fetchErr       *fetch.Error
		emptyErr       *extraction.EmptyInputError
		extractErr     *extraction.FailedError
		analysisErr    *analysis.FailedError
		incompleteErr  *relevance.IncompleteError
	)

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		kind = KindTimeout
	case errors.Is(err, context.Canceled):
		kind = KindCancelled
	case errors.As(err, &unsupportedErr):
		kind = KindUnsupportedFormat
	case errors.As(err, &corruptErr):
		kind = KindCorruptDocument
	case errors.As(err, &emptyErr):
		kind = KindEmptyInput
	case errors.As(err, &fetchErr):
		kind = KindFetchFailed
	case errors.As(err, &extractErr):
		kind = KindExtractionFailed
	case errors.As(err, &analysisErr):
		kind = KindAnalysisFailed
	case errors.As(err, &incompleteErr):
		kind = KindRelevanceIncomplete
	}

	return &StageError{Stage: stage, Kind: kind, Err: err}
}
