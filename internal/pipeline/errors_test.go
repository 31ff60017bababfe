package pipeline

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jonathan/resume-tailor/internal/analysis"
	"github.com/jonathan/resume-tailor/internal/db"
	"github.com/jonathan/resume-tailor/internal/extraction"
	"github.com/jonathan/resume-tailor/internal/fetch"
	"github.com/jonathan/resume-tailor/internal/ingestion"
	"github.com/jonathan/resume-tailor/internal/relevance"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		kind string
	}{
		{"unsupported format", &ingestion.UnsupportedFormatError{Format: "docx"}, KindUnsupportedFormat},
		{"corrupt document", &ingestion.CorruptDocumentError{Format: "pdf", Message: "no extractable text"}, KindCorruptDocument},
		{"empty input", &extraction.EmptyInputError{}, KindEmptyInput},
		{"fetch failure", &fetch.Error{URL: "https://jobs.example.com/1", Message: "status 503"}, KindFetchFailed},
		{"extraction budget", &extraction.FailedError{Attempts: 3}, KindExtractionFailed},
		{"analysis budget", &analysis.FailedError{Attempts: 3, Cause: errors.New("no statement anchored")}, KindAnalysisFailed},
		{"relevance incomplete", &relevance.IncompleteError{RequirementID: "req_004"}, KindRelevanceIncomplete},
		{"wrapped timeout", fmt.Errorf("extraction aborted: %w", context.DeadlineExceeded), KindTimeout},
		{"wrapped cancellation", fmt.Errorf("synthesis aborted: %w", context.Canceled), KindCancelled},
		{"unknown", errors.New("boom"), KindInternal},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			stageErr := classify(db.StageExtract, tc.err)
			assert.Equal(t, tc.kind, stageErr.Kind)
			assert.Equal(t, db.StageExtract, stageErr.Stage)
			assert.ErrorIs(t, stageErr, tc.err)
		})
	}
}

func TestClassify_ContextBeatsTypedErrors(t *testing.T) {
	err := &extraction.FailedError{Attempts: 2, Cause: context.Canceled}
	assert.Equal(t, KindCancelled, classify(db.StageExtract, err).Kind)
}

func TestStageError_Message(t *testing.T) {
	err := &StageError{Stage: db.StageAnalyze, Kind: KindAnalysisFailed, Err: errors.New("region collapse")}
	assert.Equal(t, "stage analyze_resume failed (analysis_failed): region collapse", err.Error())
	assert.Equal(t, "region collapse", errors.Unwrap(err).Error())
}
