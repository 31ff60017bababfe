package ingestion

import (
	"context"
	"fmt"

	"github.com/jonathan/resume-tailor/internal/fetch"
)

// IngestJobURL fetches a job posting from a URL and normalizes it the same
// way file-based documents are normalized. The returned Document carries the
// source URL so the run artifact records where the posting came from.
func IngestJobURL(ctx context.Context, urlStr string, opts *fetch.Options) (*Document, error) {
	result, err := fetch.Posting(ctx, urlStr, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch job posting: %w", err)
	}

	doc, err := Ingest([]byte(result.Text), FormatTXT)
	if err != nil {
		return nil, err
	}
	doc.SourceURL = result.URL
	return doc, nil
}
