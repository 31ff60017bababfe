// Package analysis decomposes normalized resume text into discrete statements
// with verifiable source offsets. Structure (sections, bullets) is handled
// deterministically; only long unbulleted prose goes to the model, and every
// model-proposed statement is anchored back to the source text before it is
// accepted.
package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/jonathan/resume-tailor/internal/ingestion"
	"github.com/jonathan/resume-tailor/internal/llm"
	"github.com/jonathan/resume-tailor/internal/prompts"
	"github.com/jonathan/resume-tailor/internal/schemas"
	"github.com/jonathan/resume-tailor/internal/types"
)

// Config holds analysis tunables.
type Config struct {
	// MaxRetries bounds corrective attempts per ambiguous region after the
	// first call.
	MaxRetries int
	// ProseThreshold is the rune length above which an unbulleted block is
	// sent to the model for segmentation instead of becoming one statement.
	ProseThreshold int
}

// DefaultConfig returns the analysis defaults.
func DefaultConfig() Config {
	return Config{MaxRetries: 2, ProseThreshold: 280}
}

// Analyzer decomposes resumes into statements.
type Analyzer struct {
	client llm.Client
	logger *zap.Logger
	cfg    Config
}

// New creates an Analyzer with an injected model client.
func New(client llm.Client, logger *zap.Logger, cfg Config) *Analyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ProseThreshold <= 0 {
		cfg.ProseThreshold = DefaultConfig().ProseThreshold
	}
	return &Analyzer{client: client, logger: logger, cfg: cfg}
}

// statementBatchPayload mirrors the statement_batch schema.
type statementBatchPayload struct {
	Statements []struct {
		Text    string `json:"text"`
		Section string `json:"section"`
	} `json:"statements"`
}

// Analyze produces the statement set for an ingested resume. Statement IDs
// and order indexes follow document order, and every statement's span is
// checked against the document text before the set is returned.
func (a *Analyzer) Analyze(ctx context.Context, doc *ingestion.Document) (*types.StatementSet, error) {
	if doc == nil || doc.Text == "" {
		return nil, &FailedError{Cause: fmt.Errorf("document has no text")}
	}

	segments := segmentDocument(doc.Text, doc.SectionHints, a.cfg.ProseThreshold)

	var statements []types.ResumeStatement
	for _, seg := range segments {
		if !seg.ambiguous {
			statements = append(statements, types.ResumeStatement{
				Text:       doc.Text[seg.start:seg.end],
				Section:    seg.label,
				SourceSpan: types.SourceSpan{Start: seg.start, End: seg.end},
			})
			continue
		}

		split, err := a.segmentRegion(ctx, doc.Text, seg)
		if err != nil {
			return nil, err
		}
		statements = append(statements, split...)
	}

	sort.SliceStable(statements, func(i, j int) bool {
		return statements[i].SourceSpan.Start < statements[j].SourceSpan.Start
	})

	for i := range statements {
		statements[i].ID = fmt.Sprintf("stmt_%03d", i+1)
		statements[i].OrderIndex = i
	}

	if err := checkSpans(doc.Text, statements); err != nil {
		return nil, &FailedError{Cause: err}
	}

	a.logger.Info("analyzed resume",
		zap.Int("statements", len(statements)),
		zap.Int("sections", len(doc.SectionHints)))
	return &types.StatementSet{Statements: statements}, nil
}

// segmentRegion asks the model to split one prose region into statements,
// retrying with a corrective prompt on schema-invalid responses. Anchoring
// failures are not schema failures: statements that cannot be located in the
// region are dropped, and if none anchor the whole region is kept as a single
// statement so resume content is never silently lost.
func (a *Analyzer) segmentRegion(ctx context.Context, text string, seg segment) ([]types.ResumeStatement, error) {
	region := text[seg.start:seg.end]
	basePrompt := prompts.Format(
		prompts.MustGet("analysis.json", "segment_region"),
		map[string]string{
			"SectionHint": seg.label,
			"Region":      region,
		},
	)

	var (
		lastErr        error
		lastValidation *schemas.ValidationError
		lastOutput     string
	)

	attempts := a.cfg.MaxRetries + 1
	for attempt := 1; attempt <= attempts; attempt++ {
		prompt := basePrompt
		if lastValidation != nil {
			prompt += prompts.Format(
				prompts.MustGet("analysis.json", "corrective_suffix"),
				map[string]string{
					"ValidationErrors": lastValidation.Error(),
					"PreviousOutput":   llm.Truncate(lastOutput, 2000),
				},
			)
		}

		raw, err := a.client.GenerateJSON(ctx, prompt, llm.TierLite)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, fmt.Errorf("resume analysis aborted: %w", err)
			}
			a.logger.Warn("region segmentation call failed",
				zap.Int("attempt", attempt),
				zap.Error(err))
			lastErr = err
			continue
		}

		if err := schemas.Validate(schemas.StatementBatch, raw); err != nil {
			var validationErr *schemas.ValidationError
			if !errors.As(err, &validationErr) {
				return nil, err
			}
			a.logger.Warn("region segmentation response rejected",
				zap.Int("attempt", attempt),
				zap.String("reason", validationErr.Error()))
			lastValidation = validationErr
			lastOutput = raw
			lastErr = validationErr
			continue
		}

		var payload statementBatchPayload
		if err := json.Unmarshal([]byte(raw), &payload); err != nil {
			return nil, fmt.Errorf("decoding validated statement response: %w", err)
		}

		return a.anchorStatements(region, seg, payload), nil
	}

	return nil, &FailedError{Attempts: attempts, Cause: lastErr}
}

// anchorStatements maps model-proposed statements back onto the region,
// converting region-relative spans to document offsets.
func (a *Analyzer) anchorStatements(region string, seg segment, payload statementBatchPayload) []types.ResumeStatement {
	var anchored []types.ResumeStatement
	for _, st := range payload.Statements {
		start, end, ok := anchor(region, st.Text)
		if !ok {
			a.logger.Warn("dropping statement that does not appear in source",
				zap.String("text", llm.Truncate(st.Text, 120)))
			continue
		}

		section := seg.label
		if section == types.SectionOther && types.ValidSection(st.Section) {
			section = st.Section
		}

		anchored = append(anchored, types.ResumeStatement{
			Text:       region[start:end],
			Section:    section,
			SourceSpan: types.SourceSpan{Start: seg.start + start, End: seg.start + end},
		})
	}

	if len(anchored) == 0 {
		return []types.ResumeStatement{{
			Text:       region,
			Section:    seg.label,
			SourceSpan: types.SourceSpan{Start: seg.start, End: seg.end},
		}}
	}
	return anchored
}

// checkSpans enforces the provenance invariant: every span must be in bounds
// and its slice must reproduce the statement text exactly.
func checkSpans(text string, statements []types.ResumeStatement) error {
	for _, st := range statements {
		if !st.SpanValid(len(text)) {
			return fmt.Errorf("statement %s has invalid span [%d,%d) for text of %d bytes",
				st.ID, st.SourceSpan.Start, st.SourceSpan.End, len(text))
		}
		if text[st.SourceSpan.Start:st.SourceSpan.End] != st.Text {
			return fmt.Errorf("statement %s text does not match its source span", st.ID)
		}
	}
	return nil
}
