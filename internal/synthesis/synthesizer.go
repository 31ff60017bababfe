// Package synthesis assembles the tailored resume: statements reordered by
// relevance within their sections, optionally reworded by the model, with
// every output line traceable to a source statement. Rewrites that lose a
// name or number are discarded in favor of the original text, so model
// quality can degrade the polish of the output but never its truthfulness.
package synthesis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/jonathan/resume-tailor/internal/llm"
	"github.com/jonathan/resume-tailor/internal/prompts"
	"github.com/jonathan/resume-tailor/internal/schemas"
	"github.com/jonathan/resume-tailor/internal/types"
)

// Config holds synthesis tunables.
type Config struct {
	// MaxRetries bounds corrective attempts per section batch.
	MaxRetries int
	// MaxRewrites caps how many statements per section are sent for
	// rewriting. Statements past the cap keep their original text.
	MaxRewrites int
	// MaxEmphasis caps how many requirements the rewrite prompt lists.
	MaxEmphasis int
}

// DefaultConfig returns the synthesis defaults.
func DefaultConfig() Config {
	return Config{MaxRetries: 2, MaxRewrites: 12, MaxEmphasis: 10}
}

// Synthesizer builds the terminal TailoredResume artifact.
type Synthesizer struct {
	client llm.Client
	logger *zap.Logger
	cfg    Config
}

// New creates a Synthesizer with an injected model client.
func New(client llm.Client, logger *zap.Logger, cfg Config) *Synthesizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxRewrites <= 0 {
		cfg.MaxRewrites = DefaultConfig().MaxRewrites
	}
	if cfg.MaxEmphasis <= 0 {
		cfg.MaxEmphasis = DefaultConfig().MaxEmphasis
	}
	return &Synthesizer{client: client, logger: logger, cfg: cfg}
}

// rewriteBatchPayload mirrors the rewrite_batch schema.
type rewriteBatchPayload struct {
	Rewrites []struct {
		StatementID string `json:"statement_id"`
		Text        string `json:"text"`
	} `json:"rewrites"`
}

// Synthesize produces the tailored resume. Rewrite failures of any kind are
// non-fatal: affected statements keep their original text and a degradation
// record explains why. Only context cancellation aborts the stage.
func (s *Synthesizer) Synthesize(ctx context.Context, requirements []types.JobRequirement, statements []types.ResumeStatement, rel *types.RelevanceSet) (*types.TailoredResume, error) {
	if rel == nil {
		return nil, fmt.Errorf("relevance set is required")
	}

	scores := aggregateScores(requirements, rel.Links)
	groups := groupBySection(statements)
	emphasis := emphasisList(requirements, s.cfg.MaxEmphasis)

	result := &types.TailoredResume{
		CoverageGaps: rel.CoverageGaps,
		Provenance:   make(map[string]string),
	}

	outputSeq := 0
	for _, label := range sectionOrder {
		sectionStatements, ok := groups[label]
		if !ok {
			continue
		}
		ordered := orderSection(sectionStatements, scores)

		rewriteCount := len(ordered)
		if rewriteCount > s.cfg.MaxRewrites {
			rewriteCount = s.cfg.MaxRewrites
		}

		rewrites, degradations, err := s.rewriteBatch(ctx, emphasis, ordered[:rewriteCount])
		if err != nil {
			return nil, err
		}
		result.Degradations = append(result.Degradations, degradations...)

		section := types.TailoredSection{Heading: sectionHeadings[label]}
		for _, st := range ordered {
			outputSeq++
			outID := fmt.Sprintf("out_%03d", outputSeq)

			text := st.Text
			rewritten := false
			if rw, ok := rewrites[st.ID]; ok {
				text = rw
				rewritten = true
			}

			section.Statements = append(section.Statements, types.TailoredStatement{
				ID:                outID,
				Text:              text,
				SourceStatementID: st.ID,
				Rewritten:         rewritten,
			})
			result.Provenance[outID] = st.ID
		}
		result.Sections = append(result.Sections, section)
	}

	s.logger.Info("synthesized tailored resume",
		zap.Int("sections", len(result.Sections)),
		zap.Int("statements", result.StatementCount()),
		zap.Int("coverage_gaps", len(result.CoverageGaps)),
		zap.Int("degradations", len(result.Degradations)))
	return result, nil
}

// rewriteBatch asks the model to reword one section's statements and filters
// the response through the entity consistency check. The returned map holds
// only accepted rewrites. All failures short of context cancellation come
// back as degradation records, never as errors.
func (s *Synthesizer) rewriteBatch(ctx context.Context, emphasis string, statements []types.ResumeStatement) (map[string]string, []types.Degradation, error) {
	if len(statements) == 0 {
		return nil, nil, nil
	}

	var list strings.Builder
	byID := make(map[string]types.ResumeStatement, len(statements))
	for _, st := range statements {
		byID[st.ID] = st
		fmt.Fprintf(&list, "%s: %s\n", st.ID, strings.Join(strings.Fields(st.Text), " "))
	}

	basePrompt := prompts.Format(
		prompts.MustGet("synthesis.json", "rewrite_section"),
		map[string]string{
			"EmphasisList":  emphasis,
			"StatementList": list.String(),
		},
	)

	var (
		lastErr        error
		lastValidation *schemas.ValidationError
		lastOutput     string
	)

	attempts := s.cfg.MaxRetries + 1
	for attempt := 1; attempt <= attempts; attempt++ {
		prompt := basePrompt
		if lastValidation != nil {
			prompt += prompts.Format(
				prompts.MustGet("synthesis.json", "corrective_suffix"),
				map[string]string{
					"ValidationErrors": lastValidation.Error(),
					"PreviousOutput":   llm.Truncate(lastOutput, 2000),
				},
			)
		}

		raw, err := s.client.GenerateJSON(ctx, prompt, llm.TierAdvanced)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, nil, fmt.Errorf("synthesis aborted: %w", err)
			}
			s.logger.Warn("rewrite call failed",
				zap.Int("attempt", attempt),
				zap.Error(err))
			lastErr = err
			continue
		}

		if err := schemas.Validate(schemas.RewriteBatch, raw); err != nil {
			var validationErr *schemas.ValidationError
			if !errors.As(err, &validationErr) {
				return nil, nil, err
			}
			s.logger.Warn("rewrite response rejected",
				zap.Int("attempt", attempt),
				zap.String("reason", validationErr.Error()))
			lastValidation = validationErr
			lastOutput = raw
			lastErr = validationErr
			continue
		}

		var payload rewriteBatchPayload
		if err := json.Unmarshal([]byte(raw), &payload); err != nil {
			return nil, nil, fmt.Errorf("decoding validated rewrite response: %w", err)
		}

		return s.acceptRewrites(byID, payload)
	}

	// Budget exhausted: keep originals and record why.
	degradations := make([]types.Degradation, 0, len(statements))
	for _, st := range statements {
		degradations = append(degradations, types.Degradation{
			StatementID: st.ID,
			Reason:      fmt.Sprintf("rewrite unavailable after %d attempts: %v", attempts, lastErr),
		})
	}
	return nil, degradations, nil
}

// acceptRewrites runs the consistency checks on each proposed rewrite.
func (s *Synthesizer) acceptRewrites(byID map[string]types.ResumeStatement, payload rewriteBatchPayload) (map[string]string, []types.Degradation, error) {
	accepted := make(map[string]string)
	var degradations []types.Degradation

	for _, rw := range payload.Rewrites {
		source, ok := byID[rw.StatementID]
		if !ok {
			s.logger.Warn("ignoring rewrite for unknown statement",
				zap.String("statement_id", rw.StatementID))
			continue
		}

		if missing := missingEntities(source.Text, rw.Text); len(missing) > 0 {
			degradations = append(degradations, types.Degradation{
				StatementID: source.ID,
				Reason:      fmt.Sprintf("rewrite dropped required details: %s", strings.Join(missing, ", ")),
			})
			continue
		}

		if len(rw.Text) > len(source.Text)*3/2+20 {
			degradations = append(degradations, types.Degradation{
				StatementID: source.ID,
				Reason:      "rewrite exceeds length limit",
			})
			continue
		}

		accepted[source.ID] = rw.Text
	}

	return accepted, degradations, nil
}

// emphasisList renders the top requirements for the rewrite prompt, most
// important first.
func emphasisList(requirements []types.JobRequirement, limit int) string {
	sorted := make([]types.JobRequirement, len(requirements))
	copy(sorted, requirements)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Weight != sorted[j].Weight {
			return sorted[i].Weight > sorted[j].Weight
		}
		return sorted[i].ID < sorted[j].ID
	})
	if len(sorted) > limit {
		sorted = sorted[:limit]
	}

	var sb strings.Builder
	for _, req := range sorted {
		fmt.Fprintf(&sb, "- %s\n", req.Text)
	}
	return sb.String()
}
