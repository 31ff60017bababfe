package relevance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/jonathan/resume-tailor/internal/llm"
	"github.com/jonathan/resume-tailor/internal/prompts"
	"github.com/jonathan/resume-tailor/internal/schemas"
	"github.com/jonathan/resume-tailor/internal/types"
)

// semanticScore is one model judgment for a (requirement, statement) pair.
type semanticScore struct {
	score     float64
	rationale string
}

// relevanceScoresPayload mirrors the relevance_scores schema.
type relevanceScoresPayload struct {
	Scores []struct {
		StatementID string  `json:"statement_id"`
		Score       float64 `json:"score"`
		Rationale   string  `json:"rationale"`
	} `json:"scores"`
}

// judgeRequirement scores every statement against one requirement in a single
// batched call. Statement IDs the model invents are ignored; statements the
// model skips are simply absent from the returned map. Schema-invalid
// responses consume the corrective retry budget.
func (r *Reconciler) judgeRequirement(ctx context.Context, req types.JobRequirement, statements []types.ResumeStatement) (map[string]semanticScore, error) {
	known := make(map[string]struct{}, len(statements))
	var list strings.Builder
	for _, st := range statements {
		known[st.ID] = struct{}{}
		fmt.Fprintf(&list, "%s: %s\n", st.ID, flattenText(st.Text))
	}

	requiredNote := ""
	if req.Required {
		requiredNote = ", required"
	}
	basePrompt := prompts.Format(
		prompts.MustGet("relevance.json", "score_requirement"),
		map[string]string{
			"Category":        req.Category,
			"RequiredNote":    requiredNote,
			"RequirementText": req.Text,
			"StatementList":   list.String(),
		},
	)

	var (
		lastErr        error
		lastValidation *schemas.ValidationError
		lastOutput     string
	)

	attempts := r.cfg.MaxRetries + 1
	for attempt := 1; attempt <= attempts; attempt++ {
		prompt := basePrompt
		if lastValidation != nil {
			prompt += prompts.Format(
				prompts.MustGet("relevance.json", "corrective_suffix"),
				map[string]string{
					"ValidationErrors": lastValidation.Error(),
					"PreviousOutput":   llm.Truncate(lastOutput, 2000),
				},
			)
		}

		raw, err := r.client.GenerateJSON(ctx, prompt, llm.TierStandard)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			r.logger.Warn("relevance scoring call failed",
				zap.String("requirement", req.ID),
				zap.Int("attempt", attempt),
				zap.Error(err))
			lastErr = err
			continue
		}

		if err := schemas.Validate(schemas.RelevanceScores, raw); err != nil {
			var validationErr *schemas.ValidationError
			if !errors.As(err, &validationErr) {
				return nil, err
			}
			r.logger.Warn("relevance scoring response rejected",
				zap.String("requirement", req.ID),
				zap.Int("attempt", attempt),
				zap.String("reason", validationErr.Error()))
			lastValidation = validationErr
			lastOutput = raw
			lastErr = validationErr
			continue
		}

		var payload relevanceScoresPayload
		if err := json.Unmarshal([]byte(raw), &payload); err != nil {
			return nil, fmt.Errorf("decoding validated relevance response: %w", err)
		}

		scores := make(map[string]semanticScore, len(payload.Scores))
		for _, s := range payload.Scores {
			if _, ok := known[s.StatementID]; !ok {
				r.logger.Warn("ignoring score for unknown statement",
					zap.String("requirement", req.ID),
					zap.String("statement_id", s.StatementID))
				continue
			}
			scores[s.StatementID] = semanticScore{
				score:     clamp01(s.Score),
				rationale: s.Rationale,
			}
		}
		return scores, nil
	}

	return nil, fmt.Errorf("semantic scoring for %s failed after %d attempts: %w", req.ID, attempts, lastErr)
}

// flattenText folds a multi-line statement into one prompt line.
func flattenText(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
