// Package extraction derives weighted, categorized job requirements from
// posting text using LLM extraction with schema-validated output.
package extraction

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/jonathan/resume-tailor/internal/llm"
	"github.com/jonathan/resume-tailor/internal/prompts"
	"github.com/jonathan/resume-tailor/internal/schemas"
	"github.com/jonathan/resume-tailor/internal/types"
)

// Config holds extraction tunables.
type Config struct {
	// MaxRetries is the number of corrective attempts allowed after the
	// first call. Upstream call failures consume the same budget.
	MaxRetries int
}

// DefaultConfig returns the extraction defaults.
func DefaultConfig() Config {
	return Config{MaxRetries: 2}
}

// Extractor turns job posting text into a RequirementSet.
type Extractor struct {
	client llm.Client
	logger *zap.Logger
	cfg    Config
}

// New creates an Extractor. The client is injected so callers control
// concurrency limits and breaker wrapping.
func New(client llm.Client, logger *zap.Logger, cfg Config) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{client: client, logger: logger, cfg: cfg}
}

// requirementSetPayload mirrors the requirement_set schema.
type requirementSetPayload struct {
	Requirements []struct {
		Text     string  `json:"text"`
		Category string  `json:"category"`
		Weight   float64 `json:"weight"`
		Required bool    `json:"required"`
	} `json:"requirements"`
}

// Extract produces the requirement set for a job description. Each attempt is
// exactly one model call; a schema-invalid response triggers a retry whose
// prompt carries the validator errors and the previous bad output. The budget
// covers MaxRetries extra attempts, after which FailedError is returned.
func (e *Extractor) Extract(ctx context.Context, jobText string) (*types.RequirementSet, error) {
	if isBlank(jobText) {
		return nil, &EmptyInputError{}
	}

	basePrompt := prompts.Format(
		prompts.MustGet("extraction.json", "extract_requirements"),
		map[string]string{"JobText": jobText},
	)

	var (
		lastErr        error
		lastValidation *schemas.ValidationError
		lastOutput     string
	)

	attempts := e.cfg.MaxRetries + 1
	for attempt := 1; attempt <= attempts; attempt++ {
		prompt := basePrompt
		if lastValidation != nil {
			prompt += prompts.Format(
				prompts.MustGet("extraction.json", "corrective_suffix"),
				map[string]string{
					"ValidationErrors": lastValidation.Error(),
					"PreviousOutput":   llm.Truncate(lastOutput, 2000),
				},
			)
		}

		raw, err := e.client.GenerateJSON(ctx, prompt, llm.TierStandard)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, fmt.Errorf("requirement extraction aborted: %w", err)
			}
			e.logger.Warn("requirement extraction call failed",
				zap.Int("attempt", attempt),
				zap.Error(err))
			lastErr = err
			continue
		}

		validationErr := validateResponse(raw)
		if validationErr != nil {
			e.logger.Warn("requirement extraction response rejected",
				zap.Int("attempt", attempt),
				zap.String("reason", validationErr.Error()))
			lastValidation = validationErr
			lastOutput = raw
			lastErr = validationErr
			continue
		}

		var payload requirementSetPayload
		if err := json.Unmarshal([]byte(raw), &payload); err != nil {
			// Schema-valid JSON that fails to decode means our payload type
			// is out of sync with the schema.
			return nil, fmt.Errorf("decoding validated requirement response: %w", err)
		}

		requirements := make([]types.JobRequirement, 0, len(payload.Requirements))
		for _, r := range payload.Requirements {
			requirements = append(requirements, types.JobRequirement{
				Text:     r.Text,
				Category: r.Category,
				Weight:   r.Weight,
				Required: r.Required,
			})
		}

		requirements = Dedup(requirements)
		assignIDs(requirements)

		e.logger.Info("extracted job requirements",
			zap.Int("attempt", attempt),
			zap.Int("count", len(requirements)))
		return &types.RequirementSet{Requirements: requirements}, nil
	}

	return nil, &FailedError{Attempts: attempts, Cause: lastErr}
}

// validateResponse runs schema validation plus the semantic checks the schema
// cannot express. A non-nil result feeds the next corrective prompt.
func validateResponse(raw string) *schemas.ValidationError {
	if err := schemas.Validate(schemas.RequirementSet, raw); err != nil {
		var validationErr *schemas.ValidationError
		if errors.As(err, &validationErr) {
			return validationErr
		}
		// Schema load failures are programmer errors; surface them the same
		// way so the caller's budget handling stays uniform.
		return &schemas.ValidationError{
			Schema: schemas.RequirementSet,
			Errors: []schemas.FieldError{{Field: "(root)", Message: err.Error()}},
		}
	}

	var payload requirementSetPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return &schemas.ValidationError{
			Schema: schemas.RequirementSet,
			Errors: []schemas.FieldError{{Field: "(root)", Message: err.Error()}},
		}
	}

	var fieldErrs []schemas.FieldError
	for i, r := range payload.Requirements {
		if isBlank(r.Text) {
			fieldErrs = append(fieldErrs, schemas.FieldError{
				Field:   fmt.Sprintf("requirements.%d.text", i),
				Message: "text is blank",
			})
		}
		if !types.ValidCategory(r.Category) {
			fieldErrs = append(fieldErrs, schemas.FieldError{
				Field:   fmt.Sprintf("requirements.%d.category", i),
				Message: fmt.Sprintf("unknown category %q", r.Category),
			})
		}
		if r.Weight < 0 || r.Weight > 1 {
			fieldErrs = append(fieldErrs, schemas.FieldError{
				Field:   fmt.Sprintf("requirements.%d.weight", i),
				Message: "weight must be between 0 and 1",
			})
		}
	}
	if len(payload.Requirements) == 0 {
		fieldErrs = append(fieldErrs, schemas.FieldError{
			Field:   "requirements",
			Message: "no requirements were extracted; a job posting always states at least one",
		})
	}

	if len(fieldErrs) > 0 {
		return &schemas.ValidationError{Schema: schemas.RequirementSet, Errors: fieldErrs}
	}
	return nil
}

// assignIDs gives requirements stable identifiers in post-dedup order.
func assignIDs(requirements []types.JobRequirement) {
	for i := range requirements {
		requirements[i].ID = fmt.Sprintf("req_%03d", i+1)
	}
}
