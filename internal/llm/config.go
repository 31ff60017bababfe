package llm

import "os"

// ModelTier represents the complexity/capability level of a model.
type ModelTier string

const (
	// TierLite is for simple tasks: segmentation of ambiguous resume regions, cleanup.
	TierLite ModelTier = "lite"
	// TierStandard is for moderate reasoning: requirement extraction, batched relevance scoring.
	TierStandard ModelTier = "standard"
	// TierAdvanced is for complex reasoning: statement rewriting under entity constraints.
	TierAdvanced ModelTier = "advanced"
)

// Provider represents an LLM provider.
type Provider string

// Provider constants define supported LLM providers.
const (
	// ProviderGemini is the Google Gemini provider.
	ProviderGemini Provider = "gemini"
)

// Config holds the model configuration for the application.
type Config struct {
	Provider Provider
	Models   map[ModelTier]string
}

// DefaultConfig returns the default configuration (currently Gemini).
func DefaultConfig() *Config {
	return DefaultGeminiConfig()
}

// DefaultGeminiConfig returns the default Gemini tier mapping. Individual
// tiers can be overridden with GEMINI_MODEL_LITE, GEMINI_MODEL_STANDARD and
// GEMINI_MODEL_ADVANCED.
func DefaultGeminiConfig() *Config {
	cfg := &Config{
		Provider: ProviderGemini,
		Models: map[ModelTier]string{
			TierLite:     "gemini-2.5-flash-lite",
			TierStandard: "gemini-2.5-flash",
			TierAdvanced: "gemini-2.5-pro",
		},
	}

	for tier, env := range map[ModelTier]string{
		TierLite:     "GEMINI_MODEL_LITE",
		TierStandard: "GEMINI_MODEL_STANDARD",
		TierAdvanced: "GEMINI_MODEL_ADVANCED",
	} {
		if v := os.Getenv(env); v != "" {
			cfg.Models[tier] = v
		}
	}

	return cfg
}

// GetModel returns the model name for a given tier, falling back to standard
// then lite when the tier is not configured.
func (c *Config) GetModel(tier ModelTier) string {
	if model, ok := c.Models[tier]; ok {
		return model
	}
	if model, ok := c.Models[TierStandard]; ok {
		return model
	}
	if model, ok := c.Models[TierLite]; ok {
		return model
	}
	return ""
}
