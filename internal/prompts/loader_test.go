package prompts

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGet_KnownPrompts(t *testing.T) {
	tests := []struct {
		file string
		key  string
	}{
		{"extraction.json", "extract_requirements"},
		{"extraction.json", "corrective_suffix"},
		{"analysis.json", "segment_region"},
		{"analysis.json", "corrective_suffix"},
		{"relevance.json", "score_requirement"},
		{"synthesis.json", "rewrite_section"},
	}

	for _, tt := range tests {
		t.Run(tt.file+"/"+tt.key, func(t *testing.T) {
			prompt, err := Get(tt.file, tt.key)
			require.NoError(t, err)
			assert.NotEmpty(t, prompt)
		})
	}
}

func TestGet_Missing(t *testing.T) {
	_, err := Get("extraction.json", "no_such_key")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no_such_key")

	_, err = Get("missing.json", "extract_requirements")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing.json")
}

func TestMustGet_PanicsOnMissing(t *testing.T) {
	assert.Panics(t, func() {
		MustGet("extraction.json", "does_not_exist")
	})
	assert.NotPanics(t, func() {
		MustGet("extraction.json", "extract_requirements")
	})
}

func TestFormat(t *testing.T) {
	template := "Requirement: {{.RequirementText}}\nStatements:\n{{.StatementList}}"
	result := Format(template, map[string]string{
		"RequirementText": "5+ years Python",
		"StatementList":   "- stmt_001: Built services",
	})

	assert.Equal(t, "Requirement: 5+ years Python\nStatements:\n- stmt_001: Built services", result)
	assert.False(t, strings.Contains(result, "{{."))
}

func TestFormat_UnknownPlaceholderLeftIntact(t *testing.T) {
	result := Format("hello {{.Name}}", map[string]string{"Other": "x"})
	assert.Equal(t, "hello {{.Name}}", result)
}

func TestPromptsDemandVerbatimJSON(t *testing.T) {
	// Stage prompts must ask for a bare JSON object so schema validation can run.
	for _, tt := range []struct{ file, key string }{
		{"extraction.json", "extract_requirements"},
		{"analysis.json", "segment_region"},
		{"relevance.json", "score_requirement"},
		{"synthesis.json", "rewrite_section"},
	} {
		prompt := MustGet(tt.file, tt.key)
		assert.Contains(t, prompt, "JSON object", "%s/%s should demand JSON output", tt.file, tt.key)
	}
}
