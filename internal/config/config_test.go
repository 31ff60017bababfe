package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_ValidJSON(t *testing.T) {
	content := `{
		"job_url": "https://example.com/job",
		"resume": "resume.pdf",
		"relevance_threshold": 0.5,
		"max_extraction_retries": 3,
		"verbose": true
	}`

	tmpFile := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(tmpFile, []byte(content), 0644))

	cfg, err := Load(tmpFile)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "https://example.com/job", cfg.JobURL)
	assert.Equal(t, "resume.pdf", cfg.Resume)
	assert.Equal(t, 0.5, cfg.RelevanceThreshold)
	assert.Equal(t, 3, cfg.MaxExtractionRetries)
	assert.True(t, cfg.Verbose)
}

func TestLoad_InvalidJSON(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(tmpFile, []byte(`{ invalid json }`), 0644))

	cfg, err := Load(tmpFile)
	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "failed to parse config JSON")
}

func TestLoad_FileNotFound(t *testing.T) {
	cfg, err := Load("/nonexistent/path/config.json")
	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoad_EmptyPath(t *testing.T) {
	cfg, err := Load("")
	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "config path is empty")
}

func TestValidate_MutuallyExclusive(t *testing.T) {
	cfg := &Config{
		Job:    "job.txt",
		JobURL: "https://example.com/job",
	}

	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "mutually exclusive")
}

func TestValidate_ThresholdRange(t *testing.T) {
	cfg := &Config{RelevanceThreshold: 1.5}
	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "relevance_threshold")
}

func TestValidate_NegativeRetries(t *testing.T) {
	cfg := &Config{MaxExtractionRetries: -1}
	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "max_extraction_retries")
}

func TestValidate_MissingJobFile(t *testing.T) {
	cfg := &Config{Job: filepath.Join(t.TempDir(), "absent.txt")}
	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "job file not found")
}

func TestValidate_ValidConfig(t *testing.T) {
	cfg := &Config{
		JobURL:               "https://example.com/job",
		RelevanceThreshold:   0.35,
		MaxExtractionRetries: 2,
		StageTimeoutSeconds:  120,
	}

	assert.NoError(t, cfg.Validate())
}

func TestMergeWithDefaults(t *testing.T) {
	defaults := Config{
		APIKey:               "env-key",
		DatabaseURL:          "postgres://env",
		ServerAddr:           ":8080",
		RelevanceThreshold:   0.35,
		MaxExtractionRetries: 2,
	}

	cfg := Config{
		APIKey:             "file-key",
		RelevanceThreshold: 0.5,
	}

	merged := cfg.MergeWithDefaults(defaults)
	assert.Equal(t, "file-key", merged.APIKey, "set values win over defaults")
	assert.Equal(t, 0.5, merged.RelevanceThreshold)
	assert.Equal(t, "postgres://env", merged.DatabaseURL)
	assert.Equal(t, ":8080", merged.ServerAddr)
	assert.Equal(t, 2, merged.MaxExtractionRetries)
}

func TestFromEnv(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "test-key")
	t.Setenv("DATABASE_URL", "postgres://test")
	t.Setenv("SERVER_ADDR", ":9999")

	cfg := FromEnv()
	assert.Equal(t, "test-key", cfg.APIKey)
	assert.Equal(t, "postgres://test", cfg.DatabaseURL)
	assert.Equal(t, ":9999", cfg.ServerAddr)
}
