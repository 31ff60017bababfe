// Package config provides configuration loading for the CLI and server.
// Values come from a JSON config file, environment variables, and flags;
// flags win, then the file, then the environment.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config holds every tunable the CLI and server accept. All fields are
// optional; missing values use defaults or must be provided via flags.
type Config struct {
	// Inputs
	Job    string `json:"job,omitempty"`     // path to a job posting text file
	JobURL string `json:"job_url,omitempty"` // URL to fetch the posting from
	Resume string `json:"resume,omitempty"`  // path to the resume document
	Output string `json:"output,omitempty"`  // directory for CLI artifact files

	// Behavior
	APIKey      string `json:"api_key,omitempty"`      // Gemini API key
	DatabaseURL string `json:"database_url,omitempty"` // PostgreSQL connection URL
	ServerAddr  string `json:"server_addr,omitempty"`  // listen address for serve mode
	UseBrowser  bool   `json:"use_browser,omitempty"`  // headless fallback for SPA job pages
	Verbose     bool   `json:"verbose,omitempty"`      // print stage artifacts as they land

	// Pipeline tunables
	StageTimeoutSeconds  int     `json:"stage_timeout_seconds,omitempty"`
	MaxExtractionRetries int     `json:"max_extraction_retries,omitempty"`
	MaxAnalysisRetries   int     `json:"max_analysis_retries,omitempty"`
	RelevanceThreshold   float64 `json:"relevance_threshold,omitempty"`
	MaxLLMInFlight       int     `json:"max_llm_in_flight,omitempty"`
}

// Load reads configuration from a JSON file.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	return &cfg, nil
}

// FromEnv returns a Config populated from environment variables. Callers
// merge it under file and flag values.
func FromEnv() Config {
	return Config{
		APIKey:      os.Getenv("GEMINI_API_KEY"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		ServerAddr:  os.Getenv("SERVER_ADDR"),
	}
}

// Validate checks field values. Required fields are not enforced here; flag
// validation handles those after merging.
func (c *Config) Validate() error {
	if c.Job != "" && c.JobURL != "" {
		return fmt.Errorf("config error: 'job' and 'job_url' are mutually exclusive")
	}

	if c.StageTimeoutSeconds < 0 {
		return fmt.Errorf("config error: 'stage_timeout_seconds' must be non-negative")
	}
	if c.MaxExtractionRetries < 0 {
		return fmt.Errorf("config error: 'max_extraction_retries' must be non-negative")
	}
	if c.MaxAnalysisRetries < 0 {
		return fmt.Errorf("config error: 'max_analysis_retries' must be non-negative")
	}
	if c.RelevanceThreshold < 0 || c.RelevanceThreshold > 1 {
		return fmt.Errorf("config error: 'relevance_threshold' must be between 0 and 1")
	}
	if c.MaxLLMInFlight < 0 {
		return fmt.Errorf("config error: 'max_llm_in_flight' must be non-negative")
	}

	if c.Job != "" {
		if _, err := os.Stat(c.Job); os.IsNotExist(err) {
			return fmt.Errorf("config error: job file not found: %s", c.Job)
		}
	}
	if c.Resume != "" {
		if _, err := os.Stat(c.Resume); os.IsNotExist(err) {
			return fmt.Errorf("config error: resume file not found: %s", c.Resume)
		}
	}

	return nil
}

// MergeWithDefaults returns a copy of c with unset fields filled from
// defaults. Bool fields are not merged; flags always win for those.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	if result.Job == "" {
		result.Job = defaults.Job
	}
	if result.JobURL == "" {
		result.JobURL = defaults.JobURL
	}
	if result.Resume == "" {
		result.Resume = defaults.Resume
	}
	if result.Output == "" {
		result.Output = defaults.Output
	}
	if result.APIKey == "" {
		result.APIKey = defaults.APIKey
	}
	if result.DatabaseURL == "" {
		result.DatabaseURL = defaults.DatabaseURL
	}
	if result.ServerAddr == "" {
		result.ServerAddr = defaults.ServerAddr
	}

	if result.StageTimeoutSeconds == 0 {
		result.StageTimeoutSeconds = defaults.StageTimeoutSeconds
	}
	if result.MaxExtractionRetries == 0 {
		result.MaxExtractionRetries = defaults.MaxExtractionRetries
	}
	if result.MaxAnalysisRetries == 0 {
		result.MaxAnalysisRetries = defaults.MaxAnalysisRetries
	}
	if result.RelevanceThreshold == 0 {
		result.RelevanceThreshold = defaults.RelevanceThreshold
	}
	if result.MaxLLMInFlight == 0 {
		result.MaxLLMInFlight = defaults.MaxLLMInFlight
	}

	return result
}
