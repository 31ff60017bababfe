package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/jonathan/resume-tailor/internal/llm"
	"github.com/jonathan/resume-tailor/internal/pipeline"
)

// loadJSONFile unmarshals a JSON artifact produced by an earlier stage command.
func loadJSONFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

// writeJSONArtifact writes v as indented JSON, creating parent directories.
func writeJSONArtifact(path string, v any) error {
	jsonBytes, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := os.WriteFile(path, jsonBytes, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// writeArtifactFile writes already-marshaled JSON, reindented for reading.
func writeArtifactFile(path string, data []byte) error {
	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err == nil {
		data = buf.Bytes()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// detectFormat resolves the document format from an explicit override or the
// file extension.
func detectFormat(path, override string) string {
	if override != "" {
		return override
	}
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
}

// newModelClient builds the Gemini client with circuit breaking. The
// orchestrator layers its own concurrency gate on top.
func newModelClient(ctx context.Context, apiKey string, log *zap.Logger) (llm.Client, error) {
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY environment variable or --api-key flag is required")
	}

	client, err := llm.NewClient(ctx, nil, apiKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create model client: %w", err)
	}

	return llm.NewBreaker(client, llm.DefaultBreakerConfig(), log), nil
}

// progressPrinter renders pipeline progress events as plain stage lines.
// Verbose mode includes the per-event message.
func progressPrinter(w io.Writer, verbose bool) pipeline.ProgressCallback {
	return func(ev pipeline.ProgressEvent) {
		if verbose && ev.Message != "" {
			_, _ = fmt.Fprintf(w, "[%s] %s: %s\n", ev.Stage, ev.Status, ev.Message)
			return
		}
		_, _ = fmt.Fprintf(w, "[%s] %s\n", ev.Stage, ev.Status)
	}
}
