package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonathan/resume-tailor/internal/analysis"
	"github.com/jonathan/resume-tailor/internal/ingestion"
	"github.com/jonathan/resume-tailor/internal/logger"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Break an ingested resume into addressable statements",
	Long:  "Analyze a Document JSON produced by the ingest command into a StatementSet with section labels and source spans.",
	RunE:  runAnalyze,
}

var (
	analyzeIn     string
	analyzeOut    string
	analyzeAPIKey string
)

func init() {
	analyzeCmd.Flags().StringVarP(&analyzeIn, "in", "i", "", "Path to input Document JSON file (required)")
	analyzeCmd.Flags().StringVarP(&analyzeOut, "out", "o", "", "Path to output StatementSet JSON file (required)")
	analyzeCmd.Flags().StringVar(&analyzeAPIKey, "api-key", "", "Gemini API key (optional, defaults to GEMINI_API_KEY env var)")

	_ = analyzeCmd.MarkFlagRequired("in")
	_ = analyzeCmd.MarkFlagRequired("out")

	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(_ *cobra.Command, _ []string) error {
	var doc ingestion.Document
	if err := loadJSONFile(analyzeIn, &doc); err != nil {
		return err
	}

	ctx := context.Background()

	log, err := logger.New(false, false)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}

	client, err := newModelClient(ctx, analyzeAPIKey, log)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	stmts, err := analysis.New(client, log, analysis.DefaultConfig()).Analyze(ctx, &doc)
	if err != nil {
		return fmt.Errorf("failed to analyze resume: %w", err)
	}

	if err := writeJSONArtifact(analyzeOut, stmts); err != nil {
		return err
	}

	_, _ = fmt.Fprintf(os.Stdout, "Successfully analyzed resume into %d statements\n", len(stmts.Statements))
	_, _ = fmt.Fprintf(os.Stdout, "Output: %s\n", analyzeOut)

	return nil
}
