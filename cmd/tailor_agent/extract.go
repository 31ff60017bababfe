package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonathan/resume-tailor/internal/extraction"
	"github.com/jonathan/resume-tailor/internal/fetch"
	"github.com/jonathan/resume-tailor/internal/ingestion"
	"github.com/jonathan/resume-tailor/internal/logger"
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract structured requirements from a job posting",
	Long:  "Extract a weighted, categorized requirement set from a job posting text file or URL and write the RequirementSet JSON used by the reconcile and synthesize commands.",
	RunE:  runExtract,
}

var (
	extractJob        string
	extractJobURL     string
	extractOut        string
	extractAPIKey     string
	extractUseBrowser bool
)

func init() {
	extractCmd.Flags().StringVarP(&extractJob, "job", "j", "", "Path to job posting text file (mutually exclusive with --job-url)")
	extractCmd.Flags().StringVar(&extractJobURL, "job-url", "", "URL to fetch job posting from (mutually exclusive with --job)")
	extractCmd.Flags().StringVarP(&extractOut, "out", "o", "", "Path to output RequirementSet JSON file (required)")
	extractCmd.Flags().StringVar(&extractAPIKey, "api-key", "", "Gemini API key (optional, defaults to GEMINI_API_KEY env var)")
	extractCmd.Flags().BoolVar(&extractUseBrowser, "use-browser", false, "Use headless browser for SPA job pages (requires Chrome)")

	_ = extractCmd.MarkFlagRequired("out")

	rootCmd.AddCommand(extractCmd)
}

func runExtract(_ *cobra.Command, _ []string) error {
	if extractJob == "" && extractJobURL == "" {
		return fmt.Errorf("either --job or --job-url must be provided")
	}
	if extractJob != "" && extractJobURL != "" {
		return fmt.Errorf("--job and --job-url are mutually exclusive; provide only one")
	}

	ctx := context.Background()

	log, err := logger.New(false, false)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}

	var jobText string
	if extractJob != "" {
		data, err := os.ReadFile(extractJob)
		if err != nil {
			return fmt.Errorf("failed to read job file %s: %w", extractJob, err)
		}
		jobText = string(data)
	} else {
		opts := fetch.DefaultOptions()
		opts.UseBrowser = extractUseBrowser
		opts.Logger = log
		posting, err := ingestion.IngestJobURL(ctx, extractJobURL, opts)
		if err != nil {
			return fmt.Errorf("failed to fetch job posting: %w", err)
		}
		jobText = posting.Text
	}

	client, err := newModelClient(ctx, extractAPIKey, log)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	reqs, err := extraction.New(client, log, extraction.DefaultConfig()).Extract(ctx, jobText)
	if err != nil {
		return fmt.Errorf("failed to extract requirements: %w", err)
	}

	if err := writeJSONArtifact(extractOut, reqs); err != nil {
		return err
	}

	_, _ = fmt.Fprintf(os.Stdout, "Successfully extracted %d requirements\n", len(reqs.Requirements))
	_, _ = fmt.Fprintf(os.Stdout, "Output: %s\n", extractOut)

	return nil
}
