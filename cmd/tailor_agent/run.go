package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jonathan/resume-tailor/internal/config"
	"github.com/jonathan/resume-tailor/internal/db"
	"github.com/jonathan/resume-tailor/internal/logger"
	"github.com/jonathan/resume-tailor/internal/observability"
	"github.com/jonathan/resume-tailor/internal/pipeline"
)

var runCommand = &cobra.Command{
	Use:   "run",
	Short: "Run the full tailoring pipeline end-to-end",
	Long: `Orchestrates the entire tailoring process: ingest -> extract_requirements -> analyze_resume -> reconcile -> synthesize.

Configuration can be loaded from a JSON file using --config. Command-line arguments override config file values, which override environment variables. Stage artifacts land under --out so a failed run leaves its trail on disk.`,
	RunE: runPipelineCmd,
}

var (
	runConfigPath  string
	runJob         string
	runJobURL      string
	runResume      string
	runFormat      string
	runOut         string
	runAPIKey      string
	runDatabaseURL string
	runUseBrowser  bool
	runVerbose     bool

	runThreshold         float64
	runExtractionRetries int
	runAnalysisRetries   int
	runStageTimeout      int
	runLLMInFlight       int
)

func init() {
	runCommand.Flags().StringVar(&runConfigPath, "config", "", "Path to config.json file (values can be overridden by other flags)")

	runCommand.Flags().StringVarP(&runJob, "job", "j", "", "Path to job posting text file (mutually exclusive with --job-url)")
	runCommand.Flags().StringVar(&runJobURL, "job-url", "", "URL to fetch job posting from (mutually exclusive with --job)")
	runCommand.Flags().StringVarP(&runResume, "resume", "r", "", "Path to resume document (pdf, txt, or md)")
	runCommand.Flags().StringVar(&runFormat, "format", "", "Resume format override (defaults to the file extension)")
	runCommand.Flags().StringVarP(&runOut, "out", "o", "", "Output directory for the tailored resume and stage artifacts")
	runCommand.Flags().BoolVar(&runUseBrowser, "use-browser", false, "Use headless browser for SPA job pages (requires Chrome)")
	runCommand.Flags().BoolVarP(&runVerbose, "verbose", "v", false, "Print detailed progress information")

	runCommand.Flags().StringVar(&runAPIKey, "api-key", "", "Gemini API key (optional, defaults to GEMINI_API_KEY env var)")
	runCommand.Flags().StringVar(&runDatabaseURL, "db-url", "", "PostgreSQL connection URL (optional, defaults to DATABASE_URL env var; runs stay in memory without it)")

	runCommand.Flags().Float64Var(&runThreshold, "relevance-threshold", 0.35, "Coverage gap cutoff; requirements whose best link score falls below it are reported as gaps")
	runCommand.Flags().IntVar(&runExtractionRetries, "max-extraction-retries", 2, "Corrective retries for requirement extraction before the run fails")
	runCommand.Flags().IntVar(&runAnalysisRetries, "max-analysis-retries", 2, "Corrective retries for resume analysis before the run fails")
	runCommand.Flags().IntVar(&runStageTimeout, "stage-timeout", 120, "Per-stage timeout in seconds")
	runCommand.Flags().IntVar(&runLLMInFlight, "max-llm-in-flight", 4, "Maximum concurrent model calls shared across stages")

	rootCmd.AddCommand(runCommand)
}

func runPipelineCmd(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load config file if provided
	var cfg config.Config
	if runConfigPath != "" {
		loaded, err := config.Load(runConfigPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		cfg = *loaded
	}

	// Apply CLI overrides, but only for flags that were explicitly set
	if cmd.Flags().Changed("job") {
		cfg.Job = runJob
	}
	if cmd.Flags().Changed("job-url") {
		cfg.JobURL = runJobURL
	}
	if cmd.Flags().Changed("resume") {
		cfg.Resume = runResume
	}
	if cmd.Flags().Changed("out") {
		cfg.Output = runOut
	}
	if cmd.Flags().Changed("api-key") {
		cfg.APIKey = runAPIKey
	}
	if cmd.Flags().Changed("db-url") {
		cfg.DatabaseURL = runDatabaseURL
	}
	if cmd.Flags().Changed("use-browser") {
		cfg.UseBrowser = runUseBrowser
	}
	if cmd.Flags().Changed("verbose") {
		cfg.Verbose = runVerbose
	}
	if cmd.Flags().Changed("relevance-threshold") {
		cfg.RelevanceThreshold = runThreshold
	}
	if cmd.Flags().Changed("max-extraction-retries") {
		cfg.MaxExtractionRetries = runExtractionRetries
	}
	if cmd.Flags().Changed("max-analysis-retries") {
		cfg.MaxAnalysisRetries = runAnalysisRetries
	}
	if cmd.Flags().Changed("stage-timeout") {
		cfg.StageTimeoutSeconds = runStageTimeout
	}
	if cmd.Flags().Changed("max-llm-in-flight") {
		cfg.MaxLLMInFlight = runLLMInFlight
	}

	// Fill remaining gaps from the environment
	defaults := config.FromEnv()
	defaults.Output = "out"
	cfg = cfg.MergeWithDefaults(defaults)

	if cfg.Job == "" && cfg.JobURL == "" {
		return fmt.Errorf("either --job or --job-url must be provided (via flag or config)")
	}
	if cfg.Resume == "" {
		return fmt.Errorf("--resume is required (via flag or config)")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	format := detectFormat(cfg.Resume, runFormat)
	if format == "" {
		return fmt.Errorf("cannot determine resume format from %s; use --format", cfg.Resume)
	}

	log, err := logger.New(false, cfg.Verbose)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}

	var store db.Store
	if cfg.DatabaseURL != "" {
		database, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		store = database
	} else {
		store = db.NewMemory()
	}
	defer store.Close()

	client, err := newModelClient(ctx, cfg.APIKey, log)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	orch := pipeline.New(store, client, log, pipeline.Config{
		MaxExtractionRetries:  cfg.MaxExtractionRetries,
		MaxAnalysisRetries:    cfg.MaxAnalysisRetries,
		StageTimeout:          time.Duration(cfg.StageTimeoutSeconds) * time.Second,
		RelevanceThreshold:    cfg.RelevanceThreshold,
		MaxConcurrentLLMCalls: int64(cfg.MaxLLMInFlight),
		UseBrowser:            cfg.UseBrowser,
	})

	req := pipeline.Request{
		JobURL:       cfg.JobURL,
		ResumeFormat: format,
		ResumeName:   filepath.Base(cfg.Resume),
	}
	if cfg.Job != "" {
		jobData, err := os.ReadFile(cfg.Job)
		if err != nil {
			return fmt.Errorf("failed to read job file %s: %w", cfg.Job, err)
		}
		req.JobText = string(jobData)
	}
	resumeData, err := os.ReadFile(cfg.Resume)
	if err != nil {
		return fmt.Errorf("failed to read resume file %s: %w", cfg.Resume, err)
	}
	req.ResumeData = resumeData

	// Capture the run ID from progress events so artifacts can be dumped
	// even when the run fails partway. Ingestion and extraction emit from
	// concurrent branches, so the callback is serialized.
	var (
		progressMu    sync.Mutex
		observedRunID string
	)
	var boxes *observability.Printer
	if cfg.Verbose {
		boxes = observability.NewPrinter(os.Stdout)
	}
	emit := progressPrinter(os.Stdout, cfg.Verbose)
	req.OnProgress = func(ev pipeline.ProgressEvent) {
		progressMu.Lock()
		defer progressMu.Unlock()
		observedRunID = ev.RunID
		emit(ev)
		if boxes != nil && ev.Status == db.StageStatusCompleted {
			if id, err := uuid.Parse(ev.RunID); err == nil {
				printStageArtifact(ctx, boxes, store, id, ev.Stage)
			}
		}
	}

	result, runErr := orch.Execute(ctx, req)

	if observedRunID != "" {
		if id, err := uuid.Parse(observedRunID); err == nil {
			// The dump must still work when the run was cancelled.
			dumpStageArtifacts(context.WithoutCancel(ctx), store, id, cfg.Output)
		}
	}
	if runErr != nil {
		return fmt.Errorf("pipeline failed: %w", runErr)
	}

	outPath := filepath.Join(cfg.Output, "tailored_resume.json")
	if err := writeJSONArtifact(outPath, result.Resume); err != nil {
		return err
	}

	resume := result.Resume
	_, _ = fmt.Fprintf(os.Stdout, "Run %s complete\n", result.RunID)
	_, _ = fmt.Fprintf(os.Stdout, "Sections: %d, statements: %d\n", len(resume.Sections), resume.StatementCount())
	if len(resume.CoverageGaps) > 0 {
		_, _ = fmt.Fprintf(os.Stdout, "Coverage gaps: %d requirements with no matching statement\n", len(resume.CoverageGaps))
	}
	if len(resume.Degradations) > 0 {
		_, _ = fmt.Fprintf(os.Stdout, "Degradations: %d (see degradations in the output)\n", len(resume.Degradations))
	}
	_, _ = fmt.Fprintf(os.Stdout, "Output: %s\n", outPath)

	return nil
}

// printStageArtifact renders a completed stage's artifact in verbose mode.
func printStageArtifact(ctx context.Context, pr *observability.Printer, store db.Store, runID uuid.UUID, stage string) {
	switch stage {
	case db.StageIngest:
		if doc, err := db.LoadDocument(ctx, store, runID); err == nil && doc != nil {
			pr.PrintDocument(doc)
		}
	case db.StageExtract:
		if set, err := db.LoadRequirementSet(ctx, store, runID); err == nil && set != nil {
			pr.PrintRequirementSet(set)
		}
	case db.StageAnalyze:
		if statements, err := db.LoadStatements(ctx, store, runID); err == nil {
			pr.PrintStatements(statements)
		}
	case db.StageReconcile:
		if rel, err := db.LoadRelevanceSet(ctx, store, runID); err == nil && rel != nil {
			pr.PrintRelevanceSet(rel)
		}
	case db.StageSynthesize:
		if resume, err := db.LoadTailoredResume(ctx, store, runID); err == nil && resume != nil {
			pr.PrintTailoredResume(resume)
		}
	}
}

// dumpStageArtifacts writes every persisted stage artifact under dir. The
// synthesize artifact is skipped; it is written as tailored_resume.json.
func dumpStageArtifacts(ctx context.Context, store db.Store, runID uuid.UUID, dir string) {
	for _, stage := range db.PipelineStages() {
		if stage == db.StageSynthesize {
			continue
		}
		raw, err := store.GetArtifact(ctx, runID, stage)
		if err != nil || raw == nil {
			continue
		}
		path := filepath.Join(dir, stage+".json")
		if err := writeArtifactFile(path, raw); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Warning: could not write %s: %v\n", path, err)
		}
	}
}
