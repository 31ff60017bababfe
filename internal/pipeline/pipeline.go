// Package pipeline drives tailoring runs through their stage graph.
// Ingestion and requirement extraction run concurrently; analysis follows
// ingestion in its branch; reconciliation and synthesis run after the join.
// Every stage persists its artifact before the stage is marked completed, so
// a crashed or failed run can be resumed from its last persisted artifact.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jonathan/resume-tailor/internal/analysis"
	"github.com/jonathan/resume-tailor/internal/db"
	"github.com/jonathan/resume-tailor/internal/extraction"
	"github.com/jonathan/resume-tailor/internal/fetch"
	"github.com/jonathan/resume-tailor/internal/ingestion"
	"github.com/jonathan/resume-tailor/internal/llm"
	"github.com/jonathan/resume-tailor/internal/observability"
	"github.com/jonathan/resume-tailor/internal/relevance"
	"github.com/jonathan/resume-tailor/internal/synthesis"
	"github.com/jonathan/resume-tailor/internal/types"
)

// artifactRequest is the artifact slot holding the original run request.
// ResumeRun needs it to re-execute stages whose artifacts are missing.
const artifactRequest = "request"

// ErrInvalidRequest marks submissions rejected before a run is created.
var ErrInvalidRequest = errors.New("invalid run request")

// Config holds orchestration tunables. Zero values fall back to defaults.
type Config struct {
	MaxExtractionRetries  int
	MaxAnalysisRetries    int
	StageTimeout          time.Duration
	RelevanceThreshold    float64
	MaxConcurrentLLMCalls int64

	// UseBrowser allows the headless-browser fallback when fetching job
	// postings whose pages render client side.
	UseBrowser bool
}

// DefaultConfig returns the orchestration defaults.
func DefaultConfig() Config {
	return Config{
		MaxExtractionRetries:  2,
		MaxAnalysisRetries:    2,
		StageTimeout:          120 * time.Second,
		RelevanceThreshold:    0.35,
		MaxConcurrentLLMCalls: 4,
	}
}

// ProgressEvent is one progress update during a run.
type ProgressEvent struct {
	RunID   string `json:"run_id"`
	Stage   string `json:"stage"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// ProgressCallback is called as stages start, complete, and fail.
type ProgressCallback func(event ProgressEvent)

// Request describes one tailoring run. Exactly one of JobText and JobURL
// must be set; ResumeData carries the raw resume bytes in ResumeFormat.
type Request struct {
	JobText      string
	JobURL       string
	ResumeData   []byte
	ResumeFormat string
	ResumeName   string
	UserID       *uuid.UUID
	OnProgress   ProgressCallback
}

// Result is a completed run.
type Result struct {
	RunID  uuid.UUID
	Resume *types.TailoredResume
}

// requestArtifact is the persisted form of a Request, minus the callback.
type requestArtifact struct {
	JobText      string `json:"job_text,omitempty"`
	JobURL       string `json:"job_url,omitempty"`
	ResumeData   []byte `json:"resume_data"`
	ResumeFormat string `json:"resume_format"`
	ResumeName   string `json:"resume_name,omitempty"`
}

// runArtifacts carries stage outputs across a run. A nil field means the
// stage has not executed; execute skips stages whose output is present.
type runArtifacts struct {
	doc          *ingestion.Document
	requirements *types.RequirementSet
	statements   []types.ResumeStatement
	relevance    *types.RelevanceSet
	resume       *types.TailoredResume
}

// Orchestrator executes tailoring runs against a Store. The LLM gate wraps
// the injected client once, so the in-flight call bound is shared across
// every concurrent run.
type Orchestrator struct {
	store       db.Store
	logger      *zap.Logger
	cfg         Config
	extractor   *extraction.Extractor
	analyzer    *analysis.Analyzer
	reconciler  *relevance.Reconciler
	synthesizer *synthesis.Synthesizer

	mu      sync.Mutex
	cancels map[uuid.UUID]context.CancelFunc
}

// New creates an Orchestrator with an injected store and model client.
func New(store db.Store, client llm.Client, logger *zap.Logger, cfg Config) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	def := DefaultConfig()
	if cfg.MaxExtractionRetries <= 0 {
		cfg.MaxExtractionRetries = def.MaxExtractionRetries
	}
	if cfg.MaxAnalysisRetries <= 0 {
		cfg.MaxAnalysisRetries = def.MaxAnalysisRetries
	}
	if cfg.StageTimeout <= 0 {
		cfg.StageTimeout = def.StageTimeout
	}
	if cfg.RelevanceThreshold <= 0 {
		cfg.RelevanceThreshold = def.RelevanceThreshold
	}
	if cfg.MaxConcurrentLLMCalls <= 0 {
		cfg.MaxConcurrentLLMCalls = def.MaxConcurrentLLMCalls
	}

	gated := llm.NewGated(client, cfg.MaxConcurrentLLMCalls)
	relCfg := relevance.DefaultConfig()
	relCfg.Threshold = cfg.RelevanceThreshold

	return &Orchestrator{
		store:       store,
		logger:      logger,
		cfg:         cfg,
		extractor:   extraction.New(gated, logger, extraction.Config{MaxRetries: cfg.MaxExtractionRetries}),
		analyzer:    analysis.New(gated, logger, analysis.Config{MaxRetries: cfg.MaxAnalysisRetries}),
		reconciler:  relevance.New(gated, logger, relCfg),
		synthesizer: synthesis.New(gated, logger, synthesis.DefaultConfig()),
		cancels:     make(map[uuid.UUID]context.CancelFunc),
	}
}

// Submit validates the request, creates the run record, and persists the
// request artifact without executing any stage. Pair with ResumeRun to
// execute the run in the background.
func (o *Orchestrator) Submit(ctx context.Context, req Request) (*db.Run, error) {
	if len(req.ResumeData) == 0 {
		return nil, fmt.Errorf("%w: resume document is required", ErrInvalidRequest)
	}
	if req.JobText == "" && req.JobURL == "" {
		return nil, fmt.Errorf("%w: job description text or URL is required", ErrInvalidRequest)
	}

	run, err := o.store.CreateRun(ctx, db.RunInput{
		UserID:     req.UserID,
		JobURL:     req.JobURL,
		ResumeName: req.ResumeName,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}

	// The request is persisted before any stage executes so a crashed run
	// can be picked up by ResumeRun with nothing but the run ID.
	saved := requestArtifact{
		JobText:      req.JobText,
		JobURL:       req.JobURL,
		ResumeData:   req.ResumeData,
		ResumeFormat: req.ResumeFormat,
		ResumeName:   req.ResumeName,
	}
	if err := o.store.SaveArtifact(ctx, run.ID, artifactRequest, saved); err != nil {
		return nil, fmt.Errorf("failed to persist run request: %w", err)
	}

	observability.RunsStarted.Inc()
	o.logger.Info("run started",
		zap.String("run_id", run.ID.String()),
		zap.String("resume_format", req.ResumeFormat),
		zap.Bool("job_from_url", req.JobURL != ""))

	return run, nil
}

// Execute runs the full pipeline for one request. The run record and every
// stage artifact are persisted as the run progresses. Stage failures are
// returned as *StageError after the run is marked failed.
func (o *Orchestrator) Execute(ctx context.Context, req Request) (*Result, error) {
	run, err := o.Submit(ctx, req)
	if err != nil {
		return nil, err
	}
	return o.run(ctx, run.ID, &req, &runArtifacts{})
}

// ResumeRun restarts a run at its first stage lacking a persisted artifact.
// Completed stages are not re-executed; a run whose tailored resume is
// already persisted returns immediately.
func (o *Orchestrator) ResumeRun(ctx context.Context, runID uuid.UUID, onProgress ProgressCallback) (*Result, error) {
	run, err := o.store.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, fmt.Errorf("run not found: %s", runID)
	}

	content, err := o.store.GetArtifact(ctx, runID, artifactRequest)
	if err != nil {
		return nil, err
	}
	if content == nil {
		return nil, fmt.Errorf("run %s has no persisted request and cannot be resumed", runID)
	}
	var saved requestArtifact
	if err := json.Unmarshal(content, &saved); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run request: %w", err)
	}
	req := Request{
		JobText:      saved.JobText,
		JobURL:       saved.JobURL,
		ResumeData:   saved.ResumeData,
		ResumeFormat: saved.ResumeFormat,
		ResumeName:   saved.ResumeName,
		UserID:       run.UserID,
		OnProgress:   onProgress,
	}

	art := &runArtifacts{}
	if art.doc, err = db.LoadDocument(ctx, o.store, runID); err != nil {
		return nil, err
	}
	if art.requirements, err = db.LoadRequirementSet(ctx, o.store, runID); err != nil {
		return nil, err
	}
	if art.statements, err = db.LoadStatements(ctx, o.store, runID); err != nil {
		return nil, err
	}
	if art.relevance, err = db.LoadRelevanceSet(ctx, o.store, runID); err != nil {
		return nil, err
	}
	if art.resume, err = db.LoadTailoredResume(ctx, o.store, runID); err != nil {
		return nil, err
	}

	if dropped := pruneStale(art); len(dropped) > 0 {
		o.logger.Warn("dropping stage artifacts whose inputs are missing",
			zap.String("run_id", runID.String()),
			zap.Strings("stages", dropped))
	}

	if art.resume != nil {
		if run.Stage != db.StageDone {
			if err := o.store.CompleteRun(ctx, runID, db.StageDone, nil); err != nil {
				o.logger.Warn("failed to mark resumed run done",
					zap.String("run_id", runID.String()), zap.Error(err))
			}
		}
		return &Result{RunID: runID, Resume: art.resume}, nil
	}

	o.logger.Info("resuming run",
		zap.String("run_id", runID.String()),
		zap.Bool("have_document", art.doc != nil),
		zap.Bool("have_requirements", art.requirements != nil),
		zap.Bool("have_statements", art.statements != nil),
		zap.Bool("have_relevance", art.relevance != nil))

	return o.run(ctx, runID, &req, art)
}

// Cancel stops an in-flight run. It reports whether the run was active.
func (o *Orchestrator) Cancel(runID uuid.UUID) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	cancel, ok := o.cancels[runID]
	if ok {
		cancel()
	}
	return ok
}

// IsActive reports whether the run is currently executing.
func (o *Orchestrator) IsActive(runID uuid.UUID) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.cancels[runID]
	return ok
}

// run registers the cancellation handle, executes the remaining stages, and
// records the terminal state. Terminal bookkeeping runs on a context
// detached from cancellation so a cancelled run is still recorded.
func (o *Orchestrator) run(ctx context.Context, runID uuid.UUID, req *Request, art *runArtifacts) (*Result, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	o.mu.Lock()
	if _, exists := o.cancels[runID]; exists {
		o.mu.Unlock()
		return nil, fmt.Errorf("run %s is already executing", runID)
	}
	o.cancels[runID] = cancel
	o.mu.Unlock()
	defer func() {
		o.mu.Lock()
		delete(o.cancels, runID)
		o.mu.Unlock()
	}()

	observability.RunsActive.Inc()
	defer observability.RunsActive.Dec()

	execErr := o.execute(runCtx, runID, req, art)
	bg := context.WithoutCancel(ctx)

	if execErr == nil {
		if err := o.store.CompleteRun(bg, runID, db.StageDone, nil); err != nil {
			o.logger.Warn("failed to mark run done", zap.String("run_id", runID.String()), zap.Error(err))
		}
		observability.RunsCompleted.WithLabelValues("done").Inc()
		o.emit(req.OnProgress, runID, db.StageDone, db.StageStatusCompleted, "")
		o.logger.Info("run complete",
			zap.String("run_id", runID.String()),
			zap.Int("statements", art.resume.StatementCount()),
			zap.Int("coverage_gaps", len(art.resume.CoverageGaps)),
			zap.Int("degradations", len(art.resume.Degradations)))
		return &Result{RunID: runID, Resume: art.resume}, nil
	}

	var stageErr *StageError
	if !errors.As(execErr, &stageErr) {
		stageErr = &StageError{Stage: "", Kind: KindInternal, Err: execErr}
	}

	if stageErr.Kind == KindCancelled {
		if err := o.store.CompleteRun(bg, runID, db.StageCancelled, nil); err != nil {
			o.logger.Warn("failed to mark run cancelled", zap.String("run_id", runID.String()), zap.Error(err))
		}
		observability.RunsCompleted.WithLabelValues("cancelled").Inc()
		o.emit(req.OnProgress, runID, db.StageCancelled, "cancelled", stageErr.Error())
		o.logger.Warn("run cancelled",
			zap.String("run_id", runID.String()),
			zap.String("stage", stageErr.Stage))
		return nil, stageErr
	}

	failure := &db.RunFailure{Stage: stageErr.Stage, Kind: stageErr.Kind, Message: stageErr.Err.Error()}
	if err := o.store.CompleteRun(bg, runID, db.StageFailed, failure); err != nil {
		o.logger.Warn("failed to mark run failed", zap.String("run_id", runID.String()), zap.Error(err))
	}
	observability.RunsCompleted.WithLabelValues("failed").Inc()
	o.emit(req.OnProgress, runID, db.StageFailed, db.StageStatusFailed, stageErr.Error())
	o.logger.Error("run failed",
		zap.String("run_id", runID.String()),
		zap.String("stage", stageErr.Stage),
		zap.String("kind", stageErr.Kind),
		zap.Error(stageErr.Err))
	return nil, stageErr
}

// execute advances the run through every stage whose artifact is missing.
func (o *Orchestrator) execute(ctx context.Context, runID uuid.UUID, req *Request, art *runArtifacts) error {
	g, gctx := errgroup.WithContext(ctx)
	var artMu sync.Mutex

	// Resume branch: ingest, then decompose into statements.
	g.Go(func() error {
		if art.doc == nil {
			err := o.runStage(gctx, runID, db.StageIngest, req.OnProgress, func(context.Context) (any, error) {
				doc, err := ingestion.Ingest(req.ResumeData, req.ResumeFormat)
				if err != nil {
					return nil, err
				}
				artMu.Lock()
				art.doc = doc
				artMu.Unlock()
				return doc, nil
			})
			if err != nil {
				return err
			}
		}
		if art.statements == nil {
			o.advance(gctx, runID, db.StageAnalyze)
			return o.runStage(gctx, runID, db.StageAnalyze, req.OnProgress, func(sc context.Context) (any, error) {
				set, err := o.analyzer.Analyze(sc, art.doc)
				if err != nil {
					return nil, err
				}
				artMu.Lock()
				art.statements = set.Statements
				artMu.Unlock()
				return set.Statements, nil
			})
		}
		return nil
	})

	// Job branch: fetch the posting if needed, then extract requirements.
	g.Go(func() error {
		if art.requirements == nil {
			return o.runStage(gctx, runID, db.StageExtract, req.OnProgress, func(sc context.Context) (any, error) {
				jobText := req.JobText
				if jobText == "" {
					opts := fetch.DefaultOptions()
					opts.UseBrowser = o.cfg.UseBrowser
					opts.Logger = o.logger
					posting, err := ingestion.IngestJobURL(sc, req.JobURL, opts)
					if err != nil {
						return nil, err
					}
					jobText = posting.Text
				}
				set, err := o.extractor.Extract(sc, jobText)
				if err != nil {
					return nil, err
				}
				artMu.Lock()
				art.requirements = set
				artMu.Unlock()
				return set, nil
			})
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	if art.relevance == nil {
		o.advance(ctx, runID, db.StageReconcile)
		if err := o.runStage(ctx, runID, db.StageReconcile, req.OnProgress, func(sc context.Context) (any, error) {
			rel, err := o.reconciler.Reconcile(sc, art.requirements.Requirements, art.statements)
			if err != nil {
				return nil, err
			}
			art.relevance = rel
			return rel, nil
		}); err != nil {
			return err
		}
	}

	if art.resume == nil {
		o.advance(ctx, runID, db.StageSynthesize)
		if err := o.runStage(ctx, runID, db.StageSynthesize, req.OnProgress, func(sc context.Context) (any, error) {
			resume, err := o.synthesizer.Synthesize(sc, art.requirements.Requirements, art.statements, art.relevance)
			if err != nil {
				return nil, err
			}
			observability.Degradations.Add(float64(len(resume.Degradations)))
			art.resume = resume
			return resume, nil
		}); err != nil {
			return err
		}
	}

	return nil
}

// runStage executes one stage with its timeout and bookkeeping. The stage
// artifact is persisted before the stage is marked completed, so a crash
// never leaves a completed stage without its artifact.
func (o *Orchestrator) runStage(ctx context.Context, runID uuid.UUID, stage string, onProgress ProgressCallback, fn func(context.Context) (any, error)) error {
	if err := o.store.StartStage(ctx, runID, stage); err != nil {
		return &StageError{Stage: stage, Kind: KindInternal, Err: err}
	}
	o.emit(onProgress, runID, stage, db.StageStatusRunning, "")
	o.logger.Info("stage started", zap.String("run_id", runID.String()), zap.String("stage", stage))

	start := time.Now()
	stageCtx, cancel := context.WithTimeout(ctx, o.cfg.StageTimeout)
	defer cancel()

	artifact, err := fn(stageCtx)
	if err == nil {
		if saveErr := o.store.SaveArtifact(ctx, runID, stage, artifact); saveErr != nil {
			err = fmt.Errorf("failed to persist stage artifact: %w", saveErr)
		}
	}
	if err != nil {
		stageErr := classify(stage, err)
		finishCtx := context.WithoutCancel(ctx)
		if ferr := o.store.FinishStage(finishCtx, runID, stage, db.StageStatusFailed, 1, stageErr.Error()); ferr != nil {
			o.logger.Warn("failed to record stage failure",
				zap.String("run_id", runID.String()), zap.String("stage", stage), zap.Error(ferr))
		}
		observability.StageFailures.WithLabelValues(stage, stageErr.Kind).Inc()
		o.emit(onProgress, runID, stage, db.StageStatusFailed, stageErr.Error())
		o.logger.Error("stage failed",
			zap.String("run_id", runID.String()),
			zap.String("stage", stage),
			zap.String("kind", stageErr.Kind),
			zap.Error(stageErr.Err))
		return stageErr
	}

	if ferr := o.store.FinishStage(ctx, runID, stage, db.StageStatusCompleted, 1, ""); ferr != nil {
		o.logger.Warn("failed to record stage completion",
			zap.String("run_id", runID.String()), zap.String("stage", stage), zap.Error(ferr))
	}
	observability.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
	o.emit(onProgress, runID, stage, db.StageStatusCompleted, "")
	o.logger.Info("stage completed",
		zap.String("run_id", runID.String()),
		zap.String("stage", stage),
		zap.Duration("duration", time.Since(start)))
	return nil
}

// advance moves the run's stage marker. Stage records carry the
// authoritative per-stage status, so marker failures only log.
func (o *Orchestrator) advance(ctx context.Context, runID uuid.UUID, stage string) {
	if err := o.store.SetRunStage(ctx, runID, stage); err != nil {
		o.logger.Warn("failed to advance run stage",
			zap.String("run_id", runID.String()), zap.String("stage", stage), zap.Error(err))
	}
}

func (o *Orchestrator) emit(cb ProgressCallback, runID uuid.UUID, stage, status, message string) {
	if cb != nil {
		cb(ProgressEvent{RunID: runID.String(), Stage: stage, Status: status, Message: message})
	}
}
