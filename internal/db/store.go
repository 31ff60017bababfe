// Package db provides persistence for pipeline runs, their stage artifacts,
// and user accounts. Postgres is the durable implementation; Memory backs
// single-process runs and tests.
package db

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Run stages. A run's Stage field always holds one of these; the first five
// double as artifact keys for the output each stage persists.
const (
	StageIngest     = "ingest"
	StageExtract    = "extract_requirements"
	StageAnalyze    = "analyze_resume"
	StageReconcile  = "reconcile"
	StageSynthesize = "synthesize"
	StageDone       = "done"
	StageFailed     = "failed"
	StageCancelled  = "cancelled"
)

// Stage record statuses.
const (
	StageStatusRunning   = "running"
	StageStatusCompleted = "completed"
	StageStatusFailed    = "failed"
)

// ErrDuplicateEmail is returned by CreateUser when the email is taken.
var ErrDuplicateEmail = errors.New("email already registered")

// Run represents a pipeline run record.
type Run struct {
	ID             uuid.UUID  `json:"id"`
	UserID         *uuid.UUID `json:"user_id,omitempty"`
	JobURL         string     `json:"job_url,omitempty"`
	ResumeName     string     `json:"resume_name,omitempty"`
	Stage          string     `json:"stage"`
	FailureStage   *string    `json:"failure_stage,omitempty"`
	FailureKind    *string    `json:"failure_kind,omitempty"`
	FailureMessage *string    `json:"failure_message,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}

// Terminal reports whether the run has reached a terminal stage.
func (r *Run) Terminal() bool {
	return r.Stage == StageDone || r.Stage == StageFailed || r.Stage == StageCancelled
}

// RunInput holds the fields callers set when creating a run.
type RunInput struct {
	UserID     *uuid.UUID
	JobURL     string
	ResumeName string
}

// RunFailure records why a run failed.
type RunFailure struct {
	Stage   string
	Kind    string
	Message string
}

// RunFilters holds optional filters for listing runs.
type RunFilters struct {
	UserID uuid.UUID
	Stage  string
	Limit  int
}

// ArtifactSummary is a lightweight view of a stored artifact.
type ArtifactSummary struct {
	Stage     string    `json:"stage"`
	Bytes     int       `json:"bytes"`
	CreatedAt time.Time `json:"created_at"`
}

// StageRecord tracks one stage execution within a run.
type StageRecord struct {
	RunID        uuid.UUID  `json:"run_id"`
	Stage        string     `json:"stage"`
	Status       string     `json:"status"`
	Attempts     int        `json:"attempts"`
	ErrorMessage *string    `json:"error_message,omitempty"`
	StartedAt    time.Time  `json:"started_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	DurationMs   *int       `json:"duration_ms,omitempty"`
}

// User represents an account that owns runs.
type User struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Store is the persistence boundary the pipeline and server depend on.
// Lookup methods return (nil, nil) when the record does not exist.
type Store interface {
	// Runs.
	CreateRun(ctx context.Context, input RunInput) (*Run, error)
	GetRun(ctx context.Context, runID uuid.UUID) (*Run, error)
	ListRuns(ctx context.Context, filters RunFilters) ([]Run, error)
	SetRunStage(ctx context.Context, runID uuid.UUID, stage string) error
	CompleteRun(ctx context.Context, runID uuid.UUID, stage string, failure *RunFailure) error
	DeleteRun(ctx context.Context, runID uuid.UUID) error

	// Stage artifacts, upserted per (run, stage).
	SaveArtifact(ctx context.Context, runID uuid.UUID, stage string, content any) error
	GetArtifact(ctx context.Context, runID uuid.UUID, stage string) ([]byte, error)
	ListArtifacts(ctx context.Context, runID uuid.UUID) ([]ArtifactSummary, error)

	// Stage execution records.
	StartStage(ctx context.Context, runID uuid.UUID, stage string) error
	FinishStage(ctx context.Context, runID uuid.UUID, stage, status string, attempts int, errMessage string) error
	ListStages(ctx context.Context, runID uuid.UUID) ([]StageRecord, error)

	// Users.
	CreateUser(ctx context.Context, email, name, passwordHash string) (*User, error)
	GetUser(ctx context.Context, userID uuid.UUID) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)

	Ping(ctx context.Context) error
	Close()
}

// PipelineStages lists the executable stages in transition order.
func PipelineStages() []string {
	return []string{StageIngest, StageExtract, StageAnalyze, StageReconcile, StageSynthesize}
}
