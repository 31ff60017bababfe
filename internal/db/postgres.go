package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DB is the PostgreSQL implementation of Store.
type DB struct {
	pool *pgxpool.Pool
}

var _ Store = (*DB)(nil)

// Connect establishes a connection pool to the database.
func Connect(ctx context.Context, databaseURL string) (*DB, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{pool: pool}, nil
}

// Ping verifies the database connection is alive.
func (db *DB) Ping(ctx context.Context) error {
	return db.pool.Ping(ctx)
}

// Close closes the connection pool.
func (db *DB) Close() {
	if db.pool != nil {
		db.pool.Close()
	}
}

// -----------------------------------------------------------------------------
// Run Methods
// -----------------------------------------------------------------------------

// CreateRun creates a new pipeline run record starting at the ingest stage.
func (db *DB) CreateRun(ctx context.Context, input RunInput) (*Run, error) {
	var run Run
	err := db.pool.QueryRow(ctx,
		`INSERT INTO runs (user_id, job_url, resume_name, stage)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, user_id, job_url, resume_name, stage, created_at, updated_at`,
		input.UserID, input.JobURL, input.ResumeName, StageIngest,
	).Scan(&run.ID, &run.UserID, &run.JobURL, &run.ResumeName, &run.Stage,
		&run.CreatedAt, &run.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}
	return &run, nil
}

// GetRun retrieves a pipeline run by ID.
func (db *DB) GetRun(ctx context.Context, runID uuid.UUID) (*Run, error) {
	var run Run
	err := db.pool.QueryRow(ctx,
		`SELECT id, user_id, job_url, resume_name, stage,
		        failure_stage, failure_kind, failure_message,
		        created_at, updated_at, completed_at
		 FROM runs WHERE id = $1`,
		runID,
	).Scan(&run.ID, &run.UserID, &run.JobURL, &run.ResumeName, &run.Stage,
		&run.FailureStage, &run.FailureKind, &run.FailureMessage,
		&run.CreatedAt, &run.UpdatedAt, &run.CompletedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return &run, nil
}

// ListRuns retrieves runs with optional filters, newest first.
func (db *DB) ListRuns(ctx context.Context, filters RunFilters) ([]Run, error) {
	if filters.Limit == 0 {
		filters.Limit = 50
	}

	query := `SELECT id, user_id, job_url, resume_name, stage,
	                 failure_stage, failure_kind, failure_message,
	                 created_at, updated_at, completed_at
	          FROM runs WHERE 1=1`
	args := []any{}
	argNum := 1

	if filters.UserID != uuid.Nil {
		query += fmt.Sprintf(" AND user_id = $%d", argNum)
		args = append(args, filters.UserID)
		argNum++
	}
	if filters.Stage != "" {
		query += fmt.Sprintf(" AND stage = $%d", argNum)
		args = append(args, filters.Stage)
		argNum++
	}

	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", argNum)
	args = append(args, filters.Limit)

	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		if err := rows.Scan(&run.ID, &run.UserID, &run.JobURL, &run.ResumeName, &run.Stage,
			&run.FailureStage, &run.FailureKind, &run.FailureMessage,
			&run.CreatedAt, &run.UpdatedAt, &run.CompletedAt); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, nil
}

// SetRunStage advances a run to the given stage.
func (db *DB) SetRunStage(ctx context.Context, runID uuid.UUID, stage string) error {
	result, err := db.pool.Exec(ctx,
		`UPDATE runs SET stage = $1, updated_at = NOW() WHERE id = $2`,
		stage, runID,
	)
	if err != nil {
		return fmt.Errorf("failed to set run stage: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("run not found: %s", runID)
	}
	return nil
}

// CompleteRun moves a run to a terminal stage, recording the failure when
// stage is failed.
func (db *DB) CompleteRun(ctx context.Context, runID uuid.UUID, stage string, failure *RunFailure) error {
	var failureStage, failureKind, failureMessage *string
	if failure != nil {
		failureStage = nullIfEmpty(failure.Stage)
		failureKind = nullIfEmpty(failure.Kind)
		failureMessage = nullIfEmpty(failure.Message)
	}

	result, err := db.pool.Exec(ctx,
		`UPDATE runs
		 SET stage = $1, failure_stage = $2, failure_kind = $3, failure_message = $4,
		     completed_at = NOW(), updated_at = NOW()
		 WHERE id = $5`,
		stage, failureStage, failureKind, failureMessage, runID,
	)
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("run not found: %s", runID)
	}
	return nil
}

// DeleteRun deletes a pipeline run and all its artifacts (via cascade).
func (db *DB) DeleteRun(ctx context.Context, runID uuid.UUID) error {
	result, err := db.pool.Exec(ctx, `DELETE FROM runs WHERE id = $1`, runID)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("run not found: %s", runID)
	}
	return nil
}

// -----------------------------------------------------------------------------
// Artifact Methods
// -----------------------------------------------------------------------------

// SaveArtifact stores a stage's JSON artifact, replacing any previous one.
func (db *DB) SaveArtifact(ctx context.Context, runID uuid.UUID, stage string, content any) error {
	jsonBytes, err := json.Marshal(content)
	if err != nil {
		return fmt.Errorf("failed to marshal artifact: %w", err)
	}

	_, err = db.pool.Exec(ctx,
		`INSERT INTO artifacts (run_id, stage, content)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (run_id, stage) DO UPDATE SET content = $3, created_at = NOW()`,
		runID, stage, jsonBytes,
	)
	if err != nil {
		return fmt.Errorf("failed to save artifact %s: %w", stage, err)
	}
	return nil
}

// GetArtifact retrieves a stage's JSON artifact by run ID.
func (db *DB) GetArtifact(ctx context.Context, runID uuid.UUID, stage string) ([]byte, error) {
	var content []byte
	err := db.pool.QueryRow(ctx,
		`SELECT content FROM artifacts WHERE run_id = $1 AND stage = $2`,
		runID, stage,
	).Scan(&content)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get artifact %s: %w", stage, err)
	}
	return content, nil
}

// ListArtifacts retrieves artifact summaries for a run in creation order.
func (db *DB) ListArtifacts(ctx context.Context, runID uuid.UUID) ([]ArtifactSummary, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT stage, length(content::text), created_at
		 FROM artifacts WHERE run_id = $1
		 ORDER BY created_at ASC`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list artifacts: %w", err)
	}
	defer rows.Close()

	var artifacts []ArtifactSummary
	for rows.Next() {
		var a ArtifactSummary
		if err := rows.Scan(&a.Stage, &a.Bytes, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan artifact: %w", err)
		}
		artifacts = append(artifacts, a)
	}
	return artifacts, nil
}

// -----------------------------------------------------------------------------
// Stage Record Methods
// -----------------------------------------------------------------------------

// StartStage marks a stage as running, resetting any previous execution of it.
func (db *DB) StartStage(ctx context.Context, runID uuid.UUID, stage string) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO run_stages (run_id, stage, status, attempts, started_at)
		 VALUES ($1, $2, $3, 0, NOW())
		 ON CONFLICT (run_id, stage) DO UPDATE
		 SET status = $3, attempts = 0, started_at = NOW(),
		     completed_at = NULL, duration_ms = NULL, error_message = NULL`,
		runID, stage, StageStatusRunning,
	)
	if err != nil {
		return fmt.Errorf("failed to start stage %s: %w", stage, err)
	}
	return nil
}

// FinishStage records a stage's outcome and duration.
func (db *DB) FinishStage(ctx context.Context, runID uuid.UUID, stage, status string, attempts int, errMessage string) error {
	result, err := db.pool.Exec(ctx,
		`UPDATE run_stages
		 SET status = $1, attempts = $2, error_message = $3, completed_at = NOW(),
		     duration_ms = (EXTRACT(EPOCH FROM (NOW() - started_at)) * 1000)::int
		 WHERE run_id = $4 AND stage = $5`,
		status, attempts, nullIfEmpty(errMessage), runID, stage,
	)
	if err != nil {
		return fmt.Errorf("failed to finish stage %s: %w", stage, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("stage not started: %s", stage)
	}
	return nil
}

// ListStages retrieves all stage records for a run in start order.
func (db *DB) ListStages(ctx context.Context, runID uuid.UUID) ([]StageRecord, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT run_id, stage, status, attempts, error_message,
		        started_at, completed_at, duration_ms
		 FROM run_stages WHERE run_id = $1
		 ORDER BY started_at ASC`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list stages: %w", err)
	}
	defer rows.Close()

	var records []StageRecord
	for rows.Next() {
		var rec StageRecord
		if err := rows.Scan(&rec.RunID, &rec.Stage, &rec.Status, &rec.Attempts,
			&rec.ErrorMessage, &rec.StartedAt, &rec.CompletedAt, &rec.DurationMs); err != nil {
			return nil, fmt.Errorf("failed to scan stage record: %w", err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// -----------------------------------------------------------------------------
// User Methods
// -----------------------------------------------------------------------------

// CreateUser creates a user account. Returns ErrDuplicateEmail when the email
// is already registered.
func (db *DB) CreateUser(ctx context.Context, email, name, passwordHash string) (*User, error) {
	var user User
	err := db.pool.QueryRow(ctx,
		`INSERT INTO users (email, name, password_hash)
		 VALUES ($1, $2, $3)
		 RETURNING id, email, name, password_hash, created_at, updated_at`,
		email, name, passwordHash,
	).Scan(&user.ID, &user.Email, &user.Name, &user.PasswordHash,
		&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrDuplicateEmail
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return &user, nil
}

// GetUser retrieves a user by ID.
func (db *DB) GetUser(ctx context.Context, userID uuid.UUID) (*User, error) {
	return db.getUser(ctx, `SELECT id, email, name, password_hash, created_at, updated_at
		 FROM users WHERE id = $1`, userID)
}

// GetUserByEmail retrieves a user by email.
func (db *DB) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	return db.getUser(ctx, `SELECT id, email, name, password_hash, created_at, updated_at
		 FROM users WHERE email = $1`, email)
}

func (db *DB) getUser(ctx context.Context, query string, arg any) (*User, error) {
	var user User
	err := db.pool.QueryRow(ctx, query, arg).Scan(&user.ID, &user.Email, &user.Name,
		&user.PasswordHash, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

// nullIfEmpty returns nil for empty strings so they store as NULL.
func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
