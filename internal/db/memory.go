package db

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory is an in-process Store for runs that do not need durability and for
// tests. Semantics match the Postgres implementation, including the
// (nil, nil) not-found convention.
type Memory struct {
	mu sync.RWMutex

	runs      map[uuid.UUID]*Run
	artifacts map[uuid.UUID]map[string]*memArtifact
	stages    map[uuid.UUID]map[string]*StageRecord
	users     map[uuid.UUID]*User
	emails    map[string]uuid.UUID

	seq int64
}

type memArtifact struct {
	content   []byte
	createdAt time.Time
	seq       int64
}

var _ Store = (*Memory)(nil)

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		runs:      make(map[uuid.UUID]*Run),
		artifacts: make(map[uuid.UUID]map[string]*memArtifact),
		stages:    make(map[uuid.UUID]map[string]*StageRecord),
		users:     make(map[uuid.UUID]*User),
		emails:    make(map[string]uuid.UUID),
	}
}

// Ping always succeeds for the in-memory store.
func (m *Memory) Ping(context.Context) error { return nil }

// Close is a no-op for the in-memory store.
func (m *Memory) Close() {}

// CreateRun creates a new pipeline run record starting at the ingest stage.
func (m *Memory) CreateRun(_ context.Context, input RunInput) (*Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	run := &Run{
		ID:         uuid.New(),
		UserID:     input.UserID,
		JobURL:     input.JobURL,
		ResumeName: input.ResumeName,
		Stage:      StageIngest,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	m.runs[run.ID] = run

	out := *run
	return &out, nil
}

// GetRun retrieves a pipeline run by ID.
func (m *Memory) GetRun(_ context.Context, runID uuid.UUID) (*Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	run, ok := m.runs[runID]
	if !ok {
		return nil, nil
	}
	out := *run
	return &out, nil
}

// ListRuns retrieves runs with optional filters, newest first.
func (m *Memory) ListRuns(_ context.Context, filters RunFilters) ([]Run, error) {
	if filters.Limit == 0 {
		filters.Limit = 50
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var runs []Run
	for _, run := range m.runs {
		if filters.UserID != uuid.Nil && (run.UserID == nil || *run.UserID != filters.UserID) {
			continue
		}
		if filters.Stage != "" && run.Stage != filters.Stage {
			continue
		}
		runs = append(runs, *run)
	}
	sort.Slice(runs, func(i, j int) bool {
		return runs[i].CreatedAt.After(runs[j].CreatedAt)
	})
	if len(runs) > filters.Limit {
		runs = runs[:filters.Limit]
	}
	return runs, nil
}

// SetRunStage advances a run to the given stage.
func (m *Memory) SetRunStage(_ context.Context, runID uuid.UUID, stage string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	run, ok := m.runs[runID]
	if !ok {
		return fmt.Errorf("run not found: %s", runID)
	}
	run.Stage = stage
	run.UpdatedAt = time.Now()
	return nil
}

// CompleteRun moves a run to a terminal stage, recording the failure when
// stage is failed.
func (m *Memory) CompleteRun(_ context.Context, runID uuid.UUID, stage string, failure *RunFailure) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	run, ok := m.runs[runID]
	if !ok {
		return fmt.Errorf("run not found: %s", runID)
	}

	now := time.Now()
	run.Stage = stage
	run.UpdatedAt = now
	run.CompletedAt = &now
	run.FailureStage, run.FailureKind, run.FailureMessage = nil, nil, nil
	if failure != nil {
		run.FailureStage = nullIfEmpty(failure.Stage)
		run.FailureKind = nullIfEmpty(failure.Kind)
		run.FailureMessage = nullIfEmpty(failure.Message)
	}
	return nil
}

// DeleteRun deletes a pipeline run and all its artifacts and stage records.
func (m *Memory) DeleteRun(_ context.Context, runID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.runs[runID]; !ok {
		return fmt.Errorf("run not found: %s", runID)
	}
	delete(m.runs, runID)
	delete(m.artifacts, runID)
	delete(m.stages, runID)
	return nil
}

// SaveArtifact stores a stage's JSON artifact, replacing any previous one.
func (m *Memory) SaveArtifact(_ context.Context, runID uuid.UUID, stage string, content any) error {
	jsonBytes, err := json.Marshal(content)
	if err != nil {
		return fmt.Errorf("failed to marshal artifact: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	byStage, ok := m.artifacts[runID]
	if !ok {
		byStage = make(map[string]*memArtifact)
		m.artifacts[runID] = byStage
	}
	m.seq++
	byStage[stage] = &memArtifact{content: jsonBytes, createdAt: time.Now(), seq: m.seq}
	return nil
}

// GetArtifact retrieves a stage's JSON artifact by run ID.
func (m *Memory) GetArtifact(_ context.Context, runID uuid.UUID, stage string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	artifact, ok := m.artifacts[runID][stage]
	if !ok {
		return nil, nil
	}
	out := make([]byte, len(artifact.content))
	copy(out, artifact.content)
	return out, nil
}

// ListArtifacts retrieves artifact summaries for a run in creation order.
func (m *Memory) ListArtifacts(_ context.Context, runID uuid.UUID) ([]ArtifactSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	byStage := m.artifacts[runID]
	stages := make([]string, 0, len(byStage))
	for stage := range byStage {
		stages = append(stages, stage)
	}
	sort.Slice(stages, func(i, j int) bool {
		return byStage[stages[i]].seq < byStage[stages[j]].seq
	})

	var summaries []ArtifactSummary
	for _, stage := range stages {
		artifact := byStage[stage]
		summaries = append(summaries, ArtifactSummary{
			Stage:     stage,
			Bytes:     len(artifact.content),
			CreatedAt: artifact.createdAt,
		})
	}
	return summaries, nil
}

// StartStage marks a stage as running, resetting any previous execution of it.
func (m *Memory) StartStage(_ context.Context, runID uuid.UUID, stage string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	byStage, ok := m.stages[runID]
	if !ok {
		byStage = make(map[string]*StageRecord)
		m.stages[runID] = byStage
	}
	byStage[stage] = &StageRecord{
		RunID:     runID,
		Stage:     stage,
		Status:    StageStatusRunning,
		StartedAt: time.Now(),
	}
	return nil
}

// FinishStage records a stage's outcome and duration.
func (m *Memory) FinishStage(_ context.Context, runID uuid.UUID, stage, status string, attempts int, errMessage string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.stages[runID][stage]
	if !ok {
		return fmt.Errorf("stage not started: %s", stage)
	}

	now := time.Now()
	duration := int(now.Sub(rec.StartedAt).Milliseconds())
	rec.Status = status
	rec.Attempts = attempts
	rec.ErrorMessage = nullIfEmpty(errMessage)
	rec.CompletedAt = &now
	rec.DurationMs = &duration
	return nil
}

// ListStages retrieves all stage records for a run in start order.
func (m *Memory) ListStages(_ context.Context, runID uuid.UUID) ([]StageRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var records []StageRecord
	for _, rec := range m.stages[runID] {
		records = append(records, *rec)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].StartedAt.Before(records[j].StartedAt)
	})
	return records, nil
}

// CreateUser creates a user account. Returns ErrDuplicateEmail when the email
// is already registered.
func (m *Memory) CreateUser(_ context.Context, email, name, passwordHash string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, taken := m.emails[email]; taken {
		return nil, ErrDuplicateEmail
	}

	now := time.Now()
	user := &User{
		ID:           uuid.New(),
		Email:        email,
		Name:         name,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	m.users[user.ID] = user
	m.emails[email] = user.ID

	out := *user
	return &out, nil
}

// GetUser retrieves a user by ID.
func (m *Memory) GetUser(_ context.Context, userID uuid.UUID) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	user, ok := m.users[userID]
	if !ok {
		return nil, nil
	}
	out := *user
	return &out, nil
}

// GetUserByEmail retrieves a user by email.
func (m *Memory) GetUserByEmail(_ context.Context, email string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.emails[email]
	if !ok {
		return nil, nil
	}
	out := *m.users[id]
	return &out, nil
}
