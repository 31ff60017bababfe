package db

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_RunLifecycle(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	run, err := m.CreateRun(ctx, RunInput{JobURL: "https://example.com/job", ResumeName: "resume.pdf"})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, run.ID)
	assert.Equal(t, StageIngest, run.Stage)
	assert.Equal(t, "https://example.com/job", run.JobURL)
	assert.False(t, run.Terminal())

	require.NoError(t, m.SetRunStage(ctx, run.ID, StageReconcile))

	got, err := m.GetRun(ctx, run.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, StageReconcile, got.Stage)
	assert.Nil(t, got.CompletedAt)

	require.NoError(t, m.CompleteRun(ctx, run.ID, StageDone, nil))

	got, err = m.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, StageDone, got.Stage)
	assert.True(t, got.Terminal())
	assert.NotNil(t, got.CompletedAt)
	assert.Nil(t, got.FailureStage)
}

func TestMemory_CompleteRunRecordsFailure(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	run, err := m.CreateRun(ctx, RunInput{})
	require.NoError(t, err)

	failure := &RunFailure{Stage: StageExtract, Kind: "extraction_failed", Message: "budget exhausted"}
	require.NoError(t, m.CompleteRun(ctx, run.ID, StageFailed, failure))

	got, err := m.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, StageFailed, got.Stage)
	require.NotNil(t, got.FailureStage)
	assert.Equal(t, StageExtract, *got.FailureStage)
	require.NotNil(t, got.FailureKind)
	assert.Equal(t, "extraction_failed", *got.FailureKind)
	require.NotNil(t, got.FailureMessage)
	assert.Equal(t, "budget exhausted", *got.FailureMessage)
}

func TestMemory_GetRunMissing(t *testing.T) {
	m := NewMemory()

	run, err := m.GetRun(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Nil(t, run)
}

func TestMemory_SetRunStageMissing(t *testing.T) {
	m := NewMemory()

	err := m.SetRunStage(context.Background(), uuid.New(), StageDone)
	assert.ErrorContains(t, err, "run not found")
}

func TestMemory_ListRunsFilters(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	userID := uuid.New()
	first, err := m.CreateRun(ctx, RunInput{UserID: &userID})
	require.NoError(t, err)
	second, err := m.CreateRun(ctx, RunInput{})
	require.NoError(t, err)
	require.NoError(t, m.SetRunStage(ctx, second.ID, StageSynthesize))

	all, err := m.ListRuns(ctx, RunFilters{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, second.ID, all[0].ID, "newest first")

	mine, err := m.ListRuns(ctx, RunFilters{UserID: userID})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, first.ID, mine[0].ID)

	synthesizing, err := m.ListRuns(ctx, RunFilters{Stage: StageSynthesize})
	require.NoError(t, err)
	require.Len(t, synthesizing, 1)
	assert.Equal(t, second.ID, synthesizing[0].ID)

	limited, err := m.ListRuns(ctx, RunFilters{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestMemory_ArtifactUpsert(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	run, err := m.CreateRun(ctx, RunInput{})
	require.NoError(t, err)

	missing, err := m.GetArtifact(ctx, run.ID, StageIngest)
	require.NoError(t, err)
	assert.Nil(t, missing)

	require.NoError(t, m.SaveArtifact(ctx, run.ID, StageIngest, map[string]string{"text": "v1"}))
	require.NoError(t, m.SaveArtifact(ctx, run.ID, StageExtract, map[string]string{"text": "other"}))
	require.NoError(t, m.SaveArtifact(ctx, run.ID, StageIngest, map[string]string{"text": "v2"}))

	content, err := m.GetArtifact(ctx, run.ID, StageIngest)
	require.NoError(t, err)
	assert.JSONEq(t, `{"text": "v2"}`, string(content))

	summaries, err := m.ListArtifacts(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	// The re-saved ingest artifact moves behind the untouched extract one.
	assert.Equal(t, StageExtract, summaries[0].Stage)
	assert.Equal(t, StageIngest, summaries[1].Stage)
	assert.Positive(t, summaries[0].Bytes)
}

func TestMemory_StageRecords(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	run, err := m.CreateRun(ctx, RunInput{})
	require.NoError(t, err)

	require.NoError(t, m.StartStage(ctx, run.ID, StageIngest))
	require.NoError(t, m.FinishStage(ctx, run.ID, StageIngest, StageStatusCompleted, 1, ""))
	require.NoError(t, m.StartStage(ctx, run.ID, StageExtract))
	require.NoError(t, m.FinishStage(ctx, run.ID, StageExtract, StageStatusFailed, 3, "budget exhausted"))

	records, err := m.ListStages(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, records, 2)

	ingest := records[0]
	assert.Equal(t, StageIngest, ingest.Stage)
	assert.Equal(t, StageStatusCompleted, ingest.Status)
	assert.Equal(t, 1, ingest.Attempts)
	assert.Nil(t, ingest.ErrorMessage)
	require.NotNil(t, ingest.DurationMs)
	assert.GreaterOrEqual(t, *ingest.DurationMs, 0)

	extract := records[1]
	assert.Equal(t, StageStatusFailed, extract.Status)
	assert.Equal(t, 3, extract.Attempts)
	require.NotNil(t, extract.ErrorMessage)
	assert.Equal(t, "budget exhausted", *extract.ErrorMessage)
}

func TestMemory_FinishStageUnstarted(t *testing.T) {
	m := NewMemory()

	err := m.FinishStage(context.Background(), uuid.New(), StageIngest, StageStatusCompleted, 1, "")
	assert.ErrorContains(t, err, "stage not started")
}

func TestMemory_StartStageResetsPreviousRecord(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	run, err := m.CreateRun(ctx, RunInput{})
	require.NoError(t, err)

	require.NoError(t, m.StartStage(ctx, run.ID, StageIngest))
	require.NoError(t, m.FinishStage(ctx, run.ID, StageIngest, StageStatusFailed, 2, "boom"))
	require.NoError(t, m.StartStage(ctx, run.ID, StageIngest))

	records, err := m.ListStages(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, StageStatusRunning, records[0].Status)
	assert.Zero(t, records[0].Attempts)
	assert.Nil(t, records[0].ErrorMessage)
	assert.Nil(t, records[0].CompletedAt)
}

func TestMemory_DeleteRunCascades(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	run, err := m.CreateRun(ctx, RunInput{})
	require.NoError(t, err)
	require.NoError(t, m.SaveArtifact(ctx, run.ID, StageIngest, map[string]string{"text": "x"}))
	require.NoError(t, m.StartStage(ctx, run.ID, StageIngest))

	require.NoError(t, m.DeleteRun(ctx, run.ID))

	got, err := m.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	content, err := m.GetArtifact(ctx, run.ID, StageIngest)
	require.NoError(t, err)
	assert.Nil(t, content)

	assert.ErrorContains(t, m.DeleteRun(ctx, run.ID), "run not found")
}

func TestMemory_Users(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	user, err := m.CreateUser(ctx, "dev@example.com", "Dev", "hash")
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, user.ID)

	_, err = m.CreateUser(ctx, "dev@example.com", "Other", "hash2")
	assert.ErrorIs(t, err, ErrDuplicateEmail)

	byEmail, err := m.GetUserByEmail(ctx, "dev@example.com")
	require.NoError(t, err)
	require.NotNil(t, byEmail)
	assert.Equal(t, user.ID, byEmail.ID)
	assert.Equal(t, "hash", byEmail.PasswordHash)

	byID, err := m.GetUser(ctx, user.ID)
	require.NoError(t, err)
	require.NotNil(t, byID)
	assert.Equal(t, "Dev", byID.Name)

	missing, err := m.GetUserByEmail(ctx, "nobody@example.com")
	require.NoError(t, err)
	assert.Nil(t, missing)
}
