package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/resume-tailor/internal/db"
	"github.com/jonathan/resume-tailor/internal/ingestion"
	"github.com/jonathan/resume-tailor/internal/types"
)

func TestRegistry_MatchesPipelineStageOrder(t *testing.T) {
	stages := db.PipelineStages()
	assert.Len(t, Registry, len(stages))

	seen := make(map[string]bool, len(stages))
	for _, stage := range stages {
		def, ok := Registry[stage]
		require.True(t, ok, "stage %s missing from registry", stage)
		assert.Equal(t, stage, def.Name)
		for _, dep := range def.Dependencies {
			assert.True(t, seen[dep], "dependency %s of %s must come earlier in stage order", dep, stage)
		}
		seen[stage] = true
	}
}

func TestPruneStale_DropsDetachedArtifacts(t *testing.T) {
	art := &runArtifacts{
		relevance: &types.RelevanceSet{Threshold: 0.35},
		resume:    &types.TailoredResume{},
	}

	dropped := pruneStale(art)

	assert.Equal(t, []string{db.StageReconcile, db.StageSynthesize}, dropped)
	assert.Nil(t, art.relevance)
	assert.Nil(t, art.resume)
}

func TestPruneStale_MissingDocumentCascades(t *testing.T) {
	art := &runArtifacts{
		requirements: &types.RequirementSet{Requirements: []types.JobRequirement{{ID: "req_001"}}},
		statements:   []types.ResumeStatement{{ID: "stmt_001"}},
		relevance:    &types.RelevanceSet{},
		resume:       &types.TailoredResume{},
	}

	dropped := pruneStale(art)

	assert.Equal(t, []string{db.StageAnalyze, db.StageReconcile, db.StageSynthesize}, dropped)
	assert.NotNil(t, art.requirements)
	assert.Nil(t, art.statements)
}

func TestPruneStale_ConsistentArtifactsUntouched(t *testing.T) {
	art := &runArtifacts{
		doc:          &ingestion.Document{Text: "EXPERIENCE\n- Built things."},
		requirements: &types.RequirementSet{},
		statements:   []types.ResumeStatement{},
	}

	assert.Empty(t, pruneStale(art))
	assert.NotNil(t, art.doc)
	assert.NotNil(t, art.statements)
}

func TestStageStatuses(t *testing.T) {
	ctx := context.Background()
	store := db.NewMemory()
	o := New(store, &fakeClient{respond: happyResponder}, nil, DefaultConfig())

	run, err := store.CreateRun(ctx, db.RunInput{})
	require.NoError(t, err)
	require.NoError(t, store.StartStage(ctx, run.ID, db.StageIngest))
	require.NoError(t, store.FinishStage(ctx, run.ID, db.StageIngest, db.StageStatusCompleted, 1, ""))
	require.NoError(t, store.StartStage(ctx, run.ID, db.StageExtract))

	states, err := o.StageStatuses(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, states, 5)

	byStage := make(map[string]StageState, len(states))
	for _, s := range states {
		byStage[s.Stage] = s
	}
	assert.Equal(t, db.StageStatusCompleted, byStage[db.StageIngest].Status)
	assert.Equal(t, db.StageStatusRunning, byStage[db.StageExtract].Status)
	assert.Equal(t, StagePending, byStage[db.StageAnalyze].Status)
	assert.Equal(t, StageBlocked, byStage[db.StageReconcile].Status)
	assert.Equal(t, StageBlocked, byStage[db.StageSynthesize].Status)
}

func TestStageStatuses_FailedStageCarriesError(t *testing.T) {
	ctx := context.Background()
	store := db.NewMemory()
	o := New(store, &fakeClient{respond: happyResponder}, nil, DefaultConfig())

	run, err := store.CreateRun(ctx, db.RunInput{})
	require.NoError(t, err)
	require.NoError(t, store.StartStage(ctx, run.ID, db.StageExtract))
	require.NoError(t, store.FinishStage(ctx, run.ID, db.StageExtract, db.StageStatusFailed, 1, "budget exhausted"))

	states, err := o.StageStatuses(ctx, run.ID)
	require.NoError(t, err)

	for _, s := range states {
		if s.Stage == db.StageExtract {
			assert.Equal(t, db.StageStatusFailed, s.Status)
			assert.Equal(t, "budget exhausted", s.Error)
			return
		}
	}
	t.Fatal("extract stage missing from statuses")
}
