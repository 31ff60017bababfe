package pipeline

import (
	"context"

	"github.com/google/uuid"

	"github.com/jonathan/resume-tailor/internal/db"
)

// StageDefinition names a pipeline stage and the stages it depends on.
type StageDefinition struct {
	Name         string
	Dependencies []string
}

// Registry holds the stage dependency graph. Transitions are one
// directional: a stage only ever consumes artifacts of earlier stages.
var Registry = map[string]StageDefinition{
	db.StageIngest: {
		Name:         db.StageIngest,
		Dependencies: []string{},
	},
	db.StageExtract: {
		Name:         db.StageExtract,
		Dependencies: []string{},
	},
	db.StageAnalyze: {
		Name:         db.StageAnalyze,
		Dependencies: []string{db.StageIngest},
	},
	db.StageReconcile: {
		Name:         db.StageReconcile,
		Dependencies: []string{db.StageExtract, db.StageAnalyze},
	},
	db.StageSynthesize: {
		Name:         db.StageSynthesize,
		Dependencies: []string{db.StageReconcile},
	},
}

// present reports whether the stage's output is loaded.
func (a *runArtifacts) present(stage string) bool {
	switch stage {
	case db.StageIngest:
		return a.doc != nil
	case db.StageExtract:
		return a.requirements != nil
	case db.StageAnalyze:
		return a.statements != nil
	case db.StageReconcile:
		return a.relevance != nil
	case db.StageSynthesize:
		return a.resume != nil
	}
	return false
}

func (a *runArtifacts) clear(stage string) {
	switch stage {
	case db.StageIngest:
		a.doc = nil
	case db.StageExtract:
		a.requirements = nil
	case db.StageAnalyze:
		a.statements = nil
	case db.StageReconcile:
		a.relevance = nil
	case db.StageSynthesize:
		a.resume = nil
	}
}

// pruneStale drops loaded artifacts whose dependencies are missing, so
// execute rebuilds them in order instead of consuming outputs detached from
// their inputs. Walking PipelineStages in order cascades the drops.
func pruneStale(art *runArtifacts) []string {
	var dropped []string
	for _, stage := range db.PipelineStages() {
		if !art.present(stage) {
			continue
		}
		for _, dep := range Registry[stage].Dependencies {
			if !art.present(dep) {
				art.clear(stage)
				dropped = append(dropped, stage)
				break
			}
		}
	}
	return dropped
}

// StageState is one stage's execution state for status reporting.
type StageState struct {
	Stage      string `json:"stage"`
	Status     string `json:"status"`
	Attempts   int    `json:"attempts,omitempty"`
	Error      string `json:"error,omitempty"`
	DurationMs *int   `json:"duration_ms,omitempty"`
}

// Stage states for stages with no execution record yet.
const (
	StagePending = "pending"
	StageBlocked = "blocked"
)

// StageStatuses reports the state of every pipeline stage for a run, in
// execution order. Stages without a record are pending, or blocked when a
// dependency has not completed.
func (o *Orchestrator) StageStatuses(ctx context.Context, runID uuid.UUID) ([]StageState, error) {
	records, err := o.store.ListStages(ctx, runID)
	if err != nil {
		return nil, err
	}
	byStage := make(map[string]db.StageRecord, len(records))
	for _, rec := range records {
		byStage[rec.Stage] = rec
	}

	out := make([]StageState, 0, len(Registry))
	for _, stage := range db.PipelineStages() {
		rec, ok := byStage[stage]
		if !ok {
			state := StageState{Stage: stage, Status: StagePending}
			for _, dep := range Registry[stage].Dependencies {
				depRec, ran := byStage[dep]
				if !ran || depRec.Status != db.StageStatusCompleted {
					state.Status = StageBlocked
					break
				}
			}
			out = append(out, state)
			continue
		}
		state := StageState{
			Stage:      stage,
			Status:     rec.Status,
			Attempts:   rec.Attempts,
			DurationMs: rec.DurationMs,
		}
		if rec.ErrorMessage != nil {
			state.Error = *rec.ErrorMessage
		}
		out = append(out, state)
	}
	return out, nil
}
