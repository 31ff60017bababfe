package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/jonathan/resume-tailor/internal/ingestion"
	"github.com/jonathan/resume-tailor/internal/types"
)

// Typed artifact accessors. Each returns (nil, nil) when the stage has not
// persisted its artifact yet, matching Store.GetArtifact.

// LoadDocument loads the ingested document for a run.
func LoadDocument(ctx context.Context, s Store, runID uuid.UUID) (*ingestion.Document, error) {
	content, err := s.GetArtifact(ctx, runID, StageIngest)
	if err != nil || content == nil {
		return nil, err
	}

	var doc ingestion.Document
	if err := json.Unmarshal(content, &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal document: %w", err)
	}
	return &doc, nil
}

// LoadRequirementSet loads the extracted job requirements for a run.
func LoadRequirementSet(ctx context.Context, s Store, runID uuid.UUID) (*types.RequirementSet, error) {
	content, err := s.GetArtifact(ctx, runID, StageExtract)
	if err != nil || content == nil {
		return nil, err
	}

	var set types.RequirementSet
	if err := json.Unmarshal(content, &set); err != nil {
		return nil, fmt.Errorf("failed to unmarshal requirement set: %w", err)
	}
	return &set, nil
}

// LoadStatements loads the analyzed resume statements for a run.
func LoadStatements(ctx context.Context, s Store, runID uuid.UUID) ([]types.ResumeStatement, error) {
	content, err := s.GetArtifact(ctx, runID, StageAnalyze)
	if err != nil || content == nil {
		return nil, err
	}

	var statements []types.ResumeStatement
	if err := json.Unmarshal(content, &statements); err != nil {
		return nil, fmt.Errorf("failed to unmarshal statements: %w", err)
	}
	return statements, nil
}

// LoadRelevanceSet loads the reconciled relevance links for a run.
func LoadRelevanceSet(ctx context.Context, s Store, runID uuid.UUID) (*types.RelevanceSet, error) {
	content, err := s.GetArtifact(ctx, runID, StageReconcile)
	if err != nil || content == nil {
		return nil, err
	}

	var set types.RelevanceSet
	if err := json.Unmarshal(content, &set); err != nil {
		return nil, fmt.Errorf("failed to unmarshal relevance set: %w", err)
	}
	return &set, nil
}

// LoadTailoredResume loads the final tailored resume for a run.
func LoadTailoredResume(ctx context.Context, s Store, runID uuid.UUID) (*types.TailoredResume, error) {
	content, err := s.GetArtifact(ctx, runID, StageSynthesize)
	if err != nil || content == nil {
		return nil, err
	}

	var resume types.TailoredResume
	if err := json.Unmarshal(content, &resume); err != nil {
		return nil, fmt.Errorf("failed to unmarshal tailored resume: %w", err)
	}
	return &resume, nil
}
