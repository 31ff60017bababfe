package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jonathan/resume-tailor/internal/db"
	"github.com/jonathan/resume-tailor/internal/ingestion"
	"github.com/jonathan/resume-tailor/internal/pipeline"
)

// createRunRequest is the submission payload. The resume document travels as
// base64 so PDF bytes survive the JSON envelope.
type createRunRequest struct {
	JobDescription string `json:"job_description,omitempty"`
	JobURL         string `json:"job_url,omitempty"`
	ResumeDocument string `json:"resume_document"`
	Format         string `json:"format,omitempty"`
	ResumeName     string `json:"resume_name,omitempty"`
}

// parseRunRequest decodes and converts a submission payload.
func parseRunRequest(r *http.Request) (*pipeline.Request, error) {
	var req createRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, fmt.Errorf("invalid request body: %w", err)
	}

	data, err := base64.StdEncoding.DecodeString(req.ResumeDocument)
	if err != nil {
		return nil, fmt.Errorf("resume_document is not valid base64: %w", err)
	}

	format := req.Format
	if format == "" {
		format = ingestion.FormatPDF
	}

	preq := &pipeline.Request{
		JobText:      req.JobDescription,
		JobURL:       req.JobURL,
		ResumeData:   data,
		ResumeFormat: format,
		ResumeName:   req.ResumeName,
	}
	if userID, ok := userIDFrom(r.Context()); ok {
		preq.UserID = &userID
	}
	return preq, nil
}

// handleCreateRun accepts a submission and executes it in the background.
func (s *Server) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	preq, err := parseRunRequest(r)
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	run, err := s.orch.Submit(r.Context(), *preq)
	if err != nil {
		if errors.Is(err, pipeline.ErrInvalidRequest) {
			s.errorResponse(w, http.StatusBadRequest, err.Error())
			return
		}
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	go s.runDetached(run.ID)

	s.jsonResponse(w, http.StatusAccepted, map[string]string{
		"run_id": run.ID.String(),
		"stage":  run.Stage,
	})
}

// runDetached executes a submitted run outside any request context.
func (s *Server) runDetached(runID uuid.UUID) {
	if _, err := s.orch.ResumeRun(context.Background(), runID, nil); err != nil {
		s.logger.Error("background run failed",
			zap.String("run_id", runID.String()),
			zap.Error(err))
	}
}

// handleStreamRun accepts a submission and streams stage transitions as
// Server-Sent Events until the run reaches a terminal state.
func (s *Server) handleStreamRun(w http.ResponseWriter, r *http.Request) {
	preq, err := parseRunRequest(r)
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	run, err := s.orch.Submit(r.Context(), *preq)
	if err != nil {
		if errors.Is(err, pipeline.ErrInvalidRequest) {
			s.errorResponse(w, http.StatusBadRequest, err.Error())
			return
		}
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	sse, err := NewSSEWriter(w)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}
	sse.WriteEvent("run", map[string]string{"run_id": run.ID.String()}) //nolint:errcheck

	result, err := s.orch.ResumeRun(r.Context(), run.ID, func(e pipeline.ProgressEvent) {
		sse.WriteEvent("stage", e) //nolint:errcheck
	})
	if err != nil {
		sse.WriteError(err.Error())
		var stageErr *pipeline.StageError
		if errors.As(err, &stageErr) && stageErr.Kind == pipeline.KindCancelled {
			sse.WriteComplete(run.ID.String(), db.StageCancelled)
		} else {
			sse.WriteComplete(run.ID.String(), db.StageFailed)
		}
		return
	}

	sse.WriteEvent("artifact", result.Resume) //nolint:errcheck
	sse.WriteComplete(run.ID.String(), db.StageDone)
}

// runResponse is a run record with its per-stage execution states.
type runResponse struct {
	db.Run
	Stages []pipeline.StageState `json:"stages,omitempty"`
}

// handleGetRun returns the run record and its stage statuses.
func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	runID, ok := s.pathRunID(w, r)
	if !ok {
		return
	}

	run, err := s.store.GetRun(r.Context(), runID)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}
	if run == nil {
		s.errorResponse(w, http.StatusNotFound, "run not found")
		return
	}

	stages, err := s.orch.StageStatuses(r.Context(), runID)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.jsonResponse(w, http.StatusOK, runResponse{Run: *run, Stages: stages})
}

// handleGetResult returns the tailored resume once the run is done.
func (s *Server) handleGetResult(w http.ResponseWriter, r *http.Request) {
	runID, ok := s.pathRunID(w, r)
	if !ok {
		return
	}

	run, err := s.store.GetRun(r.Context(), runID)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}
	if run == nil {
		s.errorResponse(w, http.StatusNotFound, "run not found")
		return
	}
	if run.Stage != db.StageDone {
		s.jsonResponse(w, http.StatusConflict, map[string]string{
			"error": "run is not complete",
			"stage": run.Stage,
		})
		return
	}

	s.writeArtifact(w, r, runID, db.StageSynthesize)
}

// handleGetStageArtifact returns any persisted stage artifact.
func (s *Server) handleGetStageArtifact(w http.ResponseWriter, r *http.Request) {
	runID, ok := s.pathRunID(w, r)
	if !ok {
		return
	}

	stage := r.PathValue("stage")
	known := false
	for _, name := range db.PipelineStages() {
		if name == stage {
			known = true
			break
		}
	}
	if !known {
		s.errorResponse(w, http.StatusBadRequest, fmt.Sprintf("unknown stage: %s", stage))
		return
	}

	s.writeArtifact(w, r, runID, stage)
}

// writeArtifact streams raw persisted artifact JSON.
func (s *Server) writeArtifact(w http.ResponseWriter, r *http.Request, runID uuid.UUID, stage string) {
	content, err := s.store.GetArtifact(r.Context(), runID, stage)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}
	if content == nil {
		s.errorResponse(w, http.StatusNotFound, "artifact not found")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(content); err != nil {
		s.logger.Warn("failed to write artifact", zap.Error(err))
	}
}

// handleCancelRun cancels an active run.
func (s *Server) handleCancelRun(w http.ResponseWriter, r *http.Request) {
	runID, ok := s.pathRunID(w, r)
	if !ok {
		return
	}

	if s.orch.Cancel(runID) {
		s.jsonResponse(w, http.StatusAccepted, map[string]string{
			"run_id": runID.String(),
			"status": "cancelling",
		})
		return
	}

	run, err := s.store.GetRun(r.Context(), runID)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}
	if run == nil {
		s.errorResponse(w, http.StatusNotFound, "run not found")
		return
	}
	s.errorResponse(w, http.StatusConflict, "run is not active")
}

// handleResumeRun re-executes the missing stages of a failed or interrupted
// run in the background.
func (s *Server) handleResumeRun(w http.ResponseWriter, r *http.Request) {
	runID, ok := s.pathRunID(w, r)
	if !ok {
		return
	}

	run, err := s.store.GetRun(r.Context(), runID)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}
	if run == nil {
		s.errorResponse(w, http.StatusNotFound, "run not found")
		return
	}
	if s.orch.IsActive(runID) {
		s.errorResponse(w, http.StatusConflict, "run is already executing")
		return
	}

	go s.runDetached(runID)

	s.jsonResponse(w, http.StatusAccepted, map[string]string{
		"run_id": runID.String(),
		"status": "resuming",
	})
}

// handleDeleteRun removes a run and all of its artifacts.
func (s *Server) handleDeleteRun(w http.ResponseWriter, r *http.Request) {
	runID, ok := s.pathRunID(w, r)
	if !ok {
		return
	}

	if s.orch.IsActive(runID) {
		s.errorResponse(w, http.StatusConflict, "run is active; cancel it first")
		return
	}

	run, err := s.store.GetRun(r.Context(), runID)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}
	if run == nil {
		s.errorResponse(w, http.StatusNotFound, "run not found")
		return
	}

	if err := s.store.DeleteRun(r.Context(), runID); err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// handleListRuns returns recent runs, optionally filtered by stage. In
// protected mode results are scoped to the authenticated user.
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	filters := db.RunFilters{Limit: 50}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			s.errorResponse(w, http.StatusBadRequest, "invalid limit")
			return
		}
		filters.Limit = limit
	}
	filters.Stage = r.URL.Query().Get("stage")
	if userID, ok := userIDFrom(r.Context()); ok {
		filters.UserID = userID
	}

	runs, err := s.store.ListRuns(r.Context(), filters)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{"runs": runs, "count": len(runs)})
}

// pathRunID parses the {id} path segment, writing a 400 on failure.
func (s *Server) pathRunID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	runID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid run id")
		return uuid.Nil, false
	}
	return runID, true
}
