package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jonathan/resume-tailor/internal/db"
	"github.com/jonathan/resume-tailor/internal/ingestion"
	"github.com/jonathan/resume-tailor/internal/llm"
	"github.com/jonathan/resume-tailor/internal/pipeline"
)

const resumeFixture = `SUMMARY
Platform engineer with nine years in infrastructure.

EXPERIENCE
- Led migration of services to AWS, cutting costs 40%.
- Maintained Jenkins pipelines for 30 services.

SKILLS
- Terraform, Ansible, Bash.
`

const jobFixture = `We are hiring a platform engineer.

Requirements:
- Cloud migration experience.
- Kubernetes administration.
`

// fakeLLM routes prompts by stage-distinctive template phrases and answers
// with a fixed well-behaved script.
type fakeLLM struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeLLM) GenerateContent(ctx context.Context, prompt string, tier llm.ModelTier) (string, error) {
	return f.GenerateJSON(ctx, prompt, tier)
}

func (f *fakeLLM) GenerateJSON(_ context.Context, prompt string, _ llm.ModelTier) (string, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	switch {
	case strings.Contains(prompt, "expert technical recruiter"):
		return `{"requirements": [
			{"text": "Cloud migration experience", "category": "experience", "weight": 0.9, "required": true},
			{"text": "Kubernetes administration", "category": "skill", "weight": 0.8, "required": true}
		]}`, nil
	case strings.Contains(prompt, "scoring how well each resume statement"):
		if strings.Contains(prompt, "Cloud migration experience") {
			return `{"scores": [{"statement_id": "stmt_002", "score": 0.9, "rationale": "direct evidence"}]}`, nil
		}
		return `{"scores": [{"statement_id": "stmt_004", "score": 0.1, "rationale": "tooling only"}]}`, nil
	case strings.Contains(prompt, "rewording resume statements"):
		return `{"rewrites": []}`, nil
	}
	return "", fmt.Errorf("unexpected prompt: %.80s", prompt)
}

func (f *fakeLLM) GetModel(llm.ModelTier) string { return "fake-model" }

func (f *fakeLLM) Close() error { return nil }

func newTestServer(t *testing.T) (*Server, db.Store) {
	t.Helper()
	t.Setenv("JWT_SECRET", "")
	t.Setenv("RATE_LIMIT_ENABLED", "false")

	store := db.NewMemory()
	orch := pipeline.New(store, &fakeLLM{}, zap.NewNop(), pipeline.DefaultConfig())
	srv, err := New(Config{Addr: ":0"}, store, orch, zap.NewNop())
	require.NoError(t, err)
	return srv, store
}

func submitBody(t *testing.T) []byte {
	t.Helper()
	body, err := json.Marshal(createRunRequest{
		JobDescription: jobFixture,
		ResumeDocument: base64.StdEncoding.EncodeToString([]byte(resumeFixture)),
		Format:         ingestion.FormatTXT,
		ResumeName:     "resume.txt",
	})
	require.NoError(t, err)
	return body
}

func doRequest(srv *Server, method, path string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(srv, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestCreateRun_CompletesInBackground(t *testing.T) {
	srv, store := newTestServer(t)

	rec := doRequest(srv, http.MethodPost, "/runs", submitBody(t))
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	var accepted map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &accepted))
	runID, err := uuid.Parse(accepted["run_id"])
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		run, err := store.GetRun(context.Background(), runID)
		return err == nil && run != nil && run.Terminal()
	}, 5*time.Second, 20*time.Millisecond, "run never reached a terminal stage")

	rec = doRequest(srv, http.MethodGet, "/runs/"+runID.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var status struct {
		Stage  string                `json:"stage"`
		Stages []pipeline.StageState `json:"stages"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, db.StageDone, status.Stage)
	require.Len(t, status.Stages, 5)
	for _, st := range status.Stages {
		assert.Equal(t, db.StageStatusCompleted, st.Status, st.Stage)
	}

	rec = doRequest(srv, http.MethodGet, "/runs/"+runID.String()+"/artifact", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"sections"`)
	assert.Contains(t, rec.Body.String(), `"provenance"`)

	rec = doRequest(srv, http.MethodGet, "/runs/"+runID.String()+"/artifacts/reconcile", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"links"`)
}

func TestCreateRun_InvalidBase64(t *testing.T) {
	srv, _ := newTestServer(t)

	body, err := json.Marshal(createRunRequest{
		JobDescription: jobFixture,
		ResumeDocument: "not base64!!!",
		Format:         ingestion.FormatTXT,
	})
	require.NoError(t, err)

	rec := doRequest(srv, http.MethodPost, "/runs", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "base64")
}

func TestCreateRun_MissingJob(t *testing.T) {
	srv, store := newTestServer(t)

	body, err := json.Marshal(createRunRequest{
		ResumeDocument: base64.StdEncoding.EncodeToString([]byte(resumeFixture)),
		Format:         ingestion.FormatTXT,
	})
	require.NoError(t, err)

	rec := doRequest(srv, http.MethodPost, "/runs", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "job description")

	runs, err := store.ListRuns(context.Background(), db.RunFilters{})
	require.NoError(t, err)
	assert.Empty(t, runs, "rejected submissions must not create runs")
}

func TestGetRun_NotFound(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(srv, http.MethodGet, "/runs/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetRun_BadID(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(srv, http.MethodGet, "/runs/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetResult_ConflictWhileNotDone(t *testing.T) {
	srv, store := newTestServer(t)

	run, err := store.CreateRun(context.Background(), db.RunInput{})
	require.NoError(t, err)

	rec := doRequest(srv, http.MethodGet, "/runs/"+run.ID.String()+"/artifact", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "not complete")
}

func TestStageArtifact_UnknownStage(t *testing.T) {
	srv, store := newTestServer(t)

	run, err := store.CreateRun(context.Background(), db.RunInput{})
	require.NoError(t, err)

	rec := doRequest(srv, http.MethodGet, "/runs/"+run.ID.String()+"/artifacts/render", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "unknown stage")
}

func TestStageArtifact_Missing(t *testing.T) {
	srv, store := newTestServer(t)

	run, err := store.CreateRun(context.Background(), db.RunInput{})
	require.NoError(t, err)

	rec := doRequest(srv, http.MethodGet, "/runs/"+run.ID.String()+"/artifacts/ingest", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCancelRun_NotFound(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(srv, http.MethodPost, "/runs/"+uuid.NewString()+"/cancel", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCancelRun_NotActive(t *testing.T) {
	srv, store := newTestServer(t)

	run, err := store.CreateRun(context.Background(), db.RunInput{})
	require.NoError(t, err)

	rec := doRequest(srv, http.MethodPost, "/runs/"+run.ID.String()+"/cancel", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "not active")
}

func TestDeleteRun(t *testing.T) {
	srv, store := newTestServer(t)

	run, err := store.CreateRun(context.Background(), db.RunInput{})
	require.NoError(t, err)

	rec := doRequest(srv, http.MethodDelete, "/runs/"+run.ID.String(), nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(srv, http.MethodGet, "/runs/"+run.ID.String(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(srv, http.MethodDelete, "/runs/"+run.ID.String(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListRuns_StageFilter(t *testing.T) {
	srv, store := newTestServer(t)
	ctx := context.Background()

	first, err := store.CreateRun(ctx, db.RunInput{})
	require.NoError(t, err)
	require.NoError(t, store.CompleteRun(ctx, first.ID, db.StageDone, nil))
	_, err = store.CreateRun(ctx, db.RunInput{})
	require.NoError(t, err)

	rec := doRequest(srv, http.MethodGet, "/runs?stage=done", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var listing struct {
		Runs  []db.Run `json:"runs"`
		Count int      `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listing))
	require.Equal(t, 1, listing.Count)
	assert.Equal(t, first.ID, listing.Runs[0].ID)
}

func TestListRuns_InvalidLimit(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(srv, http.MethodGet, "/runs?limit=zero", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestResumeRun_NotFound(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(srv, http.MethodPost, "/runs/"+uuid.NewString()+"/resume", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStreamRun_EmitsEvents(t *testing.T) {
	srv, _ := newTestServer(t)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/runs/stream", "application/json", bytes.NewReader(submitBody(t)))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	body := string(raw)

	assert.Contains(t, body, "event: run")
	assert.Contains(t, body, "event: stage")
	assert.Contains(t, body, "event: artifact")
	assert.Contains(t, body, "event: complete")
	assert.Contains(t, body, `"stage":"done"`)
	assert.NotContains(t, body, "event: error")
}

func TestAuth_ProtectedMode(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret-key")
	t.Setenv("RATE_LIMIT_ENABLED", "false")

	store := db.NewMemory()
	orch := pipeline.New(store, &fakeLLM{}, zap.NewNop(), pipeline.DefaultConfig())
	srv, err := New(Config{Addr: ":0"}, store, orch, zap.NewNop())
	require.NoError(t, err)

	// Run endpoints demand a token.
	rec := doRequest(srv, http.MethodPost, "/runs", submitBody(t))
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	register, err := json.Marshal(map[string]string{
		"email":    "ada@example.com",
		"name":     "Ada",
		"password": "correct horse battery",
	})
	require.NoError(t, err)
	rec = doRequest(srv, http.MethodPost, "/auth/register", register)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var auth authResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &auth))
	require.NotEmpty(t, auth.Token)
	require.NotNil(t, auth.User)

	// Reusing the email conflicts.
	rec = doRequest(srv, http.MethodPost, "/auth/register", register)
	assert.Equal(t, http.StatusConflict, rec.Code)

	login, err := json.Marshal(map[string]string{
		"email":    "ada@example.com",
		"password": "correct horse battery",
	})
	require.NoError(t, err)
	rec = doRequest(srv, http.MethodPost, "/auth/login", login)
	assert.Equal(t, http.StatusOK, rec.Code)

	badLogin, err := json.Marshal(map[string]string{
		"email":    "ada@example.com",
		"password": "wrong password",
	})
	require.NoError(t, err)
	rec = doRequest(srv, http.MethodPost, "/auth/login", badLogin)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// A bearer token unlocks submission, and the run is owned by the user.
	req := httptest.NewRequest(http.MethodPost, "/runs", bytes.NewReader(submitBody(t)))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+auth.Token)
	recorder := httptest.NewRecorder()
	srv.Handler().ServeHTTP(recorder, req)
	require.Equal(t, http.StatusAccepted, recorder.Code, recorder.Body.String())

	var accepted map[string]string
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &accepted))
	runID, err := uuid.Parse(accepted["run_id"])
	require.NoError(t, err)

	run, err := store.GetRun(context.Background(), runID)
	require.NoError(t, err)
	require.NotNil(t, run)
	require.NotNil(t, run.UserID)
	assert.Equal(t, auth.User.ID, *run.UserID)
}

func TestAuth_RegisterValidation(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret-key")
	t.Setenv("RATE_LIMIT_ENABLED", "false")

	store := db.NewMemory()
	orch := pipeline.New(store, &fakeLLM{}, zap.NewNop(), pipeline.DefaultConfig())
	srv, err := New(Config{Addr: ":0"}, store, orch, zap.NewNop())
	require.NoError(t, err)

	body, err := json.Marshal(map[string]string{
		"email":    "not-an-email",
		"name":     "Ada",
		"password": "long enough password",
	})
	require.NoError(t, err)
	rec := doRequest(srv, http.MethodPost, "/auth/register", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	body, err = json.Marshal(map[string]string{
		"email":    "ada@example.com",
		"name":     "Ada",
		"password": "short",
	})
	require.NoError(t, err)
	rec = doRequest(srv, http.MethodPost, "/auth/register", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRateLimit_SubmitEndpoint(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("RATE_LIMIT_ENABLED", "true")
	t.Setenv("RATE_LIMIT_PER_MINUTE", "1")
	t.Setenv("RATE_LIMIT_BURST", "1")

	store := db.NewMemory()
	orch := pipeline.New(store, &fakeLLM{}, zap.NewNop(), pipeline.DefaultConfig())
	srv, err := New(Config{Addr: ":0"}, store, orch, zap.NewNop())
	require.NoError(t, err)

	rec := doRequest(srv, http.MethodPost, "/runs", submitBody(t))
	require.Equal(t, http.StatusAccepted, rec.Code)

	rec = doRequest(srv, http.MethodPost, "/runs", submitBody(t))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	// Reads stay unlimited.
	rec = doRequest(srv, http.MethodGet, "/runs", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
