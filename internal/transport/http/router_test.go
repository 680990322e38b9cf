// SPDX-License-Identifier: Apache-2.0

package httptransport

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/mouhalis/voiceval/internal/compare"
	"github.com/mouhalis/voiceval/internal/domain"
	"github.com/mouhalis/voiceval/internal/execution"
	"github.com/mouhalis/voiceval/internal/prompt"
	"github.com/mouhalis/voiceval/internal/repository"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type mockExecutor struct {
	startErr     error
	stepErr      error
	status       domain.ExecutionStatus
	logs         []domain.LogEntry
	report       execution.EnqueueReport
	state        execution.State
	removeErr    error
	reordered    []domain.QueuedScenario
	comparison   compare.ScenarioComparison
	compareErr   error
	models       []string
	startedID    uuid.UUID
	startedStep  uuid.UUID
	cancelledID  uuid.UUID
	enqueuedIDs  []uuid.UUID
	logsLimit    int
	batchCalled  bool
	removeCalled bool
}

func (m *mockExecutor) StartExecution(_ context.Context, scenarioID uuid.UUID) error {
	m.startedID = scenarioID
	return m.startErr
}

func (m *mockExecutor) StartStep(_ context.Context, scenarioID, stepID uuid.UUID) error {
	m.startedID = scenarioID
	m.startedStep = stepID
	return m.stepErr
}

func (m *mockExecutor) Status(uuid.UUID) domain.ExecutionStatus { return m.status }

func (m *mockExecutor) Cancel(scenarioID uuid.UUID) { m.cancelledID = scenarioID }

func (m *mockExecutor) Logs(_ uuid.UUID, limit int) []domain.LogEntry {
	m.logsLimit = limit
	return m.logs
}

func (m *mockExecutor) EnqueueBatch(_ context.Context, scenarioIDs []uuid.UUID) execution.EnqueueReport {
	m.enqueuedIDs = scenarioIDs
	return m.report
}

func (m *mockExecutor) QueueState() execution.State { return m.state }

func (m *mockExecutor) RemoveFromQueue(uuid.UUID) error {
	m.removeCalled = true
	return m.removeErr
}

func (m *mockExecutor) ReorderQueue([]uuid.UUID) []domain.QueuedScenario { return m.reordered }

func (m *mockExecutor) CancelBatch() (int, int) {
	m.batchCalled = true
	return 1, 2
}

func (m *mockExecutor) Comparison(_ context.Context, _ uuid.UUID) (compare.ScenarioComparison, error) {
	return m.comparison, m.compareErr
}

func (m *mockExecutor) Models() []string { return m.models }

func newTestRouter(t *testing.T) (http.Handler, *repository.MemoryStore, *mockExecutor) {
	t.Helper()
	store := repository.NewMemoryStore(discardLogger())
	exec := &mockExecutor{models: []string{"gemini-2.5-pro"}}
	router := NewRouter(Deps{
		Store:     store,
		Executor:  exec,
		Logger:    discardLogger(),
		UploadDir: t.TempDir(),
	})
	return router, store, exec
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(dst); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestRouter_Healthz(t *testing.T) {
	router, _, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/healthz", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 got %d", rec.Code)
	}
	if rec.Body.String() != "ok" {
		t.Fatalf("expected body ok got %q", rec.Body.String())
	}
}

func TestRouter_VersionDefaults(t *testing.T) {
	router, _, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/version", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 got %d", rec.Code)
	}
	var resp map[string]string
	decodeBody(t, rec, &resp)
	if resp["version"] != "dev" || resp["commit"] != "none" {
		t.Fatalf("unexpected version payload: %v", resp)
	}
}

func TestRouter_RequestIDHeader(t *testing.T) {
	router, _, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/healthz", nil)

	if rec.Header().Get(headerRequestID) == "" {
		t.Fatalf("expected a request id header")
	}
}

func TestRouter_CreateScenario(t *testing.T) {
	router, _, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/scenarios/", createScenarioRequest{
		Name:     "Morning order",
		NumSteps: 3,
	})

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201 got %d", rec.Code)
	}

	var resp struct {
		Scenario domain.Scenario `json:"scenario"`
	}
	decodeBody(t, rec, &resp)
	if resp.Scenario.Name != "Morning order" {
		t.Fatalf("unexpected name %q", resp.Scenario.Name)
	}
	if len(resp.Scenario.Steps) != 3 {
		t.Fatalf("expected 3 steps got %d", len(resp.Scenario.Steps))
	}
	if resp.Scenario.SystemPrompt == "" {
		t.Fatalf("expected scenario to snapshot the default prompt")
	}
}

func TestRouter_CreateScenarioValidation(t *testing.T) {
	router, _, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/scenarios/", createScenarioRequest{Name: "  "})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/scenarios/", strings.NewReader("{not json"))
	rec2 := httptest.NewRecorder()
	router.ServeHTTP(rec2, req)
	if rec2.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 for bad json got %d", rec2.Code)
	}
}

func TestRouter_GetScenarioNotFound(t *testing.T) {
	router, _, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/api/scenarios/"+uuid.NewString(), nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404 got %d", rec.Code)
	}

	rec = doJSON(t, router, http.MethodGet, "/api/scenarios/not-a-uuid", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 got %d", rec.Code)
	}
}

func TestRouter_UpdateAndDeleteScenario(t *testing.T) {
	router, store, _ := newTestRouter(t)
	sc, err := store.CreateScenario(context.Background(), "orig", "", 1)
	if err != nil {
		t.Fatalf("create scenario: %v", err)
	}

	name := "renamed"
	rec := doJSON(t, router, http.MethodPut, "/api/scenarios/"+sc.ID.String(), updateScenarioRequest{Name: &name})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Scenario domain.Scenario `json:"scenario"`
	}
	decodeBody(t, rec, &resp)
	if resp.Scenario.Name != "renamed" {
		t.Fatalf("expected renamed got %q", resp.Scenario.Name)
	}

	rec = doJSON(t, router, http.MethodDelete, "/api/scenarios/"+sc.ID.String(), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 got %d", rec.Code)
	}
	if _, err := store.GetScenario(context.Background(), sc.ID); err == nil {
		t.Fatalf("expected scenario to be gone")
	}
}

func TestRouter_CloneScenario(t *testing.T) {
	router, store, _ := newTestRouter(t)
	sc, _ := store.CreateScenario(context.Background(), "base", "", 2)

	rec := doJSON(t, router, http.MethodPost, "/api/scenarios/"+sc.ID.String()+"/clone", cloneScenarioRequest{NewName: "copy"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201 got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Scenario domain.Scenario `json:"scenario"`
	}
	decodeBody(t, rec, &resp)
	if resp.Scenario.Name != "copy" {
		t.Fatalf("expected copy got %q", resp.Scenario.Name)
	}
	if resp.Scenario.ID == sc.ID {
		t.Fatalf("expected a fresh scenario id")
	}
}

func TestRouter_ResetScenarioPrompt(t *testing.T) {
	router, store, _ := newTestRouter(t)
	if err := store.SetSystemPrompt(context.Background(), "stored default"); err != nil {
		t.Fatalf("set prompt: %v", err)
	}
	sc, _ := store.CreateScenario(context.Background(), "s", "", 1)

	custom := "custom"
	if _, err := store.UpdateScenario(context.Background(), sc.ID, repository.ScenarioUpdate{SystemPrompt: &custom}); err != nil {
		t.Fatalf("update scenario: %v", err)
	}

	rec := doJSON(t, router, http.MethodPost, "/api/scenarios/"+sc.ID.String()+"/reset-prompt", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 got %d", rec.Code)
	}

	got, _ := store.GetScenario(context.Background(), sc.ID)
	if got.SystemPrompt != "stored default" {
		t.Fatalf("expected stored default got %q", got.SystemPrompt)
	}
}

func TestRouter_StepLifecycle(t *testing.T) {
	router, store, _ := newTestRouter(t)
	sc, _ := store.CreateScenario(context.Background(), "s", "", 1)

	rec := doJSON(t, router, http.MethodPost, "/api/scenarios/"+sc.ID.String()+"/steps", addStepRequest{
		GroundTruthCart: []domain.CartItem{{ProductID: "p1", ProductName: "Milk", Quantity: 2, Unit: domain.UnitBox}},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201 got %d: %s", rec.Code, rec.Body.String())
	}
	var created struct {
		Step domain.Step `json:"step"`
	}
	decodeBody(t, rec, &created)
	if created.Step.StepNumber != 2 {
		t.Fatalf("expected appended step number 2 got %d", created.Step.StepNumber)
	}

	text := "δύο κούτες γάλα"
	rec = doJSON(t, router, http.MethodPut,
		"/api/scenarios/"+sc.ID.String()+"/steps/"+created.Step.ID.String(),
		updateStepRequest{VoiceText: &text})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 got %d", rec.Code)
	}

	rec = doJSON(t, router, http.MethodDelete,
		"/api/scenarios/"+sc.ID.String()+"/steps/"+created.Step.ID.String(), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 got %d", rec.Code)
	}

	rec = doJSON(t, router, http.MethodDelete,
		"/api/scenarios/"+sc.ID.String()+"/steps/"+uuid.NewString(), nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404 got %d", rec.Code)
	}
}

func TestRouter_VoiceUpload(t *testing.T) {
	router, store, _ := newTestRouter(t)
	sc, _ := store.CreateScenario(context.Background(), "s", "", 1)
	stepID := sc.Steps[0].ID

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	hdr := make(map[string][]string)
	hdr["Content-Disposition"] = []string{`form-data; name="file"; filename="order.wav"`}
	hdr["Content-Type"] = []string{"audio/wav"}
	part, err := mw.CreatePart(hdr)
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	if _, err := part.Write([]byte("RIFF....WAVE")); err != nil {
		t.Fatalf("write part: %v", err)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost,
		"/api/scenarios/"+sc.ID.String()+"/steps/"+stepID.String()+"/voice", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		FilePath string      `json:"file_path"`
		Step     domain.Step `json:"step"`
	}
	decodeBody(t, rec, &resp)
	if filepath.Ext(resp.FilePath) != ".wav" {
		t.Fatalf("expected .wav path got %q", resp.FilePath)
	}
	if resp.Step.AudioPath != resp.FilePath {
		t.Fatalf("expected step to record the stored path")
	}
	if _, err := os.Stat(resp.FilePath); err != nil {
		t.Fatalf("expected uploaded file on disk: %v", err)
	}
}

func TestRouter_VoiceUploadRejectsNonAudio(t *testing.T) {
	router, store, _ := newTestRouter(t)
	sc, _ := store.CreateScenario(context.Background(), "s", "", 1)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, _ := mw.CreateFormFile("file", "notes.txt")
	_, _ = part.Write([]byte("hello"))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost,
		"/api/scenarios/"+sc.ID.String()+"/steps/"+sc.Steps[0].ID.String()+"/voice", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 got %d", rec.Code)
	}
}

func TestRouter_Execute(t *testing.T) {
	router, _, exec := newTestRouter(t)
	id := uuid.New()

	rec := doJSON(t, router, http.MethodPost, "/api/scenarios/"+id.String()+"/execute", nil)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected status 202 got %d", rec.Code)
	}
	if exec.startedID != id {
		t.Fatalf("expected StartExecution with %s got %s", id, exec.startedID)
	}
}

func TestRouter_ExecuteErrors(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"not found", domain.ErrScenarioNotFound, http.StatusNotFound},
		{"no audio", domain.ErrNoEligibleSteps, http.StatusBadRequest},
		{"already running is a no-op", domain.ErrAlreadyRunning, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			router, _, exec := newTestRouter(t)
			exec.startErr = tc.err

			rec := doJSON(t, router, http.MethodPost, "/api/scenarios/"+uuid.NewString()+"/execute", nil)
			if rec.Code != tc.want {
				t.Fatalf("expected status %d got %d", tc.want, rec.Code)
			}
		})
	}
}

func TestRouter_ExecuteStep(t *testing.T) {
	router, _, exec := newTestRouter(t)
	id, stepID := uuid.New(), uuid.New()

	rec := doJSON(t, router, http.MethodPost,
		"/api/scenarios/"+id.String()+"/steps/"+stepID.String()+"/execute", nil)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected status 202 got %d", rec.Code)
	}
	if exec.startedStep != stepID {
		t.Fatalf("expected StartStep with %s got %s", stepID, exec.startedStep)
	}
}

func TestRouter_ExecutionStatus(t *testing.T) {
	router, _, exec := newTestRouter(t)
	exec.status = domain.ExecutionStatus{Status: domain.ExecRunning, TotalSteps: 4}

	rec := doJSON(t, router, http.MethodGet, "/api/scenarios/"+uuid.NewString()+"/execute/status", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 got %d", rec.Code)
	}

	var st domain.ExecutionStatus
	decodeBody(t, rec, &st)
	if st.Status != domain.ExecRunning || st.TotalSteps != 4 {
		t.Fatalf("unexpected status payload: %+v", st)
	}
}

func TestRouter_CancelExecution(t *testing.T) {
	router, _, exec := newTestRouter(t)
	id := uuid.New()

	rec := doJSON(t, router, http.MethodPost, "/api/scenarios/"+id.String()+"/execute/cancel", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 got %d", rec.Code)
	}
	if exec.cancelledID != id {
		t.Fatalf("expected Cancel with %s got %s", id, exec.cancelledID)
	}
}

func TestRouter_ExecutionLogs(t *testing.T) {
	router, _, exec := newTestRouter(t)
	exec.logs = []domain.LogEntry{{Level: domain.LogInfo, Message: "started"}}

	rec := doJSON(t, router, http.MethodGet, "/api/scenarios/"+uuid.NewString()+"/execute/logs?limit=10", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 got %d", rec.Code)
	}
	if exec.logsLimit != 10 {
		t.Fatalf("expected limit 10 got %d", exec.logsLimit)
	}

	var resp struct {
		Logs  []domain.LogEntry `json:"logs"`
		Count int               `json:"count"`
	}
	decodeBody(t, rec, &resp)
	if resp.Count != 1 || resp.Logs[0].Message != "started" {
		t.Fatalf("unexpected logs payload: %+v", resp)
	}

	rec = doJSON(t, router, http.MethodGet, "/api/scenarios/"+uuid.NewString()+"/execute/logs?limit=nope", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 got %d", rec.Code)
	}
}

func TestRouter_Comparison(t *testing.T) {
	router, _, exec := newTestRouter(t)
	exec.comparison = compare.ScenarioComparison{ScenarioName: "s"}

	rec := doJSON(t, router, http.MethodGet, "/api/scenarios/"+uuid.NewString()+"/comparison", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 got %d", rec.Code)
	}

	exec.compareErr = domain.ErrScenarioNotFound
	rec = doJSON(t, router, http.MethodGet, "/api/scenarios/"+uuid.NewString()+"/comparison", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404 got %d", rec.Code)
	}
}

func TestRouter_BatchExecute(t *testing.T) {
	router, _, exec := newTestRouter(t)
	ids := []uuid.UUID{uuid.New(), uuid.New()}
	exec.report = execution.EnqueueReport{
		Added:  []execution.QueueEntryRef{{ScenarioID: ids[0], Name: "a"}},
		Length: 1,
	}

	rec := doJSON(t, router, http.MethodPost, "/api/scenarios/batch/execute", batchExecuteRequest{ScenarioIDs: ids})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 got %d: %s", rec.Code, rec.Body.String())
	}
	if len(exec.enqueuedIDs) != 2 {
		t.Fatalf("expected 2 enqueued ids got %d", len(exec.enqueuedIDs))
	}

	rec = doJSON(t, router, http.MethodPost, "/api/scenarios/batch/execute", batchExecuteRequest{})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 for empty ids got %d", rec.Code)
	}
}

func TestRouter_QueueOps(t *testing.T) {
	router, _, exec := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/api/scenarios/batch/queue", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 got %d", rec.Code)
	}

	exec.removeErr = domain.ErrNotQueued
	rec = doJSON(t, router, http.MethodPost, "/api/scenarios/batch/queue/remove/"+uuid.NewString(), nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404 got %d", rec.Code)
	}

	rec = doJSON(t, router, http.MethodPost, "/api/scenarios/batch/queue/reorder",
		reorderQueueRequest{ScenarioIDs: []uuid.UUID{uuid.New()}})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 got %d", rec.Code)
	}

	rec = doJSON(t, router, http.MethodPost, "/api/scenarios/batch/cancel", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 got %d", rec.Code)
	}
	if !exec.batchCalled {
		t.Fatalf("expected CancelBatch to be called")
	}
	var resp map[string]any
	decodeBody(t, rec, &resp)
	if resp["cancelled_running"].(float64) != 1 || resp["cleared_from_queue"].(float64) != 2 {
		t.Fatalf("unexpected cancel payload: %v", resp)
	}
}

func TestRouter_ProductCRUD(t *testing.T) {
	router, _, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/products/", productRequest{
		ID:    "p1",
		Title: "Γάλα",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201 got %d: %s", rec.Code, rec.Body.String())
	}
	var created domain.Product
	decodeBody(t, rec, &created)
	if created.UnitsRelation != 10 {
		t.Fatalf("expected default units relation got %d", created.UnitsRelation)
	}

	rec = doJSON(t, router, http.MethodPost, "/api/products/", productRequest{Title: "no id"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 got %d", rec.Code)
	}

	title := "Φρέσκο Γάλα"
	rec = doJSON(t, router, http.MethodPut, "/api/products/p1", updateProductRequest{Title: &title})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 got %d", rec.Code)
	}

	rec = doJSON(t, router, http.MethodGet, "/api/products/", nil)
	var list struct {
		Products []domain.Product `json:"products"`
		Total    int              `json:"total"`
	}
	decodeBody(t, rec, &list)
	if list.Total != 1 || list.Products[0].Title != title {
		t.Fatalf("unexpected product list: %+v", list)
	}

	rec = doJSON(t, router, http.MethodDelete, "/api/products/p1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 got %d", rec.Code)
	}

	rec = doJSON(t, router, http.MethodDelete, "/api/products/p1", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404 got %d", rec.Code)
	}
}

func TestRouter_SystemPromptSettings(t *testing.T) {
	router, _, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/api/settings/system-prompt", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 got %d", rec.Code)
	}
	var resp map[string]string
	decodeBody(t, rec, &resp)
	if resp["prompt"] != prompt.DefaultSystemPrompt {
		t.Fatalf("expected built-in default prompt")
	}

	rec = doJSON(t, router, http.MethodPut, "/api/settings/system-prompt", systemPromptRequest{Prompt: "custom"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 got %d", rec.Code)
	}

	rec = doJSON(t, router, http.MethodGet, "/api/settings/system-prompt", nil)
	decodeBody(t, rec, &resp)
	if resp["prompt"] != "custom" {
		t.Fatalf("expected custom prompt got %q", resp["prompt"])
	}

	rec = doJSON(t, router, http.MethodPost, "/api/settings/system-prompt/reset", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 got %d", rec.Code)
	}
	decodeBody(t, rec, &resp)
	if resp["prompt"] != prompt.DefaultSystemPrompt {
		t.Fatalf("expected reset back to built-in default")
	}

	rec = doJSON(t, router, http.MethodPut, "/api/settings/system-prompt", systemPromptRequest{Prompt: "  "})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 got %d", rec.Code)
	}
}
