package web

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/meridianhq/custflow/internal/apiclient"
	"github.com/meridianhq/custflow/internal/config"
	"github.com/meridianhq/custflow/internal/pipeline"
	"github.com/meridianhq/custflow/internal/transform"
)

const sampleCSV = `company_name,contact_email,contact_first_name,contact_last_name
Acme Corp,john@acme.com,John,Doe
Globex,mary@globex.com,Mary,Major
`

func newTestServer(t *testing.T, apiKeys []string) *Server {
	t.Helper()

	downstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":"cust_1"}`))
	}))
	t.Cleanup(downstream.Close)

	cfg := &config.Config{}
	cfg.Server.APIKeys = apiKeys
	cfg.Upload.MaxFileSize = 1 << 20

	retry := apiclient.RetryConfig{MaxRetries: 1, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, BackoffFactor: 2.0}
	client := apiclient.New(downstream.URL, "key", time.Second, retry)
	p := pipeline.New(client, transform.New(), downstream.URL)

	return NewServer(cfg, p, pipeline.NewRegistry(time.Hour))
}

func uploadRequest(t *testing.T, target, fileName, content string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", fileName)
	if err != nil {
		t.Fatal(err)
	}
	fw.Write([]byte(content))
	mw.Close()

	req := httptest.NewRequest("POST", target, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("invalid JSON response: %v\n%s", err, rec.Body.String())
	}
}

// ============================================================================
// Process Endpoint Tests
// ============================================================================

func TestProcess_CleanUpload(t *testing.T) {
	s := newTestServer(t, nil)

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, uploadRequest(t, "/api/process", "customers.csv", sampleCSV))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var view struct {
		RunID          string  `json:"run_id"`
		Status         string  `json:"status"`
		OverallSuccess *bool   `json:"overall_success"`
		SuccessRate    float64 `json:"success_rate"`
	}
	decodeBody(t, rec, &view)
	if view.RunID == "" {
		t.Error("response missing run_id")
	}
	if view.Status != "completed" {
		t.Errorf("status = %q, want completed", view.Status)
	}
	if view.OverallSuccess == nil || !*view.OverallSuccess {
		t.Error("overall_success missing or false")
	}
	if view.SuccessRate != 100 {
		t.Errorf("success_rate = %v, want 100", view.SuccessRate)
	}
}

func TestProcess_MissingFile(t *testing.T) {
	s := newTestServer(t, nil)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.WriteField("note", "no file here")
	mw.Close()
	req := httptest.NewRequest("POST", "/api/process", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	var resp ErrorResponse
	decodeBody(t, rec, &resp)
	if resp.Code != "MISSING_FILE" {
		t.Errorf("code = %q, want MISSING_FILE", resp.Code)
	}
}

func TestProcess_BadCSVStillReturnsRun(t *testing.T) {
	s := newTestServer(t, nil)

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, uploadRequest(t, "/api/process", "empty.csv", ""))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var view struct {
		Status      string `json:"status"`
		FailedStage string `json:"failed_stage"`
	}
	decodeBody(t, rec, &view)
	if view.Status != "failed" {
		t.Errorf("status = %q, want failed", view.Status)
	}
	if view.FailedStage != string(pipeline.StageInputValidation) {
		t.Errorf("failed_stage = %q, want %q", view.FailedStage, pipeline.StageInputValidation)
	}
}

// ============================================================================
// Run Retrieval Tests
// ============================================================================

func processOne(t *testing.T, s *Server) string {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, uploadRequest(t, "/api/process", "customers.csv", sampleCSV))
	if rec.Code != http.StatusOK {
		t.Fatalf("process status = %d: %s", rec.Code, rec.Body.String())
	}
	var view struct {
		RunID string `json:"run_id"`
	}
	decodeBody(t, rec, &view)
	return view.RunID
}

func TestGetRun(t *testing.T) {
	s := newTestServer(t, nil)
	runID := processOne(t, s)

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest("GET", "/api/runs/"+runID, nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var view struct {
		RunID    string `json:"run_id"`
		FileName string `json:"file_name"`
	}
	decodeBody(t, rec, &view)
	if view.RunID != runID {
		t.Errorf("run_id = %q, want %q", view.RunID, runID)
	}
	if view.FileName != "customers.csv" {
		t.Errorf("file_name = %q, want customers.csv", view.FileName)
	}
}

func TestGetRun_NotFound(t *testing.T) {
	s := newTestServer(t, nil)

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest("GET", "/api/runs/does-not-exist", nil))

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestListRuns(t *testing.T) {
	s := newTestServer(t, nil)
	processOne(t, s)
	processOne(t, s)

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest("GET", "/api/runs", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp struct {
		Runs []json.RawMessage `json:"runs"`
	}
	decodeBody(t, rec, &resp)
	if len(resp.Runs) != 2 {
		t.Errorf("runs = %d, want 2", len(resp.Runs))
	}
}

func TestGetReport_Formats(t *testing.T) {
	s := newTestServer(t, nil)
	runID := processOne(t, s)

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest("GET", "/api/runs/"+runID+"/report", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("json report status = %d", rec.Code)
	}
	var rep struct {
		ProcessingID string `json:"processing_id"`
	}
	decodeBody(t, rec, &rep)
	if !strings.HasPrefix(rep.ProcessingID, "proc_") {
		t.Errorf("processing_id = %q, want proc_ prefix", rep.ProcessingID)
	}

	rec = httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest("GET", "/api/runs/"+runID+"/report?format=text", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("text report status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "OVERALL RESULTS:") {
		t.Errorf("text report missing sections:\n%s", rec.Body.String())
	}

	rec = httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest("GET", "/api/runs/"+runID+"/report?format=xml", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown format status = %d, want 400", rec.Code)
	}
}

func TestFailedRows(t *testing.T) {
	s := newTestServer(t, nil)

	content := "company_name,contact_email,contact_first_name,contact_last_name\nAcme Corp,,John,Doe\n"
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, uploadRequest(t, "/api/process", "bad.csv", content))
	var view struct {
		RunID string `json:"run_id"`
	}
	decodeBody(t, rec, &view)

	rec = httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest("GET", "/api/runs/"+view.RunID+"/failed-rows", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp struct {
		FailedRows []json.RawMessage `json:"failed_rows"`
	}
	decodeBody(t, rec, &resp)
	if len(resp.FailedRows) != 1 {
		t.Errorf("failed rows = %d, want 1", len(resp.FailedRows))
	}
}

func TestPreview(t *testing.T) {
	s := newTestServer(t, nil)

	content := "company_name,contact_email\nAcme Corp,john@acme.com\n"
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, uploadRequest(t, "/api/preview", "thin.csv", content))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Headers   []string `json:"headers"`
		Structure struct {
			Valid  bool     `json:"valid"`
			Errors []string `json:"errors"`
		} `json:"structure"`
	}
	decodeBody(t, rec, &resp)
	if len(resp.Headers) != 2 {
		t.Errorf("headers = %v, want 2 columns", resp.Headers)
	}
	if resp.Structure.Valid {
		t.Error("structure valid = true, want false (missing required columns)")
	}
	if len(resp.Structure.Errors) == 0 {
		t.Error("expected structure errors for missing required columns")
	}
	if runs := s.registry.List(); len(runs) != 0 {
		t.Errorf("preview created %d runs, want 0", len(runs))
	}
}

// ============================================================================
// Middleware Tests
// ============================================================================

func TestHealthSkipsAuth(t *testing.T) {
	s := newTestServer(t, []string{"secret"})

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest("GET", "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestAPIKeyAuth(t *testing.T) {
	s := newTestServer(t, []string{"secret"})

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest("GET", "/api/runs", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("no key status = %d, want 401", rec.Code)
	}

	req := httptest.NewRequest("GET", "/api/runs", nil)
	req.Header.Set("X-API-Key", "wrong")
	rec = httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("wrong key status = %d, want 403", rec.Code)
	}

	req = httptest.NewRequest("GET", "/api/runs", nil)
	req.Header.Set("X-API-Key", "secret")
	rec = httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("valid key status = %d, want 200", rec.Code)
	}
}
