package web

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/meridianhq/custflow/internal/ingest"
	"github.com/meridianhq/custflow/internal/logging"
	"github.com/meridianhq/custflow/internal/pipeline"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleProcess accepts a multipart upload and runs the pipeline
// synchronously. The response carries the run ID so callers can fetch the
// full report later even after the connection drops.
func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	maxSize := s.cfg.Upload.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize)

	if err := r.ParseMultipartForm(maxSize); err != nil {
		s.respondError(w, r, http.StatusBadRequest, "file too large or invalid form", "INVALID_FORM")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, r, http.StatusBadRequest, "no file provided", "MISSING_FILE")
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		s.respondError(w, r, http.StatusInternalServerError, "failed to read file", "READ_FAILED")
		return
	}

	if err := s.limiter.Acquire(r.Context()); err != nil {
		if errors.Is(err, pipeline.ErrTooManyRuns) {
			s.respondError(w, r, http.StatusTooManyRequests, err.Error(), "TOO_MANY_RUNS")
		} else {
			s.respondError(w, r, http.StatusServiceUnavailable, "request cancelled", "REQUEST_CANCELLED")
		}
		return
	}
	defer s.limiter.Release()

	runID := s.registry.Begin(header.Filename)
	log := logging.WithFields(r.Context(), "run_id", runID, "file", header.Filename)
	log.Info("processing upload", "bytes", len(content))

	result, err := s.pipeline.Run(r.Context(), pipeline.Input{
		Content:   content,
		FileName:  header.Filename,
		Encoding:  r.FormValue("encoding"),
		Delimiter: r.FormValue("delimiter"),
	})
	if err != nil {
		log.Error("run failed", "error", err)
		s.registry.Complete(runID, &pipeline.Result{FailedStage: pipeline.StageReporting})
		s.respondError(w, r, http.StatusInternalServerError, "processing failed", "RUN_FAILED")
		return
	}
	s.registry.Complete(runID, &result)

	run, _ := s.registry.Get(runID)
	writeJSON(w, http.StatusOK, runView(run))
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	runs := s.registry.List()
	views := make([]runSummary, len(runs))
	for i, run := range runs {
		views[i] = runView(run)
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": views})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, ok := s.lookupRun(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, runView(run))
}

// handleGetReport serves the full processing report. format=json (default)
// returns the report document; format=text returns the plain-text summary.
func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	run, ok := s.lookupRun(w, r)
	if !ok {
		return
	}
	if run.Result == nil {
		s.respondError(w, r, http.StatusConflict, "run still in progress", "RUN_IN_PROGRESS")
		return
	}

	switch r.URL.Query().Get("format") {
	case "", "json":
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(run.Result.Output.JSONExport))
	case "text":
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte(run.Result.Output.TextSummary))
	default:
		s.respondError(w, r, http.StatusBadRequest, "format must be json or text", "INVALID_FORMAT")
	}
}

func (s *Server) handleFailedRows(w http.ResponseWriter, r *http.Request) {
	run, ok := s.lookupRun(w, r)
	if !ok {
		return
	}
	if run.Result == nil {
		s.respondError(w, r, http.StatusConflict, "run still in progress", "RUN_IN_PROGRESS")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"run_id":      run.ID,
		"failed_rows": run.Result.Output.FailedRows,
	})
}

// handlePreview parses an upload and reports what processing would see,
// without transforming or submitting anything.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	maxSize := s.cfg.Upload.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize)

	if err := r.ParseMultipartForm(maxSize); err != nil {
		s.respondError(w, r, http.StatusBadRequest, "file too large or invalid form", "INVALID_FORM")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, r, http.StatusBadRequest, "no file provided", "MISSING_FILE")
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		s.respondError(w, r, http.StatusInternalServerError, "failed to read file", "READ_FAILED")
		return
	}

	parsed := ingest.ParseFile(header.Filename, content, ingest.Options{
		Encoding:  r.FormValue("encoding"),
		Delimiter: r.FormValue("delimiter"),
	})
	structure := ingest.ValidateStructure(parsed.Rows, parsed.Headers,
		ingest.RequiredFields, ingest.OptionalFields)

	writeJSON(w, http.StatusOK, map[string]any{
		"file_name":    header.Filename,
		"headers":      parsed.Headers,
		"metadata":     parsed.Metadata,
		"parse_errors": parsed.Errors,
		"structure":    structure,
	})
}

func (s *Server) lookupRun(w http.ResponseWriter, r *http.Request) (pipeline.Run, bool) {
	runID := chi.URLParam(r, "runID")
	run, ok := s.registry.Get(runID)
	if !ok {
		s.respondError(w, r, http.StatusNotFound, "run not found", "RUN_NOT_FOUND")
		return pipeline.Run{}, false
	}
	return run, true
}

// runSummary is the API view of one run: lifecycle fields plus headline
// report numbers, without the row-level detail.
type runSummary struct {
	RunID       string             `json:"run_id"`
	FileName    string             `json:"file_name"`
	Status      pipeline.RunStatus `json:"status"`
	StartedAt   time.Time          `json:"started_at"`
	CompletedAt *time.Time         `json:"completed_at,omitempty"`
	FailedStage pipeline.Stage     `json:"failed_stage,omitempty"`

	OverallSuccess *bool    `json:"overall_success,omitempty"`
	SuccessRate    *float64 `json:"success_rate,omitempty"`
	TotalErrors    *int     `json:"total_errors,omitempty"`
}

func runView(run pipeline.Run) runSummary {
	v := runSummary{
		RunID:     run.ID,
		FileName:  run.FileName,
		Status:    run.Status,
		StartedAt: run.StartedAt,
	}
	if !run.CompletedAt.IsZero() {
		t := run.CompletedAt
		v.CompletedAt = &t
	}
	if run.Result != nil {
		rep := run.Result.Output.Report
		v.FailedStage = run.Result.FailedStage
		success := rep.OverallSuccess
		rate := rep.SuccessRate
		total := len(rep.Errors)
		v.OverallSuccess = &success
		v.SuccessRate = &rate
		v.TotalErrors = &total
	}
	return v
}
