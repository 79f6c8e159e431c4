package report

// aggregator.go converts stage-specific failures into unified ErrorRecords
// and builds the terminal report. Severity assignment:
//
//	csv parse errors        -> high
//	validation failures     -> medium
//	transformation failures -> high
//	API failures            -> high, except validation_error -> medium
//	                           and rate_limit_error -> low
//	system errors           -> critical, non-recoverable

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/meridianhq/custflow/internal/apiclient"
	"github.com/meridianhq/custflow/internal/ingest"
	"github.com/meridianhq/custflow/internal/transform"
)

// nowFunc supplies timestamps. Overridable in tests.
var nowFunc = time.Now

// Aggregator owns the unified error list for one processing run. It is not
// safe for concurrent use; the pipeline writes to it from a single
// goroutine.
type Aggregator struct {
	startTime    time.Time
	processingID string
	runKey       uuid.UUID

	errors   []ErrorRecord
	warnings []Warning
}

// NewAggregator starts a run. The processing ID is derived from the start
// instant; the run key is a fresh UUID for external correlation.
func NewAggregator() *Aggregator {
	start := nowFunc().UTC()
	return &Aggregator{
		startTime:    start,
		processingID: fmt.Sprintf("proc_%d", start.Unix()),
		runKey:       uuid.New(),
	}
}

// ProcessingID returns the run's time-derived identifier.
func (a *Aggregator) ProcessingID() string { return a.processingID }

// RunKey returns the run's UUID.
func (a *Aggregator) RunKey() uuid.UUID { return a.runKey }

// StartTime returns when the run began.
func (a *Aggregator) StartTime() time.Time { return a.startTime }

// addError appends one unified record. The list is append-only.
func (a *Aggregator) addError(rec ErrorRecord) {
	if rec.Details == nil {
		rec.Details = map[string]any{}
	}
	rec.Timestamp = nowFunc().UTC()
	a.errors = append(a.errors, rec)
}

// AddWarning records a non-fatal observation.
func (a *Aggregator) AddWarning(message string, details map[string]any) {
	a.warnings = append(a.warnings, Warning{
		Timestamp: nowFunc().UTC(),
		Message:   message,
		Details:   details,
	})
}

// AddParseError records one CSV parse failure.
func (a *Aggregator) AddParseError(e ingest.ParseError) {
	row := e.RowNumber
	a.addError(ErrorRecord{
		Severity: SeverityHigh,
		Category: CategoryCSVParsing,
		Message:  fmt.Sprintf("CSV parsing error in row %d", e.RowNumber),
		Details: map[string]any{
			"error":      e.Message,
			"error_type": string(e.Type),
		},
		RowIndex:    &row,
		RecordData:  e.RowData,
		ErrorCode:   "CSV_PARSE_ERROR",
		Recoverable: true,
	})
}

// AddStructureError records a structural defect in the parsed input, such
// as a missing required column. Structure defects stop a run, so they
// carry the same severity and category as parse failures.
func (a *Aggregator) AddStructureError(message string) {
	a.addError(ErrorRecord{
		Severity:    SeverityHigh,
		Category:    CategoryCSVParsing,
		Message:     message,
		ErrorCode:   "CSV_STRUCTURE_ERROR",
		Recoverable: true,
	})
}

// AddValidationFailure records one record that failed field validation.
func (a *Aggregator) AddValidationFailure(f transform.ValidationFailure) {
	row := f.RowIndex
	a.addError(ErrorRecord{
		Severity: SeverityMedium,
		Category: CategoryDataValidation,
		Message:  fmt.Sprintf("Validation failed for row %d", f.RowIndex),
		Details: map[string]any{
			"validation_errors": f.Errors,
		},
		RowIndex:    &row,
		RecordData:  f.Data,
		ErrorCode:   "VALIDATION_ERROR",
		Recoverable: true,
	})
}

// AddTransformFailure records one row whose transform step errored.
func (a *Aggregator) AddTransformFailure(f transform.TransformationFailure) {
	row := f.RowIndex
	a.addError(ErrorRecord{
		Severity: SeverityHigh,
		Category: CategoryTransformation,
		Message:  fmt.Sprintf("Transformation failed for row %d", f.RowIndex),
		Details: map[string]any{
			"transformation_error": f.Message,
		},
		RowIndex:    &row,
		RecordData:  f.Data,
		ErrorCode:   "TRANSFORMATION_ERROR",
		Recoverable: true,
	})
}

// AddSubmissionFailure records one failed API submission.
func (a *Aggregator) AddSubmissionFailure(item apiclient.BatchItem) {
	severity := SeverityHigh
	switch item.Outcome.Kind {
	case apiclient.KindValidation:
		severity = SeverityMedium
	case apiclient.KindRateLimit:
		severity = SeverityLow
	}

	kind := item.Outcome.Kind
	if kind == "" {
		kind = apiclient.KindUnknown
	}

	row := item.Index
	a.addError(ErrorRecord{
		Severity: severity,
		Category: CategoryAPIIntegration,
		Message:  fmt.Sprintf("API call failed for customer %d", item.Index),
		Details: map[string]any{
			"error":       item.Outcome.Error,
			"error_type":  string(kind),
			"status_code": item.Outcome.StatusCode,
			"retry_count": item.Outcome.RetryCount,
		},
		RowIndex:    &row,
		RecordData:  item.Record,
		ErrorCode:   upperSnake(string(kind)),
		Recoverable: true,
	})
}

// AddSystemError records a non-recoverable failure outside any stage.
func (a *Aggregator) AddSystemError(message string, details map[string]any) {
	a.addError(ErrorRecord{
		Severity:    SeverityCritical,
		Category:    CategorySystem,
		Message:     message,
		Details:     details,
		ErrorCode:   "SYSTEM_ERROR",
		Recoverable: false,
	})
}

// Errors returns a copy of the unified error list.
func (a *Aggregator) Errors() []ErrorRecord {
	out := make([]ErrorRecord, len(a.errors))
	copy(out, a.errors)
	return out
}

// Summary breaks the recorded errors down by category, severity and code.
func (a *Aggregator) Summary() Summary {
	s := Summary{
		TotalErrors:   len(a.errors),
		TotalWarnings: len(a.warnings),
		ByCategory:    make(map[Category]int),
		BySeverity:    make(map[Severity]int),
		ByErrorCode:   make(map[string]int),
	}
	for _, e := range a.errors {
		s.ByCategory[e.Category]++
		s.BySeverity[e.Severity]++
		if e.ErrorCode != "" {
			s.ByErrorCode[e.ErrorCode]++
		}
	}
	return s
}

// FailedRows lists every error bound to a specific row.
func (a *Aggregator) FailedRows() []FailedRow {
	var rows []FailedRow
	for _, e := range a.errors {
		if e.RowIndex == nil {
			continue
		}
		rows = append(rows, FailedRow{
			RowIndex:    *e.RowIndex,
			Message:     e.Message,
			Category:    e.Category,
			Severity:    e.Severity,
			RecordData:  e.RecordData,
			Details:     e.Details,
			Recoverable: e.Recoverable,
		})
	}
	return rows
}

// BuildReport closes the run and snapshots everything into an immutable
// ProcessingReport. Rates use valid CSV rows as the denominator.
func (a *Aggregator) BuildReport(csv CSVStats, tr TransformStats, api APIStats) ProcessingReport {
	end := nowFunc().UTC()

	var successRate, errorRate float64
	if csv.ValidRows > 0 {
		successRate = float64(api.SuccessfulCount) / float64(csv.ValidRows) * 100
		errorRate = float64(len(a.errors)) / float64(csv.ValidRows) * 100
	}

	overall := true
	for _, e := range a.errors {
		if e.Severity != SeverityLow && e.Severity != SeverityInfo {
			overall = false
			break
		}
	}

	return ProcessingReport{
		ProcessingID:    a.processingID,
		StartTime:       a.startTime,
		EndTime:         end,
		DurationSeconds: end.Sub(a.startTime).Seconds(),

		TotalCSVRows: csv.TotalRows,
		ValidCSVRows: csv.ValidRows,

		SuccessfulTransformations: tr.SuccessfulCount,
		FailedTransformations:     tr.FailedCount,
		ValidationErrors:          tr.ValidationErrorCount,

		SuccessfulAPICalls: api.SuccessfulCount,
		FailedAPICalls:     api.FailedCount,

		Errors:   a.Errors(),
		Warnings: append([]Warning(nil), a.warnings...),

		OverallSuccess: overall,
		SuccessRate:    successRate,
		ErrorRate:      errorRate,
	}
}

// Finalize builds the report and every export format in one call.
func (a *Aggregator) Finalize(csv CSVStats, tr TransformStats, api APIStats) (Output, error) {
	rep := a.BuildReport(csv, tr, api)

	jsonExport, err := ExportJSON(rep)
	if err != nil {
		return Output{}, fmt.Errorf("export report: %w", err)
	}

	return Output{
		Report:       rep,
		ErrorSummary: a.Summary(),
		FailedRows:   a.FailedRows(),
		JSONExport:   jsonExport,
		TextSummary:  ExportText(rep),
	}, nil
}

// upperSnake converts an error kind like "rate_limit_error" to
// "RATE_LIMIT_ERROR" for the error-code index.
func upperSnake(s string) string {
	out := make([]byte, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		out[i] = c
	}
	return string(out)
}
