// Package report collects errors from every pipeline stage into one
// taxonomy and produces the terminal processing report. The Aggregator is
// the sole owner of the unified error list; stages hand over their own
// error types and never touch the list directly.
package report

import "time"

// Severity ranks how bad an error is. Only low and info severities leave
// a run's overall_success intact.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityInfo     Severity = "info"
)

// severityOrder fixes the display order in summaries.
var severityOrder = []Severity{
	SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow, SeverityInfo,
}

// Category names the pipeline stage an error belongs to.
type Category string

const (
	CategoryCSVParsing     Category = "csv_parsing"
	CategoryDataValidation Category = "data_validation"
	CategoryTransformation Category = "transformation"
	CategoryAPIIntegration Category = "api_integration"
	CategorySystem         Category = "system"
)

// categoryOrder fixes the display order in summaries.
var categoryOrder = []Category{
	CategoryCSVParsing, CategoryDataValidation, CategoryTransformation,
	CategoryAPIIntegration, CategorySystem,
}

// ErrorRecord is the unified representation of one failure, whatever stage
// it came from.
type ErrorRecord struct {
	Timestamp   time.Time      `json:"timestamp"`
	Severity    Severity       `json:"severity"`
	Category    Category       `json:"category"`
	Message     string         `json:"message"`
	Details     map[string]any `json:"details"`
	RowIndex    *int           `json:"row_index,omitempty"`
	RecordData  any            `json:"customer_data,omitempty"`
	ErrorCode   string         `json:"error_code,omitempty"`
	Recoverable bool           `json:"recoverable"`
}

// Warning is a non-fatal observation surfaced on the report.
type Warning struct {
	Timestamp time.Time      `json:"timestamp"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
}

// CSVStats summarizes the ingest stage for the report.
type CSVStats struct {
	TotalRows int `json:"total_rows"`
	ValidRows int `json:"valid_rows"`
}

// TransformStats summarizes the transform stage for the report.
type TransformStats struct {
	SuccessfulCount      int `json:"successful_count"`
	FailedCount          int `json:"failed_count"`
	ValidationErrorCount int `json:"validation_error_count"`
}

// APIStats summarizes the submission stage for the report.
type APIStats struct {
	SuccessfulCount int `json:"successful_count"`
	FailedCount     int `json:"failed_count"`
}

// ProcessingReport is the terminal snapshot of one run. It is built once
// when the run ends and never mutated afterwards.
type ProcessingReport struct {
	ProcessingID    string    `json:"processing_id"`
	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time"`
	DurationSeconds float64   `json:"duration_seconds"`

	// Input statistics
	TotalCSVRows int `json:"total_csv_rows"`
	ValidCSVRows int `json:"valid_csv_rows"`

	// Processing statistics
	SuccessfulTransformations int `json:"successful_transformations"`
	FailedTransformations     int `json:"failed_transformations"`
	ValidationErrors          int `json:"validation_errors"`

	// API statistics
	SuccessfulAPICalls int `json:"successful_api_calls"`
	FailedAPICalls     int `json:"failed_api_calls"`

	// Error tracking
	Errors   []ErrorRecord `json:"errors"`
	Warnings []Warning     `json:"warnings"`

	// Summary. Rates are percentages over valid CSV rows; a run with no
	// valid rows reports 0 for both.
	OverallSuccess bool    `json:"overall_success"`
	SuccessRate    float64 `json:"success_rate"`
	ErrorRate      float64 `json:"error_rate"`
}

// Summary breaks the error list down by category, severity and code.
type Summary struct {
	TotalErrors   int              `json:"total_errors"`
	TotalWarnings int              `json:"total_warnings"`
	ByCategory    map[Category]int `json:"by_category"`
	BySeverity    map[Severity]int `json:"by_severity"`
	ByErrorCode   map[string]int   `json:"by_error_code"`
}

// FailedRow surfaces one row-linked error for per-row remediation.
type FailedRow struct {
	RowIndex    int            `json:"row_index"`
	Message     string         `json:"error_message"`
	Category    Category       `json:"error_category"`
	Severity    Severity       `json:"error_severity"`
	RecordData  any            `json:"customer_data,omitempty"`
	Details     map[string]any `json:"error_details"`
	Recoverable bool           `json:"recoverable"`
}

// Output bundles everything the aggregation stage hands back to callers.
type Output struct {
	Report       ProcessingReport `json:"report"`
	ErrorSummary Summary          `json:"error_summary"`
	FailedRows   []FailedRow      `json:"failed_rows"`
	JSONExport   string           `json:"json_export"`
	TextSummary  string           `json:"text_summary"`
}
