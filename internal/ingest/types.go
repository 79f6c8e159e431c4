// Package ingest parses raw CSV (and XLSX) content into header-keyed rows.
// This package has no network or storage dependencies and can be used by any
// caller that needs tabular customer data.
package ingest

// ErrorType distinguishes recoverable row failures from fatal parse failures.
type ErrorType string

const (
	// ErrorTypeParsing marks a single malformed row; processing continues.
	ErrorTypeParsing ErrorType = "parsing"

	// ErrorTypeCritical marks an unreadable input; the result set is empty.
	ErrorTypeCritical ErrorType = "critical"
)

// RawRow maps trimmed column names to trimmed string values for one data
// row. Key order follows the header slice on the enclosing Result; the row
// itself is never mutated after it is emitted.
type RawRow map[string]string

// ParseError describes one failed row, or the whole input when RowNumber
// is 0 and Type is critical.
type ParseError struct {
	RowNumber int       `json:"row_number"`
	Message   string    `json:"error"`
	RowData   RawRow    `json:"row_data,omitempty"`
	Type      ErrorType `json:"error_type"`
}

// Metadata records what the parser detected and counted.
type Metadata struct {
	// TotalRows is the input line count minus the header line. Informational
	// only; rate calculations use ValidRows.
	TotalRows int `json:"total_rows"`

	// ValidRows counts rows retained after trimming and empty-row skipping.
	ValidRows int `json:"valid_rows"`

	// Encoding is the detected or requested character encoding.
	Encoding string `json:"encoding"`

	// Delimiter is the detected or requested field separator.
	Delimiter string `json:"delimiter"`
}

// Result is the outcome of parsing one input.
type Result struct {
	Rows     []RawRow     `json:"data"`
	Headers  []string     `json:"headers"`
	Errors   []ParseError `json:"errors"`
	Metadata Metadata     `json:"metadata"`
}

// FieldCoverage reports how many rows carry a non-empty value for a field.
type FieldCoverage struct {
	TotalRows       int     `json:"total_rows"`
	NonEmptyRows    int     `json:"non_empty_rows"`
	CoveragePercent float64 `json:"coverage_percentage"`
}

// StructureReport is the outcome of validating parsed rows against the
// expected schema.
type StructureReport struct {
	Valid            bool                     `json:"valid"`
	Errors           []string                 `json:"errors"`
	Warnings         []string                 `json:"warnings"`
	FieldCoverage    map[string]FieldCoverage `json:"field_coverage"`
	AvailableFields  []string                 `json:"available_fields,omitempty"`
	MissingRequired  []string                 `json:"missing_required,omitempty"`
	UnexpectedFields []string                 `json:"unexpected_fields,omitempty"`
}

// RequiredFields are the CSV columns every customer upload must carry.
var RequiredFields = []string{
	"company_name",
	"contact_email",
	"contact_first_name",
	"contact_last_name",
}

// OptionalFields are recognized but not mandatory CSV columns.
var OptionalFields = []string{
	"phone_number",
	"address",
	"city",
	"country",
	"postal_code",
	"tax_id",
	"company_size",
}
