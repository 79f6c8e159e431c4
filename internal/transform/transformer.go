package transform

// transformer.go runs the per-row pipeline: field mapping, field transforms,
// business rules, then validation. A row that errors anywhere in the first
// three steps becomes a TransformationFailure; a structurally sound record
// that fails validation becomes a ValidationFailure. Neither aborts the
// batch.

import (
	"fmt"
	"strings"

	"github.com/meridianhq/custflow/internal/ingest"
)

// TransformationFailure is a row whose transform step errored.
type TransformationFailure struct {
	RowIndex int           `json:"row_index"`
	Message  string        `json:"error"`
	Data     ingest.RawRow `json:"data"`
}

// ValidationFailure is a record that transformed cleanly but failed field
// validation. The partially transformed record is carried for reporting;
// it is never submitted.
type ValidationFailure struct {
	RowIndex int      `json:"row_index"`
	Errors   []string `json:"errors"`
	Data     Record   `json:"data"`
}

// Summary counts the outcomes of one batch.
type Summary struct {
	TotalRows            int `json:"total_rows"`
	SuccessfulCount      int `json:"successful_count"`
	FailedCount          int `json:"failed_count"`
	ValidationErrorCount int `json:"validation_error_count"`
}

// BatchResult is the outcome of transforming one batch of rows.
// len(Successful) + len(TransformFailures) + len(ValidationFailures) always
// equals the input row count.
type BatchResult struct {
	Successful         []Record                `json:"successful_transformations"`
	TransformFailures  []TransformationFailure `json:"failed_transformations"`
	ValidationFailures []ValidationFailure     `json:"validation_errors"`
	Summary            Summary                 `json:"summary"`
}

// Transformer applies a RuleSet to batches of raw rows.
type Transformer struct {
	rules RuleSet
}

// New creates a Transformer with the default customer rule set.
func New() *Transformer {
	return &Transformer{rules: DefaultRules()}
}

// NewWithOverlay creates a Transformer with custom rules merged over the
// defaults.
func NewWithOverlay(overlay Overlay) *Transformer {
	return &Transformer{rules: DefaultRules().Merge(overlay)}
}

// TransformBatch transforms rows one at a time. Row indexes in failures are
// 1-based.
func (t *Transformer) TransformBatch(rows []ingest.RawRow) BatchResult {
	result := BatchResult{Summary: Summary{TotalRows: len(rows)}}

	for i, row := range rows {
		rowIndex := i + 1

		rec, err := t.transformRow(row, rowIndex)
		if err != nil {
			result.TransformFailures = append(result.TransformFailures, TransformationFailure{
				RowIndex: rowIndex,
				Message:  err.Error(),
				Data:     row,
			})
			result.Summary.FailedCount++
			continue
		}

		if errs := t.validateRecord(rec); len(errs) > 0 {
			result.ValidationFailures = append(result.ValidationFailures, ValidationFailure{
				RowIndex: rowIndex,
				Errors:   errs,
				Data:     rec,
			})
			result.Summary.ValidationErrorCount++
			continue
		}

		result.Successful = append(result.Successful, rec)
		result.Summary.SuccessfulCount++
	}

	return result
}

// transformRow applies mapping, field transforms and business rules to one
// row. A panic from a custom rule is converted into an error so a bad rule
// cannot take down the batch.
func (t *Transformer) transformRow(row ingest.RawRow, rowIndex int) (rec Record, err error) {
	defer func() {
		if r := recover(); r != nil {
			rec = nil
			err = fmt.Errorf("transformation failed for row %d: %v", rowIndex, r)
		}
	}()

	rec = make(Record, len(row)+3)

	for src, dst := range t.rules.FieldMapping {
		if value, ok := row[src]; ok {
			rec[dst] = value
		}
	}

	for _, ft := range t.rules.Transforms {
		value, ok := rec[ft.Field]
		if !ok {
			continue
		}
		s, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("transformation failed for row %d: field %q is not a string", rowIndex, ft.Field)
		}
		rec[ft.Field] = ft.Apply(s)
	}

	for _, rule := range t.rules.BusinessRules {
		rule(rec)
	}

	return rec, nil
}

// validateRecord checks required fields first, then the configured
// per-field validators. All failures are collected; one failure routes the
// whole record to ValidationFailure.
func (t *Transformer) validateRecord(rec Record) []string {
	var errs []string

	for _, field := range RequiredRecordFields {
		s, _ := rec[field].(string)
		if strings.TrimSpace(s) == "" {
			errs = append(errs, fmt.Sprintf("Missing required field: %s", field))
		}
	}

	for _, fv := range t.rules.Validators {
		value, ok := rec[fv.Field]
		if !ok {
			continue
		}
		s, isString := value.(string)
		if !isString {
			errs = append(errs, fmt.Sprintf("Invalid %s: %v", fv.Field, value))
			continue
		}
		if !fv.Check(s) {
			errs = append(errs, fmt.Sprintf("Invalid %s: %s", fv.Field, s))
		}
	}

	return errs
}
