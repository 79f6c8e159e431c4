package ingest

// structure.go validates parsed rows against the expected customer schema.
//
// The schema is assumed uniform: required fields are checked against the
// first row's keys only. Fields outside required and optional produce a
// warning, not an error, so uploads with extra columns still process.

import (
	"fmt"
	"strings"
)

// ValidateStructure checks rows against the required and optional field
// lists and computes per-field coverage.
func ValidateStructure(rows []RawRow, headers, required, optional []string) StructureReport {
	if len(rows) == 0 {
		return StructureReport{
			Valid:         false,
			Errors:        []string{"No data found in CSV"},
			Warnings:      []string{},
			FieldCoverage: map[string]FieldCoverage{},
		}
	}

	report := StructureReport{
		Warnings:      []string{},
		Errors:        []string{},
		FieldCoverage: make(map[string]FieldCoverage),
	}

	report.AvailableFields = availableFields(rows[0], headers)

	present := make(map[string]bool, len(report.AvailableFields))
	for _, f := range report.AvailableFields {
		present[f] = true
	}

	for _, field := range required {
		if !present[field] {
			report.MissingRequired = append(report.MissingRequired, field)
		}
	}
	if len(report.MissingRequired) > 0 {
		report.Errors = append(report.Errors,
			fmt.Sprintf("Missing required fields: %s", strings.Join(report.MissingRequired, ", ")))
	}

	expected := make(map[string]bool, len(required)+len(optional))
	for _, f := range required {
		expected[f] = true
	}
	for _, f := range optional {
		expected[f] = true
	}
	for _, field := range report.AvailableFields {
		if !expected[field] {
			report.UnexpectedFields = append(report.UnexpectedFields, field)
		}
	}
	if len(report.UnexpectedFields) > 0 {
		report.Warnings = append(report.Warnings,
			fmt.Sprintf("Unexpected fields found: %s", strings.Join(report.UnexpectedFields, ", ")))
	}

	for _, field := range report.AvailableFields {
		nonEmpty := 0
		for _, row := range rows {
			if strings.TrimSpace(row[field]) != "" {
				nonEmpty++
			}
		}
		report.FieldCoverage[field] = FieldCoverage{
			TotalRows:       len(rows),
			NonEmptyRows:    nonEmpty,
			CoveragePercent: float64(nonEmpty) / float64(len(rows)) * 100,
		}
	}

	report.Valid = len(report.Errors) == 0
	return report
}

// availableFields returns the first row's keys in header order, falling
// back to an arbitrary order for keys missing from the header slice.
func availableFields(row RawRow, headers []string) []string {
	fields := make([]string, 0, len(row))
	seen := make(map[string]bool, len(row))
	for _, h := range headers {
		if _, ok := row[h]; ok && !seen[h] {
			fields = append(fields, h)
			seen[h] = true
		}
	}
	for key := range row {
		if !seen[key] {
			fields = append(fields, key)
		}
	}
	return fields
}
