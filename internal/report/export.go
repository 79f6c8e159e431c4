package report

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ExportJSON renders the report as indented JSON for download or storage.
func ExportJSON(rep ProcessingReport) (string, error) {
	b, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal report: %w", err)
	}
	return string(b), nil
}

// ExportText renders a human-readable summary. Section and breakdown order
// is fixed so two identical runs produce identical text.
func ExportText(rep ProcessingReport) string {
	var b strings.Builder

	fmt.Fprintf(&b, "CSV Processing Report - %s\n", rep.ProcessingID)
	fmt.Fprintf(&b, "%s\n", strings.Repeat("=", 50))
	fmt.Fprintf(&b, "Duration: %.2f seconds\n", rep.DurationSeconds)
	b.WriteString("\n")

	b.WriteString("INPUT STATISTICS:\n")
	fmt.Fprintf(&b, "- Total CSV rows: %d\n", rep.TotalCSVRows)
	fmt.Fprintf(&b, "- Valid CSV rows: %d\n", rep.ValidCSVRows)
	b.WriteString("\n")

	b.WriteString("PROCESSING STATISTICS:\n")
	fmt.Fprintf(&b, "- Successful transformations: %d\n", rep.SuccessfulTransformations)
	fmt.Fprintf(&b, "- Failed transformations: %d\n", rep.FailedTransformations)
	fmt.Fprintf(&b, "- Validation errors: %d\n", rep.ValidationErrors)
	b.WriteString("\n")

	b.WriteString("API STATISTICS:\n")
	fmt.Fprintf(&b, "- Successful API calls: %d\n", rep.SuccessfulAPICalls)
	fmt.Fprintf(&b, "- Failed API calls: %d\n", rep.FailedAPICalls)
	b.WriteString("\n")

	b.WriteString("OVERALL RESULTS:\n")
	fmt.Fprintf(&b, "- Success rate: %.1f%%\n", rep.SuccessRate)
	fmt.Fprintf(&b, "- Error rate: %.1f%%\n", rep.ErrorRate)
	fmt.Fprintf(&b, "- Overall success: %s\n", yesNo(rep.OverallSuccess))

	if len(rep.Errors) > 0 {
		byCategory := make(map[Category]int)
		bySeverity := make(map[Severity]int)
		for _, e := range rep.Errors {
			byCategory[e.Category]++
			bySeverity[e.Severity]++
		}

		b.WriteString("\nERROR SUMMARY:\n")
		fmt.Fprintf(&b, "- Total errors: %d\n", len(rep.Errors))
		b.WriteString("- By category:\n")
		for _, cat := range categoryOrder {
			if n := byCategory[cat]; n > 0 {
				fmt.Fprintf(&b, "  - %s: %d\n", cat, n)
			}
		}
		b.WriteString("- By severity:\n")
		for _, sev := range severityOrder {
			if n := bySeverity[sev]; n > 0 {
				fmt.Fprintf(&b, "  - %s: %d\n", sev, n)
			}
		}
	}

	if len(rep.Warnings) > 0 {
		b.WriteString("\nWARNINGS:\n")
		for _, w := range rep.Warnings {
			fmt.Fprintf(&b, "- %s\n", w.Message)
		}
	}

	return b.String()
}

func yesNo(v bool) string {
	if v {
		return "YES"
	}
	return "NO"
}
