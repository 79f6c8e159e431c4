package ingest

import (
	"strings"
	"testing"
)

// ============================================================================
// Parse Tests
// ============================================================================

const sampleCSV = `company_name,contact_email,contact_first_name,contact_last_name
Acme Corp,john.doe@acme.com,John,Doe
Beta Inc,jane@beta.co,Jane,Smith`

func TestParse_Basic(t *testing.T) {
	result := Parse([]byte(sampleCSV), Options{})

	if len(result.Errors) != 0 {
		t.Fatalf("Parse() errors = %v, want none", result.Errors)
	}
	if len(result.Rows) != 2 {
		t.Fatalf("Parse() rows = %d, want 2", len(result.Rows))
	}

	wantHeaders := []string{"company_name", "contact_email", "contact_first_name", "contact_last_name"}
	if len(result.Headers) != len(wantHeaders) {
		t.Fatalf("Headers = %v, want %v", result.Headers, wantHeaders)
	}
	for i, h := range wantHeaders {
		if result.Headers[i] != h {
			t.Errorf("Headers[%d] = %q, want %q", i, result.Headers[i], h)
		}
	}

	if result.Rows[0]["company_name"] != "Acme Corp" {
		t.Errorf("Rows[0][company_name] = %q, want %q", result.Rows[0]["company_name"], "Acme Corp")
	}
	if result.Rows[1]["contact_email"] != "jane@beta.co" {
		t.Errorf("Rows[1][contact_email] = %q, want %q", result.Rows[1]["contact_email"], "jane@beta.co")
	}

	if result.Metadata.ValidRows != 2 {
		t.Errorf("Metadata.ValidRows = %d, want 2", result.Metadata.ValidRows)
	}
	if result.Metadata.TotalRows != 2 {
		t.Errorf("Metadata.TotalRows = %d, want 2", result.Metadata.TotalRows)
	}
	if result.Metadata.Delimiter != "," {
		t.Errorf("Metadata.Delimiter = %q, want %q", result.Metadata.Delimiter, ",")
	}
}

func TestParse_TrimsKeysAndValues(t *testing.T) {
	csv := "  company_name , contact_email \n  Acme Corp  ,  john@acme.com  \n"
	result := Parse([]byte(csv), Options{})

	if len(result.Rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(result.Rows))
	}
	if result.Headers[0] != "company_name" {
		t.Errorf("Headers[0] = %q, want %q", result.Headers[0], "company_name")
	}
	if result.Rows[0]["company_name"] != "Acme Corp" {
		t.Errorf("value = %q, want %q", result.Rows[0]["company_name"], "Acme Corp")
	}
	if result.Rows[0]["contact_email"] != "john@acme.com" {
		t.Errorf("value = %q, want %q", result.Rows[0]["contact_email"], "john@acme.com")
	}
}

func TestParse_SkipsEmptyRows(t *testing.T) {
	csv := "company_name,contact_email\nAcme,a@b.co\n,\n  ,  \nBeta,c@d.co\n"
	result := Parse([]byte(csv), Options{})

	if len(result.Rows) != 2 {
		t.Fatalf("rows = %d, want 2 (empty rows skipped)", len(result.Rows))
	}
	if result.Metadata.ValidRows != 2 {
		t.Errorf("ValidRows = %d, want 2", result.Metadata.ValidRows)
	}
}

func TestParse_PartialRowRetained(t *testing.T) {
	// A row with one non-empty value after trimming is kept.
	csv := "company_name,contact_email\nAcme,\n"
	result := Parse([]byte(csv), Options{})

	if len(result.Rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(result.Rows))
	}
	if result.Rows[0]["contact_email"] != "" {
		t.Errorf("contact_email = %q, want empty", result.Rows[0]["contact_email"])
	}
}

func TestParse_MalformedRowIsNonFatal(t *testing.T) {
	// Bare quote inside an unquoted field trips the reader for that row only.
	csv := "name,email\nok,a@b.co\n\"broken,x\nalso ok,c@d.co\n"
	result := Parse([]byte(csv), Options{})

	if len(result.Errors) == 0 {
		t.Fatal("expected a parsing error for the malformed row")
	}
	for _, e := range result.Errors {
		if e.Type != ErrorTypeParsing {
			t.Errorf("error type = %q, want %q", e.Type, ErrorTypeParsing)
		}
		if e.RowNumber == 0 {
			t.Errorf("row-level error has RowNumber 0")
		}
	}
	if len(result.Rows) == 0 {
		t.Error("expected surviving rows despite the malformed one")
	}
}

func TestParse_EmptyContent(t *testing.T) {
	result := Parse([]byte(""), Options{})

	if len(result.Errors) != 0 {
		t.Errorf("errors = %v, want none for empty content", result.Errors)
	}
	if len(result.Rows) != 0 {
		t.Errorf("rows = %d, want 0", len(result.Rows))
	}
}

func TestParse_ExplicitDelimiter(t *testing.T) {
	csv := "a;b\n1;2\n"
	result := Parse([]byte(csv), Options{Delimiter: ";"})

	if result.Metadata.Delimiter != ";" {
		t.Errorf("Delimiter = %q, want %q", result.Metadata.Delimiter, ";")
	}
	if result.Rows[0]["a"] != "1" || result.Rows[0]["b"] != "2" {
		t.Errorf("row = %v, want a=1 b=2", result.Rows[0])
	}
}

func TestParse_Idempotent(t *testing.T) {
	first := Parse([]byte(sampleCSV), Options{})
	second := Parse([]byte(sampleCSV), Options{})

	if len(first.Rows) != len(second.Rows) {
		t.Fatalf("row counts differ: %d vs %d", len(first.Rows), len(second.Rows))
	}
	for i := range first.Rows {
		for key, val := range first.Rows[i] {
			if second.Rows[i][key] != val {
				t.Errorf("row %d key %q: %q vs %q", i, key, val, second.Rows[i][key])
			}
		}
	}
	if first.Metadata != second.Metadata {
		t.Errorf("metadata differs: %+v vs %+v", first.Metadata, second.Metadata)
	}
}

func TestParse_UTF8BOMStripped(t *testing.T) {
	content := append([]byte{0xEF, 0xBB, 0xBF}, []byte("name,email\nAcme,a@b.co\n")...)
	result := Parse(content, Options{})

	if len(result.Headers) == 0 || result.Headers[0] != "name" {
		t.Errorf("Headers = %v, want first header %q", result.Headers, "name")
	}
}

func TestParse_InvalidEncodingFallsBack(t *testing.T) {
	result := Parse([]byte("name\nAcme\n"), Options{Encoding: "no-such-encoding"})

	if result.Metadata.Encoding != "utf-8" {
		t.Errorf("Encoding = %q, want fallback %q", result.Metadata.Encoding, "utf-8")
	}
	if len(result.Rows) != 1 {
		t.Errorf("rows = %d, want 1", len(result.Rows))
	}
}

func TestParse_Latin1Decoded(t *testing.T) {
	// "Müller" in ISO-8859-1: 0xFC for ü.
	content := []byte("name\nM\xfcller\n")
	result := Parse(content, Options{Encoding: "iso-8859-1"})

	if len(result.Rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(result.Rows))
	}
	if result.Rows[0]["name"] != "Müller" {
		t.Errorf("name = %q, want %q", result.Rows[0]["name"], "Müller")
	}
}

// ============================================================================
// Delimiter Sniffing Tests
// ============================================================================

func TestSniffDelimiter(t *testing.T) {
	tests := []struct {
		name   string
		sample string
		want   rune
		ok     bool
	}{
		{"comma", "a,b,c\n1,2,3\n", ',', true},
		{"semicolon", "a;b;c\n1;2;3\n", ';', true},
		{"tab", "a\tb\n1\t2\n", '\t', true},
		{"pipe", "a|b\n1|2\n", '|', true},
		{"no delimiter", "justoneword\nanother\n", 0, false},
		{"empty", "", 0, false},
		{"prefers higher count", "a,b;c,d\n1,2;3,4\n", ',', true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := sniffDelimiter(tt.sample)
			if ok != tt.ok {
				t.Fatalf("sniffDelimiter(%q) ok = %v, want %v", tt.sample, ok, tt.ok)
			}
			if ok && got != tt.want {
				t.Errorf("sniffDelimiter(%q) = %q, want %q", tt.sample, got, tt.want)
			}
		})
	}
}

func TestParse_SniffFailureDefaultsToComma(t *testing.T) {
	result := Parse([]byte("name\nAcme\n"), Options{})
	if result.Metadata.Delimiter != "," {
		t.Errorf("Delimiter = %q, want default comma", result.Metadata.Delimiter)
	}
}

// ============================================================================
// ParseFile Dispatch Tests
// ============================================================================

func TestParseFile_CSVExtension(t *testing.T) {
	result := ParseFile("customers.csv", []byte(sampleCSV), Options{})
	if len(result.Rows) != 2 {
		t.Errorf("rows = %d, want 2", len(result.Rows))
	}
}

func TestParseExcel_BadContent(t *testing.T) {
	result := ParseExcel([]byte("not an xlsx file"))

	if len(result.Errors) != 1 {
		t.Fatalf("errors = %d, want 1", len(result.Errors))
	}
	if result.Errors[0].Type != ErrorTypeCritical {
		t.Errorf("error type = %q, want %q", result.Errors[0].Type, ErrorTypeCritical)
	}
	if result.Errors[0].RowNumber != 0 {
		t.Errorf("RowNumber = %d, want 0", result.Errors[0].RowNumber)
	}
	if !strings.Contains(result.Errors[0].Message, "XLSX parsing failed") {
		t.Errorf("message = %q, want XLSX parsing failure", result.Errors[0].Message)
	}
}
