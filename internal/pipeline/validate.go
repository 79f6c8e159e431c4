package pipeline

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
)

// MinContentLength is the byte count below which an input draws a
// short-content warning.
var MinContentLength = 50

// ValidateInput runs pre-flight checks before any parsing. It returns an
// error for inputs that cannot possibly process and a list of warnings for
// inputs that look suspicious but may still work. The line and delimiter
// checks only apply to text inputs; spreadsheet files are binary.
func ValidateInput(fileName string, content []byte, baseURL string) ([]string, error) {
	var warnings []string

	if len(content) == 0 {
		return warnings, errors.New("file content is empty")
	}
	if len(content) < MinContentLength {
		warnings = append(warnings, "file content is very short; it may be truncated")
	}

	u, err := url.Parse(baseURL)
	if err != nil || u.Host == "" {
		return warnings, fmt.Errorf("invalid API base URL: %q", baseURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return warnings, fmt.Errorf("API base URL must be http or https, got %q", u.Scheme)
	}

	if strings.EqualFold(filepath.Ext(fileName), ".xlsx") {
		return warnings, nil
	}

	text := strings.TrimSpace(string(content))
	if text == "" {
		return warnings, errors.New("CSV content is empty")
	}
	lines := strings.Split(text, "\n")
	if len(lines) < 2 {
		return warnings, errors.New("CSV must contain a header row and at least one data row")
	}
	if !strings.ContainsAny(lines[0], ",;\t|") {
		warnings = append(warnings, "header row contains no recognized delimiter")
	}

	return warnings, nil
}
