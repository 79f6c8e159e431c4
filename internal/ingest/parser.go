package ingest

// parser.go turns raw bytes into header-keyed rows.
//
// The parser is deliberately forgiving: a malformed row is recorded and
// skipped, never fatal. Only an input that cannot be read at all produces a
// critical error, and then the result set is empty.

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html/charset"
)

// DelimiterSampleSize is how many characters of the input the delimiter
// sniffer examines.
var DelimiterSampleSize = 1024

// delimiterCandidates are tried in preference order when sniffing.
var delimiterCandidates = []rune{',', ';', '\t', '|'}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Options control parsing. Zero values mean auto-detection.
type Options struct {
	// Encoding is a character encoding label (e.g. "windows-1252").
	// Empty means detect from a byte sniff of the content.
	Encoding string

	// Delimiter is the field separator. Empty means sniff from the first
	// DelimiterSampleSize characters, defaulting to comma.
	Delimiter string
}

// Parse converts raw content into trimmed, header-keyed rows.
//
// Rows whose values are all empty after trimming are skipped. Each
// malformed row yields one ParseError of type parsing and processing
// continues; an unreadable input yields a single critical ParseError with
// row number 0 and an empty result set.
func Parse(content []byte, opts Options) Result {
	result := Result{}

	text, encodingName := decode(content, opts.Encoding)
	result.Metadata.Encoding = encodingName

	delim := ','
	if opts.Delimiter != "" {
		delim, _ = utf8.DecodeRuneInString(opts.Delimiter)
	} else if sniffed, ok := sniffDelimiter(sample(text)); ok {
		delim = sniffed
	}
	result.Metadata.Delimiter = string(delim)

	reader := csv.NewReader(strings.NewReader(text))
	reader.Comma = delim
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return result
	}
	if err != nil {
		result.Errors = append(result.Errors, ParseError{
			RowNumber: 0,
			Message:   fmt.Sprintf("CSV parsing failed: %v", err),
			Type:      ErrorTypeCritical,
		})
		return result
	}

	for _, h := range header {
		result.Headers = append(result.Headers, strings.TrimSpace(h))
	}

	result.Metadata.TotalRows = countDataLines(text)

	// Header is row 1, so data numbering starts at 2.
	for rowNum := 2; ; rowNum++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			result.Errors = append(result.Errors, ParseError{
				RowNumber: rowNum,
				Message:   err.Error(),
				Type:      ErrorTypeParsing,
			})
			continue
		}

		row := make(RawRow, len(result.Headers))
		hasValue := false
		for i, key := range result.Headers {
			if key == "" {
				continue
			}
			value := ""
			if i < len(record) {
				value = strings.TrimSpace(record[i])
			}
			row[key] = value
			if value != "" {
				hasValue = true
			}
		}

		if !hasValue {
			continue
		}

		result.Rows = append(result.Rows, row)
		result.Metadata.ValidRows++
	}

	return result
}

// decode converts content to UTF-8 text, returning the encoding actually
// used. A requested encoding that cannot be resolved or applied falls back
// to permissive UTF-8 with invalid sequences replaced.
func decode(content []byte, requested string) (string, string) {
	content = bytes.TrimPrefix(content, utf8BOM)

	if requested != "" {
		if enc, name := charset.Lookup(requested); enc != nil {
			if out, err := enc.NewDecoder().Bytes(content); err == nil {
				return string(out), name
			}
		}
		return permissiveUTF8(content), "utf-8"
	}

	enc, name, _ := charset.DetermineEncoding(content, "")
	out, err := enc.NewDecoder().Bytes(content)
	if err != nil {
		return permissiveUTF8(content), "utf-8"
	}
	return string(out), name
}

// permissiveUTF8 replaces invalid byte sequences with the replacement rune.
func permissiveUTF8(content []byte) string {
	return strings.ToValidUTF8(string(content), string(utf8.RuneError))
}

// sample returns the sniffing window at the start of text.
func sample(text string) string {
	if len(text) > DelimiterSampleSize {
		return text[:DelimiterSampleSize]
	}
	return text
}

// sniffDelimiter picks the candidate whose per-line count is non-zero and
// consistent across the sampled lines. Ties resolve in candidate order.
// Returns false when no candidate qualifies; callers default to comma.
func sniffDelimiter(sample string) (rune, bool) {
	var lines []string
	for _, line := range strings.Split(sample, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
		if len(lines) >= 10 {
			break
		}
	}
	if len(lines) == 0 {
		return 0, false
	}

	// Drop a possibly truncated final line so its counts don't skew the
	// consistency check.
	if len(lines) > 1 && len(sample) == DelimiterSampleSize {
		lines = lines[:len(lines)-1]
	}

	bestDelim := rune(0)
	bestCount := 0
	for _, cand := range delimiterCandidates {
		count := strings.Count(lines[0], string(cand))
		if count == 0 {
			continue
		}
		consistent := true
		for _, line := range lines[1:] {
			if strings.Count(line, string(cand)) != count {
				consistent = false
				break
			}
		}
		if consistent && count > bestCount {
			bestDelim = cand
			bestCount = count
		}
	}

	if bestCount == 0 {
		return 0, false
	}
	return bestDelim, true
}

// countDataLines counts non-header lines in the input text.
func countDataLines(text string) int {
	if text == "" {
		return 0
	}
	lines := strings.Count(text, "\n")
	if !strings.HasSuffix(text, "\n") {
		lines++
	}
	if lines <= 1 {
		return 0
	}
	return lines - 1
}
