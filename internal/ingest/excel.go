package ingest

// excel.go reads .xlsx workbooks into the same Result shape the CSV parser
// produces. Only the first sheet is read; the first non-empty row is taken
// as the header.

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ErrUnsupportedFormat is returned when an uploaded file is not supported.
var ErrUnsupportedFormat = errors.New("unsupported file format")

// ParseExcel converts the first sheet of an xlsx workbook into trimmed,
// header-keyed rows. Failures opening or reading the workbook yield a
// single critical ParseError, mirroring an unreadable CSV.
func ParseExcel(content []byte) Result {
	result := Result{Metadata: Metadata{Encoding: "utf-8", Delimiter: ""}}

	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		result.Errors = append(result.Errors, ParseError{
			RowNumber: 0,
			Message:   fmt.Sprintf("XLSX parsing failed: %v", err),
			Type:      ErrorTypeCritical,
		})
		return result
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		result.Errors = append(result.Errors, ParseError{
			RowNumber: 0,
			Message:   "XLSX parsing failed: workbook has no sheets",
			Type:      ErrorTypeCritical,
		})
		return result
	}

	records, err := f.GetRows(sheets[0])
	if err != nil {
		result.Errors = append(result.Errors, ParseError{
			RowNumber: 0,
			Message:   fmt.Sprintf("XLSX parsing failed: %v", err),
			Type:      ErrorTypeCritical,
		})
		return result
	}

	headerIdx := -1
	for i, record := range records {
		if !recordEmpty(record) {
			headerIdx = i
			break
		}
	}
	if headerIdx < 0 {
		return result
	}

	for _, h := range records[headerIdx] {
		result.Headers = append(result.Headers, strings.TrimSpace(h))
	}

	dataRecords := records[headerIdx+1:]
	result.Metadata.TotalRows = len(dataRecords)

	for _, record := range dataRecords {
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

// ParseFile dispatches on file extension: .xlsx through the workbook
// reader, everything else through the CSV parser.
func ParseFile(fileName string, content []byte, opts Options) Result {
	if strings.HasSuffix(strings.ToLower(fileName), ".xlsx") {
		return ParseExcel(content)
	}
	return Parse(content, opts)
}

func recordEmpty(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
