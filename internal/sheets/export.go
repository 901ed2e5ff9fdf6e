// Package sheets pushes expense exports into a spreadsheet.
package sheets

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"mime"
	"strings"
)

var (
	ErrUnsupportedExport = errors.New("export is not CSV")
	ErrEmptyExport       = errors.New("export has no rows")
)

// RowAppender appends rows to the end of a sheet and returns the range it
// wrote to.
type RowAppender interface {
	AppendRows(ctx context.Context, rows [][]any) (string, error)
}

// Result describes one pushed export.
type Result struct {
	Range string
	Rows  int
}

// Exporter forwards CSV export payloads to a RowAppender.
type Exporter struct {
	sink RowAppender
}

func NewExporter(sink RowAppender) *Exporter {
	return &Exporter{sink: sink}
}

// Push parses data as CSV and appends every record, header included when
// includeHeader is true.
func (e *Exporter) Push(ctx context.Context, contentType string, data []byte, includeHeader bool) (Result, error) {
	if !isCSV(contentType) {
		return Result{}, fmt.Errorf("%w: %s", ErrUnsupportedExport, contentType)
	}
	rows, err := ParseCSV(data)
	if err != nil {
		return Result{}, err
	}
	if !includeHeader && len(rows) > 0 {
		rows = rows[1:]
	}
	if len(rows) == 0 {
		return Result{}, ErrEmptyExport
	}

	rng, err := e.sink.AppendRows(ctx, rows)
	if err != nil {
		return Result{}, fmt.Errorf("append export rows: %w", err)
	}
	return Result{Range: rng, Rows: len(rows)}, nil
}

// isCSV accepts text/csv and also an empty or generic content type, since
// some servers send exports as application/octet-stream.
func isCSV(contentType string) bool {
	if contentType == "" {
		return true
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	switch mt {
	case "text/csv", "application/csv", "text/plain", "application/octet-stream":
		return true
	}
	return false
}

// ParseCSV reads an export into spreadsheet rows. A leading UTF-8 BOM is
// dropped and blank lines are skipped.
func ParseCSV(data []byte) ([][]any, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	var rows [][]any
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse export CSV: %w", err)
		}
		if isBlank(record) {
			continue
		}
		row := make([]any, len(record))
		for i, cell := range record {
			row[i] = strings.TrimSpace(cell)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func isBlank(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
