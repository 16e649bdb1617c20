package schema

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	studyerrors "cbcrcli/internal/errors"
	"cbcrcli/pkg/contracts/domain"
)

// Dataset is the outcome of loading one CbCR table
type Dataset struct {
	Records         []domain.FirmRecord
	Columns         []string // canonical columns present, in schema order
	UnmappedHeaders []string
	RowsRead        int
	RowsSkipped     int
}

// HasColumn reports whether the canonical column appeared in the source header
func (d *Dataset) HasColumn(field string) bool {
	for _, c := range d.Columns {
		if c == field {
			return true
		}
	}
	return false
}

// LoadCSV reads a CbCR table from a CSV file
func LoadCSV(path string, logger *slog.Logger) (*Dataset, error) {
	if logger == nil {
		logger = slog.Default()
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset: %w", err)
	}
	defer f.Close()

	ds, err := Read(f, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset %s: %w", path, err)
	}

	logger.Info("dataset loaded",
		slog.String("path", path),
		slog.Int("rows", len(ds.Records)),
		slog.Int("skipped", ds.RowsSkipped),
		slog.Int("unmapped_headers", len(ds.UnmappedHeaders)))

	return ds, nil
}

// Read parses CSV content into canonical records. Rows that cannot be read
// are skipped and counted, never fatal. Malformed numeric cells coerce to
// absent values.
func Read(r io.Reader, logger *slog.Logger) (*Dataset, error) {
	if logger == nil {
		logger = slog.Default()
	}

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err != nil {
		return nil, studyerrors.NewParsingError("dataset has no header row", err)
	}
	// Strip any byte order mark Excel exports leave on the first heading
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\uFEFF")
	}

	columns, unmapped := MapHeaders(header)
	if len(columns) == 0 {
		return nil, studyerrors.NewParsingError("no recognizable columns in header row", nil).
			WithContext("headers", header)
	}
	for _, h := range unmapped {
		logger.Debug("ignoring unknown column", slog.String("header", h))
	}

	ds := &Dataset{
		Columns:         presentColumns(columns),
		UnmappedHeaders: unmapped,
	}

	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			logger.Warn("skipping unreadable row", slog.String("error", err.Error()))
			ds.RowsSkipped++
			continue
		}

		ds.RowsRead++
		if rowEmpty(row, columns) {
			ds.RowsSkipped++
			continue
		}

		ds.Records = append(ds.Records, buildRecord(row, columns))
	}

	return ds, nil
}

// presentColumns lists the mapped canonical columns in schema order
func presentColumns(columns HeaderMap) []string {
	var present []string
	for _, f := range domain.TextFields() {
		if columns.Has(f) {
			present = append(present, f)
		}
	}
	for _, f := range domain.NumericFields() {
		if columns.Has(f) {
			present = append(present, f)
		}
	}
	return present
}

// rowEmpty reports whether every mapped cell in the row is blank
func rowEmpty(row []string, columns HeaderMap) bool {
	for _, idx := range columns {
		if idx < len(row) && strings.TrimSpace(row[idx]) != "" {
			return false
		}
	}
	return true
}

// buildRecord extracts a canonical record from a raw row. Cells beyond the
// row's length count as absent, which tolerates ragged exports.
func buildRecord(row []string, columns HeaderMap) domain.FirmRecord {
	cell := func(field string) (string, bool) {
		idx, ok := columns[field]
		if !ok || idx >= len(row) {
			return "", false
		}
		return row[idx], true
	}

	var rec domain.FirmRecord
	for _, f := range domain.TextFields() {
		if raw, ok := cell(f); ok && !IsMissingToken(raw) {
			rec.SetText(f, strings.TrimSpace(raw))
		}
	}
	for _, f := range domain.NumericFields() {
		if raw, ok := cell(f); ok {
			rec.SetNumeric(f, ParseNumeric(raw))
		}
	}
	return rec
}
