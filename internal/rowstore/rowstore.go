// Package rowstore is the narrow view of a spreadsheet the scraper needs:
// named tables of string rows that can be read whole, appended to, and have
// single cells overwritten.
package rowstore

import (
	"context"
	"errors"
)

const (
	TableTarget    = "Target"
	TableProfiles  = "Profiles"
	TableLogs      = "Logs"
	TableDashboard = "Dashboard"
	TableTags      = "Tags"
)

var ErrTableNotFound = errors.New("rowstore: table not found")

// Row is one row of a table. Index is the 1-based row number in the sheet,
// the header is row 1 so the first data row has Index 2.
type Row struct {
	Index  int
	Values []string
}

// Get returns the value of a 0-based column or "" if the row is shorter.
func (r Row) Get(column int) string {
	if column < 0 || column >= len(r.Values) {
		return ""
	}
	return r.Values[column]
}

// SplitHeader separates the header row from the data rows of a ReadAll
// result.
func SplitHeader(rows []Row) ([]string, []Row) {
	if len(rows) == 0 || rows[0].Index != 1 {
		return nil, rows
	}
	return rows[0].Values, rows[1:]
}

// Store has no transactional guarantees across calls, callers order their
// writes themselves.
type Store interface {
	// ReadAll returns every row in sheet order starting with the header,
	// blank rows in between are returned with no values.
	ReadAll(ctx context.Context, table string) ([]Row, error)
	// AppendRow adds a row after the last non-empty row of the table.
	AppendRow(ctx context.Context, table string, values []string) error
	// UpdateCell overwrites one cell, column is 0-based.
	UpdateCell(ctx context.Context, table string, rowIndex, column int, value string) error
	// EnsureTable creates the table if it does not exist and writes the
	// header when the table is empty.
	EnsureTable(ctx context.Context, table string, headers []string) error
}
