package targetscraper

import (
	"context"
	"damadam-scraper/internal/components/chrono"
	"damadam-scraper/internal/components/telemetry"
	"damadam-scraper/internal/rowstore"
	"damadam-scraper/internal/scrapers/damadam"
	"errors"
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"
)

type storeOp struct {
	Op     string
	Table  string
	Row    int
	Column int
	Value  string
}

func (o storeOp) String() string {
	if o.Op == "append" {
		return fmt.Sprintf("append %s r%d", o.Table, o.Row)
	}
	return fmt.Sprintf("update %s r%dc%d %s", o.Table, o.Row, o.Column, o.Value)
}

// memStore is an in-memory rowstore.Store that records every write and can
// be told to fail specific ones.
type memStore struct {
	mutex  sync.Mutex
	tables map[string][][]string
	ops    []storeOp
	fail   func(op storeOp) error
}

func newMemStore() *memStore {
	return &memStore{tables: map[string][][]string{}}
}

func (s *memStore) seed(table string, rows ...[]string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	for _, row := range rows {
		s.tables[table] = append(s.tables[table], slices.Clone(row))
	}
}

func (s *memStore) cell(table string, rowIndex, column int) string {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	rows := s.tables[table]
	if rowIndex < 1 || rowIndex > len(rows) {
		return ""
	}
	row := rows[rowIndex-1]
	if column >= len(row) {
		return ""
	}
	return row[column]
}

// data returns the rows below the header.
func (s *memStore) data(table string) [][]string {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	rows := s.tables[table]
	if len(rows) < 2 {
		return nil
	}
	return rows[1:]
}

func (s *memStore) opLog() []string {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	out := make([]string, len(s.ops))
	for i, op := range s.ops {
		out[i] = op.String()
	}
	return out
}

func (s *memStore) write(op storeOp) error {
	if s.fail != nil {
		err := s.fail(op)
		if err != nil {
			return err
		}
	}
	s.ops = append(s.ops, op)
	return nil
}

func (s *memStore) ReadAll(ctx context.Context, table string) ([]rowstore.Row, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	rows, ok := s.tables[table]
	if !ok {
		return nil, rowstore.ErrTableNotFound
	}
	out := make([]rowstore.Row, len(rows))
	for i, values := range rows {
		out[i] = rowstore.Row{Index: i + 1, Values: slices.Clone(values)}
	}
	return out, nil
}

func (s *memStore) AppendRow(ctx context.Context, table string, values []string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	rows, ok := s.tables[table]
	if !ok {
		return rowstore.ErrTableNotFound
	}
	err := s.write(storeOp{Op: "append", Table: table, Row: len(rows) + 1})
	if err != nil {
		return err
	}
	s.tables[table] = append(rows, slices.Clone(values))
	return nil
}

func (s *memStore) UpdateCell(ctx context.Context, table string, rowIndex, column int, value string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	rows, ok := s.tables[table]
	if !ok {
		return rowstore.ErrTableNotFound
	}
	err := s.write(storeOp{Op: "update", Table: table, Row: rowIndex, Column: column, Value: value})
	if err != nil {
		return err
	}
	for len(rows) < rowIndex {
		rows = append(rows, nil)
	}
	row := rows[rowIndex-1]
	for len(row) <= column {
		row = append(row, "")
	}
	row[column] = value
	rows[rowIndex-1] = row
	s.tables[table] = rows
	return nil
}

func (s *memStore) EnsureTable(ctx context.Context, table string, headers []string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if len(s.tables[table]) == 0 {
		s.tables[table] = [][]string{slices.Clone(headers)}
	}
	return nil
}

var testStart = time.Date(2024, time.June, 1, 9, 0, 0, 0, chrono.PKT())

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time           { return c.now }
func (c *fakeClock) Location() *time.Location { return chrono.PKT() }
func (c *fakeClock) Advance(d time.Duration)  { c.now = c.now.Add(d) }

// fakeFetcher advances the clock by cost on every fetch, nicknames without a
// record are not found.
type fakeFetcher struct {
	clock   *fakeClock
	cost    time.Duration
	records map[string]damadam.Record
	errs    map[string]error
	calls   []string
	onFetch func(nickname string)
	// leave ScrapedAt unset on returned records
	unstamped bool
}

func (f *fakeFetcher) Fetch(ctx context.Context, nickname string) (damadam.Record, error) {
	f.calls = append(f.calls, nickname)
	f.clock.Advance(f.cost)
	if f.onFetch != nil {
		f.onFetch(nickname)
	}
	if err, ok := f.errs[nickname]; ok {
		return damadam.Record{}, err
	}
	record, ok := f.records[nickname]
	if !ok {
		return damadam.Record{}, &damadam.FetchError{
			Kind:     damadam.NotFound,
			Nickname: nickname,
			Err:      errors.New("user not found"),
		}
	}
	if !f.unstamped {
		record.ScrapedAt = f.clock.Now()
	}
	return record, nil
}

type harness struct {
	store   *memStore
	clock   *fakeClock
	fetcher *fakeFetcher
	tel     *telemetry.Recorder
	slept   []time.Duration
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	clock := &fakeClock{now: testStart}
	return &harness{
		store: newMemStore(),
		clock: clock,
		fetcher: &fakeFetcher{
			clock:   clock,
			records: map[string]damadam.Record{},
			errs:    map[string]error{},
		},
		tel: &telemetry.Recorder{},
	}
}

func (h *harness) seedTargets(rows ...[]string) {
	h.store.seed(rowstore.TableTarget, TargetHeaders)
	h.store.seed(rowstore.TableTarget, rows...)
}

func (h *harness) scanner(maxTargets int) *Scanner {
	scanner := NewScanner(h.store, h.tel)
	scanner.MaxTargets = maxTargets
	return scanner
}

func (h *harness) processor() *Processor {
	return NewProcessor(h.store, h.fetcher, h.clock, h.tel)
}

func (h *harness) coordinator(opts RunOptions) *Coordinator {
	c := NewCoordinator(h.store, h.scanner(0), h.processor(), h.clock, h.tel, opts)
	c.sleep = func(ctx context.Context, d time.Duration) error {
		h.slept = append(h.slept, d)
		h.clock.Advance(d)
		return ctx.Err()
	}
	c.jitter = func() float64 { return 0.5 }
	c.newId = func() string { return "run-1" }
	return c
}

func (h *harness) status(row int) string {
	return h.store.cell(rowstore.TableTarget, row, targetStatus)
}

func (h *harness) remarks(row int) string {
	return h.store.cell(rowstore.TableTarget, row, targetRemarks)
}
