// Package sheets implements rowstore.Store on top of the Google Sheets API,
// each table is a worksheet of the spreadsheet.
package sheets

import (
	"context"
	"damadam-scraper/internal/components/assert"
	"damadam-scraper/internal/components/telemetry"
	"damadam-scraper/internal/rowstore"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/oauth2/google"
	"golang.org/x/time/rate"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"
)

const (
	report_sheets_retry        = "sheets.retry"
	report_sheets_header       = "sheets.header"
	report_sheets_create_table = "sheets.create-table"
)

const valueInputOption = "USER_ENTERED"

type Options struct {
	// a spreadsheet url or id
	Spreadsheet string
	// minimum time between two writes, 0 disables pacing
	WriteDelay time.Duration
	// defaults to 3
	MaxRetries uint64
	// the first retry waits this long, later ones back off exponentially,
	// defaults to 5 seconds
	InitialBackoff time.Duration
}

type Store struct {
	svc           *sheetsapi.Service
	spreadsheetId string
	limiter       *rate.Limiter
	opts          Options
	tel           telemetry.API

	mu     sync.Mutex
	titles map[string]struct{}
}

// New authenticates with a service account credentials payload (the json
// downloaded from the cloud console).
func New(ctx context.Context, credentialsJson []byte, opts Options, tel telemetry.API) (*Store, error) {
	cfg, err := google.JWTConfigFromJSON(credentialsJson, sheetsapi.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("parse service account credentials: %w", err)
	}
	svc, err := sheetsapi.NewService(ctx, option.WithHTTPClient(cfg.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return NewWithService(svc, opts, tel)
}

func NewWithService(svc *sheetsapi.Service, opts Options, tel telemetry.API) (*Store, error) {
	assert.NotNil(svc)
	assert.NotNil(tel)

	id, err := SpreadsheetId(opts.Spreadsheet)
	if err != nil {
		return nil, err
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = 3
	}
	if opts.InitialBackoff <= 0 {
		opts.InitialBackoff = 5 * time.Second
	}

	limit := rate.Inf
	if opts.WriteDelay > 0 {
		limit = rate.Every(opts.WriteDelay)
	}

	return &Store{
		svc:           svc,
		spreadsheetId: id,
		limiter:       rate.NewLimiter(limit, 1),
		opts:          opts,
		tel:           telemetry.NewScopedAPI("sheets", tel),
	}, nil
}

// isRateLimited reports whether the api refused a call before doing any work:
// rate limits and quota exhaustion.
func isRateLimited(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		if apiErr.Code == http.StatusTooManyRequests {
			return true
		}
		return strings.Contains(strings.ToLower(apiErr.Message), "quota")
	}
	lower := strings.ToLower(err.Error())
	return strings.Contains(lower, "429") || strings.Contains(lower, "quota")
}

// isRetryable also repeats server side errors, only safe for idempotent calls.
func isRetryable(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code >= 500 {
		return true
	}
	return isRateLimited(err)
}

func (s *Store) retry(ctx context.Context, what string, retryable func(error) bool, call func() error) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = s.opts.InitialBackoff
	policy.Multiplier = 2
	policy.MaxElapsedTime = 0

	op := func() error {
		err := call()
		if err == nil {
			return nil
		}
		if ctx.Err() != nil || !retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		s.tel.ReportWarning(report_sheets_retry, err, "call", what, "wait", wait.String())
	}

	err := backoff.RetryNotify(
		op,
		backoff.WithContext(backoff.WithMaxRetries(policy, s.opts.MaxRetries), ctx),
		notify,
	)
	if err != nil {
		return fmt.Errorf("sheets: %s: %w", what, err)
	}
	return nil
}

func (s *Store) write(ctx context.Context, what string, retryable func(error) bool, call func() error) error {
	return s.retry(ctx, what, retryable, func() error {
		err := s.limiter.Wait(ctx)
		if err != nil {
			return backoff.Permanent(err)
		}
		return call()
	})
}

func (s *Store) loadTitles(ctx context.Context) (map[string]struct{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.titles != nil {
		return s.titles, nil
	}

	var spreadsheet *sheetsapi.Spreadsheet
	err := s.retry(ctx, "get spreadsheet", isRetryable, func() error {
		var err error
		spreadsheet, err = s.svc.Spreadsheets.Get(s.spreadsheetId).
			Fields("sheets.properties.title").
			Context(ctx).
			Do()
		return err
	})
	if err != nil {
		return nil, err
	}

	titles := map[string]struct{}{}
	for _, sheet := range spreadsheet.Sheets {
		if sheet.Properties != nil {
			titles[sheet.Properties.Title] = struct{}{}
		}
	}
	s.titles = titles
	return titles, nil
}

func (s *Store) hasTable(ctx context.Context, table string) (bool, error) {
	titles, err := s.loadTitles(ctx)
	if err != nil {
		return false, err
	}
	_, ok := titles[table]
	return ok, nil
}

func (s *Store) getValues(ctx context.Context, a1 string) ([][]interface{}, error) {
	var res *sheetsapi.ValueRange
	err := s.retry(ctx, "read "+a1, isRetryable, func() error {
		var err error
		res, err = s.svc.Spreadsheets.Values.Get(s.spreadsheetId, a1).
			ValueRenderOption("FORMATTED_VALUE").
			Context(ctx).
			Do()
		return err
	})
	if err != nil {
		return nil, err
	}
	return res.Values, nil
}

func toStrings(values []interface{}) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = fmt.Sprint(v)
	}
	return out
}

func toInterfaces(values []string) []interface{} {
	out := make([]interface{}, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

func (s *Store) ReadAll(ctx context.Context, table string) ([]rowstore.Row, error) {
	ok, err := s.hasTable(ctx, table)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", rowstore.ErrTableNotFound, table)
	}

	values, err := s.getValues(ctx, quoteSheet(table))
	if err != nil {
		return nil, err
	}
	rows := make([]rowstore.Row, 0, len(values))
	for i, row := range values {
		rows = append(rows, rowstore.Row{
			Index:  i + 1,
			Values: toStrings(row),
		})
	}
	return rows, nil
}

func (s *Store) AppendRow(ctx context.Context, table string, values []string) error {
	body := &sheetsapi.ValueRange{Values: [][]interface{}{toInterfaces(values)}}
	// a server error may arrive after the row was inserted
	return s.write(ctx, "append to "+table, isRateLimited, func() error {
		_, err := s.svc.Spreadsheets.Values.Append(s.spreadsheetId, quoteSheet(table)+"!A1", body).
			ValueInputOption(valueInputOption).
			InsertDataOption("INSERT_ROWS").
			Context(ctx).
			Do()
		return err
	})
}

func (s *Store) UpdateCell(ctx context.Context, table string, rowIndex, column int, value string) error {
	if rowIndex < 2 {
		return fmt.Errorf("sheets: refusing to update header row %d of %s", rowIndex, table)
	}
	a1 := cellRange(table, rowIndex, column)
	body := &sheetsapi.ValueRange{Values: [][]interface{}{{value}}}
	return s.write(ctx, "update "+a1, isRetryable, func() error {
		_, err := s.svc.Spreadsheets.Values.Update(s.spreadsheetId, a1, body).
			ValueInputOption(valueInputOption).
			Context(ctx).
			Do()
		return err
	})
}

func (s *Store) createTable(ctx context.Context, table string, columns int) error {
	props := &sheetsapi.SheetProperties{Title: table}
	if columns > 0 {
		props.GridProperties = &sheetsapi.GridProperties{
			ColumnCount: int64(columns),
			RowCount:    1000,
		}
	}
	req := &sheetsapi.BatchUpdateSpreadsheetRequest{
		Requests: []*sheetsapi.Request{{
			AddSheet: &sheetsapi.AddSheetRequest{Properties: props},
		}},
	}
	err := s.write(ctx, "create "+table, isRateLimited, func() error {
		_, err := s.svc.Spreadsheets.BatchUpdate(s.spreadsheetId, req).
			Context(ctx).
			Do()
		return err
	})
	if err != nil {
		s.tel.ReportBroken(report_sheets_create_table, err, "table", table)
		return err
	}

	s.mu.Lock()
	s.titles[table] = struct{}{}
	s.mu.Unlock()
	return nil
}

func (s *Store) EnsureTable(ctx context.Context, table string, headers []string) error {
	// worksheets may have been removed by hand since the last run
	s.mu.Lock()
	s.titles = nil
	s.mu.Unlock()

	ok, err := s.hasTable(ctx, table)
	if err != nil {
		return err
	}
	if !ok {
		err = s.createTable(ctx, table, len(headers))
		if err != nil {
			return err
		}
	}
	if len(headers) == 0 {
		return nil
	}

	current, err := s.getValues(ctx, headerRange(table))
	if err != nil {
		return err
	}
	if len(current) > 0 && len(current[0]) > 0 {
		existing := toStrings(current[0])
		if strings.Join(existing, "\x00") != strings.Join(headers, "\x00") {
			s.tel.ReportWarning(
				report_sheets_header,
				fmt.Errorf("header of %s differs from the expected columns", table),
				"existing", existing,
				"expected", headers,
			)
		}
		return nil
	}

	body := &sheetsapi.ValueRange{Values: [][]interface{}{toInterfaces(headers)}}
	return s.write(ctx, "write header of "+table, isRetryable, func() error {
		_, err := s.svc.Spreadsheets.Values.Update(s.spreadsheetId, quoteSheet(table)+"!A1", body).
			ValueInputOption("RAW").
			Context(ctx).
			Do()
		return err
	})
}
