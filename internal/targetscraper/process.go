package targetscraper

import (
	"context"
	"damadam-scraper/internal/components/assert"
	"damadam-scraper/internal/components/chrono"
	"damadam-scraper/internal/components/telemetry"
	"damadam-scraper/internal/rowstore"
	"damadam-scraper/internal/scrapers/damadam"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("damadam-scraper/internal/targetscraper")

const (
	report_processor_mark_processing = "processor.mark-processing"
	report_processor_write_remarks   = "processor.write-remarks"
	report_processor_append_profile  = "processor.append-profile"
	report_processor_write_status    = "processor.write-status"
	report_processor_append_log      = "processor.append-log"
	report_processor_fetch           = "processor.fetch"
)

// WriteError is the failure class of a target whose Profiles row could not
// be appended.
const WriteError = "WriteError"

const (
	OutcomeCompleted = "Completed"
	OutcomeFailed    = "Failed"
)

type Fetcher interface {
	Fetch(ctx context.Context, nickname string) (damadam.Record, error)
}

// Result is what happened to one target.
type Result struct {
	Target Target
	// Completed or Failed. Pending when the target could not be marked as
	// Processing and was never fetched, Processing when the terminal status
	// could not be written.
	Status Status
	// failure class, empty on success
	Class   string
	Remarks string
	// set when a status write failed, the row may not reflect the outcome
	RunErr   error
	Started  time.Time
	Duration time.Duration
}

func (r Result) Succeeded() bool {
	return r.Status == StatusCompleted
}

// Processor drives one target at a time through
// Pending -> Processing -> Completed | Failed. It is the only writer of the
// status and remarks cells of a Target row.
type Processor struct {
	store   rowstore.Store
	fetcher Fetcher
	clock   chrono.API
	tel     telemetry.API

	// fills the tags column of the Profiles row
	Tags Tags
	// write link columns as IMAGE/HYPERLINK formulas
	Formulas bool
}

func NewProcessor(store rowstore.Store, fetcher Fetcher, clock chrono.API, tel telemetry.API) *Processor {
	assert.NotNil(store)
	assert.NotNil(fetcher)
	assert.NotNil(clock)
	assert.NotNil(tel)
	return &Processor{
		store:   store,
		fetcher: fetcher,
		clock:   clock,
		tel:     telemetry.NewScopedAPI("processor", tel),
		Tags:    Tags{},
	}
}

func failureMessage(err error) string {
	var fetchErr *damadam.FetchError
	if errors.As(err, &fetchErr) && fetchErr.Err != nil {
		err = fetchErr.Err
	}
	message := strings.Join(strings.Fields(err.Error()), " ")
	if len([]rune(message)) > 200 {
		message = string([]rune(message)[:200]) + "…"
	}
	return message
}

func summarize(record damadam.Record) string {
	var parts []string
	if record.Followers != "" {
		parts = append(parts, record.Followers+" followers")
	}
	if record.Joined != "" {
		parts = append(parts, "joined "+record.Joined)
	}
	if record.Verification != "" && record.Verification != damadam.Verified {
		parts = append(parts, string(record.Verification))
	}
	if len(parts) == 0 {
		return "Profile saved"
	}
	return strings.Join(parts, ", ")
}

func (p *Processor) stamp() string {
	return p.clock.Now().In(p.clock.Location()).Format(TimestampLayout)
}

// Process never returns an error, every failure ends up in the Result.
func (p *Processor) Process(ctx context.Context, target Target) (result Result) {
	ctx, span := tracer.Start(ctx, "Process", trace.WithAttributes(
		attribute.String("nickname", target.Nickname),
		attribute.Int("row", target.Row),
	))
	defer span.End()

	result = Result{
		Target:  target,
		Status:  StatusPending,
		Started: p.clock.Now(),
	}
	defer func() {
		result.Duration = p.clock.Now().Sub(result.Started)
		if !result.Succeeded() {
			span.SetStatus(codes.Error, result.Remarks)
		}
	}()

	err := p.store.UpdateCell(ctx, rowstore.TableTarget, target.Row, targetStatus, StatusProcessing.String())
	if err != nil {
		p.tel.ReportBroken(report_processor_mark_processing, err, "nickname", target.Nickname, "row", target.Row)
		result.Class = WriteError
		result.Remarks = "could not mark as Processing: " + failureMessage(err)
		result.RunErr = fmt.Errorf("mark %s (row %d) processing: %w", target.Nickname, target.Row, err)
		return result
	}
	result.Status = StatusProcessing

	started := "Started @ " + p.clock.Now().In(p.clock.Location()).Format(ClockLayout)
	err = p.store.UpdateCell(ctx, rowstore.TableTarget, target.Row, targetRemarks, started)
	if err != nil {
		p.tel.ReportWarning(report_processor_write_remarks, err, "nickname", target.Nickname)
	}

	record, err := p.fetcher.Fetch(ctx, target.Nickname)
	if err != nil {
		kind := damadam.KindOf(err)
		p.tel.ReportDebug(report_processor_fetch, "nickname", target.Nickname, "kind", kind, "err", err)
		p.finish(ctx, &result, StatusFailed, string(kind), failureMessage(err))
		return result
	}

	record.Tags = p.Tags.For(target.Nickname)
	record.Source = target.Source
	if record.Nickname == "" {
		record.Nickname = target.Nickname
	}
	if record.ScrapedAt.IsZero() {
		record.ScrapedAt = p.clock.Now()
	}

	err = p.store.AppendRow(ctx, rowstore.TableProfiles, EncodeProfile(record, p.clock.Location(), p.Formulas))
	if err != nil {
		p.tel.ReportBroken(report_processor_append_profile, err, "nickname", target.Nickname)
		p.finish(ctx, &result, StatusFailed, WriteError, "append profile: "+failureMessage(err))
		return result
	}

	p.finish(ctx, &result, StatusCompleted, "", summarize(record))
	return result
}

// finish writes the remarks, then the terminal status, then the audit entry.
// The status cell is written last so that it is only observed once
// everything it implies has happened.
func (p *Processor) finish(ctx context.Context, result *Result, status Status, class, message string) {
	target := result.Target
	detail := message
	if class != "" {
		detail = class + ": " + message
	}
	result.Class = class
	result.Remarks = detail + " @ " + p.stamp()

	err := p.store.UpdateCell(ctx, rowstore.TableTarget, target.Row, targetRemarks, result.Remarks)
	if err != nil {
		p.tel.ReportWarning(report_processor_write_remarks, err, "nickname", target.Nickname)
	}

	err = p.store.UpdateCell(ctx, rowstore.TableTarget, target.Row, targetStatus, status.String())
	if err != nil {
		p.tel.ReportBroken(
			report_processor_write_status,
			err,
			"nickname", target.Nickname,
			"row", target.Row,
			"status", status.String(),
		)
		result.RunErr = fmt.Errorf(
			"write %s status of %s (row %d), row left in Processing: %w",
			status, target.Nickname, target.Row, err,
		)
	} else {
		result.Status = status
	}

	outcome := OutcomeCompleted
	if status != StatusCompleted {
		outcome = OutcomeFailed
	}
	entry := LogEntry{
		Timestamp: p.clock.Now(),
		Nickname:  target.Nickname,
		Outcome:   outcome,
		Detail:    detail,
	}
	err = p.store.AppendRow(ctx, rowstore.TableLogs, entry.Values(p.clock.Location()))
	if err != nil {
		p.tel.ReportWarning(report_processor_append_log, err, "nickname", target.Nickname)
	}
}
