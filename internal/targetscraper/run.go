package targetscraper

import (
	"context"
	"damadam-scraper/internal/components/assert"
	"damadam-scraper/internal/components/chrono"
	"damadam-scraper/internal/components/telemetry"
	"damadam-scraper/internal/rowstore"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	report_run_setup        = "run.setup"
	report_run_tags         = "run.tags"
	report_run_target_error = "run.target-error"
	report_run_stats        = "run.stats"
	report_run_log          = "run.log"
)

type StopReason string

const (
	// the whole worklist was processed
	StopExhausted StopReason = "exhausted"
	// the remaining budget could not fit another target
	StopBudget StopReason = "budget"
	// the context was cancelled between targets
	StopCancelled StopReason = "cancelled"
)

// RunStats summarizes one run, it is written once to the Dashboard table.
type RunStats struct {
	RunId      string
	Start      time.Time
	Processed  int
	Succeeded  int
	Failed     int
	Duration   time.Duration
	StopReason StopReason

	// worklist targets that were not started
	Remaining   int
	Interrupted []Target
	Results     []Result
	// status writes that failed, the rows they name may be inconsistent
	RunErrors []error
}

func (s RunStats) Values(loc *time.Location) []string {
	return []string{
		s.Start.In(loc).Format(TimestampLayout),
		strconv.Itoa(s.Processed),
		strconv.Itoa(s.Succeeded),
		strconv.Itoa(s.Failed),
		s.Duration.Round(time.Second).String(),
		string(s.StopReason),
		s.RunId,
	}
}

func (s RunStats) Summary() string {
	return fmt.Sprintf(
		"processed=%d succeeded=%d failed=%d remaining=%d interrupted=%d stop=%s duration=%s",
		s.Processed,
		s.Succeeded,
		s.Failed,
		s.Remaining,
		len(s.Interrupted),
		s.StopReason,
		s.Duration.Round(time.Second),
	)
}

type RunOptions struct {
	// wall clock limit of a run, 0 means no limit
	Budget time.Duration
	// lower bound of the per-target estimate used to decide whether another
	// target fits in the remaining budget
	MinTargetCost time.Duration
	// random delay between targets
	MinDelay time.Duration
	MaxDelay time.Duration
	// pause for BatchPause after every BatchSize targets, 0 disables it
	BatchSize  int
	BatchPause time.Duration
}

// Coordinator runs the scanner once and then processes the worklist
// sequentially within a time budget.
type Coordinator struct {
	store     rowstore.Store
	scanner   *Scanner
	processor *Processor
	clock     chrono.API
	tel       telemetry.API
	opts      RunOptions
	metrics   runMetrics

	// replaced in tests
	sleep  func(ctx context.Context, d time.Duration) error
	jitter func() float64
	newId  func() string
}

func NewCoordinator(
	store rowstore.Store,
	scanner *Scanner,
	processor *Processor,
	clock chrono.API,
	tel telemetry.API,
	opts RunOptions,
) *Coordinator {
	assert.NotNil(store)
	assert.NotNil(scanner)
	assert.NotNil(processor)
	assert.NotNil(clock)
	assert.NotNil(tel)

	if opts.MaxDelay < opts.MinDelay {
		opts.MaxDelay = opts.MinDelay
	}

	return &Coordinator{
		store:     store,
		scanner:   scanner,
		processor: processor,
		clock:     clock,
		tel:       telemetry.NewScopedAPI("coordinator", tel),
		opts:      opts,
		metrics:   newRunMetrics(),
		sleep:     sleepContext,
		jitter:    rand.Float64,
		newId:     uuid.NewString,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// EnsureTables creates missing tables and writes their headers.
func EnsureTables(ctx context.Context, store rowstore.Store) error {
	for _, table := range Tables {
		err := store.EnsureTable(ctx, table.Name, table.Headers)
		if err != nil {
			return fmt.Errorf("ensure table %s: %w", table.Name, err)
		}
	}
	return nil
}

func (c *Coordinator) Setup(ctx context.Context) error {
	err := EnsureTables(ctx, c.store)
	if err != nil {
		c.tel.ReportBroken(report_run_setup, err)
	}
	return err
}

// estimate is the expected cost of the next target.
func (c *Coordinator) estimate(spent time.Duration, done int) time.Duration {
	if done == 0 {
		return c.opts.MinTargetCost
	}
	return max(c.opts.MinTargetCost, spent/time.Duration(done))
}

func (c *Coordinator) fits(start time.Time, cost time.Duration) bool {
	if c.opts.Budget <= 0 {
		return true
	}
	elapsed := c.clock.Now().Sub(start)
	return elapsed+cost <= c.opts.Budget
}

func (c *Coordinator) pause(done int) time.Duration {
	delay := c.opts.MinDelay
	if spread := c.opts.MaxDelay - c.opts.MinDelay; spread > 0 {
		delay += time.Duration(c.jitter() * float64(spread))
	}
	if c.opts.BatchSize > 0 && done%c.opts.BatchSize == 0 {
		c.tel.ReportDebug("batch pause", "done", done, "pause", c.opts.BatchPause)
		delay += c.opts.BatchPause
	}
	return delay
}

// Run performs one run. Setup failures (the tables cannot be created or the
// Target table cannot be read) are returned before any target is touched and
// no RunStats row is written. Otherwise the RunStats row is always written,
// an error is only returned if that write fails.
func (c *Coordinator) Run(ctx context.Context) (RunStats, error) {
	stats := RunStats{
		RunId: c.newId(),
		Start: c.clock.Now(),
	}
	ctx, span := tracer.Start(ctx, "Run", trace.WithAttributes(
		attribute.String("run_id", stats.RunId),
	))
	defer span.End()
	c.tel.ReportDebug("run started", "run_id", stats.RunId, "budget", c.opts.Budget)

	err := c.Setup(ctx)
	if err != nil {
		return stats, err
	}

	tags, err := LoadTags(ctx, c.store)
	if err != nil {
		c.tel.ReportWarning(report_run_tags, err)
		tags = Tags{}
	}
	c.processor.Tags = tags

	scan, err := c.scanner.Scan(ctx)
	if err != nil {
		c.tel.ReportBroken(report_run_setup, err)
		return stats, err
	}
	stats.Interrupted = scan.Interrupted
	c.tel.ReportDebug(
		"scanned targets",
		"pending", len(scan.Pending),
		"interrupted", len(scan.Interrupted),
		"duplicates", len(scan.Duplicates),
	)

	// targets are finished even if ctx is cancelled mid-way, cancellation is
	// only observed between targets
	work := context.WithoutCancel(ctx)

	stats.StopReason = StopExhausted
	var spent time.Duration
	for i, target := range scan.Pending {
		if ctx.Err() != nil {
			stats.StopReason = StopCancelled
			stats.Remaining = len(scan.Pending) - i
			break
		}
		if !c.fits(stats.Start, c.estimate(spent, stats.Processed)) {
			stats.StopReason = StopBudget
			stats.Remaining = len(scan.Pending) - i
			break
		}

		result := c.processor.Process(work, target)
		stats.Processed++
		stats.Results = append(stats.Results, result)
		spent += result.Duration
		if result.Succeeded() {
			stats.Succeeded++
		} else {
			stats.Failed++
		}
		if result.RunErr != nil {
			c.tel.ReportBroken(report_run_target_error, result.RunErr, "run_id", stats.RunId)
			stats.RunErrors = append(stats.RunErrors, result.RunErr)
		}
		c.metrics.recordTarget(work, result)

		if i == len(scan.Pending)-1 {
			break
		}
		delay := c.pause(stats.Processed)
		if delay <= 0 {
			continue
		}
		if !c.fits(stats.Start, delay) {
			stats.StopReason = StopBudget
			stats.Remaining = len(scan.Pending) - i - 1
			break
		}
		err = c.sleep(ctx, delay)
		if err != nil {
			stats.StopReason = StopCancelled
			stats.Remaining = len(scan.Pending) - i - 1
			break
		}
	}

	stats.Duration = c.clock.Now().Sub(stats.Start)
	c.metrics.recordRun(work, stats)
	return stats, c.writeStats(work, stats)
}

func (c *Coordinator) writeStats(ctx context.Context, stats RunStats) error {
	loc := c.clock.Location()

	var statsErr error
	err := c.store.AppendRow(ctx, rowstore.TableDashboard, stats.Values(loc))
	if err != nil {
		c.tel.ReportBroken(report_run_stats, err, "run_id", stats.RunId)
		statsErr = fmt.Errorf("write run stats: %w", err)
	}

	detail := []string{stats.Summary(), "run=" + stats.RunId}
	for _, target := range stats.Interrupted {
		detail = append(detail, fmt.Sprintf("interrupted: %s (row %d)", target.Nickname, target.Row))
	}
	for _, runErr := range stats.RunErrors {
		detail = append(detail, "error: "+runErr.Error())
	}
	entry := LogEntry{
		Timestamp: c.clock.Now(),
		Nickname:  "*",
		Outcome:   "Run",
		Detail:    strings.Join(detail, "; "),
	}
	err = c.store.AppendRow(ctx, rowstore.TableLogs, entry.Values(loc))
	if err != nil {
		c.tel.ReportWarning(report_run_log, err, "run_id", stats.RunId)
	}

	c.tel.ReportDebug("run finished", "run_id", stats.RunId, "summary", stats.Summary())
	return statsErr
}
