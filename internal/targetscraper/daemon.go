package targetscraper

import (
	"context"
	"damadam-scraper/internal/components/assert"
	"damadam-scraper/internal/components/chrono"
	"damadam-scraper/internal/components/telemetry"
	"fmt"
	"slices"
	"sync/atomic"
)

const report_daemon_run = "daemon.run"

type Runner interface {
	Run(ctx context.Context) (RunStats, error)
}

type DaemonOptions struct {
	// cron spec of the ticks, defaults to the top of every hour
	Schedule string
	// hours (0-23, in the clock's location) in which a tick may start a run,
	// empty means every hour
	AllowedHours []int
	// run once immediately if the current hour is allowed
	RunOnStart bool
}

// Daemon starts runs on a schedule, only inside the allowed hours so runs stay
// out of the windows of other scrapers sharing the spreadsheet.
type Daemon struct {
	runner Runner
	cron   chrono.CronAPI
	clock  chrono.API
	tel    telemetry.API
	opts   DaemonOptions

	// set while a run is in progress, the start-up run happens outside of
	// the cron chain
	running atomic.Bool
}

func NewDaemon(
	runner Runner,
	cron chrono.CronAPI,
	clock chrono.API,
	tel telemetry.API,
	opts DaemonOptions,
) *Daemon {
	assert.NotNil(runner)
	assert.NotNil(cron)
	assert.NotNil(clock)
	assert.NotNil(tel)
	if opts.Schedule == "" {
		opts.Schedule = "0 * * * *"
	}
	return &Daemon{
		runner: runner,
		cron:   cron,
		clock:  clock,
		tel:    telemetry.NewScopedAPI("daemon", tel),
		opts:   opts,
	}
}

func (d *Daemon) allowed() bool {
	if len(d.opts.AllowedHours) == 0 {
		return true
	}
	hour := d.clock.Now().In(d.clock.Location()).Hour()
	return slices.Contains(d.opts.AllowedHours, hour)
}

// Tick runs once if the current hour is allowed and no other run is in
// progress, it reports whether a run was attempted.
func (d *Daemon) Tick(ctx context.Context) bool {
	if ctx.Err() != nil {
		return false
	}
	if !d.allowed() {
		d.tel.ReportDebug("outside of allowed hours, skipping")
		return false
	}
	if !d.running.CompareAndSwap(false, true) {
		d.tel.ReportDebug("previous run still in progress, skipping")
		return false
	}
	defer d.running.Store(false)

	stats, err := d.runner.Run(ctx)
	if err != nil {
		d.tel.ReportBroken(report_daemon_run, err)
		return true
	}
	d.tel.ReportDebug("run complete", "summary", stats.Summary())
	return true
}

// Start blocks until ctx is done, a run in progress is allowed to finish its
// current target before Start returns.
func (d *Daemon) Start(ctx context.Context) error {
	err := d.cron.Cron(d.opts.Schedule, func() {
		d.Tick(ctx)
	})
	if err != nil {
		return fmt.Errorf("schedule %q: %w", d.opts.Schedule, err)
	}
	if d.opts.RunOnStart {
		d.Tick(ctx)
	}

	<-ctx.Done()
	d.cron.Stop()
	return nil
}
