package telemetry

import (
	"fmt"
	"strings"
	"sync"
)

// Report is a single call made to a Recorder.
type Report struct {
	Kind   string
	Id     string
	Params []any
}

func (r Report) String() string {
	parts := make([]string, len(r.Params))
	for i, p := range r.Params {
		parts[i] = fmt.Sprint(p)
	}
	return fmt.Sprintf("%s %s [%s]", r.Kind, r.Id, strings.Join(parts, ", "))
}

// Recorder is an API that keeps every report in memory, tests use it to assert
// that a failure was reported instead of silently dropped.
type Recorder struct {
	mutex   sync.Mutex
	reports []Report
}

func (r *Recorder) add(kind, id string, params []any) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.reports = append(r.reports, Report{Kind: kind, Id: id, Params: params})
}

func (r *Recorder) ReportBroken(id string, params ...any)  { r.add("broken", id, params) }
func (r *Recorder) ReportWarning(id string, params ...any) { r.add("warning", id, params) }
func (r *Recorder) ReportDebug(msg string, params ...any)  { r.add("debug", msg, params) }
func (r *Recorder) ReportCount(id string, count int64)     { r.add("count", id, []any{count}) }

// Reports returns every report of the given kind ("broken", "warning", "debug", "count").
func (r *Recorder) Reports(kind string) []Report {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	var out []Report
	for _, report := range r.reports {
		if report.Kind == kind {
			out = append(out, report)
		}
	}
	return out
}
