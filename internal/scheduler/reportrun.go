package scheduler

import (
	"sync"
	"time"

	"github.com/jsalmela/attendant/internal/conf"
)

// ReportRun tracks whether the daily sweep has already executed for a
// calendar day. It is a date stamp, not a boolean: crossing midnight makes
// it stale automatically, with no reset hook to forget.
type ReportRun struct {
	mu      sync.Mutex
	lastRun string
}

// NewReportRun creates a ReportRun that has never fired.
func NewReportRun() *ReportRun {
	return &ReportRun{}
}

// RanOn reports whether the sweep already completed for the given day.
func (r *ReportRun) RanOn(now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastRun == now.Format(conf.DateFormat)
}

// MarkRun records a completed sweep for the given day.
func (r *ReportRun) MarkRun(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastRun = now.Format(conf.DateFormat)
}

// LastRunDate returns the date stamp of the last completed sweep, empty if
// none.
func (r *ReportRun) LastRunDate() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastRun
}
