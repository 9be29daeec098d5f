// Package scheduler runs the end-of-day absence sweep: once per calendar
// day, every enrolled student without an attendance event is recorded
// ABSENT and their guardian is handed to the notification dispatcher.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jsalmela/attendant/internal/conf"
	"github.com/jsalmela/attendant/internal/datastore"
	"github.com/jsalmela/attendant/internal/errors"
	"github.com/jsalmela/attendant/internal/logging"
	"github.com/jsalmela/attendant/internal/observability"
)

// Notifier hands an absentee to the notification dispatcher. Delivery is
// fire-and-forget from the scheduler's point of view.
type Notifier interface {
	Notify(studentName, contact, date string)
}

// Scheduler decides when the daily sweep is due and executes it.
type Scheduler struct {
	settings *conf.Settings
	ds       datastore.Interface
	notifier Notifier
	run      *ReportRun
	metrics  *observability.Metrics
	logger   *slog.Logger

	triggerHour   int
	triggerMinute int
}

// New creates a scheduler from settings. The trigger time must already
// have passed validation, but a parse failure is still reported.
func New(settings *conf.Settings, ds datastore.Interface, notifier Notifier,
	metrics *observability.Metrics) (*Scheduler, error) {

	trigger, err := time.Parse(conf.TriggerTimeFormat, settings.Report.TriggerTime)
	if err != nil {
		return nil, errors.New(err).
			Component("scheduler").
			Category(errors.CategoryConfiguration).
			Context("trigger_time", settings.Report.TriggerTime).
			Build()
	}

	return &Scheduler{
		settings:      settings,
		ds:            ds,
		notifier:      notifier,
		run:           NewReportRun(),
		metrics:       metrics,
		logger:        logging.ForService("scheduler"),
		triggerHour:   trigger.Hour(),
		triggerMinute: trigger.Minute(),
	}, nil
}

// ReportRun exposes the run state, mainly for tests.
func (s *Scheduler) ReportRun() *ReportRun {
	return s.run
}

// Check fires the sweep when it is due. The guard is "current time at or
// past the trigger instant and not yet run today", not exact minute
// equality, so a poll interval coarser than a minute cannot silently skip
// the whole day. A failed sweep is not marked run and is retried on the
// next check.
func (s *Scheduler) Check(ctx context.Context, now time.Time) {
	if !s.settings.Report.Enabled {
		return
	}

	if s.run.RanOn(now) {
		return
	}

	trigger := time.Date(now.Year(), now.Month(), now.Day(),
		s.triggerHour, s.triggerMinute, 0, 0, now.Location())
	if now.Before(trigger) {
		return
	}

	if err := s.Sweep(ctx, now); err != nil {
		s.logger.Error("absence sweep failed, will retry on next check", "error", err)
		return
	}
	s.run.MarkRun(now)
}

// Sweep records an ABSENT event for every enrolled student with no
// attendance event today and notifies their guardians. The two reads form
// the snapshot; the conditional insert makes the write idempotent, so a
// student confirmed present mid-sweep simply wins the race and is skipped.
func (s *Scheduler) Sweep(ctx context.Context, now time.Time) error {
	date := now.Format(conf.DateFormat)
	s.logger.Info("running end of day absence sweep", "date", date)

	students, err := s.ds.GetAllStudents()
	if err != nil {
		return fmt.Errorf("loading roster: %w", err)
	}

	events, err := s.ds.EventsForDate(date)
	if err != nil {
		return fmt.Errorf("loading attendance for %s: %w", date, err)
	}

	seen := make(map[uint]struct{}, len(events))
	for i := range events {
		seen[events[i].StudentID] = struct{}{}
	}

	var absentees int
	for i := range students {
		student := &students[i]
		if _, ok := seen[student.ID]; ok {
			continue
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}

		err := s.ds.InsertAttendance(&datastore.AttendanceEvent{
			StudentID: student.ID,
			Date:      date,
			Status:    datastore.StatusAbsent,
		})
		switch {
		case err == nil:
		case errors.Is(err, datastore.ErrEventExists):
			// Confirmed present while the sweep was running; their record
			// stands and no absence is reported.
			continue
		default:
			s.logger.Error("failed to record absence",
				"student_id", student.ID, "date", date, "error", err)
			continue
		}

		absentees++
		s.metrics.IncAttendanceRecorded(datastore.StatusAbsent)
		s.logger.Info("student absent",
			"student", student.DisplayName(), "student_id", student.ID, "date", date)

		if s.notifier != nil {
			s.notifier.Notify(student.DisplayName(), student.GuardianContact, date)
		}
	}

	s.metrics.IncSweepsCompleted()
	s.logger.Info("absence sweep completed",
		"date", date, "roster_size", len(students), "absentees", absentees)
	return nil
}
