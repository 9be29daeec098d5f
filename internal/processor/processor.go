// Package processor implements the attendance session engine: the dwell
// confirmation state machine that turns noisy per-frame recognition results
// into a single confirmed attendance event per student per day, and the
// recorder that writes that event and triggers the one-time welcome
// sequence.
package processor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jsalmela/attendant/internal/camera"
	"github.com/jsalmela/attendant/internal/conf"
	"github.com/jsalmela/attendant/internal/datastore"
	"github.com/jsalmela/attendant/internal/errors"
	"github.com/jsalmela/attendant/internal/facerec"
	"github.com/jsalmela/attendant/internal/hardware"
	"github.com/jsalmela/attendant/internal/logging"
	"github.com/jsalmela/attendant/internal/mqtt"
	"github.com/jsalmela/attendant/internal/observability"
)

// UnknownLabel is the display label for faces that match no enrolled student.
const UnknownLabel = "Unknown"

// Frame status lines for the kiosk display overlay.
const (
	StatusScanning = "SCANNING..."
	statusFound    = "FOUND: %s"
	statusEnter    = "ENTER: %s"
)

// SideEffects bundles the welcome collaborators. Any field may be nil, in
// which case that side effect is skipped.
type SideEffects struct {
	Door    hardware.Door
	Display hardware.Display
	Player  hardware.Player
	Mqtt    mqtt.Client
}

// FrameStatus summarizes one processed frame for the kiosk display.
type FrameStatus struct {
	Status string   // current status line
	Labels []string // one label per detected face, in detection order
}

// Processor drives the dwell confirmation state machine.
type Processor struct {
	Settings *conf.Settings
	Ds       datastore.Interface
	Oracle   facerec.Oracle
	Matcher  *facerec.Matcher
	Session  *Session
	Metrics  *observability.Metrics
	Effects  SideEffects

	students  []datastore.Student
	encodings []facerec.Encoding

	workerQueue  chan Task
	workerCancel context.CancelFunc

	dwellThreshold time.Duration
	statusInterval time.Duration
	lastStatusLog  map[uint]time.Time
	logger         *slog.Logger
}

// New creates a processor, loads the roster, rebuilds the session from the
// ledger for today and starts the action worker pool.
func New(settings *conf.Settings, ds datastore.Interface, oracle facerec.Oracle,
	effects SideEffects, metrics *observability.Metrics) (*Processor, error) {

	p := &Processor{
		Settings:       settings,
		Ds:             ds,
		Oracle:         oracle,
		Matcher:        facerec.NewMatcher(settings.Recognition.Tolerance, settings.Recognition.MatchPolicy),
		Metrics:        metrics,
		Effects:        effects,
		dwellThreshold: time.Duration(settings.Recognition.DwellTime * float64(time.Second)),
		statusInterval: time.Duration(settings.Realtime.Interval) * time.Second,
		lastStatusLog:  make(map[uint]time.Time),
		workerQueue:    make(chan Task, defaultQueueSize),
		logger:         logging.ForService("processor"),
	}

	if err := p.LoadRoster(); err != nil {
		return nil, err
	}

	today := time.Now().In(settings.Main.Location()).Format(conf.DateFormat)
	session, err := RebuildSession(ds, today)
	if err != nil {
		return nil, err
	}
	p.Session = session

	if len(p.students) == 0 {
		p.logger.Warn("roster is empty, no one can be confirmed")
	}
	p.logger.Info("session initialized",
		"date", today,
		"roster_size", len(p.students),
		"already_confirmed", session.ConfirmedCount())

	p.startWorkerPool(defaultWorkers)
	return p, nil
}

// LoadRoster reads all enrolled students and decodes their face encodings.
// Students with a corrupt encoding are skipped with a log entry so one bad
// enrollment cannot take the kiosk down.
func (p *Processor) LoadRoster() error {
	students, err := p.Ds.GetAllStudents()
	if err != nil {
		return err
	}

	roster := make([]datastore.Student, 0, len(students))
	encodings := make([]facerec.Encoding, 0, len(students))
	for i := range students {
		encoding, err := facerec.UnmarshalEncoding(students[i].FaceEncoding)
		if err != nil {
			p.logger.Error("skipping student with invalid face encoding",
				"student_id", students[i].ID, "error", err)
			continue
		}
		roster = append(roster, students[i])
		encodings = append(encodings, encoding)
	}

	p.students = roster
	p.encodings = encodings
	return nil
}

// ProcessFrame runs one camera frame through the oracle and advances the
// state machine. An oracle error skips the frame; processing resumes on the
// next one.
func (p *Processor) ProcessFrame(ctx context.Context, frame camera.Frame) FrameStatus {
	return p.processFrameAt(ctx, frame, time.Now().In(p.Settings.Main.Location()))
}

// processFrameAt is ProcessFrame with an injectable clock for tests.
func (p *Processor) processFrameAt(ctx context.Context, frame camera.Frame, now time.Time) FrameStatus {
	status := FrameStatus{Status: StatusScanning}

	if p.Session.Rollover(now) {
		p.logger.Info("day changed, session state reset", "date", p.Session.Date())
	}

	detections, err := p.Oracle.DetectAndEncode(frame)
	if err != nil {
		// Transient recognition failure: skip this frame, keep scanning.
		p.logger.Debug("recognition failed for frame, skipping", "error", err)
		return status
	}

	p.Metrics.IncFramesProcessed()
	p.Metrics.IncFacesDetected(len(detections))

	matched := make(map[uint]bool)
	for i := range detections {
		label := p.processDetection(ctx, &detections[i], now, matched, &status)
		status.Labels = append(status.Labels, label)
	}

	if p.Settings.Recognition.DwellReset {
		p.Session.ClearMissedTimers(matched)
	}

	return status
}

// processDetection advances the state machine for a single detected face
// and returns its display label.
func (p *Processor) processDetection(ctx context.Context, detection *facerec.Detection,
	now time.Time, matched map[uint]bool, status *FrameStatus) string {

	idx := p.Matcher.Match(detection.Encoding, p.encodings)
	if idx == facerec.NoMatch {
		return UnknownLabel
	}

	student := &p.students[idx]
	name := student.DisplayName()
	matched[student.ID] = true
	p.Metrics.IncFacesMatched()

	if p.Session.IsConfirmed(student.ID) {
		if p.shouldLogStatus(student.ID, now) {
			p.logger.Debug("confirmed student in view", "student", name, "student_id", student.ID)
		}
		return name
	}

	entry, started := p.Session.Observe(student.ID, now)
	if started {
		p.logger.Debug("observing", "student", name, "student_id", student.ID)
		status.Status = fmt.Sprintf(statusFound, name)
		return name
	}

	if now.Sub(entry) >= p.dwellThreshold {
		status.Status = fmt.Sprintf(statusEnter, name)
		if err := p.Confirm(ctx, student, now); err != nil {
			p.logger.Error("failed to record attendance",
				"student", name, "student_id", student.ID, "error", err)
		}
		return name
	}

	status.Status = fmt.Sprintf(statusFound, name)
	if p.shouldLogStatus(student.ID, now) {
		p.logger.Debug("student under observation",
			"student", name, "elapsed", now.Sub(entry).Seconds())
	}
	return name
}

// shouldLogStatus rate limits repeated per-student status log lines. The
// frame loop is a single goroutine, so no locking here.
func (p *Processor) shouldLogStatus(studentID uint, now time.Time) bool {
	if p.statusInterval <= 0 {
		return true
	}
	if last, ok := p.lastStatusLog[studentID]; ok && now.Sub(last) < p.statusInterval {
		return false
	}
	if p.lastStatusLog == nil {
		p.lastStatusLog = make(map[uint]time.Time)
	}
	p.lastStatusLog[studentID] = now
	return true
}

// Confirm records a PRESENT attendance event for the student and triggers
// the one-time welcome sequence. It is idempotent: a student already
// confirmed in this session, or already present in the ledger for the day,
// is a silent no-op and never re-triggers side effects. The ledger write
// happens synchronously here; side effects are enqueued afterwards and
// their failure can never undo or retry the write.
func (p *Processor) Confirm(ctx context.Context, student *datastore.Student, at time.Time) error {
	if p.Session.IsConfirmed(student.ID) {
		return nil
	}

	event := &datastore.AttendanceEvent{
		StudentID:   student.ID,
		Date:        at.Format(conf.DateFormat),
		CheckInTime: at.Format(conf.TimeFormat),
		Status:      datastore.StatusPresent,
	}

	err := p.Ds.InsertAttendance(event)
	switch {
	case err == nil:
	case errors.Is(err, datastore.ErrEventExists):
		// Already settled for today, e.g. confirmed before a restart or
		// swept ABSENT before arrival. Cache it and stay quiet.
		p.Session.MarkConfirmed(student.ID)
		p.logger.Debug("attendance already recorded for today",
			"student_id", student.ID, "date", event.Date)
		return nil
	default:
		return err
	}

	p.Session.MarkConfirmed(student.ID)
	p.Metrics.IncAttendanceRecorded(datastore.StatusPresent)
	p.logger.Info("attendance recorded",
		"student", student.DisplayName(),
		"student_id", student.ID,
		"date", event.Date,
		"check_in", event.CheckInTime)

	for _, action := range p.getActionsForConfirmation(student, event) {
		p.enqueueTask(Task{Action: action})
	}
	return nil
}

// getActionsForConfirmation builds the action list for a confirmed student.
func (p *Processor) getActionsForConfirmation(student *datastore.Student, event *datastore.AttendanceEvent) []Action {
	var actions []Action

	actions = append(actions, &WelcomeAction{
		Settings: p.Settings,
		Effects:  p.Effects,
		Name:     student.DisplayName(),
		Metrics:  p.Metrics,
	})

	if p.Settings.Realtime.MQTT.Enabled && p.Effects.Mqtt != nil {
		actions = append(actions, &MqttAction{
			Client:  p.Effects.Mqtt,
			Topic:   p.Settings.Realtime.MQTT.Topic,
			Student: student.DisplayName(),
			Event:   *event,
		})
	}

	return actions
}

// Shutdown stops the worker pool. In-flight side effects may run to
// completion or be abandoned; either way confirmed events stay recorded.
func (p *Processor) Shutdown() {
	if p.workerCancel != nil {
		p.workerCancel()
	}
}
