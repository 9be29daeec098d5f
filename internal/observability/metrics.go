// Package observability provides prometheus counters for the engine's own
// accounting. There is no exposition endpoint; the registry is private and
// readable by tests and log hooks.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the engine counters. A nil *Metrics is valid and all
// recording methods become no-ops, so tests can pass nil.
type Metrics struct {
	registry *prometheus.Registry

	FramesProcessed    prometheus.Counter
	FacesDetected      prometheus.Counter
	FacesMatched       prometheus.Counter
	AttendanceRecorded *prometheus.CounterVec
	ActionsDropped     prometheus.Counter
	ActionFailures     prometheus.Counter
	NotificationsSent  prometheus.Counter
	NotificationErrors prometheus.Counter
	SweepsCompleted    prometheus.Counter
}

// NewMetrics creates and registers the engine counters on a private registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		FramesProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "attendant_frames_processed_total",
			Help: "Number of camera frames run through the recognition oracle.",
		}),
		FacesDetected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "attendant_faces_detected_total",
			Help: "Number of face regions reported by the recognition oracle.",
		}),
		FacesMatched: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "attendant_faces_matched_total",
			Help: "Number of detected faces matched to an enrolled student.",
		}),
		AttendanceRecorded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "attendant_attendance_recorded_total",
			Help: "Attendance events written to the ledger, by status.",
		}, []string{"status"}),
		ActionsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "attendant_actions_dropped_total",
			Help: "Welcome actions dropped because the worker queue was full.",
		}),
		ActionFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "attendant_action_failures_total",
			Help: "Welcome actions that returned an error.",
		}),
		NotificationsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "attendant_notifications_sent_total",
			Help: "Guardian notifications handed to the transport successfully.",
		}),
		NotificationErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "attendant_notification_errors_total",
			Help: "Guardian notifications that failed to send.",
		}),
		SweepsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "attendant_sweeps_completed_total",
			Help: "Daily absence sweeps that ran to completion.",
		}),
	}

	registry.MustRegister(
		m.FramesProcessed,
		m.FacesDetected,
		m.FacesMatched,
		m.AttendanceRecorded,
		m.ActionsDropped,
		m.ActionFailures,
		m.NotificationsSent,
		m.NotificationErrors,
		m.SweepsCompleted,
	)

	return m
}

// Registry exposes the private registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// IncFramesProcessed records one processed frame.
func (m *Metrics) IncFramesProcessed() {
	if m != nil {
		m.FramesProcessed.Inc()
	}
}

// IncFacesDetected records n detected face regions.
func (m *Metrics) IncFacesDetected(n int) {
	if m != nil {
		m.FacesDetected.Add(float64(n))
	}
}

// IncFacesMatched records one matched face.
func (m *Metrics) IncFacesMatched() {
	if m != nil {
		m.FacesMatched.Inc()
	}
}

// IncAttendanceRecorded records one ledger write with the given status.
func (m *Metrics) IncAttendanceRecorded(status string) {
	if m != nil {
		m.AttendanceRecorded.WithLabelValues(status).Inc()
	}
}

// IncActionsDropped records one dropped action task.
func (m *Metrics) IncActionsDropped() {
	if m != nil {
		m.ActionsDropped.Inc()
	}
}

// IncActionFailures records one failed action.
func (m *Metrics) IncActionFailures() {
	if m != nil {
		m.ActionFailures.Inc()
	}
}

// IncNotificationsSent records one delivered notification.
func (m *Metrics) IncNotificationsSent() {
	if m != nil {
		m.NotificationsSent.Inc()
	}
}

// IncNotificationErrors records one failed notification.
func (m *Metrics) IncNotificationErrors() {
	if m != nil {
		m.NotificationErrors.Inc()
	}
}

// IncSweepsCompleted records one completed absence sweep.
func (m *Metrics) IncSweepsCompleted() {
	if m != nil {
		m.SweepsCompleted.Inc()
	}
}
