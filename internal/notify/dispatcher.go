package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/jsalmela/attendant/internal/logging"
	"github.com/jsalmela/attendant/internal/observability"
)

// dedupTTL is how long a sent (student, contact, date) triple suppresses
// re-sends. One day covers duplicate dispatch of the same absentee without
// suppressing the next day's report.
const dedupTTL = 24 * time.Hour

// Dispatcher queues guardian notifications and delivers them on a worker
// goroutine so the sweep never waits on the transport.
type Dispatcher struct {
	provider Provider
	queue    chan *Notification
	sent     *gocache.Cache
	metrics  *observability.Metrics
	logger   *slog.Logger

	startOnce sync.Once
	stopOnce  sync.Once
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewDispatcher creates a dispatcher with a bounded queue.
func NewDispatcher(provider Provider, queueSize int, metrics *observability.Metrics) *Dispatcher {
	if queueSize < 1 {
		queueSize = 64
	}
	return &Dispatcher{
		provider: provider,
		queue:    make(chan *Notification, queueSize),
		sent:     gocache.New(dedupTTL, 2*dedupTTL),
		metrics:  metrics,
		logger:   logging.ForService("notify"),
		done:     make(chan struct{}),
	}
}

// Start launches the delivery worker. Safe to call once.
func (d *Dispatcher) Start(ctx context.Context) {
	d.startOnce.Do(func() {
		ctx, d.cancel = context.WithCancel(ctx)
		go d.run(ctx)
	})
}

// Stop cancels the worker and waits for it to drain.
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() {
		if d.cancel != nil {
			d.cancel()
			<-d.done
		}
	})
}

// Notify enqueues an absence notification. An empty contact is skipped
// silently: not every absentee has a reachable guardian. A full queue drops
// the notification with a log entry rather than blocking the caller.
func (d *Dispatcher) Notify(studentName, contact, date string) {
	if contact == "" {
		d.logger.Debug("no guardian contact, skipping notification", "student", studentName, "date", date)
		return
	}

	if d.provider == nil || !d.provider.IsEnabled() {
		d.logger.Debug("notification provider disabled, skipping", "student", studentName, "date", date)
		return
	}

	// Keyed per student: siblings sharing one guardian contact each get
	// their own notification.
	key := dedupKey(studentName, contact, date)
	if _, already := d.sent.Get(key); already {
		d.logger.Debug("notification already dispatched today", "student", studentName, "date", date)
		return
	}

	n := NewNotification(studentName, contact, date)
	n.Title = fmt.Sprintf("Absence Alert: %s", studentName)
	n.Message = fmt.Sprintf(
		"Dear Guardian,\n\nStudent %s was marked ABSENT on %s.\n\nRegards,\nAttendant",
		studentName, date)

	select {
	case d.queue <- n:
		d.sent.Set(key, struct{}{}, dedupTTL)
	default:
		d.logger.Warn("notification queue full, dropping",
			"id", n.ID, "student", studentName, "date", date)
		d.metrics.IncNotificationErrors()
	}
}

func (d *Dispatcher) run(ctx context.Context) {
	defer close(d.done)

	for {
		select {
		case n := <-d.queue:
			d.deliver(ctx, n)
		case <-ctx.Done():
			// Drain what is already queued, then exit.
			for {
				select {
				case n := <-d.queue:
					d.deliver(context.Background(), n)
				default:
					return
				}
			}
		}
	}
}

// deliver sends one notification. Failures are logged and counted, never
// propagated: the ABSENT ledger write already happened and stays.
func (d *Dispatcher) deliver(ctx context.Context, n *Notification) {
	if err := d.provider.Send(ctx, n); err != nil {
		d.logger.Error("notification delivery failed",
			"id", n.ID, "student", n.StudentName, "date", n.Date,
			"provider", d.provider.GetName(), "error", err)
		d.metrics.IncNotificationErrors()
		return
	}

	d.logger.Info("notification delivered",
		"id", n.ID, "student", n.StudentName, "date", n.Date,
		"provider", d.provider.GetName(),
		"queued_for", time.Since(n.EnqueuedAt).String())
	d.metrics.IncNotificationsSent()
}

func dedupKey(studentName, contact, date string) string {
	return studentName + "|" + contact + "|" + date
}
