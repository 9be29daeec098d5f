// Package notify dispatches guardian absence notifications. Delivery is
// fire-and-forget: one failing send never stops the sweep or other sends.
package notify

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Notification is one outbound guardian message.
type Notification struct {
	ID          string    // correlation ID for logs
	StudentName string    // display name of the absent student
	Contact     string    // guardian delivery address
	Date        string    // calendar day of the absence, "2006-01-02"
	Title       string    // message title
	Message     string    // message body
	EnqueuedAt  time.Time // when the notification entered the queue
}

// NewNotification creates a notification with a fresh correlation ID.
func NewNotification(studentName, contact, date string) *Notification {
	return &Notification{
		ID:          uuid.New().String(),
		StudentName: studentName,
		Contact:     contact,
		Date:        date,
		EnqueuedAt:  time.Now(),
	}
}

// Provider is a push delivery backend. Implementations must be safe for
// concurrent use.
type Provider interface {
	GetName() string
	IsEnabled() bool
	ValidateConfig() error
	Send(ctx context.Context, n *Notification) error
}
