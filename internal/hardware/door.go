// Package hardware holds the welcome side-effect collaborators: door
// actuator, character display and greeting audio. All of them are
// fire-and-forget from the engine's point of view; failures are logged by
// the caller and never propagate to the detection loop.
package hardware

import (
	"context"
	"log/slog"
	"time"

	"github.com/jsalmela/attendant/internal/logging"
)

// Door actuates the entry door. Cycle opens the door, holds it for the
// configured period and closes it again.
type Door interface {
	Cycle(ctx context.Context) error
}

// LoggedDoor is the default door implementation. Real servo control is
// platform glue wired in at the deployment edge; this implementation keeps
// the open/hold/close timing contract and logs the transitions.
type LoggedDoor struct {
	hold   time.Duration
	logger *slog.Logger
}

// NewLoggedDoor creates a door that holds open for the given duration.
func NewLoggedDoor(hold time.Duration) *LoggedDoor {
	return &LoggedDoor{
		hold:   hold,
		logger: logging.ForService("door"),
	}
}

// Cycle opens, holds and closes the door, honoring context cancellation
// during the hold period.
func (d *LoggedDoor) Cycle(ctx context.Context) error {
	d.logger.Info("door opening")

	select {
	case <-time.After(d.hold):
	case <-ctx.Done():
		d.logger.Info("door hold interrupted", "error", ctx.Err())
		return ctx.Err()
	}

	d.logger.Info("door closing")
	return nil
}
