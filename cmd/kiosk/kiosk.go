// Package kiosk implements the realtime attendance kiosk command.
package kiosk

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jsalmela/attendant/internal/camera"
	"github.com/jsalmela/attendant/internal/conf"
	"github.com/jsalmela/attendant/internal/datastore"
	"github.com/jsalmela/attendant/internal/facerec"
	"github.com/jsalmela/attendant/internal/hardware"
	"github.com/jsalmela/attendant/internal/logging"
	"github.com/jsalmela/attendant/internal/mqtt"
	"github.com/jsalmela/attendant/internal/notify"
	"github.com/jsalmela/attendant/internal/observability"
	"github.com/jsalmela/attendant/internal/processor"
	"github.com/jsalmela/attendant/internal/scheduler"
)

// OpenFrameSource and OpenOracle are wired in by a platform capture
// backend at build time. Frame acquisition and face encoding are external
// collaborators; the engine only consumes their output.
var (
	OpenFrameSource func(settings *conf.Settings) (camera.FrameSource, error)
	OpenOracle      func(settings *conf.Settings) (facerec.Oracle, error)
)

// Command creates the kiosk subcommand.
func Command(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "kiosk",
		Short: "Run the realtime attendance kiosk",
		RunE: func(cmd *cobra.Command, args []string) error {
			return RunKiosk(settings)
		},
	}
}

// RunKiosk runs the detection loop until interrupted.
func RunKiosk(settings *conf.Settings) error {
	if OpenFrameSource == nil || OpenOracle == nil {
		return fmt.Errorf("no capture backend configured: this build has no camera/recognition wiring")
	}

	logger := logging.ForService("kiosk")

	ds := datastore.New(settings)
	if ds == nil {
		return fmt.Errorf("no database output enabled")
	}
	if err := ds.Open(); err != nil {
		// A missing ledger is the one failure the engine must not limp
		// through: report and stop.
		return fmt.Errorf("opening datastore: %w", err)
	}
	defer func() {
		if err := ds.Close(); err != nil {
			logger.Error("failed to close datastore", "error", err)
		}
	}()

	metrics := observability.NewMetrics()

	provider := notify.NewShoutrrrProvider(
		settings.Notification.Enabled,
		settings.Notification.URLTemplate,
		time.Duration(settings.Notification.Timeout)*time.Second,
	)
	if err := provider.ValidateConfig(); err != nil {
		return fmt.Errorf("notification configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dispatcher := notify.NewDispatcher(provider, settings.Notification.QueueSize, metrics)
	dispatcher.Start(ctx)
	defer dispatcher.Stop()

	effects := processor.SideEffects{}
	if settings.Welcome.Door.Enabled {
		effects.Door = hardware.NewLoggedDoor(
			time.Duration(settings.Welcome.Door.HoldSeconds * float64(time.Second)))
	}
	if settings.Welcome.Display.Enabled {
		effects.Display = hardware.NewCharDisplay(nil, settings.Welcome.Display.Width)
	}
	if settings.Welcome.Audio.Enabled {
		effects.Player = hardware.NewWavPlayer(settings.Welcome.Audio.Path)
	}
	if settings.Realtime.MQTT.Enabled {
		effects.Mqtt = mqtt.NewClient(settings)
	}

	oracle, err := OpenOracle(settings)
	if err != nil {
		return fmt.Errorf("opening recognition oracle: %w", err)
	}

	proc, err := processor.New(settings, ds, oracle, effects, metrics)
	if err != nil {
		return fmt.Errorf("initializing processor: %w", err)
	}
	defer proc.Shutdown()

	sched, err := scheduler.New(settings, ds, dispatcher, metrics)
	if err != nil {
		return fmt.Errorf("initializing scheduler: %w", err)
	}

	source, err := OpenFrameSource(settings)
	if err != nil {
		return fmt.Errorf("opening frame source: %w", err)
	}
	defer func() {
		if err := source.Close(); err != nil {
			logger.Error("failed to close frame source", "error", err)
		}
	}()

	logger.Info("kiosk started",
		"tolerance", settings.Recognition.Tolerance,
		"dwell_seconds", settings.Recognition.DwellTime,
		"report_trigger", settings.Report.TriggerTime)

	pollInterval := time.Duration(settings.Report.PollInterval) * time.Second
	lastCheck := time.Now()
	var lastStatus string

	for {
		frame, err := source.Next(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				logger.Info("kiosk shutting down")
				return nil
			}
			logger.Error("frame capture failed", "error", err)
			continue
		}

		status := proc.ProcessFrame(ctx, frame)
		renderStatus(logger, effects.Display, status.Status, &lastStatus)

		// The scheduler check is interleaved on the frame loop, the same
		// way the report poll rides the capture loop in the original
		// kiosk. The trigger guard tolerates a late check.
		if now := time.Now().In(settings.Main.Location()); now.Sub(lastCheck) >= pollInterval {
			sched.Check(ctx, now)
			lastCheck = now
		}
	}
}

// renderStatus writes the SCANNING/FOUND/ENTER status line to the kiosk
// display, rewriting only when the line changes so the LCD is not hammered
// on every frame.
func renderStatus(logger *slog.Logger, display hardware.Display, status string, last *string) {
	if display == nil || status == *last {
		return
	}
	if err := display.Write(status, ""); err != nil {
		logger.Error("status display write failed", "error", err)
	}
	*last = status
}
