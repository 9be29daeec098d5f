// Package report implements the manual absence sweep command.
package report

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jsalmela/attendant/internal/conf"
	"github.com/jsalmela/attendant/internal/datastore"
	"github.com/jsalmela/attendant/internal/notify"
	"github.com/jsalmela/attendant/internal/observability"
	"github.com/jsalmela/attendant/internal/scheduler"
)

// Command creates the report subcommand.
func Command(settings *conf.Settings) *cobra.Command {
	var date string

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Run the absence sweep for a date",
		Long: `Report records an ABSENT event for every enrolled student without an
attendance event on the given date and notifies their guardians. The sweep
is idempotent: re-running it for the same date records nothing new.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReport(settings, date)
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "Date to sweep in YYYY-MM-DD format, defaults to today")

	return cmd
}

func runReport(settings *conf.Settings, date string) error {
	loc := settings.Main.Location()
	now := time.Now().In(loc)
	if date != "" {
		parsed, err := time.ParseInLocation(conf.DateFormat, date, loc)
		if err != nil {
			return fmt.Errorf("invalid date %q, expected YYYY-MM-DD: %w", date, err)
		}
		now = parsed
	}

	ds := datastore.New(settings)
	if ds == nil {
		return fmt.Errorf("no database output enabled")
	}
	if err := ds.Open(); err != nil {
		return fmt.Errorf("opening datastore: %w", err)
	}
	defer ds.Close()

	metrics := observability.NewMetrics()

	provider := notify.NewShoutrrrProvider(
		settings.Notification.Enabled,
		settings.Notification.URLTemplate,
		time.Duration(settings.Notification.Timeout)*time.Second,
	)
	if err := provider.ValidateConfig(); err != nil {
		return fmt.Errorf("notification configuration: %w", err)
	}

	ctx := context.Background()
	dispatcher := notify.NewDispatcher(provider, settings.Notification.QueueSize, metrics)
	dispatcher.Start(ctx)
	// Stop drains queued notifications before returning.
	defer dispatcher.Stop()

	sched, err := scheduler.New(settings, ds, dispatcher, metrics)
	if err != nil {
		return fmt.Errorf("initializing scheduler: %w", err)
	}

	return sched.Sweep(ctx, now)
}
