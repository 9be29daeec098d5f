// Package cmd assembles the attendant command line interface.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jsalmela/attendant/cmd/enroll"
	"github.com/jsalmela/attendant/cmd/kiosk"
	"github.com/jsalmela/attendant/cmd/report"
	"github.com/jsalmela/attendant/internal/conf"
)

// RootCommand creates and returns the root command
func RootCommand(settings *conf.Settings) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "attendant",
		Short: "Attendant face recognition attendance kiosk",
		Long: `Attendant records attendance from a camera stream: enrolled faces that
stay in view long enough are logged present once per day, and an end of day
sweep records absentees and notifies their guardians.`,
	}

	if err := setupFlags(rootCmd, settings); err != nil {
		cobra.CheckErr(err)
	}

	rootCmd.AddCommand(
		kiosk.Command(settings),
		enroll.Command(settings),
		report.Command(settings),
	)

	return rootCmd
}

// setupFlags defines global flags and binds them to viper.
func setupFlags(rootCmd *cobra.Command, settings *conf.Settings) error {
	rootCmd.PersistentFlags().BoolVarP(&settings.Debug, "debug", "d",
		viper.GetBool("debug"), "Enable debug output")
	rootCmd.PersistentFlags().Float64VarP(&settings.Recognition.Tolerance, "tolerance", "t",
		viper.GetFloat64("recognition.tolerance"), "Face match tolerance, lower is stricter")
	rootCmd.PersistentFlags().Float64Var(&settings.Recognition.DwellTime, "dwell",
		viper.GetFloat64("recognition.dwelltime"), "Seconds of sustained presence before confirmation")

	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}

	return nil
}
