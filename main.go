package main

import (
	"fmt"
	"os"

	"github.com/jsalmela/attendant/cmd"
	"github.com/jsalmela/attendant/internal/conf"
	"github.com/jsalmela/attendant/internal/logging"
)

func main() {
	settings, err := conf.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	if settings.Main.Log.Enabled {
		closeLog, err := logging.InitFile(settings.Debug, settings.Main.Log.Path,
			settings.Main.Log.MaxSize, settings.Main.Log.MaxAge)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening log file: %v\n", err)
			os.Exit(1)
		}
		defer func() { _ = closeLog() }()
	} else {
		logging.Init(settings.Debug)
	}

	rootCmd := cmd.RootCommand(settings)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
