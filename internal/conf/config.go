// config.go: settings struct for the attendant application and functions to load them.
package conf

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/viper"
)

//go:embed config.yaml
var configFiles embed.FS

// MainSettings contains node level settings.
type MainSettings struct {
	Name     string // name of the kiosk node, used in log and notification prefixes
	Timezone string // IANA timezone name, empty means system local time
	Log      LogConfig
}

// LogConfig defines the configuration for a file log output.
type LogConfig struct {
	Enabled bool   // true to enable this log
	Path    string // path to log file
	MaxSize int    // maximum log file size in megabytes before rotation
	MaxAge  int    // maximum age in days to retain old log files
}

// RecognitionSettings contains face matching and dwell confirmation settings.
type RecognitionSettings struct {
	Tolerance   float64 // maximum encoding distance accepted as a match, lower is stricter
	DwellTime   float64 // seconds of sustained presence required before confirmation
	DwellReset  bool    // true to reset the dwell timer when a face misses a frame
	MatchPolicy string  // "first" for roster order, "closest" for minimum distance
}

// WelcomeSettings contains settings for the welcome side effect sequence.
type WelcomeSettings struct {
	Door struct {
		Enabled     bool    // true to actuate the door on confirmation
		HoldSeconds float64 // how long the door is held open
	}
	Display struct {
		Enabled bool // true to write welcome messages to the character display
		Width   int  // display width in characters
	}
	Audio struct {
		Enabled bool   // true to play a greeting clip on confirmation
		Path    string // directory holding per student greeting clips
	}
}

// ReportSettings contains settings for the daily absence report.
type ReportSettings struct {
	Enabled      bool   // true to run the end of day absence sweep
	TriggerTime  string // local time of day the sweep becomes due, "HH:MM"
	PollInterval int    // seconds between scheduler checks
}

// NotificationSettings contains settings for guardian notifications.
type NotificationSettings struct {
	Enabled     bool   // true to dispatch absence notifications
	URLTemplate string // shoutrrr service URL template, {contact} is replaced per guardian
	Timeout     int    // send timeout in seconds
	QueueSize   int    // pending notification queue capacity
}

// MQTTSettings contains settings for attendance event publication.
type MQTTSettings struct {
	Enabled  bool   // true to publish confirmed attendance over MQTT
	Broker   string // MQTT broker URL
	Topic    string // MQTT topic to publish to
	Username string // MQTT username
	Password string // MQTT password
}

// OutputSettings contains database output settings, exactly one store is enabled.
type OutputSettings struct {
	SQLite struct {
		Enabled bool   // true to use SQLite
		Path    string // path to SQLite database file
	}
	MySQL struct {
		Enabled  bool   // true to use MySQL
		Username string // MySQL username
		Password string // MySQL password
		Database string // MySQL database name
		Host     string // MySQL host
		Port     string // MySQL port
	}
}

// RealtimeSettings contains settings for the kiosk detection loop.
type RealtimeSettings struct {
	Interval int          // minimum seconds between repeated status log lines per person
	MQTT     MQTTSettings // attendance event publication
}

// Settings is the top level configuration struct.
type Settings struct {
	Debug bool // true to enable debug output

	Main         MainSettings
	Recognition  RecognitionSettings
	Welcome      WelcomeSettings
	Report       ReportSettings
	Notification NotificationSettings
	Realtime     RealtimeSettings
	Output       OutputSettings
}

var (
	settingsInstance *Settings
	settingsOnce     sync.Once
	settingsMutex    sync.RWMutex
)

// Load reads the configuration file and environment into a Settings struct.
func Load() (*Settings, error) {
	settings := &Settings{}

	if err := initViper(); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	settingsMutex.Lock()
	settingsInstance = settings
	settingsMutex.Unlock()
	return settings, nil
}

// Setting returns the shared settings instance, loading it on first use.
func Setting() *Settings {
	settingsOnce.Do(func() {
		if settingsInstance == nil {
			if _, err := Load(); err != nil {
				log.Fatalf("error loading settings: %v", err)
			}
		}
	})
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

func initViper() error {
	viper.SetConfigType("yaml")
	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}

	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}
	viper.SetConfigName("config")
	viper.SetEnvPrefix("ATTENDANT")
	viper.AutomaticEnv()

	setDefaultConfig()

	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return fmt.Errorf("error reading config file: %w", err)
		}
		// No config file found, create one from the embedded default.
		configPath := filepath.Join(configPaths[0], "config.yaml")
		if err := createDefaultConfig(configPath); err != nil {
			return err
		}
		return viper.ReadInConfig()
	}
	return nil
}

// createDefaultConfig writes the embedded default configuration to configPath.
func createDefaultConfig(configPath string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	defaultConfig, err := fs.ReadFile(configFiles, "config.yaml")
	if err != nil {
		return fmt.Errorf("error reading embedded config: %w", err)
	}

	if err := os.WriteFile(configPath, defaultConfig, 0o644); err != nil {
		return fmt.Errorf("error writing default config file: %w", err)
	}

	log.Printf("Created default config file at %v", configPath)
	return nil
}

// GetDefaultConfigPaths returns the config file search paths in priority order.
func GetDefaultConfigPaths() ([]string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return nil, fmt.Errorf("error fetching user config directory: %w", err)
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("error fetching user home directory: %w", err)
	}

	return []string{
		filepath.Join(configDir, "attendant"),
		filepath.Join(homeDir, ".config", "attendant"),
		".",
	}, nil
}
