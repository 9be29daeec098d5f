// validate.go settings validation

package conf

import (
	"fmt"
	"strings"
	"time"
)

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("Validation errors: %v", ve.Errors)
}

// ValidateSettings validates the entire Settings struct
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	if err := validateRecognitionSettings(&settings.Recognition); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateReportSettings(&settings.Report); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateNotificationSettings(&settings.Notification); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateOutputSettings(&settings.Output); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateMainSettings(&settings.Main); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

func validateRecognitionSettings(settings *RecognitionSettings) error {
	if settings.Tolerance <= 0 || settings.Tolerance > 1.0 {
		return fmt.Errorf("recognition tolerance must be between 0 and 1.0, got %v", settings.Tolerance)
	}

	if settings.DwellTime < 0 {
		return fmt.Errorf("recognition dwell time must not be negative, got %v", settings.DwellTime)
	}

	switch settings.MatchPolicy {
	case MatchPolicyFirst, MatchPolicyClosest:
	default:
		return fmt.Errorf("recognition match policy must be %q or %q, got %q",
			MatchPolicyFirst, MatchPolicyClosest, settings.MatchPolicy)
	}

	return nil
}

func validateReportSettings(settings *ReportSettings) error {
	if !settings.Enabled {
		return nil
	}

	if _, err := time.Parse(TriggerTimeFormat, settings.TriggerTime); err != nil {
		return fmt.Errorf("report trigger time must be in HH:MM format, got %q", settings.TriggerTime)
	}

	if settings.PollInterval < 1 {
		return fmt.Errorf("report poll interval must be at least 1 second, got %d", settings.PollInterval)
	}

	return nil
}

func validateNotificationSettings(settings *NotificationSettings) error {
	if !settings.Enabled {
		return nil
	}

	if strings.TrimSpace(settings.URLTemplate) == "" {
		return fmt.Errorf("notification URL template is required when notifications are enabled")
	}

	if settings.QueueSize < 1 {
		return fmt.Errorf("notification queue size must be at least 1, got %d", settings.QueueSize)
	}

	return nil
}

func validateOutputSettings(settings *OutputSettings) error {
	if settings.SQLite.Enabled && settings.MySQL.Enabled {
		return fmt.Errorf("only one database output can be enabled at a time")
	}

	if !settings.SQLite.Enabled && !settings.MySQL.Enabled {
		return fmt.Errorf("one database output must be enabled")
	}

	if settings.SQLite.Enabled && settings.SQLite.Path == "" {
		return fmt.Errorf("SQLite database path is required")
	}

	return nil
}

func validateMainSettings(settings *MainSettings) error {
	if settings.Timezone == "" {
		return nil
	}

	if _, err := time.LoadLocation(settings.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", settings.Timezone, err)
	}

	return nil
}

// Location resolves the configured timezone, falling back to local time.
func (s *MainSettings) Location() *time.Location {
	if s.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}
