// consts.go shared constants for the conf package
package conf

const (
	// MatchPolicyFirst picks the first roster entry within tolerance,
	// in roster load order. This mirrors the original kiosk behavior.
	MatchPolicyFirst = "first"

	// MatchPolicyClosest picks the entry with the smallest encoding
	// distance within tolerance.
	MatchPolicyClosest = "closest"
)

// DateFormat is the calendar date layout used for attendance records.
const DateFormat = "2006-01-02"

// TimeFormat is the clock time layout used for check-in timestamps.
const TimeFormat = "15:04:05"

// TriggerTimeFormat is the layout of the report trigger instant.
const TriggerTimeFormat = "15:04"
