// defaults.go default values for settings
package conf

import (
	"github.com/spf13/viper"
)

// setDefaultConfig sets default values for all configuration keys.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("main.name", "Attendant")
	viper.SetDefault("main.timezone", "")
	viper.SetDefault("main.log.enabled", true)
	viper.SetDefault("main.log.path", "attendant.log")
	viper.SetDefault("main.log.maxsize", 10)
	viper.SetDefault("main.log.maxage", 30)

	viper.SetDefault("recognition.tolerance", 0.5)
	viper.SetDefault("recognition.dwelltime", 1.0)
	viper.SetDefault("recognition.dwellreset", false)
	viper.SetDefault("recognition.matchpolicy", MatchPolicyFirst)

	viper.SetDefault("welcome.door.enabled", true)
	viper.SetDefault("welcome.door.holdseconds", 5.0)
	viper.SetDefault("welcome.display.enabled", true)
	viper.SetDefault("welcome.display.width", 16)
	viper.SetDefault("welcome.audio.enabled", true)
	viper.SetDefault("welcome.audio.path", "sounds/")

	viper.SetDefault("report.enabled", true)
	viper.SetDefault("report.triggertime", "17:00")
	viper.SetDefault("report.pollinterval", 60)

	viper.SetDefault("notification.enabled", false)
	viper.SetDefault("notification.urltemplate", "")
	viper.SetDefault("notification.timeout", 30)
	viper.SetDefault("notification.queuesize", 64)

	viper.SetDefault("realtime.interval", 15)
	viper.SetDefault("realtime.mqtt.enabled", false)
	viper.SetDefault("realtime.mqtt.broker", "tcp://localhost:1883")
	viper.SetDefault("realtime.mqtt.topic", "attendant/attendance")
	viper.SetDefault("realtime.mqtt.username", "")
	viper.SetDefault("realtime.mqtt.password", "")

	viper.SetDefault("output.sqlite.enabled", true)
	viper.SetDefault("output.sqlite.path", "attendance.db")
	viper.SetDefault("output.mysql.enabled", false)
	viper.SetDefault("output.mysql.username", "attendant")
	viper.SetDefault("output.mysql.password", "secret")
	viper.SetDefault("output.mysql.database", "attendant")
	viper.SetDefault("output.mysql.host", "localhost")
	viper.SetDefault("output.mysql.port", "3306")
}
