package config

import (
	"time"

	"github.com/spf13/viper"
)

const (
	DriverSQLite   = "sqlite"
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"

	DefaultSummaryCron     = "0 8 * * *"
	DefaultLookbackMinutes = 1440
	DefaultTopSpecies      = 10
	DefaultPollInterval    = 10 * time.Second
)

// setDefaults registers default values for each configuration parameter.
// Keys listed here can also be overridden from ROBO_BIRDER_* environment variables.
func setDefaults(v *viper.Viper) {
	v.SetDefault("birdnet.driver", DriverSQLite)
	v.SetDefault("birdnet.database", "")
	v.SetDefault("birdnet.dsn", "")
	v.SetDefault("birdnet.base_url", "http://localhost:8080")

	v.SetDefault("discord.webhook_url", "")

	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.chat_id", 0)
	v.SetDefault("telegram.commands", false)

	v.SetDefault("push.urls", []string{})
	v.SetDefault("push.timeout", 10*time.Second)

	v.SetDefault("new_species.enabled", false)
	v.SetDefault("new_species.min_confidence", 0.5)
	v.SetDefault("new_species.notify_on.first_ever", false)
	v.SetDefault("new_species.notify_on.first_of_year", false)
	v.SetDefault("new_species.notify_on.first_of_season", false)
	v.SetDefault("new_species.webhook_url", "")

	v.SetDefault("realtime.enabled", false)
	v.SetDefault("realtime.min_confidence", 0.7)
	v.SetDefault("realtime.species_whitelist", []string{})
	v.SetDefault("realtime.species_blacklist", []string{})
	v.SetDefault("realtime.cooldown_minutes", 5)

	v.SetDefault("scheduler.poll_interval", DefaultPollInterval)
	v.SetDefault("scheduler.timezone", "")
	v.SetDefault("scheduler.watch_config", false)

	v.SetDefault("state.cooldown_file", "")
	v.SetDefault("state.state_file", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.environment", "development")

	v.SetDefault("metrics.listen", "")
}
