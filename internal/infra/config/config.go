package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/HurleySk/robo-birder/internal/errs"
)

const (
	// EnvConfigPath selects the config file when no --config flag is given.
	EnvConfigPath = "ROBO_BIRDER_CONFIG"
	envPrefix     = "ROBO_BIRDER"

	defaultConfigFile = "config.yaml"
	stateFileName     = "scheduler_state.json"
	cooldownFileName  = "robo_birder_cooldowns.json"
)

// AppConfig holds all configuration for the application
type AppConfig struct {
	BirdNET    BirdNETConfig    `mapstructure:"birdnet" yaml:"birdnet"`
	Discord    DiscordConfig    `mapstructure:"discord" yaml:"discord"`
	Telegram   TelegramConfig   `mapstructure:"telegram" yaml:"telegram"`
	Push       PushConfig       `mapstructure:"push" yaml:"push"`
	NewSpecies NewSpeciesConfig `mapstructure:"new_species" yaml:"new_species"`
	Realtime   RealtimeConfig   `mapstructure:"realtime" yaml:"realtime"`
	Seasons    Seasons          `mapstructure:"seasons" yaml:"seasons"`
	Summaries  []SummaryJob     `mapstructure:"summaries" yaml:"summaries"`
	Scheduler  SchedulerConfig  `mapstructure:"scheduler" yaml:"scheduler"`
	State      StateConfig      `mapstructure:"state" yaml:"state"`
	Log        LogConfig        `mapstructure:"log" yaml:"log"`
	Metrics    MetricsConfig    `mapstructure:"metrics" yaml:"metrics"`

	// Path is the file the configuration was read from.
	Path string `mapstructure:"-" yaml:"-"`
}

// BirdNETConfig locates the BirdNET-Go detection database.
type BirdNETConfig struct {
	Driver   string `mapstructure:"driver" yaml:"driver"`     // sqlite, mysql or postgres
	Database string `mapstructure:"database" yaml:"database"` // SQLite file path
	DSN      string `mapstructure:"dsn" yaml:"dsn"`           // mysql/postgres data source name
	BaseURL  string `mapstructure:"base_url" yaml:"base_url"` // BirdNET-Go web UI, used for detection links
}

type DiscordConfig struct {
	WebhookURL string `mapstructure:"webhook_url" yaml:"webhook_url"`
}

type TelegramConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Token   string `mapstructure:"token" yaml:"token"`
	ChatID  int64  `mapstructure:"chat_id" yaml:"chat_id"`

	// Commands enables /test, /summary and /latest for the configured chat while the scheduler runs.
	Commands bool `mapstructure:"commands" yaml:"commands"`
}

// PushConfig lists shoutrrr service URLs (ntfy://, gotify://, slack://, ...).
type PushConfig struct {
	URLs    []string      `mapstructure:"urls" yaml:"urls"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

type NewSpeciesConfig struct {
	Enabled       bool          `mapstructure:"enabled" yaml:"enabled"`
	MinConfidence float64       `mapstructure:"min_confidence" yaml:"min_confidence"`
	NotifyOn      NotifyTrigger `mapstructure:"notify_on" yaml:"notify_on"`
	WebhookURL    string        `mapstructure:"webhook_url" yaml:"webhook_url"`
}

type NotifyTrigger struct {
	FirstEver     bool `mapstructure:"first_ever" yaml:"first_ever"`
	FirstOfYear   bool `mapstructure:"first_of_year" yaml:"first_of_year"`
	FirstOfSeason bool `mapstructure:"first_of_season" yaml:"first_of_season"`
}

type RealtimeConfig struct {
	Enabled          bool     `mapstructure:"enabled" yaml:"enabled"`
	MinConfidence    float64  `mapstructure:"min_confidence" yaml:"min_confidence"`
	SpeciesWhitelist []string `mapstructure:"species_whitelist" yaml:"species_whitelist"`
	SpeciesBlacklist []string `mapstructure:"species_blacklist" yaml:"species_blacklist"`
	CooldownMinutes  int      `mapstructure:"cooldown_minutes" yaml:"cooldown_minutes"`
}

// SummaryJob is a named, cron-scheduled summary report.
type SummaryJob struct {
	Name                   string `mapstructure:"name" yaml:"name"`
	Enabled                bool   `mapstructure:"enabled" yaml:"enabled"`
	Cron                   string `mapstructure:"cron" yaml:"cron"`
	LookbackMinutes        int    `mapstructure:"lookback_minutes" yaml:"lookback_minutes"`
	IncludeTopSpecies      int    `mapstructure:"include_top_species" yaml:"include_top_species"`
	IncludeHourlyBreakdown bool   `mapstructure:"include_hourly_breakdown" yaml:"include_hourly_breakdown"`
	IncludeDailyBreakdown  bool   `mapstructure:"include_daily_breakdown" yaml:"include_daily_breakdown"`
	WebhookURL             string `mapstructure:"webhook_url" yaml:"webhook_url"`
}

type SchedulerConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
	Timezone     string        `mapstructure:"timezone" yaml:"timezone"` // IANA name, empty for local time
	WatchConfig  bool          `mapstructure:"watch_config" yaml:"watch_config"`
}

type StateConfig struct {
	CooldownFile string `mapstructure:"cooldown_file" yaml:"cooldown_file"`
	StateFile    string `mapstructure:"state_file" yaml:"state_file"`
}

type LogConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Environment string `mapstructure:"environment" yaml:"environment"`
}

type MetricsConfig struct {
	Listen string `mapstructure:"listen" yaml:"listen"` // e.g. ":9464", empty disables
}

// Rules is the part of the configuration the eligibility decision depends on.
type Rules struct {
	NewSpecies NewSpeciesConfig
	Realtime   RealtimeConfig
	Seasons    Seasons
}

// Rules returns the decision rules of this configuration.
func (c *AppConfig) Rules() Rules {
	return Rules{NewSpecies: c.NewSpecies, Realtime: c.Realtime, Seasons: c.Seasons}
}

// Summary returns the summary job with the given name.
func (c *AppConfig) Summary(name string) (SummaryJob, bool) {
	for _, s := range c.Summaries {
		if s.Name == name {
			return s, true
		}
	}
	return SummaryJob{}, false
}

// Location returns the scheduler time zone.
func (c *AppConfig) Location() *time.Location {
	if c.Scheduler.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Scheduler.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// ResolvePath picks the config file: explicit path, then $ROBO_BIRDER_CONFIG, then ./config.yaml.
func ResolvePath(path string) string {
	if path != "" {
		return path
	}
	if env := os.Getenv(EnvConfigPath); env != "" {
		return env
	}
	return defaultConfigFile
}

// Load reads the YAML configuration file, environment variables and .env file (if present).
func Load(path string) (*AppConfig, error) {
	// Attempt to load .env file. Errors are ignored if the file doesn't exist.
	// godotenv.Load will not override existing env variables.
	_ = godotenv.Load()

	path = ResolvePath(path)
	if _, err := os.Stat(path); err != nil {
		return nil, errs.Config(err, "config file not found: %s", path)
	}

	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, errs.Config(err, "failed to read config file %s", path)
	}

	cfg := &AppConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errs.Config(err, "failed to decode config file %s", path)
	}
	cfg.Path = path

	normalize(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// normalize fills per-item defaults viper cannot express and derives state file paths.
func normalize(cfg *AppConfig) {
	cfg.BirdNET.Driver = strings.ToLower(strings.TrimSpace(cfg.BirdNET.Driver))
	cfg.Log.Level = strings.ToLower(cfg.Log.Level)
	cfg.Log.Environment = strings.ToLower(cfg.Log.Environment)

	for i := range cfg.Summaries {
		s := &cfg.Summaries[i]
		if s.Name == "" {
			s.Name = "unnamed"
		}
		if s.Cron == "" {
			s.Cron = DefaultSummaryCron
		}
		if s.LookbackMinutes <= 0 {
			s.LookbackMinutes = DefaultLookbackMinutes
		}
		if s.IncludeTopSpecies <= 0 {
			s.IncludeTopSpecies = DefaultTopSpecies
		}
	}

	if cfg.State.StateFile == "" {
		cfg.State.StateFile = filepath.Join(filepath.Dir(cfg.Path), stateFileName)
	}
	if cfg.State.CooldownFile == "" {
		cfg.State.CooldownFile = filepath.Join(os.TempDir(), cooldownFileName)
	}
	if cfg.Scheduler.PollInterval <= 0 {
		cfg.Scheduler.PollInterval = DefaultPollInterval
	}
}

// Validate checks the settings that would make the process useless at startup.
func Validate(cfg *AppConfig) error {
	switch cfg.BirdNET.Driver {
	case DriverSQLite:
		if cfg.BirdNET.Database == "" {
			return errs.Config(nil, "birdnet.database is required for the sqlite driver")
		}
	case DriverMySQL, DriverPostgres:
		if cfg.BirdNET.DSN == "" {
			return errs.Config(nil, "birdnet.dsn is required for the %s driver", cfg.BirdNET.Driver)
		}
	default:
		return errs.Config(nil, "unsupported birdnet.driver %q", cfg.BirdNET.Driver)
	}

	if !inUnitRange(cfg.NewSpecies.MinConfidence) {
		return errs.Config(nil, "new_species.min_confidence must be within [0,1], got %v", cfg.NewSpecies.MinConfidence)
	}
	if !inUnitRange(cfg.Realtime.MinConfidence) {
		return errs.Config(nil, "realtime.min_confidence must be within [0,1], got %v", cfg.Realtime.MinConfidence)
	}

	for name, b := range cfg.Seasons {
		if _, ok := defaultSeasons[name]; !ok {
			return errs.Config(nil, "unknown season %q", name)
		}
		if b.StartMonth < 0 || b.StartMonth > 12 || b.StartDay < 0 || b.StartDay > 31 {
			return errs.Config(nil, "season %s has an invalid start %d/%d", name, b.StartMonth, b.StartDay)
		}
	}

	if cfg.Discord.WebhookURL == "" && !cfg.Telegram.Enabled && len(cfg.Push.URLs) == 0 {
		return errors.WithHint(
			errs.Config(nil, "no alert sink configured"),
			"set discord.webhook_url, enable telegram or list push.urls")
	}
	if cfg.Telegram.Enabled && (cfg.Telegram.Token == "" || cfg.Telegram.ChatID == 0) {
		return errs.Config(nil, "telegram requires token and chat_id")
	}
	return nil
}

func inUnitRange(v float64) bool { return v >= 0 && v <= 1 }
