package main

import (
	"database/sql"
	"slices"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/HurleySk/robo-birder/internal/app"
	"github.com/HurleySk/robo-birder/internal/domain/alert"
	"github.com/HurleySk/robo-birder/internal/errs"
	"github.com/HurleySk/robo-birder/internal/infra/config"
	idb "github.com/HurleySk/robo-birder/internal/infra/database"
	"github.com/HurleySk/robo-birder/internal/infra/discord"
	"github.com/HurleySk/robo-birder/internal/infra/logger"
	"github.com/HurleySk/robo-birder/internal/infra/metrics"
	"github.com/HurleySk/robo-birder/internal/infra/push"
	"github.com/HurleySk/robo-birder/internal/infra/state"
	"github.com/HurleySk/robo-birder/internal/infra/telegram"
)

// application holds the wired components shared by the commands.
type application struct {
	cfg   *config.AppConfig
	clock *localClock

	db       *sql.DB
	repo     *idb.DetectionRepository
	registry *prometheus.Registry
	metrics  *metrics.NotifierMetrics

	notifier  *app.NotificationService
	summaries *app.SummaryService
	admin     *app.AdminService
}

// localClock reports the current time in the configured time zone.
type localClock struct {
	loc atomic.Pointer[time.Location]
}

func newLocalClock(loc *time.Location) *localClock {
	c := &localClock{}
	c.loc.Store(loc)
	return c
}

func (c *localClock) Now() time.Time { return time.Now().In(c.loc.Load()) }

func bootstrap(configPath string) (*application, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger.Init(cfg.Log)
	log := logger.Component("main")
	log.WithField("path", cfg.Path).Info("Configuration loaded")

	registry, m, err := metrics.NewRegistry()
	if err != nil {
		return nil, err
	}

	db, dialect, err := idb.Open(cfg.BirdNET)
	if err != nil {
		return nil, err
	}
	repo := idb.NewDetectionRepository(db, dialect)
	log.WithField("driver", cfg.BirdNET.Driver).Info("Detection database opened")

	sinks, err := buildSinks(cfg)
	if err != nil {
		db.Close()
		return nil, err
	}
	dispatcher := app.NewFanout(logger.Component("dispatch"), sinks...)
	log.WithField("sinks", dispatcher.Sinks()).Info("Alert sinks configured")

	clock := newLocalClock(cfg.Location())
	cooldowns := state.NewCooldownStore(cfg.State.CooldownFile, logger.Component("cooldowns"))
	jobState := state.NewJobStateStore(cfg.State.StateFile, logger.Component("job_state"))

	notifier := app.NewNotificationService(repo, dispatcher, cooldowns, cfg.Rules(), m,
		logger.Component("notifications"), clock.Now)
	summaries := app.NewSummaryService(repo, dispatcher, jobState, cfg.Summaries, m,
		logger.Component("summaries"), clock.Now)
	admin := app.NewAdminService(repo, notifier, summaries, dispatcher, logger.Component("admin"))

	return &application{
		cfg:       cfg,
		clock:     clock,
		db:        db,
		repo:      repo,
		registry:  registry,
		metrics:   m,
		notifier:  notifier,
		summaries: summaries,
		admin:     admin,
	}, nil
}

// buildSinks creates one sink per configured delivery channel.
func buildSinks(cfg *config.AppConfig) ([]alert.Sink, error) {
	var sinks []alert.Sink
	if cfg.Discord.WebhookURL != "" {
		sinks = append(sinks, discord.NewClient(cfg.Discord.WebhookURL, cfg.BirdNET.BaseURL, logger.Component("discord")))
	}
	if cfg.Telegram.Enabled {
		client, err := telegram.NewTelebotAdapter(cfg.Telegram.Token)
		if err != nil {
			return nil, errs.Config(err, "invalid telegram settings")
		}
		sinks = append(sinks, telegram.NewSink(client, cfg.Telegram.ChatID, logger.Component("telegram")))
	}
	if len(cfg.Push.URLs) > 0 {
		sink, err := push.NewShoutrrrSink(cfg.Push.URLs, cfg.Push.Timeout, logger.Component("push"))
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, sink)
	}
	return sinks, nil
}

// Reload reads the configuration file again and hands the new rules, jobs,
// time zone and log settings to the running services. The database connection
// and the alert sinks keep their startup settings.
func (a *application) Reload() (*config.AppConfig, error) {
	cfg, err := config.Load(a.cfg.Path)
	if err != nil {
		return nil, err
	}

	logger.Init(cfg.Log)
	log := logger.Component("main")
	if cfg.BirdNET != a.cfg.BirdNET {
		log.Warn("Database settings changed, restart to apply them")
	}
	if sinksChanged(a.cfg, cfg) {
		log.Warn("Alert sink settings changed, restart to apply them")
	}

	a.clock.loc.Store(cfg.Location())
	a.notifier.UpdateRules(cfg.Rules())
	a.summaries.UpdateJobs(cfg.Summaries)
	a.cfg = cfg
	return cfg, nil
}

func sinksChanged(old, cur *config.AppConfig) bool {
	return old.Discord != cur.Discord ||
		old.Telegram != cur.Telegram ||
		old.Push.Timeout != cur.Push.Timeout ||
		!slices.Equal(old.Push.URLs, cur.Push.URLs)
}

func (a *application) Close() error {
	return a.db.Close()
}
