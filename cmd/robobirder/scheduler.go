package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/HurleySk/robo-birder/internal/app"
	"github.com/HurleySk/robo-birder/internal/infra/config"
	"github.com/HurleySk/robo-birder/internal/infra/logger"
	"github.com/HurleySk/robo-birder/internal/infra/metrics"
	"github.com/HurleySk/robo-birder/internal/infra/scheduler"
	"github.com/HurleySk/robo-birder/internal/infra/telegram"
)

func schedulerCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "scheduler",
		Short: "Run the daemon: watch for new detections and send scheduled summaries",
		Long: `Run the notification daemon until SIGINT or SIGTERM.

SIGHUP reloads the configuration file at the next tick. With
scheduler.watch_config enabled, saving the file has the same effect.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := bootstrap(opts.configPath)
			if err != nil {
				return err
			}
			defer a.Close()
			return runScheduler(cmd.Context(), a)
		},
	}
}

func runScheduler(ctx context.Context, a *application) error {
	log := logger.Component("main")

	watcher := app.NewDetectionWatcher(a.repo, a.notifier, a.metrics, logger.Component("watcher"))
	if err := watcher.Initialize(ctx); err != nil {
		log.WithError(err).Warn("Could not read the latest detection ID, retrying on the first poll")
	}

	sched := scheduler.NewNotificationScheduler(a.cfg, a.summaries, watcher, a, a.metrics,
		logger.Component("scheduler"), a.clock.Now)

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	go func() {
		for {
			select {
			case <-hup:
				log.Info("SIGHUP received, reload requested")
				sched.RequestReload()
			case <-ctx.Done():
				return
			}
		}
	}()

	if a.cfg.Scheduler.WatchConfig {
		cw, err := config.NewWatcher(a.cfg.Path, sched.RequestReload, logger.Component("config"))
		if err != nil {
			log.WithError(err).Warn("Config file watching disabled")
		} else {
			cw.Start()
			defer cw.Close()
		}
	}

	if addr := a.cfg.Metrics.Listen; addr != "" {
		go func() {
			if err := metrics.Serve(ctx, addr, a.registry, logger.Component("metrics")); err != nil {
				log.WithError(err).Error("Metrics listener stopped")
			}
		}()
	}

	if a.cfg.Telegram.Enabled && a.cfg.Telegram.Commands {
		bot, err := telegram.NewCommandBot(a.cfg.Telegram.Token, logger.Component("telegram_commands"))
		if err != nil {
			log.WithError(err).Warn("Telegram commands disabled")
		} else {
			telegram.RegisterCommands(ctx, bot, &loopOperator{admin: a.admin, loop: sched}, a.cfg.Telegram.ChatID, logger.Component("telegram_commands"))
			go bot.Start()
			defer bot.Stop()
		}
	}

	log.WithFields(logrus.Fields{
		"poll_interval": a.cfg.Scheduler.PollInterval.String(),
		"timezone":      a.cfg.Location().String(),
	}).Info("Robo-Birder scheduler starting")

	sched.Run(ctx)

	log.Info("Robo-Birder scheduler shut down gracefully")
	return nil
}

// exclusiveRunner runs work between scheduler ticks.
type exclusiveRunner interface {
	Exclusive(ctx context.Context, fn func(ctx context.Context) error) error
}

// loopOperator runs bot commands between ticks, so a command never processes
// a detection or sends a summary while the loop is doing the same.
type loopOperator struct {
	admin telegram.Operator
	loop  exclusiveRunner
}

func (o *loopOperator) SendTestAlert(ctx context.Context) error {
	return o.loop.Exclusive(ctx, o.admin.SendTestAlert)
}

func (o *loopOperator) RunSummary(ctx context.Context, name string) error {
	return o.loop.Exclusive(ctx, func(ctx context.Context) error {
		return o.admin.RunSummary(ctx, name)
	})
}

func (o *loopOperator) ProcessLatest(ctx context.Context) (bool, error) {
	var sent bool
	err := o.loop.Exclusive(ctx, func(ctx context.Context) error {
		var err error
		sent, err = o.admin.ProcessLatest(ctx)
		return err
	})
	return sent, err
}
