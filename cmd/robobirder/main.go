package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/HurleySk/robo-birder/internal/infra/config"
	"github.com/HurleySk/robo-birder/internal/infra/logger"
)

// errNotSent ends `notify` with exit code 1 when nothing was delivered.
var errNotSent = errors.New("no alert sent")

type options struct {
	configPath string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx)
	stop()
	os.Exit(code)
}

func run(ctx context.Context) int {
	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		if errors.Is(err, errNotSent) {
			logger.Log.Info("No alert was sent")
		} else {
			logger.Log.WithError(err).Error("Command failed")
		}
		return 1
	}
	return 0
}

func newRootCommand() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "robobirder",
		Short:         "Alerts and summary reports for BirdNET-Go detections",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "",
		"path to the configuration file (default $"+config.EnvConfigPath+" or ./config.yaml)")

	root.AddCommand(
		notifyCommand(opts),
		schedulerCommand(opts),
		configCommand(opts),
	)
	return root
}
