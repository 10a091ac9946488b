package main

import (
	"bytes"
	"encoding/json"
	"io"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/HurleySk/robo-birder/internal/infra/logger"
)

const maxStdinPayload = 1 << 20

func notifyCommand(opts *options) *cobra.Command {
	var (
		detectionID int64
		summary     string
		test        bool
	)

	cmd := &cobra.Command{
		Use:   "notify",
		Short: "Process one detection, run one summary or send a test alert",
		Long: `Process one detection and send its alert when it is eligible.

Without --id the detection ID is read from a JSON object on stdin
({"id": N} or {"detection_id": N}); when stdin is a terminal or empty,
the latest detection is processed. Exits with status 1 when no alert was sent.

Examples:
  robobirder notify --test
  robobirder notify --summary daily
  echo '{"id": 1234}' | robobirder notify`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := bootstrap(opts.configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			switch {
			case test:
				return a.admin.SendTestAlert(ctx)
			case summary != "":
				return a.admin.RunSummary(ctx, summary)
			}

			id := detectionID
			if id <= 0 {
				id = detectionIDFromInput(cmd.InOrStdin(), logger.Component("notify"))
			}

			var sent bool
			if id > 0 {
				sent, err = a.admin.ProcessDetection(ctx, id)
			} else {
				sent, err = a.admin.ProcessLatest(ctx)
			}
			if err != nil {
				return err
			}
			if !sent {
				return errNotSent
			}
			return nil
		},
	}

	cmd.Flags().Int64Var(&detectionID, "id", 0, "detection ID to process")
	cmd.Flags().StringVar(&summary, "summary", "", "run the named summary job now")
	cmd.Flags().BoolVar(&test, "test", false, "send a test alert to every configured sink")
	cmd.MarkFlagsMutuallyExclusive("id", "summary", "test")
	return cmd
}

// detectionIDFromInput reads {"id": N} or {"detection_id": N} from in. It
// returns 0 when in is a terminal, empty or not valid JSON.
func detectionIDFromInput(in io.Reader, log *logrus.Entry) int64 {
	if f, ok := in.(*os.File); ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())) {
		return 0
	}

	data, err := io.ReadAll(io.LimitReader(in, maxStdinPayload))
	if err != nil {
		log.WithError(err).Warn("Failed to read stdin, processing the latest detection")
		return 0
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return 0
	}

	var payload struct {
		ID          int64 `json:"id"`
		DetectionID int64 `json:"detection_id"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		log.WithError(errors.Wrap(err, "invalid JSON on stdin")).Warn("Processing the latest detection instead")
		return 0
	}
	if payload.ID > 0 {
		return payload.ID
	}
	return payload.DetectionID
}
