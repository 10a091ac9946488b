package main

import (
	"net/url"
	"slices"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/HurleySk/robo-birder/internal/infra/config"
)

const redacted = "********"

func configCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration with secrets masked",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			out, err := yaml.Marshal(masked(cfg))
			if err != nil {
				return errors.Wrap(err, "failed to encode configuration")
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	})
	return cmd
}

// masked returns a copy of cfg with tokens, DSNs and webhook paths hidden.
func masked(cfg *config.AppConfig) *config.AppConfig {
	c := *cfg
	c.BirdNET.DSN = maskSecret(c.BirdNET.DSN)
	c.Discord.WebhookURL = maskSecret(c.Discord.WebhookURL)
	c.Telegram.Token = maskSecret(c.Telegram.Token)
	c.NewSpecies.WebhookURL = maskSecret(c.NewSpecies.WebhookURL)

	c.Push.URLs = slices.Clone(c.Push.URLs)
	for i, u := range c.Push.URLs {
		c.Push.URLs[i] = maskSecret(u)
	}
	c.Summaries = slices.Clone(c.Summaries)
	for i := range c.Summaries {
		c.Summaries[i].WebhookURL = maskSecret(c.Summaries[i].WebhookURL)
	}
	return &c
}

// maskSecret keeps only the scheme and host of URLs, and hides everything else.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if u, err := url.Parse(s); err == nil && u.Scheme != "" && u.Host != "" {
		return u.Scheme + "://" + u.Hostname() + "/" + redacted
	}
	return redacted
}
