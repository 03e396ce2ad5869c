package main

import (
	"log/slog"

	"github.com/meghashyamc/searchsync/config"
	"github.com/meghashyamc/searchsync/logger"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	env   string
	debug bool
}

func newRootCmd() *cobra.Command {
	var opts rootOptions

	cmd := &cobra.Command{
		Use:   "searchsync",
		Short: "Keep a full-text index in sync with a record store and query it",
		Long: `searchsync indexes records of the entity types declared in the registry file,
applies queued record changes to the index and serves queries over HTTP or the command line.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.env, "env", "", "Config environment, read from config/config.<env>.yaml (defaults to $ENV or local)")
	cmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "Log at debug level")

	cmd.AddCommand(
		newServeCmd(&opts),
		newUpdateIndexCmd(&opts),
		newRebuildIndexCmd(&opts),
		newSearchCmd(&opts),
	)

	return cmd
}

func (o *rootOptions) load() (*config.Config, logger.Logger, error) {
	cfg, err := config.Load(o.env)
	if err != nil {
		return nil, nil, err
	}

	level := logger.ParseLevel(cfg.GetLogLevel())
	if o.debug {
		level = slog.LevelDebug
	}

	return cfg, logger.NewWithLevel(level), nil
}
