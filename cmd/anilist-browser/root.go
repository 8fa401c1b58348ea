package main

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Sternrassler/anilist-browser/pkg/config"
	"github.com/Sternrassler/anilist-browser/pkg/logging"
)

// rootOptions holds the persistent flags and the configuration they load.
type rootOptions struct {
	configPath string
	logLevel   string
	pretty     bool

	cfg    *config.Config
	logger zerolog.Logger
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:          "anilist-browser",
		Short:        "Browse the AniList anime catalog page by page",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.load(cmd)
		},
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to a YAML config file")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	cmd.PersistentFlags().BoolVar(&opts.pretty, "pretty", false, "human-readable console logs")

	cmd.AddCommand(
		newServeCmd(opts),
		newPageCmd(opts),
		newWarmCmd(opts),
		newBrowseCmd(opts),
	)
	return cmd
}

// load reads the config file, applies flag overrides and sets up logging.
func (o *rootOptions) load(cmd *cobra.Command) error {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return err
	}
	if o.logLevel != "" {
		cfg.Logging.Level = o.logLevel
	}
	if cmd.Flags().Changed("pretty") {
		cfg.Logging.Pretty = o.pretty
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logCfg := cfg.LogConfig()
	logCfg.Output = cmd.ErrOrStderr()
	logging.Setup(logCfg)

	o.cfg = cfg
	o.logger = logging.NewLogger("cli")
	return nil
}
