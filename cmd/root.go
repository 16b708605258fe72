package main

import (
	"errors"
	"fmt"

	"github.com/ron-matt163/wiki-llm/pkg/config"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type rootOptions struct {
	configPath string
	verbose    bool
	showRaw    bool

	cfg    *config.Config
	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "wikillm",
		Short:         "Answer questions with evidence gathered from Wikipedia",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(opts.configPath)
			if err != nil {
				return err
			}
			opts.cfg = cfg
			if !cmd.Flags().Changed("show-raw") {
				opts.showRaw = cfg.Pipeline.ShowRaw
			}

			logger, err := newLogger(opts.verbose)
			if err != nil {
				return fmt.Errorf("failed to build logger: %w", err)
			}
			opts.logger = logger
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if opts.logger != nil {
				_ = opts.logger.Sync()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to config file")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging")
	cmd.PersistentFlags().BoolVar(&opts.showRaw, "show-raw", false, "Print the raw model response for topic derivation")

	cmd.AddCommand(
		newAskCmd(opts),
		newTopicsCmd(opts),
		newPageCmd(opts),
		newScrapeCmd(opts),
		newServeCmd(opts),
	)
	return cmd
}

// newLogger writes console-encoded logs to stderr so stdout stays clean for results.
func newLogger(verbose bool) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	zc.Encoding = "console"
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zc.DisableStacktrace = true
	if verbose {
		zc.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	return zc.Build()
}

// validate reports every configuration problem at once.
func (o *rootOptions) validate() error {
	verrs := o.cfg.Validate()
	if len(verrs) == 0 {
		return nil
	}
	errs := make([]error, 0, len(verrs))
	for _, e := range verrs {
		errs = append(errs, e)
	}
	return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
}
