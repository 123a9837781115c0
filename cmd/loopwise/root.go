package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/okian/loopwise/internal/config"
	"github.com/okian/loopwise/pkg/logger"
)

// version is set at build time via -ldflags.
var version = "dev"

type rootFlags struct {
	logLevel  string
	logFormat string
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	cmd := &cobra.Command{
		Use:   "loopwise",
		Short: "Feedback-loop detection for metric time series",
		Long: `loopwise infers causal links between metric time series, finds the
reinforcing and balancing feedback loops they form, and ranks leverage
points for intervening in the system.

Configuration is read from defaults, then the YAML file named by
LOOPWISE_CONFIG, then LOOPWISE_* environment variables, then flags.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&flags.logLevel, "log-level", "", "Log level: debug, info, warn, error (default from config)")
	pf.StringVar(&flags.logFormat, "log-format", "", "Log format: text or json (default from config)")

	cmd.AddCommand(newServeCmd(flags))
	cmd.AddCommand(newAnalyzeCmd(flags))
	cmd.AddCommand(newSubmitCmd(flags))
	return cmd
}

// loadConfig layers command-line overrides on top of config.Load.
func loadConfig(ctx context.Context, flags *rootFlags) (*config.Config, error) {
	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, err
	}
	if flags.logLevel != "" {
		cfg.LogLevel = flags.logLevel
	}
	if flags.logFormat != "" {
		cfg.LogFormat = flags.logFormat
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setupLog initializes the global logger on w from cfg.
func setupLog(cfg *config.Config, w io.Writer) (logger.Logger, error) {
	if err := logger.InitWithWriter(w, cfg.LogFormat); err != nil {
		return nil, fmt.Errorf("initialize logging: %w", err)
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		return nil, fmt.Errorf("initialize logging: %w", err)
	}
	return logger.Get(), nil
}
