package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/darkkid0/wt-tracker/internal/config"
	"github.com/darkkid0/wt-tracker/internal/errors"
)

type serveFlags struct {
	configPath string
	host       string
	port       int
	verbose    bool
	metrics    bool
	trace      bool
	failFast   bool
}

func serveCmd() *cobra.Command {
	var flags serveFlags

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the tracker",
		Long: `Start the tracker on every server listed in the configuration.

Without a configuration file the tracker listens on 0.0.0.0:8000.
--host and --port override the first server.

Examples:
  wt-tracker serve
  wt-tracker serve --config /etc/wt-tracker.json
  wt-tracker serve --port 8080 --verbose`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadServeConfig(cmd, &flags)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runServe(ctx, cfg, flags, cmd.ErrOrStderr())
		},
	}

	bindServeFlags(cmd.Flags(), &flags)

	return cmd
}

func bindServeFlags(f *pflag.FlagSet, flags *serveFlags) {
	f.StringVarP(&flags.configPath, "config", "c", config.ConfigFileName, "Configuration file")
	f.StringVarP(&flags.host, "host", "H", "", "Host of the first server (default from config)")
	f.IntVarP(&flags.port, "port", "p", 0, "Port of the first server (default from config)")
	f.BoolVarP(&flags.verbose, "verbose", "v", false, "Log every message body at debug level")
	f.BoolVar(&flags.metrics, "metrics", true, "Serve Prometheus metrics (overrides config)")
	f.BoolVar(&flags.trace, "trace", false, "Record an OpenTelemetry span per message")
	f.BoolVar(&flags.failFast, "fail-fast", false, "Exit on the first internal fault")
}

// loadServeConfig reads the config file and applies flag overrides.
// A missing file is only an error when --config was given explicitly.
func loadServeConfig(cmd *cobra.Command, flags *serveFlags) (*config.Config, error) {
	var cfg *config.Config
	if config.Exists(flags.configPath) || cmd.Flags().Changed("config") {
		loaded, err := config.LoadFile(flags.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	} else {
		cfg = config.New()
	}

	if cmd.Flags().Changed("port") && flags.port <= 0 {
		return nil, errors.New(errors.CodeInvalidFlag).
			WithDetail("--port must be between 1 and 65535.")
	}
	if len(cfg.Servers) > 0 {
		if flags.host != "" {
			cfg.Servers[0].Server.Host = flags.host
		}
		if cmd.Flags().Changed("port") {
			cfg.Servers[0].Server.Port = flags.port
		}
	}
	if cmd.Flags().Changed("metrics") {
		cfg.Metrics.Enabled = flags.metrics
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runServe(ctx context.Context, cfg *config.Config, flags serveFlags, logOut io.Writer) error {
	verbose := flags.verbose || cfg.Debug.Verbose
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(logOut, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	a := newApp(cfg, appOptions{
		verbose:  verbose,
		trace:    flags.trace,
		failFast: flags.failFast,
	}, logger)

	if err := a.start(); err != nil {
		return err
	}
	logger.Info("tracker started",
		"servers", len(a.servers),
		"max_offers", cfg.Tracker.MaxOffers,
		"announce_interval", cfg.Tracker.AnnounceInterval,
		"metrics", cfg.Metrics.Enabled)

	waitErr := a.wait(ctx)
	if waitErr == nil {
		logger.Info("shutting down...")
	}
	shutdownErr := a.shutdown(context.Background())
	if waitErr != nil {
		return waitErr
	}
	return shutdownErr
}
