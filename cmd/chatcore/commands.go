package main

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/vovakirdan/chatcore/internal/app"
	"github.com/vovakirdan/chatcore/internal/config"
	chatlog "github.com/vovakirdan/chatcore/internal/log"
)

type rootOptions struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:          "chatcore",
		Short:        "In-process multi-room chat broker",
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to config.yaml")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error)")

	cmd.AddCommand(newSimulateCmd(opts), newReplCmd(opts))
	return cmd
}

// load resolves configuration and builds the logger. Flags override env and file.
func (o *rootOptions) load(overrides config.Config) (config.Config, *zerolog.Logger, error) {
	bootstrap := chatlog.New(o.logLevel, os.Stderr)

	cfg, path, err := config.Load(bootstrap, o.configPath)
	if err != nil {
		return cfg, bootstrap, fmt.Errorf("load config: %w", err)
	}
	overrides.LogLevel = o.logLevel
	cfg.UpdateFrom(overrides)
	if err := cfg.Validate(); err != nil {
		return cfg, bootstrap, fmt.Errorf("invalid config: %w", err)
	}

	logger := chatlog.New(cfg.LogLevel, os.Stderr)
	logger.Debug().Str("path", path).Msg("config loaded")
	return cfg, logger, nil
}

func newSimulateCmd(root *rootOptions) *cobra.Command {
	var (
		duration time.Duration
		tick     time.Duration
		seed     int64
	)

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run the randomized bot and user simulation",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := root.load(config.Config{
				Simulation: config.SimulationConfig{Duration: duration, Tick: tick, Seed: seed},
			})
			if err != nil {
				return err
			}

			application := app.New(cfg, logger, cmd.OutOrStdout())
			logger.Info().Dur("duration", cfg.Simulation.Duration).Msg("starting simulation")
			if _, err := application.Simulate(cmd.Context()); err != nil {
				logger.Error().Err(err).Msg("simulation exited with error")
				return err
			}
			logger.Info().Msg("done with random simulation")
			return nil
		},
	}
	cmd.Flags().DurationVar(&duration, "duration", 0, "how long to run (default from config)")
	cmd.Flags().DurationVar(&tick, "tick", 0, "pause between manager steps (default from config)")
	cmd.Flags().Int64Var(&seed, "seed", 0, "random seed, 0 picks one")
	return cmd
}

func newReplCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Drive the broker from an interactive console",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := root.load(config.Config{})
			if err != nil {
				return err
			}

			// Replies and delivered lines share one terminal.
			out := &lockedWriter{w: cmd.OutOrStdout()}
			application := app.New(cfg, logger, out)
			_, _ = fmt.Fprintln(out, "chatcore console, type help for commands")
			return application.Console(cmd.Context(), cmd.InOrStdin(), out)
		},
	}
}

type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
