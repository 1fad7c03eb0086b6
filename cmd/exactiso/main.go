package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cochaviz/exactiso/internal/config"
	"github.com/cochaviz/exactiso/internal/elevate"
	"github.com/cochaviz/exactiso/internal/logging"
)

var version = "dev"

// errBuildFailed signals a failed session; the tool output already explains why.
var errBuildFailed = errors.New("build failed")

func main() {
	var levelVar slog.LevelVar
	levelVar.Set(slog.LevelInfo)

	logger := logging.New(logging.FormatText, os.Stderr, &levelVar)
	slog.SetDefault(logger)

	outcome, err := elevate.Ensure(os.Args[1:], logger)
	if err != nil {
		logger.Warn("privilege check failed; continuing unprivileged", "error", err)
	}
	if outcome.ShouldExit() {
		os.Exit(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{logger: logger, levelVar: &levelVar, elevation: outcome}
	root := newRootCommand(a)
	if err := root.ExecuteContext(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			a.logger.Warn("command interrupted", "error", err)
			os.Exit(130)
		}
		if !errors.Is(err, errBuildFailed) {
			a.logger.Error("command execution failed", "error", err)
		}
		os.Exit(1)
	}
}

// app carries state shared by all commands. logger and cfg are replaced once
// flags and the config file have been read.
type app struct {
	logger    *slog.Logger
	levelVar  *slog.LevelVar
	cfg       config.Config
	elevation elevate.Outcome
}

func newRootCommand(a *app) *cobra.Command {
	var (
		configPath string
		logLevel   string
		logFormat  string
	)

	root := &cobra.Command{
		Use:           "exactiso",
		Short:         "Create a bootable ISO from a drive by driving CreateDriveISO.ps1",
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to a YAML config file (default ./"+config.DefaultFileName+" if present)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "Set log verbosity (debug, info, warning, error)")
	root.PersistentFlags().StringVar(&logFormat, "log-format", "", "Set log format (text, json)")

	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("log-level") {
			cfg.LogLevel = logLevel
		}
		if cmd.Flags().Changed("log-format") {
			cfg.LogFormat = logFormat
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		level, _ := logging.ParseLevel(cfg.LogLevel)
		format, _ := logging.ParseFormat(cfg.LogFormat)
		a.levelVar.Set(level)
		a.logger = logging.New(format, os.Stderr, a.levelVar)
		slog.SetDefault(a.logger)
		a.cfg = cfg

		a.logger.Debug("configuration loaded",
			"interpreter", cfg.Interpreter,
			"base_dir", cfg.BaseDir,
			"elevation", a.elevation.String(),
		)
		return nil
	}

	root.AddCommand(
		newBuildCommand(a),
		newInteractiveCommand(a),
		newInspectCommand(a),
		newVersionCommand(),
	)
	return root
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the exactiso version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), version)
			return nil
		},
	}
}
