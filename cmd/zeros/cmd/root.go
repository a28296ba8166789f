package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/GoCodeAlone/zeros"
	"github.com/GoCodeAlone/zeros/feeders"
)

// Version information
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// app is the state shared by all subcommands once flags are parsed.
type app struct {
	configPath string
	logLevel   string
	logFormat  string

	cfg    *zeros.BootConfig
	logger *slog.Logger
}

// NewRootCommand creates the root command for the zeros CLI
func NewRootCommand() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:   "zeros",
		Short: "ZerOS bootloader",
		Long: `zeros orders kernel modules by their declared dependencies, loads them
layer by layer and verifies the booted system with a self-check.`,
		Version:       fmt.Sprintf("%s (commit: %s, built on: %s)", Version, Commit, Date),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd.ErrOrStderr())
		},
	}

	cmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "configuration file (.yaml, .toml or .json)")
	cmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "override log_level")
	cmd.PersistentFlags().StringVar(&a.logFormat, "log-format", "", "override log_format")

	cmd.AddCommand(newOrderCommand(a))
	cmd.AddCommand(newBootCommand(a))
	cmd.AddCommand(newServeCommand(a))
	cmd.AddCommand(newConfigCommand(a))

	return cmd
}

// setup loads configuration and builds the logger.
func (a *app) setup(logOut io.Writer) error {
	var fs []zeros.Feeder
	if a.configPath != "" {
		f, err := fileFeeder(a.configPath)
		if err != nil {
			return err
		}
		fs = append(fs, f)
	}
	fs = append(fs, feeders.NewPrefixedEnvFeeder(zeros.EnvPrefix))

	cfg := &zeros.BootConfig{}
	if err := zeros.LoadConfig(cfg, fs...); err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	// Flags win over files and environment.
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}
	if a.logFormat != "" {
		cfg.LogFormat = a.logFormat
	}

	a.cfg = cfg
	a.logger = newLogger(logOut, cfg.LogLevel, cfg.LogFormat)
	return nil
}

func fileFeeder(path string) (zeros.Feeder, error) {
	lower := strings.ToLower(path)
	switch {
	case strings.HasSuffix(lower, ".yaml"), strings.HasSuffix(lower, ".yml"):
		return feeders.NewYamlFeeder(path), nil
	case strings.HasSuffix(lower, ".toml"):
		return feeders.NewTomlFeeder(path), nil
	case strings.HasSuffix(lower, ".json"):
		return feeders.NewJSONFeeder(path), nil
	default:
		return nil, fmt.Errorf("%w: %s", zeros.ErrUnsupportedFormatType, path)
	}
}

func newLogger(w io.Writer, level, format string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if strings.ToLower(format) == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
