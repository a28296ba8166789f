package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/GoCodeAlone/zeros"
)

func newConfigCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect bootloader configuration",
	}
	cmd.AddCommand(newConfigSampleCommand())
	cmd.AddCommand(newConfigShowCommand(a))
	cmd.AddCommand(newConfigDescribeCommand())
	return cmd
}

func newConfigSampleCommand() *cobra.Command {
	return &cobra.Command{
		Use:       "sample <yaml|toml|json>",
		Short:     "Print a sample configuration with defaults filled in",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"yaml", "toml", "json"},
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := zeros.GenerateSampleConfig(&zeros.BootConfig{}, args[0])
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}

func newConfigShowCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			for _, d := range zeros.DescribeConfig(a.cfg) {
				fmt.Fprintf(out, "%s: %v\n", d[0], configValue(a.cfg, d[0]))
			}
			return nil
		},
	}
}

func newConfigDescribeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "describe",
		Short: "List configuration keys with their descriptions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			for _, d := range zeros.DescribeConfig(&zeros.BootConfig{}) {
				fmt.Fprintf(out, "%-28s %s\n", d[0], d[1])
			}
			return nil
		},
	}
}

func configValue(cfg *zeros.BootConfig, key string) any {
	switch key {
	case "signal_timeout":
		return cfg.SignalTimeout
	case "peripheral_signal_timeout":
		return cfg.PeripheralSignalTimeout
	case "signal_poll_interval":
		return cfg.SignalPollInterval
	case "grace_delay":
		return cfg.GraceDelay
	case "prerequisite_timeout":
		return cfg.PrerequisiteTimeout
	case "prerequisite_poll_interval":
		return cfg.PrerequisitePollInterval
	case "selfcheck_schedule":
		return cfg.SelfCheckSchedule
	case "status_addr":
		return cfg.StatusAddr
	case "log_level":
		return cfg.LogLevel
	case "log_format":
		return cfg.LogFormat
	case "script_base_url":
		return cfg.ScriptBaseURL
	case "script_dir":
		return cfg.ScriptDir
	case "script_ext":
		return cfg.ScriptExt
	case "manifest":
		return cfg.Manifest
	default:
		return nil
	}
}
