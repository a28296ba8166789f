package zeros

import (
	"fmt"
	"strings"
	"time"
)

// Default timings. All of them can be overridden through BootConfig.
const (
	DefaultSignalTimeout            = 2 * time.Second
	DefaultPeripheralSignalTimeout  = 500 * time.Millisecond
	DefaultSignalPollInterval       = 10 * time.Millisecond
	DefaultGraceDelay               = 10 * time.Millisecond
	DefaultPrerequisiteTimeout      = 5 * time.Second
	DefaultPrerequisitePollInterval = 50 * time.Millisecond
)

// EnvPrefix is the prefix of environment variables read by the env feeder.
const EnvPrefix = "ZEROS"

// BootConfig holds every tunable of a boot session.
//
// A zero duration takes its default, so no wait can be disabled through
// configuration. Use a small positive value for a near-immediate timeout.
type BootConfig struct {
	SignalTimeout            time.Duration `yaml:"signal_timeout" toml:"signal_timeout" json:"signal_timeout" env:"SIGNAL_TIMEOUT" default:"2s" desc:"How long the loader waits for a module's ready signal"`
	PeripheralSignalTimeout  time.Duration `yaml:"peripheral_signal_timeout" toml:"peripheral_signal_timeout" json:"peripheral_signal_timeout" env:"PERIPHERAL_SIGNAL_TIMEOUT" default:"500ms" desc:"Ready-signal wait for peripheral drivers during self-check"`
	SignalPollInterval       time.Duration `yaml:"signal_poll_interval" toml:"signal_poll_interval" json:"signal_poll_interval" env:"SIGNAL_POLL_INTERVAL" default:"10ms" desc:"Poll period for signal sources that can only be polled"`
	GraceDelay               time.Duration `yaml:"grace_delay" toml:"grace_delay" json:"grace_delay" env:"GRACE_DELAY" default:"10ms" desc:"Delay after a script load when no signal bus is available"`
	PrerequisiteTimeout      time.Duration `yaml:"prerequisite_timeout" toml:"prerequisite_timeout" json:"prerequisite_timeout" env:"PREREQUISITE_TIMEOUT" default:"5s" desc:"How long to wait for hard prerequisites"`
	PrerequisitePollInterval time.Duration `yaml:"prerequisite_poll_interval" toml:"prerequisite_poll_interval" json:"prerequisite_poll_interval" env:"PREREQUISITE_POLL_INTERVAL" default:"50ms" desc:"Poll period while waiting for prerequisites"`

	SelfCheckSchedule string `yaml:"selfcheck_schedule" toml:"selfcheck_schedule" json:"selfcheck_schedule" env:"SELFCHECK_SCHEDULE" desc:"Cron expression for periodic self-checks after boot; empty disables"`
	StatusAddr        string `yaml:"status_addr" toml:"status_addr" json:"status_addr" env:"STATUS_ADDR" default:":8080" desc:"Listen address of the status server"`

	LogLevel  string `yaml:"log_level" toml:"log_level" json:"log_level" env:"LOG_LEVEL" default:"info" desc:"debug, info, warn or error"`
	LogFormat string `yaml:"log_format" toml:"log_format" json:"log_format" env:"LOG_FORMAT" default:"text" desc:"text or json"`

	ScriptBaseURL string `yaml:"script_base_url" toml:"script_base_url" json:"script_base_url" env:"SCRIPT_BASE_URL" desc:"Base URL module scripts are fetched from"`
	ScriptDir     string `yaml:"script_dir" toml:"script_dir" json:"script_dir" env:"SCRIPT_DIR" desc:"Directory module scripts are read from"`
	ScriptExt     string `yaml:"script_ext" toml:"script_ext" json:"script_ext" env:"SCRIPT_EXT" default:".js" desc:"Extension appended to module ids when reading scripts"`
	Manifest      string `yaml:"manifest" toml:"manifest" json:"manifest" env:"MANIFEST" desc:"Path of the module manifest"`
}

// DefaultBootConfig returns a BootConfig with every default applied.
func DefaultBootConfig() *BootConfig {
	cfg := &BootConfig{}
	// Defaults are static tags; failure here is a programming error.
	if err := ProcessConfigDefaults(cfg); err != nil {
		panic(err)
	}
	return cfg
}

// Validate implements ConfigValidator.
func (c *BootConfig) Validate() error {
	durations := map[string]time.Duration{
		"signal_timeout":             c.SignalTimeout,
		"peripheral_signal_timeout":  c.PeripheralSignalTimeout,
		"signal_poll_interval":       c.SignalPollInterval,
		"grace_delay":                c.GraceDelay,
		"prerequisite_timeout":       c.PrerequisiteTimeout,
		"prerequisite_poll_interval": c.PrerequisitePollInterval,
	}
	for name, d := range durations {
		if d < 0 {
			return fmt.Errorf("%s must not be negative, got %s", name, d)
		}
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level %q is not one of debug, info, warn, error", c.LogLevel)
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("log_format %q is not one of text, json", c.LogFormat)
	}

	if c.SelfCheckSchedule != "" {
		if _, err := ParseSchedule(c.SelfCheckSchedule); err != nil {
			return err
		}
	}
	return nil
}

// waitOptions is the loader's ready-signal wait.
func (c *BootConfig) waitOptions() WaitOptions {
	return WaitOptions{Interval: c.SignalPollInterval, Timeout: c.SignalTimeout}
}

// peripheralWaitOptions is the self-check's shorter ready-signal wait.
func (c *BootConfig) peripheralWaitOptions() WaitOptions {
	return WaitOptions{Interval: c.SignalPollInterval, Timeout: c.PeripheralSignalTimeout}
}
