package zeros

import (
	"fmt"

	"github.com/golobby/config/v3"
)

// Feeder is a configuration source, as defined by golobby/config.
type Feeder = config.Feeder

// ConfigSetup is an interface that configs can implement
// to perform additional setup after being populated by feeders
type ConfigSetup interface {
	Setup() error
}

// Config combines feeders and target structures on top of golobby/config.
type Config struct {
	*config.Config
}

// NewConfig creates a new configuration builder
func NewConfig() *Config {
	return &Config{Config: config.New()}
}

// Feed runs every feeder, in order, into every structure, then applies defaults,
// validates and calls Setup where implemented.
func (c *Config) Feed() error {
	if err := c.Config.Feed(); err != nil {
		return fmt.Errorf("%w: %w", ErrConfigFeederError, err)
	}

	for _, target := range c.Structs {
		if err := ValidateConfig(target); err != nil {
			return err
		}
		if s, ok := target.(ConfigSetup); ok {
			if err := s.Setup(); err != nil {
				return fmt.Errorf("config setup failed: %w", err)
			}
		}
	}
	return nil
}

// LoadConfig fills cfg from feeders, later feeders overriding earlier ones, then
// applies defaults and validates it.
func LoadConfig(cfg *BootConfig, feeders ...Feeder) error {
	if cfg == nil {
		return ErrConfigNil
	}
	c := NewConfig()
	c.AddFeeder(feeders...)
	c.AddStruct(cfg)
	return c.Feed()
}
