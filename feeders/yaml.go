// Package feeders provides golobby/config feeders for the bootloader's
// configuration sources: YAML, TOML and JSON files plus prefixed environment
// variables.
package feeders

import (
	"github.com/golobby/config/v3/pkg/feeder"
)

// YamlFeeder reads a YAML file. Durations may be written as "2s".
type YamlFeeder struct {
	feeder.Yaml
}

// NewYamlFeeder creates a new YamlFeeder that reads from the specified YAML file
func NewYamlFeeder(filePath string) YamlFeeder {
	return YamlFeeder{feeder.Yaml{Path: filePath}}
}
