package feeders

import (
	"github.com/golobby/config/v3/pkg/feeder"
)

// TomlFeeder reads a TOML file.
type TomlFeeder struct {
	feeder.Toml
}

// NewTomlFeeder creates a new TomlFeeder that reads from the specified TOML file
func NewTomlFeeder(filePath string) TomlFeeder {
	return TomlFeeder{feeder.Toml{Path: filePath}}
}
