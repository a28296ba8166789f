package feeders

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// JSONFeeder reads a JSON file. The document is decoded with the YAML decoder,
// of which JSON is a subset, so fields are matched by their yaml tags and
// durations may be written as strings such as "500ms".
type JSONFeeder struct {
	Path string
}

// NewJSONFeeder creates a new JSONFeeder that reads from the specified JSON file
func NewJSONFeeder(filePath string) JSONFeeder {
	return JSONFeeder{Path: filePath}
}

// Feed implements config.Feeder.
func (f JSONFeeder) Feed(structure any) error {
	data, err := os.ReadFile(filepath.Clean(f.Path))
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrJSONRead, f.Path, err)
	}
	if err := yaml.Unmarshal(data, structure); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrJSONDecode, f.Path, err)
	}
	return nil
}
