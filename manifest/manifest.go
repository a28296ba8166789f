// Package manifest reads module declarations from YAML, TOML or JSON files.
//
// All three formats share one layout: a "modules" table mapping each module id
// to the ids it depends on, optional "prerequisites", optional "fixups" and an
// optional "selfcheck" inventory. Modules are returned in file order.
//
//	modules:
//	  kernel/core: []
//	  kernel/fs: [kernel/core]
//	prerequisites: [storage]
//	fixups:
//	  - {entity: scheduler, category: services, key: scheduler}
//	selfcheck:
//	  core: [kernel/core]
//
// "modules" may also be a list of {id, dependencies} objects.
package manifest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/GoCodeAlone/zeros"
)

// Format is a manifest encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
	FormatJSON Format = "json"
)

var (
	ErrUnknownFormat = errors.New("unknown manifest format")
	ErrInvalid       = errors.New("invalid manifest")
)

// Manifest is a parsed manifest file.
type Manifest struct {
	Declaration   zeros.Declaration
	Prerequisites []string
	Fixups        []zeros.Fixup
	SelfCheck     zeros.SelfCheckInventory
}

// PrerequisiteList converts Prerequisites with zeros.ParsePrerequisite.
func (m *Manifest) PrerequisiteList() []zeros.Prerequisite {
	out := make([]zeros.Prerequisite, 0, len(m.Prerequisites))
	for _, p := range m.Prerequisites {
		out = append(out, zeros.ParsePrerequisite(p))
	}
	return out
}

// Options returns the bootloader options the manifest describes.
func (m *Manifest) Options() []zeros.Option {
	return []zeros.Option{
		zeros.WithDeclaration(m.Declaration),
		zeros.WithPrerequisites(m.PrerequisiteList()...),
		zeros.WithFixups(m.Fixups...),
		zeros.WithInventory(m.SelfCheck),
	}
}

// FormatFromPath picks a format by file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownFormat, path)
	}
}

// Load reads and parses the manifest at path.
func Load(path string) (*Manifest, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	m, err := Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// Parse decodes data in the given format.
func Parse(data []byte, format Format) (*Manifest, error) {
	var (
		m   *Manifest
		err error
	)
	switch format {
	case FormatYAML:
		m, err = parseYAML(data)
	case FormatTOML:
		m, err = parseTOML(data)
	case FormatJSON:
		m, err = parseJSON(data)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	if err != nil {
		return nil, err
	}
	if err := m.validate(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Manifest) validate() error {
	// Building the graph rejects empty and duplicate ids.
	if _, err := zeros.NewDependencyGraph(m.Declaration); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	for i, f := range m.Fixups {
		if f.Category == "" || f.Key == "" {
			return fmt.Errorf("%w: fixup %d needs category and key", ErrInvalid, i)
		}
	}
	return nil
}
