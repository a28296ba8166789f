package manifest

import (
	"fmt"

	"github.com/GoCodeAlone/zeros"
	"gopkg.in/yaml.v3"
)

type yamlFile struct {
	Modules       yaml.Node                `yaml:"modules"`
	Prerequisites []string                 `yaml:"prerequisites"`
	Fixups        []zeros.Fixup            `yaml:"fixups"`
	SelfCheck     zeros.SelfCheckInventory `yaml:"selfcheck"`
}

// parseYAML walks the modules node directly because decoding it into a map
// would lose key order.
func parseYAML(data []byte) (*Manifest, error) {
	var f yamlFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}

	m := &Manifest{Prerequisites: f.Prerequisites, Fixups: f.Fixups, SelfCheck: f.SelfCheck}

	switch f.Modules.Kind {
	case 0:
		// no modules key
	case yaml.ScalarNode:
		if f.Modules.Tag != "!!null" {
			return nil, fmt.Errorf("%w: modules must be a mapping or a list (line %d)", ErrInvalid, f.Modules.Line)
		}
	case yaml.MappingNode:
		content := f.Modules.Content
		for i := 0; i+1 < len(content); i += 2 {
			var deps []string
			if err := content[i+1].Decode(&deps); err != nil {
				return nil, fmt.Errorf("%w: dependencies of %q: %w", ErrInvalid, content[i].Value, err)
			}
			m.Declaration = append(m.Declaration, zeros.ModuleDescriptor{ID: content[i].Value, Dependencies: deps})
		}
	case yaml.SequenceNode:
		if err := f.Modules.Decode(&m.Declaration); err != nil {
			return nil, fmt.Errorf("%w: modules: %w", ErrInvalid, err)
		}
	default:
		return nil, fmt.Errorf("%w: modules must be a mapping or a list (line %d)", ErrInvalid, f.Modules.Line)
	}
	return m, nil
}
