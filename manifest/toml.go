package manifest

import (
	"fmt"

	"github.com/BurntSushi/toml"
	"github.com/GoCodeAlone/zeros"
)

type tomlFile struct {
	Modules       toml.Primitive           `toml:"modules"`
	Prerequisites []string                 `toml:"prerequisites"`
	Fixups        []zeros.Fixup            `toml:"fixups"`
	SelfCheck     zeros.SelfCheckInventory `toml:"selfcheck"`
}

// parseTOML recovers module order from MetaData.Keys, which lists keys in the
// order they appear in the document.
func parseTOML(data []byte) (*Manifest, error) {
	var f tomlFile
	md, err := toml.Decode(string(data), &f)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}

	m := &Manifest{Prerequisites: f.Prerequisites, Fixups: f.Fixups, SelfCheck: f.SelfCheck}
	if !md.IsDefined("modules") {
		return m, nil
	}

	// [[modules]] arrays of tables carry their own order.
	if md.Type("modules") == "ArrayHash" {
		if err := md.PrimitiveDecode(f.Modules, &m.Declaration); err != nil {
			return nil, fmt.Errorf("%w: modules: %w", ErrInvalid, err)
		}
		return m, nil
	}

	var table map[string][]string
	if err := md.PrimitiveDecode(f.Modules, &table); err != nil {
		return nil, fmt.Errorf("%w: modules: %w", ErrInvalid, err)
	}
	for _, key := range md.Keys() {
		if len(key) != 2 || key[0] != "modules" {
			continue
		}
		id := key[1]
		m.Declaration = append(m.Declaration, zeros.ModuleDescriptor{ID: id, Dependencies: table[id]})
	}
	return m, nil
}
