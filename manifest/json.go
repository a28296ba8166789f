package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/GoCodeAlone/zeros"
)

// parseJSON streams tokens so the modules object keeps its key order.
func parseJSON(data []byte) (*Manifest, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := expectDelim(dec, '{'); err != nil {
		return nil, err
	}

	m := &Manifest{}
	for dec.More() {
		key, err := nextKey(dec)
		if err != nil {
			return nil, err
		}
		switch key {
		case "modules":
			m.Declaration, err = decodeJSONModules(dec)
		case "prerequisites":
			err = dec.Decode(&m.Prerequisites)
		case "fixups":
			err = dec.Decode(&m.Fixups)
		case "selfcheck":
			err = dec.Decode(&m.SelfCheck)
		default:
			var skip json.RawMessage
			err = dec.Decode(&skip)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrInvalid, key, err)
		}
	}
	if err := expectDelim(dec, '}'); err != nil {
		return nil, err
	}
	return m, nil
}

func decodeJSONModules(dec *json.Decoder) (zeros.Declaration, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	delim, ok := tok.(json.Delim)
	if !ok {
		return nil, fmt.Errorf("modules must be an object or an array")
	}

	var decl zeros.Declaration
	switch delim {
	case '{':
		for dec.More() {
			id, err := nextKey(dec)
			if err != nil {
				return nil, err
			}
			var deps []string
			if err := dec.Decode(&deps); err != nil {
				return nil, fmt.Errorf("dependencies of %q: %w", id, err)
			}
			decl = append(decl, zeros.ModuleDescriptor{ID: id, Dependencies: deps})
		}
	case '[':
		for dec.More() {
			var md zeros.ModuleDescriptor
			if err := dec.Decode(&md); err != nil {
				return nil, err
			}
			decl = append(decl, md)
		}
	default:
		return nil, fmt.Errorf("modules must be an object or an array")
	}
	// closing delimiter
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return decl, nil
}

func nextKey(dec *json.Decoder) (string, error) {
	tok, err := dec.Token()
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	key, ok := tok.(string)
	if !ok {
		return "", fmt.Errorf("%w: expected object key, got %v", ErrInvalid, tok)
	}
	return key, nil
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return fmt.Errorf("%w: expected %q, got %v", ErrInvalid, want, tok)
	}
	return nil
}
