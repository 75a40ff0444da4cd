package palette

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/ironsheep/block-mosaic/internal/imaging"
)

// descriptorEntry is one block as written in the descriptor.
type descriptorEntry struct {
	ID      string    `json:"id" yaml:"id"`
	Texture string    `json:"texture" yaml:"texture"`
	Color   colorSpec `json:"color" yaml:"color"`
}

// colorSpec accepts "#RRGGBB" or [r, g, b].
type colorSpec struct {
	set bool
	rgb imaging.RGBColor
}

func (c *colorSpec) UnmarshalJSON(b []byte) error {
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	return c.assign(v)
}

func (c *colorSpec) UnmarshalYAML(n *yaml.Node) error {
	var v interface{}
	if err := n.Decode(&v); err != nil {
		return err
	}
	return c.assign(v)
}

func (c *colorSpec) assign(v interface{}) error {
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		rgb, err := imaging.ParseHex(t)
		if err != nil {
			return err
		}
		c.set, c.rgb = true, rgb
		return nil
	case []interface{}:
		if len(t) != 3 {
			return fmt.Errorf("color must have 3 components, got %d", len(t))
		}
		var comp [3]uint8
		for i, x := range t {
			var f float64
			switch n := x.(type) {
			case float64:
				f = n
			case int:
				f = float64(n)
			default:
				return fmt.Errorf("color component %d is not a number", i)
			}
			if f < 0 || f > 255 || f != float64(int(f)) {
				return fmt.Errorf("color component %d must be an integer in 0-255, got %v", i, x)
			}
			comp[i] = uint8(f)
		}
		c.set, c.rgb = true, imaging.RGBColor{R: comp[0], G: comp[1], B: comp[2]}
		return nil
	default:
		return fmt.Errorf("unsupported color value %v", v)
	}
}

// parseDescriptor reads either descriptor shape, keeping declaration order.
// Documents starting with '{' or '[' are read as JSON, anything else as YAML.
func parseDescriptor(data []byte) ([]descriptorEntry, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, errors.New("descriptor is empty")
	}
	if trimmed[0] == '{' || trimmed[0] == '[' {
		return parseJSONDescriptor(trimmed)
	}
	return parseYAMLDescriptor(trimmed)
}

func parseJSONDescriptor(data []byte) ([]descriptorEntry, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}

	var entries []descriptorEntry
	switch tok {
	case json.Delim('{'):
		for dec.More() {
			keyTok, err := dec.Token()
			if err != nil {
				return nil, err
			}
			id, _ := keyTok.(string)

			var raw json.RawMessage
			if err := dec.Decode(&raw); err != nil {
				return nil, fmt.Errorf("entry %q: %w", id, err)
			}
			e := descriptorEntry{ID: id}
			raw = bytes.TrimSpace(raw)
			if len(raw) > 0 && raw[0] == '"' {
				if err := json.Unmarshal(raw, &e.Texture); err != nil {
					return nil, fmt.Errorf("entry %q: %w", id, err)
				}
			} else {
				var body descriptorEntry
				if err := json.Unmarshal(raw, &body); err != nil {
					return nil, fmt.Errorf("entry %q: %w", id, err)
				}
				e.Texture, e.Color = body.Texture, body.Color
			}
			entries = append(entries, e)
		}
	case json.Delim('['):
		for i := 0; dec.More(); i++ {
			var e descriptorEntry
			if err := dec.Decode(&e); err != nil {
				return nil, fmt.Errorf("entry %d: %w", i, err)
			}
			entries = append(entries, e)
		}
	default:
		return nil, fmt.Errorf("descriptor must be an object or an array")
	}

	// Closing delimiter, then nothing else.
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err == nil {
		return nil, errors.New("unexpected data after descriptor")
	}
	return entries, nil
}

func parseYAMLDescriptor(data []byte) ([]descriptorEntry, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, errors.New("descriptor is empty")
	}

	root := doc.Content[0]
	var entries []descriptorEntry
	switch root.Kind {
	case yaml.MappingNode:
		for i := 0; i+1 < len(root.Content); i += 2 {
			key, val := root.Content[i], root.Content[i+1]
			if key.Kind != yaml.ScalarNode {
				return nil, fmt.Errorf("line %d: block id must be a scalar", key.Line)
			}
			e := descriptorEntry{ID: key.Value}
			switch val.Kind {
			case yaml.ScalarNode:
				e.Texture = val.Value
			case yaml.MappingNode:
				var body descriptorEntry
				if err := val.Decode(&body); err != nil {
					return nil, fmt.Errorf("entry %q: %w", e.ID, err)
				}
				e.Texture, e.Color = body.Texture, body.Color
			default:
				return nil, fmt.Errorf("line %d: entry %q must be a filename or a mapping", val.Line, e.ID)
			}
			entries = append(entries, e)
		}
	case yaml.SequenceNode:
		for i, item := range root.Content {
			var e descriptorEntry
			if err := item.Decode(&e); err != nil {
				return nil, fmt.Errorf("entry %d: %w", i, err)
			}
			entries = append(entries, e)
		}
	default:
		return nil, fmt.Errorf("line %d: descriptor must be a mapping or a sequence", root.Line)
	}
	return entries, nil
}
