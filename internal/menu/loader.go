package menu

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads a menu document from path. See [LoadFromReader] for the format.
func Load(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("menu: open %q: %w", path, err)
	}
	defer f.Close()

	c, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("%w (file %q)", err, path)
	}
	return c, nil
}

// LoadFromReader parses a menu document with two top-level mappings, "main"
// and "addons", each from name to integer price:
//
//	{"main": {"Американо": 90, "Латте": 150}, "addons": {"Сироп": 30, "Корица": 0}}
//
// JSON and YAML are both accepted. Key order in the document is kept and
// becomes the display and prompt order. "addons" may be omitted.
func LoadFromReader(r io.Reader) (*Catalog, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("menu: read: %w", err)
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("menu: parse: %w", err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, ErrEmptyMenu
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("menu: line %d: top level must be a mapping", root.Line)
	}

	var items, addons []Entry
	for i := 0; i+1 < len(root.Content); i += 2 {
		key, val := root.Content[i], root.Content[i+1]
		switch key.Value {
		case "main":
			if items, err = decodeSection(key.Value, val); err != nil {
				return nil, err
			}
		case "addons":
			if addons, err = decodeSection(key.Value, val); err != nil {
				return nil, err
			}
		default:
			return nil, fmt.Errorf("menu: line %d: unknown section %q", key.Line, key.Value)
		}
	}
	return New(items, addons)
}

// decodeSection walks a name → price mapping node in document order.
func decodeSection(section string, n *yaml.Node) ([]Entry, error) {
	if n.Kind == yaml.ScalarNode && n.Tag == "!!null" {
		return nil, nil
	}
	if n.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("menu: line %d: %q must be a mapping of name to price", n.Line, section)
	}
	entries := make([]Entry, 0, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		k, v := n.Content[i], n.Content[i+1]
		var price int
		if err := v.Decode(&price); err != nil {
			return nil, fmt.Errorf("menu: line %d: %s %q: price must be an integer: %w", v.Line, section, k.Value, err)
		}
		entries = append(entries, Entry{Name: k.Value, Price: price})
	}
	return entries, nil
}
