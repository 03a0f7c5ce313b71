package routes

import (
	"bytes"
	"fmt"
	"io/fs"

	"github.com/pelletier/go-toml/v2"
)

// Definition is the declarative form of a route, as written in routes.toml.
type Definition struct {
	Path         string       `toml:"path"`
	Name         string       `toml:"name,omitempty"`
	Component    string       `toml:"component,omitempty"`
	Title        string       `toml:"title,omitempty"`
	Lazy         bool         `toml:"lazy,omitempty"`
	RequiresAuth bool         `toml:"requires_auth,omitempty"`
	Children     []Definition `toml:"children,omitempty"`
}

type definitionFile struct {
	Routes []Definition `toml:"routes"`
}

// LoadFile reads route definitions from a TOML file in fsys. Unknown keys are
// rejected so that typos in the table fail at startup.
func LoadFile(fsys fs.FS, name string) ([]Definition, error) {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, fmt.Errorf("read route file %s: %w", name, err)
	}
	return Parse(data)
}

// Parse decodes route definitions from TOML.
func Parse(data []byte) ([]Definition, error) {
	var f definitionFile
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("decode route definitions: %w", err)
	}
	return f.Routes, nil
}
