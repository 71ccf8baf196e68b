package scenario

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load reads a scenario from a .yaml, .yml or .json file. Unknown fields are rejected. Entity-level
// problems are not load errors; see Problems.
func Load(path string) (*Scenario, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("scenario: open %q: %w", path, err)
	}
	defer f.Close()

	var s *Scenario
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		s, err = LoadFromReader(f)
	case ".json":
		s, err = LoadJSON(f)
	default:
		return nil, fmt.Errorf("scenario: unsupported file extension %q", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("scenario: parse %q: %w", path, err)
	}
	if s.FileName == "" {
		s.FileName = filepath.Base(path)
	}
	return s, nil
}

// LoadFromReader decodes a YAML scenario.
func LoadFromReader(r io.Reader) (*Scenario, error) {
	s := &Scenario{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(s); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	s.applyDefaults()
	return s, nil
}

// LoadJSON decodes a JSON scenario.
func LoadJSON(r io.Reader) (*Scenario, error) {
	s := &Scenario{}
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(s); err != nil {
		return nil, fmt.Errorf("decode json: %w", err)
	}
	s.applyDefaults()
	return s, nil
}
