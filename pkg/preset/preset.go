// Package preset loads named dice notations from YAML files.
//
// A preset file looks like:
//
//	presets:
//	  - name: fireball
//	    notation: 8d6
//	    description: 3rd level, dexterity save for half
//	  - name: stats
//	    notation: 4d6k3
package preset

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/lemonberrylabs/dicenotation/pkg/dice"
	"gopkg.in/yaml.v3"
)

// MaxSourceSize is the maximum preset file size in bytes (64 KB).
const MaxSourceSize = 64 * 1024

var namePattern = regexp.MustCompile(`^[a-z][a-z0-9_-]*$`)

// Preset is a named notation.
type Preset struct {
	Name        string `yaml:"name"`
	Notation    string `yaml:"notation"`
	Description string `yaml:"description,omitempty"`
}

type document struct {
	Presets []Preset `yaml:"presets"`
}

// ParseError represents an error encountered while reading a preset file.
type ParseError struct {
	Message  string
	Location string // e.g., "preset 'fireball' in dnd.yaml"
}

func (e *ParseError) Error() string {
	if e.Location != "" {
		return fmt.Sprintf("preset error at %s: %s", e.Location, e.Message)
	}
	return fmt.Sprintf("preset error: %s", e.Message)
}

// ValidName reports whether name can be used as a preset name.
func ValidName(name string) bool {
	return namePattern.MatchString(name)
}

// Validate checks a single preset: its name and that its notation compiles.
func Validate(p Preset, c *dice.Compiler) error {
	if !ValidName(p.Name) {
		return &ParseError{Message: fmt.Sprintf("invalid name %q: must match %s", p.Name, namePattern)}
	}
	loc := fmt.Sprintf("preset '%s'", p.Name)
	if strings.TrimSpace(p.Notation) == "" {
		return &ParseError{Message: "notation is required", Location: loc}
	}
	if _, err := c.Compile(p.Notation); err != nil {
		return &ParseError{Message: err.Error(), Location: loc}
	}
	return nil
}

// Parse reads a preset document and validates every entry.
func Parse(source []byte, c *dice.Compiler) ([]Preset, error) {
	if len(source) > MaxSourceSize {
		return nil, &ParseError{Message: fmt.Sprintf("preset source size %d exceeds maximum %d bytes", len(source), MaxSourceSize)}
	}

	var doc document
	dec := yaml.NewDecoder(bytes.NewReader(source))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, &ParseError{Message: fmt.Sprintf("invalid YAML: %v", err)}
	}

	seen := make(map[string]bool, len(doc.Presets))
	for i, p := range doc.Presets {
		if err := Validate(p, c); err != nil {
			var pe *ParseError
			if errors.As(err, &pe) && pe.Location == "" {
				pe.Location = fmt.Sprintf("presets[%d]", i)
			}
			return nil, err
		}
		if seen[p.Name] {
			return nil, &ParseError{Message: "duplicate name", Location: fmt.Sprintf("preset '%s'", p.Name)}
		}
		seen[p.Name] = true
	}
	return doc.Presets, nil
}

// LoadFile reads and parses one preset file.
func LoadFile(path string, c *dice.Compiler) ([]Preset, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	presets, err := Parse(source, c)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return presets, nil
}

// LoadDir loads every .yaml and .yml file in dir, in name order. Presets
// from files that fail to load are skipped and their errors joined into
// the returned error; a later file overrides an earlier preset of the
// same name.
func LoadDir(dir string, c *dice.Compiler) ([]Preset, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read presets dir: %w", err)
	}

	var files []string
	for _, entry := range entries {
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if !entry.IsDir() && (ext == ".yaml" || ext == ".yml") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)

	byName := make(map[string]Preset)
	var errs []error
	for _, file := range files {
		presets, err := LoadFile(filepath.Join(dir, file), c)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		for _, p := range presets {
			byName[p.Name] = p
		}
	}

	result := make([]Preset, 0, len(byName))
	for _, p := range byName {
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Name < result[j].Name
	})
	return result, errors.Join(errs...)
}
