// Package examples loads pre-computed screening reports served in demo mode.
package examples

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/helixir/thematic-screener-service/internal/domain"
)

// Catalog is an immutable, name-indexed set of examples.
type Catalog struct {
	examples []domain.Example
	byName   map[string]int
}

// NewCatalog indexes examples by name. Duplicate names are rejected.
func NewCatalog(examples []domain.Example) (*Catalog, error) {
	c := &Catalog{
		examples: make([]domain.Example, 0, len(examples)),
		byName:   make(map[string]int, len(examples)),
	}
	for _, ex := range examples {
		if ex.Name == "" {
			return nil, domain.NewValidationError("name", "example name is required")
		}
		if _, dup := c.byName[ex.Name]; dup {
			return nil, domain.NewAlreadyExistsError("example", ex.Name)
		}
		c.byName[ex.Name] = len(c.examples)
		c.examples = append(c.examples, ex)
	}
	return c, nil
}

// LoadDir reads every *.json file in dir as one example. A file without a
// name takes the file name without extension. An empty dir yields an empty
// catalog; a missing dir is an error.
func LoadDir(dir string) (*Catalog, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("listing examples: %w", err)
	}
	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("reading examples dir: %w", err)
	}
	sort.Strings(paths)

	examples := make([]domain.Example, 0, len(paths))
	for _, path := range paths {
		ex, err := loadFile(path)
		if err != nil {
			return nil, err
		}
		examples = append(examples, ex)
	}
	return NewCatalog(examples)
}

func loadFile(path string) (domain.Example, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Example{}, fmt.Errorf("reading example %s: %w", path, err)
	}

	var ex domain.Example
	if err := json.Unmarshal(data, &ex); err != nil {
		return domain.Example{}, fmt.Errorf("decoding example %s: %w", path, err)
	}
	if ex.Name == "" {
		ex.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return ex, nil
}

// List returns the examples in load order.
func (c *Catalog) List() []domain.Example {
	if c == nil {
		return []domain.Example{}
	}
	return append([]domain.Example(nil), c.examples...)
}

// Names returns the example names in load order.
func (c *Catalog) Names() []string {
	if c == nil {
		return []string{}
	}
	names := make([]string, 0, len(c.examples))
	for _, ex := range c.examples {
		names = append(names, ex.Name)
	}
	return names
}

// Get returns the example called name.
func (c *Catalog) Get(name string) (*domain.Example, error) {
	if c != nil {
		if i, ok := c.byName[name]; ok {
			ex := c.examples[i]
			return &ex, nil
		}
	}
	return nil, domain.NewNotFoundError("example", name)
}
