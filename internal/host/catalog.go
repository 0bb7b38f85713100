package host

import (
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Catalog resolves table metadata by name.
type Catalog interface {
	FindTable(name string) (*Table, error)
	Tables() []*Table
}

type catalogFile struct {
	Tables []*Table `yaml:"tables" validate:"required,dive"`
}

// StaticCatalog is a catalog loaded once from a schema file.
type StaticCatalog struct {
	mu     sync.RWMutex
	tables map[string]*Table
}

// NewStaticCatalog builds a catalog from table definitions and checks that
// every Key field references a known table.
func NewStaticCatalog(tables []*Table) (*StaticCatalog, error) {
	c := &StaticCatalog{tables: make(map[string]*Table, len(tables))}
	for _, t := range tables {
		if _, dup := c.tables[t.Name]; dup {
			return nil, fmt.Errorf("duplicate table %q", t.Name)
		}
		c.tables[t.Name] = t
	}
	for _, t := range tables {
		for _, f := range t.Fields {
			if f.Type != TypeKey {
				continue
			}
			if _, ok := c.tables[f.RefTable]; !ok {
				return nil, fmt.Errorf("%s.%s references %w %q", t.Name, f.Name, ErrUnknownTable, f.RefTable)
			}
		}
	}
	return c, nil
}

// LoadCatalog reads a YAML schema file.
func LoadCatalog(path string) (*StaticCatalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema file: %w", err)
	}
	return ParseCatalog(data)
}

// ParseCatalog parses and validates a YAML schema document.
func ParseCatalog(data []byte) (*StaticCatalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse schema: %w", err)
	}
	if err := validator.New().Struct(file); err != nil {
		return nil, fmt.Errorf("invalid schema: %w", err)
	}
	return NewStaticCatalog(file.Tables)
}

func (c *StaticCatalog) FindTable(name string) (*Table, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.tables[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTable, name)
	}
	return t, nil
}

// Tables returns every table sorted by name.
func (c *StaticCatalog) Tables() []*Table {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*Table, 0, len(c.tables))
	for _, t := range c.tables {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
