package view

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"mindmap-backend/internal/config"
)

// ErrViewNotFound is returned for unknown view names.
var ErrViewNotFound = errors.New("view not found")

type viewsFile struct {
	Views []*Configuration `yaml:"views" validate:"dive"`
}

// Registry serves named view configurations loaded from a YAML file. The
// set is replaced wholesale on reload.
type Registry struct {
	path   string
	logger *zap.Logger

	mu      sync.RWMutex
	views   map[string]*Configuration
	watcher *config.FileWatcher
}

// NewRegistry creates a registry holding views.
func NewRegistry(views []*Configuration, logger *zap.Logger) (*Registry, error) {
	r := &Registry{logger: logger}
	if err := r.replace(views); err != nil {
		return nil, err
	}
	return r, nil
}

// LoadRegistry reads the views file at path.
func LoadRegistry(path string, logger *zap.Logger) (*Registry, error) {
	r := &Registry{path: path, logger: logger}
	if err := r.Reload(); err != nil {
		return nil, err
	}
	return r, nil
}

// ParseViews parses and validates a views document.
func ParseViews(data []byte) ([]*Configuration, error) {
	var file viewsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse views: %w", err)
	}
	if err := validator.New().Struct(file); err != nil {
		return nil, fmt.Errorf("invalid views: %w", err)
	}
	return file.Views, nil
}

// Reload re-reads the views file. On error the current set is kept.
func (r *Registry) Reload() error {
	data, err := os.ReadFile(r.path)
	if err != nil {
		return fmt.Errorf("failed to read views file: %w", err)
	}
	views, err := ParseViews(data)
	if err != nil {
		return err
	}
	if err := r.replace(views); err != nil {
		return err
	}
	r.logger.Info("Views loaded", zap.String("path", r.path), zap.Int("count", len(views)))
	return nil
}

func (r *Registry) replace(views []*Configuration) error {
	next := make(map[string]*Configuration, len(views))
	for _, v := range views {
		if _, dup := next[v.Name]; dup {
			return fmt.Errorf("duplicate view %q", v.Name)
		}
		if _, err := v.AnnotationList(); err != nil {
			return err
		}
		next[v.Name] = v
	}
	r.mu.Lock()
	r.views = next
	r.mu.Unlock()
	return nil
}

// Get returns the named view.
func (r *Registry) Get(name string) (*Configuration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.views[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrViewNotFound, name)
	}
	return v, nil
}

// Names returns the view names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.views))
	for n := range r.views {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Watch reloads the registry whenever its file changes, until Close.
func (r *Registry) Watch() error {
	if r.path == "" {
		return errors.New("registry has no backing file")
	}
	w, err := config.NewFileWatcher(r.path, r.Reload, r.logger)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.watcher = w
	r.mu.Unlock()
	w.Start()
	return nil
}

// Close stops watching.
func (r *Registry) Close() {
	r.mu.RLock()
	w := r.watcher
	r.mu.RUnlock()
	if w != nil {
		w.Stop()
	}
}
