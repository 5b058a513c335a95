package tracker

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/grovetools/prodtrack/errors"
	"gopkg.in/yaml.v3"
)

// FilePersister keeps metrics in a YAML file.
type FilePersister struct {
	mu   sync.Mutex
	path string
}

// NewFilePersister returns a persister writing to path.
func NewFilePersister(path string) *FilePersister {
	return &FilePersister{path: path}
}

// Path returns the backing file.
func (p *FilePersister) Path() string {
	return p.path
}

// Load reads the file. A missing file yields an empty aggregate.
func (p *FilePersister) Load() (map[string]Metric, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	data, err := os.ReadFile(p.path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]Metric), nil
		}
		return nil, errors.StorageFailed("file", fmt.Errorf("read metrics file: %w", err))
	}

	var m map[string]Metric
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, errors.StorageFailed("file", fmt.Errorf("parse metrics file: %w", err))
	}
	if m == nil {
		m = make(map[string]Metric)
	}
	return m, nil
}

// Save replaces the file contents.
func (p *FilePersister) Save(m map[string]Metric) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(p.path), 0755); err != nil {
		return errors.StorageFailed("file", fmt.Errorf("create metrics directory: %w", err))
	}

	data, err := yaml.Marshal(m)
	if err != nil {
		return errors.StorageFailed("file", fmt.Errorf("marshal metrics: %w", err))
	}

	tmp := p.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return errors.StorageFailed("file", fmt.Errorf("write metrics file: %w", err))
	}
	if err := os.Rename(tmp, p.path); err != nil {
		return errors.StorageFailed("file", fmt.Errorf("replace metrics file: %w", err))
	}
	return nil
}

// Clear removes the file.
func (p *FilePersister) Clear() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := os.Remove(p.path); err != nil && !os.IsNotExist(err) {
		return errors.StorageFailed("file", err)
	}
	return nil
}
