package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/hazlamahedich/shop-widget-go/internal/infrastructure/observability/logging"
)

// FileScope is the durable scope: a JSON file under the state directory
// that survives widget instances. Any filesystem error degrades to a
// no-op so a read-only or missing state dir never breaks the engine.
type FileScope struct {
	path   string
	mu     sync.Mutex
	logger *logging.ChanneledLogger
}

// NewFileScope creates a durable scope backed by dir/widget.json
func NewFileScope(dir string, logger *logging.ChanneledLogger) *FileScope {
	return &FileScope{path: filepath.Join(dir, "widget.json"), logger: logger}
}

func (f *FileScope) Get(key string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	values := f.load()
	value, ok := values[key]
	return value, ok
}

func (f *FileScope) Set(key, value string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	values := f.load()
	values[key] = value
	return f.store(values)
}

func (f *FileScope) Remove(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	values := f.load()
	if _, ok := values[key]; !ok {
		return true
	}
	delete(values, key)
	return f.store(values)
}

func (f *FileScope) load() map[string]string {
	values := make(map[string]string)
	data, err := os.ReadFile(f.path)
	if err != nil {
		return values
	}
	if err := json.Unmarshal(data, &values); err != nil {
		if f.logger != nil {
			f.logger.Storage().Debug("Durable scope file unreadable, starting empty", "path", f.path, "error", err)
		}
		return make(map[string]string)
	}
	return values
}

func (f *FileScope) store(values map[string]string) bool {
	data, err := json.Marshal(values)
	if err != nil {
		return false
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0755); err != nil {
		if f.logger != nil {
			f.logger.Storage().Debug("Durable scope dir unavailable", "path", f.path, "error", err)
		}
		return false
	}
	if err := os.WriteFile(f.path, data, 0644); err != nil {
		if f.logger != nil {
			f.logger.Storage().Debug("Durable scope write failed", "path", f.path, "error", err)
		}
		return false
	}
	return true
}
