package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/courierhq/courier/packages/collection"
)

// WatchDebounceDelay is the debounce delay for file watch events
const WatchDebounceDelay = 300 * time.Millisecond

// Environment is one named set of environment-scoped variables.
type Environment struct {
	Name      string                `yaml:"name"`
	Variables []collection.Variable `yaml:"variables"`
}

// EnvironmentStore is the live variable store. It supplies variables to
// the runner and accepts set(key, value) writes from scripts. All
// methods are safe for concurrent use.
type EnvironmentStore struct {
	mu       sync.RWMutex
	env      Environment
	path     string
	watcher  *fsnotify.Watcher
	onReload func()
	closed   chan struct{}
}

// NewEnvironmentStore wraps an in-memory environment; useful for tests
// and callers without a backing file.
func NewEnvironmentStore(env Environment) *EnvironmentStore {
	return &EnvironmentStore{env: env}
}

// LoadEnvironment reads an environment document from a YAML file.
func LoadEnvironment(path string) (*EnvironmentStore, error) {
	s := &EnvironmentStore{path: path}
	if err := s.reload(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *EnvironmentStore) reload() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("reading environment file: %w", err)
	}
	var env Environment
	if err := yaml.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("parsing environment file %s: %w", s.path, err)
	}
	s.mu.Lock()
	s.env = env
	s.mu.Unlock()
	return nil
}

// Name returns the environment's name.
func (s *EnvironmentStore) Name() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.env.Name
}

// Variables returns a copy of the current variable list.
func (s *EnvironmentStore) Variables() []collection.Variable {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]collection.Variable, len(s.env.Variables))
	copy(out, s.env.Variables)
	return out
}

// Get returns the effective value of an enabled variable.
func (s *EnvironmentStore) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := len(s.env.Variables) - 1; i >= 0; i-- {
		v := s.env.Variables[i]
		if v.Key == key && v.Enabled {
			return v.EffectiveValue(), true
		}
	}
	return "", false
}

// Set updates a variable's current value, creating an enabled variable
// if no entry with that key exists. This is the write path scripts use.
func (s *EnvironmentStore) Set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.env.Variables {
		if s.env.Variables[i].Key == key {
			s.env.Variables[i].CurrentValue = value
			return
		}
	}
	s.env.Variables = append(s.env.Variables, collection.Variable{
		Key:          key,
		CurrentValue: value,
		Enabled:      true,
	})
}

// All returns the effective values of every enabled variable.
func (s *EnvironmentStore) All() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.env.Variables))
	for _, v := range s.env.Variables {
		if v.Enabled {
			out[v.Key] = v.EffectiveValue()
		}
	}
	return out
}

// Watch reloads the store when its backing file changes. The optional
// callback fires after each successful reload. Script writes made since
// the last file save are replaced by the file contents.
func (s *EnvironmentStore) Watch(onReload func()) error {
	if s.path == "" {
		return fmt.Errorf("environment store has no backing file")
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating file watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		watcher.Close()
		return fmt.Errorf("watching %s: %w", s.path, err)
	}

	s.mu.Lock()
	s.watcher = watcher
	s.onReload = onReload
	s.closed = make(chan struct{})
	s.mu.Unlock()

	go s.watchLoop(watcher)
	return nil
}

func (s *EnvironmentStore) watchLoop(watcher *fsnotify.Watcher) {
	var debounce *time.Timer
	target := filepath.Clean(s.path)

	for {
		select {
		case <-s.closed:
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(WatchDebounceDelay, func() {
				if err := s.reload(); err != nil {
					return
				}
				s.mu.RLock()
				cb := s.onReload
				s.mu.RUnlock()
				if cb != nil {
					cb()
				}
			})
		case _, ok := <-watcher.Errors:
			if !ok {
				return
			}
		}
	}
}

// Close stops the file watcher if one is running.
func (s *EnvironmentStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed != nil {
		close(s.closed)
		s.closed = nil
	}
	if s.watcher != nil {
		err := s.watcher.Close()
		s.watcher = nil
		return err
	}
	return nil
}
