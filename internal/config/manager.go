package config

import (
	"fmt"
	"path/filepath"
	"sync"

	"atlauth/pkg/logging"

	"github.com/fsnotify/fsnotify"
)

// ReloadFunc is invoked with the freshly loaded configuration after a
// successful reload.
type ReloadFunc func(*Config)

// Manager owns a loaded configuration and supports live reload without a
// process restart. It watches config.yaml for changes and re-runs the full
// load (defaults, file, environment, validation) on every write; subscribers
// are notified only when the new configuration is valid, so a botched edit
// never replaces a working configuration.
//
// The Manager is an explicitly constructed, injectable service: create it in
// main, pass it by reference, and Stop it on shutdown.
type Manager struct {
	mu         sync.RWMutex
	configPath string
	current    *Config
	subs       []ReloadFunc
	watcher    *fsnotify.Watcher
	done       chan struct{}
}

// NewManager loads the initial configuration from configPath and returns a
// manager holding it. The watcher is not started until Watch is called.
func NewManager(configPath string) (*Manager, error) {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	return &Manager{
		configPath: configPath,
		current:    cfg,
	}, nil
}

// Get returns the current configuration. The returned value must be treated
// as read-only; a reload replaces the pointer rather than mutating in place.
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Subscribe registers fn to be called after every successful reload.
// Subscriptions cannot be removed; subscribe once at startup.
func (m *Manager) Subscribe(fn ReloadFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs = append(m.subs, fn)
}

// Reload re-runs the full configuration load and notifies subscribers.
// On failure the previous configuration stays active and the error is returned.
func (m *Manager) Reload() error {
	cfg, err := LoadConfig(m.configPath)
	if err != nil {
		logging.Warn("Config", "reload failed, keeping previous configuration: %v", err)
		return err
	}

	m.mu.Lock()
	m.current = cfg
	subs := make([]ReloadFunc, len(m.subs))
	copy(subs, m.subs)
	m.mu.Unlock()

	logging.Info("Config", "configuration reloaded from %s", m.configPath)
	for _, fn := range subs {
		fn(cfg)
	}
	return nil
}

// Watch starts watching config.yaml for changes. It returns immediately;
// reloads happen on a background goroutine until Stop is called.
func (m *Manager) Watch() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.watcher != nil {
		return nil // already watching
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create config watcher: %w", err)
	}

	// Watch the directory, not the file: editors replace files on save and
	// a file-level watch is lost after the first rename.
	if err := watcher.Add(m.configPath); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", m.configPath, err)
	}

	m.watcher = watcher
	m.done = make(chan struct{})
	go m.watchLoop(watcher, m.done)

	logging.Info("Config", "watching %s for configuration changes", m.configPath)
	return nil
}

func (m *Manager) watchLoop(watcher *fsnotify.Watcher, done chan struct{}) {
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != configFileName {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			logging.Debug("Config", "change detected on %s", event.Name)
			if err := m.Reload(); err != nil {
				logging.Error("Config", err, "configuration reload failed")
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logging.Warn("Config", "config watcher error: %v", err)
		case <-done:
			return
		}
	}
}

// Stop shuts down the watcher, if running.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.watcher == nil {
		return
	}
	close(m.done)
	m.watcher.Close()
	m.watcher = nil
	m.done = nil
}
