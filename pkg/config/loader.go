package config

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Loader handles loading and watching the configuration file.
type Loader struct {
	path      string
	logger    *slog.Logger
	watcher   *fsnotify.Watcher
	current   *Config
	mu        sync.RWMutex
	onChange  func(*Config)
	close     chan struct{}
	closeOnce sync.Once
}

// NewLoader creates a Loader for path.
func NewLoader(path string, logger *slog.Logger) (*Loader, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Loader{
		path:   absPath,
		logger: logger,
		close:  make(chan struct{}),
	}, nil
}

// Path returns the absolute path being loaded.
func (l *Loader) Path() string {
	return l.path
}

// Load reads, validates, and stores the configuration. A failed load leaves
// the previous configuration in place.
func (l *Loader) Load() (*Config, error) {
	cfg, err := Load(l.path)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	l.current = cfg
	l.mu.Unlock()

	return cfg, nil
}

// Watch starts monitoring the config file for changes and calls onChange
// with every configuration that loads and validates.
func (l *Loader) Watch(onChange func(*Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	l.watcher = watcher
	l.onChange = onChange

	// Editors often replace the file atomically, so watch the directory.
	dir := filepath.Dir(l.path)
	if err := l.watcher.Add(dir); err != nil {
		l.watcher.Close()
		return fmt.Errorf("failed to watch directory: %w", err)
	}

	go l.watchLoop()
	return nil
}

func (l *Loader) watchLoop() {
	for {
		select {
		case <-l.close:
			return
		case event, ok := <-l.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != l.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}

			cfg, err := l.Load()
			if err != nil {
				l.logger.Error("config reload failed, keeping previous configuration", "path", l.path, "error", err)
				continue
			}
			l.logger.Info("config reloaded", "path", l.path)
			if l.onChange != nil {
				l.onChange(cfg)
			}

		case err, ok := <-l.watcher.Errors:
			if !ok {
				return
			}
			l.logger.Warn("config watcher error", "error", err)
		}
	}
}

// Current returns the last successfully loaded configuration.
func (l *Loader) Current() *Config {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.current
}

// Close stops the watcher.
func (l *Loader) Close() error {
	var err error
	l.closeOnce.Do(func() {
		close(l.close)
		if l.watcher != nil {
			err = l.watcher.Close()
		}
	})
	return err
}
