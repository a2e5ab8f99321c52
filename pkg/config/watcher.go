// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/jllopis/dci/pkg/telemetry"
)

// Listener receives the configuration that was active and the one replacing
// it. Listeners run on the watcher goroutine and should return quickly.
type Listener func(prev, next *Config)

// Watcher polls one configuration file and reloads it when its size or
// modification time changes. A reload that fails to load or validate is
// logged and the active configuration stays in place.
type Watcher struct {
	path     string
	load     func() (*Config, error)
	interval time.Duration
	logger   *slog.Logger

	mu        sync.RWMutex
	current   *Config
	stamp     fileStamp
	listeners []Listener
}

type fileStamp struct {
	modTime time.Time
	size    int64
	exists  bool
}

func stampOf(path string) fileStamp {
	info, err := os.Stat(path)
	if err != nil {
		return fileStamp{}
	}
	return fileStamp{modTime: info.ModTime(), size: info.Size(), exists: true}
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithPollInterval sets how often the file is checked. Defaults to one
// second.
func WithPollInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// WithLoader replaces Load(path) as the way configurations are built, so a
// reload can keep the environment and command line layers of the first load.
func WithLoader(load func() (*Config, error)) WatcherOption {
	return func(w *Watcher) {
		if load != nil {
			w.load = load
		}
	}
}

// WithWatchLogger sets the watcher logger.
func WithWatchLogger(logger *slog.Logger) WatcherOption {
	return func(w *Watcher) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// NewWatcher loads path once and returns a watcher holding the result.
func NewWatcher(path string, opts ...WatcherOption) (*Watcher, error) {
	w := &Watcher{
		path:     path,
		interval: time.Second,
	}
	w.load = func() (*Config, error) { return Load(w.path) }
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = telemetry.Component(nil, "config")
	}

	w.stamp = stampOf(path)
	cfg, err := w.load()
	if err != nil {
		return nil, err
	}
	w.current = cfg
	return w, nil
}

// Path returns the watched file.
func (w *Watcher) Path() string {
	return w.path
}

// Current returns the active configuration.
func (w *Watcher) Current() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// OnChange registers fn for every successful reload.
func (w *Watcher) OnChange(fn Listener) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.listeners = append(w.listeners, fn)
}

// Run polls until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.Poll()
		}
	}
}

// Poll checks the file once and reloads it if it changed. It reports
// whether a new configuration became active.
func (w *Watcher) Poll() bool {
	stamp := stampOf(w.path)
	w.mu.Lock()
	if stamp == w.stamp || !stamp.exists {
		w.mu.Unlock()
		return false
	}
	w.stamp = stamp
	w.mu.Unlock()

	next, err := w.load()
	if err != nil {
		w.logger.Error("config reload rejected, keeping previous",
			slog.String("path", w.path),
			slog.String("error", err.Error()))
		return false
	}

	w.mu.Lock()
	prev := w.current
	w.current = next
	listeners := append([]Listener(nil), w.listeners...)
	w.mu.Unlock()

	w.logger.Info("config reloaded", slog.String("path", w.path))
	for _, fn := range listeners {
		fn(prev, next)
	}
	return true
}
