package config

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// revision is one validated state of the watched file.
type revision struct {
	cfg   *Config
	sum   [sha256.Size]byte
	mtime time.Time
}

// Watcher keeps the latest valid revision of a config file. It polls the
// file's modification time and can be told to re-read it immediately with
// [Watcher.Reload]. A revision that fails validation is logged and the
// previous one stays current.
type Watcher struct {
	path     string
	interval time.Duration
	onChange func(old, new *Config)
	getenv   func(string) string

	rev atomic.Pointer[revision]
	// mu serialises reloads so onChange sees revisions in order.
	mu sync.Mutex

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// WatcherOption configures a [Watcher].
type WatcherOption func(*Watcher)

// WithInterval sets the polling interval. Default: 5s. Zero or negative
// disables polling; only Reload picks up changes then.
func WithInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) { w.interval = d }
}

// WithEnv applies [ApplyEnv] with getenv to every revision so environment
// secrets survive reloads.
func WithEnv(getenv func(string) string) WatcherOption {
	return func(w *Watcher) { w.getenv = getenv }
}

// NewWatcher reads path and starts polling it. onChange may be nil.
func NewWatcher(path string, onChange func(old, new *Config), opts ...WatcherOption) (*Watcher, error) {
	w := &Watcher{
		path:     path,
		interval: 5 * time.Second,
		onChange: onChange,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	first, err := w.read()
	if err != nil {
		return nil, fmt.Errorf("config: watch %s: %w", path, err)
	}
	w.rev.Store(first)

	if w.interval > 0 {
		go w.poll()
	} else {
		close(w.done)
	}
	return w, nil
}

// Current returns the latest valid config. Callers must not modify it.
func (w *Watcher) Current() *Config {
	return w.rev.Load().cfg
}

// Reload re-reads the file now and reports whether its content changed.
// onChange runs before Reload returns when it did.
func (w *Watcher) Reload() (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.reloadLocked()
}

func (w *Watcher) reloadLocked() (bool, error) {
	next, err := w.read()
	if err != nil {
		return false, fmt.Errorf("config: reload %s: %w", w.path, err)
	}
	prev := w.rev.Load()
	if next.sum == prev.sum {
		w.rev.Store(&revision{cfg: prev.cfg, sum: prev.sum, mtime: next.mtime})
		return false, nil
	}
	w.rev.Store(next)

	slog.Info("configuration reloaded", "path", w.path)
	if w.onChange != nil {
		w.onChange(prev.cfg, next.cfg)
	}
	return true, nil
}

// Stop ends polling and waits for an in-flight reload. Safe to call more
// than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() { close(w.stop) })
	<-w.done
}

func (w *Watcher) poll() {
	defer close(w.done)
	t := time.NewTicker(w.interval)
	defer t.Stop()
	for {
		select {
		case <-w.stop:
			return
		case <-t.C:
			w.checkModified()
		}
	}
}

// checkModified reloads when the modification time moved. A failed
// revision is remembered by its mtime so it is reported once.
func (w *Watcher) checkModified() {
	info, err := os.Stat(w.path)
	if err != nil {
		slog.Warn("config file unavailable", "path", w.path, "err", err)
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	prev := w.rev.Load()
	if info.ModTime().Equal(prev.mtime) {
		return
	}
	if _, err := w.reloadLocked(); err != nil {
		slog.Warn("invalid config revision, keeping the previous one", "path", w.path, "err", err)
		w.rev.Store(&revision{cfg: prev.cfg, sum: prev.sum, mtime: info.ModTime()})
	}
}

func (w *Watcher) read() (*revision, error) {
	info, err := os.Stat(w.path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(w.path)
	if err != nil {
		return nil, err
	}
	cfg, err := LoadFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	if w.getenv != nil {
		ApplyEnv(cfg, w.getenv)
	}
	return &revision{cfg: cfg, sum: sha256.Sum256(data), mtime: info.ModTime()}, nil
}
