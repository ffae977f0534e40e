// Package watcher watches manifest and script directories and signals,
// debounced, when something relevant changes.
package watcher

import (
	"fmt"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/zjrosen/autoload/internal/log"
)

// Watcher monitors directories for changes and sends notifications.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	debounce  time.Duration
	relevant  func(name string) bool
	onChange  chan struct{}
	done      chan struct{}
	stopOnce  sync.Once

	mu      sync.Mutex
	watched map[string]struct{}
}

// Config holds watcher configuration options.
type Config struct {
	// Dirs are the directories to watch. Missing directories are skipped.
	Dirs []string
	// Extensions selects the files whose changes matter, e.g. ".yaml".
	// Empty matches every file.
	Extensions []string
	Debounce   time.Duration
}

// DefaultConfig returns sensible defaults for the watcher.
func DefaultConfig(dirs ...string) Config {
	return Config{
		Dirs:       dirs,
		Extensions: []string{".yaml", ".yml"},
		Debounce:   100 * time.Millisecond,
	}
}

// New creates a watcher. Call Start to begin receiving notifications.
func New(cfg Config) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}

	w := &Watcher{
		fsWatcher: fsw,
		debounce:  cfg.Debounce,
		relevant:  extensionFilter(cfg.Extensions),
		onChange:  make(chan struct{}, 1),
		done:      make(chan struct{}),
		watched:   make(map[string]struct{}),
	}
	for _, dir := range cfg.Dirs {
		if err := w.Add(dir); err != nil {
			log.Warn(log.CatWatcher, "not watching directory", "dir", dir, "error", err.Error())
		}
	}
	return w, nil
}

// Add watches dir. Adding a directory twice is a no-op.
func (w *Watcher) Add(dir string) error {
	dir = filepath.Clean(dir)

	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.watched[dir]; ok {
		return nil
	}
	if err := w.fsWatcher.Add(dir); err != nil {
		return fmt.Errorf("watching directory %s: %w", dir, err)
	}
	w.watched[dir] = struct{}{}
	log.Debug(log.CatWatcher, "watching", "dir", dir)
	return nil
}

// Dirs returns the watched directories, sorted.
func (w *Watcher) Dirs() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	dirs := make([]string, 0, len(w.watched))
	for d := range w.watched {
		dirs = append(dirs, d)
	}
	slices.Sort(dirs)
	return dirs
}

// Start begins watching. The returned channel receives one signal per burst
// of relevant changes.
func (w *Watcher) Start() <-chan struct{} {
	go w.loop()
	return w.onChange
}

// Stop terminates the watcher and releases resources.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.done)
		err = w.fsWatcher.Close()
	})
	return err
}

// loop processes file system events with debouncing.
func (w *Watcher) loop() {
	var (
		timer   *time.Timer
		timerC  <-chan time.Time
		pending bool
	)

	for {
		select {
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if !w.isRelevantEvent(event) {
				continue
			}
			log.Debug(log.CatWatcher, "change", "path", event.Name, "op", event.Op.String())

			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}
			timerC = timer.C
			pending = true

		case <-timerC:
			if pending {
				// Drop the signal when one is already queued.
				select {
				case w.onChange <- struct{}{}:
				default:
				}
				pending = false
			}

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			log.ErrorErr(log.CatWatcher, "watch error", err)

		case <-w.done:
			if timer != nil {
				timer.Stop()
			}
			return
		}
	}
}

// isRelevantEvent checks if the event should trigger a reload.
func (w *Watcher) isRelevantEvent(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	return w.relevant(event.Name)
}

func extensionFilter(exts []string) func(string) bool {
	if len(exts) == 0 {
		return func(string) bool { return true }
	}
	set := make(map[string]struct{}, len(exts))
	for _, e := range exts {
		set[e] = struct{}{}
	}
	return func(name string) bool {
		_, ok := set[filepath.Ext(name)]
		return ok
	}
}
