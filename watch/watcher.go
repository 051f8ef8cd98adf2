// Package watch re-triggers entry validation when files inside watched entry
// directories change.
package watch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long changes are collected before an event fires.
const DefaultDebounce = 200 * time.Millisecond

// Config configures a Watcher.
type Config struct {
	// Root is the content root; entry paths are relative to it.
	Root string

	// Entries are the entry directories to watch.
	Entries []string

	// DebounceDelay is how long to wait for more changes before emitting.
	DebounceDelay time.Duration

	Logger *slog.Logger
}

// Event reports that files inside one entry changed.
type Event struct {
	// Entry is the entry path relative to the root.
	Entry string
	// Files are the changed paths relative to the entry, sorted.
	Files []string
}

// Watcher watches entry directories and emits one Event per changed entry
// after each debounce window.
type Watcher struct {
	config  Config
	watcher *fsnotify.Watcher
	logger  *slog.Logger

	pendingMu sync.Mutex
	pending   map[string]fsnotify.Op // absolute path → most recent operation

	hashMu sync.Mutex
	hashes map[string]string // absolute path → content hash

	events chan Event
}

// New creates a watcher. Call Start to begin watching.
func New(config Config) (*Watcher, error) {
	if len(config.Entries) == 0 {
		return nil, errors.New("watch: no entries to watch")
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.DebounceDelay <= 0 {
		config.DebounceDelay = DefaultDebounce
	}
	return &Watcher{
		config:  config,
		watcher: fsw,
		logger:  config.Logger,
		pending: make(map[string]fsnotify.Op),
		hashes:  make(map[string]string),
		events:  make(chan Event, 16),
	}, nil
}

// Events returns the event channel. It is closed when watching stops.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Start adds the watches and processes events until ctx is done or Stop is
// called.
func (w *Watcher) Start(ctx context.Context) error {
	for _, e := range w.config.Entries {
		if err := w.addWatchesRecursive(w.abs(e)); err != nil {
			return err
		}
	}
	go w.processEvents(ctx)

	w.logger.Info("File watcher started",
		"root", w.config.Root,
		"entries", len(w.config.Entries),
		"debounce", w.config.DebounceDelay)
	return nil
}

// Stop stops watching. The event channel is closed shortly after.
func (w *Watcher) Stop() error {
	return w.watcher.Close()
}

func (w *Watcher) abs(entryPath string) string {
	return filepath.Join(w.config.Root, filepath.FromSlash(entryPath))
}

// addWatchesRecursive watches dir and every non-hidden directory below it and
// records the content hash of each file.
func (w *Watcher) addWatchesRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			if h, err := hashFile(path); err == nil {
				w.setHash(path, h)
			}
			return nil
		}
		if path != dir && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			w.logger.Warn("Failed to watch directory", "path", path, "error", err)
		} else {
			w.logger.Debug("Watching directory", "path", path)
		}
		return nil
	})
}

func (w *Watcher) processEvents(ctx context.Context) {
	defer close(w.events)

	ticker := time.NewTicker(w.config.DebounceDelay)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleFSEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("Watcher error", "error", err)

		case <-ticker.C:
			w.flushPending(ctx)
		}
	}
}

func (w *Watcher) handleFSEvent(event fsnotify.Event) {
	if strings.HasPrefix(filepath.Base(event.Name), ".") {
		return
	}
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addWatchesRecursive(event.Name); err != nil {
				w.logger.Warn("Failed to watch new directory", "path", event.Name, "error", err)
			}
		}
	}

	w.pendingMu.Lock()
	w.pending[event.Name] = event.Op
	w.pendingMu.Unlock()

	w.logger.Debug("File change detected", "path", event.Name, "op", event.Op.String())
}

// flushPending groups the collected changes by entry, drops files whose
// content did not change, and emits the rest.
func (w *Watcher) flushPending(ctx context.Context) {
	w.pendingMu.Lock()
	if len(w.pending) == 0 {
		w.pendingMu.Unlock()
		return
	}
	toProcess := w.pending
	w.pending = make(map[string]fsnotify.Op)
	w.pendingMu.Unlock()

	changed := make(map[string][]string)
	for path, op := range toProcess {
		entry, rel, ok := w.locate(path)
		if !ok {
			continue
		}
		if !w.contentChanged(path, op) {
			continue
		}
		changed[entry] = append(changed[entry], rel)
	}

	entries := make([]string, 0, len(changed))
	for e := range changed {
		entries = append(entries, e)
	}
	sort.Strings(entries)

	for _, e := range entries {
		files := changed[e]
		sort.Strings(files)
		select {
		case <-ctx.Done():
			return
		case w.events <- Event{Entry: e, Files: files}:
			w.logger.Debug("Sent watch event", "entry", e, "files", len(files))
		default:
			w.logger.Warn("Event channel full, dropping event", "entry", e)
		}
	}
}

// locate maps an absolute path to its watched entry.
func (w *Watcher) locate(path string) (entry, rel string, ok bool) {
	for _, e := range w.config.Entries {
		r, err := filepath.Rel(w.abs(e), path)
		if err != nil || r == ".." || strings.HasPrefix(r, ".."+string(filepath.Separator)) {
			continue
		}
		return e, filepath.ToSlash(r), true
	}
	return "", "", false
}

// contentChanged updates the hash cache and reports whether path differs
// from what was last seen.
func (w *Watcher) contentChanged(path string, op fsnotify.Op) bool {
	info, err := os.Stat(path)
	if err != nil || op.Has(fsnotify.Remove) || op.Has(fsnotify.Rename) {
		w.hashMu.Lock()
		delete(w.hashes, path)
		w.hashMu.Unlock()
		return true
	}
	if info.IsDir() {
		return true
	}

	h, err := hashFile(path)
	if err != nil {
		return true
	}
	w.hashMu.Lock()
	defer w.hashMu.Unlock()
	if old, ok := w.hashes[path]; ok && old == h {
		return false
	}
	w.hashes[path] = h
	return true
}

func (w *Watcher) setHash(path, hash string) {
	w.hashMu.Lock()
	defer w.hashMu.Unlock()
	w.hashes[path] = hash
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
