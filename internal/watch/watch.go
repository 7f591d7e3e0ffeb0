// Package watch reruns a search when files below its roots change.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/eargollo/frisk/internal/pattern"
)

// DefaultDebounce is the quiet period after the last event before a rerun.
const DefaultDebounce = 500 * time.Millisecond

// Options selects what is watched.
type Options struct {
	Roots     []string
	Recursive bool
	Excludes  *pattern.ExcludeMatcher
	// Ignore drops events for matching paths, e.g. backup files.
	Ignore   func(path string) bool
	Debounce time.Duration
}

// Watcher collects fsnotify events for a set of directory trees.
type Watcher struct {
	opts Options
	fsw  *fsnotify.Watcher

	mu   sync.Mutex
	dirs map[string]string // watched dir -> root
}

// New adds watches for every directory the search would visit: the roots,
// and when recursive their non-hidden, non-excluded subdirectories.
func New(opts Options) (*Watcher, error) {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	w := &Watcher{opts: opts, fsw: fsw, dirs: make(map[string]string)}
	for _, root := range opts.Roots {
		if err := w.addTree(root, root); err != nil {
			fsw.Close()
			return nil, err
		}
	}
	return w, nil
}

// Dirs returns the watched directories, sorted.
func (w *Watcher) Dirs() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]string, 0, len(w.dirs))
	for d := range w.dirs {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

// Close releases the underlying watches.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

// Run delivers batches of changed paths to onChange until ctx is done. A
// batch is delivered once no event arrived for the debounce period.
// onChange runs on Run's goroutine.
func (w *Watcher) Run(ctx context.Context, onChange func(paths []string)) error {
	pending := make(map[string]struct{})
	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if !w.handle(ev) {
				continue
			}
			pending[ev.Name] = struct{}{}
			if timer == nil {
				timer = time.NewTimer(w.opts.Debounce)
			} else {
				timer.Reset(w.opts.Debounce)
			}
			fire = timer.C

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			slog.Warn("watch: error", "error", err)

		case <-fire:
			fire = nil
			paths := make([]string, 0, len(pending))
			for p := range pending {
				paths = append(paths, p)
			}
			clear(pending)
			sort.Strings(paths)
			slog.Debug("watch: change batch", "paths", len(paths))
			onChange(paths)
		}
	}
}

// handle reports whether ev should trigger a rerun. New directories are
// added to the watch set.
func (w *Watcher) handle(ev fsnotify.Event) bool {
	if ev.Op == fsnotify.Chmod {
		return false
	}
	dir := filepath.Dir(ev.Name)
	w.mu.Lock()
	root, ok := w.dirs[dir]
	w.mu.Unlock()
	if !ok {
		root = dir
	}
	if w.skipped(root, ev.Name) {
		return false
	}
	if ev.Op.Has(fsnotify.Create) && w.opts.Recursive {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if err := w.addTree(ev.Name, root); err != nil {
				slog.Warn("watch: add new directory", "dir", ev.Name, "error", err)
			}
		}
	}
	return true
}

func (w *Watcher) skipped(root, path string) bool {
	if path != root && strings.HasPrefix(filepath.Base(path), ".") {
		return true
	}
	if w.opts.Ignore != nil && w.opts.Ignore(path) {
		return true
	}
	if rel, err := filepath.Rel(root, path); err == nil && rel != "." && w.opts.Excludes.Match(rel) {
		return true
	}
	return false
}

// addTree watches dir and, when recursive, every eligible directory below.
func (w *Watcher) addTree(dir, root string) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return fmt.Errorf("watch %s: %w", path, err)
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && (!w.opts.Recursive || w.skipped(root, path)) {
			return filepath.SkipDir
		}
		w.mu.Lock()
		_, seen := w.dirs[path]
		w.mu.Unlock()
		if seen {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			if path == dir {
				return fmt.Errorf("watch %s: %w", path, err)
			}
			slog.Warn("watch: add directory", "dir", path, "error", err)
			return nil
		}
		w.mu.Lock()
		w.dirs[path] = root
		w.mu.Unlock()
		return nil
	})
}
