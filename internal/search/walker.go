package search

import (
	"context"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/eargollo/frisk/internal/pattern"
)

// FileInfo is a regular file produced by the walker.
type FileInfo struct {
	Path string
	Size int64
}

// dirItem is a pending directory and the root it was reached from.
type dirItem struct {
	path string
	root string
}

// walker enumerates the files below a set of roots. It is driven by a single
// goroutine: directories wait on an explicit LIFO worklist instead of the call
// stack, so deep trees cannot exhaust it.
type walker struct {
	roots     []string
	recursive bool
	excludes  *pattern.ExcludeMatcher
	stats     *Stats
}

func newWalker(roots []string, recursive bool, excludes *pattern.ExcludeMatcher, stats *Stats) *walker {
	return &walker{roots: roots, recursive: recursive, excludes: excludes, stats: stats}
}

// Files returns a lazy sequence of the regular files below the roots.
// Hidden entries, excluded entries, symlinks and (when not recursive)
// subdirectories are counted as skipped. Directories that cannot be listed
// are skipped. The sequence ends early when ctx is cancelled; ctx is polled
// before every directory and every directory entry.
func (w *walker) Files(ctx context.Context) iter.Seq[FileInfo] {
	return func(yield func(FileInfo) bool) {
		stack := make([]dirItem, 0, len(w.roots))
		for _, root := range w.roots {
			stack = append(stack, dirItem{path: root, root: root})
		}

		for len(stack) > 0 {
			w.stats.DirsSearched++
			if ctx.Err() != nil {
				return
			}

			dir := stack[len(stack)-1]
			stack[len(stack)-1] = dirItem{}
			stack = stack[:len(stack)-1]

			entries, err := os.ReadDir(dir.path)
			if err != nil {
				slog.Debug("walk: skipping unreadable directory", "dir", dir.path, "error", err)
				continue
			}

			for _, entry := range entries {
				if ctx.Err() != nil {
					return
				}

				name := entry.Name()
				isDir := entry.IsDir()
				path := filepath.Join(dir.path, name)

				if strings.HasPrefix(name, ".") || w.excluded(dir.root, path) {
					w.skip(isDir)
					continue
				}

				if isDir {
					if w.recursive {
						stack = append(stack, dirItem{path: path, root: dir.root})
					} else {
						w.stats.DirsSkipped++
					}
					continue
				}

				if !entry.Type().IsRegular() {
					w.stats.FilesSkipped++
					continue
				}

				info, err := entry.Info()
				if err != nil {
					slog.Debug("walk: stat failed", "path", path, "error", err)
					w.stats.FilesSkipped++
					continue
				}

				if !yield(FileInfo{Path: path, Size: info.Size()}) {
					return
				}
			}
		}
	}
}

func (w *walker) skip(isDir bool) {
	if isDir {
		w.stats.DirsSkipped++
	} else {
		w.stats.FilesSkipped++
	}
}

func (w *walker) excluded(root, path string) bool {
	if w.excludes == nil {
		return false
	}
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return w.excludes.Match(rel)
}

