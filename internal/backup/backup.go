// Package backup writes the safety copies made before a file is rewritten by
// a replace, and puts them back on request.
package backup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"syscall"
)

// DefaultExtension is appended to a file name when no extension is configured.
const DefaultExtension = "friskbackup"

// ErrNoBackup is returned by Restore when the file has no backup.
var ErrNoBackup = errors.New("no backup found")

// Name returns the backup path for path: path + "." + ext.
func Name(path, ext string) string {
	if ext == "" {
		ext = DefaultExtension
	}
	return path + "." + ext
}

// Write stores contents as the backup of path and returns the backup's name.
// An existing backup is overwritten.
func Write(path, ext string, contents []byte) (string, error) {
	name := Name(path, ext)
	if err := os.WriteFile(name, contents, filePerm(path)); err != nil {
		return name, fmt.Errorf("write backup %q: %w", name, err)
	}
	return name, nil
}

// Overwrite replaces path with contents. The data is written to a temporary
// file in the same directory and renamed over path, so readers never see a
// partially written file. The file's permission bits are kept.
func Overwrite(path string, contents []byte) (err error) {
	perm := filePerm(path)

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("overwrite %q: %w", path, err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(contents); err != nil {
		return fmt.Errorf("overwrite %q: %w", path, err)
	}
	if err = tmp.Chmod(perm); err != nil {
		return fmt.Errorf("overwrite %q: %w", path, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("overwrite %q: %w", path, err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("overwrite %q: %w", path, err)
	}
	return nil
}

// Restore moves the backup of path back into place, replacing the current
// contents of path. It returns ErrNoBackup when there is nothing to restore.
func Restore(path, ext string) error {
	name := Name(path, ext)
	if _, err := os.Stat(name); errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("restore %q: %w", path, ErrNoBackup)
	} else if err != nil {
		return fmt.Errorf("restore %q: %w", path, err)
	}

	if err := moveFile(name, path); err != nil {
		return fmt.Errorf("restore %q: %w", path, err)
	}
	slog.Info("file restored from backup", "path", path, "backup", name)
	return nil
}

// Find returns the originals of every backup below root, in lexical order.
// Hidden directories are not entered.
func Find(ctx context.Context, root, ext string) ([]string, error) {
	suffix := "." + ext
	if ext == "" {
		suffix = "." + DefaultExtension
	}

	var originals []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			slog.Debug("backup: skipping unreadable entry", "path", path, "error", err)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return fs.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() && strings.HasSuffix(path, suffix) && len(path) > len(suffix) {
			originals = append(originals, strings.TrimSuffix(path, suffix))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("find backups in %q: %w", root, err)
	}
	return originals, nil
}

func filePerm(path string) fs.FileMode {
	if info, err := os.Stat(path); err == nil {
		return info.Mode().Perm()
	}
	return 0o644
}

// moveFile tries os.Rename first; falls back to copy+delete on cross-device errors.
func moveFile(src, dst string) error {
	err := os.Rename(src, dst)
	if err == nil {
		return nil
	}
	var le *os.LinkError
	if errors.As(err, &le) && errors.Is(le.Err, syscall.EXDEV) {
		return copyThenDelete(src, dst)
	}
	return err
}

// copyThenDelete copies src over dst then removes src.
func copyThenDelete(src, dst string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, filePerm(src))
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); err == nil {
			err = cerr
		}
	}()

	if _, err = io.Copy(out, in); err != nil {
		return err
	}
	in.Close()
	return os.Remove(src)
}
