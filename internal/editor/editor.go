// Package editor opens a search hit with the user's command template.
//
// Templates contain the placeholders !FILENAME! and !LINE!, for example
// `vi +!LINE! "!FILENAME!"` or `code -g "!FILENAME!:!LINE!"`.
package editor

import (
	"context"
	"errors"
	"log/slog"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
)

// ErrEmptyTemplate is returned when no command template is configured.
var ErrEmptyTemplate = errors.New("empty command template")

// shellEscaper makes a filename safe inside a double-quoted sh word.
var shellEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "$", `\$`, "`", "\\`")

// Expand substitutes path and line into tmpl. On Unix the filename is escaped
// for use inside double quotes. Lines below 1 become 1.
func Expand(tmpl, path string, line int) string {
	if runtime.GOOS != "windows" {
		path = shellEscaper.Replace(path)
	}
	return strings.NewReplacer(
		"!FILENAME!", path,
		"!LINE!", strconv.Itoa(max(line, 1)),
	).Replace(tmpl)
}

// Command builds the shell invocation for tmpl expanded with path and line.
func Command(ctx context.Context, tmpl, path string, line int) (*exec.Cmd, error) {
	if strings.TrimSpace(tmpl) == "" {
		return nil, ErrEmptyTemplate
	}
	cmdline := Expand(tmpl, path, line)
	if runtime.GOOS == "windows" {
		return exec.CommandContext(ctx, "cmd", "/C", cmdline), nil
	}
	return exec.CommandContext(ctx, "sh", "-c", cmdline), nil
}

// Launch starts the command in the background and reaps it when it exits.
func Launch(tmpl, path string, line int) error {
	cmd, err := Command(context.Background(), tmpl, path, line)
	if err != nil {
		return err
	}
	if err := cmd.Start(); err != nil {
		return err
	}
	slog.Info("editor launched", "path", path, "line", line, "pid", cmd.Process.Pid)
	go func() {
		if err := cmd.Wait(); err != nil {
			slog.Warn("editor exited", "path", path, "error", err)
		}
	}()
	return nil
}
