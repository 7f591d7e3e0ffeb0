package cli

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eargollo/frisk/internal/config"
	"github.com/eargollo/frisk/internal/search"
)

// runCLI executes the root command with args against the config at cfgPath.
func runCLI(t *testing.T, cfgPath string, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := NewRootCmd("test")
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(append([]string{"--config", cfgPath, "--log-level", "error"}, args...))
	err := root.Execute()
	return out.String(), errOut.String(), err
}

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func TestColorMode(t *testing.T) {
	tests := []struct {
		in      string
		want    colorMode
		wantErr bool
	}{
		{in: "auto", want: colorAuto},
		{in: "always", want: colorAlways},
		{in: "never", want: colorNever},
		{in: "sometimes", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			c := colorAuto
			err := c.Set(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Equal(t, colorAuto, c)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, c)
			assert.Equal(t, tt.in, c.String())
		})
	}

	assert.True(t, colorAlways.enabled())
	assert.False(t, colorNever.enabled())
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"DEBUG":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"error":   slog.LevelError,
		"verbose": slog.LevelInfo,
		"":        slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, parseLogLevel(in), "input %q", in)
	}
}

func TestSearchOptionsRequest(t *testing.T) {
	cfg := config.Default()
	cfg.Search.ContextLines = 2
	cfg.Search.Excludes = []string{"vendor/**"}
	cfg.PutSaved(config.SavedSearch{
		Name:     "todo",
		Path:     "src;docs",
		Filespec: "*.go",
		Match:    "TODO",
		Flags:    search.Flags{Recursive: true},
	})

	changedSet := func(names ...string) func(string) bool {
		return func(n string) bool {
			for _, m := range names {
				if m == n {
					return true
				}
			}
			return false
		}
	}

	t.Run("defaults", func(t *testing.T) {
		o := &searchOptions{}
		req, err := o.request(cfg, changedSet(), []string{"needle"})
		require.NoError(t, err)
		assert.Equal(t, "needle", req.Match)
		assert.Equal(t, []string{"."}, req.Paths)
		assert.Equal(t, []string{"*"}, req.Filespecs)
		assert.Equal(t, 2, req.ContextLines)
		assert.Equal(t, []string{"vendor/**"}, req.Excludes)
		assert.True(t, req.Flags.Recursive)
		assert.True(t, req.Flags.Backup)
		assert.False(t, req.Flags.Replace)
	})

	t.Run("flags override only when set", func(t *testing.T) {
		o := &searchOptions{
			filespecs:    []string{"*.go;*.md", "*.txt"},
			replace:      "",
			noRecursive:  true,
			noBackup:     true,
			contextLines: 5,
			maxSize:      "1 KB",
			backupExt:    ".orig",
			regex:        true,
		}
		req, err := o.request(cfg,
			changedSet("filespec", "replace", "no-recursive", "no-backup", "max-size", "backup-ext", "regex"),
			[]string{`a\d`, "one", "two"})
		require.NoError(t, err)
		assert.Equal(t, []string{"one", "two"}, req.Paths)
		assert.Equal(t, []string{"*.go", "*.md", "*.txt"}, req.Filespecs)
		assert.True(t, req.Flags.Replace)
		assert.Equal(t, "", req.Replace)
		assert.False(t, req.Flags.Recursive)
		assert.False(t, req.Flags.Backup)
		assert.True(t, req.Flags.MatchRegex)
		assert.Equal(t, int64(1000), req.MaxFileSize)
		assert.Equal(t, "orig", req.BackupExtension)
		assert.Equal(t, 2, req.ContextLines, "context was not changed")
	})

	t.Run("saved search", func(t *testing.T) {
		o := &searchOptions{saved: "todo", caseSensitive: true}
		req, err := o.request(cfg, changedSet("case-sensitive"), nil)
		require.NoError(t, err)
		assert.Equal(t, "TODO", req.Match)
		assert.Equal(t, []string{"src", "docs"}, req.Paths)
		assert.Equal(t, []string{"*.go"}, req.Filespecs)
		assert.True(t, req.Flags.MatchCaseSensitive)
	})

	t.Run("unknown saved search", func(t *testing.T) {
		o := &searchOptions{saved: "nope"}
		_, err := o.request(cfg, changedSet(), nil)
		assert.ErrorIs(t, err, config.ErrSavedNotFound)
	})

	t.Run("bad size", func(t *testing.T) {
		o := &searchOptions{maxSize: "lots"}
		_, err := o.request(cfg, changedSet("max-size"), []string{"x"})
		assert.Error(t, err)
	})
}

func TestScheduledJobs(t *testing.T) {
	cfg := config.Default()
	cfg.PutSaved(config.SavedSearch{Name: "nightly", Path: "src", Filespec: "*", Match: "x", Schedule: "0 3 * * *"})
	cfg.PutSaved(config.SavedSearch{Name: "manual", Path: "src", Filespec: "*", Match: "y"})

	var gotBy string
	var gotReq search.Request
	start := func(_ context.Context, req search.Request, by string) (uint64, error) {
		gotBy, gotReq = by, req
		return 1, nil
	}

	jobs := scheduledJobs(cfg, start)
	require.Len(t, jobs, 1)
	assert.Equal(t, "nightly", jobs[0].Name)
	assert.Equal(t, "0 3 * * *", jobs[0].Expr)

	jobs[0].Run()
	assert.Equal(t, "schedule:nightly", gotBy)
	assert.Equal(t, "x", gotReq.Match)
	assert.Equal(t, []string{"src"}, gotReq.Paths)
}

func TestSearchCommand(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	root := filepath.Join(dir, "tree")
	writeFile(t, filepath.Join(root, "a.txt"), "one needle\ntwo\n")
	writeFile(t, filepath.Join(root, "sub", "b.go"), "needle in go\n")
	writeFile(t, filepath.Join(root, "c.md"), "nothing here\n")

	out, _, err := runCLI(t, cfgPath, "search", "--color", "never", "needle", root)
	require.NoError(t, err)
	assert.Contains(t, out, filepath.Join(root, "a.txt")+":")
	assert.Contains(t, out, filepath.Join(root, "sub", "b.go")+":")
	assert.Contains(t, out, "one needle")
	assert.NotContains(t, out, "c.md")
	assert.Contains(t, out, "2 hits in 2 lines across 2 files.")
	assert.NotContains(t, out, "\x1b[", "no color with --color never")

	// The search is remembered in the config file.
	cfg, err := config.Load(cfgPath)
	require.NoError(t, err)
	assert.Equal(t, []string{"needle"}, cfg.History.Matches)
}

func TestSearchCommandRequiresMatch(t *testing.T) {
	_, _, err := runCLI(t, filepath.Join(t.TempDir(), "config.yaml"), "search")
	assert.Error(t, err)
}

func TestSearchCommandRejectsWatchReplace(t *testing.T) {
	_, _, err := runCLI(t, filepath.Join(t.TempDir(), "config.yaml"),
		"search", "--watch", "-r", "b", "a", ".")
	assert.ErrorContains(t, err, "--watch")
}

func TestSaveAsAndSavedCommands(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	root := filepath.Join(dir, "tree")
	writeFile(t, filepath.Join(root, "a.txt"), "alpha\n")

	_, _, err := runCLI(t, cfgPath, "search", "--color", "never", "--save-as", "greek", "alpha", root)
	require.NoError(t, err)

	out, _, err := runCLI(t, cfgPath, "saved", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "greek")

	out, _, err = runCLI(t, cfgPath, "saved", "run", "--color", "never", "greek")
	require.NoError(t, err)
	assert.Contains(t, out, "1 hits in 1 lines across 1 files.")

	_, _, err = runCLI(t, cfgPath, "saved", "schedule", "greek", "not a cron")
	assert.Error(t, err)

	_, _, err = runCLI(t, cfgPath, "saved", "schedule", "greek", "*/5 * * * *")
	require.NoError(t, err)
	cfg, err := config.Load(cfgPath)
	require.NoError(t, err)
	s, err := cfg.FindSaved("greek")
	require.NoError(t, err)
	assert.Equal(t, "*/5 * * * *", s.Schedule)

	_, _, err = runCLI(t, cfgPath, "saved", "delete", "greek")
	require.NoError(t, err)
	_, _, err = runCLI(t, cfgPath, "saved", "delete", "greek")
	assert.ErrorIs(t, err, config.ErrSavedNotFound)

	_, errOut, err := runCLI(t, cfgPath, "saved", "list")
	require.NoError(t, err)
	assert.Contains(t, errOut, "No saved searches.")
}

func TestReplaceAndRestore(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	root := filepath.Join(dir, "tree")
	file := filepath.Join(root, "a.txt")
	writeFile(t, file, "old value\nkeep\n")

	_, _, err := runCLI(t, cfgPath, "search", "--color", "never", "-r", "new", "old", root)
	require.NoError(t, err)

	got, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Equal(t, "new value\nkeep\n", string(got))
	assert.FileExists(t, file+".friskbackup")

	out, _, err := runCLI(t, cfgPath, "restore", "--dry-run", root)
	require.NoError(t, err)
	assert.Contains(t, out, "would restore "+file)
	assert.FileExists(t, file+".friskbackup")

	out, _, err = runCLI(t, cfgPath, "restore", root)
	require.NoError(t, err)
	assert.Contains(t, out, "restored "+file)

	got, err = os.ReadFile(file)
	require.NoError(t, err)
	assert.Equal(t, "old value\nkeep\n", string(got))
	assert.NoFileExists(t, file+".friskbackup")

	_, errOut, err := runCLI(t, cfgPath, "restore", file)
	assert.Error(t, err)
	assert.Contains(t, errOut, "no backup for "+file)
}

func TestOpenCommand(t *testing.T) {
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("no /bin/sh")
	}
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	writeFile(t, cfgPath, "search:\n  cmd_template: 'echo \"!FILENAME!\" !LINE!'\n")

	out, _, err := runCLI(t, cfgPath, "open", "some file.txt", "12")
	require.NoError(t, err)
	assert.Equal(t, "some file.txt 12\n", out)

	_, _, err = runCLI(t, cfgPath, "open", "x", "zero")
	assert.Error(t, err)
}
