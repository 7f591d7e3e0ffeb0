package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/eargollo/frisk/internal/config"
	"github.com/eargollo/frisk/internal/search"
)

func writeConfig(tb testing.TB, content string) string {
	tb.Helper()
	path := filepath.Join(tb.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		tb.Fatal(err)
	}
	return path
}

func TestLoad_DefaultsApplied(t *testing.T) {
	path := writeConfig(t, "search:\n  context_lines: 2\n")

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Search.ContextLines != 2 {
		t.Errorf("context_lines = %d, want 2", cfg.Search.ContextLines)
	}
	if cfg.HTTPAddr == "" {
		t.Error("expected default http_addr to be set")
	}
	if cfg.Search.BackupExtension != "friskbackup" {
		t.Errorf("backup_extension = %q, want friskbackup", cfg.Search.BackupExtension)
	}
	if !cfg.Search.Flags.Recursive || !cfg.Search.Flags.Backup {
		t.Errorf("default flags lost: %+v", cfg.Search.Flags)
	}
}

func TestLoad_FlagsOverrideDefaults(t *testing.T) {
	path := writeConfig(t, "search:\n  flags:\n    recursive: false\n    match_regex: true\n")

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	f := cfg.Search.Flags
	if f.Recursive || !f.MatchRegex || !f.Backup {
		t.Errorf("flags = %+v", f)
	}
}

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LogLevel != "info" || cfg.History.MaxRecent != 10 {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
}

func TestLoad_EmptyFile(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, ""))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DBPath == "" {
		t.Error("expected default db_path")
	}
}

func TestLoad_UnknownField(t *testing.T) {
	if _, err := config.Load(writeConfig(t, "scan_paths: [/tmp]\n")); err == nil {
		t.Error("expected error for unknown field")
	}
}

func TestLoad_BadSize(t *testing.T) {
	if _, err := config.Load(writeConfig(t, "search:\n  max_file_size: lots\n")); err == nil {
		t.Error("expected error for an unparsable size")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")
	cfg := config.Default()
	cfg.Search.MaxFileSize = "5 MB"
	cfg.History.Matches = []string{"foo", "bar"}
	cfg.PutSaved(config.SavedSearch{Name: "todo", Path: "/src", Filespec: "*.go", Match: "TODO", Schedule: "@hourly"})

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(&cfg, got) {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", got, &cfg)
	}
}

func TestMaxFileSizeBytes(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"", 0},
		{"0", 0},
		{"5 MB", 5_000_000},
		{"1KiB", 1024},
	}
	for _, tt := range tests {
		got, err := config.SearchOptions{MaxFileSize: tt.in}.MaxFileSizeBytes()
		if err != nil {
			t.Fatalf("%q: %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("%q = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestSplitList(t *testing.T) {
	got := config.SplitList(" /a ;/b;;")
	want := []string{"/a", "/b"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("SplitList = %q, want %q", got, want)
	}
	if config.SplitList("") != nil {
		t.Error("SplitList of empty string should be nil")
	}
}

func TestSavedSearchRequest(t *testing.T) {
	cfg := config.Default()
	cfg.Search.ContextLines = 3
	cfg.Search.Excludes = []string{"vendor/**"}
	s := config.SavedSearch{
		Name:     "todo",
		Path:     "/src;/lib",
		Filespec: "*.go;*.md",
		Match:    "TODO",
		FileSize: "1 KB",
		Flags:    search.Flags{Recursive: true},
	}

	req, err := s.Request(&cfg)
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	if !reflect.DeepEqual(req.Paths, []string{"/src", "/lib"}) {
		t.Errorf("paths = %q", req.Paths)
	}
	if !reflect.DeepEqual(req.Filespecs, []string{"*.go", "*.md"}) {
		t.Errorf("filespecs = %q", req.Filespecs)
	}
	if req.ContextLines != 3 || req.MaxFileSize != 1000 || req.BackupExtension != "friskbackup" {
		t.Errorf("defaults not carried: %+v", req)
	}
	if !reflect.DeepEqual(req.Excludes, []string{"vendor/**"}) {
		t.Errorf("excludes = %q", req.Excludes)
	}
}

func TestSavedSearchCRUD(t *testing.T) {
	cfg := config.Default()
	cfg.PutSaved(config.SavedSearch{Name: "a", Match: "1"})
	cfg.PutSaved(config.SavedSearch{Name: "b", Match: "2"})
	cfg.PutSaved(config.SavedSearch{Name: "a", Match: "3"})

	if len(cfg.SavedSearches) != 2 {
		t.Fatalf("saved = %d, want 2", len(cfg.SavedSearches))
	}
	s, err := cfg.FindSaved("a")
	if err != nil || s.Match != "3" {
		t.Errorf("FindSaved(a) = %+v, %v", s, err)
	}
	if err := cfg.DeleteSaved("a"); err != nil {
		t.Fatalf("DeleteSaved: %v", err)
	}
	if _, err := cfg.FindSaved("a"); !errors.Is(err, config.ErrSavedNotFound) {
		t.Errorf("FindSaved after delete: %v", err)
	}
	if err := cfg.DeleteSaved("zzz"); !errors.Is(err, config.ErrSavedNotFound) {
		t.Errorf("DeleteSaved(zzz): %v", err)
	}
}

func TestSavedFromRequest(t *testing.T) {
	req := search.Request{
		Paths:           []string{"/a", "/b"},
		Filespecs:       []string{"*.c"},
		Match:           "x",
		BackupExtension: "bak",
		MaxFileSize:     2_000_000,
		Flags:           search.Flags{Backup: true, Replace: true},
		Replace:         "y",
	}
	s := config.SavedFromRequest("n", req)
	if s.Path != "/a;/b" || s.Filespec != "*.c" || s.FileSize != "2000000" || s.BackupExtension != "bak" {
		t.Errorf("SavedFromRequest = %+v", s)
	}
}

func TestSavedSearchKeepsExactSize(t *testing.T) {
	cfg := config.Default()
	s := config.SavedFromRequest("n", search.Request{
		Paths:       []string{"/a"},
		Filespecs:   []string{"*"},
		Match:       "x",
		MaxFileSize: 1234567,
	})
	req, err := s.Request(&cfg)
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	if req.MaxFileSize != 1234567 {
		t.Errorf("MaxFileSize = %d, want 1234567", req.MaxFileSize)
	}
}
