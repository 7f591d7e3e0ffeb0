package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"

	"github.com/eargollo/frisk/internal/backup"
	"github.com/eargollo/frisk/internal/search"
)

// ErrSavedNotFound is returned when no saved search has the requested name.
var ErrSavedNotFound = errors.New("saved search not found")

// Config holds all configuration loaded from config.yaml.
type Config struct {
	LogLevel      string        `yaml:"log_level"      json:"-"`
	HTTPAddr      string        `yaml:"http_addr"      json:"-"`
	DBPath        string        `yaml:"db_path"        json:"-"`
	Search        SearchOptions `yaml:"search"         json:"search"`
	Colors        Colors        `yaml:"colors"         json:"colors"`
	History       History       `yaml:"history"        json:"history"`
	SavedSearches []SavedSearch `yaml:"saved_searches" json:"saved_searches"`
}

// SearchOptions are the defaults every new search starts from.
type SearchOptions struct {
	ContextLines    int          `yaml:"context_lines"      json:"context_lines"`
	MaxFileSize     string       `yaml:"max_file_size"      json:"max_file_size"` // e.g. "5 MB"; empty or "0" = no limit
	BackupExtension string       `yaml:"backup_extension"   json:"backup_extension"`
	CmdTemplate     string       `yaml:"cmd_template"       json:"cmd_template"`
	Flags           search.Flags `yaml:"flags"              json:"flags"`
	Excludes        []string     `yaml:"excludes,omitempty" json:"excludes"`
}

// Colors are ansi style strings ("red+b", "cyan", ...) per span kind.
type Colors struct {
	Text      string `yaml:"text"      json:"text"`
	Highlight string `yaml:"highlight" json:"highlight"`
	Context   string `yaml:"context"   json:"context"`
	Error     string `yaml:"error"     json:"error"`
}

// History keeps the most recently used values, most recent first.
type History struct {
	MaxRecent        int      `yaml:"max_recent"                  json:"max_recent"`
	Paths            []string `yaml:"paths,omitempty"             json:"paths"`
	Filespecs        []string `yaml:"filespecs,omitempty"         json:"filespecs"`
	Matches          []string `yaml:"matches,omitempty"           json:"matches"`
	Replaces         []string `yaml:"replaces,omitempty"          json:"replaces"`
	BackupExtensions []string `yaml:"backup_extensions,omitempty" json:"backup_extensions"`
	FileSizes        []string `yaml:"file_sizes,omitempty"        json:"file_sizes"`
}

// SavedSearch is a named preset. Path and Filespec hold ';'-separated lists.
type SavedSearch struct {
	Name            string       `yaml:"name"                       json:"name"`
	Path            string       `yaml:"path"                       json:"path"`
	Filespec        string       `yaml:"filespec"                   json:"filespec"`
	Match           string       `yaml:"match"                      json:"match"`
	Replace         string       `yaml:"replace,omitempty"          json:"replace,omitempty"`
	BackupExtension string       `yaml:"backup_extension,omitempty" json:"backup_extension,omitempty"`
	FileSize        string       `yaml:"file_size,omitempty"        json:"file_size,omitempty"`
	Excludes        []string     `yaml:"excludes,omitempty"         json:"excludes,omitempty"`
	Flags           search.Flags `yaml:"flags"                      json:"flags"`
	Schedule        string       `yaml:"schedule,omitempty"         json:"schedule,omitempty"` // cron expression
}

// Default returns the configuration used when no file exists. Boolean
// defaults live here because applyDefaults cannot tell false from unset.
func Default() Config {
	cfg := Config{
		Search: SearchOptions{
			Flags: search.Flags{Recursive: true, Backup: true},
		},
	}
	cfg.applyDefaults()
	return cfg
}

// applyDefaults fills zero/empty fields with sensible defaults.
func (c *Config) applyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.HTTPAddr == "" {
		c.HTTPAddr = ":8080"
	}
	if c.DBPath == "" {
		c.DBPath = "frisk.db"
	}
	if c.Search.BackupExtension == "" {
		c.Search.BackupExtension = backup.DefaultExtension
	}
	if c.Search.CmdTemplate == "" {
		c.Search.CmdTemplate = `vi +!LINE! "!FILENAME!"`
	}
	if c.Search.ContextLines < 0 {
		c.Search.ContextLines = 0
	}
	if c.Colors.Highlight == "" {
		c.Colors.Highlight = "red+b"
	}
	if c.Colors.Context == "" {
		c.Colors.Context = "cyan"
	}
	if c.Colors.Error == "" {
		c.Colors.Error = "yellow+b"
	}
	if c.History.MaxRecent <= 0 {
		c.History.MaxRecent = 10
	}
}

// Load reads and parses the YAML config file at path.
// If the file does not exist, Load returns the default Config so a first run
// works without any setup.
func Load(path string) (*Config, error) {
	cfg := Default()

	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return &cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open config %q: %w", path, err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config %q: %w", path, err)
	}
	cfg.applyDefaults()
	if _, err := cfg.Search.MaxFileSizeBytes(); err != nil {
		return nil, fmt.Errorf("parse config %q: %w", path, err)
	}
	return &cfg, nil
}

// Save writes the config to path. The file is written next to its final
// location and renamed into place.
func (c *Config) Save(path string) (err error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config dir: %w", err)
		}
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".frisk-config-*.yaml")
	if err != nil {
		return fmt.Errorf("save config %q: %w", path, err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	enc := yaml.NewEncoder(tmp)
	enc.SetIndent(2)
	if err = enc.Encode(c); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err = enc.Close(); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("save config %q: %w", path, err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("save config %q: %w", path, err)
	}
	return nil
}

// MaxFileSizeBytes parses MaxFileSize. Zero means no limit.
func (o SearchOptions) MaxFileSizeBytes() (int64, error) {
	return ParseSize(o.MaxFileSize)
}

// ParseSize parses a human readable size such as "5 MB" or "512KiB".
// An empty string is zero.
func ParseSize(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", s, err)
	}
	return int64(n), nil
}

// FormatSize is the inverse of ParseSize. It writes the exact byte count so
// that sizes such as 1234567 survive a save and reload unrounded.
func FormatSize(n int64) string {
	return strconv.FormatInt(n, 10)
}

// SplitList splits a ';'-separated list, dropping empty items.
func SplitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ";") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// JoinList is the inverse of SplitList.
func JoinList(items []string) string {
	return strings.Join(items, ";")
}

// NewRequest returns a request carrying the configured defaults. The caller
// fills in paths, filespecs and the match.
func (c *Config) NewRequest() (search.Request, error) {
	size, err := c.Search.MaxFileSizeBytes()
	if err != nil {
		return search.Request{}, err
	}
	return search.Request{
		Excludes:        append([]string(nil), c.Search.Excludes...),
		BackupExtension: c.Search.BackupExtension,
		MaxFileSize:     size,
		ContextLines:    c.Search.ContextLines,
		Flags:           c.Search.Flags,
	}, nil
}

// Request builds the search described by s on top of the defaults of c.
func (s SavedSearch) Request(c *Config) (search.Request, error) {
	req, err := c.NewRequest()
	if err != nil {
		return search.Request{}, err
	}
	req.Paths = SplitList(s.Path)
	req.Filespecs = SplitList(s.Filespec)
	req.Match = s.Match
	req.Replace = s.Replace
	req.Flags = s.Flags
	req.Excludes = append(req.Excludes, s.Excludes...)
	if s.BackupExtension != "" {
		req.BackupExtension = s.BackupExtension
	}
	if s.FileSize != "" {
		if req.MaxFileSize, err = ParseSize(s.FileSize); err != nil {
			return search.Request{}, fmt.Errorf("saved search %q: %w", s.Name, err)
		}
	}
	return req, nil
}

// FindSaved returns the saved search called name.
func (c *Config) FindSaved(name string) (SavedSearch, error) {
	for _, s := range c.SavedSearches {
		if s.Name == name {
			return s, nil
		}
	}
	return SavedSearch{}, fmt.Errorf("%q: %w", name, ErrSavedNotFound)
}

// PutSaved adds s, replacing any saved search with the same name.
func (c *Config) PutSaved(s SavedSearch) {
	for i := range c.SavedSearches {
		if c.SavedSearches[i].Name == s.Name {
			c.SavedSearches[i] = s
			return
		}
	}
	c.SavedSearches = append(c.SavedSearches, s)
}

// DeleteSaved removes the saved search called name.
func (c *Config) DeleteSaved(name string) error {
	for i, s := range c.SavedSearches {
		if s.Name == name {
			c.SavedSearches = append(c.SavedSearches[:i], c.SavedSearches[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%q: %w", name, ErrSavedNotFound)
}

// SavedFromRequest captures req as a preset called name.
func SavedFromRequest(name string, req search.Request) SavedSearch {
	s := SavedSearch{
		Name:     name,
		Path:     JoinList(req.Paths),
		Filespec: JoinList(req.Filespecs),
		Match:    req.Match,
		Replace:  req.Replace,
		Excludes: append([]string(nil), req.Excludes...),
		Flags:    req.Flags,
	}
	if req.Flags.Backup {
		s.BackupExtension = req.BackupExtension
	}
	if req.MaxFileSize > 0 {
		s.FileSize = FormatSize(req.MaxFileSize)
	}
	return s
}
