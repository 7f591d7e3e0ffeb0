package config

import (
	"slices"
	"sync"
)

// Store guards a Config shared by the HTTP handlers, the scheduler and the
// CLI. Updates are persisted to the file the config was loaded from.
type Store struct {
	path string

	mu        sync.Mutex
	cfg       *Config
	listeners []func(Config)
}

// NewStore wraps cfg. An empty path keeps updates in memory only.
func NewStore(path string, cfg *Config) *Store {
	return &Store{path: path, cfg: cfg}
}

// Path returns the file updates are written to.
func (s *Store) Path() string {
	return s.path
}

// Get returns a copy of the current config.
func (s *Store) Get() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.Clone()
}

// OnChange registers fn to be called with the new config after every
// successful Update.
func (s *Store) OnChange(fn func(Config)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Update applies fn to a copy of the config, saves it and makes it current.
// Nothing changes when fn or the save fails.
func (s *Store) Update(fn func(*Config) error) error {
	s.mu.Lock()
	next := s.cfg.Clone()
	if err := fn(&next); err != nil {
		s.mu.Unlock()
		return err
	}
	if s.path != "" {
		if err := next.Save(s.path); err != nil {
			s.mu.Unlock()
			return err
		}
	}
	*s.cfg = next
	listeners := slices.Clone(s.listeners)
	snapshot := next.Clone()
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(snapshot)
	}
	return nil
}

// Clone returns a deep copy of c.
func (c *Config) Clone() Config {
	out := *c
	out.Search.Excludes = slices.Clone(c.Search.Excludes)
	out.History.Paths = slices.Clone(c.History.Paths)
	out.History.Filespecs = slices.Clone(c.History.Filespecs)
	out.History.Matches = slices.Clone(c.History.Matches)
	out.History.Replaces = slices.Clone(c.History.Replaces)
	out.History.BackupExtensions = slices.Clone(c.History.BackupExtensions)
	out.History.FileSizes = slices.Clone(c.History.FileSizes)
	out.SavedSearches = make([]SavedSearch, len(c.SavedSearches))
	for i, s := range c.SavedSearches {
		s.Excludes = slices.Clone(s.Excludes)
		out.SavedSearches[i] = s
	}
	if c.SavedSearches == nil {
		out.SavedSearches = nil
	}
	return out
}
