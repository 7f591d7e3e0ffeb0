package config

import (
	"github.com/eargollo/frisk/internal/search"
)

// Remember moves value to the front of list, dropping any older copy, and
// caps the list at max entries. Empty values are ignored.
func Remember(list []string, value string, max int) []string {
	if value == "" {
		return list
	}
	if max < 1 {
		max = 1
	}
	out := make([]string, 0, min(len(list)+1, max))
	out = append(out, value)
	for _, v := range list {
		if len(out) == max {
			break
		}
		if v != value {
			out = append(out, v)
		}
	}
	return out
}

// RememberRequest records the values of req in the history lists.
func (c *Config) RememberRequest(req search.Request) {
	h := &c.History
	h.Paths = Remember(h.Paths, JoinList(req.Paths), h.MaxRecent)
	h.Filespecs = Remember(h.Filespecs, JoinList(req.Filespecs), h.MaxRecent)
	h.Matches = Remember(h.Matches, req.Match, h.MaxRecent)
	if req.Flags.Replace {
		h.Replaces = Remember(h.Replaces, req.Replace, h.MaxRecent)
		if req.Flags.Backup {
			h.BackupExtensions = Remember(h.BackupExtensions, req.BackupExtension, h.MaxRecent)
		}
	}
	if req.MaxFileSize > 0 {
		h.FileSizes = Remember(h.FileSizes, FormatSize(req.MaxFileSize), h.MaxRecent)
	}
}
