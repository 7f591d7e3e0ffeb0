package pattern

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// KindExclude marks an invalid exclude glob.
const KindExclude Kind = "exclude"

// ExcludeMatcher matches paths relative to a search root against doublestar
// globs such as "vendor/**" or "*.min.js".
type ExcludeMatcher struct {
	globs []string
}

// CompileExcludes validates globs. It returns nil (match nothing) when globs
// is empty.
func CompileExcludes(globs []string) (*ExcludeMatcher, error) {
	if len(globs) == 0 {
		return nil, nil
	}
	m := &ExcludeMatcher{}
	for _, g := range globs {
		g = filepath.ToSlash(strings.TrimSpace(g))
		if g == "" {
			continue
		}
		if !doublestar.ValidatePattern(g) {
			return nil, &Error{Kind: KindExclude, Pattern: g, Err: fmt.Errorf("invalid glob")}
		}
		m.globs = append(m.globs, g)
	}
	return m, nil
}

// Match reports whether rel (relative to its root) is excluded. Globs without
// a slash are also tried against the base name, so "*.log" excludes log files
// at any depth.
func (m *ExcludeMatcher) Match(rel string) bool {
	if m == nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	base := path.Base(rel)
	for _, g := range m.globs {
		if doublestar.MatchUnvalidated(g, rel) {
			return true
		}
		if !strings.Contains(g, "/") && doublestar.MatchUnvalidated(g, base) {
			return true
		}
	}
	return false
}
