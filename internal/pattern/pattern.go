// Package pattern compiles the user-supplied filespec and match strings into
// matchers used by the search engine.
package pattern

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Kind tells which input a compile error belongs to.
type Kind string

const (
	KindFilespec Kind = "filespec"
	KindMatch    Kind = "match"
)

// ErrEmpty is returned when a match string or filespec list is empty.
var ErrEmpty = errors.New("empty pattern")

// Error is a configuration error: a pattern that could not be compiled.
// Err carries the regexp engine's own message (code and offending expression).
type Error struct {
	Kind    Kind
	Pattern string
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s error in %q: %v", e.Kind, e.Pattern, e.Err)
}

// Unwrap returns the underlying regexp error for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Err
}

// WildcardToRegex converts a shell-style wildcard into an anchored regular
// expression. Each replacement runs over the whole string in sequence, so the
// backslash step also doubles the backslashes added for brackets, and '?'
// becomes "zero or one of any character". Existing saved filespecs depend on
// exactly this translation.
func WildcardToRegex(spec string) string {
	r := strings.ReplaceAll(spec, "[", `\[`)
	r = strings.ReplaceAll(r, "]", `\]`)
	r = strings.ReplaceAll(r, `\`, `\\`)
	r = strings.ReplaceAll(r, ".", `\.`)
	r = strings.ReplaceAll(r, "*", ".*")
	r = strings.ReplaceAll(r, "?", ".?")
	return "^" + r + "$"
}

// FileMatcher matches file names against a set of compiled filespecs.
type FileMatcher struct {
	regexes []*regexp.Regexp
}

// CompileFilespecs compiles each spec independently. When useRegex is false
// the filespecs are treated as wildcards (see WildcardToRegex).
func CompileFilespecs(specs []string, useRegex, caseSensitive bool) (*FileMatcher, error) {
	if len(specs) == 0 {
		return nil, &Error{Kind: KindFilespec, Err: ErrEmpty}
	}
	m := &FileMatcher{regexes: make([]*regexp.Regexp, 0, len(specs))}
	for _, spec := range specs {
		expr := spec
		if !useRegex {
			expr = WildcardToRegex(spec)
		}
		re, err := compile(expr, caseSensitive)
		if err != nil {
			return nil, &Error{Kind: KindFilespec, Pattern: spec, Err: err}
		}
		m.regexes = append(m.regexes, re)
	}
	return m, nil
}

// Match reports whether name matches any of the filespecs.
func (m *FileMatcher) Match(name string) bool {
	for _, re := range m.regexes {
		if re.MatchString(name) {
			return true
		}
	}
	return false
}

// Len returns the number of compiled filespecs.
func (m *FileMatcher) Len() int {
	return len(m.regexes)
}

// Matcher finds the successive, non-overlapping matches in a line, as
// [start, end) byte offset pairs. Anchors refer to the whole line.
type Matcher interface {
	FindAll(line string) [][]int
}

// CompileMatch compiles the match string. Literal, case-sensitive matches use
// a plain substring search; everything else goes through regexp.
func CompileMatch(match string, useRegex, caseSensitive bool) (Matcher, error) {
	if match == "" {
		return nil, &Error{Kind: KindMatch, Err: ErrEmpty}
	}
	if !useRegex && caseSensitive {
		return literal(match), nil
	}
	expr := match
	if !useRegex {
		expr = regexp.QuoteMeta(match)
	}
	re, err := compile(expr, caseSensitive)
	if err != nil {
		return nil, &Error{Kind: KindMatch, Pattern: match, Err: err}
	}
	return regexMatcher{re: re}, nil
}

func compile(expr string, caseSensitive bool) (*regexp.Regexp, error) {
	if !caseSensitive {
		expr = "(?i)" + expr
	}
	return regexp.Compile(expr)
}

type literal string

func (l literal) FindAll(line string) [][]int {
	var out [][]int
	n := len(l)
	for pos := 0; pos <= len(line)-n; {
		i := strings.Index(line[pos:], string(l))
		if i < 0 {
			break
		}
		start := pos + i
		out = append(out, []int{start, start + n})
		pos = start + n
	}
	return out
}

type regexMatcher struct {
	re *regexp.Regexp
}

func (m regexMatcher) FindAll(line string) [][]int {
	return m.re.FindAllStringIndex(line, -1)
}
