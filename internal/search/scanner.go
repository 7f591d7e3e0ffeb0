package search

import (
	"bytes"
	"strings"

	"github.com/eargollo/frisk/internal/pattern"
)

// scanner runs the match/replace algorithm over one file's contents.
type scanner struct {
	match        pattern.Matcher
	replace      string
	doReplace    bool
	contextLines int
}

// scanResult summarises one file.
type scanResult struct {
	hits          int
	linesWithHits int
	// updated holds the rewritten contents in replace mode; changed reports
	// whether it differs from the original bytes.
	updated []byte
	changed bool
}

// scan splits contents into lines and reports matches and context lines to
// emit, in line order. Lines are split on '\n'; a trailing '\r' is removed
// before matching and put back when the line is rebuilt, so the original
// line endings survive a replace.
func (s *scanner) scan(path string, contents []byte, emit func(Entry)) scanResult {
	var (
		res      scanResult
		out      bytes.Buffer
		leading  []string // most recent unreported lines, oldest first
		trailing int      // lines still owed as context after a match
	)
	if s.doReplace {
		out.Grow(len(contents))
	}

	lineNo := 0
	for pos := 0; pos < len(contents); {
		lineNo++

		end := bytes.IndexByte(contents[pos:], '\n')
		newline := end >= 0
		if newline {
			end += pos
		} else {
			end = len(contents)
		}
		raw := contents[pos:end]
		pos = end + 1

		crlf := len(raw) > 0 && raw[len(raw)-1] == '\r'
		if crlf {
			raw = raw[:len(raw)-1]
		}
		line := string(raw)

		spans, rewritten, hits := s.matchLine(line)

		if s.doReplace {
			if hits > 0 {
				out.WriteString(rewritten)
			} else {
				out.WriteString(line)
			}
			if crlf {
				out.WriteByte('\r')
			}
			if newline {
				out.WriteByte('\n')
			}
		}

		reported := false
		if hits > 0 {
			res.hits += hits
			res.linesWithHits++

			// A replace that leaves the line as it was is counted but not shown.
			reported = !s.doReplace || rewritten != line
			if reported {
				first := lineNo - len(leading)
				for i, text := range leading {
					emit(Entry{Path: path, Line: first + i, Spans: plainSpans(text), ContextOnly: true})
				}
				leading = leading[:0]
				emit(Entry{Path: path, Line: lineNo, Spans: spans})
			}
			trailing = s.contextLines
		}

		if !reported {
			switch {
			case trailing > 0:
				emit(Entry{Path: path, Line: lineNo, Spans: plainSpans(line), ContextOnly: true})
				trailing--
			case s.contextLines > 0:
				leading = append(leading, line)
				if len(leading) > s.contextLines {
					leading = leading[1:]
				}
			}
		}
	}

	if s.doReplace {
		res.updated = out.Bytes()
		res.changed = !bytes.Equal(contents, res.updated)
	}
	return res
}

// matchLine finds every match on line. It returns the display spans, the
// rewritten line (replace mode) and the number of matches.
func (s *scanner) matchLine(line string) ([]TextSpan, string, int) {
	matches := s.match.FindAll(line)
	if len(matches) == 0 {
		return nil, line, 0
	}

	var (
		spans     []TextSpan
		rewritten strings.Builder
		cursor    int
	)
	for _, m := range matches {
		start, end := m[0], m[1]
		if start > cursor {
			spans = append(spans, TextSpan{Text: line[cursor:start], Kind: SpanText})
			rewritten.WriteString(line[cursor:start])
		}
		if s.doReplace {
			if s.replace != "" {
				spans = append(spans, TextSpan{Text: s.replace, Kind: SpanHighlight})
			}
			rewritten.WriteString(s.replace)
		} else if end > start {
			spans = append(spans, TextSpan{Text: line[start:end], Kind: SpanHighlight})
		}
		cursor = end
	}
	if cursor < len(line) {
		spans = append(spans, TextSpan{Text: line[cursor:], Kind: SpanText})
		rewritten.WriteString(line[cursor:])
	}
	return spans, rewritten.String(), len(matches)
}

func plainSpans(text string) []TextSpan {
	if text == "" {
		return nil
	}
	return []TextSpan{{Text: text, Kind: SpanText}}
}
