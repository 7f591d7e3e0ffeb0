package search

import (
	"fmt"
	"strings"
	"time"
)

// Flags are the orthogonal switches of a search request.
type Flags struct {
	Recursive             bool `yaml:"recursive"               json:"recursive"`
	FilespecRegex         bool `yaml:"filespec_regex"          json:"filespec_regex"`
	FilespecCaseSensitive bool `yaml:"filespec_case_sensitive" json:"filespec_case_sensitive"`
	MatchRegex            bool `yaml:"match_regex"             json:"match_regex"`
	MatchCaseSensitive    bool `yaml:"match_case_sensitive"    json:"match_case_sensitive"`
	Replace               bool `yaml:"replace"                 json:"replace"`
	Backup                bool `yaml:"backup"                  json:"backup"`
	TrimFilenames         bool `yaml:"trim_filenames"          json:"trim_filenames"`
}

// Request describes one search. The engine copies it on Submit.
type Request struct {
	Paths           []string `json:"paths"`
	Filespecs       []string `json:"filespecs"`
	Excludes        []string `json:"excludes,omitempty"`
	Match           string   `json:"match"`
	Replace         string   `json:"replace,omitempty"`
	BackupExtension string   `json:"backup_extension,omitempty"`
	MaxFileSize     int64    `json:"max_file_size,omitempty"` // bytes; 0 = unlimited
	ContextLines    int      `json:"context_lines,omitempty"`
	Flags           Flags    `json:"flags"`
}

func (r Request) clone() Request {
	c := r
	c.Paths = append([]string(nil), r.Paths...)
	c.Filespecs = append([]string(nil), r.Filespecs...)
	c.Excludes = append([]string(nil), r.Excludes...)
	if c.ContextLines < 0 {
		c.ContextLines = 0
	}
	return c
}

// SpanKind classifies a piece of rendered output.
type SpanKind int

const (
	SpanText      SpanKind = iota // ordinary line text
	SpanHighlight                 // matched or replaced text
	SpanContext                   // file headers, gaps, line gutters, summaries
	SpanError                     // per-file warnings and configuration errors
)

func (k SpanKind) String() string {
	switch k {
	case SpanHighlight:
		return "highlight"
	case SpanContext:
		return "context"
	case SpanError:
		return "error"
	default:
		return "text"
	}
}

// MarshalText lets spans serialise their kind by name.
func (k SpanKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// TextSpan is a run of output text with a single presentation.
type TextSpan struct {
	Text string   `json:"text"`
	Kind SpanKind `json:"kind"`
}

// IsHighlighted reports whether the span covers matched or replaced text.
func (s TextSpan) IsHighlighted() bool {
	return s.Kind == SpanHighlight
}

func spansLen(spans []TextSpan) int {
	n := 0
	for _, s := range spans {
		n += len(s.Text)
	}
	return n
}

func spansText(spans []TextSpan) string {
	var b strings.Builder
	b.Grow(spansLen(spans))
	for _, s := range spans {
		b.WriteString(s.Text)
	}
	return b.String()
}

// Entry is one reported line. Offset is where the entry's rendered text ends
// in the concatenated output stream of the run.
type Entry struct {
	Path        string     `json:"path"`
	Line        int        `json:"line"`
	Spans       []TextSpan `json:"spans"`
	ContextOnly bool       `json:"context_only"`
	Offset      int64      `json:"offset"`
}

// Text returns the line text without gutter or file header.
func (e Entry) Text() string {
	return spansText(e.Spans)
}

// Stats holds the counters of one run. They are written by the worker only;
// other goroutines see copies carried by pokes and state changes.
type Stats struct {
	DirsSearched  int `json:"dirs_searched"`
	DirsSkipped   int `json:"dirs_skipped"`
	FilesSearched int `json:"files_searched"`
	FilesSkipped  int `json:"files_skipped"`
	FilesWithHits int `json:"files_with_hits"`
	FilesUpdated  int `json:"files_updated"`
	LinesWithHits int `json:"lines_with_hits"`
	Hits          int `json:"hits"`
}

// Progress is the short status line shown while a run is in flight.
func (s Stats) Progress() string {
	return fmt.Sprintf("%d hits, %d dirs, %d files",
		s.Hits, s.DirsSearched+s.DirsSkipped, s.FilesSearched+s.FilesSkipped)
}

// Summary is the text appended when a run completes.
func (s Stats) Summary(replace bool, elapsed time.Duration) string {
	line := fmt.Sprintf("\n%d hits in %d lines across %d files.\n%d directories scanned, %d files searched, %d files skipped",
		s.Hits, s.LinesWithHits, s.FilesWithHits, s.DirsSearched, s.FilesSearched, s.FilesSkipped)
	if replace {
		line += fmt.Sprintf(", %d files updated", s.FilesUpdated)
	}
	return line + fmt.Sprintf(" (%.3f sec)\n", elapsed.Seconds())
}

// Batch is the payload of a poke: output produced since the previous
// delivery. Once handed to the consumer the worker never touches it again.
type Batch struct {
	Spans    []TextSpan `json:"spans,omitempty"`
	Progress string     `json:"progress,omitempty"`
	Stats    Stats      `json:"stats"`
	Final    bool       `json:"final,omitempty"`
}

// Text concatenates the batch's spans.
func (b *Batch) Text() string {
	return spansText(b.Spans)
}

// Poke delivers a batch tagged with the generation that produced it.
// Consumers must drop pokes whose generation is no longer current.
type Poke struct {
	Generation uint64 `json:"generation"`
	Batch      *Batch `json:"batch"`
}

// Outcome is how a run ended.
type Outcome string

const (
	OutcomeRunning   Outcome = "running"
	OutcomeCompleted Outcome = "completed"
	OutcomeCancelled Outcome = "cancelled"
	OutcomeFailed    Outcome = "failed"
)

// State reports a run starting (Running true) or returning to idle.
// Outcome, Stats, Elapsed and Err are filled in on the idle transition.
type State struct {
	Generation uint64        `json:"generation"`
	Running    bool          `json:"running"`
	Outcome    Outcome       `json:"outcome"`
	Request    Request       `json:"request"`
	StartedAt  time.Time     `json:"started_at"`
	Stats      Stats         `json:"stats"`
	Elapsed    time.Duration `json:"elapsed"`
	Err        error         `json:"-"`
}

func (s State) String() string {
	if s.Running {
		return fmt.Sprintf("generation %d running", s.Generation)
	}
	return fmt.Sprintf("generation %d %s", s.Generation, s.Outcome)
}
