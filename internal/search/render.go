package search

import (
	"fmt"
	"path/filepath"
	"strings"
)

// renderer turns entries into the output stream: a header when the file
// changes, a gap marker when lines are skipped, and a line-number gutter.
type renderer struct {
	trimRoot string // empty when file names are shown in full

	lastPath string
	lastLine int
}

func newRenderer(req Request) *renderer {
	r := &renderer{}
	if req.Flags.TrimFilenames && len(req.Paths) > 0 {
		// Walked paths are built with filepath.Join, which cleans the root.
		r.trimRoot = filepath.Clean(req.Paths[0])
	}
	return r
}

// render returns the spans written for e and their total byte length.
func (r *renderer) render(e Entry) ([]TextSpan, int) {
	spans := make([]TextSpan, 0, len(e.Spans)+3)

	switch {
	case e.Path != r.lastPath:
		spans = append(spans, TextSpan{Text: "\n" + r.displayName(e.Path) + ":\n", Kind: SpanContext})
	case e.Line != r.lastLine+1:
		spans = append(spans, TextSpan{Text: "  ...\n", Kind: SpanContext})
	}
	r.lastPath = e.Path
	r.lastLine = e.Line

	gutter := "%5d: "
	if e.ContextOnly {
		gutter = "%5d  "
	}
	spans = append(spans, TextSpan{Text: fmt.Sprintf(gutter, e.Line), Kind: SpanContext})
	spans = append(spans, e.Spans...)
	spans = append(spans, TextSpan{Text: "\n", Kind: SpanText})

	return spans, spansLen(spans)
}

// displayName strips the first search root from path, ignoring case, and one
// separator after it.
func (r *renderer) displayName(path string) string {
	root := r.trimRoot
	if root == "" || len(path) < len(root) || !strings.EqualFold(path[:len(root)], root) {
		return path
	}
	rest := path[len(root):]
	if strings.HasPrefix(rest, "/") || strings.HasPrefix(rest, `\`) {
		rest = rest[1:]
	}
	return rest
}

// warning renders a per-file error line.
func warning(format string, args ...any) TextSpan {
	return TextSpan{Text: "WARNING: " + fmt.Sprintf(format, args...) + "\n", Kind: SpanError}
}
