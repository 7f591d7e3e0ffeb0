package cli

import (
	"fmt"
	"io"
	"sync"

	"github.com/cli/go-gh/v2/pkg/term"
	"github.com/mgutz/ansi"

	"github.com/eargollo/frisk/internal/config"
	"github.com/eargollo/frisk/internal/search"
)

// colorMode represents when to use colored output.
type colorMode string

const (
	colorAuto   colorMode = "auto"
	colorAlways colorMode = "always"
	colorNever  colorMode = "never"
)

// String is used both by fmt.Print and by Cobra in help text.
func (c *colorMode) String() string {
	return string(*c)
}

// Set must have pointer receiver to validate and set the value.
func (c *colorMode) Set(v string) error {
	switch v {
	case "auto", "always", "never":
		*c = colorMode(v)
		return nil
	default:
		return fmt.Errorf("must be one of \"auto\", \"always\", or \"never\"")
	}
}

// Type is only used in help text.
func (c *colorMode) Type() string {
	return "colorMode"
}

// enabled resolves auto against the terminal.
func (c colorMode) enabled() bool {
	switch c {
	case colorAlways:
		return true
	case colorNever:
		return false
	default:
		return term.FromEnv().IsColorEnabled()
	}
}

// printer writes search output, coloring spans by kind.
type printer struct {
	mu     sync.Mutex
	out    io.Writer
	errOut io.Writer
	style  map[search.SpanKind]func(string) string
	notice func(string) string
}

func newPrinter(out, errOut io.Writer, colors config.Colors, colorize bool) *printer {
	color := func(name string) func(string) string {
		if colorize {
			return ansi.ColorFunc(name)
		}
		return ansi.ColorFunc("")
	}
	return &printer{
		out:    out,
		errOut: errOut,
		style: map[search.SpanKind]func(string) string{
			search.SpanText:      color(colors.Text),
			search.SpanHighlight: color(colors.Highlight),
			search.SpanContext:   color(colors.Context),
			search.SpanError:     color(colors.Error),
		},
		notice: color(colors.Context),
	}
}

// Batch writes the spans of b.
func (p *printer) Batch(b *search.Batch) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, s := range b.Spans {
		fmt.Fprint(p.out, p.style[s.Kind](s.Text))
	}
}

// Noticef writes a status message to stderr.
func (p *printer) Noticef(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.errOut, p.notice(fmt.Sprintf(format, args...)))
}
