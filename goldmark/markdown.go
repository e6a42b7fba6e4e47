// Package goldmark renders assistant markdown to ANSI-styled terminal
// output using goldmark for parsing and lipgloss for styling.
package goldmark

import (
	"github.com/fwojciec/omni"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
)

const defaultWidth = 80

// Option configures a Renderer.
type Option func(*Renderer)

// WithLinkResolver rewrites link and image destinations before display.
// Relative asset references from the agent server are typically resolved
// against its base URL.
func WithLinkResolver(fn func(string) string) Option {
	return func(r *Renderer) { r.resolve = fn }
}

// Renderer renders markdown with a fixed theme.
type Renderer struct {
	md      goldmark.Markdown
	styles  styles
	resolve func(string) string
}

// New returns a Renderer for theme.
func New(theme omni.Theme, opts ...Option) *Renderer {
	r := &Renderer{
		md: goldmark.New(
			goldmark.WithExtensions(extension.Strikethrough, extension.Table, extension.TaskList),
			goldmark.WithParserOptions(parser.WithAutoHeadingID()),
		),
		styles:  newStyles(theme),
		resolve: func(s string) string { return s },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Render parses source and returns styled output. Escape sequences in
// source are stripped first. Paragraphs and list items are word-wrapped to
// width; code blocks are not reflowed. A width of zero or less means 80
// columns.
func (r *Renderer) Render(source string, width int) string {
	source = Sanitize(source)
	if source == "" {
		return ""
	}
	if width <= 0 {
		width = defaultWidth
	}
	return r.render([]byte(source), width)
}

// Render is a convenience for New(theme).Render(source, width).
func Render(source string, width int, theme omni.Theme) string {
	return New(theme).Render(source, width)
}
