package bubbletea

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fwojciec/omni"
	"github.com/fwojciec/omni/goldmark"
	"github.com/mattn/go-runewidth"
)

var _ MessageBlock = (*ResultBlock)(nil)

// ResultBlock renders one named block of an assistant turn. Media blocks
// show a pending marker until their payload arrives, or an unavailable
// marker once the turn settled without one. Context blocks are collapsible
// and start collapsed.
type ResultBlock struct {
	turnID    string
	block     omni.Block
	settled   bool
	collapsed bool
	md        *goldmark.Renderer
	resolve   func(string) string
	styles    Styles
}

// NewResultBlock creates a ResultBlock for b. resolve turns asset references
// into displayable URLs; nil leaves them unchanged.
func NewResultBlock(turnID string, b omni.Block, md *goldmark.Renderer, resolve func(string) string, styles Styles) *ResultBlock {
	if resolve == nil {
		resolve = func(s string) string { return s }
	}
	return &ResultBlock{
		turnID:    turnID,
		block:     b,
		collapsed: isContext(b.Kind),
		md:        md,
		resolve:   resolve,
		styles:    styles,
	}
}

func isContext(k omni.BlockKind) bool {
	return k == omni.BlockRAG || k == omni.BlockKBRAG
}

// SetBlock replaces the rendered block state. The collapsed state is kept.
func (b *ResultBlock) SetBlock(blk omni.Block) {
	b.block = blk
}

// SetSettled records whether the owning turn has settled.
func (b *ResultBlock) SetSettled(settled bool) {
	b.settled = settled
}

// Collapsible reports whether the block responds to ToggleMsg.
func (b *ResultBlock) Collapsible() bool {
	return isContext(b.block.Kind)
}

// Collapsed reports whether a context block is collapsed.
func (b *ResultBlock) Collapsed() bool {
	return isContext(b.block.Kind) && b.collapsed
}

func (b *ResultBlock) Update(msg tea.Msg) (MessageBlock, tea.Cmd) {
	if _, ok := msg.(ToggleMsg); ok && isContext(b.block.Kind) {
		b.collapsed = !b.collapsed
	}
	return b, nil
}

func (b *ResultBlock) View(width int) string {
	blk := b.block
	title := goldmark.Sanitize(blk.Title)
	if title == "" {
		title = blk.ID
	}

	var lines []string
	if isContext(blk.Kind) {
		indicator := "▼ "
		if b.collapsed {
			indicator = "▶ "
		}
		header := b.styles.Block.Render(indicator + title)
		if b.collapsed {
			if n := citationCount(blk); n > 0 {
				header += b.styles.Muted.Render(fmt.Sprintf(" (%d sources)", n))
			}
			return header
		}
		lines = append(lines, header)
	} else {
		lines = append(lines, b.styles.Block.Render(title))
	}

	switch {
	case blk.Pending() && b.settled:
		lines = append(lines, b.styles.Muted.Render(fmt.Sprintf("< %s unavailable />", blk.Kind.Label())))
	case blk.Pending():
		lines = append(lines, b.styles.Pending.Render(fmt.Sprintf("< Generating %s ... />", blk.Kind.Label())))
	}
	if text := displayText(blk); strings.TrimSpace(text) != "" {
		lines = append(lines, b.md.Render(text, width))
	}
	if link := b.linkLine(width); link != "" {
		lines = append(lines, link)
	}
	if p := blk.Payload; p != nil {
		for _, c := range p.Citations {
			lines = append(lines, b.styles.Muted.Render(truncate(citationLine(c, b.resolve), width)))
		}
	}
	return strings.Join(lines, "\n")
}

// linkLine describes a resolved media payload.
func (b *ResultBlock) linkLine(width int) string {
	p := b.block.Payload
	if p == nil || p.Data.URL == "" {
		return ""
	}
	url := b.resolve(p.Data.URL)
	var label string
	switch {
	case b.block.Kind == omni.BlockDoc:
		name := p.Data.Filename
		if name == "" {
			name = "document"
		}
		label = name
	case strings.HasPrefix(p.Data.Mime, "image/"):
		label = "image"
	case strings.HasPrefix(p.Data.Mime, "audio/"):
		label = "audio"
	default:
		label = "open"
	}
	prefix := b.styles.Success.Render(label) + " "
	return prefix + truncate(url, width-runewidth.StringWidth(label)-1)
}

// displayText is the markdown shown in the block body. A payload's own text
// wins over streamed tokens; documents are only linked.
func displayText(blk omni.Block) string {
	if blk.Kind == omni.BlockDoc {
		return ""
	}
	if p := blk.Payload; p != nil && p.Data.Text != "" {
		return p.Data.Text
	}
	return blk.Text
}

func citationCount(blk omni.Block) int {
	if blk.Payload == nil {
		return 0
	}
	return len(blk.Payload.Citations)
}

func citationLine(c omni.Citation, resolve func(string) string) string {
	title := c.Title
	if title == "" {
		title = c.URL
	}
	if c.URL == "" {
		return "- " + title
	}
	return "- " + title + " (" + resolve(c.URL) + ")"
}

func truncate(s string, width int) string {
	if width <= 1 {
		return s
	}
	return runewidth.Truncate(s, width, "…")
}
