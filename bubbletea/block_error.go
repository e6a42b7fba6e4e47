package bubbletea

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var _ MessageBlock = (*ErrorBlock)(nil)

// ErrorBlock renders a block whose task failed.
type ErrorBlock struct {
	title  string
	reason string
	styles Styles
}

// NewErrorBlock creates an ErrorBlock. An empty reason renders as "failed".
func NewErrorBlock(title, reason string, styles Styles) *ErrorBlock {
	if reason == "" {
		reason = "failed"
	}
	return &ErrorBlock{title: title, reason: reason, styles: styles}
}

func (b *ErrorBlock) Update(msg tea.Msg) (MessageBlock, tea.Cmd) {
	return b, nil
}

func (b *ErrorBlock) View(width int) string {
	header := b.styles.Block.Render(b.title)
	body := b.styles.Error.Render("Error: " + b.reason)
	return lipgloss.NewStyle().Width(width).Render(header + "\n" + body)
}
