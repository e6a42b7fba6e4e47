package bubbletea

import tea "github.com/charmbracelet/bubbletea"

// MessageBlock is a renderable element in the conversation.
// Unlike tea.Model, View takes a width parameter so the root model
// controls layout and blocks are testable in isolation.
type MessageBlock interface {
	Update(tea.Msg) (MessageBlock, tea.Cmd)
	View(width int) string
}

// ToggleMsg tells a collapsible block to toggle its collapsed state.
type ToggleMsg struct{}

// collapsible is implemented by blocks that may respond to ToggleMsg.
type collapsible interface {
	Collapsible() bool
}

func canToggle(b MessageBlock) bool {
	c, ok := b.(collapsible)
	return ok && c.Collapsible()
}

// blockSeparator returns the gap between two adjacent blocks. Results of the
// same turn are stacked tightly; everything else gets a blank line.
func blockSeparator(prev, curr MessageBlock) string {
	p, ok1 := prev.(*ResultBlock)
	c, ok2 := curr.(*ResultBlock)
	if ok1 && ok2 && p.turnID == c.turnID {
		return "\n"
	}
	return "\n\n"
}
