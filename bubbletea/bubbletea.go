// Package bubbletea provides a Bubble Tea TUI for an omni conversation.
package bubbletea

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fwojciec/omni"
)

// Run creates and runs the Bubble Tea TUI program. It blocks until the
// program exits. Cancelling ctx quits the program.
func Run(ctx context.Context, m Model) error {
	p := tea.NewProgram(m, tea.WithAltScreen())
	go func() {
		<-ctx.Done()
		p.Quit()
	}()
	_, err := p.Run()
	return err
}

// UpdateMsg delivers a change notification from the conversation.
type UpdateMsg struct {
	Update omni.Update
}

// TurnDoneMsg signals that a submitted turn has finished streaming. The turn
// may still be awaiting reconciliation.
type TurnDoneMsg struct {
	TurnID string
	Err    error
}

// ResetDoneMsg signals that a session reset has completed.
type ResetDoneMsg struct {
	Err error
}

// updatesClosedMsg signals that the update channel was closed.
type updatesClosedMsg struct{}
