package bubbletea_test

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fwojciec/omni"
	bt "github.com/fwojciec/omni/bubbletea"
	"github.com/fwojciec/omni/goldmark"
	"github.com/fwojciec/omni/mock"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 5, 6, 7, 8, 9, 0, time.UTC)

// initModel creates a model and sends a WindowSizeMsg to initialize the viewport.
func initModel(t *testing.T, conv omni.Conversation, opts ...bt.Option) bt.Model {
	t.Helper()
	return initModelWithSize(t, conv, 80, 24, opts...)
}

// initModelWithSize creates a model with a custom terminal size.
func initModelWithSize(t *testing.T, conv omni.Conversation, width, height int, opts ...bt.Option) bt.Model {
	t.Helper()
	m := bt.New(conv, nil, omni.DefaultTheme(), opts...)
	return updateModel(t, m, tea.WindowSizeMsg{Width: width, Height: height})
}

// updateModel sends a message and returns the updated Model.
func updateModel(t *testing.T, m bt.Model, msg tea.Msg) bt.Model {
	t.Helper()
	updated, _ := m.Update(msg)
	model, ok := updated.(bt.Model)
	require.True(t, ok)
	return model
}

// staticConv returns a conversation whose snapshot is always sess.
func staticConv(sess omni.Session) *mock.Conversation {
	return &mock.Conversation{
		SnapshotFn: func() omni.Session { return sess.Clone() },
	}
}

func userTurn(id, text string) *omni.Turn {
	return &omni.Turn{ID: id, Role: omni.RoleUser, Text: text, Status: omni.TurnSettled, CreatedAt: now, Blocks: omni.NewBlockStore()}
}

func assistantTurn(id, text string, status omni.TurnStatus, blocks ...omni.Block) *omni.Turn {
	return &omni.Turn{ID: id, Role: omni.RoleAssistant, Text: text, Status: status, CreatedAt: now, Blocks: omni.NewBlockStore(blocks...)}
}

func session(turns ...*omni.Turn) omni.Session {
	return omni.Session{ID: "s1", CreatedAt: now, UpdatedAt: now, Turns: turns}
}

func renderer() *goldmark.Renderer {
	return goldmark.New(omni.DefaultTheme())
}
