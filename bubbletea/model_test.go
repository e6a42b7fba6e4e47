package bubbletea_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/exp/teatest"
	"github.com/fwojciec/omni"
	bt "github.com/fwojciec/omni/bubbletea"
	"github.com/fwojciec/omni/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Parallel()

	m := bt.New(staticConv(session()), nil, omni.DefaultTheme())
	assert.False(t, m.Sending())
	assert.NoError(t, m.Err())
	assert.Equal(t, "Initializing...", m.View())
}

func TestModel_Layout(t *testing.T) {
	t.Parallel()

	t.Run("window size initializes viewport", func(t *testing.T) {
		t.Parallel()
		m := initModel(t, staticConv(session()))
		assert.Equal(t, 80, m.Viewport.Width)
		assert.Equal(t, 20, m.Viewport.Height) // 24 - 1 - 1 - 2
		assert.Contains(t, m.View(), "Enter to send")
	})

	t.Run("resize re-renders content", func(t *testing.T) {
		t.Parallel()
		long := "word1 word2 word3 word4 word5 word6 word7 word8"
		m := initModelWithSize(t, staticConv(session(
			userTurn("u1", "hi"),
			assistantTurn("a1", long, omni.TurnSettled),
		)), 30, 20)

		m = updateModel(t, m, tea.WindowSizeMsg{Width: 120, Height: 20})
		assert.Equal(t, 120, m.Viewport.Width)

		found := false
		for _, line := range strings.Split(m.Viewport.View(), "\n") {
			if strings.Contains(line, "word1") && strings.Contains(line, "word8") {
				found = true
			}
		}
		assert.True(t, found, "expected word1 and word8 on one line:\n%s", m.Viewport.View())
	})

	t.Run("empty session shows hint", func(t *testing.T) {
		t.Parallel()
		m := initModel(t, staticConv(session()))
		assert.Contains(t, bt.RenderContent(m), "Ask for text")
	})
}

func TestModel_SettledTurnShowsUnavailableMedia(t *testing.T) {
	t.Parallel()

	sess := session(
		userTurn("u1", "read it aloud"),
		assistantTurn("a1", "Sorry.", omni.TurnSettled,
			omni.Block{ID: "tts", Kind: omni.BlockTTS, Title: "Audio"},
		),
	)
	content := bt.RenderContent(initModel(t, staticConv(sess)))

	assert.Contains(t, content, "< Audio unavailable />")
	assert.NotContains(t, content, "Generating Audio")
}

func TestModel_RendersTurns(t *testing.T) {
	t.Parallel()

	sess := session(
		userTurn("u1", "draw a cat and read it aloud"),
		assistantTurn("a1", "Here you go.", omni.TurnAwaitingReconciliation,
			omni.Block{ID: "__meta_conclusion__", Kind: omni.BlockMetaConclusion, Title: "Conclusion", Text: "all done"},
			omni.Block{ID: "img", Kind: omni.BlockImageGen, Title: "Image", Payload: &omni.Payload{
				OK: true, Data: omni.PayloadData{URL: "/api/assets/s1/cat.png", Mime: "image/png"},
			}},
			omni.Block{ID: "tts", Kind: omni.BlockTTS, Title: "Audio"},
			omni.Block{ID: "web", Kind: omni.BlockWeb, Title: "Web Results", Text: "hidden results"},
			omni.Block{ID: "doc", Kind: omni.BlockDoc, Title: "Document", Payload: &omni.Payload{OK: false, Error: "quota exceeded"}},
			omni.Block{ID: "__meta_initial__", Kind: omni.BlockMetaInitial, Title: "Initial", Text: "plan first"},
		),
	)
	m := initModel(t, staticConv(sess), bt.WithAssetResolver(agentURL))
	content := bt.RenderContent(m)

	assert.Contains(t, content, "> draw a cat and read it aloud")
	assert.Contains(t, content, "image http://agent/api/assets/s1/cat.png")
	assert.Contains(t, content, "< Generating Audio ... />")
	assert.Contains(t, content, "Error: quota exceeded")
	assert.NotContains(t, content, "hidden results")

	initial := strings.Index(content, "plan first")
	text := strings.Index(content, "Here you go.")
	image := strings.Index(content, "image http://agent")
	conclusion := strings.Index(content, "all done")
	require.True(t, initial >= 0 && text >= 0 && image >= 0 && conclusion >= 0, content)
	assert.Less(t, initial, text, "opening meta block precedes text")
	assert.Less(t, text, image, "text precedes other blocks")
	assert.Less(t, image, conclusion, "closing meta block comes last")
}

func TestModel_Keys(t *testing.T) {
	t.Parallel()

	t.Run("ctrl+c when idle quits", func(t *testing.T) {
		t.Parallel()
		m := initModel(t, staticConv(session()))
		_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
		require.NotNil(t, cmd)
		_, isQuit := cmd().(tea.QuitMsg)
		assert.True(t, isQuit)
	})

	t.Run("enter with empty input does nothing", func(t *testing.T) {
		t.Parallel()
		m := initModel(t, staticConv(session()))
		updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
		assert.False(t, updated.(bt.Model).Sending())
		assert.Nil(t, cmd)
	})

	t.Run("enter submits input", func(t *testing.T) {
		t.Parallel()
		var got string
		conv := staticConv(session())
		conv.SubmitFn = func(_ context.Context, text string) (string, error) {
			got = text
			return "a1", nil
		}
		m := initModel(t, conv)
		m.Input.SetValue("  hello  ")

		updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
		m = updated.(bt.Model)
		assert.True(t, m.Sending())
		assert.Equal(t, "", m.Input.Value())
		require.NotNil(t, cmd)

		msg := cmd()
		assert.Equal(t, bt.TurnDoneMsg{TurnID: "a1"}, msg)
		assert.Equal(t, "hello", got)

		m = updateModel(t, m, msg)
		assert.False(t, m.Sending())
	})

	t.Run("enter while sending is ignored", func(t *testing.T) {
		t.Parallel()
		conv := staticConv(session())
		conv.SubmitFn = func(context.Context, string) (string, error) { return "a1", nil }
		m := initModel(t, conv)
		m.Input.SetValue("first")
		m = updateModel(t, m, tea.KeyMsg{Type: tea.KeyEnter})

		m.Input.SetValue("second")
		_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
		assert.Nil(t, cmd)
	})

	t.Run("ctrl+c while sending aborts", func(t *testing.T) {
		t.Parallel()
		var aborted atomic.Bool
		conv := staticConv(session())
		conv.SubmitFn = func(context.Context, string) (string, error) { return "a1", nil }
		conv.AbortFn = func() bool { aborted.Store(true); return true }
		m := initModel(t, conv)
		m.Input.SetValue("hi")
		m = updateModel(t, m, tea.KeyMsg{Type: tea.KeyEnter})

		updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
		assert.Nil(t, cmd)
		assert.True(t, aborted.Load())
		assert.True(t, updated.(bt.Model).Sending())
	})

	t.Run("ctrl+l resets the session", func(t *testing.T) {
		t.Parallel()
		var resets atomic.Int32
		conv := staticConv(session())
		conv.ResetFn = func(context.Context) error { resets.Add(1); return nil }
		m := initModel(t, conv)

		_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlL})
		require.NotNil(t, cmd)
		assert.Equal(t, bt.ResetDoneMsg{}, cmd())
		assert.Equal(t, int32(1), resets.Load())
	})

	t.Run("tab toggles focused context block", func(t *testing.T) {
		t.Parallel()
		sess := session(
			userTurn("u1", "what do my notes say"),
			assistantTurn("a1", "They say hi.", omni.TurnSettled,
				omni.Block{ID: "rag", Kind: omni.BlockRAG, Title: "Document Context", Payload: &omni.Payload{
					OK: true, Citations: []omni.Citation{{Title: "notes.md"}},
				}},
			),
		)
		m := initModel(t, staticConv(sess))
		assert.Contains(t, bt.RenderContent(m), "▶ Document Context (1 sources)")
		assert.NotContains(t, bt.RenderContent(m), "- notes.md")

		m = updateModel(t, m, tea.KeyMsg{Type: tea.KeyTab})
		assert.Contains(t, bt.RenderContent(m), "▼ Document Context")
		assert.Contains(t, bt.RenderContent(m), "- notes.md")

		// Expanded state survives a refresh from a new snapshot.
		m = updateModel(t, m, bt.UpdateMsg{Update: omni.Update{SessionID: "s1", Kind: omni.UpdateStatus}})
		assert.Contains(t, bt.RenderContent(m), "- notes.md")
	})

	t.Run("tab without collapsible blocks is a no-op", func(t *testing.T) {
		t.Parallel()
		m := initModel(t, staticConv(session(userTurn("u1", "hi"))))
		before := bt.RenderContent(m)
		updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyTab})
		assert.Nil(t, cmd)
		assert.Equal(t, before, bt.RenderContent(updated.(bt.Model)))
		assert.Equal(t, "", updated.(bt.Model).Input.Value())
	})
}

func TestModel_Messages(t *testing.T) {
	t.Parallel()

	t.Run("turn error is shown in status line", func(t *testing.T) {
		t.Parallel()
		m := initModel(t, staticConv(session()))
		m = updateModel(t, m, bt.TurnDoneMsg{Err: omni.ErrTurnInFlight})
		assert.ErrorIs(t, m.Err(), omni.ErrTurnInFlight)
		assert.Contains(t, m.View(), "Error: turn already in flight")
	})

	t.Run("cancelled turn is not an error", func(t *testing.T) {
		t.Parallel()
		m := initModel(t, staticConv(session()))
		m = updateModel(t, m, bt.TurnDoneMsg{Err: context.Canceled})
		assert.NoError(t, m.Err())
	})

	t.Run("reset error is shown", func(t *testing.T) {
		t.Parallel()
		m := initModel(t, staticConv(session()))
		m = updateModel(t, m, bt.ResetDoneMsg{Err: errors.New("engine: clear session: boom")})
		assert.Contains(t, m.View(), "boom")
	})

	t.Run("reconciling turn shows waiting status", func(t *testing.T) {
		t.Parallel()
		conv := staticConv(session())
		conv.ReconcilingFn = func() bool { return true }
		m := initModel(t, conv)
		assert.Contains(t, m.View(), "Waiting for media...")
	})

	t.Run("update refreshes from snapshot and keeps listening", func(t *testing.T) {
		t.Parallel()
		var (
			mu   sync.Mutex
			sess = session(userTurn("u1", "hi"), assistantTurn("a1", "Hel", omni.TurnSending))
		)
		conv := &mock.Conversation{SnapshotFn: func() omni.Session {
			mu.Lock()
			defer mu.Unlock()
			return sess.Clone()
		}}
		updates := make(chan omni.Update, 1)
		m := bt.New(conv, updates, omni.DefaultTheme())
		m = updateModel(t, m, tea.WindowSizeMsg{Width: 80, Height: 24})
		assert.Contains(t, bt.RenderContent(m), "Hel")
		first := bt.Blocks(m)[1]

		mu.Lock()
		sess.Turns[1].Text = "Hello there"
		mu.Unlock()

		updated, cmd := m.Update(bt.UpdateMsg{Update: omni.Update{SessionID: "s1", TurnID: "a1", Kind: omni.UpdateText}})
		m = updated.(bt.Model)
		assert.Contains(t, bt.RenderContent(m), "Hello there")
		assert.Same(t, first, bt.Blocks(m)[1], "text block is reused across snapshots")

		require.NotNil(t, cmd)
		updates <- omni.Update{Kind: omni.UpdateReset}
		assert.Equal(t, bt.UpdateMsg{Update: omni.Update{Kind: omni.UpdateReset}}, cmd())
	})

	t.Run("closed update channel stops listening", func(t *testing.T) {
		t.Parallel()
		updates := make(chan omni.Update)
		close(updates)
		m := bt.New(staticConv(session()), updates, omni.DefaultTheme())
		m = updateModel(t, m, tea.WindowSizeMsg{Width: 80, Height: 24})

		updated, listen := m.Update(bt.UpdateMsg{})
		require.NotNil(t, listen)
		_, cmd := updated.Update(listen())
		assert.Nil(t, cmd)
	})
}

func TestModel_Program(t *testing.T) {
	t.Parallel()

	t.Run("submit renders the finished turn", func(t *testing.T) {
		t.Parallel()

		var mu sync.Mutex
		sess := session()
		conv := &mock.Conversation{
			SnapshotFn: func() omni.Session {
				mu.Lock()
				defer mu.Unlock()
				return sess.Clone()
			},
			SubmitFn: func(_ context.Context, text string) (string, error) {
				mu.Lock()
				defer mu.Unlock()
				sess.Turns = append(sess.Turns,
					userTurn("u1", text),
					assistantTurn("a1", "Hello!", omni.TurnSettled),
				)
				return "a1", nil
			},
		}

		tm := teatest.NewTestModel(t, bt.New(conv, nil, omni.DefaultTheme()),
			teatest.WithInitialTermSize(80, 24),
		)

		tm.Type("hi")
		tm.Send(tea.KeyMsg{Type: tea.KeyEnter})

		teatest.WaitFor(t, tm.Output(), func(out []byte) bool {
			return bytes.Contains(out, []byte("Hello!"))
		}, teatest.WithDuration(5*time.Second))

		tm.Send(tea.KeyMsg{Type: tea.KeyCtrlC})

		fm := tm.FinalModel(t, teatest.WithFinalTimeout(5*time.Second))
		final, ok := fm.(bt.Model)
		require.True(t, ok)
		assert.False(t, final.Sending())
		assert.NoError(t, final.Err())
		assert.Len(t, conv.Snapshot().Turns, 2)
	})

	t.Run("existing session renders on start", func(t *testing.T) {
		t.Parallel()

		conv := staticConv(session(
			userTurn("u1", "hello there"),
			assistantTurn("a1", "Hi! How can I help?", omni.TurnSettled),
		))
		tm := teatest.NewTestModel(t, bt.New(conv, nil, omni.DefaultTheme()),
			teatest.WithInitialTermSize(80, 24),
		)

		teatest.WaitFor(t, tm.Output(), func(out []byte) bool {
			return bytes.Contains(out, []byte("hello there")) &&
				bytes.Contains(out, []byte("Hi! How can I help?"))
		}, teatest.WithDuration(5*time.Second))

		tm.Send(tea.KeyMsg{Type: tea.KeyCtrlC})
		tm.WaitFinished(t, teatest.WithFinalTimeout(5*time.Second))
	})
}
