package bubbletea

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/fwojciec/omni"
	"github.com/fwojciec/omni/goldmark"
)

var _ tea.Model = Model{}

// Option configures a Model.
type Option func(*Model)

// WithAssetResolver sets how asset references in payloads and markdown
// links are turned into URLs the user can open.
func WithAssetResolver(fn func(string) string) Option {
	return func(m *Model) { m.resolve = fn }
}

// Model is the Bubble Tea model for the omni TUI. It renders snapshots of
// the conversation and re-renders whenever an update arrives.
type Model struct {
	// Input is the text input component. Exported for test access.
	Input textinput.Model
	// Viewport is the scrollable output area. Exported for test access.
	Viewport viewport.Model

	conv    omni.Conversation
	updates <-chan omni.Update
	theme   omni.Theme
	styles  Styles
	md      *goldmark.Renderer
	resolve func(string) string

	blocks     []MessageBlock
	blockFocus int // index of focused collapsible block (-1 = none)

	// cache keeps blocks across snapshots so render caches and collapsed
	// state survive. Keyed by turn id, or turn id and block id.
	cache map[string]MessageBlock

	submitting  bool // Enter pressed, Submit not returned yet
	sending     bool
	reconciling bool
	err         error
	ready       bool
}

// New creates a Model for conv. Updates published for conv's session are
// read from updates; a nil channel means the view only refreshes when a turn
// or reset completes.
func New(conv omni.Conversation, updates <-chan omni.Update, theme omni.Theme, opts ...Option) Model {
	ti := textinput.New()
	ti.Placeholder = "Type a message..."
	ti.Prompt = ""
	ti.Focus()
	ti.CharLimit = 0

	m := Model{
		Input:      ti,
		conv:       conv,
		updates:    updates,
		theme:      theme,
		styles:     NewStyles(theme),
		blockFocus: -1,
		cache:      make(map[string]MessageBlock),
	}
	for _, opt := range opts {
		opt(&m)
	}
	var mdOpts []goldmark.Option
	if m.resolve != nil {
		mdOpts = append(mdOpts, goldmark.WithLinkResolver(m.resolve))
	}
	m.md = goldmark.New(theme, mdOpts...)
	return m
}

// Sending reports whether a turn is streaming.
func (m Model) Sending() bool { return m.sending }

// Err returns the last error, if any.
func (m Model) Err() error { return m.err }

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, listenForUpdate(m.updates))
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m = m.handleWindowSize(msg)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case UpdateMsg:
		if m.ready {
			m = m.refresh()
		}
		return m, listenForUpdate(m.updates)

	case updatesClosedMsg:
		m.updates = nil
		return m, nil

	case TurnDoneMsg:
		if msg.Err != nil && !errors.Is(msg.Err, context.Canceled) {
			m.err = msg.Err
		}
		m.submitting = false
		m = m.refresh()
		return m, m.Input.Focus()

	case ResetDoneMsg:
		if msg.Err != nil {
			m.err = msg.Err
		}
		m = m.refresh()
		return m, nil
	}

	// Viewport always receives messages for scrolling (keyboard and mouse).
	var cmd tea.Cmd
	m.Viewport, cmd = m.Viewport.Update(msg)
	cmds = append(cmds, cmd)

	if !m.sending {
		m.Input, cmd = m.Input.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}

	var b strings.Builder
	b.WriteString(m.Viewport.View())
	b.WriteString("\n")
	b.WriteString(m.statusLine())
	b.WriteString("\n")
	b.WriteString(m.Input.View())
	return b.String()
}

func (m Model) handleWindowSize(msg tea.WindowSizeMsg) Model {
	inputH := 1
	statusHeight := 1
	borderHeight := 2 // newlines between sections
	vpHeight := max(msg.Height-inputH-statusHeight-borderHeight, 1)

	if !m.ready {
		m.Viewport = viewport.New(msg.Width, vpHeight)
		m.ready = true
		m = m.refresh()
	} else {
		m.Viewport.Width = msg.Width
		m.Viewport.Height = vpHeight
		m.Viewport.SetContent(m.renderContent())
	}

	m.Input.Width = msg.Width
	return m
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		if m.sending {
			m.conv.Abort()
			return m, nil
		}
		return m, tea.Quit

	case tea.KeyCtrlL:
		m.err = nil
		return m, resetSession(m.conv)

	case tea.KeyEnter:
		if m.sending {
			return m, nil
		}
		text := strings.TrimSpace(m.Input.Value())
		if text == "" {
			return m, nil
		}
		return m.submitInput(text)

	case tea.KeyTab:
		if m.blockFocus >= 0 && m.blockFocus < len(m.blocks) {
			block, cmd := m.blocks[m.blockFocus].Update(ToggleMsg{})
			m.blocks[m.blockFocus] = block
			m.Viewport.SetContent(m.renderContent())
			return m, cmd
		}
		return m, nil

	case tea.KeyShiftTab:
		m = m.cycleFocusPrev()
		return m, nil
	}

	// When idle, pass keys to both the input (for typing) and the viewport
	// (for scrolling). Character keys only go to the input.
	if !m.sending {
		var cmd tea.Cmd
		var cmds []tea.Cmd

		if msg.Type != tea.KeyRunes {
			m.Viewport, cmd = m.Viewport.Update(msg)
			cmds = append(cmds, cmd)
		}

		m.Input, cmd = m.Input.Update(msg)
		cmds = append(cmds, cmd)

		return m, tea.Batch(cmds...)
	}

	return m, nil
}

func (m Model) submitInput(text string) (tea.Model, tea.Cmd) {
	m.Input.SetValue("")
	m.Input.Blur()
	m.err = nil
	m.submitting = true
	m.sending = true
	return m, submitTurn(m.conv, text)
}

// refresh rebuilds the block list from a fresh snapshot.
func (m Model) refresh() Model {
	snap := m.conv.Snapshot()
	m.sending = m.submitting || m.conv.Sending()
	m.reconciling = m.conv.Reconciling()

	seen := make(map[string]bool)
	var blocks []MessageBlock
	for _, turn := range snap.Turns {
		switch turn.Role {
		case omni.RoleUser:
			blocks = append(blocks, m.cached(seen, turn.ID, func() MessageBlock {
				return NewUserMessageBlock(turn.Text, m.styles)
			}))
		case omni.RoleAssistant:
			blocks = append(blocks, m.assistantBlocks(seen, turn)...)
		}
	}
	for key := range m.cache {
		if !seen[key] {
			delete(m.cache, key)
		}
	}

	m.blocks = blocks
	m = m.updateBlockFocus()
	if m.ready {
		m.Viewport.SetContent(m.renderContent())
		m.Viewport.GotoBottom()
	}
	return m
}

// assistantBlocks lays out a turn: opening meta blocks, the turn text, the
// remaining blocks in arrival order, then closing meta blocks. Web results
// are not shown.
func (m Model) assistantBlocks(seen map[string]bool, turn *omni.Turn) []MessageBlock {
	var initial, rest, conclusion []omni.Block
	if turn.Blocks != nil {
		for _, b := range turn.Blocks.Blocks() {
			switch b.Kind {
			case omni.BlockWeb:
			case omni.BlockMetaInitial:
				initial = append(initial, b)
			case omni.BlockMetaConclusion:
				conclusion = append(conclusion, b)
			default:
				rest = append(rest, b)
			}
		}
	}

	var out []MessageBlock
	for _, b := range initial {
		out = append(out, m.resultBlock(seen, turn, b))
	}
	if turn.Text != "" {
		text := m.cached(seen, turn.ID, func() MessageBlock { return NewAssistantTextBlock(m.md) })
		text.(*AssistantTextBlock).SetText(turn.Text)
		out = append(out, text)
	}
	for _, b := range rest {
		out = append(out, m.resultBlock(seen, turn, b))
	}
	for _, b := range conclusion {
		out = append(out, m.resultBlock(seen, turn, b))
	}
	return out
}

func (m Model) resultBlock(seen map[string]bool, turn *omni.Turn, b omni.Block) MessageBlock {
	if p := b.Payload; p != nil && !p.OK {
		title := b.Title
		if title == "" {
			title = b.ID
		}
		return NewErrorBlock(title, p.Error, m.styles)
	}
	rb := m.cached(seen, turn.ID+"/"+b.ID, func() MessageBlock {
		return NewResultBlock(turn.ID, b, m.md, m.resolve, m.styles)
	}).(*ResultBlock)
	rb.SetBlock(b)
	rb.SetSettled(turn.Settled())
	return rb
}

func (m Model) cached(seen map[string]bool, key string, build func() MessageBlock) MessageBlock {
	seen[key] = true
	if b, ok := m.cache[key]; ok {
		return b
	}
	b := build()
	m.cache[key] = b
	return b
}

func (m Model) renderContent() string {
	if len(m.blocks) == 0 {
		return m.styles.Muted.Render("Ask for text, images, audio or documents.")
	}
	var b strings.Builder
	for i, block := range m.blocks {
		if i > 0 {
			b.WriteString(blockSeparator(m.blocks[i-1], block))
		}
		view := block.View(m.Viewport.Width)
		if i == m.blockFocus {
			view = m.styles.Accent.Render("›") + " " + view
		}
		b.WriteString(view)
	}
	return b.String()
}

// updateBlockFocus focuses the last collapsible block.
func (m Model) updateBlockFocus() Model {
	m.blockFocus = -1
	for i := len(m.blocks) - 1; i >= 0; i-- {
		if canToggle(m.blocks[i]) {
			m.blockFocus = i
			return m
		}
	}
	return m
}

// cycleFocusPrev moves focus to the previous collapsible block, wrapping
// around.
func (m Model) cycleFocusPrev() Model {
	if len(m.blocks) == 0 {
		return m
	}
	start := m.blockFocus - 1
	if start < 0 {
		start = len(m.blocks) - 1
	}
	for i := range len(m.blocks) {
		idx := (start - i + len(m.blocks)) % len(m.blocks)
		if canToggle(m.blocks[idx]) {
			m.blockFocus = idx
			m.Viewport.SetContent(m.renderContent())
			return m
		}
	}
	m.blockFocus = -1
	return m
}

func (m Model) statusLine() string {
	if m.err != nil {
		return m.styles.Error.Render(fmt.Sprintf("Error: %v", m.err))
	}
	if m.sending {
		return m.styles.Muted.Render("Generating... Ctrl+C to stop")
	}
	if m.reconciling {
		return m.styles.Pending.Render("Waiting for media...")
	}
	return m.styles.Muted.Render("Enter to send, Ctrl+L to reset, Ctrl+C to quit")
}

func submitTurn(conv omni.Conversation, text string) tea.Cmd {
	return func() tea.Msg {
		id, err := conv.Submit(context.Background(), text)
		return TurnDoneMsg{TurnID: id, Err: err}
	}
}

func resetSession(conv omni.Conversation) tea.Cmd {
	return func() tea.Msg {
		return ResetDoneMsg{Err: conv.Reset(context.Background())}
	}
}

// listenForUpdate waits for the next update. It returns nil for a nil
// channel, which Bubble Tea treats as no command.
func listenForUpdate(ch <-chan omni.Update) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		u, ok := <-ch
		if !ok {
			return updatesClosedMsg{}
		}
		return UpdateMsg{Update: u}
	}
}
