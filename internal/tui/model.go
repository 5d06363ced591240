package tui

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"agent-desk/internal/app"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
)

type spinMsg struct{}

type stateChangedMsg struct{ sessionID string }

type streamDoneMsg struct{ err error }

type titleMsg struct{ title string }

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// MainModel is the chat front. All session state lives in the dispatcher;
// the model only snapshots it on change notifications and renders.
type MainModel struct {
	dispatcher *app.Dispatcher
	client     *app.StreamClient
	store      app.SessionStore
	cfg        app.Config
	logger     *app.Logger

	session app.Session
	titled  bool

	theme Theme

	width  int
	height int
	ready  bool

	input    textarea.Model
	chatVP   viewport.Model
	markdown *MarkdownRenderer

	running    bool
	statusText string
	spinnerPos int
	cancel     context.CancelFunc

	changeCh chan string
	doneCh   chan streamDoneMsg
}

type ModelDeps struct {
	Dispatcher *app.Dispatcher
	Client     *app.StreamClient
	Store      app.SessionStore
	Config     app.Config
	Logger     *app.Logger
	Session    app.Session
	ChangeCh   chan string
}

func NewMainModel(deps ModelDeps) *MainModel {
	ta := textarea.New()
	ta.Placeholder = "Ask, then press Enter. Ctrl+C cancels a stream."
	ta.Focus()
	ta.CharLimit = 8000
	ta.SetHeight(1)
	ta.Prompt = " "
	ta.ShowLineNumbers = false

	// Keep textarea styling minimal; the input container carries the border.
	ta.FocusedStyle.CursorLine = lipgloss.NewStyle()
	ta.BlurredStyle.CursorLine = lipgloss.NewStyle()
	ta.FocusedStyle.Base = lipgloss.NewStyle()
	ta.BlurredStyle.Base = lipgloss.NewStyle()

	theme := NewTheme()
	m := &MainModel{
		dispatcher: deps.Dispatcher,
		client:     deps.Client,
		store:      deps.Store,
		cfg:        deps.Config,
		logger:     deps.Logger,
		session:    deps.Session,
		titled:     deps.Session.Title != "",
		theme:      theme,
		markdown:   NewMarkdownRenderer(theme),
		width:      100,
		height:     30,
		input:      ta,
		statusText: "Ready",
		changeCh:   deps.ChangeCh,
	}

	if msgs, err := deps.Store.LoadMessages(deps.Session.ID); err == nil {
		deps.Dispatcher.SetMessages(deps.Session.ID, msgs)
	}
	return m
}

func (m *MainModel) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.waitChange())
}

func (m *MainModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		chatH := max(3, m.height-6)
		if !m.ready {
			m.chatVP = viewport.New(m.width, chatH)
			m.chatVP.Style = lipgloss.NewStyle()
			m.ready = true
		} else {
			m.chatVP.Width = m.width
			m.chatVP.Height = chatH
		}
		m.input.SetWidth(max(10, m.width-4))
		m.refreshChat()
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC:
			if m.running && m.cancel != nil {
				m.statusText = "Cancelling..."
				m.cancel()
				return m, nil
			}
			return m, tea.Quit
		case tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			return m, m.onEnter()
		case tea.KeyPgUp:
			m.chatVP.ViewUp()
			return m, nil
		case tea.KeyPgDown:
			m.chatVP.ViewDown()
			return m, nil
		}
		if cmd := m.handlePromptKeys(msg); cmd != nil {
			return m, cmd
		}

	case stateChangedMsg:
		if msg.sessionID == m.session.ID {
			m.refreshChat()
			m.chatVP.GotoBottom()
		}
		return m, m.waitChange()

	case streamDoneMsg:
		m.running = false
		m.statusText = "Ready"
		m.cancel = nil
		if msg.err != nil {
			m.statusText = "Error"
			m.logger.Error("stream finished with error", map[string]any{"error": msg.err.Error()})
		}
		m.refreshChat()
		m.chatVP.GotoBottom()
		return m, nil

	case titleMsg:
		if msg.title != "" {
			m.session.Title = msg.title
			m.titled = true
		}
		return m, nil

	case spinMsg:
		m.spinnerPos = (m.spinnerPos + 1) % len(spinnerFrames)
		if m.running {
			return m, m.spinTick()
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)

	m.chatVP, cmd = m.chatVP.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// handlePromptKeys services pending permission and ask-user prompts.
// Number keys answer the oldest ask; y/n answer the oldest permission.
func (m *MainModel) handlePromptKeys(msg tea.KeyMsg) tea.Cmd {
	perms := m.dispatcher.PermissionQueue(m.session.ID)
	if len(perms) > 0 {
		switch msg.String() {
		case "y", "n":
			m.dispatcher.ResolvePermission(m.session.ID, perms[0].ID)
			m.refreshChat()
			return func() tea.Msg { return stateChangedMsg{sessionID: m.session.ID} }
		}
	}
	asks := m.dispatcher.AskQueue(m.session.ID)
	if len(asks) > 0 {
		s := msg.String()
		if len(s) == 1 && s[0] >= '1' && s[0] <= '9' {
			idx := int(s[0] - '1')
			if idx < len(asks[0].Options) {
				m.dispatcher.ResolveAsk(m.session.ID, asks[0].ID)
				m.refreshChat()
				return func() tea.Msg { return stateChangedMsg{sessionID: m.session.ID} }
			}
		}
	}
	return nil
}

func (m *MainModel) View() string {
	if !m.ready {
		return "..."
	}
	header := m.renderHeader()
	chat := m.chatVP.View()
	input := m.theme.InputBox.Width(max(10, m.width-2)).Render(m.input.View())
	footer := m.renderFooter()
	return lipgloss.JoinVertical(lipgloss.Left, header, chat, input, footer)
}

func (m *MainModel) onEnter() tea.Cmd {
	val := strings.TrimSpace(m.input.Value())
	if val == "" {
		return nil
	}
	if m.running {
		return nil
	}
	m.input.Reset()

	userMsg := app.StoredMessage{
		ID:        uuid.NewString(),
		SessionID: m.session.ID,
		Role:      "user",
		Content:   val,
		CreatedAt: time.Now(),
	}
	if err := m.store.AppendMessage(userMsg); err != nil {
		m.logger.Warn("failed to persist user message", map[string]any{"error": err.Error()})
	}
	m.dispatcher.SetMessages(m.session.ID, append(m.dispatcher.Messages(m.session.ID), userMsg))

	m.running = true
	m.statusText = "Streaming..."
	m.spinnerPos = 0

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.doneCh = make(chan streamDoneMsg, 1)

	go func(prompt string, done chan streamDoneMsg) {
		err := app.RunSessionStream(ctx, m.client, m.cfg, m.dispatcher, m.session.ID, prompt)
		done <- streamDoneMsg{err: err}
	}(val, m.doneCh)

	cmds := []tea.Cmd{m.waitDone(m.doneCh), m.spinTick()}
	if !m.titled {
		cmds = append(cmds, m.generateTitle(val))
	}
	m.refreshChat()
	m.chatVP.GotoBottom()
	return tea.Batch(cmds...)
}

func (m *MainModel) generateTitle(firstMessage string) tea.Cmd {
	return func() tea.Msg {
		title := app.GenerateSessionTitle(context.Background(), m.client, m.cfg, firstMessage)
		if title != "" {
			if err := m.store.SetSessionTitle(m.session.ID, title); err != nil {
				m.logger.Warn("failed to persist session title", map[string]any{"error": err.Error()})
			}
		}
		return titleMsg{title: title}
	}
}

func (m *MainModel) waitChange() tea.Cmd {
	ch := m.changeCh
	return func() tea.Msg {
		id, ok := <-ch
		if !ok {
			return nil
		}
		return stateChangedMsg{sessionID: id}
	}
}

func (m *MainModel) waitDone(done chan streamDoneMsg) tea.Cmd {
	return func() tea.Msg { return <-done }
}

func (m *MainModel) spinTick() tea.Cmd {
	d := 90 * time.Millisecond
	if os.Getenv("ADESK_REDUCE_MOTION") == "1" {
		d = 250 * time.Millisecond
	}
	return tea.Tick(d, func(_ time.Time) tea.Msg { return spinMsg{} })
}

func (m *MainModel) refreshChat() {
	var b strings.Builder

	for _, msg := range m.dispatcher.Messages(m.session.ID) {
		b.WriteString(m.renderMessage(msg))
		b.WriteString("\n")
	}

	st, live := m.dispatcher.State(m.session.ID)
	if live {
		if banners := FormatStreamBanners(st); banners != "" {
			b.WriteString(m.theme.Banner.Render(strings.TrimRight(banners, "\n")))
			b.WriteString("\n")
		}
		if nodes := m.dispatcher.GroupedActivities(m.session.ID); len(nodes) > 0 {
			b.WriteString(m.theme.ActivityLive.Render(strings.TrimRight(FormatActivities(nodes), "\n")))
			b.WriteString("\n")
		}
		if st.Content != "" {
			b.WriteString(m.theme.RoleAssistant.Render("assistant"))
			b.WriteString("\n")
			b.WriteString(st.Content)
			b.WriteString("\n")
		}
		if st.ErrorMessage != "" {
			b.WriteString(m.theme.ActivityErr.Render("error: " + st.ErrorMessage))
			b.WriteString("\n")
		}
	}

	b.WriteString(m.renderPrompts())

	m.chatVP.SetContent(b.String())
}

func (m *MainModel) renderMessage(msg app.StoredMessage) string {
	var role lipgloss.Style
	body := msg.Content
	switch msg.Role {
	case "user":
		role = m.theme.RoleUser
	case "assistant":
		role = m.theme.RoleAssistant
		body = m.markdown.Render(msg.Content)
	default:
		role = m.theme.RoleSystem
	}
	return role.Render(msg.Role) + "\n" + body + "\n"
}

func (m *MainModel) renderPrompts() string {
	var b strings.Builder
	for _, p := range m.dispatcher.PermissionQueue(m.session.ID) {
		body := fmt.Sprintf("Permission: %s", p.ToolName)
		if p.Description != "" {
			body += "\n" + truncateText(p.Description, 120)
		}
		if cls := app.ClassifyTool(p.ToolName, p.Input); cls == app.FlagDangerous {
			body += "\n" + m.theme.DangerBadge.Render("dangerous")
		}
		body += "\n[y] allow  [n] deny"
		b.WriteString(m.theme.PermissionBox.Render(body))
		b.WriteString("\n")
	}
	for _, a := range m.dispatcher.AskQueue(m.session.ID) {
		body := a.Question
		for i, opt := range a.Options {
			body += fmt.Sprintf("\n[%d] %s", i+1, opt)
		}
		b.WriteString(m.theme.PermissionBox.Render(body))
		b.WriteString("\n")
	}
	if sugg := m.dispatcher.PromptSuggestions(m.session.ID); len(sugg) > 0 {
		b.WriteString(m.theme.RoleSystem.Render("suggested: " + strings.Join(sugg, " | ")))
		b.WriteString("\n")
	}
	return b.String()
}

func (m *MainModel) renderHeader() string {
	title := m.session.Title
	if title == "" {
		title = "new session"
	}
	header := m.theme.Header.Render("adesk") + "  " + m.theme.RoleSystem.Render(title)
	if m.running {
		header += "  " + m.theme.Spinner.Render(spinnerFrames[m.spinnerPos]) + " " + m.theme.RoleSystem.Render(m.statusText)
	}
	return header
}

func (m *MainModel) renderFooter() string {
	parts := []string{m.cfg.Model}
	tasks := m.dispatcher.BackgroundTasks(context.Background(), m.session.ID)
	if len(tasks) > 0 {
		parts = append(parts, fmt.Sprintf("%d background task(s)", len(tasks)))
	}
	parts = append(parts, "Enter send", "Ctrl+C cancel/quit")
	return m.theme.Footer.Render(strings.Join(parts, "  ·  "))
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
