package tui

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"

	"github.com/wwwzy/SQLChatAgent/internal/agent"
	"github.com/wwwzy/SQLChatAgent/internal/ui"
)

type ChatUI struct{}

func (u *ChatUI) Run(ctx context.Context, backend ui.ChatBackend, opts ui.ChatOptions) error {
	m := newChatModel(ctx, backend, opts)
	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

type entryKind int

const (
	entryUser entryKind = iota
	entryAssistant
	entrySQL
	entryError
)

// entry 是界面上的一条气泡，与 Agent 内部历史分开维护
type entry struct {
	kind    entryKind
	content string
}

type backendResultMsg struct {
	outcome agent.Outcome
	queries []string
	err     error
}

type streamTickMsg struct{}
type cancelMsg struct{}

var stdioMu sync.Mutex

type chatModel struct {
	ctx     context.Context
	backend ui.ChatBackend
	opts    ui.ChatOptions

	entries []entry

	width  int
	height int

	viewport   viewport.Model
	input      textinput.Model
	spinner    spinner.Model
	thinking   bool
	followTail bool

	streaming  bool
	streamIdx  int
	streamPos  int
	streamFull string

	renderer *glamour.TermRenderer
}

func newChatModel(ctx context.Context, backend ui.ChatBackend, opts ui.ChatOptions) chatModel {
	s := spinner.New()
	s.Spinner = spinner.MiniDot

	ti := textinput.New()
	ti.Placeholder = "用自然语言提问，回车发送"
	ti.Prompt = ""
	ti.Focus()

	vp := viewport.New(0, 0)
	vp.SetContent("")

	return chatModel{
		ctx:        ctx,
		backend:    backend,
		opts:       opts,
		viewport:   vp,
		input:      ti,
		spinner:    s,
		followTail: true,
		streamIdx:  -1,
	}
}

func (m chatModel) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick, waitCancel(m.ctx))
}

func waitCancel(ctx context.Context) tea.Cmd {
	return func() tea.Msg {
		<-ctx.Done()
		return cancelMsg{}
	}
}

func (m chatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case cancelMsg:
		return m, tea.Quit

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		inputHeight := 3
		footerHeight := 1
		chatHeight := max(1, m.height-inputHeight-footerHeight)

		m.viewport.Width = m.width
		m.viewport.Height = chatHeight

		m.input.Width = max(10, m.width-4)

		m.resetMarkdownRenderer()
		m.updateViewportContent(m.renderChat())
		return m, nil

	case spinner.TickMsg:
		if m.thinking {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
		return m, nil

	case backendResultMsg:
		m.thinking = false
		m.followTail = true
		if msg.err != nil {
			m.entries = append(m.entries, entry{kind: entryError, content: fmt.Sprintf("发生错误：%v", msg.err)})
			m.updateViewportContent(m.renderChat())
			return m, nil
		}

		if m.opts.ShowSQL {
			for _, q := range msg.queries {
				m.entries = append(m.entries, entry{kind: entrySQL, content: q})
			}
		}
		m.entries = append(m.entries, entry{kind: entryAssistant, content: ui.FormatOutcome(msg.outcome)})
		m.startStreaming(len(m.entries) - 1)
		m.updateViewportContent(m.renderChat())
		if m.streaming {
			return m, streamTick()
		}
		return m, nil

	case streamTickMsg:
		if !m.streaming {
			return m, nil
		}
		m.streamPos = min(len(m.streamFull), m.streamPos+32)
		if m.streamPos >= len(m.streamFull) {
			m.streaming = false
		}
		m.updateViewportContent(m.renderChat())
		if m.streaming {
			return m, streamTick()
		}
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "pgup", "pageup":
			m.viewport.PageUp()
			m.followTail = false
			return m, nil
		case "pgdown", "pagedown":
			m.viewport.PageDown()
			if m.viewport.AtBottom() {
				m.followTail = true
			}
			return m, nil
		}

		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)

		if msg.String() == "enter" {
			text := strings.TrimSpace(m.input.Value())
			if text == "" || m.thinking {
				return m, cmd
			}
			switch strings.ToLower(text) {
			case "exit", "quit":
				return m, tea.Quit
			}

			m.entries = append(m.entries, entry{kind: entryUser, content: text})
			m.followTail = true
			m.updateViewportContent(m.renderChat())

			m.input.SetValue("")
			m.thinking = true
			return m, tea.Batch(cmd, runBackend(m.ctx, m.backend, text))
		}

		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m chatModel) View() string {
	header := lipgloss.NewStyle().Bold(true).Render("SQLChat")
	return lipgloss.JoinVertical(lipgloss.Left, header, m.viewport.View(), m.inputView(), m.footerView())
}

func (m chatModel) footerView() string {
	left := "Enter 发送 | PgUp/PgDn 滚动 | Ctrl+C 退出"
	right := ""
	if m.thinking {
		right = m.spinner.View() + " Querying..."
	}
	style := lipgloss.NewStyle().Width(m.width).Padding(0, 1)
	return style.Render(lipgloss.JoinHorizontal(lipgloss.Left, left, lipgloss.NewStyle().Width(max(0, m.width-lipgloss.Width(left)-lipgloss.Width(right)-2)).Render(""), right))
}

func (m chatModel) inputView() string {
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		Padding(0, 1).
		Width(max(1, m.input.Width+2)).
		Render(m.input.View())
}

func (m *chatModel) updateViewportContent(content string) {
	oldYOffset := m.viewport.YOffset
	m.viewport.SetContent(content)
	if m.followTail {
		m.viewport.GotoBottom()
		return
	}
	m.viewport.SetYOffset(oldYOffset)
}

// runBackend 在后台执行一次 Run，并收集这次新增的 SQL
func runBackend(ctx context.Context, backend ui.ChatBackend, input string) tea.Cmd {
	return func() tea.Msg {
		runCtx := agent.WithTraceID(ctx, uuid.New().String())
		prev := len(backend.History())
		out, err := runBackendDiscardingStdIO(runCtx, backend, input)
		if err != nil {
			return backendResultMsg{err: err}
		}
		return backendResultMsg{outcome: out, queries: ui.QueriesSince(backend.History(), prev)}
	}
}

// runBackendDiscardingStdIO 避免后端直接写终端破坏全屏界面
func runBackendDiscardingStdIO(ctx context.Context, backend ui.ChatBackend, input string) (agent.Outcome, error) {
	devNull, err := os.OpenFile(os.DevNull, os.O_WRONLY, 0)
	if err != nil {
		return backend.Run(ctx, input)
	}
	defer devNull.Close()

	stdioMu.Lock()
	oldStdout := os.Stdout
	oldStderr := os.Stderr
	os.Stdout = devNull
	os.Stderr = devNull
	stdioMu.Unlock()

	out, runErr := backend.Run(ctx, input)

	stdioMu.Lock()
	os.Stdout = oldStdout
	os.Stderr = oldStderr
	stdioMu.Unlock()

	return out, runErr
}

func streamTick() tea.Cmd {
	return tea.Tick(45*time.Millisecond, func(time.Time) tea.Msg { return streamTickMsg{} })
}

func (m *chatModel) startStreaming(idx int) {
	m.streaming = false
	m.streamIdx = -1
	m.streamFull = ""
	m.streamPos = 0
	if idx < 0 || idx >= len(m.entries) || strings.TrimSpace(m.entries[idx].content) == "" {
		return
	}
	m.streaming = true
	m.streamIdx = idx
	m.streamFull = m.entries[idx].content
	m.streamPos = min(len(m.streamFull), 32)
}

func (m *chatModel) resetMarkdownRenderer() {
	if m.width <= 0 {
		return
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(m.bubbleMaxContentWidth()),
	)
	if err == nil {
		m.renderer = r
	}
}

func (m chatModel) renderChat() string {
	if m.width <= 0 {
		m.width = 80
	}

	var b strings.Builder
	for i, e := range m.entries {
		content := e.content
		if m.streaming && m.streamIdx == i {
			content = previewOf(m.streamFull, m.streamPos)
		}
		content = strings.TrimRight(content, "\n")

		var line string
		switch e.kind {
		case entryUser:
			line = m.renderUser(content)
		case entryAssistant:
			line = m.renderAssistant(content)
		case entrySQL:
			line = m.renderLabeled("SQL", content, "240")
		case entryError:
			line = m.renderLabeled("ERROR", content, "160")
		}
		if line == "" {
			continue
		}
		b.WriteString(line)
		b.WriteString("\n\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// previewOf 截取前 pos 个字节，并退回到完整的 UTF-8 字符边界
func previewOf(full string, pos int) string {
	if pos >= len(full) {
		return full
	}
	for pos > 0 && !utf8.RuneStart(full[pos]) {
		pos--
	}
	preview := full[:pos]
	if strings.TrimSpace(preview) == "" {
		return "…"
	}
	return preview
}

func (m chatModel) bubbleMaxContentWidth() int {
	if m.width <= 0 {
		return 72
	}
	return max(20, m.width-8)
}

func (m chatModel) desiredContentWidth(s string) int {
	return min(m.bubbleMaxContentWidth(), max(10, maxLineWidth(s)))
}

func (m chatModel) wrapToWidth(s string, width int) string {
	if width <= 0 {
		return s
	}
	return lipgloss.NewStyle().Width(width).Render(s)
}

func maxLineWidth(s string) int {
	s = strings.TrimRight(s, "\n")
	if strings.TrimSpace(s) == "" {
		return 0
	}
	maxW := 0
	for _, line := range strings.Split(s, "\n") {
		maxW = max(maxW, lipgloss.Width(strings.TrimRight(line, " ")))
	}
	return maxW
}

func (m chatModel) renderAssistant(content string) string {
	md := content
	if m.renderer != nil && strings.TrimSpace(md) != "" {
		if rendered, err := m.renderer.Render(md); err == nil {
			md = strings.TrimRight(rendered, "\n")
		}
	}
	md = m.wrapToWidth(md, m.desiredContentWidth(md))
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("63")).
		Padding(0, 1).
		MaxWidth(max(20, m.width-4)).
		Render(md)
}

func (m chatModel) renderUser(content string) string {
	content = m.wrapToWidth(content, m.desiredContentWidth(content))
	bubble := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("205")).
		Padding(0, 1).
		MaxWidth(max(20, m.width-4)).
		Render(content)
	return lipgloss.NewStyle().Width(m.width).Align(lipgloss.Right).Render(bubble)
}

func (m chatModel) renderLabeled(label, content, color string) string {
	body := content
	if strings.TrimSpace(body) == "" {
		body = "(无输出)"
	}
	body = m.wrapToWidth(body, m.desiredContentWidth(body))
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(color)).
		Foreground(lipgloss.Color("245")).
		Padding(0, 1).
		MaxWidth(max(20, m.width-4)).
		Render(label + "\n" + body)
}
