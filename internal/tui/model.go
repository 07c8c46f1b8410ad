// Package tui is the interactive chat frontend.
package tui

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/liliang-cn/ragchat/internal/domain"
)

// MessageHandler turns a user message into the reply to display
type MessageHandler interface {
	HandleMessage(ctx context.Context, content string) string
}

// answerMsg carries a finished reply back into the update loop
type answerMsg struct {
	question string
	reply    string
}

// Model is the Bubble Tea model for the chat frontend.
type Model struct {
	handler  MessageHandler
	timeout  time.Duration
	title    string
	status   string
	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	history  []domain.Message
	waiting  bool
	ready    bool
}

// New creates a chat model. status is shown under the title, typically the
// collection report produced at startup.
func New(handler MessageHandler, title, status string, timeout time.Duration) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question and press Enter"
	ti.Focus()
	ti.CharLimit = 0

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))

	return Model{
		handler:  handler,
		timeout:  timeout,
		title:    title,
		status:   status,
		input:    ti,
		viewport: viewport.New(0, 0),
		spinner:  sp,
	}
}

// Init starts the cursor blink
func (m Model) Init() tea.Cmd { return textinput.Blink }

// History returns the messages exchanged so far
func (m Model) History() []domain.Message { return m.history }

// Waiting reports whether a reply is outstanding
func (m Model) Waiting() bool { return m.waiting }

// Update handles key, resize, spinner and reply events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, bh := transcriptStyle.GetFrameSize()
		_, ih := inputStyle.GetFrameSize()
		reserved := 3 + bh + ih + 1 // title, status, footer
		m.viewport.Width = max(20, msg.Width-2)
		m.viewport.Height = max(3, msg.Height-reserved)
		m.refresh()
		return m, nil

	case answerMsg:
		m.waiting = false
		m.history = append(m.history, domain.Message{Role: domain.RoleAssistant, Content: msg.reply})
		m.refresh()
		return m, nil

	case spinner.TickMsg:
		if !m.waiting {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		m.refresh()
		return m, cmd

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD || msg.Type == tea.KeyEsc {
			return m, tea.Quit
		}
		if msg.Type == tea.KeyEnter {
			q := strings.TrimSpace(m.input.Value())
			if q == "" || m.waiting {
				return m, nil
			}
			m.input.Reset()
			m.waiting = true
			m.history = append(m.history, domain.Message{Role: domain.RoleUser, Content: q})
			m.refresh()
			return m, tea.Batch(m.spinner.Tick, m.ask(q))
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// ask runs the handler off the update loop
func (m Model) ask(question string) tea.Cmd {
	handler, timeout := m.handler, m.timeout
	return func() tea.Msg {
		ctx := context.Background()
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		return answerMsg{question: question, reply: handler.HandleMessage(ctx, question)}
	}
}

// View renders the transcript, the input box and the status line.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	title := titleStyle.Render(m.title)
	status := statusStyle.Render(m.status)
	footer := footerStyle.Render("enter: send • esc: quit")
	return title + "\n" + status + "\n" +
		transcriptStyle.Render(m.viewport.View()) + "\n" +
		inputStyle.Render(m.input.View()) + "\n" + footer
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.renderTranscript())
	m.viewport.GotoBottom()
}

func (m Model) renderTranscript() string {
	if len(m.history) == 0 && !m.waiting {
		return helpStyle.Render("No messages yet.")
	}
	width := max(10, m.viewport.Width-2)
	var b strings.Builder
	for _, msg := range m.history {
		if msg.Role == domain.RoleUser {
			b.WriteString(userStyle.Render("You") + "\n")
		} else {
			b.WriteString(assistantStyle.Render("Assistant") + "\n")
		}
		b.WriteString(lipgloss.NewStyle().Width(width).Render(msg.Content))
		b.WriteString("\n\n")
	}
	if m.waiting {
		b.WriteString(m.spinner.View() + " thinking...")
	}
	return strings.TrimRight(b.String(), "\n")
}

var (
	titleStyle      = lipgloss.NewStyle().Bold(true)
	statusStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	footerStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	helpStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Italic(true)
	userStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	assistantStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	transcriptStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	inputStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)
