// Package tui is the terminal chat front end.
package tui

import (
	"context"
	"fmt"
	"strings"

	"charm.land/bubbles/v2/spinner"
	"charm.land/bubbles/v2/viewport"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/Yahya305/Daaktar-Saab/internal/client"
	"github.com/Yahya305/Daaktar-Saab/internal/ui/components"
	"github.com/Yahya305/Daaktar-Saab/internal/ui/layout"
	"github.com/Yahya305/Daaktar-Saab/internal/ui/theme"
)

// Consultation runs chat turns. *client.Session implements it.
type Consultation interface {
	Send(ctx context.Context, message string, onText func(string)) (string, error)
	Conversation() client.Conversation
	Reset()
}

type speaker int

const (
	speakerDoctor speaker = iota
	speakerPatient
	speakerNotice
)

type entry struct {
	speaker speaker
	text    string
	style   *lipgloss.Style
}

// Model is the root Bubble Tea model.
type Model struct {
	ctx      context.Context
	consult  Consultation
	maxDepth int

	transcript []entry
	viewport   viewport.Model
	input      components.ChatInput
	spinner    spinner.Model

	stream    <-chan tea.Msg
	streaming bool

	width  int
	height int
}

// New creates a Model. maxDepth sizes the question meter.
func New(ctx context.Context, consult Consultation, maxDepth int) Model {
	return Model{
		ctx:      ctx,
		consult:  consult,
		maxDepth: maxDepth,
		viewport: viewport.New(),
		input:    components.NewChatInput("Describe how you feel...", 500),
		spinner:  spinner.New(spinner.WithSpinner(spinner.MiniDot), spinner.WithStyle(lipgloss.NewStyle().Foreground(theme.Secondary))),
	}
}

// Init opens the consultation with an empty turn so the server greets the
// patient.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.input.Init(), func() tea.Msg { return openMsg{} })
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.resize()
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "enter":
			if m.streaming {
				return m, nil
			}
			return m.send(m.input.Take())
		case "ctrl+n":
			if m.streaming {
				return m, nil
			}
			m.consult.Reset()
			m.transcript = append(m.transcript, entry{speaker: speakerNotice, text: "New consultation"})
			return m.send("")
		case "pgup", "pgdown", "up", "down":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}

	case openMsg:
		return m.send("")

	case replyTextMsg:
		if n := len(m.transcript); n > 0 && m.transcript[n-1].speaker == speakerDoctor {
			m.transcript[n-1].text += string(msg)
		}
		m.refresh()
		return m, m.next()

	case turnDoneMsg:
		m.finishTurn(msg.Err)
		return m, nil

	case spinner.TickMsg:
		if !m.streaming {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// send starts a turn. The reply is streamed through a channel read one
// message per command.
func (m Model) send(message string) (Model, tea.Cmd) {
	if message != "" {
		m.transcript = append(m.transcript, entry{speaker: speakerPatient, text: message})
	}
	m.transcript = append(m.transcript, entry{speaker: speakerDoctor})
	m.streaming = true
	m.input.Lock()

	ch := make(chan tea.Msg, 16)
	m.stream = ch
	ctx, consult := m.ctx, m.consult
	go func() {
		defer close(ch)
		deliver := func(msg tea.Msg) {
			select {
			case ch <- msg:
			case <-ctx.Done():
			}
		}
		_, err := consult.Send(ctx, message, func(s string) { deliver(replyTextMsg(s)) })
		deliver(turnDoneMsg{Err: err})
	}()

	m.refresh()
	return m, tea.Batch(m.next(), m.spinner.Tick)
}

func (m Model) next() tea.Cmd {
	ch := m.stream
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		msg, ok := <-ch
		if !ok {
			return nil
		}
		return msg
	}
}

// RetryNotice follows a turn the server could not complete. The
// conversation keeps its last good state, so the next message retries.
const RetryNotice = "Something went wrong on our side. Please send your answer again."

func (m *Model) finishTurn(err error) {
	m.streaming = false
	m.stream = nil
	m.input.Unlock()

	if err != nil {
		failure := theme.Failure
		m.transcript = append(m.transcript, entry{speaker: speakerNotice, text: "Connection problem: " + err.Error(), style: &failure})
		m.refresh()
		return
	}

	conv := m.consult.Conversation()
	switch {
	case conv.Failed:
		retry := theme.Warning
		m.transcript = append(m.transcript, entry{speaker: speakerNotice, text: RetryNotice, style: &retry})
	case conv.Done:
		closing := theme.Warning
		if d := conv.Diagnosis; d != nil {
			card := theme.Card.Inherit(theme.Diagnosis)
			m.transcript = append(m.transcript, entry{
				speaker: speakerNotice,
				text:    fmt.Sprintf("Likely condition: %s (confidence %.0f%%)", d.Disease, d.Confidence*100),
				style:   &card,
			})
			closing = theme.Hint
		}
		m.transcript = append(m.transcript, entry{speaker: speakerNotice, text: "Consultation finished. Type to start a new one.", style: &closing})
	}
	m.refresh()
}

func (m *Model) resize() {
	header, footer := m.chrome()
	h := layout.ContentHeight(header, footer, m.height)
	m.viewport.SetWidth(m.width)
	m.viewport.SetHeight(max(h-3, 1)) // meter, blank line, input
	m.input.SetWidth(m.width - 2)
	m.refresh()
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.renderTranscript(max(m.width-2, 10)))
	m.viewport.GotoBottom()
}

func (m Model) renderTranscript(width int) string {
	wrap := lipgloss.NewStyle().Width(width)
	var b strings.Builder
	for i, e := range m.transcript {
		if i > 0 {
			b.WriteString("\n")
		}
		switch e.speaker {
		case speakerPatient:
			b.WriteString(wrap.Render(theme.Patient.Render("You: ") + theme.Body.Render(e.text)))
		case speakerDoctor:
			text := e.text
			if text == "" && m.streaming && i == len(m.transcript)-1 {
				text = m.spinner.View()
			}
			b.WriteString(wrap.Render(theme.Doctor.Render("Doctor: ") + theme.Body.Render(text)))
		default:
			style := theme.Hint
			if e.style != nil {
				style = *e.style
			}
			b.WriteString(wrap.Render(style.Render(e.text)))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) status() string {
	conv := m.consult.Conversation()
	switch {
	case conv.Done && conv.Diagnosis != nil:
		return "Diagnosed"
	case conv.Done:
		return "Finished"
	case conv.State != nil:
		return fmt.Sprintf("Q %d/%d", conv.State.Depth, m.maxDepth)
	default:
		return "New"
	}
}

func (m Model) chrome() (header, footer string) {
	header = layout.RenderHeader("Consultation", m.status(), m.width)
	footer = layout.RenderFooter([]layout.KeyHint{
		{Key: "Enter", Description: "Send"},
		{Key: "PgUp/PgDn", Description: "Scroll"},
		{Key: "Ctrl+N", Description: "New"},
		{Key: "Ctrl+C", Description: "Quit"},
	}, m.width)
	return header, footer
}

func (m Model) View() tea.View {
	v := tea.NewView("")
	v.AltScreen = true

	if m.width == 0 || m.height == 0 {
		return v
	}
	if layout.IsTooSmall(m.width, m.height) {
		v.SetContent(layout.RenderMinSizeMessage(m.width, m.height))
		return v
	}

	header, footer := m.chrome()

	depth := 0
	if st := m.consult.Conversation().State; st != nil {
		depth = st.Depth
	}
	meter := components.DepthMeter{Depth: depth, MaxDepth: m.maxDepth, Width: m.width - 2}

	content := m.viewport.View() + "\n" + " " + meter.View() + "\n" + " " + m.input.View()
	v.SetContent(layout.RenderFrame(header, content, footer, m.width, m.height))
	return v
}

// Run starts the Bubble Tea program.
func Run(ctx context.Context, consult Consultation, maxDepth int) error {
	p := tea.NewProgram(New(ctx, consult, maxDepth), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running chat: %w", err)
	}
	return nil
}
