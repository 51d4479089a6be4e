package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/MrWong99/strategydeck/internal/voice"
)

// controller is the part of [voice.Session] the UI drives.
type controller interface {
	Start(ctx context.Context) error
	End()
	ToggleMute() (bool, error)
}

var _ controller = (*voice.Session)(nil)

// snapshotMsg carries a session state change into the program.
type snapshotMsg voice.Snapshot

// startDoneMsg reports the result of one Start call.
type startDoneMsg struct{ err error }

// muteDoneMsg reports the result of one ToggleMute call.
type muteDoneMsg struct {
	muted bool
	err   error
}

// endDoneMsg is sent after End returns. quit asks the program to exit.
type endDoneMsg struct{ quit bool }

type theme struct {
	header     lipgloss.Style
	title      lipgloss.Style
	panel      lipgloss.Style
	footer     lipgloss.Style
	help       lipgloss.Style
	status     map[voice.Status]lipgloss.Style
	listening  lipgloss.Style
	muted      lipgloss.Style
	user       lipgloss.Style
	agent      lipgloss.Style
	system     lipgloss.Style
	errorLine  lipgloss.Style
	emptyState lipgloss.Style
}

func newTheme() theme {
	green := lipgloss.Color("#05ffa1")
	amber := lipgloss.Color("#ffb86c")
	pink := lipgloss.Color("#ff71ce")
	blue := lipgloss.Color("#01cdfe")
	grey := lipgloss.Color("#9ca3d8")

	return theme{
		header: lipgloss.NewStyle().
			Padding(0, 1).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(blue),
		title: lipgloss.NewStyle().Foreground(blue).Bold(true),
		panel: lipgloss.NewStyle().
			Padding(0, 1).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(grey),
		footer: lipgloss.NewStyle().Padding(0, 1),
		help:   lipgloss.NewStyle().Foreground(grey),
		status: map[voice.Status]lipgloss.Style{
			voice.StatusDisconnected: lipgloss.NewStyle().Foreground(grey).Bold(true),
			voice.StatusConnecting:   lipgloss.NewStyle().Foreground(amber).Bold(true),
			voice.StatusConnected:    lipgloss.NewStyle().Foreground(green).Bold(true),
			voice.StatusError:        lipgloss.NewStyle().Foreground(pink).Bold(true),
		},
		listening:  lipgloss.NewStyle().Foreground(green),
		muted:      lipgloss.NewStyle().Foreground(amber),
		user:       lipgloss.NewStyle().Foreground(blue).Bold(true),
		agent:      lipgloss.NewStyle().Foreground(green).Bold(true),
		system:     lipgloss.NewStyle().Foreground(grey),
		errorLine:  lipgloss.NewStyle().Foreground(pink),
		emptyState: lipgloss.NewStyle().Foreground(grey).Italic(true),
	}
}

// model renders one voice call. All session calls run as commands so that
// state changes published from inside them can reach the program loop.
type model struct {
	ctl            controller
	agentName      string
	connectTimeout time.Duration

	snap     voice.Snapshot
	starting bool
	notice   string

	width, height int
	transcript    viewport.Model
	spinner       spinner.Model
	theme         theme
}

func newModel(ctl controller, agentName string, connectTimeout time.Duration) model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	return model{
		ctl:            ctl,
		agentName:      agentName,
		connectTimeout: connectTimeout,
		transcript:     viewport.New(0, 0),
		spinner:        sp,
		theme:          newTheme(),
	}
}

func (m model) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m model) startCmd() tea.Cmd {
	ctl, timeout := m.ctl, m.connectTimeout
	return func() tea.Msg {
		ctx := context.Background()
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		return startDoneMsg{err: ctl.Start(ctx)}
	}
}

// retryCmd clears a failed call before starting a new one.
func (m model) retryCmd() tea.Cmd {
	ctl := m.ctl
	return tea.Sequence(
		func() tea.Msg { ctl.End(); return endDoneMsg{} },
		m.startCmd(),
	)
}

func (m model) endCmd(quit bool) tea.Cmd {
	ctl := m.ctl
	return func() tea.Msg {
		ctl.End()
		return endDoneMsg{quit: quit}
	}
}

func (m model) muteCmd() tea.Cmd {
	ctl := m.ctl
	return func() tea.Msg {
		muted, err := ctl.ToggleMute()
		return muteDoneMsg{muted: muted, err: err}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case snapshotMsg:
		m.snap = voice.Snapshot(msg)
		m.renderTranscript()
		return m, nil

	case startDoneMsg:
		m.starting = false
		switch {
		case msg.err == nil:
			m.notice = ""
		case errors.Is(msg.err, voice.ErrCallEnded):
			m.notice = "call cancelled"
		default:
			m.notice = msg.err.Error()
		}
		return m, nil

	case muteDoneMsg:
		if msg.err != nil {
			m.notice = msg.err.Error()
		} else {
			m.notice = ""
		}
		return m, nil

	case endDoneMsg:
		if msg.quit {
			return m, tea.Quit
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.resize()
		m.renderTranscript()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, m.endCmd(true)

	case "s":
		if m.starting {
			return m, nil
		}
		switch m.snap.Status {
		case voice.StatusDisconnected:
			m.starting = true
			m.notice = ""
			return m, m.startCmd()
		case voice.StatusError:
			m.starting = true
			m.notice = ""
			return m, m.retryCmd()
		}
		return m, nil

	case "m":
		if m.snap.Status != voice.StatusConnected {
			return m, nil
		}
		return m, m.muteCmd()

	case "q", "esc":
		if m.snap.Status == voice.StatusDisconnected && !m.starting {
			return m, tea.Quit
		}
		return m, m.endCmd(false)

	case "up", "k", "down", "j", "pgup", "pgdown":
		var cmd tea.Cmd
		m.transcript, cmd = m.transcript.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *model) resize() {
	w := max(40, m.width-4)
	m.transcript.Width = max(20, w-4)
	m.transcript.Height = max(5, m.height-10)
}

func (m *model) renderTranscript() {
	m.transcript.SetContent(m.transcriptText())
	m.transcript.GotoBottom()
}

func (m model) transcriptText() string {
	t := m.snap.Transcript
	if t.Len() == 0 {
		return m.theme.emptyState.Render("Press s to start a voice conversation with " + m.agentName + ".")
	}
	width := max(20, m.transcript.Width)
	parts := make([]string, 0, t.Len())
	for _, l := range t.Lines {
		var line string
		switch l.Speaker {
		case voice.SpeakerUser:
			line = m.theme.user.Render("You: ") + l.Text
		case voice.SpeakerAgent:
			line = m.theme.agent.Render(m.agentName+": ") + l.Text
		default:
			style := m.theme.system
			if m.snap.Status == voice.StatusError {
				style = m.theme.errorLine
			}
			line = style.Render(l.Text)
		}
		parts = append(parts, lipgloss.NewStyle().Width(width).Render(line))
	}
	return strings.Join(parts, "\n\n")
}

func (m model) View() string {
	w := max(40, m.width-4)
	header := m.theme.header.Width(w).Render(m.renderHeader())
	body := m.theme.panel.Width(w).Render(m.transcript.View())
	footer := m.theme.footer.Width(w).Render(m.renderFooter())
	return lipgloss.JoinVertical(lipgloss.Left, header, body, footer)
}

func (m model) renderHeader() string {
	status := m.snap.Status
	label := status.String()
	if status == voice.StatusConnecting {
		label = m.spinner.View() + " " + label
	}
	segments := []string{
		m.theme.title.Render(m.agentName),
		m.theme.status[status].Render(label),
	}
	if status == voice.StatusConnected {
		if m.snap.Listening {
			segments = append(segments, m.theme.listening.Render("● listening"))
		}
		if m.snap.Muted {
			segments = append(segments, m.theme.muted.Render("muted"))
		}
	}
	return strings.Join(segments, "  ")
}

func (m model) renderFooter() string {
	var keys string
	switch m.snap.Status {
	case voice.StatusDisconnected:
		keys = "s start call · q quit"
	case voice.StatusConnecting:
		keys = "q cancel"
	case voice.StatusConnected:
		mute := "m mute"
		if m.snap.Muted {
			mute = "m unmute"
		}
		keys = mute + " · q end call"
	case voice.StatusError:
		keys = "s retry · q dismiss"
	}
	keys += " · ctrl+c exit"

	out := m.theme.help.Render(keys)
	if m.notice != "" {
		out = m.theme.errorLine.Render(m.notice) + "\n" + out
	}
	return out
}

// statusLine renders a plain one-line summary, used when the program exits.
func (m model) statusLine() string {
	return fmt.Sprintf("%s: %s", m.agentName, m.snap.Status)
}
