package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("94")).
			Padding(0, 1)

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			PaddingLeft(1)

	serverStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("178"))
	echoStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	noticeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Italic(true)
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
)

// maxLines bounds the scrollback kept by the message pane.
const maxLines = 500

// gameClient is the part of net.Client the interactive view drives.
type gameClient interface {
	AsyncConnect(ctx context.Context, done func(sessionID int64, err error))
	AsyncListCharacters(ctx context.Context, done func(characters []string, err error))
	AsyncBroadcast(ctx context.Context, command string, done func(echo string, err error))
	AsyncCreateCharacter(ctx context.Context, firstName, lastName string, done func(err error))
	AsyncSelectCharacter(ctx context.Context, character string, done func(err error))
	AsyncDisconnect(ctx context.Context, done func(err error))
}

type (
	serverTextMsg   string
	connectedMsg    int64
	rosterMsg       []string
	echoMsg         string
	noticeMsg       string
	disconnectedMsg struct{}
	failedMsg       struct {
		action string
		err    error
	}
)

type model struct {
	ctx    context.Context
	client gameClient
	// notify delivers results of async actions back into the program
	notify func(tea.Msg)

	server  string
	session int64
	// pending names the request awaiting its reply; replies are matched in
	// order, so only one may be outstanding
	pending string
	input   textinput.Model
	lines   []string
	width   int
	height  int
}

func newModel(ctx context.Context, client gameClient, notify func(tea.Msg), server string) model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "/connect, /list, /create <first> <last>, /select <name>, /disconnect, /quit"
	ti.CharLimit = 400
	ti.Width = 60
	ti.Focus()

	return model{
		ctx:    ctx,
		client: client,
		notify: notify,
		server: server,
		input:  ti,
		lines:  []string{noticeStyle.Render("Type /connect to begin.")},
	}
}

func (m model) Init() tea.Cmd {
	return textinput.Blink
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if w := msg.Width - len(m.input.Prompt) - 1; w > 0 {
			m.input.Width = w
		}
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			line := strings.TrimSpace(m.input.Value())
			m.input.Reset()
			if line == "" {
				return m, nil
			}
			return m.execute(line)
		}

	case serverTextMsg:
		return m.appendLine(serverStyle.Render(string(msg))), nil

	case connectedMsg:
		m.pending = ""
		m.session = int64(msg)
		return m.appendLine(noticeStyle.Render(fmt.Sprintf("Connected, session %d.", m.session))), nil

	case rosterMsg:
		m.pending = ""
		if len(msg) == 0 {
			return m.appendLine(noticeStyle.Render("No characters yet. Use /create <first> <last>.")), nil
		}
		return m.appendLine(noticeStyle.Render("Characters: " + strings.Join(msg, ", "))), nil

	case echoMsg:
		m.pending = ""
		return m.appendLine(echoStyle.Render(string(msg))), nil

	case noticeMsg:
		return m.appendLine(noticeStyle.Render(string(msg))), nil

	case disconnectedMsg:
		m.session = 0
		return m.appendLine(noticeStyle.Render("Disconnected.")), nil

	case failedMsg:
		if msg.action == m.pending {
			m.pending = ""
		}
		return m.appendLine(errorStyle.Render(fmt.Sprintf("%s failed: %v", msg.action, msg.err))), nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// execute runs one entered line. Network actions are started asynchronously
// and report back through notify.
func (m model) execute(line string) (tea.Model, tea.Cmd) {
	fields := strings.Fields(line)
	notify := m.notify

	if awaitsReply(fields[0]) && m.pending != "" {
		return m.appendLine(noticeStyle.Render(fmt.Sprintf("Still waiting for the %s reply, try again shortly.", m.pending))), nil
	}

	switch fields[0] {
	case "/quit":
		return m, tea.Quit

	case "/connect":
		m.pending = "connect"
		m.client.AsyncConnect(m.ctx, func(id int64, err error) {
			if err != nil {
				notify(failedMsg{"connect", err})
				return
			}
			notify(connectedMsg(id))
		})

	case "/list":
		m.pending = "list"
		m.client.AsyncListCharacters(m.ctx, func(names []string, err error) {
			if err != nil {
				notify(failedMsg{"list", err})
				return
			}
			notify(rosterMsg(names))
		})

	case "/create":
		if len(fields) != 3 {
			return m.appendLine(errorStyle.Render("usage: /create <first> <last>")), nil
		}
		first, last := fields[1], fields[2]
		m.client.AsyncCreateCharacter(m.ctx, first, last, func(err error) {
			if err != nil {
				notify(failedMsg{"create", err})
				return
			}
			notify(noticeMsg(fmt.Sprintf("Asked to create %s %s; /list to check.", first, last)))
		})

	case "/select":
		if len(fields) < 2 {
			return m.appendLine(errorStyle.Render("usage: /select <name>")), nil
		}
		name := strings.Join(fields[1:], " ")
		m.client.AsyncSelectCharacter(m.ctx, name, func(err error) {
			if err != nil {
				notify(failedMsg{"select", err})
				return
			}
			notify(noticeMsg("Playing as " + name + "."))
		})

	case "/disconnect":
		m.client.AsyncDisconnect(m.ctx, func(err error) {
			if err != nil {
				notify(failedMsg{"disconnect", err})
			}
			notify(disconnectedMsg{})
		})

	default:
		m.pending = "send"
		m.client.AsyncBroadcast(m.ctx, line, func(echo string, err error) {
			if err != nil {
				notify(failedMsg{"send", err})
				return
			}
			notify(echoMsg(echo))
		})
	}
	return m, nil
}

// awaitsReply reports whether the command starts a request that waits for a reply.
func awaitsReply(command string) bool {
	switch command {
	case "/quit", "/create", "/select", "/disconnect":
		return false
	}
	return true
}

func (m model) appendLine(line string) model {
	m.lines = append(m.lines, line)
	if len(m.lines) > maxLines {
		m.lines = append([]string(nil), m.lines[len(m.lines)-maxLines:]...)
	}
	return m
}

func (m model) View() string {
	status := "not connected"
	if m.session != 0 {
		status = fmt.Sprintf("session %d", m.session)
	}
	header := lipgloss.JoinHorizontal(lipgloss.Top,
		titleStyle.Render("Oldentide"),
		statusStyle.Render(m.server+" | "+status),
	)

	lines := m.lines
	if room := m.height - 3; room > 0 && len(lines) > room {
		lines = lines[len(lines)-room:]
	}
	return lipgloss.JoinVertical(lipgloss.Left, header, strings.Join(lines, "\n"), m.input.View())
}
