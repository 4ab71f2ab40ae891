package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"atf/internal/config"
	"atf/internal/parser"
	"atf/internal/shell"
	"atf/internal/task"
)

type mode int

const (
	modeInput mode = iota
	modeConfirmLoad
	modeDetail
)

var (
	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	cursorStyle    = lipgloss.NewStyle().Bold(true)
	doneStyle      = lipgloss.NewStyle().Faint(true).Strikethrough(true)
	overdueStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	helpStyle      = lipgloss.NewStyle().Faint(true)
	detailBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

type Model struct {
	ctx     context.Context
	session *shell.Session
	cfg     config.Config
	tasks   []task.Task
	cursor  int
	mode    mode
	input   textinput.Model
	output  []string
	failed  bool
	pending string
	detail  []string
}

func New(ctx context.Context, session *shell.Session, cfg config.Config) Model {
	ti := textinput.New()
	ti.Placeholder = "add, edit, delete, done, undone, undo, redo, help"
	ti.Prompt = "> "
	ti.CharLimit = 512
	ti.Width = 60
	ti.Focus()

	m := Model{
		ctx:     ctx,
		session: session,
		cfg:     cfg,
		input:   ti,
		mode:    modeInput,
		output:  []string{"Type help for the command list."},
	}
	m.reload()
	return m
}

func Run(ctx context.Context, session *shell.Session, cfg config.Config) error {
	_, err := tea.NewProgram(New(ctx, session, cfg)).Run()
	return err
}

func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch m.mode {
		case modeConfirmLoad:
			return m.updateLoadConfirm(msg.String())
		case modeDetail:
			return m.updateDetailMode(msg.String())
		}
		return m.updateInputMode(msg)
	case tea.WindowSizeMsg:
		m.input.Width = msg.Width - 10
	}
	return m, nil
}

func (m Model) updateInputMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case m.cfg.Keys.Quit:
		return m, tea.Quit
	case m.cfg.Keys.Undo:
		return m.run("undo")
	case m.cfg.Keys.Redo:
		return m.run("redo")
	case m.cfg.Keys.Up:
		m.cursor = clampCursor(m.cursor-1, len(m.tasks))
	case m.cfg.Keys.Down:
		m.cursor = clampCursor(m.cursor+1, len(m.tasks))
	case m.cfg.Keys.Cancel:
		m.input.SetValue("")
	case m.cfg.Keys.Submit:
		line := strings.TrimSpace(m.input.Value())
		if line == "" {
			return m.showDetail()
		}
		m.input.SetValue("")
		if req, err := m.session.Parser.Parse(line); err == nil && req.Verb == parser.VerbLoad && m.session.Engine.CanUndo() {
			m.mode = modeConfirmLoad
			m.pending = line
			m.setOutput(false, "Reloading drops the undo history. Continue? y/n")
			return m, nil
		}
		return m.run(line)
	default:
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) updateLoadConfirm(key string) (tea.Model, tea.Cmd) {
	switch key {
	case "y", "Y":
		line := m.pending
		m.pending = ""
		m.mode = modeInput
		return m.run(line)
	case "n", "N", m.cfg.Keys.Cancel:
		m.pending = ""
		m.mode = modeInput
		m.setOutput(false, "Load cancelled.")
	}
	return m, nil
}

func (m Model) updateDetailMode(key string) (tea.Model, tea.Cmd) {
	switch key {
	case m.cfg.Keys.Quit:
		return m, tea.Quit
	case m.cfg.Keys.Cancel, m.cfg.Keys.Submit:
		m.mode = modeInput
		m.detail = nil
	}
	return m, nil
}

func (m Model) showDetail() (tea.Model, tea.Cmd) {
	if len(m.tasks) == 0 {
		m.setOutput(false, "No tasks.")
		return m, nil
	}
	m.detail = shell.Detail(m.tasks[m.cursor])
	m.mode = modeDetail
	return m, nil
}

func (m Model) run(line string) (tea.Model, tea.Cmd) {
	reply := m.session.Handle(m.ctx, line)
	if reply.Quit {
		return m, tea.Quit
	}
	if reply.Err != nil {
		m.setOutput(true, append(reply.Messages, shell.ErrorLine(reply.Err))...)
	} else {
		m.setOutput(false, reply.Messages...)
	}
	m.reload()
	return m, nil
}

func (m *Model) setOutput(failed bool, lines ...string) {
	m.failed = failed
	m.output = lines
}

func (m *Model) reload() {
	m.tasks = m.session.Engine.Shown()
	m.cursor = clampCursor(m.cursor, len(m.tasks))
}

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(fmt.Sprintf("atf (%s)", m.session.Filter)))
	b.WriteString("\n\n")

	if m.mode == modeDetail {
		b.WriteString(detailBoxStyle.Render(strings.Join(m.detail, "\n")))
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render(fmt.Sprintf("%s/%s back", m.cfg.Keys.Submit, m.cfg.Keys.Cancel)))
		return b.String()
	}

	b.WriteString(renderTaskList(m.tasks, m.cursor))
	b.WriteString("\n")

	for _, line := range m.output {
		if m.failed {
			line = errorStyle.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	b.WriteString("\n")
	if m.mode == modeInput {
		b.WriteString(m.input.View())
		b.WriteString("\n")
	}
	b.WriteString(helpStyle.Render(renderHelp(m.cfg.Keys, m.session.Engine.CanUndo(), m.session.Engine.CanRedo())))
	return b.String()
}

func renderTaskList(tasks []task.Task, cursor int) string {
	if len(tasks) == 0 {
		return "No tasks yet. Try: add <title> by <date>\n"
	}
	var b strings.Builder
	for i, t := range tasks {
		mark := "  "
		if i == cursor {
			mark = cursorStyle.Render("> ")
		}
		line := shell.Line(i+1, t)
		switch t.Status {
		case task.StatusCompleted:
			line = doneStyle.Render(line)
		case task.StatusOverdue:
			line = overdueStyle.Render(line)
		}
		b.WriteString(mark + line + "\n")
	}
	return b.String()
}

func renderHelp(k config.Keymap, canUndo, canRedo bool) string {
	parts := []string{fmt.Sprintf("%s/%s move", k.Up, k.Down), fmt.Sprintf("%s run or detail", k.Submit)}
	if canUndo {
		parts = append(parts, k.Undo+" undo")
	}
	if canRedo {
		parts = append(parts, k.Redo+" redo")
	}
	parts = append(parts, k.Quit+" quit")
	return strings.Join(parts, " • ")
}

func clampCursor(cur, n int) int {
	if n <= 0 || cur < 0 {
		return 0
	}
	if cur >= n {
		return n - 1
	}
	return cur
}
