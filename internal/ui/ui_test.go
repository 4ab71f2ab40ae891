package ui

import (
	"context"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"atf/internal/command"
	"atf/internal/config"
	"atf/internal/parser"
	"atf/internal/shell"
	"atf/internal/task"
)

type memoryRepo struct {
	saved []task.Task
}

func (m *memoryRepo) Save(_ context.Context, tasks []task.Task) error {
	m.saved = tasks
	return nil
}

func (m *memoryRepo) Load(context.Context) ([]task.Task, error) {
	if m.saved == nil {
		return nil, task.ErrNotFound
	}
	return m.saved, nil
}

func testKeys() config.Keymap {
	return config.Keymap{
		Quit: "ctrl+c", Undo: "ctrl+z", Redo: "ctrl+y",
		Up: "up", Down: "down", Submit: "enter", Cancel: "esc",
	}
}

func newModel(t *testing.T) Model {
	t.Helper()
	now := time.Date(2016, time.March, 15, 12, 0, 0, 0, time.UTC)
	e := command.NewEngine(&memoryRepo{}, command.Options{
		Now:      func() time.Time { return now },
		Location: time.UTC,
	})
	_, err := e.Load(context.Background())
	require.NoError(t, err)
	s := shell.NewSession(e, parser.New(time.UTC), shell.FilterAll, nil)
	return New(context.Background(), s, config.Config{Keys: testKeys()})
}

func send(t *testing.T, m Model, msgs ...tea.KeyMsg) Model {
	t.Helper()
	for _, msg := range msgs {
		next, _ := m.Update(msg)
		var ok bool
		m, ok = next.(Model)
		require.True(t, ok)
	}
	return m
}

func typeLine(t *testing.T, m Model, line string) Model {
	t.Helper()
	return send(t, m,
		tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(line)},
		tea.KeyMsg{Type: tea.KeyEnter},
	)
}

func TestModel_SubmitRunsCommand(t *testing.T) {
	m := typeLine(t, newModel(t), "add buy milk")

	require.Len(t, m.tasks, 1)
	assert.Equal(t, "buy milk", m.tasks[0].Title)
	assert.Empty(t, m.input.Value())
	assert.False(t, m.failed)
	assert.Contains(t, m.View(), "buy milk")
}

func TestModel_UndoRedoKeys(t *testing.T) {
	m := typeLine(t, newModel(t), "add buy milk")

	m = send(t, m, tea.KeyMsg{Type: tea.KeyCtrlZ})
	assert.Empty(t, m.tasks)

	m = send(t, m, tea.KeyMsg{Type: tea.KeyCtrlY})
	assert.Len(t, m.tasks, 1)

	m = send(t, m, tea.KeyMsg{Type: tea.KeyCtrlY})
	assert.Equal(t, []string{command.MessageNothingToRedo}, m.output)
}

func TestModel_ErrorsAreShown(t *testing.T) {
	m := typeLine(t, newModel(t), "delete 3")

	assert.True(t, m.failed)
	require.NotEmpty(t, m.output)
	assert.Contains(t, m.output[len(m.output)-1], "Invalid: ")
}

func TestModel_CursorAndDetail(t *testing.T) {
	m := newModel(t)
	m = typeLine(t, m, "add first")
	m = typeLine(t, m, "add second")

	m = send(t, m, tea.KeyMsg{Type: tea.KeyDown}, tea.KeyMsg{Type: tea.KeyDown})
	assert.Equal(t, 1, m.cursor)

	m = send(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, modeDetail, m.mode)
	assert.Contains(t, m.detail[0], "Title")

	m = send(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, modeInput, m.mode)
}

func TestModel_LoadAsksBeforeDroppingHistory(t *testing.T) {
	m := typeLine(t, newModel(t), "add buy milk")

	m = typeLine(t, m, "load")
	assert.Equal(t, modeConfirmLoad, m.mode)

	m = send(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("n")})
	assert.Equal(t, modeInput, m.mode)
	assert.True(t, m.session.Engine.CanUndo())

	m = typeLine(t, m, "load")
	m = send(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("y")})
	assert.False(t, m.session.Engine.CanUndo())
	assert.Len(t, m.tasks, 1)
}

func TestModel_QuitKey(t *testing.T) {
	_, cmd := newModel(t).Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestClampCursor(t *testing.T) {
	assert.Equal(t, 0, clampCursor(3, 0))
	assert.Equal(t, 0, clampCursor(-1, 4))
	assert.Equal(t, 3, clampCursor(9, 4))
	assert.Equal(t, 2, clampCursor(2, 4))
}
