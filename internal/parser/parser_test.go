package parser

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"atf/internal/command"
	"atf/internal/edit"
	"atf/internal/task"
)

func at(d, hh, mm int) time.Time {
	return time.Date(2016, time.April, d, hh, mm, 0, 0, time.UTC)
}

func parse(t *testing.T, line string) command.Command {
	t.Helper()
	req, err := New(time.UTC).Parse(line)
	require.NoError(t, err)
	require.Equal(t, VerbCommand, req.Verb)
	return req.Command
}

func TestParse_AddDeadline(t *testing.T) {
	c := parse(t, `add "pay rent" by 2016-04-05 17:00`)

	add, ok := c.(command.Add)
	require.True(t, ok)
	assert.Equal(t, "pay rent", add.Task.Title)
	assert.True(t, add.Task.Timing.Equal(task.Deadline(at(5, 17, 0))))
	assert.Nil(t, add.Task.Interval)
}

func TestParse_AddDeadlineDefaultsToEndOfDay(t *testing.T) {
	add := parse(t, `add taxes by 2016-04-15`).(command.Add)

	assert.True(t, add.Task.Timing.Start.Time.Equal(at(15, 23, 59)))
}

func TestParse_AddRecurringEvent(t *testing.T) {
	add := parse(t, `add Weekly sync from 2016-04-01 09:00 to 10:00 every 1 week times 4 at 2`).(command.Add)

	assert.Equal(t, "Weekly sync", add.Task.Title)
	assert.True(t, add.Task.Timing.Equal(task.Span(at(1, 9, 0), at(1, 10, 0))))
	require.NotNil(t, add.Task.Interval)
	assert.Equal(t, task.Interval{Frequency: task.Weekly, Step: 1, Count: 4}, *add.Task.Interval)
	assert.Equal(t, 2, add.Position)
}

func TestParse_AddUntil(t *testing.T) {
	add := parse(t, `add standup by 2016-03-25 09:00 every 2 days until 2016-04-15`).(command.Add)

	require.NotNil(t, add.Task.Interval)
	assert.Equal(t, task.Daily, add.Task.Interval.Frequency)
	assert.Equal(t, 2, add.Task.Interval.Step)
	assert.True(t, add.Task.Interval.Until.Time.Equal(at(15, 0, 0)))
}

func TestParse_KeywordsWithoutArgumentsStayInTitle(t *testing.T) {
	add := parse(t, `add meet at the cafe by the river`).(command.Add)

	assert.Equal(t, "meet at the cafe by the river", add.Task.Title)
	assert.True(t, add.Task.Timing.IsZero())
	assert.Zero(t, add.Position)
}

func TestParse_AddOccurrence(t *testing.T) {
	add := parse(t, `add-occurrence 3 2016-04-30 09:00 to 10:30`).(command.Add)

	assert.Equal(t, command.AtIndex(3), add.Series)
	assert.True(t, add.Occurrence.Equal(task.Span(at(30, 9, 0), at(30, 10, 30))))
}

func TestParse_Delete(t *testing.T) {
	assert.Equal(t, command.Delete{}, parse(t, "delete"))
	assert.Equal(t, command.Delete{Target: command.AtIndex(3)}, parse(t, "delete 3"))
	assert.Equal(t, command.Delete{Target: command.AtIndex(1), Occurrence: 2}, parse(t, "rm 1/2"))
	assert.Equal(t, command.Delete{All: true}, parse(t, "delete ALL"))
}

func TestParse_Edit(t *testing.T) {
	c := parse(t, `edit all 1 st 14:00 title Weekly sync (moved)`).(command.Edit)

	assert.Equal(t, command.AtIndex(1), c.Target)
	assert.Equal(t, edit.WholeSeries(), c.Scope)
	require.NotNil(t, c.Changes.StartTime)
	assert.Equal(t, task.Clock{Hour: 14}, *c.Changes.StartTime)
	require.NotNil(t, c.Changes.Title)
	assert.Equal(t, "Weekly sync (moved)", *c.Changes.Title)

	c = parse(t, `edit 2/3 sd 2016-04-09 ed 2016-04-09`).(command.Edit)
	assert.Equal(t, edit.Occurrence(3), c.Scope)
	assert.Equal(t, task.Date{Year: 2016, Month: time.April, Day: 9}, *c.Changes.StartDate)
	assert.Equal(t, task.Date{Year: 2016, Month: time.April, Day: 9}, *c.Changes.EndDate)

	c = parse(t, `edit 4 every 1 month times 3`).(command.Edit)
	require.NotNil(t, c.Changes.Interval)
	assert.Equal(t, task.Monthly, c.Changes.Interval.Frequency)
	assert.Equal(t, edit.Scope{}, c.Scope)
}

func TestParse_Marks(t *testing.T) {
	assert.Equal(t, command.MarkComplete{Target: command.AtIndex(2)}, parse(t, "done 2"))
	assert.Equal(t, command.MarkIncomplete{Target: command.AtIndex(5)}, parse(t, "undone 5"))
}

func TestParse_ControlVerbs(t *testing.T) {
	p := New(time.UTC)
	for line, want := range map[string]Verb{
		"undo": VerbUndo, "redo": VerbRedo, "load": VerbLoad, "help": VerbHelp,
		"exit": VerbQuit, "list pending": VerbList, "find rent": VerbFind,
		"save backup.db": VerbSave, "load backup.db": VerbLoad,
	} {
		req, err := p.Parse(line)
		require.NoError(t, err, line)
		assert.Equal(t, want, req.Verb, line)
		assert.Nil(t, req.Command, line)
	}
}

func TestParse_Errors(t *testing.T) {
	lines := []string{
		"",
		"frobnicate 1",
		"add",
		`add "unterminated`,
		"add gym by 2016-04-01 every 1 week",
		"add gym by 2016-04-01 every 1 week times 0",
		"add gym by 2016-04-01 at 0",
		"add x by 2016-04-01 from 2016-04-02 to 10:00",
		"delete 0",
		"delete 1/x",
		"delete 1 2",
		"edit 1",
		"edit all 1/2 st 10:00",
		"edit 1 colour red",
		"edit 1 st 25:00",
		"done",
		"done 1/2",
		"undo now",
		"save",
		"save a.db b.db",
		"load a.db b.db",
		"delete all 2",
		"list everything",
		"add-occurrence 1",
		"add-occurrence 1 2016-04-01 extra",
	}
	p := New(time.UTC)
	for _, line := range lines {
		_, err := p.Parse(line)
		assert.ErrorIs(t, err, task.ErrValidation, line)
	}
}

func TestParse_PathArguments(t *testing.T) {
	p := New(time.UTC)

	req, err := p.Parse(`save "my tasks.db"`)
	require.NoError(t, err)
	assert.Equal(t, []string{"my tasks.db"}, req.Args)

	req, err = p.Parse("load")
	require.NoError(t, err)
	assert.Empty(t, req.Args)
}
