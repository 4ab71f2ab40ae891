package recurrence

import (
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"atf/internal/task"
)

type splitIDs struct {
	last int
}

func (s *splitIDs) NextSplitID() int {
	s.last--
	return s.last
}

func at(y int, m time.Month, d, hh, mm int) time.Time {
	return time.Date(y, m, d, hh, mm, 0, 0, time.UTC)
}

func until(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: true}
}

func TestGenerateTimeline_DailyCount(t *testing.T) {
	iv := task.Interval{Frequency: task.Daily, Step: 2, Count: 3}
	first := task.Span(at(2016, 4, 1, 9, 0), at(2016, 4, 1, 10, 0))

	got := GenerateTimeline(iv, first)

	require.Len(t, got, 3)
	for i, day := range []int{1, 3, 5} {
		assert.True(t, got[i].Start.Time.Equal(at(2016, 4, day, 9, 0)), "start %d: %v", i, got[i].Start.Time)
		assert.True(t, got[i].End.Time.Equal(at(2016, 4, day, 10, 0)), "end %d: %v", i, got[i].End.Time)
	}
}

func TestGenerateTimeline_WeeklyUntilIsExclusive(t *testing.T) {
	tests := []struct {
		name  string
		first time.Time
		want  int
	}{
		{"morning starts", at(2016, 3, 25, 9, 0), 3},
		{"midnight start lands on until", at(2016, 3, 25, 0, 0), 3},
		{"first already past until", at(2016, 4, 15, 0, 0), 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			iv := task.Interval{Frequency: task.Weekly, Step: 1, Until: until(at(2016, 4, 15, 0, 0))}
			got := GenerateTimeline(iv, task.Deadline(tc.first))
			assert.Len(t, got, tc.want)
			for _, occ := range got {
				assert.True(t, occ.Start.Time.Before(at(2016, 4, 15, 0, 0)))
				assert.False(t, occ.End.Valid)
			}
		})
	}
}

func TestGenerateTimeline_NoTerminator(t *testing.T) {
	iv := task.Interval{Frequency: task.Daily, Step: 1}
	assert.Empty(t, GenerateTimeline(iv, task.Deadline(at(2016, 4, 1, 9, 0))))
}

func TestAdvance_CalendarArithmetic(t *testing.T) {
	tests := []struct {
		name string
		iv   task.Interval
		from time.Time
		want time.Time
	}{
		{"hourly", task.Interval{Frequency: task.Hourly, Step: 5}, at(2016, 4, 1, 22, 0), at(2016, 4, 2, 3, 0)},
		{"weekly", task.Interval{Frequency: task.Weekly, Step: 2}, at(2016, 4, 1, 9, 0), at(2016, 4, 15, 9, 0)},
		{"month end clamps", task.Interval{Frequency: task.Monthly, Step: 1}, at(2016, 1, 31, 9, 0), at(2016, 2, 29, 9, 0)},
		{"leap day yearly", task.Interval{Frequency: task.Yearly, Step: 1}, at(2016, 2, 29, 9, 0), at(2017, 2, 28, 9, 0)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Advance(tc.iv, task.Deadline(tc.from))
			assert.True(t, got.Start.Time.Equal(tc.want), "got %v", got.Start.Time)
		})
	}
}

func weeklySync(t *testing.T, count int) task.Task {
	t.Helper()
	series := task.Task{ID: 1, Title: "Weekly sync", Status: task.StatusIncomplete,
		Timing: task.Span(at(2016, 4, 1, 9, 0), at(2016, 4, 1, 10, 0))}
	require.NoError(t, Schedule(&series, task.Interval{Frequency: task.Weekly, Step: 1, Count: count}))
	return series
}

func TestSchedule_MirrorsFirstOccurrence(t *testing.T) {
	series := weeklySync(t, 4)

	assert.True(t, series.Recurring)
	assert.Equal(t, task.CategoryEvent, series.Category)
	require.Len(t, series.Occurrences, 4)
	for i, occ := range series.Occurrences {
		assert.True(t, occ.Start.Time.Equal(at(2016, 4, 1+7*i, 9, 0)))
	}
	assert.True(t, series.Timing.Equal(series.Occurrences[0]))
}

func TestSchedule_RejectsFloating(t *testing.T) {
	floating := task.Task{ID: 1, Title: "someday"}
	err := Schedule(&floating, task.Interval{Frequency: task.Daily, Step: 1, Count: 2})
	assert.ErrorIs(t, err, task.ErrValidation)
	assert.False(t, floating.Recurring)
}

func TestTick_EventLastOccurrenceCompletes(t *testing.T) {
	series := weeklySync(t, 1)
	ids := &splitIDs{}

	split := Tick(&series, at(2016, 4, 1, 11, 0), ids)

	assert.Empty(t, split)
	assert.Empty(t, series.Occurrences)
	assert.Equal(t, task.StatusCompleted, series.Status)

	before := series.Clone()
	assert.Empty(t, Tick(&series, at(2020, 1, 1, 0, 0), ids))
	assert.True(t, before.Equal(series))
}

func TestTick_EventNotYetEnded(t *testing.T) {
	series := weeklySync(t, 2)
	before := series.Clone()

	Tick(&series, at(2016, 4, 1, 9, 30), &splitIDs{})

	assert.True(t, before.Equal(series))
}

func TestTick_DeadlineSplitsMissedOccurrences(t *testing.T) {
	series := task.Task{ID: 3, Title: "report", Status: task.StatusIncomplete, Timing: task.Deadline(at(2016, 4, 1, 17, 0))}
	require.NoError(t, Schedule(&series, task.Interval{Frequency: task.Daily, Step: 1, Count: 3}))
	ids := &splitIDs{}

	split := Tick(&series, at(2016, 4, 2, 18, 0), ids)

	require.Len(t, split, 2)
	assert.Equal(t, -1, split[0].ID)
	assert.Equal(t, -2, split[1].ID)
	for i, s := range split {
		assert.Equal(t, task.StatusOverdue, s.Status)
		assert.Equal(t, task.CategoryDeadline, s.Category)
		assert.False(t, s.Recurring)
		assert.True(t, s.Timing.Start.Time.Equal(at(2016, 4, 1+i, 17, 0)))
	}
	require.Len(t, series.Occurrences, 1)
	assert.True(t, series.Timing.Start.Time.Equal(at(2016, 4, 3, 17, 0)))
	assert.Equal(t, task.StatusIncomplete, series.Status)
}

func TestTick_DeadlineLastOccurrenceDoesNotSplit(t *testing.T) {
	series := task.Task{ID: 3, Title: "report", Status: task.StatusIncomplete, Timing: task.Deadline(at(2016, 4, 1, 17, 0))}
	require.NoError(t, Schedule(&series, task.Interval{Frequency: task.Daily, Step: 1, Count: 1}))

	split := Tick(&series, at(2016, 4, 5, 0, 0), &splitIDs{})

	assert.Empty(t, split)
	assert.Equal(t, task.StatusCompleted, series.Status)
}

func TestSchedule_RejectsRunawayTimelines(t *testing.T) {
	tests := map[string]task.Interval{
		"until far ahead": {Frequency: task.Hourly, Step: 1, Until: until(at(2100, 1, 1, 0, 0))},
		"count too large": {Frequency: task.Daily, Step: 1, Count: task.MaxOccurrences + 1},
	}
	for name, iv := range tests {
		t.Run(name, func(t *testing.T) {
			tk := task.Task{ID: 1, Title: "ping", Timing: task.Deadline(at(2016, 4, 1, 9, 0))}

			err := Schedule(&tk, iv)

			assert.ErrorIs(t, err, task.ErrValidation)
			assert.False(t, tk.Recurring)
			assert.Empty(t, tk.Occurrences)
		})
	}
}

func TestGenerateTimeline_UntilStopsPastTheCap(t *testing.T) {
	iv := task.Interval{Frequency: task.Hourly, Step: 1, Until: until(at(2100, 1, 1, 0, 0))}

	got := GenerateTimeline(iv, task.Deadline(at(2016, 4, 1, 9, 0)))

	assert.Len(t, got, task.MaxOccurrences+1)
}
