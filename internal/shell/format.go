package shell

import (
	"fmt"
	"strings"

	"atf/internal/task"
)

// Line formats one task as shown at 1-based position pos.
func Line(pos int, t task.Task) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%3d. %s %s", pos, checkbox(t.Status), t.Title)
	if s := t.Timing.String(); s != "" {
		b.WriteString("  " + s)
	}
	if t.Recurring && t.Interval != nil {
		fmt.Fprintf(&b, "  (%s; %d left)", t.Interval, len(t.Occurrences))
	}
	if t.Status == task.StatusOverdue {
		b.WriteString("  OVERDUE")
	}
	return b.String()
}

// Lines formats a list, numbering from 1.
func Lines(tasks []task.Task) []string {
	if len(tasks) == 0 {
		return []string{"No tasks."}
	}
	out := make([]string, len(tasks))
	for i, t := range tasks {
		out[i] = Line(i+1, t)
	}
	return out
}

// Detail lists a task's fields and upcoming occurrences.
func Detail(t task.Task) []string {
	out := []string{
		fmt.Sprintf("Title     : %s", t.Title),
		fmt.Sprintf("Category  : %s", t.Category),
		fmt.Sprintf("Status    : %s", t.Status),
	}
	if s := t.Timing.String(); s != "" {
		out = append(out, fmt.Sprintf("Timing    : %s", s))
	}
	if t.Recurring && t.Interval != nil {
		out = append(out, fmt.Sprintf("Recurring : %s", t.Interval))
		for i, occ := range t.Occurrences {
			out = append(out, fmt.Sprintf("  %d/%d     %s", i+1, len(t.Occurrences), occ))
		}
	}
	return out
}

func checkbox(s task.Status) string {
	switch s {
	case task.StatusCompleted:
		return "[x]"
	case task.StatusOverdue:
		return "[!]"
	default:
		return "[ ]"
	}
}
