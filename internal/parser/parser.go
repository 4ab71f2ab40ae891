// Package parser turns command lines into engine commands.
package parser

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kballard/go-shellquote"

	"atf/internal/command"
	"atf/internal/edit"
	"atf/internal/task"
)

type Verb string

const (
	VerbCommand Verb = "command"
	VerbUndo    Verb = "undo"
	VerbRedo    Verb = "redo"
	VerbList    Verb = "list"
	VerbFind    Verb = "find"
	VerbLoad    Verb = "load"
	VerbSave    Verb = "save"
	VerbHelp    Verb = "help"
	VerbQuit    Verb = "quit"
)

// Request is a parsed line: either a Command for the engine or a control
// verb with its arguments.
type Request struct {
	Verb    Verb
	Command command.Command
	Args    []string
}

const Usage = `add <title> [by <date> [<time>]] [from <date> [<time>] to [<date>] [<time>]]
    [every <n> <unit> (times <count> | until <date>)] [at <position>]
add-occurrence <index> <date> [<time>] [to [<date>] [<time>]]
delete [<index>[/<occurrence>] | all]
edit [all] <index>[/<occurrence>] [title <text>] [sd <date>] [st <time>] [ed <date>] [et <time>]
    [every <n> <unit> (times <count> | until <date>)]
done <index>
undone <index>
undo | redo | list [all|pending] | find <words> | help | quit
save <path> | load [<path>]

dates are YYYY-MM-DD, times HH:MM, units hour/day/week/month/year`

type Parser struct {
	Location *time.Location
}

func New(loc *time.Location) Parser {
	if loc == nil {
		loc = time.Local
	}
	return Parser{Location: loc}
}

func syntaxErr(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, task.ErrValidation)...)
}

func (p Parser) Parse(line string) (Request, error) {
	words, err := shellquote.Split(line)
	if err != nil {
		return Request{}, syntaxErr("cannot split %q: %v", line, err)
	}
	if len(words) == 0 {
		return Request{}, syntaxErr("empty command")
	}
	verb, args := strings.ToLower(words[0]), words[1:]
	switch verb {
	case "add":
		return p.parseAdd(args)
	case "add-occurrence":
		return p.parseAddOccurrence(args)
	case "delete", "del", "rm":
		return parseDelete(args)
	case "edit":
		return p.parseEdit(args)
	case "done":
		ref, occ, err := parseTarget(args, 1)
		if err != nil {
			return Request{}, err
		}
		if occ != 0 {
			return Request{}, syntaxErr("done takes a task index only")
		}
		return cmd(command.MarkComplete{Target: ref}), nil
	case "undone":
		ref, occ, err := parseTarget(args, 1)
		if err != nil {
			return Request{}, err
		}
		if occ != 0 {
			return Request{}, syntaxErr("undone takes a task index only")
		}
		return cmd(command.MarkIncomplete{Target: ref}), nil
	case "save":
		if len(args) != 1 {
			return Request{}, syntaxErr("save needs a path")
		}
		return Request{Verb: VerbSave, Args: args}, nil
	case "load":
		if len(args) > 1 {
			return Request{}, syntaxErr("load takes at most a path")
		}
		return Request{Verb: VerbLoad, Args: args}, nil
	case "undo", "redo", "help", "quit", "exit":
		if verb == "exit" {
			verb = "quit"
		}
		if len(args) > 0 && verb != "help" {
			return Request{}, syntaxErr("%s takes no arguments", verb)
		}
		return Request{Verb: Verb(verb), Args: args}, nil
	case "list", "ls":
		if len(args) > 1 || (len(args) == 1 && args[0] != "all" && args[0] != "pending") {
			return Request{}, syntaxErr("list takes all or pending")
		}
		return Request{Verb: VerbList, Args: args}, nil
	case "find", "search":
		if len(args) == 0 {
			return Request{}, syntaxErr("find needs a keyword")
		}
		return Request{Verb: VerbFind, Args: args}, nil
	}
	return Request{}, syntaxErr("unknown command %q", words[0])
}

func cmd(c command.Command) Request {
	return Request{Verb: VerbCommand, Command: c}
}

func (p Parser) parseAdd(args []string) (Request, error) {
	var (
		title []string
		add   command.Add
	)
	for i := 0; i < len(args); {
		next, ok, err := p.addClause(args, i, &add)
		if err != nil {
			return Request{}, err
		}
		if ok {
			i = next
			continue
		}
		title = append(title, args[i])
		i++
	}
	add.Task.Title = strings.Join(title, " ")
	if strings.TrimSpace(add.Task.Title) == "" {
		return Request{}, syntaxErr("add needs a title")
	}
	return cmd(add), nil
}

// addClause tries to read a clause starting at args[i]. Keywords whose
// arguments do not parse are left to the title.
func (p Parser) addClause(args []string, i int, add *command.Add) (int, bool, error) {
	switch strings.ToLower(args[i]) {
	case "by":
		at, next, ok := p.moment(args, i+1, nil, task.Clock{Hour: 23, Minute: 59})
		if !ok {
			return i, false, nil
		}
		if !add.Task.Timing.IsZero() {
			return i, false, syntaxErr("only one of by and from may be given")
		}
		add.Task.Timing = task.Deadline(at)
		return next, true, nil
	case "from":
		start, next, ok := p.moment(args, i+1, nil, task.Clock{})
		if !ok || next >= len(args) || !strings.EqualFold(args[next], "to") {
			return i, false, nil
		}
		startDate := task.DateOf(start)
		end, after, ok := p.moment(args, next+1, &startDate, task.Clock{Hour: 23, Minute: 59})
		if !ok {
			return i, false, syntaxErr("from needs an end after to")
		}
		if !add.Task.Timing.IsZero() {
			return i, false, syntaxErr("only one of by and from may be given")
		}
		add.Task.Timing = task.Span(start, end)
		return after, true, nil
	case "every":
		iv, next, ok, err := p.interval(args, i+1)
		if !ok {
			return i, false, err
		}
		add.Task.Interval = &iv
		return next, true, nil
	case "at":
		if i+1 >= len(args) {
			return i, false, nil
		}
		pos, err := strconv.Atoi(args[i+1])
		if err != nil {
			return i, false, nil
		}
		if pos < 1 {
			return i, false, syntaxErr("position must be at least 1")
		}
		add.Position = pos
		return i + 2, true, nil
	}
	return i, false, nil
}

// moment reads "<date> [<time>]" or, when dflt is given, a bare "<time>"
// on that date.
func (p Parser) moment(args []string, i int, dflt *task.Date, clock task.Clock) (time.Time, int, bool) {
	if i >= len(args) {
		return time.Time{}, i, false
	}
	if d, err := task.ParseDate(args[i]); err == nil {
		i++
		if i < len(args) {
			if c, err := task.ParseClock(args[i]); err == nil {
				clock = c
				i++
			}
		}
		return task.At(d, clock, p.Location), i, true
	}
	if dflt == nil {
		return time.Time{}, i, false
	}
	c, err := task.ParseClock(args[i])
	if err != nil {
		return time.Time{}, i, false
	}
	return task.At(*dflt, c, p.Location), i + 1, true
}

// interval reads "<n> <unit> (times <count> | until <date>)". ok is false
// when args[i] does not start a recurrence rule at all.
func (p Parser) interval(args []string, i int) (task.Interval, int, bool, error) {
	if i+1 >= len(args) {
		return task.Interval{}, i, false, nil
	}
	step, err := strconv.Atoi(args[i])
	if err != nil {
		return task.Interval{}, i, false, nil
	}
	freq, err := task.ParseFrequency(args[i+1])
	if err != nil {
		return task.Interval{}, i, false, nil
	}
	iv := task.Interval{Frequency: freq, Step: step}
	i += 2
	if i+1 >= len(args) {
		return iv, i, false, syntaxErr("every needs times <count> or until <date>")
	}
	switch strings.ToLower(args[i]) {
	case "times":
		n, err := strconv.Atoi(args[i+1])
		if err != nil || n < 1 {
			return iv, i, false, syntaxErr("invalid count %q", args[i+1])
		}
		iv.Count = n
	case "until":
		d, err := task.ParseDate(args[i+1])
		if err != nil {
			return iv, i, false, err
		}
		iv.Until.Time, iv.Until.Valid = task.At(d, task.Clock{}, p.Location), true
	default:
		return iv, i, false, syntaxErr("every needs times <count> or until <date>")
	}
	if err := iv.Validate(); err != nil {
		return iv, i, false, err
	}
	return iv, i + 2, true, nil
}

func (p Parser) parseAddOccurrence(args []string) (Request, error) {
	if len(args) < 2 {
		return Request{}, syntaxErr("add-occurrence needs an index and a date")
	}
	ref, occ, err := parseIndex(args[0])
	if err != nil {
		return Request{}, err
	}
	if occ != 0 {
		return Request{}, syntaxErr("add-occurrence takes a task index only")
	}
	start, i, ok := p.moment(args, 1, nil, task.Clock{})
	if !ok {
		return Request{}, syntaxErr("invalid date %q", args[1])
	}
	tm := task.Deadline(start)
	if i < len(args) && strings.EqualFold(args[i], "to") {
		startDate := task.DateOf(start)
		end, next, ok := p.moment(args, i+1, &startDate, task.Clock{Hour: 23, Minute: 59})
		if !ok {
			return Request{}, syntaxErr("to needs a date or time")
		}
		tm, i = task.Span(start, end), next
	}
	if i != len(args) {
		return Request{}, syntaxErr("unexpected %q", args[i])
	}
	return cmd(command.Add{Series: ref, Occurrence: tm}), nil
}

func parseDelete(args []string) (Request, error) {
	if len(args) == 0 {
		return cmd(command.Delete{}), nil
	}
	if len(args) == 1 && strings.EqualFold(args[0], "all") {
		return cmd(command.Delete{All: true}), nil
	}
	ref, occ, err := parseTarget(args, 1)
	if err != nil {
		return Request{}, err
	}
	return cmd(command.Delete{Target: ref, Occurrence: occ}), nil
}

var editFields = map[string]bool{"title": true, "sd": true, "st": true, "ed": true, "et": true, "every": true}

func (p Parser) parseEdit(args []string) (Request, error) {
	var c command.Edit
	if len(args) > 0 && strings.EqualFold(args[0], "all") {
		c.Scope = edit.WholeSeries()
		args = args[1:]
	}
	if len(args) == 0 {
		return Request{}, syntaxErr("edit needs an index")
	}
	ref, occ, err := parseIndex(args[0])
	if err != nil {
		return Request{}, err
	}
	c.Target = ref
	if occ > 0 {
		if c.Scope.All() {
			return Request{}, syntaxErr("edit all takes a task index only")
		}
		c.Scope = edit.Occurrence(occ)
	}

	for i := 1; i < len(args); {
		field := strings.ToLower(args[i])
		if !editFields[field] {
			return Request{}, syntaxErr("unknown field %q", args[i])
		}
		if i+1 >= len(args) {
			return Request{}, syntaxErr("%s needs a value", field)
		}
		switch field {
		case "title":
			j := i + 1
			for j < len(args) && !editFields[strings.ToLower(args[j])] {
				j++
			}
			title := strings.Join(args[i+1:j], " ")
			c.Changes.Title = &title
			i = j
			continue
		case "sd", "ed":
			d, err := task.ParseDate(args[i+1])
			if err != nil {
				return Request{}, err
			}
			if field == "sd" {
				c.Changes.StartDate = &d
			} else {
				c.Changes.EndDate = &d
			}
		case "st", "et":
			cl, err := task.ParseClock(args[i+1])
			if err != nil {
				return Request{}, err
			}
			if field == "st" {
				c.Changes.StartTime = &cl
			} else {
				c.Changes.EndTime = &cl
			}
		case "every":
			iv, next, ok, err := p.interval(args, i+1)
			if err != nil {
				return Request{}, err
			}
			if !ok {
				return Request{}, syntaxErr("invalid recurrence after every")
			}
			c.Changes.Interval = &iv
			i = next
			continue
		}
		i += 2
	}
	if c.Changes.Empty() {
		return Request{}, syntaxErr("edit needs at least one field")
	}
	return cmd(c), nil
}

func parseTarget(args []string, n int) (command.Ref, int, error) {
	if len(args) != n {
		return command.Ref{}, 0, syntaxErr("expected a task index")
	}
	return parseIndex(args[0])
}

// parseIndex reads "<i>" or "<i>/<k>".
func parseIndex(v string) (command.Ref, int, error) {
	head, tail, hasOcc := strings.Cut(v, "/")
	i, err := strconv.Atoi(head)
	if err != nil || i < 1 {
		return command.Ref{}, 0, syntaxErr("invalid index %q", v)
	}
	if !hasOcc {
		return command.AtIndex(i), 0, nil
	}
	k, err := strconv.Atoi(tail)
	if err != nil || k < 1 {
		return command.Ref{}, 0, syntaxErr("invalid occurrence %q", v)
	}
	return command.AtIndex(i), k, nil
}
