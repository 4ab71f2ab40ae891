// Package shell runs parsed command lines against the engine and formats
// the task list for text output. The TUI and the exec subcommand share it.
package shell

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"atf/internal/command"
	"atf/internal/parser"
	"atf/internal/task"
)

const (
	FilterAll     = "all"
	FilterPending = "pending"
)

// Archive is a task store other than the session's own, opened for one
// save or load and closed right after.
type Archive interface {
	command.Repository
	Close() error
}

type Session struct {
	Engine *command.Engine
	Parser parser.Parser
	Filter string
	Logger *slog.Logger
	// Open opens the archive at path for save and load with a path. When
	// nil, only the session's own store is available.
	Open func(ctx context.Context, path string) (Archive, error)
}

type Reply struct {
	Messages []string
	Quit     bool
	Err      error
}

func NewSession(e *command.Engine, p parser.Parser, filter string, logger *slog.Logger) *Session {
	if filter != FilterPending {
		filter = FilterAll
	}
	s := &Session{Engine: e, Parser: p, Filter: filter, Logger: logger}
	s.Refresh()
	return s
}

// Handle parses and runs one line.
func (s *Session) Handle(ctx context.Context, line string) Reply {
	req, err := s.Parser.Parse(line)
	if err != nil {
		return Reply{Err: err}
	}
	switch req.Verb {
	case parser.VerbCommand:
		res, err := s.Engine.Execute(ctx, req.Command)
		s.Refresh()
		return Reply{Messages: res.Messages, Err: err}
	case parser.VerbUndo, parser.VerbRedo:
		run := s.Engine.Undo
		if req.Verb == parser.VerbRedo {
			run = s.Engine.Redo
		}
		res, err := run(ctx)
		s.Refresh()
		if errors.Is(err, command.ErrHistoryEmpty) {
			return Reply{Messages: res.Messages}
		}
		return Reply{Messages: res.Messages, Err: err}
	case parser.VerbList:
		if len(req.Args) == 1 {
			s.Filter = req.Args[0]
		}
		s.Refresh()
		return Reply{Messages: []string{fmt.Sprintf("Showing %s tasks.", s.Filter)}}
	case parser.VerbFind:
		n, err := s.find(req.Args)
		if err != nil {
			return Reply{Err: err}
		}
		return Reply{Messages: []string{fmt.Sprintf("Found %d tasks.", n)}}
	case parser.VerbLoad:
		if len(req.Args) == 0 {
			res, err := s.Engine.Load(ctx)
			s.Refresh()
			return Reply{Messages: res.Messages, Err: err}
		}
		res, err := s.withArchive(ctx, req.Args[0], s.Engine.Import)
		s.Refresh()
		return Reply{Messages: res.Messages, Err: err}
	case parser.VerbSave:
		res, err := s.withArchive(ctx, req.Args[0], s.Engine.Export)
		return Reply{Messages: res.Messages, Err: err}
	case parser.VerbHelp:
		return Reply{Messages: strings.Split(parser.Usage, "\n")}
	case parser.VerbQuit:
		return Reply{Quit: true}
	}
	return Reply{Err: fmt.Errorf("unhandled verb %q", req.Verb)}
}

func (s *Session) withArchive(ctx context.Context, path string, run func(context.Context, command.Repository) (command.Result, error)) (command.Result, error) {
	if s.Open == nil {
		return command.Result{}, fmt.Errorf("no archive support for %q: %w", path, task.ErrValidation)
	}
	a, err := s.Open(ctx, path)
	if err != nil {
		return command.Result{}, fmt.Errorf("%w: open %s: %w", command.ErrPersistence, path, err)
	}
	defer func() {
		if cerr := a.Close(); cerr != nil && s.Logger != nil {
			s.Logger.Warn("close archive failed", "path", path, "err", cerr)
		}
	}()
	return run(ctx, a)
}

// Refresh re-applies the list filter to the engine's shown snapshot.
func (s *Session) Refresh() {
	var ids []int
	for _, t := range s.Engine.Tasks() {
		if s.Filter != FilterPending || t.Status != task.StatusCompleted {
			ids = append(ids, t.ID)
		}
	}
	if err := s.Engine.Show(ids); err != nil && s.Logger != nil {
		s.Logger.Warn("filter failed", "err", err)
	}
}

func (s *Session) find(words []string) (int, error) {
	var ids []int
	for _, t := range s.Engine.Tasks() {
		if matches(t.Title, words) {
			ids = append(ids, t.ID)
		}
	}
	if err := s.Engine.Show(ids); err != nil {
		return 0, err
	}
	return len(ids), nil
}

func matches(title string, words []string) bool {
	title = strings.ToLower(title)
	for _, w := range words {
		if !strings.Contains(title, strings.ToLower(w)) {
			return false
		}
	}
	return true
}

// ErrorLine renders err as the one line a user sees.
func ErrorLine(err error) string {
	switch {
	case errors.Is(err, command.ErrPersistence):
		return "Changes kept in memory but not saved: " + err.Error()
	case errors.Is(err, task.ErrNotFound):
		return "Not found: " + err.Error()
	case errors.Is(err, task.ErrValidation):
		return "Invalid: " + err.Error()
	}
	return "Error: " + err.Error()
}
