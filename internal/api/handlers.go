package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"atf/internal/command"
	"atf/internal/parser"
	"atf/internal/shell"
	"atf/internal/task"
)

type commandRequest struct {
	Line string `json:"line"`
}

type timingResponse struct {
	Start *string `json:"start,omitempty"`
	End   *string `json:"end,omitempty"`
}

type taskResponse struct {
	Position    int              `json:"position"`
	ID          int              `json:"id"`
	Title       string           `json:"title"`
	Category    string           `json:"category"`
	Status      string           `json:"status"`
	Timing      timingResponse   `json:"timing"`
	Interval    string           `json:"interval,omitempty"`
	Occurrences []timingResponse `json:"occurrences,omitempty"`
}

type resultResponse struct {
	Messages []string       `json:"messages"`
	Tasks    []taskResponse `json:"tasks"`
}

type historyResponse struct {
	Undo []string `json:"undo"`
	Redo []string `json:"redo"`
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if f := r.URL.Query().Get("filter"); f != "" {
		if f != shell.FilterAll && f != shell.FilterPending {
			writeError(w, http.StatusBadRequest, "invalid_input", "filter must be all or pending")
			return
		}
		s.session.Filter = f
		s.session.Refresh()
	}
	writeJSON(w, http.StatusOK, s.result(nil))
}

func (s *Server) handleHistory(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	undo, redo := s.session.Engine.History()
	writeJSON(w, http.StatusOK, historyResponse{Undo: describeAll(undo), Redo: describeAll(redo)})
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	var req commandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}
	req.Line = strings.TrimSpace(req.Line)
	if req.Line == "" {
		writeError(w, http.StatusBadRequest, "invalid_input", "line is required")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	parsed, err := s.session.Parser.Parse(req.Line)
	if err != nil {
		s.writeFailure(w, nil, err)
		return
	}
	switch {
	case parsed.Verb == parser.VerbQuit:
		writeError(w, http.StatusBadRequest, "invalid_input", "quit is not available over HTTP")
		return
	case parsed.Verb == parser.VerbSave, parsed.Verb == parser.VerbLoad && len(parsed.Args) > 0:
		writeError(w, http.StatusBadRequest, "invalid_input", "file paths are not available over HTTP")
		return
	}
	reply := s.session.Handle(r.Context(), req.Line)
	if reply.Err != nil {
		s.writeFailure(w, reply.Messages, reply.Err)
		return
	}
	writeJSON(w, http.StatusOK, s.result(reply.Messages))
}

func (s *Server) handleUndo(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.session.Engine.Undo(r.Context())
	s.replay(w, res, err)
}

func (s *Server) handleRedo(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.session.Engine.Redo(r.Context())
	s.replay(w, res, err)
}

func (s *Server) handleLoad(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.session.Engine.Load(r.Context())
	s.replay(w, res, err)
}

func (s *Server) replay(w http.ResponseWriter, res command.Result, err error) {
	s.session.Refresh()
	if err != nil {
		s.writeFailure(w, res.Messages, err)
		return
	}
	writeJSON(w, http.StatusOK, s.result(res.Messages))
}

// writeFailure maps an engine error to a status. A persistence failure
// still carries the result since the change was applied in memory.
func (s *Server) writeFailure(w http.ResponseWriter, messages []string, err error) {
	status, code := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "err", err)
	}
	payload := map[string]any{
		"error": map[string]string{
			"code":    code,
			"message": err.Error(),
		},
	}
	if errors.Is(err, command.ErrPersistence) {
		payload["result"] = s.result(messages)
	}
	writeJSON(w, status, payload)
}

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, command.ErrHistoryEmpty):
		return http.StatusConflict, "history_empty"
	case errors.Is(err, command.ErrPersistence):
		return http.StatusInternalServerError, "persistence"
	case errors.Is(err, task.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, task.ErrValidation):
		return http.StatusBadRequest, "invalid_input"
	}
	return http.StatusInternalServerError, "internal"
}

func (s *Server) result(messages []string) resultResponse {
	if messages == nil {
		messages = []string{}
	}
	shown := s.session.Engine.Shown()
	out := resultResponse{Messages: messages, Tasks: make([]taskResponse, len(shown))}
	for i, t := range shown {
		out.Tasks[i] = toTaskResponse(i+1, t)
	}
	return out
}

func toTaskResponse(pos int, t task.Task) taskResponse {
	resp := taskResponse{
		Position: pos,
		ID:       t.ID,
		Title:    t.Title,
		Category: string(t.Category),
		Status:   string(t.Status),
		Timing:   toTimingResponse(t.Timing),
	}
	if t.Recurring && t.Interval != nil {
		resp.Interval = t.Interval.String()
		resp.Occurrences = make([]timingResponse, len(t.Occurrences))
		for i, occ := range t.Occurrences {
			resp.Occurrences[i] = toTimingResponse(occ)
		}
	}
	return resp
}

func toTimingResponse(tm task.Timing) timingResponse {
	var out timingResponse
	if tm.Start.Valid {
		v := tm.Start.Time.Format(time.RFC3339)
		out.Start = &v
	}
	if tm.End.Valid {
		v := tm.End.Time.Format(time.RFC3339)
		out.End = &v
	}
	return out
}

func describeAll(cmds []command.Command) []string {
	out := make([]string, len(cmds))
	for i, c := range cmds {
		out[i] = command.Describe(c)
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	payload := map[string]any{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	}
	writeJSON(w, status, payload)
}
