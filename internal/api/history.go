package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-venstar/internal/history"
)

// maxQueryParamLen caps free-form query values.
const maxQueryParamLen = 64

func (s *Server) handleCommandHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := s.historyTarget(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	limit, err := parseNonNegative(q.Get("limit"), "limit")
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	offset, err := parseNonNegative(q.Get("offset"), "offset")
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	command, status := q.Get("command"), q.Get("status")
	if len(command) > maxQueryParamLen || len(status) > maxQueryParamLen {
		writeBadRequest(w, "query parameter too long")
		return
	}

	list, err := s.history.ListCommands(r.Context(), history.CommandFilter{
		DeviceID: id,
		Command:  command,
		Status:   status,
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		s.logger.Error("listing command history", "device_id", id, "error", err)
		writeInternalError(w, "failed to list command history")
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleStateHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := s.historyTarget(w, r)
	if !ok {
		return
	}

	limit, err := parseNonNegative(r.URL.Query().Get("limit"), "limit")
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	states, err := s.history.ListStates(r.Context(), id, limit)
	if err != nil {
		s.logger.Error("listing state history", "device_id", id, "error", err)
		writeInternalError(w, "failed to list state history")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"device_id": id,
		"states":    states,
		"count":     len(states),
	})
}

// historyTarget resolves the thermostat ID and checks history is available.
func (s *Server) historyTarget(w http.ResponseWriter, r *http.Request) (string, bool) {
	if s.history == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "history is not configured")
		return "", false
	}
	id := chi.URLParam(r, "id")
	if _, err := s.bridge.Device(id); err != nil {
		writeBridgeError(w, err)
		return "", false
	}
	return id, true
}

// parseNonNegative parses an optional integer query parameter. Zero means
// the repository default.
func parseNonNegative(raw, name string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer", name)
	}
	return n, nil
}
