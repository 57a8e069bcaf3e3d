package server

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/condmatlab/gateman/internal/model"
)

// requireStore guards run-history endpoints: they need a database.
func (s *GatemanServer) requireStore(w http.ResponseWriter) bool {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "no database configured")
		return false
	}
	return true
}

// handleListRuns handles GET /v1/runs with optional kind, state, device,
// limit and offset query parameters.
func (s *GatemanServer) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}

	var filter model.RunFilter
	q := r.URL.Query()
	for _, k := range splitParam(q.Get("kind")) {
		kind := model.RunKind(k)
		if !kind.IsValid() {
			writeError(w, http.StatusBadRequest, "invalid kind "+k)
			return
		}
		filter.Kind = append(filter.Kind, kind)
	}
	for _, st := range splitParam(q.Get("state")) {
		state := model.RunState(st)
		if !state.IsValid() {
			writeError(w, http.StatusBadRequest, "invalid state "+st)
			return
		}
		filter.State = append(filter.State, state)
	}
	filter.Device = q.Get("device")

	var err error
	if filter.Limit, err = intParam(q.Get("limit"), 100); err != nil {
		writeError(w, http.StatusBadRequest, "invalid limit: "+err.Error())
		return
	}
	if filter.Offset, err = intParam(q.Get("offset"), 0); err != nil {
		writeError(w, http.StatusBadRequest, "invalid offset: "+err.Error())
		return
	}

	runs, total, err := s.store.ListRuns(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if runs == nil {
		runs = []*model.Run{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs, "total": total})
}

// handleGetRun handles GET /v1/runs/{id}.
func (s *GatemanServer) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	run, err := s.store.GetRun(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "run not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// handleGetPoints handles GET /v1/runs/{id}/points.
func (s *GatemanServer) handleGetPoints(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	points, err := s.store.GetPoints(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if points == nil {
		points = []model.Point{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"points": points})
}

// handleGetEvents handles GET /v1/runs/{id}/events.
func (s *GatemanServer) handleGetEvents(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	evts, err := s.store.GetEvents(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if evts == nil {
		evts = []*model.Event{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": evts})
}

// splitParam splits a comma-separated query value, dropping empties.
func splitParam(v string) []string {
	if v == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(v, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// intParam parses a non-negative integer query value with a default.
func intParam(v string, def int) (int, error) {
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, errors.New("must be non-negative")
	}
	return n, nil
}
