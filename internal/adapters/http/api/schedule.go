package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/mklounge/squadqueue/internal/domain/model"
)

// ScheduleHandler handles the operator-managed schedule lists.
type ScheduleHandler struct {
	deps ScheduleDependencies
}

// NewScheduleHandler creates a new schedule handler.
func NewScheduleHandler(deps ScheduleDependencies) *ScheduleHandler {
	return &ScheduleHandler{deps: deps}
}

type formatRequest struct {
	Time   string `json:"time"`
	Format string `json:"format"`
}

type formatEntry struct {
	Time   string `json:"time"`
	Format string `json:"format"`
}

// HandleFormats handles /schedule/formats requests: GET lists the pending
// overrides, POST pins a format, DELETE removes one by its ?time= query.
func (h *ScheduleHandler) HandleFormats(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		entries := make([]formatEntry, 0)
		for _, o := range h.deps.ForcedFormats() {
			entries = append(entries, formatEntry{
				Time:   o.Time.Format(time.RFC3339),
				Format: o.Format.String(),
			})
		}
		writeJSON(w, http.StatusOK, entries)

	case http.MethodPost:
		var req formatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
			return
		}
		at, err := time.Parse(time.RFC3339, req.Time)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
			return
		}
		format, err := model.ParseFormat(req.Format)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", err)
			return
		}
		if err := h.deps.ScheduleForcedFormat(r.Context(), at, format); err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "scheduled"})

	case http.MethodDelete:
		at, err := time.Parse(time.RFC3339, r.URL.Query().Get("time"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
			return
		}
		if !h.deps.RemoveForcedFormat(r.Context(), at) {
			writeError(w, http.StatusNotFound, "not_found", nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "removed"})

	default:
		http.NotFound(w, r)
	}
}

type skipRequest struct {
	Time string `json:"time"`
}

// HandleSkips handles /schedule/skips requests: GET lists the pending
// skips, POST suppresses one slot.
func (h *ScheduleHandler) HandleSkips(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		entries := make([]string, 0)
		for _, t := range h.deps.Skips() {
			entries = append(entries, t.Format(time.RFC3339))
		}
		writeJSON(w, http.StatusOK, entries)

	case http.MethodPost:
		var req skipRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
			return
		}
		at, err := time.Parse(time.RFC3339, req.Time)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
			return
		}
		if err := h.deps.ScheduleSkip(r.Context(), at); err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "scheduled"})

	default:
		http.NotFound(w, r)
	}
}
