package api

import (
	"encoding/json"
	"net/http"
)

// SettingsHandler handles the mutable operator settings.
type SettingsHandler struct {
	deps SettingsDependencies
}

// NewSettingsHandler creates a new settings handler.
func NewSettingsHandler(deps SettingsDependencies) *SettingsHandler {
	return &SettingsHandler{deps: deps}
}

// HandleConfig handles /config requests: GET returns the current values,
// PUT applies and persists an update.
func (h *SettingsHandler) HandleConfig(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, h.deps.Settings())

	case http.MethodPut:
		var values map[string]string
		if err := json.NewDecoder(r.Body).Decode(&values); err != nil || len(values) == 0 {
			writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
			return
		}
		if err := h.deps.UpdateSettings(r.Context(), values); err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, h.deps.Settings())

	default:
		http.NotFound(w, r)
	}
}
