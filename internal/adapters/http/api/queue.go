package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/mklounge/squadqueue/internal/domain/model"
)

// QueueHandler handles roster and event lifecycle requests.
type QueueHandler struct {
	deps QueueDependencies
}

// NewQueueHandler creates a new queue handler.
func NewQueueHandler(deps QueueDependencies) *QueueHandler {
	return &QueueHandler{deps: deps}
}

type joinRequest struct {
	PlayerID       string `json:"player_id"`
	Name           string `json:"name"`
	Host           bool   `json:"host"`
	AllowPlacement bool   `json:"allow_placement"`
}

func (j joinRequest) validate() error {
	if strings.TrimSpace(j.PlayerID) == "" {
		return ErrBadRequest
	}
	return nil
}

type joinResponse struct {
	Transition string `json:"transition"`
	Name       string `json:"name"`
	Rating     int    `json:"rating"`
	Registered int    `json:"registered"`
	Placement  bool   `json:"placement"`
}

// HandleJoin handles POST /queue/join requests.
func (h *QueueHandler) HandleJoin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req joinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}
	if err := req.validate(); err != nil {
		writeDomainError(w, err)
		return
	}

	result, err := h.deps.Join(r.Context(), model.PlayerID(req.PlayerID), req.Name, req.Host, req.AllowPlacement)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, joinResponse{
		Transition: result.Transition.String(),
		Name:       result.Player.Name,
		Rating:     result.Player.Rating,
		Registered: result.Registered,
		Placement:  result.Placement,
	})
}

type dropRequest struct {
	PlayerID string `json:"player_id"`
}

type dropResponse struct {
	Removed    []string `json:"removed"`
	Registered int      `json:"registered"`
}

// HandleDrop handles POST /queue/drop requests.
func (h *QueueHandler) HandleDrop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req dropRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.PlayerID) == "" {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}

	result, err := h.deps.Drop(r.Context(), model.PlayerID(req.PlayerID))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	resp := dropResponse{Registered: result.Registered}
	for _, p := range result.Removed {
		resp.Removed = append(resp.Removed, string(p.ID))
	}
	writeJSON(w, http.StatusOK, resp)
}

type hostRequest struct {
	PlayerID string `json:"player_id"`
	Host     bool   `json:"host"`
}

// HandleHost handles POST /queue/host requests.
func (h *QueueHandler) HandleHost(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req hostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.PlayerID) == "" {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}

	transition, err := h.deps.ToggleHost(r.Context(), model.PlayerID(req.PlayerID), req.Host)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"transition": transition.String()})
}

type extendRequest struct {
	Minutes int `json:"minutes"`
}

// HandleExtend handles POST /queue/extend requests. Negative minutes pull
// the deadline in.
func (h *QueueHandler) HandleExtend(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req extendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Minutes == 0 {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}

	deadline, err := h.deps.Extend(r.Context(), time.Duration(req.Minutes)*time.Minute)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"deadline": deadline.Format(time.RFC3339)})
}

type annulRequest struct {
	Resume bool `json:"resume"`
}

// HandleAnnul handles POST /queue/annul requests.
func (h *QueueHandler) HandleAnnul(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req annulRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}
	if err := h.deps.Annul(r.Context(), req.Resume); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "annulled"})
}

// HandleRoster handles GET /roster requests.
func (h *QueueHandler) HandleRoster(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	view, err := h.deps.Roster()
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}
