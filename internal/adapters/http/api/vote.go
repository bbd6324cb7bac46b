package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/mklounge/squadqueue/internal/domain/model"
)

// VoteHandler handles format poll requests.
type VoteHandler struct {
	deps VoteDependencies
}

// NewVoteHandler creates a new vote handler.
func NewVoteHandler(deps VoteDependencies) *VoteHandler {
	return &VoteHandler{deps: deps}
}

type voteRequest struct {
	PlayerID string `json:"player_id"`
	Format   string `json:"format"`
}

type voteResponse struct {
	Outcome string         `json:"outcome"`
	Winner  string         `json:"winner,omitempty"`
	Tallies map[string]int `json:"tallies"`
}

// HandleVote handles POST /rooms/{index}/vote requests.
func (h *VoteHandler) HandleVote(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	path := strings.TrimPrefix(r.URL.Path, "/rooms/")
	index, ok := strings.CutSuffix(path, "/vote")
	roomIndex, err := strconv.Atoi(index)
	if !ok || err != nil || roomIndex < 1 {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}

	var req voteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.PlayerID) == "" {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}
	format, err := model.ParseFormat(req.Format)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}

	result, err := h.deps.CastVote(r.Context(), roomIndex, model.PlayerID(req.PlayerID), format)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	resp := voteResponse{Outcome: result.Outcome.String(), Tallies: make(map[string]int)}
	if result.Winner != model.FormatNone {
		resp.Winner = result.Winner.String()
	}
	for f, n := range result.Tallies {
		resp.Tallies[f.String()] = n
	}
	writeJSON(w, http.StatusOK, resp)
}
