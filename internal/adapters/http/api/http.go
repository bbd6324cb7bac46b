// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/mklounge/squadqueue/internal/app"
	"github.com/mklounge/squadqueue/internal/clock"
	"github.com/mklounge/squadqueue/internal/domain/model"
	"github.com/mklounge/squadqueue/internal/domain/roster"
	"github.com/mklounge/squadqueue/internal/domain/vote"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to the scheduling service.
type Dependencies interface {
	QueueDependencies
	VoteDependencies
	ScheduleDependencies
	SettingsDependencies
}

// QueueDependencies covers roster and event lifecycle operations.
type QueueDependencies interface {
	Join(ctx context.Context, id model.PlayerID, name string, wantsHost, allowPlacement bool) (roster.JoinResult, error)
	Drop(ctx context.Context, id model.PlayerID) (roster.DropResult, error)
	ToggleHost(ctx context.Context, id model.PlayerID, wantsHost bool) (roster.JoinTransition, error)
	Extend(ctx context.Context, delta time.Duration) (time.Time, error)
	Annul(ctx context.Context, resume bool) error
	Roster() (app.RosterView, error)
}

// VoteDependencies covers the per-room format polls.
type VoteDependencies interface {
	CastVote(ctx context.Context, roomIndex int, voter model.PlayerID, format model.Format) (vote.Result, error)
}

// ScheduleDependencies covers the operator-managed schedule lists.
type ScheduleDependencies interface {
	ScheduleForcedFormat(ctx context.Context, at time.Time, format model.Format) error
	RemoveForcedFormat(ctx context.Context, at time.Time) bool
	ForcedFormats() []clock.Override
	ScheduleSkip(ctx context.Context, at time.Time) error
	Skips() []time.Time
}

// SettingsDependencies covers the mutable operator settings.
type SettingsDependencies interface {
	Settings() map[string]string
	UpdateSettings(ctx context.Context, values map[string]string) error
}

// Server wires HTTP routes for the matchmaking API.
type Server struct {
	healthHandler   *HealthHandler
	queueHandler    *QueueHandler
	voteHandler     *VoteHandler
	scheduleHandler *ScheduleHandler
	settingsHandler *SettingsHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies) *Server {
	return &Server{
		healthHandler:   NewHealthHandler(),
		queueHandler:    NewQueueHandler(deps),
		voteHandler:     NewVoteHandler(deps),
		scheduleHandler: NewScheduleHandler(deps),
		settingsHandler: NewSettingsHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/roster", MetricsMiddleware(s.queueHandler.HandleRoster, "roster"))
	mux.HandleFunc("/queue/join", MetricsMiddleware(s.queueHandler.HandleJoin, "join"))
	mux.HandleFunc("/queue/drop", MetricsMiddleware(s.queueHandler.HandleDrop, "drop"))
	mux.HandleFunc("/queue/host", MetricsMiddleware(s.queueHandler.HandleHost, "host"))
	mux.HandleFunc("/queue/extend", MetricsMiddleware(s.queueHandler.HandleExtend, "extend"))
	mux.HandleFunc("/queue/annul", MetricsMiddleware(s.queueHandler.HandleAnnul, "annul"))
	mux.HandleFunc("/rooms/", MetricsMiddleware(s.voteHandler.HandleVote, "vote"))
	mux.HandleFunc("/schedule/formats", MetricsMiddleware(s.scheduleHandler.HandleFormats, "formats"))
	mux.HandleFunc("/schedule/skips", MetricsMiddleware(s.scheduleHandler.HandleSkips, "skips"))
	mux.HandleFunc("/config", MetricsMiddleware(s.settingsHandler.HandleConfig, "config"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeDomainError maps a service error onto the HTTP surface.
func writeDomainError(w http.ResponseWriter, err error) {
	status, code := statusFor(err)
	writeError(w, status, code, err)
}
