package api

import (
	"errors"
	"net/http"

	"github.com/mklounge/squadqueue/internal/adapters/ratings"
	"github.com/mklounge/squadqueue/internal/app"
	"github.com/mklounge/squadqueue/internal/clock"
	"github.com/mklounge/squadqueue/internal/domain/roster"
	"github.com/mklounge/squadqueue/internal/domain/vote"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest = errors.New("bad request")
)

// statusFor translates domain errors into a status code and a stable error
// code for the response body.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, app.ErrNoEvent),
		errors.Is(err, app.ErrRoomNotFound),
		errors.Is(err, roster.ErrNotRegistered):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, roster.ErrNotGathering),
		errors.Is(err, app.ErrEventClosed),
		errors.Is(err, app.ErrRoomCancelled),
		errors.Is(err, vote.ErrDecided):
		return http.StatusConflict, "conflict"
	case errors.Is(err, vote.ErrNotEligible):
		return http.StatusForbidden, "not_eligible"
	case errors.Is(err, app.ErrOnCooldown):
		return http.StatusTooManyRequests, "cooldown"
	case errors.Is(err, ratings.ErrNotReady):
		return http.StatusServiceUnavailable, "not_ready"
	case errors.Is(err, roster.ErrUnknownPlayer),
		errors.Is(err, vote.ErrUnknownOption),
		errors.Is(err, clock.ErrPastTime),
		errors.Is(err, clock.ErrUnknownFormat),
		errors.Is(err, app.ErrUnknownSetting),
		errors.Is(err, app.ErrBadSettingValue),
		errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest, "bad_request"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
