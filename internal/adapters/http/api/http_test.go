package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/mklounge/squadqueue/internal/app"
	"github.com/mklounge/squadqueue/internal/clock"
	"github.com/mklounge/squadqueue/internal/domain/model"
	"github.com/mklounge/squadqueue/internal/domain/roster"
	"github.com/mklounge/squadqueue/internal/domain/vote"
)

// stubDeps implements Dependencies with overridable behavior per test.
type stubDeps struct {
	joinErr   error
	dropErr   error
	voteErr   error
	castVotes []model.Format
	formats   []clock.Override
	settings  map[string]string
	updateErr error
}

func (s *stubDeps) Join(_ context.Context, id model.PlayerID, name string, wantsHost, _ bool) (roster.JoinResult, error) {
	if s.joinErr != nil {
		return roster.JoinResult{}, s.joinErr
	}
	return roster.JoinResult{
		Transition: roster.TransitionNewJoin,
		Player:     &model.Player{ID: id, Name: name, Rating: 1200, Host: wantsHost},
		Registered: 4,
	}, nil
}

func (s *stubDeps) Drop(_ context.Context, id model.PlayerID) (roster.DropResult, error) {
	if s.dropErr != nil {
		return roster.DropResult{}, s.dropErr
	}
	return roster.DropResult{
		Removed:    []*model.Player{{ID: id}},
		Registered: 3,
	}, nil
}

func (s *stubDeps) ToggleHost(context.Context, model.PlayerID, bool) (roster.JoinTransition, error) {
	return roster.TransitionNonHostToHost, nil
}

func (s *stubDeps) Extend(_ context.Context, delta time.Duration) (time.Time, error) {
	return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC).Add(delta), nil
}

func (s *stubDeps) Annul(context.Context, bool) error { return nil }

func (s *stubDeps) Roster() (app.RosterView, error) {
	return app.RosterView{State: "gathering", Registered: 4}, nil
}

func (s *stubDeps) CastVote(_ context.Context, _ int, _ model.PlayerID, format model.Format) (vote.Result, error) {
	if s.voteErr != nil {
		return vote.Result{}, s.voteErr
	}
	s.castVotes = append(s.castVotes, format)
	return vote.Result{
		Outcome: vote.OutcomeRecorded,
		Tallies: map[model.Format]int{format: 1},
	}, nil
}

func (s *stubDeps) ScheduleForcedFormat(_ context.Context, at time.Time, format model.Format) error {
	if at.Year() < 2024 {
		return clock.ErrPastTime
	}
	s.formats = append(s.formats, clock.Override{Time: at, Format: format})
	return nil
}

func (s *stubDeps) RemoveForcedFormat(_ context.Context, at time.Time) bool {
	for i, o := range s.formats {
		if o.Time.Equal(at) {
			s.formats = append(s.formats[:i], s.formats[i+1:]...)
			return true
		}
	}
	return false
}

func (s *stubDeps) ForcedFormats() []clock.Override { return s.formats }

func (s *stubDeps) ScheduleSkip(context.Context, time.Time) error { return nil }

func (s *stubDeps) Skips() []time.Time { return nil }

func (s *stubDeps) Settings() map[string]string { return s.settings }

func (s *stubDeps) UpdateSettings(_ context.Context, values map[string]string) error {
	if s.updateErr != nil {
		return s.updateErr
	}
	for k, v := range values {
		s.settings[k] = v
	}
	return nil
}

func newTestMux(deps *stubDeps) *http.ServeMux {
	mux := http.NewServeMux()
	NewServer(deps).Register(mux)
	return mux
}

func doRequest(mux *http.ServeMux, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestQueueEndpoints(t *testing.T) {
	Convey("Given the API over a healthy service", t, func() {
		deps := &stubDeps{settings: map[string]string{"rating_threshold": "100"}}
		mux := newTestMux(deps)

		Convey("A join round-trips", func() {
			rec := doRequest(mux, http.MethodPost, "/queue/join",
				`{"player_id":"p01","name":"Alice","host":true}`)
			So(rec.Code, ShouldEqual, http.StatusOK)

			var resp joinResponse
			So(json.Unmarshal(rec.Body.Bytes(), &resp), ShouldBeNil)
			So(resp.Transition, ShouldEqual, "new")
			So(resp.Rating, ShouldEqual, 1200)
			So(resp.Registered, ShouldEqual, 4)
		})

		Convey("A join without a player id is a bad request", func() {
			rec := doRequest(mux, http.MethodPost, "/queue/join", `{"name":"Alice"}`)
			So(rec.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("Malformed JSON is a bad request", func() {
			rec := doRequest(mux, http.MethodPost, "/queue/join", `{"player_id":`)
			So(rec.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("A join with no active event maps to 404", func() {
			deps.joinErr = app.ErrNoEvent
			rec := doRequest(mux, http.MethodPost, "/queue/join", `{"player_id":"p01"}`)
			So(rec.Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("A join after the close maps to 409", func() {
			deps.joinErr = roster.ErrNotGathering
			rec := doRequest(mux, http.MethodPost, "/queue/join", `{"player_id":"p01"}`)
			So(rec.Code, ShouldEqual, http.StatusConflict)
		})

		Convey("Dropping an unregistered player maps to 404", func() {
			deps.dropErr = roster.ErrNotRegistered
			rec := doRequest(mux, http.MethodPost, "/queue/drop", `{"player_id":"p01"}`)
			So(rec.Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("The roster view is served", func() {
			rec := doRequest(mux, http.MethodGet, "/roster", "")
			So(rec.Code, ShouldEqual, http.StatusOK)
			So(rec.Body.String(), ShouldContainSubstring, `"gathering"`)
		})

		Convey("An extension of zero minutes is refused", func() {
			rec := doRequest(mux, http.MethodPost, "/queue/extend", `{"minutes":0}`)
			So(rec.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("A valid extension returns the new deadline", func() {
			rec := doRequest(mux, http.MethodPost, "/queue/extend", `{"minutes":3}`)
			So(rec.Code, ShouldEqual, http.StatusOK)
			So(rec.Body.String(), ShouldContainSubstring, "12:03:00Z")
		})

		Convey("The wrong method 404s", func() {
			rec := doRequest(mux, http.MethodGet, "/queue/join", "")
			So(rec.Code, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestVoteEndpoint(t *testing.T) {
	Convey("Given the vote endpoint", t, func() {
		deps := &stubDeps{}
		mux := newTestMux(deps)

		Convey("A cast is recorded with its tallies", func() {
			rec := doRequest(mux, http.MethodPost, "/rooms/2/vote",
				`{"player_id":"p01","format":"3v3"}`)
			So(rec.Code, ShouldEqual, http.StatusOK)

			var resp voteResponse
			So(json.Unmarshal(rec.Body.Bytes(), &resp), ShouldBeNil)
			So(resp.Outcome, ShouldEqual, "recorded")
			So(resp.Tallies["3v3"], ShouldEqual, 1)
			So(deps.castVotes, ShouldResemble, []model.Format{model.FormatTrio})
		})

		Convey("A malformed room index is a bad request", func() {
			rec := doRequest(mux, http.MethodPost, "/rooms/two/vote",
				`{"player_id":"p01","format":"3v3"}`)
			So(rec.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("An unknown format is a bad request", func() {
			rec := doRequest(mux, http.MethodPost, "/rooms/1/vote",
				`{"player_id":"p01","format":"5v5"}`)
			So(rec.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("A decided poll maps to 409", func() {
			deps.voteErr = vote.ErrDecided
			rec := doRequest(mux, http.MethodPost, "/rooms/1/vote",
				`{"player_id":"p01","format":"3v3"}`)
			So(rec.Code, ShouldEqual, http.StatusConflict)
		})

		Convey("An unseated voter maps to 403", func() {
			deps.voteErr = vote.ErrNotEligible
			rec := doRequest(mux, http.MethodPost, "/rooms/1/vote",
				`{"player_id":"p01","format":"3v3"}`)
			So(rec.Code, ShouldEqual, http.StatusForbidden)
		})

		Convey("A voter on cooldown maps to 429", func() {
			deps.voteErr = app.ErrOnCooldown
			rec := doRequest(mux, http.MethodPost, "/rooms/1/vote",
				`{"player_id":"p01","format":"3v3"}`)
			So(rec.Code, ShouldEqual, http.StatusTooManyRequests)
		})
	})
}

func TestScheduleEndpoints(t *testing.T) {
	Convey("Given the schedule endpoints", t, func() {
		deps := &stubDeps{}
		mux := newTestMux(deps)

		Convey("An override is scheduled, listed and removed", func() {
			rec := doRequest(mux, http.MethodPost, "/schedule/formats",
				`{"time":"2030-01-01T15:00:00Z","format":"6v6"}`)
			So(rec.Code, ShouldEqual, http.StatusOK)

			rec = doRequest(mux, http.MethodGet, "/schedule/formats", "")
			So(rec.Code, ShouldEqual, http.StatusOK)
			So(rec.Body.String(), ShouldContainSubstring, "6v6")

			rec = doRequest(mux, http.MethodDelete,
				"/schedule/formats?time=2030-01-01T15:00:00Z", "")
			So(rec.Code, ShouldEqual, http.StatusOK)
			So(deps.formats, ShouldBeEmpty)
		})

		Convey("Removing a missing override maps to 404", func() {
			rec := doRequest(mux, http.MethodDelete,
				"/schedule/formats?time=2030-01-01T15:00:00Z", "")
			So(rec.Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("A past override maps to 400", func() {
			rec := doRequest(mux, http.MethodPost, "/schedule/formats",
				`{"time":"2020-01-01T15:00:00Z","format":"6v6"}`)
			So(rec.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("A skip with a malformed time is a bad request", func() {
			rec := doRequest(mux, http.MethodPost, "/schedule/skips", `{"time":"noonish"}`)
			So(rec.Code, ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestConfigEndpoint(t *testing.T) {
	Convey("Given the config endpoint", t, func() {
		deps := &stubDeps{settings: map[string]string{"rating_threshold": "100"}}
		mux := newTestMux(deps)

		Convey("GET returns the current values", func() {
			rec := doRequest(mux, http.MethodGet, "/config", "")
			So(rec.Code, ShouldEqual, http.StatusOK)
			So(rec.Body.String(), ShouldContainSubstring, `"rating_threshold":"100"`)
		})

		Convey("PUT applies and echoes the update", func() {
			rec := doRequest(mux, http.MethodPut, "/config", `{"rating_threshold":"65"}`)
			So(rec.Code, ShouldEqual, http.StatusOK)
			So(deps.settings["rating_threshold"], ShouldEqual, "65")
		})

		Convey("An unknown key maps to 400", func() {
			deps.updateErr = app.ErrUnknownSetting
			rec := doRequest(mux, http.MethodPut, "/config", `{"color_scheme":"mauve"}`)
			So(rec.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("An empty body is a bad request", func() {
			rec := doRequest(mux, http.MethodPut, "/config", `{}`)
			So(rec.Code, ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestHealthEndpoint(t *testing.T) {
	Convey("The health endpoint answers ok", t, func() {
		mux := newTestMux(&stubDeps{})
		rec := doRequest(mux, http.MethodGet, "/healthz", "")
		So(rec.Code, ShouldEqual, http.StatusOK)
		So(rec.Body.String(), ShouldContainSubstring, "ok")
	})
}
