package app

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/mklounge/squadqueue/internal/adapters/messaging"
	"github.com/mklounge/squadqueue/internal/clock"
	"github.com/mklounge/squadqueue/internal/domain/assign"
	"github.com/mklounge/squadqueue/internal/domain/model"
	"github.com/mklounge/squadqueue/internal/domain/roster"
	"github.com/mklounge/squadqueue/internal/domain/vote"
	"github.com/mklounge/squadqueue/pkg/logger"
	"github.com/mklounge/squadqueue/pkg/metrics"
)

// Join registers the identity in the gathering event, or updates host
// intent on a re-join.
func (s *Service) Join(ctx context.Context, id model.PlayerID, name string, wantsHost, allowPlacement bool) (roster.JoinResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.roster == nil {
		return roster.JoinResult{}, ErrNoEvent
	}
	result, err := s.roster.Join(ctx, id, name, wantsHost, allowPlacement)
	if err != nil {
		metrics.RecordRosterRejection("join")
		return roster.JoinResult{}, err
	}

	metrics.RecordJoin(result.Transition.String())
	metrics.UpdateRegisteredTeams(result.Registered)
	s.log.Info(ctx, "player joined",
		logger.String("player", string(id)),
		logger.String("transition", result.Transition.String()),
		logger.Int("registered", result.Registered))
	return result, nil
}

// Drop removes the identity's team from the gathering event.
func (s *Service) Drop(ctx context.Context, id model.PlayerID) (roster.DropResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.roster == nil {
		return roster.DropResult{}, ErrNoEvent
	}
	result, err := s.roster.Drop(id)
	if err != nil {
		metrics.RecordRosterRejection("drop")
		return roster.DropResult{}, err
	}

	metrics.RecordDrop()
	metrics.UpdateRegisteredTeams(result.Registered)
	s.log.Info(ctx, "player dropped",
		logger.String("player", string(id)),
		logger.Int("registered", result.Registered))
	return result, nil
}

// ToggleHost updates host intent for a registered identity.
func (s *Service) ToggleHost(ctx context.Context, id model.PlayerID, wantsHost bool) (roster.JoinTransition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.roster == nil {
		return 0, ErrNoEvent
	}
	transition, err := s.roster.ToggleHost(id, wantsHost)
	if err != nil {
		return 0, err
	}
	s.log.Info(ctx, "host intent updated",
		logger.String("player", string(id)),
		logger.String("transition", transition.String()))
	return transition, nil
}

// Extend shifts the gathering event's close deadline by delta, which may
// be negative. A closed event cannot be reopened.
func (s *Service) Extend(ctx context.Context, delta time.Duration) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return time.Time{}, ErrNoEvent
	}
	if s.current.State != model.StateGathering {
		return time.Time{}, ErrEventClosed
	}
	s.current.ExtraExtension += delta
	deadline := s.policy.Deadline(s.current)
	s.log.Info(ctx, "deadline adjusted",
		logger.Duration("delta", delta), logger.Time("deadline", deadline))
	return deadline, nil
}

// Annul discards the active and scheduled events without seating rooms.
// With resume false the queue also sits out the rest of the current slot.
func (s *Service) Annul(ctx context.Context, resume bool) error {
	s.mu.Lock()

	if s.current == nil && s.next == nil {
		s.mu.Unlock()
		return ErrNoEvent
	}
	if s.current != nil {
		s.current.State = model.StateArchived
		s.current = nil
		s.roster = nil
		metrics.UpdateRegisteredTeams(0)
	}
	s.next = nil
	if !resume {
		open, _, _ := s.schedule.Times(s.now().UTC())
		s.pausedUntil = open.Add(s.interval)
	}
	s.mu.Unlock()

	metrics.RecordEventAnnulled()
	s.log.Warn(ctx, "event annulled", logger.Any("resume", resume))
	messaging.Announce(ctx, s.sink, s.log, rosterDestination,
		"The current event has been annulled by an operator.")
	return nil
}

// CastVote records a format vote for the given room of the most recently
// seated event. Voters on a cooldown are refused before the ballot sees
// the cast.
func (s *Service) CastVote(ctx context.Context, roomIndex int, voter model.PlayerID, format model.Format) (vote.Result, error) {
	s.mu.Lock()
	event, room := s.latestRoomLocked(roomIndex)
	var ballot *vote.Ballot
	if event != nil && room != nil {
		ballot = s.ballots[ballotKey(event.ID, room.Index)]
	}
	s.mu.Unlock()

	if room == nil {
		return vote.Result{}, ErrRoomNotFound
	}
	if room.Cancelled {
		return vote.Result{}, ErrRoomCancelled
	}
	if ballot == nil {
		return vote.Result{}, vote.ErrDecided
	}
	if !s.cooldowns.Ready(voter, s.now().UTC()) {
		return vote.Result{}, fmt.Errorf("%w: %s", ErrOnCooldown, voter)
	}

	result, err := ballot.CastVote(voter, format)
	if err != nil {
		return vote.Result{}, err
	}
	metrics.RecordVoteCast(format.String())

	if result.Outcome == vote.OutcomeDecided {
		s.mu.Lock()
		s.finalizeRoomLocked(ctx, room, result.Winner, "quorum")
		s.mu.Unlock()
	}
	return result, nil
}

// latestRoomLocked finds the room in the newest event that reached room
// assignment.
func (s *Service) latestRoomLocked(roomIndex int) (*model.Event, *model.Room) {
	for i := len(s.archive) - 1; i >= 0; i-- {
		event := s.archive[i]
		if event.State != model.StateRoomsAssigned {
			continue
		}
		return event, event.RoomByIndex(roomIndex)
	}
	return nil, nil
}

// ScheduleForcedFormat pins a format on the event advertised at the given
// time. Scheduling the same time again replaces the previous format.
func (s *Service) ScheduleForcedFormat(ctx context.Context, at time.Time, format model.Format) error {
	if err := s.schedule.ScheduleOverride(at, format, s.now().UTC()); err != nil {
		return err
	}
	s.log.Info(ctx, "forced format scheduled",
		logger.Time("display", at), logger.String("format", format.String()))
	return nil
}

// RemoveForcedFormat drops the override for the given advertised time.
func (s *Service) RemoveForcedFormat(ctx context.Context, at time.Time) bool {
	removed := s.schedule.RemoveOverride(at)
	if removed {
		s.log.Info(ctx, "forced format removed", logger.Time("display", at))
	}
	return removed
}

// ForcedFormats lists the pending overrides in time order.
func (s *Service) ForcedFormats() []clock.Override {
	return s.schedule.Overrides()
}

// Skips lists the pending skip times in order.
func (s *Service) Skips() []time.Time {
	return s.schedule.Skips()
}

// ScheduleSkip suppresses the event advertised at the given time.
func (s *Service) ScheduleSkip(ctx context.Context, at time.Time) error {
	if err := s.schedule.ScheduleSkip(at, s.now().UTC()); err != nil {
		return err
	}
	s.log.Info(ctx, "slot skip scheduled", logger.Time("display", at))
	return nil
}

// PlayerView is one roster entry for presentation.
type PlayerView struct {
	ID       model.PlayerID `json:"id"`
	Name     string         `json:"name"`
	Rating   int            `json:"rating"`
	Host     bool           `json:"host"`
	Adjusted bool           `json:"adjusted"`
	Late     bool           `json:"late,omitempty"`
}

// RoomView is one seated room for presentation.
type RoomView struct {
	Index     int            `json:"index"`
	Format    string         `json:"format"`
	Decided   bool           `json:"decided"`
	Cancelled bool           `json:"cancelled"`
	AvgRating float64        `json:"avg_rating"`
	Players   []PlayerView   `json:"players"`
	Hosts     []string       `json:"hosts,omitempty"`
	Tallies   map[string]int `json:"tallies,omitempty"`
}

// RosterView is a snapshot of the active or most recent event.
type RosterView struct {
	State       string       `json:"state"`
	StartTime   time.Time    `json:"start_time"`
	DisplayTime time.Time    `json:"display_time"`
	Format      string       `json:"format,omitempty"`
	Registered  int          `json:"registered"`
	Players     []PlayerView `json:"players"`
	Rooms       []RoomView   `json:"rooms,omitempty"`
}

// Roster returns a snapshot of the gathering event, falling back to the
// newest seated event when nothing is gathering.
func (s *Service) Roster() (RosterView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	event := s.current
	if event == nil {
		for i := len(s.archive) - 1; i >= 0; i-- {
			if s.archive[i].State == model.StateRoomsAssigned {
				event = s.archive[i]
				break
			}
		}
	}
	if event == nil {
		return RosterView{}, ErrNoEvent
	}

	view := RosterView{
		State:       event.State.String(),
		StartTime:   event.StartTime,
		DisplayTime: event.DisplayTime,
		Registered:  event.CountRegistered(),
	}
	if event.ForcedFormat != model.FormatNone {
		view.Format = event.ForcedFormat.String()
	}
	players := event.PlayersOnConfirmedTeams()
	cutoff := (len(players) / event.RoomCapacity()) * event.RoomCapacity()
	for i, p := range players {
		pv := playerView(p)
		pv.Late = i >= cutoff
		view.Players = append(view.Players, pv)
	}
	for _, room := range event.Rooms {
		rv := RoomView{
			Index:     room.Index,
			Format:    room.Format.String(),
			Decided:   room.Decided,
			Cancelled: room.Cancelled,
			AvgRating: room.AvgRating(),
		}
		for _, p := range room.Players {
			rv.Players = append(rv.Players, playerView(p))
		}
		for _, host := range room.Hosts {
			rv.Hosts = append(rv.Hosts, host.Name)
		}
		if ballot, ok := s.ballots[ballotKey(event.ID, room.Index)]; ok && !room.Decided {
			rv.Tallies = make(map[string]int)
			for f, n := range ballot.Tallies() {
				rv.Tallies[f.String()] = n
			}
		}
		view.Rooms = append(view.Rooms, rv)
	}
	return view, nil
}

func playerView(p *model.Player) PlayerView {
	return PlayerView{
		ID:       p.ID,
		Name:     p.Name,
		Rating:   p.Rating,
		Host:     p.Host,
		Adjusted: p.IsAdjusted(),
	}
}

// Mutable setting keys.
const (
	SettingRatingThreshold = "rating_threshold"
	SettingVoteTimeout     = "vote_timeout_seconds"
	SettingEventLifetime   = "event_lifetime_minutes"
)

// Settings returns the current values of the mutable settings.
func (s *Service) Settings() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := map[string]string{
		SettingVoteTimeout:   strconv.Itoa(int(s.voteTimeout / time.Second)),
		SettingEventLifetime: strconv.Itoa(int(s.lifetime / time.Minute)),
	}
	if ranged, ok := s.strategy.(*assign.RangeMinimized); ok {
		out[SettingRatingThreshold] = strconv.Itoa(ranged.Threshold)
	}
	return out
}

// UpdateSettings applies operator-tuned values and persists them. Unknown
// keys and malformed values are rejected before anything is applied.
func (s *Service) UpdateSettings(ctx context.Context, values map[string]string) error {
	parsed := make(map[string]int, len(values))
	for key, raw := range values {
		switch key {
		case SettingRatingThreshold, SettingVoteTimeout, SettingEventLifetime:
		default:
			return fmt.Errorf("%w: %s", ErrUnknownSetting, key)
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return fmt.Errorf("%w: %s=%q", ErrBadSettingValue, key, raw)
		}
		parsed[key] = n
	}

	s.mu.Lock()
	for key, n := range parsed {
		switch key {
		case SettingRatingThreshold:
			if ranged, ok := s.strategy.(*assign.RangeMinimized); ok {
				ranged.Threshold = n
			}
		case SettingVoteTimeout:
			s.voteTimeout = time.Duration(n) * time.Second
		case SettingEventLifetime:
			s.lifetime = time.Duration(n) * time.Minute
		}
	}
	s.mu.Unlock()

	if s.store != nil {
		if err := s.store.Save(ctx, values); err != nil {
			metrics.RecordErrorByComponent("settings", "save")
			return fmt.Errorf("persisting settings: %w", err)
		}
	}
	metrics.RecordSettingsWrite()
	s.log.Info(ctx, "settings updated", logger.Int("keys", len(values)))
	return nil
}
