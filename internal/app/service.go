// Package app wires the matchmaking scheduler together: the event clock,
// roster, close policy, room assignment and the per-room format votes.
//
// All event state is guarded by one mutex. Roster mutations arriving over
// HTTP serialize against the scheduler tick, so a join is either accepted
// before the close decision or rejected outright, never lost.
package app

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/mklounge/squadqueue/internal/adapters/messaging"
	"github.com/mklounge/squadqueue/internal/adapters/provision"
	"github.com/mklounge/squadqueue/internal/clock"
	"github.com/mklounge/squadqueue/internal/domain/assign"
	"github.com/mklounge/squadqueue/internal/domain/model"
	"github.com/mklounge/squadqueue/internal/domain/policy"
	"github.com/mklounge/squadqueue/internal/domain/roster"
	"github.com/mklounge/squadqueue/internal/domain/vote"
	"github.com/mklounge/squadqueue/pkg/logger"
	"github.com/mklounge/squadqueue/pkg/metrics"
)

// rosterDestination is the announcement destination for queue-wide notices.
const rosterDestination = "roster"

// SettingsStore persists operator-tuned values between restarts.
type SettingsStore interface {
	Save(ctx context.Context, values map[string]string) error
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithSink sets the announcement sink.
func WithSink(sink messaging.Sink) Option {
	return func(s *Service) { s.sink = sink }
}

// WithProvisioner sets the room channel provisioner.
func WithProvisioner(p provision.Provisioner) Option {
	return func(s *Service) { s.provisioner = p }
}

// WithRoles sets the room role manager.
func WithRoles(r provision.RoleManager) Option {
	return func(s *Service) { s.roles = r }
}

// WithSettingsStore persists operator changes to the given store.
func WithSettingsStore(store SettingsStore) Option {
	return func(s *Service) { s.store = store }
}

// WithTick sets the scheduler tick period.
func WithTick(d time.Duration) Option {
	return func(s *Service) { s.tick = d }
}

// WithVoteTimeout sets the forced-decision delay for format polls.
func WithVoteTimeout(d time.Duration) Option {
	return func(s *Service) { s.voteTimeout = d }
}

// WithEventLifetime sets how long finished events are retained.
func WithEventLifetime(d time.Duration) Option {
	return func(s *Service) { s.lifetime = d }
}

// WithVoteCooldown rate-limits vote casts per voter.
func WithVoteCooldown(ttl time.Duration) Option {
	return func(s *Service) { s.cooldowns = NewCooldowns(ttl) }
}

// WithLogger sets the logger.
func WithLogger(log logger.Logger) Option {
	return func(s *Service) { s.log = log }
}

// withNow overrides the clock source, for tests.
func withNow(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// Service is the scheduling authority. One instance runs per deployment.
type Service struct {
	log logger.Logger

	schedule *clock.Clock
	policy   *policy.Policy
	strategy assign.Strategy
	ratings  roster.RatingSource

	sink        messaging.Sink
	provisioner provision.Provisioner
	roles       provision.RoleManager
	store       SettingsStore

	teamSize int
	capacity int
	joining  time.Duration
	interval time.Duration

	ratingFloor     int
	ratingCeiling   int
	placementRating int

	tick        time.Duration
	voteTimeout time.Duration
	lifetime    time.Duration

	cooldowns *Cooldowns
	now       func() time.Time

	mu          sync.Mutex
	current     *model.Event
	next        *model.Event
	roster      *roster.Manager
	archive     []*model.Event
	ballots     map[string]*vote.Ballot
	pausedUntil time.Time
	notice      string
}

// New creates the service. schedule supplies event times, strategy the
// room partitioning, pol the close decision, and ratings the join-time
// rating source.
func New(schedule *clock.Clock, strategy assign.Strategy, pol *policy.Policy,
	ratings roster.RatingSource, teamSize, capacity int,
	joining, interval time.Duration, ratingFloor, ratingCeiling, placementRating int,
	opts ...Option) *Service {

	s := &Service{
		log:             logger.Named("app"),
		schedule:        schedule,
		policy:          pol,
		strategy:        strategy,
		ratings:         ratings,
		teamSize:        teamSize,
		capacity:        capacity,
		joining:         joining,
		interval:        interval,
		ratingFloor:     ratingFloor,
		ratingCeiling:   ratingCeiling,
		placementRating: placementRating,
		tick:            20 * time.Second,
		voteTimeout:     2 * time.Minute,
		lifetime:        2 * time.Hour,
		cooldowns:       NewCooldowns(0),
		now:             time.Now,
		ballots:         make(map[string]*vote.Ballot),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run ticks the scheduler until the context is cancelled.
func (s *Service) Run(ctx context.Context) {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	s.log.Info(ctx, "scheduler started", logger.Duration("tick", s.tick))
	for {
		select {
		case <-ctx.Done():
			s.log.Info(ctx, "scheduler stopped")
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick runs one scheduler pass: create the next event, promote it, run
// the close decision, settle vote timeouts, prune the archive and flush
// at most one queued notice. Each phase is isolated so one failure never
// stops the scheduler.
func (s *Service) Tick(ctx context.Context) {
	now := s.now().UTC()

	s.mu.Lock()
	s.createNextLocked(ctx, now)
	s.promoteLocked(ctx, now)
	s.evaluateCloseLocked(ctx, now)
	s.settleVotesLocked(ctx, now)
	s.pruneLocked(ctx, now)
	notice := s.notice
	s.notice = ""
	s.mu.Unlock()

	if notice != "" {
		messaging.Announce(ctx, s.sink, s.log, rosterDestination, notice)
	}
	s.cooldowns.Prune(now)
}

// createNextLocked schedules an event for the current cadence slot when
// nothing is gathering and nothing is already scheduled.
func (s *Service) createNextLocked(ctx context.Context, now time.Time) {
	if s.current != nil || s.next != nil {
		return
	}
	if now.Before(s.pausedUntil) {
		return
	}

	open, start, display := s.schedule.Times(now)
	// Too deep into the window to open a useful queue; wait for the next slot.
	if start.Before(now) {
		return
	}

	if s.schedule.TakeSkip(display) {
		s.pausedUntil = open.Add(s.interval)
		s.notice = "The queue is paused for this slot and will reopen for the next one."
		s.log.Info(ctx, "slot skipped", logger.Time("display", display))
		return
	}

	event := model.NewEvent(start, display, s.teamSize, s.capacity, true)
	if format, ok := s.schedule.TakeOverride(display, now); ok {
		event.ForcedFormat = format
	}
	s.next = event
	metrics.RecordEventScheduled()
	s.log.Info(ctx, "event scheduled",
		logger.Time("start", start), logger.String("format", event.ForcedFormat.String()))
}

// promoteLocked moves the scheduled event into the gathering slot once its
// registration window opens. A scheduled event colliding with an active
// gathering one is dropped, never queued.
func (s *Service) promoteLocked(ctx context.Context, now time.Time) {
	if s.next == nil || now.Before(s.next.StartTime.Add(-s.joining)) {
		return
	}
	next := s.next
	s.next = nil

	if s.current != nil && s.current.State == model.StateGathering {
		metrics.RecordEventConflict()
		s.log.Warn(ctx, "scheduled event dropped, another event is gathering",
			logger.Time("dropped_start", next.StartTime))
		return
	}
	if s.current != nil {
		s.archiveCurrentLocked()
	}

	next.State = model.StateGathering
	s.current = next
	s.roster = roster.NewManager(next, s.ratings,
		roster.WithRatingBounds(s.ratingFloor, s.ratingCeiling),
		roster.WithPlacementRating(s.placementRating),
	)
	metrics.UpdateRegisteredTeams(0)

	format := ""
	if next.ForcedFormat != model.FormatNone {
		format = next.ForcedFormat.String() + " "
	}
	s.notice = fmt.Sprintf("A queue is gathering for the %sevent starting at %s. Join, volunteer to host, or drop at will.",
		format, next.DisplayTime.Format("15:04"))
	s.log.Info(ctx, "event gathering", logger.Time("start", next.StartTime))
}

// evaluateCloseLocked runs the extension policy and, on a close, seats the
// rooms.
func (s *Service) evaluateCloseLocked(ctx context.Context, now time.Time) {
	if s.current == nil || s.current.State != model.StateGathering {
		return
	}

	outcome := s.policy.Evaluate(s.current, now, func() bool {
		result := s.strategy.Assign(s.current.PlayersOnConfirmedTeams(), s.capacity)
		return result.AllValid()
	})
	if outcome.Notice != "" {
		s.notice = outcome.Notice
	}
	if !outcome.Close {
		return
	}

	s.current.State = model.StateClosed
	metrics.RecordEventClosed(outcome.Reason)
	s.log.Info(ctx, "event closed",
		logger.String("reason", outcome.Reason),
		logger.Int("teams", s.current.CountRegistered()))

	s.assignRoomsLocked(ctx)
	s.archiveCurrentLocked()
}

// assignRoomsLocked partitions the closed roster into rooms and opens the
// format polls.
func (s *Service) assignRoomsLocked(ctx context.Context) {
	event := s.current
	result := s.strategy.Assign(event.PlayersOnConfirmedTeams(), s.capacity)
	metrics.RecordAssignmentStatus(result.Status.String())

	switch result.Status {
	case assign.StatusInsufficientPlayers:
		s.notice = "The event was cancelled: not enough players joined to fill a room."
		metrics.RecordRoomCancelled("insufficient_players")
		event.State = model.StateRoomsAssigned
		return
	case assign.StatusEmpty:
		s.notice = fmt.Sprintf(
			"The event was cancelled: no group of %d players fit within the rating threshold (closest spread was %d).",
			s.capacity, assign.RoomDraft{Players: result.Window}.Spread())
		metrics.RecordRoomCancelled("no_valid_window")
		event.State = model.StateRoomsAssigned
		return
	}

	for i, draft := range result.Rooms {
		room := model.NewRoom(i+1, draft.Players)
		room.Format = event.ForcedFormat
		event.Rooms = append(event.Rooms, room)

		if !draft.Valid {
			room.Cancelled = true
			metrics.RecordRoomCancelled("spread_over_threshold")
			s.log.Warn(ctx, "room cancelled, spread over threshold",
				logger.Int("room", room.Index), logger.Int("spread", draft.Spread()))
			continue
		}

		s.provisionRoomLocked(ctx, event, room)
		metrics.RecordRoomAssigned()
		metrics.RecordRoomRatingSpread(float64(draft.Spread()))

		for _, p := range room.Players {
			if p.Host {
				room.Hosts = append(room.Hosts, p)
			}
		}

		if event.ForcedFormat != model.FormatNone {
			s.finalizeRoomLocked(ctx, room, event.ForcedFormat, "forced")
			continue
		}
		s.ballots[ballotKey(event.ID, room.Index)] = vote.NewBallot(
			room.Players, model.Formats(), s.capacity/2,
			vote.WithTimeout(s.voteTimeout),
			vote.WithOpenedAt(s.now().UTC()),
		)
	}

	event.RoomsAssigned = true
	event.State = model.StateRoomsAssigned
}

// provisionRoomLocked creates the room channel and grants visibility.
// Both are best effort; the room survives either failing.
func (s *Service) provisionRoomLocked(ctx context.Context, event *model.Event, room *model.Room) {
	if s.provisioner == nil {
		return
	}
	ch, err := s.provisioner.Create(ctx, provision.Spec{
		EventID:   event.ID,
		RoomIndex: room.Index,
		Name:      fmt.Sprintf("room-%d", room.Index),
	})
	if err != nil {
		metrics.RecordErrorByComponent("provision", "create")
		s.log.Error(ctx, "room channel provisioning failed",
			logger.Int("room", room.Index), logger.Error(err))
		return
	}
	room.ChannelID = ch.ID

	if s.roles == nil {
		return
	}
	for _, p := range room.Players {
		if err := s.roles.Grant(ctx, p.ID, ch.ID); err != nil {
			metrics.RecordErrorByComponent("provision", "role_grant")
			s.log.Warn(ctx, "role grant failed",
				logger.String("player", string(p.ID)), logger.Error(err))
		}
	}
}

// finalizeRoomLocked fixes the room's format, splits players into teams
// and announces the result.
func (s *Service) finalizeRoomLocked(ctx context.Context, room *model.Room, format model.Format, trigger string) {
	room.Format = format
	room.Decided = true
	room.Teams = makeTeams(room.Players, format)
	metrics.RecordVoteDecided(format.String(), trigger)

	destination := room.ChannelID
	if destination == "" {
		destination = rosterDestination
	}
	messaging.Announce(ctx, s.sink, s.log, destination,
		fmt.Sprintf("Room %d plays %s (average rating %.0f). Good luck!",
			room.Index, format, room.AvgRating()))
	s.log.Info(ctx, "room format decided",
		logger.Int("room", room.Index),
		logger.String("format", format.String()),
		logger.String("trigger", trigger))
}

// settleVotesLocked forces a decision on polls that outlived the vote
// timeout.
func (s *Service) settleVotesLocked(ctx context.Context, now time.Time) {
	for _, event := range s.archive {
		if event.State != model.StateRoomsAssigned {
			continue
		}
		for _, room := range event.Rooms {
			if room.Decided || room.Cancelled {
				continue
			}
			ballot, ok := s.ballots[ballotKey(event.ID, room.Index)]
			if !ok || !ballot.Expired(now) {
				continue
			}
			if winner, forced := ballot.ForceDecision(); forced {
				s.finalizeRoomLocked(ctx, room, winner, "timeout")
			}
		}
	}
}

// pruneLocked archives finished events past their lifetime and releases
// their resources.
func (s *Service) pruneLocked(ctx context.Context, now time.Time) {
	kept := s.archive[:0]
	for _, event := range s.archive {
		if now.Sub(event.StartTime) < s.lifetime {
			kept = append(kept, event)
			continue
		}
		event.State = model.StateArchived
		for _, room := range event.Rooms {
			delete(s.ballots, ballotKey(event.ID, room.Index))
			if s.provisioner != nil && room.ChannelID != "" {
				if err := s.provisioner.Release(ctx, room.ChannelID); err != nil {
					s.log.Warn(ctx, "room channel release failed",
						logger.String("channel", room.ChannelID), logger.Error(err))
				}
				for _, p := range room.Players {
					if s.roles != nil {
						_ = s.roles.Revoke(ctx, p.ID, room.ChannelID)
					}
				}
			}
		}
		metrics.RecordEventArchived()
		s.log.Info(ctx, "event archived", logger.Time("start", event.StartTime))
	}
	s.archive = kept
}

func (s *Service) archiveCurrentLocked() {
	if s.current == nil {
		return
	}
	s.archive = append(s.archive, s.current)
	s.current = nil
	s.roster = nil
	metrics.UpdateRegisteredTeams(0)
}

func ballotKey(eventID string, roomIndex int) string {
	return fmt.Sprintf("%s/%d", eventID, roomIndex)
}

// makeTeams shuffles the seated players and chunks them into teams of the
// format's size, highest average rating first.
func makeTeams(players []*model.Player, format model.Format) []*model.Team {
	shuffled := append([]*model.Player(nil), players...)
	rand.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	size := format.TeamSize()
	if size <= 0 {
		size = 1
	}
	teams := make([]*model.Team, 0, len(shuffled)/size)
	for i := 0; i+size <= len(shuffled); i += size {
		teams = append(teams, model.NewTeam(shuffled[i:i+size]...))
	}
	sort.SliceStable(teams, func(i, j int) bool {
		return teams[i].AvgRating() > teams[j].AvgRating()
	})
	return teams
}
