// Package roster tracks team registration for a single event.
//
// All mutations assume the caller holds the event's mutual-exclusion scope;
// the scheduler serializes joins and drops against the close decision.
package roster

import (
	"context"
	"fmt"

	"github.com/mklounge/squadqueue/internal/domain/model"
)

// Rating is the provider's answer for one identity.
type Rating struct {
	Value int
	Name  string
}

// RatingSource resolves a player's rating at join time. The boolean is false
// when the identity is unknown to the provider.
type RatingSource interface {
	Lookup(ctx context.Context, id model.PlayerID) (Rating, bool, error)
}

// JoinTransition classifies what a join request did.
type JoinTransition int

const (
	// TransitionNewJoin means a new team was registered.
	TransitionNewJoin JoinTransition = iota + 1
	// TransitionAlreadyHost means the player re-joined as host while already a host.
	TransitionAlreadyHost
	// TransitionHostToNonHost means a host withdrew host intent.
	TransitionHostToNonHost
	// TransitionNonHostToHost means a registered player volunteered to host.
	TransitionNonHostToHost
	// TransitionAlreadyJoined means a non-host re-joined without host intent.
	TransitionAlreadyJoined
)

// String returns a stable label for logging and metrics.
func (t JoinTransition) String() string {
	switch t {
	case TransitionNewJoin:
		return "new"
	case TransitionAlreadyHost:
		return "host_to_host"
	case TransitionHostToNonHost:
		return "host_to_nonhost"
	case TransitionNonHostToHost:
		return "nonhost_to_host"
	case TransitionAlreadyJoined:
		return "nonhost_to_nonhost"
	default:
		return "unknown"
	}
}

// JoinResult reports the outcome of an accepted join.
type JoinResult struct {
	Transition JoinTransition
	Player     *model.Player
	Registered int // confirmed team count after the join
	Placement  bool
}

// DropResult reports the outcome of an accepted drop.
type DropResult struct {
	Removed    []*model.Player
	Registered int
}

// Option applies a configuration option to the Manager.
type Option func(*Manager)

// WithRatingBounds sets the clamp bounds applied to fetched ratings.
func WithRatingBounds(floor, ceiling int) Option {
	return func(m *Manager) {
		if floor <= ceiling {
			m.floor = floor
			m.ceiling = ceiling
		}
	}
}

// WithPlacementRating sets the starting rating for unrated placement players.
func WithPlacementRating(rating int) Option {
	return func(m *Manager) { m.placement = rating }
}

// Manager mutates one event's roster.
type Manager struct {
	event   *model.Event
	ratings RatingSource

	floor     int
	ceiling   int
	placement int
}

// NewManager creates a roster manager for the given event.
func NewManager(event *model.Event, ratings RatingSource, opts ...Option) *Manager {
	m := &Manager{
		event:   event,
		ratings: ratings,
		floor:   0,
		ceiling: 1 << 30,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Event returns the managed event.
func (m *Manager) Event() *model.Event { return m.event }

// Join registers the identity, or updates host intent on a re-join. A re-join
// never duplicates the team. allowPlacement lets identities unknown to the
// rating provider in with the configured placement rating.
func (m *Manager) Join(ctx context.Context, id model.PlayerID, name string, wantsHost, allowPlacement bool) (JoinResult, error) {
	if m.event.State != model.StateGathering {
		return JoinResult{}, ErrNotGathering
	}

	if team := m.event.CheckPlayer(id); team != nil {
		player := team.GetPlayer(id)
		wasHost := player.Host
		player.Host = wantsHost
		return JoinResult{
			Transition: classifyRejoin(wasHost, wantsHost),
			Player:     player,
			Registered: m.event.CountRegistered(),
		}, nil
	}

	rating, known, err := m.ratings.Lookup(ctx, id)
	if err != nil {
		return JoinResult{}, fmt.Errorf("rating lookup for %s: %w", id, err)
	}

	placement := false
	if !known {
		if !allowPlacement {
			return JoinResult{}, fmt.Errorf("%w: %s", ErrUnknownPlayer, id)
		}
		rating = Rating{Value: m.placement, Name: name}
		placement = true
	}
	if rating.Name == "" {
		rating.Name = name
	}

	player := &model.Player{
		ID:        id,
		Name:      rating.Name,
		Rating:    rating.Value,
		Adjusted:  model.ClampRating(rating.Value, m.floor, m.ceiling),
		Confirmed: true,
		Host:      wantsHost,
	}
	m.event.Teams = append(m.event.Teams, model.NewTeam(player))

	return JoinResult{
		Transition: TransitionNewJoin,
		Player:     player,
		Registered: m.event.CountRegistered(),
		Placement:  placement,
	}, nil
}

// Drop removes the identity's team entirely.
func (m *Manager) Drop(id model.PlayerID) (DropResult, error) {
	if m.event.State != model.StateGathering {
		return DropResult{}, ErrNotGathering
	}
	for i, team := range m.event.Teams {
		if team.HasPlayer(id) {
			m.event.Teams = append(m.event.Teams[:i], m.event.Teams[i+1:]...)
			return DropResult{
				Removed:    team.Players,
				Registered: m.event.CountRegistered(),
			}, nil
		}
	}
	return DropResult{}, fmt.Errorf("%w: %s", ErrNotRegistered, id)
}

// ToggleHost updates host intent for an already-registered identity.
func (m *Manager) ToggleHost(id model.PlayerID, wantsHost bool) (JoinTransition, error) {
	if m.event.State != model.StateGathering {
		return 0, ErrNotGathering
	}
	team := m.event.CheckPlayer(id)
	if team == nil {
		return 0, fmt.Errorf("%w: %s", ErrNotRegistered, id)
	}
	player := team.GetPlayer(id)
	wasHost := player.Host
	player.Host = wantsHost
	return classifyRejoin(wasHost, wantsHost), nil
}

// OnTimeAndLate splits confirmed players at the late cutoff. The cutoff index
// is the largest multiple of the room capacity that fits the confirmed count;
// players beyond it, in join order, are late.
func (m *Manager) OnTimeAndLate() (onTime, late []*model.Player) {
	players := m.event.PlayersOnConfirmedTeams()
	cutoff := (len(players) / m.event.RoomCapacity()) * m.event.RoomCapacity()
	return players[:cutoff], players[cutoff:]
}

func classifyRejoin(wasHost, wantsHost bool) JoinTransition {
	switch {
	case wasHost && wantsHost:
		return TransitionAlreadyHost
	case wasHost && !wantsHost:
		return TransitionHostToNonHost
	case !wasHost && wantsHost:
		return TransitionNonHostToHost
	default:
		return TransitionAlreadyJoined
	}
}
