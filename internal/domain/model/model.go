// Package model contains domain models passed between layers.
package model

import (
	"time"

	"github.com/google/uuid"
)

// PlayerID identifies a player on the chat platform.
type PlayerID string

// Player is one registrant. The rating is fetched once at join time and is
// immutable for the rest of the event.
type Player struct {
	ID        PlayerID
	Name      string
	Rating    int // raw rating from the provider
	Adjusted  int // rating clamped to the configured floor/ceiling
	Confirmed bool
	Host      bool // volunteered to host the room
	Score     int  // per-room score, reported after play
}

// IsAdjusted reports whether clamping changed the player's rating.
func (p *Player) IsAdjusted() bool { return p.Rating != p.Adjusted }

// ClampRating bounds a raw rating to [floor, ceiling] for matchmaking purposes.
func ClampRating(rating, floor, ceiling int) int {
	if rating < floor {
		return floor
	}
	if rating > ceiling {
		return ceiling
	}
	return rating
}

// Team is an ordered list of players. A team counts as registered only when
// every player on it is confirmed.
type Team struct {
	Players []*Player
}

// NewTeam creates a team from the given players.
func NewTeam(players ...*Player) *Team { return &Team{Players: players} }

// AllConfirmed reports whether every player on the team is confirmed.
func (t *Team) AllConfirmed() bool {
	for _, p := range t.Players {
		if !p.Confirmed {
			return false
		}
	}
	return true
}

// AvgRating returns the team's average raw rating.
func (t *Team) AvgRating() float64 {
	if len(t.Players) == 0 {
		return 0
	}
	sum := 0
	for _, p := range t.Players {
		sum += p.Rating
	}
	return float64(sum) / float64(len(t.Players))
}

// HasPlayer reports whether the player is on this team.
func (t *Team) HasPlayer(id PlayerID) bool {
	for _, p := range t.Players {
		if p.ID == id {
			return true
		}
	}
	return false
}

// GetPlayer returns the team member with the given id, or nil.
func (t *Team) GetPlayer(id PlayerID) *Player {
	for _, p := range t.Players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// Room is a fixed-capacity subgroup of seated players. Room 1 is always the
// highest rated. Teams are populated once the room's format is decided.
type Room struct {
	ID        string
	Index     int // 1-based
	Players   []*Player
	Teams     []*Team // set after the format vote decides
	Hosts     []*Player
	Format    Format
	Decided   bool
	Cancelled bool
	ChannelID string
}

// NewRoom creates a room with a fresh id.
func NewRoom(index int, players []*Player) *Room {
	return &Room{ID: uuid.NewString(), Index: index, Players: players}
}

// HighRating returns the highest raw rating in the room.
func (r *Room) HighRating() int {
	high := 0
	for i, p := range r.Players {
		if i == 0 || p.Rating > high {
			high = p.Rating
		}
	}
	return high
}

// LowRating returns the lowest raw rating in the room.
func (r *Room) LowRating() int {
	low := 0
	for i, p := range r.Players {
		if i == 0 || p.Rating < low {
			low = p.Rating
		}
	}
	return low
}

// AvgRating returns the room's average raw rating.
func (r *Room) AvgRating() float64 {
	if len(r.Players) == 0 {
		return 0
	}
	sum := 0
	for _, p := range r.Players {
		sum += p.Rating
	}
	return float64(sum) / float64(len(r.Players))
}

// HasPlayer reports whether the player is seated in this room.
func (r *Room) HasPlayer(id PlayerID) bool {
	for _, p := range r.Players {
		if p.ID == id {
			return true
		}
	}
	return false
}

// EventState is the lifecycle state of an event.
type EventState int

const (
	StateScheduled EventState = iota + 1
	StateGathering
	StateClosed
	StateRoomsAssigned
	StateArchived
)

// String returns the lowercase state name.
func (s EventState) String() string {
	switch s {
	case StateScheduled:
		return "scheduled"
	case StateGathering:
		return "gathering"
	case StateClosed:
		return "closed"
	case StateRoomsAssigned:
		return "rooms_assigned"
	case StateArchived:
		return "archived"
	default:
		return "unknown"
	}
}

// Event is one scheduled matchmaking window.
type Event struct {
	ID          string
	State       EventState
	StartTime   time.Time // close of registration
	DisplayTime time.Time // advertised time
	IsAutomated bool

	// ExtraExtension accumulates manual and automatic extension grants.
	ExtraExtension time.Duration

	// AutoExtendChecked is set once the one-shot auto-extend has been evaluated.
	AutoExtendChecked bool

	ForcedFormat  Format // FormatNone when the rooms vote
	Teams         []*Team // join order preserved
	Rooms         []*Room
	RoomsAssigned bool

	teamSize     int
	roomCapacity int
}

// NewEvent creates an event closing at startTime.
func NewEvent(startTime, displayTime time.Time, teamSize, roomCapacity int, automated bool) *Event {
	return &Event{
		ID:           uuid.NewString(),
		State:        StateScheduled,
		StartTime:    startTime,
		DisplayTime:  displayTime,
		IsAutomated:  automated,
		teamSize:     teamSize,
		roomCapacity: roomCapacity,
	}
}

// TeamSize returns the fixed number of players per team.
func (e *Event) TeamSize() int { return e.teamSize }

// RoomCapacity returns the fixed number of players per room.
func (e *Event) RoomCapacity() int { return e.roomCapacity }

// CountRegistered returns the number of fully confirmed teams.
func (e *Event) CountRegistered() int {
	n := 0
	for _, t := range e.Teams {
		if t.AllConfirmed() {
			n++
		}
	}
	return n
}

// NumConfirmedPlayers returns the total player count across confirmed teams.
func (e *Event) NumConfirmedPlayers() int {
	n := 0
	for _, t := range e.Teams {
		if t.AllConfirmed() {
			n += len(t.Players)
		}
	}
	return n
}

// MaxPossibleRooms returns how many full rooms the confirmed players could
// fill. The assignment strategy may end up producing fewer.
func (e *Event) MaxPossibleRooms() int {
	return e.NumConfirmedPlayers() / e.roomCapacity
}

// ConfirmedTeams returns the fully confirmed teams in join order.
func (e *Event) ConfirmedTeams() []*Team {
	teams := make([]*Team, 0, len(e.Teams))
	for _, t := range e.Teams {
		if t.AllConfirmed() {
			teams = append(teams, t)
		}
	}
	return teams
}

// PlayersOnConfirmedTeams returns players in strict join order. The order is
// load-bearing: the late-player cutoff indexes into it.
func (e *Event) PlayersOnConfirmedTeams() []*Player {
	players := make([]*Player, 0, len(e.Teams))
	for _, t := range e.ConfirmedTeams() {
		players = append(players, t.Players...)
	}
	return players
}

// CheckPlayer returns the team containing the player, or nil.
func (e *Event) CheckPlayer(id PlayerID) *Team {
	for _, t := range e.Teams {
		if t.HasPlayer(id) {
			return t
		}
	}
	return nil
}

// RoomByIndex returns the room with the given 1-based index, or nil.
func (e *Event) RoomByIndex(index int) *Room {
	for _, r := range e.Rooms {
		if r.Index == index {
			return r
		}
	}
	return nil
}
