// Package assign partitions an event's confirmed players into rooms.
//
// Two strategies exist. Truncate-and-sort seats the earliest joiners and
// chunks them by rating. Range-minimized balances the rating spread of each
// room against a threshold and can pull late joiners in to repair a room
// that would otherwise be too wide.
package assign

import (
	"fmt"
	"sort"

	"github.com/mklounge/squadqueue/internal/domain/model"
)

// Status classifies an assignment attempt.
type Status int

const (
	// StatusInsufficientPlayers means not even one room could be filled.
	StatusInsufficientPlayers Status = iota + 1
	// StatusTwoOrMoreRooms means multiple rooms were produced.
	StatusTwoOrMoreRooms
	// StatusFound means the single balanced room satisfies the threshold.
	StatusFound
	// StatusEmpty means no window satisfied the threshold even after
	// admitting every late player.
	StatusEmpty
	// StatusSomeInvalid means at least one room could not be repaired below
	// the threshold.
	StatusSomeInvalid
)

// String returns a stable label for logging and metrics.
func (s Status) String() string {
	switch s {
	case StatusInsufficientPlayers:
		return "insufficient_players"
	case StatusTwoOrMoreRooms:
		return "two_or_more_rooms"
	case StatusFound:
		return "found"
	case StatusEmpty:
		return "empty"
	case StatusSomeInvalid:
		return "some_invalid"
	default:
		return "unknown"
	}
}

// RoomDraft is one proposed room, highest rated player first.
type RoomDraft struct {
	Players []*model.Player
	Valid   bool
}

// Spread returns the adjusted-rating spread of the draft.
func (d RoomDraft) Spread() int { return spread(d.Players) }

// Result is the outcome of one assignment attempt.
type Result struct {
	Status Status
	Rooms  []RoomDraft

	// Window holds the last candidate window when Status is StatusEmpty,
	// kept for explanatory messaging.
	Window []*model.Player
}

// Players returns every seated player across all drafted rooms.
func (r Result) Players() []*model.Player {
	players := make([]*model.Player, 0, len(r.Rooms)*12)
	for _, room := range r.Rooms {
		players = append(players, room.Players...)
	}
	return players
}

// AllValid reports whether every drafted room satisfies the threshold.
func (r Result) AllValid() bool {
	for _, room := range r.Rooms {
		if !room.Valid {
			return false
		}
	}
	return true
}

// Strategy produces room assignments from confirmed players in join order.
// The strategy is chosen once at startup, not per close.
type Strategy interface {
	// Assign partitions players (strict join order) into rooms of exactly
	// capacity players each.
	Assign(players []*model.Player, capacity int) Result
	// Name returns the strategy's config name.
	Name() string
}

// Strategy config names.
const (
	StrategyTruncate = "truncate"
	StrategyBalanced = "balanced"
)

// New returns the strategy registered under name.
func New(name string, threshold int) (Strategy, error) {
	switch name {
	case StrategyTruncate:
		return &TruncateSort{}, nil
	case StrategyBalanced:
		return &RangeMinimized{Threshold: threshold}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
	}
}

// TruncateSort seats the first roomCount*capacity players in join order and
// chunks them by descending rating. Surplus players are excluded.
type TruncateSort struct{}

// Name implements Strategy.
func (s *TruncateSort) Name() string { return StrategyTruncate }

// Assign implements Strategy.
func (s *TruncateSort) Assign(players []*model.Player, capacity int) Result {
	roomCount := len(players) / capacity
	if roomCount == 0 {
		return Result{Status: StatusInsufficientPlayers}
	}
	seated := sortedDescending(players[:roomCount*capacity])
	result := Result{Status: StatusFound}
	if roomCount > 1 {
		result.Status = StatusTwoOrMoreRooms
	}
	for i := 0; i < roomCount; i++ {
		result.Rooms = append(result.Rooms, RoomDraft{
			Players: seated[i*capacity : (i+1)*capacity],
			Valid:   true,
		})
	}
	return result
}

// RangeMinimized balances each room's adjusted-rating spread against
// Threshold, admitting late joiners one at a time when the on-time group is
// too wide.
type RangeMinimized struct {
	Threshold int
}

// Name implements Strategy.
func (s *RangeMinimized) Name() string { return StrategyBalanced }

// Assign implements Strategy.
func (s *RangeMinimized) Assign(players []*model.Player, capacity int) Result {
	roomCount := len(players) / capacity
	switch {
	case roomCount == 0:
		return Result{Status: StatusInsufficientPlayers}
	case roomCount == 1:
		return s.assignOne(players, capacity)
	default:
		return s.assignMany(players, capacity, roomCount)
	}
}

// assignOne starts from the first capacity joiners and widens the candidate
// pool with late players until a window satisfies the threshold.
func (s *RangeMinimized) assignOne(players []*model.Player, capacity int) Result {
	pool := make([]*model.Player, capacity, len(players))
	copy(pool, players[:capacity])
	late := players[capacity:]

	var window []*model.Player
	for {
		window = minimizeRange(pool, capacity)
		if s.valid(window) {
			return Result{
				Status: StatusFound,
				Rooms:  []RoomDraft{{Players: sortedDescending(window), Valid: true}},
			}
		}
		if len(late) == 0 {
			return Result{Status: StatusEmpty, Window: sortedDescending(window)}
		}
		pool = append(pool, late[0])
		late = late[1:]
	}
}

// assignMany chunks the on-time players by descending rating and repairs
// each too-wide room from a shared pool of late players.
func (s *RangeMinimized) assignMany(players []*model.Player, capacity, roomCount int) Result {
	onTime := sortedDescending(players[:roomCount*capacity])
	pool := append([]*model.Player(nil), players[roomCount*capacity:]...)

	result := Result{Status: StatusTwoOrMoreRooms}
	for i := 0; i < roomCount; i++ {
		room := onTime[i*capacity : (i+1)*capacity]
		repaired, ok := s.repair(room, &pool, capacity)
		if !ok {
			result.Status = StatusSomeInvalid
		}
		result.Rooms = append(result.Rooms, RoomDraft{
			Players: sortedDescending(repaired),
			Valid:   ok,
		})
	}
	return result
}

// repair pulls pool players left to right into the candidate set until a
// window satisfies the threshold. On success the window is seated, consumed
// pool entries are removed, and players swapped out of the room go to the
// front of the pool for later rooms. On failure the room and pool are
// untouched.
func (s *RangeMinimized) repair(room []*model.Player, pool *[]*model.Player, capacity int) ([]*model.Player, bool) {
	if s.valid(room) {
		return room, true
	}
	candidates := append([]*model.Player(nil), room...)
	for taken := 1; taken <= len(*pool); taken++ {
		candidates = append(candidates, (*pool)[taken-1])
		window := minimizeRange(candidates, capacity)
		if !s.valid(window) {
			continue
		}
		seated := make(map[model.PlayerID]bool, len(window))
		for _, p := range window {
			seated[p.ID] = true
		}
		swappedOut := make([]*model.Player, 0, taken)
		for _, p := range candidates {
			if !seated[p.ID] {
				swappedOut = append(swappedOut, p)
			}
		}
		*pool = append(swappedOut, (*pool)[taken:]...)
		return window, true
	}
	return room, false
}

func (s *RangeMinimized) valid(players []*model.Player) bool {
	return len(players) > 0 && spread(players) <= s.Threshold
}

// minimizeRange returns the k players with the smallest adjusted-rating
// spread. It scans contiguous windows of the ascending-sorted list; a tie
// keeps the earlier, lower-rated window. Returns nil when fewer than k
// players are given or k is not at least 2.
func minimizeRange(players []*model.Player, k int) []*model.Player {
	if len(players) < k || k <= 1 {
		return nil
	}
	sorted := sortedAscending(players)
	best := 0
	bestSpread := sorted[k-1].Adjusted - sorted[0].Adjusted
	for lo := 1; lo+k <= len(sorted); lo++ {
		if cur := sorted[lo+k-1].Adjusted - sorted[lo].Adjusted; cur < bestSpread {
			bestSpread = cur
			best = lo
		}
	}
	return sorted[best : best+k]
}

func spread(players []*model.Player) int {
	if len(players) == 0 {
		return 0
	}
	lo, hi := players[0].Adjusted, players[0].Adjusted
	for _, p := range players[1:] {
		if p.Adjusted < lo {
			lo = p.Adjusted
		}
		if p.Adjusted > hi {
			hi = p.Adjusted
		}
	}
	return hi - lo
}

func sortedAscending(players []*model.Player) []*model.Player {
	out := append([]*model.Player(nil), players...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Adjusted < out[j].Adjusted })
	return out
}

func sortedDescending(players []*model.Player) []*model.Player {
	out := append([]*model.Player(nil), players...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Adjusted > out[j].Adjusted })
	return out
}
