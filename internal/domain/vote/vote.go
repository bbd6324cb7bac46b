// Package vote runs the per-room format poll.
//
// A ballot is independent of any presentation layer; anything that can
// accept votes implements Votable. Tallies are keyed by the format enum so
// a missing option is a compile-time mistake, not a stray map key.
package vote

import (
	"math/rand"
	"sync"
	"time"

	"github.com/mklounge/squadqueue/internal/domain/model"
)

// Outcome classifies what a cast did.
type Outcome int

const (
	// OutcomeRecorded means a first vote was counted.
	OutcomeRecorded Outcome = iota + 1
	// OutcomeChanged means a prior vote moved to a different option.
	OutcomeChanged
	// OutcomeRetracted means a repeat vote for the same option withdrew it.
	OutcomeRetracted
	// OutcomeDecided means this cast reached the quorum.
	OutcomeDecided
)

// String returns a stable label for logging and API payloads.
func (o Outcome) String() string {
	switch o {
	case OutcomeRecorded:
		return "recorded"
	case OutcomeChanged:
		return "changed"
	case OutcomeRetracted:
		return "retracted"
	case OutcomeDecided:
		return "decided"
	default:
		return "unknown"
	}
}

// Result reports a cast along with the tallies after it.
type Result struct {
	Outcome Outcome
	Winner  model.Format // FormatNone until decided
	Tallies map[model.Format]int
}

// Votable accepts votes from eligible voters.
type Votable interface {
	CastVote(voter model.PlayerID, option model.Format) (Result, error)
}

// Option applies a configuration option to the Ballot.
type Option func(*Ballot)

// WithTimeout sets how long after opening the ballot a decision is forced.
func WithTimeout(d time.Duration) Option {
	return func(b *Ballot) { b.timeout = d }
}

// WithPick overrides the tie-break choice, mainly for tests. pick(n)
// must return a value in [0, n).
func WithPick(pick func(n int) int) Option {
	return func(b *Ballot) { b.pick = pick }
}

// WithOpenedAt overrides the opening time the decision timeout counts from.
func WithOpenedAt(t time.Time) Option {
	return func(b *Ballot) { b.openedAt = t }
}

// Ballot is one room's format poll. All methods are safe for concurrent
// voters; the mutex is per ballot, not global.
type Ballot struct {
	mu sync.Mutex

	eligible map[model.PlayerID]bool
	votes    map[model.Format][]model.PlayerID
	options  []model.Format
	quorum   int

	decided bool
	winner  model.Format

	openedAt time.Time
	timeout  time.Duration
	pick     func(n int) int
}

// NewBallot opens a poll for the seated players. The quorum is the vote
// count that decides the poll instantly.
func NewBallot(seated []*model.Player, options []model.Format, quorum int, opts ...Option) *Ballot {
	b := &Ballot{
		eligible: make(map[model.PlayerID]bool, len(seated)),
		votes:    make(map[model.Format][]model.PlayerID, len(options)),
		options:  options,
		quorum:   quorum,
		openedAt: time.Now().UTC(),
		timeout:  2 * time.Minute,
		pick:     rand.Intn,
	}
	for _, p := range seated {
		b.eligible[p.ID] = true
	}
	for _, f := range options {
		b.votes[f] = nil
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// CastVote implements Votable. A repeat vote for the same option withdraws
// it; a vote for a different option moves atomically, so no voter is ever
// counted in two buckets. The decided flag is set in the same critical
// section as the quorum check so two racing casts cannot both win.
func (b *Ballot) CastVote(voter model.PlayerID, option model.Format) (Result, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.decided {
		return Result{}, ErrDecided
	}
	if !b.eligible[voter] {
		return Result{}, ErrNotEligible
	}
	if _, ok := b.votes[option]; !ok {
		return Result{}, ErrUnknownOption
	}

	prior := model.FormatNone
	for f, voters := range b.votes {
		for i, id := range voters {
			if id == voter {
				prior = f
				b.votes[f] = append(voters[:i], voters[i+1:]...)
				break
			}
		}
	}

	if prior == option {
		return Result{Outcome: OutcomeRetracted, Tallies: b.tallies()}, nil
	}
	b.votes[option] = append(b.votes[option], voter)

	if len(b.votes[option]) >= b.quorum {
		b.decided = true
		b.winner = option
		return Result{Outcome: OutcomeDecided, Winner: option, Tallies: b.tallies()}, nil
	}

	outcome := OutcomeRecorded
	if prior != model.FormatNone {
		outcome = OutcomeChanged
	}
	return Result{Outcome: outcome, Tallies: b.tallies()}, nil
}

// ForceDecision closes the poll on current tallies, breaking ties by
// uniform random choice among the leaders. It reports false when the poll
// had already decided.
func (b *Ballot) ForceDecision() (model.Format, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.decided {
		return b.winner, false
	}

	most := 0
	for _, f := range b.options {
		if n := len(b.votes[f]); n > most {
			most = n
		}
	}
	leaders := make([]model.Format, 0, len(b.options))
	for _, f := range b.options {
		if len(b.votes[f]) == most {
			leaders = append(leaders, f)
		}
	}

	b.decided = true
	b.winner = leaders[b.pick(len(leaders))]
	return b.winner, true
}

// Decided returns the winning format once the poll has decided.
func (b *Ballot) Decided() (model.Format, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.winner, b.decided
}

// Expired reports whether the forced-decision timeout has passed.
func (b *Ballot) Expired(now time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return !b.decided && !now.Before(b.openedAt.Add(b.timeout))
}

// Tallies returns a snapshot of the current vote counts.
func (b *Ballot) Tallies() map[model.Format]int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.tallies()
}

func (b *Ballot) tallies() map[model.Format]int {
	out := make(map[model.Format]int, len(b.options))
	for _, f := range b.options {
		out[f] = len(b.votes[f])
	}
	return out
}
