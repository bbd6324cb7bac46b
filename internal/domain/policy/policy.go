// Package policy decides, once per scheduler tick, whether a gathering
// event keeps waiting, closes, or earns an extension.
package policy

import (
	"fmt"
	"time"

	"github.com/mklounge/squadqueue/internal/domain/model"
)

// Close reasons.
const (
	CloseDeadline = "deadline"
	CloseFilled   = "filled"
)

// Outcome is the decision for one tick.
type Outcome struct {
	// Close means registration ends on this tick.
	Close bool
	// Reason labels why the event closed.
	Reason string
	// Notice is an announcement to queue for the roster channel, empty
	// when nothing new should be said.
	Notice string
	// Extended is the auto-extension granted on this tick, zero otherwise.
	Extended time.Duration
}

// Option applies a configuration option to the Policy.
type Option func(*Policy)

// WithAutoExtend enables the one-shot automatic extension granted shortly
// before the hard close when the roster is close to filling a room.
func WithAutoExtend(grant time.Duration) Option {
	return func(p *Policy) { p.autoExtend = grant }
}

// Policy evaluates the close decision for automated events. It keeps the
// last notice minute so the waiting announcement repeats at most once per
// clock minute.
type Policy struct {
	extension  time.Duration
	autoExtend time.Duration

	lastNoticeMinute time.Time
}

// New creates a policy with the given extension window.
func New(extension time.Duration, opts ...Option) *Policy {
	p := &Policy{extension: extension}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Deadline returns the hard-close time for the event, manual and automatic
// extensions included.
func (p *Policy) Deadline(event *model.Event) time.Time {
	return event.StartTime.Add(p.extension + event.ExtraExtension)
}

// Evaluate runs the close decision for one tick. allValid reports whether
// every room in the currently proposed assignment meets the rating
// threshold; it is only consulted when the team count is an exact multiple
// of the room capacity.
func (p *Policy) Evaluate(event *model.Event, now time.Time, allValid func() bool) Outcome {
	if !event.IsAutomated || event.State != model.StateGathering {
		return Outcome{}
	}

	deadline := p.Deadline(event)
	if !now.Before(deadline) {
		return Outcome{Close: true, Reason: CloseDeadline}
	}

	capacityInTeams := event.RoomCapacity() / event.TeamSize()
	leftover := event.CountRegistered() % capacityInTeams
	needed := capacityInTeams - leftover

	if p.autoExtend > 0 && !now.Before(deadline.Add(-time.Minute)) && leftover != 0 {
		if !event.AutoExtendChecked {
			event.AutoExtendChecked = true
			maxRooms := event.MaxPossibleRooms()
			if (maxRooms == 0 && needed <= 2) || needed-1 <= maxRooms {
				event.ExtraExtension += p.autoExtend
				return Outcome{
					Extended: p.autoExtend,
					Notice: fmt.Sprintf(
						"The extension criteria has been met, so queueing has been extended for %d more minute(s).",
						int(p.autoExtend/time.Minute)),
				}
			}
			return Outcome{}
		}
	}

	if now.Before(event.StartTime) {
		return Outcome{}
	}

	minutesLeft := int(deadline.Sub(now)/time.Minute) + 1
	if leftover == 0 {
		if allValid == nil || allValid() {
			return Outcome{Close: true, Reason: CloseFilled}
		}
		p.lastNoticeMinute = now.UTC().Truncate(time.Minute)
		return Outcome{Notice: fmt.Sprintf(
			"One or more of the rooms will be cancelled, so the extension will continue. Starting in %d minute(s) regardless.",
			minutesLeft)}
	}

	minute := now.UTC().Truncate(time.Minute)
	if minute.Equal(p.lastNoticeMinute) {
		return Outcome{}
	}
	p.lastNoticeMinute = minute
	return Outcome{Notice: fmt.Sprintf(
		"Need %d more player(s) to start immediately. Starting in %d minute(s) regardless.",
		needed*event.TeamSize(), minutesLeft)}
}
