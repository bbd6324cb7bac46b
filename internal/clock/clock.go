// Package clock derives the event cadence from a fixed daily anchor and
// keeps the operator-managed schedule lists: forced-format overrides and
// skip times.
package clock

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/mklounge/squadqueue/internal/domain/model"
)

// Override forces every room of one event to a specific format. The time
// is the event's advertised display time.
type Override struct {
	Time   time.Time
	Format model.Format
}

// Rotation autoschedules forced-format events by walking a repeating order
// of formats from a fixed anchor.
type Rotation struct {
	// Anchor is the reference open time for the first rotated event.
	Anchor time.Time
	// Order lists the formats cycled through.
	Order []model.Format
	// EveryN spaces rotated events N regular intervals apart.
	EveryN int
	// Cycles is how many full passes over Order to schedule per refill.
	Cycles int
	// Offset rotates the starting position within Order.
	Offset int
}

func (r Rotation) enabled() bool {
	return len(r.Order) > 0 && r.EveryN > 0 && r.Cycles > 0
}

// Option applies a configuration option to the Clock.
type Option func(*Clock)

// WithRotation enables forced-format autoscheduling.
func WithRotation(rotation Rotation) Option {
	return func(c *Clock) { c.rotation = rotation }
}

// Clock computes open, close and display times for the event cadence.
// Schedule lists are guarded by their own mutex since operators edit them
// concurrently with the scheduler tick.
type Clock struct {
	anchor        time.Time
	interval      time.Duration
	joining       time.Duration
	displayOffset time.Duration

	rotation Rotation

	mu        sync.Mutex
	overrides []Override
	skips     []time.Time
}

// New creates a clock. anchor is the open time of any one event on the
// cadence; interval separates consecutive opens; joining is how long
// registration stays open; displayOffset shifts the advertised time past
// the close.
func New(anchor time.Time, interval, joining, displayOffset time.Duration, opts ...Option) *Clock {
	c := &Clock{
		anchor:        anchor,
		interval:      interval,
		joining:       joining,
		displayOffset: displayOffset,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NextOpenTime returns the cadence open time at or before now. Events
// before the anchor land on the same grid.
func (c *Clock) NextOpenTime(now time.Time) time.Time {
	elapsed := now.Sub(c.anchor)
	return c.anchor.Add(c.interval * time.Duration(floorDiv(elapsed, c.interval)))
}

// Times returns the open, registration-close and display times for the
// event whose open is at or before now.
func (c *Clock) Times(now time.Time) (open, start, display time.Time) {
	open = c.NextOpenTime(now)
	start = open.Add(c.joining)
	display = start.Add(c.displayOffset)
	return open, start, display
}

// ScheduleOverride inserts a forced-format override keyed by display time.
// Inserting the same timestamp again replaces the stored format. Past
// times are rejected.
func (c *Clock) ScheduleOverride(t time.Time, format model.Format, now time.Time) error {
	if now.After(t) {
		return fmt.Errorf("%w: %s", ErrPastTime, t.Format(time.RFC3339))
	}
	if format == model.FormatNone {
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for i, o := range c.overrides {
		if o.Time.Equal(t) {
			c.overrides[i].Format = format
			return nil
		}
	}
	c.overrides = append(c.overrides, Override{Time: t, Format: format})
	c.sortOverridesLocked()
	return nil
}

// RemoveOverride deletes the override at the given timestamp, reporting
// whether one existed.
func (c *Clock) RemoveOverride(t time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, o := range c.overrides {
		if o.Time.Equal(t) {
			c.overrides = append(c.overrides[:i], c.overrides[i+1:]...)
			return true
		}
	}
	return false
}

// ClearOverrides drops every scheduled override.
func (c *Clock) ClearOverrides() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.overrides = nil
}

// Overrides returns the scheduled overrides in time order.
func (c *Clock) Overrides() []Override {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Override(nil), c.overrides...)
}

// TakeOverride consumes the head override when it matches the display time
// of the event being created. Overrides for display times already behind
// us are discarded so a skipped slot cannot wedge the list. Draining the
// list triggers a rotation refill when one is configured.
func (c *Clock) TakeOverride(display, now time.Time) (model.Format, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for len(c.overrides) > 0 && c.overrides[0].Time.Before(display) {
		c.overrides = c.overrides[1:]
	}
	if len(c.overrides) == 0 && c.rotation.enabled() {
		c.autoscheduleLocked(now)
	}
	if len(c.overrides) == 0 || !c.overrides[0].Time.Equal(display) {
		return model.FormatNone, false
	}
	format := c.overrides[0].Format
	c.overrides = c.overrides[1:]
	if len(c.overrides) == 0 && c.rotation.enabled() {
		c.autoscheduleLocked(now)
	}
	return format, true
}

// ScheduleSkip suppresses the event whose display time matches t. Past
// times are rejected; duplicates are kept once.
func (c *Clock) ScheduleSkip(t, now time.Time) error {
	if now.After(t) {
		return fmt.Errorf("%w: %s", ErrPastTime, t.Format(time.RFC3339))
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range c.skips {
		if s.Equal(t) {
			return nil
		}
	}
	c.skips = append(c.skips, t)
	sort.Slice(c.skips, func(i, j int) bool { return c.skips[i].Before(c.skips[j]) })
	return nil
}

// TakeSkip consumes the head skip entry when it matches the display time.
// Entries already behind us are discarded.
func (c *Clock) TakeSkip(display time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for len(c.skips) > 0 && c.skips[0].Before(display) {
		c.skips = c.skips[1:]
	}
	if len(c.skips) == 0 || !c.skips[0].Equal(display) {
		return false
	}
	c.skips = c.skips[1:]
	return true
}

// Skips returns the scheduled skip times in order.
func (c *Clock) Skips() []time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Time(nil), c.skips...)
}

// Autoschedule fills the override list from the rotation. Existing
// overrides at the same timestamps are preserved.
func (c *Clock) Autoschedule(now time.Time) {
	if !c.rotation.enabled() {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.autoscheduleLocked(now)
}

func (c *Clock) autoscheduleLocked(now time.Time) {
	step := time.Duration(c.rotation.EveryN) * c.interval

	last := c.rotation.Anchor
	startIndex := 0
	for last.Before(now) {
		last = last.Add(step)
		startIndex++
	}

	existing := make(map[time.Time]bool, len(c.overrides))
	for _, o := range c.overrides {
		existing[o.Time] = true
	}

	total := c.rotation.Cycles * len(c.rotation.Order)
	for i := 0; i < total; i++ {
		idx := (startIndex + i + c.rotation.Offset) % len(c.rotation.Order)
		t := last.Add(time.Duration(i)*step + c.joining + c.displayOffset)
		if existing[t] {
			continue
		}
		c.overrides = append(c.overrides, Override{Time: t, Format: c.rotation.Order[idx]})
	}
	c.sortOverridesLocked()
}

func (c *Clock) sortOverridesLocked() {
	sort.Slice(c.overrides, func(i, j int) bool {
		return c.overrides[i].Time.Before(c.overrides[j].Time)
	})
}

// floorDiv divides rounding toward negative infinity, matching calendar
// arithmetic for times before the anchor.
func floorDiv(d, step time.Duration) int64 {
	q := d / step
	if d%step != 0 && (d < 0) != (step < 0) {
		q--
	}
	return int64(q)
}
