package vote

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/mklounge/squadqueue/internal/domain/model"
)

func seated(n int) []*model.Player {
	out := make([]*model.Player, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, &model.Player{ID: model.PlayerID(fmt.Sprintf("p%d", i+1))})
	}
	return out
}

func TestCastVote(t *testing.T) {
	Convey("Given a 12-seat ballot with a quorum of 6", t, func() {
		players := seated(12)
		b := NewBallot(players, model.Formats(), 6)

		Convey("A first vote is recorded", func() {
			res, err := b.CastVote("p1", model.FormatFFA)
			So(err, ShouldBeNil)
			So(res.Outcome, ShouldEqual, OutcomeRecorded)
			So(res.Tallies[model.FormatFFA], ShouldEqual, 1)
		})

		Convey("Switching a vote never counts a voter twice", func() {
			_, err := b.CastVote("p1", model.FormatFFA)
			So(err, ShouldBeNil)
			res, err := b.CastVote("p1", model.FormatDuo)
			So(err, ShouldBeNil)

			So(res.Outcome, ShouldEqual, OutcomeChanged)
			So(res.Tallies[model.FormatFFA], ShouldEqual, 0)
			So(res.Tallies[model.FormatDuo], ShouldEqual, 1)

			total := 0
			for _, n := range res.Tallies {
				total += n
			}
			So(total, ShouldEqual, 1)
		})

		Convey("Repeating the same vote withdraws it", func() {
			_, err := b.CastVote("p1", model.FormatTrio)
			So(err, ShouldBeNil)
			res, err := b.CastVote("p1", model.FormatTrio)
			So(err, ShouldBeNil)

			So(res.Outcome, ShouldEqual, OutcomeRetracted)
			So(res.Tallies[model.FormatTrio], ShouldEqual, 0)
		})

		Convey("The sixth vote for one option decides instantly", func() {
			for i := 1; i <= 5; i++ {
				_, err := b.CastVote(model.PlayerID(fmt.Sprintf("p%d", i)), model.FormatQuad)
				So(err, ShouldBeNil)
			}
			res, err := b.CastVote("p6", model.FormatQuad)
			So(err, ShouldBeNil)

			So(res.Outcome, ShouldEqual, OutcomeDecided)
			So(res.Winner, ShouldEqual, model.FormatQuad)

			Convey("And later votes are rejected", func() {
				_, err := b.CastVote("p7", model.FormatFFA)
				So(errors.Is(err, ErrDecided), ShouldBeTrue)
			})
		})

		Convey("A voter outside the room is rejected", func() {
			_, err := b.CastVote("stranger", model.FormatFFA)
			So(errors.Is(err, ErrNotEligible), ShouldBeTrue)
		})

		Convey("An option off the ballot is rejected", func() {
			_, err := b.CastVote("p1", model.FormatNone)
			So(errors.Is(err, ErrUnknownOption), ShouldBeTrue)
		})
	})
}

func TestCastVoteConcurrent(t *testing.T) {
	Convey("Given twelve voters racing for the same option", t, func() {
		b := NewBallot(seated(12), model.Formats(), 6)

		var wg sync.WaitGroup
		decided := make(chan model.Format, 12)
		for i := 1; i <= 12; i++ {
			wg.Add(1)
			go func(id string) {
				defer wg.Done()
				res, err := b.CastVote(model.PlayerID(id), model.FormatHex)
				if err == nil && res.Outcome == OutcomeDecided {
					decided <- res.Winner
				}
			}(fmt.Sprintf("p%d", i))
		}
		wg.Wait()
		close(decided)

		Convey("Exactly one cast observes the decision", func() {
			n := 0
			for range decided {
				n++
			}
			So(n, ShouldEqual, 1)
			winner, ok := b.Decided()
			So(ok, ShouldBeTrue)
			So(winner, ShouldEqual, model.FormatHex)
		})
	})
}

func TestForceDecision(t *testing.T) {
	Convey("Given a ballot without a quorum", t, func() {
		Convey("A clear leader wins on timeout", func() {
			b := NewBallot(seated(12), model.Formats(), 6)
			_, err := b.CastVote("p1", model.FormatDuo)
			So(err, ShouldBeNil)
			_, err = b.CastVote("p2", model.FormatDuo)
			So(err, ShouldBeNil)
			_, err = b.CastVote("p3", model.FormatFFA)
			So(err, ShouldBeNil)

			winner, forced := b.ForceDecision()
			So(forced, ShouldBeTrue)
			So(winner, ShouldEqual, model.FormatDuo)
		})

		Convey("A tie is broken among the leaders only", func() {
			b := NewBallot(seated(12), model.Formats(), 6,
				WithPick(func(n int) int { return n - 1 }))
			_, err := b.CastVote("p1", model.FormatFFA)
			So(err, ShouldBeNil)
			_, err = b.CastVote("p2", model.FormatQuad)
			So(err, ShouldBeNil)

			winner, forced := b.ForceDecision()
			So(forced, ShouldBeTrue)
			So(winner, ShouldEqual, model.FormatQuad)
		})

		Convey("With no votes at all every option is a leader", func() {
			b := NewBallot(seated(12), model.Formats(), 6,
				WithPick(func(n int) int {
					So(n, ShouldEqual, len(model.Formats()))
					return 0
				}))
			winner, forced := b.ForceDecision()
			So(forced, ShouldBeTrue)
			So(winner, ShouldEqual, model.FormatFFA)
		})

		Convey("Forcing an already decided ballot reports false", func() {
			b := NewBallot(seated(12), model.Formats(), 1)
			res, err := b.CastVote("p1", model.FormatTrio)
			So(err, ShouldBeNil)
			So(res.Outcome, ShouldEqual, OutcomeDecided)

			winner, forced := b.ForceDecision()
			So(forced, ShouldBeFalse)
			So(winner, ShouldEqual, model.FormatTrio)
		})
	})
}

func TestExpired(t *testing.T) {
	Convey("Given a ballot with a two minute timeout", t, func() {
		b := NewBallot(seated(12), model.Formats(), 6, WithTimeout(2*time.Minute))

		Convey("It is not expired right away", func() {
			So(b.Expired(time.Now()), ShouldBeFalse)
		})

		Convey("It expires once the timeout passes", func() {
			So(b.Expired(time.Now().Add(3*time.Minute)), ShouldBeTrue)
		})

		Convey("A decided ballot never expires", func() {
			_, forced := b.ForceDecision()
			So(forced, ShouldBeTrue)
			So(b.Expired(time.Now().Add(3*time.Minute)), ShouldBeFalse)
		})
	})
}
