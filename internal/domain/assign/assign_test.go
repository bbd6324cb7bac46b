package assign

import (
	"fmt"
	"math/rand"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/mklounge/squadqueue/internal/domain/model"
)

func player(name string, rating int) *model.Player {
	return &model.Player{
		ID:        model.PlayerID(name),
		Name:      name,
		Rating:    rating,
		Adjusted:  rating,
		Confirmed: true,
	}
}

func playersWithRatings(ratings ...int) []*model.Player {
	out := make([]*model.Player, 0, len(ratings))
	for i, r := range ratings {
		out = append(out, player(fmt.Sprintf("p%d", i+1), r))
	}
	return out
}

func shuffled(players []*model.Player) []*model.Player {
	out := append([]*model.Player(nil), players...)
	rand.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

func names(players []*model.Player) map[string]bool {
	out := make(map[string]bool, len(players))
	for _, p := range players {
		out[p.Name] = true
	}
	return out
}

func TestMinimizeRange(t *testing.T) {
	Convey("Given the sliding-window spread minimizer", t, func() {
		Convey("An empty list yields no window", func() {
			So(minimizeRange(nil, 12), ShouldBeNil)
		})

		Convey("Fewer players than requested yields no window", func() {
			So(minimizeRange(playersWithRatings(100, 200), 3), ShouldBeNil)
		})

		Convey("A window of one makes no sense", func() {
			So(minimizeRange(playersWithRatings(100, 200), 1), ShouldBeNil)
		})

		Convey("Exactly as many players as requested returns them all", func() {
			got := minimizeRange(shuffled(playersWithRatings(100, 200)), 2)
			So(names(got), ShouldResemble, map[string]bool{"p1": true, "p2": true})
		})

		Convey("The tighter of two windows wins", func() {
			got := minimizeRange(shuffled(playersWithRatings(100, 200, 250)), 2)
			So(names(got), ShouldResemble, map[string]bool{"p2": true, "p3": true})
		})

		Convey("A tie keeps the lower-rated window", func() {
			// Windows {0,100} and {100,200} both span 100.
			got := minimizeRange(shuffled(playersWithRatings(0, 100, 200)), 2)
			So(names(got), ShouldResemble, map[string]bool{"p1": true, "p2": true})
		})

		Convey("Negative ratings are handled", func() {
			got := minimizeRange(shuffled(playersWithRatings(0, -100, 1)), 2)
			So(names(got), ShouldResemble, map[string]bool{"p1": true, "p3": true})
		})

		Convey("A 16-player pool picks the tightest 12", func() {
			ratings := []int{1000, 500, 1500, 750, 800, 2000, 0, -300, 501, 600, 200, 1550, 1800, 1501, 502, 100}
			got := minimizeRange(shuffled(playersWithRatings(ratings...)), 12)
			So(names(got), ShouldResemble, map[string]bool{
				"p16": true, "p11": true, "p2": true, "p9": true, "p15": true, "p10": true,
				"p4": true, "p5": true, "p1": true, "p3": true, "p14": true, "p12": true,
			})
			So(spread(got), ShouldEqual, 1450)
		})
	})
}

func TestRangeMinimizedSingleRoom(t *testing.T) {
	Convey("Given the balanced strategy with a threshold of 65", t, func() {
		strategy := &RangeMinimized{Threshold: 65}

		Convey("No players is insufficient", func() {
			res := strategy.Assign(nil, 12)
			So(res.Status, ShouldEqual, StatusInsufficientPlayers)
			So(res.Rooms, ShouldBeEmpty)
		})

		Convey("One player is insufficient", func() {
			res := strategy.Assign(playersWithRatings(1000), 12)
			So(res.Status, ShouldEqual, StatusInsufficientPlayers)
		})

		Convey("Two players for a 12-seat room is insufficient", func() {
			res := strategy.Assign(playersWithRatings(1000, 2000), 12)
			So(res.Status, ShouldEqual, StatusInsufficientPlayers)
		})

		Convey("Signed squares around zero settle on the lone tight window", func() {
			// Ratings -64,-49,-36,...,0,1,...,64 with -49 withdrawn before
			// the close. Admitting the first late player exposes the
			// -36..25 window, spread 61.
			players := make([]*model.Player, 0, 16)
			want := map[string]bool{}
			for i := 0; i < 17; i++ {
				if i == 1 {
					continue
				}
				p := player(fmt.Sprintf("p%d", i), (i-8)*abs(i-8))
				players = append(players, p)
				if i >= 2 && i <= 13 {
					want[p.Name] = true
				}
			}
			res := strategy.Assign(players, 12)

			So(res.Status, ShouldEqual, StatusFound)
			So(len(res.Rooms), ShouldEqual, 1)
			So(names(res.Rooms[0].Players), ShouldResemble, want)
			So(res.Rooms[0].Valid, ShouldBeTrue)
			So(res.Rooms[0].Spread(), ShouldEqual, 61)
		})

		Convey("A spread exactly at the threshold is accepted", func() {
			// With 49 withdrawn instead, the first window to pass is
			// -49..16, spread exactly 65.
			players := make([]*model.Player, 0, 16)
			want := map[string]bool{}
			for i := 0; i < 17; i++ {
				if i == 15 {
					continue
				}
				p := player(fmt.Sprintf("p%d", i), (i-8)*abs(i-8))
				players = append(players, p)
				if i >= 1 && i <= 12 {
					want[p.Name] = true
				}
			}
			res := strategy.Assign(players, 12)

			So(res.Status, ShouldEqual, StatusFound)
			So(names(res.Rooms[0].Players), ShouldResemble, want)
			So(res.Rooms[0].Spread(), ShouldEqual, 65)
		})

		Convey("Cubes around zero are too spread for any window", func() {
			players := make([]*model.Player, 0, 17)
			for i := 0; i < 17; i++ {
				cube := (i - 8) * (i - 8) * (i - 8)
				players = append(players, player(fmt.Sprintf("p%d", i), cube))
			}
			res := strategy.Assign(players, 12)

			So(res.Status, ShouldEqual, StatusEmpty)
			So(res.Rooms, ShouldBeEmpty)
			So(len(res.Window), ShouldEqual, 12)
		})

		Convey("Late joiners repair an outlier-heavy on-time group", func() {
			// p4, p10, p14 and p16 are outliers; admitting late p13 and p15
			// completes the only valid window.
			players := playersWithRatings(10, 5, 14, 75, 8, 20, 0, -3, 4, -105, 2, 15, 16, 74, 9, 100)
			res := strategy.Assign(players, 12)

			So(res.Status, ShouldEqual, StatusFound)
			So(names(res.Rooms[0].Players), ShouldResemble, map[string]bool{
				"p1": true, "p2": true, "p3": true, "p5": true, "p6": true, "p7": true,
				"p8": true, "p9": true, "p11": true, "p12": true, "p13": true, "p15": true,
			})
		})

		Convey("The same fixture fails when the repairing late player is gone", func() {
			players := playersWithRatings(10, 5, 14, 75, 8, 20, 0, -3, 4, -105, 2, 15, 16, 74, 100)
			res := strategy.Assign(players, 12)

			So(res.Status, ShouldEqual, StatusEmpty)
			So(res.Rooms, ShouldBeEmpty)
		})
	})
}

func TestRangeMinimizedMultiRoom(t *testing.T) {
	Convey("Given the balanced strategy with a generous threshold", t, func() {
		strategy := &RangeMinimized{Threshold: 1000}

		Convey("24 players make two full rooms seating everyone", func() {
			ratings := make([]int, 24)
			for i := range ratings {
				ratings[i] = i
			}
			players := playersWithRatings(ratings...)
			res := strategy.Assign(players, 12)

			So(res.Status, ShouldEqual, StatusTwoOrMoreRooms)
			So(len(res.Rooms), ShouldEqual, 2)
			So(len(res.Players()), ShouldEqual, 24)
			So(names(res.Players()), ShouldResemble, names(players))

			Convey("And room 1 outranks room 2", func() {
				So(res.Rooms[0].Players[0].Rating, ShouldEqual, 23)
				So(res.Rooms[0].Players[11].Rating, ShouldBeGreaterThan, res.Rooms[1].Players[0].Rating)
			})
		})

		Convey("A 25th player stays out when both rooms are already valid", func() {
			ratings := make([]int, 25)
			for i := range ratings {
				ratings[i] = i * 3
			}
			res := strategy.Assign(playersWithRatings(ratings...), 12)

			So(res.Status, ShouldEqual, StatusTwoOrMoreRooms)
			So(len(res.Players()), ShouldEqual, 24)
			So(names(res.Players())["p25"], ShouldBeFalse)
		})

		Convey("An unrepairable wide room taints the result", func() {
			tight := &RangeMinimized{Threshold: 50}
			ratings := make([]int, 24)
			for i := range ratings {
				ratings[i] = i * 100
			}
			res := tight.Assign(playersWithRatings(ratings...), 12)

			So(res.Status, ShouldEqual, StatusSomeInvalid)
			So(res.AllValid(), ShouldBeFalse)
			So(len(res.Players()), ShouldEqual, 24)
		})

		Convey("A late joiner repairs a wide second room", func() {
			tight := &RangeMinimized{Threshold: 100}
			// Room 1 (top 12) is tight. Room 2 has one outlier at -500;
			// the single late player at 60 can replace it.
			ratings := []int{
				1000, 1005, 1010, 1015, 1020, 1025, 1030, 1035, 1040, 1045, 1050, 1055,
				0, 10, 20, 30, 40, 50, -500, 70, 80, 90, 95, 98,
				60,
			}
			res := tight.Assign(playersWithRatings(ratings...), 12)

			So(res.Status, ShouldEqual, StatusTwoOrMoreRooms)
			So(res.AllValid(), ShouldBeTrue)
			So(names(res.Rooms[1].Players)["p19"], ShouldBeFalse)
			So(names(res.Rooms[1].Players)["p25"], ShouldBeTrue)
		})

		Convey("A player swapped out of one room stays available but is never seated twice", func() {
			tight := &RangeMinimized{Threshold: 100}
			// The 1700 outlier is swapped out of room 1 by the first late
			// player, goes back to the front of the pool, is considered for
			// room 2's repair, and ends up unseated.
			ratings := []int{
				1000, 1005, 1010, 1015, 1020, 1025, 1030, 1035, 1040, 1045, 1050, 1700,
				0, 10, 20, 30, 40, 50, 55, 70, 80, 90, 95, 700,
				1055, 60,
			}
			res := tight.Assign(playersWithRatings(ratings...), 12)

			So(res.Status, ShouldEqual, StatusTwoOrMoreRooms)
			So(res.AllValid(), ShouldBeTrue)
			seen := map[string]int{}
			for _, p := range res.Players() {
				seen[p.Name]++
				So(seen[p.Name], ShouldEqual, 1)
			}
			So(seen["p12"], ShouldEqual, 0) // 1700 swapped out of room 1
			So(seen["p24"], ShouldEqual, 0) // 700 swapped out of room 2
			So(seen["p25"], ShouldEqual, 1)
			So(seen["p26"], ShouldEqual, 1)
		})
	})
}

func TestTruncateSort(t *testing.T) {
	Convey("Given the truncate-and-sort strategy", t, func() {
		strategy := &TruncateSort{}

		Convey("Surplus joiners beyond a full room are excluded", func() {
			ratings := []int{500, 100, 900, 300, 700, 200, 800, 400, 600, 1000, 50, 950, 999, 1}
			res := strategy.Assign(playersWithRatings(ratings...), 12)

			So(res.Status, ShouldEqual, StatusFound)
			So(len(res.Rooms), ShouldEqual, 1)
			So(names(res.Rooms[0].Players)["p13"], ShouldBeFalse)
			So(names(res.Rooms[0].Players)["p14"], ShouldBeFalse)

			Convey("And the room is ordered by descending rating", func() {
				for i := 1; i < len(res.Rooms[0].Players); i++ {
					So(res.Rooms[0].Players[i].Rating, ShouldBeLessThanOrEqualTo, res.Rooms[0].Players[i-1].Rating)
				}
			})
		})

		Convey("Fewer players than capacity is insufficient", func() {
			res := strategy.Assign(playersWithRatings(100, 200, 300), 12)
			So(res.Status, ShouldEqual, StatusInsufficientPlayers)
		})
	})
}

func TestNew(t *testing.T) {
	Convey("Given the strategy factory", t, func() {
		Convey("Known names construct their strategies", func() {
			s, err := New(StrategyBalanced, 65)
			So(err, ShouldBeNil)
			So(s.Name(), ShouldEqual, StrategyBalanced)

			s, err = New(StrategyTruncate, 0)
			So(err, ShouldBeNil)
			So(s.Name(), ShouldEqual, StrategyTruncate)
		})

		Convey("An unknown name is rejected", func() {
			_, err := New("round-robin", 0)
			So(err, ShouldNotBeNil)
		})
	})
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
