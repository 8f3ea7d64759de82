package scoring_test

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/okian/fantavacanza/internal/domain/model"
	"github.com/okian/fantavacanza/internal/domain/scoring"
	. "github.com/smartystreets/goconvey/convey"
)

var epoch = time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)

func ev(id, player, activity string, pts float64, day int) model.Event {
	return model.Event{ID: id, PlayerID: player, ActivityID: activity, Points: pts, Day: day, Timestamp: model.TimestampForDay(epoch, day)}
}

func names(st []scoring.Standing) []string {
	out := make([]string, len(st))
	for i, s := range st {
		out[i] = s.Player.ID
	}
	return out
}

func TestEndToEndExample(t *testing.T) {
	Convey("Given players A and B and three entries over two days", t, func() {
		r := model.Roster{
			Players:    []model.Player{{ID: "A", Name: "A"}, {ID: "B", Name: "B"}},
			Activities: []model.Activity{{ID: "x", Name: "x"}},
		}
		events := []model.Event{ev("1", "A", "x", 5, 1), ev("2", "B", "x", 8, 1), ev("3", "A", "x", -6, 2)}

		Convey("The leaderboard is B:8, A:-1", func() {
			lb := scoring.Leaderboard(r, events)
			So(names(lb), ShouldResemble, []string{"B", "A"})
			So(lb[0].Total, ShouldEqual, 8)
			So(lb[1].Total, ShouldEqual, -1)
			So(lb[0].Rank, ShouldEqual, 1)
			So(lb[1].Rank, ShouldEqual, 2)
			So(lb[1].MaxSingle, ShouldEqual, 5)
		})

		Convey("The series carries cumulative values", func() {
			s := scoring.DailySeries(r, events, epoch)
			So(len(s), ShouldEqual, 3)
			So(s[0].Values, ShouldResemble, map[string]float64{"A": 0, "B": 0})
			So(s[1].Values, ShouldResemble, map[string]float64{"A": 5, "B": 8})
			So(s[2].Values, ShouldResemble, map[string]float64{"A": -1, "B": 8})
			So(s[2].Label, ShouldEqual, "Giorno 2")
		})
	})
}

func TestTieBreaks(t *testing.T) {
	Convey("Given three players with equal totals", t, func() {
		r := model.Roster{
			Players: []model.Player{
				{ID: "p1", Name: "Zoe"},
				{ID: "p2", Name: "Marco"},
				{ID: "p3", Name: "Ada"},
			},
			Activities: []model.Activity{{ID: "x"}},
		}

		Convey("Equal total and max single sort by name", func() {
			events := []model.Event{ev("1", "p1", "x", 4, 1), ev("2", "p2", "x", 4, 1), ev("3", "p3", "x", 4, 1)}
			So(names(scoring.Leaderboard(r, events)), ShouldResemble, []string{"p3", "p2", "p1"})
		})

		Convey("A higher best single entry wins before the name", func() {
			events := []model.Event{
				ev("1", "p1", "x", 10, 1), ev("2", "p1", "x", -6, 1),
				ev("3", "p2", "x", 4, 1),
				ev("4", "p3", "x", 2, 1), ev("5", "p3", "x", 2, 1),
			}
			So(names(scoring.Leaderboard(r, events)), ShouldResemble, []string{"p1", "p2", "p3"})
		})

		Convey("Names compare with locale collation", func() {
			r.Players = []model.Player{{ID: "u", Name: "Única"}, {ID: "l", Name: "luca"}, {ID: "b", Name: "Beppe"}}
			So(names(scoring.Leaderboard(r, nil)), ShouldResemble, []string{"b", "l", "u"})
		})

		Convey("Fully identical players keep registry order", func() {
			r.Players = []model.Player{{ID: "first", Name: "Same"}, {ID: "second", Name: "Same"}, {ID: "third", Name: "Same"}}
			So(names(scoring.Leaderboard(r, nil)), ShouldResemble, []string{"first", "second", "third"})
		})

		Convey("Players without entries rank below a player with zero total but entries", func() {
			events := []model.Event{ev("1", "p2", "x", 3, 1), ev("2", "p2", "x", -3, 1)}
			lb := scoring.Leaderboard(r, events)
			So(lb[0].Player.ID, ShouldEqual, "p2")
			So(lb[0].HasEvents(), ShouldBeTrue)
			So(lb[1].HasEvents(), ShouldBeFalse)
			So(lb[1].MaxSingle, ShouldEqual, 0)
		})
	})
}

func randomLedger(rng *rand.Rand, r model.Roster, n int) []model.Event {
	events := make([]model.Event, n)
	for i := range events {
		p := r.Players[rng.Intn(len(r.Players))]
		events[i] = ev(fmt.Sprint(i), p.ID, "x", float64(rng.Intn(21)-10), 1+rng.Intn(6))
	}
	return events
}

func TestAggregationProperties(t *testing.T) {
	Convey("Given random ledgers", t, func() {
		rng := rand.New(rand.NewSource(7))
		r := model.Roster{
			Players:    []model.Player{{ID: "a", Name: "a"}, {ID: "b", Name: "b"}, {ID: "c", Name: "c"}, {ID: "d", Name: "d"}},
			Activities: []model.Activity{{ID: "x"}},
		}

		for round := 0; round < 20; round++ {
			events := randomLedger(rng, r, 1+rng.Intn(40))

			want := map[string]float64{}
			for _, e := range events {
				want[e.PlayerID] += e.Points
			}
			for _, s := range scoring.Leaderboard(r, events) {
				So(s.Total, ShouldEqual, want[s.Player.ID])
			}

			shuffled := append([]model.Event(nil), events...)
			rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
			So(scoring.Leaderboard(r, shuffled), ShouldResemble, scoring.Leaderboard(r, events))

			series := scoring.DailySeries(r, events, epoch)
			for _, p := range r.Players {
				So(series[0].Values[p.ID], ShouldEqual, 0)
			}
			for d := 1; d < len(series); d++ {
				for _, p := range r.Players {
					var daySum float64
					for _, e := range events {
						if e.PlayerID == p.ID && e.DerivedDay(epoch) == d {
							daySum += e.Points
						}
					}
					So(series[d].Values[p.ID], ShouldEqual, series[d-1].Values[p.ID]+daySum)
				}
			}
			So(series[len(series)-1].Values, ShouldResemble, scoring.Totals(r, events))
		}
	})
}

func TestSeriesEdgeCases(t *testing.T) {
	Convey("Given a roster", t, func() {
		r := model.Roster{
			Players:    []model.Player{{ID: "A", Name: "A"}},
			Activities: []model.Activity{{ID: "x"}},
		}

		Convey("No entries yield only the baseline row", func() {
			s := scoring.DailySeries(r, nil, epoch)
			So(len(s), ShouldEqual, 1)
			So(s[0].Day, ShouldEqual, 0)
			So(s[0].Values["A"], ShouldEqual, 0)
		})

		Convey("Gaps carry the previous value forward", func() {
			s := scoring.DailySeries(r, []model.Event{ev("1", "A", "x", 3, 1), ev("2", "A", "x", 2, 4)}, epoch)
			So(len(s), ShouldEqual, 5)
			So(s[2].Values["A"], ShouldEqual, 3)
			So(s[3].Values["A"], ShouldEqual, 3)
			So(s[4].Values["A"], ShouldEqual, 5)
		})

		Convey("Entries without a stored day derive it from the timestamp", func() {
			legacy := model.Event{ID: "1", PlayerID: "A", ActivityID: "x", Points: 2, Timestamp: epoch.Add(30 * time.Hour)}
			before := model.Event{ID: "2", PlayerID: "A", ActivityID: "x", Points: 1, Timestamp: epoch.Add(-48 * time.Hour)}
			s := scoring.DailySeries(r, []model.Event{legacy, before}, epoch)
			So(len(s), ShouldEqual, 3)
			So(s[1].Values["A"], ShouldEqual, 1)
			So(s[2].Values["A"], ShouldEqual, 3)
		})

		Convey("Unresolved references are excluded", func() {
			events := []model.Event{ev("1", "A", "x", 3, 1), ev("2", "ghost", "x", 9, 1), ev("3", "A", "gone", 7, 2)}
			lb := scoring.Leaderboard(r, events)
			So(len(lb), ShouldEqual, 1)
			So(lb[0].Total, ShouldEqual, 3)
			s := scoring.DailySeries(r, events, epoch)
			So(s[len(s)-1].Values, ShouldResemble, map[string]float64{"A": 3})
		})

		Convey("A custom day label is used", func() {
			s := scoring.DailySeries(r, nil, epoch, scoring.WithDayLabel(func(d int) string { return fmt.Sprintf("Day %d", d) }))
			So(s[0].Label, ShouldEqual, "Day 0")
		})
	})
}
