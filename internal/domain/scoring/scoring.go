// Package scoring derives the leaderboard and the cumulative daily series
// from a roster and a ledger snapshot. Every function here is pure: the
// result depends only on its arguments, never on ledger order.
package scoring

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/okian/fantavacanza/internal/domain/model"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// Standing is one leaderboard row.
type Standing struct {
	Rank   int
	Player model.Player
	Total  float64
	// MaxSingle is the best single entry. It is meaningless when Events is 0.
	MaxSingle float64
	Events    int
}

// HasEvents reports whether the player has any counted entry.
func (s Standing) HasEvents() bool { return s.Events > 0 }

// SeriesRow is the cumulative value of every player at the end of Day.
type SeriesRow struct {
	Day    int
	Label  string
	Values map[string]float64
}

func newSettings(opts []Option) *settings {
	s := &settings{
		locale:     language.Italian,
		dayLabeler: func(day int) string { return fmt.Sprintf("Giorno %d", day) },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// counted filters entries whose player or activity does not resolve.
func counted(players []model.Player, activities []model.Activity, events []model.Event) []model.Event {
	known := make(map[string]struct{}, len(players))
	for _, p := range players {
		known[p.ID] = struct{}{}
	}
	acts := make(map[string]struct{}, len(activities))
	for _, a := range activities {
		acts[a.ID] = struct{}{}
	}
	out := make([]model.Event, 0, len(events))
	for _, e := range events {
		if _, ok := known[e.PlayerID]; !ok {
			continue
		}
		if _, ok := acts[e.ActivityID]; !ok {
			continue
		}
		out = append(out, e)
	}
	return out
}

// Totals sums the counted points of every player.
func Totals(r model.Roster, events []model.Event) map[string]float64 {
	totals := make(map[string]float64, len(r.Players))
	for _, p := range r.Players {
		totals[p.ID] = 0
	}
	for _, e := range counted(r.Players, r.Activities, events) {
		totals[e.PlayerID] += e.Points
	}
	return totals
}

// Leaderboard ranks every player: total descending, then best single entry
// descending, then name in collation order, then registry order.
func Leaderboard(r model.Roster, events []model.Event, opts ...Option) []Standing {
	cfg := newSettings(opts)

	byID := make(map[string]*Standing, len(r.Players))
	out := make([]Standing, len(r.Players))
	for i, p := range r.Players {
		out[i] = Standing{Player: p, MaxSingle: math.Inf(-1)}
	}
	for i := range out {
		byID[out[i].Player.ID] = &out[i]
	}
	for _, e := range counted(r.Players, r.Activities, events) {
		s := byID[e.PlayerID]
		s.Total += e.Points
		s.Events++
		if e.Points > s.MaxSingle {
			s.MaxSingle = e.Points
		}
	}

	col := collate.New(cfg.locale)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Total != b.Total {
			return a.Total > b.Total
		}
		if a.MaxSingle != b.MaxSingle {
			return a.MaxSingle > b.MaxSingle
		}
		return col.CompareString(a.Player.Name, b.Player.Name) < 0
	})
	for i := range out {
		out[i].Rank = i + 1
		if out[i].Events == 0 {
			out[i].MaxSingle = 0
		}
	}
	return out
}

// DailySeries returns the cumulative score of every player for days
// 0..maxDay. Row 0 is the zero baseline. With no entries at all only the
// baseline row is returned.
func DailySeries(r model.Roster, events []model.Event, epoch time.Time, opts ...Option) []SeriesRow {
	cfg := newSettings(opts)

	row := func(day int, acc map[string]float64) SeriesRow {
		values := make(map[string]float64, len(r.Players))
		for _, p := range r.Players {
			values[p.ID] = acc[p.ID]
		}
		return SeriesRow{Day: day, Label: cfg.dayLabeler(day), Values: values}
	}

	acc := make(map[string]float64, len(r.Players))
	rows := []SeriesRow{row(0, acc)}
	if len(events) == 0 {
		return rows
	}

	maxDay := 1
	for _, e := range events {
		maxDay = max(maxDay, e.DerivedDay(epoch))
	}

	perDay := make([]map[string]float64, maxDay+1)
	for _, e := range counted(r.Players, r.Activities, events) {
		d := e.DerivedDay(epoch)
		if perDay[d] == nil {
			perDay[d] = make(map[string]float64)
		}
		perDay[d][e.PlayerID] += e.Points
	}

	for d := 1; d <= maxDay; d++ {
		for id, pts := range perDay[d] {
			acc[id] += pts
		}
		rows = append(rows, row(d, acc))
	}
	return rows
}
