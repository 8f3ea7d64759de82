// Package model contains the domain records shared by the roster, the
// ledger, the aggregation engine and the persistence port.
package model

import (
	"math"
	"time"
)

// DayLength is the width of one event day.
const DayLength = 24 * time.Hour

// Player is a participant in the event.
type Player struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Color     string `json:"color"`
	AvatarRef string `json:"avatar_ref,omitempty"` // opaque reference to an externally hosted image
}

// Activity is something a player can be scored for. Points may be negative.
type Activity struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Points float64 `json:"points"`
}

// Revision is a snapshot of an event's mutable fields taken before an edit.
type Revision struct {
	ActivityID string    `json:"activity_id"`
	Points     float64   `json:"points"`
	Note       string    `json:"note"`
	ChangedAt  time.Time `json:"changed_at"`
}

// Event is a single ledger entry.
type Event struct {
	ID         string    `json:"id"`
	PlayerID   string    `json:"player_id"`
	ActivityID string    `json:"activity_id"`
	Points     float64   `json:"points"` // snapshot of the activity points, not a live reference
	Note       string    `json:"note"`
	Timestamp  time.Time `json:"ts"`
	// Day is the stored day number. Zero means the entry predates explicit
	// days and the day has to be derived from Timestamp.
	Day int `json:"day,omitempty"`
	// Seq orders entries by creation.
	Seq     int64      `json:"seq"`
	History []Revision `json:"history,omitempty"`
}

// DerivedDay returns the stored day, or the day derived from the timestamp
// relative to epoch. The result is never below 1.
func (e Event) DerivedDay(epoch time.Time) int {
	if e.Day != 0 {
		return max(1, e.Day)
	}
	return DayOf(e.Timestamp, epoch)
}

// Clone returns a deep copy of the event.
func (e Event) Clone() Event {
	if e.History != nil {
		h := make([]Revision, len(e.History))
		copy(h, e.History)
		e.History = h
	}
	return e
}

// DayOf derives the day number of ts relative to epoch:
// max(1, floor((ts - epoch) / 24h) + 1).
func DayOf(ts, epoch time.Time) int {
	diff := ts.Sub(epoch)
	d := int(math.Floor(float64(diff)/float64(DayLength))) + 1
	return max(1, d)
}

// Midnight returns the start of t's day in t's location.
func Midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// TimestampForDay returns the instant used for an entry recorded against an
// explicit day: the start of that day relative to epoch.
func TimestampForDay(epoch time.Time, day int) time.Time {
	return epoch.Add(time.Duration(day-1) * DayLength)
}

// Roster is the combined player and activity reference data.
type Roster struct {
	Players    []Player
	Activities []Activity
}
