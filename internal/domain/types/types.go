// Package types contains the JSON read shapes served by the API.
package types

import (
	"time"

	"github.com/okian/fantavacanza/internal/domain/model"
	"github.com/okian/fantavacanza/internal/domain/scoring"
)

// UnknownName labels references that no longer resolve in the roster.
const UnknownName = "unknown"

// Standing is a leaderboard row.
type Standing struct {
	Rank      int      `json:"rank"`
	PlayerID  string   `json:"player_id"`
	Name      string   `json:"name"`
	Color     string   `json:"color,omitempty"`
	AvatarRef string   `json:"avatar_ref,omitempty"`
	Total     float64  `json:"total"`
	MaxSingle *float64 `json:"max_single,omitempty"`
	Events    int      `json:"events"`
}

// Standings converts engine rows. MaxSingle is omitted for players without
// counted entries.
func Standings(in []scoring.Standing) []Standing {
	out := make([]Standing, len(in))
	for i, s := range in {
		out[i] = Standing{
			Rank:      s.Rank,
			PlayerID:  s.Player.ID,
			Name:      s.Player.Name,
			Color:     s.Player.Color,
			AvatarRef: s.Player.AvatarRef,
			Total:     s.Total,
			Events:    s.Events,
		}
		if s.HasEvents() {
			best := s.MaxSingle
			out[i].MaxSingle = &best
		}
	}
	return out
}

// SeriesPoint is the cumulative value of every player at the end of a day.
type SeriesPoint struct {
	Day    int                `json:"day"`
	Label  string             `json:"label"`
	Values map[string]float64 `json:"values"`
}

// Series converts engine rows.
func Series(in []scoring.SeriesRow) []SeriesPoint {
	out := make([]SeriesPoint, len(in))
	for i, r := range in {
		out[i] = SeriesPoint{Day: r.Day, Label: r.Label, Values: r.Values}
	}
	return out
}

// LogEntry is an audit log line with resolved names.
type LogEntry struct {
	ID           string           `json:"id"`
	Day          int              `json:"day"`
	Timestamp    time.Time        `json:"timestamp"`
	PlayerID     string           `json:"player_id"`
	PlayerName   string           `json:"player_name"`
	ActivityID   string           `json:"activity_id"`
	ActivityName string           `json:"activity_name"`
	Points       float64          `json:"points"`
	Note         string           `json:"note,omitempty"`
	History      []model.Revision `json:"history,omitempty"`
}

// NewLogEntry resolves e against r. Unresolved names read UnknownName.
func NewLogEntry(e model.Event, r model.Roster, epoch time.Time) LogEntry {
	entry := LogEntry{
		ID:           e.ID,
		Day:          e.DerivedDay(epoch),
		Timestamp:    e.Timestamp,
		PlayerID:     e.PlayerID,
		PlayerName:   UnknownName,
		ActivityID:   e.ActivityID,
		ActivityName: UnknownName,
		Points:       e.Points,
		Note:         e.Note,
		History:      e.History,
	}
	for _, p := range r.Players {
		if p.ID == e.PlayerID {
			entry.PlayerName = p.Name
			break
		}
	}
	for _, a := range r.Activities {
		if a.ID == e.ActivityID {
			entry.ActivityName = a.Name
			break
		}
	}
	return entry
}

// Session describes the caller's capability.
type Session struct {
	CanEdit    bool      `json:"can_edit"`
	Source     string    `json:"source"`
	Epoch      time.Time `json:"epoch"`
	CurrentDay int       `json:"current_day"`
}

// Stats summarises the service state.
type Stats struct {
	Events     int       `json:"events"`
	Players    int       `json:"players"`
	Activities int       `json:"activities"`
	Epoch      time.Time `json:"epoch"`
	CurrentDay int       `json:"current_day"`
	Store      string    `json:"store"`
}

// ImportSummary reports the roster after a CSV import.
type ImportSummary struct {
	Activities      int  `json:"activities"`
	Players         int  `json:"players"`
	PlayersReplaced bool `json:"players_replaced"`
}
