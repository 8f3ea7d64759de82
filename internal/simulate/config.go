// Package simulate plays a holiday against a running ledger server: it
// records random entries for every player over several days through the
// HTTP API, retries part of them to exercise idempotency, and checks that
// the served leaderboard and series agree with what was acknowledged.
package simulate

import "time"

// Config holds the simulation parameters.
type Config struct {
	BaseURL      string        // Base URL of the service
	Token        string        // Editor token sent as a bearer token
	Days         int           // Number of days to simulate
	EventsPerDay int           // Entries recorded per day
	RetryRatio   float64       // Share of submissions sent twice with the same request id
	Workers      int           // Number of concurrent workers
	Timeout      time.Duration // HTTP request timeout
	Seed         uint64        // Seed of the entry generator
	Verbose      bool          // Log every failed request
}

// Stats holds the outcome of a run.
type Stats struct {
	Generated int
	Created   int
	Duplicate int
	Failed    int
	Players   int
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
}

// player and activity mirror the roster read shapes.
type player struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type activity struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Points float64 `json:"points"`
}

// entry is the POST /events body.
type entry struct {
	RequestID  string `json:"request_id"`
	PlayerID   string `json:"player_id"`
	ActivityID string `json:"activity_id"`
	Note       string `json:"note,omitempty"`
	Day        int    `json:"day"`
}

type ackResponse struct {
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
	Event     struct {
		ID       string  `json:"id"`
		PlayerID string  `json:"player_id"`
		Points   float64 `json:"points"`
		Day      int     `json:"day"`
	} `json:"event"`
}

type standing struct {
	Rank     int     `json:"rank"`
	PlayerID string  `json:"player_id"`
	Total    float64 `json:"total"`
}

type seriesPoint struct {
	Day    int                `json:"day"`
	Values map[string]float64 `json:"values"`
}
