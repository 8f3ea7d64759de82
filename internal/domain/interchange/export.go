package interchange

import (
	"bytes"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/okian/fantavacanza/internal/domain/model"
)

// LogHeader is the fixed column contract of the exported audit log.
var LogHeader = []string{"event_id", "day", "timestamp", "player", "activity", "points", "note"}

// TimestampLayout renders instants in UTC with millisecond precision.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// SortChronological orders entries by derived day, then timestamp, then
// creation order.
func SortChronological(events []model.Event, epoch time.Time) {
	sort.SliceStable(events, func(i, j int) bool {
		a, b := events[i], events[j]
		if da, db := a.DerivedDay(epoch), b.DerivedDay(epoch); da != db {
			return da < db
		}
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.Before(b.Timestamp)
		}
		return a.Seq < b.Seq
	})
}

// FormatPoints renders points without a trailing fraction for integers.
func FormatPoints(p float64) string {
	return strconv.FormatFloat(p, 'f', -1, 64)
}

// LogRows builds the export rows. Unresolved players and activities are
// left blank.
func LogRows(events []model.Event, r model.Roster, epoch time.Time) [][]string {
	players := make(map[string]string, len(r.Players))
	for _, p := range r.Players {
		players[p.ID] = p.Name
	}
	activities := make(map[string]string, len(r.Activities))
	for _, a := range r.Activities {
		activities[a.ID] = a.Name
	}

	sorted := append([]model.Event(nil), events...)
	SortChronological(sorted, epoch)

	rows := make([][]string, len(sorted))
	for i, e := range sorted {
		rows[i] = []string{
			e.ID,
			strconv.Itoa(e.DerivedDay(epoch)),
			e.Timestamp.UTC().Format(TimestampLayout),
			players[e.PlayerID],
			activities[e.ActivityID],
			FormatPoints(e.Points),
			e.Note,
		}
	}
	return rows
}

// WriteLog writes the audit log to w.
func WriteLog(w io.Writer, events []model.Event, r model.Roster, epoch time.Time) error {
	return Write(w, LogHeader, LogRows(events, r, epoch))
}

// ExportLog returns the audit log as CSV text.
func ExportLog(events []model.Event, r model.Roster, epoch time.Time) string {
	var buf bytes.Buffer
	_ = WriteLog(&buf, events, r, epoch)
	return buf.String()
}

// ExportFilename names a log export taken at now.
func ExportFilename(now time.Time) string {
	return "fantavacanza_log_" + now.Format(time.DateOnly) + ".csv"
}
