// Package ledger implements the append/edit/delete event ledger.
//
// Entries are kept in creation order. Every entry snapshots the points of
// its activity when it is created; later edits to the activity definition
// never reach recorded entries. Only an explicit activity reassignment
// re-snapshots points, pushing the previous values onto the entry history.
package ledger

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/okian/fantavacanza/internal/domain/model"
)

// Resolver resolves roster references.
type Resolver interface {
	Player(id string) (model.Player, bool)
	Activity(id string) (model.Activity, bool)
}

// Entry is the input of Append.
type Entry struct {
	PlayerID   string
	ActivityID string
	Note       string
	// Day is the explicit day, if any. It is floored and clamped to 1.
	Day *float64
}

// Patch carries optional event edits.
type Patch struct {
	Note       *string
	ActivityID *string
}

// Ledger is the ordered collection of scoring events for a session.
type Ledger struct {
	roster  Resolver
	events  []model.Event
	epoch   time.Time
	nextSeq int64
	now     func() time.Time
	newID   func() string
}

// New creates an empty ledger validating references against roster.
func New(roster Resolver, opts ...Option) *Ledger {
	l := &Ledger{
		roster:  roster,
		nextSeq: 1,
		now:     time.Now,
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.epoch.IsZero() {
		l.epoch = model.Midnight(l.now())
	}
	return l
}

// Epoch returns the origin instant used for day derivation.
func (l *Ledger) Epoch() time.Time { return l.epoch }

// Len returns the number of entries.
func (l *Ledger) Len() int { return len(l.events) }

// Snapshot returns deep copies of the entries in creation order.
func (l *Ledger) Snapshot() []model.Event {
	out := make([]model.Event, len(l.events))
	for i, e := range l.events {
		out[i] = e.Clone()
	}
	return out
}

// Get returns a copy of the entry with the given id.
func (l *Ledger) Get(id string) (model.Event, bool) {
	i := l.index(id)
	if i < 0 {
		return model.Event{}, false
	}
	return l.events[i].Clone(), true
}

// CurrentDay returns the day derived from the clock.
func (l *Ledger) CurrentDay() int {
	return model.DayOf(l.now(), l.epoch)
}

// ParseDay interprets a user supplied day. Blank or non-numeric input
// yields nil so the caller falls back to the current day.
func ParseDay(raw string) *float64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// Append records a new entry.
func (l *Ledger) Append(in Entry) (model.Event, error) {
	if _, ok := l.roster.Player(in.PlayerID); !ok {
		return model.Event{}, fmt.Errorf("player %q does not exist: %w", in.PlayerID, ErrValidation)
	}
	act, ok := l.roster.Activity(in.ActivityID)
	if !ok {
		return model.Event{}, fmt.Errorf("activity %q does not exist: %w", in.ActivityID, ErrValidation)
	}

	now := l.now()
	day := model.DayOf(now, l.epoch)
	ts := now
	if in.Day != nil && !math.IsNaN(*in.Day) && !math.IsInf(*in.Day, 0) {
		day = max(1, int(math.Floor(*in.Day)))
		ts = model.TimestampForDay(l.epoch, day)
	}

	e := model.Event{
		ID:         l.newID(),
		PlayerID:   in.PlayerID,
		ActivityID: act.ID,
		Points:     act.Points,
		Note:       strings.TrimSpace(in.Note),
		Timestamp:  ts,
		Day:        day,
		Seq:        l.nextSeq,
	}
	l.nextSeq++
	l.events = append(l.events, e)
	return e.Clone(), nil
}

// UndoLast removes the most recently created entry. It reports false when
// the ledger is empty.
func (l *Ledger) UndoLast() (model.Event, bool) {
	if len(l.events) == 0 {
		return model.Event{}, false
	}
	last := 0
	for i, e := range l.events {
		if e.Seq > l.events[last].Seq {
			last = i
		}
	}
	removed := l.events[last]
	l.events = append(l.events[:last], l.events[last+1:]...)
	return removed, true
}

// Update edits the note or activity of an entry.
func (l *Ledger) Update(id string, patch Patch) (model.Event, error) {
	i := l.index(id)
	if i < 0 {
		return model.Event{}, fmt.Errorf("event %q: %w", id, ErrNotFound)
	}
	cur := l.events[i]
	next := cur

	if patch.ActivityID != nil && *patch.ActivityID != cur.ActivityID {
		act, ok := l.roster.Activity(*patch.ActivityID)
		if !ok {
			return model.Event{}, fmt.Errorf("activity %q does not exist: %w", *patch.ActivityID, ErrValidation)
		}
		next.ActivityID = act.ID
		next.Points = act.Points
	}
	if patch.Note != nil {
		next.Note = strings.TrimSpace(*patch.Note)
	}
	if next.ActivityID == cur.ActivityID && next.Note == cur.Note {
		return cur.Clone(), nil
	}

	next.History = append(append([]model.Revision(nil), cur.History...), model.Revision{
		ActivityID: cur.ActivityID,
		Points:     cur.Points,
		Note:       cur.Note,
		ChangedAt:  l.now(),
	})
	l.events[i] = next
	return next.Clone(), nil
}

// Remove deletes an entry. Removing an absent id is a no-op reported as false.
func (l *Ledger) Remove(id string) (model.Event, bool) {
	i := l.index(id)
	if i < 0 {
		return model.Event{}, false
	}
	removed := l.events[i]
	l.events = append(l.events[:i], l.events[i+1:]...)
	return removed, true
}

// ResetAll clears every entry and moves the epoch to the current midnight.
func (l *Ledger) ResetAll() {
	l.events = nil
	l.epoch = model.Midnight(l.now())
}

// Load replaces the contents, e.g. after a reload from the store. Entries
// without a sequence number are ordered after numbered ones, in input order.
func (l *Ledger) Load(events []model.Event, epoch time.Time) {
	if !epoch.IsZero() {
		l.epoch = epoch
	}
	loaded := make([]model.Event, len(events))
	var maxSeq int64
	for i, e := range events {
		loaded[i] = e.Clone()
		maxSeq = max(maxSeq, e.Seq)
	}
	for i := range loaded {
		if loaded[i].Seq == 0 {
			maxSeq++
			loaded[i].Seq = maxSeq
		}
	}
	sort.SliceStable(loaded, func(a, b int) bool { return loaded[a].Seq < loaded[b].Seq })
	l.events = loaded
	l.nextSeq = maxSeq + 1
}

func (l *Ledger) index(id string) int {
	for i := range l.events {
		if l.events[i].ID == id {
			return i
		}
	}
	return -1
}
