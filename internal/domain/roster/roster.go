// Package roster holds the current player and activity definitions.
//
// The registry preserves insertion order; the aggregation engine relies on
// it as the final tie-break. Replacements are wholesale: an import never
// merges with the previous definitions.
package roster

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/okian/fantavacanza/internal/domain/model"
)

// Registry is the in-memory roster.
type Registry struct {
	players    []model.Player
	activities []model.Activity
	playerIdx  map[string]int
	actIdx     map[string]int
}

// New creates a registry seeded with players and activities.
func New(players []model.Player, activities []model.Activity) *Registry {
	r := &Registry{}
	r.ReplacePlayers(players)
	r.ReplaceActivities(activities)
	return r
}

// Players returns a copy of the players in insertion order.
func (r *Registry) Players() []model.Player {
	out := make([]model.Player, len(r.players))
	copy(out, r.players)
	return out
}

// Activities returns a copy of the activities in insertion order.
func (r *Registry) Activities() []model.Activity {
	out := make([]model.Activity, len(r.activities))
	copy(out, r.activities)
	return out
}

// Snapshot returns both sets.
func (r *Registry) Snapshot() model.Roster {
	return model.Roster{Players: r.Players(), Activities: r.Activities()}
}

// Player looks up a player by id.
func (r *Registry) Player(id string) (model.Player, bool) {
	i, ok := r.playerIdx[id]
	if !ok {
		return model.Player{}, false
	}
	return r.players[i], true
}

// Activity looks up an activity by id.
func (r *Registry) Activity(id string) (model.Activity, bool) {
	i, ok := r.actIdx[id]
	if !ok {
		return model.Activity{}, false
	}
	return r.activities[i], true
}

// ReplacePlayers replaces the whole player set. Later duplicates of an id
// are dropped.
func (r *Registry) ReplacePlayers(players []model.Player) {
	r.players = make([]model.Player, 0, len(players))
	r.playerIdx = make(map[string]int, len(players))
	for _, p := range players {
		if _, dup := r.playerIdx[p.ID]; dup || p.ID == "" {
			continue
		}
		r.playerIdx[p.ID] = len(r.players)
		r.players = append(r.players, p)
	}
}

// ReplaceActivities replaces the whole activity set. Later duplicates of an
// id are dropped.
func (r *Registry) ReplaceActivities(activities []model.Activity) {
	r.activities = make([]model.Activity, 0, len(activities))
	r.actIdx = make(map[string]int, len(activities))
	for _, a := range activities {
		if _, dup := r.actIdx[a.ID]; dup || a.ID == "" {
			continue
		}
		r.actIdx[a.ID] = len(r.activities)
		r.activities = append(r.activities, a)
	}
}

// AddActivity appends a manually defined activity with a generated id.
func (r *Registry) AddActivity(name string, points float64) (model.Activity, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return model.Activity{}, fmt.Errorf("activity name is empty: %w", ErrInvalid)
	}
	a := model.Activity{
		ID:     "A_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12],
		Name:   name,
		Points: points,
	}
	r.actIdx[a.ID] = len(r.activities)
	r.activities = append(r.activities, a)
	return a, nil
}

// ActivityPatch carries optional activity edits.
type ActivityPatch struct {
	Name   *string
	Points *float64
}

// UpdateActivity edits an activity definition. Events already recorded keep
// their snapshotted points.
func (r *Registry) UpdateActivity(id string, patch ActivityPatch) (model.Activity, error) {
	i, ok := r.actIdx[id]
	if !ok {
		return model.Activity{}, fmt.Errorf("activity %q: %w", id, ErrUnknownActivity)
	}
	a := r.activities[i]
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return model.Activity{}, fmt.Errorf("activity name is empty: %w", ErrInvalid)
		}
		a.Name = name
	}
	if patch.Points != nil {
		a.Points = *patch.Points
	}
	r.activities[i] = a
	return a, nil
}

// PlayerPatch carries optional player edits.
type PlayerPatch struct {
	Name  *string
	Color *string
}

// UpdatePlayer edits a player's name or color.
func (r *Registry) UpdatePlayer(id string, patch PlayerPatch) (model.Player, error) {
	i, ok := r.playerIdx[id]
	if !ok {
		return model.Player{}, fmt.Errorf("player %q: %w", id, ErrUnknownPlayer)
	}
	p := r.players[i]
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return model.Player{}, fmt.Errorf("player name is empty: %w", ErrInvalid)
		}
		p.Name = name
	}
	if patch.Color != nil {
		p.Color = strings.TrimSpace(*patch.Color)
	}
	r.players[i] = p
	return p, nil
}

// SetAvatarRef records the external avatar reference for a player.
func (r *Registry) SetAvatarRef(id, ref string) (model.Player, error) {
	i, ok := r.playerIdx[id]
	if !ok {
		return model.Player{}, fmt.Errorf("player %q: %w", id, ErrUnknownPlayer)
	}
	r.players[i].AvatarRef = ref
	return r.players[i], nil
}

// Apply reconciles an import: activities are always replaced, players only
// when the import carried player columns. It reports whether the player set
// was replaced.
func (r *Registry) Apply(activities []model.Activity, players []model.Player) bool {
	r.ReplaceActivities(activities)
	if len(players) == 0 {
		return false
	}
	r.ReplacePlayers(players)
	return true
}
