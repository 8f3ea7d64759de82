// Package repository defines the persistence and notification port of the
// ledger together with its in-memory and SQLite implementations.
package repository

import (
	"context"

	"github.com/okian/fantavacanza/internal/domain/model"
)

// Operation names reported to failure hooks and metrics.
const (
	OpLoadAll           = "load_all"
	OpUpsertPlayers     = "upsert_players"
	OpUpsertActivities  = "upsert_activities"
	OpReplacePlayers    = "replace_players"
	OpReplaceActivities = "replace_activities"
	OpInsertEvent       = "insert_event"
	OpUpdateEvent       = "update_event"
	OpDeleteEvent       = "delete_event"
	OpResetEvents       = "reset_events"
	OpUpdateAvatar      = "update_avatar"
	OpGetSetting        = "get_setting"
	OpPutSetting        = "put_setting"
)

// Setting keys.
const (
	SettingEditorToken = "editor_token"
	SettingEpoch       = "epoch"
)

// Snapshot is the full persisted state.
type Snapshot struct {
	Players    []model.Player
	Activities []model.Activity
	Events     []model.Event
}

// EventPatch carries the mutable fields of an event. Nil fields are kept.
type EventPatch struct {
	ActivityID *string
	Points     *float64
	Note       *string
	History    []model.Revision
}

// Store is the persistence and notification port.
type Store interface {
	// LoadAll returns players, activities and events in their stored order.
	LoadAll(ctx context.Context) (Snapshot, error)

	// UpsertPlayers inserts or updates players by id.
	UpsertPlayers(ctx context.Context, players []model.Player) error
	// UpsertActivities inserts or updates activities by id.
	UpsertActivities(ctx context.Context, activities []model.Activity) error
	// ReplacePlayers swaps the whole player roster.
	ReplacePlayers(ctx context.Context, players []model.Player) error
	// ReplaceActivities swaps the whole activity list.
	ReplaceActivities(ctx context.Context, activities []model.Activity) error

	// InsertEvent stores e, assigning an id, timestamp and sequence number
	// when they are not set, and returns the stored event.
	InsertEvent(ctx context.Context, e model.Event) (model.Event, error)
	// UpdateEvent applies patch. Returns ErrNotFound for unknown ids.
	UpdateEvent(ctx context.Context, id string, patch EventPatch) error
	// DeleteEvent removes an event. Deleting an unknown id is not an error.
	DeleteEvent(ctx context.Context, id string) error
	// ResetEvents removes every event and stores epoch under SettingEpoch
	// in the same step. On failure neither change is applied.
	ResetEvents(ctx context.Context, epoch string) error

	// Subscribe registers fn to be called after out-of-band changes.
	// Backends that cannot tell writers apart may also call fn after the
	// subscriber's own writes, so fn must be safe to run at any time.
	// SQLiteStore reports commits of other connections only; MemoryStore
	// reports every write.
	Subscribe(fn func()) (unsubscribe func())

	// UpdatePlayerAvatarRef sets the avatar reference of a player.
	UpdatePlayerAvatarRef(ctx context.Context, playerID, ref string) error

	// GetSetting returns ErrNotFound for unknown keys.
	GetSetting(ctx context.Context, key string) (string, error)
	PutSetting(ctx context.Context, key, value string) error

	Close() error
}

// SettingSlot exposes one setting as a token slot.
type SettingSlot struct {
	Store Store
	Key   string
}

// LoadToken returns the stored value or "" when the key is unset.
func (s SettingSlot) LoadToken(ctx context.Context) (string, error) {
	v, err := s.Store.GetSetting(ctx, s.Key)
	if isNotFound(err) {
		return "", nil
	}
	return v, err
}

// SaveToken stores token under the slot key.
func (s SettingSlot) SaveToken(ctx context.Context, token string) error {
	return s.Store.PutSetting(ctx, s.Key, token)
}
