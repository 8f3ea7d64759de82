// Package service owns the session state of the points ledger: the roster,
// the event ledger and its epoch. Every mutation is checked against the
// caller's edit capability, applied in memory and then mirrored to the
// persistence port. Out-of-band store changes trigger a full reload.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/okian/fantavacanza/internal/adapters/repository"
	"github.com/okian/fantavacanza/internal/domain/auth"
	"github.com/okian/fantavacanza/internal/domain/dedupe"
	"github.com/okian/fantavacanza/internal/domain/interchange"
	"github.com/okian/fantavacanza/internal/domain/ledger"
	"github.com/okian/fantavacanza/internal/domain/model"
	"github.com/okian/fantavacanza/internal/domain/roster"
	"github.com/okian/fantavacanza/internal/domain/scoring"
	"github.com/okian/fantavacanza/internal/domain/types"
	"github.com/okian/fantavacanza/pkg/logger"
	"github.com/okian/fantavacanza/pkg/metrics"
	"golang.org/x/text/language"
)

// Operation names used in logs, metrics and rejection errors.
const (
	OpAppend         = "append_event"
	OpUndo           = "undo_last"
	OpUpdate         = "update_event"
	OpRemove         = "remove_event"
	OpReset          = "reset_all"
	OpImport         = "import_csv"
	OpAddActivity    = "add_activity"
	OpUpdateActivity = "update_activity"
	OpUpdatePlayer   = "update_player"
	OpSetAvatar      = "set_avatar"
	OpShare          = "share_links"
)

// Service implements the API dependencies for the points ledger.
type Service struct {
	mu sync.RWMutex

	store    repository.Store
	registry *roster.Registry
	ledger   *ledger.Ledger
	deduper  dedupe.Deduper

	synonyms       interchange.Synonyms
	locale         language.Tag
	seed           model.Roster
	dedupeSize     int
	defaultCanEdit bool
	strictTokens   bool
	storeName      string
	now            func() time.Time

	started     bool
	unsubscribe func()

	logger logger.Logger
}

// New constructs a Service backed by store.
func New(store repository.Store, opts ...Option) *Service {
	s := &Service{
		store:      store,
		synonyms:   interchange.DefaultSynonyms(),
		locale:     language.Italian,
		dedupeSize: 10_000,
		storeName:  "memory",
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registry = roster.New(nil, nil)
	s.ledger = ledger.New(s.registry, ledger.WithClock(s.now))
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	return s
}

// Start loads the persisted state, seeds an empty store, restores the epoch
// and subscribes to out-of-band changes.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	s.logger.Info(ctx, "starting ledger service...", logger.String("store", s.storeName))

	snap, err := s.store.LoadAll(ctx)
	if err != nil {
		return s.persistFailed(ctx, repository.OpLoadAll, err)
	}

	if len(snap.Players) == 0 && len(snap.Activities) == 0 &&
		(len(s.seed.Players) > 0 || len(s.seed.Activities) > 0) {
		if err := s.store.ReplacePlayers(ctx, s.seed.Players); err != nil {
			return s.persistFailed(ctx, repository.OpReplacePlayers, err)
		}
		if err := s.store.ReplaceActivities(ctx, s.seed.Activities); err != nil {
			return s.persistFailed(ctx, repository.OpReplaceActivities, err)
		}
		snap.Players, snap.Activities = s.seed.Players, s.seed.Activities
		s.logger.Info(ctx, "seeded empty store",
			logger.Int("players", len(snap.Players)),
			logger.Int("activities", len(snap.Activities)),
		)
	}

	epoch, found, err := s.loadEpoch(ctx)
	if err != nil {
		return err
	}
	if !found {
		epoch = model.Midnight(s.now())
		if err := s.store.PutSetting(ctx, repository.SettingEpoch, epoch.Format(time.RFC3339Nano)); err != nil {
			return s.persistFailed(ctx, repository.OpPutSetting, err)
		}
	}

	s.apply(snap, epoch)
	s.unsubscribe = s.store.Subscribe(s.onChange)
	s.started = true

	s.logger.Info(ctx, "ledger service started",
		logger.Int("players", len(snap.Players)),
		logger.Int("activities", len(snap.Activities)),
		logger.Int("events", len(snap.Events)),
		logger.Time("epoch", epoch),
	)
	return nil
}

// Stop unsubscribes from the store. The store itself is owned by the caller.
func (s *Service) Stop() {
	s.mu.Lock()
	unsubscribe := s.unsubscribe
	s.unsubscribe = nil
	wasStarted := s.started
	s.started = false
	s.mu.Unlock()

	if !wasStarted {
		return
	}
	if unsubscribe != nil {
		unsubscribe()
	}
	s.logger.Info(context.Background(), "ledger service stopped")
}

// onChange reloads after a store notification. Stores that report the
// service's own writes make this reproduce the state already held.
func (s *Service) onChange() {
	ctx := context.Background()
	if err := s.Reload(ctx); err != nil && !errors.Is(err, ErrNotStarted) {
		s.logger.Warn(ctx, "reload after store change failed", logger.Error(err))
	}
}

// Reload replaces roster, ledger and epoch with the persisted state.
// Local changes that never reached the store are discarded.
func (s *Service) Reload(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return ErrNotStarted
	}
	snap, err := s.store.LoadAll(ctx)
	if err != nil {
		metrics.RecordReload("error")
		return s.persistFailed(ctx, repository.OpLoadAll, err)
	}
	epoch, _, err := s.loadEpoch(ctx)
	if err != nil {
		metrics.RecordReload("error")
		return err
	}
	s.apply(snap, epoch)
	metrics.RecordReload("ok")
	s.logger.Debug(ctx, "reloaded from store", logger.Int("events", len(snap.Events)))
	return nil
}

// apply must be called with s.mu held. A zero epoch keeps the current one.
func (s *Service) apply(snap repository.Snapshot, epoch time.Time) {
	s.registry.ReplacePlayers(snap.Players)
	s.registry.ReplaceActivities(snap.Activities)
	s.ledger.Load(snap.Events, epoch)
	s.updateGauges()
}

func (s *Service) loadEpoch(ctx context.Context) (time.Time, bool, error) {
	raw, err := s.store.GetSetting(ctx, repository.SettingEpoch)
	if errors.Is(err, repository.ErrNotFound) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, s.persistFailed(ctx, repository.OpGetSetting, err)
	}
	epoch, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		s.logger.Warn(ctx, "ignoring malformed stored epoch", logger.String("value", raw), logger.Error(err))
		return time.Time{}, false, nil
	}
	return epoch.Local(), true, nil
}

func (s *Service) updateGauges() {
	metrics.UpdateState(s.ledger.Len(), len(s.registry.Players()), len(s.registry.Activities()))
}

// persistFailed records and wraps a failed port call.
func (s *Service) persistFailed(ctx context.Context, portOp string, err error) error {
	metrics.RecordPersistenceFailure(portOp)
	if s.logger != nil {
		s.logger.Error(ctx, "store call failed", logger.String("operation", portOp), logger.Error(err))
	}
	return fmt.Errorf("%s: %w: %w", portOp, repository.ErrPersistence, err)
}

// guard runs fn under the write lock when gate allows editing and records
// the outcome.
func (s *Service) guard(ctx context.Context, gate *auth.Gate, op string, fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return fmt.Errorf("%s: %w", op, ErrNotStarted)
	}
	err := gate.Guard(op, fn)
	switch {
	case err == nil:
		metrics.RecordMutation(op)
		s.updateGauges()
		s.logger.Debug(ctx, "mutation applied", logger.String("operation", op))
	case errors.Is(err, auth.ErrNotPermitted):
		metrics.RecordRejected(op, "not_permitted")
		s.logger.Warn(ctx, "mutation rejected without edit capability",
			logger.String("operation", op),
			logger.String("source", string(gate.Source())),
		)
	case errors.Is(err, repository.ErrPersistence):
		// State was applied locally; the failure is already recorded.
		metrics.RecordMutation(op)
		s.updateGauges()
	default:
		metrics.RecordRejected(op, reason(err))
		s.logger.Warn(ctx, "mutation rejected", logger.String("operation", op), logger.Error(err))
	}
	return err
}

func reason(err error) string {
	switch {
	case errors.Is(err, ledger.ErrValidation), errors.Is(err, roster.ErrInvalid):
		return "validation"
	case errors.Is(err, ledger.ErrNotFound), errors.Is(err, roster.ErrUnknownPlayer), errors.Is(err, roster.ErrUnknownActivity):
		return "not_found"
	case errors.Is(err, interchange.ErrFormat):
		return "format"
	default:
		return "other"
	}
}

// AppendEvent records a new entry.
func (s *Service) AppendEvent(ctx context.Context, gate *auth.Gate, in ledger.Entry) (model.Event, error) {
	var out model.Event
	err := s.guard(ctx, gate, OpAppend, func() error {
		e, err := s.ledger.Append(in)
		if err != nil {
			return err
		}
		out = e
		if _, err := s.store.InsertEvent(ctx, e); err != nil {
			return s.persistFailed(ctx, repository.OpInsertEvent, err)
		}
		return nil
	})
	return out, err
}

// AppendOnce is AppendEvent made idempotent on requestID. A retried request
// returns the entry created by the first attempt with duplicate set.
func (s *Service) AppendOnce(ctx context.Context, gate *auth.Gate, requestID string, in ledger.Entry) (e model.Event, duplicate bool, err error) {
	if requestID == "" {
		e, err = s.AppendEvent(ctx, gate, in)
		return e, false, err
	}
	if !gate.CanEdit() {
		e, err = s.AppendEvent(ctx, gate, in)
		return e, false, err
	}

	if s.deduper.SeenAndRecord(ctx, requestID) {
		metrics.RecordDuplicateRequest()
		id, ok := s.deduper.Result(ctx, requestID)
		if !ok {
			return model.Event{}, true, fmt.Errorf("request %q in flight: %w", requestID, dedupe.ErrDuplicate)
		}
		s.mu.RLock()
		prev, found := s.ledger.Get(id)
		s.mu.RUnlock()
		if !found {
			return model.Event{}, true, fmt.Errorf("request %q: entry %q no longer exists: %w", requestID, id, dedupe.ErrDuplicate)
		}
		return prev, true, nil
	}

	e, err = s.AppendEvent(ctx, gate, in)
	if err != nil && !errors.Is(err, repository.ErrPersistence) {
		s.deduper.Unrecord(ctx, requestID)
		return e, false, err
	}
	s.deduper.Bind(ctx, requestID, e.ID)
	return e, false, err
}

// UndoLast removes the most recently created entry. removed is false when
// the ledger was empty, in which case the store is not called.
func (s *Service) UndoLast(ctx context.Context, gate *auth.Gate) (e model.Event, removed bool, err error) {
	err = s.guard(ctx, gate, OpUndo, func() error {
		e, removed = s.ledger.UndoLast()
		if !removed {
			return nil
		}
		if err := s.store.DeleteEvent(ctx, e.ID); err != nil {
			return s.persistFailed(ctx, repository.OpDeleteEvent, err)
		}
		return nil
	})
	return e, removed, err
}

// UpdateEvent edits the note or activity of an entry.
func (s *Service) UpdateEvent(ctx context.Context, gate *auth.Gate, id string, patch ledger.Patch) (model.Event, error) {
	var out model.Event
	err := s.guard(ctx, gate, OpUpdate, func() error {
		before, _ := s.ledger.Get(id)
		e, err := s.ledger.Update(id, patch)
		if err != nil {
			return err
		}
		out = e
		if len(e.History) == len(before.History) {
			return nil
		}
		err = s.store.UpdateEvent(ctx, id, repository.EventPatch{
			ActivityID: &e.ActivityID,
			Points:     &e.Points,
			Note:       &e.Note,
			History:    e.History,
		})
		if err != nil {
			return s.persistFailed(ctx, repository.OpUpdateEvent, err)
		}
		return nil
	})
	return out, err
}

// RemoveEvent deletes an entry. An unknown id changes nothing and reports
// ledger.ErrNotFound.
func (s *Service) RemoveEvent(ctx context.Context, gate *auth.Gate, id string) (model.Event, error) {
	var out model.Event
	err := s.guard(ctx, gate, OpRemove, func() error {
		e, ok := s.ledger.Remove(id)
		if !ok {
			return fmt.Errorf("event %q: %w", id, ledger.ErrNotFound)
		}
		out = e
		if err := s.store.DeleteEvent(ctx, id); err != nil {
			return s.persistFailed(ctx, repository.OpDeleteEvent, err)
		}
		return nil
	})
	return out, err
}

// ResetAll clears the ledger and moves the epoch to the current midnight.
func (s *Service) ResetAll(ctx context.Context, gate *auth.Gate) error {
	return s.guard(ctx, gate, OpReset, func() error {
		s.ledger.ResetAll()
		epoch := s.ledger.Epoch()
		if err := s.store.ResetEvents(ctx, epoch.Format(time.RFC3339Nano)); err != nil {
			return s.persistFailed(ctx, repository.OpResetEvents, err)
		}
		s.logger.Info(ctx, "ledger reset", logger.Time("epoch", epoch))
		return nil
	})
}

// ImportCSV replaces the activities, and the players when the document has
// player columns. A document without usable rows changes nothing.
func (s *Service) ImportCSV(ctx context.Context, gate *auth.Gate, text string) (types.ImportSummary, error) {
	var summary types.ImportSummary
	err := s.guard(ctx, gate, OpImport, func() error {
		table, err := interchange.Parse(text)
		if err != nil {
			return err
		}
		res, err := interchange.Import(table, s.synonyms)
		if err != nil {
			return err
		}

		replaced := s.registry.Apply(res.Activities, res.Players)
		summary = types.ImportSummary{
			Activities:      len(s.registry.Activities()),
			Players:         len(s.registry.Players()),
			PlayersReplaced: replaced,
		}
		if err := s.store.ReplaceActivities(ctx, s.registry.Activities()); err != nil {
			return s.persistFailed(ctx, repository.OpReplaceActivities, err)
		}
		if replaced {
			if err := s.store.ReplacePlayers(ctx, s.registry.Players()); err != nil {
				return s.persistFailed(ctx, repository.OpReplacePlayers, err)
			}
		}
		s.logger.Info(ctx, "roster imported",
			logger.Int("activities", summary.Activities),
			logger.Int("players", summary.Players),
			logger.Bool("players_replaced", replaced),
		)
		return nil
	})
	switch {
	case err == nil:
		metrics.RecordImport("ok")
	case errors.Is(err, interchange.ErrFormat):
		metrics.RecordImport("format_error")
	case errors.Is(err, repository.ErrPersistence):
		metrics.RecordImport("save_failed")
	}
	return summary, err
}

// AddActivity defines a new activity with a generated id.
func (s *Service) AddActivity(ctx context.Context, gate *auth.Gate, name string, points float64) (model.Activity, error) {
	var out model.Activity
	err := s.guard(ctx, gate, OpAddActivity, func() error {
		a, err := s.registry.AddActivity(name, points)
		if err != nil {
			return err
		}
		out = a
		if err := s.store.UpsertActivities(ctx, []model.Activity{a}); err != nil {
			return s.persistFailed(ctx, repository.OpUpsertActivities, err)
		}
		return nil
	})
	return out, err
}

// UpdateActivity edits an activity definition. Recorded entries keep their
// points.
func (s *Service) UpdateActivity(ctx context.Context, gate *auth.Gate, id string, patch roster.ActivityPatch) (model.Activity, error) {
	var out model.Activity
	err := s.guard(ctx, gate, OpUpdateActivity, func() error {
		a, err := s.registry.UpdateActivity(id, patch)
		if err != nil {
			return err
		}
		out = a
		if err := s.store.UpsertActivities(ctx, []model.Activity{a}); err != nil {
			return s.persistFailed(ctx, repository.OpUpsertActivities, err)
		}
		return nil
	})
	return out, err
}

// UpdatePlayer edits a player's name or color.
func (s *Service) UpdatePlayer(ctx context.Context, gate *auth.Gate, id string, patch roster.PlayerPatch) (model.Player, error) {
	var out model.Player
	err := s.guard(ctx, gate, OpUpdatePlayer, func() error {
		p, err := s.registry.UpdatePlayer(id, patch)
		if err != nil {
			return err
		}
		out = p
		if err := s.store.UpsertPlayers(ctx, []model.Player{p}); err != nil {
			return s.persistFailed(ctx, repository.OpUpsertPlayers, err)
		}
		return nil
	})
	return out, err
}

// SetPlayerAvatar records the external avatar reference of a player.
func (s *Service) SetPlayerAvatar(ctx context.Context, gate *auth.Gate, id, ref string) (model.Player, error) {
	var out model.Player
	err := s.guard(ctx, gate, OpSetAvatar, func() error {
		p, err := s.registry.SetAvatarRef(id, ref)
		if err != nil {
			return err
		}
		out = p
		if err := s.store.UpdatePlayerAvatarRef(ctx, id, ref); err != nil {
			return s.persistFailed(ctx, repository.OpUpdateAvatar, err)
		}
		return nil
	})
	return out, err
}

// Gate evaluates the capability of a session arriving with b on a device
// whose remembered token lives in device.
func (s *Service) Gate(ctx context.Context, b auth.Bootstrap, device auth.TokenStore) (*auth.Gate, error) {
	opts := []auth.Option{auth.WithDefault(s.defaultCanEdit)}
	if s.strictTokens {
		issued, err := s.issuer().LoadToken(ctx)
		if err != nil {
			return auth.Viewer(), s.persistFailed(ctx, repository.OpGetSetting, err)
		}
		opts = append(opts, auth.WithVerifier(func(token string) bool {
			return issued != "" && token == issued
		}))
	}
	return auth.Evaluate(ctx, b, device, opts...)
}

// ShareLinks returns the editor and viewer links, minting the editor token
// on first use. The token is remembered on device when it is not nil.
func (s *Service) ShareLinks(ctx context.Context, gate *auth.Gate, base string, device auth.TokenStore) (auth.Links, error) {
	if !gate.CanEdit() {
		metrics.RecordRejected(OpShare, "not_permitted")
		return auth.Links{}, fmt.Errorf("%s: %w", OpShare, auth.ErrNotPermitted)
	}
	token, err := auth.EnsureToken(ctx, s.issuer())
	if err != nil {
		return auth.Links{}, s.persistFailed(ctx, repository.OpPutSetting, err)
	}
	if device != nil {
		s.remember(ctx, device, token)
	}
	return auth.NewLinks(base, token)
}

// remember stores token on a device that has none. A token the device
// already holds is never replaced.
func (s *Service) remember(ctx context.Context, device auth.TokenStore, token string) {
	held, err := device.LoadToken(ctx)
	if err != nil {
		s.logger.Warn(ctx, "could not read device token", logger.Error(err))
		return
	}
	if held != "" {
		return
	}
	if err := device.SaveToken(ctx, token); err != nil {
		s.logger.Warn(ctx, "could not remember editor token on device", logger.Error(err))
	}
}

func (s *Service) issuer() auth.TokenStore {
	return repository.SettingSlot{Store: s.store, Key: repository.SettingEditorToken}
}

// Leaderboard returns the current standings.
func (s *Service) Leaderboard(_ context.Context) []scoring.Standing {
	s.mu.RLock()
	defer s.mu.RUnlock()
	start := time.Now()
	out := scoring.Leaderboard(s.registry.Snapshot(), s.ledger.Snapshot(), scoring.WithLocale(s.locale))
	metrics.RecordAggregationLatency("leaderboard", float64(time.Since(start).Microseconds())/1000)
	return out
}

// Series returns the cumulative daily series.
func (s *Service) Series(_ context.Context) []scoring.SeriesRow {
	s.mu.RLock()
	defer s.mu.RUnlock()
	start := time.Now()
	out := scoring.DailySeries(s.registry.Snapshot(), s.ledger.Snapshot(), s.ledger.Epoch())
	metrics.RecordAggregationLatency("series", float64(time.Since(start).Microseconds())/1000)
	return out
}

// AuditLog returns every entry, newest first, with resolved names.
// Dangling references are labelled unknown.
func (s *Service) AuditLog(_ context.Context) []types.LogEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	epoch := s.ledger.Epoch()
	r := s.registry.Snapshot()
	events := s.ledger.Snapshot()
	interchange.SortChronological(events, epoch)

	out := make([]types.LogEntry, len(events))
	for i, e := range events {
		out[len(events)-1-i] = types.NewLogEntry(e, r, epoch)
	}
	return out
}

// ExportLog writes the audit log as CSV to w.
func (s *Service) ExportLog(_ context.Context, w io.Writer) error {
	s.mu.RLock()
	events, r, epoch := s.ledger.Snapshot(), s.registry.Snapshot(), s.ledger.Epoch()
	s.mu.RUnlock()
	return interchange.WriteLog(w, events, r, epoch)
}

// ExportFilename names an export taken now.
func (s *Service) ExportFilename() string {
	return interchange.ExportFilename(s.now())
}

// Event returns one entry.
func (s *Service) Event(_ context.Context, id string) (model.Event, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ledger.Get(id)
}

// Players returns the player roster in insertion order.
func (s *Service) Players(_ context.Context) []model.Player {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.registry.Players()
}

// Activities returns the activities in insertion order.
func (s *Service) Activities(_ context.Context) []model.Activity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.registry.Activities()
}

// Session describes the capability of gate.
func (s *Service) Session(_ context.Context, gate *auth.Gate) types.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return types.Session{
		CanEdit:    gate.CanEdit(),
		Source:     string(gate.Source()),
		Epoch:      s.ledger.Epoch(),
		CurrentDay: s.ledger.CurrentDay(),
	}
}

// Stats returns service statistics for monitoring.
func (s *Service) Stats(_ context.Context) types.Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return types.Stats{
		Events:     s.ledger.Len(),
		Players:    len(s.registry.Players()),
		Activities: len(s.registry.Activities()),
		Epoch:      s.ledger.Epoch(),
		CurrentDay: s.ledger.CurrentDay(),
		Store:      s.storeName,
	}
}
