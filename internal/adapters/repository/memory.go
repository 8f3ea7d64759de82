package repository

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/okian/fantavacanza/internal/domain/model"
)

// MemoryStore keeps the state in process. Every successful write notifies
// subscribers from a background dispatcher; bursts are coalesced. A
// MemoryStore is one handle shared by all writers, so a subscriber is also
// notified of its own writes.
type MemoryStore struct {
	mu         sync.RWMutex
	players    []model.Player
	activities []model.Activity
	events     []model.Event
	settings   map[string]string
	maxSeq     int64
	closed     bool

	opts    *options
	subs    subscribers
	pending chan struct{}
	done    chan struct{}
	wg      sync.WaitGroup
}

// NewMemoryStore creates an empty store and starts its dispatcher.
func NewMemoryStore(opts ...Option) *MemoryStore {
	s := &MemoryStore{
		settings: make(map[string]string),
		opts:     newOptions(opts),
		pending:  make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
	s.wg.Add(1)
	go s.dispatch()
	return s
}

func (s *MemoryStore) dispatch() {
	defer s.wg.Done()
	for {
		select {
		case <-s.done:
			return
		case <-s.pending:
			s.subs.fire()
		}
	}
}

func (s *MemoryStore) notify() {
	select {
	case s.pending <- struct{}{}:
	default:
	}
}

// begin checks the store state and the failure hook. Callers hold s.mu.
func (s *MemoryStore) begin(op string) error {
	if s.closed {
		return fmt.Errorf("%s: %w", op, ErrClosed)
	}
	if s.opts.fail != nil {
		if err := s.opts.fail(op); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}
	return nil
}

func (s *MemoryStore) LoadAll(context.Context) (Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return Snapshot{}, fmt.Errorf("%s: %w", OpLoadAll, ErrClosed)
	}
	snap := Snapshot{
		Players:    append([]model.Player(nil), s.players...),
		Activities: append([]model.Activity(nil), s.activities...),
		Events:     make([]model.Event, len(s.events)),
	}
	for i, e := range s.events {
		snap.Events[i] = e.Clone()
	}
	return snap, nil
}

func (s *MemoryStore) UpsertPlayers(_ context.Context, players []model.Player) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(OpUpsertPlayers); err != nil {
		return err
	}
	for _, p := range players {
		if i := indexOf(s.players, p.ID, func(x model.Player) string { return x.ID }); i >= 0 {
			s.players[i] = p
		} else {
			s.players = append(s.players, p)
		}
	}
	s.notify()
	return nil
}

func (s *MemoryStore) UpsertActivities(_ context.Context, activities []model.Activity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(OpUpsertActivities); err != nil {
		return err
	}
	for _, a := range activities {
		if i := indexOf(s.activities, a.ID, func(x model.Activity) string { return x.ID }); i >= 0 {
			s.activities[i] = a
		} else {
			s.activities = append(s.activities, a)
		}
	}
	s.notify()
	return nil
}

func (s *MemoryStore) ReplacePlayers(_ context.Context, players []model.Player) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(OpReplacePlayers); err != nil {
		return err
	}
	s.players = append([]model.Player(nil), players...)
	s.notify()
	return nil
}

func (s *MemoryStore) ReplaceActivities(_ context.Context, activities []model.Activity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(OpReplaceActivities); err != nil {
		return err
	}
	s.activities = append([]model.Activity(nil), activities...)
	s.notify()
	return nil
}

func (s *MemoryStore) InsertEvent(_ context.Context, e model.Event) (model.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(OpInsertEvent); err != nil {
		return model.Event{}, err
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = s.opts.now()
	}
	if e.Seq == 0 {
		e.Seq = s.maxSeq + 1
	}
	s.maxSeq = max(s.maxSeq, e.Seq)

	e = e.Clone()
	if i := indexOf(s.events, e.ID, func(x model.Event) string { return x.ID }); i >= 0 {
		s.events[i] = e
	} else {
		s.events = append(s.events, e)
	}
	s.notify()
	return e.Clone(), nil
}

func (s *MemoryStore) UpdateEvent(_ context.Context, id string, patch EventPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(OpUpdateEvent); err != nil {
		return err
	}
	i := indexOf(s.events, id, func(x model.Event) string { return x.ID })
	if i < 0 {
		return fmt.Errorf("%s %q: %w", OpUpdateEvent, id, ErrNotFound)
	}
	e := &s.events[i]
	if patch.ActivityID != nil {
		e.ActivityID = *patch.ActivityID
	}
	if patch.Points != nil {
		e.Points = *patch.Points
	}
	if patch.Note != nil {
		e.Note = *patch.Note
	}
	if patch.History != nil {
		e.History = append([]model.Revision(nil), patch.History...)
	}
	s.notify()
	return nil
}

func (s *MemoryStore) DeleteEvent(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(OpDeleteEvent); err != nil {
		return err
	}
	if i := indexOf(s.events, id, func(x model.Event) string { return x.ID }); i >= 0 {
		s.events = append(s.events[:i], s.events[i+1:]...)
		s.notify()
	}
	return nil
}

func (s *MemoryStore) ResetEvents(_ context.Context, epoch string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(OpResetEvents); err != nil {
		return err
	}
	s.events = nil
	s.settings[SettingEpoch] = epoch
	s.notify()
	return nil
}

func (s *MemoryStore) Subscribe(fn func()) func() {
	return s.subs.add(fn)
}

func (s *MemoryStore) UpdatePlayerAvatarRef(_ context.Context, playerID, ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(OpUpdateAvatar); err != nil {
		return err
	}
	i := indexOf(s.players, playerID, func(x model.Player) string { return x.ID })
	if i < 0 {
		return fmt.Errorf("%s %q: %w", OpUpdateAvatar, playerID, ErrNotFound)
	}
	s.players[i].AvatarRef = ref
	s.notify()
	return nil
}

func (s *MemoryStore) GetSetting(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return "", fmt.Errorf("%s: %w", OpGetSetting, ErrClosed)
	}
	v, ok := s.settings[key]
	if !ok {
		return "", fmt.Errorf("setting %q: %w", key, ErrNotFound)
	}
	return v, nil
}

func (s *MemoryStore) PutSetting(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(OpPutSetting); err != nil {
		return err
	}
	s.settings[key] = value
	return nil
}

// Close stops the dispatcher. Further calls fail with ErrClosed.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	close(s.done)
	s.wg.Wait()
	return nil
}

func indexOf[T any](items []T, id string, key func(T) string) int {
	for i, it := range items {
		if key(it) == id {
			return i
		}
	}
	return -1
}
