package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/okian/fantavacanza/internal/domain/model"
	_ "modernc.org/sqlite"
)

const schemaVersion = 1

// SQLiteStore persists the state in a SQLite database. Changes committed by
// other connections to the same file are detected through PRAGMA
// data_version and reported to subscribers.
type SQLiteStore struct {
	db   *sql.DB
	opts *options
	subs subscribers

	closeOnce sync.Once
	done      chan struct{}
	wg        sync.WaitGroup
}

// NewSQLiteStore opens (or creates) the database at path, runs migrations
// and starts the change poller.
func NewSQLiteStore(path string, opts ...Option) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One connection: data_version only moves for commits made elsewhere.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("exec pragma %q: %w", p, err)
		}
	}

	s := &SQLiteStore{db: db, opts: newOptions(opts), done: make(chan struct{})}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	if s.opts.pollInterval > 0 {
		version, err := s.dataVersion(context.Background())
		if err != nil {
			db.Close()
			return nil, err
		}
		s.wg.Add(1)
		go s.poll(version)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	var version int
	if err := s.db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read user_version: %w", err)
	}
	if version >= schemaVersion {
		return nil
	}
	if version < 1 {
		if err := s.migrateV1(); err != nil {
			return err
		}
	}
	_, err := s.db.Exec(fmt.Sprintf("PRAGMA user_version = %d", schemaVersion))
	return err
}

func (s *SQLiteStore) migrateV1() error {
	const ddl = `
	CREATE TABLE IF NOT EXISTS players (
		id          TEXT PRIMARY KEY,
		name        TEXT NOT NULL,
		color       TEXT NOT NULL DEFAULT '',
		avatar_ref  TEXT NOT NULL DEFAULT '',
		position    INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS activities (
		id          TEXT PRIMARY KEY,
		name        TEXT NOT NULL,
		points      REAL NOT NULL DEFAULT 0,
		position    INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS events (
		id          TEXT PRIMARY KEY,
		seq         INTEGER NOT NULL,
		player_id   TEXT NOT NULL,
		activity_id TEXT NOT NULL,
		points      REAL NOT NULL,
		note        TEXT NOT NULL DEFAULT '',
		ts          TEXT NOT NULL,
		day         INTEGER NOT NULL DEFAULT 0,
		history     TEXT NOT NULL DEFAULT '[]'
	);

	CREATE INDEX IF NOT EXISTS idx_events_seq ON events(seq);

	CREATE TABLE IF NOT EXISTS settings (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("migrate v1: %w", err)
	}
	return nil
}

func (s *SQLiteStore) dataVersion(ctx context.Context) (int64, error) {
	var v int64
	if err := s.db.QueryRowContext(ctx, "PRAGMA data_version").Scan(&v); err != nil {
		return 0, fmt.Errorf("read data_version: %w", err)
	}
	return v, nil
}

func (s *SQLiteStore) poll(last int64) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.opts.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			v, err := s.dataVersion(context.Background())
			if err != nil {
				continue
			}
			if v != last {
				last = v
				s.subs.fire()
			}
		}
	}
}

func (s *SQLiteStore) check(op string) error {
	select {
	case <-s.done:
		return fmt.Errorf("%s: %w", op, ErrClosed)
	default:
	}
	if s.opts.fail != nil {
		if err := s.opts.fail(op); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}
	return nil
}

func (s *SQLiteStore) inTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	if err := s.check(op); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: begin: %w", op, err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: commit: %w", op, err)
	}
	return nil
}

func (s *SQLiteStore) LoadAll(ctx context.Context) (Snapshot, error) {
	select {
	case <-s.done:
		return Snapshot{}, fmt.Errorf("%s: %w", OpLoadAll, ErrClosed)
	default:
	}
	var snap Snapshot

	rows, err := s.db.QueryContext(ctx, `SELECT id, name, color, avatar_ref FROM players ORDER BY position, rowid`)
	if err != nil {
		return Snapshot{}, fmt.Errorf("list players: %w", err)
	}
	for rows.Next() {
		var p model.Player
		if err := rows.Scan(&p.ID, &p.Name, &p.Color, &p.AvatarRef); err != nil {
			rows.Close()
			return Snapshot{}, err
		}
		snap.Players = append(snap.Players, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return Snapshot{}, err
	}

	rows, err = s.db.QueryContext(ctx, `SELECT id, name, points FROM activities ORDER BY position, rowid`)
	if err != nil {
		return Snapshot{}, fmt.Errorf("list activities: %w", err)
	}
	for rows.Next() {
		var a model.Activity
		if err := rows.Scan(&a.ID, &a.Name, &a.Points); err != nil {
			rows.Close()
			return Snapshot{}, err
		}
		snap.Activities = append(snap.Activities, a)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return Snapshot{}, err
	}

	rows, err = s.db.QueryContext(ctx,
		`SELECT id, seq, player_id, activity_id, points, note, ts, day, history FROM events ORDER BY seq, rowid`)
	if err != nil {
		return Snapshot{}, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			e       model.Event
			ts      string
			history string
		)
		if err := rows.Scan(&e.ID, &e.Seq, &e.PlayerID, &e.ActivityID, &e.Points, &e.Note, &ts, &e.Day, &history); err != nil {
			return Snapshot{}, err
		}
		if e.Timestamp, err = time.Parse(time.RFC3339Nano, ts); err != nil {
			return Snapshot{}, fmt.Errorf("event %q timestamp: %w", e.ID, err)
		}
		if err := json.Unmarshal([]byte(history), &e.History); err != nil {
			return Snapshot{}, fmt.Errorf("event %q history: %w", e.ID, err)
		}
		if len(e.History) == 0 {
			e.History = nil
		}
		snap.Events = append(snap.Events, e)
	}
	return snap, rows.Err()
}

func (s *SQLiteStore) UpsertPlayers(ctx context.Context, players []model.Player) error {
	return s.inTx(ctx, OpUpsertPlayers, func(tx *sql.Tx) error {
		for _, p := range players {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO players (id, name, color, avatar_ref, position)
				VALUES (?, ?, ?, ?, (SELECT COALESCE(MAX(position), -1) + 1 FROM players))
				ON CONFLICT(id) DO UPDATE SET name = excluded.name, color = excluded.color, avatar_ref = excluded.avatar_ref`,
				p.ID, p.Name, p.Color, p.AvatarRef)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *SQLiteStore) UpsertActivities(ctx context.Context, activities []model.Activity) error {
	return s.inTx(ctx, OpUpsertActivities, func(tx *sql.Tx) error {
		for _, a := range activities {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO activities (id, name, points, position)
				VALUES (?, ?, ?, (SELECT COALESCE(MAX(position), -1) + 1 FROM activities))
				ON CONFLICT(id) DO UPDATE SET name = excluded.name, points = excluded.points`,
				a.ID, a.Name, a.Points)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *SQLiteStore) ReplacePlayers(ctx context.Context, players []model.Player) error {
	return s.inTx(ctx, OpReplacePlayers, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM players`); err != nil {
			return err
		}
		for i, p := range players {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO players (id, name, color, avatar_ref, position) VALUES (?, ?, ?, ?, ?)`,
				p.ID, p.Name, p.Color, p.AvatarRef, i); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *SQLiteStore) ReplaceActivities(ctx context.Context, activities []model.Activity) error {
	return s.inTx(ctx, OpReplaceActivities, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM activities`); err != nil {
			return err
		}
		for i, a := range activities {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO activities (id, name, points, position) VALUES (?, ?, ?, ?)`,
				a.ID, a.Name, a.Points, i); err != nil {
				return err
			}
		}
		return nil
	})
}

func encodeHistory(h []model.Revision) (string, error) {
	if len(h) == 0 {
		return "[]", nil
	}
	raw, err := json.Marshal(h)
	if err != nil {
		return "", fmt.Errorf("encode history: %w", err)
	}
	return string(raw), nil
}

func (s *SQLiteStore) InsertEvent(ctx context.Context, e model.Event) (model.Event, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = s.opts.now()
	}
	history, err := encodeHistory(e.History)
	if err != nil {
		return model.Event{}, err
	}
	err = s.inTx(ctx, OpInsertEvent, func(tx *sql.Tx) error {
		if e.Seq == 0 {
			if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) + 1 FROM events`).Scan(&e.Seq); err != nil {
				return err
			}
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO events (id, seq, player_id, activity_id, points, note, ts, day, history)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET seq = excluded.seq, player_id = excluded.player_id,
				activity_id = excluded.activity_id, points = excluded.points, note = excluded.note,
				ts = excluded.ts, day = excluded.day, history = excluded.history`,
			e.ID, e.Seq, e.PlayerID, e.ActivityID, e.Points, e.Note,
			e.Timestamp.UTC().Format(time.RFC3339Nano), e.Day, history)
		return err
	})
	if err != nil {
		return model.Event{}, err
	}
	return e.Clone(), nil
}

func (s *SQLiteStore) UpdateEvent(ctx context.Context, id string, patch EventPatch) error {
	return s.inTx(ctx, OpUpdateEvent, func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM events WHERE id = ?`, id).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("event %q: %w", id, ErrNotFound)
		}
		if err != nil {
			return err
		}
		if patch.ActivityID != nil {
			if _, err := tx.ExecContext(ctx, `UPDATE events SET activity_id = ? WHERE id = ?`, *patch.ActivityID, id); err != nil {
				return err
			}
		}
		if patch.Points != nil {
			if _, err := tx.ExecContext(ctx, `UPDATE events SET points = ? WHERE id = ?`, *patch.Points, id); err != nil {
				return err
			}
		}
		if patch.Note != nil {
			if _, err := tx.ExecContext(ctx, `UPDATE events SET note = ? WHERE id = ?`, *patch.Note, id); err != nil {
				return err
			}
		}
		if patch.History != nil {
			history, err := encodeHistory(patch.History)
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, `UPDATE events SET history = ? WHERE id = ?`, history, id); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *SQLiteStore) DeleteEvent(ctx context.Context, id string) error {
	return s.inTx(ctx, OpDeleteEvent, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `DELETE FROM events WHERE id = ?`, id)
		return err
	})
}

func (s *SQLiteStore) ResetEvents(ctx context.Context, epoch string) error {
	return s.inTx(ctx, OpResetEvents, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM events`); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO settings (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
			SettingEpoch, epoch)
		return err
	})
}

func (s *SQLiteStore) Subscribe(fn func()) func() {
	return s.subs.add(fn)
}

func (s *SQLiteStore) UpdatePlayerAvatarRef(ctx context.Context, playerID, ref string) error {
	return s.inTx(ctx, OpUpdateAvatar, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE players SET avatar_ref = ? WHERE id = ?`, ref, playerID)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("player %q: %w", playerID, ErrNotFound)
		}
		return nil
	})
}

func (s *SQLiteStore) GetSetting(ctx context.Context, key string) (string, error) {
	select {
	case <-s.done:
		return "", fmt.Errorf("%s: %w", OpGetSetting, ErrClosed)
	default:
	}
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("setting %q: %w", key, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("get setting %q: %w", key, err)
	}
	return value, nil
}

func (s *SQLiteStore) PutSetting(ctx context.Context, key, value string) error {
	return s.inTx(ctx, OpPutSetting, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO settings (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
			key, value)
		return err
	})
}

// Close stops the poller and closes the database.
func (s *SQLiteStore) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}
