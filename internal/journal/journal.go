// Package journal keeps exit-time positions on disk until the session store has
// acknowledged them.
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/spigell/cv-coach/internal/logger"
	"github.com/spigell/cv-coach/internal/session"
)

// Store is the part of the session store a flush needs.
type Store interface {
	Fetch(ctx context.Context, id string) (*session.Session, error)
	PersistPosition(ctx context.Context, id string, index int) error
}

// Entry is a position that may not have reached the store.
type Entry struct {
	SessionID  string
	Index      int
	RecordedAt time.Time
}

type Journal struct {
	db     *sql.DB
	logger *zap.Logger
}

// Open opens (or creates) the journal database at path.
func Open(path string, log *zap.Logger) (*Journal, error) {
	if log == nil {
		log = zap.NewNop()
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("journal: mkdir %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("journal: open db: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("journal: init schema: %w", err)
	}

	return &Journal{db: db, logger: log}, nil
}

func initSchema(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS positions (
		session_id  TEXT PRIMARY KEY,
		idx         INTEGER NOT NULL,
		recorded_at TEXT NOT NULL
	)`)
	return err
}

// Record stores the position for a session. An existing entry keeps the larger index.
func (j *Journal) Record(ctx context.Context, sessionID string, index int) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO positions (session_id, idx, recorded_at) VALUES (?, ?, ?)
		 ON CONFLICT(session_id) DO UPDATE SET
		   idx = MAX(positions.idx, excluded.idx),
		   recorded_at = excluded.recorded_at`,
		sessionID, index, now,
	)
	if err != nil {
		return fmt.Errorf("journal: record %s: %w", sessionID, err)
	}
	return nil
}

func (j *Journal) Forget(ctx context.Context, sessionID string) error {
	if _, err := j.db.ExecContext(ctx, `DELETE FROM positions WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("journal: forget %s: %w", sessionID, err)
	}
	return nil
}

// Pending returns every journaled position, oldest first.
func (j *Journal) Pending(ctx context.Context) ([]Entry, error) {
	rows, err := j.db.QueryContext(ctx, `SELECT session_id, idx, recorded_at FROM positions ORDER BY recorded_at`)
	if err != nil {
		return nil, fmt.Errorf("journal: list: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e          Entry
			recordedAt string
		)
		if err := rows.Scan(&e.SessionID, &e.Index, &recordedAt); err != nil {
			return nil, fmt.Errorf("journal: scan: %w", err)
		}
		e.RecordedAt, _ = time.Parse(time.RFC3339Nano, recordedAt)
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// Flush re-sends pending positions and returns how many were delivered. A position
// is only sent when the store is still behind it; entries for finished, deleted or
// already advanced sessions are dropped. Anything else stays journaled for the next
// flush.
func (j *Journal) Flush(ctx context.Context, store Store) (int, error) {
	entries, err := j.Pending(ctx)
	if err != nil {
		return 0, err
	}

	var (
		delivered int
		errs      []error
	)
	for _, e := range entries {
		log := j.logger.With(zap.String(logger.FieldSession, e.SessionID), zap.Int(logger.FieldIndex, e.Index))

		sent, err := j.deliver(ctx, store, e, log)
		switch {
		case err == nil:
			if sent {
				delivered++
			}
		case errors.Is(err, session.ErrNotFound) || errors.Is(err, session.ErrConflict):
			log.Info("dropping journaled position", zap.Error(err))
		default:
			errs = append(errs, fmt.Errorf("session %s: %w", e.SessionID, err))
			continue
		}

		if err := j.Forget(ctx, e.SessionID); err != nil {
			errs = append(errs, err)
		}
	}

	return delivered, errors.Join(errs...)
}

// deliver sends e unless the store has already reached or passed it.
func (j *Journal) deliver(ctx context.Context, store Store, e Entry, log *zap.Logger) (bool, error) {
	current, err := store.Fetch(ctx, e.SessionID)
	if err != nil {
		return false, err
	}

	if current.Completed || current.CurrentIndex >= e.Index {
		log.Info("store is already ahead of journaled position",
			zap.Int("stored_index", current.CurrentIndex),
			zap.Bool("completed", current.Completed),
		)
		return false, nil
	}

	if err := store.PersistPosition(ctx, e.SessionID, e.Index); err != nil {
		return false, err
	}

	log.Info("journaled position delivered")
	return true, nil
}

func (j *Journal) Close() error {
	return j.db.Close()
}
