package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store on modernc.org/sqlite (CGO-free). Path is a
// filesystem path to the database file; use ":memory:" for tests.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	p := strings.TrimSpace(path)
	if p == "" {
		return nil, errors.New("empty sqlite path")
	}
	d, err := sql.Open("sqlite", p)
	if err != nil {
		return nil, err
	}
	// busy timeout helps with short concurrent locks
	_, _ = d.Exec("PRAGMA busy_timeout=3000;")
	return &SQLiteStore{db: d}, nil
}

func (s *SQLiteStore) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS supervision_record(
			name TEXT PRIMARY KEY,
			pid INTEGER NOT NULL,
			state TEXT NOT NULL,
			restarts_today INTEGER NOT NULL,
			last_restart_at TIMESTAMP NULL,
			day_key TEXT NOT NULL,
			updated_at TIMESTAMP NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_supervision_record_state ON supervision_record(state);`,
	}
	for _, q := range stmts {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) Save(ctx context.Context, rec Record) error {
	rec.UpdatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO supervision_record(name, pid, state, restarts_today, last_restart_at, day_key, updated_at)
		VALUES(?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			pid=excluded.pid,
			state=excluded.state,
			restarts_today=excluded.restarts_today,
			last_restart_at=excluded.last_restart_at,
			day_key=excluded.day_key,
			updated_at=excluded.updated_at;`,
		rec.Name, rec.PID, rec.State, rec.RestartsToday, nullTime(rec.LastRestartAt), rec.DayKey, rec.UpdatedAt)
	return err
}

func (s *SQLiteStore) Get(ctx context.Context, name string) (Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT name, pid, state, restarts_today, last_restart_at, day_key, updated_at
		FROM supervision_record WHERE name=?;`, name)
	return scanRecord(row)
}

func (s *SQLiteStore) List(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, pid, state, restarts_today, last_restart_at, day_key, updated_at
		FROM supervision_record ORDER BY name;`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	out := make([]Record, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Delete(ctx context.Context, name string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM supervision_record WHERE name=?;`, name)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (Record, error) {
	var rec Record
	var last sql.NullTime
	err := row.Scan(&rec.Name, &rec.PID, &rec.State, &rec.RestartsToday, &last, &rec.DayKey, &rec.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, err
	}
	if last.Valid {
		rec.LastRestartAt = last.Time
	}
	return rec, nil
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
