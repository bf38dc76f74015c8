package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// PostgresStore implements Store on PostgreSQL via the pgx stdlib driver.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens and pings a PostgreSQL database described by cfg.
// cfg.DSN takes precedence over the individual connection fields.
func NewPostgresStore(cfg Config) (*PostgresStore, error) {
	dsn := cfg.DSN
	if dsn == "" {
		host := cfg.Host
		if host == "" {
			host = "localhost"
		}
		port := cfg.Port
		if port == 0 {
			port = 5432
		}
		ssl := cfg.SSLMode
		if ssl == "" {
			ssl = "disable"
		}
		dsn = fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			host, port, cfg.Username, cfg.Password, cfg.Database, ssl)
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS supervision_record(
			name TEXT PRIMARY KEY,
			pid INTEGER NOT NULL,
			state TEXT NOT NULL,
			restarts_today INTEGER NOT NULL,
			last_restart_at TIMESTAMPTZ NULL,
			day_key TEXT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		);`)
	return err
}

func (s *PostgresStore) Close() error { return s.db.Close() }

func (s *PostgresStore) Save(ctx context.Context, rec Record) error {
	rec.UpdatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO supervision_record(name, pid, state, restarts_today, last_restart_at, day_key, updated_at)
		VALUES($1, $2, $3, $4, $5, $6, $7)
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

func (s *PostgresStore) Get(ctx context.Context, name string) (Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT name, pid, state, restarts_today, last_restart_at, day_key, updated_at
		FROM supervision_record WHERE name=$1;`, name)
	return scanRecord(row)
}

func (s *PostgresStore) List(ctx context.Context) ([]Record, error) {
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

func (s *PostgresStore) Delete(ctx context.Context, name string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM supervision_record WHERE name=$1;`, name)
	return err
}
