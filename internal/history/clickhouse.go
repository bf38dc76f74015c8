package history

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

// ClickHouseSink sends supervision events to ClickHouse using the official
// Go client.
type ClickHouseSink struct {
	conn  driver.Conn
	table string
}

// ClickHouseConfig holds the connection parameters for a ClickHouse sink.
type ClickHouseConfig struct {
	Addr     string `toml:"addr" mapstructure:"addr"`
	Database string `toml:"database" mapstructure:"database"`
	Username string `toml:"username" mapstructure:"username"`
	Password string `toml:"password" mapstructure:"password"`
	Table    string `toml:"table" mapstructure:"table"`
}

func NewClickHouseSink(cfg ClickHouseConfig) (*ClickHouseSink, error) {
	if cfg.Database == "" {
		cfg.Database = "default"
	}
	if cfg.Username == "" {
		cfg.Username = "default"
	}
	if cfg.Table == "" {
		cfg.Table = "supervision_history"
	}
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.Addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}
	if err := conn.Ping(context.Background()); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}
	return &ClickHouseSink{conn: conn, table: cfg.Table}, nil
}

func (s *ClickHouseSink) Send(ctx context.Context, e Event) error {
	query := fmt.Sprintf(`INSERT INTO %s (event, occurred_at, service, from_state, to_state, pid, restarts_today, detail) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`, s.table)
	err := s.conn.Exec(ctx, query,
		string(e.Type),
		e.OccurredAt,
		e.Service,
		e.FromState,
		e.ToState,
		e.PID,
		e.RestartsToday,
		e.Detail,
	)
	if err != nil {
		return fmt.Errorf("failed to insert event into ClickHouse: %w", err)
	}
	return nil
}

func (s *ClickHouseSink) Close() error {
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}
