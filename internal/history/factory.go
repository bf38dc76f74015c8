package history

import "fmt"

// Config selects a history sink backend.
type Config struct {
	Type       string           `toml:"type" mapstructure:"type"` // "sqlite", "postgres", "clickhouse"
	DSN        string           `toml:"dsn,omitempty" mapstructure:"dsn"`
	ClickHouse ClickHouseConfig `toml:"clickhouse,omitempty" mapstructure:"clickhouse"`
}

// NewSink builds a sink from config.
func NewSink(cfg Config) (Sink, error) {
	switch cfg.Type {
	case "sqlite", "postgres", "postgresql", "sql":
		return NewSQLSinkFromDSN(cfg.DSN)
	case "clickhouse":
		return NewClickHouseSink(cfg.ClickHouse)
	default:
		return nil, fmt.Errorf("unsupported history sink type: %s (supported: sqlite, postgres, clickhouse)", cfg.Type)
	}
}
