package store

import "fmt"

// New builds a Store from config. The file backend is the default so a bare
// config still gets durable, human-readable state.
func New(cfg Config) (Store, error) {
	switch cfg.Type {
	case "", "file":
		return NewFileStore(cfg.Path)
	case "sqlite":
		return NewSQLiteStore(cfg.Path)
	case "postgres", "postgresql":
		return NewPostgresStore(cfg)
	default:
		return nil, fmt.Errorf("unsupported store type: %s (supported: file, sqlite, postgres)", cfg.Type)
	}
}
