package access

import (
	"fmt"

	"translate-tg-bot/internal/config"
)

// Open creates the store selected by the storage configuration
func Open(cfg config.StorageConfig, opts ...Option) (Store, error) {
	switch cfg.Driver {
	case "memory":
		return NewMemoryStore(opts...), nil
	case "sqlite":
		return NewSQLiteStore(cfg.DSN, opts...)
	case "postgres":
		return NewPostgresStore(cfg.DSN, opts...)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
