package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/Ritenoob/cypherscoping--sub005/internal/config"
	"github.com/Ritenoob/cypherscoping--sub005/internal/domain"
)

// Store is a result repository that owns a connection.
type Store interface {
	domain.ResultRepository
	io.Closer
}

var (
	_ Store = (*SQLiteStore)(nil)
	_ Store = (*PostgresStore)(nil)
)

// Open picks the backend named by cfg.Driver.
func Open(ctx context.Context, cfg config.StorageConfig) (Store, error) {
	switch cfg.Driver {
	case "", "sqlite":
		return NewSQLiteStore(cfg.DSN)
	case "postgres":
		return NewPostgresStore(ctx, cfg.DSN, DefaultPoolConfig())
	}
	return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
}
