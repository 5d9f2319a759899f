package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type StorageType string

const (
	StorageTypePostgres StorageType = "postgres"
	StorageTypeSQLite   StorageType = "sqlite"
	StorageTypeInMemory StorageType = "inMemory"
)

type FactoryConfig struct {
	StorageType  StorageType
	PostgresDSN  *string
	SqliteDBPath *string
}

// NewConnectionFactory создает подключение к хранилищу выбранного типа.
// Возвращает *pgxpool.Pool, *gorm.DB или *MemoryStorage; схема БД создается здесь же.
func NewConnectionFactory(ctx context.Context, config FactoryConfig) (any, error) {
	switch config.StorageType {
	case StorageTypePostgres:
		if config.PostgresDSN == nil {
			return nil, errors.New("postgres dsn is empty")
		}
		pool, err := NewPostgresConnection(ctx, *config.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("failed to create postgres connection: %w", err)
		}
		if migrateErr := simpleMigrateSchema(ctx, pool); migrateErr != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to migrate schema: %w", migrateErr)
		}
		return pool, nil
	case StorageTypeSQLite:
		if config.SqliteDBPath == nil {
			return nil, errors.New("sqlite path is empty")
		}
		conn, err := NewSQLite(*config.SqliteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create sqlite connection: %w", err)
		}
		return conn, nil
	case StorageTypeInMemory:
		return NewMemStorage(), nil
	default:
		return nil, fmt.Errorf("unknown storage type: %s", config.StorageType)
	}
}

// Коды из links не удаляются физически (deleted_at), поэтому short_code остается занятым навсегда.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS links (
    short_code VARCHAR(8) PRIMARY KEY,
    id UUID NOT NULL UNIQUE,
    original_url VARCHAR(2048) NOT NULL,
    clicks BIGINT NOT NULL DEFAULT 0,
    created_at timestamp with time zone NOT NULL DEFAULT now(),
    expires_at timestamp with time zone,
    deleted_at timestamp with time zone,
    archived_at timestamp with time zone
);
ALTER TABLE links ADD COLUMN IF NOT EXISTS archived_at timestamp with time zone;
CREATE INDEX IF NOT EXISTS idx_links_expires_at ON links (expires_at) WHERE deleted_at IS NULL;

CREATE TABLE IF NOT EXISTS click_events (
    id BIGSERIAL PRIMARY KEY,
    short_code VARCHAR(8) NOT NULL REFERENCES links (short_code),
    ts timestamp with time zone NOT NULL,
    user_agent TEXT NOT NULL DEFAULT '',
    source VARCHAR(255) NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_click_events_short_code_id ON click_events (short_code, id);
`

func simpleMigrateSchema(ctx context.Context, conn *pgxpool.Pool) error {
	_, err := conn.Exec(ctx, schemaSQL)
	return err //nolint:wrapcheck
}
