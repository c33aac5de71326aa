package sqlstore

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	persistence "github.com/goliatone/go-persistence-bun"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/schema"

	"github.com/goliatone/go-billgate/core"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// PersistenceConfig adapts core.StoreConfig to the persistence client.
type PersistenceConfig struct {
	Store       core.StoreConfig
	ServiceName string
	PingTimeout time.Duration
}

func (c PersistenceConfig) GetDebug() bool {
	return c.Store.Debug
}

func (c PersistenceConfig) GetDriver() string {
	return strings.TrimSpace(c.Store.Driver)
}

func (c PersistenceConfig) GetServer() string {
	return strings.TrimSpace(c.Store.DSN)
}

func (c PersistenceConfig) GetPingTimeout() time.Duration {
	if c.PingTimeout > 0 {
		return c.PingTimeout
	}
	return 5 * time.Second
}

func (c PersistenceConfig) GetOtelIdentifier() string {
	if name := strings.TrimSpace(c.ServiceName); name != "" {
		return name
	}
	return "billgate"
}

// MigrationDialect maps a store driver to its migration tree.
func MigrationDialect(driver string) string {
	if strings.TrimSpace(driver) == DriverSQLite {
		return "sqlite"
	}
	return "postgres"
}

// Open connects to the configured store and returns a persistence client.
func Open(cfg PersistenceConfig) (*persistence.Client, error) {
	driver := cfg.GetDriver()
	var dialect schema.Dialect
	switch driver {
	case DriverSQLite:
		dialect = sqlitedialect.New()
	case DriverPostgres:
		dialect = pgdialect.New()
	default:
		return nil, fmt.Errorf("sqlstore: unsupported driver %q", driver)
	}
	if cfg.GetServer() == "" {
		return nil, fmt.Errorf("sqlstore: dsn is required")
	}

	sqlDB, err := sql.Open(driver, cfg.GetServer())
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open %s: %w", driver, err)
	}
	if driver == DriverSQLite {
		sqlDB.SetMaxOpenConns(1)
	}
	client, err := persistence.New(cfg, sqlDB, dialect)
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("sqlstore: new persistence client: %w", err)
	}
	return client, nil
}
