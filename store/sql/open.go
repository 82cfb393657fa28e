package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"strings"
	"time"

	itrpmigrations "github.com/goliatone/go-itrp/migrations"
	persistence "github.com/goliatone/go-persistence-bun"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/schema"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// Config describes the database behind the job ledger. It satisfies the
// go-persistence-bun configuration contract.
type Config struct {
	Driver      string        `koanf:"driver" json:"driver"`
	DSN         string        `koanf:"dsn" json:"dsn"`
	Debug       bool          `koanf:"debug" json:"debug"`
	PingTimeout time.Duration `koanf:"ping_timeout" json:"ping_timeout"`
}

func (c Config) GetDebug() bool {
	return c.Debug
}

func (c Config) GetDriver() string {
	return c.Driver
}

func (c Config) GetServer() string {
	return c.DSN
}

func (c Config) GetPingTimeout() time.Duration {
	if c.PingTimeout <= 0 {
		return 5 * time.Second
	}
	return c.PingTimeout
}

func (c Config) GetOtelIdentifier() string {
	return "go-itrp"
}

// Open connects to the configured database, applies the embedded migrations
// for its dialect and returns the persistence client.
func Open(ctx context.Context, cfg Config) (*persistence.Client, error) {
	cfg.Driver = strings.TrimSpace(strings.ToLower(cfg.Driver))
	if cfg.Driver == "" {
		cfg.Driver = DriverSQLite
	}
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, fmt.Errorf("sqlstore: dsn is required")
	}

	dialect, migrationDialect, err := dialectFor(cfg.Driver)
	if err != nil {
		return nil, err
	}

	sqlDB, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open %s: %w", cfg.Driver, err)
	}
	if cfg.Driver == DriverSQLite {
		sqlDB.SetMaxOpenConns(1)
	}

	client, err := persistence.New(cfg, sqlDB, dialect)
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("sqlstore: new persistence client: %w", err)
	}

	_, err = itrpmigrations.Register(ctx, func(_ context.Context, dialect string, _ string, fsys fs.FS) error {
		if dialect != migrationDialect {
			return nil
		}
		client.RegisterSQLMigrations(fsys)
		return nil
	}, itrpmigrations.WithValidationTargets(migrationDialect))
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	if err := client.Migrate(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("sqlstore: migrate: %w", err)
	}
	return client, nil
}

func dialectFor(driver string) (schema.Dialect, string, error) {
	migrationDialect, err := itrpmigrations.DialectForDriver(driver)
	if err != nil {
		return nil, "", fmt.Errorf("sqlstore: unsupported driver %q", driver)
	}
	if migrationDialect == itrpmigrations.DialectPostgres {
		return pgdialect.New(), migrationDialect, nil
	}
	return sqlitedialect.New(), migrationDialect, nil
}
