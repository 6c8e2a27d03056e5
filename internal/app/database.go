package app

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/newrelic/go-agent/v3/integrations/nrpq" // Registers "nrpostgres" driver
	"github.com/newrelic/go-agent/v3/newrelic"

	"tuition/internal/config"
	"tuition/internal/repository/sqlstore"
)

// DatabaseDialect returns the sqlstore dialect for the configured driver.
func DatabaseDialect(cfg config.DatabaseConfig) sqlstore.Dialect {
	if cfg.Driver == config.DriverSQLite {
		return sqlstore.DialectSQLite
	}
	return sqlstore.DialectPostgres
}

// NewDatabase opens the configured database and ensures the schema exists.
// For PostgreSQL, if nrApp is provided, it uses the New Relic instrumented driver for SQL tracing.
func NewDatabase(ctx context.Context, cfg config.DatabaseConfig, nrApp *newrelic.Application) (*sql.DB, error) {
	if cfg.Driver == config.DriverSQLite {
		return sqlstore.OpenSQLite(ctx, cfg.SQLitePath)
	}

	dsn := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode,
	)

	driverName := "postgres"
	if nrApp != nil {
		// The "nrpostgres" driver is registered by the nrpq import.
		driverName = "nrpostgres"
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// The ledger writer takes a second connection while a payment
	// transaction may still hold one, so the pool must never be capped at 1.
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxOpenConns / 2)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := sqlstore.Migrate(ctx, db, DatabaseDialect(cfg)); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}
