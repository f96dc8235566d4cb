// Package db — driver.go
// Defines the pluggable driver abstraction layer. Each adapter implements
// Driver and registers itself, enabling Open() to be driver-agnostic while
// preserving explicit DSN construction per database.
package db

import (
	"fmt"
	"os"
	"sync"
)

// ─────────────────────────────────────────────────────────────────────────────
// Driver interface
// ─────────────────────────────────────────────────────────────────────────────

// Driver encapsulates database-specific behaviour:
//   - building a DSN from structured options
//   - providing a driver-specific ErrorMapper
//   - providing the SQL Dialect
//
// Implement Driver to add support for a new database without modifying the
// core package. The underlying database/sql drivers self-register via their
// packages' init() functions; binaries blank-import the ones they need.
type Driver interface {
	// Name returns the name passed to sql.Register, e.g. "pgx", "mysql".
	Name() string

	// DSN converts structured options into a driver DSN string.
	DSN(opts DriverOptions) (string, error)

	// ErrorMapper returns a mapper tuned to this driver's error types.
	ErrorMapper() ErrorMapper

	// Dialect returns the SQL dialect spoken by this driver.
	Dialect() Dialect
}

// DriverOptions carries the most common connection parameters in a
// structured, driver-agnostic form. DSN() converts them to the driver's
// native format.
type DriverOptions struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string // "disable", "require", "verify-full", etc.
	// Extra holds driver-specific key/value parameters.
	Extra map[string]string
}

// ─────────────────────────────────────────────────────────────────────────────
// Driver registry
// ─────────────────────────────────────────────────────────────────────────────

var (
	driversMu sync.RWMutex
	drivers   = make(map[string]Driver)
)

// RegisterDriver adds a Driver to the global registry.
// Panics if a driver with the same name is already registered (use
// ReplaceDriver to override).
func RegisterDriver(d Driver) {
	driversMu.Lock()
	defer driversMu.Unlock()
	if _, ok := drivers[d.Name()]; ok {
		panic(fmt.Sprintf("socialtoolkit/db: driver %q already registered", d.Name()))
	}
	drivers[d.Name()] = d
}

// ReplaceDriver upserts a driver in the registry (no panic on collision).
func ReplaceDriver(d Driver) {
	driversMu.Lock()
	defer driversMu.Unlock()
	drivers[d.Name()] = d
}

// LookupDriver returns the registered Driver by name or an error.
func LookupDriver(name string) (Driver, error) {
	driversMu.RLock()
	defer driversMu.RUnlock()
	d, ok := drivers[name]
	if !ok {
		return nil, fmt.Errorf("socialtoolkit/db: driver %q not registered", name)
	}
	return d, nil
}

// OpenWithDriver opens a DB using a registered Driver and structured
// options, removing the need for manual DSN construction.
//
//	db, err := db.OpenWithDriver("mysql", db.DriverOptions{
//	    Host: "localhost", Port: 3306,
//	    User: "app", Password: "secret", Database: "social",
//	}, db.Config{MaxOpenConns: 25})
func OpenWithDriver(driverName string, driverOpts DriverOptions, cfg Config) (*DB, error) {
	drv, err := LookupDriver(driverName)
	if err != nil {
		return nil, err
	}

	dsn, err := drv.DSN(driverOpts)
	if err != nil {
		return nil, fmt.Errorf("socialtoolkit/db: DSN construction failed: %w", err)
	}

	cfg.DriverName = drv.Name()
	cfg.DSN = dsn

	db, err := Open(cfg)
	if err != nil {
		return nil, err
	}

	// Install the driver-specific error mapper and dialect.
	db.SetErrorMapper(ChainMapper(drv.ErrorMapper(), DefaultErrorMapper()))
	db.dialect = drv.Dialect()
	return db, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// PostgreSQL adapters (lib/pq and jackc/pgx via stdlib)
// ─────────────────────────────────────────────────────────────────────────────

// PostgresDriver is the built-in lib/pq adapter.
// Import _ "github.com/lib/pq" alongside this to activate.
type PostgresDriver struct{}

func (PostgresDriver) Name() string { return "postgres" }

func (PostgresDriver) DSN(o DriverOptions) (string, error) {
	return postgresKVDSN(o)
}

func (PostgresDriver) ErrorMapper() ErrorMapper { return DefaultErrorMapper() }
func (PostgresDriver) Dialect() Dialect         { return postgresDialect{} }

// PgxDriver is the jackc/pgx adapter.
// Import _ "github.com/jackc/pgx/v5/stdlib" alongside this to activate.
type PgxDriver struct{}

func (PgxDriver) Name() string { return "pgx" }

func (PgxDriver) DSN(o DriverOptions) (string, error) {
	return postgresKVDSN(o)
}

func (PgxDriver) ErrorMapper() ErrorMapper { return DefaultErrorMapper() }
func (PgxDriver) Dialect() Dialect         { return postgresDialect{} }

func postgresKVDSN(o DriverOptions) (string, error) {
	if o.Host == "" || o.Database == "" {
		return "", fmt.Errorf("postgres driver: Host and Database are required")
	}
	port := o.Port
	if port == 0 {
		port = 5432
	}
	sslMode := o.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		o.Host, port, o.User, o.Password, o.Database, sslMode,
	)
	for k, v := range o.Extra {
		dsn += fmt.Sprintf(" %s=%s", k, v)
	}
	return dsn, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// MySQL adapter
// ─────────────────────────────────────────────────────────────────────────────

// MySQLDriver is the built-in go-sql-driver/mysql adapter.
// Import _ "github.com/go-sql-driver/mysql" alongside this to activate.
type MySQLDriver struct{}

func (MySQLDriver) Name() string { return "mysql" }

func (MySQLDriver) DSN(o DriverOptions) (string, error) {
	if o.Host == "" || o.Database == "" {
		return "", fmt.Errorf("mysql driver: Host and Database are required")
	}
	port := o.Port
	if port == 0 {
		port = 3306
	}
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
		o.User, o.Password, o.Host, port, o.Database)
	for k, v := range o.Extra {
		dsn += fmt.Sprintf("&%s=%s", k, v)
	}
	return dsn, nil
}

func (MySQLDriver) ErrorMapper() ErrorMapper { return DefaultErrorMapper() }
func (MySQLDriver) Dialect() Dialect         { return mysqlDialect{} }

// ─────────────────────────────────────────────────────────────────────────────
// SQLite adapter
// ─────────────────────────────────────────────────────────────────────────────

// SQLiteDriver is the built-in mattn/go-sqlite3 adapter.
// Import _ "github.com/mattn/go-sqlite3" alongside this to activate.
type SQLiteDriver struct{}

func (SQLiteDriver) Name() string { return "sqlite3" }

func (SQLiteDriver) DSN(o DriverOptions) (string, error) {
	if o.Database == "" {
		return "", fmt.Errorf("sqlite3 driver: Database (file path) is required")
	}
	dsn := o.Database
	first := true
	for k, v := range o.Extra {
		if first {
			dsn += "?"
			first = false
		} else {
			dsn += "&"
		}
		dsn += k + "=" + v
	}
	return dsn, nil
}

func (SQLiteDriver) ErrorMapper() ErrorMapper { return DefaultErrorMapper() }
func (SQLiteDriver) Dialect() Dialect         { return sqliteDialect{} }

// ─────────────────────────────────────────────────────────────────────────────
// Auto-register built-in adapters at init time
// ─────────────────────────────────────────────────────────────────────────────

func init() {
	// Adapters only build DSNs and pick mappers/dialects; the actual
	// sql.Register calls happen in the driver packages' init() functions
	// when blank-imported by a binary or test.
	RegisterDriver(PostgresDriver{})
	RegisterDriver(PgxDriver{})
	RegisterDriver(MySQLDriver{})
	RegisterDriver(SQLiteDriver{})
}

// ─────────────────────────────────────────────────────────────────────────────
// DSNFromEnv — convenience helper for twelve-factor deployments
// ─────────────────────────────────────────────────────────────────────────────

// DSNFromEnv looks up the DATABASE_URL environment variable and returns it
// as a DSN. It does NOT modify cfg; callers should set cfg.DSN = dsn before
// calling Open.
func DSNFromEnv() (string, error) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		return "", fmt.Errorf("socialtoolkit/db: DATABASE_URL environment variable not set")
	}
	return dsn, nil
}
