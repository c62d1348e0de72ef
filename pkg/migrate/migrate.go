package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/pressly/goose/v3"
)

const DefaultDir = "pkg/migrate/migrations"

// Goose dialect names.
const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite3"
)

// DialectFor maps the configured driver onto a goose dialect.
func DialectFor(cfg config.DBConfig) string {
	if cfg.IsSQLite() {
		return DialectSQLite
	}
	return DialectPostgres
}

// Migrator applies the schema in dir to db.
type Migrator struct {
	db      *sql.DB
	dir     string
	dialect string
}

func NewMigrator(db *sql.DB, dir, dialect string) (*Migrator, error) {
	if db == nil {
		return nil, fmt.Errorf("db is required")
	}
	if dir == "" {
		return nil, fmt.Errorf("dir is required")
	}
	switch dialect {
	case DialectPostgres, DialectSQLite:
	default:
		return nil, fmt.Errorf("unsupported dialect %q", dialect)
	}
	return &Migrator{db: db, dir: dir, dialect: dialect}, nil
}

// goose keeps the dialect in package state.
func (m *Migrator) bind() error {
	if err := goose.SetDialect(m.dialect); err != nil {
		return fmt.Errorf("set goose dialect %s: %w", m.dialect, err)
	}
	return nil
}

// Up applies every pending migration.
func (m *Migrator) Up(ctx context.Context) error {
	if err := m.bind(); err != nil {
		return err
	}
	if err := goose.UpContext(ctx, m.db, m.dir); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}
	return nil
}

// Down rolls back the latest migration.
func (m *Migrator) Down(ctx context.Context) error {
	if err := m.bind(); err != nil {
		return err
	}
	if err := goose.DownContext(ctx, m.db, m.dir); err != nil {
		return fmt.Errorf("goose down: %w", err)
	}
	return nil
}

// Redo rolls back and reapplies the latest migration.
func (m *Migrator) Redo(ctx context.Context) error {
	if err := m.bind(); err != nil {
		return err
	}
	if err := goose.RedoContext(ctx, m.db, m.dir); err != nil {
		return fmt.Errorf("goose redo: %w", err)
	}
	return nil
}

// Status prints the applied state of each migration through goose's logger.
func (m *Migrator) Status(ctx context.Context) error {
	if err := m.bind(); err != nil {
		return err
	}
	if err := goose.StatusContext(ctx, m.db, m.dir); err != nil {
		return fmt.Errorf("goose status: %w", err)
	}
	return nil
}

// Version returns the current schema version.
func (m *Migrator) Version(ctx context.Context) (int64, error) {
	if err := m.bind(); err != nil {
		return 0, err
	}
	v, err := goose.GetDBVersionContext(ctx, m.db)
	if err != nil {
		return 0, fmt.Errorf("get db version: %w", err)
	}
	return v, nil
}

// To moves the schema up or down until it sits at target (YYYYMMDDHHMMSS).
func (m *Migrator) To(ctx context.Context, target string) error {
	version, err := ParseVersion(target)
	if err != nil {
		return err
	}
	current, err := m.Version(ctx)
	if err != nil {
		return err
	}
	switch {
	case current == version:
		return nil
	case current < version:
		err = goose.UpToContext(ctx, m.db, m.dir, version)
	default:
		err = goose.DownToContext(ctx, m.db, m.dir, version)
	}
	if err != nil {
		return fmt.Errorf("goose migrate %d -> %d: %w", current, version, err)
	}
	return nil
}

// ParseVersion validates a YYYYMMDDHHMMSS version string.
func ParseVersion(raw string) (int64, error) {
	if raw == "" {
		return 0, fmt.Errorf("version is required")
	}
	if len(raw) != len(versionLayout) {
		return 0, fmt.Errorf("invalid version %q (expected YYYYMMDDHHMMSS)", raw)
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("invalid version %q (expected YYYYMMDDHHMMSS)", raw)
	}
	return v, nil
}
