package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// InitDB opens (or creates) a SQLite database at the given path and ensures
// the schema is current. Pass ":memory:" for an in-memory database.
func InitDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// Every connection to an in-memory database sees its own database.
	if strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory") {
		db.SetMaxOpenConns(1)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set wal mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	if err := Migrate(context.Background(), db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Migrate creates missing tables and upgrades legacy layouts in place. It is
// safe to run repeatedly.
func Migrate(ctx context.Context, db *sql.DB) error {
	if err := createTables(ctx, db); err != nil {
		return fmt.Errorf("create tables: %w", err)
	}
	if err := migrateReceipts(ctx, db); err != nil {
		return fmt.Errorf("migrate receipts: %w", err)
	}
	if _, err := db.ExecContext(ctx, "UPDATE users SET lang = 'am' WHERE lang IS NULL"); err != nil {
		return fmt.Errorf("backfill user lang: %w", err)
	}
	return nil
}

func createTables(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT
		)`,

		`CREATE TABLE IF NOT EXISTS admins (
			user_id INTEGER PRIMARY KEY
		)`,

		`CREATE TABLE IF NOT EXISTS users (
			user_id INTEGER PRIMARY KEY,
			last_greet_at TEXT,
			lang TEXT
		)`,

		`CREATE TABLE IF NOT EXISTS orders (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER,
			status TEXT,
			payload TEXT,
			created_at TEXT,
			receipt_file_id TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_user_status ON orders(user_id, status)`,

		`CREATE TABLE IF NOT EXISTS receipts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER,
			order_id INTEGER,
			file_key TEXT,
			created_at TEXT
		)`,

		`CREATE TABLE IF NOT EXISTS pricing_rules (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			min_usd REAL NOT NULL,
			max_usd REAL,
			fee_mult REAL NOT NULL,
			fixed_amd REAL NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS pay_methods (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			label TEXT NOT NULL,
			value TEXT NOT NULL,
			enabled INTEGER NOT NULL DEFAULT 1,
			sort_order INTEGER NOT NULL DEFAULT 0,
			icon TEXT DEFAULT ''
		)`,
	}

	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("exec %q: %w", firstLine(stmt), err)
		}
	}
	return nil
}

// migrateReceipts brings receipts tables created by older releases (which
// stored the key in file_id and had no uniqueness) up to date.
func migrateReceipts(ctx context.Context, db *sql.DB) error {
	cols, err := tableColumns(ctx, db, "receipts")
	if err != nil {
		return err
	}
	if !cols["file_key"] {
		if _, err := db.ExecContext(ctx, "ALTER TABLE receipts ADD COLUMN file_key TEXT"); err != nil {
			return fmt.Errorf("add file_key: %w", err)
		}
	}
	if cols["file_id"] {
		if _, err := db.ExecContext(ctx,
			`UPDATE receipts SET file_key = file_id
			 WHERE (file_key IS NULL OR file_key = '') AND file_id IS NOT NULL`,
		); err != nil {
			return fmt.Errorf("copy file_id: %w", err)
		}
	}

	// Drop duplicate triples left by the unconditional inserts of older
	// releases so the unique index can be built.
	if _, err := db.ExecContext(ctx,
		`DELETE FROM receipts WHERE id NOT IN (
			SELECT MIN(id) FROM receipts GROUP BY user_id, order_id, file_key
		)`,
	); err != nil {
		return fmt.Errorf("dedupe receipts: %w", err)
	}
	if _, err := db.ExecContext(ctx,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_receipts_triple
		 ON receipts(user_id, order_id, file_key)`,
	); err != nil {
		return fmt.Errorf("create unique index: %w", err)
	}
	return nil
}

func tableColumns(ctx context.Context, db *sql.DB, table string) (map[string]bool, error) {
	rows, err := db.QueryContext(ctx, "SELECT name FROM pragma_table_info(?)", table)
	if err != nil {
		return nil, fmt.Errorf("table info %s: %w", table, err)
	}
	defer rows.Close()

	cols := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		cols[name] = true
	}
	return cols, rows.Err()
}

// isSchemaError reports whether err comes from a table or column the running
// code expects but the database does not have.
func isSchemaError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "no such column") ||
		strings.Contains(msg, "no such table") ||
		strings.Contains(msg, "has no column named")
}

// withSchemaRepair runs fn and, if it fails on a schema mismatch, migrates
// once and retries once.
func withSchemaRepair(ctx context.Context, db *sql.DB, fn func() error) error {
	err := fn()
	if !isSchemaError(err) {
		return err
	}
	if merr := Migrate(ctx, db); merr != nil {
		return fmt.Errorf("%w (repair failed: %v)", err, merr)
	}
	return fn()
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
