package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/wakala/exchangedesk/internal/domain"
)

type SettingsRepo struct {
	db *sql.DB
}

func NewSettingsRepo(db *sql.DB) *SettingsRepo {
	return &SettingsRepo{db: db}
}

// SeedDefaults inserts every default setting that is not stored yet.
func (r *SettingsRepo) SeedDefaults(ctx context.Context) error {
	for k, v := range domain.DefaultSettings().Values() {
		if _, err := r.db.ExecContext(ctx,
			"INSERT OR IGNORE INTO settings(key, value) VALUES(?, ?)", k, v,
		); err != nil {
			return fmt.Errorf("seed setting %s: %w", k, err)
		}
	}
	return nil
}

// Load returns the typed settings record. Missing rows keep their defaults;
// a stored value that no longer parses is reported as an error.
func (r *SettingsRepo) Load(ctx context.Context) (domain.Settings, error) {
	s := domain.DefaultSettings()
	var raw map[string]string
	err := withSchemaRepair(ctx, r.db, func() error {
		var err error
		raw, err = r.all(ctx)
		return err
	})
	if err != nil {
		return s, err
	}
	for k, v := range raw {
		if err := s.Apply(k, v); err != nil {
			return s, err
		}
	}
	return s, nil
}

func (r *SettingsRepo) all(ctx context.Context) (map[string]string, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT key, value FROM settings")
	if err != nil {
		return nil, fmt.Errorf("query settings: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var k string
		var v sql.NullString
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		if v.Valid {
			out[k] = v.String
		}
	}
	return out, rows.Err()
}

// Get returns the raw stored value of key.
func (r *SettingsRepo) Get(ctx context.Context, key string) (string, error) {
	var v sql.NullString
	err := r.db.QueryRowContext(ctx, "SELECT value FROM settings WHERE key = ?", key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && !v.Valid) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get setting %s: %w", key, err)
	}
	return v.String, nil
}

// Set validates raw for key, stores its canonical form and returns it.
func (r *SettingsRepo) Set(ctx context.Context, key, raw string) (string, error) {
	value, err := domain.ParseSetting(key, raw)
	if err != nil {
		return "", err
	}
	if _, err := r.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO settings(key, value) VALUES(?, ?)", key, value,
	); err != nil {
		return "", fmt.Errorf("set setting %s: %w", key, err)
	}
	return value, nil
}
