package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/wakala/exchangedesk/internal/domain"
)

// GreetCooldown is the minimum time between two greetings to the same
// correspondent.
const GreetCooldown = time.Hour

type UserRepo struct {
	db *sql.DB
}

func NewUserRepo(db *sql.DB) *UserRepo {
	return &UserRepo{db: db}
}

// Locale returns the stored locale of the correspondent, LocaleAM when none
// is stored.
func (r *UserRepo) Locale(ctx context.Context, correspondentID int64) (domain.Locale, error) {
	var lang sql.NullString
	err := r.db.QueryRowContext(ctx,
		"SELECT lang FROM users WHERE user_id = ?", correspondentID,
	).Scan(&lang)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.LocaleAM, nil
	}
	if err != nil {
		return domain.LocaleAM, fmt.Errorf("get locale %d: %w", correspondentID, err)
	}
	if l := domain.Locale(lang.String); l.Valid() {
		return l, nil
	}
	return domain.LocaleAM, nil
}

// SetLocale persists the correspondent's locale. Unsupported locales are
// ignored.
func (r *UserRepo) SetLocale(ctx context.Context, correspondentID int64, l domain.Locale) error {
	if !l.Valid() {
		return nil
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users(user_id, last_greet_at, lang) VALUES(?, NULL, ?)
		 ON CONFLICT(user_id) DO UPDATE SET lang = excluded.lang`,
		correspondentID, string(l),
	)
	if err != nil {
		return fmt.Errorf("set locale %d: %w", correspondentID, err)
	}
	return nil
}

// TouchGreeting reports whether the correspondent is due a greeting at now
// and, if so, records now as the last greeting time.
func (r *UserRepo) TouchGreeting(ctx context.Context, correspondentID int64, now time.Time) (bool, error) {
	var last sql.NullString
	err := r.db.QueryRowContext(ctx,
		"SELECT last_greet_at FROM users WHERE user_id = ?", correspondentID,
	).Scan(&last)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return false, fmt.Errorf("get last greeting %d: %w", correspondentID, err)
	}

	if last.Valid && last.String != "" {
		t, perr := time.Parse(time.RFC3339Nano, last.String)
		if perr == nil && now.Sub(t) < GreetCooldown {
			return false, nil
		}
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO users(user_id, last_greet_at, lang) VALUES(?, ?, 'am')
		 ON CONFLICT(user_id) DO UPDATE SET last_greet_at = excluded.last_greet_at`,
		correspondentID, now.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return false, fmt.Errorf("touch greeting %d: %w", correspondentID, err)
	}
	return true, nil
}
