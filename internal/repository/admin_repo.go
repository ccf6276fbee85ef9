package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

type AdminRepo struct {
	db *sql.DB
}

func NewAdminRepo(db *sql.DB) *AdminRepo {
	return &AdminRepo{db: db}
}

// Add grants admin privilege. Adding an existing admin is a no-op.
func (r *AdminRepo) Add(ctx context.Context, correspondentID int64) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO admins(user_id) VALUES(?)", correspondentID,
	)
	if err != nil {
		return fmt.Errorf("add admin %d: %w", correspondentID, err)
	}
	return nil
}

func (r *AdminRepo) IsAdmin(ctx context.Context, correspondentID int64) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx,
		"SELECT 1 FROM admins WHERE user_id = ?", correspondentID,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check admin %d: %w", correspondentID, err)
	}
	return true, nil
}

// List returns every admin principal in ascending id order.
func (r *AdminRepo) List(ctx context.Context) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT user_id FROM admins ORDER BY user_id")
	if err != nil {
		return nil, fmt.Errorf("list admins: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
