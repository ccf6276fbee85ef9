package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/wakala/exchangedesk/internal/domain"
)

// AddedMethodSortOrder is the sort order given to methods added at runtime.
const AddedMethodSortOrder = 99

type PayMethodRepo struct {
	db *sql.DB
}

func NewPayMethodRepo(db *sql.DB) *PayMethodRepo {
	return &PayMethodRepo{db: db}
}

// SeedDefaults stores the built-in methods when the table is empty.
func (r *PayMethodRepo) SeedDefaults(ctx context.Context) error {
	var n int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM pay_methods").Scan(&n); err != nil {
		return fmt.Errorf("count pay methods: %w", err)
	}
	if n > 0 {
		return nil
	}
	for _, m := range domain.FallbackPaymentMethods {
		if _, err := r.insert(ctx, m); err != nil {
			return err
		}
	}
	return nil
}

// Add stores an enabled method at the end of the list, without an icon.
func (r *PayMethodRepo) Add(ctx context.Context, label, value string) (int64, error) {
	return r.insert(ctx, domain.PaymentMethod{
		Label:     label,
		Value:     value,
		Enabled:   true,
		SortOrder: AddedMethodSortOrder,
	})
}

func (r *PayMethodRepo) insert(ctx context.Context, m domain.PaymentMethod) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO pay_methods(label, value, enabled, sort_order, icon) VALUES(?, ?, ?, ?, ?)",
		m.Label, m.Value, m.Enabled, m.SortOrder, m.Icon,
	)
	if err != nil {
		return 0, fmt.Errorf("add pay method %q: %w", m.Label, err)
	}
	return res.LastInsertId()
}

// List returns every method in display order.
func (r *PayMethodRepo) List(ctx context.Context) ([]domain.PaymentMethod, error) {
	return r.query(ctx, "SELECT id, label, value, enabled, sort_order, icon FROM pay_methods ORDER BY sort_order, id")
}

// ListEnabled returns the methods shown in offers, in display order.
func (r *PayMethodRepo) ListEnabled(ctx context.Context) ([]domain.PaymentMethod, error) {
	return r.query(ctx, "SELECT id, label, value, enabled, sort_order, icon FROM pay_methods WHERE enabled = 1 ORDER BY sort_order, id")
}

func (r *PayMethodRepo) query(ctx context.Context, q string) ([]domain.PaymentMethod, error) {
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list pay methods: %w", err)
	}
	defer rows.Close()

	methods := []domain.PaymentMethod{}
	for rows.Next() {
		var m domain.PaymentMethod
		var icon sql.NullString
		if err := rows.Scan(&m.ID, &m.Label, &m.Value, &m.Enabled, &m.SortOrder, &icon); err != nil {
			return nil, err
		}
		m.Icon = icon.String
		methods = append(methods, m)
	}
	return methods, rows.Err()
}

func (r *PayMethodRepo) SetEnabled(ctx context.Context, id int64, enabled bool) error {
	return r.update(ctx, "UPDATE pay_methods SET enabled = ? WHERE id = ?", enabled, id)
}

func (r *PayMethodRepo) SetIcon(ctx context.Context, id int64, icon string) error {
	return r.update(ctx, "UPDATE pay_methods SET icon = ? WHERE id = ?", icon, id)
}

func (r *PayMethodRepo) SetSortOrder(ctx context.Context, id int64, order int) error {
	return r.update(ctx, "UPDATE pay_methods SET sort_order = ? WHERE id = ?", order, id)
}

func (r *PayMethodRepo) Delete(ctx context.Context, id int64) error {
	return r.update(ctx, "DELETE FROM pay_methods WHERE id = ?", id)
}

// update runs a single-row mutation. A missing id is not an error; the
// console confirms the command either way.
func (r *PayMethodRepo) update(ctx context.Context, q string, args ...any) error {
	if _, err := r.db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("update pay method: %w", err)
	}
	return nil
}
