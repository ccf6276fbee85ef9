package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wakala/exchangedesk/internal/domain"
)

type OrderRepo struct {
	db *sql.DB
}

func NewOrderRepo(db *sql.DB) *OrderRepo {
	return &OrderRepo{db: db}
}

// Create persists a new order in waiting_payment and returns its id.
func (r *OrderRepo) Create(ctx context.Context, correspondentID int64, p domain.OrderPayload, now time.Time) (int64, error) {
	body, err := json.Marshal(p)
	if err != nil {
		return 0, fmt.Errorf("marshal payload: %w", err)
	}
	var id int64
	err = withSchemaRepair(ctx, r.db, func() error {
		res, err := r.db.ExecContext(ctx,
			`INSERT INTO orders(user_id, status, payload, created_at)
			 VALUES(?, ?, ?, ?)`,
			correspondentID, string(domain.OrderWaitingPayment), string(body),
			now.UTC().Format(time.RFC3339Nano),
		)
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("create order: %w", err)
	}
	return id, nil
}

func (r *OrderRepo) Get(ctx context.Context, id int64) (*domain.Order, error) {
	var o *domain.Order
	err := withSchemaRepair(ctx, r.db, func() error {
		var err error
		o, err = scanOrder(r.db.QueryRowContext(ctx,
			"SELECT "+orderColumns+" FROM orders WHERE id = ?", id,
		))
		return err
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get order %d: %w", id, err)
	}
	return o, nil
}

// MarkApproved moves the order to approved and records the receipt key.
func (r *OrderRepo) MarkApproved(ctx context.Context, id int64, receiptKey string) error {
	var n int64
	err := withSchemaRepair(ctx, r.db, func() error {
		res, err := r.db.ExecContext(ctx,
			"UPDATE orders SET status = ?, receipt_file_id = ? WHERE id = ?",
			string(domain.OrderApproved), receiptKey, id,
		)
		if err != nil {
			return err
		}
		n, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return fmt.Errorf("approve order %d: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// LatestWaiting returns the id of the correspondent's most recent order still
// waiting for payment.
func (r *OrderRepo) LatestWaiting(ctx context.Context, correspondentID int64) (int64, error) {
	var id int64
	err := withSchemaRepair(ctx, r.db, func() error {
		return r.db.QueryRowContext(ctx,
			`SELECT id FROM orders WHERE user_id = ? AND status = ?
			 ORDER BY id DESC LIMIT 1`,
			correspondentID, string(domain.OrderWaitingPayment),
		).Scan(&id)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("latest waiting order %d: %w", correspondentID, err)
	}
	return id, nil
}

type OrderFilter struct {
	Status          string
	CorrespondentID int64
	Page            int
	Limit           int
}

func (r *OrderRepo) List(ctx context.Context, f OrderFilter) ([]domain.Order, int, error) {
	where, args := buildOrderWhere(f)

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM orders"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}

	if f.Limit <= 0 {
		f.Limit = 50
	}
	if f.Page <= 0 {
		f.Page = 1
	}
	offset := (f.Page - 1) * f.Limit

	q := "SELECT " + orderColumns + " FROM orders" + where + " ORDER BY id DESC LIMIT ? OFFSET ?"
	args = append(args, f.Limit, offset)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders := []domain.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		orders = append(orders, *o)
	}
	return orders, total, rows.Err()
}

type OrderStats struct {
	Total          int   `json:"total"`
	WaitingPayment int   `json:"waiting_payment"`
	Approved       int   `json:"approved"`
	QuotedAMD      int64 `json:"quoted_amd"`
	ApprovedAMD    int64 `json:"approved_amd"`
}

func (r *OrderRepo) Stats(ctx context.Context) (*OrderStats, error) {
	s := &OrderStats{}
	err := r.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN status='waiting_payment' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status='approved' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CAST(json_extract(payload, '$.sum_amd') AS INTEGER)), 0),
			COALESCE(SUM(CASE WHEN status='approved'
				THEN CAST(json_extract(payload, '$.sum_amd') AS INTEGER) ELSE 0 END), 0)
		FROM orders
	`).Scan(&s.Total, &s.WaitingPayment, &s.Approved, &s.QuotedAMD, &s.ApprovedAMD)
	if err != nil {
		return nil, fmt.Errorf("order stats: %w", err)
	}
	return s, nil
}

const orderColumns = "id, user_id, status, payload, created_at, receipt_file_id"

func buildOrderWhere(f OrderFilter) (string, []any) {
	var clauses []string
	var args []any

	if f.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, f.Status)
	}
	if f.CorrespondentID != 0 {
		clauses = append(clauses, "user_id = ?")
		args = append(args, f.CorrespondentID)
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(s rowScanner) (*domain.Order, error) {
	var o domain.Order
	var status string
	var payload, created, receipt sql.NullString

	if err := s.Scan(&o.ID, &o.CorrespondentID, &status, &payload, &created, &receipt); err != nil {
		return nil, err
	}

	o.Status = domain.OrderStatus(status)
	if payload.Valid && payload.String != "" {
		// A corrupt snapshot still yields the order row; its payload stays zero.
		_ = json.Unmarshal([]byte(payload.String), &o.Payload)
	}
	o.CreatedAt, _ = time.Parse(time.RFC3339Nano, created.String)
	o.ReceiptKey = receipt.String
	return &o, nil
}
