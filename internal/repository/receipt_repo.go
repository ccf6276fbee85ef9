package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/wakala/exchangedesk/internal/domain"
)

type ReceiptRepo struct {
	db *sql.DB
}

func NewReceiptRepo(db *sql.DB) *ReceiptRepo {
	return &ReceiptRepo{db: db}
}

// Register records the receipt unless the (correspondent, order, key) triple
// is already stored. existed is true for a duplicate. The unique index makes
// the check and the insert a single atomic statement.
func (r *ReceiptRepo) Register(ctx context.Context, correspondentID, orderID int64, dedupKey string, now time.Time) (existed bool, err error) {
	err = withSchemaRepair(ctx, r.db, func() error {
		res, err := r.db.ExecContext(ctx,
			`INSERT INTO receipts(user_id, order_id, file_key, created_at)
			 VALUES(?, ?, ?, ?)
			 ON CONFLICT(user_id, order_id, file_key) DO NOTHING`,
			correspondentID, orderID, dedupKey, now.UTC().Format(time.RFC3339Nano),
		)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		existed = n == 0
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("register receipt: %w", err)
	}
	return existed, nil
}

// ListByOrder returns the receipts registered against an order, oldest first.
func (r *ReceiptRepo) ListByOrder(ctx context.Context, orderID int64) ([]domain.Receipt, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, order_id, file_key, created_at
		 FROM receipts WHERE order_id = ? ORDER BY id`, orderID,
	)
	if err != nil {
		return nil, fmt.Errorf("list receipts: %w", err)
	}
	defer rows.Close()

	receipts := []domain.Receipt{}
	for rows.Next() {
		var rc domain.Receipt
		var key, created sql.NullString
		if err := rows.Scan(&rc.ID, &rc.CorrespondentID, &rc.OrderID, &key, &created); err != nil {
			return nil, err
		}
		rc.DedupKey = key.String
		rc.CreatedAt, _ = time.Parse(time.RFC3339Nano, created.String)
		receipts = append(receipts, rc)
	}
	return receipts, rows.Err()
}
