package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/wakala/exchangedesk/internal/domain"
)

type TierRepo struct {
	db *sql.DB
}

func NewTierRepo(db *sql.DB) *TierRepo {
	return &TierRepo{db: db}
}

func (r *TierRepo) Add(ctx context.Context, t domain.PricingTier) (int64, error) {
	var max any
	if t.MaxUSD != nil {
		max = *t.MaxUSD
	}
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO pricing_rules(min_usd, max_usd, fee_mult, fixed_amd) VALUES(?, ?, ?, ?)",
		t.MinUSD, max, t.FeeMult, t.FixedAMD,
	)
	if err != nil {
		return 0, fmt.Errorf("add tier: %w", err)
	}
	return res.LastInsertId()
}

// List returns tiers in lookup order: ascending min, then max with an open
// upper bound sorting last.
func (r *TierRepo) List(ctx context.Context) ([]domain.PricingTier, error) {
	var tiers []domain.PricingTier
	err := withSchemaRepair(ctx, r.db, func() error {
		var err error
		tiers, err = r.list(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list tiers: %w", err)
	}
	return tiers, nil
}

func (r *TierRepo) list(ctx context.Context) ([]domain.PricingTier, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, min_usd, max_usd, fee_mult, fixed_amd FROM pricing_rules
		 ORDER BY COALESCE(min_usd, 0), COALESCE(max_usd, 1e18), id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tiers := []domain.PricingTier{}
	for rows.Next() {
		var t domain.PricingTier
		var max sql.NullFloat64
		if err := rows.Scan(&t.ID, &t.MinUSD, &max, &t.FeeMult, &t.FixedAMD); err != nil {
			return nil, err
		}
		if max.Valid {
			v := max.Float64
			t.MaxUSD = &v
		}
		tiers = append(tiers, t)
	}
	return tiers, rows.Err()
}

// Delete removes a tier. Deleting a missing id is not an error.
func (r *TierRepo) Delete(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM pricing_rules WHERE id = ?", id); err != nil {
		return fmt.Errorf("delete tier %d: %w", id, err)
	}
	return nil
}
