package repository

import (
	"context"
	"database/sql"
	"fmt"
)

// Store bundles the repositories backed by one database.
type Store struct {
	DB         *sql.DB
	Settings   *SettingsRepo
	Admins     *AdminRepo
	Users      *UserRepo
	Orders     *OrderRepo
	Receipts   *ReceiptRepo
	Tiers      *TierRepo
	PayMethods *PayMethodRepo
}

func NewStore(db *sql.DB) *Store {
	return &Store{
		DB:         db,
		Settings:   NewSettingsRepo(db),
		Admins:     NewAdminRepo(db),
		Users:      NewUserRepo(db),
		Orders:     NewOrderRepo(db),
		Receipts:   NewReceiptRepo(db),
		Tiers:      NewTierRepo(db),
		PayMethods: NewPayMethodRepo(db),
	}
}

// Seed stores default settings and payment methods where missing and
// grants admin privilege to the given ids.
func (s *Store) Seed(ctx context.Context, adminIDs []int64) error {
	if err := s.Settings.SeedDefaults(ctx); err != nil {
		return err
	}
	for _, id := range adminIDs {
		if err := s.Admins.Add(ctx, id); err != nil {
			return fmt.Errorf("seed admins: %w", err)
		}
	}
	return s.PayMethods.SeedDefaults(ctx)
}

func (s *Store) Close() error {
	return s.DB.Close()
}
