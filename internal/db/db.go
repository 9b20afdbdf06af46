// Package db implements the exchange's store contracts on PostgreSQL via
// pgx, plus an in-memory implementation with the same optimistic-versioning
// semantics for tests and tooling.
package db

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schema string

// DB wraps a PostgreSQL connection pool and exposes the typed stores
type DB struct {
	Pool *pgxpool.Pool
}

// New initializes a new database connection pool
func New(ctx context.Context, connString string) (*DB, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	return &DB{Pool: pool}, nil
}

// Migrate applies the schema. Statements are idempotent.
func (db *DB) Migrate(ctx context.Context) error {
	if _, err := db.Pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// Close closes the connection pool
func (db *DB) Close() {
	db.Pool.Close()
}

// Orders returns the order store
func (db *DB) Orders() *OrderStore { return &OrderStore{pool: db.Pool} }

// Wallets returns the wallet store
func (db *DB) Wallets() *WalletStore { return &WalletStore{pool: db.Pool} }

// Transactions returns the transaction store
func (db *DB) Transactions() *TransactionStore { return &TransactionStore{pool: db.Pool} }

// Users returns the user store
func (db *DB) Users() *UserStore { return &UserStore{pool: db.Pool} }
