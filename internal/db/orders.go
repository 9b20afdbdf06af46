package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/cexcore/exchange/internal/apperr"
	"github.com/cexcore/exchange/internal/models"
)

// OrderStore persists orders in PostgreSQL
type OrderStore struct {
	pool *pgxpool.Pool
}

const orderColumns = "id, user_id, wallet_id, side, amount::text, base_currency, quote_currency, status, created_at, updated_at, version"

func scanOrder(row pgx.Row) (*models.Order, error) {
	order := &models.Order{}
	var amount string
	if err := row.Scan(&order.ID, &order.UserID, &order.WalletID, &order.Side, &amount,
		&order.BaseCurrency, &order.QuoteCurrency, &order.Status,
		&order.CreatedAt, &order.UpdatedAt, &order.Version); err != nil {
		return nil, err
	}
	parsed, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("failed to parse order amount: %w", err)
	}
	order.Amount = parsed
	return order, nil
}

// Save inserts a new order or applies a version-checked update. An update
// that misses the expected version fails with apperr.ErrVersionConflict.
func (s *OrderStore) Save(ctx context.Context, order *models.Order) (*models.Order, error) {
	if order.ID == uuid.Nil {
		row := s.pool.QueryRow(ctx,
			`INSERT INTO orders (user_id, wallet_id, side, amount, base_currency, quote_currency, status)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)
			 RETURNING `+orderColumns,
			order.UserID, order.WalletID, order.Side, order.Amount.String(),
			order.BaseCurrency, order.QuoteCurrency, order.Status)
		saved, err := scanOrder(row)
		if err != nil {
			return nil, fmt.Errorf("failed to insert order: %w", err)
		}
		return saved, nil
	}

	row := s.pool.QueryRow(ctx,
		`UPDATE orders
		 SET amount = $1, status = $2, updated_at = now(), version = version + 1
		 WHERE id = $3 AND version = $4
		 RETURNING `+orderColumns,
		order.Amount.String(), order.Status, order.ID, order.Version)
	saved, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.ErrVersionConflict
		}
		return nil, fmt.Errorf("failed to update order: %w", err)
	}
	return saved, nil
}

// Get fetches an order by id
func (s *OrderStore) Get(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	row := s.pool.QueryRow(ctx, "SELECT "+orderColumns+" FROM orders WHERE id = $1", id)
	order, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("order '%s' not found", id)
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return order, nil
}

// GetByUser fetches all orders owned by a user
func (s *OrderStore) GetByUser(ctx context.Context, userID uuid.UUID) ([]*models.Order, error) {
	rows, err := s.pool.Query(ctx, "SELECT "+orderColumns+" FROM orders WHERE user_id = $1", userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user orders: %w", err)
	}
	defer rows.Close()
	return collectOrders(rows)
}

// GetOpenByPairAndSide fetches the OPEN orders for a pair and side ordered by
// creation time ascending, the order the matching engine visits them in.
func (s *OrderStore) GetOpenByPairAndSide(ctx context.Context, base, quote models.Currency, side models.Side) ([]*models.Order, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+orderColumns+` FROM orders
		 WHERE status = 'OPEN' AND base_currency = $1 AND quote_currency = $2 AND side = $3
		 ORDER BY created_at ASC`,
		base, quote, side)
	if err != nil {
		return nil, fmt.Errorf("failed to get open orders: %w", err)
	}
	defer rows.Close()
	return collectOrders(rows)
}

func collectOrders(rows pgx.Rows) ([]*models.Order, error) {
	var orders []*models.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return orders, nil
}
