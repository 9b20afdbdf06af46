package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/cexcore/exchange/internal/apperr"
	"github.com/cexcore/exchange/internal/models"
)

// WalletStore persists wallets in PostgreSQL. Balances are stored as a JSONB
// map of currency to decimal string so amounts keep their exact precision.
type WalletStore struct {
	pool *pgxpool.Pool
}

const walletColumns = "id, user_id, name, balances, created_at, updated_at, version"

func scanWallet(row pgx.Row) (*models.Wallet, error) {
	wallet := &models.Wallet{}
	var balances []byte
	if err := row.Scan(&wallet.ID, &wallet.UserID, &wallet.Name, &balances,
		&wallet.CreatedAt, &wallet.UpdatedAt, &wallet.Version); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(balances, &wallet.Balances); err != nil {
		return nil, fmt.Errorf("failed to decode wallet balances: %w", err)
	}
	return wallet, nil
}

func encodeBalances(balances map[models.Currency]decimal.Decimal) ([]byte, error) {
	if balances == nil {
		balances = map[models.Currency]decimal.Decimal{}
	}
	return json.Marshal(balances)
}

// Save inserts a new wallet or applies a version-checked update
func (s *WalletStore) Save(ctx context.Context, wallet *models.Wallet) (*models.Wallet, error) {
	balances, err := encodeBalances(wallet.Balances)
	if err != nil {
		return nil, fmt.Errorf("failed to encode wallet balances: %w", err)
	}

	if wallet.ID == uuid.Nil {
		row := s.pool.QueryRow(ctx,
			`INSERT INTO wallets (user_id, name, balances)
			 VALUES ($1, $2, $3)
			 RETURNING `+walletColumns,
			wallet.UserID, wallet.Name, balances)
		saved, err := scanWallet(row)
		if err != nil {
			return nil, fmt.Errorf("failed to insert wallet: %w", err)
		}
		return saved, nil
	}

	row := s.pool.QueryRow(ctx,
		`UPDATE wallets
		 SET balances = $1, updated_at = now(), version = version + 1
		 WHERE id = $2 AND version = $3
		 RETURNING `+walletColumns,
		balances, wallet.ID, wallet.Version)
	saved, err := scanWallet(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.ErrVersionConflict
		}
		return nil, fmt.Errorf("failed to update wallet: %w", err)
	}
	return saved, nil
}

// Get fetches a wallet by id
func (s *WalletStore) Get(ctx context.Context, id uuid.UUID) (*models.Wallet, error) {
	row := s.pool.QueryRow(ctx, "SELECT "+walletColumns+" FROM wallets WHERE id = $1", id)
	wallet, err := scanWallet(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("wallet '%s' not found", id)
		}
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}
	return wallet, nil
}

// GetByUser fetches all wallets owned by a user
func (s *WalletStore) GetByUser(ctx context.Context, userID uuid.UUID) ([]*models.Wallet, error) {
	rows, err := s.pool.Query(ctx, "SELECT "+walletColumns+" FROM wallets WHERE user_id = $1", userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user wallets: %w", err)
	}
	defer rows.Close()

	var wallets []*models.Wallet
	for rows.Next() {
		wallet, err := scanWallet(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan wallet: %w", err)
		}
		wallets = append(wallets, wallet)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return wallets, nil
}

// ExistsByUserAndName reports whether the user already has a wallet with the
// given display name
func (s *WalletStore) ExistsByUserAndName(ctx context.Context, userID uuid.UUID, name string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM wallets WHERE user_id = $1 AND name = $2)",
		userID, name).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check wallet existence: %w", err)
	}
	return exists, nil
}
