package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cexcore/exchange/internal/models"
)

// TransactionStore is the append-only audit log in PostgreSQL
type TransactionStore struct {
	pool *pgxpool.Pool
}

// Append inserts one audit record. Records are never updated or deleted.
func (s *TransactionStore) Append(ctx context.Context, tx *models.Transaction) (*models.Transaction, error) {
	metadata, err := json.Marshal(tx.Metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to encode transaction metadata: %w", err)
	}

	saved := &models.Transaction{
		UserID:   tx.UserID,
		WalletID: tx.WalletID,
		Type:     tx.Type,
		Metadata: tx.Metadata,
	}
	err = s.pool.QueryRow(ctx,
		`INSERT INTO transactions (user_id, wallet_id, type, metadata)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at`,
		tx.UserID, tx.WalletID, tx.Type, metadata).Scan(&saved.ID, &saved.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert transaction: %w", err)
	}
	return saved, nil
}

// GetByUser fetches one page of a user's transactions, newest first, together
// with the total count
func (s *TransactionStore) GetByUser(ctx context.Context, userID uuid.UUID, page, size int) ([]*models.Transaction, int64, error) {
	var total int64
	if err := s.pool.QueryRow(ctx,
		"SELECT count(*) FROM transactions WHERE user_id = $1", userID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count transactions: %w", err)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, wallet_id, type, metadata, created_at
		 FROM transactions
		 WHERE user_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2 OFFSET $3`,
		userID, size, page*size)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get transactions: %w", err)
	}
	defer rows.Close()

	var txs []*models.Transaction
	for rows.Next() {
		tx := &models.Transaction{}
		var metadata []byte
		if err := rows.Scan(&tx.ID, &tx.UserID, &tx.WalletID, &tx.Type, &metadata, &tx.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("failed to scan transaction: %w", err)
		}
		if err := json.Unmarshal(metadata, &tx.Metadata); err != nil {
			return nil, 0, fmt.Errorf("failed to decode transaction metadata: %w", err)
		}
		txs = append(txs, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return txs, total, nil
}
