package exchange

import (
	"context"

	"github.com/google/uuid"

	"github.com/cexcore/exchange/internal/models"
)

// OrderStore persists orders. Save inserts when the order has no identity and
// otherwise performs a version-checked update, returning the stored copy with
// its assigned identity and incremented version. A concurrent conflicting
// update fails with apperr.ErrVersionConflict. Lookups fail with a not-found
// kinded error when the order is absent.
type OrderStore interface {
	Save(ctx context.Context, order *models.Order) (*models.Order, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Order, error)
	GetByUser(ctx context.Context, userID uuid.UUID) ([]*models.Order, error)
	GetOpenByPairAndSide(ctx context.Context, base, quote models.Currency, side models.Side) ([]*models.Order, error)
}

// WalletStore persists wallets with the same Save semantics as OrderStore.
type WalletStore interface {
	Save(ctx context.Context, wallet *models.Wallet) (*models.Wallet, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Wallet, error)
	GetByUser(ctx context.Context, userID uuid.UUID) ([]*models.Wallet, error)
	ExistsByUserAndName(ctx context.Context, userID uuid.UUID, name string) (bool, error)
}

// TransactionStore is the append-only audit log. GetByUser pages newest-first
// and returns the total record count alongside the page.
type TransactionStore interface {
	Append(ctx context.Context, tx *models.Transaction) (*models.Transaction, error)
	GetByUser(ctx context.Context, userID uuid.UUID, page, size int) ([]*models.Transaction, int64, error)
}
