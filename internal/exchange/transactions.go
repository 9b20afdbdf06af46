package exchange

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cexcore/exchange/internal/events"
	"github.com/cexcore/exchange/internal/models"
)

const (
	defaultTransactionPageSize = 20
	maxTransactionPageSize     = 100
)

// TransactionService consumes TransactionCreated signals and appends one
// audit record per signal.
type TransactionService struct {
	logger *zap.Logger
	store  TransactionStore
}

// NewTransactionService creates a transaction service
func NewTransactionService(logger *zap.Logger, store TransactionStore) *TransactionService {
	return &TransactionService{logger: logger, store: store}
}

// Register subscribes the service to transaction signals
func (s *TransactionService) Register(bus *events.Bus) {
	bus.Subscribe(events.TopicTransactionCreated, func(event events.Event) {
		payload, ok := event.Payload.(events.TransactionCreated)
		if !ok {
			s.logger.Error("unexpected payload on transaction signal", zap.Any("payload", event.Payload))
			return
		}
		tx := &models.Transaction{
			UserID:   payload.UserID,
			WalletID: payload.WalletID,
			Type:     payload.Type,
			Metadata: payload.Metadata,
		}
		if _, err := s.store.Append(context.Background(), tx); err != nil {
			s.logger.Error("failed to append transaction",
				zap.String("type", string(payload.Type)),
				zap.Error(err))
		}
	})
}

// GetTransactions returns one page of the user's audit log, newest first,
// along with the total record count.
func (s *TransactionService) GetTransactions(ctx context.Context, userID uuid.UUID, page, size int) ([]*models.Transaction, int64, error) {
	if page < 0 {
		page = 0
	}
	if size <= 0 {
		size = defaultTransactionPageSize
	}
	if size > maxTransactionPageSize {
		size = maxTransactionPageSize
	}
	return s.store.GetByUser(ctx, userID, page, size)
}
