package exchange

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/cexcore/exchange/internal/apperr"
	"github.com/cexcore/exchange/internal/events"
	"github.com/cexcore/exchange/internal/models"
)

// OrderService validates and persists orders and drives their user-facing
// lifecycle. Placement only validates the wallet snapshot; funds are not
// escrowed, the matching engine re-validates at trade time.
type OrderService struct {
	logger  *zap.Logger
	orders  OrderStore
	wallets WalletStore
	bus     *events.Bus
}

// NewOrderService creates an order service
func NewOrderService(logger *zap.Logger, orders OrderStore, wallets WalletStore, bus *events.Bus) *OrderService {
	return &OrderService{logger: logger, orders: orders, wallets: wallets, bus: bus}
}

// PlaceOrder validates the command against the wallet snapshot, persists a new
// OPEN order and requests a matching pass for its pair.
func (s *OrderService) PlaceOrder(ctx context.Context, cmd PlaceOrderCommand) (*models.Order, error) {
	wallet, err := s.wallets.Get(ctx, cmd.WalletID)
	if err != nil {
		return nil, err
	}

	if err := s.validateOrder(cmd, wallet); err != nil {
		return nil, err
	}

	order, err := s.orders.Save(ctx, cmd.toOrder())
	if err != nil {
		return nil, fmt.Errorf("failed to save order: %w", err)
	}
	if order.ID == uuid.Nil {
		return nil, apperr.Internal("order was not saved")
	}

	s.logger.Info("order placed",
		zap.String("order_id", order.ID.String()),
		zap.String("side", string(order.Side)),
		zap.String("pair", PairKey(order.BaseCurrency, order.QuoteCurrency)))

	s.bus.Publish(events.TopicOrderPlaced, events.OrderPlaced{OrderID: order.ID})
	s.bus.Publish(events.TopicTransactionCreated, events.OrderPlacedTransaction(order))
	s.bus.Publish(events.TopicMatchRequested, events.MatchRequested{
		BaseCurrency:  order.BaseCurrency,
		QuoteCurrency: order.QuoteCurrency,
	})

	return order, nil
}

// validateOrder checks placement preconditions. An owner mismatch is reported
// with the same message as a missing wallet so existence does not leak.
func (s *OrderService) validateOrder(cmd PlaceOrderCommand, wallet *models.Wallet) error {
	if wallet.UserID != cmd.UserID {
		return apperr.BadRequest("wallet not found")
	}
	if models.NegativeOrZero(cmd.Amount) {
		return apperr.BadRequest("amount must be greater than 0")
	}
	if cmd.BaseCurrency == cmd.QuoteCurrency {
		return apperr.BadRequest("base and quote currency must be different")
	}
	if cmd.IsBuy() && models.Scaled(wallet.Balance(cmd.QuoteCurrency)).Cmp(models.Scaled(decimal.Zero)) <= 0 {
		return apperr.BadRequest("quote currency balance should be positive")
	}
	// The sell check is deliberately strict: balance must exceed the amount,
	// not merely cover it.
	if cmd.IsSell() && models.Scaled(wallet.Balance(cmd.BaseCurrency)).Cmp(models.Scaled(cmd.Amount)) <= 0 {
		return apperr.BadRequest("insufficient balance to sell")
	}
	return nil
}

// GetOrder returns the order iff it exists and belongs to the user. An
// ownership mismatch is indistinguishable from absence.
func (s *OrderService) GetOrder(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, apperr.NotFound("order '%s' not found", orderID)
	}
	return order, nil
}

// GetOrders returns all orders owned by the user
func (s *OrderService) GetOrders(ctx context.Context, userID uuid.UUID) ([]*models.Order, error) {
	return s.orders.GetByUser(ctx, userID)
}

// CancelOrder cancels an OPEN order owned by the user. No wallet mutation
// occurs: nothing was escrowed at placement time.
func (s *OrderService) CancelOrder(ctx context.Context, userID, orderID uuid.UUID) error {
	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return err
	}
	if order.UserID != userID {
		return apperr.NotFound("order '%s' not found", orderID)
	}
	if order.Status != models.OrderOpen {
		return apperr.BadRequest("order cannot be canceled")
	}

	order.Status = models.OrderCanceled
	canceled, err := s.orders.Save(ctx, order)
	if err != nil {
		return fmt.Errorf("failed to cancel order: %w", err)
	}

	s.logger.Info("order canceled", zap.String("order_id", canceled.ID.String()))
	s.bus.Publish(events.TopicTransactionCreated, events.OrderCanceledTransaction(canceled))
	return nil
}
