// Package payment provides the external payment gateway contract used by
// deposits and withdrawals.
package payment

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/cexcore/exchange/internal/models"
)

// Gateway moves money between the exchange and the outside world. A false
// result is a declined payment, not an error; errors are transport failures.
type Gateway interface {
	ReceiveMoney(ctx context.Context, paymentID uuid.UUID, amount decimal.Decimal, currency models.Currency) (bool, error)
	SendMoney(ctx context.Context, paymentID uuid.UUID, amount decimal.Decimal, currency models.Currency) (bool, error)
}

// SimGateway simulates a payment provider for development and tests. It
// declines any amount in the [100, 200] window so decline paths stay testable.
type SimGateway struct {
	logger *zap.Logger
}

var _ Gateway = (*SimGateway)(nil)

var (
	declineFrom = decimal.NewFromInt(100)
	declineTo   = decimal.NewFromInt(200)
)

// NewSimGateway creates a simulated gateway
func NewSimGateway(logger *zap.Logger) *SimGateway {
	return &SimGateway{logger: logger}
}

func declined(amount decimal.Decimal) bool {
	return amount.GreaterThanOrEqual(declineFrom) && amount.LessThanOrEqual(declineTo)
}

// ReceiveMoney collects a deposit from the payment provider
func (g *SimGateway) ReceiveMoney(_ context.Context, paymentID uuid.UUID, amount decimal.Decimal, currency models.Currency) (bool, error) {
	if declined(amount) {
		return false, nil
	}
	g.logger.Info("receiving payment",
		zap.String("payment_id", paymentID.String()),
		zap.String("amount", amount.String()),
		zap.String("currency", string(currency)))
	return true, nil
}

// SendMoney pays out a withdrawal through the payment provider
func (g *SimGateway) SendMoney(_ context.Context, paymentID uuid.UUID, amount decimal.Decimal, currency models.Currency) (bool, error) {
	if declined(amount) {
		return false, nil
	}
	g.logger.Info("sending payment",
		zap.String("payment_id", paymentID.String()),
		zap.String("amount", amount.String()),
		zap.String("currency", string(currency)))
	return true, nil
}
