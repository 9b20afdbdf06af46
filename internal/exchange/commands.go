package exchange

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/cexcore/exchange/internal/models"
)

// PlaceOrderCommand carries a validated order placement request
type PlaceOrderCommand struct {
	UserID        uuid.UUID
	WalletID      uuid.UUID
	Side          models.Side
	Amount        decimal.Decimal
	BaseCurrency  models.Currency
	QuoteCurrency models.Currency
}

// IsBuy reports whether the command places a buy order
func (c PlaceOrderCommand) IsBuy() bool { return c.Side == models.SideBuy }

// IsSell reports whether the command places a sell order
func (c PlaceOrderCommand) IsSell() bool { return c.Side == models.SideSell }

func (c PlaceOrderCommand) toOrder() *models.Order {
	return &models.Order{
		UserID:        c.UserID,
		WalletID:      c.WalletID,
		Side:          c.Side,
		Amount:        c.Amount,
		BaseCurrency:  c.BaseCurrency,
		QuoteCurrency: c.QuoteCurrency,
		Status:        models.OrderOpen,
	}
}

// CreateWalletCommand creates an empty wallet with zero balances for the
// requested currencies
type CreateWalletCommand struct {
	UserID     uuid.UUID
	Name       string
	Currencies []models.Currency
}

func (c CreateWalletCommand) toWallet() *models.Wallet {
	balances := make(map[models.Currency]decimal.Decimal, len(c.Currencies))
	for _, currency := range c.Currencies {
		balances[currency] = decimal.Zero
	}
	return &models.Wallet{
		UserID:   c.UserID,
		Name:     c.Name,
		Balances: balances,
	}
}

// DepositCommand credits a wallet after collecting money from the gateway
type DepositCommand struct {
	WalletID  uuid.UUID
	Amount    decimal.Decimal
	Currency  models.Currency
	PaymentID uuid.UUID
}

// WithdrawCommand debits a wallet after paying out through the gateway
type WithdrawCommand struct {
	WalletID  uuid.UUID
	Amount    decimal.Decimal
	Currency  models.Currency
	PaymentID uuid.UUID
}
