package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Currency is a supported fiat or crypto currency code
type Currency string

const (
	USD  Currency = "USD"
	EUR  Currency = "EUR"
	BTC  Currency = "BTC"
	ETH  Currency = "ETH"
	DOGE Currency = "DOGE"
)

// Side is the direction of an order
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// OrderStatus tracks the order lifecycle; FILLED and CANCELED are terminal
type OrderStatus string

const (
	OrderOpen     OrderStatus = "OPEN"
	OrderFilled   OrderStatus = "FILLED"
	OrderCanceled OrderStatus = "CANCELED"
)

// TransactionType labels ledger audit records
type TransactionType string

const (
	TransactionDeposit         TransactionType = "DEPOSIT"
	TransactionWithdrawal      TransactionType = "WITHDRAWAL"
	TransactionOrderPlaced     TransactionType = "ORDER_PLACED"
	TransactionOrderPartFilled TransactionType = "ORDER_PARTIALLY_FILLED"
	TransactionOrderFilled     TransactionType = "ORDER_FILLED"
	TransactionOrderCanceled   TransactionType = "ORDER_CANCELED"
)

// User represents a registered user
type User struct {
	ID           uuid.UUID `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	Email        string    `json:"email"`
	CreatedAt    time.Time `json:"created_at"`
}

// Order represents a buy or sell order. Amount is the remaining base-currency
// amount and only decreases as fills occur. CreatedAt is the matching tie-break.
type Order struct {
	ID            uuid.UUID       `json:"id"`
	UserID        uuid.UUID       `json:"user_id"`
	WalletID      uuid.UUID       `json:"wallet_id"`
	Side          Side            `json:"side"`
	Amount        decimal.Decimal `json:"amount"`
	BaseCurrency  Currency        `json:"base_currency"`
	QuoteCurrency Currency        `json:"quote_currency"`
	Status        OrderStatus     `json:"status"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	Version       int64           `json:"version"`
}

// Wallet holds per-currency balances for one user. A currency missing from
// Balances means a zero balance.
type Wallet struct {
	ID        uuid.UUID                    `json:"id"`
	UserID    uuid.UUID                    `json:"user_id"`
	Name      string                       `json:"name"`
	Balances  map[Currency]decimal.Decimal `json:"balances"`
	CreatedAt time.Time                    `json:"created_at"`
	UpdatedAt time.Time                    `json:"updated_at"`
	Version   int64                        `json:"version"`
}

// Balance returns the balance for a currency, zero if the currency is absent
func (w *Wallet) Balance(currency Currency) decimal.Decimal {
	if b, ok := w.Balances[currency]; ok {
		return b
	}
	return decimal.Zero
}

// AddBalance increases the balance for a currency
func (w *Wallet) AddBalance(currency Currency, amount decimal.Decimal) {
	if w.Balances == nil {
		w.Balances = make(map[Currency]decimal.Decimal)
	}
	w.Balances[currency] = w.Balance(currency).Add(amount)
}

// SubtractBalance decreases the balance for a currency
func (w *Wallet) SubtractBalance(currency Currency, amount decimal.Decimal) {
	if w.Balances == nil {
		w.Balances = make(map[Currency]decimal.Decimal)
	}
	w.Balances[currency] = w.Balance(currency).Sub(amount)
}

// Transaction is an immutable, append-only audit record of a balance-affecting
// or status-affecting event
type Transaction struct {
	ID        uuid.UUID         `json:"id"`
	UserID    uuid.UUID         `json:"user_id"`
	WalletID  uuid.UUID         `json:"wallet_id"`
	Type      TransactionType   `json:"type"`
	Metadata  map[string]string `json:"metadata"`
	CreatedAt time.Time         `json:"created_at"`
}
