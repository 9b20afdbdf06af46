// Package events provides the in-process publish/subscribe bus carrying the
// exchange's domain signals and the typed payloads published on it.
package events

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/cexcore/exchange/internal/models"
)

// Topics for domain signals
const (
	TopicOrderPlaced        = "order.placed"
	TopicMatchRequested     = "order.match-requested"
	TopicWalletCreated      = "wallet.created"
	TopicTransactionCreated = "transaction.created"
)

// Event is the envelope delivered to subscribers
type Event struct {
	Topic     string
	Timestamp time.Time
	Payload   any
}

// OrderPlaced signals that a new order was persisted with status OPEN
type OrderPlaced struct {
	OrderID uuid.UUID
}

// MatchRequested asks the matching engine to run a pass over the pair's
// currently open orders
type MatchRequested struct {
	BaseCurrency  models.Currency
	QuoteCurrency models.Currency
}

// WalletCreated signals that a new empty wallet was persisted
type WalletCreated struct {
	WalletID uuid.UUID
}

// TransactionCreated instructs the transaction log to append an audit record
type TransactionCreated struct {
	UserID   uuid.UUID
	WalletID uuid.UUID
	Type     models.TransactionType
	Metadata map[string]string
}

// DepositTransaction builds the audit payload for a completed deposit
func DepositTransaction(wallet *models.Wallet, amount decimal.Decimal, currency models.Currency) TransactionCreated {
	return TransactionCreated{
		UserID:   wallet.UserID,
		WalletID: wallet.ID,
		Type:     models.TransactionDeposit,
		Metadata: map[string]string{
			"amount":   amount.String(),
			"currency": string(currency),
		},
	}
}

// WithdrawalTransaction builds the audit payload for a completed withdrawal
func WithdrawalTransaction(wallet *models.Wallet, amount decimal.Decimal, currency models.Currency) TransactionCreated {
	return TransactionCreated{
		UserID:   wallet.UserID,
		WalletID: wallet.ID,
		Type:     models.TransactionWithdrawal,
		Metadata: map[string]string{
			"amount":   amount.String(),
			"currency": string(currency),
		},
	}
}

// OrderPlacedTransaction builds the audit payload for a newly placed order
func OrderPlacedTransaction(order *models.Order) TransactionCreated {
	return TransactionCreated{
		UserID:   order.UserID,
		WalletID: order.WalletID,
		Type:     models.TransactionOrderPlaced,
		Metadata: map[string]string{
			"orderId":       order.ID.String(),
			"amount":        order.Amount.String(),
			"side":          string(order.Side),
			"baseCurrency":  string(order.BaseCurrency),
			"quoteCurrency": string(order.QuoteCurrency),
		},
	}
}

// OrderCanceledTransaction builds the audit payload for a canceled order
func OrderCanceledTransaction(order *models.Order) TransactionCreated {
	return TransactionCreated{
		UserID:   order.UserID,
		WalletID: order.WalletID,
		Type:     models.TransactionOrderCanceled,
		Metadata: map[string]string{
			"orderId": order.ID.String(),
		},
	}
}

// OrderFilledTransaction builds the audit payload for a fully filled order.
// baseAmount is the base-currency amount traded in the fill that exhausted it.
func OrderFilledTransaction(order *models.Order, baseAmount decimal.Decimal) TransactionCreated {
	return TransactionCreated{
		UserID:   order.UserID,
		WalletID: order.WalletID,
		Type:     models.TransactionOrderFilled,
		Metadata: map[string]string{
			"orderId": order.ID.String(),
			"amount":  baseAmount.String(),
		},
	}
}

// OrderPartiallyFilledTransaction builds the audit payload for a partial fill
func OrderPartiallyFilledTransaction(order *models.Order, baseAmount decimal.Decimal) TransactionCreated {
	return TransactionCreated{
		UserID:   order.UserID,
		WalletID: order.WalletID,
		Type:     models.TransactionOrderPartFilled,
		Metadata: map[string]string{
			"orderId": order.ID.String(),
			"amount":  baseAmount.String(),
		},
	}
}
