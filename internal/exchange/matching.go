package exchange

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/cexcore/exchange/internal/apperr"
	"github.com/cexcore/exchange/internal/events"
	"github.com/cexcore/exchange/internal/models"
	"github.com/cexcore/exchange/internal/pricing"
)

// MatchingEngine runs batch matching passes over the open orders of one
// currency pair at a time. At most one pass is active per pair; passes for
// distinct pairs run concurrently.
type MatchingEngine struct {
	logger  *zap.Logger
	orders  OrderStore
	wallets WalletStore
	pricing pricing.Service
	bus     *events.Bus

	// pair key -> *sync.Mutex, created lazily and never removed. Growth is
	// bounded by the number of distinct traded pairs.
	pairLocks sync.Map
}

// NewMatchingEngine creates a matching engine
func NewMatchingEngine(logger *zap.Logger, orders OrderStore, wallets WalletStore, pricing pricing.Service, bus *events.Bus) *MatchingEngine {
	return &MatchingEngine{
		logger:  logger,
		orders:  orders,
		wallets: wallets,
		pricing: pricing,
		bus:     bus,
	}
}

// Register subscribes the engine to match requests. The bus dispatches
// handlers on their own goroutines, so order placement never waits on a pass.
func (e *MatchingEngine) Register(bus *events.Bus) {
	bus.Subscribe(events.TopicMatchRequested, func(event events.Event) {
		req, ok := event.Payload.(events.MatchRequested)
		if !ok {
			e.logger.Error("unexpected payload on match request", zap.Any("payload", event.Payload))
			return
		}
		if err := e.RunMatching(context.Background(), req.BaseCurrency, req.QuoteCurrency); err != nil {
			e.logger.Error("matching pass failed",
				zap.String("pair", PairKey(req.BaseCurrency, req.QuoteCurrency)),
				zap.Error(err))
		}
	})
}

// PairKey canonicalizes a currency pair. Both directions of a pair share one
// order pool, so the key must not depend on which side is base.
func PairKey(base, quote models.Currency) string {
	a, b := string(base), string(quote)
	if b < a {
		a, b = b, a
	}
	return a + "-" + b
}

func (e *MatchingEngine) pairLock(base, quote models.Currency) *sync.Mutex {
	lock, _ := e.pairLocks.LoadOrStore(PairKey(base, quote), &sync.Mutex{})
	return lock.(*sync.Mutex)
}

// RunMatching executes one matching pass for the pair: snapshot the open
// orders, walk buy orders in creation order against sell orders in creation
// order and settle each affordable trade at the oracle price. Orders placed
// after the snapshot wait for the next triggered pass.
func (e *MatchingEngine) RunMatching(ctx context.Context, base, quote models.Currency) error {
	lock := e.pairLock(base, quote)
	lock.Lock()
	defer lock.Unlock()

	price, err := e.pricing.GetPrice(ctx, base, quote)
	if err != nil {
		return fmt.Errorf("failed to get price for %s-%s: %w", base, quote, err)
	}

	buyOrders, err := e.orders.GetOpenByPairAndSide(ctx, base, quote, models.SideBuy)
	if err != nil {
		return fmt.Errorf("failed to load buy orders: %w", err)
	}
	sellOrders, err := e.orders.GetOpenByPairAndSide(ctx, base, quote, models.SideSell)
	if err != nil {
		return fmt.Errorf("failed to load sell orders: %w", err)
	}

	// Orders whose write lost to a concurrent update drop out of the pass here.
	dropped := make(map[uuid.UUID]bool)

	// Exhausted or canceled orders stay in the slices and are skipped by the
	// status/amount re-check, preserving the creation-order priority: the
	// first buy order consumes liquidity before later buy orders get a turn.
	for _, buyOrder := range buyOrders {
		for _, sellOrder := range sellOrders {
			if dropped[buyOrder.ID] || buyOrder.Status != models.OrderOpen || !buyOrder.Amount.IsPositive() {
				continue
			}
			if dropped[sellOrder.ID] || sellOrder.Status != models.OrderOpen || !sellOrder.Amount.IsPositive() {
				continue
			}
			if err := e.matchPair(ctx, buyOrder, sellOrder, price, dropped); err != nil {
				return err
			}
		}
	}

	return nil
}

// matchPair attempts one trade between two live orders. An unaffordable side
// is canceled and the pass moves on; its counterparty stays open for later
// candidates. Store failures other than version conflicts are fatal for the
// pass.
func (e *MatchingEngine) matchPair(ctx context.Context, buyOrder, sellOrder *models.Order, price decimal.Decimal, dropped map[uuid.UUID]bool) error {
	buyWallet, err := e.fetchWallet(ctx, buyOrder)
	if err != nil {
		return err
	}
	sellWallet, err := e.fetchWallet(ctx, sellOrder)
	if err != nil {
		return err
	}

	tradeBase := decimal.Min(buyOrder.Amount, sellOrder.Amount)
	tradeQuote := tradeBase.Mul(price)

	if buyWallet == nil || !affordable(buyOrder, buyWallet, tradeBase, tradeQuote) {
		return e.cancelUnaffordable(ctx, buyOrder)
	}
	if sellWallet == nil || !affordable(sellOrder, sellWallet, tradeBase, tradeQuote) {
		return e.cancelUnaffordable(ctx, sellOrder)
	}

	buyOrder.Amount = buyOrder.Amount.Sub(tradeBase)
	sellOrder.Amount = sellOrder.Amount.Sub(tradeBase)
	buyWallet.AddBalance(buyOrder.BaseCurrency, tradeBase)
	buyWallet.SubtractBalance(buyOrder.QuoteCurrency, tradeQuote)
	sellWallet.SubtractBalance(sellOrder.BaseCurrency, tradeBase)
	sellWallet.AddBalance(sellOrder.QuoteCurrency, tradeQuote)

	buyDropped, err := e.settle(ctx, buyOrder, buyWallet, tradeBase)
	if err != nil {
		return err
	}
	if buyDropped {
		// The buy side's write lost to a concurrent cancellation, so nothing
		// was persisted for this trade. Restore the sell order's remainder and
		// leave the seller's wallet alone; it is re-fetched for the next
		// candidate.
		dropped[buyOrder.ID] = true
		sellOrder.Amount = sellOrder.Amount.Add(tradeBase)
		return nil
	}

	sellDropped, err := e.settle(ctx, sellOrder, sellWallet, tradeBase)
	if err != nil {
		return err
	}
	if sellDropped {
		dropped[sellOrder.ID] = true
	}
	return nil
}

// fetchWallet loads an order's wallet; absence is a business outcome (nil
// wallet cancels the order), transport failures are returned.
func (e *MatchingEngine) fetchWallet(ctx context.Context, order *models.Order) (*models.Wallet, error) {
	wallet, err := e.wallets.Get(ctx, order.WalletID)
	if err != nil {
		if apperr.IsKind(err, apperr.KindNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load wallet for order %s: %w", order.ID, err)
	}
	return wallet, nil
}

// affordable re-validates the trade against the side's current wallet
// snapshot at fixed scale with half-up rounding.
func affordable(order *models.Order, wallet *models.Wallet, tradeBase, tradeQuote decimal.Decimal) bool {
	switch order.Side {
	case models.SideBuy:
		return models.Scaled(wallet.Balance(order.QuoteCurrency)).Cmp(models.Scaled(tradeQuote)) >= 0
	case models.SideSell:
		return models.Scaled(wallet.Balance(order.BaseCurrency)).Cmp(models.Scaled(tradeBase)) >= 0
	default:
		return false
	}
}

// cancelUnaffordable records the cancellation of an order whose wallet cannot
// cover the trade. A version conflict means a concurrent write (e.g. a user
// cancellation) already closed the order; the persisted state wins and the
// order is only removed from the rest of the pass.
func (e *MatchingEngine) cancelUnaffordable(ctx context.Context, order *models.Order) error {
	order.Status = models.OrderCanceled
	saved, err := e.orders.Save(ctx, order)
	if err != nil {
		if errors.Is(err, apperr.ErrVersionConflict) {
			e.logger.Warn("order changed concurrently, dropping from pass",
				zap.String("order_id", order.ID.String()))
			return nil
		}
		return fmt.Errorf("failed to cancel order %s: %w", order.ID, err)
	}
	order.Version = saved.Version

	e.logger.Info("order canceled by matching, wallet cannot cover trade",
		zap.String("order_id", order.ID.String()))
	return nil
}

// settle persists one side of an executed trade: the order (FILLED once its
// remaining amount scales to zero) and its mutated wallet, then emits the
// audit signal carrying the traded base amount. A true result means the order
// write lost to a concurrent update and nothing was persisted for this side;
// the caller drops the order from the pass.
func (e *MatchingEngine) settle(ctx context.Context, order *models.Order, wallet *models.Wallet, tradeBase decimal.Decimal) (bool, error) {
	if models.IsZero(order.Amount) {
		order.Status = models.OrderFilled
	}

	savedOrder, err := e.orders.Save(ctx, order)
	if err != nil {
		if errors.Is(err, apperr.ErrVersionConflict) {
			// A concurrent cancellation won the write race; the persisted
			// state stands and the wallet write is skipped with the order.
			e.logger.Warn("stale order write lost to concurrent update",
				zap.String("order_id", order.ID.String()))
			return true, nil
		}
		return false, fmt.Errorf("failed to save order %s: %w", order.ID, err)
	}
	order.Version = savedOrder.Version

	savedWallet, err := e.wallets.Save(ctx, wallet)
	if err != nil {
		return false, fmt.Errorf("failed to save wallet %s: %w", wallet.ID, err)
	}
	wallet.Version = savedWallet.Version

	if order.Status == models.OrderFilled {
		e.bus.Publish(events.TopicTransactionCreated, events.OrderFilledTransaction(order, tradeBase))
	} else {
		e.bus.Publish(events.TopicTransactionCreated, events.OrderPartiallyFilledTransaction(order, tradeBase))
	}
	return false, nil
}
