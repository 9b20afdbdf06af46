// Package pricing provides the exchange-rate oracle consumed by the matching
// engine.
package pricing

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/cexcore/exchange/internal/apperr"
	"github.com/cexcore/exchange/internal/models"
)

// Service returns the current quote-per-base exchange rate for a pair
type Service interface {
	GetPrice(ctx context.Context, base, quote models.Currency) (decimal.Decimal, error)
}

// StaticOracle serves rates from a fixed table. It stands in for a market-data
// feed in development and tests.
type StaticOracle struct {
	rates map[models.Currency]map[models.Currency]decimal.Decimal
}

var _ Service = (*StaticOracle)(nil)

// NewStaticOracle creates an oracle with the built-in rate table
func NewStaticOracle() *StaticOracle {
	return &StaticOracle{
		rates: map[models.Currency]map[models.Currency]decimal.Decimal{
			models.USD: {
				models.USD:  decimal.RequireFromString("1"),
				models.EUR:  decimal.RequireFromString("0.927"),
				models.BTC:  decimal.RequireFromString("70000"),
				models.ETH:  decimal.RequireFromString("19.55"),
				models.DOGE: decimal.RequireFromString("392181.20"),
			},
			models.EUR: {
				models.USD:  decimal.RequireFromString("1.079"),
				models.EUR:  decimal.RequireFromString("1"),
				models.BTC:  decimal.RequireFromString("0.000015"),
				models.ETH:  decimal.RequireFromString("0.00030"),
				models.DOGE: decimal.RequireFromString("6.04"),
			},
			models.ETH: {
				models.USD:  decimal.RequireFromString("3590.80"),
				models.EUR:  decimal.RequireFromString("3315.21"),
				models.ETH:  decimal.RequireFromString("1"),
				models.DOGE: decimal.RequireFromString("20012.11"),
				models.BTC:  decimal.RequireFromString("0.051"),
			},
			models.DOGE: {
				models.USD:  decimal.RequireFromString("0.18"),
				models.EUR:  decimal.RequireFromString("0.17"),
				models.ETH:  decimal.RequireFromString("0.000050"),
				models.DOGE: decimal.RequireFromString("1"),
				models.BTC:  decimal.RequireFromString("0.0000026"),
			},
			models.BTC: {
				models.USD:  decimal.RequireFromString("70233.2"),
				models.EUR:  decimal.RequireFromString("64850"),
				models.ETH:  decimal.RequireFromString("19.56"),
				models.DOGE: decimal.RequireFromString("391397.70"),
				models.BTC:  decimal.RequireFromString("1"),
			},
		},
	}
}

// GetPrice returns the quote-per-base rate, failing for unsupported pairs
func (o *StaticOracle) GetPrice(_ context.Context, base, quote models.Currency) (decimal.Decimal, error) {
	if quotes, ok := o.rates[base]; ok {
		if price, ok := quotes[quote]; ok {
			return price, nil
		}
	}
	return decimal.Zero, apperr.BadRequest("unsupported currency pair %s-%s", base, quote)
}
