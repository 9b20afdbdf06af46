package models

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScaledComparesAtFixedScale(t *testing.T) {
	// A difference beyond the 18th decimal place rounds away.
	a := decimal.RequireFromString("1.0000000000000000004")
	b := decimal.RequireFromString("1")
	assert.Equal(t, 0, Scaled(a).Cmp(Scaled(b)))

	// Half-up: a 5 in the 19th place rounds the 18th place up.
	c := decimal.RequireFromString("1.0000000000000000005")
	assert.Equal(t, 1, Scaled(c).Cmp(Scaled(b)))
}

func TestIsZeroAfterScaling(t *testing.T) {
	dust := decimal.RequireFromString("0.0000000000000000001")
	assert.True(t, IsZero(dust))
	assert.False(t, IsZero(decimal.RequireFromString("0.000000000000000001")))
}

func TestNegativeOrZero(t *testing.T) {
	assert.True(t, NegativeOrZero(decimal.Zero))
	assert.True(t, NegativeOrZero(decimal.NewFromInt(-1)))
	assert.False(t, NegativeOrZero(decimal.RequireFromString("0.1")))
}

func TestWalletBalanceOperations(t *testing.T) {
	w := &Wallet{}

	assert.True(t, w.Balance(USD).IsZero(), "missing currency reads as zero")

	w.AddBalance(USD, decimal.NewFromInt(100))
	assert.True(t, w.Balance(USD).Equal(decimal.NewFromInt(100)))

	w.SubtractBalance(USD, decimal.NewFromInt(30))
	assert.True(t, w.Balance(USD).Equal(decimal.NewFromInt(70)))

	// Subtracting from an absent currency goes negative rather than panicking;
	// callers guard balances before debiting.
	w.SubtractBalance(BTC, decimal.NewFromInt(1))
	assert.True(t, w.Balance(BTC).Equal(decimal.NewFromInt(-1)))
}

func TestWalletBalancesJSONRoundTrip(t *testing.T) {
	w := &Wallet{
		Balances: map[Currency]decimal.Decimal{
			USD: decimal.RequireFromString("100.50"),
			BTC: decimal.RequireFromString("0.00000001"),
		},
	}

	raw, err := json.Marshal(w)
	require.NoError(t, err)

	var back Wallet
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.True(t, back.Balance(USD).Equal(decimal.RequireFromString("100.50")))
	assert.True(t, back.Balance(BTC).Equal(decimal.RequireFromString("0.00000001")))
}
