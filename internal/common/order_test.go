package common

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"matchcore/internal/clock"
)

func TestNew_RejectsNonPositiveQuantity(t *testing.T) {
	clk := clock.NewManual(0)
	_, err := New(clk, "AAPL", Buy, Market, decimal.Zero, decimal.Zero, decimal.Zero, "acct-1")
	assert.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = New(clk, "AAPL", Buy, Market, decimal.NewFromInt(-5), decimal.Zero, decimal.Zero, "acct-1")
	assert.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestNew_RequiresPriceForLimitKinds(t *testing.T) {
	clk := clock.NewManual(0)
	_, err := New(clk, "AAPL", Buy, Limit, decimal.NewFromInt(10), decimal.Zero, decimal.Zero, "acct-1")
	assert.ErrorIs(t, err, ErrMissingPrice)

	_, err = New(clk, "AAPL", Buy, StopLimit, decimal.NewFromInt(10), decimal.Zero, decimal.NewFromInt(100), "acct-1")
	assert.ErrorIs(t, err, ErrMissingPrice)
}

func TestNew_RequiresStopPriceForStopKinds(t *testing.T) {
	clk := clock.NewManual(0)
	_, err := New(clk, "AAPL", Sell, StopLoss, decimal.NewFromInt(10), decimal.Zero, decimal.Zero, "acct-1")
	assert.ErrorIs(t, err, ErrMissingStopPrice)
}

func TestNew_ValidOrderHasNewStatus(t *testing.T) {
	clk := clock.NewManual(0)
	order, err := New(clk, "AAPL", Buy, Limit, decimal.NewFromInt(10), decimal.NewFromInt(100), decimal.Zero, "acct-1")
	require.NoError(t, err)
	assert.Equal(t, StatusNew, order.Status)
	assert.True(t, order.IsActive())
	assert.True(t, order.Remaining().Equal(decimal.NewFromInt(10)))
}

func TestApplyFill_PartialThenFull(t *testing.T) {
	clk := clock.NewManual(0)
	order, err := New(clk, "AAPL", Buy, Limit, decimal.NewFromInt(10), decimal.NewFromInt(100), decimal.Zero, "acct-1")
	require.NoError(t, err)

	order.ApplyFill(decimal.NewFromInt(4), clk.Now())
	assert.Equal(t, StatusPartiallyFilled, order.Status)
	assert.True(t, order.Remaining().Equal(decimal.NewFromInt(6)))

	order.ApplyFill(decimal.NewFromInt(6), clk.Now())
	assert.Equal(t, StatusFilled, order.Status)
	assert.True(t, order.Remaining().IsZero())
	assert.False(t, order.IsActive())
}

func TestApplyFill_OverfillPanics(t *testing.T) {
	clk := clock.NewManual(0)
	order, err := New(clk, "AAPL", Buy, Limit, decimal.NewFromInt(10), decimal.NewFromInt(100), decimal.Zero, "acct-1")
	require.NoError(t, err)

	assert.Panics(t, func() {
		order.ApplyFill(decimal.NewFromInt(11), clk.Now())
	})
}

func TestCancel_OnlyFromActiveOrPending(t *testing.T) {
	clk := clock.NewManual(0)
	order, err := New(clk, "AAPL", Buy, Limit, decimal.NewFromInt(10), decimal.NewFromInt(100), decimal.Zero, "acct-1")
	require.NoError(t, err)

	require.NoError(t, order.Cancel())
	assert.Equal(t, StatusCancelled, order.Status)

	assert.ErrorIs(t, order.Cancel(), ErrNotCancellable)
}
