package orderbook

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"matchcore/internal/clock"
	"matchcore/internal/common"
)

func mustOrder(t *testing.T, clk clock.Clock, side common.Side, price, qty decimal.Decimal) *common.Order {
	t.Helper()
	o, err := common.New(clk, "AAPL", side, common.Limit, qty, price, decimal.Zero, "acct")
	require.NoError(t, err)
	return o
}

func TestAddResting_CreatesLevelAndAggregates(t *testing.T) {
	clk := clock.NewManual(0)
	book := New("AAPL")

	a := mustOrder(t, clk, common.Buy, decimal.NewFromInt(99), decimal.NewFromInt(5))
	b := mustOrder(t, clk, common.Buy, decimal.NewFromInt(99), decimal.NewFromInt(3))
	book.AddResting(a)
	book.AddResting(b)

	price, qty, ok := book.BestBid()
	require.True(t, ok)
	assert.True(t, price.Equal(decimal.NewFromInt(99)))
	assert.True(t, qty.Equal(decimal.NewFromInt(8)))
}

func TestBestBidAsk_EmptySides(t *testing.T) {
	book := New("AAPL")
	_, _, ok := book.BestBid()
	assert.False(t, ok)
	_, _, ok = book.BestAsk()
	assert.False(t, ok)
	_, ok = book.Spread()
	assert.False(t, ok)
}

func TestSpreadAndMidPrice(t *testing.T) {
	clk := clock.NewManual(0)
	book := New("AAPL")
	book.AddResting(mustOrder(t, clk, common.Buy, decimal.NewFromInt(99), decimal.NewFromInt(5)))
	book.AddResting(mustOrder(t, clk, common.Sell, decimal.NewFromInt(101), decimal.NewFromInt(5)))

	spread, ok := book.Spread()
	require.True(t, ok)
	assert.True(t, spread.Equal(decimal.NewFromInt(2)))

	mid, ok := book.MidPrice()
	require.True(t, ok)
	assert.True(t, mid.Equal(decimal.NewFromInt(100)))
}

func TestRemoveResting_DeletesEmptyLevel(t *testing.T) {
	clk := clock.NewManual(0)
	book := New("AAPL")
	order := mustOrder(t, clk, common.Sell, decimal.NewFromInt(101), decimal.NewFromInt(5))
	book.AddResting(order)

	assert.True(t, book.RemoveResting(order))
	_, _, ok := book.BestAsk()
	assert.False(t, ok)

	// Idempotent: removing again reports false, no panic.
	assert.False(t, book.RemoveResting(order))
}

func TestNextMatch_RespectsFIFOAndLimitPrice(t *testing.T) {
	clk := clock.NewManual(0)
	book := New("AAPL")
	first := mustOrder(t, clk, common.Sell, decimal.NewFromInt(100), decimal.NewFromInt(5))
	second := mustOrder(t, clk, common.Sell, decimal.NewFromInt(100), decimal.NewFromInt(5))
	book.AddResting(first)
	book.AddResting(second)

	id, ok := book.NextMatch(common.Buy, decimal.Zero, false)
	require.True(t, ok)
	assert.Equal(t, first.ID, id)

	// A buy limit below the best ask sees nothing to match.
	_, ok = book.NextMatch(common.Buy, decimal.NewFromInt(99), true)
	assert.False(t, ok)
}

func TestConsume_PartialLeavesOrderAtFront(t *testing.T) {
	clk := clock.NewManual(0)
	book := New("AAPL")
	resting := mustOrder(t, clk, common.Sell, decimal.NewFromInt(100), decimal.NewFromInt(5))
	book.AddResting(resting)

	book.Consume(resting, decimal.NewFromInt(2), false)
	_, qty, ok := book.BestAsk()
	require.True(t, ok)
	assert.True(t, qty.Equal(decimal.NewFromInt(3)))

	id, ok := book.NextMatch(common.Buy, decimal.Zero, false)
	require.True(t, ok)
	assert.Equal(t, resting.ID, id)
}

func TestConsume_ExhaustedRemovesLevel(t *testing.T) {
	clk := clock.NewManual(0)
	book := New("AAPL")
	resting := mustOrder(t, clk, common.Sell, decimal.NewFromInt(100), decimal.NewFromInt(5))
	book.AddResting(resting)

	book.Consume(resting, decimal.NewFromInt(5), true)
	_, _, ok := book.BestAsk()
	assert.False(t, ok)
}

func TestDepth_BestToWorst(t *testing.T) {
	clk := clock.NewManual(0)
	book := New("AAPL")
	book.AddResting(mustOrder(t, clk, common.Buy, decimal.NewFromInt(99), decimal.NewFromInt(5)))
	book.AddResting(mustOrder(t, clk, common.Buy, decimal.NewFromInt(98), decimal.NewFromInt(5)))
	book.AddResting(mustOrder(t, clk, common.Buy, decimal.NewFromInt(100), decimal.NewFromInt(5)))

	depth := book.Depth(common.Buy, 10)
	require.Len(t, depth, 3)
	assert.True(t, depth[0].Price.Equal(decimal.NewFromInt(100)))
	assert.True(t, depth[1].Price.Equal(decimal.NewFromInt(99)))
	assert.True(t, depth[2].Price.Equal(decimal.NewFromInt(98)))
}

func TestIsCrossed(t *testing.T) {
	clk := clock.NewManual(0)
	book := New("AAPL")
	assert.False(t, book.IsCrossed())

	book.AddResting(mustOrder(t, clk, common.Buy, decimal.NewFromInt(101), decimal.NewFromInt(5)))
	book.AddResting(mustOrder(t, clk, common.Sell, decimal.NewFromInt(100), decimal.NewFromInt(5)))
	assert.True(t, book.IsCrossed())
}
