// Package orderbook implements the per-symbol resting-liquidity structure:
// price-level queues on the bid and ask side, kept in a tidwall/btree so
// that level lookup and best-of-book access stay logarithmic in the number
// of distinct active price levels.
package orderbook

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tidwall/btree"

	"matchcore/internal/common"
)

type restingLocation struct {
	side  common.Side
	price decimal.Decimal
}

// OrderBook holds resting bids and asks for a single symbol. It is not
// concurrency-safe on its own — the engine serializes access per symbol
// with its own lock.
type OrderBook struct {
	Symbol string

	bids *btree.BTreeG[*PriceLevel] // sorted highest price first
	asks *btree.BTreeG[*PriceLevel] // sorted lowest price first

	index map[uuid.UUID]restingLocation
}

// New constructs an empty book for symbol.
func New(symbol string) *OrderBook {
	return &OrderBook{
		Symbol: symbol,
		bids: btree.NewBTreeG(func(a, b *PriceLevel) bool {
			return a.Price.GreaterThan(b.Price)
		}),
		asks: btree.NewBTreeG(func(a, b *PriceLevel) bool {
			return a.Price.LessThan(b.Price)
		}),
		index: make(map[uuid.UUID]restingLocation),
	}
}

func (b *OrderBook) treeFor(side common.Side) *btree.BTreeG[*PriceLevel] {
	if side == common.Buy {
		return b.bids
	}
	return b.asks
}

func opposite(side common.Side) common.Side {
	if side == common.Buy {
		return common.Sell
	}
	return common.Buy
}

// AddResting inserts order at the tail of the queue for its side and price,
// creating the price level if one does not already exist.
func (b *OrderBook) AddResting(order *common.Order) {
	tree := b.treeFor(order.Side)
	level, ok := tree.GetMut(&PriceLevel{Price: order.Price})
	if !ok {
		level = newPriceLevel(order.Price)
		tree.Set(level)
	}
	level.pushBack(order.ID, order.Remaining())
	b.index[order.ID] = restingLocation{side: order.Side, price: order.Price}
}

// RemoveResting removes order from the book entirely — used for
// cancellation of a resting order, not for consuming a fill. Returns false
// if the order is not currently resting in this book.
func (b *OrderBook) RemoveResting(order *common.Order) bool {
	loc, ok := b.index[order.ID]
	if !ok {
		return false
	}
	tree := b.treeFor(loc.side)
	level, ok := tree.GetMut(&PriceLevel{Price: loc.price})
	if !ok {
		return false
	}
	if !level.removeByID(order.ID, order.Remaining()) {
		return false
	}
	delete(b.index, order.ID)
	if level.empty() {
		tree.Delete(level)
	}
	return true
}

// NextMatch peeks the best resting order id for an aggressor on
// aggressorSide, honoring an optional limit price. It does not mutate the
// book; pair it with Consume once the match quantity is known.
func (b *OrderBook) NextMatch(aggressorSide common.Side, limitPrice decimal.Decimal, hasLimit bool) (uuid.UUID, bool) {
	tree := b.treeFor(opposite(aggressorSide))
	level, ok := tree.Min()
	if !ok {
		return uuid.Nil, false
	}
	if hasLimit {
		if aggressorSide == common.Buy && level.Price.GreaterThan(limitPrice) {
			return uuid.Nil, false
		}
		if aggressorSide == common.Sell && level.Price.LessThan(limitPrice) {
			return uuid.Nil, false
		}
	}
	return level.front()
}

// Consume applies a fill of amount against the resting order, which must
// currently be at the front of its price level (the caller is expected to
// have obtained id via NextMatch). If exhausted is true the order is popped
// from the book and its index entry released.
func (b *OrderBook) Consume(order *common.Order, amount decimal.Decimal, exhausted bool) {
	loc, ok := b.index[order.ID]
	if !ok {
		return
	}
	tree := b.treeFor(loc.side)
	level, ok := tree.GetMut(&PriceLevel{Price: loc.price})
	if !ok {
		return
	}
	level.consume(order.ID, amount, exhausted)
	if exhausted {
		delete(b.index, order.ID)
		if level.empty() {
			tree.Delete(level)
		}
	}
}

// BestBid returns the highest bid price and its aggregate resting quantity.
func (b *OrderBook) BestBid() (price, qty decimal.Decimal, ok bool) {
	level, found := b.bids.Min()
	if !found {
		return decimal.Zero, decimal.Zero, false
	}
	return level.Price, level.Aggregate, true
}

// BestAsk returns the lowest ask price and its aggregate resting quantity.
func (b *OrderBook) BestAsk() (price, qty decimal.Decimal, ok bool) {
	level, found := b.asks.Min()
	if !found {
		return decimal.Zero, decimal.Zero, false
	}
	return level.Price, level.Aggregate, true
}

// Spread is best_ask - best_bid, when both sides are non-empty.
func (b *OrderBook) Spread() (decimal.Decimal, bool) {
	bidPrice, _, bidOk := b.BestBid()
	askPrice, _, askOk := b.BestAsk()
	if !bidOk || !askOk {
		return decimal.Zero, false
	}
	return askPrice.Sub(bidPrice), true
}

// MidPrice is the arithmetic mean of best bid and best ask, when both exist.
func (b *OrderBook) MidPrice() (decimal.Decimal, bool) {
	bidPrice, _, bidOk := b.BestBid()
	askPrice, _, askOk := b.BestAsk()
	if !bidOk || !askOk {
		return decimal.Zero, false
	}
	return bidPrice.Add(askPrice).Div(decimal.NewFromInt(2)), true
}

// Level is a read-only (price, aggregate quantity) snapshot, returned by Depth.
type Level struct {
	Price     decimal.Decimal
	Aggregate decimal.Decimal
}

// Depth returns the top n levels on side, sorted from best to worst. Empty
// levels never exist in the tree (they are deleted as they empty), so no
// filtering is needed here.
func (b *OrderBook) Depth(side common.Side, n int) []Level {
	if n <= 0 {
		return nil
	}
	tree := b.treeFor(side)
	out := make([]Level, 0, n)
	tree.Scan(func(level *PriceLevel) bool {
		out = append(out, Level{Price: level.Price, Aggregate: level.Aggregate})
		return len(out) < n
	})
	return out
}

// IsCrossed reports whether the book currently has best_bid >= best_ask,
// which must never be true once a Limit submission finishes matching.
// Exposed for tests.
func (b *OrderBook) IsCrossed() bool {
	bidPrice, _, bidOk := b.BestBid()
	askPrice, _, askOk := b.BestAsk()
	if !bidOk || !askOk {
		return false
	}
	return !bidPrice.LessThan(askPrice)
}

// BookView is a read-only handle onto an OrderBook, returned by
// MatchingEngine.GetOrderBook so a query cannot mutate book state.
type BookView struct {
	book *OrderBook
}

// NewView wraps book as a read-only view.
func NewView(book *OrderBook) BookView {
	return BookView{book: book}
}

func (v BookView) Symbol() string { return v.book.Symbol }

func (v BookView) BestBid() (decimal.Decimal, decimal.Decimal, bool) { return v.book.BestBid() }

func (v BookView) BestAsk() (decimal.Decimal, decimal.Decimal, bool) { return v.book.BestAsk() }

func (v BookView) Spread() (decimal.Decimal, bool) { return v.book.Spread() }

func (v BookView) MidPrice() (decimal.Decimal, bool) { return v.book.MidPrice() }

func (v BookView) Depth(side common.Side, n int) []Level { return v.book.Depth(side, n) }
