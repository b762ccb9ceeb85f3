// Package engine is the top-level coordinator: it maps symbols to order
// books, sequences the matching algorithm, and drives the stop-order
// trigger cascade.
package engine

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"matchcore/internal/clock"
	"matchcore/internal/common"
	"matchcore/internal/orderbook"
	"matchcore/internal/risk"
)

var (
	// ErrUnknownSymbol is returned by GetOrderBook for a symbol that no order
	// has yet passed risk admission for.
	ErrUnknownSymbol = errors.New("engine: unknown symbol")
	// ErrUnknownOrder is returned by GetOrder for an id not in the registry:
	// never submitted, rejected at admission, or already pruned.
	ErrUnknownOrder = errors.New("engine: unknown order")
)

// RiskRejectedError reports that submit_order's admission check failed; the
// order is marked Rejected and never touches book state.
type RiskRejectedError struct {
	Reason string
}

func (e *RiskRejectedError) Error() string {
	return fmt.Sprintf("engine: order rejected by risk check: %s", e.Reason)
}

// symbolState bundles everything that must move atomically under one
// per-symbol lock: the book, the pending stop set, and the last-trade-price
// cache used to evaluate stop triggers.
type symbolState struct {
	mu             sync.Mutex
	book           *orderbook.OrderBook
	stops          stopSet
	lastTradePrice decimal.Decimal
	hasTraded      bool
}

// MatchingEngine is the library's top-level surface: construction,
// submission, cancellation, and read-only book queries.
type MatchingEngine struct {
	symbols sync.Map // string -> *symbolState, lock-free lookup + fine-grained insert
	orders  sync.Map // uuid.UUID -> *common.Order

	risk   *risk.Manager
	clock  clock.Clock
	logger zerolog.Logger
}

// Option configures a MatchingEngine at construction time.
type Option func(*MatchingEngine)

// WithClock overrides the default system clock, for deterministic tests.
func WithClock(c clock.Clock) Option {
	return func(e *MatchingEngine) { e.clock = c }
}

// WithLogger overrides the default global zerolog logger.
func WithLogger(l zerolog.Logger) Option {
	return func(e *MatchingEngine) { e.logger = l }
}

// New constructs an empty MatchingEngine backed by riskMgr.
func New(riskMgr *risk.Manager, opts ...Option) *MatchingEngine {
	e := &MatchingEngine{
		risk:   riskMgr,
		clock:  clock.NewSystem(),
		logger: log.Logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Clock exposes the engine's time source, so callers constructing Orders
// with common.New share the same clock the engine stamps trades with.
func (e *MatchingEngine) Clock() clock.Clock {
	return e.clock
}

func (e *MatchingEngine) loadOrCreateSymbol(symbol string) *symbolState {
	if v, ok := e.symbols.Load(symbol); ok {
		return v.(*symbolState)
	}
	fresh := &symbolState{book: orderbook.New(symbol)}
	actual, loaded := e.symbols.LoadOrStore(symbol, fresh)
	if !loaded {
		e.logger.Debug().Str("symbol", symbol).Msg("opened new order book")
	}
	return actual.(*symbolState)
}

func (e *MatchingEngine) loadSymbol(symbol string) (*symbolState, bool) {
	v, ok := e.symbols.Load(symbol)
	if !ok {
		return nil, false
	}
	return v.(*symbolState), true
}

// SubmitOrder runs the full admission → classification → matching → stop
// cascade protocol and returns the trades the submission produced.
func (e *MatchingEngine) SubmitOrder(order *common.Order) ([]*common.Trade, error) {
	check := e.risk.CheckOrder(order)
	if !check.Passed {
		order.Status = common.StatusRejected
		e.logger.Info().
			Str("order", order.ID.String()).
			Str("account", order.Account).
			Str("reason", check.Reason).
			Msg("order rejected by risk check")
		return nil, &RiskRejectedError{Reason: check.Reason}
	}

	state := e.loadOrCreateSymbol(order.Symbol)
	state.mu.Lock()
	defer state.mu.Unlock()

	e.orders.Store(order.ID, order)

	if order.Kind.IsStop() {
		order.Status = common.StatusPendingTrigger
		state.stops.add(order)
		e.logger.Debug().
			Str("order", order.ID.String()).
			Str("symbol", order.Symbol).
			Msg("stop order pending trigger")
		return nil, nil
	}

	return e.matchLocked(state, order), nil
}

// matchLocked runs the matching loop for aggressor against state.book, rests
// any Limit remainder, and — if any trades resulted — evaluates and
// recursively resolves the symbol's pending stop orders. The caller must
// already hold state.mu.
func (e *MatchingEngine) matchLocked(state *symbolState, aggressor *common.Order) []*common.Trade {
	var trades []*common.Trade

	limitPrice, hasLimit := aggressor.EffectiveLimit()

	for aggressor.Remaining().IsPositive() {
		restingID, ok := state.book.NextMatch(aggressor.Side, limitPrice, hasLimit)
		if !ok {
			break
		}
		restingAny, ok := e.orders.Load(restingID)
		if !ok {
			// The book's index and the order registry disagreeing is an
			// invariant violation, not a condition matching can route around.
			panic(fmt.Sprintf("engine: order book references unknown order %s", restingID))
		}
		resting := restingAny.(*common.Order)

		qty := decimal.Min(aggressor.Remaining(), resting.Remaining())
		now := e.clock.Now()

		trade := buildTrade(aggressor, resting, qty, now)

		aggressor.ApplyFill(qty, now)
		resting.ApplyFill(qty, now)
		e.risk.OnTrade(trade)
		trades = append(trades, trade)

		restingFilled := resting.Status == common.StatusFilled
		state.book.Consume(resting, qty, restingFilled)
		if restingFilled {
			e.orders.Delete(resting.ID)
		}

		e.logger.Debug().
			Str("symbol", aggressor.Symbol).
			Str("price", trade.Price.String()).
			Str("qty", trade.Quantity.String()).
			Msg("trade executed")
	}

	if aggressor.Kind.HasLimitPrice() && aggressor.Remaining().IsPositive() {
		state.book.AddResting(aggressor)
	}

	if len(trades) > 0 {
		last := trades[len(trades)-1]
		state.lastTradePrice = last.Price
		state.hasTraded = true
		trades = append(trades, e.resolveTriggeredStops(state)...)
	}

	return trades
}

// buildTrade constructs the Trade record for a single match. Price is
// always the resting order's price: the aggressor takes whatever price is
// already resting in the book.
func buildTrade(aggressor, resting *common.Order, qty decimal.Decimal, now int64) *common.Trade {
	trade := &common.Trade{
		ID:        uuid.New(),
		Symbol:    aggressor.Symbol,
		Price:     resting.Price,
		Quantity:  qty,
		Timestamp: now,
	}
	if aggressor.Side == common.Buy {
		trade.BuyOrderID, trade.BuyerAccount = aggressor.ID, aggressor.Account
		trade.SellOrderID, trade.SellerAccount = resting.ID, resting.Account
	} else {
		trade.SellOrderID, trade.SellerAccount = aggressor.ID, aggressor.Account
		trade.BuyOrderID, trade.BuyerAccount = resting.ID, resting.Account
	}
	return trade
}

// resolveTriggeredStops pops every stop that fires at the symbol's current
// last-trade-price and feeds each through matchLocked in turn, in ascending
// trigger (insertion) order. Re-entrant matching can only trigger further
// stops in the same direction the last trade moved, bounding the recursion.
func (e *MatchingEngine) resolveTriggeredStops(state *symbolState) []*common.Trade {
	var trades []*common.Trade
	for _, stop := range state.stops.popTriggered(state.lastTradePrice) {
		check := e.risk.CheckOrder(stop)
		if !check.Passed {
			stop.Status = common.StatusRejected
			e.orders.Delete(stop.ID)
			e.logger.Info().
				Str("order", stop.ID.String()).
				Str("reason", check.Reason).
				Msg("triggered stop rejected by risk check")
			continue
		}
		stop.Status = common.StatusNew
		e.logger.Debug().Str("order", stop.ID.String()).Msg("stop order triggered")
		trades = append(trades, e.matchLocked(state, stop)...)
	}
	return trades
}

// CancelOrder cancels a resting or pending order. It returns false if the
// order is unknown or already terminal — cancellation on a terminal order
// is idempotent and never mutates state.
func (e *MatchingEngine) CancelOrder(id uuid.UUID) bool {
	any, ok := e.orders.Load(id)
	if !ok {
		return false
	}
	order := any.(*common.Order)

	state, ok := e.loadSymbol(order.Symbol)
	if !ok {
		return false
	}

	state.mu.Lock()
	defer state.mu.Unlock()

	if order.Status.IsTerminal() {
		return false
	}

	if order.Status == common.StatusPendingTrigger {
		state.stops.removeByID(order.ID)
	} else {
		state.book.RemoveResting(order)
	}

	if err := order.Cancel(); err != nil {
		return false
	}
	e.orders.Delete(order.ID)
	return true
}

// GetOrder looks up an order by id, active or terminal, as long as it has
// not been pruned from the registry (terminal orders may be pruned once
// both book and stop set have released them; trade records persist
// regardless).
func (e *MatchingEngine) GetOrder(id uuid.UUID) (*common.Order, error) {
	any, ok := e.orders.Load(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownOrder, id)
	}
	return any.(*common.Order), nil
}

// GetOrderBook returns a read-only view onto symbol's order book.
func (e *MatchingEngine) GetOrderBook(symbol string) (orderbook.BookView, error) {
	state, ok := e.loadSymbol(symbol)
	if !ok {
		return orderbook.BookView{}, fmt.Errorf("%w: %s", ErrUnknownSymbol, symbol)
	}
	return orderbook.NewView(state.book), nil
}
