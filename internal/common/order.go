// Package common holds the value types shared by the order book, the risk
// manager, and the matching engine: Order and Trade.
package common

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"matchcore/internal/clock"
)

// Side is which side of the book an order sits on.
type Side int

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	if s == Buy {
		return "buy"
	}
	return "sell"
}

// Kind is the order type.
type Kind int

const (
	Market Kind = iota
	Limit
	StopLoss
	StopLimit
)

func (k Kind) String() string {
	switch k {
	case Market:
		return "market"
	case Limit:
		return "limit"
	case StopLoss:
		return "stop_loss"
	case StopLimit:
		return "stop_limit"
	default:
		return "unknown"
	}
}

// IsStop reports whether the order kind starts life as PendingTrigger.
func (k Kind) IsStop() bool {
	return k == StopLoss || k == StopLimit
}

// HasLimitPrice reports whether the order kind is bounded by Price during
// matching (as opposed to sweeping the book unbounded).
func (k Kind) HasLimitPrice() bool {
	return k == Limit || k == StopLimit
}

// Status is the order lifecycle state.
type Status int

const (
	StatusNew Status = iota
	StatusPartiallyFilled
	StatusFilled
	StatusCancelled
	StatusRejected
	StatusPendingTrigger
)

func (s Status) String() string {
	switch s {
	case StatusNew:
		return "new"
	case StatusPartiallyFilled:
		return "partially_filled"
	case StatusFilled:
		return "filled"
	case StatusCancelled:
		return "cancelled"
	case StatusRejected:
		return "rejected"
	case StatusPendingTrigger:
		return "pending_trigger"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether no further mutation of the order is allowed.
func (s Status) IsTerminal() bool {
	return s == StatusFilled || s == StatusCancelled || s == StatusRejected
}

var (
	// ErrInvalidQuantity is returned by New when quantity is not strictly positive.
	ErrInvalidQuantity = errors.New("common: order quantity must be positive")
	// ErrMissingPrice is returned by New when a Limit/StopLimit order has no positive price.
	ErrMissingPrice = errors.New("common: limit and stop-limit orders require a positive price")
	// ErrMissingStopPrice is returned by New when a stop order has no positive stop price.
	ErrMissingStopPrice = errors.New("common: stop orders require a positive stop price")
	// ErrNotCancellable is returned by Cancel when the order is in a terminal state.
	ErrNotCancellable = errors.New("common: order is not in a cancellable state")
)

// Order is a submitted instruction with mutable fill state. Once submitted it
// is owned by the MatchingEngine and mutated only while the owning symbol's
// lock is held.
type Order struct {
	ID             uuid.UUID
	Symbol         string
	Side           Side
	Kind           Kind
	Quantity       decimal.Decimal
	FilledQuantity decimal.Decimal
	Price          decimal.Decimal // zero value for Market/StopLoss
	StopPrice      decimal.Decimal // zero value for Market/Limit
	Account        string
	Status         Status
	CreatedAt      int64
	UpdatedAt      int64
}

// New validates and constructs an Order. It does not assign the order a home
// in any book — that is the engine's job once risk admission passes.
func New(clk clock.Clock, symbol string, side Side, kind Kind, quantity, price, stopPrice decimal.Decimal, account string) (*Order, error) {
	if !quantity.IsPositive() {
		return nil, ErrInvalidQuantity
	}
	if kind.HasLimitPrice() && !price.IsPositive() {
		return nil, ErrMissingPrice
	}
	if kind.IsStop() && !stopPrice.IsPositive() {
		return nil, ErrMissingStopPrice
	}

	now := clk.Now()
	return &Order{
		ID:             uuid.New(),
		Symbol:         symbol,
		Side:           side,
		Kind:           kind,
		Quantity:       quantity,
		FilledQuantity: decimal.Zero,
		Price:          price,
		StopPrice:      stopPrice,
		Account:        account,
		Status:         StatusNew,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// Remaining is quantity - filled_quantity.
func (o *Order) Remaining() decimal.Decimal {
	return o.Quantity.Sub(o.FilledQuantity)
}

// ApplyFill increases FilledQuantity by amount and transitions status. A
// caller asking to fill more than Remaining, or a non-positive amount, is a
// programmer error: the matching loop never computes such an amount, so this
// panics rather than returning an error.
func (o *Order) ApplyFill(amount decimal.Decimal, now int64) {
	remaining := o.Remaining()
	if !amount.IsPositive() || amount.GreaterThan(remaining) {
		panic(fmt.Sprintf("common: apply_fill out of bounds: amount=%s remaining=%s order=%s", amount, remaining, o.ID))
	}
	o.FilledQuantity = o.FilledQuantity.Add(amount)
	if o.FilledQuantity.Equal(o.Quantity) {
		o.Status = StatusFilled
	} else {
		o.Status = StatusPartiallyFilled
	}
	o.UpdatedAt = now
}

// Cancel transitions an active or pending order to Cancelled. It is only
// valid from {New, PartiallyFilled, PendingTrigger}.
func (o *Order) Cancel() error {
	switch o.Status {
	case StatusNew, StatusPartiallyFilled, StatusPendingTrigger:
		o.Status = StatusCancelled
		return nil
	default:
		return ErrNotCancellable
	}
}

// IsActive reports whether the order can still receive fills.
func (o *Order) IsActive() bool {
	return o.Status == StatusNew || o.Status == StatusPartiallyFilled
}

// EffectiveLimit returns the price bound matching uses for this order: its
// own Price when it carries a limit, or (zero, false) when it sweeps the
// book unbounded. A triggered StopLoss/StopLimit is treated identically to a
// Market/Limit order here, since by the time it reaches matching its status
// has already left PendingTrigger.
func (o *Order) EffectiveLimit() (decimal.Decimal, bool) {
	if o.Kind.HasLimitPrice() {
		return o.Price, true
	}
	return decimal.Zero, false
}
