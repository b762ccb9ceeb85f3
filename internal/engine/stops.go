package engine

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"matchcore/internal/common"
)

// stopSet holds the pending StopLoss/StopLimit orders for one symbol, in the
// order they were placed. Trigger sets are expected to stay small relative
// to book depth, so a linear scan on every trade is the right trade-off over
// a sorted index.
type stopSet struct {
	orders []*common.Order
}

func (s *stopSet) add(order *common.Order) {
	s.orders = append(s.orders, order)
}

func (s *stopSet) removeByID(id uuid.UUID) bool {
	for i, o := range s.orders {
		if o.ID == id {
			s.orders = append(s.orders[:i], s.orders[i+1:]...)
			return true
		}
	}
	return false
}

// triggered reports whether a stop on side with the given stop price fires
// at lastTradePrice: a Buy stop triggers as price rises through it, a Sell
// stop as price falls through it.
func triggered(side common.Side, stopPrice, lastTradePrice decimal.Decimal) bool {
	if side == common.Buy {
		return lastTradePrice.GreaterThanOrEqual(stopPrice)
	}
	return lastTradePrice.LessThanOrEqual(stopPrice)
}

// popTriggered removes and returns, in ascending trigger-time (i.e.
// insertion) order, every stop order that fires at lastTradePrice.
func (s *stopSet) popTriggered(lastTradePrice decimal.Decimal) []*common.Order {
	var fired []*common.Order
	remaining := s.orders[:0]
	for _, o := range s.orders {
		if triggered(o.Side, o.StopPrice, lastTradePrice) {
			fired = append(fired, o)
		} else {
			remaining = append(remaining, o)
		}
	}
	s.orders = remaining
	return fired
}
