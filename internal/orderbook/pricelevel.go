package orderbook

import (
	"container/list"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PriceLevel is a FIFO queue of resting order ids at one price, plus the
// running sum of their remaining quantities.
type PriceLevel struct {
	Price     decimal.Decimal
	Aggregate decimal.Decimal

	ids   *list.List // of uuid.UUID, oldest at Front
	index map[uuid.UUID]*list.Element
}

func newPriceLevel(price decimal.Decimal) *PriceLevel {
	return &PriceLevel{
		Price:     price,
		Aggregate: decimal.Zero,
		ids:       list.New(),
		index:     make(map[uuid.UUID]*list.Element),
	}
}

func (l *PriceLevel) pushBack(id uuid.UUID, qty decimal.Decimal) {
	l.index[id] = l.ids.PushBack(id)
	l.Aggregate = l.Aggregate.Add(qty)
}

// front returns the oldest resting order id at this level, FIFO priority.
func (l *PriceLevel) front() (uuid.UUID, bool) {
	e := l.ids.Front()
	if e == nil {
		return uuid.Nil, false
	}
	return e.Value.(uuid.UUID), true
}

// consume reduces the aggregate by amount (a partial or exhausting fill
// against the order at the front of the queue) and, if the order is now
// fully consumed, pops it off the queue.
func (l *PriceLevel) consume(id uuid.UUID, amount decimal.Decimal, exhausted bool) {
	l.Aggregate = l.Aggregate.Sub(amount)
	if exhausted {
		if e, ok := l.index[id]; ok {
			l.ids.Remove(e)
			delete(l.index, id)
		}
	}
}

// removeByID removes an order by id regardless of queue position (used for
// cancellation), decrementing the aggregate by the amount the caller reports
// as that order's current remaining quantity.
func (l *PriceLevel) removeByID(id uuid.UUID, remaining decimal.Decimal) bool {
	e, ok := l.index[id]
	if !ok {
		return false
	}
	l.ids.Remove(e)
	delete(l.index, id)
	l.Aggregate = l.Aggregate.Sub(remaining)
	return true
}

func (l *PriceLevel) empty() bool {
	return l.ids.Len() == 0
}
