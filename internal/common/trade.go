package common

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Trade is an immutable record produced when two orders match. Price is
// always the resting (passive) order's price; quantity is min(aggressor
// remaining, resting remaining) at match time.
type Trade struct {
	ID            uuid.UUID
	Symbol        string
	BuyOrderID    uuid.UUID
	SellOrderID   uuid.UUID
	Price         decimal.Decimal
	Quantity      decimal.Decimal
	Timestamp     int64
	BuyerAccount  string
	SellerAccount string
}
