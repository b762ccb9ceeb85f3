// Package risk implements the pre-trade admission check and per-account
// position/P&L bookkeeping.
package risk

import (
	"sync"

	"github.com/shopspring/decimal"

	"matchcore/internal/common"
)

// Limits bounds what an account may do; all fields must be positive.
type Limits struct {
	MaxOrderSize    decimal.Decimal
	MaxPositionSize decimal.Decimal
	MaxDailyLoss    decimal.Decimal
	MaxOrderValue   decimal.Decimal
}

// AccountState is the bookkeeping kept per account.
type AccountState struct {
	Position    decimal.Decimal // signed: positive long, negative short
	RealisedPnL decimal.Decimal // signed, day-scoped
	DailyLoss   decimal.Decimal // non-negative, reset at day boundary
}

// account bundles an AccountState with the cost-basis ledger and lock that
// make it safe to update from concurrent symbols.
type account struct {
	mu        sync.Mutex
	state     AccountState
	costBasis map[string]decimal.Decimal // symbol -> average cost of the open position
}

// CheckResult is the outcome of a pre-trade admission check.
type CheckResult struct {
	Passed bool
	Reason string
}

// Manager is the shared, per-account-locked risk bookkeeper.
type Manager struct {
	limits Limits

	mu       sync.RWMutex // guards the accounts map itself, not account contents
	accounts map[string]*account
}

// New constructs a Manager with the given limits.
func New(limits Limits) *Manager {
	return &Manager{
		limits:   limits,
		accounts: make(map[string]*account),
	}
}

func (m *Manager) getOrCreate(id string) *account {
	m.mu.RLock()
	a, ok := m.accounts[id]
	m.mu.RUnlock()
	if ok {
		return a
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok = m.accounts[id]; ok {
		return a
	}
	a = &account{costBasis: make(map[string]decimal.Decimal)}
	m.accounts[id] = a
	return a
}

// signedQuantity returns +qty for a buy and -qty for a sell.
func signedQuantity(side common.Side, qty decimal.Decimal) decimal.Decimal {
	if side == common.Sell {
		return qty.Neg()
	}
	return qty
}

// CheckOrder runs the ordered admission rules and reports the first one
// that fails. It does not mutate any state.
func (m *Manager) CheckOrder(order *common.Order) CheckResult {
	if order.Quantity.GreaterThan(m.limits.MaxOrderSize) {
		return CheckResult{Passed: false, Reason: "order quantity exceeds max_order_size"}
	}

	if order.Kind.HasLimitPrice() {
		orderValue := order.Quantity.Mul(order.Price)
		if orderValue.GreaterThan(m.limits.MaxOrderValue) {
			return CheckResult{Passed: false, Reason: "order value exceeds max_order_value"}
		}
	}

	position, dailyLoss := decimal.Zero, decimal.Zero
	m.mu.RLock()
	a, ok := m.accounts[order.Account]
	m.mu.RUnlock()
	if ok {
		a.mu.Lock()
		position, dailyLoss = a.state.Position, a.state.DailyLoss
		a.mu.Unlock()
	}
	hypothetical := position.Add(signedQuantity(order.Side, order.Quantity))

	if hypothetical.Abs().GreaterThan(m.limits.MaxPositionSize) {
		return CheckResult{Passed: false, Reason: "post-fill position exceeds max_position_size"}
	}

	if dailyLoss.GreaterThan(m.limits.MaxDailyLoss) {
		return CheckResult{Passed: false, Reason: "account has breached max_daily_loss"}
	}

	return CheckResult{Passed: true}
}

// OnTrade updates both sides of a trade: the buyer's position by +qty, the
// seller's by -qty, and realises P&L on whichever side's fill reduces an
// existing position, using average-cost accounting. It cannot fail.
func (m *Manager) OnTrade(trade *common.Trade) {
	m.applyFill(trade.BuyerAccount, trade.Symbol, common.Buy, trade.Quantity, trade.Price)
	m.applyFill(trade.SellerAccount, trade.Symbol, common.Sell, trade.Quantity, trade.Price)
}

func (m *Manager) applyFill(accountID, symbol string, side common.Side, qty, price decimal.Decimal) {
	a := m.getOrCreate(accountID)
	a.mu.Lock()
	defer a.mu.Unlock()

	signedQty := signedQuantity(side, qty)
	position := a.state.Position
	basis := a.costBasis[symbol]

	switch {
	case position.IsZero() || sameSign(position, signedQty):
		// Opening or adding to a position in the same direction: roll the
		// average cost basis forward, no P&L realised.
		newPosition := position.Add(signedQty)
		if position.IsZero() {
			a.costBasis[symbol] = price
		} else {
			weighted := position.Abs().Mul(basis).Add(qty.Mul(price))
			a.costBasis[symbol] = weighted.Div(newPosition.Abs())
		}
		a.state.Position = newPosition

	default:
		// Reducing (and possibly flipping) an existing position.
		closingQty := decimal.Min(position.Abs(), qty)
		var pnlPerUnit decimal.Decimal
		if position.IsPositive() {
			// Long position, closed by a sell fill: profit when price > basis.
			pnlPerUnit = price.Sub(basis)
		} else {
			// Short position, closed by a buy fill: profit when price < basis.
			pnlPerUnit = basis.Sub(price)
		}
		realised := pnlPerUnit.Mul(closingQty)
		a.state.RealisedPnL = a.state.RealisedPnL.Add(realised)
		if realised.IsNegative() {
			a.state.DailyLoss = a.state.DailyLoss.Add(realised.Abs())
		}

		remainder := qty.Sub(closingQty)
		newPosition := position.Add(signedQty)
		a.state.Position = newPosition
		if remainder.IsPositive() {
			// The fill overshot the existing position; the remainder opens
			// a fresh position in the opposite direction at the fill price.
			a.costBasis[symbol] = price
		}
	}
}

// sameSign reports whether position and signedQty point the same direction.
// A zero signedQty never reaches here because orders have positive quantity.
func sameSign(position, signedQty decimal.Decimal) bool {
	return (position.IsPositive() && signedQty.IsPositive()) || (position.IsNegative() && signedQty.IsNegative())
}

// ResetDay zeroes daily_loss and realised_pnl for every account, without
// touching positions. Called at the externally-driven daily boundary.
func (m *Manager) ResetDay() {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, a := range m.accounts {
		a.mu.Lock()
		a.state.DailyLoss = decimal.Zero
		a.state.RealisedPnL = decimal.Zero
		a.mu.Unlock()
	}
}

// Snapshot returns a copy of an account's current state, for callers (tests,
// the demo driver) that want to observe position/P&L without reaching into
// Manager internals. Returns the zero AccountState if the account has never
// been seen.
func (m *Manager) Snapshot(accountID string) AccountState {
	m.mu.RLock()
	a, ok := m.accounts[accountID]
	m.mu.RUnlock()
	if !ok {
		return AccountState{}
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}
