package exchange

import (
	"fmt"
	"sync"
	"time"
)

// Position tracks per-symbol holdings with average-cost-basis accounting.
// AverageCost is meaningful only while Quantity > 0 and resets to 0 exactly
// when the position returns to 0. Positions are created lazily on first BUY
// and never deleted.
type Position struct {
	Symbol      string
	Quantity    int64
	AverageCost float64
}

// Valuation is the mark-to-market view of a position at a given price
type Valuation struct {
	CurrentValue  float64
	UnrealizedPnl float64
}

// Accountant owns positions, the trade history and the realized-P&L total.
// One mutex serializes the whole mutation path: the check-then-act on SELL
// sufficiency must be atomic with respect to concurrent executions, and the
// workload is not latency-critical enough to justify per-symbol locking.
type Accountant struct {
	mu        sync.RWMutex
	positions map[string]*Position
	trades    []Trade // newest first
	totalPnl  float64
}

// NewAccountant creates an empty portfolio accountant
func NewAccountant() *Accountant {
	return &Accountant{positions: make(map[string]*Position)}
}

// ApplyExecution applies the effect of an executed trade to the portfolio
// and appends the trade record. SELLs exceeding the held quantity fail with
// ErrInsufficientPosition and mutate nothing.
func (a *Accountant) ApplyExecution(orderID, symbol string, side Side, quantity int64, price float64) (Trade, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	p, ok := a.positions[symbol]
	if !ok {
		p = &Position{Symbol: symbol}
		a.positions[symbol] = p
	}

	var pnl float64
	switch side {
	case Buy:
		if p.Quantity == 0 {
			p.AverageCost = price
		} else {
			totalCost := float64(p.Quantity)*p.AverageCost + float64(quantity)*price
			p.AverageCost = totalCost / float64(p.Quantity+quantity)
		}
		p.Quantity += quantity
	case Sell:
		if quantity > p.Quantity {
			return Trade{}, fmt.Errorf("%w: selling %d, holding %d %s", ErrInsufficientPosition, quantity, p.Quantity, symbol)
		}
		pnl = (price - p.AverageCost) * float64(quantity)
		a.totalPnl += pnl
		p.Quantity -= quantity
		if p.Quantity == 0 {
			p.AverageCost = 0
		}
	}

	trade := Trade{
		ID:          orderID,
		Symbol:      symbol,
		Quantity:    quantity,
		Price:       price,
		Side:        side,
		RealizedPnl: pnl,
		ExecutedAt:  time.Now(),
	}
	// Most-recent-first ordering
	a.trades = append([]Trade{trade}, a.trades...)

	return trade, nil
}

// Position returns a copy of the symbol's position, if any
func (a *Accountant) Position(symbol string) (Position, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	p, ok := a.positions[symbol]
	if !ok {
		return Position{}, false
	}
	return *p, true
}

// Positions returns all open positions (quantity > 0)
func (a *Accountant) Positions() []Position {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make([]Position, 0, len(a.positions))
	for _, p := range a.positions {
		if p.Quantity > 0 {
			out = append(out, *p)
		}
	}
	return out
}

// Trades returns the trade history, newest first
func (a *Accountant) Trades() []Trade {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make([]Trade, len(a.trades))
	copy(out, a.trades)
	return out
}

// TotalRealizedPnl returns the cumulative realized profit and loss
func (a *Accountant) TotalRealizedPnl() float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.totalPnl
}

// Valuation marks a position to the given current price
func (p Position) Valuation(currentPrice float64) Valuation {
	return Valuation{
		CurrentValue:  float64(p.Quantity) * currentPrice,
		UnrealizedPnl: (currentPrice - p.AverageCost) * float64(p.Quantity),
	}
}
