package exchange

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Ledger owns the set of orders and their lifecycle state.
// All transitions happen under one mutex so a transition can never be
// observed half-applied and terminal orders can never regress.
type Ledger struct {
	mu     sync.RWMutex
	orders map[string]*Order
}

// NewLedger creates an empty order ledger
func NewLedger() *Ledger {
	return &Ledger{orders: make(map[string]*Order)}
}

// Create validates the order spec and records a new order in state NEW
func (l *Ledger) Create(symbol string, quantity int64, side Side, style Style, limitPrice float64) (Order, error) {
	if quantity <= 0 {
		return Order{}, fmt.Errorf("%w: quantity must be positive, got %d", ErrValidation, quantity)
	}
	if style == Limit && limitPrice <= 0 {
		return Order{}, fmt.Errorf("%w: limit orders require a positive limit price", ErrValidation)
	}

	o := &Order{
		ID:        uuid.NewString(),
		Symbol:    symbol,
		Quantity:  quantity,
		Side:      side,
		Style:     style,
		Status:    StatusNew,
		CreatedAt: time.Now(),
	}
	if style == Limit {
		o.LimitPrice = limitPrice
	}

	l.mu.Lock()
	l.orders[o.ID] = o
	l.mu.Unlock()

	return *o, nil
}

// Place transitions an order NEW -> PLACED
func (l *Ledger) Place(id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	o, ok := l.orders[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if o.Status != StatusNew {
		return fmt.Errorf("%w: cannot place order in state %s", ErrInvalidState, o.Status)
	}
	o.Status = StatusPlaced
	return nil
}

// MarkExecuted transitions an order PLACED -> EXECUTED and records the
// execution price and timestamp
func (l *Ledger) MarkExecuted(id string, price float64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	o, ok := l.orders[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return markExecutedLocked(o, price)
}

func markExecutedLocked(o *Order, price float64) error {
	if o.Status != StatusPlaced {
		return fmt.Errorf("%w: cannot execute order in state %s", ErrInvalidState, o.Status)
	}
	o.Status = StatusExecuted
	o.ExecutedPrice = price
	o.ExecutedAt = time.Now()
	return nil
}

// Execute atomically settles an order: it verifies the order is PLACED,
// runs apply (the portfolio mutation), and marks the order EXECUTED.
// If apply fails the order is transitioned to CANCELLED instead and the
// apply error is returned. Holding the ledger lock across apply is what
// makes EXECUTED be reached atomically with the ledger mutation: a
// concurrent cancel either wins entirely (Execute fails, nothing applied)
// or loses entirely.
func (l *Ledger) Execute(id string, price float64, apply func() error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	o, ok := l.orders[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if o.Status != StatusPlaced {
		return fmt.Errorf("%w: cannot execute order in state %s", ErrInvalidState, o.Status)
	}

	if err := apply(); err != nil {
		o.Status = StatusCancelled
		return err
	}
	return markExecutedLocked(o, price)
}

// Cancel transitions any non-terminal order to CANCELLED and returns the
// updated record. Cancelling a terminal order fails cleanly and mutates
// nothing.
func (l *Ledger) Cancel(id string) (Order, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	o, ok := l.orders[id]
	if !ok {
		return Order{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if o.Status.Terminal() {
		return Order{}, fmt.Errorf("%w: cannot cancel order in state %s", ErrInvalidState, o.Status)
	}
	o.Status = StatusCancelled
	return *o, nil
}

// Get returns a copy of the order so callers never observe torn writes
func (l *Ledger) Get(id string) (Order, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	o, ok := l.orders[id]
	if !ok {
		return Order{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return *o, nil
}
