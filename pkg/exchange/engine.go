package exchange

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/gopaper/papersim/pkg/instrument"
	"github.com/gopaper/papersim/pkg/pricefeed"
	"github.com/gopaper/papersim/pkg/util"
)

// PriceSource is the market the engine executes against
type PriceSource interface {
	// Sample advances the symbol's price one step and returns the quote
	Sample(symbol string) (pricefeed.Quote, error)
	// Snapshot returns the current quote without stepping the series
	Snapshot(symbol string) (pricefeed.Quote, error)
}

// OrderRequest is a validated order submission
type OrderRequest struct {
	Symbol     string
	Quantity   int64
	Side       Side
	Style      Style
	LimitPrice float64
}

// OrderResult is returned to the caller after submission
type OrderResult struct {
	OrderID string
	Status  Status
	Message string
}

// Engine orchestrates order execution: it consults the price source, drives
// the ledger through its state transitions and feeds executed trades into
// the portfolio accountant.
type Engine struct {
	// Delay simulates broker processing latency between PLACED and EXECUTED
	Delay  time.Duration
	Clock  util.Clock
	Logger *zap.SugaredLogger

	// OnTrade, if set, is invoked after every successful execution
	OnTrade func(Trade)

	instruments *instrument.Registry
	ledger      *Ledger
	accountant  *Accountant
	prices      PriceSource
}

// NewEngine wires the execution coordinator to its collaborators
func NewEngine(reg *instrument.Registry, ledger *Ledger, accountant *Accountant, prices PriceSource) *Engine {
	return &Engine{
		Delay:       100 * time.Millisecond,
		Clock:       util.RealClock{},
		Logger:      zap.NewNop().Sugar(),
		instruments: reg,
		ledger:      ledger,
		accountant:  accountant,
		prices:      prices,
	}
}

// SubmitOrder runs one order through its lifecycle.
//
// MARKET orders execute at the sampled price after the simulated processing
// delay. LIMIT orders execute at the limit price when the quote satisfies
// the limit condition, otherwise they rest PLACED indefinitely (there is no
// background re-evaluation loop; a resting order only leaves PLACED via
// cancellation).
//
// A SELL that exceeds the held position cancels the order and returns
// ErrInsufficientPosition; no trade is recorded.
func (e *Engine) SubmitOrder(ctx context.Context, req OrderRequest) (OrderResult, error) {
	if !e.instruments.Has(req.Symbol) {
		return OrderResult{}, fmt.Errorf("%w: %s", ErrUnknownSymbol, req.Symbol)
	}

	order, err := e.ledger.Create(req.Symbol, req.Quantity, req.Side, req.Style, req.LimitPrice)
	if err != nil {
		return OrderResult{}, err
	}

	e.Logger.Infow("order_created",
		"order_id", order.ID,
		"symbol", req.Symbol,
		"side", req.Side.String(),
		"style", req.Style.String(),
		"quantity", req.Quantity)

	quote, err := e.prices.Sample(req.Symbol)
	if err != nil {
		return OrderResult{}, fmt.Errorf("%w: %s", ErrUnknownSymbol, req.Symbol)
	}

	if err := e.ledger.Place(order.ID); err != nil {
		return OrderResult{}, err
	}

	switch req.Style {
	case Market:
		if err := e.wait(ctx); err != nil {
			return OrderResult{}, err
		}
		return e.settle(order.ID, req, quote.Price)

	default: // Limit
		if !limitSatisfied(req.Side, quote.Price, req.LimitPrice) {
			e.Logger.Infow("limit_order_resting",
				"order_id", order.ID,
				"quote", quote.Price,
				"limit", req.LimitPrice)
			return OrderResult{
				OrderID: order.ID,
				Status:  StatusPlaced,
				Message: "Order placed, awaiting limit price",
			}, nil
		}
		// Fills at the limit price, not the market quote; the difference
		// favors the order holder.
		return e.settle(order.ID, req, req.LimitPrice)
	}
}

// settle executes the order at price and applies it to the portfolio,
// atomically with respect to concurrent cancels and executions.
func (e *Engine) settle(orderID string, req OrderRequest, price float64) (OrderResult, error) {
	var trade Trade
	err := e.ledger.Execute(orderID, price, func() error {
		t, applyErr := e.accountant.ApplyExecution(orderID, req.Symbol, req.Side, req.Quantity, price)
		if applyErr != nil {
			return applyErr
		}
		trade = t
		return nil
	})
	if err != nil {
		order, getErr := e.ledger.Get(orderID)
		if getErr != nil {
			return OrderResult{}, err
		}
		e.Logger.Warnw("order_not_executed", "order_id", orderID, "status", order.Status.String(), "err", err)
		return OrderResult{
			OrderID: orderID,
			Status:  order.Status,
			Message: "Order cancelled",
		}, err
	}

	e.Logger.Infow("order_executed",
		"order_id", orderID,
		"symbol", req.Symbol,
		"price", price,
		"quantity", req.Quantity)

	if e.OnTrade != nil {
		e.OnTrade(trade)
	}

	return OrderResult{
		OrderID: orderID,
		Status:  StatusExecuted,
		Message: "Order executed successfully",
	}, nil
}

func (e *Engine) wait(ctx context.Context) error {
	if e.Delay <= 0 {
		return nil
	}
	select {
	case <-e.Clock.After(e.Delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// limitSatisfied reports whether the quoted price crosses the limit:
// a BUY fills when the market is at or below the limit, a SELL when it is
// at or above.
func limitSatisfied(side Side, quoted, limit float64) bool {
	if side == Buy {
		return quoted <= limit
	}
	return quoted >= limit
}

// CancelOrder cancels a non-terminal order and returns the updated record
func (e *Engine) CancelOrder(id string) (Order, error) {
	order, err := e.ledger.Cancel(id)
	if err != nil {
		return Order{}, err
	}
	e.Logger.Infow("order_cancelled", "order_id", id)
	return order, nil
}

// GetOrder returns the order record by id
func (e *Engine) GetOrder(id string) (Order, error) {
	return e.ledger.Get(id)
}

// Instruments returns the supported instrument set
func (e *Engine) Instruments() []instrument.Instrument {
	return e.instruments.List()
}

// Snapshot returns the current quote for a symbol without stepping the series
func (e *Engine) Snapshot(symbol string) (pricefeed.Quote, error) {
	return e.prices.Snapshot(symbol)
}

// Position returns the open position for a symbol, if any
func (e *Engine) Position(symbol string) (Position, bool) {
	return e.accountant.Position(symbol)
}

// Positions returns all open positions
func (e *Engine) Positions() []Position {
	return e.accountant.Positions()
}

// Trades returns the trade history, newest first
func (e *Engine) Trades() []Trade {
	return e.accountant.Trades()
}

// TotalRealizedPnl returns cumulative realized profit and loss
func (e *Engine) TotalRealizedPnl() float64 {
	return e.accountant.TotalRealizedPnl()
}
