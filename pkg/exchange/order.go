package exchange

import (
	"fmt"
	"strings"
	"time"
)

// Side represents the direction of an order
type Side int8

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	switch s {
	case Buy:
		return "BUY"
	case Sell:
		return "SELL"
	default:
		return "unknown"
	}
}

// ParseSide rejects anything other than BUY or SELL at the validation boundary
func ParseSide(s string) (Side, error) {
	switch strings.ToUpper(s) {
	case "BUY":
		return Buy, nil
	case "SELL":
		return Sell, nil
	default:
		return 0, fmt.Errorf("%w: side must be BUY or SELL, got %q", ErrValidation, s)
	}
}

// Style represents how an order executes against the market
type Style int8

const (
	Market Style = iota
	Limit
)

func (s Style) String() string {
	switch s {
	case Market:
		return "MARKET"
	case Limit:
		return "LIMIT"
	default:
		return "unknown"
	}
}

// ParseStyle rejects anything other than MARKET or LIMIT at the validation boundary
func ParseStyle(s string) (Style, error) {
	switch strings.ToUpper(s) {
	case "MARKET":
		return Market, nil
	case "LIMIT":
		return Limit, nil
	default:
		return 0, fmt.Errorf("%w: style must be MARKET or LIMIT, got %q", ErrValidation, s)
	}
}

// Status represents the lifecycle state of an order.
// Transitions are monotonic: New -> Placed -> {Executed | Cancelled},
// with Cancelled also reachable directly from New.
// Executed and Cancelled are terminal.
type Status int8

const (
	StatusNew Status = iota
	StatusPlaced
	StatusExecuted
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusNew:
		return "NEW"
	case StatusPlaced:
		return "PLACED"
	case StatusExecuted:
		return "EXECUTED"
	case StatusCancelled:
		return "CANCELLED"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition is allowed
func (s Status) Terminal() bool {
	return s == StatusExecuted || s == StatusCancelled
}

// Order is owned by the Ledger for the duration of its lifecycle.
// Quantity, side and style are immutable after creation.
type Order struct {
	ID         string
	Symbol     string
	Quantity   int64
	Side       Side
	Style      Style
	LimitPrice float64 // set iff Style == Limit
	Status     Status
	// ExecutedPrice and ExecutedAt are set iff Status == StatusExecuted
	ExecutedPrice float64
	CreatedAt     time.Time
	ExecutedAt    time.Time
}

// Trade is the immutable record of a completed execution
type Trade struct {
	ID          string // originating order id
	Symbol      string
	Quantity    int64
	Price       float64
	Side        Side
	RealizedPnl float64 // 0 for BUY trades
	ExecutedAt  time.Time
}
