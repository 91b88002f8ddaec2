package api

// API request/response types for REST endpoints and WebSocket messages

// ==============================
// REST Request Types
// ==============================

// OrderRequest is the payload for POST /api/v1/orders
type OrderRequest struct {
	Symbol   string   `json:"symbol"`
	Quantity int64    `json:"quantity"`
	Side     string   `json:"side"`  // "BUY" or "SELL"
	Style    string   `json:"style"` // "MARKET" or "LIMIT"
	Price    *float64 `json:"price,omitempty"` // required for LIMIT orders
}

// ==============================
// REST Response Types
// ==============================

// InstrumentInfo is one row of GET /api/v1/instruments: static metadata
// plus a live quote snapshot
type InstrumentInfo struct {
	Symbol          string    `json:"symbol"`
	Name            string    `json:"name"`
	Exchange        string    `json:"exchange"`        // "NASDAQ", "NYSE"
	InstrumentType  string    `json:"instrumentType"`  // "EQUITY"
	LastTradedPrice float64   `json:"lastTradedPrice"`
	Change          float64   `json:"change"`
	ChangePercent   float64   `json:"changePercent"`
	Volume          int64     `json:"volume"`
	High            float64   `json:"high"`
	Low             float64   `json:"low"`
	Bid             float64   `json:"bid"`
	Ask             float64   `json:"ask"`
	PriceHistory    []float64 `json:"priceHistory"`
}

// SubmitOrderResponse is the response from order submission
type SubmitOrderResponse struct {
	OrderID string `json:"orderId"`
	Status  string `json:"status"` // "PLACED", "EXECUTED", "CANCELLED"
	Message string `json:"message"`
}

// OrderInfo is the full order record
type OrderInfo struct {
	OrderID       string   `json:"orderId"`
	Symbol        string   `json:"symbol"`
	Quantity      int64    `json:"quantity"`
	Side          string   `json:"side"`
	Style         string   `json:"style"`
	Price         *float64 `json:"price,omitempty"`         // limit price, LIMIT orders only
	Status        string   `json:"status"`                  // "NEW", "PLACED", "EXECUTED", "CANCELLED"
	ExecutedPrice *float64 `json:"executedPrice,omitempty"` // set once EXECUTED
	CreatedAt     string   `json:"createdAt"`               // RFC 3339
	ExecutedAt    string   `json:"executedAt,omitempty"`    // RFC 3339, set once EXECUTED
}

// PortfolioEntry is one open position marked to the current price
type PortfolioEntry struct {
	Symbol        string  `json:"symbol"`
	Quantity      int64   `json:"quantity"`
	AveragePrice  float64 `json:"averagePrice"`
	CurrentPrice  float64 `json:"currentPrice"`
	CurrentValue  float64 `json:"currentValue"`
	UnrealizedPnl float64 `json:"unrealizedPnl"`
	Change        float64 `json:"change"`
	ChangePercent float64 `json:"changePercent"`
}

// TradeInfo is one executed trade, newest first in listings
type TradeInfo struct {
	ID         string  `json:"id"`
	Symbol     string  `json:"symbol"`
	Quantity   int64   `json:"qty"`
	Price      float64 `json:"price"`
	Side       string  `json:"side"`
	Pnl        float64 `json:"pnl"` // realized, 0 for BUY trades
	ExecutedAt string  `json:"executedAt"`
}

// StatsInfo is the process-wide accounting summary
type StatsInfo struct {
	TotalRealizedPnl float64 `json:"totalRealizedPnl"`
}

// ErrorResponse is returned for all errors
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// ==============================
// WebSocket Message Types
// ==============================

// WSSubscribeRequest is sent by clients to manage channel subscriptions,
// e.g. {"op":"subscribe","channels":["quotes:AAPL","trades"]}
type WSSubscribeRequest struct {
	Op       string   `json:"op"` // "subscribe" or "unsubscribe"
	Channels []string `json:"channels"`
}

// QuoteUpdate is broadcast on every price stream tick
type QuoteUpdate struct {
	Type          string  `json:"type"` // "quote"
	Symbol        string  `json:"symbol"`
	Price         float64 `json:"price"`
	Change        float64 `json:"change"`
	ChangePercent float64 `json:"changePercent"`
	Volume        int64   `json:"volume"`
	Bid           float64 `json:"bid"`
	Ask           float64 `json:"ask"`
	Timestamp     int64   `json:"timestamp"` // Unix milliseconds
}

// TradeUpdate is broadcast when an order executes
type TradeUpdate struct {
	Type      string  `json:"type"` // "trade"
	Symbol    string  `json:"symbol"`
	Price     float64 `json:"price"`
	Quantity  int64   `json:"qty"`
	Side      string  `json:"side"`
	Pnl       float64 `json:"pnl"`
	Timestamp int64   `json:"timestamp"` // Unix milliseconds
}
