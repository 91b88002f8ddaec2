package api

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/gopaper/papersim/pkg/exchange"
)

// Server exposes the trading engine over REST and WebSocket
type Server struct {
	engine *exchange.Engine
	router *mux.Router
	hub    *Hub
	log    *zap.SugaredLogger
}

// NewServer creates a new API server around the engine
func NewServer(engine *exchange.Engine, log *zap.SugaredLogger) *Server {
	s := &Server{
		engine: engine,
		router: mux.NewRouter(),
		hub:    NewHub(log),
		log:    log,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	// API v1 routes
	api := s.router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/instruments", s.handleGetInstruments).Methods("GET")
	api.HandleFunc("/orders", s.handleSubmitOrder).Methods("POST")
	api.HandleFunc("/orders/{id}", s.handleGetOrder).Methods("GET")
	api.HandleFunc("/orders/{id}", s.handleCancelOrder).Methods("DELETE")
	api.HandleFunc("/portfolio", s.handleGetPortfolio).Methods("GET")
	api.HandleFunc("/trades", s.handleGetTrades).Methods("GET")
	api.HandleFunc("/stats", s.handleGetStats).Methods("GET")

	// WebSocket endpoint
	s.router.HandleFunc("/ws", s.handleWebSocket)

	// Health check
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Handler returns the fully wrapped HTTP handler (CORS + panic recovery)
func (s *Server) Handler() http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: false,
	})
	return c.Handler(s.recoverPanics(s.router))
}

// Start starts the WebSocket hub and the HTTP server
func (s *Server) Start(addr string) error {
	go s.hub.Run()

	s.log.Infow("api_server_starting", "addr", addr)
	return http.ListenAndServe(addr, s.Handler())
}

// RunHub runs the WebSocket hub loop; used when the caller owns the
// http.Server instead of calling Start
func (s *Server) RunHub() {
	s.hub.Run()
}

// recoverPanics converts unhandled faults into an opaque 500 without
// exposing internal state
func (s *Server) recoverPanics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.log.Errorw("handler_panic", "path", r.URL.Path, "panic", rec, "stack", string(debug.Stack()))
				respondError(w, http.StatusInternalServerError, "Internal server error", "")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// ==============================
// REST Handlers
// ==============================

func (s *Server) handleGetInstruments(w http.ResponseWriter, r *http.Request) {
	instruments := s.engine.Instruments()

	response := make([]InstrumentInfo, 0, len(instruments))
	for _, inst := range instruments {
		quote, err := s.engine.Snapshot(inst.Symbol)
		if err != nil {
			s.log.Warnw("snapshot_failed", "symbol", inst.Symbol, "err", err)
			continue
		}
		response = append(response, InstrumentInfo{
			Symbol:          inst.Symbol,
			Name:            inst.Name,
			Exchange:        inst.Exchange,
			InstrumentType:  inst.Type,
			LastTradedPrice: quote.Price,
			Change:          quote.Change,
			ChangePercent:   quote.ChangePercent,
			Volume:          quote.Volume,
			High:            quote.High,
			Low:             quote.Low,
			Bid:             quote.Bid,
			Ask:             quote.Ask,
			PriceHistory:    quote.History,
		})
	}

	respondJSON(w, http.StatusOK, response)
}

func (s *Server) handleSubmitOrder(w http.ResponseWriter, r *http.Request) {
	var req OrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusUnprocessableEntity, "invalid request body", err.Error())
		return
	}

	side, err := exchange.ParseSide(req.Side)
	if err != nil {
		s.respondDomainError(w, err)
		return
	}
	style, err := exchange.ParseStyle(req.Style)
	if err != nil {
		s.respondDomainError(w, err)
		return
	}

	var limitPrice float64
	if req.Price != nil {
		limitPrice = *req.Price
	}

	result, err := s.engine.SubmitOrder(r.Context(), exchange.OrderRequest{
		Symbol:     req.Symbol,
		Quantity:   req.Quantity,
		Side:       side,
		Style:      style,
		LimitPrice: limitPrice,
	})
	if err != nil {
		s.respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, SubmitOrderResponse{
		OrderID: result.OrderID,
		Status:  result.Status.String(),
		Message: result.Message,
	})
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	order, err := s.engine.GetOrder(id)
	if err != nil {
		s.respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, orderInfo(order))
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	order, err := s.engine.CancelOrder(id)
	if err != nil {
		s.respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, SubmitOrderResponse{
		OrderID: order.ID,
		Status:  order.Status.String(),
		Message: "Order cancelled successfully",
	})
}

func (s *Server) handleGetPortfolio(w http.ResponseWriter, r *http.Request) {
	positions := s.engine.Positions()

	response := make([]PortfolioEntry, 0, len(positions))
	for _, pos := range positions {
		quote, err := s.engine.Snapshot(pos.Symbol)
		if err != nil {
			s.log.Warnw("snapshot_failed", "symbol", pos.Symbol, "err", err)
			continue
		}
		val := pos.Valuation(quote.Price)
		response = append(response, PortfolioEntry{
			Symbol:        pos.Symbol,
			Quantity:      pos.Quantity,
			AveragePrice:  round2(pos.AverageCost),
			CurrentPrice:  quote.Price,
			CurrentValue:  round2(val.CurrentValue),
			UnrealizedPnl: round2(val.UnrealizedPnl),
			Change:        quote.Change,
			ChangePercent: quote.ChangePercent,
		})
	}

	respondJSON(w, http.StatusOK, response)
}

func (s *Server) handleGetTrades(w http.ResponseWriter, r *http.Request) {
	trades := s.engine.Trades()

	response := make([]TradeInfo, len(trades))
	for i, t := range trades {
		response[i] = TradeInfo{
			ID:         t.ID,
			Symbol:     t.Symbol,
			Quantity:   t.Quantity,
			Price:      round2(t.Price),
			Side:       t.Side.String(),
			Pnl:        round2(t.RealizedPnl),
			ExecutedAt: t.ExecutedAt.Format(time.RFC3339),
		}
	}

	respondJSON(w, http.StatusOK, response)
}

func (s *Server) handleGetStats(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, StatsInfo{
		TotalRealizedPnl: round2(s.engine.TotalRealizedPnl()),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ==============================
// Broadcast Methods
// ==============================

// BroadcastQuote pushes a quote update to "quotes:<symbol>" subscribers
func (s *Server) BroadcastQuote(symbol string, price, change, changePct float64, volume int64, bid, ask float64) {
	s.hub.BroadcastToChannel("quotes:"+symbol, QuoteUpdate{
		Type:          "quote",
		Symbol:        symbol,
		Price:         price,
		Change:        change,
		ChangePercent: changePct,
		Volume:        volume,
		Bid:           bid,
		Ask:           ask,
		Timestamp:     time.Now().UnixMilli(),
	})
}

// BroadcastTrade pushes an execution to "trades" subscribers
func (s *Server) BroadcastTrade(trade exchange.Trade) {
	s.hub.BroadcastToChannel("trades", TradeUpdate{
		Type:      "trade",
		Symbol:    trade.Symbol,
		Price:     round2(trade.Price),
		Quantity:  trade.Quantity,
		Side:      trade.Side.String(),
		Pnl:       round2(trade.RealizedPnl),
		Timestamp: trade.ExecutedAt.UnixMilli(),
	})
}

// ==============================
// Helper Functions
// ==============================

func orderInfo(o exchange.Order) OrderInfo {
	info := OrderInfo{
		OrderID:   o.ID,
		Symbol:    o.Symbol,
		Quantity:  o.Quantity,
		Side:      o.Side.String(),
		Style:     o.Style.String(),
		Status:    o.Status.String(),
		CreatedAt: o.CreatedAt.Format(time.RFC3339),
	}
	if o.Style == exchange.Limit {
		price := o.LimitPrice
		info.Price = &price
	}
	if o.Status == exchange.StatusExecuted {
		executed := round2(o.ExecutedPrice)
		info.ExecutedPrice = &executed
		info.ExecutedAt = o.ExecutedAt.Format(time.RFC3339)
	}
	return info
}

// respondDomainError maps the domain error taxonomy onto HTTP status codes:
// malformed requests are client schema errors (422), domain rejections are 400,
// missing orders 404 and bad lifecycle transitions 409.
func (s *Server) respondDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, exchange.ErrValidation):
		respondError(w, http.StatusUnprocessableEntity, "validation failed", err.Error())
	case errors.Is(err, exchange.ErrUnknownSymbol):
		respondError(w, http.StatusBadRequest, "unknown symbol", err.Error())
	case errors.Is(err, exchange.ErrInsufficientPosition):
		respondError(w, http.StatusBadRequest, "insufficient shares", err.Error())
	case errors.Is(err, exchange.ErrNotFound):
		respondError(w, http.StatusNotFound, "order not found", err.Error())
	case errors.Is(err, exchange.ErrInvalidState):
		respondError(w, http.StatusConflict, "order cannot be modified", err.Error())
	default:
		s.log.Errorw("internal_error", "err", err)
		respondError(w, http.StatusInternalServerError, "Internal server error", "")
	}
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, error string, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   error,
		Message: message,
	})
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
