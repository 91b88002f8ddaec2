package api_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/gopaper/papersim/pkg/api"
	"github.com/gopaper/papersim/pkg/exchange"
	"github.com/gopaper/papersim/pkg/instrument"
	"github.com/gopaper/papersim/pkg/pricefeed"
)

func newTestServer(t *testing.T) *httptest.Server {
	reg := instrument.NewDefaultRegistry()
	sim := pricefeed.NewSimulatorSeeded(7)
	for _, inst := range reg.List() {
		sim.Track(inst.Symbol, inst.BasePrice, inst.Volatility)
	}

	engine := exchange.NewEngine(reg, exchange.NewLedger(), exchange.NewAccountant(), sim)
	engine.Delay = 0

	server := api.NewServer(engine, zap.NewNop().Sugar())
	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func postOrder(t *testing.T, ts *httptest.Server, body string) (*http.Response, api.SubmitOrderResponse) {
	resp, err := http.Post(ts.URL+"/api/v1/orders", "application/json", bytes.NewBufferString(body))
	if err != nil {
		t.Fatalf("post failed: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })

	var out api.SubmitOrderResponse
	if resp.StatusCode == http.StatusCreated {
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			t.Fatalf("decode failed: %v", err)
		}
	}
	return resp, out
}

func getJSON(t *testing.T, ts *httptest.Server, path string, out interface{}) *http.Response {
	resp, err := http.Get(ts.URL + path)
	if err != nil {
		t.Fatalf("get %s failed: %v", path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })

	if out != nil && resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s failed: %v", path, err)
		}
	}
	return resp
}

// TestGetInstruments returns the fixed set with live quotes
func TestGetInstruments(t *testing.T) {
	ts := newTestServer(t)

	var instruments []api.InstrumentInfo
	resp := getJSON(t, ts, "/api/v1/instruments", &instruments)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if len(instruments) != 3 {
		t.Fatalf("instruments = %d, want 3", len(instruments))
	}
	for _, inst := range instruments {
		if inst.Symbol == "" || inst.Exchange == "" || inst.InstrumentType != "EQUITY" {
			t.Errorf("incomplete instrument: %+v", inst)
		}
		if inst.LastTradedPrice <= 0 {
			t.Errorf("%s: lastTradedPrice = %v", inst.Symbol, inst.LastTradedPrice)
		}
	}
}

// TestOrderRoundTrip submits a MARKET BUY and reads back order, portfolio,
// trades and stats
func TestOrderRoundTrip(t *testing.T) {
	ts := newTestServer(t)

	resp, submitted := postOrder(t, ts, `{"symbol":"AAPL","quantity":10,"side":"BUY","style":"MARKET"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201", resp.StatusCode)
	}
	if submitted.Status != "EXECUTED" {
		t.Fatalf("status = %s, want EXECUTED", submitted.Status)
	}

	var order api.OrderInfo
	resp = getJSON(t, ts, "/api/v1/orders/"+submitted.OrderID, &order)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get order status = %d, want 200", resp.StatusCode)
	}
	if order.Status != "EXECUTED" || order.ExecutedPrice == nil || *order.ExecutedPrice <= 0 {
		t.Errorf("order = %+v, want executed with price", order)
	}
	if order.ExecutedAt == "" || order.CreatedAt == "" {
		t.Errorf("timestamps missing: %+v", order)
	}

	var portfolio []api.PortfolioEntry
	getJSON(t, ts, "/api/v1/portfolio", &portfolio)
	if len(portfolio) != 1 {
		t.Fatalf("portfolio = %d entries, want 1", len(portfolio))
	}
	entry := portfolio[0]
	if entry.Symbol != "AAPL" || entry.Quantity != 10 {
		t.Errorf("portfolio entry = %+v", entry)
	}
	if entry.AveragePrice != *order.ExecutedPrice {
		t.Errorf("averagePrice = %v, want executed price %v", entry.AveragePrice, *order.ExecutedPrice)
	}
	if entry.CurrentValue <= 0 {
		t.Errorf("currentValue = %v", entry.CurrentValue)
	}

	var trades []api.TradeInfo
	getJSON(t, ts, "/api/v1/trades", &trades)
	if len(trades) != 1 || trades[0].Side != "BUY" || trades[0].Pnl != 0 {
		t.Errorf("trades = %+v", trades)
	}

	var stats api.StatsInfo
	getJSON(t, ts, "/api/v1/stats", &stats)
	if stats.TotalRealizedPnl != 0 {
		t.Errorf("totalRealizedPnl = %v, want 0 before any sell", stats.TotalRealizedPnl)
	}
}

// TestSubmitOrderValidation maps schema failures onto 422
func TestSubmitOrderValidation(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"malformed json", `{"symbol":`, http.StatusUnprocessableEntity},
		{"bad side", `{"symbol":"AAPL","quantity":10,"side":"HOLD","style":"MARKET"}`, http.StatusUnprocessableEntity},
		{"bad style", `{"symbol":"AAPL","quantity":10,"side":"BUY","style":"STOP"}`, http.StatusUnprocessableEntity},
		{"zero quantity", `{"symbol":"AAPL","quantity":0,"side":"BUY","style":"MARKET"}`, http.StatusUnprocessableEntity},
		{"limit without price", `{"symbol":"AAPL","quantity":10,"side":"BUY","style":"LIMIT"}`, http.StatusUnprocessableEntity},
		{"unknown symbol", `{"symbol":"DOGE","quantity":10,"side":"BUY","style":"MARKET"}`, http.StatusBadRequest},
		{"insufficient shares", `{"symbol":"IBM","quantity":10,"side":"SELL","style":"MARKET"}`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, _ := postOrder(t, ts, tt.body)
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.want)
			}
		})
	}
}

// TestInsufficientSellCancelsOrder verifies the domain 400 also leaves the
// order visible as CANCELLED
func TestInsufficientSellCancelsOrder(t *testing.T) {
	ts := newTestServer(t)

	resp, _ := postOrder(t, ts, `{"symbol":"TSLA","quantity":5,"side":"SELL","style":"MARKET"}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}

	var trades []api.TradeInfo
	getJSON(t, ts, "/api/v1/trades", &trades)
	if len(trades) != 0 {
		t.Errorf("trades = %d, want 0", len(trades))
	}
}

// TestCancelOrder covers resting-limit cancel, double cancel and not-found
func TestCancelOrder(t *testing.T) {
	ts := newTestServer(t)

	// A buy limit far below market rests PLACED
	resp, submitted := postOrder(t, ts, `{"symbol":"AAPL","quantity":5,"side":"BUY","style":"LIMIT","price":1.0}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201", resp.StatusCode)
	}
	if submitted.Status != "PLACED" {
		t.Fatalf("status = %s, want PLACED", submitted.Status)
	}

	del, err := http.NewRequest(http.MethodDelete, ts.URL+"/api/v1/orders/"+submitted.OrderID, nil)
	if err != nil {
		t.Fatal(err)
	}
	resp2, err := http.DefaultClient.Do(del)
	if err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	defer resp2.Body.Close()
	if resp2.StatusCode != http.StatusOK {
		t.Fatalf("cancel status = %d, want 200", resp2.StatusCode)
	}
	var cancelled api.SubmitOrderResponse
	json.NewDecoder(resp2.Body).Decode(&cancelled)
	if cancelled.Status != "CANCELLED" {
		t.Errorf("status = %s, want CANCELLED", cancelled.Status)
	}

	// Second cancel conflicts
	resp3, err := http.DefaultClient.Do(del.Clone(del.Context()))
	if err != nil {
		t.Fatalf("second delete failed: %v", err)
	}
	defer resp3.Body.Close()
	if resp3.StatusCode != http.StatusConflict {
		t.Errorf("double cancel status = %d, want 409", resp3.StatusCode)
	}

	// Unknown order id
	del404, _ := http.NewRequest(http.MethodDelete, ts.URL+"/api/v1/orders/nope", nil)
	resp4, err := http.DefaultClient.Do(del404)
	if err != nil {
		t.Fatalf("unknown-order delete failed: %v", err)
	}
	defer resp4.Body.Close()
	if resp4.StatusCode != http.StatusNotFound {
		t.Errorf("unknown cancel status = %d, want 404", resp4.StatusCode)
	}
}

// TestGetOrderNotFound returns 404 for unknown ids
func TestGetOrderNotFound(t *testing.T) {
	ts := newTestServer(t)

	resp := getJSON(t, ts, "/api/v1/orders/does-not-exist", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

// TestHealth returns ok
func TestHealth(t *testing.T) {
	ts := newTestServer(t)

	var out map[string]string
	resp := getJSON(t, ts, "/health", &out)
	if resp.StatusCode != http.StatusOK || out["status"] != "ok" {
		t.Errorf("health = %d %v", resp.StatusCode, out)
	}
}

// TestSellUpdatesStats runs buy+sell through the HTTP surface and checks
// realized P&L consistency between trades and stats
func TestSellUpdatesStats(t *testing.T) {
	ts := newTestServer(t)

	postOrder(t, ts, `{"symbol":"IBM","quantity":10,"side":"BUY","style":"MARKET"}`)
	resp, _ := postOrder(t, ts, `{"symbol":"IBM","quantity":4,"side":"SELL","style":"MARKET"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("sell status = %d, want 201", resp.StatusCode)
	}

	var trades []api.TradeInfo
	getJSON(t, ts, "/api/v1/trades", &trades)
	if len(trades) != 2 {
		t.Fatalf("trades = %d, want 2", len(trades))
	}

	var stats api.StatsInfo
	getJSON(t, ts, "/api/v1/stats", &stats)
	if diff := stats.TotalRealizedPnl - trades[0].Pnl; diff > 0.011 || diff < -0.011 {
		t.Errorf("stats pnl %v != sell trade pnl %v", stats.TotalRealizedPnl, trades[0].Pnl)
	}

	var portfolio []api.PortfolioEntry
	getJSON(t, ts, "/api/v1/portfolio", &portfolio)
	for _, entry := range portfolio {
		if entry.Symbol == "IBM" && entry.Quantity != 6 {
			t.Errorf("IBM quantity = %d, want 6", entry.Quantity)
		}
	}
}
