// Package sdk is a thin Go client for the papersim REST API. It forwards
// calls and decodes responses; all domain logic lives server-side.
package sdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gopaper/papersim/pkg/api"
)

// APIError is a non-2xx response decoded from the server's error payload
type APIError struct {
	StatusCode int
	Reason     string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api error %d: %s (%s)", e.StatusCode, e.Reason, e.Message)
	}
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Reason)
}

// Client talks to a papersim server
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient creates a client for the given server base URL,
// e.g. "http://127.0.0.1:8080"
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// Instruments fetches the list of tradable instruments
func (c *Client) Instruments(ctx context.Context) ([]api.InstrumentInfo, error) {
	var out []api.InstrumentInfo
	err := c.do(ctx, http.MethodGet, "/api/v1/instruments", nil, &out)
	return out, err
}

// PlaceOrder submits a BUY or SELL order. Price is required for LIMIT orders.
func (c *Client) PlaceOrder(ctx context.Context, symbol string, quantity int64, side, style string, price *float64) (api.SubmitOrderResponse, error) {
	req := api.OrderRequest{
		Symbol:   symbol,
		Quantity: quantity,
		Side:     side,
		Style:    style,
		Price:    price,
	}
	var out api.SubmitOrderResponse
	err := c.do(ctx, http.MethodPost, "/api/v1/orders", req, &out)
	return out, err
}

// Order fetches the status of a specific order
func (c *Client) Order(ctx context.Context, orderID string) (api.OrderInfo, error) {
	var out api.OrderInfo
	err := c.do(ctx, http.MethodGet, "/api/v1/orders/"+orderID, nil, &out)
	return out, err
}

// CancelOrder cancels a pending order
func (c *Client) CancelOrder(ctx context.Context, orderID string) (api.SubmitOrderResponse, error) {
	var out api.SubmitOrderResponse
	err := c.do(ctx, http.MethodDelete, "/api/v1/orders/"+orderID, nil, &out)
	return out, err
}

// Portfolio fetches current holdings
func (c *Client) Portfolio(ctx context.Context) ([]api.PortfolioEntry, error) {
	var out []api.PortfolioEntry
	err := c.do(ctx, http.MethodGet, "/api/v1/portfolio", nil, &out)
	return out, err
}

// Trades fetches the executed trade history, newest first
func (c *Client) Trades(ctx context.Context) ([]api.TradeInfo, error) {
	var out []api.TradeInfo
	err := c.do(ctx, http.MethodGet, "/api/v1/trades", nil, &out)
	return out, err
}

// Stats fetches overall trading statistics
func (c *Client) Stats(ctx context.Context) (api.StatsInfo, error) {
	var out api.StatsInfo
	err := c.do(ctx, http.MethodGet, "/api/v1/stats", nil, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reqBody)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var apiErr api.ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err != nil {
			return &APIError{StatusCode: resp.StatusCode, Reason: resp.Status}
		}
		return &APIError{StatusCode: resp.StatusCode, Reason: apiErr.Error, Message: apiErr.Message}
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
