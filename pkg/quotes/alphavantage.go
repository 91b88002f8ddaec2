// Package quotes looks up real-market reference prices used to calibrate
// the simulated series. The provider is rate-limited, so responses are
// cached in memory; callers treat ErrUnavailable as "keep the simulated
// price" rather than a failure.
package quotes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

// ErrUnavailable means the provider had no usable quote (rate limit hit,
// unknown symbol, or malformed payload)
var ErrUnavailable = errors.New("real price unavailable")

const defaultBaseURL = "https://www.alphavantage.co/query"

type cachedPrice struct {
	price   float64
	fetched time.Time
}

// Client fetches quotes from the Alpha Vantage GLOBAL_QUOTE endpoint
type Client struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
	TTL        time.Duration

	mu    sync.Mutex
	cache map[string]cachedPrice
}

// NewClient creates a quote client with a 5 minute cache
func NewClient(apiKey string) *Client {
	return &Client{
		APIKey:     apiKey,
		BaseURL:    defaultBaseURL,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
		TTL:        5 * time.Minute,
		cache:      make(map[string]cachedPrice),
	}
}

// globalQuoteResponse mirrors the provider's wire format. A "Note" field
// appears instead of a quote once the daily rate limit is exhausted.
type globalQuoteResponse struct {
	Note        string            `json:"Note"`
	Information string            `json:"Information"`
	GlobalQuote map[string]string `json:"Global Quote"`
}

// LookupPrice returns the latest traded price for symbol, from cache when
// fresh. Returns ErrUnavailable when the provider cannot serve a quote.
func (c *Client) LookupPrice(ctx context.Context, symbol string) (float64, error) {
	symbol = strings.ToUpper(symbol)

	c.mu.Lock()
	if entry, ok := c.cache[symbol]; ok && time.Since(entry.fetched) < c.TTL {
		c.mu.Unlock()
		return entry.price, nil
	}
	c.mu.Unlock()

	price, err := c.fetch(ctx, symbol)
	if err != nil {
		return 0, err
	}

	c.mu.Lock()
	c.cache[symbol] = cachedPrice{price: price, fetched: time.Now()}
	c.mu.Unlock()

	return price, nil
}

func (c *Client) fetch(ctx context.Context, symbol string) (float64, error) {
	q := url.Values{}
	q.Set("function", "GLOBAL_QUOTE")
	q.Set("symbol", symbol)
	q.Set("apikey", c.APIKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"?"+q.Encode(), nil)
	if err != nil {
		return 0, err
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("%w: provider returned %s", ErrUnavailable, resp.Status)
	}

	var payload globalQuoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if payload.Note != "" || payload.Information != "" {
		// Daily request quota exhausted
		return 0, fmt.Errorf("%w: rate limited", ErrUnavailable)
	}

	priceStr, ok := payload.GlobalQuote["05. price"]
	if !ok || priceStr == "" {
		return 0, fmt.Errorf("%w: no quote for %s", ErrUnavailable, symbol)
	}

	price, err := strconv.ParseFloat(priceStr, 64)
	if err != nil || price <= 0 {
		return 0, fmt.Errorf("%w: bad price %q", ErrUnavailable, priceStr)
	}

	return price, nil
}
