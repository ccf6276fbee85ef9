// Package rates looks up the DASH reference price used in settlement
// confirmations.
package rates

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultURL     = "https://api.binance.com/api/v3/ticker/price?symbol=DASHUSDT"
	DefaultTimeout = 5 * time.Second
)

// Client fetches the DASH/USD ticker.
type Client struct {
	url        string
	httpClient *http.Client
}

func NewClient(url string, timeout time.Duration) *Client {
	if url == "" {
		url = DefaultURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{url: url, httpClient: &http.Client{Timeout: timeout}}
}

type tickerResponse struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
}

// DashUSD returns the current price of one DASH in USD.
func (c *Client) DashUSD(ctx context.Context) (float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("ticker request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return 0, fmt.Errorf("ticker returned status %d", resp.StatusCode)
	}

	var t tickerResponse
	if err := json.NewDecoder(resp.Body).Decode(&t); err != nil {
		return 0, fmt.Errorf("decode ticker: %w", err)
	}
	p, err := strconv.ParseFloat(strings.TrimSpace(t.Price), 64)
	if err != nil {
		return 0, fmt.Errorf("parse price %q: %w", t.Price, err)
	}
	if p <= 0 {
		return 0, fmt.Errorf("non-positive price %v", p)
	}
	return p, nil
}

// Source is anything that can quote DASH in USD.
type Source interface {
	DashUSD(ctx context.Context) (float64, error)
}

// Resolver never fails: when the source errors it returns the stored
// fallback price.
type Resolver struct {
	src    Source
	logger *slog.Logger
}

func NewResolver(src Source, logger *slog.Logger) *Resolver {
	return &Resolver{src: src, logger: logger.With("component", "rates")}
}

// DashUSD returns the live price, or fallback when the lookup fails.
func (r *Resolver) DashUSD(ctx context.Context, fallback float64) float64 {
	p, err := r.src.DashUSD(ctx)
	if err == nil && p > 0 {
		return p
	}
	r.logger.Warn("reference rate lookup failed, using stored rate", "error", err, "fallback", fallback)
	return fallback
}
