package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/wakala/exchangedesk/internal/domain"
)

// DefaultRetryAfter is used when a 429 response carries no usable
// Retry-After header.
const DefaultRetryAfter = time.Second

// BridgeClient implements Messenger over the bridge's JSON API.
type BridgeClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewBridgeClient returns a client sending at most rps requests per second.
// A non-positive rps disables the limit.
func NewBridgeClient(baseURL, token string, rps float64) *BridgeClient {
	limit := rate.Inf
	burst := 1
	if rps > 0 {
		limit = rate.Limit(rps)
		burst = int(rps)
		if burst < 1 {
			burst = 1
		}
	}
	return &BridgeClient{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		token:      strings.TrimSpace(token),
		httpClient: &http.Client{Timeout: 10 * time.Second},
		limiter:    rate.NewLimiter(limit, burst),
	}
}

type sendRequest struct {
	ChatID int64  `json:"chat_id"`
	Text   string `json:"text"`
}

type typingRequest struct {
	ChatID     int64 `json:"chat_id"`
	DurationMS int64 `json:"duration_ms"`
}

type forwardRequest struct {
	ChatID     int64 `json:"chat_id"`
	FromChatID int64 `json:"from_chat_id"`
	MessageID  int64 `json:"message_id"`
}

func (c *BridgeClient) SendText(ctx context.Context, chatID int64, text string) error {
	return c.post(ctx, "/send", sendRequest{ChatID: chatID, Text: text})
}

func (c *BridgeClient) SendTyping(ctx context.Context, chatID int64, d time.Duration) error {
	return c.post(ctx, "/typing", typingRequest{ChatID: chatID, DurationMS: d.Milliseconds()})
}

func (c *BridgeClient) Forward(ctx context.Context, chatID int64, ev domain.InboundEvent) error {
	return c.post(ctx, "/forward", forwardRequest{
		ChatID:     chatID,
		FromChatID: ev.ChatID,
		MessageID:  ev.MessageID,
	})
}

func (c *BridgeClient) post(ctx context.Context, path string, payload any) error {
	if c.baseURL == "" {
		return fmt.Errorf("bridge base url is empty")
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("bridge limiter: %w", err)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("bridge %s: %w", path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return &RateLimitError{RetryAfter: retryAfter(resp.Header.Get("Retry-After"))}
	case resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusGone:
		return fmt.Errorf("bridge %s: %w", path, ErrRecipientUnavailable)
	case resp.StatusCode >= 400:
		return fmt.Errorf("bridge %s returned status %d", path, resp.StatusCode)
	}
	return nil
}

func retryAfter(h string) time.Duration {
	if secs, err := strconv.Atoi(strings.TrimSpace(h)); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(h); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return DefaultRetryAfter
}
