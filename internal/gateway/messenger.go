// Package gateway talks to the messaging platform through an HTTP bridge.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/wakala/exchangedesk/internal/domain"
)

// ErrRecipientUnavailable is returned when the recipient blocked the account
// or no longer exists.
var ErrRecipientUnavailable = errors.New("recipient unavailable")

// RateLimitError asks the caller to back off for RetryAfter.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
}

// Messenger is the outbound side of the messaging platform.
type Messenger interface {
	SendText(ctx context.Context, chatID int64, text string) error
	SendTyping(ctx context.Context, chatID int64, d time.Duration) error
	// Forward re-sends the message behind ev to chatID.
	Forward(ctx context.Context, chatID int64, ev domain.InboundEvent) error
}

// Safe wraps a Messenger so that no send ever fails the caller. Errors are
// logged and dropped; rate limits are logged with the requested backoff and
// not retried.
type Safe struct {
	m      Messenger
	logger *slog.Logger
}

func NewSafe(m Messenger, logger *slog.Logger) *Safe {
	return &Safe{m: m, logger: logger.With("component", "gateway")}
}

func (s *Safe) SendText(ctx context.Context, chatID int64, text string) {
	s.report("send_text", chatID, s.m.SendText(ctx, chatID, text))
}

func (s *Safe) SendTyping(ctx context.Context, chatID int64, d time.Duration) {
	s.report("send_typing", chatID, s.m.SendTyping(ctx, chatID, d))
}

func (s *Safe) Forward(ctx context.Context, chatID int64, ev domain.InboundEvent) {
	s.report("forward", chatID, s.m.Forward(ctx, chatID, ev))
}

func (s *Safe) report(op string, chatID int64, err error) {
	if err == nil {
		return
	}
	var rl *RateLimitError
	switch {
	case errors.As(err, &rl):
		s.logger.Warn("rate limited, dropping message", "op", op, "chat_id", chatID, "retry_after", rl.RetryAfter)
	case errors.Is(err, ErrRecipientUnavailable):
		s.logger.Warn("recipient unavailable", "op", op, "chat_id", chatID)
	default:
		s.logger.Warn("send failed", "op", op, "chat_id", chatID, "error", err)
	}
}
