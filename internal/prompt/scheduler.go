// Package prompt arms the silent "how much?" follow-up that goes out a few
// seconds after a correspondent sent an address without an amount.
package prompt

import (
	"context"
	"log/slog"
	"math/rand"
	"time"

	"github.com/wakala/exchangedesk/internal/dispatch"
	"github.com/wakala/exchangedesk/internal/domain"
	"github.com/wakala/exchangedesk/internal/session"
)

const (
	DefaultMinDelay = 9 * time.Second
	DefaultMaxDelay = 11 * time.Second
)

// FireFunc sends the prompt. It runs in the correspondent's mailbox.
type FireFunc func(ctx context.Context, sess *session.Session)

type Scheduler struct {
	store    *session.Store
	submit   dispatch.Submitter
	minDelay time.Duration
	maxDelay time.Duration
	logger   *slog.Logger

	afterFunc func(time.Duration, func())
	jitter    func() float64
}

type Option func(*Scheduler)

// WithTimer replaces time.AfterFunc, for tests.
func WithTimer(after func(time.Duration, func())) Option {
	return func(s *Scheduler) { s.afterFunc = after }
}

// WithJitter replaces the uniform [0,1) source used to pick the delay.
func WithJitter(f func() float64) Option {
	return func(s *Scheduler) { s.jitter = f }
}

func New(store *session.Store, submit dispatch.Submitter, minDelay, maxDelay time.Duration, logger *slog.Logger, opts ...Option) *Scheduler {
	if minDelay <= 0 {
		minDelay = DefaultMinDelay
	}
	if maxDelay < minDelay {
		maxDelay = minDelay
	}
	s := &Scheduler{
		store:     store,
		submit:    submit,
		minDelay:  minDelay,
		maxDelay:  maxDelay,
		logger:    logger.With("component", "prompt"),
		afterFunc: func(d time.Duration, f func()) { time.AfterFunc(d, f) },
		jitter:    rand.Float64,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Arm records a fresh token on sess and starts the timer. A later Arm
// supersedes this one: the older timer finds a different token and does
// nothing. Arm must be called from the correspondent's mailbox.
func (s *Scheduler) Arm(sess *session.Session, fire FireFunc) session.Token {
	tok := s.store.NextToken()
	sess.PromptToken = tok
	id := sess.CorrespondentID

	s.afterFunc(s.delay(), func() {
		err := s.submit.Submit(id, func(ctx context.Context) {
			s.expire(ctx, id, tok, fire)
		})
		if err != nil {
			s.logger.Warn("amount prompt dropped", "correspondent_id", id, "error", err)
		}
	})
	return tok
}

// Pending reports whether a prompt armed on sess has not expired yet.
func Pending(sess *session.Session) bool {
	return sess.PromptToken != 0
}

func (s *Scheduler) expire(ctx context.Context, id int64, tok session.Token, fire FireFunc) {
	sess, ok := s.store.Lookup(id)
	if !ok || sess.PromptToken != tok {
		return
	}
	sess.PromptToken = 0
	if sess.Address == "" || sess.Mode != domain.ModeUnset || sess.AskedAmount {
		return
	}
	fire(ctx, sess)
	sess.AskedAmount = true
}

func (s *Scheduler) delay() time.Duration {
	span := s.maxDelay - s.minDelay
	return s.minDelay + time.Duration(s.jitter()*float64(span))
}
