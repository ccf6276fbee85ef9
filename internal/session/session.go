// Package session holds the in-memory conversation state of every
// correspondent.
//
// A Session is owned by its correspondent's dispatch mailbox: only tasks
// running in that mailbox read or write its fields. The Store guards the
// map itself and the last-activity timestamps, which the janitor reads from
// its own goroutine.
package session

import (
	"sync"
	"time"

	"github.com/wakala/exchangedesk/internal/domain"
)

// Token identifies one arming of the deferred amount prompt. The zero value
// means no prompt is outstanding.
type Token uint64

type Session struct {
	CorrespondentID int64
	Greeted         bool
	Locale          domain.Locale

	Address   string
	Mode      domain.AmountMode
	AmountUSD float64
	AmountAMD float64

	AskedAddress bool
	AskedAmount  bool

	PendingConfirmation bool
	PendingAmount       float64

	ActiveOrderID     int64
	LastClosedOrderID int64

	PromptToken Token

	lastActivity time.Time
}

// CommitUSD fixes the amount as USD. Any AMD amount is cleared.
func (s *Session) CommitUSD(v float64) {
	s.Mode = domain.ModeUSD
	s.AmountUSD = v
	s.AmountAMD = 0
}

// CommitAMD fixes the amount as an AMD net target. Any USD amount is cleared.
func (s *Session) CommitAMD(v float64) {
	s.Mode = domain.ModeAMD
	s.AmountAMD = v
	s.AmountUSD = 0
}

// AwaitConfirmation parks an ambiguous amount until the correspondent says
// which currency it is in.
func (s *Session) AwaitConfirmation(v float64) {
	s.PendingConfirmation = true
	s.PendingAmount = v
}

// Resolve commits the pending amount as USD when usd is true and as AMD
// otherwise, and leaves the confirmation state.
func (s *Session) Resolve(usd bool) {
	v := s.PendingAmount
	if usd {
		s.CommitUSD(v)
	} else {
		s.CommitAMD(v)
	}
	s.PendingConfirmation = false
	s.PendingAmount = 0
}

// ResetCollection clears everything gathered for the next order. Greeting,
// locale and the order pointers survive.
func (s *Session) ResetCollection() {
	s.Address = ""
	s.Mode = domain.ModeUnset
	s.AmountUSD = 0
	s.AmountAMD = 0
	s.AskedAddress = false
	s.AskedAmount = false
	s.PendingConfirmation = false
	s.PendingAmount = 0
	s.PromptToken = 0
}

// CloseOrder detaches the active order after its receipt was accepted. The
// id is kept so a receipt re-sent later is still matched to it.
func (s *Session) CloseOrder() {
	if s.ActiveOrderID != 0 {
		s.LastClosedOrderID = s.ActiveOrderID
	}
	s.ActiveOrderID = 0
}

// ReceiptOrderID is the order a new attachment should be matched to, zero
// when the session knows none.
func (s *Session) ReceiptOrderID() int64 {
	if s.ActiveOrderID != 0 {
		return s.ActiveOrderID
	}
	return s.LastClosedOrderID
}

type Store struct {
	now func() time.Time

	mu       sync.Mutex
	sessions map[int64]*Session
	token    Token
}

// NewStore returns an empty store reading time from now.
func NewStore(now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{now: now, sessions: make(map[int64]*Session)}
}

// Get returns the correspondent's session, creating it on first use, and
// marks it active.
func (s *Store) Get(id int64) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		sess = &Session{CorrespondentID: id, Locale: domain.LocaleAM}
		s.sessions[id] = sess
	}
	sess.lastActivity = s.now()
	return sess
}

// Lookup returns the session without creating or touching it.
func (s *Store) Lookup(id int64) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	return sess, ok
}

// Stale lists sessions idle for longer than ttl.
func (s *Store) Stale(ttl time.Duration) []int64 {
	cutoff := s.now().Add(-ttl)
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []int64
	for id, sess := range s.sessions {
		if sess.lastActivity.Before(cutoff) {
			ids = append(ids, id)
		}
	}
	return ids
}

// EvictIfStale drops the session if it is still idle for longer than ttl.
// It reports whether the session was removed.
func (s *Store) EvictIfStale(id int64, ttl time.Duration) bool {
	cutoff := s.now().Add(-ttl)
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok || !sess.lastActivity.Before(cutoff) {
		return false
	}
	delete(s.sessions, id)
	return true
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// NextToken returns a token never handed out before.
func (s *Store) NextToken() Token {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token++
	return s.token
}
