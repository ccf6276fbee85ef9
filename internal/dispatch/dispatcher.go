// Package dispatch serializes work per correspondent. Every correspondent
// gets a mailbox goroutine that runs its tasks one at a time, so session
// state is only ever touched by that goroutine; different correspondents
// proceed concurrently.
package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrClosed is returned by Submit after Close.
var ErrClosed = errors.New("dispatcher closed")

// Task is a unit of work run inside a correspondent's mailbox.
type Task func(ctx context.Context)

// Submitter hands a task to the owner of key.
type Submitter interface {
	Submit(key int64, t Task) error
}

const (
	DefaultMailboxSize = 64
	DefaultIdleTimeout = time.Minute
)

type Dispatcher struct {
	logger *slog.Logger
	size   int
	idle   time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	quit   chan struct{}
	wg     sync.WaitGroup

	mu     sync.Mutex
	boxes  map[int64]*mailbox
	closed bool
}

type mailbox struct {
	tasks   chan Task
	pending int
}

type Option func(*Dispatcher)

func WithMailboxSize(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.size = n
		}
	}
}

// WithIdleTimeout sets how long an empty mailbox lingers before its
// goroutine exits.
func WithIdleTimeout(t time.Duration) Option {
	return func(d *Dispatcher) {
		if t > 0 {
			d.idle = t
		}
	}
}

func New(logger *slog.Logger, opts ...Option) *Dispatcher {
	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		logger: logger.With("component", "dispatch"),
		size:   DefaultMailboxSize,
		idle:   DefaultIdleTimeout,
		ctx:    ctx,
		cancel: cancel,
		quit:   make(chan struct{}),
		boxes:  make(map[int64]*mailbox),
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Submit enqueues t on key's mailbox, starting the mailbox if needed. It
// blocks while the mailbox is full.
func (d *Dispatcher) Submit(key int64, t Task) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrClosed
	}
	b, ok := d.boxes[key]
	if !ok {
		b = &mailbox{tasks: make(chan Task, d.size)}
		d.boxes[key] = b
		d.wg.Add(1)
		go d.run(key, b)
	}
	b.pending++
	d.mu.Unlock()

	b.tasks <- t
	return nil
}

// Len returns the number of live mailboxes.
func (d *Dispatcher) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.boxes)
}

// Close stops accepting tasks and waits for queued ones to finish. When ctx
// expires first, the context handed to running tasks is cancelled.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.quit)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.cancel()
		return nil
	case <-ctx.Done():
		d.cancel()
		return ctx.Err()
	}
}

func (d *Dispatcher) run(key int64, b *mailbox) {
	defer d.wg.Done()
	idle := time.NewTimer(d.idle)
	defer idle.Stop()

	for {
		select {
		case t := <-b.tasks:
			d.exec(key, b, t)
			if !idle.Stop() {
				select {
				case <-idle.C:
				default:
				}
			}
			idle.Reset(d.idle)
		case <-idle.C:
			if d.retire(key, b) {
				return
			}
			idle.Reset(d.idle)
		case <-d.quit:
			if d.retire(key, b) {
				return
			}
			d.exec(key, b, <-b.tasks)
		}
	}
}

// retire removes the mailbox if nothing is queued or being submitted.
func (d *Dispatcher) retire(key int64, b *mailbox) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if b.pending > 0 {
		return false
	}
	delete(d.boxes, key)
	return true
}

func (d *Dispatcher) exec(key int64, b *mailbox, t Task) {
	defer func() {
		d.mu.Lock()
		b.pending--
		d.mu.Unlock()
	}()
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("task panicked", "key", key, "panic", r)
		}
	}()
	t(d.ctx)
}

// Inline runs every task immediately on the caller's goroutine.
type Inline struct {
	Ctx context.Context
}

func (i Inline) Submit(_ int64, t Task) error {
	ctx := i.Ctx
	if ctx == nil {
		ctx = context.Background()
	}
	t(ctx)
	return nil
}
