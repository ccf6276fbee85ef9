package dispatch

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDispatcher(t *testing.T, opts ...Option) *Dispatcher {
	t.Helper()
	d := New(slog.New(slog.NewTextHandler(io.Discard, nil)), opts...)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		d.Close(ctx)
	})
	return d
}

func TestSubmitRunsInOrderPerKey(t *testing.T) {
	d := newTestDispatcher(t, WithMailboxSize(4))

	var mu sync.Mutex
	var got []int
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		i := i
		wg.Add(1)
		require.NoError(t, d.Submit(1, func(context.Context) {
			defer wg.Done()
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
		}))
	}
	wg.Wait()

	require.Len(t, got, 50)
	for i, v := range got {
		assert.Equal(t, i, v)
	}
}

func TestKeysRunConcurrently(t *testing.T) {
	d := newTestDispatcher(t)

	release := make(chan struct{})
	blocked := make(chan struct{})
	require.NoError(t, d.Submit(1, func(context.Context) {
		close(blocked)
		<-release
	}))
	<-blocked

	ran := make(chan struct{})
	require.NoError(t, d.Submit(2, func(context.Context) { close(ran) }))

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("key 2 was blocked by key 1")
	}
	close(release)
}

func TestPanicDoesNotKillMailbox(t *testing.T) {
	d := newTestDispatcher(t)

	require.NoError(t, d.Submit(1, func(context.Context) { panic("boom") }))
	done := make(chan struct{})
	require.NoError(t, d.Submit(1, func(context.Context) { close(done) }))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("task after panic never ran")
	}
}

func TestIdleMailboxRetires(t *testing.T) {
	d := newTestDispatcher(t, WithIdleTimeout(10*time.Millisecond))

	done := make(chan struct{})
	require.NoError(t, d.Submit(1, func(context.Context) { close(done) }))
	<-done

	require.Eventually(t, func() bool { return d.Len() == 0 }, 2*time.Second, 5*time.Millisecond)

	again := make(chan struct{})
	require.NoError(t, d.Submit(1, func(context.Context) { close(again) }))
	<-again
}

func TestCloseDrainsQueuedTasks(t *testing.T) {
	d := New(slog.New(slog.NewTextHandler(io.Discard, nil)))

	var n atomic.Int32
	for i := 0; i < 10; i++ {
		require.NoError(t, d.Submit(int64(i%3), func(context.Context) {
			time.Sleep(time.Millisecond)
			n.Add(1)
		}))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, d.Close(ctx))
	assert.Equal(t, int32(10), n.Load())

	assert.ErrorIs(t, d.Submit(1, func(context.Context) {}), ErrClosed)
}

func TestInlineRunsImmediately(t *testing.T) {
	ran := false
	require.NoError(t, Inline{}.Submit(1, func(ctx context.Context) {
		assert.NotNil(t, ctx)
		ran = true
	}))
	assert.True(t, ran)
}
