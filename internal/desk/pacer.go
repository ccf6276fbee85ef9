package desk

import (
	"context"
	"math/rand"
	"time"
)

// Pacer decides how long the desk pauses to look like a person typing.
type Pacer interface {
	// TypingDelay is shown as "typing…" before a composed message.
	TypingDelay() time.Duration
	// ReplyDelay separates the acknowledgments of a receipt.
	ReplyDelay() time.Duration
}

// HumanPacer draws delays uniformly from fixed ranges.
type HumanPacer struct {
	rand func() float64
}

func NewHumanPacer() *HumanPacer {
	return &HumanPacer{rand: rand.Float64}
}

func (p *HumanPacer) TypingDelay() time.Duration {
	return p.between(700*time.Millisecond, 1900*time.Millisecond)
}

func (p *HumanPacer) ReplyDelay() time.Duration {
	return p.between(1600*time.Millisecond, 3200*time.Millisecond)
}

func (p *HumanPacer) between(lo, hi time.Duration) time.Duration {
	return lo + time.Duration(p.rand()*float64(hi-lo))
}

// NoPacer never pauses.
type NoPacer struct{}

func (NoPacer) TypingDelay() time.Duration { return 0 }

func (NoPacer) ReplyDelay() time.Duration { return 0 }

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
