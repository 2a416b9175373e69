package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/pathwise/pathwise-backend/internal/logger"
)

// Gate enforces a minimum interval between calls per provider key. Callers
// for the same provider serialize; different providers never contend.
// A provider with no configured interval (or interval <= 0) passes through.
type Gate struct {
	mu        sync.Mutex
	intervals map[string]time.Duration
	entries   map[string]*gateEntry
	log       *logger.Logger
	now       func() time.Time
	sleep     func(ctx context.Context, d time.Duration) error
}

type gateEntry struct {
	mu   sync.Mutex
	last time.Time
}

func NewGate(intervals map[string]time.Duration, baseLog *logger.Logger) *Gate {
	cp := make(map[string]time.Duration, len(intervals))
	for k, v := range intervals {
		cp[k] = v
	}
	return &Gate{
		intervals: cp,
		entries:   map[string]*gateEntry{},
		log:       baseLog.With("component", "RateGate"),
		now:       time.Now,
		sleep:     sleepCtx,
	}
}

// Acquire blocks until the provider's minimum interval has elapsed since the
// previous grant, then advances the clock and returns. If ctx is canceled
// while waiting, the clock is NOT advanced and the ctx error is returned.
func (g *Gate) Acquire(ctx context.Context, provider string) error {
	interval := g.intervals[provider]
	entry := g.entry(provider)

	// Holding the entry mutex across the wait is what serializes callers
	// for one provider.
	entry.mu.Lock()
	defer entry.mu.Unlock()

	if interval > 0 && !entry.last.IsZero() {
		elapsed := g.now().Sub(entry.last)
		if wait := interval - elapsed; wait > 0 {
			g.log.Debug("Rate gate waiting", "provider", provider, "wait_ms", wait.Milliseconds())
			if err := g.sleep(ctx, wait); err != nil {
				return err
			}
		}
	}
	entry.last = g.now()
	return nil
}

func (g *Gate) entry(provider string) *gateEntry {
	g.mu.Lock()
	defer g.mu.Unlock()
	e, ok := g.entries[provider]
	if !ok {
		e = &gateEntry{}
		g.entries[provider] = e
	}
	return e
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
