package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/pathwise/pathwise-backend/internal/logger"
)

func testLogger() *logger.Logger {
	return &logger.Logger{SugaredLogger: zap.NewNop().Sugar()}
}

// fakeClock drives the gate without real sleeping: sleeps advance the
// clock and are recorded.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	c.mu.Unlock()
	return nil
}

func newTestGate(intervals map[string]time.Duration) (*Gate, *fakeClock) {
	g := NewGate(intervals, testLogger())
	clock := newFakeClock()
	g.now = clock.Now
	g.sleep = clock.Sleep
	return g, clock
}

func TestAcquireFirstCallPassesImmediately(t *testing.T) {
	g, clock := newTestGate(map[string]time.Duration{"gemini": 3 * time.Second})

	if err := g.Acquire(context.Background(), "gemini"); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if len(clock.sleeps) != 0 {
		t.Fatalf("expected no wait on first call, got %v", clock.sleeps)
	}
}

func TestAcquireEnforcesMinimumInterval(t *testing.T) {
	g, clock := newTestGate(map[string]time.Duration{"gemini": 3 * time.Second})
	ctx := context.Background()

	if err := g.Acquire(ctx, "gemini"); err != nil {
		t.Fatalf("first Acquire: %v", err)
	}
	clock.Advance(1 * time.Second)
	if err := g.Acquire(ctx, "gemini"); err != nil {
		t.Fatalf("second Acquire: %v", err)
	}
	if len(clock.sleeps) != 1 || clock.sleeps[0] != 2*time.Second {
		t.Fatalf("expected one 2s wait, got %v", clock.sleeps)
	}
}

func TestAcquireAfterIntervalElapsedDoesNotWait(t *testing.T) {
	g, clock := newTestGate(map[string]time.Duration{"gemini": 3 * time.Second})
	ctx := context.Background()

	if err := g.Acquire(ctx, "gemini"); err != nil {
		t.Fatalf("first Acquire: %v", err)
	}
	clock.Advance(5 * time.Second)
	if err := g.Acquire(ctx, "gemini"); err != nil {
		t.Fatalf("second Acquire: %v", err)
	}
	if len(clock.sleeps) != 0 {
		t.Fatalf("expected no wait after interval elapsed, got %v", clock.sleeps)
	}
}

func TestAcquireZeroIntervalPassesThrough(t *testing.T) {
	g, clock := newTestGate(map[string]time.Duration{"openai": 0})
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := g.Acquire(ctx, "openai"); err != nil {
			t.Fatalf("Acquire %d: %v", i, err)
		}
	}
	if len(clock.sleeps) != 0 {
		t.Fatalf("zero-interval provider should never wait, got %v", clock.sleeps)
	}
}

func TestAcquireCancellationDoesNotAdvanceClock(t *testing.T) {
	g, clock := newTestGate(map[string]time.Duration{"openrouter": 6 * time.Second})

	if err := g.Acquire(context.Background(), "openrouter"); err != nil {
		t.Fatalf("first Acquire: %v", err)
	}
	first := g.entry("openrouter").last

	canceled, cancel := context.WithCancel(context.Background())
	cancel()
	clock.Advance(1 * time.Second)
	if err := g.Acquire(canceled, "openrouter"); err != context.Canceled {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if got := g.entry("openrouter").last; !got.Equal(first) {
		t.Fatalf("canceled Acquire advanced last grant: %v -> %v", first, got)
	}

	// The next caller waits relative to the original grant, not the
	// canceled attempt.
	clock.Advance(2 * time.Second)
	if err := g.Acquire(context.Background(), "openrouter"); err != nil {
		t.Fatalf("third Acquire: %v", err)
	}
	if len(clock.sleeps) != 1 || clock.sleeps[0] != 3*time.Second {
		t.Fatalf("expected one 3s wait from original grant, got %v", clock.sleeps)
	}
}

func TestAcquireProvidersDoNotContend(t *testing.T) {
	g, clock := newTestGate(map[string]time.Duration{
		"gemini": 3 * time.Second,
		"openai": 3 * time.Second,
	})
	ctx := context.Background()

	if err := g.Acquire(ctx, "gemini"); err != nil {
		t.Fatalf("gemini Acquire: %v", err)
	}
	if err := g.Acquire(ctx, "openai"); err != nil {
		t.Fatalf("openai Acquire: %v", err)
	}
	if len(clock.sleeps) != 0 {
		t.Fatalf("distinct providers should not wait on each other, got %v", clock.sleeps)
	}
}

func TestAcquireSameProviderCallersSerialize(t *testing.T) {
	// Real clock here: two goroutines race for the same provider and the
	// second grant must land at least the interval after the first.
	g := NewGate(map[string]time.Duration{"gemini": 30 * time.Millisecond}, testLogger())
	ctx := context.Background()

	var mu sync.Mutex
	var grants []time.Time
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := g.Acquire(ctx, "gemini"); err != nil {
				t.Errorf("Acquire: %v", err)
				return
			}
			mu.Lock()
			grants = append(grants, time.Now())
			mu.Unlock()
		}()
	}
	wg.Wait()

	if len(grants) != 2 {
		t.Fatalf("expected 2 grants, got %d", len(grants))
	}
	gap := grants[1].Sub(grants[0])
	if gap < 0 {
		gap = -gap
	}
	if gap < 25*time.Millisecond {
		t.Fatalf("grants only %v apart, want >= ~30ms", gap)
	}
}
