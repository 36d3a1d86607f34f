package idempotency

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func newTestCache(t *testing.T, clock Clock) *MemoryCache {
	t.Helper()
	c, err := NewMemoryCache(Options{Window: 5 * time.Second, Retention: 10 * time.Second, Capacity: 128, Clock: clock}, nil)
	require.NoError(t, err)
	return c
}

func TestMemoryCache_EmptyTokenIsNeverDuplicate(t *testing.T) {
	c := newTestCache(t, newFakeClock())
	ctx := context.Background()
	key := Key{BuyerID: "buyer-1"}

	require.NoError(t, c.Record(ctx, key, "order-1"))
	_, ok, err := c.Lookup(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	ticket, err := c.Begin(ctx, key)
	require.NoError(t, err)
	assert.False(t, ticket.Duplicate)
	assert.Equal(t, 0, c.Len())
}

func TestMemoryCache_ReplayWithinWindow(t *testing.T) {
	clock := newFakeClock()
	c := newTestCache(t, clock)
	ctx := context.Background()
	key := Key{BuyerID: "buyer-1", Token: "abc"}

	first, err := c.Begin(ctx, key)
	require.NoError(t, err)
	assert.False(t, first.Duplicate)
	require.NoError(t, c.Complete(ctx, first, "order-1"))

	clock.Advance(time.Second)

	second, err := c.Begin(ctx, key)
	require.NoError(t, err)
	assert.True(t, second.Duplicate)
	assert.Equal(t, "order-1", second.OrderID)

	id, ok, err := c.Lookup(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "order-1", id)
}

func TestMemoryCache_NewClaimAfterWindow(t *testing.T) {
	clock := newFakeClock()
	c := newTestCache(t, clock)
	ctx := context.Background()
	key := Key{BuyerID: "buyer-1", Token: "abc"}

	first, _ := c.Begin(ctx, key)
	require.NoError(t, c.Complete(ctx, first, "order-1"))

	// inside the grace period: retained but no longer a duplicate
	clock.Advance(6 * time.Second)
	_, ok, _ := c.Lookup(ctx, key)
	assert.False(t, ok)
	assert.Equal(t, 1, c.Len())

	second, err := c.Begin(ctx, key)
	require.NoError(t, err)
	assert.False(t, second.Duplicate)
	require.NoError(t, c.Complete(ctx, second, "order-2"))

	clock.Advance(time.Second)
	third, err := c.Begin(ctx, key)
	require.NoError(t, err)
	assert.True(t, third.Duplicate)
	assert.Equal(t, "order-2", third.OrderID)
}

func TestMemoryCache_AbortReleasesClaim(t *testing.T) {
	c := newTestCache(t, newFakeClock())
	ctx := context.Background()
	key := Key{BuyerID: "buyer-1", Token: "abc"}

	first, _ := c.Begin(ctx, key)
	require.NoError(t, c.Abort(ctx, first))
	assert.Equal(t, 0, c.Len())

	second, err := c.Begin(ctx, key)
	require.NoError(t, err)
	assert.False(t, second.Duplicate)

	// finishing an already finished ticket is a no-op
	require.NoError(t, c.Abort(ctx, first))
	require.NoError(t, c.Complete(ctx, first, "stale"))
	_, ok, _ := c.Lookup(ctx, key)
	assert.False(t, ok)
}

func TestMemoryCache_ConcurrentBeginSingleOwner(t *testing.T) {
	c := newTestCache(t, newFakeClock())
	ctx := context.Background()
	key := Key{BuyerID: "buyer-1", Token: "same"}

	const n = 50
	var owners int32
	ids := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ticket, err := c.Begin(ctx, key)
			if !assert.NoError(t, err) {
				return
			}
			if ticket.Duplicate {
				ids[i] = ticket.OrderID
				return
			}
			atomic.AddInt32(&owners, 1)
			time.Sleep(5 * time.Millisecond)
			assert.NoError(t, c.Complete(ctx, ticket, "order-1"))
			ids[i] = "order-1"
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), owners)
	for _, id := range ids {
		assert.Equal(t, "order-1", id)
	}
}

func TestMemoryCache_WaiterHonoursContext(t *testing.T) {
	c := newTestCache(t, newFakeClock())
	key := Key{BuyerID: "buyer-1", Token: "abc"}

	_, err := c.Begin(context.Background(), key)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = c.Begin(ctx, key)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestMemoryCache_Sweep(t *testing.T) {
	clock := newFakeClock()
	c := newTestCache(t, clock)
	ctx := context.Background()

	require.NoError(t, c.Record(ctx, Key{BuyerID: "b", Token: "old"}, "order-1"))
	clock.Advance(4 * time.Second)
	require.NoError(t, c.Record(ctx, Key{BuyerID: "b", Token: "new"}, "order-2"))
	pending, _ := c.Begin(ctx, Key{BuyerID: "b", Token: "pending"})

	clock.Advance(7 * time.Second)
	assert.Equal(t, 1, c.Sweep(clock.Now()))
	assert.Equal(t, 2, c.Len())

	clock.Advance(time.Hour)
	assert.Equal(t, 1, c.Sweep(clock.Now()))
	assert.Equal(t, 1, c.Len(), "pending claims are never swept")

	require.NoError(t, c.Abort(ctx, pending))
}

func TestMemoryCache_RunStopsOnCancel(t *testing.T) {
	defer goleak.VerifyNone(t)

	c := newTestCache(t, SystemClock)
	require.NoError(t, c.Record(context.Background(), Key{BuyerID: "b", Token: "t"}, "order-1"))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx, time.Millisecond)
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()
	<-done
}

func TestNewMemoryCache_RejectsShortRetention(t *testing.T) {
	_, err := NewMemoryCache(Options{Window: 5 * time.Second, Retention: time.Second}, nil)
	assert.Error(t, err)
}

func TestMemoryCache_PendingClaimSurvivesCapacity(t *testing.T) {
	c, err := NewMemoryCache(Options{Capacity: 1, Clock: newFakeClock()}, nil)
	require.NoError(t, err)
	ctx := context.Background()
	key := Key{BuyerID: "b", Token: "slow"}

	owner, err := c.Begin(ctx, key)
	require.NoError(t, err)
	require.False(t, owner.Duplicate)

	// fill the LRU past capacity while the claim is in flight
	for _, token := range []string{"x", "y"} {
		tk, err := c.Begin(ctx, Key{BuyerID: "b", Token: token})
		require.NoError(t, err)
		require.NoError(t, c.Complete(ctx, tk, "order-"+token))
	}

	results := make(chan *Ticket, 2)
	for i := 0; i < 2; i++ {
		go func() {
			tk, err := c.Begin(ctx, key)
			assert.NoError(t, err)
			results <- tk
		}()
	}

	select {
	case tk := <-results:
		t.Fatalf("second claim granted while the first was in flight: %+v", tk)
	case <-time.After(50 * time.Millisecond):
	}

	require.NoError(t, c.Complete(ctx, owner, "order-slow"))
	for i := 0; i < 2; i++ {
		tk := <-results
		require.NotNil(t, tk)
		assert.True(t, tk.Duplicate)
		assert.Equal(t, "order-slow", tk.OrderID)
	}
}

func TestMemoryCache_SweepConcurrentWithClaims(t *testing.T) {
	clock := newFakeClock()
	c := newTestCache(t, clock)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				key := Key{BuyerID: "b", Token: fmt.Sprintf("%d-%d", i, j)}
				tk, err := c.Begin(ctx, key)
				if !assert.NoError(t, err) {
					return
				}
				assert.NoError(t, c.Complete(ctx, tk, "order"))
			}
		}(i)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for k := 0; k < 50; k++ {
			c.Sweep(clock.Now().Add(time.Hour))
		}
	}()
	wg.Wait()

	c.Sweep(clock.Now().Add(time.Hour))
	assert.Zero(t, c.Len())
}
