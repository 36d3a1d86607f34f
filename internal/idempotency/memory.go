package idempotency

import (
	"context"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

const DefaultCapacity = 100000

type entry struct {
	orderID    string
	recordedAt time.Time
	pending    bool
	done       chan struct{}
}

// finish marks e as no longer pending and wakes its waiters. Callers hold c.mu.
func (e *entry) finish() {
	if e.pending {
		e.pending = false
		close(e.done)
	}
}

type Options struct {
	Window    time.Duration
	Retention time.Duration
	Capacity  int
	Clock     Clock
}

// MemoryCache is an in-process Cache. Completed records are bounded by an
// LRU; in-flight claims are kept apart so capacity pressure cannot evict them.
type MemoryCache struct {
	mu        sync.Mutex
	entries   *lru.Cache[Key, *entry]
	pending   map[Key]*entry
	clock     Clock
	window    time.Duration
	retention time.Duration
	log       *zap.Logger
}

func NewMemoryCache(opts Options, log *zap.Logger) (*MemoryCache, error) {
	if opts.Window <= 0 {
		opts.Window = DefaultWindow
	}
	if opts.Retention <= 0 {
		opts.Retention = DefaultRetention
	}
	if opts.Retention < opts.Window {
		return nil, fmt.Errorf("retention %s is shorter than window %s", opts.Retention, opts.Window)
	}
	if opts.Capacity <= 0 {
		opts.Capacity = DefaultCapacity
	}
	if opts.Clock == nil {
		opts.Clock = SystemClock
	}
	if log == nil {
		log = zap.NewNop()
	}

	entries, err := lru.New[Key, *entry](opts.Capacity)
	if err != nil {
		return nil, fmt.Errorf("failed to create idempotency store: %w", err)
	}

	return &MemoryCache{
		entries:   entries,
		pending:   make(map[Key]*entry),
		clock:     opts.Clock,
		window:    opts.Window,
		retention: opts.Retention,
		log:       log,
	}, nil
}

func (c *MemoryCache) Lookup(_ context.Context, key Key) (string, bool, error) {
	if key.Empty() {
		return "", false, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries.Peek(key)
	if !ok || !c.suppressed(e) {
		return "", false, nil
	}
	return e.orderID, true, nil
}

func (c *MemoryCache) Record(_ context.Context, key Key, orderID string) error {
	if key.Empty() {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.pending[key]
	if !ok {
		e = &entry{}
	}
	c.settle(key, e, orderID)
	return nil
}

func (c *MemoryCache) Begin(ctx context.Context, key Key) (*Ticket, error) {
	if key.Empty() {
		return &Ticket{Key: key}, nil
	}

	for {
		c.mu.Lock()
		if p, ok := c.pending[key]; ok {
			done := p.done
			c.mu.Unlock()

			select {
			case <-done:
				continue
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		if e, ok := c.entries.Peek(key); ok && c.suppressed(e) {
			orderID := e.orderID
			c.mu.Unlock()
			return &Ticket{Key: key, Duplicate: true, OrderID: orderID}, nil
		}

		claimed := &entry{pending: true, done: make(chan struct{})}
		c.pending[key] = claimed
		c.mu.Unlock()
		return &Ticket{Key: key, entry: claimed}, nil
	}
}

func (c *MemoryCache) Complete(_ context.Context, t *Ticket, orderID string) error {
	if t == nil || t.entry == nil {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if !t.entry.pending {
		return nil
	}
	c.settle(t.Key, t.entry, orderID)
	return nil
}

func (c *MemoryCache) Abort(_ context.Context, t *Ticket) error {
	if t == nil || t.entry == nil {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	e := t.entry
	if !e.pending {
		return nil
	}
	if cur, ok := c.pending[t.Key]; ok && cur == e {
		delete(c.pending, t.Key)
	}
	e.finish()
	return nil
}

// settle moves e out of the pending set into the LRU as a completed record.
// Callers hold c.mu.
func (c *MemoryCache) settle(key Key, e *entry, orderID string) {
	if cur, ok := c.pending[key]; ok && cur == e {
		delete(c.pending, key)
	}
	e.orderID = orderID
	e.recordedAt = c.clock.Now()
	c.entries.Add(key, e)
	e.finish()
}

// Sweep evicts records older than the retention period and returns how many
// were removed. Pending claims live outside the LRU and are never swept.
// Keys is read without c.mu (the LRU has its own lock); c.mu is then taken
// per candidate, never for the whole pass.
func (c *MemoryCache) Sweep(now time.Time) int {
	removed := 0
	for _, key := range c.entries.Keys() {
		c.mu.Lock()
		if e, ok := c.entries.Peek(key); ok && now.Sub(e.recordedAt) >= c.retention {
			c.entries.Remove(key)
			removed++
		}
		c.mu.Unlock()
	}
	return removed
}

// Run sweeps on every tick until ctx is cancelled.
func (c *MemoryCache) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := c.Sweep(c.clock.Now()); n > 0 {
				c.log.Debug("evicted idempotency records", zap.Int("count", n))
			}
		}
	}
}

// Len counts completed records and in-flight claims.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Len() + len(c.pending)
}

func (c *MemoryCache) suppressed(e *entry) bool {
	return c.clock.Now().Sub(e.recordedAt) < c.window
}
