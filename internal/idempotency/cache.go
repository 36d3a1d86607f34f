// Package idempotency suppresses duplicate order submissions that carry the
// same buyer and client token.
//
// A completed record is a duplicate only while it is younger than the
// suppression window. Records are kept until the retention period has passed
// so that requests arriving just after the window resolve against the latest
// record instead of a half-evicted one. Guarantees are per cache instance: the
// in-memory cache does not deduplicate across restarts or replicas, use the
// Redis cache for that.
package idempotency

import (
	"context"
	"time"
)

const (
	DefaultWindow    = 5 * time.Second
	DefaultRetention = 10 * time.Second
)

// Key identifies a submission. An empty Token marks an un-tokened request.
type Key struct {
	BuyerID string
	Token   string
}

func (k Key) Empty() bool { return k.Token == "" }

// Ticket is the outcome of Begin. Duplicate tickets carry the recorded order id;
// fresh tickets hold the claim until Complete or Abort.
type Ticket struct {
	Key       Key
	Duplicate bool
	OrderID   string

	claim string
	entry *entry
}

// Cache is the capability the order service depends on.
type Cache interface {
	// Lookup returns the order recorded for key inside the suppression window.
	Lookup(ctx context.Context, key Key) (string, bool, error)
	// Record stores orderID for key unconditionally.
	Record(ctx context.Context, key Key, orderID string) error
	// Begin atomically checks for a duplicate and otherwise claims key.
	// Concurrent Begin calls for a claimed key wait for the claim to finish.
	Begin(ctx context.Context, key Key) (*Ticket, error)
	// Complete turns the claim of t into a record for orderID.
	Complete(ctx context.Context, t *Ticket, orderID string) error
	// Abort releases the claim of t.
	Abort(ctx context.Context, t *Ticket) error
}

type Clock interface {
	Now() time.Time
}

type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

var SystemClock Clock = ClockFunc(time.Now)
