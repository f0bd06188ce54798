// Package dedup tracks already-processed message identifiers so that polling
// overlap or transport redelivery cannot trigger duplicate moderation
// actions. The ledger is bounded by both an age ceiling and a size ceiling;
// an evicted identifier may be reprocessed if redelivered much later, which
// is an accepted trade-off (dedup is an idempotence optimization, not a
// source of truth).
package dedup

import (
	"context"
	"sync"
	"time"

	"github.com/modguard/modguard/internal/metrics"
)

// Ledger is an insertion-ordered, bounded set of message identifiers.
type Ledger struct {
	mu    sync.Mutex
	order []entry
	index map[string]struct{}

	ttl time.Duration
	max int
	// floor is the size trimming reduces to once max is exceeded, so a burst
	// does not cause an eviction per insert.
	floor int
}

type entry struct {
	id     string
	seenAt time.Time
}

// NewLedger creates a Ledger that trims entries older than ttl and caps the
// set at max entries (trimming down to 3/4 of max when exceeded).
func NewLedger(ttl time.Duration, max int) *Ledger {
	if max < 4 {
		max = 4
	}
	return &Ledger{
		index: make(map[string]struct{}),
		ttl:   ttl,
		max:   max,
		floor: max - max/4,
	}
}

// Seen reports whether id is currently in the ledger.
func (l *Ledger) Seen(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.index[id]
	return ok
}

// MarkSeen records id with the given timestamp. Re-marking a known id is a
// no-op (the original insertion position is kept).
func (l *Ledger) MarkSeen(id string, ts time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.index[id]; ok {
		return
	}
	l.index[id] = struct{}{}
	l.order = append(l.order, entry{id: id, seenAt: ts})

	if len(l.order) > l.max {
		l.dropOldest(len(l.order) - l.floor)
	}
	metrics.DedupLedgerSize.Set(float64(len(l.order)))
}

// Trim removes entries older than the TTL from the front of insertion order
// and enforces the size ceiling. Returns the number of removed entries.
func (l *Ledger) Trim(now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := now.Add(-l.ttl)
	expired := 0
	for expired < len(l.order) && l.order[expired].seenAt.Before(cutoff) {
		expired++
	}
	removed := expired
	if remaining := len(l.order) - expired; remaining > l.max {
		removed += remaining - l.floor
	}
	if removed > 0 {
		l.dropOldest(removed)
	}
	metrics.DedupLedgerSize.Set(float64(len(l.order)))
	return removed
}

// Len returns the current number of tracked identifiers.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.order)
}

// dropOldest removes the n oldest entries. Caller holds l.mu.
func (l *Ledger) dropOldest(n int) {
	if n > len(l.order) {
		n = len(l.order)
	}
	for i := 0; i < n; i++ {
		delete(l.index, l.order[i].id)
	}
	l.order = append(l.order[:0], l.order[n:]...)
}

// StartTrimLoop trims the ledger on a fixed interval, independent of
// insertion rate, until ctx is cancelled.
func (l *Ledger) StartTrimLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				l.Trim(time.Now())
			}
		}
	}()
}
