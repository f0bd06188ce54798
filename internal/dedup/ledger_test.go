package dedup

import (
	"fmt"
	"testing"
	"time"
)

func TestSeenAndMarkSeen(t *testing.T) {
	l := NewLedger(time.Minute, 100)
	now := time.Now()

	if l.Seen("m1") {
		t.Fatal("empty ledger should not report m1 as seen")
	}
	l.MarkSeen("m1", now)
	if !l.Seen("m1") {
		t.Fatal("m1 should be seen after MarkSeen")
	}

	// Re-marking is a no-op.
	l.MarkSeen("m1", now.Add(time.Second))
	if l.Len() != 1 {
		t.Fatalf("Len = %d, want 1", l.Len())
	}
}

func TestTrimByAge(t *testing.T) {
	l := NewLedger(time.Minute, 100)
	base := time.Now()

	l.MarkSeen("old1", base.Add(-2*time.Minute))
	l.MarkSeen("old2", base.Add(-90*time.Second))
	l.MarkSeen("fresh", base.Add(-time.Second))

	removed := l.Trim(base)
	if removed != 2 {
		t.Fatalf("Trim removed %d, want 2", removed)
	}
	if l.Seen("old1") || l.Seen("old2") {
		t.Error("expired entries should be gone")
	}
	if !l.Seen("fresh") {
		t.Error("fresh entry should survive trim")
	}
}

func TestSizeCeilingTrimsToFloor(t *testing.T) {
	l := NewLedger(time.Hour, 100)
	now := time.Now()

	for i := 0; i < 101; i++ {
		l.MarkSeen(fmt.Sprintf("m%03d", i), now.Add(time.Duration(i)*time.Millisecond))
	}

	// The insert that exceeds the ceiling trims down to the floor
	// (75 for max=100).
	if got := l.Len(); got != 75 {
		t.Fatalf("Len after overflow = %d, want 75", got)
	}
	if l.Seen("m000") || l.Seen("m025") {
		t.Error("oldest entries should have been evicted")
	}
	if !l.Seen("m026") {
		t.Error("entry just inside the floor should survive")
	}
	if !l.Seen("m100") {
		t.Error("newest entry must be present")
	}
}

func TestTrimEnforcesCeilingIndependently(t *testing.T) {
	l := NewLedger(time.Hour, 20)
	now := time.Now()

	// Fill to exactly the ceiling; inserts alone do not trim at == max.
	for i := 0; i < 20; i++ {
		l.MarkSeen(fmt.Sprintf("m%02d", i), now)
	}
	if l.Len() != 20 {
		t.Fatalf("Len = %d, want 20", l.Len())
	}
	if removed := l.Trim(now); removed != 0 {
		t.Fatalf("Trim at ceiling removed %d, want 0", removed)
	}
}

func TestEvictedIDCanBeReprocessed(t *testing.T) {
	l := NewLedger(time.Minute, 100)
	base := time.Now()

	l.MarkSeen("m1", base.Add(-2*time.Minute))
	l.Trim(base)
	if l.Seen("m1") {
		t.Fatal("m1 should have expired")
	}
	l.MarkSeen("m1", base)
	if !l.Seen("m1") {
		t.Fatal("m1 should be trackable again after eviction")
	}
}
