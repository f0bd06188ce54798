// Package warnings provides the durable identity -> strike-count store.
//
// Persistence is a single JSON object file written through an atomic
// temp-then-rename protocol, so a crash mid-write never corrupts the
// canonical file. Writes are coalesced: while one persist is in flight,
// further requests collapse into a single follow-up write instead of
// launching concurrently. If the storage medium rejects writes the store
// degrades to memory-only for the rest of the process lifetime.
package warnings

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/modguard/modguard/internal/identity"
	"github.com/modguard/modguard/internal/metrics"
)

// Store maps canonical identities to strike counts with crash-safe
// persistence and in-memory fallback.
type Store struct {
	path string

	mu         sync.Mutex
	counts     map[string]int
	memoryOnly bool // sticky once a write fails
	persisting bool // an async persist is in flight
	pending    bool // one more persist requested while in flight

	writeMu sync.Mutex // serializes the actual file writes
}

// NewStore creates a Store persisting to path. Call Load before use.
func NewStore(path string) *Store {
	return &Store{
		path:   path,
		counts: make(map[string]int),
	}
}

// Load reads the canonical file into memory. A missing file yields an empty
// store. A file that exists but fails to parse is preserved under a
// timestamped quarantine name and the store starts empty; the returned error
// reports the quarantine so callers can surface it. Keys are normalized to
// digits-only to absorb historical key-format drift.
func (s *Store) Load() error {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("warnings: read %s: %w", s.path, err)
	}

	var raw map[string]int
	if err := json.Unmarshal(data, &raw); err != nil {
		quarantine := fmt.Sprintf("%s.corrupt.%s", s.path, time.Now().UTC().Format("2006-01-02T15-04-05Z"))
		if renameErr := os.Rename(s.path, quarantine); renameErr != nil {
			return fmt.Errorf("warnings: corrupt store %s (quarantine failed: %v): %w", s.path, renameErr, err)
		}
		return fmt.Errorf("warnings: corrupt store quarantined as %s: %w", quarantine, err)
	}

	counts := make(map[string]int, len(raw))
	for key, n := range raw {
		id := identity.Digits(key)
		if id == "" || n <= 0 {
			continue
		}
		if n > counts[id] {
			counts[id] = n
		}
	}

	s.mu.Lock()
	s.counts = counts
	s.mu.Unlock()
	metrics.TrackedIdentities.Set(float64(len(counts)))
	return nil
}

// Increment adds one strike to id and returns the new count.
func (s *Store) Increment(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts[id]++
	metrics.TrackedIdentities.Set(float64(len(s.counts)))
	return s.counts[id]
}

// Get returns the current strike count for id (0 if absent).
func (s *Store) Get(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[id]
}

// Reset deletes the record for id.
func (s *Store) Reset(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.counts, id)
	metrics.TrackedIdentities.Set(float64(len(s.counts)))
}

// ResetAll clears every record.
func (s *Store) ResetAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts = make(map[string]int)
	metrics.TrackedIdentities.Set(0)
}

// Len returns the number of identities with at least one strike.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.counts)
}

// MemoryOnly reports whether the store has degraded to memory-only mode.
func (s *Store) MemoryOnly() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.memoryOnly
}

// Persist schedules an asynchronous write of the current map. If a write is
// already in flight the request is coalesced into one follow-up write. In
// memory-only mode this is a no-op.
func (s *Store) Persist() {
	s.mu.Lock()
	if s.memoryOnly {
		s.mu.Unlock()
		return
	}
	if s.persisting {
		s.pending = true
		s.mu.Unlock()
		return
	}
	s.persisting = true
	s.mu.Unlock()

	go s.persistLoop()
}

// persistLoop writes snapshots until no further persist is pending.
func (s *Store) persistLoop() {
	for {
		if err := s.writeSnapshot(); err != nil {
			s.degrade(err)
			return
		}

		s.mu.Lock()
		if s.pending && !s.memoryOnly {
			s.pending = false
			s.mu.Unlock()
			continue
		}
		s.persisting = false
		s.mu.Unlock()
		return
	}
}

// Flush synchronously writes the current map, waiting out any in-flight
// async write. Used for the final flush at shutdown. Returns nil in
// memory-only mode (writes are skipped, not errors).
func (s *Store) Flush() error {
	s.mu.Lock()
	if s.memoryOnly {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	if err := s.writeSnapshot(); err != nil {
		s.degrade(err)
		return err
	}
	return nil
}

// writeSnapshot writes the full current map to <path>.tmp and atomically
// renames it over the canonical path. A stale .tmp from an earlier crash is
// simply overwritten.
func (s *Store) writeSnapshot() error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	snapshot := make(map[string]int, len(s.counts))
	for id, n := range s.counts {
		snapshot[id] = n
	}
	s.mu.Unlock()

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("warnings: marshal: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("warnings: write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("warnings: rename %s: %w", tmp, err)
	}
	return nil
}

// degrade switches the store to sticky memory-only mode after a failed write.
func (s *Store) degrade(err error) {
	s.mu.Lock()
	already := s.memoryOnly
	s.memoryOnly = true
	s.persisting = false
	s.pending = false
	s.mu.Unlock()

	if !already {
		log.Printf("[warnings] persist failed, continuing memory-only: %v", err)
	}
}

// StartAutosave persists the store on a fixed interval until ctx is
// cancelled. Autosave goes through the same coalescing Persist path as
// violation-driven writes.
func (s *Store) StartAutosave(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Persist()
			}
		}
	}()
}
