package engine

import (
	"fmt"
	"sync"
	"testing"

	"github.com/modguard/modguard/internal/transport"
)

func TestFifoOrdering(t *testing.T) {
	q := newFifo()
	for i := 0; i < 5; i++ {
		q.push(transport.Message{ID: fmt.Sprintf("m%d", i)})
	}
	for i := 0; i < 5; i++ {
		msg, ok := q.pop()
		if !ok {
			t.Fatalf("pop %d returned closed", i)
		}
		if want := fmt.Sprintf("m%d", i); msg.ID != want {
			t.Fatalf("pop %d = %s, want %s", i, msg.ID, want)
		}
	}
}

func TestFifoDrainsAfterClose(t *testing.T) {
	q := newFifo()
	q.push(transport.Message{ID: "m1"})
	q.push(transport.Message{ID: "m2"})
	q.close()

	if q.push(transport.Message{ID: "late"}) {
		t.Error("push after close must be rejected")
	}

	if msg, ok := q.pop(); !ok || msg.ID != "m1" {
		t.Fatalf("pop = (%v, %v), want m1", msg.ID, ok)
	}
	if msg, ok := q.pop(); !ok || msg.ID != "m2" {
		t.Fatalf("pop = (%v, %v), want m2", msg.ID, ok)
	}
	if _, ok := q.pop(); ok {
		t.Fatal("pop on drained closed queue must report closed")
	}
}

func TestFifoConcurrentProducers(t *testing.T) {
	q := newFifo()
	const producers = 8
	const perProducer = 100

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.push(transport.Message{ID: fmt.Sprintf("p%d-m%d", p, i)})
			}
		}(p)
	}

	seen := make(map[string]bool)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < producers*perProducer; i++ {
			msg, ok := q.pop()
			if !ok {
				return
			}
			if seen[msg.ID] {
				t.Errorf("duplicate delivery of %s", msg.ID)
			}
			seen[msg.ID] = true
		}
	}()

	wg.Wait()
	<-done
	if len(seen) != producers*perProducer {
		t.Fatalf("consumed %d messages, want %d", len(seen), producers*perProducer)
	}
}
