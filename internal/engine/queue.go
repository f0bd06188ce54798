package engine

import (
	"sync"

	"github.com/modguard/modguard/internal/transport"
)

// fifo is an unbounded FIFO of inbound messages. The transport delivery
// callback pushes and returns immediately; the single decision worker pops.
// After close, pop keeps returning queued items until the queue is drained.
type fifo struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []transport.Message
	closed bool
}

func newFifo() *fifo {
	f := &fifo{}
	f.cond = sync.NewCond(&f.mu)
	return f
}

// push appends msg. Returns false if the queue has been closed.
func (f *fifo) push(msg transport.Message) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return false
	}
	f.items = append(f.items, msg)
	f.cond.Signal()
	return true
}

// pop blocks until an item is available or the queue is closed and empty.
func (f *fifo) pop() (transport.Message, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for len(f.items) == 0 && !f.closed {
		f.cond.Wait()
	}
	if len(f.items) == 0 {
		return transport.Message{}, false
	}
	msg := f.items[0]
	f.items = f.items[1:]
	return msg, true
}

// close stops intake. Queued items remain poppable.
func (f *fifo) close() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	f.cond.Broadcast()
}

func (f *fifo) len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.items)
}
