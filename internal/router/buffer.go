package router

import "sync"

// growThreshold is the fill percentage at which the ring doubles.
const growThreshold = 70

// GrowableBuffer is an ordered, unbounded FIFO shared between producers and
// a single consumer. Producers never block: the ring doubles once it is 70% full.
// Items pushed before Close are still handed out after it.
type GrowableBuffer[T any] struct {
	mu     sync.Mutex
	cond   *sync.Cond
	ring   []T
	head   int
	size   int
	closed bool

	pushed  int64
	popped  int64
	resizes int
}

// BufferStats is a snapshot of a buffer's counters.
type BufferStats struct {
	Count       int   `json:"count"`
	Capacity    int   `json:"capacity"`
	Pushed      int64 `json:"pushed"`
	Popped      int64 `json:"popped"`
	ResizeCount int   `json:"resize_count"`
	Closed      bool  `json:"closed"`
}

// NewGrowableBuffer creates a buffer with the given initial capacity (minimum 1).
func NewGrowableBuffer[T any](capacity int) *GrowableBuffer[T] {
	if capacity < 1 {
		capacity = 1
	}
	b := &GrowableBuffer[T]{ring: make([]T, capacity)}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// Push appends an item. Returns false once the buffer is closed.
func (b *GrowableBuffer[T]) Push(item T) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return false
	}

	limit := len(b.ring) * growThreshold / 100
	if limit < 1 {
		limit = 1
	}
	if b.size+1 >= limit {
		b.resize(len(b.ring) * 2)
	}

	b.ring[(b.head+b.size)%len(b.ring)] = item
	b.size++
	b.pushed++
	b.cond.Signal()
	return true
}

// Pop blocks until an item is available and returns it. The second result is
// false when the buffer is closed and drained.
func (b *GrowableBuffer[T]) Pop() (T, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for b.size == 0 && !b.closed {
		b.cond.Wait()
	}
	return b.take()
}

// TryPop returns the oldest item without blocking.
func (b *GrowableBuffer[T]) TryPop() (T, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.take()
}

// Drain removes up to max items (all of them when max <= 0) in FIFO order.
func (b *GrowableBuffer[T]) Drain(max int) []T {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := b.size
	if max > 0 && max < n {
		n = max
	}
	if n == 0 {
		return nil
	}

	out := make([]T, 0, n)
	for len(out) < n {
		item, _ := b.take()
		out = append(out, item)
	}
	return out
}

// Close stops accepting items and wakes blocked consumers.
func (b *GrowableBuffer[T]) Close() {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	b.cond.Broadcast()
}

// Len returns the number of queued items.
func (b *GrowableBuffer[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}

// Stats returns a snapshot of the buffer counters.
func (b *GrowableBuffer[T]) Stats() BufferStats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return BufferStats{
		Count:       b.size,
		Capacity:    len(b.ring),
		Pushed:      b.pushed,
		Popped:      b.popped,
		ResizeCount: b.resizes,
		Closed:      b.closed,
	}
}

// take pops the head item. Caller holds mu.
func (b *GrowableBuffer[T]) take() (T, bool) {
	var zero T
	if b.size == 0 {
		return zero, false
	}
	item := b.ring[b.head]
	b.ring[b.head] = zero
	b.head = (b.head + 1) % len(b.ring)
	b.size--
	b.popped++
	return item, true
}

// resize moves the queued items to the front of a new ring. Caller holds mu.
func (b *GrowableBuffer[T]) resize(capacity int) {
	ring := make([]T, capacity)
	for i := 0; i < b.size; i++ {
		ring[i] = b.ring[(b.head+i)%len(b.ring)]
	}
	b.ring = ring
	b.head = 0
	b.resizes++
}
