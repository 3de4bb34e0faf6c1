package keyer

// QueueCapacity is the number of paddle presses a keyer remembers.
const QueueCapacity = 5

// PaddleQueue is a bounded FIFO set of paddles.
//
// Add is a silent no-op when the paddle is already queued or the queue is
// full. Shift returns the oldest entry, so the first squeezed paddle is the
// first one sent.
type PaddleQueue struct {
	items [QueueCapacity]Paddle
	n     int
}

// Add appends p unless it is already queued or the queue is full.
func (q *PaddleQueue) Add(p Paddle) {
	if q.n == len(q.items) {
		return
	}
	for i := 0; i < q.n; i++ {
		if q.items[i] == p {
			return
		}
	}
	q.items[q.n] = p
	q.n++
}

// Shift removes and returns the oldest entry, or None if empty.
func (q *PaddleQueue) Shift() Paddle {
	if q.n == 0 {
		return None
	}
	p := q.items[0]
	copy(q.items[:], q.items[1:q.n])
	q.n--
	return p
}

// Len returns the number of queued paddles.
func (q *PaddleQueue) Len() int {
	return q.n
}

// Clear empties the queue.
func (q *PaddleQueue) Clear() {
	q.n = 0
}

// aheadBuffer is the keyahead FIFO: no deduplication, and a press that
// arrives while full evicts the oldest entry.
type aheadBuffer struct {
	items [QueueCapacity]Paddle
	head  int
	n     int
}

func (b *aheadBuffer) push(p Paddle) {
	if b.n == len(b.items) {
		b.head = (b.head + 1) % len(b.items)
		b.n--
	}
	b.items[(b.head+b.n)%len(b.items)] = p
	b.n++
}

func (b *aheadBuffer) shift() Paddle {
	if b.n == 0 {
		return None
	}
	p := b.items[b.head]
	b.head = (b.head + 1) % len(b.items)
	b.n--
	return p
}

func (b *aheadBuffer) clear() {
	b.head, b.n = 0, 0
}
