package core

const (
	defaultQueueCap     = 16
	compactMinCap       = 64 // Don't compact if capacity is less than this
	compactShrinkFactor = 4  // Trigger compaction when len < cap/4
)

// workQueue is a FIFO of pending work items.
// It is not synchronized; SharedTaskPool guards it with its own mutex.
type workQueue struct {
	items []workItem
}

func newWorkQueue() *workQueue {
	return &workQueue{items: make([]workItem, 0, defaultQueueCap)}
}

func (q *workQueue) Push(item workItem) {
	q.items = append(q.items, item)
}

func (q *workQueue) Pop() (workItem, bool) {
	if len(q.items) == 0 {
		return workItem{}, false
	}

	item := q.items[0]
	// Zero out the element in the underlying array to prevent memory leak
	q.items[0] = workItem{}
	q.items = q.items[1:]
	q.maybeCompact()

	return item, true
}

func (q *workQueue) maybeCompact() {
	n := len(q.items)
	c := cap(q.items)

	if c < compactMinCap {
		return
	}
	if n == 0 {
		q.items = make([]workItem, 0, defaultQueueCap)
		return
	}
	if n*compactShrinkFactor >= c {
		return
	}

	newCap := max(max(c/2, defaultQueueCap), n)

	newSlice := make([]workItem, n, newCap)
	copy(newSlice, q.items)
	q.items = newSlice
}

func (q *workQueue) Len() int {
	return len(q.items)
}

// Peek returns the oldest item without removing it.
func (q *workQueue) Peek() (workItem, bool) {
	if len(q.items) == 0 {
		return workItem{}, false
	}
	return q.items[0], true
}
