// Package queue provides the bounded priority queue used to collect the k
// nearest rows of a single query.
package queue

// PriorityQueueItem represents an item in the priority queue.
type PriorityQueueItem struct {
	Row      uint32  // Row is the storage position of the candidate vector.
	Distance float32 // Distance is the priority of the item in the queue.
}

// PriorityQueue is a binary heap of PriorityQueueItems stored by value.
//
// Ties on Distance are broken by Row so that results are deterministic:
// among equally distant rows the lower row ranks nearer.
type PriorityQueue struct {
	isMaxHeap bool
	items     []PriorityQueueItem
}

// NewMin initializes a new priority queue with minimum priority.
func NewMin(capacity int) *PriorityQueue {
	return &PriorityQueue{
		isMaxHeap: false,
		items:     make([]PriorityQueueItem, 0, capacity),
	}
}

// NewMax initializes a new priority queue with maximum priority.
func NewMax(capacity int) *PriorityQueue {
	return &PriorityQueue{
		isMaxHeap: true,
		items:     make([]PriorityQueueItem, 0, capacity),
	}
}

// Len returns the number of elements in the priority queue.
func (pq *PriorityQueue) Len() int { return len(pq.items) }

// Reset clears the priority queue for reuse.
func (pq *PriorityQueue) Reset() {
	pq.items = pq.items[:0]
}

// TopItem returns the top element of the heap.
func (pq *PriorityQueue) TopItem() (PriorityQueueItem, bool) {
	if len(pq.items) == 0 {
		return PriorityQueueItem{}, false
	}
	return pq.items[0], true
}

// PushItem inserts an item while maintaining the heap invariant.
func (pq *PriorityQueue) PushItem(item PriorityQueueItem) {
	pq.items = append(pq.items, item)
	pq.siftUp(len(pq.items) - 1)
}

// PopItem removes and returns the top element while maintaining the heap invariant.
func (pq *PriorityQueue) PopItem() (PriorityQueueItem, bool) {
	n := len(pq.items)
	if n == 0 {
		return PriorityQueueItem{}, false
	}
	root := pq.items[0]
	last := pq.items[n-1]
	pq.items = pq.items[:n-1]
	if n-1 > 0 {
		pq.items[0] = last
		pq.siftDown(0)
	}
	return root, true
}

// Offer keeps the k nearest items seen so far. The queue must be a max-heap.
// It reports whether item was retained.
func (pq *PriorityQueue) Offer(item PriorityQueueItem, k int) bool {
	if k <= 0 {
		return false
	}
	if len(pq.items) < k {
		pq.PushItem(item)
		return true
	}
	if !nearer(item, pq.items[0]) {
		return false
	}
	pq.items[0] = item
	pq.siftDown(0)
	return true
}

// DrainAscending empties a max-heap into dst, nearest first.
// dst must have room for Len() items; the filled prefix is returned.
func (pq *PriorityQueue) DrainAscending(dst []PriorityQueueItem) []PriorityQueueItem {
	n := len(pq.items)
	dst = dst[:n]
	for i := n - 1; i >= 0; i-- {
		dst[i], _ = pq.PopItem()
	}
	return dst
}

func nearer(a, b PriorityQueueItem) bool {
	if a.Distance != b.Distance {
		return a.Distance < b.Distance
	}
	return a.Row < b.Row
}

func (pq *PriorityQueue) less(i, j int) bool {
	if pq.isMaxHeap {
		return nearer(pq.items[j], pq.items[i])
	}
	return nearer(pq.items[i], pq.items[j])
}

func (pq *PriorityQueue) siftUp(i int) {
	for i > 0 {
		p := (i - 1) / 2
		if !pq.less(i, p) {
			return
		}
		pq.items[i], pq.items[p] = pq.items[p], pq.items[i]
		i = p
	}
}

func (pq *PriorityQueue) siftDown(i int) {
	n := len(pq.items)
	for {
		l := 2*i + 1
		if l >= n {
			return
		}
		best := l
		r := l + 1
		if r < n && pq.less(r, l) {
			best = r
		}
		if !pq.less(best, i) {
			return
		}
		pq.items[i], pq.items[best] = pq.items[best], pq.items[i]
		i = best
	}
}
