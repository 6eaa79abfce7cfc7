package kvstore

// heapItem is one slot of the TTL heap: a deadline and the entry it
// belongs to. Rather than a back-pointer into a detached size_t slot
// (the source's layout), the Go rendering simply back-references the
// owning *entry directly and writes its heapIndex field on every move —
// an equivalent, GC-safe rendering of the same invariant (spec §4.4).
type heapItem struct {
	deadlineMicros int64
	ent            *entry
}

// ttlHeap is an array-backed min-heap of TTL deadlines, grounded in
// shape (a flat backing array with an explicit length, not
// container/heap's sort.Interface indirection) on the teacher's
// array.go ArrayHT, whose fixed backing slice plus explicit cursor is
// the same "own the array directly" style used here.
type ttlHeap struct {
	items []heapItem
}

func newTTLHeap() *ttlHeap {
	return &ttlHeap{}
}

func (h *ttlHeap) len() int {
	return len(h.items)
}

func parentIdx(i int) int { return (i - 1) / 2 }
func leftIdx(i int) int   { return 2*i + 1 }
func rightIdx(i int) int  { return 2*i + 2 }

func (h *ttlHeap) set(i int, it heapItem) {
	h.items[i] = it
	it.ent.heapIndex = i
}

func (h *ttlHeap) swap(i, j int) {
	h.items[i], h.items[j] = h.items[j], h.items[i]
	h.items[i].ent.heapIndex = i
	h.items[j].ent.heapIndex = j
}

// push inserts a new (deadline, entry) pair and returns its final
// index.
func (h *ttlHeap) push(deadlineMicros int64, e *entry) int {
	h.items = append(h.items, heapItem{deadlineMicros: deadlineMicros, ent: e})
	i := len(h.items) - 1
	e.heapIndex = i
	h.siftUp(i)
	return e.heapIndex
}

// update reschedules the item at e's current slot to a new deadline.
func (h *ttlHeap) update(e *entry, deadlineMicros int64) {
	i := e.heapIndex
	h.items[i].deadlineMicros = deadlineMicros
	if !h.siftUp(i) {
		h.siftDown(i)
	}
}

// remove deletes the item at e's current slot.
func (h *ttlHeap) remove(e *entry) {
	i := e.heapIndex
	last := len(h.items) - 1
	if i != last {
		h.swap(i, last)
	}
	h.items = h.items[:last]
	e.heapIndex = noHeapIndex
	if i < len(h.items) {
		if !h.siftUp(i) {
			h.siftDown(i)
		}
	}
}

func (h *ttlHeap) peek() (heapItem, bool) {
	if len(h.items) == 0 {
		return heapItem{}, false
	}
	return h.items[0], true
}

// siftUp moves the item at i toward the root while it is smaller than
// its parent. Reports whether any motion occurred.
func (h *ttlHeap) siftUp(i int) bool {
	moved := false
	for i > 0 {
		p := parentIdx(i)
		if h.items[i].deadlineMicros >= h.items[p].deadlineMicros {
			break
		}
		h.swap(i, p)
		i = p
		moved = true
	}
	return moved
}

// siftDown moves the item at i toward the leaves while it is larger
// than the smaller of its children. Reports whether any motion
// occurred.
func (h *ttlHeap) siftDown(i int) bool {
	moved := false
	n := len(h.items)
	for {
		l, r, smallest := leftIdx(i), rightIdx(i), i
		if l < n && h.items[l].deadlineMicros < h.items[smallest].deadlineMicros {
			smallest = l
		}
		if r < n && h.items[r].deadlineMicros < h.items[smallest].deadlineMicros {
			smallest = r
		}
		if smallest == i {
			break
		}
		h.swap(i, smallest)
		i = smallest
		moved = true
	}
	return moved
}
