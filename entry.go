package kvstore

// valueKind discriminates the payload an Entry carries.
type valueKind int8

const (
	kindString valueKind = iota
	kindZSet
)

// noHeapIndex is the sentinel heapIndex value for an Entry with no TTL.
const noHeapIndex = -1

// entry is the unit of storage: an opaque key, a tagged value, and the
// bookkeeping the hash table and TTL heap need to find
// it again. An entry is owned exclusively by the hash table that holds
// it; it is only freed once it has been removed from every index
// (hashtable.go, heap.go).
type entry struct {
	key  []byte
	kind valueKind

	str  []byte
	zset *zset

	// heapIndex is this entry's slot in the TTL heap, or noHeapIndex if
	// it carries no TTL. Invariant: heap[heapIndex].ent == this entry.
	heapIndex int

	// next chains entries within a single hash-table bucket.
	next *entry
}

// newStringEntry takes ownership of a copy of key and val: callers may
// pass slices backed by a reused buffer (e.g. a connection's read
// buffer) without the entry aliasing it.
func newStringEntry(key, val []byte) *entry {
	return &entry{key: cloneBytes(key), kind: kindString, str: cloneBytes(val), heapIndex: noHeapIndex}
}

func newZSetEntry(key []byte) *entry {
	return &entry{key: cloneBytes(key), kind: kindZSet, zset: newZSet(), heapIndex: noHeapIndex}
}

// cloneBytes returns an owned copy of b, detached from whatever buffer
// it was a sub-slice of.
func cloneBytes(b []byte) []byte {
	return append([]byte(nil), b...)
}

func (e *entry) hasTTL() bool {
	return e.heapIndex != noHeapIndex
}

// largeZSet reports whether destroying this entry's ZSet is expensive
// enough to warrant offloading to the worker pool rather than freeing it
// inline on the event-loop thread.
func (e *entry) largeZSet(threshold int) bool {
	return e.kind == kindZSet && e.zset.len() > threshold
}
