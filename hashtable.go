package kvstore

import (
	"bytes"
	"hash/fnv"
)

// resizeLoadFactor is the default size/capacity ratio that triggers a
// progressive rehash (spec §4.1); DefaultConfig().ResizeLoadFactor
// mirrors this value, and newHashTable takes it from the Config the
// keyspace was built with.
const resizeLoadFactor = 8

// rehashWork is the default number of bucket entries migrated from the
// retiring table to the current table on every map operation while a
// rehash is in progress; DefaultConfig().RehashWorkQuantum mirrors
// this value.
const rehashWork = 128

const initialCapacity = 4

// bucketTable is one generation of the hash table's backing array: a
// power-of-two number of singly-linked bucket chains.
type bucketTable struct {
	buckets []*entry
	mask    uint64
	size    int
}

func newBucketTable(capacity uint64) *bucketTable {
	return &bucketTable{buckets: make([]*entry, capacity), mask: capacity - 1}
}

// hashTable is a progressively-resizing, open-chained, key-addressed
// map from key bytes to *entry. It never blocks: a resize is spread
// over many subsequent operations (spec §4.1). loadFactor and
// rehashWork are runtime tunables (Config.ResizeLoadFactor,
// Config.RehashWorkQuantum), not just documentation constants.
type hashTable struct {
	current  *bucketTable
	retiring *bucketTable
	cursor   uint64

	loadFactor int
	rehashWork int
}

func newHashTable(cfg *Config) *hashTable {
	return &hashTable{
		current:    newBucketTable(initialCapacity),
		loadFactor: cfg.ResizeLoadFactor,
		rehashWork: cfg.RehashWorkQuantum,
	}
}

func hashKey(key []byte) uint64 {
	h := fnv.New64a()
	h.Write(key)
	return h.Sum64()
}

func (t *hashTable) size() int {
	n := t.current.size
	if t.retiring != nil {
		n += t.retiring.size
	}
	return n
}

func (t *hashTable) rehashing() bool {
	return t.retiring != nil
}

// lookup searches both generations for key.
func (t *hashTable) lookup(key []byte) *entry {
	t.progress()
	if e := lookupIn(t.current, key); e != nil {
		return e
	}
	if t.retiring != nil {
		return lookupIn(t.retiring, key)
	}
	return nil
}

func lookupIn(bt *bucketTable, key []byte) *entry {
	if bt == nil {
		return nil
	}
	h := hashKey(key)
	for e := bt.buckets[h&bt.mask]; e != nil; e = e.next {
		if bytes.Equal(e.key, key) {
			return e
		}
	}
	return nil
}

// insert adds e to the current table. Callers must first confirm the
// key is absent (lookup); insert does not check.
func (t *hashTable) insert(e *entry) {
	t.progress()
	h := hashKey(e.key)
	idx := h & t.current.mask
	e.next = t.current.buckets[idx]
	t.current.buckets[idx] = e
	t.current.size++
	t.maybeStartResize()
}

// pop removes and returns the entry for key, or nil if absent.
func (t *hashTable) pop(key []byte) *entry {
	t.progress()
	if e := popFrom(t.current, key); e != nil {
		return e
	}
	if t.retiring != nil {
		return popFrom(t.retiring, key)
	}
	return nil
}

func popFrom(bt *bucketTable, key []byte) *entry {
	if bt == nil {
		return nil
	}
	h := hashKey(key)
	idx := h & bt.mask
	var prev *entry
	for e := bt.buckets[idx]; e != nil; e = e.next {
		if bytes.Equal(e.key, key) {
			if prev == nil {
				bt.buckets[idx] = e.next
			} else {
				prev.next = e.next
			}
			e.next = nil
			bt.size--
			return e
		}
		prev = e
	}
	return nil
}

// keys returns every key currently stored, across both generations.
func (t *hashTable) keys() [][]byte {
	var out [][]byte
	for _, bt := range []*bucketTable{t.current, t.retiring} {
		if bt == nil {
			continue
		}
		for _, head := range bt.buckets {
			for e := head; e != nil; e = e.next {
				out = append(out, e.key)
			}
		}
	}
	return out
}

func (t *hashTable) maybeStartResize() {
	if t.rehashing() {
		return
	}
	if float64(t.current.size)/float64(len(t.current.buckets)) < float64(t.loadFactor) {
		return
	}
	t.retiring = t.current
	t.current = newBucketTable(uint64(len(t.retiring.buckets)) * 2)
	t.cursor = 0
}

// progress performs up to t.rehashWork units of incremental migration
// from retiring into current. Called at the top of every operation so
// no single call ever does more than a bounded amount of extra work.
func (t *hashTable) progress() {
	if t.retiring == nil {
		return
	}
	moved := 0
	for moved < t.rehashWork && t.retiring.size > 0 {
		for t.cursor < uint64(len(t.retiring.buckets)) && t.retiring.buckets[t.cursor] == nil {
			t.cursor++
		}
		if t.cursor >= uint64(len(t.retiring.buckets)) {
			break
		}
		e := t.retiring.buckets[t.cursor]
		t.retiring.buckets[t.cursor] = e.next
		t.retiring.size--

		h := hashKey(e.key)
		idx := h & t.current.mask
		e.next = t.current.buckets[idx]
		t.current.buckets[idx] = e
		t.current.size++
		moved++
	}
	if t.retiring.size == 0 {
		t.retiring = nil
		t.cursor = 0
	}
}
