package kvstore

import "time"

// keyspace glues the hash table, the TTL heap and the destruction pool
// into the single indexed collection of Entries the command dispatcher
// operates on (spec §3 "Entry ... glues hash node, key bytes,
// value/zset, heap slot"). It is owned exclusively by the event-loop
// goroutine; no locking is required (spec §5).
type keyspace struct {
	table *hashTable
	heap  *ttlHeap
	pool  *destroyPool
	cfg   *Config
}

func newKeyspace(cfg *Config, pool *destroyPool) *keyspace {
	return &keyspace{
		table: newHashTable(cfg),
		heap:  newTTLHeap(),
		pool:  pool,
		cfg:   cfg,
	}
}

func (k *keyspace) lookup(key []byte) *entry {
	return k.table.lookup(key)
}

// set upserts key as a STRING entry. Returns an error if key exists
// with a non-STRING value.
func (k *keyspace) set(key, val []byte) error {
	if e := k.table.lookup(key); e != nil {
		if e.kind != kindString {
			return errWrongType
		}
		e.str = cloneBytes(val)
		return nil
	}
	k.table.insert(newStringEntry(key, val))
	return nil
}

// del removes key, detaching it from the heap first if it carries a
// TTL, and schedules its destruction (spec §4.8 DEL).
func (k *keyspace) del(key []byte) bool {
	e := k.table.pop(key)
	if e == nil {
		return false
	}
	k.detachTTL(e)
	k.destroy(e)
	return true
}

func (k *keyspace) detachTTL(e *entry) {
	if e.hasTTL() {
		k.heap.remove(e)
	}
}

// destroy frees e, offloading to the worker pool when it owns a large
// ZSet (spec §4.5) and freeing inline otherwise.
func (k *keyspace) destroy(e *entry) {
	if k.pool != nil && e.largeZSet(k.cfg.LargeZSetThreshold) {
		k.pool.submit(e)
		return
	}
	// inline: drop our only reference, the GC reclaims the rest.
	e.zset = nil
	e.str = nil
}

func (k *keyspace) keys() [][]byte {
	return k.table.keys()
}

func (k *keyspace) exists(keys [][]byte) int {
	seen := make(map[string]bool, len(keys))
	count := 0
	for _, key := range keys {
		s := string(key)
		if seen[s] {
			continue
		}
		seen[s] = true
		if k.table.lookup(key) != nil {
			count++
		}
	}
	return count
}

// expire sets or clears key's TTL. ms < 0 clears it. Returns false if
// key does not exist.
func (k *keyspace) expire(key []byte, ms int64, nowMicros int64) bool {
	e := k.table.lookup(key)
	if e == nil {
		return false
	}
	if ms < 0 {
		k.detachTTL(e)
		return true
	}
	deadline := nowMicros + ms*1000
	if e.hasTTL() {
		k.heap.update(e, deadline)
	} else {
		k.heap.push(deadline, e)
	}
	return true
}

// pttl returns the remaining TTL in milliseconds: -2 if key is missing,
// -1 if it has no TTL, else the nonnegative remainder.
func (k *keyspace) pttl(key []byte, nowMicros int64) int64 {
	e := k.table.lookup(key)
	if e == nil {
		return -2
	}
	if !e.hasTTL() {
		return -1
	}
	item := k.heap.items[e.heapIndex]
	remaining := (item.deadlineMicros - nowMicros) / 1000
	if remaining < 0 {
		remaining = 0
	}
	return remaining
}

// zadd creates z if missing, then adds/updates member m at score s.
func (k *keyspace) zadd(key []byte, score float64, member []byte) (addResult, error) {
	e := k.table.lookup(key)
	if e == nil {
		e = newZSetEntry(key)
		k.table.insert(e)
	} else if e.kind != kindZSet {
		return 0, errWrongType
	}
	return e.zset.add(member, score), nil
}

func (k *keyspace) zset(key []byte) (*zset, error) {
	e := k.table.lookup(key)
	if e == nil {
		return nil, nil
	}
	if e.kind != kindZSet {
		return nil, errWrongType
	}
	return e.zset, nil
}

// nowMicros returns monotonic microseconds since process start, the
// epoch the TTL heap's deadlines are relative to (spec §3).
func nowMicros(start time.Time) int64 {
	return time.Since(start).Microseconds()
}
