package kvstore

import "github.com/davecgh/go-spew/spew"

// DebugDump renders the entire keyspace — every key, its value and its
// TTL bookkeeping — as a human-readable string. Grounded on the
// teacher's Str() methods (avl.go, circbuff.go, conctable.go: a
// debug-only structural dump of the whole collection), rendered here
// with go-spew instead of a hand-rolled BFS formatter since the
// structure being dumped (hash table generations, AVL trees, heap) is
// deeper and more varied than the teacher's single aux index.
func (k *keyspace) DebugDump() string {
	return spew.Sdump(k)
}
