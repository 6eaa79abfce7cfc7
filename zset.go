package kvstore

import "bytes"

// znode is a single (score, member) tuple living in both of a ZSet's
// indices: the order-statistic tree (via node) and the name-keyed hash
// table (via the zset.byName map, which zset.go owns directly rather
// than embedding a second intrusive node — the teacher's flexible-array
// ZNode layout is replaced per spec.md §9 with an ordinarily-allocated
// name buffer).
type znode struct {
	score float64
	name  []byte
	node  *treeNode
}

// addResult reports what ZSet.add did.
type addResult int8

const (
	resultInserted addResult = iota
	resultUpdated
)

// zset is a sorted set of (score, member) tuples with unique members,
// ordered by (score ascending; name ascending bytewise on ties) (spec
// §4.3).
type zset struct {
	tree   avlTree
	byName map[string]*znode
}

func newZSet() *zset {
	return &zset{byName: make(map[string]*znode)}
}

func (z *zset) len() int {
	return len(z.byName)
}

// less reports whether (sa, na) sorts before (sb, nb).
func less(sa float64, na []byte, sb float64, nb []byte) bool {
	if sa != sb {
		return sa < sb
	}
	return bytes.Compare(na, nb) < 0
}

// add inserts member name with score, or updates its score if already
// present with a different one. A no-op (still Updated) if the score is
// unchanged.
func (z *zset) add(name []byte, score float64) addResult {
	if zn, ok := z.byName[string(name)]; ok {
		if zn.score == score {
			return resultUpdated
		}
		z.tree.delete(zn.node)
		zn.score = score
		zn.node = z.treeInsert(zn)
		return resultUpdated
	}

	zn := &znode{score: score, name: append([]byte(nil), name...)}
	zn.node = z.treeInsert(zn)
	z.byName[string(name)] = zn
	return resultInserted
}

// treeInsert locates the ordered slot for zn via descent, attaches a
// fresh treeNode there, and returns it.
func (z *zset) treeInsert(zn *znode) *treeNode {
	n := &treeNode{znode: zn}
	if z.tree.root == nil {
		z.tree.insert(nil, false, n)
		return n
	}
	cur := z.tree.root
	for {
		goLeft := less(zn.score, zn.name, cur.znode.score, cur.znode.name)
		var next *treeNode
		if goLeft {
			next = cur.left
		} else {
			next = cur.right
		}
		if next == nil {
			z.tree.insert(cur, goLeft, n)
			return n
		}
		cur = next
	}
}

func (z *zset) lookup(name []byte) *znode {
	return z.byName[string(name)]
}

// pop removes name from both indices, returning the detached node.
func (z *zset) pop(name []byte) *znode {
	zn, ok := z.byName[string(name)]
	if !ok {
		return nil
	}
	z.tree.delete(zn.node)
	delete(z.byName, string(name))
	zn.node = nil
	return zn
}

// query returns the smallest tuple (s, n) with (s, n) >= (score, name)
// in lexicographic order, descending the tree and recording the
// last node found to be >= target as the candidate (spec §4.3).
func (z *zset) query(score float64, name []byte) *znode {
	var candidate *treeNode
	cur := z.tree.root
	for cur != nil {
		if less(cur.znode.score, cur.znode.name, score, name) {
			cur = cur.right
		} else {
			candidate = cur
			cur = cur.left
		}
	}
	if candidate == nil {
		return nil
	}
	return candidate.znode
}

// offset delegates to the tree's rank-based jump.
func (z *zset) offset(zn *znode, k int) *znode {
	n := z.tree.offset(zn.node, k)
	if n == nil {
		return nil
	}
	return n.znode
}
