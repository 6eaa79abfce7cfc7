package kvstore

import (
	"math/rand"
	"testing"
)

// buildOrderedZSet wraps the low-level avlTree with a byte-key znode
// so tests can drive rank/nthInOrder/offset through the same zset.add
// path the command layer uses (spec testable property #3: rank and
// nthInOrder/offset are mutual inverses).
func buildOrderedZSet(n int, rng *rand.Rand) (*zset, []float64) {
	z := newZSet()
	scores := make([]float64, n)
	for i := 0; i < n; i++ {
		s := float64(rng.Intn(n * 4))
		scores[i] = s
		z.add([]byte(randName(rng)), s)
	}
	return z, scores
}

func randName(rng *rand.Rand) string {
	b := make([]byte, 8)
	for i := range b {
		b[i] = byte('a' + rng.Intn(26))
	}
	return string(b)
}

func TestAVLRankNthInOrderInverse(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	z, _ := buildOrderedZSet(500, rng)

	if z.tree.root == nil {
		t.Log("expected non-empty tree")
		t.FailNow()
	}

	n := nodeCount(z.tree.root)
	for k := 0; k < n; k++ {
		node := nthInOrder(z.tree.root, k)
		if node == nil {
			t.Log("nthInOrder(", k, ") returned nil, tree has", n, "nodes")
			t.FailNow()
		}
		if rank(node) != k {
			t.Log("rank(nthInOrder(", k, ")) =", rank(node), ", expected", k)
			t.FailNow()
		}
	}
}

func TestAVLOffsetMatchesInOrderWalk(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	z, _ := buildOrderedZSet(300, rng)

	n := nodeCount(z.tree.root)
	first := nthInOrder(z.tree.root, 0)
	cur := first
	for k := 1; k < n; k++ {
		next := z.tree.offset(cur, 1)
		want := nthInOrder(z.tree.root, k)
		if next != want {
			t.Log("offset mismatch at k =", k)
			t.FailNow()
		}
		cur = next
	}
	if z.tree.offset(cur, 1) != nil {
		t.Log("offset past the last node should be nil")
		t.FailNow()
	}
}

func TestAVLStaysBalancedUnderRandomInsertDelete(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	z := newZSet()
	names := make([]string, 0, 2000)

	for i := 0; i < 2000; i++ {
		name := randName(rng)
		z.add([]byte(name), float64(rng.Intn(10000)))
		names = append(names, name)

		if i%50 == 0 && z.tree.root != nil {
			h := z.tree.root.height
			n := nodeCount(z.tree.root)
			// AVL height bound: h <= 1.44*log2(n+2) - 0.328, loosened to
			// 2*log2(n+2) to avoid floating point fuss in a unit test.
			if n > 0 && float64(h) > 2*log2(float64(n+2)) {
				t.Log("tree height", h, "exceeds AVL bound for", n, "nodes")
				t.FailNow()
			}
		}
	}

	for i := 0; i < 1000; i++ {
		name := names[rng.Intn(len(names))]
		z.pop([]byte(name))

		if i%50 == 0 && z.tree.root != nil {
			h := z.tree.root.height
			n := nodeCount(z.tree.root)
			if float64(h) > 2*log2(float64(n+2)) {
				t.Log("tree height", h, "exceeds AVL bound for", n, "nodes after deletes")
				t.FailNow()
			}
		}
	}
}

func log2(x float64) float64 {
	n := 0.0
	for x > 1 {
		x /= 2
		n++
	}
	return n
}
