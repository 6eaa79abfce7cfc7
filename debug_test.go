package kvstore

import (
	"strings"
	"testing"
)

// TestKeyspaceDebugDump checks that DebugDump produces a non-empty
// structural rendering of the keyspace, the way a test failure would
// use it to show what state the keyspace was in (spec §3/§9 debug
// tooling, grounded on the teacher's Str() debug helpers).
func TestKeyspaceDebugDump(t *testing.T) {
	ks := newTestKeyspace()
	run(ks, 0, "SET", "k", "hello")
	run(ks, 0, "ZADD", "z", "1.5", "alice")

	dump := ks.DebugDump()
	if dump == "" {
		t.Log("expected non-empty debug dump")
		t.FailNow()
	}
	if !strings.Contains(dump, "alice") {
		t.Log("expected debug dump to mention zset member, got:\n", dump)
		t.FailNow()
	}
}
