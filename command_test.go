package kvstore

import (
	"bytes"
	"testing"
)

func newTestKeyspace() *keyspace {
	return newKeyspace(DefaultConfig(), nil)
}

func run(ks *keyspace, now int64, args ...string) respValue {
	argv := make([][]byte, len(args))
	for i, a := range args {
		argv[i] = []byte(a)
	}
	payload, _ := dispatch(ks, argv, now)
	v, err := parseResponse(payload)
	if err != nil {
		panic(err)
	}
	return v
}

func TestCommandSetGetDel(t *testing.T) {
	ks := newTestKeyspace()

	if v := run(ks, 0, "GET", "x"); v.tag != tagNil {
		t.Log("expected NIL before SET, got tag", v.tag)
		t.FailNow()
	}

	run(ks, 0, "SET", "x", "hello")
	v := run(ks, 0, "GET", "x")
	if v.tag != tagStr || !bytes.Equal(v.s, []byte("hello")) {
		t.Log("expected STR hello, got", v)
		t.FailNow()
	}

	v = run(ks, 0, "DEL", "x")
	if v.tag != tagInt || v.i != 1 {
		t.Log("expected INT 1 from DEL, got", v)
		t.FailNow()
	}
	v = run(ks, 0, "DEL", "x")
	if v.tag != tagInt || v.i != 0 {
		t.Log("expected INT 0 from DEL on missing key, got", v)
		t.FailNow()
	}
}

func TestCommandTypeErrorOnZSetKeyAsString(t *testing.T) {
	ks := newTestKeyspace()
	run(ks, 0, "ZADD", "z", "1.0", "member")

	v := run(ks, 0, "GET", "z")
	if v.tag != tagErr || v.code != errType {
		t.Log("expected ERR(TYPE) for GET on a zset key, got", v)
		t.FailNow()
	}
}

func TestCommandExpireAndPTTL(t *testing.T) {
	ks := newTestKeyspace()
	run(ks, 0, "SET", "k", "v")

	v := run(ks, 0, "PTTL", "k")
	if v.tag != tagInt || v.i != -1 {
		t.Log("expected PTTL -1 with no TTL set, got", v)
		t.FailNow()
	}

	v = run(ks, 0, "EXPIRE", "k", "5000")
	if v.tag != tagInt || v.i != 1 {
		t.Log("expected EXPIRE to return 1, got", v)
		t.FailNow()
	}

	v = run(ks, 2000000, "PTTL", "k")
	if v.tag != tagInt || v.i != 3000 {
		t.Log("expected PTTL ~3000ms remaining, got", v)
		t.FailNow()
	}

	v = run(ks, 0, "PTTL", "missing")
	if v.tag != tagInt || v.i != -2 {
		t.Log("expected PTTL -2 for missing key, got", v)
		t.FailNow()
	}
}

func TestCommandZAddZScoreZRem(t *testing.T) {
	ks := newTestKeyspace()

	v := run(ks, 0, "ZADD", "z", "1.5", "alice")
	if v.tag != tagInt || v.i != 1 {
		t.Log("expected 1 on first ZADD, got", v)
		t.FailNow()
	}
	v = run(ks, 0, "ZADD", "z", "1.5", "alice")
	if v.tag != tagInt || v.i != 0 {
		t.Log("expected 0 on ZADD with unchanged score, got", v)
		t.FailNow()
	}

	v = run(ks, 0, "ZSCORE", "z", "alice")
	if v.tag != tagDbl || v.f != 1.5 {
		t.Log("expected ZSCORE 1.5, got", v)
		t.FailNow()
	}

	v = run(ks, 0, "ZREM", "z", "alice")
	if v.tag != tagInt || v.i != 1 {
		t.Log("expected ZREM to return 1, got", v)
		t.FailNow()
	}
	v = run(ks, 0, "ZSCORE", "z", "alice")
	if v.tag != tagNil {
		t.Log("expected NIL after ZREM, got", v)
		t.FailNow()
	}
}

func TestCommandZQueryRespectsOffsetAndLimit(t *testing.T) {
	ks := newTestKeyspace()
	members := []string{"a", "b", "c", "d", "e"}
	for i, m := range members {
		run(ks, 0, "ZADD", "z", itoa(i), m)
	}

	v := run(ks, 0, "ZQUERY", "z", "0", "", "1", "2")
	if v.tag != tagArr || len(v.arr) != 4 {
		t.Log("expected 2 members (4 values incl. scores), got", v)
		t.FailNow()
	}
	if string(v.arr[0].s) != "b" || string(v.arr[2].s) != "c" {
		t.Log("expected b,c with offset=1 limit=2, got", v.arr[0].s, v.arr[2].s)
		t.FailNow()
	}
}

func TestCommandArgErrors(t *testing.T) {
	ks := newTestKeyspace()
	v := run(ks, 0, "SET", "onlyonearg")
	if v.tag != tagErr || v.code != errArg {
		t.Log("expected ERR(ARG) for SET with wrong arity, got", v)
		t.FailNow()
	}
	v = run(ks, 0, "NOSUCHCOMMAND")
	if v.tag != tagErr || v.code != errUnknown {
		t.Log("expected ERR(UNKNOWN), got", v)
		t.FailNow()
	}
}

func itoa(i int) string {
	digits := "0123456789"
	if i == 0 {
		return "0"
	}
	neg := i < 0
	if neg {
		i = -i
	}
	var b []byte
	for i > 0 {
		b = append([]byte{digits[i%10]}, b...)
		i /= 10
	}
	if neg {
		b = append([]byte{'-'}, b...)
	}
	return string(b)
}
