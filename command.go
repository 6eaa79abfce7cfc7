package kvstore

import (
	"strconv"
)

// dispatch parses argv[0] as a command name (ASCII case-insensitive,
// spec §4.8) and executes it against ks, returning the serialized
// response payload. A response exceeding maxMessageBytes is replaced
// wholesale with ERR(TOOBIG) (spec §4.8).
func dispatch(ks *keyspace, argv [][]byte, nowMicros int64) ([]byte, bool) {
	if len(argv) == 0 {
		return errResponse(errUnknown, "empty command"), false
	}
	name := asciiUpper(argv[0])

	var w respWriter
	shutdown := false

	switch name {
	case "GET":
		doGet(&w, ks, argv)
	case "SET":
		doSet(&w, ks, argv)
	case "DEL":
		doDel(&w, ks, argv)
	case "KEYS":
		doKeys(&w, ks, argv)
	case "EXISTS":
		doExists(&w, ks, argv)
	case "EXPIRE":
		doExpire(&w, ks, argv, nowMicros)
	case "PTTL":
		doPTTL(&w, ks, argv, nowMicros)
	case "ZADD":
		doZAdd(&w, ks, argv)
	case "ZREM":
		doZRem(&w, ks, argv)
	case "ZSCORE":
		doZScore(&w, ks, argv)
	case "ZQUERY":
		doZQuery(&w, ks, argv)
	case "COMMAND":
		doCommand(&w, argv)
	case "SHUTDOWN":
		w.writeStr([]byte("bye"))
		shutdown = true
	default:
		w.writeErr(errUnknown, "unknown command '"+string(argv[0])+"'")
	}

	out := w.Bytes()
	if len(out) > maxMessageBytes {
		return errResponse(errTooBig, "response too large"), shutdown
	}
	return out, shutdown
}

func errResponse(code int32, msg string) []byte {
	var w respWriter
	w.writeErr(code, msg)
	return w.Bytes()
}

// asciiUpper upper-cases s in the ASCII range only, matching spec
// §4.8's case-insensitive comparison without importing a Unicode-aware
// folding routine the spec's opaque-byte-keys model has no use for.
func asciiUpper(s []byte) string {
	out := make([]byte, len(s))
	for i, c := range s {
		if c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		out[i] = c
	}
	return string(out)
}

func argErr(w *respWriter, msg string) {
	w.writeErr(errArg, msg)
}

func doGet(w *respWriter, ks *keyspace, argv [][]byte) {
	if len(argv) != 2 {
		argErr(w, "GET requires 1 argument")
		return
	}
	e := ks.lookup(argv[1])
	if e == nil {
		w.writeNil()
		return
	}
	if e.kind != kindString {
		w.writeErr(errType, "key holds wrong value type")
		return
	}
	w.writeStr(e.str)
}

func doSet(w *respWriter, ks *keyspace, argv [][]byte) {
	if len(argv) != 3 {
		argErr(w, "SET requires 2 arguments")
		return
	}
	if err := ks.set(argv[1], argv[2]); err != nil {
		w.writeErr(errType, "key holds wrong value type")
		return
	}
	// spec.md's open question: SET returns NIL even on success, kept
	// as-is — a preserved product decision, not a defect.
	w.writeNil()
}

func doDel(w *respWriter, ks *keyspace, argv [][]byte) {
	if len(argv) != 2 {
		argErr(w, "DEL requires 1 argument")
		return
	}
	if ks.del(argv[1]) {
		w.writeInt(1)
	} else {
		w.writeInt(0)
	}
}

func doKeys(w *respWriter, ks *keyspace, argv [][]byte) {
	if len(argv) != 1 {
		argErr(w, "KEYS takes no arguments")
		return
	}
	keys := ks.keys()
	slot := w.beginArray()
	for _, k := range keys {
		w.writeStr(k)
	}
	w.endArray(slot, len(keys))
}

func doExists(w *respWriter, ks *keyspace, argv [][]byte) {
	if len(argv) < 2 {
		argErr(w, "EXISTS requires at least 1 argument")
		return
	}
	w.writeInt(int64(ks.exists(argv[1:])))
}

func doExpire(w *respWriter, ks *keyspace, argv [][]byte, now int64) {
	if len(argv) != 3 {
		argErr(w, "EXPIRE requires 2 arguments")
		return
	}
	ms, err := parseInt(argv[2])
	if err != nil {
		argErr(w, "invalid integer argument")
		return
	}
	if ks.expire(argv[1], ms, now) {
		w.writeInt(1)
	} else {
		w.writeInt(0)
	}
}

func doPTTL(w *respWriter, ks *keyspace, argv [][]byte, now int64) {
	if len(argv) != 2 {
		argErr(w, "PTTL requires 1 argument")
		return
	}
	w.writeInt(ks.pttl(argv[1], now))
}

func doZAdd(w *respWriter, ks *keyspace, argv [][]byte) {
	if len(argv) != 4 {
		argErr(w, "ZADD requires 3 arguments")
		return
	}
	score, err := parseScore(argv[2])
	if err != nil {
		argErr(w, "invalid score argument")
		return
	}
	res, zerr := ks.zadd(argv[1], score, argv[3])
	if zerr != nil {
		w.writeErr(errType, "key holds wrong value type")
		return
	}
	if res == resultInserted {
		w.writeInt(1)
	} else {
		w.writeInt(0)
	}
}

func doZRem(w *respWriter, ks *keyspace, argv [][]byte) {
	if len(argv) != 3 {
		argErr(w, "ZREM requires 2 arguments")
		return
	}
	z, err := ks.zset(argv[1])
	if err != nil {
		w.writeErr(errType, "key holds wrong value type")
		return
	}
	if z == nil {
		w.writeNil()
		return
	}
	if z.pop(argv[2]) != nil {
		w.writeInt(1)
	} else {
		w.writeInt(0)
	}
}

func doZScore(w *respWriter, ks *keyspace, argv [][]byte) {
	if len(argv) != 3 {
		argErr(w, "ZSCORE requires 2 arguments")
		return
	}
	z, err := ks.zset(argv[1])
	if err != nil {
		w.writeErr(errType, "key holds wrong value type")
		return
	}
	if z == nil {
		w.writeNil()
		return
	}
	zn := z.lookup(argv[2])
	if zn == nil {
		w.writeNil()
		return
	}
	w.writeDbl(zn.score)
}

func doZQuery(w *respWriter, ks *keyspace, argv [][]byte) {
	if len(argv) != 6 {
		argErr(w, "ZQUERY requires 5 arguments")
		return
	}
	score, err := parseScore(argv[2])
	if err != nil {
		argErr(w, "invalid score argument")
		return
	}
	offset, err := parseInt(argv[4])
	if err != nil {
		argErr(w, "invalid offset argument")
		return
	}
	limit, err := parseInt(argv[5])
	if err != nil {
		argErr(w, "invalid limit argument")
		return
	}

	z, zerr := ks.zset(argv[1])
	if zerr != nil {
		w.writeErr(errType, "key holds wrong value type")
		return
	}

	var results []*znode
	if z != nil {
		zn := z.query(score, argv[3])
		for zn != nil && offset > 0 {
			zn = z.offset(zn, 1)
			offset--
		}
		for zn != nil && int64(len(results)) < limit {
			results = append(results, zn)
			zn = z.offset(zn, 1)
		}
	}

	slot := w.beginArray()
	for _, zn := range results {
		w.writeStr(zn.name)
		w.writeDbl(zn.score)
	}
	w.endArray(slot, len(results)*2)
}

func doCommand(w *respWriter, argv [][]byte) {
	if len(argv) < 1 || len(argv) > 2 {
		argErr(w, "COMMAND takes 0 or 1 arguments")
		return
	}
	w.writeStr([]byte("GET SET DEL KEYS EXISTS EXPIRE PTTL ZADD ZREM ZSCORE ZQUERY COMMAND SHUTDOWN"))
}

// parseInt parses a base-10 signed 64-bit integer with no trailing
// garbage (spec §4.8).
func parseInt(b []byte) (int64, error) {
	return strconv.ParseInt(string(b), 10, 64)
}

// parseScore parses a float64, rejecting NaN and any trailing garbage
// (spec §4.8); ParseFloat itself already rejects trailing garbage.
func parseScore(b []byte) (float64, error) {
	f, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return 0, err
	}
	if f != f { // NaN
		return 0, errArgNaN
	}
	return f, nil
}

var errArgNaN = &argParseError{"NaN score not allowed"}

type argParseError struct{ msg string }

func (e *argParseError) Error() string { return e.msg }
