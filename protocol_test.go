package kvstore

import (
	"bytes"
	"testing"
)

// TestFrameRoundTrip checks that a request encoded then parsed back
// yields the original argv (spec testable property #6: codec
// round-trip).
func TestFrameRoundTrip(t *testing.T) {
	argv := [][]byte{[]byte("SET"), []byte("foo"), []byte("bar")}
	payload := encodeRequest(argv)

	var framed bytes.Buffer
	header := make([]byte, frameHeaderBytes)
	putFrameHeader(header, len(payload))
	framed.Write(header)
	framed.Write(payload)

	got, consumed, err := tryReadFrame(framed.Bytes(), framed.Len())
	if err != nil {
		t.Log(err.Error())
		t.FailNow()
	}
	if consumed != framed.Len() {
		t.Log("consumed", consumed, ", expected", framed.Len())
		t.FailNow()
	}

	parsed, err := parseRequest(got)
	if err != nil {
		t.Log(err.Error())
		t.FailNow()
	}
	if len(parsed) != len(argv) {
		t.Log("got", len(parsed), "args, expected", len(argv))
		t.FailNow()
	}
	for i := range argv {
		if !bytes.Equal(parsed[i], argv[i]) {
			t.Log("arg", i, "=", string(parsed[i]), ", expected", string(argv[i]))
			t.FailNow()
		}
	}
}

func TestTryReadFramePartialAndOversized(t *testing.T) {
	buf := make([]byte, 2)
	_, consumed, err := tryReadFrame(buf, 2)
	if err != nil || consumed != 0 {
		t.Log("expected incomplete-header to report no frame, got consumed", consumed, "err", err)
		t.FailNow()
	}

	header := make([]byte, frameHeaderBytes)
	putFrameHeader(header, 10)
	_, consumed, err = tryReadFrame(header, len(header))
	if err != nil || consumed != 0 {
		t.Log("expected incomplete-payload to report no frame, got consumed", consumed, "err", err)
		t.FailNow()
	}

	putFrameHeader(header, maxMessageBytes+1)
	_, _, err = tryReadFrame(header, len(header))
	if err != errProtocolFatal {
		t.Log("expected errProtocolFatal for oversized length, got", err)
		t.FailNow()
	}
}

// TestResponseArrayFraming checks the reserve-then-patch nested-array
// encoding round-trips through a parser that does not know the count
// ahead of time (spec testable property #7).
func TestResponseArrayFraming(t *testing.T) {
	var w respWriter
	slot := w.beginArray()
	w.writeStr([]byte("alpha"))
	w.writeDbl(1.5)
	w.writeStr([]byte("beta"))
	w.writeDbl(2.5)
	w.endArray(slot, 4)

	v, err := parseResponse(w.Bytes())
	if err != nil {
		t.Log(err.Error())
		t.FailNow()
	}
	if v.tag != tagArr || len(v.arr) != 4 {
		t.Log("got tag", v.tag, "with", len(v.arr), "elements, expected 4-element array")
		t.FailNow()
	}
	if string(v.arr[0].s) != "alpha" || v.arr[1].f != 1.5 {
		t.Log("unexpected array contents:", v.arr[0], v.arr[1])
		t.FailNow()
	}
}

func TestResponseTagsRoundTrip(t *testing.T) {
	cases := []func(w *respWriter){
		func(w *respWriter) { w.writeNil() },
		func(w *respWriter) { w.writeErr(errType, "bad") },
		func(w *respWriter) { w.writeStr([]byte("hi")) },
		func(w *respWriter) { w.writeInt(-42) },
		func(w *respWriter) { w.writeDbl(3.14) },
	}
	for _, c := range cases {
		var w respWriter
		c(&w)
		if _, err := parseResponse(w.Bytes()); err != nil {
			t.Log(err.Error())
			t.FailNow()
		}
	}
}
