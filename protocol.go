package kvstore

import (
	"encoding/binary"
	"errors"
	"math"
)

// Wire framing and tag constants (spec §4.6). Every message, request or
// response, is a 4-byte little-endian length prefix followed by that
// many payload bytes; L must never exceed maxMessageBytes.
const (
	frameHeaderBytes = 4
	maxMessageBytes  = 4096
	maxArgs          = 1024
)

// respTag identifies the shape of a serialized response value.
type respTag byte

const (
	tagNil respTag = 0
	tagErr respTag = 1
	tagStr respTag = 2
	tagInt respTag = 3
	tagDbl respTag = 4
	tagArr respTag = 5
)

// Error codes for the ERR response tag (spec §4.8).
const (
	errUnknown int32 = 1
	errTooBig  int32 = 2
	errType    int32 = 3
	errArg     int32 = 4
)

// errProtocolFatal marks a malformed-frame condition that must close
// the connection (spec §7, family 1).
var errProtocolFatal = errors.New("kvstore: fatal protocol error")

// tryReadFrame attempts to extract one complete length-prefixed frame
// from buf[:filled]. It returns the frame's payload, the number of
// bytes consumed from buf (header + payload); if buf does not yet hold
// a complete frame it returns consumed == 0 and a nil error. A payload
// length exceeding maxMessageBytes is a fatal protocol error.
func tryReadFrame(buf []byte, filled int) (payload []byte, consumed int, err error) {
	if filled < frameHeaderBytes {
		return nil, 0, nil
	}
	length := binary.LittleEndian.Uint32(buf[:frameHeaderBytes])
	if length > maxMessageBytes {
		return nil, 0, errProtocolFatal
	}
	total := frameHeaderBytes + int(length)
	if filled < total {
		return nil, 0, nil
	}
	return buf[frameHeaderBytes:total], total, nil
}

// putFrameHeader writes a 4-byte little-endian length prefix for a
// payload of the given length.
func putFrameHeader(dst []byte, length int) {
	binary.LittleEndian.PutUint32(dst, uint32(length))
}

// parseRequest decodes a frame payload into its argument vector (spec
// §4.6): argc:u32LE, then argc length-prefixed byte strings. Trailing
// garbage after the last argument, or argc > maxArgs, is a fatal
// protocol error.
func parseRequest(payload []byte) ([][]byte, error) {
	if len(payload) < 4 {
		return nil, errProtocolFatal
	}
	argc := binary.LittleEndian.Uint32(payload[:4])
	if argc > maxArgs {
		return nil, errProtocolFatal
	}
	off := 4
	argv := make([][]byte, 0, argc)
	for i := uint32(0); i < argc; i++ {
		if off+4 > len(payload) {
			return nil, errProtocolFatal
		}
		alen := binary.LittleEndian.Uint32(payload[off : off+4])
		off += 4
		if uint64(off)+uint64(alen) > uint64(len(payload)) {
			return nil, errProtocolFatal
		}
		argv = append(argv, payload[off:off+int(alen)])
		off += int(alen)
	}
	if off != len(payload) {
		return nil, errProtocolFatal
	}
	return argv, nil
}

// encodeRequest serializes an argv into a request payload, the inverse
// of parseRequest. Used by tests and by any in-process client.
func encodeRequest(argv [][]byte) []byte {
	size := 4
	for _, a := range argv {
		size += 4 + len(a)
	}
	buf := make([]byte, size)
	binary.LittleEndian.PutUint32(buf[:4], uint32(len(argv)))
	off := 4
	for _, a := range argv {
		binary.LittleEndian.PutUint32(buf[off:off+4], uint32(len(a)))
		off += 4
		off += copy(buf[off:], a)
	}
	return buf
}

// respWriter builds a tagged response payload, supporting nested
// arrays via a reserve/patch scheme: beginArray reserves a 4-byte count
// slot that endArray later fills in once every child has been
// serialized (spec §4.6 "patch a reserved 4-byte slot after the tag").
type respWriter struct {
	buf []byte
}

func (w *respWriter) Bytes() []byte { return w.buf }

func (w *respWriter) writeNil() {
	w.buf = append(w.buf, byte(tagNil))
}

func (w *respWriter) writeErr(code int32, msg string) {
	w.buf = append(w.buf, byte(tagErr))
	w.appendInt32(code)
	w.appendLenPrefixed([]byte(msg))
}

func (w *respWriter) writeStr(s []byte) {
	w.buf = append(w.buf, byte(tagStr))
	w.appendLenPrefixed(s)
}

func (w *respWriter) writeInt(v int64) {
	w.buf = append(w.buf, byte(tagInt))
	w.appendUint64(uint64(v))
}

func (w *respWriter) writeDbl(v float64) {
	w.buf = append(w.buf, byte(tagDbl))
	w.appendUint64(math.Float64bits(v))
}

// beginArray appends the ARR tag and a placeholder count, returning the
// offset of that placeholder for endArray to patch.
func (w *respWriter) beginArray() int {
	w.buf = append(w.buf, byte(tagArr))
	slot := len(w.buf)
	w.buf = append(w.buf, 0, 0, 0, 0)
	return slot
}

func (w *respWriter) endArray(slot int, n int) {
	binary.LittleEndian.PutUint32(w.buf[slot:slot+4], uint32(n))
}

func (w *respWriter) appendInt32(v int32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(v))
	w.buf = append(w.buf, b[:]...)
}

func (w *respWriter) appendUint64(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

func (w *respWriter) appendLenPrefixed(data []byte) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(len(data)))
	w.buf = append(w.buf, b[:]...)
	w.buf = append(w.buf, data...)
}

// respValue is an in-memory parsed response, used by tests (and any
// future in-process client) to verify round-trips without re-deriving
// the wire format by hand.
type respValue struct {
	tag  respTag
	i    int64
	f    float64
	s    []byte
	code int32
	arr  []respValue
}

func parseResponse(payload []byte) (respValue, error) {
	v, rest, err := parseOneResponse(payload)
	if err != nil {
		return respValue{}, err
	}
	if len(rest) != 0 {
		return respValue{}, errProtocolFatal
	}
	return v, nil
}

func parseOneResponse(b []byte) (respValue, []byte, error) {
	if len(b) < 1 {
		return respValue{}, nil, errProtocolFatal
	}
	tag := respTag(b[0])
	b = b[1:]
	switch tag {
	case tagNil:
		return respValue{tag: tag}, b, nil
	case tagErr:
		if len(b) < 8 {
			return respValue{}, nil, errProtocolFatal
		}
		code := int32(binary.LittleEndian.Uint32(b[:4]))
		mlen := binary.LittleEndian.Uint32(b[4:8])
		b = b[8:]
		if uint64(mlen) > uint64(len(b)) {
			return respValue{}, nil, errProtocolFatal
		}
		return respValue{tag: tag, code: code, s: b[:mlen]}, b[mlen:], nil
	case tagStr:
		if len(b) < 4 {
			return respValue{}, nil, errProtocolFatal
		}
		slen := binary.LittleEndian.Uint32(b[:4])
		b = b[4:]
		if uint64(slen) > uint64(len(b)) {
			return respValue{}, nil, errProtocolFatal
		}
		return respValue{tag: tag, s: b[:slen]}, b[slen:], nil
	case tagInt:
		if len(b) < 8 {
			return respValue{}, nil, errProtocolFatal
		}
		return respValue{tag: tag, i: int64(binary.LittleEndian.Uint64(b[:8]))}, b[8:], nil
	case tagDbl:
		if len(b) < 8 {
			return respValue{}, nil, errProtocolFatal
		}
		bits := binary.LittleEndian.Uint64(b[:8])
		return respValue{tag: tag, f: math.Float64frombits(bits)}, b[8:], nil
	case tagArr:
		if len(b) < 4 {
			return respValue{}, nil, errProtocolFatal
		}
		n := binary.LittleEndian.Uint32(b[:4])
		b = b[4:]
		arr := make([]respValue, 0, n)
		for i := uint32(0); i < n; i++ {
			var v respValue
			var err error
			v, b, err = parseOneResponse(b)
			if err != nil {
				return respValue{}, nil, err
			}
			arr = append(arr, v)
		}
		return respValue{tag: tag, arr: arr}, b, nil
	default:
		return respValue{}, nil, errProtocolFatal
	}
}
