package kvstore

import (
	"errors"

	"golang.org/x/sys/unix"
)

// connState is a connection's position in the per-connection protocol
// state machine (spec §4.7).
type connState int8

const (
	stateReading connState = iota
	stateWriting
	stateClosing
)

// maxBufferBytes is sized to hold one maximum-length message plus its
// 4-byte frame header (spec §3).
const maxBufferBytes = maxMessageBytes + frameHeaderBytes

// conn is the per-peer connection record: fd, protocol state, fixed
// read/write buffers and their fill levels, and the connection's slot
// in the idle list (spec §3). Its buffer-with-cursor shape is grounded
// on the teacher's circbuff.go (a fixed backing array plus explicit
// fill-level bookkeeping), adapted from a circular buffer to a simple
// shift-down-on-consume buffer since frames here are read once, not
// replayed.
type conn struct {
	fd    int
	state connState

	readBuf   [maxBufferBytes]byte
	readFill  int
	writeBuf  [maxBufferBytes]byte
	writeFill int
	writeSent int

	idleNode *idleNode
}

func newConn(fd int) *conn {
	return &conn{fd: fd, state: stateReading}
}

// wantsWrite reports whether the loop should arm POLLOUT/EPOLLOUT for
// this connection.
func (c *conn) wantsWrite() bool {
	return c.state == stateWriting
}

// fillRead reads as much as is available into the read buffer without
// blocking, returning io.EOF-equivalent via eof=true on a zero-length
// read. Retries EINTR in place and stops on EAGAIN (spec §4.7, §7).
func (c *conn) fillRead() (eof bool, err error) {
	for {
		room := len(c.readBuf) - c.readFill
		if room == 0 {
			return false, nil
		}
		n, rerr := unix.Read(c.fd, c.readBuf[c.readFill:c.readFill+room])
		if rerr != nil {
			if rerr == unix.EINTR {
				continue
			}
			if rerr == unix.EAGAIN || rerr == unix.EWOULDBLOCK {
				return false, nil
			}
			return false, rerr
		}
		if n == 0 {
			return true, nil
		}
		c.readFill += n
		if n < room {
			return false, nil
		}
	}
}

// consumeFrame shifts the tail of the read buffer down by n bytes,
// discarding the frame that was just dispatched (spec §4.7).
func (c *conn) consumeFrame(n int) {
	remaining := c.readFill - n
	copy(c.readBuf[:remaining], c.readBuf[n:c.readFill])
	c.readFill = remaining
}

// queueResponse appends a framed response payload to the write buffer.
// Returns a write-buffer-overflow error if the framed message would not fit (this
// cannot happen given maxMessageBytes, but is checked defensively).
func (c *conn) queueResponse(payload []byte) error {
	total := frameHeaderBytes + len(payload)
	if c.writeFill+total > len(c.writeBuf) {
		return errors.New("kvstore: write buffer overflow")
	}
	putFrameHeader(c.writeBuf[c.writeFill:], len(payload))
	copy(c.writeBuf[c.writeFill+frameHeaderBytes:], payload)
	c.writeFill += total
	return nil
}

// drainWrite flushes as much of the write buffer as possible without
// blocking. On a full drain it resets the write cursors and returns
// true.
func (c *conn) drainWrite() (drained bool, err error) {
	for c.writeSent < c.writeFill {
		n, werr := unix.Write(c.fd, c.writeBuf[c.writeSent:c.writeFill])
		if werr != nil {
			if werr == unix.EINTR {
				continue
			}
			if werr == unix.EAGAIN || werr == unix.EWOULDBLOCK {
				return false, nil
			}
			return false, werr
		}
		c.writeSent += n
	}
	c.writeFill = 0
	c.writeSent = 0
	return true, nil
}

func (c *conn) close() {
	unix.Close(c.fd)
}
