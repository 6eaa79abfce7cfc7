package kvstore

import (
	"fmt"
	"log"
	"time"

	"golang.org/x/sys/unix"
)

// Server is the single-threaded event loop: it multiplexes the
// listening socket and every client connection via epoll, advances
// each ready connection's protocol state machine, and runs the timer
// pass (spec §4.9). No teacher analogue exists for this file (beelog
// is a library, not a server); it is built directly from spec.md's
// invariants.
type Server struct {
	cfg    *Config
	logger *log.Logger

	listenFD int
	epfd     int

	ks    *keyspace
	pool  *destroyPool
	idle  *idleList
	conns map[int]*conn

	start   time.Time
	running bool
}

// NewServer wires the keyspace, worker pool and idle list together but
// does not yet bind or listen; call Run to do that.
func NewServer(cfg *Config, logger *log.Logger) *Server {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	pool := newDestroyPool(cfg.WorkerCount)
	return &Server{
		cfg:    cfg,
		logger: logger,
		ks:     newKeyspace(cfg, pool),
		pool:   pool,
		idle:   newIdleList(),
		conns:  make(map[int]*conn),
		start:  time.Now(),
	}
}

// Run binds the listener, enters the event loop, and blocks until a
// SHUTDOWN command (returns nil) or a fatal setup/poll error (spec
// §4.9, §7 "bind/listen/poll failures as fatal").
func (s *Server) Run() error {
	fd, err := listen(s.cfg.ListenAddr)
	if err != nil {
		return err
	}
	s.listenFD = fd
	defer unix.Close(s.listenFD)

	epfd, err := unix.EpollCreate1(0)
	if err != nil {
		return fmt.Errorf("kvstore: epoll_create1: %w", err)
	}
	s.epfd = epfd
	defer unix.Close(s.epfd)

	if err := s.epollAdd(s.listenFD, unix.EPOLLIN); err != nil {
		return fmt.Errorf("kvstore: epoll_ctl(listener): %w", err)
	}

	s.running = true
	defer s.pool.shutdown()

	events := make([]unix.EpollEvent, 256)
	for s.running {
		timeout := s.nextWakeMillis()
		n, err := unix.EpollWait(s.epfd, events, timeout)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return fmt.Errorf("kvstore: epoll_wait: %w", err)
		}

		for i := 0; i < n; i++ {
			fd := int(events[i].Fd)
			if fd == s.listenFD {
				continue
			}
			s.handleReady(fd, events[i].Events)
		}

		s.runTimers()

		if s.acceptReady(events[:n]) {
			s.acceptNew()
		}
	}
	return nil
}

func (s *Server) acceptReady(events []unix.EpollEvent) bool {
	for _, ev := range events {
		if int(ev.Fd) == s.listenFD {
			return true
		}
	}
	return false
}

func (s *Server) epollAdd(fd int, events uint32) error {
	return unix.EpollCtl(s.epfd, unix.EPOLL_CTL_ADD, fd, &unix.EpollEvent{Fd: int32(fd), Events: events})
}

func (s *Server) epollMod(fd int, events uint32) error {
	return unix.EpollCtl(s.epfd, unix.EPOLL_CTL_MOD, fd, &unix.EpollEvent{Fd: int32(fd), Events: events})
}

func (s *Server) epollDel(fd int) {
	_ = unix.EpollCtl(s.epfd, unix.EPOLL_CTL_DEL, fd, nil)
}

// nextWakeMillis computes the epoll_wait timeout: the sooner of the
// idle list's head deadline, the TTL heap's root deadline, or the
// configured default, clamped to >= 0 (spec §4.9).
func (s *Server) nextWakeMillis() int {
	now := time.Now()
	nowMu := nowMicros(s.start)
	wake := now.Add(s.cfg.DefaultWakeInterval)

	if front := s.idle.front(); front != nil {
		deadline := s.start.Add(time.Duration(front.idleStart)*time.Microsecond + s.cfg.IdleTimeout)
		if deadline.Before(wake) {
			wake = deadline
		}
	}
	if item, ok := s.ks.heap.peek(); ok {
		deadlineDur := time.Duration(item.deadlineMicros-nowMu) * time.Microsecond
		deadline := now.Add(deadlineDur)
		if deadline.Before(wake) {
			wake = deadline
		}
	}

	ms := int(time.Until(wake).Milliseconds())
	if ms < 0 {
		ms = 0
	}
	return ms
}

// acceptNew accepts at most one new connection per iteration (spec
// §4.9).
func (s *Server) acceptNew() {
	fd, ok, err := acceptOne(s.listenFD)
	if err != nil {
		s.logger.Printf("accept: %v", err)
		return
	}
	if !ok {
		return
	}
	c := newConn(fd)
	c.idleNode = s.idle.pushTail(c, nowMicros(s.start))
	s.conns[fd] = c
	if err := s.epollAdd(fd, unix.EPOLLIN); err != nil {
		s.logger.Printf("epoll_ctl(add %d): %v", fd, err)
		s.closeConn(c)
	}
}

func (s *Server) handleReady(fd int, events uint32) {
	c, ok := s.conns[fd]
	if !ok {
		return
	}
	s.idle.touch(c.idleNode, nowMicros(s.start))

	if events&(unix.EPOLLHUP|unix.EPOLLERR) != 0 {
		c.state = stateClosing
	} else if events&unix.EPOLLIN != 0 && c.state == stateReading {
		s.advanceReading(c)
	} else if events&unix.EPOLLOUT != 0 && c.state == stateWriting {
		s.advanceWriting(c)
	}

	switch c.state {
	case stateClosing:
		s.closeConn(c)
	case stateWriting:
		_ = s.epollMod(fd, unix.EPOLLOUT)
	case stateReading:
		_ = s.epollMod(fd, unix.EPOLLIN)
	}
}

// advanceReading implements the READING state of spec §4.7: read what
// is available, then hand off to drainPipeline to dispatch and drain
// complete frames one at a time.
func (s *Server) advanceReading(c *conn) {
	eof, err := c.fillRead()
	if err != nil {
		s.logger.Printf("read(fd=%d): %v", c.fd, err)
		c.state = stateClosing
		return
	}

	s.drainPipeline(c)

	if c.state == stateReading && eof {
		c.state = stateClosing
	}
}

// drainPipeline dispatches every complete frame currently buffered,
// serializing each response into the write buffer and draining it
// before moving to the next frame — so the write buffer only ever
// needs to hold one in-flight response, however many requests were
// pipelined in a single read (spec §4.7: "dispatch it, serialize the
// response..., transition to WRITING, attempt to drain, and on full
// drain return to READING"). If a drain blocks on EAGAIN, the loop
// stops with the connection left in WRITING; remaining buffered frames
// are picked up by the next call (from advanceWriting, once the
// connection's write side reports ready again).
func (s *Server) drainPipeline(c *conn) {
	for {
		if c.state == stateReading {
			payload, consumed, perr := tryReadFrame(c.readBuf[:], c.readFill)
			if perr != nil {
				c.state = stateClosing
				return
			}
			if consumed == 0 {
				return
			}

			argv, aerr := parseRequest(payload)
			if aerr != nil {
				c.state = stateClosing
				return
			}

			resp, shutdown := dispatch(s.ks, argv, nowMicros(s.start))
			if err := c.queueResponse(resp); err != nil {
				c.state = stateClosing
				return
			}
			c.consumeFrame(consumed)

			if shutdown {
				s.running = false
			}
			c.state = stateWriting
		}

		drained, err := c.drainWrite()
		if err != nil {
			s.logger.Printf("write(fd=%d): %v", c.fd, err)
			c.state = stateClosing
			return
		}
		if !drained {
			return
		}
		c.state = stateReading
	}
}

// advanceWriting implements the WRITING state: drain unsent bytes,
// then resume dispatching any frames left buffered from a pipelined
// read once fully flushed (spec §4.7).
func (s *Server) advanceWriting(c *conn) {
	s.drainPipeline(c)
}

func (s *Server) closeConn(c *conn) {
	s.epollDel(c.fd)
	s.idle.remove(c.idleNode)
	delete(s.conns, c.fd)
	c.close()
}

// runTimers implements spec §4.9's timer pass: evict idle connections,
// then pop and destroy up to TTLBatchLimit expired entries.
func (s *Server) runTimers() {
	now := nowMicros(s.start)
	deadlineOffset := s.cfg.IdleTimeout.Microseconds()

	for {
		front := s.idle.front()
		if front == nil || front.idleStart+deadlineOffset > now {
			break
		}
		s.closeConn(front.conn)
	}

	for i := 0; i < s.cfg.TTLBatchLimit; i++ {
		item, ok := s.ks.heap.peek()
		if !ok || item.deadlineMicros > now {
			break
		}
		e := s.ks.table.pop(item.ent.key)
		if e != item.ent {
			panic("kvstore: TTL heap entry does not match hash table entry")
		}
		s.ks.detachTTL(e)
		s.ks.destroy(e)
	}
}
