package kvstore

import (
	"fmt"
	"net"
	"strconv"

	"golang.org/x/sys/unix"
)

// listen opens, binds and listens on addr ("host:port") the way spec
// §6 requires: SO_REUSEADDR, backlog = SOMAXCONN, non-blocking after
// creation. Socket setup is named by spec.md §1 as an out-of-scope
// collaborator; it is still implemented here (a server has to bind
// somewhere) but kept to the minimum golang.org/x/sys/unix calls this
// needs, rather than elaborated with its own abstraction.
func listen(addr string) (fd int, err error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return -1, fmt.Errorf("kvstore: bad listen address %q: %w", addr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return -1, fmt.Errorf("kvstore: bad port %q: %w", portStr, err)
	}

	fd, err = unix.Socket(unix.AF_INET, unix.SOCK_STREAM, unix.IPPROTO_TCP)
	if err != nil {
		return -1, fmt.Errorf("kvstore: socket: %w", err)
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("kvstore: setsockopt SO_REUSEADDR: %w", err)
	}

	sa := &unix.SockaddrInet4{Port: port}
	if host != "" && host != "0.0.0.0" {
		ip := net.ParseIP(host).To4()
		if ip == nil {
			unix.Close(fd)
			return -1, fmt.Errorf("kvstore: bad IPv4 address %q", host)
		}
		copy(sa.Addr[:], ip)
	}
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("kvstore: bind: %w", err)
	}

	backlog := unix.SOMAXCONN
	if err := unix.Listen(fd, backlog); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("kvstore: listen: %w", err)
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("kvstore: set listener non-blocking: %w", err)
	}
	return fd, nil
}

// acceptOne accepts a single pending connection, if any, returning
// ok=false (no error) when none is pending. The accepted socket is set
// non-blocking before being handed back (spec §6).
func acceptOne(listenFD int) (fd int, ok bool, err error) {
	for {
		fd, _, err = unix.Accept(listenFD)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
				return -1, false, nil
			}
			return -1, false, err
		}
		if err := unix.SetNonblock(fd, true); err != nil {
			unix.Close(fd)
			return -1, false, err
		}
		return fd, true, nil
	}
}
