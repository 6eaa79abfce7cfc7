package kvstore

// idleNode is a connection's slot in the idle list, ordered least
// recently active first. Grounded on the teacher's listNode/List shape
// (structure.go, list.go: a minimal prev/next pair plus a payload
// pointer), extended to doubly-linked since the connection state
// machine must detach from the middle of the list on every I/O event,
// not just from the head.
type idleNode struct {
	prev, next *idleNode
	conn       *conn
	idleStart  int64 // microseconds, monotonic
}

// idleList is a doubly-linked list (nil-terminated head and tail, not
// circular) of every live connection, ordered by idleStart ascending (spec §3/§4.7: "least-recent first"). On every
// I/O event for a connection, its node is detached and re-appended with
// a refreshed timestamp.
type idleList struct {
	head, tail *idleNode
	length     int
}

func newIdleList() *idleList {
	return &idleList{}
}

func (l *idleList) len() int {
	return l.length
}

// pushTail appends a new node for c at time now, returning the node so
// the connection can remember its own list position.
func (l *idleList) pushTail(c *conn, now int64) *idleNode {
	n := &idleNode{conn: c, idleStart: now}
	l.appendNode(n)
	return n
}

func (l *idleList) appendNode(n *idleNode) {
	n.prev = l.tail
	n.next = nil
	if l.tail != nil {
		l.tail.next = n
	} else {
		l.head = n
	}
	l.tail = n
	l.length++
}

// remove detaches n from the list. n must currently be a member.
func (l *idleList) remove(n *idleNode) {
	if n.prev != nil {
		n.prev.next = n.next
	} else {
		l.head = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	} else {
		l.tail = n.prev
	}
	n.prev, n.next = nil, nil
	l.length--
}

// touch detaches n and re-appends it at the tail with a refreshed
// timestamp, reflecting that its connection just had an I/O event.
func (l *idleList) touch(n *idleNode, now int64) {
	l.remove(n)
	n.idleStart = now
	l.appendNode(n)
}

// front returns the least-recently-active node, or nil if the list is
// empty.
func (l *idleList) front() *idleNode {
	return l.head
}
