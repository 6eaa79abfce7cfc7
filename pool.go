package kvstore

import "github.com/JekaMas/workerpool"

// destroyPool offloads destruction of detached Entries whose owned
// ZSet is large enough that freeing it inline would stall the event
// loop (spec §4.5). Grounded on the teacher's goroutine-plus-channel
// background-work pattern (circbuff.go's handleReduce, conctable.go's
// handleReduce) but implemented atop a real fixed-size worker pool
// library rather than a single hand-rolled goroutine, since the pool's
// FIFO-task/fixed-worker-count/drain-on-shutdown shape is exactly what
// spec §4.5 asks for.
type destroyPool struct {
	wp *workerpool.WorkerPool
}

func newDestroyPool(workers int) *destroyPool {
	return &destroyPool{wp: workerpool.New(workers)}
}

// submit hands e to the pool. e must already be detached from every
// index (spec §4.5 "manual lifetime of detached Entry handed to
// worker" — ownership transfers here, the keyspace holds no further
// reference).
func (p *destroyPool) submit(e *entry) {
	p.wp.Submit(func() {
		e.zset = nil
		e.str = nil
	})
}

// shutdown waits for every queued task to drain before returning
// (spec §4.5/§5 "broadcast + join").
func (p *destroyPool) shutdown() {
	p.wp.StopWait()
}
