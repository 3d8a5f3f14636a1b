// Package pool provides a bounded, reusable pool of worker goroutines
// with fork-join dispatch.
//
// A batch submitted to a pool consists of a number of independent
// tasks identified by their index. Task indices are claimed one at a
// time, both by the submitting goroutine and by any idle worker that
// picks up the batch. The submitting goroutine keeps claiming until no
// unclaimed task is left, and only then waits for the tasks that other
// goroutines have already claimed. Since every claimed task is being
// executed by a live goroutine, and no participant ever waits for a
// worker to become available, Submit is safe to call from within a
// task of the same pool: a nested batch always completes, in the worst
// case with its submitter executing all of its tasks.
package pool

import (
	"sync"
	"sync/atomic"

	"github.com/eapache/queue"

	"github.com/exascience/parfor/concurrency"
	"github.com/exascience/parfor/internal/logging"
)

// A Pool is a bounded set of long-lived worker goroutines.
//
// The zero Pool is not valid; use New or Default.
type Pool struct {
	mu      sync.Mutex
	cond    *sync.Cond
	pending *queue.Queue // of *batch
	workers []*worker
	size    atomic.Int64
	closed  bool

	batches       atomic.Int64
	tasks         atomic.Int64
	inlineBatches atomic.Int64
}

// Stats is a snapshot of pool activity.
type Stats struct {
	// Workers is the number of worker goroutines.
	Workers int
	// Active is the number of workers executing a task right now.
	Active int
	// Batches counts the batches dispatched through the pool.
	Batches int64
	// Tasks counts the tasks of those batches.
	Tasks int64
	// InlineBatches counts the batches whose tasks were all executed
	// by the submitting goroutine, because no worker was free to help.
	InlineBatches int64
}

type worker struct {
	active atomic.Bool
}

// New returns a pool with size workers. If size is <= 0,
// concurrency.NumCPUs() - 1 is used instead, with a minimum of 1.
func New(size int) *Pool {
	p := &Pool{pending: queue.New()}
	p.cond = sync.NewCond(&p.mu)
	p.Grow(defaultSize(size))
	return p
}

func defaultSize(size int) int {
	if size <= 0 {
		size = max(1, concurrency.NumCPUs()-1)
	}
	return size
}

var (
	defaultPool     *Pool
	defaultOnce     sync.Once
	defaultPoolSize atomic.Int64
)

// SetDefaultSize fixes the number of workers of the default pool. If
// size is <= 0, the default pool tracks concurrency.NumCPUs() - 1
// instead. Since pools never shrink, a size below the current one
// only takes effect if SetDefaultSize is called before the default
// pool is first used.
func SetDefaultSize(size int) {
	defaultPoolSize.Store(int64(max(0, size)))
	if size > 0 {
		Default()
	}
}

// DefaultSize returns the number of workers the default pool is
// supposed to have: the size passed to SetDefaultSize, or else
// concurrency.NumCPUs() - 1, with a minimum of 1.
func DefaultSize() int {
	return defaultSize(int(defaultPoolSize.Load()))
}

// Default returns the process-wide pool. It is created on first use
// with DefaultSize() workers, and grown to DefaultSize() on every
// call, so that it follows a raised concurrency unless its size has
// been fixed with SetDefaultSize.
func Default() *Pool {
	defaultOnce.Do(func() {
		defaultPool = New(DefaultSize())
	})
	defaultPool.Grow(DefaultSize())
	return defaultPool
}

// Size returns the number of workers.
func (p *Pool) Size() int {
	return int(p.size.Load())
}

// Grow adds workers until the pool has at least size of them. Pools
// never shrink. Grow has no effect on a closed pool.
func (p *Pool) Grow(size int) {
	if int64(size) <= p.size.Load() {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed || size <= len(p.workers) {
		return
	}
	from := len(p.workers)
	for i := from; i < size; i++ {
		w := &worker{}
		p.workers = append(p.workers, w)
		go p.run(w)
	}
	p.size.Store(int64(len(p.workers)))
	logging.Logger().Debug("pool grown", "from", from, "to", size)
}

// Close stops the workers once no batch is pending. Tasks of batches
// submitted after Close are executed by their submitter. Calling Close
// more than once is safe.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	p.cond.Broadcast()
	logging.Logger().Debug("pool closed", "workers", len(p.workers))
}

// Stats returns a snapshot of the pool's activity counters.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	workers := p.workers
	p.mu.Unlock()
	s := Stats{
		Workers:       len(workers),
		Batches:       p.batches.Load(),
		Tasks:         p.tasks.Load(),
		InlineBatches: p.inlineBatches.Load(),
	}
	for _, w := range workers {
		if w.active.Load() {
			s.Active++
		}
	}
	return s
}

func (p *Pool) run(w *worker) {
	for {
		b := p.next()
		if b == nil {
			return
		}
		b.help(w)
	}
}

// next blocks until a batch with unclaimed tasks is pending, and
// returns it. It returns nil once the pool is closed and drained.
func (p *Pool) next() *batch {
	p.mu.Lock()
	defer p.mu.Unlock()
	for {
		p.reapLocked()
		if p.pending.Length() > 0 {
			return p.pending.Peek().(*batch)
		}
		if p.closed {
			return nil
		}
		p.cond.Wait()
	}
}

// reapLocked drops exhausted batches from the front of the queue.
func (p *Pool) reapLocked() {
	for p.pending.Length() > 0 && p.pending.Peek().(*batch).exhausted() {
		p.pending.Remove()
	}
}

// dropLocked removes b from the queue, keeping the order of the
// other batches. A nested batch may sit behind an outer batch that
// still has unclaimed tasks, where reapLocked cannot reach it.
func (p *Pool) dropLocked(b *batch) {
	for i, n := 0, p.pending.Length(); i < n; i++ {
		if x := p.pending.Remove(); x != b {
			p.pending.Add(x)
		}
	}
}

/*
Submit executes task for every index in [0, numTasks) and returns only
when all of them have terminated.

If numTasks is 1, the task is executed on the calling goroutine
without involving the pool. Otherwise the calling goroutine
participates in executing the batch, together with as many idle
workers as are available. No guarantee is made about which goroutine
executes which index, nor about the order in which tasks complete.

Submit returns the non-nil error of the task with the lowest index,
once all tasks have terminated. If one or more tasks panic, the
panics are recovered, all other tasks still run to completion, and
Submit eventually panics with the recovered value of the task with
the lowest index. A panic takes precedence over any error, even an
error of a task with a lower index.
*/
func (p *Pool) Submit(numTasks int, task func(i int) error) error {
	switch {
	case numTasks <= 0:
		return nil
	case numTasks == 1:
		return task(0)
	}
	b := newBatch(numTasks, task)
	p.batches.Add(1)
	p.tasks.Add(int64(numTasks))

	p.mu.Lock()
	if !p.closed {
		p.pending.Add(b)
		for i := 1; i < min(numTasks, len(p.workers)+1); i++ {
			p.cond.Signal()
		}
	}
	p.mu.Unlock()

	b.help(nil)
	b.wg.Wait()

	p.mu.Lock()
	p.dropLocked(b)
	p.reapLocked()
	p.mu.Unlock()

	if b.helpers.Load() == 0 {
		p.inlineBatches.Add(1)
	}
	return b.result()
}
