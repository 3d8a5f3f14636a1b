package pool

import (
	"sync"
	"sync/atomic"

	"github.com/exascience/parfor/internal"
)

// A batch is one Submit call. Its outcomes are written at the index
// of the task that produced them, so the join can pick the lowest one
// regardless of completion order.
type batch struct {
	n       int
	task    func(i int) error
	next    atomic.Int64
	helpers atomic.Int32
	wg      sync.WaitGroup

	errs   []error
	panics []interface{}
}

func newBatch(n int, task func(i int) error) *batch {
	b := &batch{
		n:      n,
		task:   task,
		errs:   make([]error, n),
		panics: make([]interface{}, n),
	}
	b.wg.Add(n)
	return b
}

func (b *batch) exhausted() bool {
	return b.next.Load() >= int64(b.n)
}

func (b *batch) claim() (int, bool) {
	i := int(b.next.Add(1) - 1)
	return i, i < b.n
}

// help claims and executes tasks until none is left. A nil worker is
// the submitting goroutine.
func (b *batch) help(w *worker) {
	i, ok := b.claim()
	if !ok {
		return
	}
	if w != nil {
		b.helpers.Add(1)
		w.active.Store(true)
		defer w.active.Store(false)
	}
	for ; ok; i, ok = b.claim() {
		b.execute(i)
	}
}

func (b *batch) execute(i int) {
	defer func() {
		if p := recover(); p != nil {
			b.panics[i] = internal.WrapPanic(p)
		}
		b.wg.Done()
	}()
	b.errs[i] = b.task(i)
}

// result must only be called after wg.Wait.
func (b *batch) result() error {
	for _, p := range b.panics {
		if p != nil {
			panic(p)
		}
	}
	for _, err := range b.errs {
		if err != nil {
			return err
		}
	}
	return nil
}
