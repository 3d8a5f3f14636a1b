package pool

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/exascience/parfor/concurrency"
)

func newTestPool(t *testing.T, size int) *Pool {
	p := New(size)
	t.Cleanup(p.Close)
	return p
}

// completes fails the test if f does not return within d.
func completes(t *testing.T, d time.Duration, f func()) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		defer close(done)
		f()
	}()
	select {
	case <-done:
	case <-time.After(d):
		t.Fatalf("did not complete within %v", d)
	}
}

func TestSubmitRunsEveryTaskOnce(t *testing.T) {
	p := newTestPool(t, 3)
	for _, n := range []int{0, 1, 2, 3, 4, 7, 64, 1000} {
		counts := make([]int32, n)
		require.NoError(t, p.Submit(n, func(i int) error {
			atomic.AddInt32(&counts[i], 1)
			return nil
		}))
		for i, c := range counts {
			require.Equal(t, int32(1), c, "n=%d index=%d", n, i)
		}
	}
}

func TestSubmitSingleTaskRunsInline(t *testing.T) {
	p := newTestPool(t, 2)
	ran := false
	require.NoError(t, p.Submit(1, func(i int) error {
		assert.Equal(t, 0, i)
		ran = true
		return nil
	}))
	assert.True(t, ran)
	assert.Equal(t, int64(0), p.Stats().Batches)
}

func TestSubmitUsesWorkers(t *testing.T) {
	p := newTestPool(t, 3)
	var running, peak atomic.Int32
	require.NoError(t, p.Submit(4, func(int) error {
		now := running.Add(1)
		for {
			old := peak.Load()
			if now <= old || peak.CompareAndSwap(old, now) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		running.Add(-1)
		return nil
	}))
	assert.GreaterOrEqual(t, peak.Load(), int32(2))
}

func TestSubmitLowestIndexErrorWins(t *testing.T) {
	p := newTestPool(t, 4)
	var ran atomic.Int32
	err := p.Submit(8, func(i int) error {
		ran.Add(1)
		switch i {
		case 2:
			time.Sleep(30 * time.Millisecond)
			return fmt.Errorf("task %d", i)
		case 5:
			return fmt.Errorf("task %d", i)
		}
		return nil
	})
	require.Error(t, err)
	assert.Equal(t, "task 2", err.Error())
	assert.Equal(t, int32(8), ran.Load())
}

func TestSubmitPanicAfterSiblings(t *testing.T) {
	p := newTestPool(t, 4)
	var ran atomic.Int32
	errBoom := errors.New("boom")
	assert.Panics(t, func() {
		_ = p.Submit(6, func(i int) error {
			defer ran.Add(1)
			if i == 3 {
				panic(errBoom)
			}
			if i == 1 {
				return errors.New("ignored in favour of the panic")
			}
			time.Sleep(5 * time.Millisecond)
			return nil
		})
	})
	assert.Equal(t, int32(6), ran.Load())

	// The pool is still usable.
	var count atomic.Int32
	require.NoError(t, p.Submit(10, func(int) error {
		count.Add(1)
		return nil
	}))
	assert.Equal(t, int32(10), count.Load())
}

func TestNestedSubmitCompletes(t *testing.T) {
	const fanOut = 8
	p := newTestPool(t, 2)
	var leaves atomic.Int64
	completes(t, 10*time.Second, func() {
		assert.NoError(t, p.Submit(fanOut, func(int) error {
			return p.Submit(fanOut, func(int) error {
				return p.Submit(fanOut, func(int) error {
					time.Sleep(100 * time.Microsecond)
					leaves.Add(1)
					return nil
				})
			})
		}))
	})
	assert.Equal(t, int64(fanOut*fanOut*fanOut), leaves.Load())
}

func TestNestedSubmitWithoutIdleWorkers(t *testing.T) {
	// The only worker blocks inside the outer batch until the caller
	// has started too, so its nested batch finds no idle worker.
	const size = 1
	p := newTestPool(t, size)
	var started sync.WaitGroup
	started.Add(size + 1)
	var inner atomic.Int32
	completes(t, 10*time.Second, func() {
		assert.NoError(t, p.Submit(size+1, func(int) error {
			started.Done()
			started.Wait()
			return p.Submit(4, func(int) error {
				inner.Add(1)
				return nil
			})
		}))
	})
	assert.Equal(t, int32(4*(size+1)), inner.Load())
	assert.GreaterOrEqual(t, p.Stats().InlineBatches, int64(1))
}

func TestNestedBatchLeavesQueue(t *testing.T) {
	// Both participants of the outer batch block, so its third task
	// stays unclaimed while the first participant runs a nested batch
	// that queues up behind it.
	p := newTestPool(t, 1)
	var arrivals atomic.Int32
	var started sync.WaitGroup
	started.Add(2)
	release := make(chan struct{})
	completes(t, 10*time.Second, func() {
		assert.NoError(t, p.Submit(3, func(int) error {
			switch arrivals.Add(1) {
			case 1:
				started.Done()
				started.Wait()
				defer close(release)
				if err := p.Submit(4, func(int) error { return nil }); err != nil {
					return err
				}
				p.mu.Lock()
				defer p.mu.Unlock()
				assert.Equal(t, 1, p.pending.Length())
				if p.pending.Length() > 0 {
					assert.Equal(t, 3, p.pending.Peek().(*batch).n)
				}
			case 2:
				started.Done()
				<-release
			}
			return nil
		}))
	})
	p.mu.Lock()
	defer p.mu.Unlock()
	assert.Equal(t, 0, p.pending.Length())
}

func TestClosedPoolRunsOnCaller(t *testing.T) {
	p := New(2)
	p.Close()
	p.Close()
	var count atomic.Int32
	require.NoError(t, p.Submit(5, func(int) error {
		count.Add(1)
		return nil
	}))
	assert.Equal(t, int32(5), count.Load())
	assert.Equal(t, int64(1), p.Stats().InlineBatches)
}

func TestGrow(t *testing.T) {
	p := newTestPool(t, 1)
	assert.Equal(t, 1, p.Size())
	p.Grow(4)
	assert.Equal(t, 4, p.Size())
	p.Grow(2)
	assert.Equal(t, 4, p.Size())
}

func TestStats(t *testing.T) {
	p := newTestPool(t, 2)
	require.NoError(t, p.Submit(3, func(int) error { return nil }))
	require.NoError(t, p.Submit(5, func(int) error { return nil }))
	s := p.Stats()
	assert.Equal(t, 2, s.Workers)
	assert.Equal(t, int64(2), s.Batches)
	assert.Equal(t, int64(8), s.Tasks)
	assert.Eventually(t, func() bool { return p.Stats().Active == 0 }, time.Second, time.Millisecond)
}

func TestDefault(t *testing.T) {
	assert.Same(t, Default(), Default())
	assert.GreaterOrEqual(t, Default().Size(), 1)
}

// withFreshDefault makes the next call to Default create a new pool.
func withFreshDefault(t *testing.T) {
	reset := func() {
		if defaultPool != nil {
			defaultPool.Close()
		}
		defaultPool, defaultOnce = nil, sync.Once{}
		defaultPoolSize.Store(0)
	}
	reset()
	t.Cleanup(reset)
}

func TestSetDefaultSize(t *testing.T) {
	withFreshDefault(t)
	saved := concurrency.NumCPUs()
	t.Cleanup(func() { concurrency.Set(saved) })
	concurrency.Set(8)

	SetDefaultSize(2)
	assert.Equal(t, 2, DefaultSize())
	assert.Equal(t, 2, Default().Size())
	concurrency.Set(16)
	assert.Equal(t, 2, Default().Size())

	SetDefaultSize(0)
	assert.Equal(t, 15, DefaultSize())
	assert.Equal(t, 15, Default().Size())
}

func TestDefaultTracksConcurrency(t *testing.T) {
	withFreshDefault(t)
	saved := concurrency.NumCPUs()
	t.Cleanup(func() { concurrency.Set(saved) })
	concurrency.Set(3)

	assert.Equal(t, 2, Default().Size())
	concurrency.Set(6)
	assert.Equal(t, 5, Default().Size())
	concurrency.Set(2)
	assert.Equal(t, 5, Default().Size())
}

func BenchmarkSubmit(b *testing.B) {
	p := New(0)
	defer p.Close()
	data := make([]float64, 1<<16)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = p.Submit(16, func(t int) error {
			for j := t; j < len(data); j += 16 {
				data[j] += 1
			}
			return nil
		})
	}
}
