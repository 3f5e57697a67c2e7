package cookpool

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPoolRunsAllTasks(t *testing.T) {
	p := New(3)
	defer p.Stop()

	var done int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		p.Enqueue(func() {
			defer wg.Done()
			atomic.AddInt32(&done, 1)
		})
	}
	wg.Wait()
	assert.Equal(t, int32(20), atomic.LoadInt32(&done))
}

func TestPoolNeverExceedsSize(t *testing.T) {
	const size = 2
	p := New(size)
	defer p.Stop()

	var concurrent int32
	var maxSeen int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		p.Enqueue(func() {
			defer wg.Done()
			n := atomic.AddInt32(&concurrent, 1)
			for {
				max := atomic.LoadInt32(&maxSeen)
				if n <= max || atomic.CompareAndSwapInt32(&maxSeen, max, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&concurrent, -1)
		})
	}
	wg.Wait()
	assert.LessOrEqual(t, atomic.LoadInt32(&maxSeen), int32(size))
}

func TestStopDrainsQueuedTasks(t *testing.T) {
	p := New(1)
	var ran int32
	for i := 0; i < 5; i++ {
		p.Enqueue(func() { atomic.AddInt32(&ran, 1) })
	}
	p.Stop()
	assert.Equal(t, int32(5), atomic.LoadInt32(&ran))
}
