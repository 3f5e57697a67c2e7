package dispatcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plazza/plazza/internal/codec"
	"github.com/plazza/plazza/internal/config"
	"github.com/plazza/plazza/internal/ipc"
	"github.com/plazza/plazza/internal/pizza"
	"github.com/plazza/plazza/internal/plazzalog"
)

func newTestDispatcher() *Dispatcher {
	return New(Options{Config: config.Default()}, plazzalog.New(), nil)
}

func testChannelPair(t *testing.T) (parent, child *ipc.Channel) {
	t.Helper()
	parent, child, err := ipc.TestPair()
	require.NoError(t, err)
	t.Cleanup(func() {
		parent.Close()
		child.Close()
	})
	return parent, child
}

func TestDistributeUsesExistingIdleWorker(t *testing.T) {
	d := newTestDispatcher()
	parent, child := testChannelPair(t)
	w, exited := newTestWorker(1, 2, parent)
	defer close(exited)
	d.workers = append(d.workers, w)

	job := pizza.Job{Type: pizza.Margarita, Size: pizza.S, CookTimeMs: 1000}
	require.NoError(t, d.Distribute(job))
	assert.Equal(t, 1, w.inFlightCount)

	msg, err := child.Receive()
	require.NoError(t, err)
	assert.Equal(t, codec.PizzaPrefix+codec.EncodeJob(job), msg)
}

func TestSelectLockedPrefersZeroLoadWorker(t *testing.T) {
	d := newTestDispatcher()
	p1, _ := testChannelPair(t)
	p2, _ := testChannelPair(t)
	w1, e1 := newTestWorker(1, 2, p1)
	w2, e2 := newTestWorker(2, 2, p2)
	defer close(e1)
	defer close(e2)
	w1.inFlightCount = 3
	d.workers = []*workerRecord{w1, w2}

	got := d.selectLocked()
	assert.Same(t, w2, got)
}

func TestSelectLockedSkipsFullWorkers(t *testing.T) {
	d := newTestDispatcher()
	p1, _ := testChannelPair(t)
	w1, e1 := newTestWorker(1, 1, p1)
	defer close(e1)
	w1.inFlightCount = w1.maxCapacity()
	d.workers = []*workerRecord{w1}

	assert.Nil(t, d.selectLocked())
}

func TestDrainCompletionsCreditsInFlight(t *testing.T) {
	d := newTestDispatcher()
	parent, child := testChannelPair(t)
	w, exited := newTestWorker(1, 2, parent)
	defer close(exited)
	w.inFlightCount = 2
	d.workers = []*workerRecord{w}

	completed := pizza.Job{Type: pizza.Regina, Size: pizza.L, CookTimeMs: 2000, Cooked: true}
	require.NoError(t, child.Send(codec.CompletedPrefix+codec.EncodeJob(completed)))

	d.mu.Lock()
	d.drainCompletionsLocked()
	d.mu.Unlock()

	assert.Equal(t, 1, w.inFlightCount)
}

func TestPollStatusReturnsRealStatusWhenAnswered(t *testing.T) {
	d := newTestDispatcher()
	parent, child := testChannelPair(t)
	w, exited := newTestWorker(5, 2, parent)
	defer close(exited)

	want := pizza.Status{WorkerID: 5, ActiveCooks: 1, TotalCooks: 2, QueuedJobs: 1, MaxCapacity: 4, IngredientCounts: [9]int{5, 5, 5, 5, 5, 5, 5, 5, 5}}
	go func() {
		for {
			msg, err := child.Receive()
			if err != nil {
				return
			}
			if msg == codec.StatusRequest {
				child.Send(codec.StatusPrefix + codec.EncodeStatus(want))
				return
			}
		}
	}()

	got := d.pollStatus(w)
	assert.Equal(t, want, got)
}

func TestPollStatusFallsBackToSyntheticOnTimeout(t *testing.T) {
	d := newTestDispatcher()
	d.opts.Config.StatusPollAttempts = 2
	d.opts.Config.StatusPollIntervalMs = 1
	parent, _ := testChannelPair(t)
	w, exited := newTestWorker(7, 3, parent)
	defer close(exited)

	got := d.pollStatus(w)
	assert.Equal(t, pizza.MaxCapacityFor(3), got.MaxCapacity)
	assert.Equal(t, 0, got.ActiveCooks)
	assert.Equal(t, pizza.InitialStock, got.IngredientCounts[0])
}

func TestReapDeadWorkersRemovesExited(t *testing.T) {
	d := newTestDispatcher()
	p1, _ := testChannelPair(t)
	p2, _ := testChannelPair(t)
	w1, e1 := newTestWorker(1, 1, p1)
	w2, e2 := newTestWorker(2, 1, p2)
	defer close(e2)
	close(e1)
	d.workers = []*workerRecord{w1, w2}

	d.mu.Lock()
	d.reapDeadWorkersLocked()
	d.mu.Unlock()

	require.Len(t, d.workers, 1)
	assert.Equal(t, 2, d.workers[0].id)
}
