package kitchen

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plazza/plazza/internal/codec"
	"github.com/plazza/plazza/internal/ipc"
	"github.com/plazza/plazza/internal/pizza"
	"github.com/plazza/plazza/internal/plazzalog"
)

func localChannels(t *testing.T) (parent, child *ipc.Channel) {
	t.Helper()
	parent, child, err := ipc.TestPair()
	require.NoError(t, err)
	t.Cleanup(func() {
		parent.Close()
		child.Close()
	})
	return parent, child
}

func fastOptions() Options {
	o := DefaultOptions()
	o.IdleTimeout = 50 * time.Millisecond
	o.RestockPeriod = 20 * time.Millisecond
	o.BusyTickSleep = time.Millisecond
	o.IdleTickSleep = 2 * time.Millisecond
	return o
}

func TestCookAndComplete(t *testing.T) {
	parent, child := localChannels(t)
	log := plazzalog.New()
	k := New(1, 2, 1.0, child, fastOptions(), log, nil)

	job := pizza.Job{Type: pizza.Margarita, Size: pizza.S, CookTimeMs: 5}
	require.NoError(t, parent.Send(codec.PizzaPrefix+codec.EncodeJob(job)))

	done := make(chan struct{})
	go func() { k.Run(); close(done) }()

	var completed pizza.Job
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		msg, err := parent.Receive()
		require.NoError(t, err)
		if msg != "" && hasPrefix(msg, codec.CompletedPrefix) {
			completed, err = codec.DecodeJob(msg[len(codec.CompletedPrefix):])
			require.NoError(t, err)
			break
		}
		time.Sleep(time.Millisecond)
	}

	assert.True(t, completed.Cooked)
	assert.Equal(t, pizza.Margarita, completed.Type)

	<-done
}

func TestStatusRequestRoundTrip(t *testing.T) {
	parent, child := localChannels(t)
	log := plazzalog.New()
	k := New(2, 3, 1.0, child, fastOptions(), log, nil)

	done := make(chan struct{})
	go func() { k.Run(); close(done) }()

	require.NoError(t, parent.Send(codec.StatusRequest))

	var status pizza.Status
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		msg, err := parent.Receive()
		require.NoError(t, err)
		if msg != "" && hasPrefix(msg, codec.StatusPrefix) {
			status, err = codec.DecodeStatus(msg[len(codec.StatusPrefix):])
			require.NoError(t, err)
			break
		}
		time.Sleep(time.Millisecond)
	}

	assert.Equal(t, 2, status.WorkerID)
	assert.Equal(t, 3, status.TotalCooks)
	assert.Equal(t, pizza.MaxCapacityFor(3), status.MaxCapacity)

	<-done
}

func TestKitchenRetiresWhenIdle(t *testing.T) {
	parent, child := localChannels(t)
	log := plazzalog.New()
	k := New(3, 1, 1.0, child, fastOptions(), log, nil)
	_ = parent

	done := make(chan struct{})
	go func() { k.Run(); close(done) }()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("kitchen never retired")
	}
}

func TestMissingIngredientsDropsJobSilently(t *testing.T) {
	parent, child := localChannels(t)
	log := plazzalog.New()
	k := New(4, 1, 1.0, child, fastOptions(), log, nil)

	for _, ing := range pizza.AllIngredients {
		k.stock[ing] = 0
	}

	done := make(chan struct{})
	go func() { k.Run(); close(done) }()

	job := pizza.Job{Type: pizza.Fantasia, Size: pizza.M, CookTimeMs: 5}
	require.NoError(t, parent.Send(codec.PizzaPrefix+codec.EncodeJob(job)))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("kitchen never retired after dropping job")
	}

	msg, err := parent.Receive()
	require.NoError(t, err)
	assert.Equal(t, "", msg, "a dropped job must not produce a completion")
}
