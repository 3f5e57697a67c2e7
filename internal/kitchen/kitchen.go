// Package kitchen implements the worker side of the fleet: one Kitchen
// per forked child process, owning its ingredient stock, its cook pool,
// a restock ticker, and the single-threaded IPC event loop that drives
// them.
package kitchen

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/plazza/plazza/internal/codec"
	"github.com/plazza/plazza/internal/cookpool"
	"github.com/plazza/plazza/internal/ipc"
	"github.com/plazza/plazza/internal/metrics"
	"github.com/plazza/plazza/internal/pizza"
)

// Options configures a Kitchen's timing knobs; every field has a
// reference default in DefaultOptions.
type Options struct {
	IdleTimeout    time.Duration
	RestockPeriod  time.Duration
	RestockCeiling int
	BusyTickSleep  time.Duration
	IdleTickSleep  time.Duration
}

// DefaultOptions returns the reference tick sleeps spec.md §4.4 names.
func DefaultOptions() Options {
	return Options{
		IdleTimeout:    10 * time.Second,
		RestockPeriod:  5 * time.Second,
		RestockCeiling: pizza.RestockCeiling,
		BusyTickSleep:  10 * time.Millisecond,
		IdleTickSleep:  100 * time.Millisecond,
	}
}

// Kitchen is one worker. FIFO pops happen only inside a completed cook
// task, never at enqueue time, so QueuedJobs in a Status snapshot
// reflects untaken items sitting at the FIFO head.
type Kitchen struct {
	id         int
	totalCooks int
	multiplier float64
	opts       Options

	queueMu sync.Mutex
	queue   []pizza.Job

	stockMu sync.Mutex
	stock   map[pizza.Ingredient]int

	activeCooks atomic.Int32
	lastActive  atomic.Int64 // unix nanoseconds

	channel *ipc.Channel
	pool    *cookpool.Pool
	log     *slog.Logger
	metrics *metrics.Collector

	stopRestock chan struct{}
	restockDone chan struct{}
}

// New builds a Kitchen and starts its cook pool and restock ticker.
// channel must already be attached (the child side of a fork).
func New(id, totalCooks int, multiplier float64, channel *ipc.Channel, opts Options, log *slog.Logger, m *metrics.Collector) *Kitchen {
	k := &Kitchen{
		id:          id,
		totalCooks:  totalCooks,
		multiplier:  multiplier,
		opts:        opts,
		stock:       initialStock(),
		channel:     channel,
		pool:        cookpool.New(totalCooks),
		log:         log,
		metrics:     m,
		stopRestock: make(chan struct{}),
		restockDone: make(chan struct{}),
	}
	k.touch()
	go k.restockLoop()
	return k
}

func initialStock() map[pizza.Ingredient]int {
	stock := make(map[pizza.Ingredient]int, len(pizza.AllIngredients))
	for _, ing := range pizza.AllIngredients {
		stock[ing] = pizza.InitialStock
	}
	return stock
}

func (k *Kitchen) touch() {
	k.lastActive.Store(time.Now().UnixNano())
}

func (k *Kitchen) idleFor() time.Duration {
	return time.Since(time.Unix(0, k.lastActive.Load()))
}

// MaxCapacity is 2 * totalCooks, the ceiling on queued+active jobs.
func (k *Kitchen) MaxCapacity() int {
	return pizza.MaxCapacityFor(k.totalCooks)
}

// Run drives the single-threaded event loop until the kitchen retires
// or its channel is closed. This is the body a forked child process
// executes after attaching its inherited pipes.
func (k *Kitchen) Run() {
	defer k.shutdown()
	for {
		payload, err := k.channel.Receive()
		if err != nil {
			k.log.Error("channel receive failed, retiring", "kitchen_id", k.id, "error", err)
			return
		}
		if payload == "" {
			if k.shouldRetire() {
				k.log.Info("kitchen retiring, idle", "kitchen_id", k.id)
				return
			}
			time.Sleep(k.opts.IdleTickSleep)
			continue
		}
		k.handleMessage(payload)
		time.Sleep(k.opts.BusyTickSleep)
	}
}

func (k *Kitchen) handleMessage(payload string) {
	switch {
	case hasPrefix(payload, codec.PizzaPrefix):
		k.handlePizza(payload[len(codec.PizzaPrefix):])
	case payload == codec.StatusRequest:
		k.handleStatusRequest()
	default:
		k.log.Warn("kitchen received unrecognized message", "kitchen_id", k.id, "payload", payload)
	}
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}

func (k *Kitchen) handlePizza(encoded string) {
	job, err := codec.DecodeJob(encoded)
	if err != nil {
		k.log.Error("kitchen failed to decode pizza payload", "kitchen_id", k.id, "error", err)
		return
	}

	k.queueMu.Lock()
	k.queue = append(k.queue, job)
	k.queueMu.Unlock()

	// Every job goes onto the cook pool; its totalCooks goroutines bound
	// how many cook at once, and the rest wait in the pool's FIFO.
	k.pool.Enqueue(k.cookTask(job))
	k.touch()
}

// cookTask returns the closure run by one cookpool goroutine for job:
// count itself as an active cook, check stock, consume it, sleep the
// cook time, report completion, and pop the FIFO front. job is captured
// by value from the handlePizza
// call that spawned this task, so two cook tasks running concurrently
// (totalCooks >= 2) never race over which queue entry to cook. The
// FIFO head is popped only for bookkeeping, never consulted to find
// the pizza to cook, matching Kitchen.cpp's per-job thread closure.
func (k *Kitchen) cookTask(job pizza.Job) func() {
	return func() {
		k.activeCooks.Add(1)
		defer k.activeCooks.Add(-1)

		if !k.consumeIngredients(job.Type) {
			k.log.Warn("kitchen dropped pizza, missing ingredients", "kitchen_id", k.id, "type", job.Type.String())
			k.metrics.RecordDropped()
			k.popFront()
			return
		}

		time.Sleep(time.Duration(job.CookTimeMs) * time.Millisecond)

		job.Cooked = true
		if err := k.channel.Send(codec.CompletedPrefix + codec.EncodeJob(job)); err != nil {
			k.log.Error("kitchen failed to send completion", "kitchen_id", k.id, "error", err)
		} else {
			k.metrics.RecordCompleted()
		}
		k.popFront()
		k.touch()
	}
}

func (k *Kitchen) popFront() {
	k.queueMu.Lock()
	if len(k.queue) > 0 {
		k.queue = k.queue[1:]
	}
	k.queueMu.Unlock()
}

// consumeIngredients checks the full ingredient list for a type under
// the stock lock and, only if every ingredient is available, decrements
// each once. The lock is held for the briefest possible interval: one
// check-then-decrement pass, never interleaved with the queue lock.
func (k *Kitchen) consumeIngredients(t pizza.Type) bool {
	need := t.Ingredients()
	k.stockMu.Lock()
	defer k.stockMu.Unlock()
	for _, ing := range need {
		if k.stock[ing] <= 0 {
			return false
		}
	}
	for _, ing := range need {
		k.stock[ing]--
	}
	return true
}

func (k *Kitchen) handleStatusRequest() {
	status := k.status()
	if err := k.channel.Send(codec.StatusPrefix + codec.EncodeStatus(status)); err != nil {
		k.log.Error("kitchen failed to send status", "kitchen_id", k.id, "error", err)
	}
	k.touch()
}

// status computes a consistent snapshot under both the queue and stock
// mutexes; it never holds both at once, taking and releasing the queue
// lock before acquiring the stock lock.
func (k *Kitchen) status() pizza.Status {
	k.queueMu.Lock()
	queued := len(k.queue)
	k.queueMu.Unlock()

	var counts [9]int
	k.stockMu.Lock()
	for i, ing := range pizza.AllIngredients {
		counts[i] = k.stock[ing]
	}
	k.stockMu.Unlock()

	return pizza.Status{
		WorkerID:         k.id,
		ActiveCooks:      int(k.activeCooks.Load()),
		TotalCooks:       k.totalCooks,
		QueuedJobs:       queued,
		MaxCapacity:      k.MaxCapacity(),
		IngredientCounts: counts,
	}
}

// shouldRetire implements the retirement predicate: no active cooks, an
// empty queue, and sufficient idle time elapsed.
func (k *Kitchen) shouldRetire() bool {
	if k.activeCooks.Load() != 0 {
		return false
	}
	k.queueMu.Lock()
	empty := len(k.queue) == 0
	k.queueMu.Unlock()
	if !empty {
		return false
	}
	return k.idleFor() > k.opts.IdleTimeout
}

// restockLoop increments every ingredient count once per restock
// period, capped at the configured ceiling, until the kitchen shuts
// down.
func (k *Kitchen) restockLoop() {
	defer close(k.restockDone)
	ticker := time.NewTicker(k.opts.RestockPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-k.stopRestock:
			return
		case <-ticker.C:
			k.stockMu.Lock()
			for _, ing := range pizza.AllIngredients {
				if k.stock[ing] < k.opts.RestockCeiling {
					k.stock[ing]++
				}
			}
			k.stockMu.Unlock()
		}
	}
}

// shutdown joins the restock thread, stops the cook pool, and closes
// the channel. Matches the original's "joins the restock thread,
// closes the channel, returns" retirement behavior.
func (k *Kitchen) shutdown() {
	close(k.stopRestock)
	<-k.restockDone
	k.pool.Stop()
	k.channel.Close()
}
