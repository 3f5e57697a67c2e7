// Package dispatcher implements the parent-side fleet controller: the
// worker registry, the fork protocol, load-balanced selection, idle
// sweeping, and status aggregation described as the KitchenManager.
package dispatcher

import (
	"log/slog"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/plazza/plazza/internal/codec"
	"github.com/plazza/plazza/internal/config"
	"github.com/plazza/plazza/internal/ipc"
	"github.com/plazza/plazza/internal/metrics"
	"github.com/plazza/plazza/internal/pizza"
)

// Options carries everything the dispatcher needs to fork and size new
// kitchens, independent of how the front-end came to call it.
type Options struct {
	Exe             string
	CooksPerKitchen int
	Multiplier      float64
	RestockPeriodMs int
	Config          config.Config
}

// Dispatcher owns the worker registry under a single mutex taken at
// every public entry point, matching the original's ScopedLock
// discipline.
type Dispatcher struct {
	mu      sync.Mutex
	workers []*workerRecord
	nextID  int
	opts    Options
	log     *slog.Logger
	metrics *metrics.Collector
}

// New builds an empty Dispatcher; no kitchens exist until the first
// distribute() call forks one.
func New(opts Options, log *slog.Logger, m *metrics.Collector) *Dispatcher {
	return &Dispatcher{opts: opts, nextID: 1, log: log, metrics: m}
}

// Distribute hands one pizza job to a kitchen, forking one if none can
// accept it. Returns an error only when no worker — existing or freshly
// forked — could be made to accept the job, or the framed send failed.
func (d *Dispatcher) Distribute(job pizza.Job) error {
	start := time.Now()
	d.mu.Lock()
	defer d.mu.Unlock()

	d.reapDeadWorkersLocked()
	d.drainCompletionsLocked()

	w := d.selectLocked()
	if w == nil {
		forked, err := d.forkWorkerLocked()
		if err != nil {
			return err
		}
		w = forked
	}
	if w.inFlightCount >= w.maxCapacity() {
		forked, err := d.forkWorkerLocked()
		if err != nil {
			return err
		}
		w = forked
	}

	if err := w.channel.Send(codec.PizzaPrefix + codec.EncodeJob(job)); err != nil {
		return pizza.NewError(pizza.IpcError, "send pizza to kitchen %d: %v", w.id, err)
	}
	w.inFlightCount++
	w.lastActivity = time.Now()
	d.metrics.RecordDispatch(time.Since(start))
	return nil
}

// selectLocked implements the load-balancing rule: skip inactive or
// full workers, pick the minimum in-flight count, and return
// immediately on a zero-in-flight worker (deterministic tie-break by
// insertion order).
func (d *Dispatcher) selectLocked() *workerRecord {
	var best *workerRecord
	minLoad := -1
	for _, w := range d.workers {
		if !w.active() || w.inFlightCount >= w.maxCapacity() {
			continue
		}
		if w.inFlightCount == 0 {
			return w
		}
		if minLoad == -1 || w.inFlightCount < minLoad {
			minLoad = w.inFlightCount
			best = w
		}
	}
	return best
}

// drainCompletionsLocked opportunistically reads any pending
// COMPLETED: frames from every live worker and credits them against
// in_flight_count, reconciling the dispatcher's estimate against the
// worker's authoritative active+queued count.
func (d *Dispatcher) drainCompletionsLocked() {
	for _, w := range d.workers {
		if !w.active() {
			continue
		}
		for {
			msg, err := w.channel.Receive()
			if err != nil || msg == "" {
				break
			}
			if len(msg) >= len(codec.CompletedPrefix) && msg[:len(codec.CompletedPrefix)] == codec.CompletedPrefix {
				if w.inFlightCount > 0 {
					w.inFlightCount--
				}
				d.metrics.RecordCompleted()
			}
		}
	}
}

// reapDeadWorkersLocked performs a non-blocking wait on every child and
// removes records whose process has already exited.
func (d *Dispatcher) reapDeadWorkersLocked() {
	remaining := d.workers[:0]
	for _, w := range d.workers {
		if w.hasExited() {
			d.log.Info("kitchen process terminated", "kitchen_id", w.id)
			w.channel.Close()
			continue
		}
		remaining = append(remaining, w)
	}
	d.workers = remaining
	d.metrics.SetKitchensActive(len(d.workers))
}

// forkWorkerLocked creates a channel, spawns a kitchen process, and
// appends its record to the registry. The caller must already hold the
// registry lock.
func (d *Dispatcher) forkWorkerLocked() (*workerRecord, error) {
	id := d.nextID
	d.nextID++

	args := ipc.ChildArgs{
		Exe: d.opts.Exe,
		KitchenArgs: []string{
			"__kitchen",
			"--id", strconv.Itoa(id),
			"--cooks", strconv.Itoa(d.opts.CooksPerKitchen),
			"--multiplier", strconv.FormatFloat(d.opts.Multiplier, 'g', -1, 64),
			"--restock-ms", strconv.Itoa(d.opts.RestockPeriodMs),
			"--idle-timeout-s", strconv.Itoa(d.opts.Config.IdleTimeoutSeconds),
			"--log-dir", d.opts.Config.LogDir,
		},
	}
	cmd, channel, err := ipc.SpawnKitchen(args)
	if err != nil {
		return nil, pizza.NewError(pizza.SchedulerError, "fork kitchen: %v", err)
	}

	w := newWorkerRecord(id, cmd, channel, d.opts.CooksPerKitchen)
	d.workers = append(d.workers, w)
	d.metrics.RecordFork()
	d.metrics.SetKitchensActive(len(d.workers))
	d.log.Info("forked kitchen", "kitchen_id", id, "pid", cmd.Process.Pid)

	// Give the child time to attach its loop before the first send,
	// per the fork protocol.
	time.Sleep(100 * time.Millisecond)
	return w, nil
}

// SweepIdle removes workers whose child has already exited and retires
// workers that have been fully idle past the retire timeout.
func (d *Dispatcher) SweepIdle() {
	d.mu.Lock()
	d.reapDeadWorkersLocked()
	var toRetire []*workerRecord
	remaining := d.workers[:0]
	for _, w := range d.workers {
		if w.inFlightCount == 0 && time.Since(w.lastActivity) > d.opts.Config.IdleTimeout() {
			toRetire = append(toRetire, w)
			continue
		}
		remaining = append(remaining, w)
	}
	d.workers = remaining
	d.mu.Unlock()

	for _, w := range toRetire {
		d.retire(w)
	}

	d.mu.Lock()
	d.metrics.SetKitchensActive(len(d.workers))
	d.mu.Unlock()
}

// retire issues SIGTERM, polls for exit, and falls back to SIGKILL,
// exactly mirroring closeInactiveKitchens.
func (d *Dispatcher) retire(w *workerRecord) {
	d.log.Info("retiring idle kitchen", "kitchen_id", w.id)
	_ = w.cmd.Process.Signal(syscall.SIGTERM)

	deadline := time.Now().Add(d.opts.Config.RetireKillAfter())
	if w.waitExited(deadline, d.opts.Config.RetirePollInterval()) {
		w.channel.Close()
		return
	}

	_ = w.cmd.Process.Kill()
	<-w.exited
	w.channel.Close()
}

// DisplayStatus returns one Status per live kitchen, polling each for a
// fresh STATUS: reply and falling back to a synthetic row on timeout.
func (d *Dispatcher) DisplayStatus() []pizza.Status {
	d.mu.Lock()
	d.reapDeadWorkersLocked()
	workers := append([]*workerRecord(nil), d.workers...)
	d.mu.Unlock()

	statuses := make([]pizza.Status, 0, len(workers))
	for _, w := range workers {
		statuses = append(statuses, d.pollStatus(w))
	}
	return statuses
}

func (d *Dispatcher) pollStatus(w *workerRecord) pizza.Status {
	if err := w.channel.Send(codec.StatusRequest); err != nil {
		d.log.Error("failed to request status", "kitchen_id", w.id, "error", err)
		return syntheticStatus(w)
	}

	interval := d.opts.Config.StatusPollInterval()
	for i := 0; i < d.opts.Config.StatusPollAttempts; i++ {
		msg, err := w.channel.Receive()
		if err == nil && len(msg) >= len(codec.StatusPrefix) && msg[:len(codec.StatusPrefix)] == codec.StatusPrefix {
			status, decodeErr := codec.DecodeStatus(msg[len(codec.StatusPrefix):])
			if decodeErr == nil {
				return status
			}
		}
		if err == nil && len(msg) >= len(codec.CompletedPrefix) && msg[:len(codec.CompletedPrefix)] == codec.CompletedPrefix {
			d.mu.Lock()
			if w.inFlightCount > 0 {
				w.inFlightCount--
			}
			d.mu.Unlock()
			d.metrics.RecordCompleted()
		}
		time.Sleep(interval)
	}
	d.log.Warn("status request timed out, using fallback", "kitchen_id", w.id)
	return syntheticStatus(w)
}

// syntheticStatus is the fallback row used when a kitchen does not
// answer a STATUS_REQUEST in time: zero cooks/queue, uniform stock of 5.
func syntheticStatus(w *workerRecord) pizza.Status {
	var counts [9]int
	for i := range counts {
		counts[i] = pizza.InitialStock
	}
	return pizza.Status{
		WorkerID:         w.id,
		ActiveCooks:      0,
		TotalCooks:       w.totalCooks,
		QueuedJobs:       0,
		MaxCapacity:      w.maxCapacity(),
		IngredientCounts: counts,
	}
}

// Shutdown sends SIGTERM to every live worker, reaps them, and drops
// all records.
func (d *Dispatcher) Shutdown() {
	d.mu.Lock()
	workers := append([]*workerRecord(nil), d.workers...)
	d.workers = nil
	d.mu.Unlock()

	for _, w := range workers {
		_ = w.cmd.Process.Signal(syscall.SIGTERM)
		<-w.exited
		w.channel.Close()
	}
}

// KitchenCount returns the number of live worker records.
func (d *Dispatcher) KitchenCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.workers)
}

