package dispatcher

import (
	"os/exec"
	"time"

	"github.com/plazza/plazza/internal/ipc"
	"github.com/plazza/plazza/internal/pizza"
)

// workerState is the dispatcher-side state machine for one kitchen.
type workerState int

const (
	forking workerState = iota
	alive
	retiring
	dead
)

func (s workerState) String() string {
	switch s {
	case forking:
		return "FORKING"
	case alive:
		return "ALIVE"
	case retiring:
		return "RETIRING"
	case dead:
		return "DEAD"
	default:
		return "UNKNOWN"
	}
}

// workerRecord is the dispatcher's one-per-live-child bookkeeping
// record. It is mutated only by the dispatcher under the registry
// lock.
//
// exited is closed by a dedicated reaper goroutine once cmd.Wait()
// returns. Go's os/exec requires exactly one Wait() call per process
// and forbids any other reaping of its pid in the meantime, so this
// is the idiomatic substitute for POSIX waitpid(..., WNOHANG): a
// non-blocking check is a non-blocking receive on this channel rather
// than a second call into the kernel.
type workerRecord struct {
	id            int
	cmd           *exec.Cmd
	exited        chan struct{}
	channel       *ipc.Channel
	totalCooks    int
	inFlightCount int
	lastActivity  time.Time
	state         workerState
}

func newWorkerRecord(id int, cmd *exec.Cmd, channel *ipc.Channel, totalCooks int) *workerRecord {
	w := &workerRecord{
		id:           id,
		cmd:          cmd,
		exited:       make(chan struct{}),
		channel:      channel,
		totalCooks:   totalCooks,
		lastActivity: time.Now(),
		state:        alive,
	}
	go func() {
		cmd.Wait()
		close(w.exited)
	}()
	return w
}

func (w *workerRecord) active() bool {
	return w.state == alive
}

func (w *workerRecord) hasExited() bool {
	select {
	case <-w.exited:
		return true
	default:
		return false
	}
}

// waitExited polls for process exit at pollInterval until either the
// reaper goroutine observes it or deadline passes, whichever comes
// first. The deadline is checked only at each poll tick, so
// retire_poll_interval_ms sets how late past the deadline the SIGKILL
// fallback may start; an exit is noticed as soon as it happens.
func (w *workerRecord) waitExited(deadline time.Time, pollInterval time.Duration) bool {
	if w.hasExited() {
		return true
	}
	if pollInterval <= 0 {
		pollInterval = time.Millisecond
	}
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-w.exited:
			return true
		case <-ticker.C:
			if w.hasExited() {
				return true
			}
			if !time.Now().Before(deadline) {
				return false
			}
		}
	}
}

func (w *workerRecord) maxCapacity() int {
	return pizza.MaxCapacityFor(w.totalCooks)
}
