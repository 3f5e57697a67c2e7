package dispatcher

import (
	"os/exec"

	"github.com/plazza/plazza/internal/ipc"
)

// newTestWorker builds a workerRecord around a channel end without
// spawning a real process, for dispatcher unit tests that exercise
// selection, sweeping, and status-polling logic against an in-memory
// peer. cmd is an empty exec.Cmd with no process behind it; hasExited
// and waitExited report liveness purely
// from the exited channel, which tests close explicitly.
func newTestWorker(id, totalCooks int, channel *ipc.Channel) (*workerRecord, chan struct{}) {
	exited := make(chan struct{})
	w := &workerRecord{
		id:         id,
		cmd:        &exec.Cmd{},
		exited:     exited,
		channel:    channel,
		totalCooks: totalCooks,
		state:      alive,
	}
	return w, exited
}
