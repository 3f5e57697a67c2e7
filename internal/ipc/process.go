package ipc

import (
	"os"
	"os/exec"

	"github.com/plazza/plazza/internal/pizza"
)

// extraFilesFDBase is the fd a child process sees its first ExtraFiles
// entry at; fd 0,1,2 are stdin/stdout/stderr.
const extraFilesFDBase = 3

// ChildArgs names the flags a spawned kitchen subcommand needs to
// reconstruct its half of the fleet's configuration. The channel itself
// travels via inherited file descriptors, not flags.
type ChildArgs struct {
	Exe         string
	KitchenArgs []string
	ExtraEnv    []string
}

// SpawnKitchen forks a kitchen process by re-executing the current
// binary with a hidden subcommand, the Go-native substitute for
// POSIX fork(): Go's runtime cannot safely duplicate a process with
// goroutines and OS threads already running, so the child instead
// starts fresh and inherits only the two pipe pairs it needs.
//
// On return the parent-side Channel is ready to use; the child has been
// started but has not necessarily attached its loop yet — callers
// should give it a moment before the first send, per the fork protocol.
func SpawnKitchen(args ChildArgs) (*exec.Cmd, *Channel, error) {
	pipes, err := NewPipes()
	if err != nil {
		return nil, nil, pizza.NewError(pizza.IpcError, "create pipes: %v", err)
	}

	cmd := exec.Command(args.Exe, args.KitchenArgs...)
	cmd.Env = append(os.Environ(), args.ExtraEnv...)
	cmd.Stderr = os.Stderr

	// ExtraFiles[0] lands at fd 3 in the child, ExtraFiles[1] at fd 4.
	// The child reads the read end of parent->child and the write end
	// of child->parent, mirroring PipeIPC's setupChild.
	cmd.ExtraFiles = []*os.File{pipes.ParentToChildRead, pipes.ChildToParentWrite}

	if err := cmd.Start(); err != nil {
		pipes.ParentToChildRead.Close()
		pipes.ParentToChildWrite.Close()
		pipes.ChildToParentRead.Close()
		pipes.ChildToParentWrite.Close()
		return nil, nil, pizza.NewError(pizza.SchedulerError, "spawn kitchen process: %v", err)
	}

	// The parent must close its copies of the fds it handed to the
	// child via ExtraFiles, and the copies it never owned.
	pipes.ParentToChildRead.Close()
	pipes.ChildToParentWrite.Close()

	channel := &Channel{write: pipes.ParentToChildWrite, read: pipes.ChildToParentRead}
	return cmd, channel, nil
}

// AttachChild reconstructs a kitchen child's Channel from the two file
// descriptors SpawnKitchen attached via ExtraFiles. Called once, early,
// from the hidden kitchen subcommand.
func AttachChild() *Channel {
	readFD := uintptr(extraFilesFDBase)
	writeFD := uintptr(extraFilesFDBase + 1)
	return FromFDs(readFD, writeFD)
}
