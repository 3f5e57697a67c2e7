// Package ipc implements the framed message channel that connects a
// dispatcher to a forked kitchen process over a pair of unidirectional
// OS pipes.
package ipc

import (
	"encoding/binary"
	"errors"
	"io"
	"os"
	"sync"
	"syscall"
	"time"

	"github.com/plazza/plazza/internal/pizza"
)

// maxFrameLen bounds a single frame so a corrupted length header cannot
// make a receiver attempt an enormous allocation.
const maxFrameLen = 1 << 20

// Pipes is the set of four file descriptors created for one channel:
// two pipes, one per direction. ParentToChildWrite feeds ParentToChildRead,
// and ChildToParentWrite feeds ChildToParentRead.
type Pipes struct {
	ParentToChildRead  *os.File
	ParentToChildWrite *os.File
	ChildToParentRead  *os.File
	ChildToParentWrite *os.File
}

// NewPipes allocates both underlying pipes for a channel. Neither side
// has closed any endpoint yet; call SetupParent or SetupChild on the
// corresponding side after forking.
func NewPipes() (*Pipes, error) {
	p2c, err := newPipe()
	if err != nil {
		return nil, err
	}
	c2p, err := newPipe()
	if err != nil {
		p2c.close()
		return nil, err
	}
	return &Pipes{
		ParentToChildRead:  p2c.r,
		ParentToChildWrite: p2c.w,
		ChildToParentRead:  c2p.r,
		ChildToParentWrite: c2p.w,
	}, nil
}

type pipePair struct {
	r, w *os.File
}

func newPipe() (pipePair, error) {
	r, w, err := os.Pipe()
	if err != nil {
		return pipePair{}, err
	}
	return pipePair{r: r, w: w}, nil
}

func (p pipePair) close() {
	p.r.Close()
	p.w.Close()
}

// Channel is one side of a framed, bidirectional byte transport. The
// parent side retains write-to-child and read-from-child; the child
// side retains their duals. Messages are framed as a little-endian
// uint32 length followed by that many payload bytes.
type Channel struct {
	mu     sync.Mutex
	write  *os.File
	read   *os.File
	closed bool
}

// SetupParent closes the endpoints the parent must not hold (the
// child's read and write ends) and returns a Channel over the
// remaining pair.
func (p *Pipes) SetupParent() *Channel {
	p.ParentToChildRead.Close()
	p.ChildToParentWrite.Close()
	return &Channel{write: p.ParentToChildWrite, read: p.ChildToParentRead}
}

// SetupChild closes the endpoints the child must not hold and returns a
// Channel over the remaining pair. Used when the channel is built
// directly, e.g. in tests; the real fork path reconstructs the child's
// Channel from inherited file descriptors instead (see FromFDs).
func (p *Pipes) SetupChild() *Channel {
	p.ParentToChildWrite.Close()
	p.ChildToParentRead.Close()
	return &Channel{write: p.ChildToParentWrite, read: p.ParentToChildRead}
}

// FromFDs builds a child-side Channel from the two inherited extra file
// descriptors a self-re-exec'd kitchen process receives. By convention
// fd 3 is the read end (parent-to-child) and fd 4 is the write end
// (child-to-parent); extraFilesFDBase documents this offset. Inherited
// descriptors arrive in blocking mode, so both are switched to
// non-blocking first: only then does os.NewFile register them with the
// runtime poller, which Receive's read deadline depends on.
func FromFDs(readFD, writeFD uintptr) *Channel {
	_ = syscall.SetNonblock(int(readFD), true)
	_ = syscall.SetNonblock(int(writeFD), true)
	return &Channel{
		read:  os.NewFile(readFD, "ipc-read"),
		write: os.NewFile(writeFD, "ipc-write"),
	}
}

// Send blocks until the full frame has been written. Short writes on a
// pipe are retried transparently by the runtime poller underneath
// (*os.File).Write, which is the Go-native equivalent of an EAGAIN retry
// loop.
func (c *Channel) Send(payload string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.write == nil {
		return pizza.NewError(pizza.IpcError, "send on closed channel")
	}
	var header [4]byte
	binary.LittleEndian.PutUint32(header[:], uint32(len(payload)))
	if _, err := c.write.Write(header[:]); err != nil {
		return pizza.NewError(pizza.IpcError, "write length header: %v", err)
	}
	if len(payload) == 0 {
		return nil
	}
	if _, err := io.WriteString(c.write, payload); err != nil {
		return pizza.NewError(pizza.IpcError, "write payload: %v", err)
	}
	return nil
}

// Receive performs one non-blocking attempt to read a full frame. It
// returns ("", nil) when no message is currently available — callers
// treat that the same as spec.md's "no message available". A frame
// whose length header was read but whose payload could not be read
// leaves the stream desynchronized; subsequent Receive calls will
// continue to return empty until the channel is closed.
func (c *Channel) Receive() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.read == nil {
		return "", pizza.NewError(pizza.IpcError, "receive on closed channel")
	}

	// A deadline one millisecond ahead makes the read take whatever is
	// already buffered and otherwise give up almost at once, emulating
	// O_NONBLOCK without touching fcntl flags. A deadline already in the
	// past would fail every read, even with data waiting.
	if err := c.read.SetReadDeadline(time.Now().Add(time.Millisecond)); err != nil {
		return "", pizza.NewError(pizza.IpcError, "set read deadline: %v", err)
	}
	defer c.read.SetReadDeadline(time.Time{})

	var header [4]byte
	if _, err := io.ReadFull(c.read, header[:]); err != nil {
		if isTimeout(err) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return "", nil
		}
		return "", pizza.NewError(pizza.IpcError, "read length header: %v", err)
	}
	n := binary.LittleEndian.Uint32(header[:])
	if n == 0 {
		return "", nil
	}
	if n > maxFrameLen {
		return "", pizza.NewError(pizza.IpcError, "frame length %d exceeds maximum", n)
	}

	// The payload read is now committed to blocking semantics: we have
	// already consumed the length header, so a partial payload read
	// desynchronizes the stream exactly as spec.md documents.
	if err := c.read.SetReadDeadline(time.Time{}); err != nil {
		return "", pizza.NewError(pizza.IpcError, "clear read deadline: %v", err)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(c.read, buf); err != nil {
		return "", nil
	}
	return string(buf), nil
}

func isTimeout(err error) bool {
	var ne interface{ Timeout() bool }
	if errors.As(err, &ne) {
		return ne.Timeout()
	}
	return os.IsTimeout(err)
}

// Close is idempotent and closes every still-open descriptor this side
// owns.
func (c *Channel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	var firstErr error
	if c.write != nil {
		if err := c.write.Close(); err != nil {
			firstErr = err
		}
	}
	if c.read != nil {
		if err := c.read.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// IsReady is true iff both endpoints this side owns remain open and
// Close has not been called.
func (c *Channel) IsReady() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed && c.read != nil && c.write != nil
}
