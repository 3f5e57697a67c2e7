package ipc

// TestPair builds both ends of a channel in a single process for use
// by other packages' tests, without closing the dual endpoints the way
// a real fork would. Callers own both ends and must close them.
func TestPair() (parent, child *Channel, err error) {
	pipes, err := NewPipes()
	if err != nil {
		return nil, nil, err
	}
	parent = &Channel{write: pipes.ParentToChildWrite, read: pipes.ChildToParentRead}
	child = &Channel{write: pipes.ChildToParentWrite, read: pipes.ParentToChildRead}
	return parent, child, nil
}
