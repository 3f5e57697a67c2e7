// Command plazza runs the pizza-cooking fleet: an interactive front-end
// that dispatches orders across a pool of forked kitchen processes.
package main

import (
	"errors"
	"fmt"
	"os"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

// run is separated from main so tests can drive the CLI without
// calling os.Exit.
func run(args []string) int {
	root := newRootCommand()
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		var exit *exitError
		if errors.As(err, &exit) {
			if exit.msg != "" {
				fmt.Fprintln(os.Stderr, exit.msg)
			}
			return exit.code
		}
		fmt.Fprintln(os.Stderr, err)
		return 84
	}
	return 0
}

// exitError lets a command request a specific process exit code — in
// particular the reference implementation's fixed 84 for any
// initialization error — without cobra's default error-to-exit-code
// mapping getting in the way.
type exitError struct {
	code int
	msg  string
}

func (e *exitError) Error() string { return e.msg }

func newInitError(format string, args ...interface{}) error {
	return &exitError{code: 84, msg: fmt.Sprintf(format, args...)}
}
