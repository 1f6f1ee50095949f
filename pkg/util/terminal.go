package util

import (
	"os"

	"golang.org/x/crypto/ssh/terminal"
)

// InTerminal determines whether stdout is attached to a terminal. Diff colors are only
// used when it is.
func InTerminal() bool {
	return terminal.IsTerminal(int(os.Stdout.Fd()))
}

// StderrInTerminal determines whether stderr is attached to a terminal. Spinners are
// written to stderr, so they're disabled when it isn't.
func StderrInTerminal() bool {
	return terminal.IsTerminal(int(os.Stderr.Fd()))
}
