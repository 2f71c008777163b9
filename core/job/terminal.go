package job

import (
	"os"
	"os/signal"

	"golang.org/x/sys/unix"
	"golang.org/x/term"
)

// terminal hands the controlling terminal back and forth between the shell's
// process group and foreground jobs.
type terminal struct {
	fd        int
	shellPgid int
}

// isTerminal reports whether f is a terminal.
func isTerminal(f *os.File) bool {
	return f != nil && term.IsTerminal(int(f.Fd()))
}

// newTerminal returns nil if f isn't the shell's controlling terminal.
func newTerminal(f *os.File) *terminal {
	if !isTerminal(f) {
		return nil
	}
	if _, err := unix.IoctlGetInt(int(f.Fd()), unix.TIOCGPGRP); err != nil {
		return nil
	}
	return &terminal{
		fd:        int(f.Fd()),
		shellPgid: unix.Getpgrp(),
	}
}

// setForeground makes pgid the terminal's foreground process group. The
// caller must hold the manager lock so no child is spawned while SIGTTOU is
// ignored; an ignored signal would be inherited across exec.
func (t *terminal) setForeground(pgid int) error {
	signal.Ignore(unix.SIGTTOU)
	defer signal.Reset(unix.SIGTTOU)

	return unix.IoctlSetPointerInt(t.fd, unix.TIOCSPGRP, pgid)
}

func (t *terminal) reclaim() error {
	return t.setForeground(t.shellPgid)
}
