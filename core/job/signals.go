package job

import (
	"os"
	"os/signal"
	"sync"

	"golang.org/x/sys/unix"
)

// Coordinator turns asynchronous signals into job control actions. Signals are
// queued by the runtime and handled on a single goroutine, so no work happens
// in signal context.
type Coordinator struct {
	manager *Manager
	// idle is called for an interrupt while no job is in the foreground.
	idle func()

	sigs chan os.Signal
	done chan struct{}
	once sync.Once
	wg   sync.WaitGroup
}

// NewCoordinator creates a Coordinator for m. onIdleInterrupt may be nil.
func NewCoordinator(m *Manager, onIdleInterrupt func()) *Coordinator {
	return &Coordinator{
		manager: m,
		idle:    onIdleInterrupt,
		// Enough room that a burst of SIGCHLDs while reaping isn't lost; one
		// queued SIGCHLD is enough to reap every child anyway.
		sigs: make(chan os.Signal, 8),
		done: make(chan struct{}),
	}
}

// Start installs the handlers for SIGINT, SIGTSTP and SIGCHLD. While they're
// installed the shell itself is never interrupted or stopped by them.
func (c *Coordinator) Start() {
	signal.Notify(c.sigs, unix.SIGINT, unix.SIGTSTP, unix.SIGCHLD)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			select {
			case sig := <-c.sigs:
				c.Handle(sig)
			case <-c.done:
				return
			}
		}
	}()

	// Children may have exited before the handler was installed.
	c.manager.Reap()
}

// Stop removes the handlers and waits for the handling goroutine to exit.
func (c *Coordinator) Stop() {
	c.once.Do(func() {
		signal.Stop(c.sigs)
		close(c.done)
		c.wg.Wait()
	})
}

// Handle performs the job control action for sig.
func (c *Coordinator) Handle(sig os.Signal) {
	switch sig {
	case unix.SIGINT:
		if !c.manager.Interrupt() && c.idle != nil {
			c.idle()
		}
	case unix.SIGTSTP:
		// Stop the foreground job, keep the shell.
		c.manager.Suspend()
	case unix.SIGCHLD:
		c.manager.Reap()
	}
}
