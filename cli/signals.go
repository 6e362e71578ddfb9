package cli

import (
	"os"
	"os/signal"
	"syscall"
)

// onTerminate invokes the provided function when the process is interrupted or terminated,
// or when a simulated Ctrl-C is delivered in tests.
func (c *App) onTerminate(f func()) {
	s := make(chan os.Signal, 1)
	signal.Notify(s, os.Interrupt, syscall.SIGTERM)

	go func() {
		defer signal.Stop(s)

		select {
		case v := <-c.simulatedCtrlC:
			if !v {
				return
			}

		case <-s:
		}

		f()
	}()
}
