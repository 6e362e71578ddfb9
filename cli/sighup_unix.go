//go:build !windows

package cli

import (
	"os"
	"os/signal"
	"syscall"
)

// onExternalConfigReloadRequest invokes the provided function when SIGHUP is received.
// The returned function stops listening and waits for an in-progress invocation to finish.
func onExternalConfigReloadRequest(f func()) (stop func()) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGHUP)

	quit := make(chan struct{})
	done := make(chan struct{})

	go func() {
		defer close(done)

		for {
			select {
			case <-c:
				f()
			case <-quit:
				return
			}
		}
	}()

	return func() {
		signal.Stop(c)
		close(quit)
		<-done
	}
}
