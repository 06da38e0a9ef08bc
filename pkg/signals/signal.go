package signals

import (
	"os"
	"os/signal"
	"syscall"
)

// SetupSignalHandler returns a channel that is closed on SIGINT or SIGTERM so
// the continuous scan loop can drain and shut the HTTP server down. A second
// signal exits immediately for operators who do not want to wait.
func SetupSignalHandler() <-chan struct{} {
	stop := make(chan struct{})
	sigCh := make(chan os.Signal, 2)

	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		close(stop)

		// Second signal: force exit
		<-sigCh
		os.Exit(1)
	}()

	return stop
}
