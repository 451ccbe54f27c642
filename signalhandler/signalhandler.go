package signalhandler

import (
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"imagededup/logging"
)

// ExitInterrupted is the exit status after a second interrupt
const ExitInterrupted = 130

var (
	osExit = os.Exit
	// exit is replaced in tests
	exit = osExit
)

// SetupHandler cancels the run on the first SIGINT or SIGTERM so work stops
// between steps, and exits immediately on the second. The returned func
// stops the handler.
func SetupHandler(cancel func()) (stop func()) {
	sigChan := make(chan os.Signal, 2)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	done := make(chan struct{})

	go func() {
		select {
		case sig := <-sigChan:
			logging.LogWarning("received %s, stopping after the current step", sig)
			cancel()
		case <-done:
			return
		}

		select {
		case sig := <-sigChan:
			logging.LogWarning("received %s again, exiting", sig)
			exit(ExitInterrupted)
		case <-done:
		}
	}()

	return func() {
		signal.Stop(sigChan)
		close(done)
	}
}

// GetOptimalProcs returns the optimal number of worker goroutines for the system
func GetOptimalProcs() int {
	numCPU := runtime.NumCPU()

	// Decoders and exiftool are CPU and process heavy; leave headroom
	maxProcs := (numCPU * 3) / 4
	if maxProcs < 1 {
		maxProcs = 1
	}

	return maxProcs
}
