//go:build !windows

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// watchSignals turns the first SIGINT or SIGTERM into a cancel command and a
// second one into abort. SIGUSR1 toggles pause.
func watchSignals(ctx context.Context, out chan<- command, abort context.CancelFunc) (stop func()) {
	sigs := make(chan os.Signal, 2)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM, syscall.SIGUSR1)
	go forwardSignals(ctx, sigs, out, abort, func(sig os.Signal) bool { return sig == syscall.SIGUSR1 })
	return func() { signal.Stop(sigs) }
}
