//go:build windows

package main

import (
	"context"
	"os"
	"os/signal"
)

func watchSignals(ctx context.Context, out chan<- command, abort context.CancelFunc) (stop func()) {
	sigs := make(chan os.Signal, 2)
	signal.Notify(sigs, os.Interrupt)
	go forwardSignals(ctx, sigs, out, abort, func(os.Signal) bool { return false })
	return func() { signal.Stop(sigs) }
}
