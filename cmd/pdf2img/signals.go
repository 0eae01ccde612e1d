package main

import (
	"context"
	"os"
)

func forwardSignals(ctx context.Context, sigs <-chan os.Signal, out chan<- command, abort context.CancelFunc, isToggle func(os.Signal) bool) {
	interrupts := 0
	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-sigs:
			cmd := cmdTogglePause
			if !isToggle(sig) {
				interrupts++
				if interrupts > 1 {
					abort()
					return
				}
				cmd = cmdCancel
			}
			select {
			case out <- cmd:
			case <-ctx.Done():
				return
			}
		}
	}
}
