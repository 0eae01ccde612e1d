// Package progress carries worker events to the coordinator.
//
// The queue is bounded and loss-free: Send blocks while the queue is full
// instead of dropping, and gives up only when its context is done. Drain never
// blocks and returns at most a fixed number of events per call so a caller's
// poll cycle stays bounded.
package progress

import (
	"context"

	"github.com/tendant/simple-pdf2img/pkg/schema"
)

const DefaultQueueSize = 1024

// Queue is a single-producer, single-consumer event queue.
type Queue struct {
	ch chan schema.ProgressEvent
}

func NewQueue(size int) *Queue {
	if size < 1 {
		size = DefaultQueueSize
	}
	return &Queue{ch: make(chan schema.ProgressEvent, size)}
}

// Send enqueues ev, waiting for room if the queue is full.
func (q *Queue) Send(ctx context.Context, ev schema.ProgressEvent) error {
	select {
	case q.ch <- ev:
		return nil
	default:
	}

	select {
	case q.ch <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Drain returns up to max pending events without blocking. It returns nil when
// nothing is pending.
func (q *Queue) Drain(max int) []schema.ProgressEvent {
	if max < 1 {
		return nil
	}
	var out []schema.ProgressEvent
	for len(out) < max {
		select {
		case ev := <-q.ch:
			out = append(out, ev)
		default:
			return out
		}
	}
	return out
}

// Len reports the number of pending events.
func (q *Queue) Len() int { return len(q.ch) }

// Cap reports the queue capacity.
func (q *Queue) Cap() int { return cap(q.ch) }
