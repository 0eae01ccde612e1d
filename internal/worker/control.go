package worker

import "sync/atomic"

// RunControl holds the two level-triggered signals the coordinator uses to
// steer a running batch. Cancelled is monotonic; paused may only be set while
// the run is not cancelled.
type RunControl struct {
	paused    atomic.Bool
	cancelled atomic.Bool
}

func NewRunControl() *RunControl { return &RunControl{} }

// Pause sets the pause signal. It reports false when the run is already
// paused or cancelled.
func (c *RunControl) Pause() bool {
	if c.cancelled.Load() {
		return false
	}
	return c.paused.CompareAndSwap(false, true)
}

// Resume clears the pause signal. It reports false when the run was not paused.
func (c *RunControl) Resume() bool {
	return c.paused.CompareAndSwap(true, false)
}

// Cancel sets the cancel signal and clears pause so a waiting worker wakes up
// to observe it.
func (c *RunControl) Cancel() {
	c.cancelled.Store(true)
	c.paused.Store(false)
}

func (c *RunControl) Paused() bool    { return c.paused.Load() }
func (c *RunControl) Cancelled() bool { return c.cancelled.Load() }
