// Package coordinator owns conversion runs on the controlling side: it starts
// the batch worker in its own goroutine, relays pause, resume and cancel
// requests as signals, and turns drained progress events into a status
// snapshot a front end can render.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tendant/simple-pdf2img/internal/job"
	"github.com/tendant/simple-pdf2img/internal/progress"
	"github.com/tendant/simple-pdf2img/internal/render"
	"github.com/tendant/simple-pdf2img/internal/worker"
	"github.com/tendant/simple-pdf2img/pkg/schema"
)

// ErrAlreadyRunning is returned by Start while a run is active.
var ErrAlreadyRunning = errors.New("conversion already running")

const (
	DefaultDrainBatch      = 5
	DefaultTeardownTimeout = time.Second
)

// EventSink receives a copy of every drained event, e.g. to mirror progress
// onto a message bus.
type EventSink interface {
	PublishEvent(ev schema.ProgressEvent) error
}

type Options struct {
	Opener          render.Opener
	Worker          worker.Options
	QueueSize       int
	DrainBatch      int
	TeardownTimeout time.Duration
	Sink            EventSink
	Logger          *slog.Logger
}

// Coordinator allows at most one active run at a time.
type Coordinator struct {
	opts   Options
	logger *slog.Logger

	mu     sync.Mutex
	run    *run
	status Status
}

type run struct {
	id      string
	job     job.ConversionJob
	control *worker.RunControl
	queue   *progress.Queue
	cancel  context.CancelFunc
	done    chan struct{}

	finished bool
	summary  schema.BatchSummary
}

func New(opts Options) *Coordinator {
	if opts.Opener == nil {
		opts.Opener = render.NewFitz()
	}
	if opts.QueueSize < 1 {
		opts.QueueSize = progress.DefaultQueueSize
	}
	if opts.DrainBatch < 1 {
		opts.DrainBatch = DefaultDrainBatch
	}
	if opts.TeardownTimeout <= 0 {
		opts.TeardownTimeout = DefaultTeardownTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Worker.Logger == nil {
		opts.Worker.Logger = opts.Logger
	}
	if opts.Worker.PollInterval <= 0 {
		opts.Worker.PollInterval = worker.DefaultPollInterval
	}
	return &Coordinator{
		opts:   opts,
		logger: opts.Logger,
		status: Status{State: StateIdle},
	}
}

// Start validates j and launches a batch worker for it. The job is copied, so
// later changes by the caller do not affect the run.
func (c *Coordinator) Start(j job.ConversionJob) (*Handle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.run != nil {
		return nil, ErrAlreadyRunning
	}
	if err := j.Validate(); err != nil {
		return nil, fmt.Errorf("start conversion: %w", err)
	}

	j = j.Clone()
	ctx, cancel := context.WithCancel(context.Background())
	r := &run{
		id:      uuid.New().String(),
		job:     j,
		control: worker.NewRunControl(),
		queue:   progress.NewQueue(c.opts.QueueSize),
		cancel:  cancel,
		done:    make(chan struct{}),
	}

	workerOpts := c.opts.Worker
	workerOpts.Logger = workerOpts.Logger.With("run_id", r.id)
	batch := worker.NewBatch(j, c.opts.Opener, r.queue, r.control, r.id, workerOpts)

	c.run = r
	c.status = Status{State: StateRunning, RunID: r.id, TotalFiles: len(j.Inputs)}
	c.logger.Info("conversion started", "run_id", r.id, "files", len(j.Inputs), "format", j.Format, "quality", j.Quality, "dpi", j.DPI, "output_dir", j.OutputDir)

	go c.work(ctx, r, batch)
	return &Handle{c: c, run: r}, nil
}

func (c *Coordinator) work(ctx context.Context, r *run, batch *worker.Batch) {
	defer close(r.done)
	defer func() {
		if rec := recover(); rec != nil {
			c.logger.Error("batch worker crashed", "run_id", r.id, "panic", rec)
			summary := schema.BatchSummary{TotalFiles: len(r.job.Inputs), WasCancelled: r.control.Cancelled()}
			if err := r.queue.Send(ctx, schema.BatchComplete(r.id, summary)); err != nil {
				c.logger.Warn("publish batch complete failed", "run_id", r.id, "err", err)
			}
		}
	}()
	batch.Run(ctx)
}

// Running reports whether a run is active.
func (c *Coordinator) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.run != nil
}

// Shutdown cancels the active run, if any, and waits for its worker to exit
// for at most the teardown timeout. Events still queued are folded into the
// status but not forwarded to the sink.
func (c *Coordinator) Shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	r := c.run
	if r == nil {
		return
	}
	r.control.Cancel()
	c.logger.Info("shutting down active conversion", "run_id", r.id)

	// Unblock a worker stuck on a full queue.
	r.cancel()
	c.teardownLocked(r)
	r.summary = c.closingSummaryLocked(r)
	c.status.State = StateIdle
	c.logger.Info("conversion shut down",
		"run_id", r.id,
		"success", r.summary.SuccessCount,
		"errors", r.summary.ErrorCount,
		"total", r.summary.TotalFiles,
		"cancelled", r.summary.WasCancelled)
}

// closingSummaryLocked drains what the worker left queued and returns the
// tally of its batch_complete. A worker that was abandoned never sends one, so
// its tally is rebuilt from the events drained so far and marked cancelled.
func (c *Coordinator) closingSummaryLocked(r *run) schema.BatchSummary {
	for {
		events := r.queue.Drain(r.queue.Cap())
		if len(events) == 0 {
			break
		}
		for _, ev := range events {
			c.status.apply(ev)
			if ev.Type == schema.EventBatchComplete {
				return ev.Summary()
			}
		}
	}

	summary := schema.BatchSummary{
		SuccessCount: len(c.status.Completed),
		ErrorCount:   len(c.status.Failures),
		TotalFiles:   len(r.job.Inputs),
		WasCancelled: true,
	}
	c.status.Summary = &summary
	return summary
}

// teardownLocked waits for the worker goroutine to exit, then releases the
// run. A goroutine cannot be killed, so one that overstays the timeout is
// aborted through its context and abandoned.
func (c *Coordinator) teardownLocked(r *run) {
	timer := time.NewTimer(c.opts.TeardownTimeout)
	defer timer.Stop()

	select {
	case <-r.done:
	case <-timer.C:
		c.logger.Warn("worker did not exit in time, abandoning it", "run_id", r.id, "timeout", c.opts.TeardownTimeout)
	}
	r.cancel()
	r.finished = true
	if c.run == r {
		c.run = nil
	}
}

// Handle controls one run. Once the run has completed every method is a
// no-op.
type Handle struct {
	c   *Coordinator
	run *run
}

func (h *Handle) RunID() string { return h.run.id }

// Job returns the settings the run was started with.
func (h *Handle) Job() job.ConversionJob { return h.run.job.Clone() }

func (h *Handle) activeLocked() bool {
	return h.c.run == h.run
}

// Pause asks the worker to stop before its next page. It reports whether the
// request changed anything.
func (h *Handle) Pause() bool {
	h.c.mu.Lock()
	defer h.c.mu.Unlock()
	if !h.activeLocked() || !h.run.control.Pause() {
		return false
	}
	h.c.logger.Info("conversion paused", "run_id", h.run.id)
	return true
}

// Resume clears a pause.
func (h *Handle) Resume() bool {
	h.c.mu.Lock()
	defer h.c.mu.Unlock()
	if !h.activeLocked() || !h.run.control.Resume() {
		return false
	}
	h.c.logger.Info("conversion resumed", "run_id", h.run.id)
	return true
}

// Cancel stops the run at the next page boundary. Confirmation is left to the
// caller.
func (h *Handle) Cancel() {
	h.c.mu.Lock()
	defer h.c.mu.Unlock()
	if !h.activeLocked() || h.run.control.Cancelled() {
		return
	}
	h.run.control.Cancel()
	h.c.logger.Info("conversion cancel requested", "run_id", h.run.id)
}

// DrainEvents returns up to max pending events without blocking (max < 1
// uses the configured drain batch). Draining batch_complete tears the run
// down, after which Start may be called again.
func (h *Handle) DrainEvents(max int) []schema.ProgressEvent {
	if max < 1 {
		max = h.c.opts.DrainBatch
	}

	h.c.mu.Lock()
	if !h.activeLocked() {
		h.c.mu.Unlock()
		return nil
	}
	events := h.run.queue.Drain(max)
	for _, ev := range events {
		h.c.status.apply(ev)
		if ev.Type == schema.EventBatchComplete {
			h.run.summary = ev.Summary()
			h.c.teardownLocked(h.run)
			h.c.logger.Info("conversion finished",
				"run_id", h.run.id,
				"success", ev.SuccessCount,
				"errors", ev.ErrorCount,
				"total", ev.TotalFiles,
				"cancelled", ev.WasCancelled)
			break
		}
	}
	h.c.mu.Unlock()

	if sink := h.c.opts.Sink; sink != nil {
		for _, ev := range events {
			if err := sink.PublishEvent(ev); err != nil {
				h.c.logger.Warn("publish progress event failed", "run_id", h.run.id, "type", ev.Type, "err", err)
			}
		}
	}
	return events
}

// Done reports whether the run has completed and been torn down.
func (h *Handle) Done() bool {
	h.c.mu.Lock()
	defer h.c.mu.Unlock()
	return h.run.finished
}

// Summary returns the final tally; ok is false until the run is done.
func (h *Handle) Summary() (summary schema.BatchSummary, ok bool) {
	h.c.mu.Lock()
	defer h.c.mu.Unlock()
	return h.run.summary, h.run.finished
}

// Wait drains events on the worker poll interval until the run completes or
// ctx is done. It is meant for callers without their own refresh loop; each
// drained event is passed to onEvent when it is non-nil.
func (h *Handle) Wait(ctx context.Context, onEvent func(schema.ProgressEvent)) (schema.BatchSummary, error) {
	ticker := time.NewTicker(h.c.opts.Worker.PollInterval)
	defer ticker.Stop()

	for {
		for _, ev := range h.DrainEvents(0) {
			if onEvent != nil {
				onEvent(ev)
			}
		}
		if summary, ok := h.Summary(); ok {
			return summary, nil
		}
		select {
		case <-ctx.Done():
			return schema.BatchSummary{}, ctx.Err()
		case <-ticker.C:
		}
	}
}
