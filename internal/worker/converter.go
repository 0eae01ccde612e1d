// Package worker runs a conversion batch: the batch loop over documents and
// the page converter that renders one document, both cooperating with a
// RunControl at page boundaries.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/tendant/simple-pdf2img/internal/job"
	"github.com/tendant/simple-pdf2img/internal/progress"
	"github.com/tendant/simple-pdf2img/internal/render"
	"github.com/tendant/simple-pdf2img/pkg/schema"
)

const DefaultPollInterval = 100 * time.Millisecond

// Outcome is the result of converting one document.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeCancelled
	OutcomeError
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeCancelled:
		return "cancelled"
	case OutcomeError:
		return "error"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// PageError is a render or save failure on a specific 1-based page.
type PageError struct {
	Page int
	Err  error
}

func (e *PageError) Error() string { return fmt.Sprintf("page %d: %v", e.Page, e.Err) }
func (e *PageError) Unwrap() error { return e.Err }

// Options tune pacing and logging of a run.
type Options struct {
	// PollInterval is how often a paused worker re-checks its signals.
	PollInterval time.Duration
	// ProgressEvery emits file_progress every N pages (plus the first and
	// last page). Values below 2 emit on every page.
	ProgressEvery int
	Logger        *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
	if o.ProgressEvery < 1 {
		o.ProgressEvery = 1
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// Converter renders every page of one document at a time.
type Converter struct {
	opener  render.Opener
	queue   *progress.Queue
	control *RunControl
	runID   string
	scale   float64
	quality int
	opts    Options
}

func NewConverter(j job.ConversionJob, opener render.Opener, queue *progress.Queue, control *RunControl, runID string, opts Options) *Converter {
	return &Converter{
		opener:  opener,
		queue:   queue,
		control: control,
		runID:   runID,
		scale:   j.Scale(),
		quality: j.Quality,
		opts:    opts.withDefaults(),
	}
}

// Convert writes one image per page of task into its output directory.
//
// A document ends in exactly one of file_complete (OutcomeSuccess) or
// file_error (OutcomeError). On cancellation neither is emitted and pages
// already written stay on disk.
func (c *Converter) Convert(ctx context.Context, task job.DocumentTask) (outcome Outcome, err error) {
	logger := c.opts.Logger.With("file", task.Filename, "index", task.Index)

	var doc render.Document
	defer func() {
		if r := recover(); r != nil {
			outcome, err = c.fail(ctx, logger, task, fmt.Errorf("panic: %v", r))
		}
		if doc != nil {
			if cerr := doc.Close(); cerr != nil {
				logger.Warn("close document failed", "err", cerr)
			}
		}
	}()

	if err := c.emit(ctx, schema.FileStarted(c.runID, task.Filename)); err != nil {
		return OutcomeCancelled, err
	}

	if err := os.MkdirAll(task.OutputDir, 0o755); err != nil {
		return c.fail(ctx, logger, task, fmt.Errorf("create output directory: %w", err))
	}

	opened, err := c.opener.OpenDocument(task.Input)
	if err != nil {
		if !errors.Is(err, render.ErrOpen) {
			err = fmt.Errorf("%w %s: %w", render.ErrOpen, task.Input, err)
		}
		return c.fail(ctx, logger, task, err)
	}
	doc = opened

	total := doc.PageCount()
	if total < 0 {
		return c.fail(ctx, logger, task, fmt.Errorf("invalid page count %d", total))
	}
	if err := c.emit(ctx, schema.FileTotalPages(c.runID, total)); err != nil {
		return OutcomeCancelled, err
	}
	logger.Info("converting document", "pages", total, "output_dir", task.OutputDir)

	for page := 1; page <= total; page++ {
		if c.interrupted(ctx) {
			logger.Info("document cancelled", "page", page, "pages", total)
			return OutcomeCancelled, nil
		}

		raster, err := doc.RenderPage(page-1, c.scale)
		if err != nil {
			return c.fail(ctx, logger, task, &PageError{Page: page, Err: err})
		}
		if err := raster.Save(task.PagePath(page), task.Format, c.quality); err != nil {
			return c.fail(ctx, logger, task, &PageError{Page: page, Err: err})
		}

		if c.shouldReport(page, total) {
			if err := c.emit(ctx, schema.FileProgress(c.runID, task.Filename, page, total)); err != nil {
				return OutcomeCancelled, err
			}
		}
	}

	closing := doc
	doc = nil
	if err := closing.Close(); err != nil {
		return c.fail(ctx, logger, task, fmt.Errorf("close document: %w", err))
	}

	if err := c.emit(ctx, schema.FileComplete(c.runID, task.Filename)); err != nil {
		return OutcomeCancelled, err
	}
	logger.Info("document complete", "pages", total)
	return OutcomeSuccess, nil
}

// interrupted waits while the run is paused and reports whether the document
// must stop: cancel was requested or the run context is done.
func (c *Converter) interrupted(ctx context.Context) bool {
	for c.control.Paused() {
		if c.control.Cancelled() || ctx.Err() != nil {
			return true
		}
		timer := time.NewTimer(c.opts.PollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return true
		case <-timer.C:
		}
	}
	return c.control.Cancelled() || ctx.Err() != nil
}

func (c *Converter) shouldReport(page, total int) bool {
	every := c.opts.ProgressEvery
	return every <= 1 || page%every == 0 || page == 1 || page == total
}

func (c *Converter) fail(ctx context.Context, logger *slog.Logger, task job.DocumentTask, cause error) (Outcome, error) {
	logger.Error("document failed", "input", task.Input, "err", cause)
	if err := c.emit(ctx, schema.FileError(c.runID, task.Filename, cause)); err != nil {
		logger.Warn("publish file error failed", "err", err)
	}
	return OutcomeError, cause
}

func (c *Converter) emit(ctx context.Context, ev schema.ProgressEvent) error {
	if err := c.queue.Send(ctx, ev); err != nil {
		return fmt.Errorf("send %s: %w", ev.Type, err)
	}
	return nil
}
