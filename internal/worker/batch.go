package worker

import (
	"context"
	"log/slog"

	"github.com/tendant/simple-pdf2img/internal/job"
	"github.com/tendant/simple-pdf2img/internal/progress"
	"github.com/tendant/simple-pdf2img/internal/render"
	"github.com/tendant/simple-pdf2img/pkg/schema"
)

// Batch converts the documents of one job sequentially.
type Batch struct {
	job       job.ConversionJob
	converter *Converter
	queue     *progress.Queue
	control   *RunControl
	runID     string
	logger    *slog.Logger
}

func NewBatch(j job.ConversionJob, opener render.Opener, queue *progress.Queue, control *RunControl, runID string, opts Options) *Batch {
	opts = opts.withDefaults()
	return &Batch{
		job:       j,
		converter: NewConverter(j, opener, queue, control, runID, opts),
		queue:     queue,
		control:   control,
		runID:     runID,
		logger:    opts.Logger,
	}
}

// Run processes every document in order and always finishes with a single
// batch_complete event. A failed document is counted and skipped; cancellation
// stops the loop before the next document or page.
func (b *Batch) Run(ctx context.Context) schema.BatchSummary {
	tasks := b.job.Tasks()
	summary := schema.BatchSummary{TotalFiles: len(tasks)}
	b.logger.Info("batch starting", "files", len(tasks), "format", b.job.Format, "dpi", b.job.DPI, "output_dir", b.job.OutputDir)

	for _, task := range tasks {
		if b.control.Cancelled() || ctx.Err() != nil {
			break
		}

		if err := b.queue.Send(ctx, schema.OverallProgress(b.runID, task.Index, len(tasks))); err != nil {
			b.logger.Warn("publish overall progress failed", "err", err)
			break
		}

		outcome, err := b.converter.Convert(ctx, task)
		switch outcome {
		case OutcomeSuccess:
			summary.SuccessCount++
		case OutcomeError:
			summary.ErrorCount++
		case OutcomeCancelled:
			if err != nil {
				b.logger.Warn("document interrupted", "file", task.Filename, "err", err)
			}
		}
		if outcome == OutcomeCancelled {
			break
		}
	}

	summary.WasCancelled = b.control.Cancelled() || ctx.Err() != nil
	if err := b.queue.Send(ctx, schema.BatchComplete(b.runID, summary)); err != nil {
		b.logger.Warn("publish batch complete failed", "err", err)
	}
	b.logger.Info("batch finished",
		"success", summary.SuccessCount,
		"errors", summary.ErrorCount,
		"total", summary.TotalFiles,
		"cancelled", summary.WasCancelled)
	return summary
}
