package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/tendant/simple-pdf2img/internal/bus"
	"github.com/tendant/simple-pdf2img/internal/coordinator"
	"github.com/tendant/simple-pdf2img/internal/job"
	"github.com/tendant/simple-pdf2img/internal/render"
	"github.com/tendant/simple-pdf2img/pkg/schema"
)

type jobHandler struct {
	coord  *coordinator.Coordinator
	cfg    workerConfig
	pub    bus.JSONPublisher
	logger *slog.Logger

	active atomic.Pointer[coordinator.Handle]
}

func newJobHandler(coord *coordinator.Coordinator, cfg workerConfig, pub bus.JSONPublisher, logger *slog.Logger) *jobHandler {
	return &jobHandler{coord: coord, cfg: cfg, pub: pub, logger: logger}
}

// handle runs one request to completion and publishes its result.
func (h *jobHandler) handle(ctx context.Context, data []byte) {
	var req schema.JobRequest
	var res schema.JobResult
	if err := json.Unmarshal(data, &req); err != nil {
		h.logger.Warn("invalid job request", "err", err)
		res = schema.JobResult{
			Error:       fmt.Sprintf("decode job request: %v", err),
			FailureType: schema.FailureTypeValidation,
			HappenedAt:  time.Now().Unix(),
		}
	} else {
		res = h.run(ctx, req)
	}

	if err := h.pub.PublishJSON(h.cfg.ResultSubject, res); err != nil {
		h.logger.Error("publish result failed", "subject", h.cfg.ResultSubject, "id", res.ID, "err", err)
	}
}

func (h *jobHandler) run(ctx context.Context, req schema.JobRequest) (res schema.JobResult) {
	logger := h.logger.With("job_id", req.ID)
	start := time.Now()
	res.ID = req.ID
	defer func() {
		res.ProcessingTimeMs = time.Since(start).Milliseconds()
		res.HappenedAt = time.Now().Unix()
	}()

	fail := func(err error) schema.JobResult {
		res.Error = err.Error()
		res.FailureType = classifyError(err)
		logger.Warn("job failed", "failure_type", res.FailureType, "err", err)
		return res
	}

	j, err := h.buildJob(req)
	if err != nil {
		return fail(err)
	}
	logger.Info("received job", "files", len(j.Inputs), "output_dir", j.OutputDir)

	handle, err := h.coord.Start(j)
	if err != nil {
		return fail(err)
	}
	h.active.Store(handle)
	defer h.active.Store(nil)
	res.RunID = handle.RunID()

	ctx, cancel := context.WithTimeout(ctx, h.cfg.JobTimeout)
	defer cancel()

	summary, err := handle.Wait(ctx, func(ev schema.ProgressEvent) {
		if ev.Type == schema.EventFileError {
			res.Failures = append(res.Failures, schema.DocumentFailure{Filename: ev.Filename, Error: ev.Error})
		}
	})
	if err != nil {
		h.coord.Shutdown()
		return fail(fmt.Errorf("wait for run %s: %w", handle.RunID(), err))
	}

	res.Summary = &summary
	logger.Info("completed job",
		"run_id", res.RunID,
		"success", summary.SuccessCount,
		"errors", summary.ErrorCount,
		"cancelled", summary.WasCancelled)
	return res
}

// buildJob applies request overrides to the configured defaults.
func (h *jobHandler) buildJob(req schema.JobRequest) (job.ConversionJob, error) {
	j := h.cfg.Job(nil)
	if req.OutputDir != "" {
		j.OutputDir = req.OutputDir
	}
	if req.Format != "" {
		format, err := render.ParseFormat(req.Format)
		if err != nil {
			return job.ConversionJob{}, job.ValidationError{Field: "format", Message: err.Error()}
		}
		j.Format = format
	}
	if req.Quality != 0 {
		j.Quality = req.Quality
	}
	if req.DPI != 0 {
		j.DPI = req.DPI
	}

	inputs, err := job.CollectInputs(req.Inputs, false)
	if err != nil {
		return job.ConversionJob{}, err
	}
	j.Inputs = inputs
	if err := j.Validate(); err != nil {
		return job.ConversionJob{}, err
	}
	return j, nil
}

// control routes remote commands to the run in progress, if any.
func (h *jobHandler) control(ctx context.Context, data []byte) {
	handle := h.active.Load()
	if handle == nil {
		h.logger.Debug("control command with no active run")
		return
	}
	bus.ControlHandler(handle, h.logger)(ctx, data)
}

func classifyError(err error) schema.FailureType {
	if err == nil {
		return ""
	}

	var validationErr job.ValidationError
	if errors.As(err, &validationErr) {
		return schema.FailureTypeValidation
	}
	if errors.Is(err, coordinator.ErrAlreadyRunning) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled) {
		return schema.FailureTypeRetryable
	}
	return schema.FailureTypePermanent
}
