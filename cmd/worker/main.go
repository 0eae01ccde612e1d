// cmd/worker converts documents on request: it takes JobRequest messages from
// a NATS queue group, runs them one at a time, mirrors progress events and
// publishes a JobResult per request.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/tendant/simple-pdf2img/internal/bus"
	"github.com/tendant/simple-pdf2img/internal/config"
	"github.com/tendant/simple-pdf2img/internal/coordinator"
	"github.com/tendant/simple-pdf2img/internal/render"
)

type workerConfig struct {
	config.Config

	JobSubject    string
	WorkerQueue   string
	ResultSubject string
	JobTimeout    time.Duration
}

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := loadConfig()
	if err != nil {
		fatal(logger, "load config", err)
	}
	logger.Info("worker starting",
		"nats_url", cfg.NATSURL,
		"job_subject", cfg.JobSubject,
		"queue", cfg.WorkerQueue,
		"result_subject", cfg.ResultSubject,
		"output_dir", cfg.OutputDir,
		"renderer", cfg.Renderer,
		"format", cfg.Format,
		"dpi", cfg.DPI)

	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		fatal(logger, "ensure output directory", err, "output_dir", cfg.OutputDir)
	}

	opener, err := render.NewOpener(cfg.Renderer)
	if err != nil {
		fatal(logger, "select renderer", err)
	}

	nc, err := bus.Connect(cfg.NATSURL)
	if err != nil {
		fatal(logger, "connect to NATS", err, "nats_url", cfg.NATSURL)
	}
	logger.Info("connected to NATS", "nats_url", cfg.NATSURL)
	defer nc.Close()

	coord := coordinator.New(coordinator.Options{
		Opener:     opener,
		Worker:     cfg.WorkerOptions(),
		QueueSize:  cfg.QueueSize,
		DrainBatch: cfg.DrainBatch,
		Sink:       bus.NewEventPublisher(nc, cfg.ProgressSubject),
		Logger:     logger,
	})
	defer coord.Shutdown()

	h := newJobHandler(coord, cfg, nc, logger)

	if _, err := nc.QueueSubscribeJSON(cfg.JobSubject, cfg.WorkerQueue, h.handle); err != nil {
		fatal(logger, "subscribe jobs", err, "job_subject", cfg.JobSubject, "queue", cfg.WorkerQueue)
	}
	logger.Info("listening for jobs", "subject", cfg.JobSubject, "queue", cfg.WorkerQueue)

	if _, err := nc.SubscribeJSON(cfg.ControlSubject, h.control); err != nil {
		fatal(logger, "subscribe control", err, "subject", cfg.ControlSubject)
	}
	logger.Info("listening for control commands", "subject", cfg.ControlSubject)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	sig := <-sigs
	logger.Info("shutting down", "signal", sig.String())
}

func fatal(logger *slog.Logger, msg string, err error, attrs ...any) {
	attrs = append(attrs, "err", err)
	logger.Error(msg, attrs...)
	os.Exit(1)
}

func loadConfig() (workerConfig, error) {
	base, err := config.Load()
	if err != nil {
		return workerConfig{}, err
	}
	cfg := workerConfig{
		Config:        base,
		JobSubject:    getenv("PDF2IMG_JOB_SUBJECT", "pdf2img.jobs"),
		WorkerQueue:   getenv("PDF2IMG_WORKER_QUEUE", "pdf2img-workers"),
		ResultSubject: getenv("PDF2IMG_RESULT_SUBJECT", "pdf2img.done"),
	}
	if cfg.NATSURL == "" {
		cfg.NATSURL = "nats://127.0.0.1:4222"
	}

	timeout, err := time.ParseDuration(getenv("PDF2IMG_JOB_TIMEOUT", "30m"))
	if err != nil {
		return workerConfig{}, fmt.Errorf("invalid PDF2IMG_JOB_TIMEOUT: %w", err)
	}
	if timeout <= 0 {
		return workerConfig{}, fmt.Errorf("PDF2IMG_JOB_TIMEOUT must be greater than zero (got %s)", timeout)
	}
	cfg.JobTimeout = timeout
	return cfg, nil
}

func getenv(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}
