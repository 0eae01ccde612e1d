// Package config reads conversion defaults from the environment and job
// manifests from YAML files.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/tendant/simple-pdf2img/internal/coordinator"
	"github.com/tendant/simple-pdf2img/internal/job"
	"github.com/tendant/simple-pdf2img/internal/progress"
	"github.com/tendant/simple-pdf2img/internal/render"
	"github.com/tendant/simple-pdf2img/internal/worker"
)

type Config struct {
	OutputDir     string
	Format        render.Format
	Quality       int
	DPI           float64
	PollInterval  time.Duration
	DrainBatch    int
	ProgressEvery int
	QueueSize     int
	// Renderer selects the rasterizer: mupdf or poppler.
	Renderer string

	// NATSURL enables the progress mirror when set.
	NATSURL         string
	ProgressSubject string
	ControlSubject  string
}

// Load reads PDF2IMG_* and NATS_* variables. Callers load .env files first.
func Load() (Config, error) {
	cfg := Config{
		OutputDir:       getenv("PDF2IMG_OUTPUT_DIR", "./output"),
		Renderer:        getenv("PDF2IMG_RENDERER", render.RendererMuPDF),
		NATSURL:         getenv("NATS_URL", ""),
		ProgressSubject: getenv("PDF2IMG_PROGRESS_SUBJECT", "pdf2img.progress"),
		ControlSubject:  getenv("PDF2IMG_CONTROL_SUBJECT", "pdf2img.control"),
	}

	format, err := render.ParseFormat(getenv("PDF2IMG_FORMAT", string(render.FormatPNG)))
	if err != nil {
		return Config{}, fmt.Errorf("invalid PDF2IMG_FORMAT: %w", err)
	}
	cfg.Format = format

	if cfg.Quality, err = parsePositiveInt(getenv("PDF2IMG_QUALITY", strconv.Itoa(job.DefaultQuality)), "PDF2IMG_QUALITY"); err != nil {
		return Config{}, err
	}
	if cfg.Quality < job.MinQuality || cfg.Quality > job.MaxQuality {
		return Config{}, fmt.Errorf("PDF2IMG_QUALITY must be between %d and %d (got %d)", job.MinQuality, job.MaxQuality, cfg.Quality)
	}
	if cfg.DPI, err = parsePositiveFloat(getenv("PDF2IMG_DPI", strconv.Itoa(job.DefaultDPI)), "PDF2IMG_DPI"); err != nil {
		return Config{}, err
	}
	if cfg.PollInterval, err = parsePositiveDuration(getenv("PDF2IMG_POLL_INTERVAL", worker.DefaultPollInterval.String()), "PDF2IMG_POLL_INTERVAL"); err != nil {
		return Config{}, err
	}
	if cfg.DrainBatch, err = parsePositiveInt(getenv("PDF2IMG_DRAIN_BATCH", strconv.Itoa(coordinator.DefaultDrainBatch)), "PDF2IMG_DRAIN_BATCH"); err != nil {
		return Config{}, err
	}
	if cfg.ProgressEvery, err = parsePositiveInt(getenv("PDF2IMG_PROGRESS_EVERY", "1"), "PDF2IMG_PROGRESS_EVERY"); err != nil {
		return Config{}, err
	}
	if cfg.QueueSize, err = parsePositiveInt(getenv("PDF2IMG_QUEUE_SIZE", strconv.Itoa(progress.DefaultQueueSize)), "PDF2IMG_QUEUE_SIZE"); err != nil {
		return Config{}, err
	}
	if _, err := render.NewOpener(cfg.Renderer); err != nil {
		return Config{}, fmt.Errorf("invalid PDF2IMG_RENDERER: %w", err)
	}
	return cfg, nil
}

// Job builds a job for inputs from the configured defaults.
func (c Config) Job(inputs []string) job.ConversionJob {
	return job.ConversionJob{
		Inputs:    inputs,
		OutputDir: c.OutputDir,
		Format:    c.Format,
		Quality:   c.Quality,
		DPI:       c.DPI,
	}
}

// WorkerOptions returns the pacing settings for a run.
func (c Config) WorkerOptions() worker.Options {
	return worker.Options{PollInterval: c.PollInterval, ProgressEvery: c.ProgressEvery}
}

func getenv(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func parsePositiveInt(value string, name string) (int, error) {
	v, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	if v <= 0 {
		return 0, fmt.Errorf("%s must be greater than zero (got %d)", name, v)
	}
	return v, nil
}

func parsePositiveFloat(value string, name string) (float64, error) {
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	if v <= 0 {
		return 0, fmt.Errorf("%s must be greater than zero (got %g)", name, v)
	}
	return v, nil
}

func parsePositiveDuration(value string, name string) (time.Duration, error) {
	v, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	if v <= 0 {
		return 0, fmt.Errorf("%s must be greater than zero (got %s)", name, v)
	}
	return v, nil
}
