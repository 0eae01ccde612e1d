package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-pdf2img/internal/render"
)

var envKeys = []string{
	"PDF2IMG_OUTPUT_DIR", "PDF2IMG_FORMAT", "PDF2IMG_QUALITY", "PDF2IMG_DPI",
	"PDF2IMG_POLL_INTERVAL", "PDF2IMG_DRAIN_BATCH", "PDF2IMG_PROGRESS_EVERY",
	"PDF2IMG_QUEUE_SIZE", "PDF2IMG_RENDERER", "NATS_URL", "PDF2IMG_PROGRESS_SUBJECT", "PDF2IMG_CONTROL_SUBJECT",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "./output", cfg.OutputDir)
	assert.Equal(t, render.FormatPNG, cfg.Format)
	assert.Equal(t, 95, cfg.Quality)
	assert.Equal(t, 150.0, cfg.DPI)
	assert.Equal(t, 100*time.Millisecond, cfg.PollInterval)
	assert.Equal(t, 5, cfg.DrainBatch)
	assert.Equal(t, 1, cfg.ProgressEvery)
	assert.Equal(t, 1024, cfg.QueueSize)
	assert.Empty(t, cfg.NATSURL)
	assert.Equal(t, "pdf2img.progress", cfg.ProgressSubject)
	assert.Equal(t, "pdf2img.control", cfg.ControlSubject)
	assert.Equal(t, "mupdf", cfg.Renderer)
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PDF2IMG_OUTPUT_DIR", "/data/pages")
	t.Setenv("PDF2IMG_FORMAT", "JPEG")
	t.Setenv("PDF2IMG_QUALITY", "80")
	t.Setenv("PDF2IMG_DPI", "300")
	t.Setenv("PDF2IMG_POLL_INTERVAL", "250ms")
	t.Setenv("PDF2IMG_PROGRESS_EVERY", "10")
	t.Setenv("NATS_URL", "nats://127.0.0.1:4222")
	t.Setenv("PDF2IMG_RENDERER", "poppler")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, render.FormatJPEG, cfg.Format)
	assert.Equal(t, 80, cfg.Quality)
	assert.Equal(t, 300.0, cfg.DPI)
	assert.Equal(t, 250*time.Millisecond, cfg.PollInterval)
	assert.Equal(t, "nats://127.0.0.1:4222", cfg.NATSURL)
	assert.Equal(t, "poppler", cfg.Renderer)

	j := cfg.Job([]string{"a.pdf"})
	assert.Equal(t, "/data/pages", j.OutputDir)
	assert.Equal(t, render.FormatJPEG, j.Format)
	require.NoError(t, j.Validate())

	opts := cfg.WorkerOptions()
	assert.Equal(t, 10, opts.ProgressEvery)
	assert.Equal(t, 250*time.Millisecond, opts.PollInterval)
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"PDF2IMG_FORMAT", "tiff"},
		{"PDF2IMG_QUALITY", "not-a-number"},
		{"PDF2IMG_QUALITY", "20"},
		{"PDF2IMG_DPI", "-72"},
		{"PDF2IMG_POLL_INTERVAL", "soon"},
		{"PDF2IMG_DRAIN_BATCH", "0"},
		{"PDF2IMG_QUEUE_SIZE", "-1"},
		{"PDF2IMG_RENDERER", "ghostscript"},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.key)
		})
	}
}
