// cmd/backfill finds documents whose page images have not been produced yet
// and publishes conversion jobs for them to the worker queue.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/tendant/simple-pdf2img/internal/bus"
	"github.com/tendant/simple-pdf2img/internal/job"
	"github.com/tendant/simple-pdf2img/pkg/schema"
)

type config struct {
	NATSURL     string
	JobSubject  string
	OutputDir   string
	Dirs        []string
	Recursive   bool
	BatchSize   int
	Limit       int
	DryRun      bool
	OnlyMissing bool
}

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := loadConfig(os.Args[1:])
	if err != nil {
		fatal(logger, "load config", err)
	}
	logger.Info("backfill starting",
		"nats_url", cfg.NATSURL,
		"job_subject", cfg.JobSubject,
		"dirs", cfg.Dirs,
		"output_dir", cfg.OutputDir,
		"batch_size", cfg.BatchSize,
		"limit", cfg.Limit,
		"dry_run", cfg.DryRun,
		"only_missing", cfg.OnlyMissing,
	)

	inputs, err := job.CollectInputs(cfg.Dirs, cfg.Recursive)
	if err != nil {
		fatal(logger, "collect inputs", err)
	}

	pending, skipped, err := findPending(inputs, cfg.OutputDir, cfg.OnlyMissing)
	if err != nil {
		fatal(logger, "scan outputs", err)
	}
	if cfg.Limit > 0 && len(pending) > cfg.Limit {
		pending = pending[:cfg.Limit]
	}
	logger.Info("scan complete", "found", len(inputs), "pending", len(pending), "skipped_has_pages", skipped)

	var nc *bus.Client
	if !cfg.DryRun {
		nc, err = bus.Connect(cfg.NATSURL)
		if err != nil {
			fatal(logger, "connect to NATS", err, "nats_url", cfg.NATSURL)
		}
		defer nc.Close()
		logger.Info("connected to NATS", "nats_url", cfg.NATSURL)
	}

	published, failed := 0, 0
	for _, batch := range batches(pending, cfg.BatchSize) {
		req := schema.JobRequest{ID: uuid.NewString(), Inputs: batch, OutputDir: cfg.OutputDir}
		if cfg.DryRun {
			logger.Info("would publish job", "id", req.ID, "files", len(batch), "first", batch[0])
			continue
		}
		if err := nc.PublishJSON(cfg.JobSubject, req); err != nil {
			failed++
			logger.Error("publish job failed", "id", req.ID, "err", err)
			continue
		}
		published++
		logger.Info("published job", "id", req.ID, "files", len(batch))
	}

	logger.Info("backfill complete",
		"pending", len(pending),
		"jobs_published", published,
		"jobs_failed", failed,
		"dry_run", cfg.DryRun)
	if failed > 0 {
		os.Exit(1)
	}
}

func fatal(logger *slog.Logger, msg string, err error, attrs ...any) {
	attrs = append(attrs, "err", err)
	logger.Error(msg, attrs...)
	os.Exit(1)
}

func loadConfig(args []string) (config, error) {
	cfg := config{
		NATSURL:    getenv("NATS_URL", "nats://127.0.0.1:4222"),
		JobSubject: getenv("PDF2IMG_JOB_SUBJECT", "pdf2img.jobs"),
	}

	fs := pflag.NewFlagSet("backfill", pflag.ContinueOnError)
	fs.StringVar(&cfg.OutputDir, "out", getenv("PDF2IMG_OUTPUT_DIR", "./output"), "output directory the worker writes to")
	fs.BoolVarP(&cfg.Recursive, "recursive", "r", false, "descend into subdirectories")
	fs.IntVar(&cfg.BatchSize, "batch", 10, "documents per published job")
	fs.IntVar(&cfg.Limit, "limit", 0, "maximum number of documents to submit (0 = unlimited)")
	fs.BoolVar(&cfg.OnlyMissing, "only-missing", true, "skip documents that already have page images (false = convert all)")
	var execute bool
	fs.BoolVar(&execute, "execute", false, "actually publish jobs (default is a dry run)")
	if err := fs.Parse(args); err != nil {
		return config{}, err
	}

	cfg.DryRun = !execute
	cfg.Dirs = fs.Args()
	if len(cfg.Dirs) == 0 {
		return config{}, fmt.Errorf("at least one directory or document is required")
	}
	if cfg.BatchSize <= 0 {
		return config{}, fmt.Errorf("--batch must be greater than zero (got %d)", cfg.BatchSize)
	}
	if cfg.Limit < 0 {
		return config{}, fmt.Errorf("--limit must not be negative (got %d)", cfg.Limit)
	}
	return cfg, nil
}

func getenv(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}
