package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/tendant/simple-pdf2img/internal/bus"
	"github.com/tendant/simple-pdf2img/internal/config"
	"github.com/tendant/simple-pdf2img/internal/coordinator"
	"github.com/tendant/simple-pdf2img/internal/job"
	"github.com/tendant/simple-pdf2img/internal/render"
)

// errDocumentsFailed makes the process exit non-zero after the summary has
// already been printed.
var errDocumentsFailed = errors.New("one or more documents failed")

type convertFlags struct {
	out       string
	format    string
	quality   int
	dpi       float64
	jobFile   string
	recursive bool
	dryRun    bool
	natsURL   string
	renderer  string
}

func newConvertCmd(a *app) *cobra.Command {
	var f convertFlags
	cmd := &cobra.Command{
		Use:   "convert [files or directories...]",
		Short: "Render every page of the given PDFs to image files",
		Long: `Render every page of each input document to <out>/<name>_imgs/<name>_0001.<ext>.

While a conversion runs, type p, r or c followed by Enter to pause, resume or
cancel. Ctrl-C cancels after the current page; a second Ctrl-C exits at once.
SIGUSR1 toggles pause.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			j, err := buildJob(cmd.Flags(), a.cfg, f, args)
			if err != nil {
				return err
			}
			opener, err := openerFor(a.cfg, f.renderer)
			if err != nil {
				return err
			}
			if f.dryRun {
				return printPlan(cmd.OutOrStdout(), j, opener)
			}
			return a.runConvert(cmd, j, opener, f)
		},
	}

	bindConvertFlags(cmd.Flags(), &f)
	return cmd
}

func bindConvertFlags(fl *pflag.FlagSet, f *convertFlags) {
	fl.StringVarP(&f.out, "out", "o", "", "output directory (default $PDF2IMG_OUTPUT_DIR or ./output)")
	fl.StringVarP(&f.format, "format", "f", "", "image format: png or jpg")
	fl.IntVarP(&f.quality, "quality", "q", 0, fmt.Sprintf("JPEG quality %d-%d", job.MinQuality, job.MaxQuality))
	fl.Float64Var(&f.dpi, "dpi", 0, "render resolution in dots per inch")
	fl.StringVar(&f.jobFile, "job", "", "YAML job manifest")
	fl.BoolVarP(&f.recursive, "recursive", "r", false, "descend into subdirectories of directory inputs")
	fl.BoolVar(&f.dryRun, "dry-run", false, "print the planned output tree without converting")
	fl.StringVar(&f.natsURL, "nats-url", "", "mirror progress to this NATS server (default $NATS_URL)")
	bindRendererFlag(fl, &f.renderer)
}

func bindRendererFlag(fl *pflag.FlagSet, renderer *string) {
	fl.StringVar(renderer, "renderer", "", "rasterizer: mupdf or poppler (default $PDF2IMG_RENDERER or mupdf)")
}

// openerFor picks the rasterizer: the --renderer flag wins over the
// environment.
func openerFor(cfg config.Config, flagRenderer string) (render.Opener, error) {
	renderer := cfg.Renderer
	if flagRenderer != "" {
		renderer = flagRenderer
	}
	return render.NewOpener(renderer)
}

// buildJob layers settings: environment defaults, then the manifest, then
// flags that were set explicitly.
func buildJob(fl *pflag.FlagSet, cfg config.Config, f convertFlags, args []string) (job.ConversionJob, error) {
	j := cfg.Job(nil)
	paths := args
	recursive := f.recursive

	if f.jobFile != "" {
		m, err := config.LoadManifest(f.jobFile)
		if err != nil {
			return job.ConversionJob{}, err
		}
		if err := m.Apply(&j); err != nil {
			return job.ConversionJob{}, err
		}
		paths = append(m.InputPaths(), args...)
		recursive = recursive || m.Recursive
	}

	if fl.Changed("out") {
		j.OutputDir = f.out
	}
	if fl.Changed("format") {
		format, err := render.ParseFormat(f.format)
		if err != nil {
			return job.ConversionJob{}, err
		}
		j.Format = format
	}
	if fl.Changed("quality") {
		j.Quality = f.quality
	}
	if fl.Changed("dpi") {
		j.DPI = f.dpi
	}

	inputs, err := job.CollectInputs(paths, recursive)
	if err != nil {
		return job.ConversionJob{}, err
	}
	j.Inputs = inputs
	if err := j.Validate(); err != nil {
		return job.ConversionJob{}, err
	}
	return j, nil
}

func (a *app) runConvert(cmd *cobra.Command, j job.ConversionJob, opener render.Opener, f convertFlags) error {
	logger := a.logger

	natsURL := a.cfg.NATSURL
	if f.natsURL != "" {
		natsURL = f.natsURL
	}

	opts := coordinator.Options{
		Opener:     opener,
		Worker:     a.cfg.WorkerOptions(),
		QueueSize:  a.cfg.QueueSize,
		DrainBatch: a.cfg.DrainBatch,
		Logger:     logger,
	}

	var nc *bus.Client
	if natsURL != "" {
		var err error
		nc, err = bus.Connect(natsURL)
		if err != nil {
			fatal(logger, "connect to NATS", err, "nats_url", natsURL)
		}
		defer nc.Close()
		logger.Info("connected to NATS", "nats_url", natsURL, "subject", a.cfg.ProgressSubject)
		opts.Sink = bus.NewEventPublisher(nc, a.cfg.ProgressSubject)
	}

	coord := coordinator.New(opts)
	handle, err := coord.Start(j)
	if err != nil {
		return err
	}
	defer coord.Shutdown()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	commands := make(chan command, 4)
	stopSignals := watchSignals(ctx, commands, cancel)
	defer stopSignals()
	go readCommands(ctx, os.Stdin, commands)

	if nc != nil {
		remote := remoteControl{ctx: ctx, runID: handle.RunID(), out: commands}
		sub, err := nc.SubscribeJSON(a.cfg.ControlSubject, bus.ControlHandler(remote, logger))
		if err != nil {
			logger.Warn("subscribe control subject failed", "subject", a.cfg.ControlSubject, "err", err)
		} else {
			defer func() { _ = sub.Unsubscribe() }()
			logger.Info("listening for control commands", "subject", a.cfg.ControlSubject, "run_id", handle.RunID())
		}
	}

	s := &session{
		handle:     handle,
		view:       newView(cmd.ErrOrStderr(), cmd.OutOrStdout()),
		drainBatch: a.cfg.DrainBatch,
		poll:       a.cfg.PollInterval,
		logger:     logger,
	}
	summary, err := s.run(ctx, commands)
	if err != nil {
		return fmt.Errorf("conversion aborted: %w", err)
	}
	if summary.ErrorCount > 0 {
		return errDocumentsFailed
	}
	return nil
}
