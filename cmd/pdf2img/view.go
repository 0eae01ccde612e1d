package main

import (
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"

	"github.com/tendant/simple-pdf2img/pkg/schema"
)

var (
	okColor   = color.New(color.FgGreen)
	failColor = color.New(color.FgRed)
	warnColor = color.New(color.FgYellow)
)

// view renders drained events: a page bar for the current document and one
// line per finished document.
type view struct {
	barOut io.Writer
	out    io.Writer
	bar    *progressbar.ProgressBar

	currentFile int
	totalFiles  int
	filename    string
	pages       int
	paused      bool
	stopping    bool
	failures    []schema.ProgressEvent
}

func newView(barOut, out io.Writer) *view {
	return &view{barOut: barOut, out: out}
}

func (v *view) description() string {
	desc := fmt.Sprintf("[%d/%d] %s", v.currentFile, v.totalFiles, v.filename)
	switch {
	case v.stopping:
		desc += " (cancelling)"
	case v.paused:
		desc += " (paused)"
	}
	return desc
}

func (v *view) newBar() *progressbar.ProgressBar {
	return progressbar.NewOptions64(1,
		progressbar.OptionSetWriter(v.barOut),
		progressbar.OptionSetDescription(v.description()),
		progressbar.OptionSetWidth(30),
		progressbar.OptionShowCount(),
		progressbar.OptionSetItsString("pages"),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)
}

func (v *view) apply(ev schema.ProgressEvent) {
	switch ev.Type {
	case schema.EventOverallProgress:
		v.currentFile, v.totalFiles = ev.CurrentFile, ev.TotalFiles
	case schema.EventFileStarted:
		v.filename = ev.Filename
		v.pages = 0
		v.bar = v.newBar()
	case schema.EventFileTotalPages:
		v.pages = ev.TotalPages
		if v.bar != nil {
			v.bar.ChangeMax64(int64(max(ev.TotalPages, 1)))
		}
	case schema.EventFileProgress:
		if v.bar != nil {
			_ = v.bar.Set64(int64(ev.CurrentPage))
		}
	case schema.EventFileComplete:
		v.clearBar(true)
		okColor.Fprintf(v.out, "✓ %s (%d pages)\n", ev.Filename, v.pages)
	case schema.EventFileError:
		v.clearBar(false)
		v.failures = append(v.failures, ev)
		failColor.Fprintf(v.out, "✗ %s: %s\n", ev.Filename, ev.Error)
	}
}

func (v *view) clearBar(done bool) {
	if v.bar == nil {
		return
	}
	if done {
		_ = v.bar.Finish()
	} else {
		_ = v.bar.Clear()
	}
	v.bar = nil
}

func (v *view) setPaused(paused bool) {
	v.paused = paused
	if v.bar != nil {
		v.bar.Describe(v.description())
	}
	if paused {
		warnColor.Fprintln(v.out, "Paused. Type r to resume.")
	} else {
		fmt.Fprintln(v.out, "Resumed.")
	}
}

func (v *view) cancelling() {
	if v.stopping {
		return
	}
	v.stopping = true
	if v.bar != nil {
		v.bar.Describe(v.description())
	}
	warnColor.Fprintln(v.out, "Cancelling after the current page...")
}

func (v *view) abort() {
	v.clearBar(false)
	warnColor.Fprintln(v.out, "Aborted.")
}

func (v *view) finish(s schema.BatchSummary) {
	v.clearBar(false)
	msg, c := tally(s)
	c.Fprintln(v.out, msg)
	if s.ErrorCount == 0 {
		return
	}
	for _, f := range v.failures {
		fmt.Fprintf(v.out, "  - %s: %s\n", f.Filename, f.Error)
	}
}

// tally phrases the end-of-run summary.
func tally(s schema.BatchSummary) (string, *color.Color) {
	switch {
	case s.WasCancelled:
		return fmt.Sprintf("Conversion stopped: %d of %d documents converted, %d failed.", s.SuccessCount, s.TotalFiles, s.ErrorCount), warnColor
	case s.ErrorCount == 0:
		return fmt.Sprintf("All %d documents converted.", s.TotalFiles), okColor
	default:
		return fmt.Sprintf("Converted %d of %d documents; %d failed:", s.SuccessCount, s.TotalFiles, s.ErrorCount), failColor
	}
}
