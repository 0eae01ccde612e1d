package main

import (
	"fmt"
	"io"

	"github.com/tendant/simple-pdf2img/internal/job"
	"github.com/tendant/simple-pdf2img/internal/render"
)

// planPreview is how many leading page names are listed per document.
const planPreview = 3

// printPlan writes the output tree a conversion would produce. Documents are
// opened to count pages; nothing is written.
func printPlan(w io.Writer, j job.ConversionJob, opener render.Opener) error {
	settings := fmt.Sprintf("%s at %g dpi", j.Format, j.DPI)
	if j.Format.Lossy() {
		settings += fmt.Sprintf(", quality %d", j.Quality)
	}
	fmt.Fprintf(w, "Dry run: %d documents, %s -> %s\n", len(j.Inputs), settings, j.OutputDir)

	for _, task := range j.Tasks() {
		info, err := render.Probe(opener, task.Input, j.DPI)
		if err != nil {
			fmt.Fprintf(w, "%s -> %s/ (skipped: %v)\n", task.Filename, task.OutputDir, err)
			continue
		}
		fmt.Fprintf(w, "%s -> %s/ (%d pages, %dx%d px)\n", task.Filename, task.OutputDir, info.Pages, info.Width, info.Height)
		for p := 1; p <= info.Pages; p++ {
			if p > planPreview && p < info.Pages {
				if p == planPreview+1 {
					fmt.Fprintln(w, "    ...")
				}
				continue
			}
			fmt.Fprintf(w, "    %s\n", task.PageName(p))
		}
	}
	return nil
}
