package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"

	"github.com/tendant/simple-pdf2img/internal/job"
	"github.com/tendant/simple-pdf2img/internal/render"
)

func newProbeCmd(a *app) *cobra.Command {
	var (
		dpi      float64
		renderer string
	)
	cmd := &cobra.Command{
		Use:   "probe <file>",
		Short: "Show document metadata without converting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			if _, err := os.Stat(path); err != nil {
				return fmt.Errorf("input file: %w", err)
			}
			if !cmd.Flags().Changed("dpi") {
				dpi = a.cfg.DPI
			}

			opener, err := openerFor(a.cfg, renderer)
			if err != nil {
				return err
			}

			var s *spinner.Spinner
			if isTerminal(cmd.ErrOrStderr()) {
				s = spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(cmd.ErrOrStderr()))
				s.Suffix = " Opening " + path
				s.Start()
			}
			info, err := render.Probe(opener, path, dpi)
			if s != nil {
				s.Stop()
			}
			if err != nil {
				return fmt.Errorf("probe %s: %w", path, err)
			}
			printFileInfo(cmd.OutOrStdout(), info, dpi)
			return nil
		},
	}
	cmd.Flags().Float64Var(&dpi, "dpi", job.DefaultDPI, "resolution used to report the page size")
	bindRendererFlag(cmd.Flags(), &renderer)
	return cmd
}

func newDPIsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dpis",
		Short: "List the resolution presets",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			for _, d := range job.AllowedDPIs {
				mark := ""
				if d == job.DefaultDPI {
					mark = " (default)"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d%s\n", d, mark)
			}
		},
	}
}

func printFileInfo(w io.Writer, info *render.FileInfo, dpi float64) {
	fmt.Fprintf(w, "MIME Type: %s\n", info.MimeType)
	fmt.Fprintf(w, "Pages: %d\n", info.Pages)
	if info.Width > 0 && info.Height > 0 {
		fmt.Fprintf(w, "Page Size: %dx%d pixels at %g dpi\n", info.Width, info.Height, dpi)
	}
	if info.Size > 0 {
		fmt.Fprintf(w, "File Size: %s\n", formatBytes(info.Size))
	}
}

func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
