// pdf2img converts PDF documents into one image file per page.
//
// Usage:
//
//	pdf2img convert report.pdf scans/ --format jpg --quality 85 --dpi 200
//	pdf2img convert --job job.yaml --dry-run
//	pdf2img probe report.pdf
//	pdf2img dpis
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		if !errors.Is(err, errDocumentsFailed) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}

func fatal(logger *slog.Logger, msg string, err error, attrs ...any) {
	attrs = append(attrs, "err", err)
	logger.Error(msg, attrs...)
	os.Exit(1)
}
