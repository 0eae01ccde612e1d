package render

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/disintegration/imaging"
)

// Poppler renders through the pdfinfo and pdftoppm tools from poppler-utils.
// Each page is rasterized to a lossless temporary file, decoded, and then
// encoded to the requested format like any other raster.
type Poppler struct {
	PDFInfo  string
	PDFToPPM string
	// Timeout bounds each tool invocation.
	Timeout time.Duration
}

func NewPoppler() *Poppler {
	return &Poppler{PDFInfo: "pdfinfo", PDFToPPM: "pdftoppm", Timeout: 2 * time.Minute}
}

func (p *Poppler) OpenDocument(path string) (Document, error) {
	if _, err := exec.LookPath(p.PDFToPPM); err != nil {
		return nil, fmt.Errorf("pdftoppm not found in PATH: %w (install poppler-utils)", err)
	}
	out, err := p.run(p.PDFInfo, path)
	if err != nil {
		return nil, fmt.Errorf("%w %s: %v", ErrOpen, path, err)
	}
	info, err := parsePDFInfo(out)
	if err != nil {
		return nil, fmt.Errorf("%w %s: %v", ErrOpen, path, err)
	}

	tmp, err := os.MkdirTemp("", "pdf2img-poppler-*")
	if err != nil {
		return nil, fmt.Errorf("create render scratch dir: %w", err)
	}
	return &popplerDocument{poppler: p, path: path, pages: info.Pages, scratch: tmp}, nil
}

func (p *Poppler) run(name string, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), p.Timeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("%s failed: %w: %s", name, err, strings.TrimSpace(string(out)))
	}
	return string(out), nil
}

type pdfInfo struct {
	Pages     int
	WidthPts  float64
	HeightPts float64
	Size      int64
}

// parsePDFInfo reads the "Key: value" lines printed by pdfinfo. A page count
// is required; the other fields are best effort.
func parsePDFInfo(out string) (pdfInfo, error) {
	var info pdfInfo
	pagesFound := false
	for _, line := range strings.Split(out, "\n") {
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)

		switch strings.TrimSpace(key) {
		case "Pages":
			if pages, err := strconv.Atoi(value); err == nil && pages >= 0 {
				info.Pages = pages
				pagesFound = true
			}
		case "Page size":
			// "595 x 842 pts (A4)"
			dims := strings.Fields(value)
			if len(dims) >= 3 {
				info.WidthPts, _ = strconv.ParseFloat(dims[0], 64)
				info.HeightPts, _ = strconv.ParseFloat(dims[2], 64)
			}
		case "File size":
			if fields := strings.Fields(value); len(fields) > 0 {
				info.Size, _ = strconv.ParseInt(fields[0], 10, 64)
			}
		}
	}
	if !pagesFound {
		return pdfInfo{}, errors.New("pdfinfo reported no page count")
	}
	return info, nil
}

// pdftoppmArgs renders the single 1-based page to "<base>.png".
func pdftoppmArgs(input, base string, page int, dpi float64) []string {
	n := strconv.Itoa(page)
	return []string{
		"-png",
		"-singlefile",
		"-f", n,
		"-l", n,
		"-r", strconv.FormatFloat(dpi, 'f', -1, 64),
		input,
		base,
	}
}

type popplerDocument struct {
	poppler *Poppler
	path    string
	pages   int
	scratch string
}

func (d *popplerDocument) PageCount() int { return d.pages }

func (d *popplerDocument) RenderPage(index int, scale float64) (Raster, error) {
	page := index + 1
	if scale <= 0 {
		return nil, fmt.Errorf("render page %d: invalid scale %v", page, scale)
	}
	if index < 0 || index >= d.pages {
		return nil, fmt.Errorf("render page %d: out of range (document has %d pages)", page, d.pages)
	}

	base := filepath.Join(d.scratch, fmt.Sprintf("page-%d", page))
	if _, err := d.poppler.run(d.poppler.PDFToPPM, pdftoppmArgs(d.path, base, page, scale*PointsPerInch)...); err != nil {
		return nil, fmt.Errorf("render page %d: %w", page, err)
	}
	defer os.Remove(base + ".png")

	img, err := imaging.Open(base + ".png")
	if err != nil {
		return nil, fmt.Errorf("render page %d: decode: %w", page, err)
	}
	return Image{Image: img}, nil
}

func (d *popplerDocument) Close() error { return os.RemoveAll(d.scratch) }

const (
	RendererMuPDF   = "mupdf"
	RendererPoppler = "poppler"
)

// NewOpener returns the opener for a renderer name; empty selects MuPDF.
func NewOpener(renderer string) (Opener, error) {
	switch strings.ToLower(strings.TrimSpace(renderer)) {
	case "", RendererMuPDF, "fitz":
		return NewFitz(), nil
	case RendererPoppler:
		return NewPoppler(), nil
	default:
		return nil, fmt.Errorf("unknown renderer %q (supported: %s, %s)", renderer, RendererMuPDF, RendererPoppler)
	}
}
