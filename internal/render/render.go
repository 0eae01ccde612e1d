// Package render wraps the document rasterizing collaborator: opening a
// document, counting its pages, rendering a page to pixels and encoding those
// pixels to an image file.
package render

import (
	"errors"
	"fmt"
	"strings"
)

// ErrOpen marks failures to open or parse an input document.
var ErrOpen = errors.New("open document")

// Format is the encoded image format of a rendered page.
type Format string

const (
	FormatPNG  Format = "png" // lossless
	FormatJPEG Format = "jpg" // lossy, honours quality
)

// ParseFormat accepts png, jpg and jpeg in any case.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "png":
		return FormatPNG, nil
	case "jpg", "jpeg":
		return FormatJPEG, nil
	default:
		return "", fmt.Errorf("unsupported output format %q (supported: png, jpg)", s)
	}
}

// Lossy reports whether the quality setting applies to the format.
func (f Format) Lossy() bool { return f == FormatJPEG }

// Ext returns the file extension without the dot.
func (f Format) Ext() string { return string(f) }

// Opener opens documents by path.
type Opener interface {
	OpenDocument(path string) (Document, error)
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(path string) (Document, error)

func (f OpenerFunc) OpenDocument(path string) (Document, error) { return f(path) }

// Document is an opened multi-page document. Page indexes are zero based.
type Document interface {
	PageCount() int
	RenderPage(index int, scale float64) (Raster, error)
	Close() error
}

// Raster is a rendered page that can be written to disk.
type Raster interface {
	Save(path string, format Format, quality int) error
}

// PointsPerInch is the PDF user-space unit; scale = dpi / PointsPerInch.
const PointsPerInch = 72.0

// Scale converts a resolution in dots per inch to a render scale factor.
func Scale(dpi float64) float64 { return dpi / PointsPerInch }
