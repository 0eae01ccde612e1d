package render

import (
	"fmt"

	"github.com/gen2brain/go-fitz"
)

// Fitz renders PDF (and the other formats MuPDF understands) through go-fitz.
type Fitz struct{}

// NewFitz returns the MuPDF-backed opener.
func NewFitz() *Fitz { return &Fitz{} }

// OpenDocument opens path with MuPDF. Parse failures are wrapped with ErrOpen.
func (Fitz) OpenDocument(path string) (Document, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("%w %s: %v", ErrOpen, path, err)
	}
	return &fitzDocument{doc: doc}, nil
}

type fitzDocument struct {
	doc *fitz.Document
}

func (d *fitzDocument) PageCount() int { return d.doc.NumPage() }

func (d *fitzDocument) RenderPage(index int, scale float64) (Raster, error) {
	if scale <= 0 {
		return nil, fmt.Errorf("render page %d: invalid scale %v", index+1, scale)
	}
	img, err := d.doc.ImageDPI(index, scale*PointsPerInch)
	if err != nil {
		return nil, fmt.Errorf("render page %d: %w", index+1, err)
	}
	return Image{Image: img}, nil
}

func (d *fitzDocument) Close() error { return d.doc.Close() }
