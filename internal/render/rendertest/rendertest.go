// Package rendertest provides in-memory documents for exercising code that
// consumes render.Opener without MuPDF.
package rendertest

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"
	"sync"
	"sync/atomic"

	"github.com/tendant/simple-pdf2img/internal/render"
)

// ErrRender is returned by RenderPage for the page configured in FailPage.
var ErrRender = errors.New("rendertest: render failed")

// Doc describes a fake document. Width and Height are in points.
type Doc struct {
	Pages    int
	Width    int
	Height   int
	FailPage int // 1-based page whose render fails, 0 for none

	// OnSave runs after the given 1-based page has been written to disk.
	OnSave func(page int)
	// OnRender runs before the given 1-based page is rendered.
	OnRender func(page int)

	closed atomic.Bool
	mu     sync.Mutex
	scales []float64
}

// Closed reports whether Close was called on the opened document.
func (d *Doc) Closed() bool { return d.closed.Load() }

// Scales returns the scale factors passed to RenderPage, in call order.
func (d *Doc) Scales() []float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]float64(nil), d.scales...)
}

// Opener serves registered documents by path; unknown paths fail with
// render.ErrOpen like a corrupt or missing file would.
type Opener struct {
	mu     sync.Mutex
	docs   map[string]*Doc
	opened []string
}

func New() *Opener {
	return &Opener{docs: make(map[string]*Doc)}
}

// Add registers doc under path and returns the opener for chaining.
func (o *Opener) Add(path string, doc *Doc) *Opener {
	o.mu.Lock()
	defer o.mu.Unlock()
	if doc.Width == 0 {
		doc.Width = 36
	}
	if doc.Height == 0 {
		doc.Height = 48
	}
	o.docs[path] = doc
	return o
}

// Opened lists the paths passed to OpenDocument, in call order.
func (o *Opener) Opened() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.opened...)
}

func (o *Opener) OpenDocument(path string) (render.Document, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.opened = append(o.opened, path)
	doc, ok := o.docs[path]
	if !ok {
		return nil, fmt.Errorf("%w %s: not a document", render.ErrOpen, path)
	}
	return &document{doc: doc}, nil
}

type document struct {
	doc *Doc
}

func (d *document) PageCount() int { return d.doc.Pages }

func (d *document) RenderPage(index int, scale float64) (render.Raster, error) {
	page := index + 1
	if d.doc.OnRender != nil {
		d.doc.OnRender(page)
	}

	d.doc.mu.Lock()
	d.doc.scales = append(d.doc.scales, scale)
	d.doc.mu.Unlock()

	if index < 0 || index >= d.doc.Pages {
		return nil, fmt.Errorf("page %d out of range", page)
	}
	if d.doc.FailPage == page {
		return nil, fmt.Errorf("page %d: %w", page, ErrRender)
	}

	w := int(math.Max(1, math.Round(float64(d.doc.Width)*scale)))
	h := int(math.Max(1, math.Round(float64(d.doc.Height)*scale)))
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	shade := uint8(page * 40 % 256)
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: shade, G: 100, B: 50, A: 255})
		}
	}
	return &raster{Image: render.Image{Image: img}, page: page, doc: d.doc}, nil
}

func (d *document) Close() error {
	d.doc.closed.Store(true)
	return nil
}

type raster struct {
	render.Image
	page int
	doc  *Doc
}

func (r *raster) Save(path string, format render.Format, quality int) error {
	if err := r.Image.Save(path, format, quality); err != nil {
		return err
	}
	if r.doc.OnSave != nil {
		r.doc.OnSave(r.page)
	}
	return nil
}
