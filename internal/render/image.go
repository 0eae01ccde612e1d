// internal/render/image.go
package render

import (
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
)

// Image is a Raster backed by decoded pixels.
type Image struct {
	image.Image
}

// Save encodes the page into path. Quality is passed to the encoder only for
// lossy formats; the parent directory must already exist.
func (i Image) Save(path string, format Format, quality int) error {
	return SaveImage(i.Image, path, format, quality)
}

// SaveImage writes src to path in the given format.
func SaveImage(src image.Image, path string, format Format, quality int) error {
	if src == nil {
		return fmt.Errorf("save %s: empty image", filepath.Base(path))
	}

	var opts []imaging.EncodeOption
	switch format {
	case FormatPNG:
	case FormatJPEG:
		opts = append(opts, imaging.JPEGQuality(quality))
	default:
		return fmt.Errorf("save %s: unsupported format %q", filepath.Base(path), format)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create: %w", err)
	}

	imgFormat := imaging.PNG
	if format == FormatJPEG {
		imgFormat = imaging.JPEG
	}
	if err := imaging.Encode(f, src, imgFormat, opts...); err != nil {
		_ = f.Close()
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", filepath.Base(path), err)
	}
	return nil
}
