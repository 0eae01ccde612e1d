package render

import (
	"fmt"
	"image"
	"io"
	"net/http"
	"os"
)

// FileInfo contains metadata about an input document
type FileInfo struct {
	MimeType string // MIME type detected from file content
	Pages    int    // Number of pages
	Width    int    // First page width in pixels at the probe DPI
	Height   int    // First page height in pixels at the probe DPI
	Size     int64  // File size in bytes
}

// DetectMimeType sniffs the first 512 bytes of path.
func DetectMimeType(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open for mime detect: %w", err)
	}
	defer file.Close()

	buf := make([]byte, 512)
	n, err := file.Read(buf)
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("read for mime detect: %w", err)
	}

	// http.DetectContentType doesn't detect PDFs well, check magic bytes
	if n >= 4 && string(buf[:4]) == "%PDF" {
		return "application/pdf", nil
	}
	return http.DetectContentType(buf[:n]), nil
}

// Probe opens path and reports its page count and first page dimensions when
// rendered at dpi. Rendering the first page is skipped for empty documents.
func Probe(opener Opener, path string, dpi float64) (*FileInfo, error) {
	stat, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat: %w", err)
	}

	mimeType, err := DetectMimeType(path)
	if err != nil {
		return nil, err
	}

	doc, err := opener.OpenDocument(path)
	if err != nil {
		return nil, err
	}
	defer doc.Close()

	info := &FileInfo{
		MimeType: mimeType,
		Pages:    doc.PageCount(),
		Size:     stat.Size(),
	}
	if info.Pages == 0 {
		return info, nil
	}

	page, err := doc.RenderPage(0, Scale(dpi))
	if err != nil {
		return nil, err
	}
	if sized, ok := page.(interface{ Bounds() image.Rectangle }); ok {
		b := sized.Bounds()
		info.Width, info.Height = b.Dx(), b.Dy()
	}
	return info, nil
}
