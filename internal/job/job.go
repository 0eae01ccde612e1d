// Package job defines a conversion run's immutable settings and the
// per-document tasks derived from them.
package job

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/tendant/simple-pdf2img/internal/render"
)

const (
	MinQuality     = 50
	MaxQuality     = 100
	DefaultQuality = 95
	DefaultDPI     = 150
)

// AllowedDPIs are the resolution presets offered to users. Any positive DPI is
// accepted by Validate.
var AllowedDPIs = []int{72, 96, 150, 200, 300}

// ConversionJob is the full set of inputs and settings for one run.
type ConversionJob struct {
	Inputs    []string
	OutputDir string
	Format    render.Format
	Quality   int
	DPI       float64
}

// ValidationError reports a job setting that cannot be used.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// Validate checks the job can be started. Missing or unreadable inputs are not
// rejected here; they surface as per-document errors during the run.
func (j ConversionJob) Validate() error {
	if len(j.Inputs) == 0 {
		return ValidationError{Field: "inputs", Message: "at least one input document is required"}
	}
	for i, in := range j.Inputs {
		if strings.TrimSpace(in) == "" {
			return ValidationError{Field: "inputs", Message: fmt.Sprintf("input %d is empty", i+1)}
		}
	}
	if strings.TrimSpace(j.OutputDir) == "" {
		return ValidationError{Field: "output_dir", Message: "output directory is required"}
	}
	switch j.Format {
	case render.FormatPNG:
	case render.FormatJPEG:
		if j.Quality < MinQuality || j.Quality > MaxQuality {
			return ValidationError{
				Field:   "quality",
				Message: fmt.Sprintf("must be between %d and %d, got %d", MinQuality, MaxQuality, j.Quality),
			}
		}
	default:
		return ValidationError{Field: "format", Message: fmt.Sprintf("unsupported format %q", j.Format)}
	}
	if j.DPI <= 0 {
		return ValidationError{Field: "dpi", Message: fmt.Sprintf("must be greater than zero (got %v)", j.DPI)}
	}
	return nil
}

// Clone returns a copy that shares no slices with j.
func (j ConversionJob) Clone() ConversionJob {
	c := j
	c.Inputs = append([]string(nil), j.Inputs...)
	return c
}

// Scale is the render scale factor for the job's DPI.
func (j ConversionJob) Scale() float64 { return render.Scale(j.DPI) }

// DocumentTask is one input document and where its pages go.
type DocumentTask struct {
	Index     int // 1-based position in the job
	Input     string
	Filename  string
	Stem      string
	OutputDir string
	Format    render.Format
}

// Tasks derives one task per input, in input order.
func (j ConversionJob) Tasks() []DocumentTask {
	tasks := make([]DocumentTask, len(j.Inputs))
	for i, in := range j.Inputs {
		name := filepath.Base(in)
		stem := strings.TrimSuffix(name, filepath.Ext(name))
		tasks[i] = DocumentTask{
			Index:     i + 1,
			Input:     in,
			Filename:  name,
			Stem:      stem,
			OutputDir: filepath.Join(j.OutputDir, stem+"_imgs"),
			Format:    j.Format,
		}
	}
	return tasks
}

// PageName returns the file name for a 1-based page number.
func (t DocumentTask) PageName(page int) string {
	return fmt.Sprintf("%s_%04d.%s", t.Stem, page, t.Format.Ext())
}

// PagePath returns the output path for a 1-based page number.
func (t DocumentTask) PagePath(page int) string {
	return filepath.Join(t.OutputDir, t.PageName(page))
}
