package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/tendant/simple-pdf2img/internal/job"
	"github.com/tendant/simple-pdf2img/internal/render"
)

// Manifest is a YAML job file. Zero fields leave the current setting alone.
//
//	inputs: [reports/, scans/a.pdf]
//	output_dir: ./out
//	format: jpg
//	quality: 85
//	dpi: 200
//	recursive: true
type Manifest struct {
	Inputs    []string `yaml:"inputs"`
	OutputDir string   `yaml:"output_dir"`
	Format    string   `yaml:"format"`
	Quality   int      `yaml:"quality"`
	DPI       float64  `yaml:"dpi"`
	Recursive bool     `yaml:"recursive"`

	dir string
}

// LoadManifest reads a manifest. Unknown keys are rejected so typos do not
// silently fall back to defaults.
func LoadManifest(path string) (Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, fmt.Errorf("read manifest: %w", err)
	}

	var m Manifest
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil && !errors.Is(err, io.EOF) {
		return Manifest{}, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	m.dir = filepath.Dir(path)
	return m, nil
}

// InputPaths returns the manifest inputs with relative paths resolved against
// the manifest's directory.
func (m Manifest) InputPaths() []string {
	out := make([]string, 0, len(m.Inputs))
	for _, in := range m.Inputs {
		if in != "" && !filepath.IsAbs(in) && m.dir != "" {
			in = filepath.Join(m.dir, in)
		}
		out = append(out, in)
	}
	return out
}

// Apply overrides the settings of j that the manifest sets. Inputs are not
// touched; see InputPaths.
func (m Manifest) Apply(j *job.ConversionJob) error {
	if m.OutputDir != "" {
		out := m.OutputDir
		if !filepath.IsAbs(out) && m.dir != "" {
			out = filepath.Join(m.dir, out)
		}
		j.OutputDir = out
	}
	if m.Format != "" {
		format, err := render.ParseFormat(m.Format)
		if err != nil {
			return fmt.Errorf("manifest format: %w", err)
		}
		j.Format = format
	}
	if m.Quality != 0 {
		j.Quality = m.Quality
	}
	if m.DPI != 0 {
		j.DPI = m.DPI
	}
	return nil
}
