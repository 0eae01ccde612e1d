package job

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DocumentExt is the extension matched when expanding directories.
const DocumentExt = ".pdf"

// CollectInputs resolves paths into an ordered, duplicate-free list of input
// documents. Files are kept as given; directories are expanded to the
// documents they contain, sorted by name, descending into subdirectories only
// when recursive is set.
func CollectInputs(paths []string, recursive bool) ([]string, error) {
	var out []string
	seen := make(map[string]bool)
	add := func(p string) {
		key := filepath.Clean(p)
		if abs, err := filepath.Abs(p); err == nil {
			key = abs
		}
		if seen[key] {
			return
		}
		seen[key] = true
		out = append(out, p)
	}

	for _, p := range paths {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		info, err := os.Stat(p)
		if err != nil {
			// Keep unreadable files so the run reports them per document.
			add(p)
			continue
		}
		if !info.IsDir() {
			add(p)
			continue
		}

		found, err := scanDir(p, recursive)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", p, err)
		}
		for _, f := range found {
			add(f)
		}
	}
	return out, nil
}

func scanDir(dir string, recursive bool) ([]string, error) {
	var found []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && !recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.EqualFold(filepath.Ext(path), DocumentExt) {
			found = append(found, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(found)
	return found, nil
}
