package main

import (
	"fmt"
	"os"

	"github.com/tendant/simple-pdf2img/internal/job"
)

// findPending returns the inputs that still need converting. With onlyMissing
// unset every input is pending. An input counts as done once its page
// directory holds at least one file.
func findPending(inputs []string, outputDir string, onlyMissing bool) (pending []string, skipped int, err error) {
	if !onlyMissing {
		return inputs, 0, nil
	}

	tasks := job.ConversionJob{Inputs: inputs, OutputDir: outputDir}.Tasks()
	for _, task := range tasks {
		entries, err := os.ReadDir(task.OutputDir)
		switch {
		case os.IsNotExist(err):
			pending = append(pending, task.Input)
		case err != nil:
			return nil, 0, fmt.Errorf("read %s: %w", task.OutputDir, err)
		case len(entries) == 0:
			pending = append(pending, task.Input)
		default:
			skipped++
		}
	}
	return pending, skipped, nil
}

// batches splits inputs into consecutive groups of at most size.
func batches(inputs []string, size int) [][]string {
	var out [][]string
	for len(inputs) > 0 {
		n := min(size, len(inputs))
		out = append(out, inputs[:n])
		inputs = inputs[n:]
	}
	return out
}
