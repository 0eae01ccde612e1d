package worker

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-pdf2img/internal/job"
	"github.com/tendant/simple-pdf2img/internal/progress"
	"github.com/tendant/simple-pdf2img/internal/render"
	"github.com/tendant/simple-pdf2img/internal/render/rendertest"
	"github.com/tendant/simple-pdf2img/pkg/schema"
)

const testRunID = "run-test"

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testOptions() Options {
	return Options{PollInterval: 5 * time.Millisecond, Logger: quietLogger()}
}

func newJob(out string, inputs ...string) job.ConversionJob {
	return job.ConversionJob{
		Inputs:    inputs,
		OutputDir: out,
		Format:    render.FormatPNG,
		Quality:   job.DefaultQuality,
		DPI:       job.DefaultDPI,
	}
}

func runBatch(t *testing.T, j job.ConversionJob, opener render.Opener, control *RunControl, opts Options) (schema.BatchSummary, []schema.ProgressEvent) {
	t.Helper()
	queue := progress.NewQueue(4096)
	summary := NewBatch(j, opener, queue, control, testRunID, opts).Run(context.Background())
	return summary, queue.Drain(queue.Len())
}

func filterType(events []schema.ProgressEvent, typ schema.EventType) []schema.ProgressEvent {
	var out []schema.ProgressEvent
	for _, ev := range events {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

func pagesOf(events []schema.ProgressEvent, filename string) []int {
	var pages []int
	for _, ev := range events {
		if ev.Type == schema.EventFileProgress && ev.Filename == filename {
			pages = append(pages, ev.CurrentPage)
		}
	}
	return pages
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	}
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names
}

func TestBatchRoundTrip(t *testing.T) {
	out := t.TempDir()
	a := &rendertest.Doc{Pages: 3}
	b := &rendertest.Doc{Pages: 1}
	opener := rendertest.New().Add("/in/a.doc", a).Add("/in/b.doc", b)

	summary, events := runBatch(t, newJob(out, "/in/a.doc", "/in/b.doc"), opener, NewRunControl(), testOptions())

	assert.Equal(t, schema.BatchSummary{SuccessCount: 2, ErrorCount: 0, TotalFiles: 2, WasCancelled: false}, summary)
	assert.Equal(t, []string{"a_0001.png", "a_0002.png", "a_0003.png"}, listDir(t, filepath.Join(out, "a_imgs")))
	assert.Equal(t, []string{"b_0001.png"}, listDir(t, filepath.Join(out, "b_imgs")))

	var types []schema.EventType
	for _, ev := range events {
		types = append(types, ev.Type)
		assert.Equal(t, testRunID, ev.RunID)
	}
	assert.Equal(t, []schema.EventType{
		schema.EventOverallProgress,
		schema.EventFileStarted,
		schema.EventFileTotalPages,
		schema.EventFileProgress,
		schema.EventFileProgress,
		schema.EventFileProgress,
		schema.EventFileComplete,
		schema.EventOverallProgress,
		schema.EventFileStarted,
		schema.EventFileTotalPages,
		schema.EventFileProgress,
		schema.EventFileComplete,
		schema.EventBatchComplete,
	}, types)

	last := events[len(events)-1]
	assert.Equal(t, summary, last.Summary())
	assert.Equal(t, 1, events[0].CurrentFile)
	assert.Equal(t, 2, events[0].TotalFiles)
	assert.Equal(t, 3, events[2].TotalPages)

	for _, scale := range a.Scales() {
		assert.InDelta(t, 150.0/72.0, scale, 1e-9)
	}
	assert.True(t, a.Closed())
	assert.True(t, b.Closed())
}

func TestBatchAllDocumentsComplete(t *testing.T) {
	out := t.TempDir()
	opener := rendertest.New()
	var inputs []string
	for i, pages := range []int{2, 5, 1, 4} {
		path := filepath.Join("/in", string(rune('a'+i))+".pdf")
		opener.Add(path, &rendertest.Doc{Pages: pages})
		inputs = append(inputs, path)
	}

	summary, events := runBatch(t, newJob(out, inputs...), opener, NewRunControl(), testOptions())

	assert.Len(t, filterType(events, schema.EventFileComplete), len(inputs))
	assert.Empty(t, filterType(events, schema.EventFileError))
	assert.Equal(t, len(inputs), summary.SuccessCount)
	assert.Zero(t, summary.ErrorCount)
	assert.False(t, summary.WasCancelled)
}

func TestBatchPageSequence(t *testing.T) {
	out := t.TempDir()
	opener := rendertest.New().Add("/in/long.pdf", &rendertest.Doc{Pages: 12})

	_, events := runBatch(t, newJob(out, "/in/long.pdf"), opener, NewRunControl(), testOptions())

	want := make([]int, 12)
	for i := range want {
		want[i] = i + 1
	}
	assert.Equal(t, want, pagesOf(events, "long.pdf"))

	totalIdx, firstProgressIdx := -1, -1
	for i, ev := range events {
		if ev.Type == schema.EventFileTotalPages && totalIdx < 0 {
			totalIdx = i
			assert.Equal(t, 12, ev.TotalPages)
		}
		if ev.Type == schema.EventFileProgress && firstProgressIdx < 0 {
			firstProgressIdx = i
		}
	}
	require.GreaterOrEqual(t, totalIdx, 0)
	assert.Less(t, totalIdx, firstProgressIdx)
	for _, ev := range filterType(events, schema.EventFileProgress) {
		assert.Equal(t, 12, ev.TotalPages)
	}
}

func TestBatchCancelBeforeStart(t *testing.T) {
	out := t.TempDir()
	opener := rendertest.New().
		Add("/in/a.pdf", &rendertest.Doc{Pages: 2}).
		Add("/in/b.pdf", &rendertest.Doc{Pages: 2})
	control := NewRunControl()
	control.Cancel()

	summary, events := runBatch(t, newJob(out, "/in/a.pdf", "/in/b.pdf"), opener, control, testOptions())

	assert.Equal(t, schema.BatchSummary{SuccessCount: 0, ErrorCount: 0, TotalFiles: 2, WasCancelled: true}, summary)
	require.Len(t, events, 1)
	assert.Equal(t, schema.EventBatchComplete, events[0].Type)
	assert.Empty(t, listDir(t, out))
	assert.Empty(t, opener.Opened())
}

func TestBatchCancelMidDocument(t *testing.T) {
	const k = 3
	out := t.TempDir()
	control := NewRunControl()
	doc := &rendertest.Doc{Pages: 8, OnSave: func(page int) {
		if page == k {
			control.Cancel()
		}
	}}
	opener := rendertest.New().
		Add("/in/a.pdf", doc).
		Add("/in/b.pdf", &rendertest.Doc{Pages: 2})

	summary, events := runBatch(t, newJob(out, "/in/a.pdf", "/in/b.pdf"), opener, control, testOptions())

	assert.True(t, summary.WasCancelled)
	assert.Zero(t, summary.SuccessCount)
	assert.Zero(t, summary.ErrorCount)
	assert.Empty(t, filterType(events, schema.EventFileComplete))
	assert.Empty(t, filterType(events, schema.EventFileError))
	assert.Equal(t, []int{1, 2, 3}, pagesOf(events, "a.pdf"))
	assert.Len(t, listDir(t, filepath.Join(out, "a_imgs")), k)
	assert.Empty(t, listDir(t, filepath.Join(out, "b_imgs")))
	assert.Equal(t, []string{"/in/a.pdf"}, opener.Opened())
	assert.True(t, doc.Closed())
	assert.Equal(t, schema.EventBatchComplete, events[len(events)-1].Type)
}

func TestBatchPauseResumeKeepsSequence(t *testing.T) {
	baselineOut := t.TempDir()
	baseline := rendertest.New().Add("/in/a.pdf", &rendertest.Doc{Pages: 5})
	_, want := runBatch(t, newJob(baselineOut, "/in/a.pdf"), baseline, NewRunControl(), testOptions())

	out := t.TempDir()
	opener := rendertest.New().Add("/in/a.pdf", &rendertest.Doc{Pages: 5})
	control := NewRunControl()
	require.True(t, control.Pause())

	queue := progress.NewQueue(4096)
	done := make(chan schema.BatchSummary, 1)
	go func() {
		done <- NewBatch(newJob(out, "/in/a.pdf"), opener, queue, control, testRunID, testOptions()).Run(context.Background())
	}()

	// While paused the worker stops before the first page.
	time.Sleep(60 * time.Millisecond)
	var got []schema.ProgressEvent
	got = append(got, queue.Drain(queue.Len())...)
	assert.Empty(t, filterType(got, schema.EventFileProgress))
	assert.Empty(t, listDir(t, filepath.Join(out, "a_imgs")))

	require.True(t, control.Resume())
	select {
	case summary := <-done:
		assert.Equal(t, 1, summary.SuccessCount)
		assert.False(t, summary.WasCancelled)
	case <-time.After(5 * time.Second):
		t.Fatal("batch did not finish after resume")
	}
	got = append(got, queue.Drain(queue.Len())...)

	assert.Equal(t, pagesOf(want, "a.pdf"), pagesOf(got, "a.pdf"))
	require.Equal(t, len(want), len(got))
	for i := range want {
		assert.Equal(t, want[i].Type, got[i].Type)
	}
}

func TestBatchCancelWhilePaused(t *testing.T) {
	out := t.TempDir()
	opener := rendertest.New().Add("/in/a.pdf", &rendertest.Doc{Pages: 4})
	control := NewRunControl()
	control.Pause()

	queue := progress.NewQueue(4096)
	done := make(chan schema.BatchSummary, 1)
	go func() {
		done <- NewBatch(newJob(out, "/in/a.pdf"), opener, queue, control, testRunID, testOptions()).Run(context.Background())
	}()

	time.Sleep(30 * time.Millisecond)
	control.Cancel()

	select {
	case summary := <-done:
		assert.True(t, summary.WasCancelled)
		assert.Zero(t, summary.SuccessCount)
	case <-time.After(5 * time.Second):
		t.Fatal("cancel did not wake the paused worker")
	}
	assert.Empty(t, listDir(t, filepath.Join(out, "a_imgs")))
	events := queue.Drain(queue.Len())
	assert.Empty(t, filterType(events, schema.EventFileComplete))
	assert.Empty(t, filterType(events, schema.EventFileError))
}

func TestBatchContextAbortWhilePaused(t *testing.T) {
	out := t.TempDir()
	opener := rendertest.New().Add("/in/a.pdf", &rendertest.Doc{Pages: 4})
	control := NewRunControl()
	control.Pause()
	opts := testOptions()
	opts.PollInterval = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	queue := progress.NewQueue(4096)
	done := make(chan schema.BatchSummary, 1)
	go func() {
		done <- NewBatch(newJob(out, "/in/a.pdf"), opener, queue, control, testRunID, opts).Run(ctx)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case summary := <-done:
		assert.True(t, summary.WasCancelled)
	case <-time.After(5 * time.Second):
		t.Fatal("context abort did not stop the paused worker")
	}
}

func TestBatchOpenFailureContinues(t *testing.T) {
	out := t.TempDir()
	opener := rendertest.New().Add("/in/good.pdf", &rendertest.Doc{Pages: 2})

	summary, events := runBatch(t, newJob(out, "/in/corrupt.pdf", "/in/good.pdf"), opener, NewRunControl(), testOptions())

	assert.Equal(t, 1, summary.SuccessCount)
	assert.Equal(t, 1, summary.ErrorCount)
	assert.False(t, summary.WasCancelled)

	errs := filterType(events, schema.EventFileError)
	require.Len(t, errs, 1)
	assert.Equal(t, "corrupt.pdf", errs[0].Filename)
	assert.Contains(t, errs[0].Error, "open document")

	completes := filterType(events, schema.EventFileComplete)
	require.Len(t, completes, 1)
	assert.Equal(t, "good.pdf", completes[0].Filename)
	assert.Len(t, listDir(t, filepath.Join(out, "good_imgs")), 2)

	var corruptTypes []schema.EventType
	for _, ev := range events {
		if ev.Filename == "corrupt.pdf" {
			corruptTypes = append(corruptTypes, ev.Type)
		}
	}
	assert.Equal(t, []schema.EventType{schema.EventFileStarted, schema.EventFileError}, corruptTypes)
}

func TestBatchPageFailureMarksDocumentErrored(t *testing.T) {
	out := t.TempDir()
	bad := &rendertest.Doc{Pages: 4, FailPage: 2}
	opener := rendertest.New().
		Add("/in/bad.pdf", bad).
		Add("/in/next.pdf", &rendertest.Doc{Pages: 1})

	summary, events := runBatch(t, newJob(out, "/in/bad.pdf", "/in/next.pdf"), opener, NewRunControl(), testOptions())

	assert.Equal(t, schema.BatchSummary{SuccessCount: 1, ErrorCount: 1, TotalFiles: 2}, summary)
	errs := filterType(events, schema.EventFileError)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error, "page 2")
	assert.Equal(t, []int{1}, pagesOf(events, "bad.pdf"))
	assert.Equal(t, []string{"bad_0001.png"}, listDir(t, filepath.Join(out, "bad_imgs")))
	assert.True(t, bad.Closed())

	for _, ev := range events {
		if ev.Type == schema.EventFileComplete {
			assert.NotEqual(t, "bad.pdf", ev.Filename)
		}
	}
}

func TestBatchOutputDirFailure(t *testing.T) {
	out := t.TempDir()
	// A regular file where the document's output directory should go.
	require.NoError(t, os.WriteFile(filepath.Join(out, "a_imgs"), []byte("x"), 0o644))
	opener := rendertest.New().
		Add("/in/a.pdf", &rendertest.Doc{Pages: 1}).
		Add("/in/b.pdf", &rendertest.Doc{Pages: 1})

	summary, events := runBatch(t, newJob(out, "/in/a.pdf", "/in/b.pdf"), opener, NewRunControl(), testOptions())

	assert.Equal(t, 1, summary.ErrorCount)
	assert.Equal(t, 1, summary.SuccessCount)
	errs := filterType(events, schema.EventFileError)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error, "create output directory")
}

func TestBatchRecoversFromPanic(t *testing.T) {
	out := t.TempDir()
	doc := &rendertest.Doc{Pages: 3, OnRender: func(page int) {
		if page == 2 {
			panic("decoder exploded")
		}
	}}
	opener := rendertest.New().
		Add("/in/a.pdf", doc).
		Add("/in/b.pdf", &rendertest.Doc{Pages: 1})

	summary, events := runBatch(t, newJob(out, "/in/a.pdf", "/in/b.pdf"), opener, NewRunControl(), testOptions())

	assert.Equal(t, schema.BatchSummary{SuccessCount: 1, ErrorCount: 1, TotalFiles: 2}, summary)
	errs := filterType(events, schema.EventFileError)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error, "decoder exploded")
	assert.True(t, doc.Closed())
	assert.Equal(t, schema.EventBatchComplete, events[len(events)-1].Type)
}

func TestBatchProgressThrottle(t *testing.T) {
	out := t.TempDir()
	opener := rendertest.New().Add("/in/a.pdf", &rendertest.Doc{Pages: 7})
	opts := testOptions()
	opts.ProgressEvery = 3

	_, events := runBatch(t, newJob(out, "/in/a.pdf"), opener, NewRunControl(), opts)

	assert.Equal(t, []int{1, 3, 6, 7}, pagesOf(events, "a.pdf"))
	assert.Len(t, listDir(t, filepath.Join(out, "a_imgs")), 7)
}

func TestBatchJPEGOutput(t *testing.T) {
	out := t.TempDir()
	opener := rendertest.New().Add("/in/scan.pdf", &rendertest.Doc{Pages: 2})
	j := newJob(out, "/in/scan.pdf")
	j.Format = render.FormatJPEG
	j.Quality = 60
	j.DPI = 72

	summary, _ := runBatch(t, j, opener, NewRunControl(), testOptions())

	assert.Equal(t, 1, summary.SuccessCount)
	assert.Equal(t, []string{"scan_0001.jpg", "scan_0002.jpg"}, listDir(t, filepath.Join(out, "scan_imgs")))
}

func TestBatchEmptyDocument(t *testing.T) {
	out := t.TempDir()
	opener := rendertest.New().Add("/in/empty.pdf", &rendertest.Doc{Pages: 0})

	summary, events := runBatch(t, newJob(out, "/in/empty.pdf"), opener, NewRunControl(), testOptions())

	assert.Equal(t, 1, summary.SuccessCount)
	assert.Empty(t, pagesOf(events, "empty.pdf"))
	assert.Len(t, filterType(events, schema.EventFileComplete), 1)
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "success", OutcomeSuccess.String())
	assert.Equal(t, "cancelled", OutcomeCancelled.String())
	assert.Equal(t, "error", OutcomeError.String())
}
