package coordinator

import "github.com/tendant/simple-pdf2img/pkg/schema"

type State string

const (
	StateIdle       State = "idle"
	StateRunning    State = "running"
	StatePaused     State = "paused"
	StateCancelling State = "cancelling"
)

type FileFailure struct {
	Filename string `json:"filename"`
	Error    string `json:"error"`
}

// Status is a point-in-time view of the latest run, built only from drained
// events plus the control flags.
type Status struct {
	State       State                `json:"state"`
	RunID       string               `json:"run_id,omitempty"`
	CurrentFile int                  `json:"current_file"`
	TotalFiles  int                  `json:"total_files"`
	Filename    string               `json:"filename,omitempty"`
	CurrentPage int                  `json:"current_page"`
	TotalPages  int                  `json:"total_pages"`
	Completed   []string             `json:"completed,omitempty"`
	Failures    []FileFailure        `json:"failures,omitempty"`
	Summary     *schema.BatchSummary `json:"summary,omitempty"`
}

func (s *Status) apply(ev schema.ProgressEvent) {
	switch ev.Type {
	case schema.EventOverallProgress:
		s.CurrentFile = ev.CurrentFile
		s.TotalFiles = ev.TotalFiles
	case schema.EventFileStarted:
		s.Filename = ev.Filename
		s.CurrentPage = 0
		s.TotalPages = 0
	case schema.EventFileTotalPages:
		s.TotalPages = ev.TotalPages
	case schema.EventFileProgress:
		s.CurrentPage = ev.CurrentPage
		s.TotalPages = ev.TotalPages
	case schema.EventFileComplete:
		s.Completed = append(s.Completed, ev.Filename)
	case schema.EventFileError:
		s.Failures = append(s.Failures, FileFailure{Filename: ev.Filename, Error: ev.Error})
	case schema.EventBatchComplete:
		summary := ev.Summary()
		s.Summary = &summary
		s.State = StateIdle
	}
}

// Status returns a copy of the current snapshot.
func (c *Coordinator) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := c.status
	st.Completed = append([]string(nil), c.status.Completed...)
	st.Failures = append([]FileFailure(nil), c.status.Failures...)
	if c.status.Summary != nil {
		summary := *c.status.Summary
		st.Summary = &summary
	}

	switch r := c.run; {
	case r == nil:
		st.State = StateIdle
	case r.control.Cancelled():
		st.State = StateCancelling
	case r.control.Paused():
		st.State = StatePaused
	default:
		st.State = StateRunning
	}
	return st
}
