// Package schema holds the progress and control messages exchanged between a
// conversion worker, its coordinator and remote observers.
package schema

import "time"

type EventType string

const (
	EventFileStarted     EventType = "file_started"
	EventFileTotalPages  EventType = "file_total_pages"
	EventFileProgress    EventType = "file_progress"
	EventFileComplete    EventType = "file_complete"
	EventFileError       EventType = "file_error"
	EventOverallProgress EventType = "overall_progress"
	EventBatchComplete   EventType = "batch_complete"
)

// ProgressEvent is the single message type flowing from the worker to the
// coordinator. Type selects which of the remaining fields are meaningful;
// counters are always encoded so a zero count stays on the wire.
type ProgressEvent struct {
	Type         EventType `json:"type"`
	RunID        string    `json:"run_id"`
	Filename     string    `json:"filename,omitempty"`
	CurrentPage  int       `json:"current_page"`
	TotalPages   int       `json:"total_pages"`
	Error        string    `json:"error,omitempty"`
	CurrentFile  int       `json:"current_file"`
	TotalFiles   int       `json:"total_files"`
	SuccessCount int       `json:"success_count"`
	ErrorCount   int       `json:"error_count"`
	WasCancelled bool      `json:"was_cancelled"`
	HappenedAt   int64     `json:"happened_at"`
}

// BatchSummary is the aggregate carried by a batch_complete event.
type BatchSummary struct {
	SuccessCount int  `json:"success_count"`
	ErrorCount   int  `json:"error_count"`
	TotalFiles   int  `json:"total_files"`
	WasCancelled bool `json:"was_cancelled"`
}

func (e ProgressEvent) Summary() BatchSummary {
	return BatchSummary{
		SuccessCount: e.SuccessCount,
		ErrorCount:   e.ErrorCount,
		TotalFiles:   e.TotalFiles,
		WasCancelled: e.WasCancelled,
	}
}

func now() int64 { return time.Now().UnixMilli() }

func FileStarted(runID, filename string) ProgressEvent {
	return ProgressEvent{Type: EventFileStarted, RunID: runID, Filename: filename, HappenedAt: now()}
}

func FileTotalPages(runID string, count int) ProgressEvent {
	return ProgressEvent{Type: EventFileTotalPages, RunID: runID, TotalPages: count, HappenedAt: now()}
}

func FileProgress(runID, filename string, current, total int) ProgressEvent {
	return ProgressEvent{
		Type:        EventFileProgress,
		RunID:       runID,
		Filename:    filename,
		CurrentPage: current,
		TotalPages:  total,
		HappenedAt:  now(),
	}
}

func FileComplete(runID, filename string) ProgressEvent {
	return ProgressEvent{Type: EventFileComplete, RunID: runID, Filename: filename, HappenedAt: now()}
}

func FileError(runID, filename string, cause error) ProgressEvent {
	ev := ProgressEvent{Type: EventFileError, RunID: runID, Filename: filename, HappenedAt: now()}
	if cause != nil {
		ev.Error = cause.Error()
	}
	return ev
}

func OverallProgress(runID string, current, total int) ProgressEvent {
	return ProgressEvent{
		Type:        EventOverallProgress,
		RunID:       runID,
		CurrentFile: current,
		TotalFiles:  total,
		HappenedAt:  now(),
	}
}

func BatchComplete(runID string, s BatchSummary) ProgressEvent {
	return ProgressEvent{
		Type:         EventBatchComplete,
		RunID:        runID,
		SuccessCount: s.SuccessCount,
		ErrorCount:   s.ErrorCount,
		TotalFiles:   s.TotalFiles,
		WasCancelled: s.WasCancelled,
		HappenedAt:   now(),
	}
}

type ControlAction string

const (
	ActionPause  ControlAction = "pause"
	ActionResume ControlAction = "resume"
	ActionCancel ControlAction = "cancel"
)

// ControlCommand asks a running conversion to change state. An empty RunID
// targets whichever run is active.
type ControlCommand struct {
	RunID  string        `json:"run_id,omitempty"`
	Action ControlAction `json:"action"`
}
