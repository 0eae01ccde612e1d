package main

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/tendant/simple-pdf2img/pkg/schema"
)

type command int

const (
	cmdPause command = iota + 1
	cmdResume
	cmdTogglePause
	cmdCancel
)

func parseCommand(line string) (command, bool) {
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "p", "pause":
		return cmdPause, true
	case "r", "resume":
		return cmdResume, true
	case "c", "cancel":
		return cmdCancel, true
	default:
		return 0, false
	}
}

// readCommands forwards pause/resume/cancel lines from r until EOF or ctx is
// done.
func readCommands(ctx context.Context, r io.Reader, out chan<- command) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		cmd, ok := parseCommand(scanner.Text())
		if !ok {
			continue
		}
		select {
		case out <- cmd:
		case <-ctx.Done():
			return
		}
	}
}

// runHandle is the part of a coordinator handle the session drives.
type runHandle interface {
	Pause() bool
	Resume() bool
	Cancel()
	DrainEvents(max int) []schema.ProgressEvent
	Summary() (schema.BatchSummary, bool)
}

// session is the controlling loop of one conversion: it drains events on a
// fixed tick and applies user commands between ticks.
type session struct {
	handle     runHandle
	view       *view
	drainBatch int
	poll       time.Duration
	logger     *slog.Logger
}

func (s *session) run(ctx context.Context, commands <-chan command) (schema.BatchSummary, error) {
	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.view.abort()
			return schema.BatchSummary{}, ctx.Err()

		case cmd := <-commands:
			s.apply(cmd)

		case <-ticker.C:
			for _, ev := range s.handle.DrainEvents(s.drainBatch) {
				s.view.apply(ev)
			}
			if summary, ok := s.handle.Summary(); ok {
				s.view.finish(summary)
				return summary, nil
			}
		}
	}
}

func (s *session) apply(cmd command) {
	switch cmd {
	case cmdPause:
		if s.handle.Pause() {
			s.view.setPaused(true)
		}
	case cmdResume:
		if s.handle.Resume() {
			s.view.setPaused(false)
		}
	case cmdTogglePause:
		// Pause is refused when already paused, so a refusal means resume.
		if s.handle.Pause() {
			s.view.setPaused(true)
		} else if s.handle.Resume() {
			s.view.setPaused(false)
		}
	case cmdCancel:
		s.handle.Cancel()
		s.view.cancelling()
	}
}

// remoteControl hands bus control commands to the session's command channel,
// so remote requests go through the same path as typed ones and update the
// view. Its results report whether a command was queued, not applied.
type remoteControl struct {
	ctx   context.Context
	runID string
	out   chan<- command
}

func (r remoteControl) RunID() string { return r.runID }
func (r remoteControl) Pause() bool   { return r.send(cmdPause) }
func (r remoteControl) Resume() bool  { return r.send(cmdResume) }
func (r remoteControl) Cancel()       { r.send(cmdCancel) }

func (r remoteControl) send(cmd command) bool {
	select {
	case r.out <- cmd:
		return true
	case <-r.ctx.Done():
		return false
	}
}
