package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/tendant/simple-pdf2img/pkg/schema"
)

type JSONPublisher interface {
	PublishJSON(subject string, v any) error
}

// EventPublisher forwards progress events to "<prefix>.<event type>".
type EventPublisher struct {
	pub    JSONPublisher
	prefix string
}

func NewEventPublisher(pub JSONPublisher, prefix string) *EventPublisher {
	return &EventPublisher{pub: pub, prefix: prefix}
}

func (p *EventPublisher) Subject(t schema.EventType) string {
	return p.prefix + "." + string(t)
}

func (p *EventPublisher) PublishEvent(ev schema.ProgressEvent) error {
	subject := p.Subject(ev.Type)
	if err := p.pub.PublishJSON(subject, ev); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}

// Controllable is the part of a run handle remote commands can drive.
type Controllable interface {
	RunID() string
	Pause() bool
	Resume() bool
	Cancel()
}

// ControlHandler returns a subscription handler that applies commands
// addressed to target's run. Malformed commands are logged and dropped.
func ControlHandler(target Controllable, logger *slog.Logger) func(ctx context.Context, data []byte) {
	if logger == nil {
		logger = slog.Default()
	}
	return func(_ context.Context, data []byte) {
		var cmd schema.ControlCommand
		if err := json.Unmarshal(data, &cmd); err != nil {
			logger.Warn("invalid control command", "err", err)
			return
		}
		if cmd.RunID != "" && cmd.RunID != target.RunID() {
			logger.Debug("control command for another run ignored", "run_id", cmd.RunID)
			return
		}

		switch cmd.Action {
		case schema.ActionPause:
			logger.Info("remote pause", "applied", target.Pause())
		case schema.ActionResume:
			logger.Info("remote resume", "applied", target.Resume())
		case schema.ActionCancel:
			target.Cancel()
			logger.Info("remote cancel")
		default:
			logger.Warn("unknown control action", "action", cmd.Action)
		}
	}
}
