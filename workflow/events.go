package workflow

import (
	"context"
	"log/slog"
	"time"
)

// EventType labels session lifecycle events.
type EventType string

const (
	EventWorkflowStarted   EventType = "workflow_started"
	EventWorkflowCompleted EventType = "workflow_completed"
	EventWorkflowFailed    EventType = "workflow_failed"
	EventPhaseChanged      EventType = "phase_changed"
	EventEntityCreated     EventType = "entity_created"
	EventEntitySkipped     EventType = "entity_skipped"
	EventEntityFailed      EventType = "entity_failed"
	EventProgressUpdated   EventType = "progress_updated"
)

// Event is one session lifecycle notification.
type Event struct {
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	SessionID string         `json:"sessionId"`
	Data      map[string]any `json:"data,omitempty"`
}

// EventSink receives session events. Implementations must not block the
// pipeline; slow consumers should buffer.
type EventSink interface {
	Publish(ctx context.Context, event Event) error
}

// Emitter fans session events out to a sink. A nil sink disables emission;
// publish failures are logged and swallowed so the pipeline never stalls
// on observers.
type Emitter struct {
	sink      EventSink
	sessionID string
	logger    *slog.Logger
}

// NewEmitter builds an emitter for one session.
func NewEmitter(sink EventSink, sessionID string, logger *slog.Logger) *Emitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Emitter{sink: sink, sessionID: sessionID, logger: logger}
}

// Emit publishes one event.
func (e *Emitter) Emit(ctx context.Context, eventType EventType, data map[string]any) {
	if e == nil || e.sink == nil {
		return
	}
	event := Event{
		Type:      eventType,
		Timestamp: time.Now(),
		SessionID: e.sessionID,
		Data:      data,
	}
	if err := e.sink.Publish(ctx, event); err != nil {
		e.logger.Warn("event publish failed",
			"type", string(eventType),
			"session_id", e.sessionID,
			"error", err.Error())
	}
}

// PhaseChanged publishes a phase transition.
func (e *Emitter) PhaseChanged(ctx context.Context, from, to Phase) {
	e.Emit(ctx, EventPhaseChanged, map[string]any{
		"from": from.String(),
		"to":   to.String(),
	})
}

// Progress publishes a progress snapshot.
func (e *Emitter) Progress(ctx context.Context, p Progress) {
	e.Emit(ctx, EventProgressUpdated, map[string]any{
		"phase":       p.Phase.String(),
		"currentStep": p.CurrentStep,
		"totalSteps":  p.TotalSteps,
		"description": p.Description,
		"percentage":  p.Percentage,
	})
}
