// Package events publishes workflow lifecycle events to NATS. The
// publisher is a workflow.Observer; the engine itself stays transport-free
// and emits events only through this opt-in hook.
//
// Events are JSON-encoded and published on a subject hierarchy under the
// configured root: <subject>.run.started, <subject>.node.stage.finished,
// and so on. Publish failures are logged, never surfaced to the run.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/wehubfusion/Daedalus/pkg/workflow"
)

// Event types emitted by the publisher.
const (
	TypeRunStarted    = "run.started"
	TypeRunFinished   = "run.finished"
	TypeStageStarted  = "node.stage.started"
	TypeStageFinished = "node.stage.finished"
)

// Event is the wire form of a lifecycle notification.
type Event struct {
	Type      string    `json:"type"`
	RunID     string    `json:"runId"`
	Flow      string    `json:"flow"`
	Iteration int       `json:"iteration"`
	Node      string    `json:"node,omitempty"`
	Stage     string    `json:"stage,omitempty"`
	// Item is the batch element index, or -1 when the stage is not
	// element-wise. It is always serialized: zero is a real first element.
	Item      int       `json:"item"`
	Action    string    `json:"action,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Config holds publisher settings.
type Config struct {
	// Subject is the root subject for the event hierarchy
	// (default "workflow.events").
	Subject string

	// Logger receives publish diagnostics (default no-op).
	Logger *zap.Logger
}

// DefaultConfig returns a default publisher configuration.
func DefaultConfig() *Config {
	return &Config{
		Subject: "workflow.events",
		Logger:  zap.NewNop(),
	}
}

// Publisher publishes lifecycle events to NATS. It implements
// workflow.Observer.
type Publisher struct {
	conn    *nats.Conn
	subject string
	logger  *zap.Logger
}

// NewPublisher creates a Publisher on an established connection.
func NewPublisher(conn *nats.Conn, config *Config) (*Publisher, error) {
	if conn == nil {
		return nil, fmt.Errorf("NATS connection cannot be nil")
	}
	if config == nil {
		config = DefaultConfig()
	}
	subject := config.Subject
	if subject == "" {
		subject = "workflow.events"
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{conn: conn, subject: subject, logger: logger}, nil
}

// RunStarted implements workflow.Observer.
func (p *Publisher) RunStarted(ctx context.Context, run workflow.RunInfo) context.Context {
	p.publish(Event{
		Type:      TypeRunStarted,
		RunID:     run.RunID,
		Flow:      run.Flow,
		Iteration: run.Iteration,
		Item:      -1,
		Timestamp: time.Now().UTC(),
	})
	return ctx
}

// RunFinished implements workflow.Observer.
func (p *Publisher) RunFinished(ctx context.Context, run workflow.RunInfo, action workflow.Action, err error) {
	e := Event{
		Type:      TypeRunFinished,
		RunID:     run.RunID,
		Flow:      run.Flow,
		Iteration: run.Iteration,
		Item:      -1,
		Action:    string(action),
		Timestamp: time.Now().UTC(),
	}
	if err != nil {
		e.Error = err.Error()
	}
	p.publish(e)
}

// StageStarted implements workflow.Observer.
func (p *Publisher) StageStarted(ctx context.Context, stage workflow.StageInfo) context.Context {
	p.publish(stageEvent(TypeStageStarted, stage, nil))
	return ctx
}

// StageFinished implements workflow.Observer.
func (p *Publisher) StageFinished(ctx context.Context, stage workflow.StageInfo, err error) {
	p.publish(stageEvent(TypeStageFinished, stage, err))
}

func stageEvent(eventType string, stage workflow.StageInfo, err error) Event {
	e := Event{
		Type:      eventType,
		RunID:     stage.Run.RunID,
		Flow:      stage.Run.Flow,
		Iteration: stage.Run.Iteration,
		Node:      stage.Node,
		Stage:     string(stage.Stage),
		Item:      stage.Item,
		Timestamp: time.Now().UTC(),
	}
	if err != nil {
		e.Error = err.Error()
	}
	return e
}

func (p *Publisher) publish(e Event) {
	data, err := json.Marshal(e)
	if err != nil {
		p.logger.Warn("failed to encode event",
			zap.String("type", e.Type),
			zap.Error(err))
		return
	}
	if err := p.conn.Publish(p.subject+"."+e.Type, data); err != nil {
		p.logger.Warn("failed to publish event",
			zap.String("type", e.Type),
			zap.String("run_id", e.RunID),
			zap.Error(err))
	}
}
