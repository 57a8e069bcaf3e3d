package events

import (
	"context"

	"github.com/condmatlab/gateman/internal/model"
)

// Event topic constants
const (
	TopicRunStarted   = "gateman.run.started"
	TopicRunPoint     = "gateman.run.point"
	TopicRunCompleted = "gateman.run.completed"
	TopicRunFailed    = "gateman.run.failed"

	// Gate events
	TopicGateSet = "gateman.gate.set"
)

// Event types

type RunStarted struct {
	Run *model.Run `json:"run"`
}

type RunPoint struct {
	RunID string      `json:"run_id"`
	Point model.Point `json:"point"`
}

type RunCompleted struct {
	Run *model.Run `json:"run"`
}

type RunFailed struct {
	Run    *model.Run `json:"run"`
	Reason string     `json:"reason"`
}

type GateSet struct {
	Gate  string  `json:"gate"`
	Volts float64 `json:"volts"`
	Actor string  `json:"actor,omitempty"`
}

// Publisher is the interface for emitting events.
type Publisher interface {
	Publish(ctx context.Context, topic string, event any) error
	Close() error
}
