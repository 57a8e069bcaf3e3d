// Package client provides a transport-agnostic interface for the gateman
// daemon and an HTTP/JSON implementation that talks to its REST API.
package client

import (
	"context"

	"github.com/condmatlab/gateman/internal/model"
)

// GatemanClient is the interface that all gm CLI commands use to communicate
// with the daemon. It is implemented by HTTPClient.
type GatemanClient interface {
	// Gates
	ListGates(ctx context.Context) ([]*model.Gate, error)
	GetGate(ctx context.Context, id string) (*model.Gate, error)
	GetVoltage(ctx context.Context, id string) (float64, error)
	SetVoltage(ctx context.Context, id string, req *SetVoltageRequest) (float64, error)
	ReadCurrent(ctx context.Context, id string, amplification float64) (float64, error)
	TurnOffGate(ctx context.Context, id string) error
	TurnOffAll(ctx context.Context) ([]string, error)

	// Sweeps
	Sweep1D(ctx context.Context, req *Sweep1DRequest) (*model.Run, error)
	Sweep2D(ctx context.Context, req *Sweep2DRequest) (*model.Run, error)
	SweepTime(ctx context.Context, req *SweepTimeRequest) (*model.Run, error)

	// Runs
	ListRuns(ctx context.Context, req *ListRunsRequest) (*ListRunsResponse, error)
	GetRun(ctx context.Context, id string) (*model.Run, error)
	GetPoints(ctx context.Context, id string) ([]model.Point, error)
	GetEvents(ctx context.Context, id string) ([]*model.Event, error)

	// Events
	StreamEvents(ctx context.Context, topics []string) (<-chan StreamEvent, error)

	// Health
	Health(ctx context.Context) (string, error)

	// Lifecycle
	Close() error
}

// SetVoltageRequest holds parameters for setting a gate voltage.
type SetVoltageRequest struct {
	Value float64 `json:"value"`
	Unit  string  `json:"unit,omitempty"`  // defaults to "V"
	Wait  *bool   `json:"wait,omitempty"`  // defaults to true
	Actor string  `json:"actor,omitempty"`
}

// InitialVoltage names one gate's pre-sweep voltage.
type InitialVoltage struct {
	Gate  string  `json:"gate"`
	Value float64 `json:"value"`
	Unit  string  `json:"unit,omitempty"`
}

// SweepCommon holds the parameters shared by all sweep requests.
type SweepCommon struct {
	VoltageUnit string           `json:"voltage_unit,omitempty"`
	CurrentUnit string           `json:"current_unit,omitempty"`
	Initial     []InitialVoltage `json:"initial,omitempty"`
	Model       string           `json:"model,omitempty"`
	Comments    string           `json:"comments,omitempty"`
	Actor       string           `json:"actor,omitempty"`
}

// Sweep1DRequest holds parameters for a one-dimensional sweep.
type Sweep1DRequest struct {
	Gates []string `json:"gates"`
	Start float64  `json:"start"`
	Stop  float64  `json:"stop"`
	Step  float64  `json:"step"`
	SweepCommon
}

// SweepAxis is one axis of a 2D sweep request.
type SweepAxis struct {
	Gates []string `json:"gates"`
	Start float64  `json:"start"`
	Stop  float64  `json:"stop"`
	Step  float64  `json:"step"`
}

// Sweep2DRequest holds parameters for a two-dimensional sweep.
type Sweep2DRequest struct {
	X SweepAxis `json:"x"`
	Y SweepAxis `json:"y"`
	SweepCommon
}

// SweepTimeRequest holds parameters for a time sweep. Times are in seconds.
type SweepTimeRequest struct {
	TotalTime float64 `json:"total_time"`
	TimeStep  float64 `json:"time_step"`
	SweepCommon
}

// ListRunsRequest holds parameters for listing runs.
type ListRunsRequest struct {
	Kind   []string `json:"kind,omitempty"`
	State  []string `json:"state,omitempty"`
	Device string   `json:"device,omitempty"`
	Limit  int      `json:"limit,omitempty"`
	Offset int      `json:"offset,omitempty"`
}

// ListRunsResponse is the response from ListRuns.
type ListRunsResponse struct {
	Runs  []*model.Run `json:"runs"`
	Total int          `json:"total"`
}

// StreamEvent is one event received over the daemon's SSE stream.
type StreamEvent struct {
	ID    string
	Topic string
	Data  []byte
}
