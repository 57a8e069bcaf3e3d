package model

import (
	"encoding/json"
	"time"
)

// RunKind identifies the sweep shape that produced a run.
type RunKind string

const (
	Kind1D   RunKind = "1d"
	Kind2D   RunKind = "2d"
	KindTime RunKind = "time"
)

// String returns the string representation of the run kind.
func (k RunKind) String() string {
	return string(k)
}

// IsValid checks whether the run kind is a known value.
func (k RunKind) IsValid() bool {
	switch k {
	case Kind1D, Kind2D, KindTime:
		return true
	}
	return false
}

// RunState tracks the lifecycle of a sweep run.
type RunState string

const (
	RunRunning   RunState = "running"
	RunCompleted RunState = "completed"
	RunFailed    RunState = "failed"
)

// String returns the string representation of the run state.
func (s RunState) String() string {
	return string(s)
}

// IsValid checks whether the run state is a known value.
func (s RunState) IsValid() bool {
	switch s {
	case RunRunning, RunCompleted, RunFailed:
		return true
	}
	return false
}

// Axis holds the swept range of one sweep axis in base volts.
type Axis struct {
	Label string  `json:"label"`
	Start float64 `json:"start"`
	Stop  float64 `json:"stop"`
	Step  float64 `json:"step"`
}

// Steps returns the number of points the axis produces: one per step plus
// the endpoint. Returns 0 for a degenerate axis.
func (a Axis) Steps() int {
	if a.Step <= 0 {
		return 0
	}
	span := a.Stop - a.Start
	if span < 0 {
		span = -span
	}
	return int(span/a.Step+0.5) + 1
}

// Run is one recorded sweep.
type Run struct {
	ID          string     `json:"id"`
	Kind        RunKind    `json:"kind"`
	Device      string     `json:"device,omitempty"`
	Temperature string     `json:"temperature,omitempty"`
	X           Axis       `json:"x"`
	Y           *Axis      `json:"y,omitempty"` // 2D sweeps only
	TotalTime   float64    `json:"total_time,omitempty"`
	TimeStep    float64    `json:"time_step,omitempty"`
	Measured    string     `json:"measured"` // measured input label
	VoltageUnit string     `json:"voltage_unit"`
	CurrentUnit string     `json:"current_unit"`
	Comments    string     `json:"comments,omitempty"`
	Model       string     `json:"model,omitempty"` // analysis model, if any
	DataFile    string     `json:"data_file,omitempty"`
	State       RunState   `json:"state"`
	Error       string     `json:"error,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
}

// Point is one measurement sample within a run. Y is meaningful only for
// 2D runs; for time runs X carries elapsed seconds.
type Point struct {
	RunID      string    `json:"run_id"`
	Index      int       `json:"index"`
	X          float64   `json:"x"`
	Y          float64   `json:"y,omitempty"`
	Value      float64   `json:"value"`
	RecordedAt time.Time `json:"recorded_at"`
}

// RunFilter narrows ListRuns results. Zero values mean "no constraint".
type RunFilter struct {
	Kind   []RunKind  `json:"kind,omitempty"`
	State  []RunState `json:"state,omitempty"`
	Device string     `json:"device,omitempty"`
	Limit  int        `json:"limit,omitempty"`
	Offset int        `json:"offset,omitempty"`
}

// Event is a persisted audit record of something that happened to a run or
// gate, mirroring what gets published on the bus.
type Event struct {
	ID        int64           `json:"id"`
	Topic     string          `json:"topic"`
	RunID     string          `json:"run_id,omitempty"`
	Actor     string          `json:"actor,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}
