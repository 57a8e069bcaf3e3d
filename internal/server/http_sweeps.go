package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/condmatlab/gateman/internal/cq"
	"github.com/condmatlab/gateman/internal/events"
	"github.com/condmatlab/gateman/internal/model"
	"github.com/condmatlab/gateman/internal/sweep"
)

// initialRequest names one gate's pre-sweep voltage.
type initialRequest struct {
	Gate  string  `json:"gate"`
	Value float64 `json:"value"`
	Unit  string  `json:"unit,omitempty"` // defaults to "V"
}

// sweepCommon carries the parameters shared by all sweep requests.
type sweepCommon struct {
	VoltageUnit string           `json:"voltage_unit,omitempty"`
	CurrentUnit string           `json:"current_unit,omitempty"`
	Initial     []initialRequest `json:"initial,omitempty"`
	Model       string           `json:"model,omitempty"`
	Comments    string           `json:"comments,omitempty"`
	Actor       string           `json:"actor,omitempty"`
}

func (c *sweepCommon) normalize() {
	if c.VoltageUnit == "" {
		c.VoltageUnit = "V"
	}
	if c.CurrentUnit == "" {
		c.CurrentUnit = "uA"
	}
}

func (c *sweepCommon) validate(kind model.RunKind) error {
	if !model.ValidVoltageUnit(c.VoltageUnit) {
		return inputError(fmt.Sprintf("invalid voltage unit %q", c.VoltageUnit))
	}
	if !model.ValidCurrentUnit(c.CurrentUnit) {
		return inputError(fmt.Sprintf("invalid current unit %q", c.CurrentUnit))
	}
	if err := cq.ValidateModel(kind, c.Model); err != nil {
		return inputError(err.Error())
	}
	return nil
}

// sweep1DRequest is the body of POST /v1/sweeps/1d. Start, Stop and Step are
// expressed in voltage_unit.
type sweep1DRequest struct {
	Gates []string `json:"gates"`
	Start float64  `json:"start"`
	Stop  float64  `json:"stop"`
	Step  float64  `json:"step"`
	sweepCommon
}

// sweepAxisRequest is one axis of a 2D sweep request.
type sweepAxisRequest struct {
	Gates []string `json:"gates"`
	Start float64  `json:"start"`
	Stop  float64  `json:"stop"`
	Step  float64  `json:"step"`
}

// sweep2DRequest is the body of POST /v1/sweeps/2d.
type sweep2DRequest struct {
	X sweepAxisRequest `json:"x"`
	Y sweepAxisRequest `json:"y"`
	sweepCommon
}

// sweepTimeRequest is the body of POST /v1/sweeps/time. Times are in seconds.
type sweepTimeRequest struct {
	TotalTime float64 `json:"total_time"`
	TimeStep  float64 `json:"time_step"`
	sweepCommon
}

// buildSweepOptions converts the wire-level common parameters into sweep
// options, resolving initial-state gate IDs.
func (s *GatemanServer) buildSweepOptions(c sweepCommon) (sweep.Options, error) {
	opts := sweep.Options{
		VoltageUnit: c.VoltageUnit,
		CurrentUnit: c.CurrentUnit,
		Model:       c.Model,
		Comments:    c.Comments,
	}
	for _, in := range c.Initial {
		g, err := s.lookupGate(in.Gate)
		if err != nil {
			return opts, err
		}
		if !g.Meta().Writable() {
			return opts, inputError("gate " + in.Gate + " is read-only")
		}
		unit := in.Unit
		if unit == "" {
			unit = "V"
		}
		opts.Initial = append(opts.Initial, sweep.Initial{Gate: g, Value: in.Value, Unit: unit})
	}
	return opts, nil
}

// runAxis converts a start/stop/step triple to a base-volts axis for run
// metadata, rejecting degenerate ranges before a run record is created.
func runAxis(label string, start, stop, step float64, unit string) (model.Axis, error) {
	ax := model.Axis{Label: label}
	var err error
	if ax.Start, err = model.ToVolts(start, unit); err != nil {
		return ax, inputError(err.Error())
	}
	if ax.Stop, err = model.ToVolts(stop, unit); err != nil {
		return ax, inputError(err.Error())
	}
	if ax.Step, err = model.ToVolts(step, unit); err != nil {
		return ax, inputError(err.Error())
	}
	if ax.Step <= 0 {
		return ax, inputError("step size must be positive")
	}
	span := ax.Stop - ax.Start
	if span < 0 {
		span = -span
	}
	if span < ax.Step {
		return ax, inputError(fmt.Sprintf("step size %g V is larger than sweep range %g V", ax.Step, span))
	}
	return ax, nil
}

func (s *GatemanServer) measuredLabel() (string, error) {
	if s.sweeper.Inputs == nil || len(s.sweeper.Inputs.Gates) == 0 {
		return "", fmt.Errorf("no measured input configured")
	}
	return s.sweeper.Inputs.Label(), nil
}

// handleSweep1D handles POST /v1/sweeps/1d.
func (s *GatemanServer) handleSweep1D(w http.ResponseWriter, r *http.Request) {
	var req sweep1DRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	req.normalize()
	if err := req.validate(model.Kind1D); err != nil {
		writeOpError(w, err)
		return
	}
	swept, err := s.resolveGroup(req.Gates)
	if err != nil {
		writeOpError(w, err)
		return
	}
	ax, err := runAxis(swept.Label(), req.Start, req.Stop, req.Step, req.VoltageUnit)
	if err != nil {
		writeOpError(w, err)
		return
	}
	opts, err := s.buildSweepOptions(req.sweepCommon)
	if err != nil {
		writeOpError(w, err)
		return
	}
	measured, err := s.measuredLabel()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	run := s.newRun(model.Kind1D, measured, req.sweepCommon)
	run.X = ax
	s.launchRun(w, r, run, req.Actor, func(ctx context.Context, sw *sweep.Sweeper) (string, error) {
		res, err := sw.Sweep1D(ctx, sweep.Options1D{
			Swept:   swept,
			Start:   req.Start,
			Stop:    req.Stop,
			Step:    req.Step,
			Options: opts,
		})
		if err != nil {
			return "", err
		}
		return res.DataFile, nil
	})
}

// handleSweep2D handles POST /v1/sweeps/2d.
func (s *GatemanServer) handleSweep2D(w http.ResponseWriter, r *http.Request) {
	var req sweep2DRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	req.normalize()
	if err := req.validate(model.Kind2D); err != nil {
		writeOpError(w, err)
		return
	}
	xSwept, err := s.resolveGroup(req.X.Gates)
	if err != nil {
		writeOpError(w, err)
		return
	}
	ySwept, err := s.resolveGroup(req.Y.Gates)
	if err != nil {
		writeOpError(w, err)
		return
	}
	xAxis, err := runAxis(xSwept.Label(), req.X.Start, req.X.Stop, req.X.Step, req.VoltageUnit)
	if err != nil {
		writeOpError(w, fmt.Errorf("X axis: %w", err))
		return
	}
	yAxis, err := runAxis(ySwept.Label(), req.Y.Start, req.Y.Stop, req.Y.Step, req.VoltageUnit)
	if err != nil {
		writeOpError(w, fmt.Errorf("Y axis: %w", err))
		return
	}
	opts, err := s.buildSweepOptions(req.sweepCommon)
	if err != nil {
		writeOpError(w, err)
		return
	}
	measured, err := s.measuredLabel()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	run := s.newRun(model.Kind2D, measured, req.sweepCommon)
	run.X = xAxis
	run.Y = &yAxis
	s.launchRun(w, r, run, req.Actor, func(ctx context.Context, sw *sweep.Sweeper) (string, error) {
		res, err := sw.Sweep2D(ctx, sweep.Options2D{
			XSwept:  xSwept,
			YSwept:  ySwept,
			X:       sweep.AxisSpec{Start: req.X.Start, Stop: req.X.Stop, Step: req.X.Step},
			Y:       sweep.AxisSpec{Start: req.Y.Start, Stop: req.Y.Stop, Step: req.Y.Step},
			Options: opts,
		})
		if err != nil {
			return "", err
		}
		return res.DataFile, nil
	})
}

// handleSweepTime handles POST /v1/sweeps/time.
func (s *GatemanServer) handleSweepTime(w http.ResponseWriter, r *http.Request) {
	var req sweepTimeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	req.normalize()
	if err := req.validate(model.KindTime); err != nil {
		writeOpError(w, err)
		return
	}
	if req.TotalTime <= 0 {
		writeError(w, http.StatusBadRequest, "total time must be positive")
		return
	}
	if req.TimeStep <= 0 {
		writeError(w, http.StatusBadRequest, "time step must be positive")
		return
	}
	if req.TimeStep >= req.TotalTime {
		writeError(w, http.StatusBadRequest, "time step must be smaller than total time")
		return
	}
	opts, err := s.buildSweepOptions(req.sweepCommon)
	if err != nil {
		writeOpError(w, err)
		return
	}
	measured, err := s.measuredLabel()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	run := s.newRun(model.KindTime, measured, req.sweepCommon)
	run.TotalTime = req.TotalTime
	run.TimeStep = req.TimeStep
	s.launchRun(w, r, run, req.Actor, func(ctx context.Context, sw *sweep.Sweeper) (string, error) {
		res, err := sw.SweepTime(ctx, sweep.OptionsTime{
			TotalTime: req.TotalTime,
			TimeStep:  req.TimeStep,
			Options:   opts,
		})
		if err != nil {
			return "", err
		}
		return res.DataFile, nil
	})
}

// newRun builds the run record common to all sweep kinds.
func (s *GatemanServer) newRun(kind model.RunKind, measured string, c sweepCommon) *model.Run {
	return &model.Run{
		ID:          newRunID(),
		Kind:        kind,
		Device:      s.sweeper.Device,
		Temperature: s.sweeper.Temperature,
		Measured:    measured,
		VoltageUnit: c.VoltageUnit,
		CurrentUnit: c.CurrentUnit,
		Comments:    c.Comments,
		Model:       c.Model,
		State:       model.RunRunning,
		StartedAt:   time.Now().UTC(),
	}
}

// launchRun registers the run, announces it, and starts the sweep in the
// background. The HTTP response is 202 with the run record; progress arrives
// over the event stream.
func (s *GatemanServer) launchRun(w http.ResponseWriter, r *http.Request, run *model.Run, actor string, do func(ctx context.Context, sw *sweep.Sweeper) (string, error)) {
	if err := s.acquireRun(run.ID); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	ctx := r.Context()
	if s.store != nil {
		if err := s.store.CreateRun(ctx, run); err != nil {
			s.releaseRun()
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}
	s.recordAndPublish(ctx, events.TopicRunStarted, run.ID, actor, events.RunStarted{Run: run})

	go s.executeRun(run, actor, do)

	writeJSON(w, http.StatusAccepted, run)
}

// executeRun drives the sweep to completion on a fresh context; the request
// context is gone by the time points arrive.
func (s *GatemanServer) executeRun(run *model.Run, actor string, do func(ctx context.Context, sw *sweep.Sweeper) (string, error)) {
	defer s.releaseRun()
	ctx := context.Background()

	// Shallow copy so the point observer is scoped to this run.
	sw := *s.sweeper
	sw.OnPoint = func(p model.Point) {
		p.RunID = run.ID
		if s.store != nil {
			if err := s.store.AppendPoints(ctx, run.ID, []model.Point{p}); err != nil {
				slog.Warn("failed to append point", "run_id", run.ID, "index", p.Index, "error", err)
			}
		}
		s.publishPoint(ctx, run.ID, p)
	}

	dataFile, err := do(ctx, &sw)

	now := time.Now().UTC()
	run.FinishedAt = &now
	if err != nil {
		run.State = model.RunFailed
		run.Error = err.Error()
		if s.store != nil {
			if uerr := s.store.UpdateRunState(ctx, run.ID, model.RunFailed, err.Error()); uerr != nil {
				slog.Warn("failed to mark run failed", "run_id", run.ID, "error", uerr)
			}
		}
		s.recordAndPublish(ctx, events.TopicRunFailed, run.ID, actor, events.RunFailed{Run: run, Reason: err.Error()})
		slog.Error("sweep failed", "run_id", run.ID, "kind", run.Kind, "error", err)
		return
	}

	run.State = model.RunCompleted
	run.DataFile = dataFile
	if s.store != nil {
		if dataFile != "" {
			if serr := s.store.SetRunDataFile(ctx, run.ID, dataFile); serr != nil {
				slog.Warn("failed to record data file", "run_id", run.ID, "error", serr)
			}
		}
		if uerr := s.store.UpdateRunState(ctx, run.ID, model.RunCompleted, ""); uerr != nil {
			slog.Warn("failed to mark run completed", "run_id", run.ID, "error", uerr)
		}
	}
	s.recordAndPublish(ctx, events.TopicRunCompleted, run.ID, actor, events.RunCompleted{Run: run})
}

// publishPoint fans a measurement out to NATS and the SSE hub. Points are
// not written to the event log; they live in the points table.
func (s *GatemanServer) publishPoint(ctx context.Context, runID string, p model.Point) {
	evt := events.RunPoint{RunID: runID, Point: p}
	if err := s.publisher.Publish(ctx, events.TopicRunPoint, evt); err != nil {
		slog.Warn("failed to publish point", "run_id", runID, "index", p.Index, "error", err)
	}
	s.broadcastEvent(events.TopicRunPoint, evt)
}
