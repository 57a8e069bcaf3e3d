// Package sweep drives voltage and time sweeps over gate groups: validate
// parameters, ramp the device into its initial state, step the swept
// outputs, read the measured input, and record every point to the data
// file and any registered observer.
package sweep

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/condmatlab/gateman/internal/cq"
	"github.com/condmatlab/gateman/internal/gate"
	"github.com/condmatlab/gateman/internal/model"
)

// Progress receives step counts while a sweep runs. The CLI renders it as
// a progress line on a TTY; headless callers leave it nil.
type Progress interface {
	Start(total int, desc string)
	Step()
	Done()
}

// Sweeper holds the device-level context shared by every sweep: the full
// output group, the measured inputs, preamp gain, and where files go.
type Sweeper struct {
	Outputs *gate.Group // every writable output on the device
	Inputs  *gate.Group // measured inputs; the first gate is read

	Amplification float64 // preamp gain in V/A, 0 = gate.DefaultAmplification
	Device        string
	Temperature   string

	Dir      string       // working directory for data/ and the run log; "" disables files
	Logger   *slog.Logger // nil = slog.Default()
	Progress Progress
	CQ       *cq.Client // optional post-sweep analysis

	// OnPoint observes every recorded point, in order. Used by the daemon
	// to persist and publish points as they arrive.
	OnPoint func(model.Point)
}

// Initial is one gate's pre-sweep voltage.
type Initial struct {
	Gate  *gate.Gate
	Value float64
	Unit  string
}

// Options carries the parameters shared by all sweep kinds.
type Options struct {
	VoltageUnit string // default "V"
	CurrentUnit string // default "uA"
	Initial     []Initial
	Model       string // ConductorQuantum model, "" = no analysis
	Comments    string
}

func (o *Options) normalize() {
	if o.VoltageUnit == "" {
		o.VoltageUnit = "V"
	}
	if o.CurrentUnit == "" {
		o.CurrentUnit = "uA"
	}
}

func (o *Options) validateUnits() error {
	if !model.ValidVoltageUnit(o.VoltageUnit) {
		return fmt.Errorf("invalid voltage unit %q", o.VoltageUnit)
	}
	if !model.ValidCurrentUnit(o.CurrentUnit) {
		return fmt.Errorf("invalid current unit %q", o.CurrentUnit)
	}
	return nil
}

func (s *Sweeper) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

func (s *Sweeper) measuredGate() (*gate.Gate, error) {
	if s.Inputs == nil || len(s.Inputs.Gates) == 0 {
		return nil, fmt.Errorf("no measured input configured")
	}
	return s.Inputs.Gates[0], nil
}

// validateAxis checks a start/stop/step triple already converted to volts.
func validateAxis(ax model.Axis) error {
	if ax.Step <= 0 {
		return fmt.Errorf("step size must be positive")
	}
	span := ax.Stop - ax.Start
	if span < 0 {
		span = -span
	}
	if span < ax.Step {
		return fmt.Errorf("step size %g V is larger than sweep range %g V", ax.Step, span)
	}
	return nil
}

// toAxis converts a start/stop/step triple from unit to a volts axis.
func toAxis(label string, start, stop, step float64, unit string) (model.Axis, error) {
	var ax model.Axis
	var err error
	ax.Label = label
	if ax.Start, err = model.ToVolts(start, unit); err != nil {
		return ax, err
	}
	if ax.Stop, err = model.ToVolts(stop, unit); err != nil {
		return ax, err
	}
	if ax.Step, err = model.ToVolts(step, unit); err != nil {
		return ax, err
	}
	return ax, validateAxis(ax)
}

// applyInitial ramps the listed gates to their pre-sweep voltages, all
// writes first, then waits for every gate to settle.
func (s *Sweeper) applyInitial(ctx context.Context, initial []Initial) error {
	type target struct {
		g     *gate.Gate
		volts float64
	}
	targets := make([]target, 0, len(initial))
	for _, in := range initial {
		volts, err := model.ToVolts(in.Value, in.Unit)
		if err != nil {
			return fmt.Errorf("initial state for %s: %w", in.Gate.Label(), err)
		}
		if err := in.Gate.SetNoWait(ctx, volts); err != nil {
			return err
		}
		targets = append(targets, target{in.Gate, volts})
	}
	for _, t := range targets {
		if err := t.g.WaitSettled(ctx, t.volts); err != nil {
			return err
		}
	}
	return nil
}

// runModel submits a completed sweep to the analysis platform. Failures are
// logged, not fatal: the data on disk is the primary result.
func (s *Sweeper) runModel(ctx context.Context, modelName string, req *cq.ExecuteRequest) {
	if modelName == "" || s.CQ == nil {
		return
	}
	res, err := s.CQ.Execute(ctx, modelName, req)
	if err != nil {
		s.logger().Warn("model analysis failed", "model", modelName, "error", err)
		return
	}
	s.logger().Info("model analysis complete",
		"model", modelName, "prediction", res.Prediction, "confidence", res.Confidence)
}

func (s *Sweeper) progressStart(total int, desc string) {
	if s.Progress != nil {
		s.Progress.Start(total, desc)
	}
}

func (s *Sweeper) progressStep() {
	if s.Progress != nil {
		s.Progress.Step()
	}
}

func (s *Sweeper) progressDone() {
	if s.Progress != nil {
		s.Progress.Done()
	}
}

func (s *Sweeper) emit(p model.Point) {
	if s.OnPoint != nil {
		p.RecordedAt = time.Now().UTC()
		s.OnPoint(p)
	}
}
