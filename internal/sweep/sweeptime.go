package sweep

import (
	"context"
	"fmt"
	"time"

	"github.com/condmatlab/gateman/internal/cq"
	"github.com/condmatlab/gateman/internal/datafile"
	"github.com/condmatlab/gateman/internal/gate"
	"github.com/condmatlab/gateman/internal/model"
)

// OptionsTime parametrizes a time sweep: sample the measured input every
// TimeStep seconds for TotalTime seconds.
type OptionsTime struct {
	TotalTime float64
	TimeStep  float64
	Options
}

// ResultTime is the recorded trace: elapsed seconds and currents in
// CurrentUnit.
type ResultTime struct {
	DataFile string
	Times    []float64
	Currents []float64
}

// SweepTime holds the gate voltages fixed and records the measured input
// over time. Outputs not named in the initial state are turned off first.
func (s *Sweeper) SweepTime(ctx context.Context, opts OptionsTime) (*ResultTime, error) {
	opts.normalize()
	if err := cq.ValidateModel(model.KindTime, opts.Model); err != nil {
		return nil, err
	}
	if !model.ValidCurrentUnit(opts.CurrentUnit) {
		return nil, fmt.Errorf("invalid current unit %q", opts.CurrentUnit)
	}
	if opts.TotalTime <= 0 {
		return nil, fmt.Errorf("total time must be positive")
	}
	if opts.TimeStep <= 0 {
		return nil, fmt.Errorf("time step must be positive")
	}
	if opts.TimeStep >= opts.TotalTime {
		return nil, fmt.Errorf("time step must be smaller than total time")
	}
	meas, err := s.measuredGate()
	if err != nil {
		return nil, err
	}

	if err := s.turnOffIdle(ctx, opts.Initial); err != nil {
		return nil, err
	}
	if err := s.applyInitial(ctx, opts.Initial); err != nil {
		return nil, err
	}

	zLabel := s.Inputs.Label()
	started := time.Now()
	steps := int(opts.TotalTime/opts.TimeStep) + 1

	var df *datafile.File
	var rl *datafile.RunLog
	if s.Dir != "" {
		base := datafile.BaseName(model.KindTime, s.Temperature, zLabel, "", "", opts.Comments, started)
		if df, err = datafile.Create(s.Dir, base); err != nil {
			return nil, err
		}
		defer df.Close()
		if err = df.Header("time [s]", fmt.Sprintf("%s [%s]", zLabel, opts.CurrentUnit)); err != nil {
			return nil, err
		}
		rl = datafile.OpenLog(s.Dir, opts.Comments)
		if err = rl.Start(datafile.StartInfo{
			Kind:      model.KindTime,
			Filename:  df.Name(),
			Device:    s.Device,
			Measured:  zLabel,
			TotalTime: opts.TotalTime,
			TimeStep:  opts.TimeStep,
			Initial:   s.initialVoltages(ctx),
		}); err != nil {
			return nil, err
		}
	}

	s.logger().Info("starting time sweep",
		"measured", zLabel, "total_time", opts.TotalTime, "time_step", opts.TimeStep, "points", steps)

	cScale := model.CurrentScale(opts.CurrentUnit)
	res := &ResultTime{
		Times:    make([]float64, 0, steps),
		Currents: make([]float64, 0, steps),
	}
	if df != nil {
		res.DataFile = df.Path()
	}

	step := time.Duration(opts.TimeStep * float64(time.Second))
	s.progressStart(steps, "Recording")
	for i := 0; i < steps; i++ {
		elapsed := time.Since(started).Seconds()
		cur, err := meas.ReadCurrent(ctx, s.Amplification)
		if err != nil {
			return nil, err
		}
		c := cur * cScale
		res.Times = append(res.Times, elapsed)
		res.Currents = append(res.Currents, c)
		if df != nil {
			if err := df.RowTime(elapsed, c); err != nil {
				return nil, err
			}
		}
		s.emit(model.Point{Index: i, X: elapsed, Value: c})
		s.progressStep()

		if i == steps-1 {
			break
		}
		next := started.Add(time.Duration(i+1) * step)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Until(next)):
		}
	}
	s.progressDone()

	if rl != nil {
		if err := rl.End(time.Since(started)); err != nil {
			return nil, err
		}
	}
	s.logger().Info("time sweep complete", "points", steps, "elapsed", time.Since(started))

	s.runModel(ctx, opts.Model, &cq.ExecuteRequest{X: res.Times, Data: [][]float64{res.Currents}})
	return res, nil
}

// turnOffIdle zeroes every writable output that the initial state does not
// pin, so a time trace starts from a known configuration.
func (s *Sweeper) turnOffIdle(ctx context.Context, initial []Initial) error {
	if s.Outputs == nil {
		return nil
	}
	pinned := make(map[*gate.Gate]bool, len(initial))
	for _, in := range initial {
		pinned[in.Gate] = true
	}
	var idle []*gate.Gate
	for _, g := range s.Outputs.Gates {
		if !pinned[g] && g.Meta().Writable() {
			idle = append(idle, g)
		}
	}
	if len(idle) == 0 {
		return nil
	}
	return gate.NewGroup(idle...).TurnOff(ctx)
}
