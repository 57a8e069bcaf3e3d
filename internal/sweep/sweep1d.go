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

// Options1D parametrizes a one-dimensional voltage sweep. Start, Stop and
// Step are expressed in VoltageUnit.
type Options1D struct {
	Swept *gate.Group
	Start float64
	Stop  float64
	Step  float64
	Options
}

// Result1D is the recorded curve: swept voltages in VoltageUnit, measured
// currents in CurrentUnit, in step order.
type Result1D struct {
	DataFile string
	X        []float64
	Currents []float64
}

// Sweep1D steps the swept group from start to stop, reading the measured
// input at every point after the outputs settle.
func (s *Sweeper) Sweep1D(ctx context.Context, opts Options1D) (*Result1D, error) {
	opts.normalize()
	if err := cq.ValidateModel(model.Kind1D, opts.Model); err != nil {
		return nil, err
	}
	if err := opts.validateUnits(); err != nil {
		return nil, err
	}
	if opts.Swept == nil || len(opts.Swept.Gates) == 0 {
		return nil, fmt.Errorf("no swept outputs")
	}
	meas, err := s.measuredGate()
	if err != nil {
		return nil, err
	}
	ax, err := toAxis(opts.Swept.Label(), opts.Start, opts.Stop, opts.Step, opts.VoltageUnit)
	if err != nil {
		return nil, err
	}
	pts := Points(ax)

	if err := s.applyInitial(ctx, opts.Initial); err != nil {
		return nil, err
	}
	if err := opts.Swept.Set(ctx, pts[0]); err != nil {
		return nil, err
	}

	xLabel := opts.Swept.Label()
	zLabel := s.Inputs.Label()
	started := time.Now()

	var df *datafile.File
	var rl *datafile.RunLog
	if s.Dir != "" {
		base := datafile.BaseName(model.Kind1D, s.Temperature, zLabel, xLabel, "", opts.Comments, started)
		if df, err = datafile.Create(s.Dir, base); err != nil {
			return nil, err
		}
		defer df.Close()
		if err = df.Header(
			fmt.Sprintf("%s [%s]", xLabel, opts.VoltageUnit),
			fmt.Sprintf("%s [%s]", zLabel, opts.CurrentUnit),
		); err != nil {
			return nil, err
		}
		rl = datafile.OpenLog(s.Dir, opts.Comments)
		if err = rl.Start(datafile.StartInfo{
			Kind:     model.Kind1D,
			Filename: df.Name(),
			Device:   s.Device,
			Measured: zLabel,
			X:        datafile.AxisInfo{Label: xLabel, Start: ax.Start, Stop: ax.Stop, Step: ax.Step},
			Initial:  s.initialVoltages(ctx),
		}); err != nil {
			return nil, err
		}
	}

	s.logger().Info("starting 1D sweep",
		"swept", xLabel, "measured", zLabel,
		"from", opts.Start, "to", opts.Stop, "step", opts.Step, "unit", opts.VoltageUnit,
		"points", len(pts))

	vScale := model.VoltageScale(opts.VoltageUnit)
	cScale := model.CurrentScale(opts.CurrentUnit)
	res := &Result1D{
		X:        make([]float64, len(pts)),
		Currents: make([]float64, len(pts)),
	}
	if df != nil {
		res.DataFile = df.Path()
	}

	s.progressStart(len(pts), "Sweeping")
	for i, v := range pts {
		if err := opts.Swept.Set(ctx, v); err != nil {
			return nil, err
		}
		cur, err := meas.ReadCurrent(ctx, s.Amplification)
		if err != nil {
			return nil, err
		}
		x, c := v*vScale, cur*cScale
		res.X[i], res.Currents[i] = x, c
		if df != nil {
			if err := df.Row1D(x, c); err != nil {
				return nil, err
			}
		}
		s.emit(model.Point{Index: i, X: x, Value: c})
		s.progressStep()
	}
	s.progressDone()

	if rl != nil {
		if err := rl.End(time.Since(started)); err != nil {
			return nil, err
		}
	}
	s.logger().Info("1D sweep complete", "points", len(pts), "elapsed", time.Since(started))

	s.runModel(ctx, opts.Model, &cq.ExecuteRequest{X: res.X, Data: [][]float64{res.Currents}})
	return res, nil
}

// initialVoltages reads the present voltage of every output for the run
// banner. Read failures leave a gate out rather than aborting the sweep.
func (s *Sweeper) initialVoltages(ctx context.Context) []datafile.InitialVoltage {
	if s.Outputs == nil {
		return nil
	}
	var out []datafile.InitialVoltage
	for _, g := range s.Outputs.Gates {
		v, err := g.Voltage(ctx)
		if err != nil {
			s.logger().Warn("reading initial voltage", "gate", g.Label(), "error", err)
			continue
		}
		out = append(out, datafile.InitialVoltage{Label: g.Label(), Volts: v})
	}
	return out
}
