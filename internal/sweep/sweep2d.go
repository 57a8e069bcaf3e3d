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

// AxisSpec is one axis of a 2D sweep, in VoltageUnit.
type AxisSpec struct {
	Start float64
	Stop  float64
	Step  float64
}

// Options2D parametrizes a two-dimensional sweep: for every Y value the X
// group runs a full inner sweep.
type Options2D struct {
	XSwept *gate.Group
	YSwept *gate.Group
	X      AxisSpec
	Y      AxisSpec
	Options
}

// Result2D is the recorded map. Data is row-major: Data[j][i] is the
// current at Y[j], X[i], in CurrentUnit.
type Result2D struct {
	DataFile string
	X        []float64
	Y        []float64
	Data     [][]float64
}

// Sweep2D rasters the device: set the Y group, sweep the X group, repeat.
func (s *Sweeper) Sweep2D(ctx context.Context, opts Options2D) (*Result2D, error) {
	opts.normalize()
	if err := cq.ValidateModel(model.Kind2D, opts.Model); err != nil {
		return nil, err
	}
	if err := opts.validateUnits(); err != nil {
		return nil, err
	}
	if opts.XSwept == nil || len(opts.XSwept.Gates) == 0 {
		return nil, fmt.Errorf("no X swept outputs")
	}
	if opts.YSwept == nil || len(opts.YSwept.Gates) == 0 {
		return nil, fmt.Errorf("no Y swept outputs")
	}
	meas, err := s.measuredGate()
	if err != nil {
		return nil, err
	}

	xAxis, err := toAxis(opts.XSwept.Label(), opts.X.Start, opts.X.Stop, opts.X.Step, opts.VoltageUnit)
	if err != nil {
		return nil, fmt.Errorf("X axis: %w", err)
	}
	yAxis, err := toAxis(opts.YSwept.Label(), opts.Y.Start, opts.Y.Stop, opts.Y.Step, opts.VoltageUnit)
	if err != nil {
		return nil, fmt.Errorf("Y axis: %w", err)
	}
	xPts := Points(xAxis)
	yPts := Points(yAxis)

	xLabel := opts.XSwept.Label()
	yLabel := opts.YSwept.Label()
	zLabel := s.Inputs.Label()
	started := time.Now()

	var df *datafile.File
	var rl *datafile.RunLog
	if s.Dir != "" {
		base := datafile.BaseName(model.Kind2D, s.Temperature, zLabel, xLabel, yLabel, opts.Comments, started)
		if df, err = datafile.Create(s.Dir, base); err != nil {
			return nil, err
		}
		defer df.Close()
		if err = df.Header(
			fmt.Sprintf("%s [%s]", yLabel, opts.VoltageUnit),
			fmt.Sprintf("%s [%s]", xLabel, opts.VoltageUnit),
			fmt.Sprintf("%s [%s]", zLabel, opts.CurrentUnit),
		); err != nil {
			return nil, err
		}
		rl = datafile.OpenLog(s.Dir, opts.Comments)
		if err = rl.Start(datafile.StartInfo{
			Kind:     model.Kind2D,
			Filename: df.Name(),
			Device:   s.Device,
			Measured: zLabel,
			X:        datafile.AxisInfo{Label: xLabel, Start: xAxis.Start, Stop: xAxis.Stop, Step: xAxis.Step},
			Y:        &datafile.AxisInfo{Label: yLabel, Start: yAxis.Start, Stop: yAxis.Stop, Step: yAxis.Step},
		}); err != nil {
			return nil, err
		}
	}

	s.logger().Info("starting 2D sweep",
		"x", xLabel, "y", yLabel, "measured", zLabel,
		"x_points", len(xPts), "y_points", len(yPts))

	vScale := model.VoltageScale(opts.VoltageUnit)
	cScale := model.CurrentScale(opts.CurrentUnit)
	res := &Result2D{
		X:    make([]float64, len(xPts)),
		Y:    make([]float64, len(yPts)),
		Data: make([][]float64, len(yPts)),
	}
	for i, v := range xPts {
		res.X[i] = v * vScale
	}
	for j, v := range yPts {
		res.Y[j] = v * vScale
	}
	if df != nil {
		res.DataFile = df.Path()
	}

	s.progressStart(len(yPts)*len(xPts), "Sweeping")
	index := 0
	for j, yv := range yPts {
		// Park X at its start, then move Y. The inner sweep always walks
		// the same direction so rows are comparable.
		if err := opts.XSwept.Set(ctx, xPts[0]); err != nil {
			return nil, err
		}
		if err := opts.YSwept.Set(ctx, yv); err != nil {
			return nil, err
		}
		if err := s.applyInitial(ctx, opts.Initial); err != nil {
			return nil, err
		}

		row := make([]float64, len(xPts))
		for i, xv := range xPts {
			if err := opts.XSwept.Set(ctx, xv); err != nil {
				return nil, err
			}
			cur, err := meas.ReadCurrent(ctx, s.Amplification)
			if err != nil {
				return nil, err
			}
			c := cur * cScale
			row[i] = c
			if df != nil {
				if err := df.Row2D(res.Y[j], res.X[i], c); err != nil {
					return nil, err
				}
			}
			s.emit(model.Point{Index: index, X: res.X[i], Y: res.Y[j], Value: c})
			index++
			s.progressStep()
		}
		res.Data[j] = row
	}
	s.progressDone()

	if rl != nil {
		if err := rl.End(time.Since(started)); err != nil {
			return nil, err
		}
	}
	s.logger().Info("2D sweep complete",
		"points", len(xPts)*len(yPts), "elapsed", time.Since(started))

	s.runModel(ctx, opts.Model, &cq.ExecuteRequest{X: res.X, Y: res.Y, Data: res.Data})
	return res, nil
}
