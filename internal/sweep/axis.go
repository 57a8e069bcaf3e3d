package sweep

import "github.com/condmatlab/gateman/internal/model"

// Points expands an axis into the exact voltages a sweep visits. The first
// point is Start, the last is Stop with no rounding drift, interior points
// are linearly interpolated so the sequence is monotonic in either
// direction.
func Points(ax model.Axis) []float64 {
	n := ax.Steps()
	if n == 0 {
		return nil
	}
	pts := make([]float64, n)
	pts[0] = ax.Start
	if n == 1 {
		return pts
	}
	for i := 1; i < n-1; i++ {
		pts[i] = ax.Start + (ax.Stop-ax.Start)*float64(i)/float64(n-1)
	}
	pts[n-1] = ax.Stop
	return pts
}
