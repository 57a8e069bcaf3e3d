package datafile

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/condmatlab/gateman/internal/model"
)

// RunLog is the append-only experiment log, one per working directory
// (log.txt, or log_<comments>.txt when the run carries comments).
type RunLog struct {
	path string
}

// OpenLog returns the run log for dir.
func OpenLog(dir, comments string) *RunLog {
	name := "log"
	if comments != "" {
		name += "_" + comments
	}
	return &RunLog{path: filepath.Join(dir, name+".txt")}
}

// Path returns the log file location.
func (l *RunLog) Path() string { return l.path }

// AxisInfo is one swept axis of a run banner, in volts.
type AxisInfo struct {
	Label string
	Start float64
	Stop  float64
	Step  float64
}

// InitialVoltage is one output gate's voltage before the sweep starts.
type InitialVoltage struct {
	Label string
	Volts float64
}

// StartInfo collects everything the run-start banner records.
type StartInfo struct {
	Kind      model.RunKind
	Filename  string // data file stem
	Device    string
	Measured  string
	X         AxisInfo
	Y         *AxisInfo // 2D runs only
	TotalTime float64   // time runs only, seconds
	TimeStep  float64
	Initial   []InitialVoltage
}

// Start appends the run-start banner.
func (l *RunLog) Start(info StartInfo) error {
	f, err := os.OpenFile(l.path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("opening run log: %w", err)
	}
	defer f.Close()

	fmt.Fprintf(f, "--------/// Run started at %s ///--------\n", time.Now().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(f, "%-16s %s.txt \n", "Filename:", info.Filename)
	fmt.Fprintf(f, "%-16s %s \n", "Device:", info.Device)
	fmt.Fprintf(f, "%-16s %s \n", "Measured Input:", info.Measured)
	fmt.Fprintln(f)

	if info.Kind != model.KindTime {
		fmt.Fprintf(f, "%-16s %s \n", "X Swept Gates:", info.X.Label)
		fmt.Fprintf(f, "%-16s %s \n", "Start Voltage:", model.FormatSI(info.X.Start, "V"))
		fmt.Fprintf(f, "%-16s %s \n", "End Voltage:", model.FormatSI(info.X.Stop, "V"))
		fmt.Fprintf(f, "%-16s %s \n", "Step Size:", model.FormatSI(info.X.Step, "V"))
		fmt.Fprintln(f)
	}
	if info.Y != nil {
		fmt.Fprintf(f, "%-16s %s \n", "Y Swept Gates:", info.Y.Label)
		fmt.Fprintf(f, "%-16s %s \n", "Start Voltage:", model.FormatSI(info.Y.Start, "V"))
		fmt.Fprintf(f, "%-16s %s \n", "End Voltage:", model.FormatSI(info.Y.Stop, "V"))
		fmt.Fprintf(f, "%-16s %s \n", "Step Size:", model.FormatSI(info.Y.Step, "V"))
		fmt.Fprintln(f)
	}
	if info.Kind == model.KindTime {
		fmt.Fprintf(f, "%-16s %16.2f [s] \n", "Total Time:", info.TotalTime)
		fmt.Fprintf(f, "%-16s %16.2f [s] \n", "Time Step:", info.TimeStep)
		fmt.Fprintln(f)
	}
	if len(info.Initial) > 0 {
		fmt.Fprintln(f, "Initial Voltages of all outputs before sweep: ")
		for _, iv := range info.Initial {
			fmt.Fprintf(f, "%-55s %s \n", iv.Label, model.FormatSI(iv.Volts, "V"))
		}
		fmt.Fprintln(f)
	}
	return nil
}

// End appends the run-end banner with the elapsed wall time.
func (l *RunLog) End(elapsed time.Duration) error {
	f, err := os.OpenFile(l.path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("opening run log: %w", err)
	}
	defer f.Close()

	secs := int(elapsed.Seconds())
	fmt.Fprintf(f, "%-16s %dh %dm %ds \n", "Total Time:", secs/3600, (secs%3600)/60, secs%60)
	fmt.Fprintf(f, "--------/// Run ended at %s ///--------\n", time.Now().Format("2006-01-02 15:04:05"))
	fmt.Fprintln(f)
	return nil
}
