package datafile

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/condmatlab/gateman/internal/model"
)

func TestBaseName(t *testing.T) {
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	for _, tc := range []struct {
		kind     model.RunKind
		yLabel   string
		comments string
		want     string
	}{
		{model.Kind1D, "", "", "20260314_CT_[drain]_vs_[t_P1]"},
		{model.Kind1D, "", "cooldown2", "20260314_CT_[drain]_vs_[t_P1]_cooldown2"},
		{model.Kind2D, "t_B2", "", "20260314_CT_[drain]_vs_[t_P1]_[t_B2]"},
		{model.KindTime, "", "", "20260314_CT_[drain]_vs_time"},
	} {
		got := BaseName(tc.kind, "CT", "drain", "t_P1", tc.yLabel, tc.comments, now)
		if got != tc.want {
			t.Errorf("BaseName(%s) = %q, want %q", tc.kind, got, tc.want)
		}
	}
}

func TestCreateUniqueSuffix(t *testing.T) {
	dir := t.TempDir()

	f1, err := Create(dir, "sweep")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer f1.Close()
	if f1.Name() != "sweep_run1" {
		t.Errorf("first name = %q, want sweep_run1", f1.Name())
	}

	f2, err := Create(dir, "sweep")
	if err != nil {
		t.Fatalf("Create second: %v", err)
	}
	defer f2.Close()
	if f2.Name() != "sweep_run2" {
		t.Errorf("second name = %q, want sweep_run2", f2.Name())
	}
}

func TestRows(t *testing.T) {
	dir := t.TempDir()
	f, err := Create(dir, "rows")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := f.Header("t_P1 [V]", "drain [uA]"); err != nil {
		t.Fatalf("Header: %v", err)
	}
	if err := f.Row1D(0.1234, 0.00112233); err != nil {
		t.Fatalf("Row1D: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(f.Path())
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("line count = %d: %q", len(lines), string(data))
	}
	if lines[0] != "        t_P1 [V]       drain [uA]" {
		t.Errorf("header = %q", lines[0])
	}
	if lines[1] != "          0.1234       0.00112233" {
		t.Errorf("row = %q", lines[1])
	}
}

func TestRunLogBanners(t *testing.T) {
	dir := t.TempDir()
	l := OpenLog(dir, "")
	info := StartInfo{
		Kind:     model.Kind1D,
		Filename: "20260314_CT_[drain]_vs_[t_P1]_run1",
		Device:   "semiqon12",
		Measured: "drain",
		X:        AxisInfo{Label: "t_P1", Start: 0, Stop: 0.8, Step: 0.01},
		Initial:  []InitialVoltage{{Label: "t_B1", Volts: 0.95}},
	}
	if err := l.Start(info); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := l.End(95 * time.Second); err != nil {
		t.Fatalf("End: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "log.txt"))
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	text := string(data)
	for _, want := range []string{
		"--------/// Run started at ",
		"Filename:        20260314_CT_[drain]_vs_[t_P1]_run1.txt \n",
		"Device:          semiqon12 \n",
		"End Voltage:     800.000 [mV] \n",
		"Initial Voltages of all outputs before sweep: \n",
		"Total Time:      0h 1m 35s \n",
		"--------/// Run ended at ",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("log missing %q in:\n%s", want, text)
		}
	}
}

func TestRunLogCommentsName(t *testing.T) {
	l := OpenLog("/tmp/x", "cooldown2")
	if filepath.Base(l.Path()) != "log_cooldown2.txt" {
		t.Errorf("path = %q", l.Path())
	}
}
