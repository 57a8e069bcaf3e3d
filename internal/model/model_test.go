package model

import "testing"

func TestGateLabel(t *testing.T) {
	g := &Gate{ID: "g1", Lines: []string{"t_P1", "b_P1"}}
	if got := g.Label(); got != "t_P1&b_P1" {
		t.Errorf("Label() = %q, want %q", got, "t_P1&b_P1")
	}
	g = &Gate{ID: "bare"}
	if got := g.Label(); got != "bare" {
		t.Errorf("Label() = %q, want %q", got, "bare")
	}
}

func TestGroupLabel(t *testing.T) {
	gates := []*Gate{
		{ID: "a", Lines: []string{"t_P1"}},
		{ID: "b", Lines: []string{"t_P2", "t_P3"}},
	}
	if got := GroupLabel(gates); got != "t_P1 & t_P2 & t_P3" {
		t.Errorf("GroupLabel() = %q", got)
	}
}

func TestGateBounds(t *testing.T) {
	g := &Gate{}
	min, max := g.Bounds()
	if min != DefaultMinVoltage || max != DefaultMaxVoltage {
		t.Errorf("default bounds = (%v, %v)", min, max)
	}
	g = &Gate{MinVoltage: -1, MaxVoltage: 1}
	if min, max = g.Bounds(); min != -1 || max != 1 {
		t.Errorf("explicit bounds = (%v, %v)", min, max)
	}
}

func TestAxisSteps(t *testing.T) {
	for _, tc := range []struct {
		axis Axis
		want int
	}{
		{Axis{Start: 0, Stop: 1, Step: 0.1}, 11},
		{Axis{Start: 1, Stop: -1, Step: 0.01}, 201},
		{Axis{Start: 0, Stop: 0.1, Step: 0.1}, 2},
		{Axis{Start: 0, Stop: 1, Step: 0}, 0},
	} {
		if got := tc.axis.Steps(); got != tc.want {
			t.Errorf("Steps(%+v) = %d, want %d", tc.axis, got, tc.want)
		}
	}
}

func TestKindAndStateValidity(t *testing.T) {
	for _, k := range []RunKind{Kind1D, Kind2D, KindTime} {
		if !k.IsValid() {
			t.Errorf("%q should be valid", k)
		}
	}
	if RunKind("3d").IsValid() {
		t.Error("3d should be invalid")
	}
	for _, s := range []RunState{RunRunning, RunCompleted, RunFailed} {
		if !s.IsValid() {
			t.Errorf("%q should be valid", s)
		}
	}
	if RunState("paused").IsValid() {
		t.Error("paused should be invalid")
	}
}

func TestToVolts(t *testing.T) {
	v, err := ToVolts(100, "mV")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 0.1 {
		t.Errorf("ToVolts(100, mV) = %v, want 0.1", v)
	}
	if _, err := ToVolts(1, "kV"); err == nil {
		t.Error("expected error for kV")
	}
}

func TestScales(t *testing.T) {
	if VoltageScale("mV") != 1e3 {
		t.Error("mV scale")
	}
	if VoltageScale("V") != 1 {
		t.Error("V scale")
	}
	if CurrentScale("nA") != 1e3 {
		t.Error("nA scale")
	}
	if CurrentScale("uA") != 1 {
		t.Error("uA scale")
	}
}

func TestFormatSI(t *testing.T) {
	for _, tc := range []struct {
		value float64
		unit  string
		want  string
	}{
		{0.1, "V", "100.000 [mV]"},
		{0, "V", "  0.000 [V]"},
		{1.5, "V", "  1.500 [V]"},
		{2500, "mV", "  2.500 [V]"},
		{0.000002, "A", "  2.000 [uA]"},
	} {
		if got := FormatSI(tc.value, tc.unit); got != tc.want {
			t.Errorf("FormatSI(%v, %q) = %q, want %q", tc.value, tc.unit, got, tc.want)
		}
	}
}
