package gate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/condmatlab/gateman/internal/instrument"
	"github.com/condmatlab/gateman/internal/model"
)

func intPtr(i int) *int { return &i }

func simGate(t *testing.T, sim *instrument.Sim, id string, write, read int) *Gate {
	t.Helper()
	sim.Wire(write, read)
	g := New(&model.Gate{
		ID:         id,
		Lines:      []string{id},
		Role:       model.RoleOutput,
		ReadIndex:  read,
		WriteIndex: intPtr(write),
	}, sim)
	g.poll = time.Millisecond
	return g
}

func TestSetAndSettle(t *testing.T) {
	sim := instrument.NewSim(3)
	g := simGate(t, sim, "t_P1", 0, 20)

	if err := g.Set(context.Background(), 0.4); err != nil {
		t.Fatalf("Set: %v", err)
	}
	v, err := g.Voltage(context.Background())
	if err != nil {
		t.Fatalf("Voltage: %v", err)
	}
	if v != 0.4 {
		t.Errorf("voltage after settle = %v, want 0.4", v)
	}
}

func TestSetOutOfRange(t *testing.T) {
	sim := instrument.NewSim(0)
	g := simGate(t, sim, "t_P1", 0, 20)

	err := g.Set(context.Background(), 3.0)
	var re *RangeError
	if !errors.As(err, &re) {
		t.Fatalf("error = %v, want RangeError", err)
	}
	if re.Volts != 3.0 || re.Max != model.DefaultMaxVoltage {
		t.Errorf("unexpected fields: %+v", re)
	}
}

func TestSetReadOnly(t *testing.T) {
	sim := instrument.NewSim(0)
	g := New(&model.Gate{ID: "drain", Role: model.RoleInput, ReadIndex: 24}, sim)

	err := g.Set(context.Background(), 0.1)
	var nw *NotWritableError
	if !errors.As(err, &nw) {
		t.Fatalf("error = %v, want NotWritableError", err)
	}
}

func TestSettleTimeout(t *testing.T) {
	// A huge settle budget keeps the sim from ever reaching the target
	// inside the deadline.
	sim := instrument.NewSim(1 << 30)
	g := simGate(t, sim, "t_P1", 0, 20)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := g.Set(ctx, 1.0); err == nil {
		t.Fatal("expected settle timeout")
	}
}

func TestReadCurrent(t *testing.T) {
	sim := instrument.NewSim(0)
	sim.SetTransfer(24, func(map[int]float64) float64 { return -1.0 })
	g := New(&model.Gate{ID: "drain", Role: model.RoleInput, ReadIndex: 24}, sim)

	// -1 V through a -1e6 V/A preamp is 1 uA.
	i, err := g.ReadCurrent(context.Background(), 0)
	if err != nil {
		t.Fatalf("ReadCurrent: %v", err)
	}
	if i != 1.0 {
		t.Errorf("current = %v uA, want 1", i)
	}

	i, err = g.ReadCurrent(context.Background(), 1e6)
	if err != nil {
		t.Fatalf("ReadCurrent: %v", err)
	}
	if i != -1.0 {
		t.Errorf("current = %v uA, want -1", i)
	}
}

func TestTurnOff(t *testing.T) {
	sim := instrument.NewSim(0)
	g := simGate(t, sim, "t_P1", 0, 20)

	if err := g.Set(context.Background(), 1.2); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := g.TurnOff(context.Background()); err != nil {
		t.Fatalf("TurnOff: %v", err)
	}
	if v := sim.Output(0); v != 0 {
		t.Errorf("output after TurnOff = %v, want 0", v)
	}
}

func TestGroupSet(t *testing.T) {
	sim := instrument.NewSim(2)
	a := simGate(t, sim, "t_P1", 0, 20)
	b := simGate(t, sim, "t_P2", 1, 21)
	gr := NewGroup(a, b)

	if gr.Label() != "t_P1 & t_P2" {
		t.Errorf("Label() = %q", gr.Label())
	}
	if err := gr.Set(context.Background(), 0.25); err != nil {
		t.Fatalf("group Set: %v", err)
	}
	for i, g := range gr.Gates {
		v, err := g.Voltage(context.Background())
		if err != nil {
			t.Fatalf("Voltage: %v", err)
		}
		if v != 0.25 {
			t.Errorf("gate %d voltage = %v, want 0.25", i, v)
		}
	}

	if err := gr.TurnOff(context.Background()); err != nil {
		t.Fatalf("group TurnOff: %v", err)
	}
	if sim.Output(0) != 0 || sim.Output(1) != 0 {
		t.Error("outputs not zeroed")
	}
}

func TestGroupSetStopsOnRangeError(t *testing.T) {
	sim := instrument.NewSim(0)
	a := simGate(t, sim, "t_P1", 0, 20)
	b := simGate(t, sim, "t_P2", 1, 21)
	b.meta.MinVoltage, b.meta.MaxVoltage = -0.5, 0.5
	gr := NewGroup(a, b)

	if err := gr.Set(context.Background(), 1.0); err == nil {
		t.Fatal("expected range error from second gate")
	}
}
