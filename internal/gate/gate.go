// Package gate layers voltage semantics over the raw instrument channels:
// safety bounds, settle-and-confirm writes, current conversion and grouped
// control of several gates at once.
package gate

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/condmatlab/gateman/internal/instrument"
	"github.com/condmatlab/gateman/internal/model"
)

const (
	// SettleTolerance is how close the read-back voltage must be to the
	// target before a write is considered complete.
	SettleTolerance = 1e-6

	// DefaultAmplification is the transimpedance gain of the inverting
	// current preamplifier, in volts per ampere.
	DefaultAmplification = -1e6

	defaultPoll = 100 * time.Millisecond
)

// RangeError reports a requested voltage outside a gate's safe bounds.
type RangeError struct {
	Gate     string
	Volts    float64
	Min, Max float64
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("gate %s: %g V outside safe range [%g, %g]", e.Gate, e.Volts, e.Min, e.Max)
}

// NotWritableError reports a write to a gate with no output channel.
type NotWritableError struct {
	Gate string
}

func (e *NotWritableError) Error() string {
	return fmt.Sprintf("gate %s: no output channel", e.Gate)
}

// Gate binds a configured channel to the instrument that drives it.
type Gate struct {
	meta *model.Gate
	inst instrument.Instrument
	poll time.Duration
}

// New wraps a configured gate over its instrument connection.
func New(meta *model.Gate, inst instrument.Instrument) *Gate {
	return &Gate{meta: meta, inst: inst, poll: defaultPoll}
}

// Meta returns the gate's configuration record.
func (g *Gate) Meta() *model.Gate { return g.meta }

// Label returns the gate's display identifier.
func (g *Gate) Label() string { return g.meta.Label() }

// Set writes a target voltage and blocks until the read-back voltage is
// within SettleTolerance of it.
func (g *Gate) Set(ctx context.Context, volts float64) error {
	if err := g.SetNoWait(ctx, volts); err != nil {
		return err
	}
	return g.WaitSettled(ctx, volts)
}

// SetNoWait writes a target voltage without waiting for it to settle. Used
// when several gates step together and settling is checked afterwards.
func (g *Gate) SetNoWait(ctx context.Context, volts float64) error {
	if !g.meta.Writable() {
		return &NotWritableError{Gate: g.Label()}
	}
	min, max := g.meta.Bounds()
	if volts < min || volts > max {
		return &RangeError{Gate: g.Label(), Volts: volts, Min: min, Max: max}
	}
	if err := g.inst.SetOutput(ctx, *g.meta.WriteIndex, volts); err != nil {
		return fmt.Errorf("set %s to %g V: %w", g.Label(), volts, err)
	}
	return nil
}

// Voltage reads the gate's present voltage from its signal channel.
func (g *Gate) Voltage(ctx context.Context) (float64, error) {
	v, err := g.inst.ReadSignal(ctx, g.meta.ReadIndex)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", g.Label(), err)
	}
	return v, nil
}

// WaitSettled polls the gate until its voltage is within SettleTolerance of
// target, or the context ends.
func (g *Gate) WaitSettled(ctx context.Context, target float64) error {
	for {
		v, err := g.Voltage(ctx)
		if err != nil {
			return err
		}
		if math.Abs(v-target) < SettleTolerance {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("settle %s at %g V: %w", g.Label(), target, ctx.Err())
		case <-time.After(g.poll):
		}
	}
}

// ReadCurrent reads the gate's signal channel and converts the amplifier
// output voltage to a current in microamps. amplification is the preamp
// gain in V/A; zero means DefaultAmplification.
func (g *Gate) ReadCurrent(ctx context.Context, amplification float64) (float64, error) {
	if amplification == 0 {
		amplification = DefaultAmplification
	}
	v, err := g.inst.ReadSignal(ctx, g.meta.ReadIndex)
	if err != nil {
		return 0, fmt.Errorf("read current on %s: %w", g.Label(), err)
	}
	return v * 1e6 / amplification, nil
}

// TurnOff ramps the gate to zero and waits for it to settle.
func (g *Gate) TurnOff(ctx context.Context) error {
	return g.Set(ctx, 0)
}
