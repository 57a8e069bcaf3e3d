package instrument

import (
	"context"
	"fmt"
	"sync"
)

// Transfer computes a simulated signal reading from the instrument's
// current output voltages, keyed by output index.
type Transfer func(outputs map[int]float64) float64

// Sim is an in-memory Instrument. Outputs settle toward their targets over
// a fixed number of reads so the gate settling loop is exercised, and
// arbitrary signal channels can be wired to transfer functions.
type Sim struct {
	mu          sync.Mutex
	settleReads int

	targets  map[int]float64 // output index -> target voltage
	readings map[int]float64 // output index -> last simulated reading
	pending  map[int]int     // output index -> reads left before settled
	wires    map[int]int     // read index -> output index
	signals  map[int]Transfer
}

// NewSim returns a simulator whose outputs settle after settleReads reads
// of their wired signal channel. settleReads <= 0 settles immediately.
func NewSim(settleReads int) *Sim {
	return &Sim{
		settleReads: settleReads,
		targets:     make(map[int]float64),
		readings:    make(map[int]float64),
		pending:     make(map[int]int),
		wires:       make(map[int]int),
		signals:     make(map[int]Transfer),
	}
}

// Wire connects a signal channel to an output so reading readIndex returns
// the (settling) voltage of the output at writeIndex.
func (s *Sim) Wire(writeIndex, readIndex int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.wires[readIndex] = writeIndex
}

// SetTransfer installs a transfer function for a measured-input channel.
func (s *Sim) SetTransfer(readIndex int, fn Transfer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.signals[readIndex] = fn
}

// SetOutput records the new target voltage for an output channel.
func (s *Sim) SetOutput(_ context.Context, index int, volts float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.targets[index] = volts
	s.pending[index] = s.settleReads
	return nil
}

// Output returns the target voltage last written to an output channel.
func (s *Sim) Output(index int) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.targets[index]
}

// ReadSignal returns the simulated value of a signal channel.
func (s *Sim) ReadSignal(_ context.Context, index int) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if fn, ok := s.signals[index]; ok {
		outputs := make(map[int]float64, len(s.targets))
		for k, v := range s.targets {
			outputs[k] = v
		}
		return fn(outputs), nil
	}

	out, ok := s.wires[index]
	if !ok {
		return 0, fmt.Errorf("sim: signal %d not wired", index)
	}

	target := s.targets[out]
	if s.pending[out] <= 0 {
		s.readings[out] = target
		return target, nil
	}

	// Halve the remaining distance per read until the settle budget runs out.
	s.pending[out]--
	if s.pending[out] == 0 {
		s.readings[out] = target
	} else {
		s.readings[out] += (target - s.readings[out]) / 2
	}
	return s.readings[out], nil
}

// Close is a no-op for the simulator.
func (s *Sim) Close() error { return nil }
