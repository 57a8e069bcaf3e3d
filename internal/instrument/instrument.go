// Package instrument defines the adapter interface between gates and the
// control hardware, plus an in-memory simulator used for tests and dry runs.
package instrument

import "context"

// Instrument is the minimal surface a control backend must provide. Both
// calls block until the hardware acknowledges; errors from the transport
// propagate unchanged.
type Instrument interface {
	// SetOutput writes a voltage to the given user-output channel.
	SetOutput(ctx context.Context, index int, volts float64) error
	// ReadSignal reads the current value of the given signal channel.
	ReadSignal(ctx context.Context, index int) (float64, error)
	// Close releases the underlying connection.
	Close() error
}
