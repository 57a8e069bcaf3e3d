// Package nanonis implements the instrument adapter for the Nanonis SPM
// controller's TCP command interface. Only the command subset gateman
// drives is implemented: UserOut.ValSet, Signals.ValGet and Signals.ValsGet.
package nanonis

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/condmatlab/gateman/internal/instrument"
)

// DefaultPort is the first command port the Nanonis software listens on.
const DefaultPort = 6501

// Client talks to one Nanonis controller. Commands are serialized: the
// protocol is strictly request/response on a single connection.
type Client struct {
	mu   sync.Mutex
	conn net.Conn
}

// Compile-time check that Client implements instrument.Instrument.
var _ instrument.Instrument = (*Client)(nil)

// Dial connects to the Nanonis command port at addr (host:port).
func Dial(ctx context.Context, addr string) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial nanonis at %s: %w", addr, err)
	}
	return &Client{conn: conn}, nil
}

// Close closes the TCP connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// call sends one framed command and reads its reply, honoring the context
// deadline via the socket deadline.
func (c *Client) call(ctx context.Context, f *frame) (*response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	deadline := time.Time{}
	if d, ok := ctx.Deadline(); ok {
		deadline = d
	}
	if err := c.conn.SetDeadline(deadline); err != nil {
		return nil, fmt.Errorf("set deadline: %w", err)
	}

	if _, err := c.conn.Write(f.encode()); err != nil {
		return nil, fmt.Errorf("send %s: %w", f.command, err)
	}
	resp, err := readResponse(c.conn)
	if err != nil {
		return nil, fmt.Errorf("recv %s: %w", f.command, err)
	}
	if resp.command != f.command {
		return nil, fmt.Errorf("recv %s: got reply for %q", f.command, resp.command)
	}
	return resp, nil
}

// SetOutput writes a voltage to a user-output channel (UserOut.ValSet).
func (c *Client) SetOutput(ctx context.Context, index int, volts float64) error {
	f := newFrame("UserOut.ValSet")
	f.appendInt32(int32(index))
	f.appendFloat32(float32(volts))

	resp, err := c.call(ctx, f)
	if err != nil {
		return err
	}
	return resp.checkError()
}

// ReadSignal reads the newest value of a signal channel (Signals.ValGet).
func (c *Client) ReadSignal(ctx context.Context, index int) (float64, error) {
	f := newFrame("Signals.ValGet")
	f.appendInt32(int32(index))
	f.appendUint32(1) // wait for the newest value

	resp, err := c.call(ctx, f)
	if err != nil {
		return 0, err
	}
	v, err := resp.float32()
	if err != nil {
		return 0, err
	}
	if err := resp.checkError(); err != nil {
		return 0, err
	}
	return float64(v), nil
}

// ReadSignals reads several signal channels in one round trip
// (Signals.ValsGet). Values are returned in the order of indexes.
func (c *Client) ReadSignals(ctx context.Context, indexes []int) ([]float64, error) {
	f := newFrame("Signals.ValsGet")
	f.appendInt32(int32(len(indexes)))
	for _, idx := range indexes {
		f.appendInt32(int32(idx))
	}
	f.appendUint32(1)

	resp, err := c.call(ctx, f)
	if err != nil {
		return nil, err
	}
	n, err := resp.int32()
	if err != nil {
		return nil, err
	}
	if int(n) != len(indexes) {
		return nil, fmt.Errorf("Signals.ValsGet: asked for %d values, got %d", len(indexes), n)
	}
	values := make([]float64, n)
	for i := range values {
		v, err := resp.float32()
		if err != nil {
			return nil, err
		}
		values[i] = float64(v)
	}
	if err := resp.checkError(); err != nil {
		return nil, err
	}
	return values, nil
}
