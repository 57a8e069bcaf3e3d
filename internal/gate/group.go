package gate

import (
	"context"

	"github.com/condmatlab/gateman/internal/model"
)

// Group steps several gates together: all writes go out first, then the
// group waits for every gate to settle.
type Group struct {
	Gates []*Gate
}

// NewGroup collects gates into a group. A group may be empty.
func NewGroup(gates ...*Gate) *Group {
	return &Group{Gates: gates}
}

// Label joins the line labels of the member gates.
func (gr *Group) Label() string {
	metas := make([]*model.Gate, len(gr.Gates))
	for i, g := range gr.Gates {
		metas[i] = g.meta
	}
	return model.GroupLabel(metas)
}

// Set drives every gate to the same voltage and waits for all to settle.
func (gr *Group) Set(ctx context.Context, volts float64) error {
	if err := gr.SetNoWait(ctx, volts); err != nil {
		return err
	}
	return gr.WaitSettled(ctx, volts)
}

// SetNoWait issues the writes without waiting.
func (gr *Group) SetNoWait(ctx context.Context, volts float64) error {
	for _, g := range gr.Gates {
		if err := g.SetNoWait(ctx, volts); err != nil {
			return err
		}
	}
	return nil
}

// WaitSettled blocks until every gate reads back within tolerance of target.
func (gr *Group) WaitSettled(ctx context.Context, target float64) error {
	for _, g := range gr.Gates {
		if err := g.WaitSettled(ctx, target); err != nil {
			return err
		}
	}
	return nil
}

// TurnOff drives every gate to zero.
func (gr *Group) TurnOff(ctx context.Context) error {
	return gr.Set(ctx, 0)
}
