package model

import "strings"

// DefaultMinVoltage and DefaultMaxVoltage are the safe output bounds applied
// to a gate when its config does not narrow them. Semiqon devices tolerate
// ±2.5 V on every terminal.
const (
	DefaultMinVoltage = -2.5
	DefaultMaxVoltage = 2.5
)

// Role distinguishes writable output gates from read-only measurement inputs.
type Role string

const (
	RoleOutput Role = "output"
	RoleInput  Role = "input"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// IsValid checks whether the role is a known value.
func (r Role) IsValid() bool {
	switch r {
	case RoleOutput, RoleInput:
		return true
	}
	return false
}

// Gate describes one controllable or measurable channel on an instrument.
type Gate struct {
	ID         string   `json:"id"`
	Lines      []string `json:"lines"` // device line labels bonded to this gate
	Instrument string   `json:"instrument"`
	Role       Role     `json:"role"`
	ReadIndex  int      `json:"read_index"`
	WriteIndex *int     `json:"write_index,omitempty"` // nil = read-only
	MinVoltage float64  `json:"min_voltage"`
	MaxVoltage float64  `json:"max_voltage"`
}

// Label joins the gate's line labels into its display identifier.
func (g *Gate) Label() string {
	if len(g.Lines) == 0 {
		return g.ID
	}
	return strings.Join(g.Lines, "&")
}

// Writable reports whether the gate has an output channel.
func (g *Gate) Writable() bool {
	return g.WriteIndex != nil
}

// Bounds returns the safe voltage range, falling back to the defaults when
// the config left them zero.
func (g *Gate) Bounds() (min, max float64) {
	min, max = g.MinVoltage, g.MaxVoltage
	if min == 0 && max == 0 {
		min, max = DefaultMinVoltage, DefaultMaxVoltage
	}
	return min, max
}

// GroupLabel joins the line labels of several gates, matching the axis
// labels written to data files.
func GroupLabel(gates []*Gate) string {
	var parts []string
	for _, g := range gates {
		if len(g.Lines) == 0 {
			parts = append(parts, g.ID)
			continue
		}
		parts = append(parts, g.Lines...)
	}
	return strings.Join(parts, " & ")
}
