package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/condmatlab/gateman/internal/model"
)

// Device is the parsed device layout file: which instrument to dial and
// which gates exist on it.
//
//	device = "SQ0394"
//	temperature = "CT"
//	amplification = -1e6
//
//	[instrument]
//	driver = "nanonis"
//	address = "127.0.0.1:6501"
//
//	[[gate]]
//	id = "t_P1"
//	lines = ["t_P1"]
//	role = "output"
//	read_index = 20
//	write_index = 0
type Device struct {
	Device        string  `toml:"device"`
	Temperature   string  `toml:"temperature"`
	Amplification float64 `toml:"amplification"` // V/A; 0 = default preamp gain

	Instrument InstrumentConfig `toml:"instrument"`
	Gates      []GateConfig     `toml:"gate"`
}

// InstrumentConfig selects and addresses the instrument driver.
type InstrumentConfig struct {
	Driver  string `toml:"driver"`  // "nanonis" or "sim"
	Address string `toml:"address"` // host:port, nanonis only
}

// GateConfig is one [[gate]] entry.
type GateConfig struct {
	ID         string   `toml:"id"`
	Lines      []string `toml:"lines"`
	Role       string   `toml:"role"`
	ReadIndex  int      `toml:"read_index"`
	WriteIndex *int     `toml:"write_index"` // nil = read-only
	MinVoltage float64  `toml:"min_voltage"`
	MaxVoltage float64  `toml:"max_voltage"`
}

// LoadDevice reads and validates a device layout file.
func LoadDevice(path string) (*Device, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading device file: %w", err)
	}
	var d Device
	if err := toml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := d.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &d, nil
}

func (d *Device) validate() error {
	if d.Device == "" {
		return fmt.Errorf("device name is required")
	}
	switch d.Instrument.Driver {
	case "nanonis":
		if d.Instrument.Address == "" {
			return fmt.Errorf("instrument.address is required for the nanonis driver")
		}
	case "sim":
	case "":
		return fmt.Errorf("instrument.driver is required")
	default:
		return fmt.Errorf("unknown instrument driver %q", d.Instrument.Driver)
	}
	if len(d.Gates) == 0 {
		return fmt.Errorf("at least one gate is required")
	}

	seen := make(map[string]bool, len(d.Gates))
	for _, g := range d.Gates {
		if g.ID == "" {
			return fmt.Errorf("gate with empty id")
		}
		if seen[g.ID] {
			return fmt.Errorf("duplicate gate id %q", g.ID)
		}
		seen[g.ID] = true
		role := model.Role(g.Role)
		if !role.IsValid() {
			return fmt.Errorf("gate %s: invalid role %q", g.ID, g.Role)
		}
		if role == model.RoleOutput && g.WriteIndex == nil {
			return fmt.Errorf("gate %s: output gates need a write_index", g.ID)
		}
		if g.MinVoltage > g.MaxVoltage {
			return fmt.Errorf("gate %s: min_voltage above max_voltage", g.ID)
		}
	}
	return nil
}

// ModelGates converts the layout entries into gate records, in file order.
func (d *Device) ModelGates() []*model.Gate {
	gates := make([]*model.Gate, 0, len(d.Gates))
	for _, g := range d.Gates {
		gates = append(gates, &model.Gate{
			ID:         g.ID,
			Lines:      g.Lines,
			Instrument: d.Instrument.Driver,
			Role:       model.Role(g.Role),
			ReadIndex:  g.ReadIndex,
			WriteIndex: g.WriteIndex,
			MinVoltage: g.MinVoltage,
			MaxVoltage: g.MaxVoltage,
		})
	}
	return gates
}
