package model

import (
	"fmt"
	"math"
)

// Voltage units accepted for sweep parameters, with their multiplier to
// base volts.
var voltageUnits = map[string]float64{
	"V":  1,
	"mV": 1e-3,
	"uV": 1e-6,
	"nV": 1e-9,
}

// Current units accepted for measurement display, with the scale applied to
// a base-microamp reading.
var currentUnits = map[string]float64{
	"mA": 1e-3,
	"uA": 1,
	"nA": 1e3,
	"pA": 1e6,
}

// ValidVoltageUnit reports whether unit is an accepted voltage unit.
func ValidVoltageUnit(unit string) bool {
	_, ok := voltageUnits[unit]
	return ok
}

// ValidCurrentUnit reports whether unit is an accepted current unit.
func ValidCurrentUnit(unit string) bool {
	_, ok := currentUnits[unit]
	return ok
}

// ToVolts converts a value in the given voltage unit to base volts.
func ToVolts(value float64, unit string) (float64, error) {
	mul, ok := voltageUnits[unit]
	if !ok {
		return 0, fmt.Errorf("invalid voltage unit %q", unit)
	}
	return value * mul, nil
}

// VoltageScale returns the factor that converts base volts into the given
// display unit. Unknown units scale by 1.
func VoltageScale(unit string) float64 {
	switch unit {
	case "mV":
		return 1e3
	case "uV":
		return 1e6
	default:
		return 1
	}
}

// CurrentScale returns the factor that converts a base-microamp current
// reading into the given display unit. Unknown units scale by 1.
func CurrentScale(unit string) float64 {
	if s, ok := currentUnits[unit]; ok {
		return s
	}
	return 1
}

var siPrefixes = map[string]float64{
	"T": 1e12, "G": 1e9, "M": 1e6, "k": 1e3, "": 1,
	"m": 1e-3, "u": 1e-6, "n": 1e-9, "p": 1e-12, "f": 1e-15,
}

var siByExponent = map[int]string{
	-15: "f", -12: "p", -9: "n", -6: "u", -3: "m",
	0: "", 3: "k", 6: "M", 9: "G", 12: "T",
}

// FormatSI renders value+unit with an SI prefix chosen so the mantissa
// falls in [1, 1000), e.g. FormatSI(0.1, "V") == "100.000 [mV]".
// The input unit may itself carry a single-character prefix.
func FormatSI(value float64, unit string) string {
	prefix, base := "", unit
	if len(unit) > 1 {
		if _, ok := siPrefixes[unit[:1]]; ok {
			prefix, base = unit[:1], unit[1:]
		}
	}

	v := value * siPrefixes[prefix]
	if v == 0 {
		return fmt.Sprintf("%7.3f [%s]", 0.0, base)
	}

	exp := int(math.Floor(math.Log10(math.Abs(v))))
	exp3 := (exp / 3) * 3
	if exp < 0 && exp%3 != 0 {
		exp3 -= 3
	}
	if exp3 < -15 {
		exp3 = -15
	}
	if exp3 > 12 {
		exp3 = 12
	}

	return fmt.Sprintf("%7.3f [%s%s]", v/math.Pow(10, float64(exp3)), siByExponent[exp3], base)
}
