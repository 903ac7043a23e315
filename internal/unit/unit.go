// Package unit implements ValueWithUnit — a numeric magnitude paired with a
// unit drawn from the simulation engine's closed unit vocabulary — plus the
// parsing and classification helpers the converter and stream keeper build
// on.
//
// Magnitudes use github.com/shopspring/decimal, an arbitrary-precision
// decimal type, so that thousands of chained conversions across a
// multi-decade scenario sweep never accumulate floating-point drift.
// Division results are rounded to 34 digits after the decimal point,
// set once for the package via DivisionPrecision.
package unit

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

func init() {
	// decimal128-equivalent precision for the Div operations the converter
	// performs; Add/Sub/Mul are already exact in shopspring/decimal.
	decimal.DivisionPrecision = 34
}

// Family classifies a base (non-composite) unit by the physical quantity it
// measures. The converter's dispatch table keys off (source family,
// destination family) pairs.
type Family int

const (
	// Unknown marks a unit string that did not parse against the closed
	// vocabulary.
	Unknown Family = iota
	Mass
	Equipment
	Consumption
	Energy
	Time
	Ratio
)

func (f Family) String() string {
	switch f {
	case Mass:
		return "mass"
	case Equipment:
		return "equipment"
	case Consumption:
		return "consumption"
	case Energy:
		return "energy"
	case Time:
		return "time"
	case Ratio:
		return "ratio"
	default:
		return "unknown"
	}
}

// Closed base-unit vocabulary from spec §3.
const (
	Kg      = "kg"
	Mt      = "mt"
	Unit1   = "unit"
	Units   = "units"
	TCO2e   = "tCO2e"
	MtCO2e  = "MtCO2e"
	Kwh     = "kwh"
	Mwh     = "mwh"
	Year    = "year"
	Years   = "years"
	Percent = "%"
)

var baseFamilies = map[string]Family{
	Kg:      Mass,
	Mt:      Mass,
	Unit1:   Equipment,
	Units:   Equipment,
	TCO2e:   Consumption,
	MtCO2e:  Consumption,
	Kwh:     Energy,
	Mwh:     Energy,
	Year:    Time,
	Years:   Time,
	Percent: Ratio,
}

// allowed denominators for composite "X / Y" units, per spec §3.
var allowedDenominators = map[string]bool{
	Unit1: true,
	Kg:    true,
	Mt:    true,
	TCO2e: true,
	Year:  true,
}

// Parsed is the decomposition of a unit string into its numerator and, for
// composite units, its denominator.
type Parsed struct {
	Raw         string
	Numerator   string
	Denominator string // empty for a non-composite unit
}

// IsComposite reports whether the unit has a "X / Y" shape.
func (p Parsed) IsComposite() bool {
	return p.Denominator != ""
}

// NumeratorFamily returns the Family of the numerator base unit.
func (p Parsed) NumeratorFamily() Family {
	return classify(p.Numerator)
}

// DenominatorFamily returns the Family of the denominator, or Unknown if
// this is not a composite unit.
func (p Parsed) DenominatorFamily() Family {
	if p.Denominator == "" {
		return Unknown
	}
	return classify(p.Denominator)
}

func classify(base string) Family {
	if f, ok := baseFamilies[base]; ok {
		return f
	}
	return Unknown
}

// Parse decomposes a unit string from the closed vocabulary. It returns an
// error if the string does not match any recognized base or composite form.
func Parse(raw string) (Parsed, error) {
	trimmed := strings.TrimSpace(raw)
	if idx := strings.Index(trimmed, "/"); idx >= 0 {
		num := strings.TrimSpace(trimmed[:idx])
		denom := strings.TrimSpace(trimmed[idx+1:])
		if _, ok := baseFamilies[num]; !ok {
			return Parsed{}, fmt.Errorf("unit: unrecognized numerator %q in %q", num, raw)
		}
		if !allowedDenominators[denom] {
			return Parsed{}, fmt.Errorf("unit: unrecognized denominator %q in %q", denom, raw)
		}
		return Parsed{Raw: trimmed, Numerator: num, Denominator: denom}, nil
	}

	if _, ok := baseFamilies[trimmed]; !ok {
		return Parsed{}, fmt.Errorf("unit: unrecognized unit %q", raw)
	}
	return Parsed{Raw: trimmed, Numerator: trimmed}, nil
}

// MustParse is like Parse but panics on error; reserved for unit literals
// known at compile time (package-level constants, tests).
func MustParse(raw string) Parsed {
	p, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return p
}

// Composite builds a composite unit string "numerator / denominator".
func Composite(numerator, denominator string) string {
	return fmt.Sprintf("%s / %s", numerator, denominator)
}

// Value is a numeric magnitude paired with a unit — ValueWithUnit in the
// specification.
type Value struct {
	Magnitude decimal.Decimal
	Unit      string
}

// New constructs a Value from a float64 magnitude. Prefer NewFromString for
// values originating in user input, to avoid any binary-float round trip.
func New(magnitude float64, u string) Value {
	return Value{Magnitude: decimal.NewFromFloat(magnitude), Unit: u}
}

// NewFromString constructs a Value by parsing a decimal string exactly.
func NewFromString(magnitude string, u string) (Value, error) {
	d, err := decimal.NewFromString(magnitude)
	if err != nil {
		return Value{}, fmt.Errorf("unit: invalid magnitude %q: %w", magnitude, err)
	}
	return Value{Magnitude: d, Unit: u}, nil
}

// Zero returns a zero-magnitude value in the given unit.
func Zero(u string) Value {
	return Value{Magnitude: decimal.Zero, Unit: u}
}

// IsZero reports whether the magnitude is exactly zero.
func (v Value) IsZero() bool {
	return v.Magnitude.IsZero()
}

// String renders the value as "<magnitude> <unit>", the format the CSV
// result surface expects (spec §6).
func (v Value) String() string {
	return fmt.Sprintf("%s %s", v.Magnitude.String(), v.Unit)
}

// Parsed returns the decomposition of this value's unit.
func (v Value) Parsed() (Parsed, error) {
	return Parse(v.Unit)
}

// WithMagnitude returns a copy of v with a different magnitude, same unit.
func (v Value) WithMagnitude(m decimal.Decimal) Value {
	return Value{Magnitude: m, Unit: v.Unit}
}

// Neg returns the additive inverse of v.
func (v Value) Neg() Value {
	return v.WithMagnitude(v.Magnitude.Neg())
}

// ClampNonNegative returns v with its magnitude floored at zero.
func (v Value) ClampNonNegative() Value {
	if v.Magnitude.IsNegative() {
		return v.WithMagnitude(decimal.Zero)
	}
	return v
}
