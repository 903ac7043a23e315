package engine

import (
	"github.com/shopspring/decimal"

	"github.com/example/mpsim/internal/engineerr"
	"github.com/example/mpsim/internal/unit"
)

// baseRatio gives each closed-vocabulary unit's magnitude relative to its
// family's canonical unit, mirroring the converter's own ratio table. This
// is duplicated rather than imported because it is a fixed property of the
// unit vocabulary (spec §3), not an ambient quantity — normalizing an
// intensity is a pure unit-rescaling, never a state-dependent conversion.
var baseRatio = map[string]decimal.Decimal{
	unit.Kg:     decimal.New(1, 0),
	unit.Mt:     decimal.New(1000, 0),
	unit.Unit1:  decimal.New(1, 0),
	unit.Units:  decimal.New(1, 0),
	unit.TCO2e:  decimal.New(1, 0),
	unit.MtCO2e: decimal.New(1000000, 0),
	unit.Kwh:    decimal.New(1, 0),
	unit.Mwh:    decimal.New(1000, 0),
}

func ratioOf(u string) decimal.Decimal {
	if r, ok := baseRatio[u]; ok {
		return r
	}
	return decimal.New(1, 0)
}

// normalizeIntensity rescales a composite "X / Y" value so its denominator
// reads targetDenom, keeping the represented rate unchanged — e.g. "10
// tCO2e / mt" normalizes to "0.01 tCO2e / kg" when targetDenom is "kg". The
// numerator is rescaled to its family's base unit as well (kg, tCO2e or
// kwh), so "1 MtCO2e / kg" normalizes to "1000000 tCO2e / kg". The
// StreamKeeper always stores intensities and per-unit rates against a fixed
// canonical denominator so executeConsumption and friends can multiply
// against a kg/unit magnitude directly without re-deriving units on every
// recalculation (the same normalize-at-write-time discipline
// internal/stream applies to plain stream values).
func normalizeIntensity(v unit.Value, targetDenom string) (unit.Value, error) {
	parsed, err := unit.Parse(v.Unit)
	if err != nil {
		return unit.Value{}, engineerr.Wrap(engineerr.UnsupportedConversion, err, "intensity unit %q", v.Unit)
	}
	if !parsed.IsComposite() {
		return unit.Value{}, engineerr.New(engineerr.IncompatibleUnits,
			"intensity value %q must be a composite unit", v.Unit)
	}
	numerator := parsed.Numerator
	switch parsed.NumeratorFamily() {
	case unit.Mass:
		numerator = unit.Kg
	case unit.Consumption:
		numerator = unit.TCO2e
	case unit.Energy:
		numerator = unit.Kwh
	}
	if parsed.Denominator == targetDenom && parsed.Numerator == numerator {
		return v, nil
	}

	perBaseDenom := v.Magnitude.Mul(ratioOf(parsed.Numerator)).DivRound(ratioOf(parsed.Denominator), int32(decimal.DivisionPrecision))
	rescaled := perBaseDenom.Mul(ratioOf(targetDenom))
	return unit.Value{Magnitude: rescaled, Unit: unit.Composite(numerator, targetDenom)}, nil
}
