package convert

import (
	"github.com/shopspring/decimal"

	"github.com/example/mpsim/internal/engineerr"
	"github.com/example/mpsim/internal/unit"
)

// Intensities carries the two substance-level conversion parameters that
// are not part of ConverterState (population/volume/etc. are ambient to a
// (stanza, application, substance) scope; GHG and energy intensity are
// per-substance parameters the StreamKeeper owns). A zero Intensities value
// conflates to a zero-result conversion rather than a divide error, per the
// converter's div-by-zero-is-not-an-error rule.
type Intensities struct {
	// Ghg is the substance's GHG intensity, tCO2e per kg.
	Ghg decimal.Decimal
	// Energy is the substance's energy intensity, kwh per kg.
	Energy decimal.Decimal
}

// ratioTable gives each closed-vocabulary unit's magnitude relative to its
// family's canonical unit (kg, unit, tCO2e, kwh, year, %). E.g. ratio(mt) ==
// 1000 because 1 mt equals 1000 kg.
var ratioTable = map[string]decimal.Decimal{
	unit.Kg:      decimal.New(1, 0),
	unit.Mt:      decimal.New(1000, 0),
	unit.Unit1:   decimal.New(1, 0),
	unit.Units:   decimal.New(1, 0),
	unit.TCO2e:   decimal.New(1, 0),
	unit.MtCO2e:  decimal.New(1000000, 0),
	unit.Kwh:     decimal.New(1, 0),
	unit.Mwh:     decimal.New(1000, 0),
	unit.Year:    decimal.New(1, 0),
	unit.Years:   decimal.New(1, 0),
	unit.Percent: decimal.New(1, 0),
}

func ratio(u string) decimal.Decimal {
	if r, ok := ratioTable[u]; ok {
		return r
	}
	return decimal.New(1, 0)
}

// safeDiv divides n by d, returning zero instead of propagating a
// divide-by-zero: per spec §7, an ambient quantity of zero (no population,
// no volume) yields a zero conversion result, not an error.
func safeDiv(n, d decimal.Decimal) decimal.Decimal {
	if d.IsZero() {
		return decimal.Zero
	}
	return n.DivRound(d, int32(decimal.DivisionPrecision))
}

// ambientInUnit returns the live ambient quantity for family f, expressed in
// unit u (converting from the family's canonical unit via ratio).
func ambientInUnit(state State, f unit.Family, u string) decimal.Decimal {
	var canonical decimal.Decimal
	switch f {
	case unit.Equipment:
		canonical = state.Population()
	case unit.Mass:
		canonical = state.Volume()
	case unit.Consumption:
		canonical = state.GasConsumption()
	case unit.Energy:
		canonical = state.EnergyConsumption()
	case unit.Time:
		canonical = state.YearsElapsed()
	default:
		return decimal.Zero
	}
	return safeDiv(canonical, ratio(u))
}

// Converter is the UnitConverter described in spec §4.1: a closed dispatch
// table over (source family, destination family) pairs, drawing ambient
// quantities from a State and substance parameters from Intensities.
type Converter struct{}

// New constructs a Converter. It is a zero-size dispatcher; all the state it
// draws on is passed explicitly to Convert so that a single Converter value
// can serve every engine instance without becoming shared mutable state.
func New() *Converter {
	return &Converter{}
}

// Convert converts v to destUnit, drawing ambient quantities from state and
// substance intensities from it. It returns engineerr.ErrUnsupportedConversion
// if no dispatch rule covers the (source, destination) pair.
func (c *Converter) Convert(v unit.Value, destUnit string, state State, it Intensities) (unit.Value, error) {
	srcP, err := unit.Parse(v.Unit)
	if err != nil {
		return unit.Value{}, engineerr.Wrap(engineerr.UnsupportedConversion, err, "source unit %q", v.Unit)
	}
	destP, err := unit.Parse(destUnit)
	if err != nil {
		return unit.Value{}, engineerr.Wrap(engineerr.UnsupportedConversion, err, "destination unit %q", destUnit)
	}
	if srcP.Raw == destP.Raw {
		return v, nil
	}

	switch {
	case !srcP.IsComposite() && !destP.IsComposite():
		return c.convertSimple(v, srcP, destP, state, it)
	case srcP.IsComposite() && !destP.IsComposite():
		return c.convertCompositeToSimple(v, srcP, destP, state)
	case !srcP.IsComposite() && destP.IsComposite():
		return c.convertSimpleToComposite(v, srcP, destP, state)
	default:
		return unit.Value{}, engineerr.New(engineerr.UnsupportedConversion,
			"composite-to-composite conversion %q -> %q is not supported", v.Unit, destUnit)
	}
}

func (c *Converter) convertSimple(v unit.Value, srcP, destP unit.Parsed, state State, it Intensities) (unit.Value, error) {
	srcFam, destFam := srcP.NumeratorFamily(), destP.NumeratorFamily()

	if srcFam == destFam {
		canonical := v.Magnitude.Mul(ratio(srcP.Numerator))
		result := safeDiv(canonical, ratio(destP.Numerator))
		return unit.Value{Magnitude: result, Unit: destP.Raw}, nil
	}

	switch {
	case srcFam == unit.Equipment && destFam == unit.Mass:
		kg := v.Magnitude.Mul(state.AmortizedUnitVolume())
		result := safeDiv(kg, ratio(destP.Numerator))
		return unit.Value{Magnitude: result, Unit: destP.Raw}, nil

	case srcFam == unit.Mass && destFam == unit.Equipment:
		kg := v.Magnitude.Mul(ratio(srcP.Numerator))
		unitsVal := safeDiv(kg, state.AmortizedUnitVolume())
		result := safeDiv(unitsVal, ratio(destP.Numerator))
		return unit.Value{Magnitude: result, Unit: destP.Raw}, nil

	case srcFam == unit.Mass && destFam == unit.Consumption:
		kg := v.Magnitude.Mul(ratio(srcP.Numerator))
		tco2e := kg.Mul(it.Ghg)
		result := safeDiv(tco2e, ratio(destP.Numerator))
		return unit.Value{Magnitude: result, Unit: destP.Raw}, nil

	case srcFam == unit.Consumption && destFam == unit.Mass:
		tco2e := v.Magnitude.Mul(ratio(srcP.Numerator))
		kg := safeDiv(tco2e, it.Ghg)
		result := safeDiv(kg, ratio(destP.Numerator))
		return unit.Value{Magnitude: result, Unit: destP.Raw}, nil

	case srcFam == unit.Mass && destFam == unit.Energy:
		kg := v.Magnitude.Mul(ratio(srcP.Numerator))
		kwh := kg.Mul(it.Energy)
		result := safeDiv(kwh, ratio(destP.Numerator))
		return unit.Value{Magnitude: result, Unit: destP.Raw}, nil

	case srcFam == unit.Energy && destFam == unit.Mass:
		kwh := v.Magnitude.Mul(ratio(srcP.Numerator))
		kg := safeDiv(kwh, it.Energy)
		result := safeDiv(kg, ratio(destP.Numerator))
		return unit.Value{Magnitude: result, Unit: destP.Raw}, nil

	case srcFam == unit.Ratio:
		ambient := ambientInUnit(state, destFam, destP.Numerator)
		fraction := safeDiv(v.Magnitude, decimal.New(100, 0))
		return unit.Value{Magnitude: fraction.Mul(ambient), Unit: destP.Raw}, nil

	case destFam == unit.Time:
		var ambient decimal.Decimal
		switch srcFam {
		case unit.Mass:
			ambient = state.Volume()
		case unit.Equipment:
			ambient = state.PopulationChange()
		case unit.Consumption:
			ambient = state.GasConsumption()
		default:
			return unit.Value{}, engineerr.New(engineerr.UnsupportedConversion,
				"%q -> %q: no ambient divisor for family %s", v.Unit, destUnitRaw(destP), srcFam)
		}
		canonical := v.Magnitude.Mul(ratio(srcP.Numerator))
		years := safeDiv(canonical, ambient)
		result := safeDiv(years, ratio(destP.Numerator))
		return unit.Value{Magnitude: result, Unit: destP.Raw}, nil

	default:
		return unit.Value{}, engineerr.New(engineerr.UnsupportedConversion,
			"%q -> %q: no conversion rule between families %s and %s", v.Unit, destUnitRaw(destP), srcFam, destFam)
	}
}

func destUnitRaw(p unit.Parsed) string { return p.Raw }

// convertCompositeToSimple collapses a rate (e.g. "kg / year") into an
// absolute quantity by multiplying by the ambient quantity that corresponds
// to the denominator, then converting the numerator unit to destP.
func (c *Converter) convertCompositeToSimple(v unit.Value, srcP, destP unit.Parsed, state State) (unit.Value, error) {
	numFam := srcP.NumeratorFamily()
	if numFam != destP.NumeratorFamily() {
		return unit.Value{}, engineerr.New(engineerr.UnsupportedConversion,
			"%q -> %q: numerator family mismatch", v.Unit, destP.Raw)
	}
	denomFam := srcP.DenominatorFamily()
	ambient := ambientInUnit(state, denomFam, srcP.Denominator)

	canonicalNum := v.Magnitude.Mul(ratio(srcP.Numerator))
	absolute := canonicalNum.Mul(ambient)

	result := safeDiv(absolute, ratio(destP.Numerator))
	return unit.Value{Magnitude: result, Unit: destP.Raw}, nil
}

// convertSimpleToComposite normalizes an absolute quantity into a rate (e.g.
// "kg" -> "kg / unit") by converting to the composite's numerator unit and
// dividing by the ambient quantity for the denominator.
func (c *Converter) convertSimpleToComposite(v unit.Value, srcP, destP unit.Parsed, state State) (unit.Value, error) {
	srcFam := srcP.NumeratorFamily()
	if srcFam != destP.NumeratorFamily() {
		return unit.Value{}, engineerr.New(engineerr.UnsupportedConversion,
			"%q -> %q: numerator family mismatch", v.Unit, destP.Raw)
	}
	canonical := v.Magnitude.Mul(ratio(srcP.Numerator))
	numInDest := safeDiv(canonical, ratio(destP.Numerator))

	denomFam := destP.DenominatorFamily()
	ambient := ambientInUnit(state, denomFam, destP.Denominator)

	result := safeDiv(numInDest, ambient)
	return unit.Value{Magnitude: result, Unit: destP.Raw}, nil
}
