// Package recalc implements the RecalcStrategy family: the six idempotent
// recalculation steps that restore mutual consistency across a substance's
// derived streams after any engine verb mutates one of them, composed into
// ordered pipelines.
//
// Strategies never hold a reference to the Engine. Per the cyclic-ownership
// design note, they borrow a Kit — the read-only collaborators (StreamKeeper,
// Converter) a strategy needs — for the duration of a single Execute call.
package recalc

import (
	"github.com/shopspring/decimal"

	"github.com/example/mpsim/internal/convert"
	"github.com/example/mpsim/internal/stream"
	"github.com/example/mpsim/internal/unit"
)

// Kit groups the collaborators a strategy needs without requiring it to
// hold an Engine pointer: the StreamKeeper it reads and writes, and the
// Converter it uses for the rare cross-unit computation a strategy performs
// directly.
type Kit struct {
	Keeper    *stream.Keeper
	Converter *convert.Converter
}

func safeDiv(n, d decimal.Decimal) decimal.Decimal {
	if d.IsZero() {
		return decimal.Zero
	}
	return n.DivRound(d, int32(decimal.DivisionPrecision))
}

// SalesKg returns the current sales total in kg: the sum of manufacture and
// import, plus export when it has ever been enabled — spec §3 invariant 2.
func (k Kit) SalesKg(key stream.Key) decimal.Decimal {
	total := k.Keeper.GetStream(key, stream.Manufacture).Magnitude.
		Add(k.Keeper.GetStream(key, stream.Import).Magnitude)
	if k.Keeper.IsEnabled(key, stream.Export) {
		total = total.Add(k.Keeper.GetStream(key, stream.Export).Magnitude)
	}
	return total
}

// InitialChargeKgPerUnit returns the initial charge to use for new-unit
// placement: the sales-level override if one has been set, else the
// distribution-weighted blend of manufacture and import charges.
func (k Kit) InitialChargeKgPerUnit(key stream.Key) decimal.Decimal {
	if salesCharge := k.Keeper.GetInitialCharge(key, stream.Sales); !salesCharge.Magnitude.IsZero() {
		return salesCharge.Magnitude
	}
	pctManufacture, pctImport, _ := k.Keeper.GetDistribution(key)
	m := k.Keeper.GetInitialCharge(key, stream.Manufacture).Magnitude
	i := k.Keeper.GetInitialCharge(key, stream.Import).Magnitude
	return m.Mul(pctManufacture).Add(i.Mul(pctImport))
}

// RechargeKg returns this year's recharge servicing volume: the recharge
// population rate times prior equipment, times recharge intensity.
func (k Kit) RechargeKg(key stream.Key) decimal.Decimal {
	priorUnits := k.Keeper.GetStream(key, stream.PriorEquipment).Magnitude
	pct := k.Keeper.GetRechargePopulation(key)
	intensity := k.Keeper.GetRechargeIntensity(key).Magnitude
	return priorUnits.Mul(pct).Mul(intensity)
}

// fractionOf reads a rate Value as a unit-interval fraction: a percent
// magnitude (e.g. 50 for "50%") divides by 100, any other unit is taken as
// an already-normalized fraction.
func fractionOf(v unit.Value) decimal.Decimal {
	if v.Unit == unit.Percent {
		return v.Magnitude.Div(decimal.New(100, 0))
	}
	return v.Magnitude
}

// RecoveredKg returns how much material recycling recovers out of this
// year's recharge volume: a percentage of the recharge servicing volume by
// convention, or a direct kg figure if the recovery rate was set in mass
// terms.
func (k Kit) RecoveredKg(key stream.Key) decimal.Decimal {
	rate := k.Keeper.GetRecoveryRate(key)
	if rate.Unit == unit.Mt {
		return rate.Magnitude.Mul(decimal.New(1000, 0))
	}
	if rate.Unit == unit.Kg {
		return rate.Magnitude
	}
	return k.RechargeKg(key).Mul(fractionOf(rate))
}

// RecycledKg returns the yielded recycle output: recovered material times
// the recycling yield rate.
func (k Kit) RecycledKg(key stream.Key) decimal.Decimal {
	recovered := k.RecoveredKg(key)
	yieldRate := k.Keeper.GetYieldRate(key)
	if yieldRate.Unit == unit.Mt {
		return yieldRate.Magnitude.Mul(decimal.New(1000, 0))
	}
	if yieldRate.Unit == unit.Kg {
		return yieldRate.Magnitude
	}
	return recovered.Mul(fractionOf(yieldRate))
}

// DisplacedKg returns how much of the recycled output displaces virgin
// manufacture/import volume.
func (k Kit) DisplacedKg(key stream.Key) decimal.Decimal {
	return k.RecycledKg(key).Mul(k.Keeper.GetDisplacementRate(key))
}

// LiveState builds the ConverterState for key, bound to the keeper's
// current values and the caller-supplied elapsed-years count (the engine
// tracks this as a running counter since incrementYear has no argument).
func (k Kit) LiveState(key stream.Key, yearsElapsed int) convert.State {
	return convert.FuncState{
		PopulationFn:          func() decimal.Decimal { return k.Keeper.GetStream(key, stream.Equipment).Magnitude },
		VolumeFn:              func() decimal.Decimal { return k.Keeper.GetStream(key, stream.Sales).Magnitude },
		GasConsumptionFn:      func() decimal.Decimal { return k.Keeper.GetStream(key, stream.Consumption).Magnitude },
		EnergyConsumptionFn:   func() decimal.Decimal { return k.Keeper.GetStream(key, stream.Energy).Magnitude },
		AmortizedUnitVolumeFn: func() decimal.Decimal { return k.InitialChargeKgPerUnit(key) },
		YearsElapsedFn:        func() decimal.Decimal { return decimal.New(int64(yearsElapsed), 0) },
		PopulationChangeFn:    func() decimal.Decimal { return k.Keeper.GetStream(key, stream.NewEquipment).Magnitude },
	}
}

// Intensities returns the substance's GHG/energy intensities for the
// Converter's mass<->consumption/energy rules.
func (k Kit) Intensities(key stream.Key) convert.Intensities {
	return convert.Intensities{
		Ghg:    k.Keeper.GetGhgIntensity(key).Magnitude,
		Energy: k.Keeper.GetEnergyIntensity(key).Magnitude,
	}
}
