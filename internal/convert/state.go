// Package convert implements the UnitConverter and ConverterState
// collaborators described in the simulation engine specification: dimensional
// conversion between the closed unit vocabulary, drawing ambient quantities
// (population, volume, GHG consumption, etc.) from a pluggable state source.
package convert

import "github.com/shopspring/decimal"

// State is the read-only ambient quantity source a Converter draws on. It
// has two implementations in this package: a live state backed by getter
// closures (FuncState) and a scoped override decorator (Overriding).
//
// All seven accessors return magnitudes expressed in the family's canonical
// unit: kg for mass, unit for equipment, tCO2e for consumption, kwh for
// energy, and year for time-denominated quantities.
type State interface {
	Population() decimal.Decimal
	Volume() decimal.Decimal
	GasConsumption() decimal.Decimal
	EnergyConsumption() decimal.Decimal
	AmortizedUnitVolume() decimal.Decimal
	YearsElapsed() decimal.Decimal
	PopulationChange() decimal.Decimal
}

// FuncState adapts a set of getter closures into a State. The Engine
// constructs one of these bound to its live StreamKeeper so that the
// converter never needs to import the engine or stream packages.
type FuncState struct {
	PopulationFn           func() decimal.Decimal
	VolumeFn               func() decimal.Decimal
	GasConsumptionFn       func() decimal.Decimal
	EnergyConsumptionFn    func() decimal.Decimal
	AmortizedUnitVolumeFn  func() decimal.Decimal
	YearsElapsedFn         func() decimal.Decimal
	PopulationChangeFn     func() decimal.Decimal
}

func zeroIfNil(fn func() decimal.Decimal) decimal.Decimal {
	if fn == nil {
		return decimal.Zero
	}
	return fn()
}

func (s FuncState) Population() decimal.Decimal          { return zeroIfNil(s.PopulationFn) }
func (s FuncState) Volume() decimal.Decimal              { return zeroIfNil(s.VolumeFn) }
func (s FuncState) GasConsumption() decimal.Decimal       { return zeroIfNil(s.GasConsumptionFn) }
func (s FuncState) EnergyConsumption() decimal.Decimal    { return zeroIfNil(s.EnergyConsumptionFn) }
func (s FuncState) AmortizedUnitVolume() decimal.Decimal  { return zeroIfNil(s.AmortizedUnitVolumeFn) }
func (s FuncState) YearsElapsed() decimal.Decimal         { return zeroIfNil(s.YearsElapsedFn) }
func (s FuncState) PopulationChange() decimal.Decimal     { return zeroIfNil(s.PopulationChangeFn) }

// attr identifies one of the seven overridable ambient attributes.
type attr int

const (
	attrPopulation attr = iota
	attrVolume
	attrGasConsumption
	attrEnergyConsumption
	attrAmortizedUnitVolume
	attrYearsElapsed
	attrPopulationChange
)

// Overriding is the OverridingConverterState decorator from spec §4.2: it
// wraps a base State and lets a caller push a single temporary value per
// attribute (the typical use is substituting prior-equipment for population
// while computing recharge, then clearing it). There is no stack — setting
// an attribute twice simply replaces the previous override, and Clear always
// restores pass-through to the base state.
type Overriding struct {
	base      State
	overrides map[attr]decimal.Decimal
}

// NewOverriding wraps base in an Overriding state with no overrides set.
func NewOverriding(base State) *Overriding {
	return &Overriding{base: base, overrides: make(map[attr]decimal.Decimal)}
}

func (o *Overriding) get(a attr, fallback func() decimal.Decimal) decimal.Decimal {
	if v, ok := o.overrides[a]; ok {
		return v
	}
	return fallback()
}

func (o *Overriding) Population() decimal.Decimal         { return o.get(attrPopulation, o.base.Population) }
func (o *Overriding) Volume() decimal.Decimal              { return o.get(attrVolume, o.base.Volume) }
func (o *Overriding) GasConsumption() decimal.Decimal       { return o.get(attrGasConsumption, o.base.GasConsumption) }
func (o *Overriding) EnergyConsumption() decimal.Decimal    { return o.get(attrEnergyConsumption, o.base.EnergyConsumption) }
func (o *Overriding) AmortizedUnitVolume() decimal.Decimal  { return o.get(attrAmortizedUnitVolume, o.base.AmortizedUnitVolume) }
func (o *Overriding) YearsElapsed() decimal.Decimal         { return o.get(attrYearsElapsed, o.base.YearsElapsed) }
func (o *Overriding) PopulationChange() decimal.Decimal     { return o.get(attrPopulationChange, o.base.PopulationChange) }

// SetPopulation overrides the population attribute until cleared.
func (o *Overriding) SetPopulation(v decimal.Decimal) { o.overrides[attrPopulation] = v }

// SetVolume overrides the volume attribute until cleared.
func (o *Overriding) SetVolume(v decimal.Decimal) { o.overrides[attrVolume] = v }

// SetGasConsumption overrides the GHG consumption attribute until cleared.
func (o *Overriding) SetGasConsumption(v decimal.Decimal) { o.overrides[attrGasConsumption] = v }

// SetEnergyConsumption overrides the energy consumption attribute until cleared.
func (o *Overriding) SetEnergyConsumption(v decimal.Decimal) { o.overrides[attrEnergyConsumption] = v }

// SetAmortizedUnitVolume overrides the amortized unit volume attribute until cleared.
func (o *Overriding) SetAmortizedUnitVolume(v decimal.Decimal) { o.overrides[attrAmortizedUnitVolume] = v }

// SetYearsElapsed overrides the elapsed-years attribute until cleared.
func (o *Overriding) SetYearsElapsed(v decimal.Decimal) { o.overrides[attrYearsElapsed] = v }

// SetPopulationChange overrides the population-change attribute until cleared.
func (o *Overriding) SetPopulationChange(v decimal.Decimal) { o.overrides[attrPopulationChange] = v }

// ClearPopulation removes any population override, restoring pass-through.
func (o *Overriding) ClearPopulation() { delete(o.overrides, attrPopulation) }

// ClearVolume removes any volume override.
func (o *Overriding) ClearVolume() { delete(o.overrides, attrVolume) }

// ClearGasConsumption removes any GHG consumption override.
func (o *Overriding) ClearGasConsumption() { delete(o.overrides, attrGasConsumption) }

// ClearEnergyConsumption removes any energy consumption override.
func (o *Overriding) ClearEnergyConsumption() { delete(o.overrides, attrEnergyConsumption) }

// ClearAmortizedUnitVolume removes any amortized unit volume override.
func (o *Overriding) ClearAmortizedUnitVolume() { delete(o.overrides, attrAmortizedUnitVolume) }

// ClearYearsElapsed removes any elapsed-years override.
func (o *Overriding) ClearYearsElapsed() { delete(o.overrides, attrYearsElapsed) }

// ClearPopulationChange removes any population-change override.
func (o *Overriding) ClearPopulationChange() { delete(o.overrides, attrPopulationChange) }

// ClearAll removes every override at once.
func (o *Overriding) ClearAll() { o.overrides = make(map[attr]decimal.Decimal) }
