// Package engine implements Engine: the simulation object that owns the
// year cursor, the current scope, and the command verb table (spec §4.4).
package engine

import (
	"github.com/shopspring/decimal"

	"github.com/example/mpsim/internal/convert"
	"github.com/example/mpsim/internal/engineerr"
	"github.com/example/mpsim/internal/recalc"
	"github.com/example/mpsim/internal/scope"
	"github.com/example/mpsim/internal/stream"
	"github.com/example/mpsim/internal/unit"
)

// Engine is the public simulation object. It is single-threaded and
// synchronous (spec §5): no operation suspends and no callback re-enters
// the engine. Two independent Engine instances share no mutable state and
// may safely run on separate goroutines.
type Engine struct {
	year         int
	yearsElapsed int

	scope     *scope.Scope
	keeper    *stream.Keeper
	converter *convert.Converter
}

// New constructs a fresh Engine with an empty scope and StreamKeeper,
// starting at startYear.
func New(startYear int) *Engine {
	return &Engine{
		year:      startYear,
		scope:     scope.NewRoot(),
		keeper:    stream.NewKeeper(),
		converter: convert.New(),
	}
}

// Year returns the engine's current year cursor.
func (e *Engine) Year() int { return e.year }

// Keeper exposes the underlying StreamKeeper for read-only inspection by a
// ResultSerializer or Runner.
func (e *Engine) Keeper() *stream.Keeper { return e.keeper }

func (e *Engine) kit() recalc.Kit {
	return recalc.Kit{Keeper: e.keeper, Converter: e.converter}
}

// Apply is the command interface's single entry point (spec §6): it
// dispatches cmd to the matching verb. Every fallible verb either commits
// fully or leaves the engine exactly as it was beforehand (spec §7).
func (e *Engine) Apply(cmd Command) error {
	switch cmd.Verb {
	case VerbSetStanza:
		e.scope.SetStanza(cmd.Name)
		return nil
	case VerbSetApplication:
		e.scope.SetApplication(cmd.Name)
		return nil
	case VerbSetSubstance:
		e.scope.SetSubstance(cmd.Name)
		return nil
	case VerbIncrementYear:
		return e.incrementYear()
	case VerbSetStream:
		return e.guarded(cmd, e.setStream)
	case VerbChangeStream:
		return e.guarded(cmd, e.changeStream)
	case VerbCap:
		return e.guarded(cmd, e.cap)
	case VerbFloor:
		return e.guarded(cmd, e.floor)
	case VerbReplace:
		return e.guarded(cmd, e.replace)
	case VerbRecharge:
		return e.guarded(cmd, e.recharge)
	case VerbRecycle:
		return e.guarded(cmd, e.recycle)
	case VerbRetire:
		return e.guarded(cmd, e.retire)
	case VerbEquals:
		return e.guarded(cmd, e.equals)
	case VerbSetInitialCharge:
		return e.guarded(cmd, e.setInitialCharge)
	default:
		return engineerr.New(engineerr.UnknownStream, "unrecognized verb %v", cmd.Verb)
	}
}

// guarded checks cmd's YearMatcher against the current year before
// dispatching to fn; out-of-range verbs are no-ops, per spec §4.4.
func (e *Engine) guarded(cmd Command, fn func(Command) error) error {
	if !cmd.Range.Matches(e.year) {
		return nil
	}
	return fn(cmd)
}

// withSnapshot runs fn against key's current state, restoring the
// pre-call snapshot if fn returns an error — the snapshot-swap policy of
// spec §7.
func (e *Engine) withSnapshot(key stream.Key, fn func() error) error {
	snapshot := e.keeper.Snapshot(key)
	if err := fn(); err != nil {
		e.keeper.RestoreSnapshot(key, snapshot)
		return err
	}
	return nil
}

// convertToNatural converts value to name's natural unit using the live
// ambient state for key.
func (e *Engine) convertToNatural(key stream.Key, name stream.Name, value unit.Value) (decimal.Decimal, error) {
	target := name.NaturalUnit()
	if value.Unit == target {
		return value.Magnitude, nil
	}
	kit := e.kit()
	converted, err := e.converter.Convert(value, target, kit.LiveState(key, e.yearsElapsed), kit.Intensities(key))
	if err != nil {
		return decimal.Zero, err
	}
	return converted.Magnitude, nil
}

// salesAffectingPipeline is the recalculation sequence a write to
// manufacture, import, export, or sales triggers: population growth from
// the new sales volume, a sales redistribution honoring recycling
// displacement, and the three derived-emissions propagations.
func salesAffectingPipeline(preserveUnitIntent bool) recalc.Pipeline {
	b := recalc.NewBuilder()
	_ = b.Add(recalc.Strategy{Kind: recalc.KindPopulationChange, SubtractRecharge: true})
	_ = b.Add(recalc.Strategy{Kind: recalc.KindSales, PreserveUnitIntentOnImplicitRecharge: preserveUnitIntent})
	_ = b.Add(recalc.Strategy{Kind: recalc.KindConsumption})
	_ = b.Add(recalc.Strategy{Kind: recalc.KindRechargeEmissions})
	_ = b.Add(recalc.Strategy{Kind: recalc.KindEolEmissions})
	return b.Build()
}

// consumptionOnlyPipeline re-derives consumption/energy without touching
// population — used after a write to a stream that does not itself feed
// new-unit placement.
func consumptionOnlyPipeline() recalc.Pipeline {
	b := recalc.NewBuilder()
	_ = b.Add(recalc.Strategy{Kind: recalc.KindConsumption})
	return b.Build()
}

func isSalesAffecting(name stream.Name) bool {
	switch name {
	case stream.Manufacture, stream.Import, stream.Export, stream.Sales:
		return true
	default:
		return false
	}
}

// setStream implements the setStream verb: write value to the named
// stream in the current scope, then recalculate downstream.
func (e *Engine) setStream(cmd Command) error {
	if !stream.Valid(cmd.Stream) {
		return engineerr.New(engineerr.UnknownStream, "unrecognized stream %q", cmd.Stream)
	}
	key, err := e.scope.Key()
	if err != nil {
		return err
	}

	return e.withSnapshot(key, func() error {
		magnitude, err := e.convertToNatural(key, cmd.Stream, cmd.Value)
		if err != nil {
			return err
		}

		if cmd.Stream == stream.Sales {
			e.distributeSales(key, magnitude, cmd.Value.Unit)
		} else {
			e.keeper.SetStream(key, cmd.Stream, unit.Value{Magnitude: magnitude, Unit: cmd.Stream.NaturalUnit()})
			e.keeper.SetLastSpecifiedUnit(key, cmd.Stream, cmd.Value.Unit)
		}

		if isSalesAffecting(cmd.Stream) {
			preserveIntent := e.keeper.HasEquipmentUnits(key, cmd.Stream)
			return salesAffectingPipeline(preserveIntent).Run(e.kit(), key, e.yearsElapsed)
		}
		return consumptionOnlyPipeline().Run(e.kit(), key, e.yearsElapsed)
	})
}

// distributeSales implements spec §3 invariant 2's write side: a write to
// the virtual "sales" stream distributes proportionally across
// manufacture/import/export per the current distribution rule. originalUnit
// propagates the caller's unit intent (e.g. a unit-denominated sales write)
// onto manufacture so a later SalesRecalc can still tell it was
// equipment-specified.
func (e *Engine) distributeSales(key stream.Key, totalKg decimal.Decimal, originalUnit string) {
	pctManufacture, pctImport, pctExport := e.keeper.GetDistribution(key)
	e.keeper.SetStream(key, stream.Manufacture, unit.Value{Magnitude: totalKg.Mul(pctManufacture), Unit: unit.Kg})
	e.keeper.SetLastSpecifiedUnit(key, stream.Manufacture, originalUnit)
	e.keeper.SetStream(key, stream.Import, unit.Value{Magnitude: totalKg.Mul(pctImport), Unit: unit.Kg})
	e.keeper.SetLastSpecifiedUnit(key, stream.Import, originalUnit)
	if e.keeper.IsEnabled(key, stream.Export) {
		e.keeper.SetStream(key, stream.Export, unit.Value{Magnitude: totalKg.Mul(pctExport), Unit: unit.Kg})
		e.keeper.SetLastSpecifiedUnit(key, stream.Export, originalUnit)
	}
}

// changeStream implements the changeStream verb: delta is additive, or (if
// expressed in a ratio unit) proportional to the stream's current value.
func (e *Engine) changeStream(cmd Command) error {
	if !stream.Valid(cmd.Stream) {
		return engineerr.New(engineerr.UnknownStream, "unrecognized stream %q", cmd.Stream)
	}
	key, err := e.scope.Key()
	if err != nil {
		return err
	}

	return e.withSnapshot(key, func() error {
		current := e.keeper.GetStream(key, cmd.Stream)

		parsed, err := unit.Parse(cmd.Value.Unit)
		if err != nil {
			return engineerr.Wrap(engineerr.UnsupportedConversion, err, "changeStream delta unit %q", cmd.Value.Unit)
		}

		var newMagnitude decimal.Decimal
		if parsed.Numerator == unit.Percent {
			fraction := cmd.Value.Magnitude.Div(decimal.New(100, 0))
			newMagnitude = current.Magnitude.Add(current.Magnitude.Mul(fraction))
		} else {
			delta, err := e.convertToNatural(key, cmd.Stream, cmd.Value)
			if err != nil {
				return err
			}
			newMagnitude = current.Magnitude.Add(delta)
		}

		e.keeper.SetStream(key, cmd.Stream, unit.Value{Magnitude: newMagnitude, Unit: cmd.Stream.NaturalUnit()})

		if isSalesAffecting(cmd.Stream) {
			return salesAffectingPipeline(false).Run(e.kit(), key, e.yearsElapsed)
		}
		return consumptionOnlyPipeline().Run(e.kit(), key, e.yearsElapsed)
	})
}

// cap implements the cap verb: if the current value exceeds limit, reduce
// to limit and route the excess to the displacement target.
func (e *Engine) cap(cmd Command) error {
	return e.capOrFloor(cmd, true)
}

// floor implements the floor verb: symmetric to cap, routing a shortfall
// from the displacement target.
func (e *Engine) floor(cmd Command) error {
	return e.capOrFloor(cmd, false)
}

func (e *Engine) capOrFloor(cmd Command, isCap bool) error {
	if !stream.Valid(cmd.Stream) {
		return engineerr.New(engineerr.UnknownStream, "unrecognized stream %q", cmd.Stream)
	}
	key, err := e.scope.Key()
	if err != nil {
		return err
	}

	return e.withSnapshot(key, func() error {
		limit, err := e.convertToNatural(key, cmd.Stream, cmd.Value)
		if err != nil {
			return err
		}
		current := e.keeper.GetStream(key, cmd.Stream).Magnitude

		var excess decimal.Decimal
		var newValue decimal.Decimal
		if isCap {
			if current.LessThanOrEqual(limit) {
				return nil
			}
			excess = current.Sub(limit)
			newValue = limit
		} else {
			if current.GreaterThanOrEqual(limit) {
				return nil
			}
			excess = current.Sub(limit) // negative: the shortfall
			newValue = limit
		}

		e.keeper.SetStream(key, cmd.Stream, unit.Value{Magnitude: newValue, Unit: cmd.Stream.NaturalUnit()})

		if cmd.Displace != nil {
			if err := e.applyDisplacement(key, *cmd.Displace, excess); err != nil {
				return err
			}
		}

		if isSalesAffecting(cmd.Stream) {
			target := e.kit().SalesKg(key)
			b := recalc.NewBuilder()
			_ = b.Add(recalc.Strategy{Kind: recalc.KindPopulationChange, SubtractRecharge: true})
			_ = b.Add(recalc.Strategy{Kind: recalc.KindSales, SalesTargetKg: &target})
			_ = b.Add(recalc.Strategy{Kind: recalc.KindConsumption})
			_ = b.Add(recalc.Strategy{Kind: recalc.KindRechargeEmissions})
			_ = b.Add(recalc.Strategy{Kind: recalc.KindEolEmissions})
			return b.Build().Run(e.kit(), key, e.yearsElapsed)
		}
		return consumptionOnlyPipeline().Run(e.kit(), key, e.yearsElapsed)
	})
}

// applyDisplacement adds amount, as the source stream's natural-unit
// magnitude, either to a sibling stream of the same substance or to the
// manufacture stream of another substance. The amount is added as is: no
// initial-charge conversion is applied, whatever unit the source stream or
// the cap/floor limit was written in.
func (e *Engine) applyDisplacement(sourceKey stream.Key, d Displacement, amount decimal.Decimal) error {
	if d.Substance != "" {
		targetKey := stream.Key{Application: sourceKey.Application, Substance: d.Substance}
		current := e.keeper.GetStream(targetKey, stream.Manufacture).Magnitude
		e.keeper.SetStream(targetKey, stream.Manufacture, unit.Value{Magnitude: current.Add(amount), Unit: unit.Kg})
		preserveIntent := e.keeper.HasEquipmentUnits(targetKey, stream.Manufacture)
		return salesAffectingPipeline(preserveIntent).Run(e.kit(), targetKey, e.yearsElapsed)
	}
	if d.Stream != "" {
		current := e.keeper.GetStream(sourceKey, d.Stream).Magnitude
		e.keeper.SetStream(sourceKey, d.Stream, unit.Value{Magnitude: current.Add(amount), Unit: d.Stream.NaturalUnit()})
	}
	return nil
}

// replace implements the replace verb: transfer amount from this
// substance's stream to the same stream of otherSubstance, converting via
// units when amount is equipment-denominated.
func (e *Engine) replace(cmd Command) error {
	if !stream.Valid(cmd.Stream) {
		return engineerr.New(engineerr.UnknownStream, "unrecognized stream %q", cmd.Stream)
	}
	sourceKey, err := e.scope.Key()
	if err != nil {
		return err
	}
	targetKey := stream.Key{Application: sourceKey.Application, Substance: cmd.OtherSubstance}

	return e.withSnapshot(sourceKey, func() error {
		amountKg, err := e.convertToNatural(sourceKey, cmd.Stream, cmd.Value)
		if err != nil {
			return err
		}

		sourceCurrent := e.keeper.GetStream(sourceKey, cmd.Stream).Magnitude
		e.keeper.SetStream(sourceKey, cmd.Stream, unit.Value{Magnitude: sourceCurrent.Sub(amountKg), Unit: cmd.Stream.NaturalUnit()})

		targetCurrent := e.keeper.GetStream(targetKey, cmd.Stream).Magnitude
		e.keeper.SetStream(targetKey, cmd.Stream, unit.Value{Magnitude: targetCurrent.Add(amountKg), Unit: cmd.Stream.NaturalUnit()})

		if isSalesAffecting(cmd.Stream) {
			if err := salesAffectingPipeline(false).Run(e.kit(), sourceKey, e.yearsElapsed); err != nil {
				return err
			}
			return salesAffectingPipeline(false).Run(e.kit(), targetKey, e.yearsElapsed)
		}
		return consumptionOnlyPipeline().Run(e.kit(), sourceKey, e.yearsElapsed)
	})
}

// recharge implements the recharge verb: set per-year recharge parameters.
func (e *Engine) recharge(cmd Command) error {
	key, err := e.scope.Key()
	if err != nil {
		return err
	}
	return e.withSnapshot(key, func() error {
		e.keeper.SetRechargePopulation(key, cmd.RechargeRatePct)
		normalized, err := normalizeIntensity(cmd.RechargeIntensity, unit.Unit1)
		if err != nil {
			return err
		}
		e.keeper.SetRechargeIntensity(key, normalized)
		return recalc.Pipeline{
			{Kind: recalc.KindRechargeEmissions},
		}.Run(e.kit(), key, e.yearsElapsed)
	})
}

// recycle implements the recycle verb: set recycling parameters.
func (e *Engine) recycle(cmd Command) error {
	key, err := e.scope.Key()
	if err != nil {
		return err
	}
	return e.withSnapshot(key, func() error {
		e.keeper.SetRecoveryRate(key, cmd.RecoveryRate)
		e.keeper.SetYieldRate(key, cmd.YieldRate)
		e.keeper.SetDisplacementRate(key, cmd.DisplacementPct)
		return recalc.Pipeline{
			{Kind: recalc.KindSales, NetRecyclingDisplacement: true},
			{Kind: recalc.KindConsumption},
		}.Run(e.kit(), key, e.yearsElapsed)
	})
}

// retire implements the retire verb: set the retirement rate and trigger
// the retire recalculation.
func (e *Engine) retire(cmd Command) error {
	key, err := e.scope.Key()
	if err != nil {
		return err
	}
	return e.withSnapshot(key, func() error {
		e.keeper.SetRetirementRate(key, cmd.RetirementRatePct)
		return recalc.Pipeline{
			{Kind: recalc.KindRetire},
			{Kind: recalc.KindPopulationChange, SubtractRecharge: true},
			{Kind: recalc.KindSales, NetRecyclingDisplacement: true},
			{Kind: recalc.KindConsumption},
		}.Run(e.kit(), key, e.yearsElapsed)
	})
}

// equals implements the equals verb: set GHG intensity (tCO2e/kg) or energy
// intensity (kwh/kg); the value's unit discriminates which.
func (e *Engine) equals(cmd Command) error {
	key, err := e.scope.Key()
	if err != nil {
		return err
	}
	return e.withSnapshot(key, func() error {
		parsed, err := unit.Parse(cmd.EqualsIntensity.Unit)
		if err != nil {
			return engineerr.Wrap(engineerr.UnsupportedConversion, err, "equals intensity unit %q", cmd.EqualsIntensity.Unit)
		}
		if !parsed.IsComposite() {
			return engineerr.New(engineerr.IncompatibleUnits, "equals requires a composite intensity unit, got %q", cmd.EqualsIntensity.Unit)
		}
		switch {
		case parsed.NumeratorFamily() == unit.Consumption && parsed.DenominatorFamily() == unit.Mass:
			normalized, err := normalizeIntensity(cmd.EqualsIntensity, unit.Kg)
			if err != nil {
				return err
			}
			e.keeper.SetGhgIntensity(key, normalized)
		case parsed.NumeratorFamily() == unit.Energy && parsed.DenominatorFamily() == unit.Mass:
			normalized, err := normalizeIntensity(cmd.EqualsIntensity, unit.Kg)
			if err != nil {
				return err
			}
			e.keeper.SetEnergyIntensity(key, normalized)
		default:
			return engineerr.New(engineerr.IncompatibleUnits, "equals does not recognize intensity unit %q", cmd.EqualsIntensity.Unit)
		}
		return consumptionOnlyPipeline().Run(e.kit(), key, e.yearsElapsed)
	})
}

// setInitialCharge implements the setInitialCharge verb: record per-stream
// initial charge for manufacture, import, or sales.
func (e *Engine) setInitialCharge(cmd Command) error {
	if !stream.Valid(cmd.Stream) {
		return engineerr.New(engineerr.UnknownStream, "unrecognized stream %q", cmd.Stream)
	}
	key, err := e.scope.Key()
	if err != nil {
		return err
	}
	return e.withSnapshot(key, func() error {
		normalized, err := normalizeIntensity(cmd.Value, unit.Unit1)
		if err != nil {
			return err
		}
		e.keeper.SetInitialCharge(key, cmd.Stream, normalized)
		return salesAffectingPipeline(false).Run(e.kit(), key, e.yearsElapsed)
	})
}

// incrementYear implements the incrementYear verb: advance the year
// cursor, snapshot equipment into priorEquipment across every registered
// key, and clear per-year accumulators. It is the only operation that
// changes the year cursor (spec §8 universal property 5).
func (e *Engine) incrementYear() error {
	e.keeper.AdvanceAllYears()
	e.year++
	e.yearsElapsed++
	return nil
}
