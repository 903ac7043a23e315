package recalc

import (
	"github.com/shopspring/decimal"

	"github.com/example/mpsim/internal/stream"
	"github.com/example/mpsim/internal/unit"
)

// Kind is the closed, six-variant set of recalculation steps. Per the
// design note against deep inheritance, RecalcStrategy is modeled as a
// single Strategy type carrying a Kind tag plus whatever per-call
// parameters that variant needs, dispatched through one Execute method.
type Kind int

const (
	KindConsumption Kind = iota
	KindPopulationChange
	KindSales
	KindRechargeEmissions
	KindEolEmissions
	KindRetire
)

func (k Kind) String() string {
	switch k {
	case KindConsumption:
		return "ConsumptionRecalc"
	case KindPopulationChange:
		return "PopulationChangeRecalc"
	case KindSales:
		return "SalesRecalc"
	case KindRechargeEmissions:
		return "RechargeEmissionsRecalc"
	case KindEolEmissions:
		return "EolEmissionsRecalc"
	case KindRetire:
		return "RetireRecalc"
	default:
		return "unknown"
	}
}

// role classifies whether a Kind is suitable as a pipeline's first
// ("initial") step or only as a follow-on ("propagate") step. The pipeline
// Builder uses this to enforce at most one initial strategy per pipeline.
type role int

const (
	roleInitial role = iota
	rolePropagate
)

// Only PopulationChangeRecalc and RetireRecalc originate a pipeline: they
// are the strategies a verb's own business logic triggers directly from a
// changed input. SalesRecalc, ConsumptionRecalc, RechargeEmissionsRecalc,
// and EolEmissionsRecalc are always followups that propagate the resulting
// state to the remaining derived streams.
var kindRole = map[Kind]role{
	KindConsumption:       rolePropagate,
	KindPopulationChange:  roleInitial,
	KindSales:             rolePropagate,
	KindRechargeEmissions: rolePropagate,
	KindEolEmissions:      rolePropagate,
	KindRetire:            roleInitial,
}

// Strategy is one configured RecalcStrategy step. Only the fields relevant
// to its Kind are read; the zero value of the rest is harmless.
type Strategy struct {
	Kind Kind

	// SubtractRecharge configures PopulationChangeRecalc: when true, new
	// units are computed from sales volume net of this year's recharge
	// demand; when false, recharge is tracked implicitly instead (spec
	// §4.5) and new units are computed from the full sales volume.
	SubtractRecharge bool

	// PreserveUnitIntentOnImplicitRecharge configures SalesRecalc — the
	// spec's flagged Open Question. See DESIGN.md for the default
	// rationale; set explicitly per call rather than relying on the
	// zero-value default where compatibility with an existing pipeline
	// matters.
	PreserveUnitIntentOnImplicitRecharge bool

	// SalesTargetKg optionally overrides the sales total SalesRecalc
	// redistributes across manufacture/import/export — used by cap and
	// floor, which compute a new total before asking SalesRecalc to
	// re-split it. A nil value means "use the current sum", i.e. just
	// rebalance the existing total against the current distribution.
	// An explicit target always nets out recycling displacement, since
	// it represents a freshly derived total rather than a literal write.
	SalesTargetKg *decimal.Decimal

	// NetRecyclingDisplacement configures SalesRecalc for the nil-target
	// case: when true, the current sales sum is treated as undisplaced
	// demand and recycling's displaced volume is netted out before
	// redistributing. Set this for the population-driven recalcs that
	// follow a retire or recycle configuration change, where manufacture
	// and import are being re-derived rather than pinned. Leave it false
	// for the pipeline that follows a direct write to manufacture,
	// import, export, or sales (spec §8 scenario (c)): that write is the
	// literal value the caller asked for, and recycling displaces only
	// volume that would otherwise be newly manufactured to meet derived
	// demand, not a pinned figure.
	NetRecyclingDisplacement bool
}

// Execute runs this strategy against key, using kit's collaborators and
// yearsElapsed as the ambient elapsed-years value. Recalculations are
// idempotent: running the same Strategy twice on unchanged inputs leaves
// the keeper in the same state.
func (s Strategy) Execute(kit Kit, key stream.Key, yearsElapsed int) error {
	switch s.Kind {
	case KindConsumption:
		return s.executeConsumption(kit, key)
	case KindPopulationChange:
		return s.executePopulationChange(kit, key)
	case KindSales:
		return s.executeSales(kit, key)
	case KindRechargeEmissions:
		return s.executeRechargeEmissions(kit, key)
	case KindEolEmissions:
		return s.executeEolEmissions(kit, key)
	case KindRetire:
		return s.executeRetire(kit, key)
	default:
		return nil
	}
}

func (s Strategy) executeConsumption(kit Kit, key stream.Key) error {
	salesKg := kit.SalesKg(key)
	ghg := kit.Keeper.GetGhgIntensity(key).Magnitude
	energy := kit.Keeper.GetEnergyIntensity(key).Magnitude

	kit.Keeper.SetStream(key, stream.Consumption, unit.Value{Magnitude: salesKg.Mul(ghg), Unit: unit.TCO2e})
	kit.Keeper.SetStream(key, stream.Energy, unit.Value{Magnitude: salesKg.Mul(energy), Unit: unit.Kwh})
	return nil
}

func (s Strategy) executePopulationChange(kit Kit, key stream.Key) error {
	priorUnits := kit.Keeper.GetStream(key, stream.PriorEquipment).Magnitude
	salesKg := kit.SalesKg(key)
	initialCharge := kit.InitialChargeKgPerUnit(key)

	var newUnits decimal.Decimal
	if s.SubtractRecharge {
		rechargeKg := kit.RechargeKg(key)
		newUnits = safeDiv(salesKg.Sub(rechargeKg), initialCharge)
	} else {
		newUnits = safeDiv(salesKg, initialCharge)
		kit.Keeper.SetStream(key, stream.ImplicitRecharge,
			unit.Value{Magnitude: kit.RechargeKg(key), Unit: unit.Kg})
	}

	equipment := priorUnits.Add(newUnits)
	if equipment.IsNegative() {
		equipment = decimal.Zero
	}
	kit.Keeper.SetStream(key, stream.Equipment, unit.Value{Magnitude: equipment, Unit: unit.Units})
	kit.Keeper.SetStream(key, stream.NewEquipment, unit.Value{Magnitude: newUnits, Unit: unit.Units})
	return nil
}

// executeSales recomputes manufacture and import (and export, if enabled)
// from the sales distribution, honoring recycling displacement. Per the
// spec's flagged Open Question, a unit-based specification is preserved
// rather than overwritten when PreserveUnitIntentOnImplicitRecharge is set
// and the most recent sales-affecting write was unit-based and not a direct
// user write of a mass-denominated stream.
func (s Strategy) executeSales(kit Kit, key stream.Key) error {
	if s.PreserveUnitIntentOnImplicitRecharge &&
		kit.Keeper.GetSalesIntent(key) &&
		kit.Keeper.HasEquipmentUnits(key, stream.Manufacture) {
		return nil
	}

	target := kit.SalesKg(key)
	netDisplacement := s.NetRecyclingDisplacement
	if s.SalesTargetKg != nil {
		target = *s.SalesTargetKg
		netDisplacement = true
	}
	if netDisplacement {
		target = target.Sub(kit.DisplacedKg(key))
		if target.IsNegative() {
			target = decimal.Zero
		}
	}

	pctManufacture, pctImport, pctExport := kit.Keeper.GetDistribution(key)
	kit.Keeper.SetStream(key, stream.Manufacture, unit.Value{Magnitude: target.Mul(pctManufacture), Unit: unit.Kg})
	kit.Keeper.SetStream(key, stream.Import, unit.Value{Magnitude: target.Mul(pctImport), Unit: unit.Kg})
	if kit.Keeper.IsEnabled(key, stream.Export) {
		kit.Keeper.SetStream(key, stream.Export, unit.Value{Magnitude: target.Mul(pctExport), Unit: unit.Kg})
	}
	kit.Keeper.SetStream(key, stream.Recycle, unit.Value{Magnitude: kit.RecycledKg(key), Unit: unit.Kg})
	return nil
}

func (s Strategy) executeRechargeEmissions(kit Kit, key stream.Key) error {
	rechargeKg := kit.RechargeKg(key)
	ghg := kit.Keeper.GetGhgIntensity(key).Magnitude
	kit.Keeper.SetStream(key, stream.RechargeEmissions, unit.Value{Magnitude: rechargeKg.Mul(ghg), Unit: unit.TCO2e})
	return nil
}

func (s Strategy) executeEolEmissions(kit Kit, key stream.Key) error {
	priorUnits := kit.Keeper.GetStream(key, stream.PriorEquipment).Magnitude
	retirementRate := kit.Keeper.GetRetirementRate(key)
	initialCharge := kit.InitialChargeKgPerUnit(key)
	ghg := kit.Keeper.GetGhgIntensity(key).Magnitude

	retiredUnits := priorUnits.Mul(retirementRate)
	retiredKg := retiredUnits.Mul(initialCharge)
	kit.Keeper.SetStream(key, stream.EolEmissions, unit.Value{Magnitude: retiredKg.Mul(ghg), Unit: unit.TCO2e})
	return nil
}

func (s Strategy) executeRetire(kit Kit, key stream.Key) error {
	priorUnits := kit.Keeper.GetStream(key, stream.PriorEquipment).Magnitude
	equipment := kit.Keeper.GetStream(key, stream.Equipment).Magnitude
	rate := kit.Keeper.GetRetirementRate(key)

	retiredUnits := priorUnits.Mul(rate)

	newPrior := priorUnits.Sub(retiredUnits)
	if newPrior.IsNegative() {
		newPrior = decimal.Zero
	}
	newEquipment := equipment.Sub(retiredUnits)
	if newEquipment.IsNegative() {
		newEquipment = decimal.Zero
	}

	kit.Keeper.SetStream(key, stream.PriorEquipment, unit.Value{Magnitude: newPrior, Unit: unit.Units})
	kit.Keeper.SetStream(key, stream.Equipment, unit.Value{Magnitude: newEquipment, Unit: unit.Units})

	initialCharge := kit.InitialChargeKgPerUnit(key)
	ghg := kit.Keeper.GetGhgIntensity(key).Magnitude
	retiredKg := retiredUnits.Mul(initialCharge)
	kit.Keeper.SetStream(key, stream.EolEmissions, unit.Value{Magnitude: retiredKg.Mul(ghg), Unit: unit.TCO2e})
	return nil
}
