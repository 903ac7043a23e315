// Package stream implements StreamKeeper: per-(application, substance)
// storage of stream values, substance parameters, and the flags the engine
// and recalculation pipeline need to keep them mutually consistent.
package stream

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/example/mpsim/internal/unit"
)

// Name identifies one of the closed set of streams tracked per (application,
// substance).
type Name string

const (
	Manufacture       Name = "manufacture"
	Import            Name = "import"
	Export            Name = "export"
	Sales             Name = "sales"
	Recycle           Name = "recycle"
	Equipment         Name = "equipment"
	PriorEquipment    Name = "priorEquipment"
	NewEquipment      Name = "newEquipment"
	Consumption       Name = "consumption"
	Energy            Name = "energy"
	RechargeEmissions Name = "rechargeEmissions"
	EolEmissions      Name = "eolEmissions"
	ImplicitRecharge  Name = "implicitRecharge"
)

// All enumerates the closed stream vocabulary, in the order declared in
// the data model.
var All = []Name{
	Manufacture, Import, Export, Sales, Recycle, Equipment, PriorEquipment,
	NewEquipment, Consumption, Energy, RechargeEmissions, EolEmissions,
	ImplicitRecharge,
}

// salesSubstreams are the physical streams "sales" is a virtual union over.
var salesSubstreams = []Name{Manufacture, Import, Export}

// perYearAccumulators are zeroed by Keeper.AdvanceYear (spec §4.6): streams
// that represent a within-year flow rather than standing state.
var perYearAccumulators = []Name{
	NewEquipment, ImplicitRecharge, Recycle, RechargeEmissions, EolEmissions,
}

func (n Name) String() string { return string(n) }

// Family reports the physical family a stream's natural unit belongs to.
func (n Name) Family() unit.Family {
	switch n {
	case Manufacture, Import, Export, Sales, Recycle, ImplicitRecharge:
		return unit.Mass
	case Equipment, PriorEquipment, NewEquipment:
		return unit.Equipment
	case Consumption, RechargeEmissions, EolEmissions:
		return unit.Consumption
	case Energy:
		return unit.Energy
	default:
		return unit.Unknown
	}
}

// NaturalUnit returns the unit a stream is conventionally expressed in.
func (n Name) NaturalUnit() string {
	switch n.Family() {
	case unit.Mass:
		return unit.Kg
	case unit.Equipment:
		return unit.Units
	case unit.Consumption:
		return unit.TCO2e
	case unit.Energy:
		return unit.Kwh
	default:
		return unit.Kg
	}
}

// Valid reports whether n is in the closed stream vocabulary.
func Valid(n Name) bool {
	for _, s := range All {
		if s == n {
			return true
		}
	}
	return false
}

// Key identifies the (application, substance) pair a stream's state belongs
// to. Applications and substances are opaque strings the keeper never
// interprets.
type Key struct {
	Application string
	Substance   string
}

// entry is one (application, substance) pair's state: stream values, the
// per-stream enable/last-unit tracking, and the substance-level parameters.
type entry struct {
	values   map[Name]unit.Value
	enabled  map[Name]bool
	lastUnit map[Name]string

	salesIntentUserWrite bool

	ghgIntensity       unit.Value // tCO2e/kg
	energyIntensity    unit.Value // kwh/kg
	initialCharge      map[Name]unit.Value
	rechargePopulation decimal.Decimal // fraction of prior equipment (0.1 = 10%)
	rechargeIntensity  unit.Value      // kg/unit
	retirementRate     decimal.Decimal // fraction per year (0.1 = 10%)
	recoveryRate       unit.Value      // % or kg
	yieldRate          unit.Value      // % or kg
	displacementRate   decimal.Decimal // fraction (1.0 = 100%)
}

func newEntry() *entry {
	return &entry{
		values:        make(map[Name]unit.Value),
		enabled:       make(map[Name]bool),
		lastUnit:      make(map[Name]string),
		initialCharge: make(map[Name]unit.Value),
	}
}

// Keeper is the StreamKeeper: maps Key -> (stream values, parameters,
// flags). Entries spring into existence on first access, per spec §3's
// lifecycle rule, and persist until the Keeper itself is discarded.
type Keeper struct {
	entries map[Key]*entry
}

// NewKeeper constructs an empty Keeper.
func NewKeeper() *Keeper {
	return &Keeper{entries: make(map[Key]*entry)}
}

func (k *Keeper) getOrCreate(key Key) *entry {
	e, ok := k.entries[key]
	if !ok {
		e = newEntry()
		k.entries[key] = e
	}
	return e
}

// Snapshot captures key's entire state (stream values, flags, parameters)
// as an opaque value. A verb that fails partway through its recalculation
// pipeline restores this snapshot so the engine never partially commits a
// verb (spec §7).
func (k *Keeper) Snapshot(key Key) interface{} {
	e := k.getOrCreate(key)
	clone := &entry{
		values:               make(map[Name]unit.Value, len(e.values)),
		enabled:              make(map[Name]bool, len(e.enabled)),
		lastUnit:             make(map[Name]string, len(e.lastUnit)),
		initialCharge:        make(map[Name]unit.Value, len(e.initialCharge)),
		salesIntentUserWrite: e.salesIntentUserWrite,
		ghgIntensity:         e.ghgIntensity,
		energyIntensity:      e.energyIntensity,
		rechargePopulation:   e.rechargePopulation,
		rechargeIntensity:    e.rechargeIntensity,
		retirementRate:       e.retirementRate,
		recoveryRate:         e.recoveryRate,
		yieldRate:            e.yieldRate,
		displacementRate:     e.displacementRate,
	}
	for s, v := range e.values {
		clone.values[s] = v
	}
	for s, v := range e.enabled {
		clone.enabled[s] = v
	}
	for s, v := range e.lastUnit {
		clone.lastUnit[s] = v
	}
	for s, v := range e.initialCharge {
		clone.initialCharge[s] = v
	}
	return clone
}

// RestoreSnapshot replaces key's entire state with one captured by
// Snapshot.
func (k *Keeper) RestoreSnapshot(key Key, snapshot interface{}) {
	clone, ok := snapshot.(*entry)
	if !ok {
		return
	}
	k.entries[key] = clone
}

// Keys returns every (application, substance) pair the keeper has seen, in
// a stable (application, substance) sorted order — a supplemental accessor
// the Runner and ResultSerializer use to enumerate scope without tracking
// registration order themselves.
func (k *Keeper) Keys() []Key {
	keys := make([]Key, 0, len(k.entries))
	for key := range k.entries {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Application != keys[j].Application {
			return keys[i].Application < keys[j].Application
		}
		return keys[i].Substance < keys[j].Substance
	})
	return keys
}

// Substances returns every substance registered under application, sorted.
func (k *Keeper) Substances(application string) []string {
	seen := make(map[string]bool)
	for key := range k.entries {
		if key.Application == application {
			seen[key.Substance] = true
		}
	}
	out := make([]string, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// GetStream returns the value of stream within key's scope, defaulting to
// zero kg when the stream has never been written — per spec §4.3, the
// default is literally zero-kg regardless of the stream's natural unit.
func (k *Keeper) GetStream(key Key, name Name) unit.Value {
	e := k.getOrCreate(key)
	if v, ok := e.values[name]; ok {
		return v
	}
	return unit.Zero(unit.Kg)
}

// SetStream overwrites stream's value and records the unit it was written
// in. Writing manufacture, import, or export also marks that sub-stream
// enabled (spec §3's stream-enable set).
func (k *Keeper) SetStream(key Key, name Name, value unit.Value) {
	e := k.getOrCreate(key)
	e.values[name] = value
	e.lastUnit[name] = value.Unit
	if name == Manufacture || name == Import || name == Export {
		e.enabled[name] = true
	}
	if name == Sales || name == Manufacture || name == Import || name == Export {
		e.salesIntentUserWrite = true
	}
}

// SetLastSpecifiedUnit overrides the last-specified-unit tracking for name
// without touching its stored value. The engine verb layer normalizes every
// written value to the stream's natural unit before calling SetStream, so it
// calls this afterward to record the unit the caller actually specified —
// the bit HasEquipmentUnits (spec §3 invariant 3) depends on.
func (k *Keeper) SetLastSpecifiedUnit(key Key, name Name, u string) {
	k.getOrCreate(key).lastUnit[name] = u
}

// MarkEnabled marks stream as having been explicitly written at least once,
// without changing its value (used when a recalc strategy needs to flag a
// sub-stream as participating without itself performing a user write).
func (k *Keeper) MarkEnabled(key Key, name Name) {
	k.getOrCreate(key).enabled[name] = true
}

// IsEnabled reports whether stream has ever been explicitly written.
func (k *Keeper) IsEnabled(key Key, name Name) bool {
	return k.getOrCreate(key).enabled[name]
}

// GetLastSpecifiedValue returns the stream's current stored value in its
// natural unit, whoever wrote it last (a caller or a recalc strategy); it
// is the same value GetStream returns. Only the unit of the last write is
// tracked separately (SetLastSpecifiedUnit, HasEquipmentUnits).
func (k *Keeper) GetLastSpecifiedValue(key Key, name Name) unit.Value {
	return k.GetStream(key, name)
}

// HasEquipmentUnits reports whether the last write to stream was expressed
// in equipment units (spec §3 invariant 3).
func (k *Keeper) HasEquipmentUnits(key Key, name Name) bool {
	e := k.getOrCreate(key)
	u, ok := e.lastUnit[name]
	if !ok {
		return false
	}
	p, err := unit.Parse(u)
	if err != nil {
		return false
	}
	return p.NumeratorFamily() == unit.Equipment
}

// ResetSalesIntentFlag clears the flag that records whether the most recent
// sales mutation was a direct user write.
func (k *Keeper) ResetSalesIntentFlag(key Key) {
	k.getOrCreate(key).salesIntentUserWrite = false
}

// GetSalesIntent reports the sales intent flag. SetStream sets it on every
// write to sales, manufacture, import or export, including writes made by
// recalc strategies, so it does not tell a direct user write from a
// strategy's write; only ResetSalesIntentFlag clears it.
func (k *Keeper) GetSalesIntent(key Key) bool {
	return k.getOrCreate(key).salesIntentUserWrite
}

// GetDistribution computes (pctManufacture, pctImport, pctExport) per the
// sales distribution rule (spec §4.5):
//  1. If export has never been enabled, only manufacture and import
//     participate; export is fixed at 0.
//  2. If any participating stream is non-zero, percentages are proportional
//     to current values.
//  3. Otherwise, percentages are uniform across enabled streams; if none are
//     enabled, uniform across all participating streams.
func (k *Keeper) GetDistribution(key Key) (pctManufacture, pctImport, pctExport decimal.Decimal) {
	e := k.getOrCreate(key)
	includeExport := e.enabled[Export]

	participating := []Name{Manufacture, Import}
	if includeExport {
		participating = append(participating, Export)
	}

	values := make(map[Name]decimal.Decimal, len(participating))
	total := decimal.Zero
	for _, s := range participating {
		v := k.GetStream(key, s).Magnitude
		values[s] = v
		total = total.Add(v)
	}

	pct := make(map[Name]decimal.Decimal, len(participating))
	if !total.IsZero() {
		for _, s := range participating {
			pct[s] = values[s].Div(total)
		}
	} else {
		var enabledCount int
		for _, s := range participating {
			if e.enabled[s] {
				enabledCount++
			}
		}
		if enabledCount > 0 {
			share := decimal.New(1, 0).Div(decimal.New(int64(enabledCount), 0))
			for _, s := range participating {
				if e.enabled[s] {
					pct[s] = share
				} else {
					pct[s] = decimal.Zero
				}
			}
		} else {
			share := decimal.New(1, 0).Div(decimal.New(int64(len(participating)), 0))
			for _, s := range participating {
				pct[s] = share
			}
		}
	}

	pctManufacture = pct[Manufacture]
	pctImport = pct[Import]
	if includeExport {
		pctExport = pct[Export]
	} else {
		pctExport = decimal.Zero
	}
	return pctManufacture, pctImport, pctExport
}

// HasGhgIntensity reports whether equals() has ever set a GHG intensity for
// key — the ResultSerializer's MissingParameter guard (spec §7) checks this
// before attributing consumption.
func (k *Keeper) HasGhgIntensity(key Key) bool {
	return k.getOrCreate(key).ghgIntensity.Unit != ""
}

// HasInitialCharge reports whether setInitialCharge has ever been called for
// key on any of manufacture, import, or sales.
func (k *Keeper) HasInitialCharge(key Key) bool {
	e := k.getOrCreate(key)
	return len(e.initialCharge) > 0
}

// GetGhgIntensity returns the substance's GHG intensity as last set (tCO2e/kg
// by convention, but versioned by whatever unit equals() last used).
func (k *Keeper) GetGhgIntensity(key Key) unit.Value {
	e := k.getOrCreate(key)
	if e.ghgIntensity.Unit == "" {
		return unit.Zero(unit.Composite(unit.TCO2e, unit.Kg))
	}
	return e.ghgIntensity
}

// SetGhgIntensity records the substance's GHG intensity.
func (k *Keeper) SetGhgIntensity(key Key, v unit.Value) {
	k.getOrCreate(key).ghgIntensity = v
}

// GetEnergyIntensity returns the substance's energy intensity as last set.
func (k *Keeper) GetEnergyIntensity(key Key) unit.Value {
	e := k.getOrCreate(key)
	if e.energyIntensity.Unit == "" {
		return unit.Zero(unit.Composite(unit.Kwh, unit.Kg))
	}
	return e.energyIntensity
}

// SetEnergyIntensity records the substance's energy intensity.
func (k *Keeper) SetEnergyIntensity(key Key, v unit.Value) {
	k.getOrCreate(key).energyIntensity = v
}

// GetRechargePopulation returns the recharge population rate, the fraction
// of prior equipment serviced per year (0.1 for 10%).
func (k *Keeper) GetRechargePopulation(key Key) decimal.Decimal {
	return k.getOrCreate(key).rechargePopulation
}

// SetRechargePopulation records the recharge population rate.
func (k *Keeper) SetRechargePopulation(key Key, pct decimal.Decimal) {
	k.getOrCreate(key).rechargePopulation = pct
}

// GetRechargeIntensity returns the recharge intensity (kg/unit).
func (k *Keeper) GetRechargeIntensity(key Key) unit.Value {
	e := k.getOrCreate(key)
	if e.rechargeIntensity.Unit == "" {
		return unit.Zero(unit.Composite(unit.Kg, unit.Unit1))
	}
	return e.rechargeIntensity
}

// SetRechargeIntensity records the recharge intensity.
func (k *Keeper) SetRechargeIntensity(key Key, v unit.Value) {
	k.getOrCreate(key).rechargeIntensity = v
}

// GetRetirementRate returns the retirement rate as a fraction of prior
// equipment per year (0.1 for 10%).
func (k *Keeper) GetRetirementRate(key Key) decimal.Decimal {
	return k.getOrCreate(key).retirementRate
}

// SetRetirementRate records the retirement rate.
func (k *Keeper) SetRetirementRate(key Key, pct decimal.Decimal) {
	k.getOrCreate(key).retirementRate = pct
}

// GetRecoveryRate returns the recycling recovery rate (% or kg).
func (k *Keeper) GetRecoveryRate(key Key) unit.Value {
	return k.getOrCreate(key).recoveryRate
}

// SetRecoveryRate records the recycling recovery rate.
func (k *Keeper) SetRecoveryRate(key Key, v unit.Value) {
	k.getOrCreate(key).recoveryRate = v
}

// GetYieldRate returns the recycling yield rate (% or kg).
func (k *Keeper) GetYieldRate(key Key) unit.Value {
	return k.getOrCreate(key).yieldRate
}

// SetYieldRate records the recycling yield rate.
func (k *Keeper) SetYieldRate(key Key, v unit.Value) {
	k.getOrCreate(key).yieldRate = v
}

// GetDisplacementRate returns the recycling displacement rate as a
// fraction (1.0 for 100%).
func (k *Keeper) GetDisplacementRate(key Key) decimal.Decimal {
	return k.getOrCreate(key).displacementRate
}

// SetDisplacementRate records the recycling displacement rate.
func (k *Keeper) SetDisplacementRate(key Key, pct decimal.Decimal) {
	k.getOrCreate(key).displacementRate = pct
}

// GetInitialCharge returns the initial charge (kg/unit) last recorded for
// stream, which must be one of manufacture, import, or sales.
func (k *Keeper) GetInitialCharge(key Key, name Name) unit.Value {
	e := k.getOrCreate(key)
	if v, ok := e.initialCharge[name]; ok {
		return v
	}
	return unit.Zero(unit.Composite(unit.Kg, unit.Unit1))
}

// SetInitialCharge records the initial charge for stream (manufacture,
// import, or sales — tracked independently per spec §3).
func (k *Keeper) SetInitialCharge(key Key, name Name, v unit.Value) {
	k.getOrCreate(key).initialCharge[name] = v
}

// AdvanceYear performs the per-key portion of incrementYear (spec §4.6):
// snapshot equipment into priorEquipment and zero the per-year
// accumulators.
func (k *Keeper) AdvanceYear(key Key) {
	e := k.getOrCreate(key)
	e.values[PriorEquipment] = e.values[Equipment]
	for _, acc := range perYearAccumulators {
		e.values[acc] = unit.Zero(acc.NaturalUnit())
	}
}

// AdvanceAllYears runs AdvanceYear across every key the keeper has seen —
// the engine-wide effect of incrementYear.
func (k *Keeper) AdvanceAllYears() {
	for key := range k.entries {
		k.AdvanceYear(key)
	}
}
