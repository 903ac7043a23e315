package engine

import (
	"github.com/shopspring/decimal"

	"github.com/example/mpsim/internal/stream"
	"github.com/example/mpsim/internal/unit"
)

// Verb identifies which of the Engine's operations a Command invokes. This
// is the structured record a parser (or a line-oriented stand-in reader,
// see cmd/mpsim) must produce — QubecTalk syntax itself is out of scope.
type Verb int

const (
	VerbSetStanza Verb = iota
	VerbSetApplication
	VerbSetSubstance
	VerbSetStream
	VerbChangeStream
	VerbCap
	VerbFloor
	VerbReplace
	VerbRecharge
	VerbRecycle
	VerbRetire
	VerbEquals
	VerbSetInitialCharge
	VerbIncrementYear
)

func (v Verb) String() string {
	switch v {
	case VerbSetStanza:
		return "setStanza"
	case VerbSetApplication:
		return "setApplication"
	case VerbSetSubstance:
		return "setSubstance"
	case VerbSetStream:
		return "setStream"
	case VerbChangeStream:
		return "changeStream"
	case VerbCap:
		return "cap"
	case VerbFloor:
		return "floor"
	case VerbReplace:
		return "replace"
	case VerbRecharge:
		return "recharge"
	case VerbRecycle:
		return "recycle"
	case VerbRetire:
		return "retire"
	case VerbEquals:
		return "equals"
	case VerbSetInitialCharge:
		return "setInitialCharge"
	case VerbIncrementYear:
		return "incrementYear"
	default:
		return "unknown"
	}
}

// Displacement names where cap/floor overflow or shortfall is routed: a
// sibling stream of the same substance, or the manufacture stream of
// another substance (cross-substance displacement).
type Displacement struct {
	Stream    stream.Name // same-substance target; empty if Substance is set
	Substance string      // cross-substance target; empty if Stream is set
}

// Command is a single structured instruction against the Engine — the
// tagged union spec §6 describes, one-to-one with the verb table of §4.4.
// Only the fields relevant to Verb are read.
type Command struct {
	Verb  Verb
	Range YearMatcher

	// Name carries the stanza/application/substance name for the three
	// scope-setting verbs.
	Name string

	// Stream is the target stream for setStream, changeStream, cap, floor,
	// replace, and setInitialCharge.
	Stream stream.Name

	// Value carries setStream's value, changeStream's delta,
	// cap/floor's limit, replace's amount, or setInitialCharge's value.
	Value unit.Value

	// Displace names the cap/floor overflow or shortfall target. Nil means
	// the excess/shortfall is simply dropped.
	Displace *Displacement

	// OtherSubstance is replace's destination substance.
	OtherSubstance string

	// RechargeRatePct and RechargeIntensity configure the recharge verb.
	RechargeRatePct   decimal.Decimal
	RechargeIntensity unit.Value

	// RecoveryRate, YieldRate, and DisplacementPct configure the recycle
	// verb.
	RecoveryRate    unit.Value
	YieldRate       unit.Value
	DisplacementPct decimal.Decimal

	// RetirementRatePct configures the retire verb.
	RetirementRatePct decimal.Decimal

	// EqualsIntensity configures the equals verb; its unit discriminates
	// between GHG intensity (tCO2e/kg) and energy intensity (kwh/kg).
	EqualsIntensity unit.Value
}
