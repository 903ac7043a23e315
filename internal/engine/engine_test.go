package engine

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/example/mpsim/internal/stream"
	"github.com/example/mpsim/internal/unit"
)

func setScope(t *testing.T, e *Engine, application, substance string) {
	t.Helper()
	if err := e.Apply(Command{Verb: VerbSetApplication, Name: application}); err != nil {
		t.Fatalf("setApplication: %v", err)
	}
	if err := e.Apply(Command{Verb: VerbSetSubstance, Name: substance}); err != nil {
		t.Fatalf("setSubstance: %v", err)
	}
}

func setScopeNoT(e *Engine, application, substance string) {
	if err := e.Apply(Command{Verb: VerbSetApplication, Name: application}); err != nil {
		panic(err)
	}
	if err := e.Apply(Command{Verb: VerbSetSubstance, Name: substance}); err != nil {
		panic(err)
	}
}

// TestBasicConsumptionEndToEnd mirrors spec scenario (a) through the full
// verb API rather than the recalc layer directly.
func TestBasicConsumptionEndToEnd(t *testing.T) {
	e := New(1)
	setScope(t, e, "Domestic Refrigeration", "HFC-134a")

	mustApply(t, e, Command{
		Verb: VerbSetInitialCharge, Stream: stream.Sales,
		Value: unit.New(123, unit.Composite(unit.Kg, unit.Unit1)),
	})
	mustApply(t, e, Command{
		Verb: VerbEquals,
		EqualsIntensity: unit.New(1, unit.Composite(unit.TCO2e, unit.Kg)),
	})
	mustApply(t, e, Command{
		Verb: VerbSetStream, Stream: stream.Manufacture,
		Value: unit.New(2, unit.Units),
	})

	key := stream.Key{Application: "Domestic Refrigeration", Substance: "HFC-134a"}
	got := e.Keeper().GetStream(key, stream.Consumption)
	if !got.Magnitude.Equal(decimal.New(246, 0)) {
		t.Fatalf("expected consumption 246 tCO2e, got %s %s", got.Magnitude, got.Unit)
	}
}

// TestSubstanceReplacementPreservesTotal mirrors spec scenario (e).
func TestSubstanceReplacementPreservesTotal(t *testing.T) {
	e := New(1)
	setScope(t, e, "Domestic Refrigeration", "A")
	mustApply(t, e, Command{
		Verb: VerbEquals,
		EqualsIntensity: unit.New(10, unit.Composite(unit.TCO2e, unit.Mt)),
	})
	mustApply(t, e, Command{Verb: VerbSetStream, Stream: stream.Manufacture, Value: unit.New(50, unit.Mt)})

	setScope(t, e, "Domestic Refrigeration", "B")
	mustApply(t, e, Command{
		Verb: VerbEquals,
		EqualsIntensity: unit.New(5, unit.Composite(unit.TCO2e, unit.Mt)),
	})
	mustApply(t, e, Command{Verb: VerbSetStream, Stream: stream.Manufacture, Value: unit.New(50, unit.Mt)})

	setScope(t, e, "Domestic Refrigeration", "A")
	mustApply(t, e, Command{
		Verb: VerbReplace, Stream: stream.Manufacture,
		Value: unit.New(25, unit.Mt), OtherSubstance: "B",
	})

	keyA := stream.Key{Application: "Domestic Refrigeration", Substance: "A"}
	keyB := stream.Key{Application: "Domestic Refrigeration", Substance: "B"}

	gotA := e.Keeper().GetStream(keyA, stream.Consumption)
	if !gotA.Magnitude.Equal(decimal.New(250, 0)) {
		t.Fatalf("expected substance A consumption 250 tCO2e, got %s", gotA.Magnitude)
	}
	gotB := e.Keeper().GetStream(keyB, stream.Consumption)
	if !gotB.Magnitude.Equal(decimal.New(375, 0)) {
		t.Fatalf("expected substance B consumption 375 tCO2e, got %s", gotB.Magnitude)
	}
}

// TestOrderIndependenceOfInitialization mirrors spec scenario (f): three
// substances receive the same three parameter-setting commands in three
// different orders and must yield identical consumption.
func TestOrderIndependenceOfInitialization(t *testing.T) {
	e := New(1)

	setInitialCharge := func(e *Engine, sub string) {
		setScopeNoT(e, "App", sub)
		mustApplyNoT(e, Command{
			Verb: VerbSetInitialCharge, Stream: stream.Sales,
			Value: unit.New(10, unit.Composite(unit.Kg, unit.Unit1)),
		})
	}
	setIntensity := func(e *Engine, sub string) {
		setScopeNoT(e, "App", sub)
		mustApplyNoT(e, Command{
			Verb: VerbEquals,
			EqualsIntensity: unit.New(2, unit.Composite(unit.TCO2e, unit.Kg)),
		})
	}
	setRecharge := func(e *Engine, sub string) {
		setScopeNoT(e, "App", sub)
		mustApplyNoT(e, Command{
			Verb:              VerbRecharge,
			RechargeRatePct:   decimal.NewFromFloat(0.10),
			RechargeIntensity: unit.New(5, unit.Composite(unit.Kg, unit.Unit1)),
		})
	}
	setManufacture := func(e *Engine, sub string) {
		setScopeNoT(e, "App", sub)
		mustApplyNoT(e, Command{Verb: VerbSetStream, Stream: stream.Manufacture, Value: unit.New(100, unit.Kg)})
	}

	orders := [][]func(*Engine, string){
		{setInitialCharge, setIntensity, setRecharge, setManufacture},
		{setIntensity, setRecharge, setInitialCharge, setManufacture},
		{setRecharge, setInitialCharge, setIntensity, setManufacture},
	}

	var consumptions []decimal.Decimal
	for i, order := range orders {
		sub := "Sub" + string(rune('A'+i))
		for _, fn := range order {
			fn(e, sub)
		}
		key := stream.Key{Application: "App", Substance: sub}
		consumptions = append(consumptions, e.Keeper().GetStream(key, stream.Consumption).Magnitude)
	}

	for i := 1; i < len(consumptions); i++ {
		if !consumptions[0].Equal(consumptions[i]) {
			t.Fatalf("expected identical consumption across initialization orders, got %v", consumptions)
		}
	}
}

// TestIncrementYearIsOnlyYearMutator checks universal property 5: a verb
// outside its year range is a no-op, and only incrementYear advances the
// year cursor.
func TestIncrementYearIsOnlyYearMutator(t *testing.T) {
	e := New(1)
	setScope(t, e, "App", "Sub")

	min := 5
	if err := e.Apply(Command{
		Verb: VerbSetStream, Stream: stream.Manufacture,
		Range: NewYearMatcher(&min, nil),
		Value: unit.New(100, unit.Kg),
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	key := stream.Key{Application: "App", Substance: "Sub"}
	got := e.Keeper().GetStream(key, stream.Manufacture)
	if !got.IsZero() {
		t.Fatalf("expected out-of-range verb to be a no-op, got %s", got.Magnitude)
	}
	if e.Year() != 1 {
		t.Fatalf("expected year to remain 1, got %d", e.Year())
	}

	if err := e.Apply(Command{Verb: VerbIncrementYear}); err != nil {
		t.Fatalf("incrementYear: %v", err)
	}
	if e.Year() != 2 {
		t.Fatalf("expected year 2 after incrementYear, got %d", e.Year())
	}
}

// TestSetStreamRequiresScope checks that a stream-targeting verb invoked
// before application/substance are set fails with NoApplicationOrSubstance,
// per spec §7.
func TestSetStreamRequiresScope(t *testing.T) {
	e := New(1)
	err := e.Apply(Command{Verb: VerbSetStream, Stream: stream.Manufacture, Value: unit.New(1, unit.Kg)})
	if err == nil {
		t.Fatal("expected an error for a verb invoked without scope")
	}
}

// TestUnknownStreamRejected checks that an unrecognized stream name is
// rejected with UnknownStream.
func TestUnknownStreamRejected(t *testing.T) {
	e := New(1)
	setScope(t, e, "App", "Sub")
	err := e.Apply(Command{Verb: VerbSetStream, Stream: stream.Name("bogus"), Value: unit.New(1, unit.Kg)})
	if err == nil {
		t.Fatal("expected UnknownStream error")
	}
}

// TestFailedVerbLeavesStateUnchanged checks spec §7's never-partially-commit
// policy: a verb that fails partway through leaves the keeper exactly as it
// was.
func TestFailedVerbLeavesStateUnchanged(t *testing.T) {
	e := New(1)
	setScope(t, e, "App", "Sub")
	mustApply(t, e, Command{Verb: VerbSetStream, Stream: stream.Manufacture, Value: unit.New(50, unit.Kg)})

	key := stream.Key{Application: "App", Substance: "Sub"}
	before := e.Keeper().GetStream(key, stream.Manufacture)

	err := e.Apply(Command{Verb: VerbSetStream, Stream: stream.Manufacture, Value: unit.New(1, "nope")})
	if err == nil {
		t.Fatal("expected an unsupported-unit error")
	}

	after := e.Keeper().GetStream(key, stream.Manufacture)
	if !before.Magnitude.Equal(after.Magnitude) {
		t.Fatalf("expected manufacture unchanged after a failed verb, got %s -> %s", before.Magnitude, after.Magnitude)
	}
}

func mustApply(t *testing.T, e *Engine, cmd Command) {
	t.Helper()
	if cmd.Range == (YearMatcher{}) {
		cmd.Range = Always
	}
	if err := e.Apply(cmd); err != nil {
		t.Fatalf("Apply(%s) failed: %v", cmd.Verb, err)
	}
}

func mustApplyNoT(e *Engine, cmd Command) {
	if cmd.Range == (YearMatcher{}) {
		cmd.Range = Always
	}
	if err := e.Apply(cmd); err != nil {
		panic(err)
	}
}
