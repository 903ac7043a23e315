package convert

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/example/mpsim/internal/engineerr"
	"github.com/example/mpsim/internal/unit"
)

func constState(population, volume, gas, energy, amortized, years, popChange int64) State {
	return FuncState{
		PopulationFn:          func() decimal.Decimal { return decimal.New(population, 0) },
		VolumeFn:              func() decimal.Decimal { return decimal.New(volume, 0) },
		GasConsumptionFn:      func() decimal.Decimal { return decimal.New(gas, 0) },
		EnergyConsumptionFn:   func() decimal.Decimal { return decimal.New(energy, 0) },
		AmortizedUnitVolumeFn: func() decimal.Decimal { return decimal.New(amortized, 0) },
		YearsElapsedFn:        func() decimal.Decimal { return decimal.New(years, 0) },
		PopulationChangeFn:    func() decimal.Decimal { return decimal.New(popChange, 0) },
	}
}

func TestConvertSameFamilyRatio(t *testing.T) {
	c := New()
	v := unit.New(2.5, unit.Mt)
	got, err := c.Convert(v, unit.Kg, constState(0, 0, 0, 0, 0, 0, 0), Intensities{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := decimal.New(2500, 0)
	if !got.Magnitude.Equal(want) {
		t.Fatalf("got %s want %s", got.Magnitude, want)
	}
}

func TestConvertUnitsToMass(t *testing.T) {
	c := New()
	v := unit.New(10, unit.Units)
	state := constState(0, 0, 0, 0, 5, 0, 0) // amortized unit volume = 5 kg/unit
	got, err := c.Convert(v, unit.Kg, state, Intensities{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Magnitude.Equal(decimal.New(50, 0)) {
		t.Fatalf("got %s", got.Magnitude)
	}
}

func TestConvertMassToUnitsDivideByZeroYieldsZero(t *testing.T) {
	c := New()
	v := unit.New(50, unit.Kg)
	state := constState(0, 0, 0, 0, 0, 0, 0) // amortized unit volume = 0
	got, err := c.Convert(v, unit.Units, state, Intensities{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Magnitude.IsZero() {
		t.Fatalf("expected zero result on divide by zero, got %s", got.Magnitude)
	}
}

func TestConvertMassToConsumption(t *testing.T) {
	c := New()
	v := unit.New(100, unit.Kg)
	it := Intensities{Ghg: decimal.NewFromFloat(1430.0 / 1000.0)} // example HFC-134a-ish intensity, tCO2e/kg
	got, err := c.Convert(v, unit.TCO2e, constState(0, 0, 0, 0, 0, 0, 0), it)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := decimal.New(100, 0).Mul(it.Ghg)
	if !got.Magnitude.Equal(want) {
		t.Fatalf("got %s want %s", got.Magnitude, want)
	}
}

func TestConvertPercentToUnits(t *testing.T) {
	c := New()
	v := unit.New(10, unit.Percent) // 10%
	state := constState(200, 0, 0, 0, 0, 0, 0)
	got, err := c.Convert(v, unit.Units, state, Intensities{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Magnitude.Equal(decimal.New(20, 0)) {
		t.Fatalf("got %s", got.Magnitude)
	}
}

func TestConvertCompositeToSimple(t *testing.T) {
	c := New()
	v := unit.New(5, unit.Composite(unit.Kg, unit.Year))
	state := constState(0, 0, 0, 0, 0, 3, 0) // 3 years elapsed
	got, err := c.Convert(v, unit.Kg, state, Intensities{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Magnitude.Equal(decimal.New(15, 0)) {
		t.Fatalf("got %s", got.Magnitude)
	}
}

func TestConvertSimpleToComposite(t *testing.T) {
	c := New()
	v := unit.New(100, unit.Kg)
	state := constState(10, 0, 0, 0, 0, 0, 0) // population = 10
	got, err := c.Convert(v, unit.Composite(unit.Kg, unit.Unit1), state, Intensities{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Magnitude.Equal(decimal.New(10, 0)) {
		t.Fatalf("got %s", got.Magnitude)
	}
}

func TestConvertUnsupportedCompositeToComposite(t *testing.T) {
	c := New()
	v := unit.New(1, unit.Composite(unit.Kg, unit.Year))
	_, err := c.Convert(v, unit.Composite(unit.TCO2e, unit.Unit1), constState(0, 0, 0, 0, 0, 0, 0), Intensities{})
	if err == nil {
		t.Fatal("expected an error")
	}
	if !engineerr.ErrUnsupportedConversion.Is(err) {
		t.Fatalf("expected UnsupportedConversion, got %v", err)
	}
}

func TestOverridingStateShadowsThenClears(t *testing.T) {
	base := constState(100, 0, 0, 0, 0, 0, 0)
	ov := NewOverriding(base)
	if !ov.Population().Equal(decimal.New(100, 0)) {
		t.Fatalf("expected pass-through, got %s", ov.Population())
	}
	ov.SetPopulation(decimal.New(5, 0))
	if !ov.Population().Equal(decimal.New(5, 0)) {
		t.Fatalf("expected override, got %s", ov.Population())
	}
	ov.ClearPopulation()
	if !ov.Population().Equal(decimal.New(100, 0)) {
		t.Fatalf("expected pass-through after clear, got %s", ov.Population())
	}
}
