package result

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/example/mpsim/internal/engineerr"
	"github.com/example/mpsim/internal/stream"
	"github.com/example/mpsim/internal/unit"
)

func TestRowRequiresGhgIntensity(t *testing.T) {
	k := stream.NewKeeper()
	s := New(k)
	key := stream.Key{Application: "A", Substance: "S"}

	_, err := s.Row("scenario-1", 0, 1, key)
	if err == nil {
		t.Fatal("expected MissingParameter error")
	}
	var engErr *engineerr.Error
	if !errors.As(err, &engErr) || engErr.Kind != engineerr.MissingParameter {
		t.Fatalf("expected MissingParameter, got %v", err)
	}
}

func TestRowAttributesConsumptionProportionally(t *testing.T) {
	k := stream.NewKeeper()
	key := stream.Key{Application: "Domestic Refrigeration", Substance: "HFC-134a"}

	k.SetGhgIntensity(key, unit.New(2, unit.Composite(unit.TCO2e, unit.Kg)))
	k.SetStream(key, stream.Manufacture, unit.New(60, unit.Kg))
	k.SetStream(key, stream.Import, unit.New(40, unit.Kg))

	s := New(k)
	row, err := s.Row("scenario-1", 0, 1, key)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// total net consumption = (60+40) * 2 = 200 tCO2e, split 60/40.
	if !row.DomesticConsumption.Magnitude.Equal(decimal.New(120, 0)) {
		t.Fatalf("expected domestic consumption 120, got %s", row.DomesticConsumption.Magnitude)
	}
	if !row.ImportConsumption.Magnitude.Equal(decimal.New(80, 0)) {
		t.Fatalf("expected import consumption 80, got %s", row.ImportConsumption.Magnitude)
	}
}

func TestRowNetsOutRecycleDisplacement(t *testing.T) {
	k := stream.NewKeeper()
	key := stream.Key{Application: "A", Substance: "S"}

	k.SetGhgIntensity(key, unit.New(1, unit.Composite(unit.TCO2e, unit.Kg)))
	k.SetStream(key, stream.Manufacture, unit.New(100, unit.Kg))
	k.SetRechargePopulation(key, decimal.NewFromFloat(0.5))
	k.SetStream(key, stream.PriorEquipment, unit.New(10, unit.Units))
	k.SetRechargeIntensity(key, unit.New(1, unit.Composite(unit.Kg, unit.Unit1)))
	k.SetRecoveryRate(key, unit.New(100, unit.Percent))
	k.SetYieldRate(key, unit.New(100, unit.Percent))
	k.SetDisplacementRate(key, decimal.NewFromFloat(1.0))

	s := New(k)
	row, err := s.Row("scenario-1", 0, 1, key)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// recharge = 10 * 0.5 * 1 = 5kg, fully recovered and yielded, fully
	// displacing: recycleConsumption = 5 tCO2e, net consumption = 100-5=95.
	if !row.RecycleConsumption.Magnitude.Equal(decimal.New(5, 0)) {
		t.Fatalf("expected recycle consumption 5, got %s", row.RecycleConsumption.Magnitude)
	}
	if !row.DomesticConsumption.Magnitude.Equal(decimal.New(95, 0)) {
		t.Fatalf("expected domestic consumption 95, got %s", row.DomesticConsumption.Magnitude)
	}
}

func TestWriteCSVRendersHeaderAndRows(t *testing.T) {
	k := stream.NewKeeper()
	key := stream.Key{Application: "A", Substance: "S"}
	k.SetGhgIntensity(key, unit.New(1, unit.Composite(unit.TCO2e, unit.Kg)))
	k.SetStream(key, stream.Manufacture, unit.New(10, unit.Kg))

	s := New(k)
	row, err := s.Row("scenario-1", 0, 1, key)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var buf bytes.Buffer
	if err := WriteCSV(&buf, []Row{row}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected header + 1 row, got %d lines", len(lines))
	}
	if !strings.HasPrefix(lines[0], "scenario,trial,year,application,substance") {
		t.Fatalf("unexpected header: %s", lines[0])
	}
}
