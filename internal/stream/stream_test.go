package stream

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/example/mpsim/internal/unit"
)

func TestGetStreamDefaultsToZeroKg(t *testing.T) {
	k := NewKeeper()
	v := k.GetStream(Key{Application: "Domestic Refrigeration", Substance: "HFC-134a"}, Consumption)
	if !v.IsZero() || v.Unit != unit.Kg {
		t.Fatalf("expected zero kg default, got %+v", v)
	}
}

func TestSetStreamMarksEnabledForSalesSubstreams(t *testing.T) {
	k := NewKeeper()
	key := Key{Application: "A", Substance: "S"}
	k.SetStream(key, Manufacture, unit.New(10, unit.Kg))
	if !k.IsEnabled(key, Manufacture) {
		t.Fatal("expected manufacture to be enabled after write")
	}
	if k.IsEnabled(key, Import) {
		t.Fatal("import should not be enabled")
	}
}

func TestDistributionProportionalWhenNonZero(t *testing.T) {
	k := NewKeeper()
	key := Key{Application: "A", Substance: "S"}
	k.SetStream(key, Manufacture, unit.New(75, unit.Kg))
	k.SetStream(key, Import, unit.New(25, unit.Kg))
	m, i, e := k.GetDistribution(key)
	if !m.Equal(decimal.NewFromFloat(0.75)) {
		t.Fatalf("expected manufacture share 0.75, got %s", m)
	}
	if !i.Equal(decimal.NewFromFloat(0.25)) {
		t.Fatalf("expected import share 0.25, got %s", i)
	}
	if !e.IsZero() {
		t.Fatalf("expected zero export share, got %s", e)
	}
}

func TestDistributionUniformWhenAllZeroAndNoneEnabled(t *testing.T) {
	k := NewKeeper()
	key := Key{Application: "A", Substance: "S"}
	m, i, e := k.GetDistribution(key)
	half := decimal.NewFromFloat(0.5)
	if !m.Equal(half) || !i.Equal(half) {
		t.Fatalf("expected 50/50 split with exports excluded, got %s/%s", m, i)
	}
	if !e.IsZero() {
		t.Fatalf("expected export share 0 when never enabled, got %s", e)
	}
}

func TestHasEquipmentUnits(t *testing.T) {
	k := NewKeeper()
	key := Key{Application: "A", Substance: "S"}
	k.SetStream(key, Manufacture, unit.New(5, unit.Units))
	if !k.HasEquipmentUnits(key, Manufacture) {
		t.Fatal("expected last write in units to report true")
	}
	k.SetStream(key, Manufacture, unit.New(5, unit.Kg))
	if k.HasEquipmentUnits(key, Manufacture) {
		t.Fatal("expected last write in kg to report false")
	}
}

func TestAdvanceYearSnapshotsAndResets(t *testing.T) {
	k := NewKeeper()
	key := Key{Application: "A", Substance: "S"}
	k.SetStream(key, Equipment, unit.New(10, unit.Units))
	k.SetStream(key, Recycle, unit.New(3, unit.Kg))
	k.AdvanceYear(key)

	if got := k.GetStream(key, PriorEquipment); !got.Magnitude.Equal(decimal.New(10, 0)) {
		t.Fatalf("expected priorEquipment snapshot of 10, got %s", got.Magnitude)
	}
	if got := k.GetStream(key, Recycle); !got.IsZero() {
		t.Fatalf("expected recycle reset to zero, got %s", got.Magnitude)
	}
}

func TestKeysAndSubstancesSorted(t *testing.T) {
	k := NewKeeper()
	k.SetStream(Key{Application: "B", Substance: "Y"}, Manufacture, unit.New(1, unit.Kg))
	k.SetStream(Key{Application: "A", Substance: "Z"}, Manufacture, unit.New(1, unit.Kg))
	k.SetStream(Key{Application: "A", Substance: "X"}, Manufacture, unit.New(1, unit.Kg))

	keys := k.Keys()
	if len(keys) != 3 {
		t.Fatalf("expected 3 keys, got %d", len(keys))
	}
	if keys[0].Application != "A" || keys[1].Application != "A" || keys[2].Application != "B" {
		t.Fatalf("expected application-sorted keys, got %+v", keys)
	}

	subs := k.Substances("A")
	if len(subs) != 2 || subs[0] != "X" || subs[1] != "Z" {
		t.Fatalf("expected sorted substances [X Z], got %v", subs)
	}
}
