package scope

import (
	"testing"

	"github.com/example/mpsim/internal/engineerr"
	"github.com/example/mpsim/internal/unit"
)

func TestKeyRequiresApplicationAndSubstance(t *testing.T) {
	s := NewRoot()
	if _, err := s.Key(); !engineerr.ErrNoApplicationOrSubstance.Is(err) {
		t.Fatalf("expected NoApplicationOrSubstance, got %v", err)
	}
	s.SetApplication("Domestic Refrigeration")
	if _, err := s.Key(); !engineerr.ErrNoApplicationOrSubstance.Is(err) {
		t.Fatalf("expected NoApplicationOrSubstance with substance unset, got %v", err)
	}
	s.SetSubstance("HFC-134a")
	key, err := s.Key()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if key.Application != "Domestic Refrigeration" || key.Substance != "HFC-134a" {
		t.Fatalf("unexpected key: %+v", key)
	}
}

func TestSettingApplicationClearsSubstance(t *testing.T) {
	s := NewRoot()
	s.SetApplication("A")
	s.SetSubstance("S")
	s.SetApplication("A2")
	if s.Substance() != "" {
		t.Fatalf("expected substance cleared, got %q", s.Substance())
	}
}

func TestSettingStanzaClearsApplicationAndSubstance(t *testing.T) {
	s := NewRoot()
	s.SetApplication("A")
	s.SetSubstance("S")
	s.SetStanza("default")
	if s.Application() != "" || s.Substance() != "" {
		t.Fatalf("expected application and substance cleared, got %q/%q", s.Application(), s.Substance())
	}
}

func TestChildShadowsThenReadsThroughParent(t *testing.T) {
	root := NewRoot()
	root.SetVar("x", unit.New(1, unit.Kg))

	child := root.Child()
	if v, ok := child.GetVar("x"); !ok || !v.Magnitude.Equal(unit.New(1, unit.Kg).Magnitude) {
		t.Fatalf("expected child to read through to parent value, got %+v ok=%v", v, ok)
	}

	child.SetVar("x", unit.New(2, unit.Kg))
	if v, _ := child.GetVar("x"); !v.Magnitude.Equal(unit.New(2, unit.Kg).Magnitude) {
		t.Fatalf("expected child's own binding to shadow parent, got %+v", v)
	}
	if v, _ := root.GetVar("x"); !v.Magnitude.Equal(unit.New(1, unit.Kg).Magnitude) {
		t.Fatalf("expected parent binding unaffected by child write, got %+v", v)
	}
}

func TestChildInheritsScopePointer(t *testing.T) {
	root := NewRoot()
	root.SetApplication("A")
	root.SetSubstance("S")
	child := root.Child()
	if child.Application() != "A" || child.Substance() != "S" {
		t.Fatalf("expected child to inherit scope pointer, got %q/%q", child.Application(), child.Substance())
	}
}
