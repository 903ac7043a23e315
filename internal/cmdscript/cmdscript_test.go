package cmdscript

import (
	"testing"

	"github.com/example/mpsim/internal/engine"
	"github.com/example/mpsim/internal/stream"
)

func TestParseScriptSkipsBlankLinesAndComments(t *testing.T) {
	src := "\n# a comment\nsetStanza default\n\nincrementYear\n"
	cmds, err := Parse(src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cmds) != 2 {
		t.Fatalf("expected 2 commands, got %d", len(cmds))
	}
	if cmds[0].Verb != engine.VerbSetStanza || cmds[0].Name != "default" {
		t.Fatalf("unexpected first command: %+v", cmds[0])
	}
	if cmds[1].Verb != engine.VerbIncrementYear {
		t.Fatalf("unexpected second command: %+v", cmds[1])
	}
}

func TestParseScriptSetStreamWithYearRange(t *testing.T) {
	cmds, err := Parse("setStream manufacture 10 kg 2025 2030")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cmd := cmds[0]
	if cmd.Stream != stream.Manufacture {
		t.Fatalf("expected manufacture stream, got %q", cmd.Stream)
	}
	if cmd.Value.Magnitude.String() != "10" || cmd.Value.Unit != "kg" {
		t.Fatalf("unexpected value: %+v", cmd.Value)
	}
	if cmd.Range.Min == nil || *cmd.Range.Min != 2025 {
		t.Fatalf("unexpected min year: %+v", cmd.Range)
	}
	if cmd.Range.Max == nil || *cmd.Range.Max != 2030 {
		t.Fatalf("unexpected max year: %+v", cmd.Range)
	}
}

func TestParseScriptUnboundedYearRangeUsesDash(t *testing.T) {
	cmds, err := Parse("retire 0.05 - -")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cmds[0].Range.Min != nil || cmds[0].Range.Max != nil {
		t.Fatalf("expected unbounded range, got %+v", cmds[0].Range)
	}
}

func TestParseScriptCapWithDisplacement(t *testing.T) {
	cmds, err := Parse("cap manufacture 100 kg stream:import 2025 2030")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cmd := cmds[0]
	if cmd.Displace == nil || cmd.Displace.Stream != stream.Import {
		t.Fatalf("expected displacement to import stream, got %+v", cmd.Displace)
	}
}

func TestParseScriptRejectsUnknownVerb(t *testing.T) {
	if _, err := Parse("frobnicate 1 2 3"); err == nil {
		t.Fatal("expected an error for an unknown verb")
	}
}

func TestParseScriptRejectsUnknownStream(t *testing.T) {
	if _, err := Parse("setStream bogus 10 kg - -"); err == nil {
		t.Fatal("expected an error for an unknown stream")
	}
}

func TestParseScriptRejectsWrongArgCount(t *testing.T) {
	if _, err := Parse("setStream manufacture 10 kg"); err == nil {
		t.Fatal("expected an error for a missing year range")
	}
}
