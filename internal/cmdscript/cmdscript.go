// Package cmdscript implements the line-oriented command script grammar
// SPEC_FULL.md's deployment-shape expansion describes as a literal
// stand-in transport format: one verb per line, whitespace-separated
// tokens, not QubecTalk. Both cmd/mpsim (reading a script file directly)
// and cmd/mpsim-worker (reading a script embedded in a NATS request body)
// parse against this same grammar.
package cmdscript

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/example/mpsim/internal/engine"
	"github.com/example/mpsim/internal/stream"
	"github.com/example/mpsim/internal/unit"
)

// LineError reports a script parse failure at a specific line, independent
// of any engineerr.Error a later Apply call might produce for the same
// line once it reaches the engine.
type LineError struct {
	line int
	err  error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("line %d: %v", e.line, e.err)
}

func (e *LineError) Unwrap() error { return e.err }

// Parse reads the line-oriented command script described in
// SPEC_FULL.md's deployment-shape expansion: one verb per line,
// whitespace-separated tokens, "#" starting a comment, "-" standing in for
// an absent year bound or displacement target. It is a literal stand-in
// transport format, not a QubecTalk parser.
func Parse(src string) ([]engine.Command, error) {
	var commands []engine.Command
	for i, raw := range strings.Split(src, "\n") {
		lineNum := i + 1
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		tokens := strings.Fields(line)
		cmd, err := parseLine(tokens)
		if err != nil {
			return nil, &LineError{line: lineNum, err: err}
		}
		commands = append(commands, cmd)
	}
	return commands, nil
}

func parseLine(tokens []string) (engine.Command, error) {
	verb := tokens[0]
	args := tokens[1:]

	switch verb {
	case "setStanza":
		return parseScopeVerb(engine.VerbSetStanza, args)
	case "setApplication":
		return parseScopeVerb(engine.VerbSetApplication, args)
	case "setSubstance":
		return parseScopeVerb(engine.VerbSetSubstance, args)
	case "incrementYear":
		if len(args) != 0 {
			return engine.Command{}, fmt.Errorf("incrementYear takes no arguments")
		}
		return engine.Command{Verb: engine.VerbIncrementYear, Range: engine.Always}, nil
	case "setStream":
		return parseStreamValueVerb(engine.VerbSetStream, args)
	case "changeStream":
		return parseStreamValueVerb(engine.VerbChangeStream, args)
	case "setInitialCharge":
		return parseStreamValueVerb(engine.VerbSetInitialCharge, args)
	case "cap":
		return parseCapFloorVerb(engine.VerbCap, args)
	case "floor":
		return parseCapFloorVerb(engine.VerbFloor, args)
	case "replace":
		return parseReplaceVerb(args)
	case "recharge":
		return parseRechargeVerb(args)
	case "recycle":
		return parseRecycleVerb(args)
	case "retire":
		return parseRetireVerb(args)
	case "equals":
		return parseEqualsVerb(args)
	default:
		return engine.Command{}, fmt.Errorf("unknown verb %q", verb)
	}
}

func parseScopeVerb(verb engine.Verb, args []string) (engine.Command, error) {
	if len(args) != 1 {
		return engine.Command{}, fmt.Errorf("%s takes exactly one argument (name)", verb.String())
	}
	return engine.Command{Verb: verb, Name: args[0]}, nil
}

// parseStreamValueVerb handles the fixed "STREAM MAGNITUDE UNIT MINYEAR
// MAXYEAR" shape shared by setStream, changeStream, and setInitialCharge.
func parseStreamValueVerb(verb engine.Verb, args []string) (engine.Command, error) {
	if len(args) != 5 {
		return engine.Command{}, fmt.Errorf("%s requires STREAM MAGNITUDE UNIT MINYEAR MAXYEAR", verb.String())
	}
	s, err := parseStreamName(args[0])
	if err != nil {
		return engine.Command{}, err
	}
	value, err := unit.NewFromString(args[1], args[2])
	if err != nil {
		return engine.Command{}, err
	}
	yr, err := parseYearBounds(args[3], args[4])
	if err != nil {
		return engine.Command{}, err
	}
	return engine.Command{Verb: verb, Stream: s, Value: value, Range: yr}, nil
}

// parseCapFloorVerb handles "STREAM MAGNITUDE UNIT DISPLACE MINYEAR MAXYEAR".
func parseCapFloorVerb(verb engine.Verb, args []string) (engine.Command, error) {
	if len(args) != 6 {
		return engine.Command{}, fmt.Errorf("%s requires STREAM MAGNITUDE UNIT DISPLACE MINYEAR MAXYEAR", verb.String())
	}
	s, err := parseStreamName(args[0])
	if err != nil {
		return engine.Command{}, err
	}
	value, err := unit.NewFromString(args[1], args[2])
	if err != nil {
		return engine.Command{}, err
	}
	displace, err := parseDisplacement(args[3])
	if err != nil {
		return engine.Command{}, err
	}
	yr, err := parseYearBounds(args[4], args[5])
	if err != nil {
		return engine.Command{}, err
	}
	return engine.Command{Verb: verb, Stream: s, Value: value, Displace: displace, Range: yr}, nil
}

// parseReplaceVerb handles "STREAM MAGNITUDE UNIT OTHERSUBSTANCE MINYEAR MAXYEAR".
func parseReplaceVerb(args []string) (engine.Command, error) {
	if len(args) != 6 {
		return engine.Command{}, fmt.Errorf("replace requires STREAM MAGNITUDE UNIT OTHERSUBSTANCE MINYEAR MAXYEAR")
	}
	s, err := parseStreamName(args[0])
	if err != nil {
		return engine.Command{}, err
	}
	value, err := unit.NewFromString(args[1], args[2])
	if err != nil {
		return engine.Command{}, err
	}
	yr, err := parseYearBounds(args[4], args[5])
	if err != nil {
		return engine.Command{}, err
	}
	return engine.Command{Verb: engine.VerbReplace, Stream: s, Value: value, OtherSubstance: args[3], Range: yr}, nil
}

// parseRechargeVerb handles "RATEPCT MAGNITUDE UNIT MINYEAR MAXYEAR".
func parseRechargeVerb(args []string) (engine.Command, error) {
	if len(args) != 5 {
		return engine.Command{}, fmt.Errorf("recharge requires RATEPCT MAGNITUDE UNIT MINYEAR MAXYEAR")
	}
	rate, err := decimal.NewFromString(args[0])
	if err != nil {
		return engine.Command{}, fmt.Errorf("invalid recharge rate %q: %w", args[0], err)
	}
	intensity, err := unit.NewFromString(args[1], args[2])
	if err != nil {
		return engine.Command{}, err
	}
	yr, err := parseYearBounds(args[3], args[4])
	if err != nil {
		return engine.Command{}, err
	}
	return engine.Command{
		Verb:              engine.VerbRecharge,
		RechargeRatePct:   rate,
		RechargeIntensity: intensity,
		Range:             yr,
	}, nil
}

// parseRecycleVerb handles "RECOVERYMAG RECOVERYUNIT YIELDMAG YIELDUNIT
// DISPLACEPCT MINYEAR MAXYEAR".
func parseRecycleVerb(args []string) (engine.Command, error) {
	if len(args) != 7 {
		return engine.Command{}, fmt.Errorf("recycle requires RECOVERYMAG RECOVERYUNIT YIELDMAG YIELDUNIT DISPLACEPCT MINYEAR MAXYEAR")
	}
	recovery, err := unit.NewFromString(args[0], args[1])
	if err != nil {
		return engine.Command{}, err
	}
	yieldRate, err := unit.NewFromString(args[2], args[3])
	if err != nil {
		return engine.Command{}, err
	}
	displacePct, err := decimal.NewFromString(args[4])
	if err != nil {
		return engine.Command{}, fmt.Errorf("invalid recycle displacement percent %q: %w", args[4], err)
	}
	yr, err := parseYearBounds(args[5], args[6])
	if err != nil {
		return engine.Command{}, err
	}
	return engine.Command{
		Verb:            engine.VerbRecycle,
		RecoveryRate:    recovery,
		YieldRate:       yieldRate,
		DisplacementPct: displacePct,
		Range:           yr,
	}, nil
}

// parseRetireVerb handles "RATEPCT MINYEAR MAXYEAR".
func parseRetireVerb(args []string) (engine.Command, error) {
	if len(args) != 3 {
		return engine.Command{}, fmt.Errorf("retire requires RATEPCT MINYEAR MAXYEAR")
	}
	rate, err := decimal.NewFromString(args[0])
	if err != nil {
		return engine.Command{}, fmt.Errorf("invalid retirement rate %q: %w", args[0], err)
	}
	yr, err := parseYearBounds(args[1], args[2])
	if err != nil {
		return engine.Command{}, err
	}
	return engine.Command{Verb: engine.VerbRetire, RetirementRatePct: rate, Range: yr}, nil
}

// parseEqualsVerb handles "MAGNITUDE UNIT MINYEAR MAXYEAR".
func parseEqualsVerb(args []string) (engine.Command, error) {
	if len(args) != 4 {
		return engine.Command{}, fmt.Errorf("equals requires MAGNITUDE UNIT MINYEAR MAXYEAR")
	}
	value, err := unit.NewFromString(args[0], args[1])
	if err != nil {
		return engine.Command{}, err
	}
	yr, err := parseYearBounds(args[2], args[3])
	if err != nil {
		return engine.Command{}, err
	}
	return engine.Command{Verb: engine.VerbEquals, EqualsIntensity: value, Range: yr}, nil
}

func parseStreamName(tok string) (stream.Name, error) {
	name := stream.Name(tok)
	if !stream.Valid(name) {
		return "", fmt.Errorf("unknown stream %q", tok)
	}
	return name, nil
}

// parseDisplacement parses "-" (no displacement), "stream:NAME" (same
// substance, sibling stream), or "substance:NAME" (cross-substance, into
// the other substance's manufacture stream).
func parseDisplacement(tok string) (*engine.Displacement, error) {
	if tok == "-" {
		return nil, nil
	}
	prefix, name, ok := strings.Cut(tok, ":")
	if !ok || name == "" {
		return nil, fmt.Errorf("invalid displacement %q, want stream:NAME, substance:NAME, or -", tok)
	}
	switch prefix {
	case "stream":
		s, err := parseStreamName(name)
		if err != nil {
			return nil, err
		}
		return &engine.Displacement{Stream: s}, nil
	case "substance":
		return &engine.Displacement{Substance: name}, nil
	default:
		return nil, fmt.Errorf("invalid displacement prefix %q, want stream or substance", prefix)
	}
}

// parseYearBounds parses the trailing MINYEAR MAXYEAR token pair "-" stands
// in for an absent bound, matching engine.ParseYearMatcher's empty-string
// convention.
func parseYearBounds(minTok, maxTok string) (engine.YearMatcher, error) {
	return engine.ParseYearMatcher(unbound(minTok), unbound(maxTok))
}

func unbound(tok string) string {
	if tok == "-" {
		return ""
	}
	return tok
}
