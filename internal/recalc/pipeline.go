package recalc

import (
	"fmt"

	"github.com/example/mpsim/internal/stream"
)

// Pipeline is an ordered sequence of strategies. Builder enforces the
// one-initial-strategy rule; a Pipeline literal is not checked. Within
// a single verb's recalculation, strategies run in list order with fully
// synchronous semantics (spec §4.5's ordering guarantee).
type Pipeline []Strategy

// Run executes every strategy in order against key, short-circuiting on the
// first error.
func (p Pipeline) Run(kit Kit, key stream.Key, yearsElapsed int) error {
	for _, s := range p {
		if err := s.Execute(kit, key, yearsElapsed); err != nil {
			return err
		}
	}
	return nil
}

// Builder assembles a Pipeline, forbidding more than one "initial" strategy
// (PopulationChangeRecalc, RetireRecalc) while permitting any number of
// "propagate" followups (SalesRecalc, ConsumptionRecalc,
// RechargeEmissionsRecalc, EolEmissionsRecalc) — per the design note on
// pipeline composition.
type Builder struct {
	steps      []Strategy
	hasInitial bool
}

// NewBuilder constructs an empty pipeline builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Add appends s to the pipeline under construction. It returns an error if
// s is an initial-role strategy and one has already been added.
func (b *Builder) Add(s Strategy) error {
	if kindRole[s.Kind] == roleInitial {
		if b.hasInitial {
			return fmt.Errorf("recalc: pipeline already has an initial strategy; cannot add a second %s", s.Kind)
		}
		b.hasInitial = true
	}
	b.steps = append(b.steps, s)
	return nil
}

// Build returns the assembled Pipeline.
func (b *Builder) Build() Pipeline {
	out := make(Pipeline, len(b.steps))
	copy(out, b.steps)
	return out
}
