// Package runner drives Engine instances across the outer (scenario, trial,
// year) iteration axis: one Engine per (scenario, trial) pair, replaying a
// caller-supplied list of range-guarded verb registrations once per
// simulated year, and collecting ResultSerializer rows into a ResultSet.
//
// Runner does not interpret scenario or trial identifiers beyond recording
// them on every emitted row; sampling, RNG, and Monte Carlo looping across
// trials is the caller's responsibility.
package runner

import (
	"github.com/example/mpsim/internal/engine"
)

// Job describes one (scenario, trial) engine run: a year range to iterate
// and the verb registrations to replay at every year within it.
type Job struct {
	Scenario string
	Trial    int
	// Seed is attached to the job's log lines for provenance but never consumed
	// arithmetically — trial sampling is the caller's job.
	Seed *int64

	StartYear int
	EndYear   int

	// Registrations are applied, in order, once per simulated year. Each
	// command's own Range decides whether it is a no-op for that year, so
	// Runner replays the full list every year rather than pre-filtering it.
	Registrations []engine.Command
}
