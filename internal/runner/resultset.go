package runner

import (
	"github.com/example/mpsim/internal/engineerr"
	"github.com/example/mpsim/internal/result"
)

// JobResult is one (scenario, trial) engine's outcome: every row it
// produced across its year range, or the error that aborted it. A failed
// job never panics the sweep — its rows (if any were collected before the
// failing verb) and its error both survive in the ResultSet.
type JobResult struct {
	Scenario string
	Trial    int
	Rows     []result.Row
	Err      error
}

// ErrorKind returns the engineerr.Kind of the job's failure, or "" if the
// job succeeded or failed with a non-engineerr error.
func (jr JobResult) ErrorKind() engineerr.Kind {
	var engErr *engineerr.Error
	if jr.Err == nil {
		return ""
	}
	if e, ok := jr.Err.(*engineerr.Error); ok {
		engErr = e
	}
	if engErr == nil {
		return ""
	}
	return engErr.Kind
}

// ResultSet aggregates every job's outcome from one Runner.Run call.
type ResultSet struct {
	Jobs []JobResult
}

// Rows flattens every succeeded-and-failed job's collected rows into one
// slice, in job order, suitable for result.WriteCSV.
func (rs ResultSet) Rows() []result.Row {
	var rows []result.Row
	for _, j := range rs.Jobs {
		rows = append(rows, j.Rows...)
	}
	return rows
}

// Errors returns every job that failed, in job order.
func (rs ResultSet) Errors() []JobResult {
	var failed []JobResult
	for _, j := range rs.Jobs {
		if j.Err != nil {
			failed = append(failed, j)
		}
	}
	return failed
}
