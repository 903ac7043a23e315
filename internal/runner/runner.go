package runner

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/example/mpsim/internal/engine"
	"github.com/example/mpsim/internal/result"
	"github.com/example/mpsim/internal/stream"
)

// Runner drives one Engine per (scenario, trial) job, bounded by a worker
// pool, and collects each engine's ResultSerializer rows into a ResultSet.
// Every engine instance is exclusively owned by the goroutine that runs it
// for its lifetime; Runner never shares a StreamKeeper across jobs.
type Runner struct {
	maxConcurrency int
	logger         *slog.Logger
	metrics        *Metrics
}

// New constructs a Runner. maxConcurrency bounds how many (scenario, trial)
// engines run at once; values <= 0 are treated as 1.
func New(maxConcurrency int, logger *slog.Logger, metrics *Metrics) *Runner {
	if maxConcurrency <= 0 {
		maxConcurrency = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		maxConcurrency: maxConcurrency,
		logger:         logger,
		metrics:        metrics,
	}
}

// Run executes every job, up to maxConcurrency at a time, and returns the
// aggregated ResultSet once all jobs have finished or ctx is canceled. A
// canceled context stops scheduling new jobs but lets in-flight jobs run to
// completion across their whole year range (the engine itself has no
// cancellation points, per spec's single-threaded/synchronous design).
func (r *Runner) Run(ctx context.Context, jobs []Job) ResultSet {
	results := make([]JobResult, len(jobs))
	sem := make(chan struct{}, r.maxConcurrency)
	var wg sync.WaitGroup

	for i, job := range jobs {
		select {
		case <-ctx.Done():
			results[i] = JobResult{Scenario: job.Scenario, Trial: job.Trial, Err: ctx.Err()}
			continue
		default:
		}

		i, job := i, job
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			results[i] = r.runJob(ctx, job)
		}()
	}
	wg.Wait()

	return ResultSet{Jobs: results}
}

// runJob drives a single (scenario, trial) engine across its year range,
// serializing every (application, substance) row at the end of each year.
// On a verb error it stops advancing that engine and records the error on
// the JobResult; rows collected for prior years are preserved.
func (r *Runner) runJob(ctx context.Context, job Job) JobResult {
	logger := r.logger.With("scenario", job.Scenario, "trial", job.Trial)
	if job.Seed != nil {
		logger = logger.With("seed", *job.Seed)
	}
	start := time.Now()
	r.metrics.RecordEngineStart(ctx, job.Scenario)

	e := engine.New(job.StartYear)
	serializer := result.New(e.Keeper())

	jr := JobResult{Scenario: job.Scenario, Trial: job.Trial}

	for year := job.StartYear; year <= job.EndYear; year++ {
		for _, cmd := range job.Registrations {
			if err := e.Apply(cmd); err != nil {
				logger.Error("verb failed, aborting engine", "year", year, "verb", cmd.Verb.String(), "error", err)
				jr.Err = err
				r.metrics.RecordEngineEnd(ctx, job.Scenario, string(jr.ErrorKind()), time.Since(start))
				return jr
			}
		}
		r.metrics.RecordVerbs(ctx, job.Scenario, len(job.Registrations))

		rows, err := r.serializeYear(serializer, job, year, e.Keeper())
		if err != nil {
			logger.Error("result serialization failed, aborting engine", "year", year, "error", err)
			jr.Err = err
			r.metrics.RecordEngineEnd(ctx, job.Scenario, string(jr.ErrorKind()), time.Since(start))
			return jr
		}
		jr.Rows = append(jr.Rows, rows...)
		r.metrics.RecordYear(ctx, job.Scenario)

		if year < job.EndYear {
			if err := e.Apply(engine.Command{Verb: engine.VerbIncrementYear, Range: engine.Always}); err != nil {
				logger.Error("incrementYear failed, aborting engine", "year", year, "error", err)
				jr.Err = err
				r.metrics.RecordEngineEnd(ctx, job.Scenario, string(jr.ErrorKind()), time.Since(start))
				return jr
			}
		}
	}

	r.metrics.RecordEngineEnd(ctx, job.Scenario, "", time.Since(start))
	return jr
}

// serializeYear emits one Row per (application, substance) key the engine
// has touched so far. Keys without a GHG intensity set are skipped rather
// than surfaced as MissingParameter failures — not every stream in a
// scenario necessarily reaches consumption reporting (e.g. a substance
// used only as a replace() destination with no equals() of its own yet).
func (r *Runner) serializeYear(serializer *result.Serializer, job Job, year int, keeper *stream.Keeper) ([]result.Row, error) {
	var rows []result.Row
	for _, key := range keeper.Keys() {
		if !keeper.HasGhgIntensity(key) {
			continue
		}
		row, err := serializer.Row(job.Scenario, job.Trial, year, key)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}
