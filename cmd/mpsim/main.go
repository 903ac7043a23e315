// Command mpsim drives one Runner invocation from a line-oriented command
// script, per SPEC_FULL.md's deployment-shape expansion. It reads the
// script from a file argument or stdin, submits it to a worker handler over
// an in-process transport.Local exactly as a remote host would submit to
// cmd/mpsim-worker over NATS, and prints the §6 response envelope to
// stdout.
package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/example/mpsim/internal/cmdscript"
	"github.com/example/mpsim/internal/config"
	"github.com/example/mpsim/internal/engineerr"
	"github.com/example/mpsim/internal/logging"
	"github.com/example/mpsim/internal/result"
	"github.com/example/mpsim/internal/runner"
	"github.com/example/mpsim/internal/tracing"
	"github.com/example/mpsim/internal/transport"
)

func main() {
	scenario := flag.String("scenario", "default", "scenario label recorded on every emitted row")
	trial := flag.Int("trial", 0, "trial number recorded on every emitted row")
	startYear := flag.Int("start-year", 2025, "first simulated year, inclusive")
	endYear := flag.Int("end-year", 2035, "last simulated year, inclusive")
	scriptPath := flag.String("script", "", "path to a command script file; defaults to stdin")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "mpsim: configuration error: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(logging.Config{
		Level:       parseMpsimLogLevel(cfg.Observability.LogLevel),
		Format:      logging.Format(cfg.Observability.LogFormat),
		ServiceName: cfg.Observability.ServiceName,
		Environment: cfg.Env,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if cfg.Observability.EnableTracing {
		provider, err := tracing.Setup(tracing.Config{
			ServiceName:  cfg.Observability.ServiceName,
			OTLPEndpoint: cfg.Observability.OTLPEndpoint,
			Enabled:      true,
			Logger:       logger,
		})
		if err != nil {
			logger.Warn("tracing not initialized", "error", err)
		} else {
			defer provider.Shutdown(ctx)
		}
	}

	body, err := readScript(*scriptPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "mpsim: reading script: %v\n", err)
		os.Exit(1)
	}

	rnr := runner.New(cfg.Runner.MaxConcurrency, logger, runner.NewMetrics())
	handler := newScriptHandler(rnr, *scenario, *trial, *startYear, *endYear)

	local := transport.NewLocal(handler)
	defer local.Close()

	resp, err := local.Submit(ctx, body)
	if err != nil {
		fmt.Fprintf(os.Stderr, "mpsim: %v\n", err)
		os.Exit(1)
	}

	os.Stdout.Write(resp)
}

// newScriptHandler returns a transport.Handler that parses body as a
// command script, runs it as a single (scenario, trial) job across
// [startYear, endYear], and renders the §6 response envelope.
func newScriptHandler(rnr *runner.Runner, scenario string, trial, startYear, endYear int) transport.Handler {
	return func(ctx context.Context, body []byte) []byte {
		commands, err := cmdscript.Parse(string(body))
		if err != nil {
			return []byte(fmt.Sprintf("ScriptError: %v\n\n", err))
		}

		job := runner.Job{
			Scenario:      scenario,
			Trial:         trial,
			StartYear:     startYear,
			EndYear:       endYear,
			Registrations: commands,
		}
		rs := rnr.Run(ctx, []runner.Job{job})
		jr := rs.Jobs[0]
		if jr.Err != nil {
			return []byte(fmt.Sprintf("%s\n\n", formatJobError(jr.Err)))
		}

		var buf bytes.Buffer
		if err := result.WriteCSV(&buf, jr.Rows); err != nil {
			return []byte(fmt.Sprintf("ScriptError: writing result: %v\n\n", err))
		}
		return []byte("OK\n\n" + buf.String())
	}
}

// formatJobError renders an engine failure as the exact "<ErrorKind>:
// <message>" line spec §6 requires, or falls back to the bare error text
// for a non-engine failure (e.g. a canceled context).
func formatJobError(err error) string {
	var engErr *engineerr.Error
	if errors.As(err, &engErr) {
		return engErr.Error()
	}
	return err.Error()
}

func readScript(path string) ([]byte, error) {
	if path == "" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

func parseMpsimLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
