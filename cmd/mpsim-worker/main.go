// Command mpsim-worker hosts engines behind the request/response worker
// protocol from SPEC_FULL.md §5/§4.9: it subscribes to a NATS subject,
// drives one Runner invocation per request's command script, and publishes
// the §6 envelope back to the requester, optionally with a signed
// provenance manifest sent in a reply header beside the unchanged envelope.
package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/example/mpsim/internal/cache"
	"github.com/example/mpsim/internal/config"
	"github.com/example/mpsim/internal/engineerr"
	"github.com/example/mpsim/internal/logging"
	"github.com/example/mpsim/internal/observability"
	"github.com/example/mpsim/internal/result"
	"github.com/example/mpsim/internal/runner"
	"github.com/example/mpsim/internal/tracing"
	"github.com/example/mpsim/internal/transport"
)

// healthAddr is the address the worker's /health, /health/live,
// /health/ready, and /metrics endpoints bind to.
const healthAddr = ":8089"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "mpsim-worker: configuration error: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(logging.Config{
		Level:       parseWorkerLogLevel(cfg.Observability.LogLevel),
		Format:      logging.Format(cfg.Observability.LogFormat),
		ServiceName: cfg.Observability.ServiceName,
		Environment: cfg.Env,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	healthChecker := observability.NewHealthChecker()

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

	promHandler := observability.NewPrometheusHandler()
	if cfg.Observability.EnableMetrics {
		metricsProvider, err := observability.NewMetricsProvider(ctx, observability.Config{
			ServiceName:  cfg.Observability.ServiceName,
			OTLPEndpoint: cfg.Observability.OTLPEndpoint,
			Environment:  cfg.Env,
		})
		if err != nil {
			logger.Warn("metrics exporter not initialized", "error", err)
		} else {
			defer metricsProvider.Shutdown(ctx)
		}
	}

	if cfg.Cache.Enabled {
		redisCache, err := cache.NewRedis(cache.Config{
			Host:     cfg.Cache.Host,
			Port:     cfg.Cache.Port,
			DB:       cfg.Cache.DB,
			Password: cfg.Cache.Password,
		}, logger)
		if err != nil {
			logger.Error("cache connection failed", "error", err)
			os.Exit(1)
		}
		defer redisCache.Close()
		healthChecker.RegisterCheck("cache", redisHealthCheck(redisCache))
	}

	natsConn, err := nats.Connect(cfg.Transport.NATSURL, nats.Timeout(5*time.Second))
	if err != nil {
		logger.Error("nats connection failed", "error", err)
		os.Exit(1)
	}
	defer natsConn.Close()
	healthChecker.RegisterCheck("nats", natsHealthCheck(natsConn))

	rnr := runner.New(cfg.Runner.MaxConcurrency, logger, runner.NewMetrics())
	handler := newWorkerHandler(rnr, logger)

	server, err := transport.ServeNATS(natsConn, cfg.Transport.NATSSubject, handler)
	if err != nil {
		logger.Error("failed to start nats server", "error", err)
		os.Exit(1)
	}
	defer server.Close()

	if cfg.Transport.HasManifestSecret {
		signer, err := transport.NewManifestSigner(cfg.Transport.ManifestSecret, cfg.Transport.WorkerID)
		if err != nil {
			logger.Error("failed to initialize manifest signer", "error", err)
			os.Exit(1)
		}
		server.SetSigner(signer)
	}

	healthHandler := observability.NewHandler(healthChecker, logger)
	mux := http.NewServeMux()
	healthHandler.RegisterRoutes(mux)
	mux.Handle("/metrics", promHandler.Handler())

	httpServer := &http.Server{Addr: healthAddr, Handler: mux}
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("health/metrics server failed", "error", err)
		}
	}()

	logger.Info("mpsim-worker started",
		"worker_id", cfg.Transport.WorkerID,
		"nats_url", cfg.Transport.NATSURL,
		"subject", cfg.Transport.NATSSubject,
		"health_addr", healthAddr,
	)

	<-ctx.Done()
	logger.Info("shutting down", "reason", ctx.Err())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Runner.ShutdownTimeout)
	defer shutdownCancel()
	httpServer.Shutdown(shutdownCtx)
}

// newWorkerHandler returns the transport.Handler that interprets a
// request body as a command script, runs it as a single-job Runner
// invocation, and renders the §6 response envelope.
func newWorkerHandler(rnr *runner.Runner, logger *slog.Logger) transport.Handler {
	return func(ctx context.Context, body []byte) []byte {
		commands, scenario, trial, startYear, endYear, err := decodeRequest(body)
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
			logger.Error("job failed", "scenario", scenario, "trial", trial, "error", jr.Err)
			return []byte(fmt.Sprintf("%s\n\n", formatWorkerError(jr.Err)))
		}

		var buf bytes.Buffer
		if err := result.WriteCSV(&buf, jr.Rows); err != nil {
			return []byte(fmt.Sprintf("ScriptError: writing result: %v\n\n", err))
		}
		return []byte("OK\n\n" + buf.String())
	}
}

func formatWorkerError(err error) string {
	var engErr *engineerr.Error
	if errors.As(err, &engErr) {
		return engErr.Error()
	}
	return err.Error()
}

func redisHealthCheck(c *cache.Redis) func(context.Context) observability.CheckResult {
	return func(ctx context.Context) observability.CheckResult {
		_, _, err := c.Get(ctx, "mpsim:health-probe")
		if err != nil {
			return observability.CheckResult{Name: "cache", Status: "degraded", Message: err.Error()}
		}
		return observability.CheckResult{Name: "cache", Status: "healthy"}
	}
}

func natsHealthCheck(conn *nats.Conn) func(context.Context) observability.CheckResult {
	return func(ctx context.Context) observability.CheckResult {
		if !conn.IsConnected() {
			return observability.CheckResult{Name: "nats", Status: "unhealthy", Message: conn.Status().String()}
		}
		return observability.CheckResult{Name: "nats", Status: "healthy"}
	}
}

func parseWorkerLogLevel(level string) slog.Level {
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
