package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"net/netip"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/evanofslack/cloudflare-ddns/internal/config"
	"github.com/evanofslack/cloudflare-ddns/internal/logger"
	"github.com/evanofslack/cloudflare-ddns/internal/metrics"
	"github.com/evanofslack/cloudflare-ddns/internal/provider/cloudflare"
	"github.com/evanofslack/cloudflare-ddns/internal/reconcile"
	"github.com/evanofslack/cloudflare-ddns/internal/resolver"
)

func main() {
	if err := run(); err != nil {
		slog.Error("Service failed", "error", err)
		os.Exit(1)
	}
}

// run carries the whole service lifecycle so deferred cleanup (log file,
// cancellation) runs on every exit path; main exits exactly once.
func run() error {
	configPath := flag.String("config", "config.yaml", "path to config file")
	once := flag.Bool("once", false, "run a single reconciliation cycle and exit")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	closeLog, err := logger.Configure(cfg.Log.Level, cfg.Log.Env, cfg.Log.File)
	if err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}
	defer closeLog()

	// Initialize metrics
	metrics := metrics.New(true)

	// Set up HTTP server for metrics
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())

	server := &http.Server{
		Addr:    cfg.MetricsAddr,
		Handler: mux,
	}

	// Start http server in background
	go func() {
		slog.Info("Starting metrics server", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Metrics server failed", "error", err)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ipResolver := resolver.New(cfg.Resolver.Endpoints, metrics)
	targets := reconcile.TargetsFromConfig(cfg.Targets)

	engine, err := reconcile.NewEngine(targets, cloudflare.Factory(metrics), metrics)
	if err != nil {
		return fmt.Errorf("initialize reconcile engine: %w", err)
	}

	if *once {
		results, err := performCycle(ctx, ipResolver, engine, metrics, cfg.Retry)
		shutdownServer(server)
		if err != nil {
			return fmt.Errorf("cycle failed: %w", err)
		}
		if failed := results.Failed(); failed > 0 {
			return fmt.Errorf("%d of %d targets failed", failed, len(results))
		}
		return nil
	}

	slog.Info("Starting cloudflare-ddns service", "targets", len(targets), "interval", cfg.Interval)

	wg := &sync.WaitGroup{}
	wg.Add(1)
	go runReconcileLoop(ctx, wg, ipResolver, engine, metrics, cfg)

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	slog.Info("Shutdown signal received")
	cancel()

	shutdownServer(server)

	// Wait for reconcile loop to finish
	wg.Wait()
	slog.Info("Service shutdown complete")
	return nil
}

func runReconcileLoop(ctx context.Context, wg *sync.WaitGroup, ipResolver resolver.Resolver, engine reconcile.Engine, metrics *metrics.Metrics, cfg *config.Config) {
	defer wg.Done()
	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	for {
		if _, err := performCycle(ctx, ipResolver, engine, metrics, cfg.Retry); err != nil {
			slog.Error("Cycle failed, waiting for next interval", "error", err)
		}

		select {
		case <-ticker.C:
			continue
		case <-ctx.Done():
			slog.Info("Stopping reconcile loop")
			return
		}
	}
}

// performCycle resolves the public IP once, retrying within the cycle per the
// retry policy, then fans it out over all targets. A cycle whose IP
// resolution fails touches no target.
func performCycle(ctx context.Context, ipResolver resolver.Resolver, engine reconcile.Engine, metrics *metrics.Metrics, retry config.Retry) (reconcile.Results, error) {
	slog.Info("Starting reconciliation cycle")
	start := time.Now()
	defer func() {
		metrics.SetCycleDuration(time.Since(start))
	}()

	ip, err := resolveWithRetry(ctx, ipResolver, retry)
	if err != nil {
		metrics.IncCycleRun(false)
		return nil, fmt.Errorf("resolve public IP: %w", err)
	}
	slog.Info("Resolved public IP", "ip", ip.String())

	results := engine.ReconcileAll(ctx, ip)

	slog.Info("Cycle completed",
		"updated", results.Updated(),
		"failed", results.Failed(),
		"targets", len(results))
	metrics.IncCycleRun(results.Failed() == 0)

	return results, nil
}

func resolveWithRetry(ctx context.Context, ipResolver resolver.Resolver, retry config.Retry) (netip.Addr, error) {
	var ip netip.Addr

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = retry.InitialBackoff
	policy.MaxInterval = retry.MaxBackoff

	attempts := uint64(0)
	if retry.MaxAttempts > 1 {
		attempts = uint64(retry.MaxAttempts - 1)
	}

	err := backoff.Retry(func() error {
		var err error
		ip, err = ipResolver.Resolve(ctx)
		return err
	}, backoff.WithContext(backoff.WithMaxRetries(policy, attempts), ctx))

	return ip, err
}

func shutdownServer(server *http.Server) {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Metrics server shutdown error", "error", err)
	}
}
