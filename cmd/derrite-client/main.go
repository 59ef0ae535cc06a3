package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"
)

import (
	"github.com/LauraMoney42/derrite-go/internal/admission"
	"github.com/LauraMoney42/derrite-go/internal/client"
	"github.com/LauraMoney42/derrite-go/internal/config"
	"github.com/LauraMoney42/derrite-go/internal/ops"
	"github.com/LauraMoney42/derrite-go/internal/pinning"
	"github.com/LauraMoney42/derrite-go/internal/pins"
	"github.com/LauraMoney42/derrite-go/internal/queue"
	"github.com/LauraMoney42/derrite-go/internal/repo"
	"github.com/LauraMoney42/derrite-go/internal/retry"
	"github.com/LauraMoney42/derrite-go/internal/transport"
)

func main() {
	confPath := flag.String("c", "configs/client.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*confPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	rootCtx, cancelRoot := context.WithCancel(context.Background())
	defer cancelRoot()

	// Pin table and validator
	registry, err := pinning.NewRegistry(cfg.Pinning)
	if err != nil {
		log.Fatalf("failed to build pin registry: %v", err)
	}
	validator := pinning.NewValidator(registry, logger)

	if cfg.PinSource.Enabled() {
		src := pins.NewHTTPSource(cfg.PinSource)
		poller := pins.NewPoller(src, registry, pins.PollerConfig{
			Interval:   cfg.PinSource.PollInterval(),
			FailPolicy: cfg.PinSource.FailPolicy,
		})
		if err := poller.SyncOnce(rootCtx); err != nil {
			if strings.EqualFold(cfg.PinSource.FailPolicy, "fail-closed") {
				log.Fatalf("failed to load pin table: %v", err)
			}
			logger.Warn("pin table pull failed, using startup pins", "error", err)
		}
		go poller.Start(rootCtx)
	}

	// Transport, optionally wrapped with per-host circuit breakers
	var exec queue.Executor = transport.NewHTTPExecutor(cfg.Client, validator, logger)
	if cfg.Breaker.Enabled {
		exec = transport.NewBreakerExecutor(exec, cfg.Breaker, logger)
	}

	// Admission window: in-process by default, Redis-backed when instances
	// share a budget
	var admitter queue.Admitter
	switch cfg.Admission.Backend {
	case "", "memory":
		admitter = admission.NewWindow(cfg.Admission)
	case "redis":
		rdb, err := repo.NewClient(cfg.Redis, logger)
		if err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		defer rdb.Close()
		admitter = admission.NewRedisWindow(rdb, "derrite", cfg.Admission, logger)
	default:
		log.Fatalf("unknown admission backend: %q", cfg.Admission.Backend)
	}

	q := queue.New(admitter, exec, retry.NewPolicy(cfg.Retry), cfg.Admission, cfg.Queue, logger)
	q.Start(rootCtx)

	api := client.New(cfg.Client.BaseURL, q, logger)

	switch flag.Arg(0) {
	case "submit":
		runSubmit(rootCtx, api)
	case "fetch":
		runFetch(rootCtx, api)
	case "", "serve":
		runServe(rootCtx, cancelRoot, cfg, registry, q, logger)
	default:
		log.Fatalf("unknown command %q (want submit, fetch or serve)", flag.Arg(0))
	}

	cancelRoot()
	<-q.Done()
}

// runSubmit reads one report as JSON from stdin and submits it.
func runSubmit(ctx context.Context, api *client.Client) {
	var req client.ReportRequest
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		log.Fatalf("failed to read report from stdin: %v", err)
	}

	resp, err := api.SubmitReport(ctx, req)
	if err != nil {
		log.Fatalf("submit failed: %v", err)
	}
	_ = json.NewEncoder(os.Stdout).Encode(resp)
}

// runFetch prints the report list as JSON.
func runFetch(ctx context.Context, api *client.Client) {
	reports, err := api.FetchReports(ctx)
	if err != nil {
		log.Fatalf("fetch failed: %v", err)
	}
	_ = json.NewEncoder(os.Stdout).Encode(reports)
}

// runServe keeps the queue and ops surface running until a signal arrives.
func runServe(ctx context.Context, cancel context.CancelFunc, cfg *config.Config, registry *pinning.Registry, q *queue.Queue, logger *slog.Logger) {
	var opsServer *ops.Server
	if cfg.Ops.HTTPAddr != "" {
		opsServer = ops.NewServer(cfg.Ops, registry, q)
		go func() {
			logger.Info("ops server listening", "addr", cfg.Ops.HTTPAddr)
			if err := opsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("ops server failed: %v", err)
			}
		}()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case <-ctx.Done():
	}
	logger.Info("shutting down")
	cancel()

	if opsServer != nil {
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancelShutdown()
		if err := opsServer.Shutdown(shutdownCtx); err != nil {
			log.Fatalf("ops server shutdown failed: %v", err)
		}
	}
}
