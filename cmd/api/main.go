package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"showreg/internal/approval"
	"showreg/internal/audit"
	"showreg/internal/config"
	"showreg/internal/dispatch"
	"showreg/internal/httpapi"
	"showreg/internal/logging"
	"showreg/internal/mailpool"
	"showreg/internal/observability"
	"showreg/internal/providers/smtp"
	"showreg/internal/service"
	"showreg/internal/store/pg"
)

func main() {
	_ = godotenv.Load()

	cfg := config.LoadAPI()
	logging.Init("api", cfg.LogFormat, cfg.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := pg.NewPool(ctx, cfg.DBDSN, pg.PoolOptions{
		MaxConns:        cfg.DBPoolMaxConns,
		MinConns:        cfg.DBPoolMinConns,
		MaxConnLifetime: cfg.DBPoolMaxConnLifetime,
		MaxConnIdleTime: cfg.DBPoolMaxConnIdleTime,
	})
	if err != nil {
		slog.Error("api db connect failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	startupCtx, startupCancel := context.WithTimeout(ctx, 3*time.Second)
	defer startupCancel()
	if err := db.Ping(startupCtx); err != nil {
		slog.Error("db not reachable", "err", err)
		os.Exit(1)
	}

	observability.Register(prometheus.DefaultRegisterer)

	dataStore := pg.New(db)
	auditLog := audit.Multi{audit.Slog{}, &audit.PG{DB: db}}

	pool := mailpool.New(dataStore)
	if err := pool.Reload(startupCtx); err != nil {
		slog.Error("mail account load failed", "err", err)
		os.Exit(1)
	}
	slog.Info("mail pool loaded", "active", pool.ActiveCount())

	attemptTimeout, err := time.ParseDuration(cfg.AttemptTimeout)
	if err != nil {
		slog.Error("invalid SEND_ATTEMPT_TIMEOUT", "err", err)
		os.Exit(1)
	}
	flushEvery, err := time.ParseDuration(cfg.CounterFlushInterval)
	if err != nil {
		slog.Error("invalid COUNTER_FLUSH_INTERVAL", "err", err)
		os.Exit(1)
	}

	executor := &dispatch.Executor{
		Pool:        pool,
		Transport:   &smtp.Client{Timeout: attemptTimeout},
		MaxAttempts: cfg.MaxSendAttempts,
		Limiter:     rate.NewLimiter(rate.Limit(cfg.SMTPRatePerSecond), cfg.SMTPBurst),
	}
	machine := &approval.Machine{Store: dataStore, Audit: auditLog}
	orchestrator := &dispatch.Orchestrator{
		Store:    dataStore,
		Machine:  machine,
		Executor: executor,
		Audit:    auditLog,
		Workers:  cfg.WorkerConcurrency,
	}

	svc := &service.AdminService{
		Store:        dataStore,
		Machine:      machine,
		Pool:         pool,
		Executor:     executor,
		Orchestrator: orchestrator,
	}

	// periodic counter flush keeps the account records roughly current; the
	// in-memory pool stays authoritative while the process lives
	go func() {
		ticker := time.NewTicker(flushEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := pool.FlushCounters(ctx); err != nil {
					slog.Warn("counter flush failed", "err", err)
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	s := httpapi.New()
	api := &httpapi.API{Svc: svc}
	api.Register(s.Mux)

	s.Mux.HandleFunc("/healthz", httpapi.Healthz())
	s.Mux.HandleFunc("/readyz", httpapi.Readyz(2*time.Second, func(c context.Context) error {
		return db.Ping(c)
	}))

	handler := httpapi.Logging(httpapi.Metrics(observability.APIRequests)(s.Mux))
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: handler,
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("api shutdown", "signal", sig.String())
		cancel()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("api listening", "port", cfg.Port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("api server failed", "err", err)
		os.Exit(1)
	}

	// last flush so counter state survives the restart
	flushCtx, flushCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer flushCancel()
	if err := pool.FlushCounters(flushCtx); err != nil {
		slog.Warn("final counter flush failed", "err", err)
	}
}
