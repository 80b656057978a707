// sendtest pushes one test message through the account pool from the command
// line, for verifying SMTP credentials without going through the admin API.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"

	"showreg/internal/config"
	"showreg/internal/dispatch"
	"showreg/internal/logging"
	"showreg/internal/mailpool"
	"showreg/internal/providers/smtp"
	"showreg/internal/store/pg"
)

func main() {
	recipient := flag.String("to", "", "recipient address (required)")
	accountID := flag.String("account", "", "force one account, no failover")
	flag.Parse()

	if *recipient == "" {
		fmt.Fprintln(os.Stderr, "usage: sendtest -to addr@example.com [-account id]")
		os.Exit(2)
	}

	_ = godotenv.Load()
	cfg := config.LoadSendTest()
	logging.Init("sendtest", cfg.LogFormat, cfg.LogLevel)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	db, err := pg.NewPool(ctx, cfg.DBDSN, pg.PoolOptions{})
	if err != nil {
		slog.Error("db connect failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	pool := mailpool.New(pg.New(db))
	if err := pool.Reload(ctx); err != nil {
		slog.Error("mail account load failed", "err", err)
		os.Exit(1)
	}

	attemptTimeout, err := time.ParseDuration(cfg.AttemptTimeout)
	if err != nil {
		slog.Error("invalid SEND_ATTEMPT_TIMEOUT", "err", err)
		os.Exit(1)
	}

	executor := &dispatch.Executor{
		Pool:      pool,
		Transport: &smtp.Client{Timeout: attemptTimeout},
	}
	out := executor.Send(ctx, smtp.Message{
		To:      *recipient,
		Subject: "Mail pool test",
		Body:    "This is a test message from the registration portal.",
	}, *accountID)

	if err := pool.FlushCounters(ctx); err != nil {
		slog.Warn("counter flush failed", "err", err)
	}

	if !out.OK {
		slog.Error("test send failed", "reason", out.Reason, "attempts", out.Attempts, "err", out.Err)
		os.Exit(1)
	}
	slog.Info("test send ok", "account", out.AccountID, "attempts", out.Attempts)
}
