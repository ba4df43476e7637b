package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/mymmrac/telego"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"cashdesk-bot/internal/bot"
	"cashdesk-bot/internal/cashdesk"
	"cashdesk-bot/internal/config"
	"cashdesk-bot/internal/database"
	"cashdesk-bot/internal/deposit"
	"cashdesk-bot/internal/lock"
	"cashdesk-bot/internal/logger"
	"cashdesk-bot/internal/notify"
	"cashdesk-bot/internal/server"
	"cashdesk-bot/internal/session"
	"cashdesk-bot/internal/store"
	"cashdesk-bot/internal/telegram"
	"cashdesk-bot/internal/worker"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Could not load configuration: %v", err)
	}

	zlog, err := logger.New(cfg.LogLevel, cfg.LogDev)
	if err != nil {
		log.Fatalf("Could not build logger: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	if err := run(cfg, zlog); err != nil {
		zlog.Error("service stopped with error", zap.Error(err))
		_ = zlog.Sync()
		os.Exit(1)
	}
	zlog.Info("service stopped")
}

func run(cfg *config.Config, zlog *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect(cfg.DB, zlog)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	rdb, err := database.ConnectRedis(ctx, cfg.Redis, zlog)
	if err != nil {
		return err
	}
	defer rdb.Close()

	api, err := telego.NewBot(cfg.BotToken)
	if err != nil {
		return err
	}
	messenger := telegram.NewMessenger(api)

	deposits := store.New(db)
	cashier := cashdesk.NewClient(cfg.Cashdesk, zlog)
	timeouts := worker.NewTimeouts(deposits, cfg.Deposit.Timeout, zlog)

	if len(cfg.Admins) == 0 {
		zlog.Warn("no admins configured, deposits cannot be accepted")
	}

	machine := deposit.NewMachine(deposit.Config{
		Store:  deposits,
		Ledger: cashier,
		Guard:  lock.NewRedis(rdb),
		Notifier: notify.NewDispatcher(messenger, notify.Config{
			Admins:        cfg.Admins,
			Channel:       cfg.NotificationChannel,
			PaymentWindow: cfg.Deposit.Timeout,
			Log:           zlog,
		}),
		Scheduler:     timeouts,
		Admins:        cfg.Admins,
		MinAmount:     cfg.Deposit.Minimum(),
		PaymentWindow: cfg.Deposit.Timeout,
		LedgerTimeout: cfg.Cashdesk.Timeout,
		Log:           zlog,
	})

	b := bot.New(bot.Config{
		Machine:         machine,
		Accounts:        deposits,
		Cashier:         cashier,
		Sessions:        session.NewStore(rdb, cfg.SessionTTL),
		Messenger:       messenger,
		Broadcaster:     notify.NewBroadcaster(messenger, cfg.BroadcastDelay, zlog),
		SupportUsername: cfg.SupportUsername,
		Log:             zlog,
	})

	allow, err := server.NewAllowList(cfg.MetricsAllowedCIDRs)
	if err != nil {
		return err
	}
	srv := server.New(cfg.HTTPAddr, allow, map[string]server.Check{
		"database": sqlDB.PingContext,
		"redis":    func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
	}, zlog)

	zlog.Info("service started", zap.Int("admins", len(cfg.Admins)), zap.Duration("payment_window", cfg.Deposit.Timeout))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return timeouts.Start(gctx, machine) })
	g.Go(func() error { return b.Run(gctx, api) })
	g.Go(func() error { return srv.Run(gctx) })
	return g.Wait()
}
