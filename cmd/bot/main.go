package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mymmrac/telego"

	"gatekeeper-bot/internal/access"
	"gatekeeper-bot/internal/bot"
	"gatekeeper-bot/internal/config"
	"gatekeeper-bot/internal/database"
	"gatekeeper-bot/internal/notify"
	"gatekeeper-bot/internal/payment"
	"gatekeeper-bot/internal/subscription"
	"gatekeeper-bot/internal/tariff"
	"gatekeeper-bot/internal/wayforpay"
	"gatekeeper-bot/internal/worker"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg := config.LoadConfig()

	db, err := database.ConnectPostgres(cfg)
	if err != nil {
		logger.Error("could not connect to database", "error", err)
		os.Exit(1)
	}
	logger.Info("database connection established")

	rdb, err := database.ConnectRedis(cfg)
	if err != nil {
		logger.Error("could not connect to redis", "error", err)
		os.Exit(1)
	}
	logger.Info("redis connection established")

	tgBot, err := telego.NewBot(cfg.BotToken)
	if err != nil {
		logger.Error("could not create telegram bot", "error", err)
		os.Exit(1)
	}

	catalog := tariff.DefaultCatalog()
	payments := wayforpay.NewClient(
		cfg.MerchantAccount,
		cfg.MerchantSecret,
		cfg.MerchantPassword,
		cfg.MerchantDomain,
		cfg.BaseWebhookURL+cfg.WebhookPath,
	)

	store := subscription.NewGormStore(db)
	enforcer := access.NewChannelEnforcer(tgBot, cfg.ChannelID, logger.With("component", "access"))
	notifier, err := notify.NewTelegramNotifier(tgBot, cfg.AdminID, logger.With("component", "notify"))
	if err != nil {
		logger.Error("notification catalog incomplete", "error", err)
		os.Exit(1)
	}
	ledger := subscription.NewLedger(store, enforcer, notifier, payments, logger.With("component", "ledger"))

	webhook := payment.NewHandler(cfg.MerchantSecret, catalog, ledger, notifier, logger.With("component", "webhook"))
	router := payment.NewRouter(webhook, cfg.WebhookPath, cfg.WebhookAllowedCIDRs, logger.With("component", "webhook"))

	checker := worker.NewChecker(store, ledger, notifier, worker.NewRedisFlags(rdb),
		cfg.SweepInterval, logger.With("component", "sweep"))

	ui := bot.New(tgBot, payments, ledger, store, catalog, cfg.AdminID, logger.With("component", "bot"))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go checker.Start(ctx)

	go func() {
		if err := ui.Start(ctx); err != nil {
			logger.Error("bot stopped", "error", err)
			stop()
		}
	}()

	server := &http.Server{
		Addr:    ":" + cfg.ListenPort,
		Handler: router,
	}
	go func() {
		logger.Info("webhook server listening", "port", cfg.ListenPort, "path", cfg.WebhookPath)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("webhook server failed", "error", err)
			stop()
		}
	}()

	logger.Info("service started")
	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("webhook server shutdown failed", "error", err)
	}
	// Let in-flight payment applications land before the process exits.
	webhook.Wait()
	logger.Info("service stopped")
}
