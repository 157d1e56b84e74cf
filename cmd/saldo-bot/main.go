package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Frenkcardi87/saldo-bot/internal/config"
	"github.com/Frenkcardi87/saldo-bot/internal/database"
	"github.com/Frenkcardi87/saldo-bot/internal/flow"
	"github.com/Frenkcardi87/saldo-bot/internal/handlers"
	"github.com/Frenkcardi87/saldo-bot/internal/logger"
	"github.com/Frenkcardi87/saldo-bot/internal/session"
	"github.com/Frenkcardi87/saldo-bot/internal/store"
	"github.com/Frenkcardi87/saldo-bot/internal/telegram"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("saldo-bot: %v", err)
	}
}

func run() error {
	started := time.Now()

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}

	if err := logger.Init(logger.Options{
		Level:   cfg.Logging.Level,
		Format:  cfg.Logging.Format,
		Dir:     cfg.Logging.Dir,
		File:    cfg.Logging.File,
		Profile: cfg.Logging.Profile,
	}); err != nil {
		return err
	}
	defer func() {
		if err := logger.Shutdown(); err != nil {
			log.Printf("logger shutdown: %v", err)
		}
	}()

	db, err := database.Connect(cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := database.RunMigrations(cfg.Database); err != nil {
		return err
	}

	bot, err := telegram.New(cfg)
	if err != nil {
		return err
	}

	st := store.New(db)
	msg := telegram.NewMessenger(bot.Telebot())
	drafts := session.NewManager()

	gate := flow.NewGate(st, msg, cfg, cfg.Telegram.AdminIDs)
	recharge := flow.NewRecharge(drafts, st, st, st, msg,
		cfg.Telegram.AdminIDs, cfg.Wallet.Slots, cfg.Wallet.MaxNoteLen)
	decision := flow.NewDecision(st, st, st, msg, cfg)
	admin := flow.NewAdmin(st, msg, cfg, cfg.Wallet.AllowNegative, cfg.Wallet.Slots)

	handlers.Register(bot, handlers.Deps{
		Config:    cfg,
		Store:     st,
		Drafts:    drafts,
		Messenger: msg,
		Gate:      gate,
		Recharge:  recharge,
		Decision:  decision,
		Admin:     admin,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger.Info(ctx, "app", "ready",
		slog.Duration("startup", logger.RoundMS(time.Since(started))),
	)

	err = bot.Run(ctx)
	logger.Info(context.Background(), "app", "shutdown")
	return err
}
