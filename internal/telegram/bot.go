package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/Frenkcardi87/saldo-bot/internal/config"
	"github.com/Frenkcardi87/saldo-bot/internal/logger"
)

// Bot bundles the telebot instance with its registry and configuration.
// Handlers are registered on the Registry first; Run wires them and blocks
// until the context is cancelled.
type Bot struct {
	cfg      *config.Config
	telebot  *tele.Bot
	registry *Registry
}

// New builds the bot with the configured poller and the retrying HTTP
// client.
func New(cfg *config.Config) (*Bot, error) {
	if cfg == nil {
		return nil, fmt.Errorf("telegram: nil config")
	}

	start := time.Now()
	bot, err := tele.NewBot(tele.Settings{
		Token:  cfg.Telegram.Token,
		Poller: buildPoller(cfg),
		Client: newHTTPClient(),
	})
	if err != nil {
		return nil, fmt.Errorf("telegram: bot initialization failed: %w", err)
	}

	logger.Info(context.Background(), "tg", "bot.ready",
		slog.String("mode", cfg.Telegram.RunMode),
		slog.Duration("took", logger.RoundMS(time.Since(start))),
	)

	return &Bot{cfg: cfg, telebot: bot, registry: NewRegistry()}, nil
}

// Telebot exposes the underlying bot for collaborators such as Messenger.
func (b *Bot) Telebot() *tele.Bot {
	return b.telebot
}

// Registry exposes the handler registry for wiring.
func (b *Bot) Registry() *Registry {
	return b.registry
}

// Run wires registered handlers, publishes the command menu and serves
// updates until ctx is done.
func (b *Bot) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	reg := b.registry

	if b.cfg.Telegram.RunMode == config.RunModeLongpoll {
		if err := deleteWebhook(ctx, b.cfg.Telegram.Token); err != nil {
			logger.Warn(ctx, "tg", "delete_webhook.fail", slog.String("err", err.Error()))
		}
	}

	b.telebot.Use(RecoverMiddleware, LoggerMiddleware)
	if interval := time.Duration(b.cfg.RateLimit.IntervalMS) * time.Millisecond; interval > 0 {
		b.telebot.Use(RateLimitMiddleware(interval))
	}

	for name, cmd := range reg.Commands() {
		handler := cmd.Handler
		if cmd.AdminOnly {
			handler = AdminOnly(b.cfg, handler)
		}
		b.telebot.Handle(name, handler)
	}

	b.telebot.Handle(tele.OnCallback, func(c tele.Context) error {
		cb := c.Callback()
		if cb == nil {
			return nil
		}
		handler, ok := reg.Callback(callbackKey(cb.Data))
		if !ok {
			return reg.callbackNotFound(c)
		}
		return handler(c)
	})
	if reg.textHandler != nil {
		b.telebot.Handle(tele.OnText, reg.textHandler)
	}
	if reg.photoHandler != nil {
		b.telebot.Handle(tele.OnPhoto, reg.photoHandler)
	}

	if err := b.telebot.SetCommands(reg.MenuCommands()); err != nil {
		logger.Warn(ctx, "tg", "set_commands.fail", slog.String("err", err.Error()))
	}

	logger.Info(ctx, "tg", "wire.complete",
		slog.Int("commands", len(reg.Commands())),
		slog.Int("callbacks", len(reg.ListCallbacks())),
	)

	done := make(chan struct{})
	go func() {
		b.telebot.Start()
		close(done)
	}()

	select {
	case <-ctx.Done():
		b.telebot.Stop()
		<-done
		if errors.Is(ctx.Err(), context.Canceled) {
			return nil
		}
		return ctx.Err()
	case <-done:
		return nil
	}
}

// deleteWebhook clears a stale webhook registration before long polling
// starts; Telegram rejects getUpdates while a webhook is set.
func deleteWebhook(ctx context.Context, token string) error {
	if strings.TrimSpace(token) == "" {
		return fmt.Errorf("empty token")
	}
	url := fmt.Sprintf("https://api.telegram.org/bot%s/deleteWebhook", token)

	reqCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, url,
		strings.NewReader("drop_pending_updates=false"))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("deleteWebhook status: %s", resp.Status)
	}
	return nil
}
