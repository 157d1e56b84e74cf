package telegram

import (
	"context"

	tele "gopkg.in/telebot.v4"

	"github.com/Frenkcardi87/saldo-bot/internal/logger"
)

const contextKey = "logger_ctx"

// storeContext attaches a request context to the update for downstream
// handlers.
func storeContext(c tele.Context, ctx context.Context) {
	if c == nil || ctx == nil {
		return
	}
	c.Set(contextKey, ctx)
}

// Ctx returns the request context built by the logging middleware. When an
// update arrives through a path the middleware did not cover, an equivalent
// context is built on the spot.
func Ctx(c tele.Context) context.Context {
	if c == nil {
		return context.Background()
	}
	if v := c.Get(contextKey); v != nil {
		if ctx, ok := v.(context.Context); ok {
			return ctx
		}
	}

	upd := c.Update()
	var chatID, userID int64
	if chat := c.Chat(); chat != nil {
		chatID = chat.ID
	}
	if user := c.Sender(); user != nil {
		userID = user.ID
	}

	ctx := context.Background()
	ctx = logger.WithRID(ctx, logger.BuildRID(upd.ID, chatID, userID))
	ctx = logger.WithUpdateMeta(ctx, upd.ID, userID, chatID)
	ctx = logger.WithLogger(ctx, logger.Component("tg"))
	storeContext(c, ctx)
	return ctx
}

// WithHandler tags the request context with the handler name.
func WithHandler(c tele.Context, handler string) context.Context {
	ctx := logger.WithHandler(Ctx(c), handler)
	storeContext(c, ctx)
	return ctx
}
