package telegram

import (
	"context"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/Frenkcardi87/saldo-bot/internal/flow"
	"github.com/Frenkcardi87/saldo-bot/internal/logger"
)

// RecoverMiddleware catches handler panics so one poisoned update cannot
// take the bot down.
func RecoverMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		defer func() {
			if r := recover(); r != nil {
				logger.Error(Ctx(c), "tg", "panic",
					slog.Any("err", r),
					slog.String("stack", string(debug.Stack())),
				)
			}
		}()
		return next(c)
	}
}

// LoggerMiddleware builds the request context (rid plus update metadata)
// and logs one receipt line per update.
func LoggerMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		upd := c.Update()
		var chatID, userID int64
		if chat := c.Chat(); chat != nil {
			chatID = chat.ID
		}
		if user := c.Sender(); user != nil {
			userID = user.ID
		}

		rid := logger.BuildRID(upd.ID, chatID, userID)
		ctx := logger.WithLogger(context.Background(), logger.Component("tg"))
		ctx = logger.WithUpdateMeta(ctx, upd.ID, userID, chatID)
		ctx = logger.WithRID(ctx, rid)
		storeContext(c, ctx)

		attrs := []slog.Attr{
			slog.Int("update_id", upd.ID),
			slog.Int64("chat_id", chatID),
			slog.Int64("user_id", userID),
		}
		switch {
		case upd.Callback != nil:
			attrs = append(attrs, slog.String("payload", logger.SanitizeLimit(callbackData(upd.Callback), 128)))
		case upd.Message != nil && c.Text() != "":
			attrs = append(attrs, slog.String("payload", logger.SanitizeLimit(c.Text(), 128)))
		}
		logger.Debug(ctx, "tg", "update.received", attrs...)

		start := time.Now()
		err := next(c)
		logger.Debug(ctx, "tg", "update.handled",
			slog.String("status", logger.Status(err)),
			slog.Duration("took", logger.RoundMS(logger.Took(start))),
		)
		return err
	}
}

// RateLimitMiddleware enforces a minimum interval between updates from the
// same user. Callback presses are exempt so button-driven flows stay snappy.
func RateLimitMiddleware(interval time.Duration) tele.MiddlewareFunc {
	var (
		lastSeen   = make(map[int64]time.Time)
		lastSeenMu sync.Mutex
	)
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			user := c.Sender()
			if user == nil || interval <= 0 || c.Callback() != nil {
				return next(c)
			}

			now := time.Now()
			lastSeenMu.Lock()
			last, seen := lastSeen[user.ID]
			if seen && now.Sub(last) < interval {
				lastSeenMu.Unlock()
				logger.Warn(Ctx(c), "tg", "rate_limit", slog.Int64("user_id", user.ID))
				return nil
			}
			lastSeen[user.ID] = now
			lastSeenMu.Unlock()
			return next(c)
		}
	}
}

// AdminOnly wraps a handler so only configured administrators reach it.
func AdminOnly(auth flow.Authorizer, handler tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		user := c.Sender()
		if user == nil || !auth.IsAdmin(user.ID) {
			logger.Warn(Ctx(c), "tg", "admin.denied",
				slog.Int64("user_id", senderID(c)),
			)
			return c.Send("Comando riservato agli admin.")
		}
		return handler(c)
	}
}

func senderID(c tele.Context) int64 {
	if user := c.Sender(); user != nil {
		return user.ID
	}
	return 0
}
