package telegram

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"

	tele "gopkg.in/telebot.v4"

	"github.com/Frenkcardi87/saldo-bot/internal/logger"
)

// Command is a bot command with its handler and menu metadata.
type Command struct {
	Handler     tele.HandlerFunc
	Description string
	AdminOnly   bool
	Hidden      bool
}

// Registry holds command and callback handlers until the bot is wired.
// Callbacks are keyed by the first segment of the payload: "approve:12"
// routes to the "approve" handler, a bare "cancel" to "cancel".
type Registry struct {
	commands    map[string]Command
	callbacks   map[string]tele.HandlerFunc
	callbacksMu sync.RWMutex

	callbackNotFound tele.HandlerFunc
	textHandler      tele.HandlerFunc
	photoHandler     tele.HandlerFunc
}

// NewRegistry creates an empty Registry with a default unknown-callback
// responder.
func NewRegistry() *Registry {
	return &Registry{
		commands:  make(map[string]Command),
		callbacks: make(map[string]tele.HandlerFunc),
		callbackNotFound: func(c tele.Context) error {
			return c.Respond(&tele.CallbackResponse{Text: "Azione non disponibile"})
		},
	}
}

// RegisterCommand adds a command. Invalid or duplicate registrations are
// logged and dropped rather than failing startup.
func (r *Registry) RegisterCommand(name string, cmd Command) {
	ctx := context.Background()
	if name == "" || !strings.HasPrefix(name, "/") || cmd.Handler == nil {
		logger.Warn(ctx, "tg", "register.command.skip", slog.String("name", name))
		return
	}
	if _, exists := r.commands[name]; exists {
		logger.Warn(ctx, "tg", "register.command.duplicate", slog.String("name", name))
		return
	}
	r.commands[name] = cmd
}

// Commands returns all registered commands keyed by name.
func (r *Registry) Commands() map[string]Command {
	return r.commands
}

// MenuCommands returns the visible command list for the Telegram menu.
func (r *Registry) MenuCommands() []tele.Command {
	var list []tele.Command
	for name, cmd := range r.commands {
		if cmd.Hidden || cmd.AdminOnly {
			continue
		}
		list = append(list, tele.Command{Text: strings.TrimPrefix(name, "/"), Description: cmd.Description})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Text < list[j].Text })
	return list
}

// RegisterCallback maps a payload key to its handler.
func (r *Registry) RegisterCallback(key string, handler tele.HandlerFunc) {
	ctx := context.Background()
	if key == "" || handler == nil {
		logger.Warn(ctx, "tg", "register.callback.skip", slog.String("key", key))
		return
	}
	r.callbacksMu.Lock()
	defer r.callbacksMu.Unlock()
	if _, exists := r.callbacks[key]; exists {
		logger.Warn(ctx, "tg", "register.callback.duplicate", slog.String("key", key))
		return
	}
	r.callbacks[key] = handler
}

// Callback returns the handler for a payload key.
func (r *Registry) Callback(key string) (tele.HandlerFunc, bool) {
	r.callbacksMu.RLock()
	defer r.callbacksMu.RUnlock()
	h, ok := r.callbacks[key]
	return h, ok
}

// ListCallbacks returns sorted callback keys for diagnostics.
func (r *Registry) ListCallbacks() []string {
	r.callbacksMu.RLock()
	defer r.callbacksMu.RUnlock()
	keys := make([]string, 0, len(r.callbacks))
	for k := range r.callbacks {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// SetCallbackNotFound replaces the fallback for unknown callback keys.
func (r *Registry) SetCallbackNotFound(h tele.HandlerFunc) {
	if h != nil {
		r.callbackNotFound = h
	}
}

// SetTextHandler sets the handler for plain text messages.
func (r *Registry) SetTextHandler(h tele.HandlerFunc) {
	r.textHandler = h
}

// SetPhotoHandler sets the handler for photo messages.
func (r *Registry) SetPhotoHandler(h tele.HandlerFunc) {
	r.photoHandler = h
}

// callbackKey extracts the routing key from raw callback data. telebot
// prefixes data set through Btn helpers with "\f"; raw InlineButton data
// arrives verbatim.
func callbackKey(data string) string {
	data = strings.TrimPrefix(data, "\f")
	data = strings.TrimPrefix(data, "\\f")
	if i := strings.IndexByte(data, ':'); i >= 0 {
		return data[:i]
	}
	return data
}

// callbackData normalizes raw callback data to the token the flow
// controllers parse.
func callbackData(cb *tele.Callback) string {
	if cb == nil {
		return ""
	}
	data := strings.TrimPrefix(cb.Data, "\f")
	return strings.TrimPrefix(data, "\\f")
}
