// Package flow implements the recharge-request state machine, the admin
// decision protocol and the registration gate. Controllers talk to Telegram
// only through the Messenger contract and to PostgreSQL only through the
// store contracts, so the protocol logic is testable in isolation.
package flow

import (
	"context"
	"errors"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/Frenkcardi87/saldo-bot/internal/logger"
	"github.com/Frenkcardi87/saldo-bot/internal/store"
)

var (
	// ErrSequence reports an input that does not match the draft's current
	// step, typically a duplicate or out-of-order button press on a stale
	// keyboard. The draft is left untouched.
	ErrSequence = errors.New("sequence not valid")
	// ErrUnknownSlot reports a slot outside the configured set.
	ErrUnknownSlot = errors.New("unknown slot")
	// ErrUnauthorized reports a decision attempted by a non-admin.
	ErrUnauthorized = errors.New("actor is not an administrator")
	// ErrNotApproved reports a user still waiting behind the registration gate.
	ErrNotApproved = errors.New("user awaiting approval")
)

// Button is one inline keyboard control. Data round-trips through the
// transport unchanged and is parsed back by the decision controllers.
type Button struct {
	Text string
	Data string
}

// MessageRef locates a previously sent message for later edits.
type MessageRef struct {
	ChatID    int64
	MessageID string
}

// Messenger is the outbound messaging collaborator. Each keyboard argument
// is one row of buttons. Implementations may fail; callers decide whether a
// failure is fatal to the operation (in this package it never is, except for
// prompts whose loss aborts only the current interaction).
type Messenger interface {
	SendText(ctx context.Context, chatID int64, text string, keyboard ...[]Button) error
	SendPhoto(ctx context.Context, chatID int64, photoFileID, caption string, keyboard ...[]Button) (MessageRef, error)
	EditCaption(ctx context.Context, ref MessageRef, caption string, keyboard ...[]Button) error
}

// UserStore is the persistence contract for users and slot balances.
type UserStore interface {
	EnsureUser(ctx context.Context, info store.UserInfo) (store.User, bool, error)
	UserByID(ctx context.Context, id int64) (store.User, error)
	SetApproved(ctx context.Context, id int64, approved bool) error
	Balance(ctx context.Context, userID int64, slot int) (decimal.Decimal, error)
	Balances(ctx context.Context, userID int64, slots []int) ([]store.SlotBalance, error)
	ApplyDelta(ctx context.Context, userID int64, slot int, delta decimal.Decimal, reason string, adminID int64, allowNegative bool) (decimal.Decimal, decimal.Decimal, error)
}

// RequestStore is the persistence contract for the recharge-request ledger.
type RequestStore interface {
	CreateRequest(ctx context.Context, in store.CreateRequestInput) (store.RechargeRequest, error)
	RequestByID(ctx context.Context, id int64) (store.RechargeRequest, error)
	PendingSum(ctx context.Context, userID int64, slot int) (decimal.Decimal, error)
	PendingRequests(ctx context.Context) ([]store.RechargeRequest, error)
	Decide(ctx context.Context, requestID int64, approve bool, adminID int64) (store.DecideResult, error)
}

// NotificationStore is the persistence contract for the fan-out registry.
type NotificationStore interface {
	RecordNotification(ctx context.Context, requestID, adminChatID int64, messageID string) error
	NotificationsByRequest(ctx context.Context, requestID int64) ([]store.AdminNotification, error)
}

// Authorizer answers the static "is this identity an administrator" test.
type Authorizer interface {
	IsAdmin(id int64) bool
}

// bestEffort runs an outbound call whose failure must never propagate:
// delivery failures degrade notification completeness, not ledger state.
func bestEffort(ctx context.Context, action string, fn func() error) {
	if err := fn(); err != nil {
		logger.Warn(ctx, "flow", "notify.fail",
			slog.String("action", action),
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
		)
	}
}
