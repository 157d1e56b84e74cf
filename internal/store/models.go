package store

import (
	"database/sql"
	"time"

	"github.com/shopspring/decimal"
)

// Recharge request lifecycle states. Transitions are one-way:
// pending -> approved or pending -> rejected, never back.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// User is a registered Telegram identity with per-slot balances.
type User struct {
	ID        int64     `db:"id"`
	Username  string    `db:"username"`
	FirstName string    `db:"first_name"`
	LastName  string    `db:"last_name"`
	Approved  bool      `db:"approved"`
	CreatedAt time.Time `db:"created_at"`
}

// DisplayName renders the best available human-readable name.
func (u User) DisplayName() string {
	if u.Username != "" {
		return "@" + u.Username
	}
	name := u.FirstName
	if u.LastName != "" {
		if name != "" {
			name += " "
		}
		name += u.LastName
	}
	if name == "" {
		return "utente"
	}
	return name
}

// UserInfo carries the identity fields taken from an incoming update.
type UserInfo struct {
	ID        int64
	Username  string
	FirstName string
	LastName  string
}

// SlotBalance is one charging slot's balance for a user.
type SlotBalance struct {
	Slot int             `db:"slot"`
	KWH  decimal.Decimal `db:"kwh"`
}

// RechargeRequest is a user-submitted claim to deduct kWh from one slot,
// backed by photographic evidence and pending administrator decision.
type RechargeRequest struct {
	ID          int64           `db:"id"`
	UserID      int64           `db:"user_id"`
	Slot        int             `db:"slot"`
	KWH         decimal.Decimal `db:"kwh"`
	PhotoFileID string          `db:"photo_file_id"`
	Note        string          `db:"note"`
	Status      string          `db:"status"`
	CreatedAt   time.Time       `db:"created_at"`
	DecidedAt   sql.NullTime    `db:"decided_at"`
	DecidedBy   sql.NullInt64   `db:"decided_by"`
}

// CreateRequestInput is the payload for CreateRequest.
type CreateRequestInput struct {
	UserID      int64
	Slot        int
	KWH         decimal.Decimal
	PhotoFileID string
	Note        string
}

// AdminNotification records one message sent to one admin about one request.
type AdminNotification struct {
	ID          int64     `db:"id"`
	RequestID   int64     `db:"request_id"`
	AdminChatID int64     `db:"admin_chat_id"`
	MessageID   string    `db:"message_id"`
	CreatedAt   time.Time `db:"created_at"`
}

// Operation is one journal entry of a balance mutation.
type Operation struct {
	ID        int64           `db:"id"`
	UserID    int64           `db:"user_id"`
	Slot      int             `db:"slot"`
	Delta     decimal.Decimal `db:"delta_kwh"`
	Reason    string          `db:"reason"`
	AdminID   sql.NullInt64   `db:"admin_id"`
	CreatedAt time.Time       `db:"created_at"`
}

// DecideResult reports the outcome of a request decision.
type DecideResult struct {
	Request RechargeRequest
	// OldBalance and NewBalance are meaningful only for approvals.
	OldBalance decimal.Decimal
	NewBalance decimal.Decimal
}
