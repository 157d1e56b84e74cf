package flow

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/Frenkcardi87/saldo-bot/internal/kwh"
)

// Admin handles free-entry balance credits and debits issued by
// administrators outside the recharge flow.
type Admin struct {
	users         UserStore
	msg           Messenger
	auth          Authorizer
	allowNegative bool
	slots         []int
}

// NewAdmin wires the admin balance controller.
func NewAdmin(users UserStore, msg Messenger, auth Authorizer, allowNegative bool, slots []int) *Admin {
	return &Admin{users: users, msg: msg, auth: auth, allowNegative: allowNegative, slots: slots}
}

func (a *Admin) validSlot(slot int) bool {
	for _, s := range a.slots {
		if s == slot {
			return true
		}
	}
	return false
}

// Credit applies a signed delta ("4,5" or "-2") to one user/slot balance.
// Parsing matches the recharge flow except that non-positive values are
// accepted. The negative-balance policy applies when the delta is negative.
func (a *Admin) Credit(ctx context.Context, actorID, userID int64, slot int, raw string) (decimal.Decimal, decimal.Decimal, error) {
	if !a.auth.IsAdmin(actorID) {
		return decimal.Zero, decimal.Zero, ErrUnauthorized
	}
	if !a.validSlot(slot) {
		return decimal.Zero, decimal.Zero, ErrUnknownSlot
	}
	delta, err := kwh.ParseDelta(raw)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	return a.apply(ctx, actorID, userID, slot, delta, "admin_credit")
}

// Debit removes the absolute value of the given quantity from a balance.
func (a *Admin) Debit(ctx context.Context, actorID, userID int64, slot int, raw string) (decimal.Decimal, decimal.Decimal, error) {
	if !a.auth.IsAdmin(actorID) {
		return decimal.Zero, decimal.Zero, ErrUnauthorized
	}
	if !a.validSlot(slot) {
		return decimal.Zero, decimal.Zero, ErrUnknownSlot
	}
	delta, err := kwh.ParseDelta(raw)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	return a.apply(ctx, actorID, userID, slot, delta.Abs().Neg(), "admin_debit")
}

func (a *Admin) apply(ctx context.Context, actorID, userID int64, slot int, delta decimal.Decimal, reason string) (decimal.Decimal, decimal.Decimal, error) {
	old, updated, err := a.users.ApplyDelta(ctx, userID, slot, delta, reason, actorID, a.allowNegative || delta.Sign() > 0)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}

	sign := ""
	if delta.Sign() > 0 {
		sign = "+"
	}
	bestEffort(ctx, "admin.notify_user", func() error {
		return a.msg.SendText(ctx, userID,
			fmt.Sprintf("💳 Saldo slot %d aggiornato: %s%s kWh.\n🔋 Nuovo saldo: %s kWh.",
				slot, sign, kwh.Format(delta), kwh.Format(updated)))
	})
	return old, updated, nil
}
