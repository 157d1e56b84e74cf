package flow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/Frenkcardi87/saldo-bot/internal/kwh"
	"github.com/Frenkcardi87/saldo-bot/internal/logger"
	"github.com/Frenkcardi87/saldo-bot/internal/store"
)

// Decision handles admin approve/reject events on recharge requests.
type Decision struct {
	users    UserStore
	requests RequestStore
	registry NotificationStore
	msg      Messenger
	auth     Authorizer
}

// NewDecision wires the decision controller.
func NewDecision(users UserStore, requests RequestStore, registry NotificationStore, msg Messenger, auth Authorizer) *Decision {
	return &Decision{users: users, requests: requests, registry: registry, msg: msg, auth: auth}
}

// Outcome reports the result of a decision for the interacting handler.
type Outcome struct {
	Request store.RechargeRequest
	// AlreadyDecided is set when a second decision raced in first; the
	// record carries the winning status and nothing was mutated.
	AlreadyDecided bool
	// NewBalance is the requester's balance after an approval.
	NewBalance decimal.Decimal
	// RemainingPending sums the still-pending quantities for the same
	// (user, slot), excluding the request just decided.
	RemainingPending decimal.Decimal
	// Caption is the final text every recorded admin message is updated to.
	Caption string
}

// Decide validates and applies one decision token ("approve:<id>" or
// "reject:<id>") on behalf of actorID. origin identifies the admin message
// whose interaction triggered the decision; it is updated by the caller and
// skipped during reconciliation. Balance and status mutate exactly once per
// request regardless of how many decisions race.
func (d *Decision) Decide(ctx context.Context, actorID int64, token string, origin MessageRef) (Outcome, error) {
	if !d.auth.IsAdmin(actorID) {
		return Outcome{}, ErrUnauthorized
	}

	action, requestID, err := ParseRequestToken(token)
	if err != nil {
		return Outcome{}, err
	}

	res, err := d.requests.Decide(ctx, requestID, action == ActionApprove, actorID)
	if errors.Is(err, store.ErrAlreadyDecided) {
		return Outcome{
			Request:        res.Request,
			AlreadyDecided: true,
			Caption:        staleCaption(res.Request),
		}, nil
	}
	if err != nil {
		return Outcome{}, fmt.Errorf("decide request %d: %w", requestID, err)
	}
	req := res.Request

	// Computed after the status flip, so the just-decided request is
	// excluded from the remaining-pending sum.
	remaining, err := d.requests.PendingSum(ctx, req.UserID, req.Slot)
	if err != nil {
		logger.Warn(ctx, "flow", "decision.pending_sum_fail",
			slog.Int64("request_id", req.ID),
			slog.String("err", err.Error()),
		)
		remaining = decimal.Zero
	}

	out := Outcome{
		Request:          req,
		NewBalance:       res.NewBalance,
		RemainingPending: remaining,
	}
	out.Caption = d.finalCaption(req, res)

	d.notifyRequester(ctx, out)
	d.reconcile(ctx, req.ID, origin, out.Caption)

	logger.Info(ctx, "flow", "decision.applied",
		slog.Int64("request_id", req.ID),
		slog.Int64("admin_id", actorID),
		slog.String("status", req.Status),
	)
	return out, nil
}

func (d *Decision) finalCaption(req store.RechargeRequest, res store.DecideResult) string {
	switch req.Status {
	case store.StatusApproved:
		return fmt.Sprintf("✅ Richiesta #%d APPROVATA.\nUtente %d −%s kWh (slot %d) → saldo %s kWh.",
			req.ID, req.UserID, kwh.Format(req.KWH), req.Slot, kwh.Format(res.NewBalance))
	case store.StatusRejected:
		return fmt.Sprintf("❌ Richiesta #%d RIFIUTATA.", req.ID)
	default:
		return fmt.Sprintf("Richiesta #%d in stato %s.", req.ID, req.Status)
	}
}

// staleCaption renders the winning outcome for a losing decision. The
// losing call never observes a balance mutation, so no balance figure is
// rendered here; the winner already wrote the full caption everywhere.
func staleCaption(req store.RechargeRequest) string {
	switch req.Status {
	case store.StatusApproved:
		return fmt.Sprintf("✅ Richiesta #%d APPROVATA.\nUtente %d −%s kWh (slot %d).",
			req.ID, req.UserID, kwh.Format(req.KWH), req.Slot)
	case store.StatusRejected:
		return fmt.Sprintf("❌ Richiesta #%d RIFIUTATA.", req.ID)
	default:
		return fmt.Sprintf("Richiesta #%d in stato %s.", req.ID, req.Status)
	}
}

// notifyRequester tells the user the outcome; delivery is best-effort.
func (d *Decision) notifyRequester(ctx context.Context, out Outcome) {
	req := out.Request
	var text string
	if req.Status == store.StatusApproved {
		text = fmt.Sprintf("✅ Ricarica #%d APPROVATA!\n− %s kWh sullo slot %d.\n🔋 Nuovo saldo: %s kWh.",
			req.ID, kwh.Format(req.KWH), req.Slot, kwh.Format(out.NewBalance))
		if out.RemainingPending.Sign() > 0 {
			text += fmt.Sprintf("\nRichieste ancora in attesa su questo slot: %s kWh.",
				kwh.Format(out.RemainingPending))
		}
	} else {
		text = fmt.Sprintf("❌ La tua ricarica #%d è stata rifiutata dall'admin.", req.ID)
	}
	bestEffort(ctx, "decision.notify_user", func() error {
		return d.msg.SendText(ctx, req.UserID, text)
	})
}

// reconcile updates every recorded admin message for the request to the
// final outcome and strips its action controls. Each edit is independent
// and best-effort: one failure never aborts the others, and nothing here
// can roll the decision back.
func (d *Decision) reconcile(ctx context.Context, requestID int64, origin MessageRef, caption string) {
	rows, err := d.registry.NotificationsByRequest(ctx, requestID)
	if err != nil {
		logger.Warn(ctx, "flow", "reconcile.list_fail",
			slog.Int64("request_id", requestID),
			slog.String("err", err.Error()),
		)
		return
	}
	for _, row := range rows {
		ref := MessageRef{ChatID: row.AdminChatID, MessageID: row.MessageID}
		if ref == origin {
			continue // already updated as part of the current interaction
		}
		bestEffort(ctx, "reconcile.edit", func() error {
			return d.msg.EditCaption(ctx, ref, caption)
		})
	}
}
