package handlers

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	tele "gopkg.in/telebot.v4"

	"github.com/Frenkcardi87/saldo-bot/internal/flow"
	"github.com/Frenkcardi87/saldo-bot/internal/kwh"
	"github.com/Frenkcardi87/saldo-bot/internal/logger"
	"github.com/Frenkcardi87/saldo-bot/internal/store"
	"github.com/Frenkcardi87/saldo-bot/internal/telegram"
)

// parseBalanceArgs parses "<user_id> <slot> <kwh>" from a command tail.
func parseBalanceArgs(args []string) (userID int64, slot int, raw string, err error) {
	if len(args) != 3 {
		return 0, 0, "", fmt.Errorf("uso: <user_id> <slot> <kwh>")
	}
	userID, err = strconv.ParseInt(args[0], 10, 64)
	if err != nil || userID <= 0 {
		return 0, 0, "", fmt.Errorf("user_id non valido: %q", args[0])
	}
	slot, err = strconv.Atoi(args[1])
	if err != nil || slot <= 0 {
		return 0, 0, "", fmt.Errorf("slot non valido: %q", args[1])
	}
	return userID, slot, args[2], nil
}

func (h *handlers) credita(c tele.Context) error {
	return h.adjust(c, "credita", h.Admin.Credit)
}

func (h *handlers) addebita(c tele.Context) error {
	return h.adjust(c, "addebita", h.Admin.Debit)
}

func (h *handlers) adjust(c tele.Context, name string, apply func(ctx context.Context, actorID, userID int64, slot int, raw string) (oldBal, newBal decimal.Decimal, err error)) error {
	ctx := telegram.WithHandler(c, name)

	userID, slot, raw, err := parseBalanceArgs(c.Args())
	if err != nil {
		return c.Send(fmt.Sprintf("%v\nEsempio: /%s 12345 3 4,5", err, name))
	}

	old, updated, err := apply(ctx, c.Sender().ID, userID, slot, raw)
	switch {
	case err == nil:
	case errors.Is(err, store.ErrUserNotFound):
		return c.Send(fmt.Sprintf("Utente %d non registrato.", userID))
	case errors.Is(err, flow.ErrUnknownSlot):
		return c.Send(fmt.Sprintf("Slot %d non configurato.", slot))
	case errors.Is(err, store.ErrNegativeBalance):
		return c.Send("Operazione rifiutata: il saldo andrebbe sotto zero.")
	case errors.Is(err, kwh.ErrInvalidQuantity), errors.Is(err, kwh.ErrZeroDelta):
		return c.Send(fmt.Sprintf("Quantità non valida: %q", raw))
	default:
		logger.Error(ctx, "handlers", name+".fail", slog.String("err", err.Error()))
		return c.Send("Operazione fallita, riprova tra poco.")
	}

	return c.Send(fmt.Sprintf("Fatto. Utente %d, slot %d: %s → %s kWh.",
		userID, slot, kwh.Format(old), kwh.Format(updated)))
}

func (h *handlers) utenti(c tele.Context) error {
	ctx := telegram.WithHandler(c, "utenti")

	users, err := h.Store.ListUsers(ctx)
	if err != nil {
		logger.Error(ctx, "handlers", "utenti.fail", slog.String("err", err.Error()))
		return c.Send("Non riesco a leggere gli utenti.")
	}
	if len(users) == 0 {
		return c.Send("Nessun utente registrato.")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "👥 Utenti registrati (%d):\n", len(users))
	for _, u := range users {
		mark := "⏳"
		if u.Approved {
			mark = "✅"
		}
		fmt.Fprintf(&b, "%s %s (id %d)", mark, u.DisplayName(), u.ID)
		if balances, berr := h.Store.Balances(ctx, u.ID, h.Config.Wallet.Slots); berr == nil {
			parts := make([]string, 0, len(balances))
			for _, sb := range balances {
				parts = append(parts, fmt.Sprintf("S%d %s", sb.Slot, kwh.Format(sb.KWH)))
			}
			fmt.Fprintf(&b, " — %s", strings.Join(parts, " | "))
		}
		b.WriteString("\n")
	}
	return c.Send(strings.TrimRight(b.String(), "\n"))
}

// pending re-sends a decision card for every request still waiting. This is
// the recovery path for requests whose original fan-out never reached an
// admin; each re-sent card is recorded so outcome reconciliation covers it.
func (h *handlers) pending(c tele.Context) error {
	ctx := telegram.WithHandler(c, "pending")
	adminID := c.Sender().ID

	requests, err := h.Store.PendingRequests(ctx)
	if err != nil {
		logger.Error(ctx, "handlers", "pending.fail", slog.String("err", err.Error()))
		return c.Send("Non riesco a leggere le richieste.")
	}
	if len(requests) == 0 {
		return c.Send("Nessuna richiesta in attesa. 🎉")
	}

	if err := c.Send(fmt.Sprintf("📨 Richieste in attesa: %d", len(requests))); err != nil {
		return err
	}
	for _, req := range requests {
		user, err := h.Store.UserByID(ctx, req.UserID)
		if err != nil {
			logger.Warn(ctx, "handlers", "pending.user_fail",
				slog.Int64("request_id", req.ID), slog.String("err", err.Error()))
			continue
		}
		current, err := h.Store.Balance(ctx, req.UserID, req.Slot)
		if err != nil {
			logger.Warn(ctx, "handlers", "pending.balance_fail",
				slog.Int64("request_id", req.ID), slog.String("err", err.Error()))
			continue
		}
		pendingSum, err := h.Store.PendingSum(ctx, req.UserID, req.Slot)
		if err != nil {
			pendingSum = req.KWH
		}

		caption := flow.AdminRequestCaption(req, user,
			current, current.Sub(req.KWH), current.Sub(pendingSum))
		controls := []flow.Button{
			{Text: "✅ Approva", Data: flow.RequestToken(flow.ActionApprove, req.ID)},
			{Text: "❌ Rifiuta", Data: flow.RequestToken(flow.ActionReject, req.ID)},
		}
		ref, err := h.Messenger.SendPhoto(ctx, adminID, req.PhotoFileID, caption, controls)
		if err != nil {
			logger.Warn(ctx, "handlers", "pending.send_fail",
				slog.Int64("request_id", req.ID), slog.String("err", err.Error()))
			continue
		}
		if err := h.Store.RecordNotification(ctx, req.ID, ref.ChatID, ref.MessageID); err != nil {
			logger.Error(ctx, "handlers", "pending.record_fail",
				slog.Int64("request_id", req.ID), slog.String("err", err.Error()))
		}
	}
	return nil
}

// export sends the whole balance-mutation journal as a CSV document.
func (h *handlers) export(c tele.Context) error {
	ctx := telegram.WithHandler(c, "export")

	ops, err := h.Store.Operations(ctx)
	if err != nil {
		logger.Error(ctx, "handlers", "export.fail", slog.String("err", err.Error()))
		return c.Send("Export fallito, riprova tra poco.")
	}
	if len(ops) == 0 {
		return c.Send("Nessuna operazione registrata.")
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write([]string{"id", "user_id", "slot", "delta_kwh", "reason", "admin_id", "created_at"})
	for _, op := range ops {
		adminID := ""
		if op.AdminID.Valid {
			adminID = strconv.FormatInt(op.AdminID.Int64, 10)
		}
		_ = w.Write([]string{
			strconv.FormatInt(op.ID, 10),
			strconv.FormatInt(op.UserID, 10),
			strconv.Itoa(op.Slot),
			op.Delta.String(),
			op.Reason,
			adminID,
			op.CreatedAt.Format(time.RFC3339),
		})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		logger.Error(ctx, "handlers", "export.encode_fail", slog.String("err", err.Error()))
		return c.Send("Export fallito, riprova tra poco.")
	}

	doc := &tele.Document{
		File:     tele.FromReader(&buf),
		FileName: fmt.Sprintf("operazioni-%s.csv", time.Now().Format("20060102-150405")),
		MIME:     "text/csv",
	}
	return c.Send(doc)
}
