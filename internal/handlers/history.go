package handlers

import (
	"fmt"
	"log/slog"
	"strings"

	tele "gopkg.in/telebot.v4"

	"github.com/Frenkcardi87/saldo-bot/internal/kwh"
	"github.com/Frenkcardi87/saldo-bot/internal/logger"
	"github.com/Frenkcardi87/saldo-bot/internal/store"
	"github.com/Frenkcardi87/saldo-bot/internal/telegram"
)

// historyLimit caps the rows shown by /storico.
const historyLimit = 10

var reasonLabels = map[string]string{
	"recharge_approved": "ricarica approvata",
	"admin_credit":      "accredito admin",
	"admin_debit":       "addebito admin",
}

func (h *handlers) storico(c tele.Context) error {
	ctx := telegram.WithHandler(c, "storico")
	user, ok := h.admit(c)
	if !ok {
		return nil
	}

	ops, err := h.Store.OperationsByUser(ctx, user.ID, historyLimit)
	if err != nil {
		logger.Error(ctx, "handlers", "storico.fail", slog.String("err", err.Error()))
		return c.Send("Non riesco a leggere lo storico, riprova tra poco.")
	}
	return c.Send(formatHistory(ops))
}

// formatHistory renders journal entries newest first, one movement per line.
func formatHistory(ops []store.Operation) string {
	if len(ops) == 0 {
		return "Nessun movimento registrato."
	}
	var b strings.Builder
	b.WriteString("📒 Ultimi movimenti:\n")
	for _, op := range ops {
		sign := "+"
		if op.Delta.Sign() < 0 {
			sign = "−"
		}
		label := op.Reason
		if l, ok := reasonLabels[op.Reason]; ok {
			label = l
		}
		fmt.Fprintf(&b, "%s · Slot %d: %s%s kWh (%s)\n",
			op.CreatedAt.Format("02/01 15:04"), op.Slot, sign, kwh.Format(op.Delta.Abs()), label)
	}
	return strings.TrimRight(b.String(), "\n")
}
