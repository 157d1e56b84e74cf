package handlers

import (
	"errors"
	"log/slog"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v4"

	"github.com/Frenkcardi87/saldo-bot/internal/flow"
	"github.com/Frenkcardi87/saldo-bot/internal/logger"
	"github.com/Frenkcardi87/saldo-bot/internal/store"
	"github.com/Frenkcardi87/saldo-bot/internal/telegram"
)

func ack(c tele.Context, text string) error {
	return c.Respond(&tele.CallbackResponse{Text: text})
}

// token returns the raw flow token carried by the pressed button.
func token(c tele.Context) string {
	cb := c.Callback()
	if cb == nil {
		return ""
	}
	data := strings.TrimPrefix(cb.Data, "\f")
	return strings.TrimPrefix(data, "\\f")
}

// originRef identifies the admin message whose button was pressed.
func originRef(c tele.Context) flow.MessageRef {
	cb := c.Callback()
	if cb == nil || cb.Message == nil {
		return flow.MessageRef{}
	}
	return flow.MessageRef{
		ChatID:    cb.Message.Chat.ID,
		MessageID: strconv.Itoa(cb.Message.ID),
	}
}

func (h *handlers) cbSlot(c tele.Context) error {
	ctx := telegram.WithHandler(c, "cb.slot")
	user, ok := h.admit(c)
	if !ok {
		return ack(c, "")
	}

	slot, err := flow.ParseSlotToken(token(c))
	if err != nil {
		return ack(c, "Azione non valida")
	}

	err = h.Recharge.ChooseSlot(ctx, user.ID, slot)
	switch {
	case errors.Is(err, flow.ErrSequence):
		return ack(c, "Bottone scaduto")
	case errors.Is(err, flow.ErrUnknownSlot):
		return ack(c, "Slot non disponibile")
	case err != nil:
		return err
	}
	return ack(c, "")
}

func (h *handlers) cbCancel(c tele.Context) error {
	ctx := telegram.WithHandler(c, "cb.cancel")
	user, ok := h.admit(c)
	if !ok {
		return ack(c, "")
	}
	if err := h.Recharge.Cancel(ctx, user.ID); err != nil {
		return err
	}
	return ack(c, "")
}

func (h *handlers) cbConfirm(c tele.Context) error {
	ctx := telegram.WithHandler(c, "cb.confirm")
	user, ok := h.admit(c)
	if !ok {
		return ack(c, "")
	}
	err := h.Recharge.Confirm(ctx, user.ID)
	if errors.Is(err, flow.ErrSequence) {
		return ack(c, "Bottone scaduto")
	}
	if err != nil {
		return err
	}
	return ack(c, "Inviata ✅")
}

func (h *handlers) cbNote(c tele.Context) error {
	ctx := telegram.WithHandler(c, "cb.note")
	user, ok := h.admit(c)
	if !ok {
		return ack(c, "")
	}
	err := h.Recharge.AddNote(ctx, user.ID)
	if errors.Is(err, flow.ErrSequence) {
		return ack(c, "Bottone scaduto")
	}
	if err != nil {
		return err
	}
	return ack(c, "")
}

// cbDecision handles approve/reject presses on a fan-out message. The
// pressed message is updated here; the flow controller reconciles all the
// other recorded copies.
func (h *handlers) cbDecision(c tele.Context) error {
	ctx := telegram.WithHandler(c, "cb.decision")

	actor := c.Sender()
	if actor == nil {
		return ack(c, "")
	}
	origin := originRef(c)

	out, err := h.Decision.Decide(ctx, actor.ID, token(c), origin)
	switch {
	case errors.Is(err, flow.ErrUnauthorized):
		return ack(c, "Non sei autorizzato")
	case errors.Is(err, flow.ErrMalformedDecision):
		return ack(c, "Azione non valida")
	case errors.Is(err, store.ErrRequestNotFound):
		return ack(c, "Richiesta inesistente")
	case err != nil:
		logger.Error(ctx, "handlers", "decision.fail", slog.String("err", err.Error()))
		return ack(c, "Operazione fallita, riprova")
	}

	// The winner's reconciliation already rewrote this message; editing it
	// again would clobber the caption that carries the final balance.
	if out.AlreadyDecided {
		return ack(c, "Già decisa da un altro admin")
	}

	// The fan-out message is a photo, so the outcome replaces its caption.
	if err := c.EditCaption(out.Caption, &tele.ReplyMarkup{}); err != nil {
		logger.Warn(ctx, "handlers", "decision.edit_origin_fail", slog.String("err", err.Error()))
	}
	return ack(c, "Registrato ✅")
}

// cbUserDecision handles approve/reject presses on a registration notice.
func (h *handlers) cbUserDecision(c tele.Context) error {
	ctx := telegram.WithHandler(c, "cb.user_decision")

	actor := c.Sender()
	if actor == nil {
		return ack(c, "")
	}

	out, err := h.Gate.Decide(ctx, actor.ID, token(c))
	switch {
	case errors.Is(err, flow.ErrUnauthorized):
		return ack(c, "Non sei autorizzato")
	case errors.Is(err, flow.ErrMalformedDecision):
		return ack(c, "Azione non valida")
	case errors.Is(err, store.ErrUserNotFound):
		return ack(c, "Utente inesistente")
	case err != nil:
		logger.Error(ctx, "handlers", "user_decision.fail", slog.String("err", err.Error()))
		return ack(c, "Operazione fallita, riprova")
	}

	if err := c.Edit(out.Text, &tele.ReplyMarkup{}); err != nil {
		logger.Warn(ctx, "handlers", "user_decision.edit_fail", slog.String("err", err.Error()))
	}
	return ack(c, "Registrato ✅")
}
