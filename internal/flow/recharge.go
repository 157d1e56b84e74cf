package flow

import (
	"context"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/Frenkcardi87/saldo-bot/internal/kwh"
	"github.com/Frenkcardi87/saldo-bot/internal/logger"
	"github.com/Frenkcardi87/saldo-bot/internal/session"
	"github.com/Frenkcardi87/saldo-bot/internal/store"
)

// Recharge drives the user-facing recharge request state machine:
// slot selection, quantity, photo proof, optional note, confirmation,
// then persistence and admin fan-out.
type Recharge struct {
	drafts     *session.Manager
	users      UserStore
	requests   RequestStore
	registry   NotificationStore
	msg        Messenger
	admins     []int64
	slots      []int
	maxNoteLen int
}

// NewRecharge wires the flow controller.
func NewRecharge(drafts *session.Manager, users UserStore, requests RequestStore, registry NotificationStore, msg Messenger, admins []int64, slots []int, maxNoteLen int) *Recharge {
	return &Recharge{
		drafts:     drafts,
		users:      users,
		requests:   requests,
		registry:   registry,
		msg:        msg,
		admins:     admins,
		slots:      slots,
		maxNoteLen: maxNoteLen,
	}
}

// Slots returns the configured slot set.
func (r *Recharge) Slots() []int {
	return r.slots
}

func (r *Recharge) validSlot(slot int) bool {
	for _, s := range r.slots {
		if s == slot {
			return true
		}
	}
	return false
}

// Start opens a fresh draft, replacing any prior one, and prompts for the slot.
func (r *Recharge) Start(ctx context.Context, userID int64) error {
	release := r.drafts.Acquire(userID)
	defer release()

	r.drafts.Put(userID, session.Draft{Step: session.StepChooseSlot})

	row := make([]Button, 0, len(r.slots))
	for _, slot := range r.slots {
		row = append(row, Button{Text: fmt.Sprintf("Slot %d", slot), Data: SlotToken(slot)})
	}
	bestEffort(ctx, "recharge.prompt_slot", func() error {
		return r.msg.SendText(ctx, userID, "⚡ Quale slot vuoi ricaricare?",
			row, []Button{{Text: "❌ Annulla", Data: TokenCancel}})
	})
	return nil
}

// ChooseSlot records the selected slot and prompts for the quantity.
func (r *Recharge) ChooseSlot(ctx context.Context, userID int64, slot int) error {
	release := r.drafts.Acquire(userID)
	defer release()

	d, ok := r.drafts.Get(userID)
	if !ok || d.Step != session.StepChooseSlot {
		return ErrSequence
	}
	if !r.validSlot(slot) {
		return ErrUnknownSlot
	}

	d.Slot = slot
	d.Step = session.StepEnterKWH
	r.drafts.Put(userID, d)

	bestEffort(ctx, "recharge.prompt_kwh", func() error {
		return r.msg.SendText(ctx, userID,
			fmt.Sprintf("Slot %d. Quanti kWh hai ricaricato? (es: 12,3456)", slot))
	})
	return nil
}

// EnterQuantity parses the quantity text. Invalid input re-prompts and
// leaves the draft unchanged.
func (r *Recharge) EnterQuantity(ctx context.Context, userID int64, text string) error {
	release := r.drafts.Acquire(userID)
	defer release()

	d, ok := r.drafts.Get(userID)
	if !ok || d.Step != session.StepEnterKWH {
		return ErrSequence
	}

	q, err := kwh.ParseQuantity(text)
	if err != nil {
		bestEffort(ctx, "recharge.reprompt_kwh", func() error {
			return r.msg.SendText(ctx, userID,
				"Valore kWh non valido. Inserisci un numero positivo, max 4 decimali (es: 12,3456).")
		})
		return nil
	}

	d.KWH = q
	d.Step = session.StepAwaitPhoto
	r.drafts.Put(userID, d)

	bestEffort(ctx, "recharge.prompt_photo", func() error {
		return r.msg.SendText(ctx, userID,
			fmt.Sprintf("Ok, %s kWh. 📷 Ora inviami la foto della ricarica.", kwh.Format(q)))
	})
	return nil
}

// AttachPhoto stores the photo reference and shows the confirmation summary.
func (r *Recharge) AttachPhoto(ctx context.Context, userID int64, photoFileID string) error {
	release := r.drafts.Acquire(userID)
	defer release()

	d, ok := r.drafts.Get(userID)
	if !ok || d.Step != session.StepAwaitPhoto {
		return ErrSequence
	}
	if photoFileID == "" {
		return ErrSequence
	}

	d.PhotoFileID = photoFileID
	d.Step = session.StepConfirm
	r.drafts.Put(userID, d)

	bestEffort(ctx, "recharge.prompt_confirm", func() error {
		return r.msg.SendText(ctx, userID,
			fmt.Sprintf("Riepilogo: slot %d, %s kWh, foto ricevuta.\nConfermi l'invio?",
				d.Slot, kwh.Format(d.KWH)),
			[]Button{
				{Text: "✅ Conferma", Data: TokenConfirm},
				{Text: "📝 Aggiungi nota", Data: TokenAddNote},
			},
			[]Button{{Text: "❌ Annulla", Data: TokenCancel}})
	})
	return nil
}

// AddNote switches from the confirmation step to the note prompt.
func (r *Recharge) AddNote(ctx context.Context, userID int64) error {
	release := r.drafts.Acquire(userID)
	defer release()

	d, ok := r.drafts.Get(userID)
	if !ok || d.Step != session.StepConfirm {
		return ErrSequence
	}

	d.Step = session.StepAwaitNote
	r.drafts.Put(userID, d)

	bestEffort(ctx, "recharge.prompt_note", func() error {
		return r.msg.SendText(ctx, userID,
			fmt.Sprintf("Scrivimi la nota (max %d caratteri).", r.maxNoteLen))
	})
	return nil
}

// EnterNote records the note and finalizes the request. A too-long note
// re-prompts and leaves the draft unchanged.
func (r *Recharge) EnterNote(ctx context.Context, userID int64, text string) error {
	release := r.drafts.Acquire(userID)
	defer release()

	d, ok := r.drafts.Get(userID)
	if !ok || d.Step != session.StepAwaitNote {
		return ErrSequence
	}

	if utf8.RuneCountInString(text) > r.maxNoteLen {
		bestEffort(ctx, "recharge.reprompt_note", func() error {
			return r.msg.SendText(ctx, userID,
				fmt.Sprintf("Nota troppo lunga (max %d caratteri), riprova.", r.maxNoteLen))
		})
		return nil
	}

	d.Note = text
	return r.finalize(ctx, userID, d)
}

// Confirm finalizes the request without a note.
func (r *Recharge) Confirm(ctx context.Context, userID int64) error {
	release := r.drafts.Acquire(userID)
	defer release()

	d, ok := r.drafts.Get(userID)
	if !ok || d.Step != session.StepConfirm {
		return ErrSequence
	}
	return r.finalize(ctx, userID, d)
}

// Cancel discards the draft from any state.
func (r *Recharge) Cancel(ctx context.Context, userID int64) error {
	release := r.drafts.Acquire(userID)
	defer release()

	if !r.drafts.InProgress(userID) {
		bestEffort(ctx, "recharge.cancel_idle", func() error {
			return r.msg.SendText(ctx, userID, "Nessuna richiesta in corso.")
		})
		return nil
	}
	r.drafts.Clear(userID)
	bestEffort(ctx, "recharge.cancelled", func() error {
		return r.msg.SendText(ctx, userID, "Richiesta annullata. ❌")
	})
	return nil
}

// finalize re-validates the draft, persists the pending request, fans it out
// to every admin and clears the draft. Caller holds the user's draft lock.
func (r *Recharge) finalize(ctx context.Context, userID int64, d session.Draft) error {
	if !r.validSlot(d.Slot) || d.KWH.Sign() <= 0 || d.PhotoFileID == "" {
		r.drafts.Clear(userID)
		bestEffort(ctx, "recharge.invalid_draft", func() error {
			return r.msg.SendText(ctx, userID,
				"La richiesta non era più valida, ricomincia con /ricarica.")
		})
		return nil
	}

	user, err := r.users.UserByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("finalize recharge for %d: %w", userID, err)
	}
	current, err := r.users.Balance(ctx, userID, d.Slot)
	if err != nil {
		return fmt.Errorf("finalize recharge for %d: %w", userID, err)
	}

	req, err := r.requests.CreateRequest(ctx, store.CreateRequestInput{
		UserID:      userID,
		Slot:        d.Slot,
		KWH:         d.KWH,
		PhotoFileID: d.PhotoFileID,
		Note:        d.Note,
	})
	if err != nil {
		return fmt.Errorf("finalize recharge for %d: %w", userID, err)
	}

	// Includes the request just created.
	pendingSum, err := r.requests.PendingSum(ctx, userID, d.Slot)
	if err != nil {
		return fmt.Errorf("finalize recharge for %d: %w", userID, err)
	}
	afterThis := current.Sub(d.KWH)
	afterAll := current.Sub(pendingSum)

	caption := AdminRequestCaption(req, user, current, afterThis, afterAll)
	controls := []Button{
		{Text: "✅ Approva", Data: RequestToken(ActionApprove, req.ID)},
		{Text: "❌ Rifiuta", Data: RequestToken(ActionReject, req.ID)},
	}

	delivered := 0
	for _, adminID := range r.admins {
		ref, sendErr := r.msg.SendPhoto(ctx, adminID, d.PhotoFileID, caption, controls)
		if sendErr != nil {
			logger.Warn(ctx, "flow", "fanout.fail",
				slog.Int64("request_id", req.ID),
				slog.Int64("admin_id", adminID),
				slog.String("err", logger.SanitizeLimit(sendErr.Error(), 256)),
			)
			continue
		}
		if recErr := r.registry.RecordNotification(ctx, req.ID, ref.ChatID, ref.MessageID); recErr != nil {
			logger.Error(ctx, "flow", "fanout.record_fail",
				slog.Int64("request_id", req.ID),
				slog.Int64("admin_id", adminID),
				slog.String("err", recErr.Error()),
			)
			continue
		}
		delivered++
	}

	r.drafts.Clear(userID)

	if delivered == 0 {
		// Recoverable: the request stays pending and shows up in /pending.
		bestEffort(ctx, "recharge.fanout_empty", func() error {
			return r.msg.SendText(ctx, userID,
				fmt.Sprintf("Richiesta #%d registrata, ma non sono riuscito ad avvisare gli admin. Verrà comunque esaminata.", req.ID))
		})
	} else {
		bestEffort(ctx, "recharge.submitted", func() error {
			return r.msg.SendText(ctx, userID,
				fmt.Sprintf("Perfetto! Richiesta #%d di %s kWh sullo slot %d inviata agli admin. Riceverai un messaggio con l'esito. 💌",
					req.ID, kwh.Format(req.KWH), req.Slot))
		})
	}

	logger.Info(ctx, "flow", "recharge.created",
		slog.Int64("request_id", req.ID),
		slog.Int64("user_id", userID),
		slog.Int("slot", req.Slot),
		slog.String("kwh", kwh.Format(req.KWH)),
		slog.Int("fanout", delivered),
	)
	return nil
}

// AdminRequestCaption renders the admin-facing card for a pending request,
// with the current balance and both projections. Also used to rebuild cards
// for requests whose original fan-out was lost.
func AdminRequestCaption(req store.RechargeRequest, user store.User, current, afterThis, afterAll decimal.Decimal) string {
	caption := fmt.Sprintf(
		"📨 Nuova richiesta ricarica\n"+
			"ID: #%d\n"+
			"Utente: %s (id %d)\n"+
			"Slot: %d\n"+
			"Richiesta: %s kWh\n"+
			"Saldo attuale: %s kWh\n"+
			"Dopo questa: %s kWh\n"+
			"Dopo tutte le pendenti: %s kWh",
		req.ID, user.DisplayName(), user.ID, req.Slot,
		kwh.Format(req.KWH), kwh.Format(current),
		kwh.Format(afterThis), kwh.Format(afterAll),
	)
	if req.Note != "" {
		caption += "\nNota: " + req.Note
	}
	return caption
}
