// Package handlers binds Telegram updates to the flow controllers: command
// parsing, callback routing and the draft-driven text/photo dispatch.
package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	tele "gopkg.in/telebot.v4"

	"github.com/Frenkcardi87/saldo-bot/internal/config"
	"github.com/Frenkcardi87/saldo-bot/internal/flow"
	"github.com/Frenkcardi87/saldo-bot/internal/kwh"
	"github.com/Frenkcardi87/saldo-bot/internal/logger"
	"github.com/Frenkcardi87/saldo-bot/internal/session"
	"github.com/Frenkcardi87/saldo-bot/internal/store"
	"github.com/Frenkcardi87/saldo-bot/internal/telegram"
)

// Deps groups everything the handlers need.
type Deps struct {
	Config    *config.Config
	Store     *store.Store
	Drafts    *session.Manager
	Messenger flow.Messenger
	Gate      *flow.Gate
	Recharge  *flow.Recharge
	Decision  *flow.Decision
	Admin     *flow.Admin
}

type handlers struct {
	Deps
}

// Register wires every command, callback and message route into the bot's
// registry.
func Register(bot *telegram.Bot, deps Deps) {
	h := &handlers{Deps: deps}
	reg := bot.Registry()

	reg.RegisterCommand("/start", telegram.Command{
		Handler:     h.start,
		Description: "Registrati e mostra i comandi",
	})
	reg.RegisterCommand("/saldo", telegram.Command{
		Handler:     h.saldo,
		Description: "Mostra il saldo kWh per slot",
	})
	reg.RegisterCommand("/ricarica", telegram.Command{
		Handler:     h.ricarica,
		Description: "Dichiara una ricarica effettuata",
	})
	reg.RegisterCommand("/annulla", telegram.Command{
		Handler:     h.annulla,
		Description: "Annulla la richiesta in corso",
	})
	reg.RegisterCommand("/storico", telegram.Command{
		Handler:     h.storico,
		Description: "Ultimi movimenti del tuo saldo",
	})
	reg.RegisterCommand("/credita", telegram.Command{
		Handler:     h.credita,
		Description: "Accredita kWh a un utente",
		AdminOnly:   true,
	})
	reg.RegisterCommand("/addebita", telegram.Command{
		Handler:     h.addebita,
		Description: "Addebita kWh a un utente",
		AdminOnly:   true,
	})
	reg.RegisterCommand("/utenti", telegram.Command{
		Handler:     h.utenti,
		Description: "Elenca gli utenti registrati",
		AdminOnly:   true,
	})
	reg.RegisterCommand("/pending", telegram.Command{
		Handler:     h.pending,
		Description: "Elenca le richieste in attesa",
		AdminOnly:   true,
	})
	reg.RegisterCommand("/export", telegram.Command{
		Handler:     h.export,
		Description: "Esporta il registro operazioni in CSV",
		AdminOnly:   true,
	})

	reg.RegisterCallback("slot", h.cbSlot)
	reg.RegisterCallback("cancel", h.cbCancel)
	reg.RegisterCallback("confirm", h.cbConfirm)
	reg.RegisterCallback("note", h.cbNote)
	reg.RegisterCallback(string(flow.ActionApprove), h.cbDecision)
	reg.RegisterCallback(string(flow.ActionReject), h.cbDecision)
	reg.RegisterCallback("user", h.cbUserDecision)

	reg.SetTextHandler(h.onText)
	reg.SetPhotoHandler(h.onPhoto)
}

func userInfo(c tele.Context) store.UserInfo {
	u := c.Sender()
	if u == nil {
		return store.UserInfo{}
	}
	return store.UserInfo{
		ID:        u.ID,
		Username:  u.Username,
		FirstName: u.FirstName,
		LastName:  u.LastName,
	}
}

// admit runs the registration gate. It returns false when the sender must
// not be served; the gate itself handles first-contact messaging.
func (h *handlers) admit(c tele.Context) (store.User, bool) {
	ctx := telegram.Ctx(c)
	info := userInfo(c)
	if info.ID == 0 {
		return store.User{}, false
	}
	user, err := h.Gate.Ensure(ctx, info)
	if err != nil {
		logger.Error(ctx, "handlers", "gate.ensure_fail",
			slog.Int64("user_id", info.ID),
			slog.String("err", err.Error()),
		)
		_ = c.Send("Qualcosa è andato storto, riprova tra poco.")
		return store.User{}, false
	}
	if !h.Gate.Allowed(user) {
		_ = c.Send("Il tuo account è in attesa di approvazione da parte di un admin. ⏳")
		return user, false
	}
	return user, true
}

func (h *handlers) start(c tele.Context) error {
	telegram.WithHandler(c, "start")
	if _, ok := h.admit(c); !ok {
		return nil
	}
	return c.Send("Ciao! ⚡\n" +
		"/saldo — saldo kWh per slot\n" +
		"/ricarica — dichiara una ricarica effettuata\n" +
		"/annulla — annulla la richiesta in corso\n" +
		"/storico — ultimi movimenti del tuo saldo")
}

func (h *handlers) saldo(c tele.Context) error {
	ctx := telegram.WithHandler(c, "saldo")
	user, ok := h.admit(c)
	if !ok {
		return nil
	}

	balances, err := h.Store.Balances(ctx, user.ID, h.Config.Wallet.Slots)
	if err != nil {
		logger.Error(ctx, "handlers", "saldo.fail", slog.String("err", err.Error()))
		return c.Send("Non riesco a leggere il saldo, riprova tra poco.")
	}

	var b strings.Builder
	b.WriteString("🔋 Il tuo saldo:\n")
	for _, sb := range balances {
		fmt.Fprintf(&b, "Slot %d: %s kWh", sb.Slot, kwh.Format(sb.KWH))
		// Worst-case floor: what remains if every pending request on the
		// slot gets approved.
		pending, perr := h.Store.PendingSum(ctx, user.ID, sb.Slot)
		if perr == nil && pending.Sign() > 0 {
			fmt.Fprintf(&b, " (in attesa %s → %s)",
				kwh.Format(pending), kwh.Format(sb.KWH.Sub(pending)))
		}
		b.WriteString("\n")
	}
	return c.Send(strings.TrimRight(b.String(), "\n"))
}

func (h *handlers) ricarica(c tele.Context) error {
	ctx := telegram.WithHandler(c, "ricarica")
	user, ok := h.admit(c)
	if !ok {
		return nil
	}
	return h.Recharge.Start(ctx, user.ID)
}

func (h *handlers) annulla(c tele.Context) error {
	ctx := telegram.WithHandler(c, "annulla")
	user, ok := h.admit(c)
	if !ok {
		return nil
	}
	return h.Recharge.Cancel(ctx, user.ID)
}

// onText routes free text into the draft in progress. Text outside a flow
// gets a short hint instead of silence.
func (h *handlers) onText(c tele.Context) error {
	ctx := telegram.WithHandler(c, "text")
	user, ok := h.admit(c)
	if !ok {
		return nil
	}

	draft, inProgress := h.Drafts.Get(user.ID)
	if !inProgress {
		return c.Send("Non ho capito. Usa /ricarica per dichiarare una ricarica o /saldo per il saldo.")
	}

	switch draft.Step {
	case session.StepEnterKWH:
		return h.Recharge.EnterQuantity(ctx, user.ID, c.Text())
	case session.StepAwaitNote:
		return h.Recharge.EnterNote(ctx, user.ID, c.Text())
	case session.StepAwaitPhoto:
		return c.Send("Mi serve la foto della ricarica. 📷")
	default:
		return c.Send("Usa i bottoni del messaggio precedente, oppure /annulla.")
	}
}

// onPhoto feeds a photo into the draft when one is expected.
func (h *handlers) onPhoto(c tele.Context) error {
	ctx := telegram.WithHandler(c, "photo")
	user, ok := h.admit(c)
	if !ok {
		return nil
	}

	msg := c.Message()
	if msg == nil || msg.Photo == nil {
		return nil
	}

	err := h.Recharge.AttachPhoto(ctx, user.ID, msg.Photo.FileID)
	if errors.Is(err, flow.ErrSequence) {
		return c.Send("Non sto aspettando una foto. Usa /ricarica per iniziare.")
	}
	return err
}
