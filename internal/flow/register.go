package flow

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Frenkcardi87/saldo-bot/internal/logger"
	"github.com/Frenkcardi87/saldo-bot/internal/store"
)

// Gate is the registration gate: new users must be approved by an admin
// before any other command is honored.
type Gate struct {
	users  UserStore
	msg    Messenger
	auth   Authorizer
	admins []int64
}

// NewGate wires the registration gate.
func NewGate(users UserStore, msg Messenger, auth Authorizer, admins []int64) *Gate {
	return &Gate{users: users, msg: msg, auth: auth, admins: admins}
}

// Ensure upserts the user from the incoming update. On first contact it
// notifies every admin with approve/reject controls and tells the user the
// account is awaiting approval.
func (g *Gate) Ensure(ctx context.Context, info store.UserInfo) (store.User, error) {
	user, created, err := g.users.EnsureUser(ctx, info)
	if err != nil {
		return store.User{}, fmt.Errorf("register user %d: %w", info.ID, err)
	}
	if !created {
		return user, nil
	}

	logger.Info(ctx, "flow", "register.new_user", slog.Int64("user_id", user.ID))

	if g.auth.IsAdmin(user.ID) {
		// Admins skip their own waiting room.
		return user, nil
	}

	text := fmt.Sprintf("👤 Nuovo utente: %s (id %d). Approvare la registrazione?",
		user.DisplayName(), user.ID)
	controls := []Button{
		{Text: "✅ Approva", Data: UserToken(ActionApprove, user.ID)},
		{Text: "❌ Rifiuta", Data: UserToken(ActionReject, user.ID)},
	}
	for _, adminID := range g.admins {
		adminID := adminID
		bestEffort(ctx, "register.notify_admin", func() error {
			return g.msg.SendText(ctx, adminID, text, controls)
		})
	}
	bestEffort(ctx, "register.notify_user", func() error {
		return g.msg.SendText(ctx, user.ID,
			"Ciao! 🌟 La tua registrazione è in attesa di approvazione da parte di un admin.")
	})
	return user, nil
}

// Allowed reports whether the user may use the bot. Admins always pass.
func (g *Gate) Allowed(user store.User) bool {
	return user.Approved || g.auth.IsAdmin(user.ID)
}

// GateOutcome reports a registration decision for the interacting handler.
type GateOutcome struct {
	UserID   int64
	Approved bool
	// Text is the final text the pressed admin message is updated to.
	Text string
}

// Decide applies a registration decision token ("user:approve:<id>" /
// "user:reject:<id>") on behalf of actorID and notifies the affected user
// best-effort. It is a plain flag flip; no balances are involved.
func (g *Gate) Decide(ctx context.Context, actorID int64, token string) (GateOutcome, error) {
	if !g.auth.IsAdmin(actorID) {
		return GateOutcome{}, ErrUnauthorized
	}

	action, userID, err := ParseUserToken(token)
	if err != nil {
		return GateOutcome{}, err
	}

	approved := action == ActionApprove
	if err := g.users.SetApproved(ctx, userID, approved); err != nil {
		return GateOutcome{}, fmt.Errorf("gate decision for %d: %w", userID, err)
	}

	out := GateOutcome{UserID: userID, Approved: approved}
	if approved {
		out.Text = fmt.Sprintf("✅ Utente %d approvato.", userID)
		bestEffort(ctx, "gate.notify_user", func() error {
			return g.msg.SendText(ctx, userID,
				"✅ Registrazione approvata! Usa /saldo per vedere i tuoi kWh e /ricarica per dichiarare una ricarica.")
		})
	} else {
		out.Text = fmt.Sprintf("❌ Utente %d rifiutato.", userID)
		bestEffort(ctx, "gate.notify_user", func() error {
			return g.msg.SendText(ctx, userID,
				"❌ La tua registrazione non è stata approvata.")
		})
	}

	logger.Info(ctx, "flow", "gate.decided",
		slog.Int64("user_id", userID),
		slog.Int64("admin_id", actorID),
		slog.Bool("approved", approved),
	)
	return out, nil
}
