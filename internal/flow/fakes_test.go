package flow

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Frenkcardi87/saldo-bot/internal/store"
)

type balanceKey struct {
	userID int64
	slot   int
}

// fakeStore is an in-memory implementation of the store contracts. Mutations
// take a single lock so the exactly-once decision guarantee can be exercised
// from concurrent tests.
type fakeStore struct {
	mu            sync.Mutex
	users         map[int64]store.User
	balances      map[balanceKey]decimal.Decimal
	requests      map[int64]*store.RechargeRequest
	nextRequestID int64
	notifications []store.AdminNotification
	nextNoteID    int64
	ops           []store.Operation
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:    make(map[int64]store.User),
		balances: make(map[balanceKey]decimal.Decimal),
		requests: make(map[int64]*store.RechargeRequest),
	}
}

func (f *fakeStore) addUser(id int64, approved bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[id] = store.User{ID: id, FirstName: fmt.Sprintf("user%d", id), Approved: approved, CreatedAt: time.Now()}
}

func (f *fakeStore) setBalance(userID int64, slot int, kwh string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.balances[balanceKey{userID, slot}] = decimal.RequireFromString(kwh)
}

func (f *fakeStore) EnsureUser(_ context.Context, info store.UserInfo) (store.User, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[info.ID]; ok {
		u.Username = info.Username
		u.FirstName = info.FirstName
		u.LastName = info.LastName
		f.users[info.ID] = u
		return u, false, nil
	}
	u := store.User{
		ID:        info.ID,
		Username:  info.Username,
		FirstName: info.FirstName,
		LastName:  info.LastName,
		CreatedAt: time.Now(),
	}
	f.users[info.ID] = u
	return u, true, nil
}

func (f *fakeStore) UserByID(_ context.Context, id int64) (store.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return store.User{}, store.ErrUserNotFound
	}
	return u, nil
}

func (f *fakeStore) SetApproved(_ context.Context, id int64, approved bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return store.ErrUserNotFound
	}
	u.Approved = approved
	f.users[id] = u
	return nil
}

func (f *fakeStore) Balance(_ context.Context, userID int64, slot int) (decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.balances[balanceKey{userID, slot}], nil
}

func (f *fakeStore) Balances(_ context.Context, userID int64, slots []int) ([]store.SlotBalance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]store.SlotBalance, 0, len(slots))
	for _, slot := range slots {
		out = append(out, store.SlotBalance{Slot: slot, KWH: f.balances[balanceKey{userID, slot}]})
	}
	return out, nil
}

func (f *fakeStore) ApplyDelta(_ context.Context, userID int64, slot int, delta decimal.Decimal, reason string, adminID int64, allowNegative bool) (decimal.Decimal, decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.applyDeltaLocked(userID, slot, delta, reason, adminID, allowNegative)
}

func (f *fakeStore) applyDeltaLocked(userID int64, slot int, delta decimal.Decimal, reason string, adminID int64, allowNegative bool) (decimal.Decimal, decimal.Decimal, error) {
	if _, ok := f.users[userID]; !ok {
		return decimal.Zero, decimal.Zero, store.ErrUserNotFound
	}
	key := balanceKey{userID, slot}
	old := f.balances[key]
	updated := old.Add(delta)
	if !allowNegative && updated.Sign() < 0 {
		return decimal.Zero, decimal.Zero, store.ErrNegativeBalance
	}
	f.balances[key] = updated
	f.ops = append(f.ops, store.Operation{
		UserID: userID, Slot: slot, Delta: delta, Reason: reason,
		AdminID: sql.NullInt64{Int64: adminID, Valid: adminID != 0},
	})
	return old, updated, nil
}

func (f *fakeStore) CreateRequest(_ context.Context, in store.CreateRequestInput) (store.RechargeRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextRequestID++
	req := store.RechargeRequest{
		ID:          f.nextRequestID,
		UserID:      in.UserID,
		Slot:        in.Slot,
		KWH:         in.KWH,
		PhotoFileID: in.PhotoFileID,
		Note:        in.Note,
		Status:      store.StatusPending,
		CreatedAt:   time.Now(),
	}
	f.requests[req.ID] = &req
	return req, nil
}

func (f *fakeStore) RequestByID(_ context.Context, id int64) (store.RechargeRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	req, ok := f.requests[id]
	if !ok {
		return store.RechargeRequest{}, store.ErrRequestNotFound
	}
	return *req, nil
}

func (f *fakeStore) PendingSum(_ context.Context, userID int64, slot int) (decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sum := decimal.Zero
	for _, req := range f.requests {
		if req.UserID == userID && req.Slot == slot && req.Status == store.StatusPending {
			sum = sum.Add(req.KWH)
		}
	}
	return sum, nil
}

func (f *fakeStore) PendingRequests(_ context.Context) ([]store.RechargeRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []store.RechargeRequest
	for _, req := range f.requests {
		if req.Status == store.StatusPending {
			out = append(out, *req)
		}
	}
	return out, nil
}

func (f *fakeStore) Decide(_ context.Context, requestID int64, approve bool, adminID int64) (store.DecideResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	req, ok := f.requests[requestID]
	if !ok {
		return store.DecideResult{}, store.ErrRequestNotFound
	}
	if req.Status != store.StatusPending {
		return store.DecideResult{Request: *req}, store.ErrAlreadyDecided
	}
	res := store.DecideResult{}
	if approve {
		var err error
		res.OldBalance, res.NewBalance, err = f.applyDeltaLocked(
			req.UserID, req.Slot, req.KWH.Neg(), "recharge_approved", adminID, true)
		if err != nil {
			return store.DecideResult{}, err
		}
		req.Status = store.StatusApproved
	} else {
		req.Status = store.StatusRejected
	}
	req.DecidedAt = sql.NullTime{Time: time.Now(), Valid: true}
	req.DecidedBy = sql.NullInt64{Int64: adminID, Valid: true}
	res.Request = *req
	return res, nil
}

func (f *fakeStore) RecordNotification(_ context.Context, requestID, adminChatID int64, messageID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextNoteID++
	f.notifications = append(f.notifications, store.AdminNotification{
		ID: f.nextNoteID, RequestID: requestID, AdminChatID: adminChatID, MessageID: messageID,
	})
	return nil
}

func (f *fakeStore) NotificationsByRequest(_ context.Context, requestID int64) ([]store.AdminNotification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []store.AdminNotification
	for _, n := range f.notifications {
		if n.RequestID == requestID {
			out = append(out, n)
		}
	}
	return out, nil
}

type sentText struct {
	ChatID   int64
	Text     string
	Keyboard [][]Button
}

type sentPhoto struct {
	ChatID   int64
	Photo    string
	Caption  string
	Keyboard [][]Button
	Ref      MessageRef
}

type caughtEdit struct {
	Ref      MessageRef
	Caption  string
	Keyboard [][]Button
}

// fakeMessenger records outbound traffic and can be told to fail per chat
// or per message reference.
type fakeMessenger struct {
	mu         sync.Mutex
	texts      []sentText
	photos     []sentPhoto
	edits      []caughtEdit
	failSendTo map[int64]bool
	failEditOf map[MessageRef]bool
	nextMsgID  int
}

func newFakeMessenger() *fakeMessenger {
	return &fakeMessenger{
		failSendTo: make(map[int64]bool),
		failEditOf: make(map[MessageRef]bool),
	}
}

func (m *fakeMessenger) SendText(_ context.Context, chatID int64, text string, keyboard ...[]Button) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSendTo[chatID] {
		return fmt.Errorf("send to %d failed", chatID)
	}
	m.texts = append(m.texts, sentText{ChatID: chatID, Text: text, Keyboard: keyboard})
	return nil
}

func (m *fakeMessenger) SendPhoto(_ context.Context, chatID int64, photoFileID, caption string, keyboard ...[]Button) (MessageRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSendTo[chatID] {
		return MessageRef{}, fmt.Errorf("send to %d failed", chatID)
	}
	m.nextMsgID++
	ref := MessageRef{ChatID: chatID, MessageID: fmt.Sprintf("m%d", m.nextMsgID)}
	m.photos = append(m.photos, sentPhoto{ChatID: chatID, Photo: photoFileID, Caption: caption, Keyboard: keyboard, Ref: ref})
	return ref, nil
}

func (m *fakeMessenger) EditCaption(_ context.Context, ref MessageRef, caption string, keyboard ...[]Button) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failEditOf[ref] {
		return fmt.Errorf("edit of %v failed", ref)
	}
	m.edits = append(m.edits, caughtEdit{Ref: ref, Caption: caption, Keyboard: keyboard})
	return nil
}

func (m *fakeMessenger) textsTo(chatID int64) []sentText {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []sentText
	for _, t := range m.texts {
		if t.ChatID == chatID {
			out = append(out, t)
		}
	}
	return out
}

func (m *fakeMessenger) lastTextTo(chatID int64) (sentText, bool) {
	ts := m.textsTo(chatID)
	if len(ts) == 0 {
		return sentText{}, false
	}
	return ts[len(ts)-1], true
}

type fakeAuth struct {
	admins map[int64]bool
}

func newFakeAuth(ids ...int64) *fakeAuth {
	m := make(map[int64]bool, len(ids))
	for _, id := range ids {
		m[id] = true
	}
	return &fakeAuth{admins: m}
}

func (a *fakeAuth) IsAdmin(id int64) bool {
	return a.admins[id]
}
