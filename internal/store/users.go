package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

// EnsureUser creates the user on first contact (approved=false) or refreshes
// the display metadata of an existing row. It reports whether the row was
// just created.
func (s *Store) EnsureUser(ctx context.Context, info UserInfo) (User, bool, error) {
	var row struct {
		User
		Inserted bool `db:"inserted"`
	}
	err := s.db.GetContext(ctx, &row, `
		INSERT INTO users (id, username, first_name, last_name, approved)
		VALUES ($1, $2, $3, $4, FALSE)
		ON CONFLICT (id) DO UPDATE
		SET username = EXCLUDED.username,
		    first_name = EXCLUDED.first_name,
		    last_name = EXCLUDED.last_name
		RETURNING id, username, first_name, last_name, approved, created_at,
		          (xmax = 0) AS inserted
	`, info.ID, info.Username, info.FirstName, info.LastName)
	if err != nil {
		return User{}, false, fmt.Errorf("ensure user %d: %w", info.ID, err)
	}
	return row.User, row.Inserted, nil
}

// UserByID returns the user row for the given Telegram id.
func (s *Store) UserByID(ctx context.Context, id int64) (User, error) {
	var u User
	err := s.db.GetContext(ctx, &u, `
		SELECT id, username, first_name, last_name, approved, created_at
		FROM users WHERE id = $1
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrUserNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("user %d: %w", id, err)
	}
	return u, nil
}

// SetApproved flips the registration gate flag.
func (s *Store) SetApproved(ctx context.Context, id int64, approved bool) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET approved = $2 WHERE id = $1`, id, approved)
	if err != nil {
		return fmt.Errorf("set approved for %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrUserNotFound
	}
	return nil
}

// ListUsers returns all users ordered by display name.
func (s *Store) ListUsers(ctx context.Context) ([]User, error) {
	var users []User
	err := s.db.SelectContext(ctx, &users, `
		SELECT id, username, first_name, last_name, approved, created_at
		FROM users
		ORDER BY lower(coalesce(nullif(username, ''), first_name)), id
	`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// Balance returns the user's balance for one slot; a missing row counts as zero.
func (s *Store) Balance(ctx context.Context, userID int64, slot int) (decimal.Decimal, error) {
	var kwh decimal.Decimal
	err := s.db.GetContext(ctx, &kwh, `
		SELECT coalesce(
			(SELECT kwh FROM balances WHERE user_id = $1 AND slot = $2), 0)
	`, userID, slot)
	if err != nil {
		return decimal.Zero, fmt.Errorf("balance of %d slot %d: %w", userID, slot, err)
	}
	return kwh, nil
}

// Balances returns one entry per requested slot, zero-filled for slots
// without a stored row.
func (s *Store) Balances(ctx context.Context, userID int64, slots []int) ([]SlotBalance, error) {
	var stored []SlotBalance
	err := s.db.SelectContext(ctx, &stored, `
		SELECT slot, kwh FROM balances WHERE user_id = $1
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("balances of %d: %w", userID, err)
	}
	bySlot := make(map[int]decimal.Decimal, len(stored))
	for _, b := range stored {
		bySlot[b.Slot] = b.KWH
	}
	out := make([]SlotBalance, 0, len(slots))
	for _, slot := range slots {
		out = append(out, SlotBalance{Slot: slot, KWH: bySlot[slot]})
	}
	return out, nil
}

// ApplyDelta mutates one (user, slot) balance under a row lock and journals
// the operation. With allowNegative=false the mutation is rejected when the
// result would fall below zero.
func (s *Store) ApplyDelta(ctx context.Context, userID int64, slot int, delta decimal.Decimal, reason string, adminID int64, allowNegative bool) (old, updated decimal.Decimal, err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("begin: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	old, updated, err = applyDeltaTx(ctx, tx, userID, slot, delta, reason, adminID, allowNegative)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	if err := tx.Commit(); err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("commit: %w", err)
	}
	return old, updated, nil
}

// applyDeltaTx performs the read-modify-write inside the caller's
// transaction so approvals can combine it with the status flip.
func applyDeltaTx(ctx context.Context, tx *sqlx.Tx, userID int64, slot int, delta decimal.Decimal, reason string, adminID int64, allowNegative bool) (decimal.Decimal, decimal.Decimal, error) {
	var exists bool
	if err := tx.GetContext(ctx, &exists,
		`SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, userID); err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("check user %d: %w", userID, err)
	}
	if !exists {
		return decimal.Zero, decimal.Zero, ErrUserNotFound
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO balances (user_id, slot, kwh) VALUES ($1, $2, 0)
		ON CONFLICT (user_id, slot) DO NOTHING
	`, userID, slot); err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("seed balance row: %w", err)
	}

	var old decimal.Decimal
	if err := tx.GetContext(ctx, &old, `
		SELECT kwh FROM balances WHERE user_id = $1 AND slot = $2 FOR UPDATE
	`, userID, slot); err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("lock balance row: %w", err)
	}

	updated := old.Add(delta)
	if !allowNegative && updated.Sign() < 0 {
		return decimal.Zero, decimal.Zero, ErrNegativeBalance
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE balances SET kwh = $3 WHERE user_id = $1 AND slot = $2
	`, userID, slot, updated); err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("update balance: %w", err)
	}

	var admin any
	if adminID != 0 {
		admin = adminID
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO kwh_operations (user_id, slot, delta_kwh, reason, admin_id)
		VALUES ($1, $2, $3, $4, $5)
	`, userID, slot, delta, reason, admin); err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("journal operation: %w", err)
	}

	return old, updated, nil
}

// OperationsByUser returns the newest journal entries for one user, capped
// at limit.
func (s *Store) OperationsByUser(ctx context.Context, userID int64, limit int) ([]Operation, error) {
	var ops []Operation
	err := s.db.SelectContext(ctx, &ops, `
		SELECT id, user_id, slot, delta_kwh, reason, admin_id, created_at
		FROM kwh_operations WHERE user_id = $1
		ORDER BY id DESC LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list user operations: %w", err)
	}
	return ops, nil
}

// Operations returns the balance mutation journal, oldest first.
func (s *Store) Operations(ctx context.Context) ([]Operation, error) {
	var ops []Operation
	err := s.db.SelectContext(ctx, &ops, `
		SELECT id, user_id, slot, delta_kwh, reason, admin_id, created_at
		FROM kwh_operations ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("list operations: %w", err)
	}
	return ops, nil
}
