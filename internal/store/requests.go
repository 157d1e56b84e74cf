package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// CreateRequest persists a new pending recharge request.
func (s *Store) CreateRequest(ctx context.Context, in CreateRequestInput) (RechargeRequest, error) {
	if in.KWH.Sign() <= 0 {
		return RechargeRequest{}, fmt.Errorf("create request: quantity %s not positive", in.KWH)
	}
	var req RechargeRequest
	err := s.db.GetContext(ctx, &req, `
		INSERT INTO recharge_requests (user_id, slot, kwh, photo_file_id, note, status)
		VALUES ($1, $2, $3, $4, $5, 'pending')
		RETURNING id, user_id, slot, kwh, photo_file_id, note, status,
		          created_at, decided_at, decided_by
	`, in.UserID, in.Slot, in.KWH, in.PhotoFileID, in.Note)
	if err != nil {
		return RechargeRequest{}, fmt.Errorf("create request for %d: %w", in.UserID, err)
	}
	return req, nil
}

// RequestByID returns one recharge request.
func (s *Store) RequestByID(ctx context.Context, id int64) (RechargeRequest, error) {
	var req RechargeRequest
	err := s.db.GetContext(ctx, &req, `
		SELECT id, user_id, slot, kwh, photo_file_id, note, status,
		       created_at, decided_at, decided_by
		FROM recharge_requests WHERE id = $1
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return RechargeRequest{}, ErrRequestNotFound
	}
	if err != nil {
		return RechargeRequest{}, fmt.Errorf("request %d: %w", id, err)
	}
	return req, nil
}

// PendingSum returns the sum of pending request quantities for one
// (user, slot). Recomputed on demand, never stored.
func (s *Store) PendingSum(ctx context.Context, userID int64, slot int) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := s.db.GetContext(ctx, &sum, `
		SELECT coalesce(sum(kwh), 0) FROM recharge_requests
		WHERE user_id = $1 AND slot = $2 AND status = 'pending'
	`, userID, slot)
	if err != nil {
		return decimal.Zero, fmt.Errorf("pending sum of %d slot %d: %w", userID, slot, err)
	}
	return sum, nil
}

// PendingRequests lists every pending request, oldest first.
func (s *Store) PendingRequests(ctx context.Context) ([]RechargeRequest, error) {
	var reqs []RechargeRequest
	err := s.db.SelectContext(ctx, &reqs, `
		SELECT id, user_id, slot, kwh, photo_file_id, note, status,
		       created_at, decided_at, decided_by
		FROM recharge_requests WHERE status = 'pending' ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("list pending requests: %w", err)
	}
	return reqs, nil
}

// Decide applies an approve/reject decision exactly once. The request row is
// locked for the duration of the transaction, so of two racing decisions only
// the first observes 'pending'; the loser gets ErrAlreadyDecided together
// with the already-decided record. Approval decrements the requester's slot
// balance in the same transaction; negative results are permitted.
func (s *Store) Decide(ctx context.Context, requestID int64, approve bool, adminID int64) (DecideResult, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return DecideResult{}, fmt.Errorf("begin: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var req RechargeRequest
	err = tx.GetContext(ctx, &req, `
		SELECT id, user_id, slot, kwh, photo_file_id, note, status,
		       created_at, decided_at, decided_by
		FROM recharge_requests WHERE id = $1 FOR UPDATE
	`, requestID)
	if errors.Is(err, sql.ErrNoRows) {
		return DecideResult{}, ErrRequestNotFound
	}
	if err != nil {
		return DecideResult{}, fmt.Errorf("lock request %d: %w", requestID, err)
	}

	if req.Status != StatusPending {
		return DecideResult{Request: req}, ErrAlreadyDecided
	}

	res := DecideResult{}
	status := StatusRejected
	if approve {
		status = StatusApproved
		res.OldBalance, res.NewBalance, err = applyDeltaTx(
			ctx, tx, req.UserID, req.Slot, req.KWH.Neg(), "recharge_approved", adminID, true)
		if err != nil {
			return DecideResult{}, fmt.Errorf("apply approval delta: %w", err)
		}
	}

	err = tx.GetContext(ctx, &req, `
		UPDATE recharge_requests
		SET status = $2, decided_at = now(), decided_by = $3
		WHERE id = $1
		RETURNING id, user_id, slot, kwh, photo_file_id, note, status,
		          created_at, decided_at, decided_by
	`, requestID, status, adminID)
	if err != nil {
		return DecideResult{}, fmt.Errorf("flip request %d status: %w", requestID, err)
	}
	res.Request = req

	if err := tx.Commit(); err != nil {
		return DecideResult{}, fmt.Errorf("commit: %w", err)
	}
	return res, nil
}
