package store

import "errors"

var (
	// ErrUserNotFound reports a missing user row.
	ErrUserNotFound = errors.New("user not found")
	// ErrRequestNotFound reports a missing recharge request.
	ErrRequestNotFound = errors.New("recharge request not found")
	// ErrAlreadyDecided reports a decision attempted on a non-pending request.
	// The accompanying DecideResult still carries the current record.
	ErrAlreadyDecided = errors.New("recharge request already decided")
	// ErrNegativeBalance reports a delta that would drive a balance below
	// zero while the negative-balance policy forbids it.
	ErrNegativeBalance = errors.New("balance would become negative")
)
