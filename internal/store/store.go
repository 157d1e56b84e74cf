// Package store persists users, slot balances, recharge requests and the
// admin notification registry on PostgreSQL. Every mutation that must be
// atomic runs inside a single transaction with row-level locks.
package store

import "github.com/jmoiron/sqlx"

// Store is the shared persistence layer.
type Store struct {
	db *sqlx.DB
}

// New wraps an open database handle.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}
