package ledger

import "errors"

var (
	// ErrNotFound indicates the distribution is not in the store.
	ErrNotFound = errors.New("ledger: distribution not found")

	// ErrDuplicate indicates a distribution with this ID already exists.
	ErrDuplicate = errors.New("ledger: duplicate distribution")

	// ErrNilParam indicates a required parameter is nil.
	ErrNilParam = errors.New("ledger: required parameter is nil")

	// ErrInvalidID indicates an empty distribution ID.
	ErrInvalidID = errors.New("ledger: invalid distribution ID")
)
