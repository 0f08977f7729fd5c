package errors

import "errors"

var (
	ErrTokenNotFound = errors.New("queue token not found")
	// ErrTokenNumberConflict means another visitor took the candidate token number first.
	ErrTokenNumberConflict = errors.New("token number already taken in this partition")
	ErrInvalidStatus       = errors.New("invalid token status")
)
