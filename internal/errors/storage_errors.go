package errors

import "errors"

var (
	ErrKeyNotFound      = errors.New("local storage key not found")
	ErrStoreUnavailable = errors.New("local storage unavailable")
)
