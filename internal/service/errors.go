package service

import (
	"errors"
	"fmt"
)

var (
	ErrJoinInProgress = errors.New("a join request is already in progress")
	ErrAlreadyInQueue = errors.New("already holding a token for this service")
	ErrClientStopped  = errors.New("membership client stopped")
)

const (
	msgJoinFailed      = "Failed to join queue. Please try again."
	msgJoinUnreachable = "Could not reach the queue right now. Please try again."
)

// JoinError is a failed join as the visitor should see it. Err keeps the cause.
type JoinError struct {
	Message string
	Err     error
}

func (e *JoinError) Error() string {
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *JoinError) Unwrap() error {
	return e.Err
}
