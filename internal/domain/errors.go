package domain

import (
	"errors"
	"fmt"
)

// Error categories. Call sites wrap these with fmt.Errorf("...: %w", ...) so
// callers can classify with errors.Is while still seeing a concrete reason.
var (
	// ErrValidation marks malformed input; never worth retrying as-is.
	ErrValidation = errors.New("validation failed")

	// ErrUnauthorized marks the wrong principal kind or identity for an
	// operation; never worth retrying.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrStateConflict marks a resource not in the state the operation
	// requires; timing-related conflicts may succeed on a later retry.
	ErrStateConflict = errors.New("state conflict")

	// ErrIntegrity marks a missing required related row; a data bug, not a
	// caller mistake.
	ErrIntegrity = errors.New("integrity violation")

	// ErrGateway marks a failed escrow gateway call.
	ErrGateway = errors.New("escrow gateway failure")

	ErrNotFound    = errors.New("not found")
	ErrRateLimited = errors.New("rate limited")
	ErrLockHeld    = errors.New("lock already held")
)

// Derived sentinels for the two close/complete outcomes callers branch on.
var (
	// ErrNotClosable is returned when an auction close finds the slot
	// already closed or not yet due. It classifies as a state conflict.
	ErrNotClosable = fmt.Errorf("auction not closable: %w", ErrStateConflict)

	// ErrDeadlinePassed is returned when a completion arrives after the
	// contract deadline; the caller must not retry completion, the contract
	// will be breached instead. It classifies as a state conflict.
	ErrDeadlinePassed = fmt.Errorf("contract deadline passed: %w", ErrStateConflict)
)
