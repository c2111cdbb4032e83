package model

import "errors"

// ErrorKind classifies a rejected operation
type ErrorKind string

const (
	KindValidation    ErrorKind = "validation"
	KindNotFound      ErrorKind = "not_found"
	KindUnauthorized  ErrorKind = "unauthorized"
	KindInvalidState  ErrorKind = "invalid_state"
	KindConflict      ErrorKind = "conflict"
	KindReclaimFailed ErrorKind = "reclaim_failed"
	KindInternal      ErrorKind = "internal"
)

// Error is a typed domain error with a user-facing message
type Error struct {
	Kind    ErrorKind
	Message string
}

// Error implements the error interface
func (e *Error) Error() string {
	return e.Message
}

func newError(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// KindOf returns the kind of a domain error, or KindInternal for anything else
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Common errors used across the application
var (
	// Validation errors
	ErrInvalidGameCode = newError(KindValidation, "game code is not valid")
	ErrInvalidName     = newError(KindValidation, "player name must be 1-32 characters")
	ErrInvalidPIN      = newError(KindValidation, "PIN must be 4-8 digits")
	ErrDuplicateName   = newError(KindValidation, "player names must be unique")
	ErrTooFewPlayers   = newError(KindValidation, "at least two player names are required")
	ErrNoTasks         = newError(KindValidation, "at least one task is required")
	ErrTaskSources     = newError(KindValidation, "provide tasks as text or as a file, not both")
	ErrInvalidTask     = newError(KindValidation, "tasks must be at most 280 characters")
	ErrInvalidRequest  = newError(KindValidation, "request is malformed")

	// Not found errors
	ErrGameNotFound   = newError(KindNotFound, "game not found")
	ErrPlayerNotFound = newError(KindNotFound, "player not found")
	ErrKillerNotFound = newError(KindNotFound, "killer not found")

	// Authorization errors
	ErrNotCreator     = newError(KindUnauthorized, "only the game creator can do that")
	ErrInvalidSession = newError(KindUnauthorized, "your session is no longer valid")
	ErrNotIdentified  = newError(KindUnauthorized, "claim a player before doing that")

	// State errors
	ErrGameAlreadyStarted  = newError(KindInvalidState, "game has already started")
	ErrGameNotActive       = newError(KindInvalidState, "game is not active")
	ErrGameFinished        = newError(KindInvalidState, "game is finished")
	ErrInsufficientPlayers = newError(KindInvalidState, "at least two players must join before starting")
	ErrPlayerNotAlive      = newError(KindInvalidState, "player is not alive")
	ErrVictimNotAlive      = newError(KindInvalidState, "target is not alive")
	ErrNoTarget            = newError(KindInvalidState, "you have no target")
	ErrTargetMismatch      = newError(KindInvalidState, "you are not that player's killer")

	// Conflict errors
	ErrPlayerUnavailable = newError(KindConflict, "that player has already been claimed")
	ErrGameCodeTaken     = newError(KindConflict, "game code already in use")

	// Reclaim errors share one message whatever the mismatch
	ErrReclaimFailed = newError(KindReclaimFailed, "could not reclaim: name or PIN is incorrect")
)
