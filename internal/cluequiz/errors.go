package cluequiz

import (
	"errors"
	"fmt"
)

// Kind groups errors by how callers are expected to react.
type Kind string

const (
	KindGame        Kind = "game"
	KindPersistence Kind = "persistence"
	KindValidation  Kind = "validation"
	KindNetwork     Kind = "network"
)

// Code is a machine-readable error code.
type Code string

const (
	CodeInvalidState         Code = "INVALID_STATE"
	CodePlayerNotFound       Code = "PLAYER_NOT_FOUND"
	CodeNextProfileNotFound  Code = "NEXT_PROFILE_NOT_FOUND"
	CodeInsufficientScore    Code = "INSUFFICIENT_SCORE"
	CodeNotFound             Code = "NOT_FOUND"
	CodeInsufficientProfiles Code = "INSUFFICIENT_PROFILES"
	CodeInvalidInput         Code = "INVALID_INPUT"
	CodeSessionNotFound      Code = "SESSION_NOT_FOUND"
	CodeSessionCorrupted     Code = "SESSION_CORRUPTED"
	CodeSaveFailed           Code = "SAVE_FAILED"
	CodeFetchFailed          Code = "FETCH_FAILED"
	CodeUnknown              Code = "UNKNOWN"
)

var (
	ErrInvalidState         = errors.New("invalid state")
	ErrPlayerNotFound       = errors.New("player not found")
	ErrNextProfileNotFound  = errors.New("next profile not found")
	ErrInsufficientScore    = errors.New("insufficient score")
	ErrNotFound             = errors.New("not found")
	ErrInsufficientProfiles = errors.New("insufficient profiles")
	ErrValidation           = errors.New("validation failed")
	ErrSessionNotFound      = errors.New("session not found")
	ErrSessionCorrupted     = errors.New("session corrupted")
	ErrPersistence          = errors.New("persistence failed")
	ErrNetwork              = errors.New("network failure")
)

// Error is the error type surfaced by the game core. It matches its
// sentinel and its cause with errors.Is.
type Error struct {
	Kind    Kind
	Code    Code
	Message string

	sentinel error
	cause    error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return e.Message + ": " + e.cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.sentinel != nil {
		errs = append(errs, e.sentinel)
	}
	if e.cause != nil {
		errs = append(errs, e.cause)
	}
	return errs
}

func newError(kind Kind, code Code, sentinel, cause error, format string, args ...any) *Error {
	return &Error{
		Kind:     kind,
		Code:     code,
		Message:  fmt.Sprintf(format, args...),
		sentinel: sentinel,
		cause:    cause,
	}
}

func InvalidState(format string, args ...any) *Error {
	return newError(KindGame, CodeInvalidState, ErrInvalidState, nil, format, args...)
}

func PlayerNotFound(id string) *Error {
	return newError(KindGame, CodePlayerNotFound, ErrPlayerNotFound, nil, "Player not found: %s", id)
}

func NextProfileNotFound(id string) *Error {
	return newError(KindGame, CodeNextProfileNotFound, ErrNextProfileNotFound, nil, "Next profile not found: %s", id)
}

func InsufficientScore(p Player, amount int) *Error {
	return newError(KindValidation, CodeInsufficientScore, ErrInsufficientScore, nil,
		"Cannot remove %d points from %s: current score is %d", amount, p.Name, p.Score)
}

func NotFound(format string, args ...any) *Error {
	return newError(KindGame, CodeNotFound, ErrNotFound, nil, format, args...)
}

func InsufficientProfiles(available, requested int) *Error {
	return newError(KindGame, CodeInsufficientProfiles, ErrInsufficientProfiles, nil,
		"Not enough unique profiles: %d available, %d requested", available, requested)
}

func Validation(format string, args ...any) *Error {
	return newError(KindValidation, CodeInvalidInput, ErrValidation, nil, format, args...)
}

func SessionNotFound(id string) *Error {
	return newError(KindPersistence, CodeSessionNotFound, ErrSessionNotFound, nil, "Session not found: %s", id)
}

func SessionCorrupted(id string, cause error) *Error {
	return newError(KindPersistence, CodeSessionCorrupted, ErrSessionCorrupted, cause, "Session %s could not be restored", id)
}

func SaveFailed(id string, cause error) *Error {
	return newError(KindPersistence, CodeSaveFailed, ErrPersistence, cause, "Saving session %s failed", id)
}

func Network(cause error, format string, args ...any) *Error {
	return newError(KindNetwork, CodeFetchFailed, ErrNetwork, cause, format, args...)
}

// ToSessionError normalizes err into the value stored on a session.
// Persistence failures are not recoverable in place.
func ToSessionError(err error) *SessionError {
	var e *Error
	if errors.As(err, &e) {
		return &SessionError{
			Code:        e.Code,
			Message:     e.Message,
			Informative: e.Kind != KindPersistence,
		}
	}
	return &SessionError{Code: CodeUnknown, Message: err.Error(), Informative: true}
}
