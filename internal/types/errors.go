package types

import (
	"errors"
	"fmt"
)

// ErrorCode represents a specific error type
type ErrorCode string

const (
	// Spin precondition errors
	ErrClubNotFound        ErrorCode = "CLUB_NOT_FOUND"
	ErrClubInactive        ErrorCode = "CLUB_INACTIVE"
	ErrRouletteBusy        ErrorCode = "ROULETTE_BUSY"
	ErrInsufficientBalance ErrorCode = "INSUFFICIENT_BALANCE"
	ErrPrizeExhausted      ErrorCode = "PRIZE_EXHAUSTED"
	ErrGeofenceFailed      ErrorCode = "GEOFENCE_FAILED"
	ErrNoPrizesAvailable   ErrorCode = "NO_PRIZES_AVAILABLE"

	// Geofence reasons
	ErrMissingLocation ErrorCode = "MISSING_LOCATION"
	ErrTooFarFromClub  ErrorCode = "TOO_FAR_FROM_CLUB"

	// Account errors
	ErrAccountNotFound  ErrorCode = "ACCOUNT_NOT_FOUND"
	ErrAccountBanned    ErrorCode = "ACCOUNT_BANNED"
	ErrPermissionDenied ErrorCode = "PERMISSION_DENIED"
	ErrUnauthorized     ErrorCode = "UNAUTHORIZED"

	// Catalog and claim errors
	ErrPrizeNotFound ErrorCode = "PRIZE_NOT_FOUND"
	ErrSlotTaken     ErrorCode = "SLOT_TAKEN"
	ErrClaimNotFound ErrorCode = "CLAIM_NOT_FOUND"

	// Input errors
	ErrInvalidArgument ErrorCode = "INVALID_ARGUMENT"

	// System errors
	ErrDatabaseError ErrorCode = "DATABASE_ERROR"
	ErrInternalError ErrorCode = "INTERNAL_ERROR"
)

// Kind groups error codes by how a caller should react to them
type Kind string

const (
	KindValidation    Kind = "validation"
	KindConflict      Kind = "conflict"
	KindNotFound      Kind = "not_found"
	KindAuthorization Kind = "authorization"
	KindIntegration   Kind = "integration"
	KindInternal      Kind = "internal"
)

var codeKinds = map[ErrorCode]Kind{
	ErrClubNotFound:        KindNotFound,
	ErrClubInactive:        KindConflict,
	ErrRouletteBusy:        KindConflict,
	ErrInsufficientBalance: KindConflict,
	ErrPrizeExhausted:      KindConflict,
	ErrGeofenceFailed:      KindValidation,
	ErrNoPrizesAvailable:   KindConflict,
	ErrMissingLocation:     KindValidation,
	ErrTooFarFromClub:      KindValidation,
	ErrAccountNotFound:     KindNotFound,
	ErrAccountBanned:       KindAuthorization,
	ErrPermissionDenied:    KindAuthorization,
	ErrUnauthorized:        KindAuthorization,
	ErrPrizeNotFound:       KindNotFound,
	ErrSlotTaken:           KindConflict,
	ErrClaimNotFound:       KindNotFound,
	ErrInvalidArgument:     KindValidation,
	ErrDatabaseError:       KindInternal,
	ErrInternalError:       KindInternal,
}

// KindOf returns the kind registered for a code, KindInternal when unknown
func KindOf(code ErrorCode) Kind {
	if kind, ok := codeKinds[code]; ok {
		return kind
	}
	return KindInternal
}

// AppError is the error type surfaced by services to their callers
type AppError struct {
	Code    ErrorCode
	Message string

	// RetryAfterSeconds is set when the caller may retry later (cooldown)
	RetryAfterSeconds int

	// Reason carries a finer-grained code, e.g. the geofence failure reason
	Reason ErrorCode

	Err error // Underlying error, if any
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Err
}

// Kind returns the taxonomy bucket of the error
func (e *AppError) Kind() Kind {
	return KindOf(e.Code)
}

// New creates a new AppError
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error in an AppError
func Wrap(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Busy creates a RouletteBusy error carrying the retry hint
func Busy(retryAfterSeconds int) *AppError {
	return &AppError{
		Code:              ErrRouletteBusy,
		Message:           fmt.Sprintf("roulette is busy, retry in %d seconds", retryAfterSeconds),
		RetryAfterSeconds: retryAfterSeconds,
	}
}

// Geofence creates a GeofenceFailed error with the given reason
func Geofence(reason ErrorCode, message string) *AppError {
	return &AppError{
		Code:    ErrGeofenceFailed,
		Message: message,
		Reason:  reason,
	}
}

// Is checks if an error is an AppError with a specific code
func Is(err error, code ErrorCode) bool {
	var appErr *AppError
	if !As(err, &appErr) {
		return false
	}
	return appErr.Code == code
}

// As finds the first AppError in err's chain
func As(err error, target **AppError) bool {
	if err == nil || target == nil {
		return false
	}
	return errors.As(err, target)
}
