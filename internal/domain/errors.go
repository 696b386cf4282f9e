package domain

import (
	"errors"
	"fmt"
)

// ─── Error Codes ────────────────────────────────────────────────────────────
// Domain errors are pure, no infrastructure dependency. Every business
// failure carries a machine-readable code so callers can branch exhaustively.

// ErrorCode identifies a business error kind.
type ErrorCode string

const (
	CodeNotClaimable       ErrorCode = "NOT_CLAIMABLE"
	CodeAlreadyClaimed     ErrorCode = "ALREADY_CLAIMED"
	CodeAlreadyPaused      ErrorCode = "ALREADY_PAUSED"
	CodeNotPaused          ErrorCode = "NOT_PAUSED"
	CodePauseTooLong       ErrorCode = "PAUSE_TOO_LONG"
	CodeNoShieldsAvailable ErrorCode = "NO_SHIELDS_AVAILABLE"
	CodeRecoveryInProgress ErrorCode = "RECOVERY_IN_PROGRESS"
	CodeRecoveryExpired    ErrorCode = "RECOVERY_EXPIRED"
	CodeRecoveryNotFound   ErrorCode = "RECOVERY_NOT_FOUND"
	CodeInvalidMetricType  ErrorCode = "INVALID_METRIC_TYPE"
	CodeInvalidInput       ErrorCode = "INVALID_INPUT"
	CodeInvalidTimezone    ErrorCode = "INVALID_TIMEZONE"
)

// Error is a coded business error.
type Error struct {
	Code    ErrorCode
	Message string

	// Set for PAUSE_TOO_LONG only.
	MaxDays       int
	RequestedDays int
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Code)
	}
	return e.Message
}

// Is matches any *Error with the same code, so the sentinels below work
// with errors.Is regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// ─── Sentinel Errors ────────────────────────────────────────────────────────

var (
	// Claim errors
	ErrNotClaimable   = &Error{Code: CodeNotClaimable, Message: "date is not claimable"}
	ErrAlreadyClaimed = &Error{Code: CodeAlreadyClaimed, Message: "date already claimed"}

	// Pause state machine
	ErrAlreadyPaused = &Error{Code: CodeAlreadyPaused, Message: "streak is already paused"}
	ErrNotPaused     = &Error{Code: CodeNotPaused, Message: "streak is not paused"}
	ErrPauseTooLong  = &Error{Code: CodePauseTooLong, Message: "pause exceeds maximum duration"}

	// Shields
	ErrNoShieldsAvailable = &Error{Code: CodeNoShieldsAvailable, Message: "no shields available"}

	// Recovery state machine
	ErrRecoveryInProgress = &Error{Code: CodeRecoveryInProgress, Message: "a recovery is already pending for this date"}
	ErrRecoveryExpired    = &Error{Code: CodeRecoveryExpired, Message: "recovery window has expired"}
	ErrRecoveryNotFound   = &Error{Code: CodeRecoveryNotFound, Message: "recovery not found"}

	// Input
	ErrInvalidMetricType = &Error{Code: CodeInvalidMetricType, Message: "unknown metric type"}
	ErrInvalidInput      = &Error{Code: CodeInvalidInput, Message: "invalid input"}
	ErrInvalidTimezone   = &Error{Code: CodeInvalidTimezone, Message: "invalid timezone"}
)

// NotClaimable builds a NOT_CLAIMABLE error carrying the user-facing reason.
func NotClaimable(reason string) *Error {
	return &Error{Code: CodeNotClaimable, Message: reason}
}

// PauseTooLong reports the allowed and requested pause lengths in days.
func PauseTooLong(maxDays, requestedDays int) *Error {
	return &Error{
		Code:          CodePauseTooLong,
		Message:       fmt.Sprintf("pause of %d days exceeds maximum of %d days", requestedDays, maxDays),
		MaxDays:       maxDays,
		RequestedDays: requestedDays,
	}
}

// InvalidMetricType reports an unknown metric key.
func InvalidMetricType(metric string) *Error {
	return &Error{Code: CodeInvalidMetricType, Message: fmt.Sprintf("unknown metric type %q", metric)}
}

// InvalidInput wraps a validation message.
func InvalidInput(format string, args ...any) *Error {
	return &Error{Code: CodeInvalidInput, Message: fmt.Sprintf(format, args...)}
}

// CodeOf extracts the code from err, or "" for non-domain errors.
func CodeOf(err error) ErrorCode {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}
