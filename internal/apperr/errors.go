// Package apperr holds the error taxonomy shared by the services and the HTTP layer.
//
// Services wrap these sentinels with context:
//
//	return fmt.Errorf("%w: chemical %d", apperr.ErrNotFound, id)
//
// and the HTTP error handler classifies them with errors.Is.
package apperr

import (
	"errors"
	"net/http"
)

var (
	// ErrNotFound is returned when a referenced chemical or user does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidAmount is returned for non-positive or non-finite quantities.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrInvalidInput covers any other malformed request field.
	ErrInvalidInput = errors.New("invalid input")

	// ErrDuplicateName is a uniqueness violation on chemical name or username.
	ErrDuplicateName = errors.New("duplicate name")

	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")

	// ErrSelfLockout is returned when a super admin tries to deactivate or delete themselves.
	ErrSelfLockout = errors.New("cannot deactivate or delete your own account")

	// ErrConflict is returned when a stock snapshot kept changing under a mutation.
	ErrConflict = errors.New("concurrent modification")

	// ErrStorage wraps any underlying persistence failure.
	ErrStorage = errors.New("storage error")

	// ErrNotificationDelivery wraps mail transport failures. It never leaves the monitor.
	ErrNotificationDelivery = errors.New("notification delivery failed")
)

// Status maps an error to the HTTP status the API answers with.
func Status(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidAmount),
		errors.Is(err, ErrInvalidInput),
		errors.Is(err, ErrSelfLockout):
		return http.StatusBadRequest
	case errors.Is(err, ErrDuplicateName), errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrNotificationDelivery):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// IsUserFacing reports whether err is an expected outcome whose message can be
// shown to the caller as is. Everything else is logged and masked.
func IsUserFacing(err error) bool {
	for _, target := range []error{
		ErrNotFound, ErrInvalidAmount, ErrInvalidInput, ErrDuplicateName,
		ErrUnauthorized, ErrForbidden, ErrSelfLockout, ErrConflict,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
