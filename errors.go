package loginregister

import (
	"errors"
	"fmt"

	"github.com/Anonymus123-11/login-register/account"
	"github.com/Anonymus123-11/login-register/internal/rate"
	"github.com/Anonymus123-11/login-register/password"
)

var (
	// ErrMissingField is returned when a required input is empty.
	ErrMissingField = errors.New("missing required field")
	// ErrInvalidAddress is returned for an address that does not parse as a mailbox.
	ErrInvalidAddress = errors.New("invalid address")
	// ErrPasswordPolicy is returned when a new password violates the length policy.
	ErrPasswordPolicy = errors.New("password policy violation")
	// ErrInvalidRole is returned for a role outside {user, admin}.
	ErrInvalidRole = errors.New("invalid role")
	// ErrInvalidValidationMode is returned by Validate for an unknown mode.
	ErrInvalidValidationMode = errors.New("invalid validation mode")

	// ErrDuplicateIdentity is returned when the handle or address is taken.
	ErrDuplicateIdentity = errors.New("handle or address already registered")

	// ErrAccountNotFound is returned for an unknown account or address.
	ErrAccountNotFound = errors.New("account not found")

	// ErrInvalidCredentials covers both an unknown handle and a wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrNotVerified is returned by Login for an unverified standard account.
	ErrNotVerified = errors.New("account not verified")
	// ErrAlreadyVerified is returned by ResendCode for a verified account.
	ErrAlreadyVerified = errors.New("account already verified")
	// ErrNoCodeIssued is returned when no code of the requested purpose is pending.
	ErrNoCodeIssued = errors.New("no code issued")
	// ErrInvalidCode is returned when a code does not match the pending one.
	ErrInvalidCode = errors.New("invalid code")
	// ErrCodeExpired is returned when the pending code is past its expiry.
	ErrCodeExpired = errors.New("code expired")
	// ErrCodeAttemptsExceeded is returned when a code was guessed wrong too
	// often; the code is discarded.
	ErrCodeAttemptsExceeded = errors.New("code attempts exceeded")
	// ErrMissingToken is returned when no token was presented.
	ErrMissingToken = errors.New("missing token")
	// ErrInvalidRefreshToken is returned when a refresh token fails
	// verification or is not the account's active one.
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	// ErrRefreshReuse is returned when a superseded refresh token is presented
	// while rotation is enabled. The active token is revoked as a consequence.
	ErrRefreshReuse = errors.New("refresh token reuse detected")
	// ErrTokenInvalid is returned for an access token that fails verification.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrUnauthenticated is returned when an operation needs a principal and
	// the context carries none.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrForbidden is returned when the principal lacks the required role.
	ErrForbidden = errors.New("forbidden")

	// ErrDeliveryFailed is wrapped by [DeliveryError].
	ErrDeliveryFailed = errors.New("code delivery failed")
	// ErrStoreUnavailable wraps unexpected account store failures.
	ErrStoreUnavailable = errors.New("account store unavailable")
	// ErrConcurrentUpdate is returned when optimistic retries are exhausted.
	ErrConcurrentUpdate = errors.New("concurrent update, retry")

	// ErrRateLimited is returned by the optional throttles.
	ErrRateLimited = errors.New("rate limited")

	// ErrEngineNotReady is returned by methods called on a nil or closed engine.
	ErrEngineNotReady = errors.New("engine not initialized")
)

// ErrorKind classifies engine errors for the transport layer.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindValidation
	KindConflict
	KindNotFound
	KindAuth
	KindAuthorization
	KindDependency
	KindThrottled
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	case KindAuth:
		return "auth"
	case KindAuthorization:
		return "authorization"
	case KindDependency:
		return "dependency"
	case KindThrottled:
		return "throttled"
	default:
		return "unknown"
	}
}

// KindOf maps err onto the error taxonomy. Unrecognized errors are
// KindUnknown, which callers should treat as an internal failure.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return KindUnknown
	case errors.Is(err, ErrMissingField),
		errors.Is(err, ErrInvalidAddress),
		errors.Is(err, ErrPasswordPolicy),
		errors.Is(err, ErrInvalidRole),
		errors.Is(err, ErrInvalidValidationMode),
		errors.Is(err, password.ErrEmptyPassword),
		errors.Is(err, password.ErrPasswordTooLong):
		return KindValidation
	case errors.Is(err, ErrDuplicateIdentity):
		return KindConflict
	case errors.Is(err, ErrAccountNotFound):
		return KindNotFound
	case errors.Is(err, ErrInvalidCredentials),
		errors.Is(err, ErrNotVerified),
		errors.Is(err, ErrAlreadyVerified),
		errors.Is(err, ErrNoCodeIssued),
		errors.Is(err, ErrInvalidCode),
		errors.Is(err, ErrCodeExpired),
		errors.Is(err, ErrCodeAttemptsExceeded),
		errors.Is(err, ErrMissingToken),
		errors.Is(err, ErrInvalidRefreshToken),
		errors.Is(err, ErrRefreshReuse),
		errors.Is(err, ErrTokenInvalid),
		errors.Is(err, ErrUnauthenticated):
		return KindAuth
	case errors.Is(err, ErrForbidden):
		return KindAuthorization
	case errors.Is(err, ErrDeliveryFailed),
		errors.Is(err, ErrStoreUnavailable),
		errors.Is(err, ErrConcurrentUpdate),
		errors.Is(err, ErrEngineNotReady):
		return KindDependency
	case errors.Is(err, ErrRateLimited):
		return KindThrottled
	default:
		return KindUnknown
	}
}

// DeliveryError reports that the state change was committed but the code
// could not be handed to the notification channel. The caller may retry
// through ResendCode or ForgotPassword.
type DeliveryError struct {
	Purpose string
	Err     error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("%s: %s code: %v", ErrDeliveryFailed.Error(), e.Purpose, e.Err)
}

// Unwrap exposes both ErrDeliveryFailed and the channel's own error.
func (e *DeliveryError) Unwrap() []error {
	return []error{ErrDeliveryFailed, e.Err}
}

// IsDeliveryError reports whether err carries a [DeliveryError].
func IsDeliveryError(err error) bool {
	var de *DeliveryError
	return errors.As(err, &de)
}

// storeErr translates account store errors into engine errors.
func storeErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, account.ErrNotFound):
		return ErrAccountNotFound
	case errors.Is(err, account.ErrDuplicate):
		return ErrDuplicateIdentity
	case errors.Is(err, account.ErrVersionConflict):
		return ErrConcurrentUpdate
	default:
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
}

// limiterErr translates limiter errors into engine errors.
func limiterErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, rate.ErrRateLimited):
		return ErrRateLimited
	default:
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
}
