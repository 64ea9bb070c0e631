package auth

import (
	stderrors "errors"
	"strings"

	"github.com/goliatone/go-errors"
	"github.com/lib/pq"
)

const (
	TextCodeInvalidCredentials     = "INVALID_CREDENTIALS"
	TextCodeEmptyPassword          = "EMPTY_PASSWORD"
	TextCodeEmailRegistered        = "EMAIL_ALREADY_REGISTERED"
	TextCodeUnderage               = "UNDERAGE_REGISTRATION"
	TextCodeUserNotFound           = "USER_NOT_FOUND"
	TextCodePasswordUnchanged      = "PASSWORD_UNCHANGED"
	TextCodeTokenInvalid           = "TOKEN_INVALID"
	TextCodeTokenExpired           = "TOKEN_EXPIRED"
	TextCodeRefreshTokenInvalid    = "REFRESH_TOKEN_INVALID"
	TextCodeResetTokenInvalid      = "RESET_TOKEN_INVALID"
	TextCodeInsufficientRole       = "INSUFFICIENT_ROLE"
	TextCodeInsufficientPermission = "INSUFFICIENT_PERMISSION"
	TextCodeStoreUnavailable       = "STORE_UNAVAILABLE"
	TextCodeDuplicateRecord        = "DUPLICATE_RECORD"
	TextCodeRecordNotFound         = "RECORD_NOT_FOUND"
	TextCodeRoleExists             = "ROLE_EXISTS"
	TextCodePermissionExists       = "PERMISSION_EXISTS"
	TextCodeInvalidInput           = "INVALID_INPUT"
	TextCodeImmutableClaim         = "IMMUTABLE_CLAIM_MUTATION"
	TextCodeInvalidConfig          = "INVALID_CONFIG"
)

// ErrInvalidCredentials is returned for unknown emails and wrong passwords alike
var ErrInvalidCredentials = errors.New("invalid credentials", errors.CategoryAuth).
	WithTextCode(TextCodeInvalidCredentials).
	WithCode(errors.CodeUnauthorized)

// ErrMismatchedHashAndPassword is the hasher level mismatch error
var ErrMismatchedHashAndPassword = errors.New("the credentials provided are invalid", errors.CategoryAuth).
	WithTextCode(TextCodeInvalidCredentials).
	WithCode(errors.CodeUnauthorized)

// ErrNoEmptyString we refuse to hash empty passwords
var ErrNoEmptyString = errors.New("password can not be empty", errors.CategoryValidation).
	WithTextCode(TextCodeEmptyPassword).
	WithCode(errors.CodeBadRequest)

var ErrEmailAlreadyRegistered = errors.New("email already registered", errors.CategoryConflict).
	WithTextCode(TextCodeEmailRegistered).
	WithCode(errors.CodeConflict)

var ErrUnderageRegistration = errors.New("registrant does not meet the minimum age", errors.CategoryValidation).
	WithTextCode(TextCodeUnderage).
	WithCode(errors.CodeBadRequest)

var ErrUserNotFound = errors.New("user not found", errors.CategoryNotFound).
	WithTextCode(TextCodeUserNotFound).
	WithCode(errors.CodeNotFound)

var ErrPasswordUnchanged = errors.New("new password must be different", errors.CategoryValidation).
	WithTextCode(TextCodePasswordUnchanged).
	WithCode(errors.CodeBadRequest)

// ErrTokenInvalid covers bad signatures, malformed payloads and foreign secrets
var ErrTokenInvalid = errors.New("invalid token", errors.CategoryAuth).
	WithTextCode(TextCodeTokenInvalid).
	WithCode(errors.CodeUnauthorized)

var ErrTokenExpired = errors.New("token expired", errors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(errors.CodeUnauthorized)

var ErrInvalidRefreshToken = errors.New("invalid refresh token", errors.CategoryAuth).
	WithTextCode(TextCodeRefreshTokenInvalid).
	WithCode(errors.CodeUnauthorized)

var ErrInvalidResetToken = errors.New("invalid password reset token", errors.CategoryAuth).
	WithTextCode(TextCodeResetTokenInvalid).
	WithCode(errors.CodeUnauthorized)

var ErrInsufficientRole = errors.New("insufficient role", errors.CategoryAuthz).
	WithTextCode(TextCodeInsufficientRole).
	WithCode(errors.CodeForbidden)

var ErrInsufficientPermission = errors.New("insufficient permission", errors.CategoryAuthz).
	WithTextCode(TextCodeInsufficientPermission).
	WithCode(errors.CodeForbidden)

// ErrStoreUnavailable marks failures of the credential or policy store
var ErrStoreUnavailable = errors.New("store unavailable", errors.CategoryInternal).
	WithTextCode(TextCodeStoreUnavailable)

// ErrDuplicateRecord is returned by stores when a unique constraint fails
var ErrDuplicateRecord = errors.New("record already exists", errors.CategoryConflict).
	WithTextCode(TextCodeDuplicateRecord).
	WithCode(errors.CodeConflict)

var ErrAccountNotFound = errors.New("account not found", errors.CategoryNotFound).
	WithTextCode(TextCodeRecordNotFound).
	WithCode(errors.CodeNotFound)

var ErrRoutePolicyNotFound = errors.New("route policy not found", errors.CategoryNotFound).
	WithTextCode(TextCodeRecordNotFound).
	WithCode(errors.CodeNotFound)

var ErrRoleNotFound = errors.New("role not found", errors.CategoryNotFound).
	WithTextCode(TextCodeRecordNotFound).
	WithCode(errors.CodeNotFound)

var ErrPermissionNotFound = errors.New("permission not found", errors.CategoryNotFound).
	WithTextCode(TextCodeRecordNotFound).
	WithCode(errors.CodeNotFound)

var ErrRoleExists = errors.New("role already exists", errors.CategoryConflict).
	WithTextCode(TextCodeRoleExists).
	WithCode(errors.CodeConflict)

var ErrPermissionExists = errors.New("permission already exists", errors.CategoryConflict).
	WithTextCode(TextCodePermissionExists).
	WithCode(errors.CodeConflict)

var ErrImmutableClaimMutation = errors.New("immutable claim mutated", errors.CategoryInternal).
	WithTextCode(TextCodeImmutableClaim)

// storeFailure wraps infrastructure errors so callers can tell them apart
// from business rule failures.
func storeFailure(err error, message string) *errors.Error {
	return errors.Wrap(err, errors.CategoryInternal, message).
		WithTextCode(TextCodeStoreUnavailable)
}

// invalidInput wraps a validation failure coming from a message.
func invalidInput(err error, message string) *errors.Error {
	return errors.Wrap(err, errors.CategoryValidation, message).
		WithTextCode(TextCodeInvalidInput).
		WithCode(errors.CodeBadRequest)
}

// IsStoreUnavailable reports whether err was produced by a failing store.
func IsStoreUnavailable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrStoreUnavailable) {
		return true
	}
	var richErr *errors.Error
	if errors.As(err, &richErr) {
		return richErr.TextCode == TextCodeStoreUnavailable
	}
	return false
}

// IsUniqueViolation detects unique constraint failures across the drivers
// we support.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, ErrDuplicateRecord) {
		return true
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}

	// repository wrappers may hide the driver message behind their own
	for e := err; e != nil; e = stderrors.Unwrap(e) {
		msg := e.Error()
		if strings.Contains(msg, "UNIQUE constraint failed") ||
			strings.Contains(msg, "duplicate key value violates unique constraint") {
			return true
		}
	}
	return false
}

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTokenExpired) {
		return true
	}
	return strings.Contains(err.Error(), "token is expired")
}

// IsMalformedError will check for error message
func IsMalformedError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "token is malformed") ||
		strings.Contains(err.Error(), "missing or malformed JWT")
}

// errorTextCode returns the text code of a rich error, used as a metric
// label and in log lines.
func errorTextCode(err error) string {
	var richErr *errors.Error
	if errors.As(err, &richErr) && richErr.TextCode != "" {
		return richErr.TextCode
	}
	return "ERROR"
}
