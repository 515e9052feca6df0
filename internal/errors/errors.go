package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

type ErrorCode string

const (
	AccountNotFound         ErrorCode = "account_not_found"
	UserNotFound            ErrorCode = "user_not_found"
	SnapshotNotFound        ErrorCode = "snapshot_not_found"
	DuplicateUsername       ErrorCode = "duplicate_username"
	InvalidCredentials      ErrorCode = "invalid_credentials"
	InvalidAmount           ErrorCode = "invalid_amount"
	InvalidInput            ErrorCode = "invalid_input"
	DailyLimitExceeded      ErrorCode = "daily_limit_exceeded"
	AccountBlocked          ErrorCode = "account_blocked"
	RecipientAccountBlocked ErrorCode = "recipient_account_blocked"
	SelfTransfer            ErrorCode = "self_transfer"
	RecipientNotFound       ErrorCode = "recipient_not_found"
	RecipientHasNoAccount   ErrorCode = "recipient_has_no_account"
	Unauthorized            ErrorCode = "unauthorized"
	Forbidden               ErrorCode = "forbidden"
	IOError                 ErrorCode = "io_error"
	InternalError           ErrorCode = "internal_error"
)

type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details string    `json:"details,omitempty"`
	cause   error
}

func (e AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is matches any AppError carrying the same code, so wrapped or detailed
// copies still compare equal to the predefined errors below.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	return ok && t.Code == e.Code
}

func (e *AppError) Unwrap() error {
	return e.cause
}

func NewAppError(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// WithDetails returns a copy so the shared predefined errors stay untouched.
func (e *AppError) WithDetails(details string) *AppError {
	cp := *e
	cp.Details = details
	return &cp
}

// Wrap attaches cause as details and keeps it reachable through errors.Unwrap.
func (e *AppError) Wrap(cause error) *AppError {
	cp := *e
	cp.cause = cause
	if cause != nil {
		cp.Details = cause.Error()
	}
	return &cp
}

func (e *AppError) HTTPStatus() int {
	switch e.Code {
	case AccountNotFound, UserNotFound, RecipientNotFound:
		return http.StatusNotFound
	case DuplicateUsername:
		return http.StatusConflict
	case InvalidCredentials, Unauthorized:
		return http.StatusUnauthorized
	case Forbidden:
		return http.StatusForbidden
	case InvalidAmount, InvalidInput, SelfTransfer:
		return http.StatusBadRequest
	case DailyLimitExceeded, AccountBlocked, RecipientAccountBlocked, RecipientHasNoAccount:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// AsAppError unwraps err into an AppError, mapping anything unknown to an
// internal error.
func AsAppError(err error) *AppError {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	return ErrInternal.Wrap(err)
}

// Predefined errors for common cases
var (
	ErrAccountNotFound         = NewAppError(AccountNotFound, "account not found")
	ErrUserNotFound            = NewAppError(UserNotFound, "user not found")
	ErrSnapshotNotFound        = NewAppError(SnapshotNotFound, "no snapshot stored")
	ErrDuplicateUsername       = NewAppError(DuplicateUsername, "username already exists")
	ErrInvalidCredentials      = NewAppError(InvalidCredentials, "invalid username or password")
	ErrInvalidAmount           = NewAppError(InvalidAmount, "invalid amount")
	ErrInvalidInput            = NewAppError(InvalidInput, "invalid input")
	ErrDailyLimitExceeded      = NewAppError(DailyLimitExceeded, "daily deposit limit exceeded")
	ErrAccountBlocked          = NewAppError(AccountBlocked, "account is blocked")
	ErrRecipientAccountBlocked = NewAppError(RecipientAccountBlocked, "recipient account is blocked")
	ErrSelfTransfer            = NewAppError(SelfTransfer, "cannot transfer to yourself")
	ErrRecipientNotFound       = NewAppError(RecipientNotFound, "recipient not found")
	ErrRecipientHasNoAccount   = NewAppError(RecipientHasNoAccount, "recipient has no accounts")
	ErrUnauthorized            = NewAppError(Unauthorized, "authentication required")
	ErrForbidden               = NewAppError(Forbidden, "operation not permitted")
	ErrIO                      = NewAppError(IOError, "persistence failure")
	ErrInternal                = NewAppError(InternalError, "an unexpected error occurred")
)
