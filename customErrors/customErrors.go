package customErrors

import (
	"errors"
	"fmt"
)

const (
	ErrNotFound          = "NOT FOUND"
	ErrInvalidInput      = "INVALID INPUT"
	ErrAuth              = "UNAUTHORIZED"
	ErrInsufficientFunds = "INSUFFICIENT FUNDS"
	ErrAlreadyPaid       = "ALREADY PAID"
	ErrConflict          = "CONFLICT"
	ErrInternal          = "INTERNAL"
)

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e ErrorResponse) Error() string {
	return fmt.Sprintf("code: %s, message: %s", e.Code, e.Message)
}

// Is matches on Code only, so errors.Is(err, customErrors.NotFound) works
// for any message.
func (e ErrorResponse) Is(target error) bool {
	t, ok := target.(ErrorResponse)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Kind sentinels for errors.Is.
var (
	NotFound          = ErrorResponse{Code: ErrNotFound}
	InvalidInput      = ErrorResponse{Code: ErrInvalidInput}
	Unauthorized      = ErrorResponse{Code: ErrAuth}
	InsufficientFunds = ErrorResponse{Code: ErrInsufficientFunds}
	AlreadyPaid       = ErrorResponse{Code: ErrAlreadyPaid}
	Conflict          = ErrorResponse{Code: ErrConflict}
	Internal          = ErrorResponse{Code: ErrInternal}
)

func New(code string, format string, args ...any) ErrorResponse {
	return ErrorResponse{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// CodeOf returns the code of the first ErrorResponse in err's chain, or
// ErrInternal when there is none.
func CodeOf(err error) string {
	var appErr ErrorResponse
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrInternal
}

// MessageOf returns the user facing message of err.
func MessageOf(err error) string {
	var appErr ErrorResponse
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return err.Error()
}
