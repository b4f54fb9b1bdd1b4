package domain

import (
	"errors"
	"fmt"
)

type ErrCode string

const (
	CodeValidation   ErrCode = "validation_error"
	CodeNotFound     ErrCode = "not_found"
	CodeConflict     ErrCode = "conflict"
	CodeForbidden    ErrCode = "forbidden"
	CodeUnauthorized ErrCode = "unauthorized"
	CodeInvalidState ErrCode = "invalid_state"
	CodeInternal     ErrCode = "internal"

	// Transport codes. These travel across process boundaries in logs and
	// dead-letter records, so they keep their screaming historical spelling.
	CodeBusUnavailable ErrCode = "SERVICEBUS_UNAVAILABLE"
	CodeDBUnavailable  ErrCode = "DB_UNAVAILABLE"
)

// retryableCodes is the closed set of codes that mean "try again later".
// Membership here is what makes an error retryable even when it arrives
// as a foreign type that only exposes its code.
var retryableCodes = map[string]bool{
	string(CodeBusUnavailable): true,
	string(CodeDBUnavailable):  true,
}

type AppError struct {
	Code    ErrCode
	Message string
	Meta    map[string]string

	// Retryable marks transient faults. Permanent faults dead-letter;
	// retryable ones go back to the transport for redelivery.
	Retryable bool
}

func (e *AppError) Error() string {
	if len(e.Meta) == 0 {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Meta)
}

func (e *AppError) ErrorCode() string { return string(e.Code) }
func (e *AppError) Temporary() bool   { return e.Retryable }

func ErrValidation(msg string) error { return &AppError{Code: CodeValidation, Message: msg} }
func ErrValidationMeta(msg string, meta map[string]string) error {
	return &AppError{Code: CodeValidation, Message: msg, Meta: meta}
}
func ErrNotFound(msg string) error     { return &AppError{Code: CodeNotFound, Message: msg} }
func ErrConflict(msg string) error     { return &AppError{Code: CodeConflict, Message: msg} }
func ErrForbidden(msg string) error    { return &AppError{Code: CodeForbidden, Message: msg} }
func ErrUnauthorized(msg string) error { return &AppError{Code: CodeUnauthorized, Message: msg} }
func ErrInvalidState(msg string) error { return &AppError{Code: CodeInvalidState, Message: msg} }
func ErrInternal(msg string) error     { return &AppError{Code: CodeInternal, Message: msg} }

// ErrBusUnavailable marks a message-bus fault as retryable.
func ErrBusUnavailable(msg string) error {
	return &AppError{Code: CodeBusUnavailable, Message: msg, Retryable: true}
}

// ErrDBUnavailable marks a storage fault as retryable.
func ErrDBUnavailable(msg string) error {
	return &AppError{Code: CodeDBUnavailable, Message: msg, Retryable: true}
}

// ErrLocationNotFound is the permanent fault for a missing location that
// was addressed explicitly.
func ErrLocationNotFound(locationID string) error {
	return &AppError{
		Code:    CodeNotFound,
		Message: "location not found",
		Meta:    map[string]string{"location_id": locationID},
	}
}

// IsRetryable decides whether a failure should be redelivered. The check is
// structural rather than nominal: type identity is lost once an error has
// crossed a queue or RPC hop, so any error exposing Temporary() or a code
// in the retryable set counts, not just *AppError.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var app *AppError
	if errors.As(err, &app) {
		return app.Retryable || retryableCodes[string(app.Code)]
	}
	var temp interface{ Temporary() bool }
	if errors.As(err, &temp) {
		return temp.Temporary()
	}
	var coded interface{ ErrorCode() string }
	if errors.As(err, &coded) {
		return retryableCodes[coded.ErrorCode()]
	}
	return false
}

// CodeOf extracts the error code for telemetry and dead-letter records.
func CodeOf(err error) string {
	var app *AppError
	if errors.As(err, &app) {
		return string(app.Code)
	}
	var coded interface{ ErrorCode() string }
	if errors.As(err, &coded) {
		return coded.ErrorCode()
	}
	return string(CodeInternal)
}
