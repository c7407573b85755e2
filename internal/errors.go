package internal

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

type ErrorType string

const (
	ErrorTypeValidation   ErrorType = "VALIDATION_ERROR"
	ErrorTypeNotFound     ErrorType = "NOT_FOUND"
	ErrorTypeUnauthorized ErrorType = "UNAUTHORIZED"
	ErrorTypeForbidden    ErrorType = "FORBIDDEN"
	ErrorTypeConflict     ErrorType = "CONFLICT"
	ErrorTypeInvalidState ErrorType = "INVALID_STATE"
	ErrorTypeInternal     ErrorType = "INTERNAL_ERROR"
)

type ErrorCode string

const (
	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	ErrCodeInvalidDate      ErrorCode = "INVALID_DATE"
	ErrCodeInvalidTime      ErrorCode = "INVALID_TIME"
	ErrCodeInvalidReceipt   ErrorCode = "INVALID_RECEIPT_FILE"

	ErrCodeDoctorNotFound      ErrorCode = "DOCTOR_NOT_FOUND"
	ErrCodePatientNotFound     ErrorCode = "PATIENT_NOT_FOUND"
	ErrCodeTreatmentNotFound   ErrorCode = "TREATMENT_NOT_FOUND"
	ErrCodeAppointmentNotFound ErrorCode = "APPOINTMENT_NOT_FOUND"
	ErrCodePaymentNotFound     ErrorCode = "PAYMENT_NOT_FOUND"
	ErrCodeEarningNotFound     ErrorCode = "EARNING_NOT_FOUND"

	ErrCodeSlotUnavailable      ErrorCode = "SLOT_UNAVAILABLE"
	ErrCodePaymentAlreadyExists ErrorCode = "PAYMENT_ALREADY_EXISTS"
	ErrCodeDuplicateReference   ErrorCode = "DUPLICATE_REFERENCE"

	ErrCodeInvalidPaymentStatus     ErrorCode = "INVALID_PAYMENT_STATUS"
	ErrCodeInvalidAppointmentStatus ErrorCode = "INVALID_APPOINTMENT_STATUS"
	ErrCodeInvalidEarningStatus     ErrorCode = "INVALID_EARNING_STATUS"

	ErrCodeUnauthorizedAccess ErrorCode = "UNAUTHORIZED_ACCESS"
	ErrCodeInvalidToken       ErrorCode = "INVALID_TOKEN"
)

type AppError struct {
	Type       ErrorType   `json:"type"`
	Code       ErrorCode   `json:"code"`
	Message    string      `json:"message"`
	Details    interface{} `json:"details,omitempty"`
	StatusCode int         `json:"-"`
	Cause      error       `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

func (e *AppError) WithDetails(details interface{}) *AppError {
	e.Details = details
	return e
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

// StateDetails carries the expected and actual state of a rejected
// transition so callers can render it without parsing the message.
type StateDetails struct {
	Expected string `json:"expected"`
	Actual   string `json:"actual"`
}

func NewValidationError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusBadRequest,
	}
}

func NewValidationFieldError(field, message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Code:       ErrCodeValidationFailed,
		Message:    "Validation failed",
		StatusCode: http.StatusBadRequest,
		Details: ValidationErrors{
			Errors: []ValidationError{
				{Field: field, Message: message, Code: string(code)},
			},
		},
	}
}

func NewNotFoundError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeNotFound,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusNotFound,
	}
}

func NewUnauthorizedError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeUnauthorized,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusUnauthorized,
	}
}

func NewForbiddenError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeForbidden,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusForbidden,
	}
}

func NewConflictError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeConflict,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusConflict,
	}
}

// NewInvalidStateError reports a transition attempted from the wrong state.
// The message always names the actual state so operators can tell what
// happened from the log line alone.
func NewInvalidStateError(expected, actual string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeInvalidState,
		Code:       code,
		Message:    fmt.Sprintf("operation requires state %s but current state is %s", expected, actual),
		StatusCode: http.StatusUnprocessableEntity,
		Details:    StateDetails{Expected: expected, Actual: actual},
	}
}

func NewInternalError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeInternal,
		Code:       "INTERNAL_ERROR",
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Cause:      cause,
	}
}

var (
	ErrDoctorNotFound      = NewNotFoundError("Doctor not found", ErrCodeDoctorNotFound)
	ErrPatientNotFound     = NewNotFoundError("Patient not found", ErrCodePatientNotFound)
	ErrTreatmentNotFound   = NewNotFoundError("Treatment not found", ErrCodeTreatmentNotFound)
	ErrAppointmentNotFound = NewNotFoundError("Appointment not found", ErrCodeAppointmentNotFound)
	ErrPaymentNotFound     = NewNotFoundError("Payment not found", ErrCodePaymentNotFound)
	ErrEarningNotFound     = NewNotFoundError("Earning not found", ErrCodeEarningNotFound)

	ErrSlotUnavailable      = NewConflictError("time slot is no longer available", ErrCodeSlotUnavailable)
	ErrPaymentAlreadyExists = NewConflictError("payment already exists for this appointment", ErrCodePaymentAlreadyExists)

	ErrUnauthorizedAccess = NewForbiddenError("unauthorized access to resource", ErrCodeUnauthorizedAccess)
	ErrInvalidToken       = NewUnauthorizedError("Invalid token", ErrCodeInvalidToken)
)

func IsAppError(err error) (*AppError, bool) {
	if appErr, ok := err.(*AppError); ok {
		return appErr, true
	}
	return nil, false
}

func (e *AppError) ToHTTPResponse() (int, interface{}) {
	return e.StatusCode, map[string]interface{}{"error": e}
}

func (e *AppError) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type    ErrorType   `json:"type"`
		Code    ErrorCode   `json:"code"`
		Message string      `json:"message"`
		Details interface{} `json:"details,omitempty"`
	}{
		Type:    e.Type,
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
	})
}

// JoinMessages flattens nested validation messages into one user-facing line.
func (e *AppError) JoinMessages() string {
	if ve, ok := e.Details.(ValidationErrors); ok && len(ve.Errors) > 0 {
		messages := make([]string, len(ve.Errors))
		for i, err := range ve.Errors {
			messages[i] = err.Message
		}
		return strings.Join(messages, "; ")
	}
	return e.Message
}
