package dto

import "github.com/bankrecon/bankrecon/internal/domain/model"

// APIError represents a structured error response.
// All error responses from the API use this format for consistency.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Common error codes. Engine failures use the model kind names
// (stale_selection, already_reconciled, ...) as their code.
const (
	ErrCodeNotFound      = model.KindNotFound
	ErrCodeBadRequest    = "bad_request"
	ErrCodeInternalError = model.KindInternal
	ErrCodeValidation    = model.KindInvalidRequest
	ErrCodeJobRunning    = "job_running"
)

// NewAPIError creates a new APIError with the given code and message.
func NewAPIError(code, message string) APIError {
	return APIError{
		Code:    code,
		Message: message,
	}
}

// NotFoundError creates a not found error response.
func NotFoundError(resource string) APIError {
	return NewAPIError(ErrCodeNotFound, resource+" not found")
}

// BadRequestError creates a bad request error response.
func BadRequestError(message string) APIError {
	return NewAPIError(ErrCodeBadRequest, message)
}

// InternalError creates an internal server error response.
func InternalError() APIError {
	return NewAPIError(ErrCodeInternalError, "an internal error occurred")
}

// ValidationError creates a validation error response.
func ValidationError(message string) APIError {
	return NewAPIError(ErrCodeValidation, message)
}

// FromError converts an engine error to its wire form. Internal errors
// are not echoed to the client.
func FromError(err error) APIError {
	kind := model.KindOf(err)
	if kind == model.KindInternal {
		return InternalError()
	}
	return NewAPIError(kind, err.Error())
}
