package errors

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

const (
	CodeNotFound           = "NOT_FOUND"
	CodeValidation         = "VALIDATION_ERROR"
	CodeConflict           = "CONFLICT"
	CodeInvalidInput       = "INVALID_INPUT"
	CodeNoPartnerAvailable = "NO_PARTNER_AVAILABLE"
	CodeResourceBusy       = "RESOURCE_BUSY"
	CodeRateLimited        = "RATE_LIMITED"
	CodePersistence        = "PERSISTENCE_FAILURE"
	CodeInternal           = "INTERNAL_ERROR"
)

type AppError struct {
	Code       string         `json:"code"`
	Message    string         `json:"message"`
	HTTPStatus int            `json:"-"`
	Details    map[string]any `json:"details,omitempty"`
	Err        error          `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func (e *AppError) StatusCode() int {
	return e.HTTPStatus
}

func (e *AppError) ToJSON() []byte {
	data, _ := json.Marshal(ErrorResponse{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
	})
	return data
}

type ErrorResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func New(code, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

func Wrap(err error, code, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

func (e *AppError) WithDetails(details map[string]any) *AppError {
	e.Details = details
	return e
}

func NotFound(resource string) *AppError {
	return &AppError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
	}
}

func NotFoundWithID(resource, id string) *AppError {
	return &AppError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details: map[string]any{
			"resource": resource,
			"id":       id,
		},
	}
}

func Validation(message string, details map[string]any) *AppError {
	return &AppError{
		Code:       CodeValidation,
		Message:    message,
		HTTPStatus: http.StatusUnprocessableEntity,
		Details:    details,
	}
}

func InvalidInput(message string) *AppError {
	return &AppError{
		Code:       CodeInvalidInput,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
	}
}

func Conflict(message string) *AppError {
	return &AppError{
		Code:       CodeConflict,
		Message:    message,
		HTTPStatus: http.StatusConflict,
	}
}

func NoPartnerAvailable(city string) *AppError {
	return &AppError{
		Code:       CodeNoPartnerAvailable,
		Message:    fmt.Sprintf("No available partners found in %s", city),
		HTTPStatus: http.StatusNotFound,
		Details: map[string]any{
			"city": city,
		},
	}
}

// ResourceBusy reports a failed lock acquisition. Internal store errors
// during acquisition are not distinguished from contention; both surface
// through this constructor.
func ResourceBusy(key string) *AppError {
	return &AppError{
		Code:       CodeResourceBusy,
		Message:    fmt.Sprintf("Unable to acquire lock for %s. Resource is busy.", key),
		HTTPStatus: http.StatusConflict,
		Details: map[string]any{
			"key": key,
		},
	}
}

func RateLimited(message string) *AppError {
	return &AppError{
		Code:       CodeRateLimited,
		Message:    message,
		HTTPStatus: http.StatusTooManyRequests,
	}
}

// Persistence reports a store update that unexpectedly matched zero records.
func Persistence(message string, err error) *AppError {
	return &AppError{
		Code:       CodePersistence,
		Message:    message,
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

func Internal(message string, err error) *AppError {
	return &AppError{
		Code:       CodeInternal,
		Message:    message,
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// DocumentsNotApproved blocks confirmation and names every document type
// that is not yet approved.
func DocumentsNotApproved(docTypes []string) *AppError {
	return &AppError{
		Code:       CodeConflict,
		Message:    fmt.Sprintf("Cannot confirm booking. Pending documents: %s", strings.Join(docTypes, ", ")),
		HTTPStatus: http.StatusConflict,
		Details: map[string]any{
			"docTypes": docTypes,
		},
	}
}

func IsAppError(err error) bool {
	_, ok := err.(*AppError)
	return ok
}

func AsAppError(err error) *AppError {
	if appErr, ok := err.(*AppError); ok {
		return appErr
	}
	return Internal("An unexpected error occurred", err)
}
