package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError is the base interface for all application errors
type AppError interface {
	error
	HTTPStatus() int
	Code() string
}

// NotFoundError represents a resource that was not found
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s with ID '%s' not found", e.Resource, e.ID)
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

func (e *NotFoundError) HTTPStatus() int {
	return http.StatusNotFound
}

func (e *NotFoundError) Code() string {
	return "NOT_FOUND"
}

// NewNotFoundError creates a new NotFoundError
func NewNotFoundError(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

// ValidationError represents invalid input
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

func (e *ValidationError) HTTPStatus() int {
	return http.StatusBadRequest
}

func (e *ValidationError) Code() string {
	return "VALIDATION_ERROR"
}

// NewValidationError creates a new ValidationError
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// InvalidFilterError represents a malformed filter parameter
type InvalidFilterError struct {
	Param   string
	Message string
}

func (e *InvalidFilterError) Error() string {
	return fmt.Sprintf("invalid filter '%s': %s", e.Param, e.Message)
}

func (e *InvalidFilterError) HTTPStatus() int {
	return http.StatusBadRequest
}

func (e *InvalidFilterError) Code() string {
	return "INVALID_FILTER"
}

// NewInvalidFilterError creates a new InvalidFilterError
func NewInvalidFilterError(param, message string) *InvalidFilterError {
	return &InvalidFilterError{Param: param, Message: message}
}

// NoVisibleFieldsError indicates a request resolved to an empty column set
type NoVisibleFieldsError struct {
	Resource string
}

func (e *NoVisibleFieldsError) Error() string {
	return fmt.Sprintf("request for '%s' resolves to no visible fields", e.Resource)
}

func (e *NoVisibleFieldsError) HTTPStatus() int {
	return http.StatusBadRequest
}

func (e *NoVisibleFieldsError) Code() string {
	return "NO_VISIBLE_FIELDS"
}

// NewNoVisibleFieldsError creates a new NoVisibleFieldsError
func NewNoVisibleFieldsError(resource string) *NoVisibleFieldsError {
	return &NoVisibleFieldsError{Resource: resource}
}

// UnsupportedFormatError indicates an unknown output format request
type UnsupportedFormatError struct {
	Format string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported output format: '%s'", e.Format)
}

func (e *UnsupportedFormatError) HTTPStatus() int {
	return http.StatusNotAcceptable
}

func (e *UnsupportedFormatError) Code() string {
	return "UNSUPPORTED_FORMAT"
}

// NewUnsupportedFormatError creates a new UnsupportedFormatError
func NewUnsupportedFormatError(format string) *UnsupportedFormatError {
	return &UnsupportedFormatError{Format: format}
}

// QueryExecutionError wraps a failure reported by the backing store
type QueryExecutionError struct {
	Resource string
	Cause    error
}

func (e *QueryExecutionError) Error() string {
	return fmt.Sprintf("query execution failed for '%s': %v", e.Resource, e.Cause)
}

func (e *QueryExecutionError) HTTPStatus() int {
	return http.StatusInternalServerError
}

func (e *QueryExecutionError) Code() string {
	return "QUERY_EXECUTION_ERROR"
}

func (e *QueryExecutionError) Unwrap() error {
	return e.Cause
}

// NewQueryExecutionError creates a new QueryExecutionError
func NewQueryExecutionError(resource string, cause error) *QueryExecutionError {
	return &QueryExecutionError{Resource: resource, Cause: cause}
}

// Helper functions for error checking

// IsNotFound checks if an error is a NotFoundError
func IsNotFound(err error) bool {
	var notFound *NotFoundError
	return errors.As(err, &notFound)
}

// IsValidation checks if an error is a ValidationError
func IsValidation(err error) bool {
	var validation *ValidationError
	return errors.As(err, &validation)
}

// IsInvalidFilter checks if an error is an InvalidFilterError
func IsInvalidFilter(err error) bool {
	var invalid *InvalidFilterError
	return errors.As(err, &invalid)
}

// IsNoVisibleFields checks if an error is a NoVisibleFieldsError
func IsNoVisibleFields(err error) bool {
	var empty *NoVisibleFieldsError
	return errors.As(err, &empty)
}

// IsUnsupportedFormat checks if an error is an UnsupportedFormatError
func IsUnsupportedFormat(err error) bool {
	var unsupported *UnsupportedFormatError
	return errors.As(err, &unsupported)
}

// GetHTTPStatus returns the HTTP status code for an error
// Returns 500 if the error doesn't implement AppError
func GetHTTPStatus(err error) int {
	var appErr AppError
	if errors.As(err, &appErr) {
		return appErr.HTTPStatus()
	}
	return http.StatusInternalServerError
}

// GetErrorCode returns the error code for an error
// Returns "UNKNOWN_ERROR" if the error doesn't implement AppError
func GetErrorCode(err error) string {
	var appErr AppError
	if errors.As(err, &appErr) {
		return appErr.Code()
	}
	return "UNKNOWN_ERROR"
}

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ToResponse converts an error to an ErrorResponse
func ToResponse(err error) ErrorResponse {
	return ErrorResponse{
		Code:    GetErrorCode(err),
		Message: err.Error(),
	}
}
