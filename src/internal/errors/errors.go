// Package errors defines the typed error surface shared by the LSP
// server and the MCP bridge.
package errors

import (
	"errors"
	"fmt"
)

// LSPError represents a standard LSP error with code and optional data
type LSPError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (e *LSPError) Error() string {
	if e.Data != nil {
		return fmt.Sprintf("LSP error %d: %s (data: %v)", e.Code, e.Message, e.Data)
	}
	return fmt.Sprintf("LSP error %d: %s", e.Code, e.Message)
}

// NewLSPError creates an LSPError with the given code and message
func NewLSPError(code int, message string, data interface{}) *LSPError {
	return &LSPError{Code: code, Message: message, Data: data}
}

// ValidationError represents parameter validation errors
type ValidationError struct {
	Parameter string `json:"parameter"`
	Message   string `json:"message"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for parameter '%s': %s", e.Parameter, e.Message)
}

// NewValidationError creates a ValidationError for the named parameter
func NewValidationError(parameter, message string) *ValidationError {
	return &ValidationError{Parameter: parameter, Message: message}
}

// DocumentNotFoundError indicates a request against a URI that is not open
type DocumentNotFoundError struct {
	URI string `json:"uri"`
}

func (e *DocumentNotFoundError) Error() string {
	return fmt.Sprintf("document not open: %s", e.URI)
}

// NewDocumentNotFoundError creates a DocumentNotFoundError for the URI
func NewDocumentNotFoundError(uri string) *DocumentNotFoundError {
	return &DocumentNotFoundError{URI: uri}
}

// IsLSPError checks whether err is (or wraps) an LSPError
func IsLSPError(err error) bool {
	var target *LSPError
	return errors.As(err, &target)
}

// IsValidationError checks whether err is (or wraps) a ValidationError
func IsValidationError(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

// IsDocumentNotFoundError checks whether err is (or wraps) a DocumentNotFoundError
func IsDocumentNotFoundError(err error) bool {
	var target *DocumentNotFoundError
	return errors.As(err, &target)
}
