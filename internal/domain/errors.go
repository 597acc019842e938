package domain

import "errors"

// Common errors used throughout the application.
var (
	ErrNotFound        = errors.New("not found")
	ErrAlreadyExists   = errors.New("already exists")
	ErrInvalidInput    = errors.New("invalid input")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrPushInProgress  = errors.New("push already in progress")
	ErrPushFailed      = errors.New("push failed")
	ErrBatchClosed     = errors.New("batch is closed")
	ErrMalformedBatch  = errors.New("malformed batch")
	ErrNoAPIKeys       = errors.New("no API keys configured")
	ErrInvalidAPIKey   = errors.New("invalid API key")
)

// APIError represents an error response from the API.
type APIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return e.Message
}
