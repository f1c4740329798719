// Package models defines the core data structures for ReviewPipe.
//
// It includes the employee, interview and session records shared by the
// store, flow and api packages, plus the JSON envelope used by every API
// response.
package models

import "errors"

// Validation constants for input validation
const (
	// MaxNameLength defines the maximum allowed length for first and last names
	MaxNameLength = 100
	// MaxPositionLength defines the maximum allowed length for a job position
	MaxPositionLength = 200
	// MaxExperienceLength defines the maximum allowed length for an experience level
	MaxExperienceLength = 50
	// MaxMessageLength defines the maximum allowed length for a chat message
	MaxMessageLength = 8192
)

// Error variables for better error handling and testability
var (
	ErrEmptyFirstName      = errors.New("firstname is required")
	ErrEmptyLastName       = errors.New("lastname is required")
	ErrEmptyPosition       = errors.New("poste_equiped is required")
	ErrEmptyExperience     = errors.New("level_of_experience is required")
	ErrFieldTooLong        = errors.New("field exceeds maximum length")
	ErrEmptyMessage        = errors.New("message is required")
	ErrMessageTooLong      = errors.New("message exceeds maximum length")
	ErrInvalidInterviewRef = errors.New("interview id must be positive")
)

// APIStatus represents the status of an API response.
type APIStatus string

const (
	// APIStatusOK indicates an API request completed successfully.
	APIStatusOK APIStatus = "ok"
	// APIStatusError indicates an API request failed with an error.
	APIStatusError APIStatus = "error"
)

// APIResponse represents a standard API response with a status and optional data.
type APIResponse struct {
	Status  string      `json:"status"`            // status of the API response
	Message string      `json:"message,omitempty"` // optional message for error responses or additional info
	Error   string      `json:"error,omitempty"`   // optional underlying error detail
	Result  interface{} `json:"result,omitempty"`  // optional result data for successful responses
}

// APIResponseBuilder provides a fluent interface for building API responses.
type APIResponseBuilder struct {
	response APIResponse
}

// NewAPIResponseBuilder creates a new APIResponseBuilder instance.
func NewAPIResponseBuilder() *APIResponseBuilder {
	return &APIResponseBuilder{}
}

// WithStatus sets the status of the API response.
func (b *APIResponseBuilder) WithStatus(status APIStatus) *APIResponseBuilder {
	b.response.Status = string(status)
	return b
}

// WithMessage sets the message of the API response.
func (b *APIResponseBuilder) WithMessage(message string) *APIResponseBuilder {
	b.response.Message = message
	return b
}

// WithError attaches the underlying error text.
func (b *APIResponseBuilder) WithError(detail string) *APIResponseBuilder {
	b.response.Error = detail
	return b
}

// WithResult sets the result data of the API response.
func (b *APIResponseBuilder) WithResult(result interface{}) *APIResponseBuilder {
	b.response.Result = result
	return b
}

// Build constructs and returns the final APIResponse.
func (b *APIResponseBuilder) Build() APIResponse {
	return b.response
}

// Success creates a successful API response with optional result data.
func Success(result interface{}) APIResponse {
	return NewAPIResponseBuilder().
		WithStatus(APIStatusOK).
		WithResult(result).
		Build()
}

// SuccessWithMessage creates a successful API response with a message and optional result data.
func SuccessWithMessage(message string, result interface{}) APIResponse {
	return NewAPIResponseBuilder().
		WithStatus(APIStatusOK).
		WithMessage(message).
		WithResult(result).
		Build()
}

// Error creates an error API response with a message.
func Error(message string) APIResponse {
	return NewAPIResponseBuilder().
		WithStatus(APIStatusError).
		WithMessage(message).
		Build()
}

// ErrorWithDetail creates an error API response carrying the underlying error text.
func ErrorWithDetail(message string, err error) APIResponse {
	b := NewAPIResponseBuilder().
		WithStatus(APIStatusError).
		WithMessage(message)
	if err != nil {
		b.WithError(err.Error())
	}
	return b.Build()
}

func checkLength(value string, limit int) error {
	if len(value) > limit {
		return ErrFieldTooLong
	}
	return nil
}
