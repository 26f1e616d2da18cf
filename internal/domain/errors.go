package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies failures surfaced to callers of the analysis pipeline.
type ErrorKind int

const (
	// KindTransport covers connection failures and non-200 responses.
	KindTransport ErrorKind = iota + 1
	// KindServiceReported covers error messages embedded in a V-QUEST HTML page.
	KindServiceReported
	// KindLocalIO covers artifact writes, reads and missing archive members.
	KindLocalIO
	// KindPersistence covers results store failures.
	KindPersistence
	// KindShape covers responses or documents that do not have the expected layout.
	KindShape
)

func (k ErrorKind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindServiceReported:
		return "service_reported"
	case KindLocalIO:
		return "local_io"
	case KindPersistence:
		return "persistence"
	case KindShape:
		return "shape"
	default:
		return "unknown"
	}
}

// VQuestError carries the error list produced by a V-QUEST submission.
// Messages are shown to the user verbatim.
type VQuestError struct {
	Kind     ErrorKind `json:"kind"`
	Messages []string  `json:"messages"`
	Err      error     `json:"-"`
}

// Error implements the error interface
func (e *VQuestError) Error() string {
	return fmt.Sprintf("vquest %s error: %s", e.Kind, strings.Join(e.Messages, "; "))
}

// Unwrap returns the underlying cause, if any.
func (e *VQuestError) Unwrap() error {
	return e.Err
}

// NewVQuestError creates a VQuestError from one or more messages.
func NewVQuestError(kind ErrorKind, messages ...string) *VQuestError {
	return &VQuestError{Kind: kind, Messages: messages}
}

// StoreError wraps a failed results store mutation.
type StoreError struct {
	Op       string
	SampleID string
	Err      error
}

// Error implements the error interface
func (e *StoreError) Error() string {
	return fmt.Sprintf("%s for sample %s: %v", e.Op, e.SampleID, e.Err)
}

// Unwrap returns the underlying cause.
func (e *StoreError) Unwrap() error {
	return e.Err
}

// Kind always reports KindPersistence.
func (e *StoreError) Kind() ErrorKind {
	return KindPersistence
}

// KindOf returns the error kind of err, or 0 when err is not classified.
func KindOf(err error) ErrorKind {
	var vqErr *VQuestError
	if errors.As(err, &vqErr) {
		return vqErr.Kind
	}
	var storeErr *StoreError
	if errors.As(err, &storeErr) {
		return KindPersistence
	}
	return 0
}

// ValidationError represents input validation errors
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value"`
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// NewValidationError creates a new ValidationError
func NewValidationError(field, message string, value interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
	}
}
