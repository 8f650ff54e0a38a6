// Package errors provides the typed error taxonomy shared by the storefront
// builder packages.
//
// Errors carry a category (validation, render, stream, ...) and a stable code so
// the HTTP layer can decide whether a failure is shown inline next to the control
// the user touched or as a transient banner for background work.
package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents different categories of errors.
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeSecurity   ErrorType = "security"
	ErrorTypeIO         ErrorType = "io"
	ErrorTypeNetwork    ErrorType = "network"
	ErrorTypeRender     ErrorType = "render"
	ErrorTypeStream     ErrorType = "stream"
	ErrorTypeConfig     ErrorType = "config"
	ErrorTypeInternal   ErrorType = "internal"
)

// Error is a structured error type with context.
type Error struct {
	Type    ErrorType
	Code    string
	Message string
	Cause   error
	Context map[string]interface{}

	// Session and Section locate the failure inside an editor session.
	Session string
	Section string

	// Recoverable errors leave the document usable; the caller only has to
	// tell the user.
	Recoverable bool
}

// Error implements the error interface.
func (e *Error) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}

	if e.Session != "" {
		parts = append(parts, "session:"+e.Session)
	}

	if e.Section != "" {
		parts = append(parts, "section:"+e.Section)
	}

	parts = append(parts, e.Message)

	result := strings.Join(parts, " ")

	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is implements error comparison.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Type == t.Type && e.Code == t.Code
	}

	return false
}

// WithContext adds context information to the error.
func (e *Error) WithContext(key string, value interface{}) *Error {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value

	return e
}

// WithSession records the editor session the error belongs to.
func (e *Error) WithSession(id string) *Error {
	e.Session = id

	return e
}

// WithSection records the section the error belongs to.
func (e *Error) WithSection(name string) *Error {
	e.Section = name

	return e
}

// NewValidationError creates a validation error.
func NewValidationError(code, message string) *Error {
	return &Error{
		Type:        ErrorTypeValidation,
		Code:        code,
		Message:     message,
		Recoverable: true,
	}
}

// NewSecurityError creates a security error.
func NewSecurityError(code, message string) *Error {
	return &Error{
		Type:        ErrorTypeSecurity,
		Code:        code,
		Message:     message,
		Recoverable: false,
	}
}

// NewRenderError creates a preview render error.
func NewRenderError(code, message string, cause error) *Error {
	return &Error{
		Type:        ErrorTypeRender,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: true,
	}
}

// NewStreamError creates an AI streaming error.
func NewStreamError(code, message string, cause error) *Error {
	return &Error{
		Type:        ErrorTypeStream,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: true,
	}
}

// NewNetworkError creates a network error.
func NewNetworkError(code, message string, cause error) *Error {
	return &Error{
		Type:        ErrorTypeNetwork,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: true,
	}
}

// NewIOError creates an I/O error.
func NewIOError(code, message string, cause error) *Error {
	return &Error{
		Type:        ErrorTypeIO,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: false,
	}
}

// NewConfigError creates a configuration error.
func NewConfigError(code, message string) *Error {
	return &Error{
		Type:        ErrorTypeConfig,
		Code:        code,
		Message:     message,
		Recoverable: false,
	}
}

// NewInternalError creates an internal error.
func NewInternalError(code, message string, cause error) *Error {
	return &Error{
		Type:        ErrorTypeInternal,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: false,
	}
}

// IsRecoverable checks if an error is recoverable.
func IsRecoverable(err error) bool {
	var te *Error
	if errors.As(err, &te) {
		return te.Recoverable
	}

	return false
}

// IsSecurityError checks if an error is security-related.
func IsSecurityError(err error) bool {
	return typeOf(err) == ErrorTypeSecurity
}

// IsValidationError checks if the user caused the error directly.
func IsValidationError(err error) bool {
	return typeOf(err) == ErrorTypeValidation
}

// IsBackground reports whether the error came from asynchronous work
// (rendering, AI streaming, networking) and should be shown as a transient
// banner rather than next to a control.
func IsBackground(err error) bool {
	switch typeOf(err) {
	case ErrorTypeRender, ErrorTypeStream, ErrorTypeNetwork:
		return true
	default:
		return false
	}
}

func typeOf(err error) ErrorType {
	var te *Error
	if errors.As(err, &te) {
		return te.Type
	}

	return ""
}

// CodeOf returns the code of the first *Error in err's chain.
func CodeOf(err error) string {
	var te *Error
	if errors.As(err, &te) {
		return te.Code
	}

	return ""
}

// Detail is the client-facing form of an error.
type Detail struct {
	Type    ErrorType `json:"type,omitempty"`
	Code    string    `json:"code,omitempty"`
	Message string    `json:"message"`
	Section string    `json:"section,omitempty"`
}

// DetailOf returns the client-facing form of err. Errors outside the
// taxonomy are reported as internal without their text.
func DetailOf(err error) Detail {
	var te *Error
	if !errors.As(err, &te) {
		return Detail{Type: ErrorTypeInternal, Code: ErrCodeInternalError, Message: "internal error"}
	}
	if te.Type == ErrorTypeInternal {
		return Detail{Type: te.Type, Code: te.Code, Message: "internal error"}
	}

	return Detail{Type: te.Type, Code: te.Code, Message: te.Message, Section: te.Section}
}

// Handler provides centralized error logging.
type Handler struct {
	logger Logger
}

// Logger interface for error logging.
type Logger interface {
	Error(ctx context.Context, err error, msg string, fields ...interface{})
	Warn(ctx context.Context, err error, msg string, fields ...interface{})
}

// NewHandler creates a new error handler.
func NewHandler(logger Logger) *Handler {
	return &Handler{logger: logger}
}

// Handle logs an error at a level matching its category.
func (h *Handler) Handle(ctx context.Context, err error) {
	if err == nil || h.logger == nil {
		return
	}

	var te *Error
	if !errors.As(err, &te) {
		h.logger.Error(ctx, err, "Unhandled error occurred")
		return
	}

	switch te.Type {
	case ErrorTypeSecurity:
		h.logger.Error(ctx, te, "Security error occurred",
			"type", te.Type,
			"code", te.Code,
			"session", te.Session)
	case ErrorTypeValidation, ErrorTypeRender, ErrorTypeStream, ErrorTypeNetwork:
		h.logger.Warn(ctx, te, "Recoverable error occurred",
			"type", te.Type,
			"code", te.Code,
			"session", te.Session,
			"section", te.Section)
	default:
		h.logger.Error(ctx, te, "Error occurred",
			"type", te.Type,
			"code", te.Code,
			"session", te.Session)
	}
}

// Common error codes.
const (
	ErrCodeNoChange          = "ERR_NO_CHANGE"
	ErrCodeUnbalancedBraces  = "ERR_UNBALANCED_BRACES"
	ErrCodeSectionNotFound   = "ERR_SECTION_NOT_FOUND"
	ErrCodeSessionNotFound   = "ERR_SESSION_NOT_FOUND"
	ErrCodeToolNotFound      = "ERR_TOOL_NOT_FOUND"
	ErrCodeTemplateNotFound  = "ERR_TEMPLATE_NOT_FOUND"
	ErrCodeInvalidOrigin     = "ERR_INVALID_ORIGIN"
	ErrCodeRenderFailed      = "ERR_RENDER_FAILED"
	ErrCodeGenerationFailed  = "ERR_GENERATION_FAILED"
	ErrCodeGenerationPartial = "ERR_GENERATION_PARTIAL"
	ErrCodeGenerationBusy    = "ERR_GENERATION_BUSY"
	ErrCodeNothingToUndo     = "ERR_NOTHING_TO_UNDO"
	ErrCodeNothingToRedo     = "ERR_NOTHING_TO_REDO"
	ErrCodeNoBackup          = "ERR_NO_BACKUP"
	ErrCodeConfigInvalid     = "ERR_CONFIG_INVALID"
	ErrCodeInternalError     = "ERR_INTERNAL"
	ErrCodeValidationFailed  = "ERR_VALIDATION_FAILED"
)

// ErrInvalidOrigin creates an invalid origin security error.
func ErrInvalidOrigin(origin string) *Error {
	return NewSecurityError(ErrCodeInvalidOrigin, "invalid origin: "+origin)
}

// ErrSessionNotFound creates a session lookup error.
func ErrSessionNotFound(id string) *Error {
	return NewValidationError(ErrCodeSessionNotFound, "session not found").WithSession(id)
}

// ErrSectionNotFound creates a section lookup error.
func ErrSectionNotFound(name string) *Error {
	return NewValidationError(ErrCodeSectionNotFound, "section not found").WithSection(name)
}
