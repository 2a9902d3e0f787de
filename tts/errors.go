package tts

import (
	"context"
	"errors"
	"time"
)

// Common errors for the narration system.
var (
	// Engine errors
	ErrEngineNotAvailable = errors.New("speech engine is not available")
	ErrUnknownEngine      = errors.New("unknown speech engine")
	ErrVoiceNotFound      = errors.New("requested voice not found")
	ErrSynthesisFailed    = errors.New("speech synthesis failed")
	ErrEngineClosed       = errors.New("speech engine has been closed")

	// Playback errors
	ErrEmptyText          = errors.New("no text to narrate")
	ErrInvalidResumeIndex = errors.New("resume index out of range")
	ErrStateTransition    = errors.New("invalid state transition")
	ErrControllerClosed   = errors.New("controller has been closed")

	// Configuration errors
	ErrInvalidConfig = errors.New("invalid configuration")

	// General errors
	ErrCanceled = errors.New("operation was canceled")
	ErrTimeout  = errors.New("operation timed out")
)

// IsCancellation reports whether err is the result of a pause or stop rather
// than a failure.
func IsCancellation(err error) bool {
	return errors.Is(err, ErrCanceled) || errors.Is(err, context.Canceled)
}

// IsRecoverableError checks if an error is recoverable.
func IsRecoverableError(err error) bool {
	if err == nil {
		return true
	}

	for _, fatal := range []error{
		ErrEngineNotAvailable,
		ErrUnknownEngine,
		ErrEngineClosed,
		ErrControllerClosed,
		ErrInvalidConfig,
	} {
		if errors.Is(err, fatal) {
			return false
		}
	}

	// Most errors are recoverable
	return true
}

// ErrorSeverity represents the severity of an error.
type ErrorSeverity int

const (
	// SeverityInfo is for informational messages.
	SeverityInfo ErrorSeverity = iota
	// SeverityWarning is for warnings that don't prevent operation.
	SeverityWarning
	// SeverityError is for errors that prevent normal operation.
	SeverityError
	// SeverityCritical is for errors that require immediate attention.
	SeverityCritical
)

// String returns the string representation of the severity.
func (s ErrorSeverity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// TTSError provides detailed error information.
type TTSError struct {
	Err       error          // The underlying error
	Component string         // Component that generated the error
	Action    string         // Action being performed when error occurred
	Severity  ErrorSeverity  // Severity of the error
	Timestamp time.Time      // When the error occurred
	Context   map[string]any // Additional context
}

// Error implements the error interface.
func (e *TTSError) Error() string {
	if e.Err == nil {
		return "unknown TTS error"
	}
	if e.Component == "" && e.Action == "" {
		return e.Err.Error()
	}
	return e.Component + ": " + e.Action + ": " + e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *TTSError) Unwrap() error {
	return e.Err
}

// IsRecoverable checks if the error is recoverable.
func (e *TTSError) IsRecoverable() bool {
	return IsRecoverableError(e.Err)
}

// NewTTSError creates a new TTS error with context.
func NewTTSError(err error, component, action string) *TTSError {
	return &TTSError{
		Err:       err,
		Component: component,
		Action:    action,
		Severity:  SeverityError,
		Timestamp: time.Now(),
		Context:   make(map[string]any),
	}
}

// WithSeverity sets the error severity.
func (e *TTSError) WithSeverity(severity ErrorSeverity) *TTSError {
	e.Severity = severity
	return e
}

// WithContext adds context to the error.
func (e *TTSError) WithContext(key string, value any) *TTSError {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}
