package errors

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"runtime"
	"strings"
	"time"
)

// ErrorCode represents a unique error code for categorizing errors
type ErrorCode string

const (
	// Connection errors (1xxx)
	ErrCodeConnectionFailed     ErrorCode = "FCE1001"
	ErrCodeConnectionTimeout    ErrorCode = "FCE1002"
	ErrCodeAuthenticationFailed ErrorCode = "FCE1003"

	// Configuration errors (2xxx)
	ErrCodeConfigNotFound ErrorCode = "FCE2001"
	ErrCodeConfigInvalid  ErrorCode = "FCE2002"
	ErrCodeConfigMissing  ErrorCode = "FCE2003"
	ErrCodeCredentials    ErrorCode = "FCE2004"

	// Query errors (4xxx)
	ErrCodeSQLSyntax         ErrorCode = "FCE4001"
	ErrCodeSQLPermission     ErrorCode = "FCE4002"
	ErrCodeSQLTimeout        ErrorCode = "FCE4003"
	ErrCodeSQLObjectNotFound ErrorCode = "FCE4005"
	ErrCodeSQLExecution      ErrorCode = "FCE4006"
	ErrCodeNoResults         ErrorCode = "FCE4008"
	ErrCodeDuplicateEntry    ErrorCode = "FCE4009"
	ErrCodeQueryCanceled     ErrorCode = "FCE4010"

	// Export errors (5xxx)
	ErrCodeExportFailed ErrorCode = "FCE5001"

	// Validation errors (6xxx)
	ErrCodeValidationFailed ErrorCode = "FCE6001"
	ErrCodeInvalidInput     ErrorCode = "FCE6002"
	ErrCodeRequiredField    ErrorCode = "FCE6003"

	// System errors (9xxx)
	ErrCodeInternal          ErrorCode = "FCE9001"
	ErrCodeResourceExhausted ErrorCode = "FCE9003"
	ErrCodeResultParsing     ErrorCode = "FCE9005"
)

// ErrorSeverity represents the severity level of an error
type ErrorSeverity string

const (
	SeverityCritical ErrorSeverity = "CRITICAL" // the workflow cannot continue
	SeverityError    ErrorSeverity = "ERROR"    // the action failed, the workflow continues
	SeverityWarning  ErrorSeverity = "WARNING"  // the action was refused at the input boundary
	SeverityInfo     ErrorSeverity = "INFO"
)

// AppError represents a structured application error with context
type AppError struct {
	Code        ErrorCode
	Message     string
	Severity    ErrorSeverity
	Context     map[string]interface{}
	Cause       error
	Stack       string
	Timestamp   time.Time
	Recoverable bool
	Suggestions []string
}

// Error implements the error interface
func (e *AppError) Error() string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("[%s] %s: %s", e.Code, e.Severity, e.Message))

	if e.Cause != nil {
		b.WriteString(fmt.Sprintf("\nCaused by: %v", e.Cause))
	}

	if len(e.Suggestions) > 0 {
		b.WriteString("\nSuggestions:")
		for i, suggestion := range e.Suggestions {
			b.WriteString(fmt.Sprintf("\n  %d. %s", i+1, suggestion))
		}
	}

	return b.String()
}

// Unwrap returns the cause of the error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is matches on error code so sentinels like ErrDuplicate work with errors.Is
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New creates a new AppError
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:      code,
		Message:   message,
		Severity:  SeverityError,
		Context:   make(map[string]interface{}),
		Stack:     captureStack(),
		Timestamp: time.Now(),
	}
}

// Wrap wraps an existing error with AppError
func Wrap(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}

	appErr := New(code, message)
	appErr.Cause = err

	var inner *AppError
	if errors.As(err, &inner) {
		for k, v := range inner.Context {
			appErr.Context[k] = v
		}
	}

	return appErr
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithSeverity sets the error severity
func (e *AppError) WithSeverity(severity ErrorSeverity) *AppError {
	e.Severity = severity
	return e
}

// WithSuggestions adds recovery suggestions
func (e *AppError) WithSuggestions(suggestions ...string) *AppError {
	e.Suggestions = append(e.Suggestions, suggestions...)
	return e
}

// AsRecoverable marks the error as recoverable
func (e *AppError) AsRecoverable() *AppError {
	e.Recoverable = true
	return e
}

func captureStack() string {
	const depth = 32
	var pcs [depth]uintptr
	n := runtime.Callers(3, pcs[:])

	var b strings.Builder
	frames := runtime.CallersFrames(pcs[:n])

	for {
		frame, more := frames.Next()
		if !strings.Contains(frame.File, "runtime/") {
			b.WriteString(fmt.Sprintf("%s:%d %s\n", frame.File, frame.Line, frame.Function))
		}
		if !more {
			break
		}
	}

	return b.String()
}

// Sentinels for errors.Is checks.
var (
	ErrEmptyResult = &AppError{Code: ErrCodeNoResults}
	ErrDuplicate   = &AppError{Code: ErrCodeDuplicateEntry}
	ErrValidation  = &AppError{Code: ErrCodeValidationFailed}
	ErrConnection  = &AppError{Code: ErrCodeConnectionFailed}
)

// Common error constructors

// ConnectionError creates a connection-related error. Connection failures are
// fatal to the workflow and never retried.
func ConnectionError(message string, cause error) *AppError {
	return Wrap(cause, ErrCodeConnectionFailed, message).
		WithSeverity(SeverityCritical).
		WithSuggestions(
			"Check your network connection",
			"Verify the Snowflake account identifier",
			"Check the warehouse, role and credentials in your configuration",
		)
}

// AuthenticationError creates an authentication failure error
func AuthenticationError(user string, cause error) *AppError {
	return Wrap(cause, ErrCodeAuthenticationFailed, "Authentication failed").
		WithSeverity(SeverityCritical).
		WithContext("user", user).
		WithSuggestions(
			"Verify your username and password",
			"Run 'flakecast login' to store a new password",
			"Check if your account is locked",
		)
}

// ConfigError creates a configuration-related error
func ConfigError(message string, field string) *AppError {
	return New(ErrCodeConfigInvalid, message).
		WithContext("field", field).
		WithSuggestions(
			fmt.Sprintf("Check the '%s' configuration value", field),
			"Run 'flakecast config show' to inspect the effective configuration",
		)
}

// QueryError wraps a warehouse rejection of a query. The message is what the
// user sees; the query text is kept in context for logs.
func QueryError(message string, query string, cause error) *AppError {
	var err *AppError
	lower := ""
	if cause != nil {
		err = Wrap(cause, ErrCodeSQLExecution, message)
		lower = strings.ToLower(cause.Error())
	} else {
		err = New(ErrCodeSQLExecution, message)
	}
	err.WithContext("query", truncateString(query, 200))

	var netErr net.Error
	switch {
	case errors.Is(cause, context.Canceled):
		err.Code = ErrCodeQueryCanceled
		err.Severity = SeverityInfo
		err.Recoverable = true
	case errors.Is(cause, context.DeadlineExceeded):
		err.Code = ErrCodeSQLTimeout
		_ = err.WithSuggestions(
			"Increase snowflake.timeout",
			"Check the warehouse size",
		)
	case errors.Is(cause, driver.ErrBadConn) || errors.As(cause, &netErr):
		err.Code = ErrCodeConnectionFailed
		_ = err.WithSuggestions(
			"Check your network connection",
			"Retry once the warehouse is reachable",
		)
	case strings.Contains(lower, "permission") || strings.Contains(lower, "access denied") ||
		strings.Contains(lower, "insufficient privileges"):
		err.Code = ErrCodeSQLPermission
		_ = err.WithSuggestions(
			"Verify the role has usage on the forecast function and select on the sales table",
		)
	case strings.Contains(lower, "timeout") || strings.Contains(lower, "deadline exceeded"):
		err.Code = ErrCodeSQLTimeout
		_ = err.WithSuggestions(
			"Increase snowflake.timeout",
			"Check the warehouse size",
		)
	case strings.Contains(lower, "does not exist") || strings.Contains(lower, "not found"):
		err.Code = ErrCodeSQLObjectNotFound
		_ = err.WithSuggestions(
			"Verify the configured table and function names",
		)
	case strings.Contains(lower, "syntax error"):
		err.Code = ErrCodeSQLSyntax
	}

	return err
}

// EmptyResultError marks a query that legitimately returned no rows
func EmptyResultError(message string) *AppError {
	return New(ErrCodeNoResults, message).
		WithSeverity(SeverityInfo).
		AsRecoverable()
}

// ValidationError creates a validation error
func ValidationError(field string, value interface{}, reason string) *AppError {
	return New(ErrCodeValidationFailed, fmt.Sprintf("Validation failed for %s: %s", field, reason)).
		WithContext("field", field).
		WithContext("value", value).
		WithSeverity(SeverityWarning).
		AsRecoverable()
}

// DuplicateError reports an append refused because the key already exists
func DuplicateError(key string) *AppError {
	return New(ErrCodeDuplicateEntry, fmt.Sprintf("An entry with key %q already exists", key)).
		WithContext("key", key).
		WithSeverity(SeverityWarning).
		AsRecoverable()
}

// IsRecoverable checks if an error is recoverable
func IsRecoverable(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Recoverable
	}
	return false
}

// GetErrorCode extracts the error code from an error
func GetErrorCode(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrCodeInternal
}

// Is and As forward to the standard library so callers need one import.
func Is(err, target error) bool { return errors.Is(err, target) }

func As(err error, target interface{}) bool { return errors.As(err, target) }

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
