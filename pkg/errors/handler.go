package errors

import (
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// ErrorHandler turns errors into something the interactive surfaces can show
// and records them in the structured log.
type ErrorHandler struct {
	logger *zap.Logger
}

// NewErrorHandler creates a new error handler
func NewErrorHandler(logger *zap.Logger) *ErrorHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ErrorHandler{logger: logger}
}

// Handle logs err at a level matching its severity and returns the message
// to display to the user.
func (h *ErrorHandler) Handle(err error) string {
	if err == nil {
		return ""
	}

	var appErr *AppError
	if !errors.As(err, &appErr) {
		h.logger.Error("unclassified error", zap.Error(err))
		return err.Error()
	}

	fields := []zap.Field{
		zap.String("code", string(appErr.Code)),
		zap.Bool("recoverable", appErr.Recoverable),
	}
	for k, v := range appErr.Context {
		fields = append(fields, zap.Any(k, v))
	}
	if appErr.Cause != nil {
		fields = append(fields, zap.NamedError("cause", appErr.Cause))
	}

	switch appErr.Severity {
	case SeverityCritical, SeverityError:
		h.logger.Error(appErr.Message, fields...)
	case SeverityWarning:
		h.logger.Warn(appErr.Message, fields...)
	default:
		h.logger.Info(appErr.Message, fields...)
	}

	return UserMessage(err)
}

// UserMessage returns a short message fit for the interactive surface.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var appErr *AppError
	if !errors.As(err, &appErr) {
		return err.Error()
	}

	var b strings.Builder
	b.WriteString(appErr.Message)
	for _, s := range appErr.Suggestions {
		b.WriteString("\n  - ")
		b.WriteString(s)
	}
	return b.String()
}

// HTTPStatus maps an error to the status code the dashboard answers with.
func HTTPStatus(err error) int {
	switch GetErrorCode(err) {
	case ErrCodeValidationFailed, ErrCodeInvalidInput, ErrCodeRequiredField:
		return http.StatusBadRequest
	case ErrCodeNoResults, ErrCodeSQLObjectNotFound:
		return http.StatusNotFound
	case ErrCodeDuplicateEntry:
		return http.StatusConflict
	case ErrCodeConnectionFailed, ErrCodeConnectionTimeout, ErrCodeAuthenticationFailed:
		return http.StatusServiceUnavailable
	case ErrCodeSQLTimeout:
		return http.StatusGatewayTimeout
	case ErrCodeQueryCanceled:
		return http.StatusRequestTimeout
	case ErrCodeSQLExecution, ErrCodeSQLSyntax, ErrCodeSQLPermission:
		return http.StatusBadGateway
	case ErrCodeResourceExhausted:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
