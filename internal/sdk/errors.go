package sdk

import (
	"fmt"

	"go.uber.org/zap"
)

// ErrorCode is the severity class the SDK attaches to a reported error.
type ErrorCode int

const (
	ErrorNone ErrorCode = iota
	ErrorDebugInfo
	ErrorDebugWarning
	ErrorInvalidParameter
	ErrorInvalidOperation
	ErrorOutOfMemory
	ErrorInternal
	ErrorAbort
	ErrorPerfWarning
)

func (c ErrorCode) String() string {
	switch c {
	case ErrorNone:
		return "no_error"
	case ErrorDebugInfo:
		return "debug_info"
	case ErrorDebugWarning:
		return "debug_warning"
	case ErrorInvalidParameter:
		return "invalid_parameter"
	case ErrorInvalidOperation:
		return "invalid_operation"
	case ErrorOutOfMemory:
		return "out_of_memory"
	case ErrorInternal:
		return "internal_error"
	case ErrorAbort:
		return "abort"
	case ErrorPerfWarning:
		return "perf_warning"
	default:
		return fmt.Sprintf("error_code(%d)", int(c))
	}
}

// Error is an SDK-reported failure.
type Error struct {
	Code    ErrorCode
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("sdk %s: %s", e.Code, e.Message)
}

// CheckError converts a reported code into an error. Informational codes
// are not errors.
func CheckError(code ErrorCode, message string) error {
	switch code {
	case ErrorNone, ErrorDebugInfo, ErrorDebugWarning, ErrorPerfWarning:
		return nil
	}
	return &Error{Code: code, Message: message}
}

// ErrorCallback receives errors the SDK reports outside of call results.
type ErrorCallback interface {
	ReportError(code ErrorCode, message, file string, line int)
}

// LogErrorCallback forwards SDK reports to a zap logger.
type LogErrorCallback struct {
	Logger *zap.Logger
}

func NewLogErrorCallback(logger *zap.Logger) *LogErrorCallback {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogErrorCallback{Logger: logger}
}

func (c *LogErrorCallback) ReportError(code ErrorCode, message, file string, line int) {
	fields := []zap.Field{
		zap.Stringer("code", code),
		zap.String("file", file),
		zap.Int("line", line),
	}
	if err := CheckError(code, message); err != nil {
		c.Logger.Error(message, append(fields, zap.Error(err))...)
		return
	}
	if code == ErrorDebugInfo {
		c.Logger.Debug(message, fields...)
		return
	}
	c.Logger.Warn(message, fields...)
}
