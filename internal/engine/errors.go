package engine

import (
	"errors"
	"fmt"
)

// ExecutionError describes why one invocation failed, or why a whole
// plan was refused.
type ExecutionError struct {
	// Code identifies the error category.
	Code ExecutionErrorCode

	// Message is a human-readable description.
	Message string

	// ToolName and InvocationID identify the failed call. Both are empty
	// for plan-level errors.
	ToolName     string
	InvocationID string

	// Err is the underlying cause, if any.
	Err error
}

// ExecutionErrorCode categorizes execution errors.
type ExecutionErrorCode string

const (
	// ErrCodeUnknownTool indicates no tool is registered under the name.
	ErrCodeUnknownTool ExecutionErrorCode = "UNKNOWN_TOOL"

	// ErrCodeTimeout indicates the per-call deadline expired.
	ErrCodeTimeout ExecutionErrorCode = "TIMEOUT"

	// ErrCodeCancelled indicates the request context ended first.
	ErrCodeCancelled ExecutionErrorCode = "CANCELLED"

	// ErrCodeToolFailed indicates the tool returned an error.
	ErrCodeToolFailed ExecutionErrorCode = "TOOL_FAILED"

	// ErrCodePanic indicates the tool panicked.
	ErrCodePanic ExecutionErrorCode = "PANIC"

	// ErrCodeInvalidPlan indicates the plan is malformed. Returned by
	// Execute, never recorded in a ToolResult.
	ErrCodeInvalidPlan ExecutionErrorCode = "INVALID_PLAN"

	// ErrCodeQuotaExceeded indicates the plan has more invocations than
	// the orchestrator accepts.
	ErrCodeQuotaExceeded ExecutionErrorCode = "QUOTA_EXCEEDED"
)

// Error implements the error interface.
func (e *ExecutionError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.InvocationID != "" {
		msg = fmt.Sprintf("%s (invocation=%s)", msg, e.InvocationID)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// IsTimeout reports whether err is a per-call timeout.
// Uses errors.As to handle wrapped errors.
func IsTimeout(err error) bool {
	return codeIs(err, ErrCodeTimeout)
}

// IsCancelled reports whether err is a request cancellation.
func IsCancelled(err error) bool {
	return codeIs(err, ErrCodeCancelled)
}

// IsInvalidPlan reports whether Execute refused the plan.
func IsInvalidPlan(err error) bool {
	return codeIs(err, ErrCodeInvalidPlan) || codeIs(err, ErrCodeQuotaExceeded)
}

func codeIs(err error, code ExecutionErrorCode) bool {
	var ee *ExecutionError
	if errors.As(err, &ee) {
		return ee.Code == code
	}
	return false
}

// permanent errors are never retried
func permanent(code ExecutionErrorCode) bool {
	switch code {
	case ErrCodeUnknownTool, ErrCodePanic, ErrCodeCancelled:
		return true
	}
	return false
}
