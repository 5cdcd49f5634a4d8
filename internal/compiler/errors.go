package compiler

import (
	"errors"
	"fmt"
)

// Sentinel categories. Every *CompileError matches exactly one of them
// under errors.Is.
var (
	// ErrCompileFailure means no usable query could be built: the draft
	// failed, could not be cleaned, or failed the self-check.
	ErrCompileFailure = errors.New("could not build a query")

	// ErrValidationRejected means the finished statement failed a safety
	// or shape check. These are always logged for audit.
	ErrValidationRejected = errors.New("query rejected by validation")
)

// ErrorCode identifies the pipeline stage that failed.
type ErrorCode string

const (
	// ErrCodeDraftFailed indicates the drafter returned an error or nothing.
	ErrCodeDraftFailed ErrorCode = "DRAFT_FAILED"

	// ErrCodeCleanupFailed indicates the draft could not be reduced to one
	// flat SELECT.
	ErrCodeCleanupFailed ErrorCode = "CLEANUP_FAILED"

	// ErrCodeSelfCheckFailed indicates a policy repair could not be applied,
	// for example an identifier equality that survived rewriting.
	ErrCodeSelfCheckFailed ErrorCode = "SELF_CHECK_FAILED"

	// ErrCodeValidationRejected indicates the validator refused the
	// statement.
	ErrCodeValidationRejected ErrorCode = "VALIDATION_REJECTED"

	// ErrCodeSpatialFailed indicates the nearest-neighbour branch could not
	// build a query from the extracted point.
	ErrCodeSpatialFailed ErrorCode = "SPATIAL_FAILED"
)

// CompileError is returned by Compile. It never carries a usable query;
// Draft holds whatever text was produced, for audit only.
type CompileError struct {
	Code    ErrorCode
	Message string
	Draft   string
	Err     error
}

func (e *CompileError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *CompileError) Unwrap() error { return e.Err }

// Is maps codes onto the two sentinel categories.
func (e *CompileError) Is(target error) bool {
	switch target {
	case ErrValidationRejected:
		return e.Code == ErrCodeValidationRejected
	case ErrCompileFailure:
		return e.Code != ErrCodeValidationRejected
	}
	return false
}

// IsValidationRejected reports whether err is a validation rejection.
// Uses errors.As to handle wrapped errors.
func IsValidationRejected(err error) bool {
	var ce *CompileError
	if errors.As(err, &ce) {
		return ce.Code == ErrCodeValidationRejected
	}
	return false
}

// IsSelfCheckFailure reports whether err is a self-check failure.
func IsSelfCheckFailure(err error) bool {
	var ce *CompileError
	if errors.As(err, &ce) {
		return ce.Code == ErrCodeSelfCheckFailed
	}
	return false
}

// CodeOf returns the code of a *CompileError in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var ce *CompileError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ""
}

func newError(code ErrorCode, draft string, err error, format string, args ...any) *CompileError {
	return &CompileError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Draft:   draft,
		Err:     err,
	}
}
