package engine

import "fmt"

// DefaultMaxInvocations bounds the size of a plan. The selector never
// produces more than a dozen invocations; anything larger is a bug or
// abuse.
const DefaultMaxInvocations = 64

// checkQuota refuses plans with more invocations than limit. A limit of zero
// or less disables the check.
func checkQuota(n, limit int) error {
	if limit > 0 && n > limit {
		return &ExecutionError{
			Code:    ErrCodeQuotaExceeded,
			Message: fmt.Sprintf("plan has %d invocations, limit is %d", n, limit),
		}
	}
	return nil
}
