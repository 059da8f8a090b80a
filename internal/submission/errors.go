package submission

import (
	"fmt"
	"strings"

	apperrors "soloparent-workers/internal/common/errors"
)

// Kind names the step at which a submission failed.
type Kind string

const (
	KindPrimaryCreateFailed    = Kind(apperrors.ErrCodePrimaryCreateFailed)
	KindDependentCreateFailed  = Kind(apperrors.ErrCodeDependentCreateFailed)
	KindAttachmentUploadFailed = Kind(apperrors.ErrCodeAttachmentUploadFailed)
	KindAttachmentLinkFailed   = Kind(apperrors.ErrCodeAttachmentLinkFailed)
)

// RollbackFailure is a compensating delete that did not go through. The record it names may
// still exist in the store.
type RollbackFailure struct {
	SObject string
	ID      string
	Err     error
}

// Error is the only error Submit returns. Kind is decided by the failing step and is never
// changed by what happens during rollback.
type Error struct {
	Kind     Kind
	Cause    error
	Rollback []RollbackFailure
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %v", e.Kind, e.Cause)
	if len(e.Rollback) > 0 {
		fmt.Fprintf(&b, " (rollback incomplete: %d record(s) left behind)", len(e.Rollback))
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Cause }

// RollbackIncomplete reports the ROLLBACK_PARTIAL_FAILURE warning.
func (e *Error) RollbackIncomplete() bool { return len(e.Rollback) > 0 }

// StandardError converts e for job reporting; it carries no record ids.
func (e *Error) StandardError() *apperrors.StandardError {
	std := apperrors.NewSubmissionError(apperrors.ErrorCode(e.Kind), e.Cause).
		WithMetadata("rollbackIncomplete", e.RollbackIncomplete())
	if e.RollbackIncomplete() {
		std.WithMetadata("rollbackWarning", string(apperrors.ErrCodeRollbackPartialFailure)).
			WithMetadata("rollbackFailures", len(e.Rollback))
	}
	return std
}
