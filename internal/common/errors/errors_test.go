package errors

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type kindError struct{}

func (kindError) Error() string { return "kind" }

func (kindError) StandardError() *StandardError {
	return NewSubmissionError(ErrCodeDependentCreateFailed, stderrors.New("member 1 rejected"))
}

func TestSubmissionCodesAreTerminal(t *testing.T) {
	for _, code := range []ErrorCode{
		ErrCodePrimaryCreateFailed,
		ErrCodeDependentCreateFailed,
		ErrCodeAttachmentUploadFailed,
		ErrCodeAttachmentLinkFailed,
	} {
		bpmn := ConvertToBPMNError(NewSubmissionError(code, stderrors.New("boom")))
		assert.Equal(t, string(code), bpmn.Code)
		assert.Zero(t, bpmn.Retries, code)
		assert.False(t, bpmn.Retryable, code)
		assert.Equal(t, "SUBMISSION", GetErrorCategory(code))
	}
}

func TestConvertToBPMNError_RetryableStoreCode(t *testing.T) {
	stdErr := NewRecordQueryError(stderrors.New("timeout")).WithMetadata("applicationId", "a0B1")
	bpmn := ConvertToBPMNError(stdErr)

	assert.Equal(t, 3, bpmn.Retries)
	vars := bpmn.ToErrorVariables()
	assert.Equal(t, "RECORD_QUERY_FAILED", vars["errorCode"])
	assert.Equal(t, "a0B1", vars["applicationId"])
	assert.Equal(t, "timeout", vars["errorDetails"])
}

func TestNormalize(t *testing.T) {
	std := NewValidationError("personalInfo.surname is required")
	assert.Same(t, std, Normalize(std))

	converted := Normalize(kindError{})
	require.NotNil(t, converted)
	assert.Equal(t, ErrCodeDependentCreateFailed, converted.Code)

	wrapped := Normalize(stderrors.New("unexpected"))
	assert.Equal(t, ErrCodeInternal, wrapped.Code)
	assert.Equal(t, "unexpected", wrapped.Details)
}

func TestRemainingRetries(t *testing.T) {
	assert.Equal(t, int32(2), remainingRetries(3, 3))
	assert.Equal(t, int32(1), remainingRetries(5, 1))
	assert.Equal(t, int32(0), remainingRetries(0, 3))
}

func TestGetErrorCategory(t *testing.T) {
	assert.Equal(t, "RECORD_STORE", GetErrorCategory(ErrCodeRecordNotFound))
	assert.Equal(t, "RECORD_STORE", GetErrorCategory(ErrCodeStoreAuthFailed))
	assert.Equal(t, "SEARCH", GetErrorCategory(ErrCodeSearchQueryFailed))
	assert.Equal(t, "NOTIFICATION", GetErrorCategory(ErrCodeTemplateNotFound))
	assert.Equal(t, "SUPPORT", GetErrorCategory(ErrCodeTicketCreateFailed))
	assert.Equal(t, "VALIDATION", GetErrorCategory(ErrCodeValidationFailed))
	assert.Equal(t, "OTHER", GetErrorCategory(ErrCodeInternal))
	assert.False(t, IsRetryableErrorCode(ErrCodeRecordNotFound))
	assert.True(t, IsRetryableErrorCode(ErrCodeRecordUpdateFailed))
}
