// Package errors provides standardized error handling for BPMN workflow integration.
package errors

import (
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

// Submission workflow errors. These are terminal for a job: a submission is never retried here.
const (
	ErrCodePrimaryCreateFailed    ErrorCode = "PRIMARY_CREATE_FAILED"
	ErrCodeDependentCreateFailed  ErrorCode = "DEPENDENT_CREATE_FAILED"
	ErrCodeAttachmentUploadFailed ErrorCode = "ATTACHMENT_UPLOAD_FAILED"
	ErrCodeAttachmentLinkFailed   ErrorCode = "ATTACHMENT_LINK_FAILED"
	ErrCodeRollbackPartialFailure ErrorCode = "ROLLBACK_PARTIAL_FAILURE"
	ErrCodeAttachmentInvalid      ErrorCode = "ATTACHMENT_INVALID"
)

// Input and record-store errors.
const (
	ErrCodeInputParsingFailed     ErrorCode = "INPUT_PARSING_FAILED"
	ErrCodeValidationFailed       ErrorCode = "VALIDATION_FAILED"
	ErrCodeRecordNotFound         ErrorCode = "RECORD_NOT_FOUND"
	ErrCodeRecordReadFailed       ErrorCode = "RECORD_READ_FAILED"
	ErrCodeRecordUpdateFailed     ErrorCode = "RECORD_UPDATE_FAILED"
	ErrCodeRecordDeleteFailed     ErrorCode = "RECORD_DELETE_FAILED"
	ErrCodeRecordQueryFailed      ErrorCode = "RECORD_QUERY_FAILED"
	ErrCodeStoreAuthFailed        ErrorCode = "STORE_AUTH_FAILED"
	ErrCodeTicketCreateFailed     ErrorCode = "TICKET_CREATE_FAILED"
	ErrCodeSearchQueryFailed      ErrorCode = "SEARCH_QUERY_FAILED"
	ErrCodeNotificationSendFailed ErrorCode = "NOTIFICATION_SEND_FAILED"
	ErrCodeTemplateNotFound       ErrorCode = "TEMPLATE_NOT_FOUND"
	ErrCodeInternal               ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// WithMetadata returns e with key set in its metadata map.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}

	for k, v := range e.ErrorVariables {
		vars[k] = v
	}

	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

func newError(code ErrorCode, message, details string, retryable bool) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
	}
}

// NewSubmissionError creates a non-retryable error for a failed submission stage.
func NewSubmissionError(code ErrorCode, err error) *StandardError {
	msg := "Application submission failed"
	switch code {
	case ErrCodePrimaryCreateFailed:
		msg = "Failed to create application record"
	case ErrCodeDependentCreateFailed:
		msg = "Failed to add family members"
	case ErrCodeAttachmentUploadFailed:
		msg = "Failed to upload attachments"
	case ErrCodeAttachmentLinkFailed:
		msg = "Failed to link attachments to the application"
	}
	return newError(code, msg, errDetails(err), false)
}

// NewAttachmentInvalidError reports a malformed upload before anything reaches the store.
func NewAttachmentInvalidError(details string) *StandardError {
	return newError(ErrCodeAttachmentInvalid, "Attachment payload is invalid", details, false)
}

// NewInputParsingError creates a non-retryable variables parsing error.
func NewInputParsingError(err error) *StandardError {
	return newError(ErrCodeInputParsingFailed, "Failed to parse job variables", errDetails(err), false)
}

// NewValidationError creates a non-retryable input validation error.
func NewValidationError(details string) *StandardError {
	return newError(ErrCodeValidationFailed, "Input validation failed", details, false)
}

// NewRecordNotFoundError creates a non-retryable not found error.
func NewRecordNotFoundError(sobject, id string) *StandardError {
	return newError(ErrCodeRecordNotFound, "Record not found", fmt.Sprintf("%s: %s", sobject, id), false)
}

// NewRecordReadError creates a retryable read error.
func NewRecordReadError(err error) *StandardError {
	return newError(ErrCodeRecordReadFailed, "Failed to read record", errDetails(err), true)
}

// NewRecordUpdateError creates a retryable update error.
func NewRecordUpdateError(err error) *StandardError {
	return newError(ErrCodeRecordUpdateFailed, "Failed to update record", errDetails(err), true)
}

// NewRecordDeleteError creates a retryable delete error.
func NewRecordDeleteError(err error) *StandardError {
	return newError(ErrCodeRecordDeleteFailed, "Failed to delete record", errDetails(err), true)
}

// NewRecordQueryError creates a retryable query error.
func NewRecordQueryError(err error) *StandardError {
	return newError(ErrCodeRecordQueryFailed, "Record store query failed", errDetails(err), true)
}

// NewStoreAuthError creates a retryable authentication error against the record store.
func NewStoreAuthError(err error) *StandardError {
	return newError(ErrCodeStoreAuthFailed, "Record store authentication failed", errDetails(err), true)
}

// NewTicketCreateError creates a retryable ticket creation error.
func NewTicketCreateError(err error) *StandardError {
	return newError(ErrCodeTicketCreateFailed, "Failed to create support ticket", errDetails(err), true)
}

// NewSearchQueryFailedError creates a retryable search query error.
func NewSearchQueryFailedError(err error) *StandardError {
	return newError(ErrCodeSearchQueryFailed, "Elasticsearch query error", errDetails(err), true)
}

// NewNotificationSendFailedError creates a retryable notification send error.
func NewNotificationSendFailedError(channel string, err error) *StandardError {
	return newError(ErrCodeNotificationSendFailed, "Notification delivery failed",
		fmt.Sprintf("channel: %s, error: %s", channel, errDetails(err)), true)
}

// NewTemplateNotFoundError creates a non-retryable template error.
func NewTemplateNotFoundError(notificationType string) *StandardError {
	return newError(ErrCodeTemplateNotFound, "Notification template not found",
		fmt.Sprintf("notificationType: %s", notificationType), false)
}

// NewInternalError wraps an unexpected error.
func NewInternalError(err error) *StandardError {
	return newError(ErrCodeInternal, "Unexpected error", errDetails(err), false)
}

func errDetails(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// ==========================
// 4. Error Conversion to BPMN
// ==========================

// GetRetryCount returns the recommended retry count for a code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeRecordReadFailed,
		ErrCodeRecordUpdateFailed,
		ErrCodeRecordDeleteFailed,
		ErrCodeRecordQueryFailed,
		ErrCodeSearchQueryFailed,
		ErrCodeNotificationSendFailed:
		return 3

	case ErrCodeStoreAuthFailed,
		ErrCodeTicketCreateFailed:
		return 1

	default:
		// Submission stages, validation and not-found: no retry.
		return 0
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	vars := map[string]interface{}{
		"originalErrorCode": string(stdErr.Code),
		"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
	}
	for k, v := range stdErr.Metadata {
		vars[k] = v
	}

	return &BPMNError{
		Code:           string(stdErr.Code),
		Message:        stdErr.Message,
		Details:        stdErr.Details,
		Retryable:      stdErr.Retryable,
		Retries:        retries,
		ErrorVariables: vars,
	}
}

// Normalize returns err as a StandardError, wrapping foreign errors as INTERNAL_ERROR.
func Normalize(err error) *StandardError {
	if stdErr, ok := err.(*StandardError); ok {
		return stdErr
	}
	if conv, ok := err.(interface{ StandardError() *StandardError }); ok {
		return conv.StandardError()
	}
	return NewInternalError(err)
}

// ==========================
// 5. Utility Functions
// ==========================

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.HasPrefix(codeStr, "PRIMARY_"),
		strings.HasPrefix(codeStr, "DEPENDENT_"),
		strings.HasPrefix(codeStr, "ATTACHMENT_"),
		strings.HasPrefix(codeStr, "ROLLBACK_"):
		return "SUBMISSION"
	case strings.HasPrefix(codeStr, "RECORD_"), strings.HasPrefix(codeStr, "STORE_"):
		return "RECORD_STORE"
	case strings.Contains(codeStr, "SEARCH"):
		return "SEARCH"
	case strings.Contains(codeStr, "NOTIFICATION"), strings.Contains(codeStr, "TEMPLATE"):
		return "NOTIFICATION"
	case strings.Contains(codeStr, "TICKET"):
		return "SUPPORT"
	case strings.Contains(codeStr, "INPUT"), strings.Contains(codeStr, "VALIDATION"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}
