package submitapplication

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"soloparent-workers/internal/audit"
	"soloparent-workers/internal/common/camunda"
	"soloparent-workers/internal/common/errors"
	"soloparent-workers/internal/common/logger"
	"soloparent-workers/internal/search"
	"soloparent-workers/internal/submission"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "submit-solo-parent-application"

	StatusCommitted = "committed"

	// failureAuditTimeout bounds the failure entry, which is written after the job deadline
	// when the submission ran out of time.
	failureAuditTimeout = 5 * time.Second
)

// Submitter creates an application and everything attached to it as one unit.
type Submitter interface {
	Submit(ctx context.Context, req submission.Request) (submission.Receipt, error)
}

type Handler struct {
	config    *Config
	submitter Submitter
	audit     *audit.Recorder
	index     *search.Index
	reporter  *camunda.Reporter
	logger    logger.Logger
}

func NewHandler(config *Config, submitter Submitter, auditLog *audit.Recorder, index *search.Index, log logger.Logger) *Handler {
	l := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:    config,
		submitter: submitter,
		audit:     auditLog,
		index:     index,
		reporter:  camunda.NewReporter(TaskType, l),
		logger:    l,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	done := h.reporter.Begin(job)

	input, err := parseInput(job.Variables)
	if err != nil {
		h.reporter.Fail(context.Background(), client, job, err, nil, done)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.execute(ctx, input)
	if err != nil {
		h.reporter.Fail(ctx, client, job, err, failureVariables(err), done)
		return
	}
	h.reporter.Complete(ctx, client, job, output, done)
}

func parseInput(variables string) (*Input, error) {
	if result := inputSchema.ValidateJSON(variables); !result.Valid {
		return nil, errors.NewValidationError(result.Summary())
	}
	var input Input
	if err := json.Unmarshal([]byte(variables), &input); err != nil {
		return nil, errors.NewInputParsingError(err)
	}
	return &input, nil
}

func failureVariables(err error) map[string]interface{} {
	var subErr *submission.Error
	if !stderrors.As(err, &subErr) {
		return nil
	}
	return map[string]interface{}{
		"errorCode":          string(subErr.Kind),
		"rollbackIncomplete": subErr.RollbackIncomplete(),
	}
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	attachments, err := h.stage(input.Attachments)
	if err != nil {
		return nil, err
	}

	receipt, err := h.submitter.Submit(ctx, submission.Request{
		Applicant:   input.PersonalInfo,
		Members:     input.FamilyComposition,
		Attachments: attachments,
	})
	if err != nil {
		h.recordFailure(ctx, err)
		return nil, err
	}

	h.audit.RecordBestEffort(ctx, audit.Entry{
		ApplicationID: receipt.ApplicationID,
		Action:        audit.ActionSubmitted,
		Status:        StatusCommitted,
		Details: map[string]interface{}{
			"familyMembers": len(receipt.MemberIDs),
			"attachments":   len(receipt.DocumentIDs),
		},
	})
	h.index.PutBestEffort(ctx, search.DocumentFor(receipt.ApplicationID, input.PersonalInfo))

	h.logger.Info("application submitted", map[string]interface{}{
		"applicationId": receipt.ApplicationID,
		"familyMembers": len(receipt.MemberIDs),
		"attachments":   len(receipt.DocumentIDs),
	})

	return &Output{
		ApplicationID:     receipt.ApplicationID,
		SubmissionStatus:  StatusCommitted,
		FamilyMemberCount: len(receipt.MemberIDs),
		AttachmentCount:   len(receipt.DocumentIDs),
	}, nil
}

func (h *Handler) stage(raw map[string]json.RawMessage) ([]submission.Attachment, error) {
	uploads, err := submission.FromVariables(raw)
	if err != nil {
		return nil, errors.NewAttachmentInvalidError(err.Error())
	}
	if h.config.MaxAttachments > 0 {
		for field, files := range uploads {
			if len(files) > h.config.MaxAttachments {
				return nil, errors.NewAttachmentInvalidError(
					fmt.Sprintf("field %q has %d files, at most %d allowed", field, len(files), h.config.MaxAttachments))
			}
		}
	}
	attachments, err := submission.Stage(uploads)
	if err != nil {
		return nil, errors.NewAttachmentInvalidError(err.Error())
	}
	return attachments, nil
}

func (h *Handler) recordFailure(ctx context.Context, err error) {
	entry := audit.Entry{
		Action:    audit.ActionSubmitFailed,
		Status:    "failed",
		ErrorCode: string(errors.Normalize(err).Code),
	}
	var subErr *submission.Error
	if stderrors.As(err, &subErr) {
		entry.RollbackIncomplete = subErr.RollbackIncomplete()
		if entry.RollbackIncomplete {
			left := make([]string, 0, len(subErr.Rollback))
			for _, f := range subErr.Rollback {
				left = append(left, f.SObject+"/"+f.ID)
			}
			entry.Details = map[string]interface{}{"leftover": left}
		}
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), failureAuditTimeout)
	defer cancel()
	h.audit.RecordBestEffort(ctx, entry)
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
