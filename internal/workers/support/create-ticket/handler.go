package createticket

import (
	"context"
	"encoding/json"
	"strings"

	"soloparent-workers/internal/audit"
	"soloparent-workers/internal/common/camunda"
	"soloparent-workers/internal/common/errors"
	"soloparent-workers/internal/common/logger"
	"soloparent-workers/internal/common/salesforce"
	"soloparent-workers/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "create-support-ticket"
)

type Store interface {
	Create(ctx context.Context, sobject string, fields interface{}) (string, error)
	Retrieve(ctx context.Context, sobject, id string, fields []string, out interface{}) error
}

type Handler struct {
	config   *Config
	store    Store
	audit    *audit.Recorder
	reporter *camunda.Reporter
	logger   logger.Logger
}

func NewHandler(config *Config, store Store, auditLog *audit.Recorder, log logger.Logger) *Handler {
	l := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:   config,
		store:    store,
		audit:    auditLog,
		reporter: camunda.NewReporter(TaskType, l),
		logger:   l,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	done := h.reporter.Begin(job)

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.reporter.Fail(context.Background(), client, job, errors.NewInputParsingError(err), nil, done)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.execute(ctx, &input)
	if err != nil {
		h.reporter.Fail(ctx, client, job, err, nil, done)
		return
	}
	h.reporter.Complete(ctx, client, job, output, done)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if !salesforce.ValidID(input.AccountID) {
		return nil, errors.NewValidationError("accountId must be a 15 or 18 character record id")
	}
	if strings.TrimSpace(input.Subject) == "" {
		return nil, errors.NewValidationError("ticketSubject is required")
	}

	caseID, err := h.store.Create(ctx, models.SObjectCase, input.Ticket.Case())
	if err != nil {
		return nil, errors.NewTicketCreateError(err)
	}
	output := &Output{CaseID: caseID}

	// The case exists from here on; a failed read-back must not fail the job, or a retry
	// would open a second case.
	var created models.CaseRecord
	if err := h.store.Retrieve(ctx, models.SObjectCase, caseID, []string{"CaseNumber"}, &created); err != nil {
		h.logger.Warn("case number read-back failed", map[string]interface{}{
			"caseId": caseID,
			"error":  err,
		})
	} else {
		output.CaseNumber = created.CaseNumber
	}

	h.audit.RecordBestEffort(ctx, audit.Entry{
		Action: audit.ActionTicketCreated,
		Status: "created",
		Details: map[string]interface{}{
			"caseId":     caseID,
			"caseNumber": output.CaseNumber,
			"accountId":  input.AccountID,
		},
	})

	h.logger.Info("support ticket created", map[string]interface{}{
		"caseId":     caseID,
		"caseNumber": output.CaseNumber,
	})
	return output, nil
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
