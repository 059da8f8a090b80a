package listtickets

import (
	"context"
	"encoding/json"

	"soloparent-workers/internal/common/camunda"
	"soloparent-workers/internal/common/errors"
	"soloparent-workers/internal/common/logger"
	"soloparent-workers/internal/common/salesforce"
	"soloparent-workers/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "list-support-tickets"
)

type Querier interface {
	Query(ctx context.Context, soql string, out interface{}) error
}

type Handler struct {
	config   *Config
	store    Querier
	reporter *camunda.Reporter
	logger   logger.Logger
}

func NewHandler(config *Config, store Querier, log logger.Logger) *Handler {
	l := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:   config,
		store:    store,
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

func buildQuery(accountID string) string {
	return "SELECT CreatedDate, CaseNumber, Type, Status, Description, SuppliedEmail FROM Case WHERE AccountId = " +
		salesforce.QuoteString(accountID) + " ORDER BY CreatedDate DESC"
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	// the id is spliced into SOQL
	if !salesforce.ValidID(input.AccountID) {
		return nil, errors.NewValidationError("accountId must be a 15 or 18 character record id")
	}

	var cases []models.CaseRecord
	if err := h.store.Query(ctx, buildQuery(input.AccountID), &cases); err != nil {
		return nil, errors.NewRecordQueryError(err)
	}

	tickets := make([]models.TicketView, 0, len(cases))
	for _, c := range cases {
		tickets = append(tickets, c.View())
	}

	h.logger.Info("support tickets listed", map[string]interface{}{
		"accountId": input.AccountID,
		"count":     len(tickets),
	})
	return &Output{Tickets: tickets, Count: len(tickets)}, nil
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
