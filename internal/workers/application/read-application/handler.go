package readapplication

import (
	"context"
	"encoding/json"
	stderrors "errors"

	"soloparent-workers/internal/audit"
	"soloparent-workers/internal/cache"
	"soloparent-workers/internal/common/camunda"
	"soloparent-workers/internal/common/errors"
	"soloparent-workers/internal/common/logger"
	"soloparent-workers/internal/common/salesforce"
	"soloparent-workers/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "read-solo-parent-application"
)

type Retriever interface {
	Retrieve(ctx context.Context, sobject, id string, fields []string, out interface{}) error
}

type Handler struct {
	config   *Config
	store    Retriever
	cache    *cache.Cache
	audit    *audit.Recorder
	reporter *camunda.Reporter
	logger   logger.Logger
}

func NewHandler(config *Config, store Retriever, c *cache.Cache, auditLog *audit.Recorder, log logger.Logger) *Handler {
	l := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:   config,
		store:    store,
		cache:    c,
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
	if !salesforce.ValidID(input.ApplicationID) {
		return nil, errors.NewValidationError("applicationId must be a 15 or 18 character record id")
	}

	view, hit, err := cache.Fetch(ctx, h.cache, input.ApplicationID, func(ctx context.Context) (models.ApplicationView, error) {
		var form models.ApplicationForm
		if err := h.store.Retrieve(ctx, models.SObjectApplicationForm, input.ApplicationID, models.FormFields, &form); err != nil {
			return models.ApplicationView{}, err
		}
		return form.View(), nil
	})
	if err != nil {
		if stderrors.Is(err, salesforce.ErrNotFound) {
			return nil, errors.NewRecordNotFoundError(models.SObjectApplicationForm, input.ApplicationID)
		}
		return nil, errors.NewRecordReadError(err)
	}

	output := &Output{Application: view, Cached: hit}
	if input.IncludeHistory {
		entries, err := h.audit.History(ctx, input.ApplicationID, h.config.HistoryLimit)
		if err != nil {
			// the record itself was read; history is supplementary
			h.logger.Warn("audit history unavailable", map[string]interface{}{
				"applicationId": input.ApplicationID,
				"error":         err,
			})
		}
		for _, e := range entries {
			output.History = append(output.History, HistoryEntry{
				Action:             e.Action,
				Status:             e.Status,
				ErrorCode:          e.ErrorCode,
				RollbackIncomplete: e.RollbackIncomplete,
			})
		}
	}

	h.logger.Info("application read", map[string]interface{}{
		"applicationId": input.ApplicationID,
		"cached":        hit,
	})
	return output, nil
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
