package listapplications

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"soloparent-workers/internal/common/camunda"
	"soloparent-workers/internal/common/errors"
	"soloparent-workers/internal/common/logger"
	"soloparent-workers/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "list-solo-parent-applications"
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

// limit applies the default for 0 and caps at MaxLimit.
func (h *Handler) limit(requested int) (int, error) {
	switch {
	case requested < 0:
		return 0, errors.NewValidationError("limit must not be negative")
	case requested == 0:
		return h.config.DefaultLimit, nil
	case requested > h.config.MaxLimit:
		return h.config.MaxLimit, nil
	}
	return requested, nil
}

func buildQuery(limit int) string {
	return fmt.Sprintf("SELECT %s FROM %s ORDER BY CreatedDate DESC LIMIT %d",
		strings.Join(models.FormFields, ", "), models.SObjectApplicationForm, limit)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	limit, err := h.limit(input.Limit)
	if err != nil {
		return nil, err
	}

	var forms []models.ApplicationForm
	if err := h.store.Query(ctx, buildQuery(limit), &forms); err != nil {
		return nil, errors.NewRecordQueryError(err)
	}

	views := make([]models.ApplicationView, 0, len(forms))
	for _, f := range forms {
		views = append(views, f.View())
	}

	h.logger.Info("applications listed", map[string]interface{}{
		"limit": limit,
		"count": len(views),
	})
	return &Output{Applications: views, Count: len(views)}, nil
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
