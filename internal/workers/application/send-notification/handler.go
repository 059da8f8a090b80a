package sendnotification

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"time"

	"soloparent-workers/internal/common/camunda"
	"soloparent-workers/internal/common/errors"
	"soloparent-workers/internal/common/logger"
	"soloparent-workers/internal/common/salesforce"
	"soloparent-workers/internal/models"
	"soloparent-workers/internal/notify"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/google/uuid"
)

const (
	TaskType = "send-solo-parent-notification"
)

type Retriever interface {
	Retrieve(ctx context.Context, sobject, id string, fields []string, out interface{}) error
}

type Notifier interface {
	Notify(ctx context.Context, notificationType, applicationID string, r notify.Recipient) ([]notify.Delivery, error)
}

type Handler struct {
	config   *Config
	store    Retriever
	notifier Notifier
	reporter *camunda.Reporter
	logger   logger.Logger
	now      func() time.Time
}

func NewHandler(config *Config, store Retriever, notifier Notifier, log logger.Logger) *Handler {
	l := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:   config,
		store:    store,
		notifier: notifier,
		reporter: camunda.NewReporter(TaskType, l),
		logger:   l,
		now:      time.Now,
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

	output := &Output{
		NotificationID: uuid.New().String(),
		SentAt:         h.now().UTC().Format(time.RFC3339),
	}

	var c contact
	if err := h.store.Retrieve(ctx, models.SObjectApplicationForm, input.ApplicationID, contactFields, &c); err != nil {
		if stderrors.Is(err, salesforce.ErrNotFound) {
			h.logger.Warn("recipient not found", map[string]interface{}{
				"applicationId": input.ApplicationID,
			})
			output.Status = notify.StatusDisabled
			return output, nil
		}
		return nil, errors.NewRecordReadError(err)
	}

	deliveries, err := h.notifier.Notify(ctx, input.NotificationType, input.ApplicationID, notify.Recipient{
		GivenName: c.GivenName,
		Email:     c.Email,
		Mobile:    c.MobileNumber,
	})
	if err != nil {
		if stderrors.Is(err, notify.ErrTemplateNotFound) {
			return nil, errors.NewTemplateNotFoundError(input.NotificationType)
		}
		return nil, errors.NewInternalError(err)
	}

	output.Deliveries = deliveries
	output.Status = notify.Status(deliveries)

	h.logger.Info("notification processed", map[string]interface{}{
		"notificationId":   output.NotificationID,
		"applicationId":    input.ApplicationID,
		"notificationType": input.NotificationType,
		"status":           output.Status,
	})
	return output, nil
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
